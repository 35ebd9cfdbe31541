// Package handler provides HTTP handlers for the API.
package handler

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/verustcode/stagereport/consts"
	"github.com/verustcode/stagereport/internal/config"
	"github.com/verustcode/stagereport/internal/store"
	"github.com/verustcode/stagereport/pkg/errors"
	"github.com/verustcode/stagereport/pkg/logger"
)

// AuthHandler issues and validates user tokens.
// Users sign in elsewhere; tokens are minted by the token command.
type AuthHandler struct {
	config config.AuthConfig
	store  store.Store
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(cfg config.AuthConfig, s store.Store) *AuthHandler {
	return &AuthHandler{
		config: cfg,
		store:  s,
	}
}

// Claims represents JWT claims; the subject is the user id
type Claims struct {
	jwt.RegisteredClaims
}

// IssueToken signs a token for userID. ttl <= 0 uses the configured expiry.
func (h *AuthHandler) IssueToken(userID uint, ttl time.Duration) (string, time.Time, error) {
	if h.config.JWTSecret == "" {
		return "", time.Time{}, fmt.Errorf("JWT secret not configured")
	}
	if ttl <= 0 {
		hours := h.config.TokenExpiry
		if hours <= 0 {
			hours = 24
		}
		ttl = time.Duration(hours) * time.Hour
	}

	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    consts.ServiceName,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(h.config.JWTSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ValidateToken validates a JWT token and returns the user id.
// Implements middleware.TokenValidator interface
func (h *AuthHandler) ValidateToken(tokenString string) (uint, error) {
	if h.config.JWTSecret == "" {
		return 0, fmt.Errorf("JWT secret not configured")
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(h.config.JWTSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(consts.ServiceName),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return 0, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return 0, jwt.ErrSignatureInvalid
	}

	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid token subject %q", claims.Subject)
	}
	return uint(id), nil
}

// UserRole returns the stored role of userID.
// Implements middleware.RoleResolver interface
func (h *AuthHandler) UserRole(ctx context.Context, userID uint) (string, error) {
	user, err := h.store.WithContext(ctx).User().GetByID(userID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return "", errors.ErrNotFound(fmt.Sprintf("user %d", userID))
		}
		return "", errors.Wrap(errors.ErrCodeDBQuery, "failed to load user", err)
	}
	return string(user.Role), nil
}

// Me handles GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	user, err := h.store.WithContext(c.Request.Context()).User().GetByID(userID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			abortWithError(c, errors.ErrNotFound(fmt.Sprintf("user %d", userID)))
			return
		}
		logger.Error("Failed to load current user", zap.Uint(logger.FieldUserID, userID), zap.Error(err))
		abortWithError(c, errors.Wrap(errors.ErrCodeDBQuery, "failed to load user", err))
		return
	}

	c.JSON(http.StatusOK, user)
}
