// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/verustcode/stagereport/pkg/errors"
	"github.com/verustcode/stagereport/pkg/idgen"
	"github.com/verustcode/stagereport/pkg/logger"
	"github.com/verustcode/stagereport/pkg/telemetry"
)

// Context keys set by the middleware
const (
	ContextKeyRequestID = "request_id"
	ContextKeyUserID    = "user_id"
)

// AccessTokenQuery carries the token for clients that cannot set headers (browser WebSocket)
const AccessTokenQuery = "access_token"

// LoggerConfig holds the configuration for the Logger middleware
type LoggerConfig struct {
	// AccessLog determines if HTTP request logs should be printed at info level
	// When true, successful requests (status < 400) are logged; when false, they are not
	AccessLog bool
}

// Logger returns a middleware that logs HTTP requests
// If cfg is nil, defaults to not logging access requests (accessLog = false)
func Logger(cfg *LoggerConfig) gin.HandlerFunc {
	accessLog := false
	if cfg != nil {
		accessLog = cfg.AccessLog
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
			zap.Duration("latency", time.Since(start)),
			zap.String(ContextKeyRequestID, c.GetString(ContextKeyRequestID)),
		}
		if userID, ok := UserID(c); ok {
			fields = append(fields, zap.Uint(logger.FieldUserID, userID))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("error", c.Errors.String()))
		}

		switch {
		case status >= 500:
			logger.Error("Server error", fields...)
		case status >= 400:
			logger.Warn("Client error", fields...)
		default:
			if accessLog {
				logger.Info("Request", fields...)
			}
		}
	}
}

// Recovery returns a middleware that recovers from panics
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("Panic recovered",
					zap.Any("error", err),
					zap.ByteString("stack", debug.Stack()),
					zap.String("path", c.Request.URL.Path),
					zap.String("method", c.Request.Method),
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"code":    errors.ErrCodeInternal,
					"message": "Internal server error",
				})
			}
		}()
		c.Next()
	}
}

// CORS returns a middleware that handles CORS headers with origin whitelist validation
func CORS(allowedOrigins []string) gin.HandlerFunc {
	originSet := make(map[string]bool)
	for _, origin := range allowedOrigins {
		originSet[origin] = true
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if origin != "" && originSet[origin] {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Request-ID")
			c.Header("Access-Control-Expose-Headers", "Content-Length, Content-Type, Content-Disposition")
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Max-Age", "86400")
		}

		if c.Request.Method == http.MethodOptions {
			if origin != "" && originSet[origin] {
				c.AbortWithStatus(http.StatusNoContent)
			} else {
				c.AbortWithStatus(http.StatusForbidden)
			}
			return
		}

		c.Next()
	}
}

// RequestID returns a middleware that adds a request ID to the context
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.Request.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = idgen.NewRequestID()
		}

		c.Set(ContextKeyRequestID, requestID)
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

// Metrics records request count and latency per route template
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		telemetry.GetMetrics().RecordHTTPRequest(c.Request.Context(),
			c.Request.Method, route, c.Writer.Status(), time.Since(start).Seconds())
	}
}

// ErrorHandler renders the last error attached to the context as {code, message}.
// In production mode (debugMode=false) internal error details are hidden.
func ErrorHandler(debugMode bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		if appErr, ok := errors.AsAppError(err); ok {
			status := appErr.HTTPStatus()
			response := gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
			}
			if status == http.StatusInternalServerError && !debugMode {
				response["message"] = "Internal server error"
			}
			if debugMode && appErr.Details != nil {
				response["details"] = appErr.Details
			}
			c.JSON(status, response)
			return
		}

		msg := "Internal server error"
		if debugMode {
			msg = err.Error()
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    errors.ErrCodeInternal,
			"message": msg,
		})
	}
}

// TokenValidator is an interface for validating JWT tokens
type TokenValidator interface {
	ValidateToken(token string) (userID uint, err error)
}

// JWTAuth returns a middleware that validates JWT tokens.
// The token comes from the Authorization header, or from the access_token
// query parameter when allowQuery is set.
func JWTAuth(validator TokenValidator, allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ""
		authHeader := c.GetHeader("Authorization")

		switch {
		case authHeader != "":
			const bearerPrefix = "Bearer "
			if len(authHeader) <= len(bearerPrefix) || !strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
				abortUnauthorized(c, "Invalid authorization format")
				return
			}
			token = authHeader[len(bearerPrefix):]
		case allowQuery && c.Query(AccessTokenQuery) != "":
			token = c.Query(AccessTokenQuery)
		default:
			abortUnauthorized(c, "Authorization header required")
			return
		}

		userID, err := validator.ValidateToken(token)
		if err != nil {
			logger.Debug("JWT validation failed", zap.Error(err))
			abortUnauthorized(c, "Invalid or expired token")
			return
		}

		c.Set(ContextKeyUserID, userID)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code":    errors.ErrCodeUnauthorized,
		"message": message,
	})
}

// UserID returns the authenticated user set by JWTAuth
func UserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ContextKeyUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok && id > 0
}

// RoleResolver returns the access role of an authenticated user
type RoleResolver interface {
	UserRole(ctx context.Context, userID uint) (string, error)
}

// RequireRole admits only users whose role is one of roles. It must run after JWTAuth.
// The role is read on every request, so a demotion applies to tokens already issued.
func RequireRole(resolver RoleResolver, roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		userID, ok := UserID(c)
		if !ok {
			abortUnauthorized(c, "Authentication required")
			return
		}

		role, err := resolver.UserRole(c.Request.Context(), userID)
		if err != nil {
			if errors.HasCode(err, errors.ErrCodeNotFound) {
				abortUnauthorized(c, "Unknown user")
				return
			}
			logger.Error("Failed to resolve user role", zap.Uint(logger.FieldUserID, userID), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"code":    errors.ErrCodeDBQuery,
				"message": "failed to resolve user role",
			})
			return
		}

		if _, ok := allowed[role]; !ok {
			logger.Debug("Role not allowed", zap.Uint(logger.FieldUserID, userID), zap.String("role", role))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":    errors.ErrCodeForbidden,
				"message": fmt.Sprintf("role %q may not access this resource", role),
			})
			return
		}
		c.Next()
	}
}

// RateLimit limits requests per authenticated user with a token bucket.
// Requests without a user share one bucket.
func RateLimit(perMinute, burst int) gin.HandlerFunc {
	if perMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst <= 0 {
		burst = 1
	}

	var mu sync.Mutex
	limiters := make(map[uint]*rate.Limiter)
	limit := rate.Every(time.Minute / time.Duration(perMinute))

	return func(c *gin.Context) {
		userID, _ := UserID(c)

		mu.Lock()
		l, ok := limiters[userID]
		if !ok {
			l = rate.NewLimiter(limit, burst)
			limiters[userID] = l
		}
		mu.Unlock()

		if !l.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":    errors.ErrCodeRateLimited,
				"message": "Too many report requests, try again later",
			})
			return
		}
		c.Next()
	}
}
