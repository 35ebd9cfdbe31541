package handler

import (
	"fmt"
	"mime"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/verustcode/stagereport/internal/api/middleware"
	"github.com/verustcode/stagereport/pkg/errors"
)

// Pagination limits shared by list endpoints
const (
	defaultPageSize = 50
	minPageSize     = 1
	maxPageSize     = 500
)

// abortWithError hands err to middleware.ErrorHandler
func abortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// parseIDParam reads a positive numeric path parameter
func parseIDParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		abortWithError(c, errors.ErrValidation(fmt.Sprintf("invalid %s %q", name, raw)))
		return 0, false
	}
	return uint(id), true
}

// currentUser returns the user authenticated by middleware.JWTAuth
func currentUser(c *gin.Context) (uint, bool) {
	id, ok := middleware.UserID(c)
	if !ok {
		abortWithError(c, errors.ErrUnauthorized("Not authenticated"))
		return 0, false
	}
	return id, true
}

// pagination parses page/page_size into limit and offset
func pagination(c *gin.Context) (limit, offset, page int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))

	if page < 1 {
		page = 1
	}
	if pageSize < minPageSize || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}
	return pageSize, (page - 1) * pageSize, page
}

// attachmentDisposition builds a Content-Disposition header value for name
func attachmentDisposition(name string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}
