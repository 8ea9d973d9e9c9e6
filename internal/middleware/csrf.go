package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/guard-forms/internal/service"
	appErrors "github.com/noah-isme/guard-forms/pkg/errors"
	"github.com/noah-isme/guard-forms/pkg/logger"
	"github.com/noah-isme/guard-forms/pkg/response"
)

const (
	// CSRFCookie holds the anti-forgery token issued by GET /csrf.
	CSRFCookie = "guard_csrftoken"
	// CSRFHeader must echo the cookie on unsafe requests.
	CSRFHeader = "X-CSRFToken"
)

// CSRF enforces the double-submit token on every unsafe method: the header
// must equal the cookie and carry a valid signature.
func CSRF(csrf *service.CSRFService) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		header := c.GetHeader(CSRFHeader)
		cookie, err := c.Cookie(CSRFCookie)
		if header == "" || err != nil || cookie == "" {
			reject(c, appErrors.Clone(appErrors.ErrForbidden, "csrf token missing"))
			return
		}
		if subtle.ConstantTimeCompare([]byte(header), []byte(cookie)) != 1 {
			reject(c, appErrors.Clone(appErrors.ErrForbidden, "csrf token mismatch"))
			return
		}
		if _, err := csrf.Validate(header); err != nil {
			reject(c, err)
			return
		}
		c.Next()
	}
}

func reject(c *gin.Context, err error) {
	logger.FromContext(c, nil).Warn("csrf rejected", zap.String("path", c.Request.URL.Path), zap.Error(err))
	response.Error(c, err)
	c.Abort()
}
