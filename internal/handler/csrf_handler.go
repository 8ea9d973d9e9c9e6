package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/guard-forms/internal/dto"
	"github.com/noah-isme/guard-forms/internal/middleware"
	"github.com/noah-isme/guard-forms/pkg/response"
)

type csrfIssuer interface {
	Issue() (string, time.Time, error)
}

// CSRFHandler issues anti-forgery tokens.
type CSRFHandler struct {
	issuer csrfIssuer
	secure bool
}

// NewCSRFHandler builds a new handler. secure marks the cookie Secure.
func NewCSRFHandler(issuer csrfIssuer, secure bool) *CSRFHandler {
	return &CSRFHandler{issuer: issuer, secure: secure}
}

// Token godoc
// @Summary Issue an anti-forgery token
// @Description Sets the token cookie; unsafe requests must echo it in X-CSRFToken.
// @Tags Security
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /csrf [get]
func (h *CSRFHandler) Token(c *gin.Context) {
	token, expires, err := h.issuer.Issue()
	if err != nil {
		response.Error(c, err)
		return
	}
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.CSRFCookie, token, int(time.Until(expires).Seconds()), "/", "", h.secure, false)
	response.JSON(c, http.StatusOK, dto.CSRFToken{Token: token, ExpiresAt: expires.UTC().Format(time.RFC3339)}, nil)
}
