package handler

import (
	"mime"
	"net/http"
	"os"
	"path"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/guard-forms/pkg/response"
)

type downloadService interface {
	Open(token string) (*os.File, string, error)
}

// DownloadHandler hands out generated documents.
type DownloadHandler struct {
	service downloadService
}

// NewDownloadHandler builds a new handler.
func NewDownloadHandler(service downloadService) *DownloadHandler {
	return &DownloadHandler{service: service}
}

// Download godoc
// @Summary Download a generated document
// @Tags Downloads
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /downloads/{token} [get]
func (h *DownloadHandler) Download(c *gin.Context) {
	f, name, err := h.service.Open(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		response.Error(c, err)
		return
	}
	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, info.Size(), contentType, f, map[string]string{
		"Content-Disposition": attachment(name),
		"Cache-Control":       "no-store",
	})
}
