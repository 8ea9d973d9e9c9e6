package handler

import (
	"mime"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/guard-forms/internal/middleware"
	"github.com/noah-isme/guard-forms/internal/notify"
	appErrors "github.com/noah-isme/guard-forms/pkg/errors"
)

func withNotifications(c *gin.Context, items []notify.Notification) map[string]interface{} {
	middleware.AddNotifications(c, items...)
	return middleware.ExtractMeta(c)
}

func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, name+" must be a positive integer")
	}
	return id, nil
}

func attachment(name string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": name})
}
