package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/guard-forms/internal/notify"
)

const (
	responseMetaKey  = "response_meta"
	notificationsKey = "notifications"
)

// WithResponseMeta initialises response metadata storage on the request
// context. Handlers pass ExtractMeta to the response writer.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(responseMetaKey, map[string]interface{}{})
		c.Next()
	}
}

// AddNotifications queues toasts for the response meta.
func AddNotifications(c *gin.Context, items ...notify.Notification) {
	if len(items) == 0 {
		return
	}
	meta := ensureMeta(c)
	existing, _ := meta[notificationsKey].([]notify.Notification)
	meta[notificationsKey] = append(existing, items...)
}

// ExtractMeta returns the metadata map stored on the context.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	if meta, exists := c.Get(responseMetaKey); exists {
		if typed, ok := meta.(map[string]interface{}); ok {
			return typed
		}
	}
	return nil
}

func ensureMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return map[string]interface{}{}
	}
	if meta, exists := c.Get(responseMetaKey); exists {
		if typed, ok := meta.(map[string]interface{}); ok {
			return typed
		}
	}
	newMeta := make(map[string]interface{})
	c.Set(responseMetaKey, newMeta)
	return newMeta
}
