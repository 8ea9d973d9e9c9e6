// Package notify carries the toasts produced while handling a request.
package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Level is the severity shown to the operator.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
)

// Notification is one toast.
type Notification struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func Success(msg string) Notification { return Notification{Level: LevelSuccess, Message: msg} }
func Error(msg string) Notification   { return Notification{Level: LevelError, Message: msg} }
func Warning(msg string) Notification { return Notification{Level: LevelWarning, Message: msg} }
func Info(msg string) Notification    { return Notification{Level: LevelInfo, Message: msg} }

// Notifier receives notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Collector buffers notifications for the response envelope.
type Collector struct {
	mu    sync.Mutex
	items []Notification
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{items: make([]Notification, 0)}
}

func (c *Collector) Notify(_ context.Context, n Notification) {
	if n.Message == "" {
		return
	}
	c.mu.Lock()
	c.items = append(c.items, n)
	c.mu.Unlock()
}

// Items returns a copy of what was collected so far.
func (c *Collector) Items() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Notification(nil), c.items...)
}

// Logger writes notifications to zap.
type Logger struct {
	logger *zap.Logger
}

// NewLogger wraps logger. A nil logger discards everything.
func NewLogger(logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{logger: logger}
}

func (l *Logger) Notify(_ context.Context, n Notification) {
	fields := []zap.Field{zap.String("level", string(n.Level)), zap.String("message", n.Message)}
	if n.Field != "" {
		fields = append(fields, zap.String("field", n.Field))
	}
	switch n.Level {
	case LevelError:
		l.logger.Warn("notification", fields...)
	default:
		l.logger.Debug("notification", fields...)
	}
}

// Multi fans a notification out to every notifier.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) {
	for _, target := range m {
		if target != nil {
			target.Notify(ctx, n)
		}
	}
}
