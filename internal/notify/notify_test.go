package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestCollectorSkipsEmptyMessages(t *testing.T) {
	c := NewCollector()
	c.Notify(context.Background(), Success(""))
	c.Notify(context.Background(), Error("Ошибка"))

	items := c.Items()
	assert.Equal(t, []Notification{{Level: LevelError, Message: "Ошибка"}}, items)

	items[0].Message = "changed"
	assert.Equal(t, "Ошибка", c.Items()[0].Message)
}

func TestMultiLogsAndCollects(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	c := NewCollector()
	m := Multi{c, NewLogger(zap.New(core)), nil}

	m.Notify(context.Background(), Notification{Level: LevelError, Message: "Файл не найден", Field: "file"})
	m.Notify(context.Background(), Info("Загрузка"))

	assert.Len(t, c.Items(), 2)
	entries := logs.All()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, zap.WarnLevel, entries[0].Level)
		assert.Equal(t, "file", entries[0].ContextMap()["field"])
	}
}
