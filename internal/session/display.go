package session

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

const (
	unknownSize        = "Неизвестно"
	defaultNameDisplay = 30
)

var sizeUnits = []string{"B", "KB", "MB", "GB", "TB"}

// FormatFileSize renders bytes with one decimal in binary units.
func FormatFileSize(bytes int64) string {
	if bytes < 0 {
		return unknownSize
	}
	size := float64(bytes)
	unit := 0
	for size >= 1024 && unit < len(sizeUnits)-1 {
		size /= 1024
		unit++
	}
	return fmt.Sprintf("%.1f %s", size, sizeUnits[unit])
}

// TruncateFileName shortens name to max runes, keeping the extension.
func TruncateFileName(name string, max int) string {
	if max <= 0 {
		max = defaultNameDisplay
	}
	runes := []rune(name)
	if len(runes) <= max {
		return name
	}
	ext := ""
	base := runes
	if i := strings.LastIndex(name, "."); i >= 0 {
		ext = name[i:]
		base = []rune(name[:i])
	}
	keep := max - len([]rune(ext)) - 3
	if keep < 0 {
		keep = 0
	}
	if keep > len(base) {
		keep = len(base)
	}
	return string(base[:keep]) + "..." + ext
}

var (
	strictOnce   sync.Once
	strictPolicy *bluemonday.Policy
)

// SafeName is the truncated, HTML-safe rendering of a file name.
func SafeName(name string) string {
	strictOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
	})
	return strictPolicy.Sanitize(TruncateFileName(name, defaultNameDisplay))
}

func replaceID(template string, id int64) string {
	return strings.ReplaceAll(template, "{id}", strconv.FormatInt(id, 10))
}
