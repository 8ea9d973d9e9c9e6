package validation

import (
	"strings"
	"time"
)

// Accepted date layouts, ISO first.
var dateLayouts = []string{"2006-01-02", "02.01.2006"}

const (
	minAgeYears = 14
	maxAgeYears = 100

	msgDateFormat = "Некорректный формат даты"
	msgDateFuture = "Дата не может быть в будущем"
	msgBirthRange = "Пожалуйста, укажите корректную дату рождения (возраст от 14 до 100 лет)"
	msgDateOrder  = "Дата окончания не может быть раньше даты прохождения"
)

// ParseDate parses a calendar date in loc. A nil loc means UTC.
func ParseDate(raw string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ISODate renders t the way the backend expects.
func ISODate(t time.Time) string {
	return t.Format("2006-01-02")
}

// BirthDate requires a past date giving an age of 14 to 100 years inclusive.
func BirthDate(raw string, ctx Context) Result {
	value := strings.TrimSpace(raw)
	if value == "" {
		return fail("", raw, CodeEmpty, msgRequired)
	}
	today := ctx.today()
	t, parsed := ParseDate(value, today.Location())
	if !parsed {
		return fail(value, raw, CodeFormat, msgDateFormat)
	}
	norm := ISODate(t)
	if t.After(today) {
		return fail(norm, raw, CodeFuture, msgDateFuture)
	}
	youngest := today.AddDate(-minAgeYears, 0, 0)
	oldest := today.AddDate(-maxAgeYears, 0, 0)
	if t.After(youngest) || t.Before(oldest) {
		return fail(norm, raw, CodeRange, msgBirthRange)
	}
	return ok(norm, raw)
}

// Date parses a calendar date, optionally rejecting future dates.
func Date(raw string, ctx Context) Result {
	value := strings.TrimSpace(raw)
	if res, done := optionalEmpty(value, ctx); done {
		return res
	}
	today := ctx.today()
	t, parsed := ParseDate(value, today.Location())
	if !parsed {
		return fail(value, raw, CodeFormat, msgDateFormat)
	}
	norm := ISODate(t)
	if ctx.Options.NotFuture && t.After(today) {
		return fail(norm, raw, CodeFuture, msgDateFuture)
	}
	return ok(norm, raw)
}

// DateTo is the closing end of a range whose opening field is Options.After.
// It never precedes the opening date; an unparseable opening date is left to
// that field's own rule.
func DateTo(raw string, ctx Context) Result {
	res := Date(raw, ctx)
	if !res.Valid || res.Value == "" {
		return res
	}
	loc := ctx.today().Location()
	from, parsed := ParseDate(ctx.Value(ctx.Options.After), loc)
	if !parsed {
		return res
	}
	to, _ := ParseDate(res.Value, loc)
	if to.Before(from) {
		return fail(res.Value, raw, CodeRange, msgDateOrder)
	}
	return res
}
