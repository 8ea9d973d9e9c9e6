package validation

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	defaultNamePartMin = 2
	defaultNamePartMax = 30

	msgNameLatin   = "ФИО должно содержать только кириллицу"
	msgNameInvalid = "Введите корректное ФИО (2-3 слова, каждое с заглавной буквы)"
)

var (
	latinLetter  = regexp.MustCompile(`[A-Za-z]`)
	namePartExpr = regexp.MustCompile(`^[А-ЯЁ][а-яё]*(?:[-'][А-ЯЁ][а-яё]+)*$`)
)

// NormalizeFullName trims, collapses whitespace and fixes the case of every
// word and of every sub-part after a hyphen or apostrophe.
func NormalizeFullName(raw string) string {
	parts := strings.Fields(raw)
	for i, part := range parts {
		parts[i] = capitalizePart(part)
	}
	return strings.Join(parts, " ")
}

func capitalizePart(part string) string {
	var b strings.Builder
	b.Grow(len(part))
	start := true
	for _, r := range part {
		switch {
		case r == '-' || r == '\'':
			b.WriteRune(r)
			start = true
		case start:
			b.WriteRune(unicode.ToUpper(r))
			start = false
		default:
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// FullName validates a Cyrillic surname, given name and optional patronymic.
// The case-corrected value is returned even when the name is rejected. Blank
// input only fails when the field is required.
func FullName(raw string, ctx Context) Result {
	value := NormalizeFullName(raw)
	if value == "" {
		if !ctx.Options.Required {
			return ok("", raw)
		}
		return fail("", raw, CodeEmpty, msgRequired)
	}
	if latinLetter.MatchString(value) {
		return fail(value, raw, CodeLatin, msgNameLatin)
	}

	parts := strings.Split(value, " ")
	switch {
	case ctx.Options.RequireMiddleName && len(parts) != 3:
		return fail(value, raw, CodeInvalid, msgNameInvalid)
	case len(parts) < 2 && !ctx.Options.AllowSinglePart:
		return fail(value, raw, CodeInvalid, msgNameInvalid)
	case len(parts) > 3:
		return fail(value, raw, CodeInvalid, msgNameInvalid)
	}

	lo, hi := ctx.Options.MinLength, ctx.Options.MaxLength
	if lo <= 0 {
		lo = defaultNamePartMin
	}
	if hi <= 0 {
		hi = defaultNamePartMax
	}
	for _, part := range parts {
		n := utf8.RuneCountInString(part)
		if n < lo || n > hi || !namePartExpr.MatchString(part) {
			return fail(value, raw, CodeInvalid, msgNameInvalid)
		}
	}
	return ok(value, raw)
}
