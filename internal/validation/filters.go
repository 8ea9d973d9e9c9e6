package validation

import (
	"strings"
	"unicode"
)

// Filter rewrites a value while it is being typed.
type Filter func(raw string) (value string, stripped bool)

// Filter names usable from form definitions.
const (
	FilterPassword = "password"
	FilterPhone    = "phone"
	FilterDigits   = "digits"
)

// PasswordWarning is shown when a keystroke outside the password alphabet is dropped.
const PasswordWarning = msgPasswordAlphabet

// StripPassword drops every rune outside the password alphabet.
func StripPassword(raw string) (string, bool) {
	return keep(raw, IsPasswordRune)
}

// StripPhone keeps digits, whitespace, "+()-#" and the letters of "доб.".
func StripPhone(raw string) (string, bool) {
	return keep(raw, func(r rune) bool {
		if r >= '0' && r <= '9' || unicode.IsSpace(r) {
			return true
		}
		return strings.ContainsRune("+()-#.дДоОбБ", r)
	})
}

// DigitsOnly returns a filter keeping digits and truncating to max of them.
// A non-positive max disables truncation.
func DigitsOnly(max int) Filter {
	return func(raw string) (string, bool) {
		value, stripped := keep(raw, func(r rune) bool { return r >= '0' && r <= '9' })
		if max > 0 && len(value) > max {
			return value[:max], true
		}
		return value, stripped
	}
}

// LookupFilter resolves a named filter. maxLength only applies to digits.
func LookupFilter(name string, maxLength int) (Filter, bool) {
	switch name {
	case FilterPassword:
		return StripPassword, true
	case FilterPhone:
		return StripPhone, true
	case FilterDigits:
		return DigitsOnly(maxLength), true
	}
	return nil, false
}

func keep(raw string, allowed func(rune) bool) (string, bool) {
	var b strings.Builder
	b.Grow(len(raw))
	stripped := false
	for _, r := range raw {
		if allowed(r) {
			b.WriteRune(r)
			continue
		}
		stripped = true
	}
	return b.String(), stripped
}
