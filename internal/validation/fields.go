package validation

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	emailExpr  = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	digitsExpr = regexp.MustCompile(`^\d+$`)
	hoursExpr  = regexp.MustCompile(`^\d+(\.\d)?$`)
	phoneExpr  = regexp.MustCompile(`(?i)^[\d\s\-()+]*(?:#|доб\.?)?[\d\s]*$`)
	extMarker  = regexp.MustCompile(`(?i)#|доб\.?`)
	extDigits  = regexp.MustCompile(`(?i)(?:#|доб\.?)([\d\s]+)`)
	nonDigit   = regexp.MustCompile(`\D`)
)

const (
	omsLength  = 16
	dmsMin     = 10
	dmsMax     = 16
	ogrnLength = 13

	passwordMinLength = 8
	passwordSymbols   = `!@#$%^&*()_+-=[]{};':"\|,.<>/?`

	phoneMinDigits    = 5
	phoneMaxExtension = 9

	hoursMin = 1.0
	hoursMax = 1000.0
)

// Email accepts local@domain.tld. Empty input passes unless the field is required.
func Email(raw string, ctx Context) Result {
	value := strings.TrimSpace(raw)
	if value == "" {
		if ctx.Options.Required {
			return fail("", raw, CodeEmpty, "Пожалуйста, введите email")
		}
		return ok("", raw)
	}
	if !emailExpr.MatchString(value) {
		return fail(value, raw, CodeFormat, "Введите корректный email (например, example@domain.com)")
	}
	return ok(value, raw)
}

// IsPasswordRune reports whether r belongs to the password alphabet.
func IsPasswordRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	return strings.ContainsRune(passwordSymbols, r)
}

// Password requires eight or more characters from the password alphabet with
// at least one letter and one digit.
func Password(raw string, ctx Context) Result {
	if raw == "" {
		return fail("", raw, CodeEmpty, "Введите пароль")
	}
	if utf8.RuneCountInString(raw) < passwordMinLength {
		return fail(raw, raw, CodeTooShort, "Пароль должен содержать минимум 8 символов")
	}
	var letter, digit bool
	for _, r := range raw {
		if !IsPasswordRune(r) {
			return fail(raw, raw, CodeFormat, msgPasswordAlphabet)
		}
		switch {
		case r >= '0' && r <= '9':
			digit = true
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			letter = true
		}
	}
	if !letter || !digit {
		return fail(raw, raw, CodeFormat, "Пароль должен содержать буквы и цифры")
	}
	return ok(raw, raw)
}

// PasswordConfirm must be non-empty and equal the field named by Options.Match.
func PasswordConfirm(raw string, ctx Context) Result {
	if raw == "" {
		return fail("", raw, CodeEmpty, "Введите подтверждение пароля")
	}
	if raw != ctx.Value(ctx.Options.Match) {
		return fail(raw, raw, CodeMismatch, "Пароли не совпадают")
	}
	return ok(raw, raw)
}

// OMS is a compulsory medical insurance number: exactly sixteen digits.
func OMS(raw string, ctx Context) Result {
	value := strings.TrimSpace(raw)
	if res, done := optionalEmpty(value, ctx); done {
		res.Length = utf8.RuneCountInString(raw)
		return res
	}
	if utf8.RuneCountInString(value) != omsLength {
		return fail(value, raw, CodeInvalid, "Номер полиса ОМС должен содержать 16 цифр")
	}
	if !digitsExpr.MatchString(value) {
		return fail(value, raw, CodeFormat, "Номер полиса ОМС должен содержать только цифры")
	}
	return ok(value, raw)
}

// DMS is a voluntary insurance number of ten to sixteen characters of any kind.
func DMS(raw string, ctx Context) Result {
	value := strings.TrimSpace(raw)
	if res, done := optionalEmpty(value, ctx); done {
		res.Length = utf8.RuneCountInString(raw)
		return res
	}
	n := utf8.RuneCountInString(value)
	if n < dmsMin {
		return fail(value, raw, CodeTooShort, "Номер полиса ДМС должен содержать минимум 10 символов")
	}
	if n > dmsMax {
		return fail(value, raw, CodeTooLong, "Номер полиса ДМС не должен превышать 16 символов")
	}
	return ok(value, raw)
}

// OGRN is the primary state registration number: exactly thirteen digits.
func OGRN(raw string, ctx Context) Result {
	value := strings.TrimSpace(raw)
	if res, done := optionalEmpty(value, ctx); done {
		res.Length = utf8.RuneCountInString(raw)
		return res
	}
	if !digitsExpr.MatchString(value) {
		return fail(value, raw, CodeFormat, "ОГРН должен содержать только цифры")
	}
	if len(value) != ogrnLength {
		return fail(value, raw, CodeInvalid, "ОГРН должен содержать ровно 13 цифр")
	}
	return ok(value, raw)
}

// Phone accepts a free-form number with an optional "#" or "доб." extension.
func Phone(raw string, ctx Context) Result {
	value := strings.TrimSpace(raw)
	if res, done := optionalEmpty(value, ctx); done {
		res.Length = utf8.RuneCountInString(raw)
		return res
	}
	if !phoneExpr.MatchString(value) {
		return fail(value, raw, CodeFormat, `Допустимы цифры, пробелы, +-() и добавочный через # или "доб."`)
	}
	main := nonDigit.ReplaceAllString(extMarker.Split(value, 2)[0], "")
	if len(main) < phoneMinDigits {
		return fail(value, raw, CodeTooShort, "Основной номер должен содержать минимум 5 цифр")
	}
	if m := extDigits.FindStringSubmatch(value); m != nil {
		if len(nonDigit.ReplaceAllString(m[1], "")) > phoneMaxExtension {
			return fail(value, raw, CodeTooLong, "Добавочный номер не должен превышать 9 цифр")
		}
	}
	return ok(value, raw)
}

// Hours is a training duration: an integer or one decimal place within [1, 1000].
func Hours(raw string, ctx Context) Result {
	value := strings.TrimSpace(raw)
	if value == "" {
		return fail("", raw, CodeEmpty, msgRequired)
	}
	if !hoursExpr.MatchString(value) {
		return fail(value, raw, CodeFormat, msgHoursRange)
	}
	n, err := strconv.ParseFloat(value, 64)
	if err != nil || n < hoursMin || n > hoursMax {
		return fail(value, raw, CodeRange, msgHoursRange)
	}
	return ok(value, raw)
}

const (
	msgPasswordAlphabet = "Пароль должен содержать только латинские буквы и символы"
	msgHoursRange       = "Количество часов должно быть от 1 до 1000"
)
