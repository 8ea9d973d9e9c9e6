// Package validation holds the pure field rules shared by every admin form.
//
// A rule never touches presentation state: it receives the raw input plus the
// sibling values it depends on and returns a Result carrying validity, the
// normalized value and a user-facing message.
package validation

import (
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Error codes reported in Result.Code.
const (
	CodeEmpty    = "empty"
	CodeLatin    = "latin"
	CodeInvalid  = "invalid"
	CodeTooShort = "too_short"
	CodeTooLong  = "too_long"
	CodeFormat   = "format"
	CodeRange    = "range"
	CodeFuture   = "future"
	CodeMismatch = "mismatch"
)

// Kinds understood by Lookup.
const (
	KindFullName        = "full_name"
	KindEmail           = "email"
	KindPassword        = "password"
	KindPasswordConfirm = "password_confirm"
	KindOMS             = "oms"
	KindDMS             = "dms"
	KindBirthDate       = "birth_date"
	KindDate            = "date"
	KindDateTo          = "date_to"
	KindHours           = "hours"
	KindOGRN            = "ogrn"
	KindPhone           = "phone"
	KindText            = "text"
	KindChoice          = "choice"
	KindCheckbox        = "checkbox"
)

const msgRequired = "Поле обязательно для заполнения"

// Options configures one field instance of a rule.
type Options struct {
	Required          bool
	MinLength         int
	MaxLength         int
	RequireMiddleName bool
	AllowSinglePart   bool
	NotFuture         bool
	Match             string
	After             string
	Choices           []string
}

// Context carries everything a rule may consult besides the raw value.
type Context struct {
	Values  map[string]string
	Today   time.Time
	Options Options
}

// Value returns a sibling field value.
func (c Context) Value(field string) string {
	if c.Values == nil {
		return ""
	}
	return c.Values[field]
}

func (c Context) today() time.Time {
	if c.Today.IsZero() {
		return dateOnly(time.Now())
	}
	return dateOnly(c.Today)
}

// Result is the outcome of one rule evaluation.
type Result struct {
	Valid   bool   `json:"valid" yaml:"valid"`
	Value   string `json:"value" yaml:"value"`
	Code    string `json:"code,omitempty" yaml:"code,omitempty"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
	Length  int    `json:"length" yaml:"length"`
}

// Func is the signature shared by every rule.
type Func func(value string, ctx Context) Result

var registry = map[string]Func{
	KindFullName:        FullName,
	KindEmail:           Email,
	KindPassword:        Password,
	KindPasswordConfirm: PasswordConfirm,
	KindOMS:             OMS,
	KindDMS:             DMS,
	KindBirthDate:       BirthDate,
	KindDate:            Date,
	KindDateTo:          DateTo,
	KindHours:           Hours,
	KindOGRN:            OGRN,
	KindPhone:           Phone,
	KindText:            Text,
	KindChoice:          Choice,
	KindCheckbox:        Checkbox,
}

// Lookup returns the rule registered for kind.
func Lookup(kind string) (Func, bool) {
	fn, ok := registry[kind]
	return fn, ok
}

// Kinds lists every registered rule kind in name order.
func Kinds() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func ok(value, raw string) Result {
	return Result{Valid: true, Value: value, Length: utf8.RuneCountInString(raw)}
}

func fail(value, raw, code, message string) Result {
	return Result{Value: value, Code: code, Message: message, Length: utf8.RuneCountInString(raw)}
}

// optionalEmpty reports whether an empty value should pass as-is.
func optionalEmpty(value string, ctx Context) (Result, bool) {
	if value != "" {
		return Result{}, false
	}
	if ctx.Options.Required {
		return fail("", value, CodeEmpty, msgRequired), true
	}
	return ok("", value), true
}

// Text checks required-ness and rune length bounds.
func Text(raw string, ctx Context) Result {
	value := strings.TrimSpace(raw)
	if res, done := optionalEmpty(value, ctx); done {
		res.Length = utf8.RuneCountInString(raw)
		return res
	}
	n := utf8.RuneCountInString(value)
	if min := ctx.Options.MinLength; min > 0 && n < min {
		return fail(value, raw, CodeTooShort, "Должно содержать минимум "+strconv.Itoa(min)+" символа")
	}
	if max := ctx.Options.MaxLength; max > 0 && n > max {
		return fail(value, raw, CodeTooLong, "Превышена максимальная длина ("+strconv.Itoa(max)+" символов)")
	}
	return ok(value, raw)
}

// Choice accepts only one of the configured options.
func Choice(raw string, ctx Context) Result {
	value := strings.TrimSpace(raw)
	if value == "" {
		if ctx.Options.Required {
			return fail("", raw, CodeEmpty, "Не выбрано")
		}
		return ok("", raw)
	}
	if len(ctx.Options.Choices) == 0 {
		return ok(value, raw)
	}
	for _, c := range ctx.Options.Choices {
		if c == value {
			return ok(value, raw)
		}
	}
	return fail(value, raw, CodeInvalid, "Недопустимое значение")
}

// Checkbox normalizes any truthy form value to "true" and everything else to "false".
func Checkbox(raw string, ctx Context) Result {
	value := "false"
	if IsChecked(raw) {
		value = "true"
	}
	if ctx.Options.Required && value != "true" {
		return fail(value, raw, CodeEmpty, msgRequired)
	}
	return Result{Valid: true, Value: value}
}

// IsChecked interprets the usual HTML checkbox encodings.
func IsChecked(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "on", "1", "yes", "checked":
		return true
	}
	return false
}
