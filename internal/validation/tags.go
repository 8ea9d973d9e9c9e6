package validation

import (
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
)

// Clock supplies "today" for date rules.
type Clock func() time.Time

// RegisterTags exposes the field rules as validator struct tags so typed
// payloads can be checked before they leave the gateway.
func RegisterTags(v *validator.Validate, clock Clock) error {
	if clock == nil {
		clock = time.Now
	}
	tags := map[string]Func{
		"fullname":  FullName,
		"oms":       OMS,
		"dms":       DMS,
		"ogrn":      OGRN,
		"phone":     Phone,
		"hours":     Hours,
		"birthdate": BirthDate,
		"isodate":   Date,
		"password":  Password,
	}
	for tag, rule := range tags {
		if err := v.RegisterValidation(tag, bridge(rule, clock)); err != nil {
			return err
		}
	}
	return nil
}

func bridge(rule Func, clock Clock) validator.Func {
	return func(fl validator.FieldLevel) bool {
		field := fl.Field()
		if field.Kind() != reflect.String {
			return false
		}
		return rule(field.String(), Context{Today: clock(), Options: Options{Required: true}}).Valid
	}
}
