package validation

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	ndomain "github.com/corvusHold/notify/internal/notify/domain"
)

type defaultValidator struct{ v *validator.Validate }

func (d *defaultValidator) Validate(i interface{}) error {
	return d.v.Struct(i)
}

// New returns an echo.Validator reporting fields by their JSON names, with the
// notify custom tags registered:
//   - event_type: value is a cataloged event type
//   - channel:    value is a known delivery channel
func New() echo.Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonName)
	_ = v.RegisterValidation("event_type", func(fl validator.FieldLevel) bool {
		return ndomain.IsKnownEventType(ndomain.EventType(fl.Field().String()))
	})
	_ = v.RegisterValidation("channel", func(fl validator.FieldLevel) bool {
		return ndomain.Channel(fl.Field().String()).Valid()
	})
	return &defaultValidator{v: v}
}

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	}
	return name
}
