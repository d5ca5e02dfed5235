package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Validator checks request structs outside of the HTTP binding path.
type Validator interface {
	// Validate returns nil or one human readable reason per failed field.
	Validate(obj interface{}) []string
}

type playground struct {
	v *validator.Validate
}

var (
	defaultOnce sync.Once
	defaultV    Validator
)

// New builds a validator that reads gin's "binding" tags, so a DTO is
// checked the same way whether it arrives over HTTP or from a service call.
func New() Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.SetTagName("binding")
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return &playground{v: v}
}

// Default returns a shared instance.
func Default() Validator {
	defaultOnce.Do(func() {
		defaultV = New()
	})
	return defaultV
}

func (p *playground) Validate(obj interface{}) []string {
	err := p.v.Struct(obj)
	if err == nil {
		return nil
	}
	return Reasons(err)
}

// Reasons flattens validator.ValidationErrors into messages. Any other
// error is returned as a single reason.
func Reasons(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}

	reasons := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		reasons = append(reasons, describe(fe))
	}
	return reasons
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at least %s item(s)", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s characters long", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must not exceed %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed on %s", field, fe.Tag())
	}
}
