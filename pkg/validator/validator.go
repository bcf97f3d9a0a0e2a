package validator

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/medibook-api/internal/model"
	"github.com/jwalitptl/medibook-api/pkg/errors"
)

var phonePattern = regexp.MustCompile(`^\+\d{12,13}$`)

// Validator checks request structs against their `validate` tags.
type Validator interface {
	Validate(obj interface{}) error
}

type structValidator struct {
	v *validator.Validate
}

func New() Validator {
	v := validator.New()
	Register(v)
	return &structValidator{v: v}
}

// Register installs the custom tags and json field naming on v.
func Register(v *validator.Validate) {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return IsPhone(fl.Field().String())
	})
	_ = v.RegisterValidation("doctor", func(fl validator.FieldLevel) bool {
		return model.IsDoctor(fl.Field().String())
	})
}

// IsPhone reports whether s is a '+' followed by 12 or 13 digits.
func IsPhone(s string) bool {
	return phonePattern.MatchString(s)
}

func (s *structValidator) Validate(obj interface{}) error {
	err := s.v.Struct(obj)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return errors.BadRequest("invalid request", err)
	}

	fields := make([]errors.FieldError, 0, len(verrs))
	for _, e := range verrs {
		fields = append(fields, errors.FieldError{
			Field:   e.Field(),
			Message: message(e),
		})
	}
	return errors.Validation(fields...)
}

func message(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", e.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", e.Field(), e.Param())
	case "max":
		return fmt.Sprintf("%s must not be longer than %s characters", e.Field(), e.Param())
	case "email":
		return "Invalid email address"
	case "phone":
		return "Invalid phone number"
	case "doctor":
		return "Select a doctor."
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", e.Field(), e.Param())
	}
	return fmt.Sprintf("%s is invalid", e.Field())
}
