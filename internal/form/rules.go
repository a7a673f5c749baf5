package form

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// Rule checks one field. It returns an error message, or "" when the value is valid.
// values holds every field of the form so rules can compare fields.
type Rule func(value string, values map[string]string) string

var validate = newValidator()

// newValidator reports struct fields by their json name.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Required fails on empty or whitespace-only values.
func Required(message string) Rule {
	return func(value string, _ map[string]string) string {
		if strings.TrimSpace(value) == "" {
			return message
		}
		return ""
	}
}

// MinLength fails when a non-empty value has fewer than n characters.
// Empty values are left to Required.
func MinLength(n int, message string) Rule {
	return func(value string, _ map[string]string) string {
		if value != "" && utf8.RuneCountInString(value) < n {
			return message
		}
		return ""
	}
}

// MaxLength fails when the value has more than n characters.
func MaxLength(n int, message string) Rule {
	return func(value string, _ map[string]string) string {
		if utf8.RuneCountInString(value) > n {
			return message
		}
		return ""
	}
}

// Matches fails when a non-empty value does not match re.
func Matches(re *regexp.Regexp, message string) Rule {
	return func(value string, _ map[string]string) string {
		if value != "" && !re.MatchString(value) {
			return message
		}
		return ""
	}
}

// EqualTo fails when the value differs from another field, e.g. password confirmation.
func EqualTo(field, message string) Rule {
	return func(value string, values map[string]string) string {
		if value != values[field] {
			return message
		}
		return ""
	}
}

// Tag applies a go-playground/validator tag such as "email", "numeric" or
// "oneof=1h 4h 1d" to a non-empty value. An invalid tag panics at first use.
func Tag(tag, message string) Rule {
	return func(value string, _ map[string]string) string {
		if value == "" {
			return ""
		}
		if err := validate.Var(value, tag); err != nil {
			return message
		}
		return ""
	}
}

// ValidateStruct runs the `validate` struct tags of v and maps failures to
// json field name -> message. It returns nil when v is valid.
func ValidateStruct(v any) map[string]string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"": err.Error()}
	}

	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fieldName(fe)] = describe(fe)
	}
	return out
}

func fieldName(fe validator.FieldError) string {
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	name := fieldName(fe)
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", name, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", name, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", name, fe.Param())
	case "email":
		return name + " must be a valid email"
	default:
		return fmt.Sprintf("%s failed %s validation", name, fe.Tag())
	}
}
