// Package validation checks request payloads and account records, reporting
// every failing field at once.
package validation

import (
	"fmt"
	"html"
	"reflect"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"

	"planify/internal/models"
	"planify/internal/password"
)

const failedMessage = "Validation failed"

var (
	phonePattern = regexp.MustCompile(`^\+?[\d\s\-()]{10,}$`)
	textPolicy   = bluemonday.StrictPolicy()
	validate     = newValidator()
)

var labels = map[string]string{
	"email":           "Email",
	"password":        "Password",
	"currentPassword": "Current password",
	"newPassword":     "New password",
	"firstName":       "First name",
	"lastName":        "Last name",
	"bio":             "Bio",
	"phone":           "Phone number",
	"dateOfBirth":     "Date of birth",
	"role":            "Role",
	"refreshToken":    "Refresh token",
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return lowerFirst(f.Name)
		}
		return name
	})

	mustRegister(v, "phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "role", func(fl validator.FieldLevel) bool {
		return models.Role(fl.Field().String()).Valid()
	})
	mustRegister(v, "password", func(fl validator.FieldLevel) bool {
		return StrongPassword(fl.Field().String())
	})
	mustRegister(v, "bcryptlen", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= password.MaxBytes
	})
	mustRegister(v, "pastdate", func(fl validator.FieldLevel) bool {
		t, ok := fl.Field().Interface().(time.Time)
		return ok && t.Before(time.Now())
	})

	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validation: register %s: %v", tag, err))
	}
}

// Struct validates s against its `validate` tags. It returns nil or a
// validation AppError listing every failing field in declaration order.
func Struct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return models.NewInternalError(err)
	}

	fields := make([]models.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, models.FieldError{Field: fe.Field(), Message: message(fe)})
	}
	return models.NewValidationError(failedMessage, fields...)
}

// User validates a record before it is written to the store.
func User(u *models.User) error {
	return Struct(u)
}

// StrongPassword reports whether pw mixes lower case, upper case and digits.
func StrongPassword(pw string) bool {
	var lower, upper, digit bool
	for _, r := range pw {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return lower && upper && digit
}

// PasswordTooLong reports field as exceeding the hashable length.
func PasswordTooLong(field string) error {
	return models.NewValidationError(failedMessage, models.FieldError{
		Field:   field,
		Message: fmt.Sprintf("%s cannot exceed %d bytes", Label(field), password.MaxBytes),
	})
}

// CleanText strips markup from user supplied free text and trims it.
func CleanText(s string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(s)))
}

// Label returns the human readable name of a JSON field.
func Label(field string) string {
	if label, ok := labels[field]; ok {
		return label
	}
	return field
}

func message(fe validator.FieldError) string {
	label := Label(fe.Field())

	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "email":
		return "Please provide a valid email address"
	case "max":
		return fmt.Sprintf("%s cannot exceed %s characters", label, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
	case "phone":
		return "Please provide a valid phone number"
	case "role":
		return "Role must be one of: " + models.RoleNames()
	case "password":
		return label + " must contain an uppercase letter, a lowercase letter and a number"
	case "bcryptlen":
		return fmt.Sprintf("%s cannot exceed %d bytes", label, password.MaxBytes)
	case "pastdate":
		return label + " must be in the past"
	}
	return label + " is invalid"
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
