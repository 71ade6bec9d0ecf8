package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/benvon/habit-tracker/internal/models"
	"github.com/go-playground/validator/v10"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New(validator.WithRequiredStructEnabled())

	// Report JSON field names in validation errors
	Validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	for tag, fn := range map[string]validator.Func{
		"habit_category": validateCategory,
		"habit_color":    validateColor,
		"weekday":        validateWeekday,
		"calendar_date":  validateCalendarDate,
	} {
		if err := Validate.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("failed to register %s validator: %v", tag, err))
		}
	}
}

func validateCategory(fl validator.FieldLevel) bool {
	return models.Category(fl.Field().String()).Valid()
}

func validateColor(fl validator.FieldLevel) bool {
	return models.Color(fl.Field().String()).Valid()
}

// validateWeekday accepts weekday names in any case
func validateWeekday(fl validator.FieldLevel) bool {
	_, err := models.ParseWeekday(fl.Field().String())
	return err == nil
}

func validateCalendarDate(fl validator.FieldLevel) bool {
	_, err := models.ParseDate(fl.Field().String())
	return err == nil
}

// Message turns a validation error into a client-facing message naming the
// first offending field.
func Message(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Validation failed"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "habit_category":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), join(models.Categories))
	case "habit_color":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), join(models.Colors))
	case "weekday":
		return fmt.Sprintf("%s must contain weekday names", firstSegment(fe.Field()))
	case "calendar_date":
		return fmt.Sprintf("%s must be a date in YYYY-MM-DD format", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	default:
		return fmt.Sprintf("Validation failed: %s", fe.Error())
	}
}

func join[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}

// firstSegment strips the slice index validator adds to dive errors.
func firstSegment(field string) string {
	name, _, _ := strings.Cut(field, "[")
	return name
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	// Remove control characters except newline and tab
	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// ParseDate parses a YYYY-MM-DD path or query value.
func ParseDate(field, value string) (models.Date, error) {
	d, err := models.ParseDate(value)
	if err != nil {
		return models.Date{}, fmt.Errorf("%s must be a date in YYYY-MM-DD format", field)
	}
	return d, nil
}
