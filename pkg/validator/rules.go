package validator

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// RequiredString validates that a string is not empty after trimming whitespace.
func RequiredString(field, value string) Rule {
	return Rule{
		Check: func() bool { return strings.TrimSpace(value) != "" },
		Error: ValidationError{Field: field, Message: "field is required", Code: "required"},
	}
}

// RequiredSlice validates that a slice has at least one element.
func RequiredSlice[T any](field string, value []T) Rule {
	return Rule{
		Check: func() bool { return len(value) > 0 },
		Error: ValidationError{Field: field, Message: "at least one value is required", Code: "required"},
	}
}

// NoBlankStrings validates that no element of the slice is blank.
func NoBlankStrings(field string, values []string) Rule {
	return Rule{
		Check: func() bool {
			for _, v := range values {
				if strings.TrimSpace(v) == "" {
					return false
				}
			}
			return true
		},
		Error: ValidationError{Field: field, Message: "must not contain blank values", Code: "blank_value"},
	}
}

// Positive validates that a number is strictly greater than zero.
func Positive[T Numeric](field string, value T) Rule {
	var zero T
	return Rule{
		Check: func() bool { return value > zero },
		Error: ValidationError{Field: field, Message: "must be a positive number", Code: "positive"},
	}
}

// NonNegative validates that a number is zero or greater.
func NonNegative[T Numeric](field string, value T) Rule {
	var zero T
	return Rule{
		Check: func() bool { return value >= zero },
		Error: ValidationError{Field: field, Message: "must not be negative", Code: "non_negative"},
	}
}

// MaxNum validates that a number does not exceed max.
func MaxNum[T Numeric](field string, value, max T) Rule {
	return Rule{
		Check: func() bool { return value <= max },
		Error: ValidationError{Field: field, Message: fmt.Sprintf("must be at most %v", max), Code: "max"},
	}
}

// RequiredTime validates that a timestamp is set.
func RequiredTime(field string, value time.Time) Rule {
	return Rule{
		Check: func() bool { return !value.IsZero() },
		Error: ValidationError{Field: field, Message: "timestamp is required", Code: "invalid_date"},
	}
}

// TimeAfter validates that value is strictly after other. Zero values are left
// to RequiredTime and pass here.
func TimeAfter(field string, value, other time.Time, otherField string) Rule {
	return Rule{
		Check: func() bool {
			if value.IsZero() || other.IsZero() {
				return true
			}
			return value.After(other)
		},
		Error: ValidationError{Field: field, Message: "must be after " + otherField, Code: "invalid_range"},
	}
}

// ValidJSON validates that a non-empty document is well-formed JSON.
func ValidJSON(field string, doc []byte) Rule {
	return Rule{
		Check: func() bool { return len(doc) == 0 || json.Valid(doc) },
		Error: ValidationError{Field: field, Message: "must be a valid JSON document", Code: "invalid_json"},
	}
}
