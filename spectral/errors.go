package spectral

import (
	"errors"
	"fmt"
)

// ErrorKind identifies which validation check failed.
type ErrorKind string

const (
	MissingField ErrorKind = "MissingField"
	InvalidType  ErrorKind = "InvalidType"
	InvalidSize  ErrorKind = "InvalidSize"
	InvalidValue ErrorKind = "InvalidValue"
)

// Title is the short label reported to API clients.
func (k ErrorKind) Title() string {
	switch k {
	case MissingField:
		return "Missing field"
	case InvalidType:
		return "Invalid data type"
	case InvalidSize:
		return "Invalid input size"
	case InvalidValue:
		return "Invalid value"
	default:
		return "Validation error"
	}
}

// ValidationError describes a rejected reading. Index is -1 when the failure
// is not tied to a single element.
type ValidationError struct {
	Kind       ErrorKind
	Index      int
	Expected   int
	Actual     int
	ActualType string
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case MissingField:
		return fmt.Sprintf("Request must include %q field", FieldName)
	case InvalidSize:
		return fmt.Sprintf("%s must contain exactly %d values, got %d", FieldName, e.Expected, e.Actual)
	case InvalidType:
		if e.Index < 0 {
			return fmt.Sprintf("%s must be a list or array, got %s", FieldName, e.ActualType)
		}
		return fmt.Sprintf("All spectral values must be numeric. Value at index %d is %s", e.Index, e.ActualType)
	case InvalidValue:
		return fmt.Sprintf("%s contains invalid numeric value at index %d", FieldName, e.Index)
	default:
		return "invalid spectral input"
	}
}

// KindOf returns the kind of a validation error, or "" when err is not one.
func KindOf(err error) ErrorKind {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Kind
	}
	return ""
}
