package fire

import (
	"errors"
	"fmt"
)

// Error codes carried by every domain error, alongside an HTTP-style status
// conveying severity to callers.
const (
	CodeInvalidCoordinates = "INVALID_COORDINATES"
	CodeLocationNotFound   = "LOCATION_NOT_FOUND"
	CodeStatusNotFound     = "FIRE_STATUS_NOT_FOUND"
	CodeExternalService    = "EXTERNAL_SERVICE_ERROR"
	CodeValidation         = "VALIDATION_ERROR"
)

// Error is the domain error type for the fire status core.
type Error struct {
	Code       string
	StatusCode int
	Message    string
	err        error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.err
}

// CodeOf extracts the domain error code from err, or "" if err is not a
// fire.Error.
func CodeOf(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

// NewInvalidCoordinates reports malformed or out-of-range input. Fatal to
// the current request, never retried.
func NewInvalidCoordinates(latitude, longitude float64) *Error {
	return &Error{
		Code:       CodeInvalidCoordinates,
		StatusCode: 400,
		Message: fmt.Sprintf(
			"invalid GPS coordinates: latitude %v, longitude %v; latitude must be between -90 and 90, longitude between -180 and 180",
			latitude, longitude),
	}
}

// NewLocationNotFound reports that reverse geocoding yielded no usable
// region or country.
func NewLocationNotFound(latitude, longitude float64) *Error {
	return &Error{
		Code:       CodeLocationNotFound,
		StatusCode: 404,
		Message:    fmt.Sprintf("unable to determine location for coordinates: %v, %v", latitude, longitude),
	}
}

// NewStatusNotFound reports that no provider, static entry, or seasonal
// heuristic could answer for a location.
func NewStatusNotFound(location string) *Error {
	return &Error{
		Code:       CodeStatusNotFound,
		StatusCode: 404,
		Message:    fmt.Sprintf("fire status not available for location: %s", location),
	}
}

// NewExternalServiceFailure wraps an underlying network or parse fault from
// a named collaborator.
func NewExternalServiceFailure(service string, err error) *Error {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return &Error{
		Code:       CodeExternalService,
		StatusCode: 503,
		Message:    fmt.Sprintf("external service error from %s: %s", service, msg),
		err:        err,
	}
}

// NewValidationError reports a field-level validation failure.
func NewValidationError(field string, value any, reason string) *Error {
	return &Error{
		Code:       CodeValidation,
		StatusCode: 400,
		Message:    fmt.Sprintf("validation failed for field %q with value %q: %s", field, fmt.Sprint(value), reason),
	}
}
