package entries

import (
	"errors"

	"github.com/valerioformato/nutrition-helper/internal/validation"
)

// RejectedError is returned when a business rule blocks a write.
type RejectedError struct {
	Failure *validation.Failure
}

func (e *RejectedError) Error() string {
	return "Business validation error: " + e.Failure.Message()
}

func (e *RejectedError) Unwrap() error {
	return e.Failure
}

// AsRejected reports whether err carries a rule failure.
func AsRejected(err error) (*RejectedError, bool) {
	var rejected *RejectedError
	ok := errors.As(err, &rejected)
	return rejected, ok
}
