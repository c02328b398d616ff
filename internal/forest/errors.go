package forest

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the analysis packages wraps exactly
// one of these, so callers can branch with errors.Is.
var (
	ErrShapeMismatch = errors.New("shape mismatch")
	ErrInvalidInput  = errors.New("invalid input")
	ErrCRSMismatch   = errors.New("crs mismatch")
	ErrMissingData   = errors.New("missing data")
)

// Error describes a failed analysis operation.
type Error struct {
	Op     string // operation that failed, e.g. "change.Detect"
	Kind   error  // one of the Err* kinds above
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Kind }

// Errorf builds an *Error of the given kind with a formatted detail.
func Errorf(op string, kind error, format string, args ...interface{}) error {
	return &Error{Op: op, Kind: kind, Detail: fmt.Sprintf(format, args...)}
}
