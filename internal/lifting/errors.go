package lifting

import (
	"errors"
	"fmt"
)

// LiftingSchemeError reports rates that no successor can be drawn from.
type LiftingSchemeError struct {
	Message string
}

func (e *LiftingSchemeError) Error() string {
	return "lifting scheme: " + e.Message
}

// IsLiftingSchemeError reports whether err wraps a *LiftingSchemeError.
func IsLiftingSchemeError(err error) bool {
	var e *LiftingSchemeError
	return errors.As(err, &e)
}

func newLiftingSchemeError(format string, args ...any) *LiftingSchemeError {
	return &LiftingSchemeError{Message: fmt.Sprintf(format, args...)}
}
