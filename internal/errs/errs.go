// Package errs holds the error types shared by the kernel packages.
//
// Package-specific fatal conditions (scheduler ordering, lifting, engine
// runtime) live next to the code that raises them. ConfigurationError is
// shared because every constructor in the kernel validates its static
// parameters the same way: eagerly, before a run starts.
package errs

import (
	"errors"
	"fmt"
)

// ConfigurationError reports an invalid static parameter detected at
// construction time. It is never raised mid-run.
type ConfigurationError struct {
	// Component names the type being constructed.
	Component string

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("CONFIGURATION: %s: %s", e.Component, e.Message)
}

// NewConfigurationError creates a ConfigurationError with a formatted message.
func NewConfigurationError(component, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Component: component, Message: fmt.Sprintf(format, args...)}
}

// IsConfigurationError returns true if err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
