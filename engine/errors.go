// Error types for fatal pre-dispatch failures.
//
// Both abort a run before any remote call is made. Record-level failures
// never use these; they are classified in the store package and isolated
// per record by the dispatcher.
package engine

import "fmt"

// ConfigError is an invalid option combination, detected before dispatch.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return "config error: " + e.Message
}

// NewConfigError formats a ConfigError.
func NewConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{Message: fmt.Sprintf(format, args...)}
}

// MappingError is a field-mapping conflict: two source columns claimed the
// same target field.
type MappingError struct {
	Column string
	Target string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("mapping error: column %q maps to target field %q, which is already claimed", e.Column, e.Target)
}
