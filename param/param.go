package param

import (
	"fmt"

	"github.com/c360/plotstream/errors"
)

// Validation error codes, standardized across backend and UI so failures can
// be mapped to specific form fields:
//   - "type":   value doesn't match the domain's value type
//   - "bounds": numeric value or interval endpoint outside inclusive bounds
//   - "enum":   value not in the allowed option set
//   - "order":  interval endpoints out of order (lo > hi)
const (
	CodeType   = "type"
	CodeBounds = "bounds"
	CodeEnum   = "enum"
	CodeOrder  = "order"
)

// ValidationError reports a rejected parameter assignment. It identifies the
// parameter, the rejected value and the violated constraint; the parameter's
// previous value is always retained when one of these is returned.
type ValidationError struct {
	Parameter  string `json:"parameter"`
	Value      any    `json:"value"`
	Code       string `json:"code"`
	Constraint string `json:"constraint"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("parameter %q: rejected value %v: %s", e.Parameter, e.Value, e.Constraint)
}

// Unwrap maps the validation failure onto the shared error taxonomy so
// callers can classify without inspecting codes
func (e *ValidationError) Unwrap() error {
	if e.Code == CodeType {
		return errors.ErrTypeMismatch
	}
	return errors.ErrOutOfDomain
}

// Parameter is a named, typed, validated, documented, defaulted value
// declared at schema (class) scope.
type Parameter struct {
	Name    string
	Domain  Domain
	Default any
	Doc     string
}

// Spec is the introspectable description of a declared parameter, exposed to
// external UI generators through Schema.Specs.
type Spec struct {
	Name    string     `json:"name"`
	Doc     string     `json:"doc,omitempty"`
	Default any        `json:"default"`
	Domain  DomainSpec `json:"domain"`
}
