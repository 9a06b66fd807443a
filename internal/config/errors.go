package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConfig is wrapped by every configuration error.
var ErrConfig = errors.New("configuration error")

// #region codes
// Code classifies a configuration error.
type Code string

const (
	// CodeUnknownComponent: a registry key that nothing is registered under.
	CodeUnknownComponent Code = "UNKNOWN_COMPONENT"
	// CodeDimensionMismatch: encoder, selector and updater disagree on the
	// encoding width.
	CodeDimensionMismatch Code = "DIMENSION_MISMATCH"
	// CodeMissingBackground: an operation was requested without the
	// background files it needs.
	CodeMissingBackground Code = "MISSING_BACKGROUND"
	// CodeInvalidValue: a field is out of range.
	CodeInvalidValue Code = "INVALID_VALUE"
)
// #endregion codes

// #region error
// NoHop marks errors that are not tied to a hop.
const NoHop = -1

// Error carries enough context to diagnose a bad configuration without
// re-running: the component family, the offending name and, when relevant,
// the hop.
type Error struct {
	Code      Code
	Component string
	Name      string
	Hop       int
	Reason    string
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "config error [%s] %s", e.Code, e.Component)
	if e.Name != "" {
		fmt.Fprintf(&b, " %q", e.Name)
	}
	if e.Hop != NoHop {
		fmt.Fprintf(&b, " at hop %d", e.Hop)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return ErrConfig }

// UnknownComponent reports a registry miss and lists the valid keys.
func UnknownComponent(component, name string, known []string) *Error {
	return &Error{
		Code:      CodeUnknownComponent,
		Component: component,
		Name:      name,
		Hop:       NoHop,
		Reason:    "not registered (known: " + strings.Join(known, ", ") + ")",
	}
}

// DimensionMismatch reports components that disagree on the encoding width.
func DimensionMismatch(component string, hop, want, got int) *Error {
	return &Error{
		Code:      CodeDimensionMismatch,
		Component: component,
		Hop:       hop,
		Reason:    fmt.Sprintf("expected dim %d, got %d", want, got),
	}
}

// Invalid reports an out-of-range field.
func Invalid(field, format string, args ...any) *Error {
	return &Error{Code: CodeInvalidValue, Component: field, Hop: NoHop, Reason: fmt.Sprintf(format, args...)}
}

// IsCode reports whether err is a configuration error with the given code.
func IsCode(err error, code Code) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Code == code
}
// #endregion error
