package types

import (
	"errors"
	"strings"
)

// Error kinds of the plugin management engine. Check them with errors.Is.
var (
	// ErrConfig marks malformed or missing plugin or host configuration.
	ErrConfig = errors.New("configuration error")
	// ErrCommand marks a malformed command definition.
	ErrCommand = errors.New("command definition error")
	// ErrOverride marks an override that could not be resolved.
	ErrOverride = errors.New("override error")
	// ErrIO marks a failed manifest or file system operation.
	ErrIO = errors.New("io error")
	// ErrExternalTool marks a failed package manager invocation.
	ErrExternalTool = errors.New("external tool error")
	// ErrLifeCycle marks a failed plugin lifecycle hook.
	ErrLifeCycle = errors.New("plugin lifecycle error")
)

// Error is the error raised by operations a user explicitly requested.
// Details carries additional information such as captured tool output.
type Error struct {
	Kind    error
	Msg     string
	Details string
	Cause   error
}

// NewError creates an Error of the given kind.
func NewError(kind error, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

// WithDetails sets additional details and returns the error.
func (e *Error) WithDetails(details string) *Error {
	e.Details = details
	return e
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Msg)
	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	if e.Details != "" {
		sb.WriteString("\n")
		sb.WriteString(e.Details)
	}
	return sb.String()
}

func (e *Error) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}
