package rewrite

import "fmt"

// Kind classifies rewrite errors.
type Kind string

// error kinds.
const (
	// KindConfiguration is a rule set error detected when the rules are built.
	KindConfiguration Kind = "configuration"
	// KindInvariant is an instruction shape that a rule relies on but did not find.
	KindInvariant Kind = "invariant"
	// KindParse is a mod binary that could not be decoded.
	KindParse Kind = "parse"
	// KindUnresolved is a mod that still has broken references after rewriting.
	KindUnresolved Kind = "unresolved"
)

// Sentinels for errors.Is checks by kind.
var (
	ErrConfiguration = &Error{Kind: KindConfiguration}
	ErrInvariant     = &Error{Kind: KindInvariant}
	ErrParse         = &Error{Kind: KindParse}
	ErrUnresolved    = &Error{Kind: KindUnresolved}
)

// Error is a rewrite error with its kind and the reference it concerns.
type Error struct {
	Kind      Kind   // Machine-readable error kind
	Reference string // Full name of the reference the error concerns, if any
	Message   string
	Cause     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind) + " error"
	}
	if e.Reference != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Reference)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// NewConfigurationError returns a rule set configuration error.
func NewConfigurationError(reference, message string, cause error) *Error {
	return &Error{
		Kind:      KindConfiguration,
		Reference: reference,
		Message:   message,
		Cause:     cause,
	}
}

// NewInvariantError returns an error for an unexpected instruction shape.
func NewInvariantError(reference, message string) *Error {
	return &Error{
		Kind:      KindInvariant,
		Reference: reference,
		Message:   message,
	}
}
