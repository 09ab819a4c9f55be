// Package apperrors defines the three error kinds the core raises: usage
// errors (bad command line), configuration errors (API misuse by the front
// end), and internal errors (assertion failures inside the core itself).
package apperrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind distinguishes the three error categories the core ever produces.
type Kind string

const (
	Usage         Kind = "UsageError"
	Configuration Kind = "ConfigurationError"
	Internal      Kind = "InternalError"
)

// Error carries a kind plus enough context to render a concrete,
// CLI-grade diagnostic: option spelling, group id, min/max counts.
type Error struct {
	Kind    Kind
	Message string

	// Option is set when the error concerns a specific option spelling,
	// e.g. "-c" or "--count".
	Option string

	// GroupID and Min/Max are set when the error concerns an argument
	// group's satisfaction (see analyzer.ArgumentGroup).
	GroupID  string
	Min, Max int

	cause error
}

func (e *Error) Error() string {
	if e.Option != "" {
		return fmt.Sprintf("%s: %s (option %q)", e.Kind, e.Message, e.Option)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap lets errors.Is/errors.As see through to whatever underlying
// error (if any) triggered this one.
func (e *Error) Unwrap() error { return e.cause }

func newErr(kind Kind, format string, args ...interface{}) *Error {
	msg := fmt.Sprintf(format, args...)
	e := &Error{Kind: kind, Message: msg}
	e.cause = errors.WithStack(fmt.Errorf("%s: %s", kind, msg))
	return e
}

// Usagef builds a usage error: invalid command-line input.
func Usagef(format string, args ...interface{}) *Error {
	return newErr(Usage, format, args...)
}

// UsageOption builds a usage error attributed to a specific option spelling.
func UsageOption(option, format string, args ...interface{}) *Error {
	e := newErr(Usage, format, args...)
	e.Option = option
	return e
}

// UsageGroup builds a usage error describing an unsatisfied argument group.
func UsageGroup(groupID string, min, max int, format string, args ...interface{}) *Error {
	e := newErr(Usage, format, args...)
	e.GroupID = groupID
	e.Min, e.Max = min, max
	return e
}

// Configurationf builds a configuration error: the front end misused the API.
func Configurationf(format string, args ...interface{}) *Error {
	return newErr(Configuration, format, args...)
}

// Internalf builds an internal error: an assertion failure inside the core.
func Internalf(format string, args ...interface{}) *Error {
	return newErr(Internal, format, args...)
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// Stack renders the stack trace captured at construction time, when
// available, for front-end diagnostics.
func Stack(err error) string {
	type stackTracer interface {
		StackTrace() errors.StackTrace
	}
	var st stackTracer
	if errors.As(err, &st) {
		return fmt.Sprintf("%+v", st.StackTrace())
	}
	return ""
}
