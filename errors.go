package deferred

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Kind is one of the closed set of error kinds a *Error can carry.
type Kind string

// The closed set of error kinds. Adapters that wrap lower-level failures
// (a transport error, a failed process wait) map them onto one of these
// rather than inventing new kinds.
const (
	KindOwnership    Kind = "ownership"
	KindCrossBarrier Kind = "cross-barrier"
	KindAllFailed    Kind = "all-failed"
	KindInsufficient Kind = "insufficient"
	KindCancelled    Kind = "cancelled"
	KindInterrupted  Kind = "interrupted"
	KindTimeout      Kind = "timeout"
	KindUser         Kind = "user"
)

// Error is the error type returned by this package and its adapters. Its
// Kind is always one of the constants above.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func wrapError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// NewError builds a *Error with no cause, for callers (adapters, tests,
// user callbacks) that need to produce one of the closed error kinds
// directly rather than through a combinator.
func NewError(kind Kind, message string) *Error {
	return newError(kind, message)
}

// WrapError builds a *Error around cause, exposed through Unwrap.
func WrapError(kind Kind, message string, cause error) *Error {
	return wrapError(kind, message, cause)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("deferred: %s: %s", e.Kind, e.Message)
	}

	return fmt.Sprintf("deferred: %s: %s: %v", e.Kind, e.Message, e.Cause)
}

// Unwrap exposes the single cause, if any, to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a *Error with the same Kind and an empty
// Message, so that errors.Is(err, &Error{Kind: KindTimeout}) works as a
// kind-only match without comparing Cause. A target that carries a
// Message does not match through Is.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	return ok && other.Kind == e.Kind && other.Message == ""
}

// aggregateError builds the kind-tagged, order-preserving aggregate error
// used by WhenAny ("all-failed") and WhenSome ("insufficient"). WhenAny
// passes causes indexed the same way the parents were passed to the
// join; WhenSome passes the failures it saw in the order they settled.
func aggregateError(kind Kind, message string, causes []error) *Error {
	var merr *multierror.Error
	for _, c := range causes {
		merr = multierror.Append(merr, c)
	}

	return wrapError(kind, message, merr.ErrorOrNil())
}

func userError(v any) *Error {
	if err, ok := v.(error); ok {
		return wrapError(KindUser, "callback panicked", err)
	}

	return wrapError(KindUser, fmt.Sprintf("callback panicked: %v", v), nil)
}
