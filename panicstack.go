package deferred

import (
	"fmt"
	"runtime/debug"
)

// guardedCall runs f and converts any panic raised by it into a
// Kind: KindUser error, so that a single misbehaving Then/Catch/Finally
// callback never brings down a Loop tick. A captured stack trace is
// attached to the resulting *Error's Message for diagnostics.
//
// A callback either returns once or panics once; there is no notion of
// repanicking into the same frame across multiple resumptions, because a
// Then/Catch/Finally callback never resumes.
func guardedCall(f func() (any, error)) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicToError(r, debug.Stack())
		}
	}()

	return f()
}

func panicToError(v any, stack []byte) *Error {
	e := userError(v)
	e.Message = fmt.Sprintf("%s\n\n%s", e.Message, stack)

	return e
}
