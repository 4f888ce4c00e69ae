package teng

import (
	"fmt"

	"github.com/juju/errors"
)

// Error addresses a failure during lexing, parsing or execution that is
// severe enough to abort compilation or a VM run outright (as opposed to
// the recoverable conditions that only append a Diagnostics entry and
// continue). Make sure Sender is always given; if you're returning an
// error from your own built-in function implementation, make Sender equal
// to "builtin:yourfunc".
type Error struct {
	Filename string
	Line     int
	Column   int
	Sender   string

	// cause is the wrapped underlying error, annotated via juju/errors so
	// that errors.ErrorStack(err) can print the full causal chain during
	// debugging while Error() itself stays a terse, single-line message.
	cause error
}

// newError builds an *Error, annotating msg with position/sender context
// via juju/errors so the causal chain survives for debugging tools.
func newError(sender string, pos Position, filename string, msg string) *Error {
	return &Error{
		Filename: filename,
		Line:     pos.Line,
		Column:   pos.Column,
		Sender:   sender,
		cause:    errors.Annotatef(errors.New(msg), "%s at %s:%d:%d", sender, filename, pos.Line, pos.Column),
	}
}

// newErrorf is newError with Printf-style formatting of msg.
func newErrorf(sender string, pos Position, filename string, format string, args ...any) *Error {
	return newError(sender, pos, filename, fmt.Sprintf(format, args...))
}

// Error returns a nicely formatted error string in the pongo2 style:
// "[Error (where: sender) in file | Line L Col C] message".
func (e *Error) Error() string {
	s := "[Error"
	if e.Sender != "" {
		s += " (where: " + e.Sender + ")"
	}
	if e.Filename != "" {
		s += " in " + e.Filename
	}
	if e.Line > 0 {
		s += fmt.Sprintf(" | Line %d Col %d", e.Line, e.Column)
	}
	s += "] "
	if e.cause != nil {
		s += errors.Cause(e.cause).Error()
	}
	return s
}

// Unwrap exposes the underlying annotated cause for errors.Is/As and for
// errors.ErrorStack.
func (e *Error) Unwrap() error {
	return e.cause
}
