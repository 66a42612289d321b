// Package xerrors defines the closed set of XPath/XSLT error codes used
// throughout the compilation pipeline and VM, plus the SpannedError type
// that attaches a source span to any of them.
package xerrors

import (
	"fmt"

	"github.com/oxhq/morfx/internal/span"
)

// Code is one member of the closed XPath-defined error-code enum plus the
// internal categories (StackOverflow) the VM itself raises.
type Code string

const (
	XPST0003 Code = "XPST0003" // parser: unknown/reserved function name
	XPST0008 Code = "XPST0008" // unresolvable name reference
	XPST0081 Code = "XPST0081" // unknown namespace prefix
	XPTY0004 Code = "XPTY0004" // type mismatch
	XPDY0002 Code = "XPDY0002" // absent context item consumed
	XPDY0130 Code = "XPDY0130" // invalid context position/size
	XQDY0137 Code = "XQDY0137" // duplicate map key
	FOAR0001 Code = "FOAR0001" // division by zero
	FOAR0002 Code = "FOAR0002" // numeric/range overflow
	FOCA0002 Code = "FOCA0002" // invalid lexical value for cast target
	FOCA0003 Code = "FOCA0003" // integer value too large for decimal
	FOCA0005 Code = "FOCA0005" // NaN used as duration multiplier
	FORG0001 Code = "FORG0001" // invalid value for cast (lexical/regex failure)
	FORG0003 Code = "FORG0003" // zero-or-one expected, got many
	FORG0004 Code = "FORG0004" // one-or-more expected, got empty
	FORG0005 Code = "FORG0005" // exactly-one expected, got many/empty
	FORG0006 Code = "FORG0006" // invalid argument type to a function
	FOTY0013 Code = "FOTY0013" // atomization of a non-array function
	FOTY0015 Code = "FOTY0015" // invalid use of array
	FOJS0001 Code = "FOJS0001" // invalid JSON
	FODC0006 Code = "FODC0006" // invalid content passed to parse-xml
	FONS0004 Code = "FONS0004" // no namespace found for declared prefix
	SENR0001 Code = "SENR0001" // serialization error
	XTDE0640 Code = "XTDE0640" // circular variable/template reference

	StackOverflow Code = "StackOverflow" // internal: call frame depth > 64
)

// SpannedError is the single error type that crosses every subsystem
// boundary in this module: parser, IR lowering, the compiler, and the VM all
// produce (or propagate) a *SpannedError. Static functions may return a bare
// error carrying their own declared code; the VM wraps it with the
// currently-executing instruction's span only if it doesn't already have
// one (see internal/vm).
type SpannedError struct {
	Code    Code
	Message string
	Span    span.Span
	Cause   error
}

func New(code Code, message string) *SpannedError {
	return &SpannedError{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) *SpannedError {
	return &SpannedError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *SpannedError) WithSpan(s span.Span) *SpannedError {
	if e == nil {
		return nil
	}
	out := *e
	out.Span = s
	return &out
}

func (e *SpannedError) Error() string {
	if e.Span.Zero() {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s at %s: %s", e.Code, e.Span, e.Message)
}

func (e *SpannedError) Unwrap() error { return e.Cause }

// HasSpan reports whether err already carries a non-zero span, used by the
// VM to decide whether to attach the currently executing instruction's span
// when re-raising an error from a callee.
func HasSpan(err error) bool {
	se, ok := err.(*SpannedError)
	return ok && !se.Span.Zero()
}

// AttachIfMissing wraps err in a *SpannedError with s if err has no span of
// its own yet; if err is already a *SpannedError without a span, s is set in
// place on a copy rather than double-wrapping.
func AttachIfMissing(err error, s span.Span) error {
	if err == nil {
		return nil
	}
	if se, ok := err.(*SpannedError); ok {
		if se.Span.Zero() {
			return se.WithSpan(s)
		}
		return se
	}
	return &SpannedError{Code: XPTY0004, Message: err.Error(), Span: s, Cause: err}
}
