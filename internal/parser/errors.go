package parser

import (
	"fmt"

	"github.com/oxhq/morfx/internal/span"
	"github.com/oxhq/morfx/internal/xerrors"
)

// ParserErrorCategory is the closed set of parser-failure shapes, per
// spec §4.1 ("ParserError variant tagged by category").
type ParserErrorCategory int

const (
	ExpectedFound ParserErrorCategory = iota
	UnknownPrefix
	UnknownType
	Reserved
	ArityOverflow
)

// ParserError is the parser's failure type: a category, a human message,
// and the span it occurred at.
type ParserError struct {
	Category ParserErrorCategory
	Message  string
	Span     span.Span
}

func (e *ParserError) Error() string { return e.Message }

func expectedFound(sp span.Span, expected, found string) *ParserError {
	return &ParserError{Category: ExpectedFound, Span: sp, Message: fmt.Sprintf("expected %s, found %q", expected, found)}
}

func unknownPrefix(sp span.Span, prefix string) *ParserError {
	return &ParserError{Category: UnknownPrefix, Span: sp, Message: fmt.Sprintf("unknown namespace prefix %q", prefix)}
}

func unknownType(sp span.Span, name string) *ParserError {
	return &ParserError{Category: UnknownType, Span: sp, Message: fmt.Sprintf("unknown or non-atomic type %q", name)}
}

func reserved(sp span.Span, name string) *ParserError {
	return &ParserError{Category: Reserved, Span: sp, Message: fmt.Sprintf("%q is a reserved function name", name)}
}

func arityOverflow(sp span.Span, name string) *ParserError {
	return &ParserError{Category: ArityOverflow, Span: sp, Message: fmt.Sprintf("arity suffix on %q exceeds 255", name)}
}

// ToSpannedError maps a ParserError onto the runtime error-code enum so the
// CLI front end can report parse failures the same way it reports runtime
// ones: UnknownPrefix becomes XPST0081 (per spec §4.1); everything else is
// the generic static-parse code XPST0003.
func ToSpannedError(err error) *xerrors.SpannedError {
	pe, ok := err.(*ParserError)
	if !ok {
		if le, ok := err.(*LexicalError); ok {
			return xerrors.New(xerrors.XPST0003, le.Message).WithSpan(le.Span)
		}
		return xerrors.New(xerrors.XPST0003, err.Error())
	}
	code := xerrors.XPST0003
	if pe.Category == UnknownPrefix {
		code = xerrors.XPST0081
	}
	return xerrors.New(code, pe.Message).WithSpan(pe.Span)
}
