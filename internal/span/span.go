// Package span carries source-location information from the lexer through
// parsing, IR lowering, and bytecode compilation so that a runtime error can
// always be mapped back to a byte range in the original expression text.
package span

import "fmt"

// Span is a half-open byte range [Start, End) in the source text that
// produced a token, AST node, IR node, or bytecode instruction. Line/Col are
// 1-based and only used for diagnostic rendering.
type Span struct {
	Start, End int
	Line, Col  int
}

// Zero reports whether s is the unset span (used by synthetic nodes that
// have no source representation, e.g. a compiler-inserted ReturnConvert).
func (s Span) Zero() bool {
	return s.Start == 0 && s.End == 0 && s.Line == 0 && s.Col == 0
}

// Cover returns the smallest span containing both s and other. If either is
// Zero, the other is returned unchanged; synthetic spans never widen a real
// one to something meaningless.
func (s Span) Cover(other Span) Span {
	if s.Zero() {
		return other
	}
	if other.Zero() {
		return s
	}
	out := s
	if other.Start < out.Start {
		out.Start = other.Start
		out.Line, out.Col = other.Line, other.Col
	}
	if other.End > out.End {
		out.End = other.End
	}
	return out
}

func (s Span) String() string {
	return fmt.Sprintf("%d:%d", s.Line, s.Col)
}
