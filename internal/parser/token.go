package parser

import "github.com/oxhq/morfx/internal/span"

// TokenKind enumerates the lexer's terminal symbols. XPath's grammar
// requires a delimiter between adjacent non-delimiting symbols (e.g. "1to2"
// is invalid where "1 to 2" is not); Lexer.Next classifies which side of
// that rule a token falls on.
type TokenKind int

const (
	TokEOF TokenKind = iota
	TokInteger
	TokDecimal
	TokDouble
	TokString
	TokNCName
	TokVarRef     // $name
	TokBracedURI  // Q{uri}
	TokWildcard   // *
	TokLParen
	TokRParen
	TokLBracket
	TokRBracket
	TokLBrace
	TokRBrace
	TokComma
	TokSlash
	TokSlashSlash
	TokDot
	TokDotDot
	TokAt
	TokColonColon
	TokPlus
	TokMinus
	TokStar
	TokEquals
	TokBangEquals
	TokLt
	TokLe
	TokGt
	TokGe
	TokLtLt // <<
	TokGtGt // >>
	TokBar      // |
	TokColon
	TokQuestion
	TokArrow // =>
	TokExclamation
	TokKeyword // reserved word recognized contextually (e.g. "for", "if")
)

// Token is one lexed terminal with its source span and raw text.
type Token struct {
	Kind TokenKind
	Text string
	Span span.Span
}

var keywords = map[string]bool{
	"for": true, "let": true, "some": true, "every": true, "return": true,
	"satisfies": true, "in": true, "if": true, "then": true, "else": true,
	"or": true, "and": true, "to": true, "div": true, "idiv": true, "mod": true,
	"union": true, "intersect": true, "except": true, "instance": true, "of": true,
	"treat": true, "as": true, "castable": true, "cast": true, "eq": true, "ne": true,
	"lt": true, "le": true, "gt": true, "ge": true, "is": true, "function": true,
	"child": true, "descendant": true, "attribute": true, "self": true,
	"descendant-or-self": true, "following-sibling": true, "following": true,
	"parent": true, "ancestor": true, "preceding-sibling": true, "preceding": true,
	"ancestor-or-self": true, "namespace": true,
	"node": true, "text": true, "comment": true, "processing-instruction": true,
	"document-node": true, "element": true, "schema-element": true,
	"schema-attribute": true, "empty-sequence": true, "item": true,
	"map": true, "array": true,
}

func isKeyword(s string) bool { return keywords[s] }
