// Package parser implements an XPath 3.1 Pratt/recursive-descent parser
// producing a span-annotated AST. Name-test prefixes are resolved against
// the static context's namespace map here; function-name prefixes are kept
// as written and resolved during lowering (internal/ir), where an unknown
// one is reported as an unknown function (XPST0003), not XPST0081.
package parser

import (
	"strconv"

	"github.com/oxhq/morfx/internal/span"
	"github.com/oxhq/morfx/internal/statctx"
)

// Parser consumes a token stream produced by Lexer and builds an AST,
// resolving name-test prefixes against sc as it goes.
type Parser struct {
	lex  *Lexer
	sc   *statctx.StaticContext
	cur  Token
	peek Token
	err  error
}

// Parse lexes and parses src as a single XPath expression, returning the
// root AST node. sc supplies namespace-prefix resolution and is consulted
// (but not mutated) during parsing.
func Parse(src string, sc *statctx.StaticContext) (*Node, error) {
	p := &Parser{lex: NewLexer(src), sc: sc}
	if err := p.prime(); err != nil {
		return nil, err
	}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.cur.Kind != TokEOF {
		return nil, expectedFound(p.cur.Span, "end of expression", p.cur.Text)
	}
	return expr, nil
}

func (p *Parser) prime() error {
	t1, err := p.lex.Next()
	if err != nil {
		return err
	}
	t2, err := p.lex.Next()
	if err != nil {
		return err
	}
	p.cur, p.peek = t1, t2
	return nil
}

func (p *Parser) advance() error {
	p.cur = p.peek
	t, err := p.lex.Next()
	if err != nil {
		return err
	}
	p.peek = t
	return nil
}

func (p *Parser) expect(k TokenKind, what string) (Token, error) {
	if p.cur.Kind != k {
		return Token{}, expectedFound(p.cur.Span, what, p.cur.Text)
	}
	t := p.cur
	if err := p.advance(); err != nil {
		return Token{}, err
	}
	return t, nil
}

func (p *Parser) atKeyword(kw string) bool {
	return p.cur.Kind == TokKeyword && p.cur.Text == kw
}

func (p *Parser) consumeKeyword(kw string) (bool, error) {
	if p.atKeyword(kw) {
		if err := p.advance(); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// --- Expression grammar, lowest to highest precedence ---
//
//   Expr            := OrExpr ("for"|"let"|"some"|"every" clauses handled up front)
//   OrExpr          := AndExpr ("or" AndExpr)*
//   AndExpr         := ComparisonExpr ("and" ComparisonExpr)*
//   ComparisonExpr  := RangeExpr (comparisonOp RangeExpr)?      -- non-associative
//   RangeExpr       := AdditiveExpr ("to" AdditiveExpr)?
//   AdditiveExpr    := MultiplicativeExpr (("+"|"-") MultiplicativeExpr)*
//   MultiplicativeExpr := UnionExpr (("*"|"div"|"idiv"|"mod") UnionExpr)*
//   UnionExpr       := IntersectExceptExpr (("union"|"|") IntersectExceptExpr)*
//   IntersectExceptExpr := InstanceofExpr (("intersect"|"except") InstanceofExpr)*
//   InstanceofExpr  := TreatExpr ("instance" "of" SequenceType)?
//   TreatExpr       := CastableExpr ("treat" "as" SequenceType)?
//   CastableExpr    := CastExpr ("castable" "as" SequenceType)?
//   CastExpr        := UnaryExpr ("cast" "as" SequenceType)?
//   UnaryExpr       := ("-"|"+")* ValueExpr
//   ValueExpr       := PathExpr

func (p *Parser) parseExpr() (*Node, error) {
	first, err := p.parseExprSingle()
	if err != nil {
		return nil, err
	}
	if p.cur.Kind != TokComma {
		return first, nil
	}
	items := []*Node{first}
	sp := first.Span
	for p.cur.Kind == TokComma {
		if err := p.advance(); err != nil {
			return nil, err
		}
		next, err := p.parseExprSingle()
		if err != nil {
			return nil, err
		}
		items = append(items, next)
		sp = sp.Cover(next.Span)
	}
	return &Node{Kind: ExprSequence, Span: sp, Items: items}, nil
}

func (p *Parser) parseExprSingle() (*Node, error) {
	switch {
	case p.atKeyword("for"):
		return p.parseForExpr()
	case p.atKeyword("let"):
		return p.parseLetExpr()
	case p.atKeyword("some"), p.atKeyword("every"):
		return p.parseQuantifiedExpr()
	case p.atKeyword("if"):
		return p.parseIfExpr()
	default:
		return p.parseOrExpr()
	}
}

func (p *Parser) parseForExpr() (*Node, error) {
	start := p.cur.Span
	if err := p.advance(); err != nil {
		return nil, err
	}
	clauses, err := p.parseForLetClauses(true)
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword("return"); err != nil {
		return nil, err
	}
	body, err := p.parseExprSingle()
	if err != nil {
		return nil, err
	}
	return &Node{Kind: ExprFor, Span: start.Cover(body.Span), Clauses: clauses, ReturnExpr: body}, nil
}

func (p *Parser) parseLetExpr() (*Node, error) {
	start := p.cur.Span
	if err := p.advance(); err != nil {
		return nil, err
	}
	clauses, err := p.parseForLetClauses(false)
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword("return"); err != nil {
		return nil, err
	}
	body, err := p.parseExprSingle()
	if err != nil {
		return nil, err
	}
	return &Node{Kind: ExprLet, Span: start.Cover(body.Span), Clauses: clauses, ReturnExpr: body}, nil
}

func (p *Parser) expectKeyword(kw string) (Token, error) {
	if !p.atKeyword(kw) {
		return Token{}, expectedFound(p.cur.Span, "keyword "+kw, p.cur.Text)
	}
	t := p.cur
	return t, p.advance()
}

// parseForLetClauses parses one or more comma-separated clauses of the
// same for/let kind, e.g. "$x in 1 to 3, $y in 1 to 2" or "$x := 1, $y := 2".
func (p *Parser) parseForLetClauses(isFor bool) ([]Clause, error) {
	var clauses []Clause
	for {
		v, err := p.expect(TokVarRef, "variable reference")
		if err != nil {
			return nil, err
		}
		var posVar string
		if isFor {
			if ok, err := p.consumeKeyword("at"); err != nil {
				return nil, err
			} else if ok {
				pv, err := p.expect(TokVarRef, "position variable")
				if err != nil {
					return nil, err
				}
				posVar = pv.Text
			}
		}
		if isFor {
			if _, err := p.expectKeyword("in"); err != nil {
				return nil, err
			}
		} else {
			if p.cur.Kind != TokColon || p.peek.Kind != TokEquals {
				return nil, expectedFound(p.cur.Span, ":=", p.cur.Text)
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		rhs, err := p.parseExprSingle()
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, Clause{IsFor: isFor, Var: v.Text, PosVar: posVar, Expr: rhs})
		if p.cur.Kind != TokComma {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	return clauses, nil
}

func (p *Parser) parseQuantifiedExpr() (*Node, error) {
	start := p.cur.Span
	isEvery := p.atKeyword("every")
	if err := p.advance(); err != nil {
		return nil, err
	}
	clauses, err := p.parseForLetClauses(true)
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword("satisfies"); err != nil {
		return nil, err
	}
	body, err := p.parseExprSingle()
	if err != nil {
		return nil, err
	}
	kind := ExprQuantified
	n := &Node{Kind: kind, Span: start.Cover(body.Span), Clauses: clauses, Satisfies: body}
	if isEvery {
		n.BinOp = OpAnd // reuse BinOp as the "every vs some" discriminant for lowering
	} else {
		n.BinOp = OpOr
	}
	return n, nil
}

func (p *Parser) parseIfExpr() (*Node, error) {
	start := p.cur.Span
	if err := p.advance(); err != nil {
		return nil, err
	}
	if _, err := p.expect(TokLParen, "("); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokRParen, ")"); err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword("then"); err != nil {
		return nil, err
	}
	thenExpr, err := p.parseExprSingle()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword("else"); err != nil {
		return nil, err
	}
	elseExpr, err := p.parseExprSingle()
	if err != nil {
		return nil, err
	}
	return &Node{Kind: ExprIf, Span: start.Cover(elseExpr.Span), Cond: cond, Then: thenExpr, Else: elseExpr}, nil
}

func (p *Parser) parseOrExpr() (*Node, error) {
	left, err := p.parseAndExpr()
	if err != nil {
		return nil, err
	}
	for p.atKeyword("or") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAndExpr()
		if err != nil {
			return nil, err
		}
		left = &Node{Kind: ExprBinary, Span: left.Span.Cover(right.Span), BinOp: OpOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAndExpr() (*Node, error) {
	left, err := p.parseComparisonExpr()
	if err != nil {
		return nil, err
	}
	for p.atKeyword("and") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseComparisonExpr()
		if err != nil {
			return nil, err
		}
		left = &Node{Kind: ExprBinary, Span: left.Span.Cover(right.Span), BinOp: OpAnd, Left: left, Right: right}
	}
	return left, nil
}

var valueCompOps = map[string]BinaryOp{"eq": OpEq, "ne": OpNe, "lt": OpLt, "le": OpLe, "gt": OpGt, "ge": OpGe}

func (p *Parser) parseComparisonExpr() (*Node, error) {
	left, err := p.parseRangeExpr()
	if err != nil {
		return nil, err
	}
	if p.cur.Kind == TokKeyword {
		if op, ok := valueCompOps[p.cur.Text]; ok {
			if err := p.advance(); err != nil {
				return nil, err
			}
			right, err := p.parseRangeExpr()
			if err != nil {
				return nil, err
			}
			return &Node{Kind: ExprBinary, Span: left.Span.Cover(right.Span), BinOp: op, Left: left, Right: right}, nil
		}
		if p.cur.Text == "is" {
			if err := p.advance(); err != nil {
				return nil, err
			}
			right, err := p.parseRangeExpr()
			if err != nil {
				return nil, err
			}
			return &Node{Kind: ExprBinary, Span: left.Span.Cover(right.Span), BinOp: OpIs, Left: left, Right: right}, nil
		}
	}
	var generalOp *BinaryOp
	switch p.cur.Kind {
	case TokEquals:
		op := OpGeneralEq
		generalOp = &op
	case TokBangEquals:
		op := OpGeneralNe
		generalOp = &op
	case TokLt:
		op := OpGeneralLt
		generalOp = &op
	case TokLe:
		op := OpGeneralLe
		generalOp = &op
	case TokGt:
		op := OpGeneralGt
		generalOp = &op
	case TokGe:
		op := OpGeneralGe
		generalOp = &op
	case TokLtLt:
		op := OpPrecedes
		generalOp = &op
	case TokGtGt:
		op := OpFollows
		generalOp = &op
	}
	if generalOp != nil {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseRangeExpr()
		if err != nil {
			return nil, err
		}
		return &Node{Kind: ExprBinary, Span: left.Span.Cover(right.Span), BinOp: *generalOp, Left: left, Right: right}, nil
	}
	return left, nil
}

func (p *Parser) parseRangeExpr() (*Node, error) {
	left, err := p.parseAdditiveExpr()
	if err != nil {
		return nil, err
	}
	if ok, err := p.consumeKeyword("to"); err != nil {
		return nil, err
	} else if ok {
		right, err := p.parseAdditiveExpr()
		if err != nil {
			return nil, err
		}
		return &Node{Kind: ExprBinary, Span: left.Span.Cover(right.Span), BinOp: OpTo, Left: left, Right: right}, nil
	}
	return left, nil
}

func (p *Parser) parseAdditiveExpr() (*Node, error) {
	left, err := p.parseMultiplicativeExpr()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == TokPlus || p.cur.Kind == TokMinus {
		op := OpAdd
		if p.cur.Kind == TokMinus {
			op = OpSub
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseMultiplicativeExpr()
		if err != nil {
			return nil, err
		}
		left = &Node{Kind: ExprBinary, Span: left.Span.Cover(right.Span), BinOp: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicativeExpr() (*Node, error) {
	left, err := p.parseUnionExpr()
	if err != nil {
		return nil, err
	}
	for {
		var op BinaryOp
		matched := true
		switch {
		case p.cur.Kind == TokStar:
			op = OpMul
		case p.atKeyword("div"):
			op = OpDiv
		case p.atKeyword("idiv"):
			op = OpIDiv
		case p.atKeyword("mod"):
			op = OpMod
		default:
			matched = false
		}
		if !matched {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseUnionExpr()
		if err != nil {
			return nil, err
		}
		left = &Node{Kind: ExprBinary, Span: left.Span.Cover(right.Span), BinOp: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseUnionExpr() (*Node, error) {
	left, err := p.parseIntersectExceptExpr()
	if err != nil {
		return nil, err
	}
	for p.atKeyword("union") || p.cur.Kind == TokBar {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseIntersectExceptExpr()
		if err != nil {
			return nil, err
		}
		left = &Node{Kind: ExprBinary, Span: left.Span.Cover(right.Span), BinOp: OpUnion, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseIntersectExceptExpr() (*Node, error) {
	left, err := p.parseInstanceofExpr()
	if err != nil {
		return nil, err
	}
	for p.atKeyword("intersect") || p.atKeyword("except") {
		op := OpIntersect
		if p.cur.Text == "except" {
			op = OpExcept
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseInstanceofExpr()
		if err != nil {
			return nil, err
		}
		left = &Node{Kind: ExprBinary, Span: left.Span.Cover(right.Span), BinOp: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseInstanceofExpr() (*Node, error) {
	operand, err := p.parseTreatExpr()
	if err != nil {
		return nil, err
	}
	if p.atKeyword("instance") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if _, err := p.expectKeyword("of"); err != nil {
			return nil, err
		}
		st, err := p.parseSequenceType()
		if err != nil {
			return nil, err
		}
		return &Node{Kind: ExprInstanceOf, Span: operand.Span, Operand: operand, TargetType: st}, nil
	}
	return operand, nil
}

func (p *Parser) parseTreatExpr() (*Node, error) {
	operand, err := p.parseCastableExpr()
	if err != nil {
		return nil, err
	}
	if p.atKeyword("treat") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if _, err := p.expectKeyword("as"); err != nil {
			return nil, err
		}
		st, err := p.parseSequenceType()
		if err != nil {
			return nil, err
		}
		return &Node{Kind: ExprTreat, Span: operand.Span, Operand: operand, TargetType: st}, nil
	}
	return operand, nil
}

func (p *Parser) parseCastableExpr() (*Node, error) {
	operand, err := p.parseCastExpr()
	if err != nil {
		return nil, err
	}
	if p.atKeyword("castable") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if _, err := p.expectKeyword("as"); err != nil {
			return nil, err
		}
		st, allowEmpty, err := p.parseSingleType()
		if err != nil {
			return nil, err
		}
		return &Node{Kind: ExprCastable, Span: operand.Span, Operand: operand, TargetType: st, AllowEmpty: allowEmpty}, nil
	}
	return operand, nil
}

func (p *Parser) parseCastExpr() (*Node, error) {
	operand, err := p.parseUnaryExpr()
	if err != nil {
		return nil, err
	}
	if p.atKeyword("cast") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if _, err := p.expectKeyword("as"); err != nil {
			return nil, err
		}
		st, allowEmpty, err := p.parseSingleType()
		if err != nil {
			return nil, err
		}
		if !isAtomicTypeName(st.ItemTypeName) {
			return nil, unknownType(operand.Span, st.ItemTypeName)
		}
		return &Node{Kind: ExprCast, Span: operand.Span, Operand: operand, TargetType: st, AllowEmpty: allowEmpty}, nil
	}
	return operand, nil
}

// parseSingleType parses "xs:type" or "xs:type?" for cast/castable targets.
func (p *Parser) parseSingleType() (*SequenceType, bool, error) {
	name, err := p.parseQNameText()
	if err != nil {
		return nil, false, err
	}
	allowEmpty := false
	if p.cur.Kind == TokQuestion {
		allowEmpty = true
		if err := p.advance(); err != nil {
			return nil, false, err
		}
	}
	return &SequenceType{ItemTypeName: name, Occurrence: OccOne}, allowEmpty, nil
}

func (p *Parser) parseUnaryExpr() (*Node, error) {
	if p.cur.Kind == TokMinus || p.cur.Kind == TokPlus {
		op := OpNeg
		if p.cur.Kind == TokPlus {
			op = OpPos
		}
		start := p.cur.Span
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseUnaryExpr()
		if err != nil {
			return nil, err
		}
		return &Node{Kind: ExprUnary, Span: start.Cover(operand.Span), UnOp: op, Operand: operand}, nil
	}
	return p.parsePathExpr()
}

func (p *Parser) parseQNameText() (string, error) {
	if p.cur.Kind != TokNCName && p.cur.Kind != TokKeyword {
		return "", expectedFound(p.cur.Span, "name", p.cur.Text)
	}
	text := p.cur.Text
	if err := p.advance(); err != nil {
		return "", err
	}
	return text, nil
}

func isAtomicTypeName(name string) bool {
	switch name {
	case "xs:string", "xs:integer", "xs:decimal", "xs:float", "xs:double", "xs:boolean",
		"xs:date", "xs:time", "xs:dateTime", "xs:duration", "xs:yearMonthDuration", "xs:dayTimeDuration",
		"xs:QName", "xs:anyURI", "xs:hexBinary", "xs:base64Binary", "xs:untypedAtomic",
		"xs:byte", "xs:short", "xs:int", "xs:long", "xs:nonNegativeInteger", "xs:positiveInteger",
		"xs:nonPositiveInteger", "xs:negativeInteger", "xs:unsignedByte", "xs:unsignedShort",
		"xs:unsignedInt", "xs:unsignedLong", "xs:normalizedString", "xs:token", "xs:language",
		"xs:Name", "xs:NCName", "xs:NMTOKEN", "xs:ID", "xs:IDREF", "xs:ENTITY", "xs:gYear",
		"xs:gYearMonth", "xs:gMonth", "xs:gMonthDay", "xs:gDay":
		return true
	}
	return false
}

func (p *Parser) strconvInt(text string, sp span.Span) (int64, error) {
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, expectedFound(sp, "integer literal", text)
	}
	return v, nil
}
