package parser

var axisKeywords = map[string]Axis{
	"child": AxisChild, "descendant": AxisDescendant, "attribute": AxisAttribute,
	"self": AxisSelf, "descendant-or-self": AxisDescendantOrSelf,
	"following-sibling": AxisFollowingSibling, "following": AxisFollowing,
	"parent": AxisParent, "ancestor": AxisAncestor,
	"preceding-sibling": AxisPrecedingSibling, "preceding": AxisPreceding,
	"ancestor-or-self": AxisAncestorOrSelf, "namespace": AxisNamespace,
}

var kindTestKeywords = map[string]KindTestKind{
	"node": KindAny, "text": KindText, "comment": KindComment,
	"processing-instruction": KindProcessingInstruction, "document-node": KindDocument,
	"element": KindElement, "attribute": KindAttribute,
	"schema-element": KindSchemaElement, "schema-attribute": KindSchemaAttribute,
}

// parsePathExpr parses a (possibly absolute) sequence of steps joined by
// "/" or "//", falling back to a single postfix/primary expression when no
// step separator is present (so "1 + 2" never pays path-parsing cost).
func (p *Parser) parsePathExpr() (*Node, error) {
	start := p.cur.Span

	leadingSlashSlash := false
	leadingSlash := false
	if p.cur.Kind == TokSlashSlash {
		leadingSlashSlash = true
		if err := p.advance(); err != nil {
			return nil, err
		}
	} else if p.cur.Kind == TokSlash {
		leadingSlash = true
		if err := p.advance(); err != nil {
			return nil, err
		}
	}

	var steps []*Node
	var slashSlash []bool

	atStepStart := leadingSlash || leadingSlashSlash || p.startsStep()
	if leadingSlash && !p.startsStep() {
		// bare "/" selects the document root; represent as a single
		// ancestor-or-self::document-node() step on the absolute path.
		steps = append(steps, &Node{Kind: ExprStep, Span: start, Axis: AxisAncestorOrSelf, Test: NodeTest{Which: TestKindTest, Kind: KindDocument}})
		return &Node{Kind: ExprPath, Span: start, Steps: steps, StepSlashSlash: slashSlash, Absolute: true}, nil
	}

	if atStepStart {
		first, err := p.parseStepOrPostfix()
		if err != nil {
			return nil, err
		}
		if leadingSlashSlash {
			steps = append(steps, &Node{Kind: ExprStep, Span: start, Axis: AxisDescendantOrSelf, Test: NodeTest{Which: TestKindTest, Kind: KindAny}})
			slashSlash = append(slashSlash, false)
		}
		steps = append(steps, first)
	} else {
		return p.parsePostfixExpr()
	}

	for p.cur.Kind == TokSlash || p.cur.Kind == TokSlashSlash {
		isDoubleSlash := p.cur.Kind == TokSlashSlash
		if err := p.advance(); err != nil {
			return nil, err
		}
		if isDoubleSlash {
			steps = append(steps, &Node{Kind: ExprStep, Span: p.cur.Span, Axis: AxisDescendantOrSelf, Test: NodeTest{Which: TestKindTest, Kind: KindAny}})
			slashSlash = append(slashSlash, false)
		}
		next, err := p.parseStepOrPostfix()
		if err != nil {
			return nil, err
		}
		slashSlash = append(slashSlash, isDoubleSlash)
		steps = append(steps, next)
	}

	if len(steps) == 1 && !leadingSlash && !leadingSlashSlash {
		return steps[0], nil
	}
	end := steps[len(steps)-1].Span
	return &Node{Kind: ExprPath, Span: start.Cover(end), Steps: steps, StepSlashSlash: slashSlash, Absolute: leadingSlash || leadingSlashSlash}, nil
}

// startsStep reports whether the current token can begin an axis step
// (used to disambiguate "/" path continuation from a trailing primary).
func (p *Parser) startsStep() bool {
	switch p.cur.Kind {
	case TokAt, TokDot, TokDotDot, TokStar:
		return true
	case TokNCName:
		// a name directly followed by "(" is a function call, not a name test
		return p.peek.Kind != TokLParen
	case TokKeyword:
		_, isAxis := axisKeywords[p.cur.Text]
		_, isKindTest := kindTestKeywords[p.cur.Text]
		return isAxis || isKindTest
	}
	return false
}

func (p *Parser) parseStepOrPostfix() (*Node, error) {
	if p.startsStep() {
		return p.parseAxisStep()
	}
	return p.parsePostfixExpr()
}

func (p *Parser) parseAxisStep() (*Node, error) {
	start := p.cur.Span

	if p.cur.Kind == TokDot {
		if err := p.advance(); err != nil {
			return nil, err
		}
		preds, err := p.parsePredicates()
		if err != nil {
			return nil, err
		}
		return &Node{Kind: ExprStep, Span: start, Axis: AxisSelf, Test: NodeTest{Which: TestKindTest, Kind: KindAny}, Predicates: preds}, nil
	}
	if p.cur.Kind == TokDotDot {
		if err := p.advance(); err != nil {
			return nil, err
		}
		preds, err := p.parsePredicates()
		if err != nil {
			return nil, err
		}
		return &Node{Kind: ExprStep, Span: start, Axis: AxisParent, Test: NodeTest{Which: TestKindTest, Kind: KindAny}, Predicates: preds}, nil
	}

	axis := AxisChild
	if p.cur.Kind == TokAt {
		axis = AxisAttribute
		if err := p.advance(); err != nil {
			return nil, err
		}
	} else if p.cur.Kind == TokKeyword {
		if a, ok := axisKeywords[p.cur.Text]; ok && p.peek.Kind == TokColonColon {
			axis = a
			if err := p.advance(); err != nil {
				return nil, err
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	} else if p.cur.Kind == TokNCName && p.peek.Kind == TokColonColon {
		if a, ok := axisKeywords[p.cur.Text]; ok {
			axis = a
		} else {
			return nil, expectedFound(p.cur.Span, "axis name", p.cur.Text)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}

	test, err := p.parseNodeTest()
	if err != nil {
		return nil, err
	}
	preds, err := p.parsePredicates()
	if err != nil {
		return nil, err
	}
	return &Node{Kind: ExprStep, Span: start.Cover(p.cur.Span), Axis: axis, Test: test, Predicates: preds}, nil
}

func (p *Parser) parseNodeTest() (NodeTest, error) {
	if p.cur.Kind == TokKeyword {
		if kind, ok := kindTestKeywords[p.cur.Text]; ok && p.peek.Kind == TokLParen {
			return p.parseKindTest(kind)
		}
	}
	if p.cur.Kind == TokStar {
		if err := p.advance(); err != nil {
			return NodeTest{}, err
		}
		return NodeTest{Which: TestWildcardAny}, nil
	}
	if p.cur.Kind != TokNCName {
		return NodeTest{}, expectedFound(p.cur.Span, "node test", p.cur.Text)
	}
	text := p.cur.Text
	if err := p.advance(); err != nil {
		return NodeTest{}, err
	}
	if len(text) >= 2 && text[0] == '*' && text[1] == ':' {
		return NodeTest{Which: TestWildcardLocal, Local: text[2:]}, nil
	}
	for i := 0; i < len(text); i++ {
		if text[i] == ':' {
			prefix, local := text[:i], text[i+1:]
			if local == "*" {
				uri, ok := p.sc.Namespaces.Resolve(prefix)
				if !ok {
					return NodeTest{}, unknownPrefix(p.cur.Span, prefix)
				}
				return NodeTest{Which: TestWildcardPrefix, Prefix: prefix, URI: uri}, nil
			}
			uri, ok := p.sc.Namespaces.Resolve(prefix)
			if !ok {
				return NodeTest{}, unknownPrefix(p.cur.Span, prefix)
			}
			return NodeTest{Which: TestName, Prefix: prefix, URI: uri, Local: local}, nil
		}
	}
	return NodeTest{Which: TestName, Local: text}, nil
}

func (p *Parser) parseKindTest(kind KindTestKind) (NodeTest, error) {
	if err := p.advance(); err != nil { // keyword
		return NodeTest{}, err
	}
	if _, err := p.expect(TokLParen, "("); err != nil {
		return NodeTest{}, err
	}
	test := NodeTest{Which: TestKindTest, Kind: kind}
	if kind == KindProcessingInstruction && p.cur.Kind == TokString {
		test.PIName = p.cur.Text
		if err := p.advance(); err != nil {
			return NodeTest{}, err
		}
	} else if (kind == KindElement || kind == KindAttribute) && p.cur.Kind != TokRParen {
		nameSpan := p.cur.Span
		name, err := p.parseQNameText()
		if err != nil {
			return NodeTest{}, err
		}
		prefix, local := splitQName(name)
		test.Local = local
		if prefix != "" {
			uri, ok := p.sc.Namespaces.Resolve(prefix)
			if !ok {
				return NodeTest{}, unknownPrefix(nameSpan, prefix)
			}
			test.URI = uri
		}
	}
	if _, err := p.expect(TokRParen, ")"); err != nil {
		return NodeTest{}, err
	}
	return test, nil
}

func (p *Parser) parsePredicates() ([]*Node, error) {
	var preds []*Node
	for p.cur.Kind == TokLBracket {
		if err := p.advance(); err != nil {
			return nil, err
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokRBracket, "]"); err != nil {
			return nil, err
		}
		preds = append(preds, e)
	}
	return preds, nil
}
