package parser

// parsePostfixExpr parses a primary expression followed by any number of
// postfix predicates "[e]" or argument lists "(args)" (dynamic function
// call) — XPath 3.1's unified postfix-expr production.
func (p *Parser) parsePostfixExpr() (*Node, error) {
	base, err := p.parsePrimaryExpr()
	if err != nil {
		return nil, err
	}
	for {
		switch p.cur.Kind {
		case TokLBracket:
			preds, err := p.parsePredicates()
			if err != nil {
				return nil, err
			}
			base = &Node{Kind: ExprFilter, Span: base.Span, Base: base, Predicates: preds}
		case TokLParen:
			args, arity, err := p.parseArgumentList()
			if err != nil {
				return nil, err
			}
			base = &Node{Kind: ExprFunctionCall, Span: base.Span, Callee: base, Args: args, Arity: arity}
		case TokArrow:
			if err := p.advance(); err != nil {
				return nil, err
			}
			callee, err := p.parsePrimaryExpr()
			if err != nil {
				return nil, err
			}
			var args []*Node
			var arity int
			if callee.Kind == ExprFunctionCall && callee.Callee == nil {
				// a static function name has already consumed its own
				// parenthesized argument list
				args, arity = callee.Args, callee.Arity
			} else if args, arity, err = p.parseArgumentList(); err != nil {
				return nil, err
			}
			full := append([]*Node{base}, args...)
			base = &Node{Kind: ExprArrowCall, Span: base.Span, Target: base, Callee: callee, Args: full, Arity: arity + 1}
		default:
			return base, nil
		}
	}
}

func (p *Parser) parseArgumentList() ([]*Node, int, error) {
	if _, err := p.expect(TokLParen, "("); err != nil {
		return nil, 0, err
	}
	var args []*Node
	for p.cur.Kind != TokRParen {
		a, err := p.parseExprSingle()
		if err != nil {
			return nil, 0, err
		}
		args = append(args, a)
		if p.cur.Kind == TokComma {
			if err := p.advance(); err != nil {
				return nil, 0, err
			}
			continue
		}
		break
	}
	if _, err := p.expect(TokRParen, ")"); err != nil {
		return nil, 0, err
	}
	return args, len(args), nil
}

func (p *Parser) parsePrimaryExpr() (*Node, error) {
	start := p.cur.Span
	switch p.cur.Kind {
	case TokInteger:
		text := p.cur.Text
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Node{Kind: ExprIntegerLit, Span: start, IntegerText: text}, nil
	case TokDecimal:
		text := p.cur.Text
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Node{Kind: ExprDecimalLit, Span: start, DecimalText: text}, nil
	case TokDouble:
		text := p.cur.Text
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Node{Kind: ExprDoubleLit, Span: start, DoubleText: text}, nil
	case TokString:
		text := p.cur.Text
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Node{Kind: ExprStringLit, Span: start, StringText: text}, nil
	case TokVarRef:
		name := p.cur.Text
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Node{Kind: ExprVarRef, Span: start, VarName: name}, nil
	case TokLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.cur.Kind == TokRParen {
			if err := p.advance(); err != nil {
				return nil, err
			}
			return &Node{Kind: ExprSequence, Span: start, Items: nil}, nil
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokRParen, ")"); err != nil {
			return nil, err
		}
		return e, nil
	case TokLBracket:
		return p.parseSquareArray()
	case TokDot:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Node{Kind: ExprContextItem, Span: start}, nil
	case TokKeyword:
		switch p.cur.Text {
		case "function":
			return p.parseInlineFunctionOrNamedRef()
		case "map":
			if p.peek.Kind == TokLBrace {
				return p.parseMapConstructor()
			}
		case "array":
			if p.peek.Kind == TokLBrace {
				return p.parseCurlyArray()
			}
		}
		// fall through: reserved keyword used where an expression was
		// expected — not itself a function call here, so surface as a
		// generic parse failure with the Reserved category.
		return nil, reserved(start, p.cur.Text)
	case TokNCName:
		return p.parseFunctionCallOrNamedRef()
	}
	return nil, expectedFound(start, "expression", p.cur.Text)
}

// parseFunctionCallOrNamedRef parses "prefix:local(args)" or "local(args)".
// The named-function-reference form "prefix:local#N" is not recognised (the
// lexer has no "#" token), so no ExprNamedFunctionRef node is produced.
func (p *Parser) parseFunctionCallOrNamedRef() (*Node, error) {
	start := p.cur.Span
	qname := p.cur.Text
	if err := p.advance(); err != nil {
		return nil, err
	}
	prefix, local := splitQName(qname)

	if p.cur.Kind == TokLParen {
		args, arity, err := p.parseArgumentList()
		if err != nil {
			return nil, err
		}
		return &Node{Kind: ExprFunctionCall, Span: start, FuncPrefix: prefix, FuncLocal: local, Args: args, Arity: arity}, nil
	}

	return nil, expectedFound(start, "function call", qname)
}

func splitQName(qname string) (prefix, local string) {
	for i := 0; i < len(qname); i++ {
		if qname[i] == ':' {
			return qname[:i], qname[i+1:]
		}
	}
	return "", qname
}

func (p *Parser) parseInlineFunctionOrNamedRef() (*Node, error) {
	start := p.cur.Span
	if err := p.advance(); err != nil { // "function"
		return nil, err
	}
	if _, err := p.expect(TokLParen, "("); err != nil {
		return nil, err
	}
	var params []Param
	for p.cur.Kind != TokRParen {
		v, err := p.expect(TokVarRef, "parameter")
		if err != nil {
			return nil, err
		}
		param := Param{Name: v.Text}
		if ok, err := p.consumeKeyword("as"); err != nil {
			return nil, err
		} else if ok {
			st, err := p.parseSequenceType()
			if err != nil {
				return nil, err
			}
			param.Type = st
		}
		params = append(params, param)
		if p.cur.Kind == TokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if _, err := p.expect(TokRParen, ")"); err != nil {
		return nil, err
	}
	var returnType *SequenceType
	if ok, err := p.consumeKeyword("as"); err != nil {
		return nil, err
	} else if ok {
		st, err := p.parseSequenceType()
		if err != nil {
			return nil, err
		}
		returnType = st
	}
	if _, err := p.expect(TokLBrace, "{"); err != nil {
		return nil, err
	}
	var body *Node
	if p.cur.Kind != TokRBrace {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		body = e
	} else {
		body = &Node{Kind: ExprSequence, Span: p.cur.Span}
	}
	end, err := p.expect(TokRBrace, "}")
	if err != nil {
		return nil, err
	}
	return &Node{Kind: ExprInlineFunction, Span: start.Cover(end.Span), Params: params, ReturnType: returnType, Body: body}, nil
}

func (p *Parser) parseMapConstructor() (*Node, error) {
	start := p.cur.Span
	if err := p.advance(); err != nil { // "map"
		return nil, err
	}
	if _, err := p.expect(TokLBrace, "{"); err != nil {
		return nil, err
	}
	var keys, values []*Node
	for p.cur.Kind != TokRBrace {
		k, err := p.parseExprSingle()
		if err != nil {
			return nil, err
		}
		if p.cur.Kind != TokColon {
			return nil, expectedFound(p.cur.Span, ":", p.cur.Text)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		v, err := p.parseExprSingle()
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
		values = append(values, v)
		if p.cur.Kind == TokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	end, err := p.expect(TokRBrace, "}")
	if err != nil {
		return nil, err
	}
	return &Node{Kind: ExprMapConstructor, Span: start.Cover(end.Span), MapKeys: keys, MapValues: values}, nil
}

func (p *Parser) parseCurlyArray() (*Node, error) {
	start := p.cur.Span
	if err := p.advance(); err != nil { // "array"
		return nil, err
	}
	if _, err := p.expect(TokLBrace, "{"); err != nil {
		return nil, err
	}
	var members []*Node
	if p.cur.Kind != TokRBrace {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		members = append(members, e)
	}
	end, err := p.expect(TokRBrace, "}")
	if err != nil {
		return nil, err
	}
	return &Node{Kind: ExprArrayConstructorCurly, Span: start.Cover(end.Span), ArrayMembers: members}, nil
}

func (p *Parser) parseSquareArray() (*Node, error) {
	start := p.cur.Span
	if err := p.advance(); err != nil { // "["
		return nil, err
	}
	var members []*Node
	for p.cur.Kind != TokRBracket {
		m, err := p.parseExprSingle()
		if err != nil {
			return nil, err
		}
		members = append(members, m)
		if p.cur.Kind == TokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	end, err := p.expect(TokRBracket, "]")
	if err != nil {
		return nil, err
	}
	return &Node{Kind: ExprArrayConstructorSquare, Span: start.Cover(end.Span), ArrayMembers: members}, nil
}

// parseSequenceType parses the Empty | Item(ItemType, Occurrence) sum type
// used by "as", "instance of", and "treat as".
func (p *Parser) parseSequenceType() (*SequenceType, error) {
	if p.atKeyword("empty-sequence") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if _, err := p.expect(TokLParen, "("); err != nil {
			return nil, err
		}
		if _, err := p.expect(TokRParen, ")"); err != nil {
			return nil, err
		}
		return &SequenceType{IsEmptySequence: true}, nil
	}
	name, err := p.parseItemTypeName()
	if err != nil {
		return nil, err
	}
	occ := OccOne
	switch p.cur.Kind {
	case TokQuestion:
		occ = OccOptional
		if err := p.advance(); err != nil {
			return nil, err
		}
	case TokStar:
		occ = OccZeroOrMore
		if err := p.advance(); err != nil {
			return nil, err
		}
	case TokPlus:
		occ = OccOneOrMore
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	return &SequenceType{ItemTypeName: name, Occurrence: occ}, nil
}

// parseItemTypeName accepts an atomic type QName or one of the kind-test /
// item() / map(*) / array(*) forms, returning its canonical textual name.
func (p *Parser) parseItemTypeName() (string, error) {
	if p.cur.Kind == TokKeyword {
		switch p.cur.Text {
		case "item":
			if err := p.advance(); err != nil {
				return "", err
			}
			if _, err := p.expect(TokLParen, "("); err != nil {
				return "", err
			}
			if _, err := p.expect(TokRParen, ")"); err != nil {
				return "", err
			}
			return "item()", nil
		case "node", "text", "comment", "processing-instruction", "document-node", "element", "attribute", "schema-element", "schema-attribute":
			kind := kindTestKeywords[p.cur.Text]
			test, err := p.parseKindTest(kind)
			if err != nil {
				return "", err
			}
			return kindTestName(test), nil
		case "map", "array":
			kw := p.cur.Text
			if err := p.advance(); err != nil {
				return "", err
			}
			if _, err := p.expect(TokLParen, "("); err != nil {
				return "", err
			}
			if p.cur.Kind == TokStar {
				if err := p.advance(); err != nil {
					return "", err
				}
			}
			if _, err := p.expect(TokRParen, ")"); err != nil {
				return "", err
			}
			return kw + "(*)", nil
		}
	}
	name, err := p.parseQNameText()
	if err != nil {
		return "", err
	}
	return name, nil
}

func kindTestName(t NodeTest) string {
	switch t.Kind {
	case KindText:
		return "text()"
	case KindComment:
		return "comment()"
	case KindProcessingInstruction:
		return "processing-instruction()"
	case KindDocument:
		return "document-node()"
	case KindElement:
		return "element()"
	case KindAttribute:
		return "attribute()"
	case KindSchemaElement:
		return "schema-element()"
	case KindSchemaAttribute:
		return "schema-attribute()"
	default:
		return "node()"
	}
}
