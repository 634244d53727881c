package compiler

// Grammar (sources, expressions and conditions):
//
//	source     = literal | figurative | "FUNCTION" "UPPER-CASE" "(" source ")" | identifier
//	literal    = TEXT | ["+"|"-"] NUMBER | "TRUE" | "FALSE"
//	identifier = name [ "(" expr [ ":" [expr] ] ")" ]
//	expr       = term { ("+"|"-") term }
//	term       = power { ("*"|"/") power }
//	power      = ["+"|"-"] basis { "**" basis }
//	basis      = "(" expr ")" | source
//	condition  = combinable { ("AND"|"OR") combinable }
//	combinable = ["NOT"] ( "TRUE" | "FALSE" | "(" condition ")" | relation | identifier )
//	relation   = expr ["IS"] ["NOT"] relop expr

// parseLiteral returns nil without consuming anything when the next
// tokens do not form a literal.
func (p *Parser) parseLiteral() (*Literal, error) {
	tok := p.peek()
	switch tok.Type {
	case TEXT:
		p.advance()
		return &Literal{Kind: TextLiteral, Value: tok.Lexeme, Line: tok.Line}, nil
	case NUMBER:
		p.advance()
		return &Literal{Kind: NumberLiteral, Value: tok.Lexeme, Line: tok.Line}, nil
	case PLUS, MINUS:
		if p.peekAt(1).Type != NUMBER {
			return nil, nil
		}
		p.advance()
		num := p.advance()
		value := num.Lexeme
		if tok.Type == MINUS {
			value = "-" + value
		}
		return &Literal{Kind: NumberLiteral, Value: value, Line: tok.Line}, nil
	case TRUE, FALSE:
		p.advance()
		return &Literal{Kind: BoolLiteral, Value: tokenNames[tok.Type], Line: tok.Line}, nil
	}
	return nil, nil
}

func (p *Parser) parseFigurative() (*FigurativeConstant, bool) {
	tok := p.peek()
	var kind FigurativeKind
	switch tok.Type {
	case SPACES:
		kind = FigSpaces
	case ZEROS:
		kind = FigZeros
	case HIGH_VALUES:
		kind = FigHighValues
	case LOW_VALUES:
		kind = FigLowValues
	case QUOTES:
		kind = FigQuotes
	default:
		return nil, false
	}
	p.advance()
	return &FigurativeConstant{Kind: kind, Line: tok.Line}, true
}

// startsSource reports whether tok can begin a source operand.
func (p *Parser) startsSource() bool {
	switch p.peek().Type {
	case TEXT, NUMBER, TRUE, FALSE, SPACES, ZEROS, HIGH_VALUES, LOW_VALUES, QUOTES, FUNCTION, IDENTIFIER:
		return true
	case PLUS, MINUS:
		return p.peekAt(1).Type == NUMBER
	}
	return false
}

// parseSource parses one operand; it fails when none is present.
func (p *Parser) parseSource() (Source, error) {
	tok := p.peek()
	if fig, ok := p.parseFigurative(); ok {
		return fig, nil
	}
	lit, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}
	if lit != nil {
		return lit, nil
	}
	switch tok.Type {
	case FUNCTION:
		return p.parseIntrinsic()
	case IDENTIFIER:
		return p.parseIdentifier()
	}
	return nil, p.unexpected(tok)
}

// parseSources parses operands while the next token can start one.
func (p *Parser) parseSources() ([]Source, error) {
	var sources []Source
	for p.startsSource() {
		src, err := p.parseSource()
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}

func (p *Parser) parseIntrinsic() (Source, error) {
	fn := p.advance() // FUNCTION
	name := p.advance()
	if name.Type != UPPER_CASE {
		return nil, notImplemented(name.Line, "FUNCTION "+name.Lexeme)
	}
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	arg, err := p.parseSource()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	return &IntrinsicFunction{Name: tokenNames[UPPER_CASE], Arg: arg, Line: fn.Line}, nil
}

// parseIdentifier parses a data reference. In the procedure division every
// reference is recorded for the analyzer to bind.
func (p *Parser) parseIdentifier() (*Identifier, error) {
	name, err := p.expect(IDENTIFIER)
	if err != nil {
		return nil, err
	}
	id := &Identifier{Name: name.Lexeme, Line: name.Line}
	if p.accept(LPAREN) {
		first, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.accept(COLON) {
			id.Start = first
			if p.peek().Type != RPAREN {
				if id.Length, err = p.parseExpr(); err != nil {
					return nil, err
				}
			}
		} else {
			id.Subscript = first
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
	}
	if p.procedure {
		p.prog.VariableReferences = append(p.prog.VariableReferences, id)
	}
	return id, nil
}

//  Arithmetic expressions

func (p *Parser) parseExpr() (*Expr, error) {
	term, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	expr := &Expr{Terms: []*Term{term}}
	for p.peek().Type == PLUS || p.peek().Type == MINUS {
		op := p.advance().Type
		term, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		expr.Ops = append(expr.Ops, op)
		expr.Terms = append(expr.Terms, term)
	}
	return expr, nil
}

func (p *Parser) parseTerm() (*Term, error) {
	pw, err := p.parsePower()
	if err != nil {
		return nil, err
	}
	term := &Term{Powers: []*Power{pw}}
	for p.peek().Type == STAR || p.peek().Type == SLASH {
		op := p.advance().Type
		pw, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		term.Ops = append(term.Ops, op)
		term.Powers = append(term.Powers, pw)
	}
	return term, nil
}

func (p *Parser) parsePower() (*Power, error) {
	pw := &Power{}
	// A sign directly before a number belongs to the literal.
	if t := p.peek().Type; (t == PLUS || t == MINUS) && p.peekAt(1).Type != NUMBER {
		pw.Sign = p.advance().Type
	}
	b, err := p.parseBasis()
	if err != nil {
		return nil, err
	}
	pw.Bases = append(pw.Bases, b)
	for p.accept(POW) {
		b, err := p.parseBasis()
		if err != nil {
			return nil, err
		}
		pw.Bases = append(pw.Bases, b)
	}
	return pw, nil
}

func (p *Parser) parseBasis() (*Basis, error) {
	if p.accept(LPAREN) {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		return &Basis{Expr: e}, nil
	}
	src, err := p.parseSource()
	if err != nil {
		return nil, err
	}
	return &Basis{Source: src}, nil
}

//  Conditions

// parseCondition parses a chain of combinable conditions. The operator
// between two conditions is recorded on the right-hand one.
func (p *Parser) parseCondition() (Condition, error) {
	first, err := p.parseCombinable()
	if err != nil {
		return nil, err
	}
	if p.peek().Type != AND && p.peek().Type != OR {
		return first, nil
	}
	chain := &CombinedCondition{Parts: []Condition{first}, Modes: []Combinator{CombineNone}}
	for p.peek().Type == AND || p.peek().Type == OR {
		mode := CombineAnd
		if p.advance().Type == OR {
			mode = CombineOr
		}
		next, err := p.parseCombinable()
		if err != nil {
			return nil, err
		}
		chain.Parts = append(chain.Parts, next)
		chain.Modes = append(chain.Modes, mode)
	}
	return chain, nil
}

func (p *Parser) parseCombinable() (Condition, error) {
	not := p.accept(NOT)
	tok := p.peek()

	// TRUE/FALSE on their own are constant conditions; followed by a
	// relational operator they start a relation.
	if (tok.Type == TRUE || tok.Type == FALSE) && !isRelop(p.peekAt(1).Type) {
		p.advance()
		return &BoolCondition{Value: tok.Type == TRUE, Not: not}, nil
	}

	if rel := p.tryRelation(); rel != nil {
		rel.Not = rel.Not != not
		return rel, nil
	}

	if p.accept(LPAREN) {
		inner, err := p.parseCondition()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		if not {
			inner = negate(inner)
		}
		return inner, nil
	}

	if tok.Type == IDENTIFIER {
		id, err := p.parseIdentifier()
		if err != nil {
			return nil, err
		}
		return &IdentifierCondition{Ident: id, Not: not}, nil
	}
	return nil, p.fmtError(tok, "unexpected token %q, expected a condition", tok.Lexeme)
}

// tryRelation parses "expr relop expr". When the tokens do not form a
// relation the cursor is restored and nil is returned.
func (p *Parser) tryRelation() *RelationCondition {
	m := p.mark()
	refs := len(p.prog.VariableReferences)
	restore := func() *RelationCondition {
		p.reset(m)
		p.prog.VariableReferences = p.prog.VariableReferences[:refs]
		return nil
	}

	line := p.peek().Line
	left, err := p.parseExpr()
	if err != nil {
		return restore()
	}
	p.accept(IS)
	not := p.accept(NOT)
	if !isRelop(p.peek().Type) {
		return restore()
	}
	op := p.advance().Type
	right, err := p.parseExpr()
	if err != nil {
		return restore()
	}
	return &RelationCondition{Left: left, Op: op, Right: right, Not: not, Line: line}
}

func isRelop(tt TokenType) bool {
	switch tt {
	case EQUALS, LESS, GREATER, LESS_EQ, GREATER_EQ, NOT_EQ:
		return true
	}
	return false
}

func negate(c Condition) Condition {
	switch c := c.(type) {
	case *BoolCondition:
		c.Not = !c.Not
	case *RelationCondition:
		c.Not = !c.Not
	case *IdentifierCondition:
		c.Not = !c.Not
	case *CombinedCondition:
		c.Not = !c.Not
	}
	return c
}
