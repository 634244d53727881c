package compiler

// Grammar (procedure division statements):
//
//	statements = { command ["."] }
//	command    = display | accept | string | perform | if | move | add | subtract
//	           | multiply | divide | set | invoke | exit | stop | open | close | read | write
//
// Nested statement lists (IF branches, AT END, SIZE ERROR) stop at a period,
// which then closes the enclosing sentence.

func isVerb(tt TokenType) bool {
	return tt >= DISPLAY && tt <= WRITE
}

// parseStatements parses commands while the next token is a verb. With
// periods set, a period after each command is consumed.
func (p *Parser) parseStatements(periods bool) ([]*Sentence, error) {
	var out []*Sentence
	for isVerb(p.peek().Type) {
		line := p.peek().Line
		cmd, err := p.parseCommand()
		if err != nil {
			return nil, err
		}
		out = append(out, &Sentence{Command: cmd, Line: line})
		if periods {
			p.accept(DOT)
		}
	}
	return out, nil
}

func (p *Parser) parseCommand() (Command, error) {
	tok := p.advance()
	switch tok.Type {
	case DISPLAY:
		return p.parseDisplay(tok)
	case ACCEPT:
		id, err := p.parseIdentifier()
		if err != nil {
			return nil, err
		}
		return &AcceptStatement{Target: id, Line: tok.Line}, nil
	case STRING:
		return p.parseString(tok)
	case PERFORM:
		return p.parsePerform(tok)
	case IF:
		return p.parseIf(tok)
	case MOVE:
		return p.parseMove(tok)
	case ADD:
		return p.parseAdd(tok)
	case SUBTRACT:
		return p.parseSubtract(tok)
	case MULTIPLY:
		return p.parseMultiply(tok)
	case DIVIDE:
		return p.parseDivide(tok)
	case SET:
		return p.parseSet(tok)
	case INVOKE:
		return p.parseInvoke(tok)
	case EXIT:
		return &ExitStatement{Program: p.accept(PROGRAM), Line: tok.Line}, nil
	case STOP:
		if _, err := p.expect(RUN); err != nil {
			return nil, err
		}
		return &StopStatement{Line: tok.Line}, nil
	case OPEN:
		return p.parseOpen(tok)
	case CLOSE:
		return p.parseClose(tok)
	case READ:
		return p.parseRead(tok)
	case WRITE:
		return p.parseWrite(tok)
	}
	return nil, p.unexpected(tok)
}

func (p *Parser) parseDisplay(tok Token) (Command, error) {
	sources, err := p.parseSources()
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, p.fmtError(p.peek(), "DISPLAY needs at least one operand")
	}
	stmt := &DisplayStatement{Sources: sources, Line: tok.Line}
	if p.peek().Type == NO || (p.peek().Type == WITH && p.peekAt(1).Type == NO) {
		p.accept(WITH)
		p.advance()
		if _, err := p.expect(ADVANCING); err != nil {
			return nil, err
		}
		stmt.NoAdvancing = true
	}
	return stmt, nil
}

func (p *Parser) parseString(tok Token) (Command, error) {
	sources, err := p.parseSources()
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, p.fmtError(p.peek(), "STRING needs at least one operand")
	}
	stmt := &StringStatement{Sources: sources, Line: tok.Line}
	if _, err := p.expect(DELIMITED); err != nil {
		return nil, err
	}
	p.accept(BY)
	if !p.accept(SIZE) {
		if stmt.Delimiter, err = p.parseSource(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(INTO); err != nil {
		return nil, err
	}
	if stmt.Into, err = p.parseIdentifier(); err != nil {
		return nil, err
	}
	if p.peek().Type == POINTER || (p.peek().Type == WITH && p.peekAt(1).Type == POINTER) {
		p.accept(WITH)
		p.advance()
		if stmt.Pointer, err = p.parseIdentifier(); err != nil {
			return nil, err
		}
	}
	p.accept(END_STRING)
	return stmt, nil
}

func (p *Parser) parsePerform(tok Token) (Command, error) {
	stmt := &PerformStatement{Line: tok.Line}
	switch next := p.peek(); next.Type {
	case UNTIL, VARYING:
		stmt.Inline = true
	case IDENTIFIER, NUMBER:
		p.advance()
		stmt.Paragraph = next.Lexeme
		if p.accept(THRU) {
			last := p.advance()
			if last.Type != IDENTIFIER && last.Type != NUMBER {
				return nil, p.fmtError(last, "unexpected token %q, expected a paragraph name", last.Lexeme)
			}
			stmt.Thru = last.Lexeme
		}
	default:
		return nil, p.fmtError(next, "unexpected token %q after PERFORM", next.Lexeme)
	}

	if p.accept(VARYING) {
		v, err := p.parseVarying()
		if err != nil {
			return nil, err
		}
		stmt.Varying = v
		if p.peek().Type != UNTIL {
			return nil, p.fmtError(p.peek(), "PERFORM VARYING needs an UNTIL condition")
		}
	}
	if p.accept(UNTIL) {
		cond, err := p.parseCondition()
		if err != nil {
			return nil, err
		}
		stmt.Until = cond
	}

	if stmt.Inline {
		body, err := p.parseStatements(true)
		if err != nil {
			return nil, err
		}
		stmt.Body = body
		if _, err := p.expect(END_PERFORM); err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

func (p *Parser) parseVarying() (*Varying, error) {
	counter, err := p.parseIdentifier()
	if err != nil {
		return nil, err
	}
	v := &Varying{Counter: counter}
	if _, err := p.expect(FROM); err != nil {
		return nil, err
	}
	if v.From, err = p.parseSource(); err != nil {
		return nil, err
	}
	if _, err := p.expect(BY); err != nil {
		return nil, err
	}
	if v.By, err = p.parseSource(); err != nil {
		return nil, err
	}
	return v, nil
}

func (p *Parser) parseIf(tok Token) (Command, error) {
	cond, err := p.parseCondition()
	if err != nil {
		return nil, err
	}
	stmt := &IfStatement{Cond: cond, Line: tok.Line}
	p.accept(THEN)
	if stmt.Then, err = p.parseStatements(false); err != nil {
		return nil, err
	}
	if p.accept(ELSE) {
		if stmt.Else, err = p.parseStatements(false); err != nil {
			return nil, err
		}
	}
	p.accept(END_IF)
	return stmt, nil
}

func (p *Parser) parseMove(tok Token) (Command, error) {
	stmt := &MoveStatement{Line: tok.Line}
	stmt.Corresponding = p.accept(CORRESPONDING)
	src, err := p.parseSource()
	if err != nil {
		return nil, err
	}
	stmt.Source = src
	if _, err := p.expect(TO); err != nil {
		return nil, err
	}
	if stmt.Targets, err = p.parseTargets(nil); err != nil {
		return nil, err
	}
	return stmt, nil
}

// parseTargets parses one or more receiving identifiers, each optionally
// followed by ROUNDED.
func (p *Parser) parseTargets(clauses *ArithmeticClauses) ([]*Identifier, error) {
	if p.peek().Type != IDENTIFIER {
		return nil, p.fmtError(p.peek(), "unexpected token %q, expected a data name", p.peek().Lexeme)
	}
	var ids []*Identifier
	for p.peek().Type == IDENTIFIER {
		id, err := p.parseIdentifier()
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
		if p.accept(ROUNDED) && clauses != nil {
			clauses.Rounded = true
		}
	}
	return ids, nil
}

// parseArithmeticTail parses the GIVING, ROUNDED and SIZE ERROR phrases and
// the scope terminator shared by the arithmetic verbs. divide enables the
// REMAINDER phrase.
func (p *Parser) parseArithmeticTail(c *ArithmeticClauses, end TokenType, remainder **Identifier) error {
	var err error
	if p.accept(GIVING) {
		if c.Giving, err = p.parseTargets(c); err != nil {
			return err
		}
	}
	if remainder != nil && p.accept(REMAINDER) {
		if *remainder, err = p.parseIdentifier(); err != nil {
			return err
		}
	}
	if p.accept(ROUNDED) {
		c.Rounded = true
	}
	if p.atSizeError(0) {
		p.skipSizeErrorWords()
		if c.SizeError, err = p.parseStatements(false); err != nil {
			return err
		}
	}
	if p.peek().Type == NOT && p.atSizeError(1) {
		p.advance()
		p.skipSizeErrorWords()
		if c.NotSizeError, err = p.parseStatements(false); err != nil {
			return err
		}
	}
	p.accept(end)
	return nil
}

// atSizeError reports whether "[ON] SIZE ERROR" starts at offset.
func (p *Parser) atSizeError(offset int) bool {
	if p.peekAt(offset).Type == ON {
		offset++
	}
	return p.peekAt(offset).Type == SIZE && p.peekAt(offset+1).Type == ERROR
}

func (p *Parser) skipSizeErrorWords() {
	p.accept(ON)
	p.advance() // SIZE
	p.advance() // ERROR
}

func (p *Parser) parseOperands() ([]Source, error) {
	sources, err := p.parseSources()
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, p.fmtError(p.peek(), "unexpected token %q, expected an operand", p.peek().Lexeme)
	}
	return sources, nil
}

func (p *Parser) parseAdd(tok Token) (Command, error) {
	stmt := &AddStatement{Line: tok.Line}
	stmt.Corresponding = p.accept(CORRESPONDING)
	var err error
	if stmt.Operands, err = p.parseOperands(); err != nil {
		return nil, err
	}
	if p.accept(TO) {
		if stmt.To, err = p.parseTargets(&stmt.ArithmeticClauses); err != nil {
			return nil, err
		}
	}
	if err := p.parseArithmeticTail(&stmt.ArithmeticClauses, END_ADD, nil); err != nil {
		return nil, err
	}
	if len(stmt.To) == 0 && len(stmt.Giving) == 0 {
		return nil, p.fmtError(tok, "ADD needs a TO or GIVING phrase")
	}
	return stmt, nil
}

func (p *Parser) parseSubtract(tok Token) (Command, error) {
	stmt := &SubtractStatement{Line: tok.Line}
	stmt.Corresponding = p.accept(CORRESPONDING)
	var err error
	if stmt.Operands, err = p.parseOperands(); err != nil {
		return nil, err
	}
	if _, err := p.expect(FROM); err != nil {
		return nil, err
	}
	if stmt.From, err = p.parseTargets(&stmt.ArithmeticClauses); err != nil {
		return nil, err
	}
	if err := p.parseArithmeticTail(&stmt.ArithmeticClauses, END_SUBTRACT, nil); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) parseMultiply(tok Token) (Command, error) {
	stmt := &MultiplyStatement{Line: tok.Line}
	stmt.Corresponding = p.accept(CORRESPONDING)
	var err error
	if stmt.Operand, err = p.parseSource(); err != nil {
		return nil, err
	}
	if _, err := p.expect(BY); err != nil {
		return nil, err
	}
	if stmt.By, err = p.parseTargets(&stmt.ArithmeticClauses); err != nil {
		return nil, err
	}
	if err := p.parseArithmeticTail(&stmt.ArithmeticClauses, END_MULTIPLY, nil); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) parseDivide(tok Token) (Command, error) {
	stmt := &DivideStatement{Line: tok.Line}
	var err error
	if stmt.Operand, err = p.parseSource(); err != nil {
		return nil, err
	}
	switch next := p.advance(); next.Type {
	case INTO:
		stmt.Into = true
	case BY:
	default:
		return nil, p.fmtError(next, "unexpected token %q, expected INTO or BY", next.Lexeme)
	}
	if stmt.Targets, err = p.parseTargets(&stmt.ArithmeticClauses); err != nil {
		return nil, err
	}
	if err := p.parseArithmeticTail(&stmt.ArithmeticClauses, END_DIVIDE, &stmt.Remainder); err != nil {
		return nil, err
	}
	if !stmt.Into && len(stmt.Giving) == 0 {
		return nil, p.fmtError(tok, "DIVIDE BY needs a GIVING phrase")
	}
	return stmt, nil
}

func (p *Parser) parseSet(tok Token) (Command, error) {
	target, err := p.parseIdentifier()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TO); err != nil {
		return nil, err
	}
	value, err := p.parseSource()
	if err != nil {
		return nil, err
	}
	return &SetStatement{Target: target, Value: value, Line: tok.Line}, nil
}

func (p *Parser) parseInvoke(tok Token) (Command, error) {
	target, err := p.parseIdentifier()
	if err != nil {
		return nil, err
	}
	method, err := p.expect(TEXT)
	if err != nil {
		return nil, err
	}
	stmt := &InvokeStatement{Target: target, Method: method.Lexeme, Line: tok.Line}
	if p.accept(USING) {
		byRef := false
		for {
			if p.accept(BY) {
				switch mode := p.advance(); mode.Type {
				case REFERENCE:
					byRef = true
				case VALUE:
					byRef = false
				default:
					return nil, p.fmtError(mode, "unexpected token %q, expected VALUE or REFERENCE", mode.Lexeme)
				}
			}
			if !p.startsSource() {
				break
			}
			src, err := p.parseSource()
			if err != nil {
				return nil, err
			}
			stmt.Using = append(stmt.Using, InvokeArgument{Source: src, ByReference: byRef})
		}
	}
	if p.accept(RETURNING) {
		if stmt.Returning, err = p.parseIdentifier(); err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

func (p *Parser) parseOpen(tok Token) (Command, error) {
	stmt := &OpenStatement{Line: tok.Line}
	for {
		var mode OpenMode
		switch p.peek().Type {
		case INPUT:
			mode = OpenInput
		case OUTPUT:
			mode = OpenOutput
		case I_O:
			mode = OpenInputOutput
		case EXTEND:
			mode = OpenExtend
		default:
			if len(stmt.Files) == 0 {
				return nil, p.fmtError(p.peek(), "OPEN needs INPUT, OUTPUT, I-O or EXTEND")
			}
			return stmt, nil
		}
		p.advance()
		names, err := p.parseFileNames()
		if err != nil {
			return nil, err
		}
		for _, n := range names {
			stmt.Files = append(stmt.Files, OpenFile{Mode: mode, Name: n})
		}
	}
}

func (p *Parser) parseFileNames() ([]string, error) {
	name, err := p.expect(IDENTIFIER)
	if err != nil {
		return nil, err
	}
	names := []string{name.Lexeme}
	for p.peek().Type == IDENTIFIER {
		names = append(names, p.advance().Lexeme)
	}
	return names, nil
}

func (p *Parser) parseClose(tok Token) (Command, error) {
	names, err := p.parseFileNames()
	if err != nil {
		return nil, err
	}
	if p.peek().Type == LOCK || (p.peek().Type == WITH && p.peekAt(1).Type == LOCK) {
		p.accept(WITH)
		p.advance()
	}
	return &CloseStatement{Names: names, Line: tok.Line}, nil
}

func (p *Parser) parseRead(tok Token) (Command, error) {
	name, err := p.expect(IDENTIFIER)
	if err != nil {
		return nil, err
	}
	stmt := &ReadStatement{Name: name.Lexeme, Line: tok.Line}
	p.accept(NEXT)
	p.accept(RECORD)
	if p.accept(INTO) {
		if stmt.Into, err = p.parseIdentifier(); err != nil {
			return nil, err
		}
	}
	if p.peek().Type == END || (p.peek().Type == AT && p.peekAt(1).Type == END) {
		p.accept(AT)
		p.advance()
		if stmt.AtEnd, err = p.parseStatements(false); err != nil {
			return nil, err
		}
	}
	if p.peek().Type == NOT {
		p.advance()
		p.accept(AT)
		if _, err := p.expect(END); err != nil {
			return nil, err
		}
		if stmt.NotAtEnd, err = p.parseStatements(false); err != nil {
			return nil, err
		}
	}
	p.accept(END_READ)
	return stmt, nil
}

func (p *Parser) parseWrite(tok Token) (Command, error) {
	record, err := p.parseIdentifier()
	if err != nil {
		return nil, err
	}
	stmt := &WriteStatement{Record: record, Line: tok.Line}
	if p.accept(FROM) {
		if stmt.From, err = p.parseIdentifier(); err != nil {
			return nil, err
		}
	}
	// Carriage control is accepted and ignored; every WRITE ends the line.
	if p.accept(AFTER) || p.accept(BEFORE) {
		p.accept(ADVANCING)
		if !p.accept(PAGE) {
			if _, err := p.parseSource(); err != nil {
				return nil, err
			}
			if !p.accept(LINES) {
				p.accept(LINE)
			}
		}
	}
	p.accept(END_WRITE)
	return stmt, nil
}
