package compiler

import (
	"strings"
)

// Parser consumes the flat token slice produced by the Lexer and builds an
// AST. Backtracking uses mark/reset on the token cursor.
//
// Grammar (divisions):
//
//	program      = { division } [ "END" "PROGRAM" name "." ] EOF
//	division     = "IDENTIFICATION" "DIVISION" "." { "PROGRAM-ID" "." name ["."] | "AUTHOR" "." text }
//	             | "ENVIRONMENT" "DIVISION" "." { configuration | input-output }
//	             | "DATA" "DIVISION" "." { "WORKING-STORAGE" "SECTION" "." {dde} | "FILE" "SECTION" "." {fd} }
//	             | "PROCEDURE" "DIVISION" "." { paragraph }
//	configuration = "CONFIGURATION" "SECTION" "." { "SOURCE-COMPUTER" "." text | "OBJECT-COMPUTER" "." text
//	             | "REPOSITORY" "." { "CLASS" name "AS" literal ["."] } | "ATTRIBUTES" literal "." }
//	input-output = "INPUT-OUTPUT" "SECTION" "." "FILE-CONTROL" "." { select }
//	select       = "SELECT" ["OPTIONAL"] name "ASSIGN" ["TO"] source
//	               [ "ORGANIZATION" ["IS"] ] ["LINE"] ["SEQUENTIAL"] "."
//	fd           = "FD" name "." { dde }
//	paragraph    = name [ "WITH" "ATTRIBUTES" literal ] "." { sentence }
type Parser struct {
	tokens      []Token
	pos         int
	sourceLines []string
	prog        *Program
	procedure   bool // inside the procedure division; identifiers are recorded
}

func NewParser(tokens []Token, rawSource string) *Parser {
	return &Parser{tokens: tokens, sourceLines: strings.Split(rawSource, "\n")}
}

// fmtError builds a syntax error carrying the source line where tok appears.
func (p *Parser) fmtError(tok Token, format string, args ...any) error {
	err := syntaxErrorf(tok.Line, format, args...).(*CompileError)
	if idx := tok.Line - 1; idx >= 0 && idx < len(p.sourceLines) {
		err.Snippet = strings.TrimSpace(p.sourceLines[idx])
	}
	return err
}

func (p *Parser) unexpected(tok Token) error {
	if tok.Type == EOF {
		return p.fmtError(tok, "unexpected end of input")
	}
	return p.fmtError(tok, "unexpected token %q", tok.Lexeme)
}

// peek returns the current token without consuming it.
func (p *Parser) peek() Token {
	return p.peekAt(0)
}

// peekAt returns the token at the given offset from the current position.
func (p *Parser) peekAt(offset int) Token {
	if p.pos+offset >= len(p.tokens) {
		line := 0
		if n := len(p.tokens); n > 0 {
			line = p.tokens[n-1].Line
		}
		return Token{Type: EOF, Line: line}
	}
	return p.tokens[p.pos+offset]
}

// advance consumes and returns the current token.
func (p *Parser) advance() Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

// accept consumes the current token if it matches tt.
func (p *Parser) accept(tt TokenType) bool {
	if p.peek().Type == tt {
		p.advance()
		return true
	}
	return false
}

// expect consumes the current token if it matches tt, otherwise returns an error.
func (p *Parser) expect(tt TokenType) (Token, error) {
	tok := p.peek()
	if tok.Type != tt {
		if tok.Type == EOF {
			return tok, p.fmtError(tok, "unexpected end of input, expected %s", tt)
		}
		return tok, p.fmtError(tok, "unexpected token %q, expected %s", tok.Lexeme, tt)
	}
	p.advance()
	return tok, nil
}

// mark returns the cursor position for a later reset.
func (p *Parser) mark() int { return p.pos }

// reset rewinds the cursor to a position returned by mark.
func (p *Parser) reset(m int) { p.pos = m }

// skipLine consumes every token on the line of the current token. It backs
// free-text entries such as AUTHOR, which are not tokenised meaningfully.
func (p *Parser) skipLine() string {
	line := p.peek().Line
	var words []string
	for {
		tok := p.peek()
		if tok.Type == EOF || tok.Line != line || p.atDivisionHeader() {
			break
		}
		p.advance()
		if tok.Type != DOT {
			words = append(words, tok.Lexeme)
		}
	}
	return strings.Join(words, " ")
}

func (p *Parser) atDivisionHeader() bool {
	switch p.peek().Type {
	case IDENTIFICATION, ID, ENVIRONMENT, DATA, PROCEDURE:
		return p.peekAt(1).Type == DIVISION
	}
	return false
}

// Parse builds the program tree from tokens.
func Parse(tokens []Token, rawSource string) (*Program, error) {
	return NewParser(tokens, rawSource).parseProgram()
}

func (p *Parser) parseProgram() (*Program, error) {
	p.prog = &Program{}
	prog := p.prog
	for {
		tok := p.peek()
		switch tok.Type {
		case EOF:
			return prog, nil
		case IDENTIFICATION, ID:
			div, err := p.parseIdentification()
			if err != nil {
				return nil, err
			}
			prog.Identification = div
			prog.Name = div.ProgramID
			prog.Divisions = append(prog.Divisions, div)
		case ENVIRONMENT:
			div, err := p.parseEnvironment()
			if err != nil {
				return nil, err
			}
			prog.Environment = div
			prog.Divisions = append(prog.Divisions, div)
		case DATA:
			div, err := p.parseData()
			if err != nil {
				return nil, err
			}
			prog.Data = div
			prog.Divisions = append(prog.Divisions, div)
		case PROCEDURE:
			div, err := p.parseProcedure()
			if err != nil {
				return nil, err
			}
			prog.Procedure = div
			prog.Divisions = append(prog.Divisions, div)
		case END:
			p.advance()
			if _, err := p.expect(PROGRAM); err != nil {
				return nil, err
			}
			if name := p.peek(); name.Type == IDENTIFIER || name.Type == TEXT {
				p.advance()
			}
			p.accept(DOT)
			if tok := p.peek(); tok.Type != EOF {
				return nil, p.fmtError(tok, "unexpected token %q after END PROGRAM", tok.Lexeme)
			}
			return prog, nil
		default:
			return nil, p.fmtError(tok, "unexpected token %q, expected a division header", tok.Lexeme)
		}
	}
}

func (p *Parser) divisionHeader() error {
	p.advance()
	if _, err := p.expect(DIVISION); err != nil {
		return err
	}
	_, err := p.expect(DOT)
	return err
}

func (p *Parser) sectionHeader() error {
	p.advance()
	if _, err := p.expect(SECTION); err != nil {
		return err
	}
	_, err := p.expect(DOT)
	return err
}

func (p *Parser) parseIdentification() (*IdentificationDivision, error) {
	div := &IdentificationDivision{Line: p.peek().Line}
	if err := p.divisionHeader(); err != nil {
		return nil, err
	}
	for {
		switch p.peek().Type {
		case PROGRAM_ID:
			p.advance()
			if _, err := p.expect(DOT); err != nil {
				return nil, err
			}
			name := p.advance()
			if name.Type != IDENTIFIER && name.Type != TEXT {
				return nil, p.fmtError(name, "expected program name, got %q", name.Lexeme)
			}
			div.ProgramID = name.Lexeme
			p.accept(DOT)
		case AUTHOR:
			p.advance()
			if _, err := p.expect(DOT); err != nil {
				return nil, err
			}
			div.Author = p.skipLine()
		default:
			return div, nil
		}
	}
}

func (p *Parser) parseEnvironment() (*EnvironmentDivision, error) {
	div := &EnvironmentDivision{}
	if err := p.divisionHeader(); err != nil {
		return nil, err
	}
	for {
		switch p.peek().Type {
		case CONFIGURATION:
			if div.Configuration != nil {
				return nil, p.fmtError(p.peek(), "duplicate CONFIGURATION SECTION")
			}
			conf, err := p.parseConfiguration()
			if err != nil {
				return nil, err
			}
			div.Configuration = conf
		case INPUT_OUTPUT:
			if div.InputOutput != nil {
				return nil, p.fmtError(p.peek(), "duplicate INPUT-OUTPUT SECTION")
			}
			io, err := p.parseInputOutput()
			if err != nil {
				return nil, err
			}
			div.InputOutput = io
		default:
			return div, nil
		}
	}
}

func (p *Parser) parseConfiguration() (*Configuration, error) {
	conf := &Configuration{}
	if err := p.sectionHeader(); err != nil {
		return nil, err
	}
	for {
		switch p.peek().Type {
		case SOURCE_COMPUTER, OBJECT_COMPUTER:
			which := p.advance().Type
			if _, err := p.expect(DOT); err != nil {
				return nil, err
			}
			text := p.skipLine()
			if which == SOURCE_COMPUTER {
				conf.SourceComputer = text
			} else {
				conf.ObjectComputer = text
			}
		case REPOSITORY:
			p.advance()
			if _, err := p.expect(DOT); err != nil {
				return nil, err
			}
			for p.peek().Type == CLASS {
				class, err := p.parseClassDefinition()
				if err != nil {
					return nil, err
				}
				conf.Repository = append(conf.Repository, class)
			}
		case ATTRIBUTES:
			tok := p.advance()
			lit, err := p.expect(TEXT)
			if err != nil {
				return nil, err
			}
			conf.Attributes = lit.Lexeme
			conf.AttributesLine = tok.Line
			if _, err := p.expect(DOT); err != nil {
				return nil, err
			}
		default:
			return conf, nil
		}
	}
}

func (p *Parser) parseClassDefinition() (*ClassDefinition, error) {
	p.advance() // CLASS
	name, err := p.expect(IDENTIFIER)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(AS); err != nil {
		return nil, err
	}
	netName, err := p.expect(TEXT)
	if err != nil {
		return nil, err
	}
	p.accept(DOT)
	return &ClassDefinition{Name: name.Lexeme, NetName: netName.Lexeme, Line: name.Line}, nil
}

func (p *Parser) parseInputOutput() (*InputOutput, error) {
	io := &InputOutput{}
	if err := p.sectionHeader(); err != nil {
		return nil, err
	}
	for {
		switch tok := p.peek(); tok.Type {
		case FILE_CONTROL:
			p.advance()
			if _, err := p.expect(DOT); err != nil {
				return nil, err
			}
			for p.peek().Type == SELECT {
				entry, err := p.parseSelect()
				if err != nil {
					return nil, err
				}
				io.FileControl = append(io.FileControl, entry)
			}
		case I_O_CONTROL:
			return nil, notImplemented(tok.Line, "I-O-CONTROL")
		default:
			return io, nil
		}
	}
}

func (p *Parser) parseSelect() (*FileControlEntry, error) {
	p.advance() // SELECT
	entry := &FileControlEntry{}
	entry.Optional = p.accept(OPTIONAL)
	name, err := p.expect(IDENTIFIER)
	if err != nil {
		return nil, err
	}
	entry.Name = name.Lexeme
	entry.Line = name.Line
	if _, err := p.expect(ASSIGN); err != nil {
		return nil, err
	}
	p.accept(TO)
	switch tok := p.advance(); tok.Type {
	case TEXT:
		entry.Assign = tok.Lexeme
	case IDENTIFIER:
		entry.Assign = tok.Lexeme
		entry.AssignIsName = true
	default:
		return nil, p.fmtError(tok, "unexpected token %q, expected a file name", tok.Lexeme)
	}
	if p.accept(ORGANIZATION) {
		p.accept(IS)
	}
	if p.accept(LINE) {
		entry.Organization = "LINE SEQUENTIAL"
		if _, err := p.expect(SEQUENTIAL); err != nil {
			return nil, err
		}
	} else if p.accept(SEQUENTIAL) {
		entry.Organization = "SEQUENTIAL"
	}
	if _, err := p.expect(DOT); err != nil {
		return nil, err
	}
	return entry, nil
}

func (p *Parser) parseProcedure() (*ProcedureDivision, error) {
	div := &ProcedureDivision{}
	if err := p.divisionHeader(); err != nil {
		return nil, err
	}
	p.procedure = true
	defer func() { p.procedure = false }()

	for {
		tok := p.peek()
		if tok.Type != IDENTIFIER && tok.Type != NUMBER {
			if tok.Type == EOF || tok.Type == END || p.atDivisionHeader() {
				return div, nil
			}
			if isVerb(tok.Type) && len(div.Paragraphs) == 0 {
				return nil, p.fmtError(tok, "statement %q outside of a paragraph", tok.Lexeme)
			}
			return nil, p.unexpected(tok)
		}
		para, err := p.parseParagraph()
		if err != nil {
			return nil, err
		}
		div.Paragraphs = append(div.Paragraphs, para)
	}
}

func (p *Parser) parseParagraph() (*Paragraph, error) {
	name := p.advance()
	para := &Paragraph{Name: name.Lexeme, Line: name.Line}
	if p.accept(WITH) {
		if _, err := p.expect(ATTRIBUTES); err != nil {
			return nil, err
		}
		lit, err := p.expect(TEXT)
		if err != nil {
			return nil, err
		}
		para.Attributes = lit.Lexeme
	}
	if _, err := p.expect(DOT); err != nil {
		return nil, err
	}
	sentences, err := p.parseStatements(true)
	if err != nil {
		return nil, err
	}
	para.Sentences = sentences
	// Anything other than a new paragraph here is a stray statement.
	tok := p.peek()
	if tok.Type == IDENTIFIER && p.peekAt(1).Type != DOT && p.peekAt(1).Type != WITH {
		return nil, p.fmtError(tok, "unexpected statement %q. Perhaps you forgot to begin a new paragraph here", tok.Lexeme)
	}
	return para, nil
}
