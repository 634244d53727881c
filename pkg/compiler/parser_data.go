package compiler

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Grammar (data division):
//
//	dde     = level [ "FILLER" | name ] { clause } "."
//	clause  = "OBJECT" "REFERENCE" class | "BINARY" | "COMP"
//	        | "OCCURS" n ["TIMES"] | "REDEFINES" name
//	        | "VALUE" ["IS"] ( figurative | literal )
//	        | "PIC" picture ["COMP"]
func (p *Parser) parseData() (*DataDivision, error) {
	div := &DataDivision{}
	if err := p.divisionHeader(); err != nil {
		return nil, err
	}
	for {
		switch tok := p.peek(); tok.Type {
		case WORKING_STORAGE:
			if err := p.sectionHeader(); err != nil {
				return nil, err
			}
			entries, err := p.parseDataDescriptions()
			if err != nil {
				return nil, err
			}
			div.WorkingStorage = append(div.WorkingStorage, entries...)
		case FILE:
			if err := p.sectionHeader(); err != nil {
				return nil, err
			}
			for {
				if p.peek().Type == SD {
					return nil, notImplemented(p.peek().Line, "SD")
				}
				if p.peek().Type != FD {
					break
				}
				fd, err := p.parseFileDescription()
				if err != nil {
					return nil, err
				}
				div.Files = append(div.Files, fd)
			}
		default:
			return div, nil
		}
	}
}

func (p *Parser) parseFileDescription() (*FileDescription, error) {
	p.advance() // FD
	name, err := p.expect(IDENTIFIER)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(DOT); err != nil {
		return nil, err
	}
	fd := &FileDescription{Name: name.Lexeme, Line: name.Line}
	records, err := p.parseDataDescriptions()
	if err != nil {
		return nil, err
	}
	fd.Records = records
	return fd, nil
}

// parseDataDescriptions parses entries while the next token is a level
// number.
func (p *Parser) parseDataDescriptions() ([]*DataDescription, error) {
	var entries []*DataDescription
	for p.peek().Type == NUMBER {
		dde, err := p.parseDataDescription()
		if err != nil {
			return nil, err
		}
		entries = append(entries, dde)
	}
	return entries, nil
}

func (p *Parser) parseDataDescription() (*DataDescription, error) {
	levelTok := p.advance()
	level, err := strconv.Atoi(levelTok.Lexeme)
	if err != nil || level < 1 || (level > 49 && level != 66 && level != 77 && level != 88) {
		return nil, p.fmtError(levelTok, "invalid level number %q", levelTok.Lexeme)
	}
	dde := &DataDescription{Level: level, Line: levelTok.Line}
	if level == 88 {
		dde.Type = TypeBoolean
	}

	switch tok := p.peek(); tok.Type {
	case FILLER:
		p.advance()
		dde.Anonymous = true
	case IDENTIFIER:
		p.advance()
		dde.Name = tok.Lexeme
	default:
		dde.Anonymous = true
	}

	for !p.accept(DOT) {
		tok := p.peek()
		switch tok.Type {
		case OBJECT:
			p.advance()
			if p.peek().Type == STATIC {
				return nil, notImplemented(tok.Line, "OBJECT STATIC")
			}
			if _, err := p.expect(REFERENCE); err != nil {
				return nil, err
			}
			class, err := p.expect(IDENTIFIER)
			if err != nil {
				return nil, err
			}
			dde.ObjectClass = class.Lexeme
		case BINARY, COMPUTATIONAL:
			p.advance()
			dde.Comp = true
		case OCCURS:
			p.advance()
			n, err := p.expect(NUMBER)
			if err != nil {
				return nil, err
			}
			if dde.Occurs, err = strconv.Atoi(n.Lexeme); err != nil {
				return nil, p.fmtError(n, "OCCURS count %s is out of range", n.Lexeme)
			}
			if dde.Occurs < 1 {
				return nil, p.fmtError(n, "OCCURS count must be positive")
			}
			p.accept(TIMES)
		case REDEFINES:
			p.advance()
			target, err := p.expect(IDENTIFIER)
			if err != nil {
				return nil, err
			}
			dde.Redefines = target.Lexeme
		case VALUE:
			p.advance()
			p.accept(IS)
			value, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			dde.Value = value
		case PICTURE:
			p.advance()
			p.accept(IS)
			if err := p.parsePicture(dde); err != nil {
				return nil, err
			}
		default:
			return nil, p.unexpected(tok)
		}
	}

	dde.IsGroup = !dde.HasPic && dde.ObjectClass == "" && level != 88
	return dde, nil
}

// parseValue parses the operand of a VALUE clause.
func (p *Parser) parseValue() (Source, error) {
	tok := p.peek()
	if fig, ok := p.parseFigurative(); ok {
		return fig, nil
	}
	lit, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}
	if lit == nil {
		return nil, p.fmtError(tok, "unexpected token %q, expected a literal", tok.Lexeme)
	}
	return lit, nil
}

// parsePicture gathers the picture string, which the lexer splits at
// parentheses, and derives the item's type and size from it.
func (p *Parser) parsePicture(dde *DataDescription) error {
	start := p.peek()
	var sb strings.Builder
	for {
		tok := p.peek()
		if tok.Type != IDENTIFIER && tok.Type != NUMBER && tok.Type != LPAREN && tok.Type != RPAREN {
			break
		}
		p.advance()
		sb.WriteString(tok.Lexeme)
	}
	pic := sb.String()
	if pic == "" {
		return p.unexpected(start)
	}
	typ, size, err := ParsePicture(pic)
	if err != nil {
		return p.fmtError(start, "%v", err)
	}
	dde.Picture = pic
	dde.HasPic = true
	dde.Type = typ
	dde.Size = size
	if p.accept(COMPUTATIONAL) {
		dde.Comp = true
	}
	return nil
}

// ParsePicture returns the storage type and character size described by a
// picture string such as X(10), 999 or S9(4)V99.
func ParsePicture(pic string) (DataType, int, error) {
	pic = strings.ToUpper(pic)
	typ := TypeInteger
	size := 0
	for i := 0; i < len(pic); i++ {
		c := pic[i]
		count := 1
		if i+1 < len(pic) && pic[i+1] == '(' {
			end := strings.IndexByte(pic[i:], ')')
			if end < 0 {
				return TypeUnknown, 0, errors.Errorf("unclosed repeat count in picture %s", pic)
			}
			n, err := strconv.Atoi(pic[i+2 : i+end])
			if err != nil || n < 1 {
				return TypeUnknown, 0, errors.Errorf("invalid repeat count in picture %s", pic)
			}
			count = n
			i += end
		}
		switch c {
		case 'X', 'A':
			typ = TypeString
			size += count
		case '9', 'Z', '*', '.', ',', '+', '-', 'B', '0', '/':
			size += count
		case 'S', 'V', 'P':
			// sign and implied decimal point take no character position
		default:
			return TypeUnknown, 0, errors.Errorf("invalid character %q in picture %s", c, pic)
		}
	}
	return typ, size, nil
}
