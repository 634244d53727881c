package compiler

import (
	"strings"
)

// Fixed reference format: columns 1-6 hold a sequence number, column 7 an
// indicator, and program text runs from column 8 to column 72.
const (
	indicatorCol = 6
	textStartCol = 7
	textEndCol   = 72
)

type sourceLine struct {
	number    int // 1-based physical line
	indicator rune
	text      []rune // columns 8-72
}

// Lexer holds all mutable state for a single scanning pass over src.
type Lexer struct {
	lines []sourceLine
	row   int // index into lines of the line being scanned
	col   int // index into lines[row].text of the next rune
	last  int // number of the last physical line, for EOF
}

// NewLexer splits src into fixed-format lines, dropping comment and blank
// lines up front.
func NewLexer(src string) *Lexer {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	raw := strings.Split(src, "\n")
	l := &Lexer{last: len(raw)}
	for i, s := range raw {
		runes := []rune(s)
		ln := sourceLine{number: i + 1, indicator: ' '}
		if len(runes) > indicatorCol {
			ln.indicator = runes[indicatorCol]
		}
		switch ln.indicator {
		case '*', '/', 'D', 'd':
			continue
		case '\t':
			ln.indicator = ' '
		}
		if len(runes) > textStartCol {
			end := min(len(runes), textEndCol)
			ln.text = runes[textStartCol:end]
		}
		if strings.TrimSpace(string(ln.text)) == "" && ln.indicator == ' ' {
			continue
		}
		l.lines = append(l.lines, ln)
	}
	return l
}

func isBlank(r rune) bool {
	return r == ' ' || r == '\t'
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// isWordChar reports whether r may appear in a data name or number.
func isWordChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || isDigit(r) ||
		r == '-' || r == '+' || r == '#'
}

func isNumber(word string) bool {
	dot := false
	for i, r := range word {
		if r == '.' && !dot && i > 0 && i < len(word)-1 {
			dot = true
			continue
		}
		if !isDigit(r) {
			return false
		}
	}
	return word != ""
}

// skipSeparators moves past blanks and the comma/semicolon separators,
// which only separate when followed by a blank or the end of the line.
func (l *Lexer) skipSeparators(text []rune) {
	for l.col < len(text) {
		c := text[l.col]
		if isBlank(c) {
			l.col++
			continue
		}
		if (c == ',' || c == ';') && (l.col+1 >= len(text) || isBlank(text[l.col+1])) {
			l.col++
			continue
		}
		return
	}
}

// Next returns the next token. After the last token it keeps returning EOF.
func (l *Lexer) Next() (Token, error) {
	for {
		if l.row >= len(l.lines) {
			return Token{Type: EOF, Line: l.last}, nil
		}
		ln := &l.lines[l.row]
		if l.col == 0 && ln.indicator != ' ' && ln.indicator != '-' {
			return Token{}, syntaxErrorf(ln.number, "invalid indicator %q in column 7", ln.indicator)
		}
		l.skipSeparators(ln.text)
		if l.col < len(ln.text) {
			break
		}
		l.row++
		l.col = 0
	}

	ln := &l.lines[l.row]
	ch := ln.text[l.col]
	if ch == '\'' || ch == '"' {
		return l.scanLiteral(ch)
	}
	if tok, ok := l.scanKeyword(); ok {
		return tok, nil
	}
	if isWordChar(ch) {
		return l.scanWord(), nil
	}
	return Token{}, syntaxErrorf(ln.number, "unexpected character %q", ch)
}

// scanKeyword tries the longest keyword table entry that matches at the
// current position. A reserved word must not be followed by a word
// character, so MOVE-IT stays a data name.
func (l *Lexer) scanKeyword() (Token, bool) {
	ln := &l.lines[l.row]
	n := min(LongestKeyword(), len(ln.text)-l.col)
	for ; n > 0; n-- {
		cand := string(ln.text[l.col : l.col+n])
		tt, ok := LookupKeyword(cand)
		if !ok {
			continue
		}
		end := l.col + n
		if !isSymbol(tt) && end < len(ln.text) && isWordChar(ln.text[end]) {
			continue
		}
		l.col = end
		return Token{Type: tt, Lexeme: cand, Line: ln.number}, true
	}
	return Token{}, false
}

// scanWord collects a data name or numeric literal. A "." is only part of
// the word when digits follow it, so the sentence-ending period is never
// folded into a number.
func (l *Lexer) scanWord() Token {
	ln := &l.lines[l.row]
	text := ln.text
	start := l.col
	for l.col < len(text) && isWordChar(text[l.col]) {
		l.col++
	}
	if l.col+1 < len(text) && text[l.col] == '.' && isDigit(text[l.col+1]) &&
		isNumber(string(text[start:l.col])) {
		l.col++
		for l.col < len(text) && isDigit(text[l.col]) {
			l.col++
		}
	}
	word := string(text[start:l.col])
	tt := IDENTIFIER
	if isNumber(word) {
		tt = NUMBER
	}
	return Token{Type: tt, Lexeme: word, Line: ln.number}
}

// scanLiteral collects a quoted literal. A doubled quote stands for one
// quote character. A literal left open at the end of a line resumes after
// the first quote on the following continuation line.
func (l *Lexer) scanLiteral(quote rune) (Token, error) {
	startLine := l.lines[l.row].number
	l.col++ // opening quote
	var sb strings.Builder
	for {
		text := l.lines[l.row].text
		for l.col < len(text) {
			c := text[l.col]
			l.col++
			if c != quote {
				sb.WriteRune(c)
				continue
			}
			if l.col < len(text) && text[l.col] == quote {
				sb.WriteRune(quote)
				l.col++
				continue
			}
			return Token{Type: TEXT, Lexeme: sb.String(), Line: startLine}, nil
		}

		l.row++
		l.col = 0
		if l.row >= len(l.lines) || l.lines[l.row].indicator != '-' {
			return Token{}, syntaxErrorf(startLine, "unterminated literal")
		}
		next := l.lines[l.row]
		idx := strings.IndexRune(string(next.text), quote)
		if idx < 0 {
			return Token{}, syntaxErrorf(next.number, "continuation line must resume the literal with %c", quote)
		}
		l.col = len([]rune(string(next.text)[:idx])) + 1
	}
}

// Lex tokenises src and returns all tokens including the final EOF token.
func Lex(src string) ([]Token, error) {
	l := NewLexer(src)
	var tokens []Token
	for {
		tok, err := l.Next()
		if err != nil {
			return tokens, err
		}
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens, nil
		}
	}
}
