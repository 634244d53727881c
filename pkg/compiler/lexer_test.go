package compiler

import (
	"reflect"
	"strings"
	"testing"
)

func TestLex(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Token
	}{
		{
			name:  "move statement",
			input: "MOVE 10 TO WS-A.",
			want: []Token{
				{MOVE, "MOVE", 1}, {NUMBER, "10", 1}, {TO, "TO", 1},
				{IDENTIFIER, "WS-A", 1}, {DOT, ".", 1},
			},
		},
		{
			name:  "lower case keywords keep their spelling",
			input: "move x to y.",
			want: []Token{
				{MOVE, "move", 1}, {IDENTIFIER, "x", 1}, {TO, "to", 1},
				{IDENTIFIER, "y", 1}, {DOT, ".", 1},
			},
		},
		{
			name:  "keyword prefix inside a data name",
			input: "MOVE-IT END-IFX DISPLAY-AREA",
			want: []Token{
				{IDENTIFIER, "MOVE-IT", 1}, {IDENTIFIER, "END-IFX", 1}, {IDENTIFIER, "DISPLAY-AREA", 1},
			},
		},
		{
			name:  "hyphenated keywords",
			input: "END-IF END-PERFORM PROGRAM-ID WORKING-STORAGE",
			want: []Token{
				{END_IF, "END-IF", 1}, {END_PERFORM, "END-PERFORM", 1},
				{PROGRAM_ID, "PROGRAM-ID", 1}, {WORKING_STORAGE, "WORKING-STORAGE", 1},
			},
		},
		{
			name:  "aliases",
			input: "PIC ZEROES SPACE THROUGH CORR",
			want: []Token{
				{PICTURE, "PIC", 1}, {ZEROS, "ZEROES", 1}, {SPACES, "SPACE", 1},
				{THRU, "THROUGH", 1}, {CORRESPONDING, "CORR", 1},
			},
		},
		{
			name:  "picture string",
			input: "PIC S9(4)V99.",
			want: []Token{
				{PICTURE, "PIC", 1}, {IDENTIFIER, "S9", 1}, {LPAREN, "(", 1}, {NUMBER, "4", 1},
				{RPAREN, ")", 1}, {IDENTIFIER, "V99", 1}, {DOT, ".", 1},
			},
		},
		{
			name:  "doubled quote",
			input: "DISPLAY 'IT''S' \"SAY \"\"HI\"\"\"",
			want: []Token{
				{DISPLAY, "DISPLAY", 1}, {TEXT, "IT'S", 1}, {TEXT, `SAY "HI"`, 1},
			},
		},
		{
			name:  "operators and decimal numbers",
			input: "A >= 1.5. B ** 2 <> -3",
			want: []Token{
				{IDENTIFIER, "A", 1}, {GREATER_EQ, ">=", 1}, {NUMBER, "1.5", 1}, {DOT, ".", 1},
				{IDENTIFIER, "B", 1}, {POW, "**", 1}, {NUMBER, "2", 1}, {NOT_EQ, "<>", 1},
				{MINUS, "-", 1}, {NUMBER, "3", 1},
			},
		},
		{
			name:  "comma and semicolon separators",
			input: "ADD 1, 2; 3 TO X",
			want: []Token{
				{ADD, "ADD", 1}, {NUMBER, "1", 1}, {NUMBER, "2", 1}, {NUMBER, "3", 1},
				{TO, "TO", 1}, {IDENTIFIER, "X", 1},
			},
		},
		{
			name:  "reference modification",
			input: "WS-NAME(1:3)",
			want: []Token{
				{IDENTIFIER, "WS-NAME", 1}, {LPAREN, "(", 1}, {NUMBER, "1", 1}, {COLON, ":", 1},
				{NUMBER, "3", 1}, {RPAREN, ")", 1},
			},
		},
		{
			name:  "hash in a name",
			input: "WS#1",
			want:  []Token{{IDENTIFIER, "WS#1", 1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Lex("       " + tt.input)
			if err != nil {
				t.Fatalf("Lex: %v", err)
			}
			want := append(tt.want, Token{Type: EOF, Line: 1})
			if !reflect.DeepEqual(got, want) {
				t.Errorf("Lex(%q)\n got: %v\nwant: %v", tt.input, got, want)
			}
		})
	}
}

func TestLex_FixedFormat(t *testing.T) {
	src := fixed(
		"DISPLAY 'A'.",
		"*A COMMENT WITH 'AN OPEN QUOTE",
		"/PAGE EJECT",
	) + "      DDEBUG LINE\n" + fixed("", "DISPLAY 'B'.")
	got, err := Lex(src)
	if err != nil {
		t.Fatal(err)
	}
	want := []Token{
		{DISPLAY, "DISPLAY", 1}, {TEXT, "A", 1}, {DOT, ".", 1},
		{DISPLAY, "DISPLAY", 6}, {TEXT, "B", 6}, {DOT, ".", 6},
		{EOF, "", 7},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got  %v\nwant %v", got, want)
	}
}

func TestLex_SequenceAndIdentificationAreas(t *testing.T) {
	line := "000100 DISPLAY 'A'."
	line += strings.Repeat(" ", textEndCol-len(line)) + "PROG0001"
	got, err := Lex(line)
	if err != nil {
		t.Fatal(err)
	}
	want := []Token{{DISPLAY, "DISPLAY", 1}, {TEXT, "A", 1}, {DOT, ".", 1}, {EOF, "", 1}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got  %v\nwant %v", got, want)
	}
}

func TestLex_Continuation(t *testing.T) {
	src := fixed(
		"DISPLAY 'HELLO, ",
		"-    'WORLD'.",
	)
	got, err := Lex(src)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 4 {
		t.Fatalf("got %d tokens: %v", len(got), got)
	}
	if got[1].Type != TEXT || got[1].Lexeme != "HELLO, WORLD" || got[1].Line != 1 {
		t.Errorf("continued literal = %v", got[1])
	}
	if got[2].Type != DOT || got[2].Line != 2 {
		t.Errorf("period = %v", got[2])
	}
}

func TestLex_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		line    int
		wantMsg string
	}{
		{"unterminated", fixed("DISPLAY 'OOPS"), 1, "unterminated literal"},
		{"bad character", fixed("MOVE @ TO X."), 1, "unexpected character '@'"},
		{"bad indicator", fixed("DISPLAY 'A'.") + "      X DISPLAY 'B'.\n", 2, "invalid indicator 'X' in column 7"},
		{"continuation without quote", fixed("DISPLAY 'AB", "-    CD."), 2, "continuation line must resume the literal with '"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Lex(tt.src)
			ce, ok := AsCompileError(err)
			if !ok {
				t.Fatalf("expected a CompileError, got %v", err)
			}
			if ce.Kind != SyntaxError || ce.Line != tt.line || ce.Msg != tt.wantMsg {
				t.Errorf("got %s (line %d, %q), want line %d, %q", ce.Kind, ce.Line, ce.Msg, tt.line, tt.wantMsg)
			}
		})
	}
}

func TestLexer_NextAfterEOF(t *testing.T) {
	l := NewLexer("       STOP RUN.")
	for i := 0; i < 3; i++ {
		if _, err := l.Next(); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 2; i++ {
		tok, err := l.Next()
		if err != nil || tok.Type != EOF {
			t.Errorf("Next after the end = %v, %v; want EOF", tok, err)
		}
	}
}

func TestLookupKeyword(t *testing.T) {
	tests := []struct {
		word string
		want TokenType
		ok   bool
	}{
		{"program-id", PROGRAM_ID, true},
		{"PIC", PICTURE, true},
		{"High-Value", HIGH_VALUES, true},
		{"<=", LESS_EQ, true},
		{"WS-NAME", 0, false},
	}
	for _, tt := range tests {
		got, ok := LookupKeyword(tt.word)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("LookupKeyword(%q) = %v, %v; want %v, %v", tt.word, got, ok, tt.want, tt.ok)
		}
	}
}

func TestKeywordTable(t *testing.T) {
	for tt := keywordStart + 1; tt < keywordEnd; tt++ {
		name := tt.String()
		if len(name) > LongestKeyword() {
			t.Errorf("%s is longer than LongestKeyword() = %d", name, LongestKeyword())
		}
		if got, ok := LookupKeyword(name); !ok || got != tt {
			t.Errorf("LookupKeyword(%q) = %v, %v; want %v", name, got, ok, int(tt))
		}
		if !tt.IsKeyword() {
			t.Errorf("%s.IsKeyword() = false", name)
		}
	}
	if LongestKeyword() < len("WORKING-STORAGE") {
		t.Errorf("LongestKeyword() = %d", LongestKeyword())
	}
	for _, tt := range []TokenType{EOF, IDENTIFIER, DOT, GREATER_EQ} {
		if tt.IsKeyword() {
			t.Errorf("%s.IsKeyword() = true", tt)
		}
	}
}

func TestTokenType_String(t *testing.T) {
	tests := map[TokenType]string{
		EOF:        "EOF",
		IDENTIFIER: "IDENTIFIER",
		END_IF:     "END-IF",
		UPPER_CASE: "UPPER-CASE",
		NOT_EQ:     "<>",
		9999:       "TokenType(9999)",
	}
	for tt, want := range tests {
		if got := tt.String(); got != want {
			t.Errorf("TokenType(%d).String() = %q, want %q", int(tt), got, want)
		}
	}
}
