package compiler

import (
	"strings"
	"testing"

	"github.com/kr/pretty"
)

func parse(t *testing.T, src string) *Program {
	t.Helper()
	tokens, err := Lex(src)
	if err != nil {
		t.Fatalf("Lex: %v", err)
	}
	prog, err := Parse(tokens, src)
	if err != nil {
		t.Fatalf("Parse: %v\nSource:\n%s", err, src)
	}
	return prog
}

func parseError(t *testing.T, src string) *CompileError {
	t.Helper()
	tokens, err := Lex(src)
	if err != nil {
		t.Fatalf("Lex: %v", err)
	}
	_, err = Parse(tokens, src)
	ce, ok := AsCompileError(err)
	if !ok {
		t.Fatalf("expected a CompileError, got %v\nSource:\n%s", err, src)
	}
	return ce
}

// command parses stmt as the only sentence of paragraph MAIN.
func command(t *testing.T, stmt string) Command {
	t.Helper()
	prog := parse(t, program(nil, "MAIN.", "    "+stmt+"."))
	sentences := prog.Procedure.Paragraphs[0].Sentences
	if len(sentences) != 1 {
		t.Fatalf("%q parsed into %d sentences", stmt, len(sentences))
	}
	return sentences[0].Command
}

func TestParse_Move(t *testing.T) {
	got := command(t, "MOVE 10 TO A B")
	want := &MoveStatement{
		Source:  &Literal{Kind: NumberLiteral, Value: "10", Line: 7},
		Targets: []*Identifier{{Name: "A", Line: 7}, {Name: "B", Line: 7}},
		Line:    7,
	}
	if diff := pretty.Diff(got, want); len(diff) > 0 {
		t.Errorf("MOVE parsed differently:\n%s", strings.Join(diff, "\n"))
	}
}

func TestParse_Statements(t *testing.T) {
	tests := []struct {
		stmt string
		want string
	}{
		{"DISPLAY 'A' X NO ADVANCING", `DISPLAY ["A" X]`},
		{"ACCEPT X", "ACCEPT X"},
		{"STRING 'AB' X DELIMITED BY SIZE INTO Y", `STRING ["AB" X] INTO Y`},
		{"ADD 1 2 TO A B", "ADD [1 2] TO [A B] GIVING []"},
		{"ADD A TO B GIVING C", "ADD [A] TO [B] GIVING [C]"},
		{"SUBTRACT 1 FROM B", "SUBTRACT [1] FROM [B] GIVING []"},
		{"MULTIPLY 2 BY B", "MULTIPLY 2 BY [B] GIVING []"},
		{"DIVIDE 4 INTO B", "DIVIDE 4 INTO [B] GIVING []"},
		{"DIVIDE A BY B GIVING C REMAINDER D", "DIVIDE A BY [B] GIVING [C]"},
		{"PERFORM P1 THRU P3", "PERFORM P1 THRU P3"},
		{"PERFORM P1 UNTIL X = 1", "PERFORM P1 UNTIL X = 1"},
		{"PERFORM VARYING I FROM 1 BY 1 UNTIL I > 3 DISPLAY I END-PERFORM", "PERFORM VARYING I FROM 1 BY 1 UNTIL I > 3"},
		{"SET FLAG TO TRUE", "SET FLAG TO TRUE"},
		{"MOVE FUNCTION UPPER-CASE(N) TO X", "MOVE FUNCTION UPPER-CASE(N) TO [X]"},
		{"MOVE N(2:3) TO X", "MOVE N(2:3) TO [X]"},
		{"MOVE N(2:) TO X", "MOVE N(2:) TO [X]"},
		{"MOVE T(I + 1) TO X", "MOVE T(I + 1) TO [X]"},
		{"MOVE -5 TO X", "MOVE -5 TO [X]"},
		{"MOVE SPACES TO X", "MOVE SPACES TO [X]"},
		{"IF A = 1 OR B = 2 AND NOT C = 3 DISPLAY 'X' END-IF", "IF (A = 1 OR B = 2 AND NOT (C = 3))"},
		{"IF A + 1 > B * 2 DISPLAY 'X'", "IF A + 1 > B * 2"},
		{"IF NOT (A = 1 OR B = 2) DISPLAY 'X'", "IF NOT (A = 1 OR B = 2)"},
		{"IF A IS NOT = 1 DISPLAY 'X'", "IF NOT (A = 1)"},
		{"IF X = 'A' DISPLAY 'Y' ELSE DISPLAY 'N' END-IF", `IF X = "A"`},
		{"IF TRUE DISPLAY 'Y'", "IF TRUE"},
		{"IF NOT FLAG DISPLAY 'Y'", "IF NOT FLAG"},
		{"IF X ** 2 >= -Y DISPLAY 'Y'", "IF X ** 2 >= -Y"},
		{`INVOKE SB "Append" USING BY VALUE X RETURNING R`, `INVOKE SB "Append"`},
		{"EXIT PROGRAM", "EXIT PROGRAM"},
		{"EXIT", "EXIT"},
		{"STOP RUN", "STOP RUN"},
		{"CLOSE F1 F2", "CLOSE [F1 F2]"},
		{"READ F1 AT END DISPLAY 'E' NOT AT END DISPLAY 'R' END-READ", "READ F1"},
		{"WRITE REC FROM X AFTER ADVANCING 1 LINE", "WRITE REC"},
	}
	for _, tt := range tests {
		t.Run(tt.stmt, func(t *testing.T) {
			if got := command(t, tt.stmt).String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParse_StatementDetails(t *testing.T) {
	t.Run("no advancing", func(t *testing.T) {
		d := command(t, "DISPLAY 'A' WITH NO ADVANCING").(*DisplayStatement)
		if !d.NoAdvancing {
			t.Errorf("NoAdvancing not set")
		}
	})
	t.Run("if else", func(t *testing.T) {
		s := command(t, "IF X = 1 DISPLAY 'A' DISPLAY 'B' ELSE DISPLAY 'C' END-IF").(*IfStatement)
		if len(s.Then) != 2 || len(s.Else) != 1 {
			t.Errorf("Then=%d Else=%d, want 2 and 1", len(s.Then), len(s.Else))
		}
	})
	t.Run("read branches", func(t *testing.T) {
		s := command(t, "READ F1 INTO X AT END DISPLAY 'E' NOT AT END DISPLAY 'R' END-READ").(*ReadStatement)
		if len(s.AtEnd) != 1 || len(s.NotAtEnd) != 1 || s.Into == nil || s.Into.Name != "X" {
			t.Errorf("READ = %# v", pretty.Formatter(s))
		}
	})
	t.Run("open modes", func(t *testing.T) {
		s := command(t, "OPEN INPUT F1 F2 OUTPUT F3").(*OpenStatement)
		want := []OpenFile{{Mode: OpenInput, Name: "F1"}, {Mode: OpenInput, Name: "F2"}, {Mode: OpenOutput, Name: "F3"}}
		if diff := pretty.Diff(s.Files, want); len(diff) > 0 {
			t.Errorf("OPEN files:\n%s", strings.Join(diff, "\n"))
		}
	})
	t.Run("size error", func(t *testing.T) {
		s := command(t, "ADD 1 TO A ROUNDED ON SIZE ERROR DISPLAY 'E' NOT ON SIZE ERROR DISPLAY 'OK' END-ADD").(*AddStatement)
		if !s.Rounded || len(s.SizeError) != 1 || len(s.NotSizeError) != 1 {
			t.Errorf("Rounded=%v SizeError=%d NotSizeError=%d", s.Rounded, len(s.SizeError), len(s.NotSizeError))
		}
	})
	t.Run("invoke arguments", func(t *testing.T) {
		s := command(t, `INVOKE SB "Append" USING BY REFERENCE X Y BY VALUE 'Z' RETURNING R`).(*InvokeStatement)
		if len(s.Using) != 3 {
			t.Fatalf("Using = %d arguments, want 3", len(s.Using))
		}
		for i, want := range []bool{true, true, false} {
			if s.Using[i].ByReference != want {
				t.Errorf("argument %d ByReference = %v", i, s.Using[i].ByReference)
			}
		}
		if s.Returning == nil || s.Returning.Name != "R" {
			t.Errorf("Returning = %v", s.Returning)
		}
	})
	t.Run("divide remainder", func(t *testing.T) {
		s := command(t, "DIVIDE A BY B GIVING C REMAINDER D").(*DivideStatement)
		if s.Into || s.Remainder == nil || s.Remainder.Name != "D" {
			t.Errorf("DIVIDE = %# v", pretty.Formatter(s))
		}
	})
	t.Run("string pointer", func(t *testing.T) {
		s := command(t, "STRING A DELIMITED BY SPACE INTO B WITH POINTER P END-STRING").(*StringStatement)
		if _, ok := s.Delimiter.(*FigurativeConstant); !ok {
			t.Errorf("Delimiter = %v", s.Delimiter)
		}
		if s.Pointer == nil || s.Pointer.Name != "P" {
			t.Errorf("Pointer = %v", s.Pointer)
		}
	})
}

func TestParse_DataDivision(t *testing.T) {
	prog := parse(t, program([]string{
		"01 PERSON.",
		"   05 FIRST-NAME PIC X(5) VALUE 'ALICE'.",
		"   05 AGE PIC 9(3) COMP.",
		"   05 SCORES PIC 9(3) OCCURS 3 TIMES.",
		"   05 FILLER PIC X.",
		"01 FLAG PIC X.",
		"   88 FLAG-ON VALUE 'Y'.",
		"01 PERSON-TEXT REDEFINES PERSON PIC X(10).",
		"77 COUNTER PIC 9(4) VALUE ZEROS.",
	}, "MAIN.", "    STOP RUN."))

	want := []*DataDescription{
		{Level: 1, Name: "PERSON", IsGroup: true, Line: 5},
		{Level: 5, Name: "FIRST-NAME", Type: TypeString, Size: 5, Picture: "X(5)", HasPic: true,
			Value: &Literal{Kind: TextLiteral, Value: "ALICE", Line: 6}, Line: 6},
		{Level: 5, Name: "AGE", Type: TypeInteger, Size: 3, Picture: "9(3)", HasPic: true, Comp: true, Line: 7},
		{Level: 5, Name: "SCORES", Type: TypeInteger, Size: 3, Picture: "9(3)", HasPic: true, Occurs: 3, Line: 8},
		{Level: 5, Anonymous: true, Type: TypeString, Size: 1, Picture: "X", HasPic: true, Line: 9},
		{Level: 1, Name: "FLAG", Type: TypeString, Size: 1, Picture: "X", HasPic: true, Line: 10},
		{Level: 88, Name: "FLAG-ON", Type: TypeBoolean, Value: &Literal{Kind: TextLiteral, Value: "Y", Line: 11}, Line: 11},
		{Level: 1, Name: "PERSON-TEXT", Type: TypeString, Size: 10, Picture: "X(10)", HasPic: true, Redefines: "PERSON", Line: 12},
		{Level: 77, Name: "COUNTER", Type: TypeInteger, Size: 4, Picture: "9(4)", HasPic: true,
			Value: &FigurativeConstant{Kind: FigZeros, Line: 13}, Line: 13},
	}
	if diff := pretty.Diff(prog.Data.WorkingStorage, want); len(diff) > 0 {
		t.Errorf("working storage parsed differently:\n%s", strings.Join(diff, "\n"))
	}
}

func TestParse_Divisions(t *testing.T) {
	src := fixed(
		"IDENTIFICATION DIVISION.",
		"PROGRAM-ID. TEST1.",
		"AUTHOR. JANE DOE.",
		"ENVIRONMENT DIVISION.",
		"CONFIGURATION SECTION.",
		"SOURCE-COMPUTER. LINUX.",
		"REPOSITORY.",
		`    CLASS SB AS "System.Text.StringBuilder".`,
		"ATTRIBUTES 'STAThread'.",
		"INPUT-OUTPUT SECTION.",
		"FILE-CONTROL.",
		"    SELECT OPTIONAL INFILE ASSIGN TO 'in.txt'",
		"        ORGANIZATION IS LINE SEQUENTIAL.",
		"DATA DIVISION.",
		"FILE SECTION.",
		"FD INFILE.",
		"01 IN-REC PIC X(10).",
		"PROCEDURE DIVISION.",
		"MAIN WITH ATTRIBUTES 'Obsolete'.",
		"    STOP RUN.",
		"END PROGRAM TEST1.",
	)
	prog := parse(t, src)

	if prog.Name != "TEST1" || prog.Identification.Author != "JANE DOE" {
		t.Errorf("Name=%q Author=%q", prog.Name, prog.Identification.Author)
	}
	if len(prog.Divisions) != 4 {
		t.Errorf("Divisions = %v", prog.Divisions)
	}

	conf := prog.Environment.Configuration
	if conf.SourceComputer != "LINUX" || conf.Attributes != "STAThread" || conf.AttributesLine != 9 {
		t.Errorf("configuration = %# v", pretty.Formatter(conf))
	}
	wantRepo := []*ClassDefinition{{Name: "SB", NetName: "System.Text.StringBuilder", Line: 8}}
	if diff := pretty.Diff(conf.Repository, wantRepo); len(diff) > 0 {
		t.Errorf("repository:\n%s", strings.Join(diff, "\n"))
	}

	wantSelect := []*FileControlEntry{{
		Name: "INFILE", Assign: "in.txt", Optional: true, Organization: "LINE SEQUENTIAL", Line: 12,
	}}
	if diff := pretty.Diff(prog.Environment.InputOutput.FileControl, wantSelect); len(diff) > 0 {
		t.Errorf("file control:\n%s", strings.Join(diff, "\n"))
	}

	files := prog.Data.Files
	if len(files) != 1 || files[0].Name != "INFILE" || len(files[0].Records) != 1 || files[0].Records[0].Name != "IN-REC" {
		t.Errorf("files = %# v", pretty.Formatter(files))
	}
	if para := prog.Procedure.Paragraphs[0]; para.Name != "MAIN" || para.Attributes != "Obsolete" || para.Line != 19 {
		t.Errorf("paragraph = %# v", pretty.Formatter(para))
	}
}

func TestParse_VariableReferences(t *testing.T) {
	// A relation that fails to parse must not leave its identifiers behind.
	prog := parse(t, program(nil, "MAIN.", "    IF (A = 1) DISPLAY B.", "    IF FLAG DISPLAY C."))
	var names []string
	for _, ref := range prog.VariableReferences {
		names = append(names, ref.Name)
	}
	if got, want := strings.Join(names, " "), "A B FLAG C"; got != want {
		t.Errorf("VariableReferences = %q, want %q", got, want)
	}
}

func TestParsePicture(t *testing.T) {
	tests := []struct {
		pic      string
		wantType DataType
		wantSize int
	}{
		{"X(10)", TypeString, 10},
		{"999", TypeInteger, 3},
		{"S9(4)V99", TypeInteger, 6},
		{"x(3)", TypeString, 3},
		{"A(2)X", TypeString, 3},
		{"ZZ9", TypeInteger, 3},
		{"9(3)X", TypeString, 4},
	}
	for _, tt := range tests {
		typ, size, err := ParsePicture(tt.pic)
		if err != nil {
			t.Errorf("ParsePicture(%q): %v", tt.pic, err)
			continue
		}
		if typ != tt.wantType || size != tt.wantSize {
			t.Errorf("ParsePicture(%q) = %s, %d; want %s, %d", tt.pic, typ, size, tt.wantType, tt.wantSize)
		}
	}

	bad := map[string]string{
		"X(3":  "unclosed repeat count in picture X(3",
		"X(0)": "invalid repeat count in picture X(0)",
		"X(A)": "invalid repeat count in picture X(A)",
		"Q9":   "invalid character 'Q' in picture Q9",
	}
	for pic, want := range bad {
		if _, _, err := ParsePicture(pic); err == nil || err.Error() != want {
			t.Errorf("ParsePicture(%q) error = %v, want %q", pic, err, want)
		}
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		line    int
		wantMsg string
	}{
		{"unclosed picture", program([]string{"01 X PIC X(3."}), 5, "unclosed repeat count in picture X(3"},
		{"bad picture", program([]string{"01 X PIC Q."}), 5, "invalid character 'Q' in picture Q"},
		{"bad level", program([]string{"50 X PIC X."}), 5, `invalid level number "50"`},
		{"zero occurs", program([]string{"01 T PIC X OCCURS 0."}), 5, "OCCURS count must be positive"},
		{"huge occurs", program([]string{"01 T PIC X OCCURS 99999999999."}), 5, "OCCURS count 99999999999 is out of range"},
		{"statement before paragraph", program(nil, "DISPLAY 'A'."), 6, `statement "DISPLAY" outside of a paragraph`},
		{"stray statement", program(nil, "MAIN.", "    DISPLAY 'A'.", "    FOO BAR."), 8,
			`unexpected statement "FOO". Perhaps you forgot to begin a new paragraph here`},
		{"move to literal", program(nil, "MAIN.", "    MOVE 1 TO 2."), 7, `unexpected token "2", expected a data name`},
		{"empty display", program(nil, "MAIN.", "    DISPLAY."), 7, "DISPLAY needs at least one operand"},
		{"add without target", program(nil, "MAIN.", "    ADD 1."), 7, "ADD needs a TO or GIVING phrase"},
		{"divide by without giving", program(nil, "MAIN.", "    DIVIDE A BY B."), 7, "DIVIDE BY needs a GIVING phrase"},
		{"open without mode", program(nil, "MAIN.", "    OPEN F."), 7, "OPEN needs INPUT, OUTPUT, I-O or EXTEND"},
		{"varying without until", program(nil, "MAIN.", "    PERFORM VARYING I FROM 1 BY 1 DISPLAY I END-PERFORM."), 7,
			"PERFORM VARYING needs an UNTIL condition"},
		{"missing end perform", program(nil, "MAIN.", "    PERFORM UNTIL X = 1 DISPLAY X."), 8, "unexpected end of input, expected END-PERFORM"},
		{"text after end program", program(nil, "MAIN.", "    STOP RUN.", "END PROGRAM TEST1.", "DISPLAY 'X'."), 9,
			`unexpected token "DISPLAY" after END PROGRAM`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ce := parseError(t, tt.src)
			if ce.Kind != SyntaxError {
				t.Errorf("Kind = %v, want syntax error", ce.Kind)
			}
			if ce.Line != tt.line || ce.Msg != tt.wantMsg {
				t.Errorf("got line %d %q, want line %d %q", ce.Line, ce.Msg, tt.line, tt.wantMsg)
			}
		})
	}
}

func TestParse_NotImplemented(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantMsg string
	}{
		{"sort file", program([]string{"FILE SECTION.", "SD SORTF."}), "SD"},
		{"static object", program([]string{"01 X OBJECT STATIC."}), "OBJECT STATIC"},
		{"other intrinsic", program(nil, "MAIN.", "    MOVE FUNCTION LENGTH(X) TO Y."), "FUNCTION LENGTH"},
		{"i-o-control", fixed(
			"IDENTIFICATION DIVISION.",
			"PROGRAM-ID. TEST1.",
			"ENVIRONMENT DIVISION.",
			"INPUT-OUTPUT SECTION.",
			"I-O-CONTROL.",
		), "I-O-CONTROL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ce := parseError(t, tt.src)
			if ce.Kind != NotImplementedError || !strings.Contains(ce.Msg, tt.wantMsg) {
				t.Errorf("got %s %q, want a not-implemented error about %q", ce.Kind, ce.Msg, tt.wantMsg)
			}
		})
	}
}
