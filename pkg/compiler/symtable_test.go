package compiler

import (
	"strings"
	"testing"
)

func TestSymbolTable_Define(t *testing.T) {
	s := NewSymbolTable()
	if !s.DefineData(&DataDescription{Name: "Ws-Name"}) {
		t.Fatal("first definition rejected")
	}
	if s.DefineData(&DataDescription{Name: "WS-NAME"}) {
		t.Error("duplicate data name accepted")
	}
	if d, ok := s.Data("ws-name"); !ok || d.Name != "Ws-Name" {
		t.Errorf("Data(ws-name) = %v, %v", d, ok)
	}

	if !s.DefineParagraph("main", 0) || s.DefineParagraph("MAIN", 3) {
		t.Error("paragraph names must be unique regardless of case")
	}
	if i, ok := s.Paragraph("Main"); !ok || i != 0 {
		t.Errorf("Paragraph(Main) = %d, %v", i, ok)
	}

	if !s.DefineFile(&FileDescription{Name: "F1"}) || s.DefineFile(&FileDescription{Name: "f1"}) {
		t.Error("file names must be unique regardless of case")
	}
	if !s.DefineClass(&ClassDefinition{Name: "SB"}) || s.DefineClass(&ClassDefinition{Name: "sb"}) {
		t.Error("class names must be unique regardless of case")
	}
	if _, ok := s.Class("nothing"); ok {
		t.Error("lookup of an unknown class succeeded")
	}
}

func TestSymbolTable_String(t *testing.T) {
	if got := NewSymbolTable().String(); got != "Data: (empty)\n" {
		t.Errorf("empty table = %q", got)
	}

	prog, _ := analyze(t, program([]string{
		"01 G.",
		"   05 A PIC X(2).",
		"   05 B PIC 9(3) OCCURS 2.",
		"01 C REDEFINES G PIC X(8).",
		"01 F PIC X.",
		"   88 F-ON VALUE 'Y'.",
	}, "MAIN.", "    STOP RUN.", "DONE.", "    EXIT."))

	// Column widths are not part of the contract; compare words.
	var got []string
	for _, line := range strings.Split(strings.TrimSuffix(prog.Symbols.String(), "\n"), "\n") {
		got = append(got, strings.Join(strings.Fields(line), " "))
	}
	want := []string{
		"Data:",
		"A level 05 String size 2 in G",
		"B level 05 Integer size 3 in G occurs 2",
		"C level 01 String size 8 redefines G",
		"F level 01 String size 1",
		"F-ON level 88 Boolean size 0 condition of F",
		"G level 01 String size 8",
		"Paragraphs:",
		"0 MAIN",
		"1 DONE",
	}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("String() =\n%s\nwant\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
}
