package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const hello = `       IDENTIFICATION DIVISION.
       PROGRAM-ID. HELLO.
       DATA DIVISION.
       WORKING-STORAGE SECTION.
       COPY GREETING.
       PROCEDURE DIVISION.
       MAIN.
           DISPLAY GREETING.
           STOP RUN.
`

func writeProgram(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.cbl")
	if err := os.WriteFile(path, []byte(hello), 0o644); err != nil {
		t.Fatal(err)
	}
	book := "       01 GREETING PIC X(5) VALUE 'HI'.\n"
	if err := os.WriteFile(filepath.Join(dir, "GREETING.cpy"), []byte(book), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun_AllStages(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := run([]string{writeProgram(t)}, &out, &errOut); code != 0 {
		t.Fatalf("exit code %d: %s", code, errOut.String())
	}
	for _, want := range []string{
		"Source:\n",
		"01 GREETING PIC X(5) VALUE 'HI'.",
		"Tokens (",
		"AST\n",
		"GREETING",
		"Generated IL (",
		".field public string GREETING",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Expected output to contain %q, but it didn't.\nOutput:\n%s", want, out.String())
		}
	}
}

func TestRun_SelectedStages(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := run([]string{"-stages", "il", writeProgram(t)}, &out, &errOut); code != 0 {
		t.Fatalf("exit code %d: %s", code, errOut.String())
	}
	if !strings.HasPrefix(out.String(), "Generated IL (") {
		t.Errorf("output starts with %q", strings.SplitN(out.String(), "\n", 2)[0])
	}
	for _, unwanted := range []string{"Source:", "Tokens (", "AST\n"} {
		if strings.Contains(out.String(), unwanted) {
			t.Errorf("stage %q printed although not selected", unwanted)
		}
	}
}

func TestRun_Errors(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := run(nil, &out, &errOut); code != 2 {
		t.Errorf("no arguments: exit code %d, want 2", code)
	}

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.cbl")
	src := strings.Replace(hello, "COPY GREETING.", "01 OTHER PIC X.", 1)
	if err := os.WriteFile(bad, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	errOut.Reset()
	if code := run([]string{bad}, &out, &errOut); code != 1 {
		t.Errorf("undefined item: exit code %d, want 1", code)
	}
	if !strings.Contains(errOut.String(), "analyze error:") || !strings.Contains(errOut.String(), "undefined variable GREETING") {
		t.Errorf("stderr = %q", errOut.String())
	}
}
