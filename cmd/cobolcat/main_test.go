package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const formsTypes = `assembly System.Windows.Forms 2.0.0.0 B77A5C561934E089
type System.Windows.Forms.MessageBox
  method static Show(System.String) System.Windows.Forms.DialogResult
type System.Windows.Forms.Form
  ctor
  property Text System.String
`

func TestImportListExport(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	db := filepath.Join(dir, "cat.db")
	types := filepath.Join(dir, "forms.types")
	if err := os.WriteFile(types, []byte(formsTypes), 0o644); err != nil {
		t.Fatal(err)
	}

	var out, errOut bytes.Buffer
	if code := run(ctx, []string{"import", db, types}, &out, &errOut); code != 0 {
		t.Fatalf("import exited %d: %s", code, errOut.String())
	}
	if want := "imported System.Windows.Forms 2.0.0.0 (2 types)\n"; out.String() != want {
		t.Errorf("import printed %q, want %q", out.String(), want)
	}

	out.Reset()
	if code := run(ctx, []string{"list", db}, &out, &errOut); code != 0 {
		t.Fatalf("list exited %d: %s", code, errOut.String())
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "ASSEMBLY") {
		t.Fatalf("list printed:\n%s", out.String())
	}
	if f := strings.Fields(lines[1]); len(f) != 3 || f[0] != "System.Windows.Forms" || f[1] != "2.0.0.0" || f[2] != "2" {
		t.Errorf("list row = %q", lines[1])
	}

	out.Reset()
	if code := run(ctx, []string{"export", db, "System.Windows.Forms"}, &out, &errOut); code != 0 {
		t.Fatalf("export exited %d: %s", code, errOut.String())
	}
	if out.String() != formsTypes {
		t.Errorf("export printed:\n%s\nwant:\n%s", out.String(), formsTypes)
	}
}

func TestErrors(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	tests := []struct {
		name string
		args []string
		code int
		want string
	}{
		{"no arguments", nil, 2, "Usage:"},
		{"unknown command", []string{"drop", "x.db"}, 2, "Usage:"},
		{"import without files", []string{"import", "x.db"}, 2, "Usage:"},
		{"missing descriptor", []string{"import", filepath.Join(dir, "a.db"), filepath.Join(dir, "none.types")}, 1, "cobolcat:"},
		{"list of a missing catalog", []string{"list", filepath.Join(dir, "none.db")}, 1, "cobolcat:"},
		{"export of an unknown assembly", []string{"export", filepath.Join(dir, "b.db"), "Nope"}, 1, "assembly not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			if code := run(ctx, tt.args, &out, &errOut); code != tt.code {
				t.Errorf("exit code %d, want %d", code, tt.code)
			}
			if !strings.Contains(errOut.String(), tt.want) {
				t.Errorf("stderr %q does not mention %q", errOut.String(), tt.want)
			}
		})
	}
}
