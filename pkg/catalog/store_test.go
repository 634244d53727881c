package catalog

import (
	"bytes"
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kr/pretty"
	"github.com/pkg/errors"
)

func TestParseDescriptor(t *testing.T) {
	asms := mustParse(t, formsTypes)
	if len(asms) != 1 {
		t.Fatalf("got %d assemblies, want 1", len(asms))
	}
	a := asms[0]
	if a.Name != "System.Windows.Forms" || a.Version != "2.0.0.0" {
		t.Errorf("assembly = %s %s", a.Name, a.Version)
	}
	if got := strings.ToUpper(hex.EncodeToString(a.PublicKeyToken)); got != "B77A5C561934E089" {
		t.Errorf("token = %s", got)
	}
	if len(a.Types) != 3 {
		t.Fatalf("got %d types, want 3", len(a.Types))
	}
	mb := a.Types[0]
	if len(mb.Methods) != 2 || !mb.Methods[1].Static || len(mb.Methods[1].Params) != 2 {
		t.Errorf("MessageBox methods = %# v", pretty.Formatter(mb.Methods))
	}
	form := a.Types[2]
	if len(form.Constructors) != 1 || len(form.Constructors[0]) != 0 {
		t.Errorf("Form constructors = %v", form.Constructors)
	}
	if p, ok := form.Property("Text"); !ok || p.Static {
		t.Errorf("Form.Text = %+v", p)
	}
}

func TestParseDescriptor_Errors(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"type Foo", "test.types:1: type outside of an assembly"},
		{"assembly A 1.0.0.0\n  ctor", "test.types:2: ctor outside of a type"},
		{"assembly A one", `test.types:1: invalid version "one"`},
		{"assembly A 1.0 XYZ", "public key token must be 16 hex digits"},
		{"assembly A 1.0\ntype T\n  method Broken System.Void", "malformed method signature"},
		{"assembly A 1.0\nfield x", `unknown directive "field"`},
	}
	for _, tt := range tests {
		_, err := ParseDescriptor(strings.NewReader(tt.src), "test.types")
		if err == nil {
			t.Errorf("%q: expected error", tt.src)
			continue
		}
		if !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%q: error %q does not contain %q", tt.src, err, tt.want)
		}
	}
}

func TestFormatDescriptor(t *testing.T) {
	a := mustParse(t, formsTypes)[0]
	var buf bytes.Buffer
	if err := FormatDescriptor(&buf, a); err != nil {
		t.Fatalf("FormatDescriptor failed: %v", err)
	}
	b := mustParse(t, buf.String())[0]
	if diff := pretty.Diff(a, b); len(diff) > 0 {
		t.Errorf("reparsed descriptor differs:\n%s", strings.Join(diff, "\n"))
	}
}

func TestMscorlib(t *testing.T) {
	m := Mscorlib()
	if m.Name != "mscorlib" || m.Version != "2.0.0.0" {
		t.Errorf("mscorlib = %s %s", m.Name, m.Version)
	}
	// Each call returns an independent copy.
	m.Types = nil
	if len(Mscorlib().Types) == 0 {
		t.Errorf("Mscorlib shares state between calls")
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStorePutGet(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	want := mustParse(t, formsTypes)[0]

	if err := s.Put(ctx, want); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, err := s.Get(ctx, "System.Windows.Forms")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if diff := pretty.Diff(want, got); len(diff) > 0 {
		t.Errorf("stored assembly differs:\n%s", strings.Join(diff, "\n"))
	}

	// Putting again replaces instead of duplicating.
	want.Version = "2.0.5.0"
	want.Types = want.Types[:1]
	if err := s.Put(ctx, want); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}
	sums, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(sums) != 1 || sums[0].Version != "2.0.5.0" || sums[0].Types != 1 {
		t.Errorf("List = %+v", sums)
	}

	if _, err := s.Get(ctx, "Missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(Missing) error = %v, want ErrNotFound", err)
	}
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	typesFile := filepath.Join(dir, "forms.types")
	if err := os.WriteFile(typesFile, []byte(formsTypes), 0o644); err != nil {
		t.Fatal(err)
	}

	dbFile := filepath.Join(dir, "extra.db")
	extra, err := OpenStore(ctx, dbFile)
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	if err := extra.Put(ctx, &Assembly{Name: "Extra", Version: "1.0.0.0", Types: []*Type{{FullName: "Extra.Widget"}}}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	extra.Close()

	store := openTestStore(t)
	if err := store.Put(ctx, &Assembly{Name: "System.Xml", Version: "2.0.0.0", Types: []*Type{{FullName: "System.Xml.XmlDocument"}}}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	mem, err := Load(ctx, []string{typesFile, dbFile, "/usr/lib/mono/2.0/System.Xml.dll", "mscorlib"}, store)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	for _, name := range []string{"MessageBox", "Extra.Widget", "XmlDocument", "Console"} {
		if _, ok := mem.LookupType(name); !ok {
			t.Errorf("type %s not loaded", name)
		}
	}
	var names []string
	for _, a := range mem.Assemblies() {
		names = append(names, a.Name)
	}
	if want := []string{"mscorlib", "System.Windows.Forms", "Extra", "System.Xml"}; strings.Join(names, " ") != strings.Join(want, " ") {
		t.Errorf("assemblies = %v, want %v", names, want)
	}

	_, err = Load(ctx, []string{"System.Data"}, store)
	if err == nil || !strings.Contains(err.Error(), "reference System.Data") {
		t.Errorf("missing reference error = %v", err)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("missing reference should wrap ErrNotFound: %v", err)
	}

	if _, err := Load(ctx, []string{"System.Data"}, nil); err == nil {
		t.Errorf("expected an error without a store")
	}
}

func TestAssemblyName(t *testing.T) {
	tests := map[string]string{
		"System.Xml":                       "System.Xml",
		"/usr/lib/mono/2.0/System.Xml.dll": "System.Xml",
		"gtk-sharp.DLL":                    "gtk-sharp",
		"tool.exe":                         "tool",
	}
	for ref, want := range tests {
		if got := AssemblyName(ref); got != want {
			t.Errorf("AssemblyName(%s) = %s, want %s", ref, got, want)
		}
	}
}
