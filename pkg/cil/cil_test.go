package cil

import (
	"reflect"
	"strings"
	"testing"
)

func TestHelperFunctions(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"L0", true},
		{"_skip", true},
		{"CS$4", true},
		{"1abc", false},
		{"", false},
		{"a-b", false},
	}
	for _, tc := range tests {
		if got := isIdentifier(tc.input); got != tc.want {
			t.Errorf("isIdentifier(%q) = %v; want %v", tc.input, got, tc.want)
		}
	}

	if got := normalizeLabel("loop"); got != "LOOP" {
		t.Errorf("normalizeLabel(\"loop\") = %q; want \"LOOP\"", got)
	}

	lenTests := []struct {
		op     string
		want   int
		wantOk bool
	}{
		{"ldarg.0", 1, true},
		{"ret", 1, true},
		{"stelem.ref", 1, true},
		{"ceq", 2, true},
		{"ldloca.s", 2, true},
		{"ldc.i4.s", 2, true},
		{"ldc.i4", 5, true},
		{"ldstr", 5, true},
		{"stfld", 5, true},
		{"callvirt", 5, true},
		{"bge.un", 5, true},
		{"LDFLD", 5, true},
		{"jmp", 0, false},
	}
	for _, tc := range lenTests {
		got, ok := Width(tc.op)
		if got != tc.want || ok != tc.wantOk {
			t.Errorf("Width(%q) = %d, %v; want %d, %v", tc.op, got, ok, tc.want, tc.wantOk)
		}
	}
}

func TestOpcode(t *testing.T) {
	if code, ok := Opcode("ceq"); !ok || code != 0xFE01 {
		t.Errorf("Opcode(ceq) = %#x, %v", code, ok)
	}
	if code, ok := Opcode("ldstr"); !ok || code != 0x72 {
		t.Errorf("Opcode(ldstr) = %#x, %v", code, ok)
	}
	if _, ok := Opcode("bogus"); ok {
		t.Error("Opcode(bogus) should fail")
	}
}

func TestResolve_ForwardAndBackwardBranches(t *testing.T) {
	b := NewBody()
	test := b.NewLabel()
	body := b.NewLabel()
	b.Branch("br", test) // 0x0000
	b.Mark(body)
	b.Emit("ldarg.0")                                      // 0x0005
	b.Emit("call", "instance void __CobolProgram::STEP()") // 0x0006
	b.Mark(test)
	b.Emit("ldarg.0")                          // 0x000b
	b.Emit("ldfld", "int32 __CobolProgram::I") // 0x000c
	b.LoadInt(10)                              // 0x0011
	b.Branch("blt", body)                      // 0x0016
	b.Emit("ret")                              // 0x001b

	l, err := Resolve(b)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	want := []string{
		"IL_0000: br IL_000b",
		"IL_0005: ldarg.0",
		"IL_0006: call instance void __CobolProgram::STEP()",
		"IL_000b: ldarg.0",
		"IL_000c: ldfld int32 __CobolProgram::I",
		"IL_0011: ldc.i4 0x0000000a",
		"IL_0016: blt IL_0005",
		"IL_001b: ret",
	}
	if got := l.Lines(); !reflect.DeepEqual(got, want) {
		t.Errorf("Lines mismatch\ngot:\n%s\nwant:\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
	if l.Size != 0x1c {
		t.Errorf("Size = %#x; want 0x1c", l.Size)
	}
	if idx, ok := l.Index(test); !ok || idx != 3 {
		t.Errorf("Index(%s) = %d, %v; want 3", test, idx, ok)
	}
}

func TestResolve_TrailingLabelBindsToEnd(t *testing.T) {
	b := NewBody()
	end := b.NewLabel()
	b.Branch("br", end)
	b.Emit("nop")
	b.Mark(end)

	l, err := Resolve(b)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if addr, ok := l.Address(end); !ok || addr != 6 {
		t.Errorf("Address(end) = %d, %v; want 6", addr, ok)
	}
	if idx, _ := l.Index(end); idx != 2 {
		t.Errorf("Index(end) = %d; want 2", idx)
	}
}

func TestResolve_Errors(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *Body)
		want  string
	}{
		{
			name: "Duplicate label",
			build: func(b *Body) {
				b.Mark("x")
				b.Emit("nop")
				b.Mark("X")
				b.Emit("nop")
			},
			want: "duplicate label",
		},
		{
			name:  "Undefined label",
			build: func(b *Body) { b.Branch("br", "nowhere") },
			want:  "undefined label",
		},
		{
			name:  "Unknown instruction",
			build: func(b *Body) { b.Emit("jmp") },
			want:  "unknown instruction",
		},
		{
			name:  "Label on non-branch",
			build: func(b *Body) { b.Mark("a"); b.Branch("ldarg.0", "a") },
			want:  "cannot take a label",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := NewBody()
			tc.build(b)
			_, err := Resolve(b)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("Resolve error = %v; want it to contain %q", err, tc.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	src := `
	// leading comment
	start:  ldarg.1
	        ldstr "a // not a comment: really"
	        brtrue done   // trailing comment
	        call string string::Concat(string, string)
	done:
	        ret
	`
	b, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	want := []Instr{
		{Labels: []string{"start"}, Op: "ldarg.1"},
		{Op: "ldstr", Operand: `"a // not a comment: really"`},
		{Op: "brtrue", Target: "done"},
		{Op: "call", Operand: "string string::Concat(string, string)"},
		{Labels: []string{"done"}, Op: "ret"},
	}
	if !reflect.DeepEqual(b.Instrs, want) {
		t.Errorf("Parse mismatch\ngot:  %+v\nwant: %+v", b.Instrs, want)
	}
}

func TestParse_Errors(t *testing.T) {
	if _, err := Parse("frobnicate 1"); err == nil {
		t.Error("expected unknown instruction error")
	}
	if _, err := Parse("br"); err == nil {
		t.Error("expected missing label error")
	}
	if _, err := Parse("1x: ret"); err == nil {
		t.Error("expected invalid label error")
	}
}

func TestModuleRender(t *testing.T) {
	body := NewBody()
	body.Emit("newobj", "instance void __CobolProgram::.ctor()")
	body.Emit("call", "instance void __CobolProgram::MAIN()")
	body.Emit("ret")

	mod := &Module{
		Name: "hello",
		Externs: []ExternAssembly{{
			Name:           "mscorlib",
			Version:        "2.0.0.0",
			PublicKeyToken: []byte{0xB7, 0x7A, 0x5C, 0x56, 0x19, 0x34, 0xE0, 0x89},
		}},
		Types: []*Class{{
			Name:    "__CobolProgram",
			Flags:   "public auto ansi beforefieldinit",
			Extends: "[mscorlib]System.Object",
			Fields:  []Field{{Name: "X", Type: "string"}},
		}},
		Globals: []*Method{{
			Name:       "main",
			Flags:      "static public",
			Return:     "void",
			EntryPoint: true,
			Body:       body,
		}},
	}

	out, err := mod.Render()
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	for _, want := range []string{
		".assembly extern mscorlib",
		"  .ver 2:0:0:0",
		"  .publickeytoken = (B7 7A 5C 56 19 34 E0 89 )",
		".assembly hello",
		".class public auto ansi beforefieldinit __CobolProgram",
		"       extends [mscorlib]System.Object",
		"    .field public string X",
		".method static public void main() cil managed",
		"    .entrypoint",
		"    IL_0000: newobj instance void __CobolProgram::.ctor()",
		"    IL_0005: call instance void __CobolProgram::MAIN()",
		"    IL_000a: ret",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered module missing %q\n%s", want, out)
		}
	}

	if entry, ok := mod.EntryPoint(); !ok || entry.Name != "main" {
		t.Errorf("EntryPoint = %v, %v", entry, ok)
	}
}
