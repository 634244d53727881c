// Package cil models CIL method bodies as instruction lists with symbolic
// labels, resolves those labels to IL addresses in two passes, and renders
// whole modules as ilasm source text.
package cil

import (
	"fmt"
	"strings"
)

// Single-byte opcodes without an operand.
var simpleOps = map[string]uint16{
	"nop":        0x00,
	"ldarg.0":    0x02,
	"ldarg.1":    0x03,
	"ldarg.2":    0x04,
	"ldarg.3":    0x05,
	"ldloc.0":    0x06,
	"ldloc.1":    0x07,
	"ldloc.2":    0x08,
	"ldloc.3":    0x09,
	"stloc.0":    0x0A,
	"stloc.1":    0x0B,
	"stloc.2":    0x0C,
	"stloc.3":    0x0D,
	"ldnull":     0x14,
	"ldc.i4.m1":  0x15,
	"ldc.i4.0":   0x16,
	"ldc.i4.1":   0x17,
	"ldc.i4.2":   0x18,
	"ldc.i4.3":   0x19,
	"ldc.i4.4":   0x1A,
	"ldc.i4.5":   0x1B,
	"ldc.i4.6":   0x1C,
	"ldc.i4.7":   0x1D,
	"ldc.i4.8":   0x1E,
	"dup":        0x25,
	"pop":        0x26,
	"ret":        0x2A,
	"ldind.i4":   0x4A,
	"ldind.ref":  0x50,
	"stind.ref":  0x51,
	"stind.i4":   0x54,
	"add":        0x58,
	"sub":        0x59,
	"mul":        0x5A,
	"div":        0x5B,
	"rem":        0x5D,
	"neg":        0x65,
	"ldelem.ref": 0x9A,
	"stelem.ref": 0xA2,
}

// Two-byte opcodes (0xFE prefix) without an operand.
var prefixedOps = map[string]uint16{
	"ceq": 0xFE01,
	"cgt": 0xFE02,
	"clt": 0xFE04,
}

// Single-byte opcodes followed by an 8-bit operand.
var shortOperandOps = map[string]uint16{
	"ldarg.s":   0x0E,
	"starg.s":   0x10,
	"ldloc.s":   0x11,
	"ldloca.s":  0x12,
	"stloc.s":   0x13,
	"ldc.i4.s":  0x1F,
	"br.s":      0x2B,
	"brfalse.s": 0x2C,
	"brtrue.s":  0x2D,
	"beq.s":     0x2E,
	"bge.s":     0x2F,
	"bgt.s":     0x30,
	"ble.s":     0x31,
	"blt.s":     0x32,
	"bne.un.s":  0x33,
}

// Single-byte opcodes followed by a 32-bit operand (metadata token,
// immediate or branch offset).
var tokenOps = map[string]uint16{
	"call":     0x28,
	"br":       0x38,
	"brfalse":  0x39,
	"brtrue":   0x3A,
	"beq":      0x3B,
	"bge":      0x3C,
	"bgt":      0x3D,
	"ble":      0x3E,
	"blt":      0x3F,
	"bne.un":   0x40,
	"bge.un":   0x41,
	"bgt.un":   0x42,
	"ble.un":   0x43,
	"blt.un":   0x44,
	"ldc.i4":   0x20,
	"callvirt": 0x6F,
	"ldstr":    0x72,
	"newobj":   0x73,
	"ldfld":    0x7B,
	"ldflda":   0x7C,
	"stfld":    0x7D,
	"ldsfld":   0x7E,
	"box":      0x8C,
	"newarr":   0x8D,
	"ldelema":  0x8F,
}

var branchOps = map[string]bool{
	"br": true, "brfalse": true, "brtrue": true,
	"beq": true, "bge": true, "bgt": true, "ble": true, "blt": true, "bne.un": true,
	"bge.un": true, "bgt.un": true, "ble.un": true, "blt.un": true,
	"br.s": true, "brfalse.s": true, "brtrue.s": true,
	"beq.s": true, "bge.s": true, "bgt.s": true, "ble.s": true, "blt.s": true, "bne.un.s": true,
}

// Width returns the encoded size in bytes of an instruction.
func Width(op string) (int, bool) {
	op = strings.ToLower(op)
	if _, ok := simpleOps[op]; ok {
		return 1, true
	}
	if _, ok := prefixedOps[op]; ok {
		return 2, true
	}
	if _, ok := shortOperandOps[op]; ok {
		return 2, true
	}
	if _, ok := tokenOps[op]; ok {
		return 5, true
	}
	return 0, false
}

// Opcode returns the numeric opcode of an instruction.
func Opcode(op string) (uint16, bool) {
	op = strings.ToLower(op)
	for _, table := range []map[string]uint16{simpleOps, prefixedOps, shortOperandOps, tokenOps} {
		if code, ok := table[op]; ok {
			return code, true
		}
	}
	return 0, false
}

// IsBranch reports whether op takes a label operand.
func IsBranch(op string) bool {
	return branchOps[strings.ToLower(op)]
}

// Instr is one instruction. Branch instructions name their destination in
// Target; every other operand is kept verbatim in Operand.
type Instr struct {
	Labels  []string
	Op      string
	Operand string
	Target  string
	Comment string
}

func (in Instr) String() string {
	switch {
	case in.Target != "":
		return in.Op + " " + in.Target
	case in.Operand != "":
		return in.Op + " " + in.Operand
	default:
		return in.Op
	}
}

// Body is an instruction list under construction.
type Body struct {
	Instrs    []Instr
	pending   []string
	comments  []string
	nextLabel int
}

func NewBody() *Body {
	return &Body{}
}

// NewLabel returns a label name unique within the body.
func (b *Body) NewLabel() string {
	l := fmt.Sprintf("L%d", b.nextLabel)
	b.nextLabel++
	return l
}

// Mark binds label to the next emitted instruction, or to the end of the
// body when nothing follows.
func (b *Body) Mark(label string) {
	b.pending = append(b.pending, label)
}

// Comment attaches a comment line to the next emitted instruction.
func (b *Body) Comment(format string, args ...any) {
	b.comments = append(b.comments, fmt.Sprintf(format, args...))
}

func (b *Body) push(in Instr) {
	in.Labels = append(in.Labels, b.pending...)
	b.pending = nil
	if len(b.comments) > 0 {
		in.Comment = strings.Join(b.comments, "; ")
		b.comments = nil
	}
	b.Instrs = append(b.Instrs, in)
}

// Emit appends an instruction with an optional verbatim operand.
func (b *Body) Emit(op string, operand ...string) {
	b.push(Instr{Op: op, Operand: strings.Join(operand, " ")})
}

// Emitf appends an instruction whose operand is built from format.
func (b *Body) Emitf(op string, format string, args ...any) {
	b.push(Instr{Op: op, Operand: fmt.Sprintf(format, args...)})
}

// Branch appends a branch to label.
func (b *Body) Branch(op string, label string) {
	b.push(Instr{Op: op, Target: label})
}

// LoadInt pushes an int32 constant using the long ldc.i4 form.
func (b *Body) LoadInt(v int) {
	b.Emitf("ldc.i4", "0x%08x", uint32(int32(v)))
}

// Len returns the number of instructions emitted so far.
func (b *Body) Len() int {
	return len(b.Instrs)
}

// Quote renders s as an ilasm string literal.
func Quote(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&sb, `\%03o`, r)
				continue
			}
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

// Unquote reverses Quote.
func Unquote(lit string) (string, error) {
	if len(lit) < 2 || lit[0] != '"' || lit[len(lit)-1] != '"' {
		return "", fmt.Errorf("malformed string literal %s", lit)
	}
	body := []rune(lit[1 : len(lit)-1])
	var sb strings.Builder
	for i := 0; i < len(body); i++ {
		r := body[i]
		if r != '\\' {
			sb.WriteRune(r)
			continue
		}
		i++
		if i >= len(body) {
			return "", fmt.Errorf("malformed string literal %s", lit)
		}
		switch body[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '0', '1', '2', '3':
			if i+2 >= len(body) {
				return "", fmt.Errorf("malformed octal escape in %s", lit)
			}
			v := 0
			for _, d := range body[i : i+3] {
				if d < '0' || d > '7' {
					return "", fmt.Errorf("malformed octal escape in %s", lit)
				}
				v = v*8 + int(d-'0')
			}
			sb.WriteRune(rune(v))
			i += 2
		default:
			sb.WriteRune(body[i])
		}
	}
	return sb.String(), nil
}
