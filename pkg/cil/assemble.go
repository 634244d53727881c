package cil

import (
	"fmt"
	"strings"
	"unicode"
)

// Listing is a body whose labels have been bound to IL addresses.
type Listing struct {
	Instrs []Instr
	Addrs  []int
	Size   int
	labels map[string]int // label -> instruction index (len(Instrs) for the end)
}

// Address returns the IL address a label was bound to.
func (l *Listing) Address(label string) (int, bool) {
	idx, ok := l.labels[normalizeLabel(label)]
	if !ok {
		return 0, false
	}
	if idx == len(l.Instrs) {
		return l.Size, true
	}
	return l.Addrs[idx], true
}

// Index returns the instruction index a label was bound to.
func (l *Listing) Index(label string) (int, bool) {
	idx, ok := l.labels[normalizeLabel(label)]
	return idx, ok
}

// Lines renders every instruction as "IL_xxxx: op operand", with branch
// targets replaced by the address of their label.
func (l *Listing) Lines() []string {
	out := make([]string, 0, len(l.Instrs))
	for i, in := range l.Instrs {
		if in.Comment != "" {
			out = append(out, "// "+in.Comment)
		}
		text := in.String()
		if in.Target != "" {
			addr, _ := l.Address(in.Target)
			text = fmt.Sprintf("%s IL_%04x", in.Op, addr)
		}
		out = append(out, fmt.Sprintf("IL_%04x: %s", l.Addrs[i], text))
	}
	return out
}

// Resolve binds every label in the body to an address (pass 1) and checks
// that every branch names a bound label (pass 2).
func Resolve(b *Body) (*Listing, error) {
	l := &Listing{
		Instrs: b.Instrs,
		Addrs:  make([]int, len(b.Instrs)),
		labels: make(map[string]int),
	}
	if err := l.pass1(b.pending); err != nil {
		return nil, err
	}
	if err := l.pass2(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Listing) bind(label string, idx int) error {
	key := normalizeLabel(label)
	if _, exists := l.labels[key]; exists {
		return fmt.Errorf("duplicate label '%s'", label)
	}
	l.labels[key] = idx
	return nil
}

func (l *Listing) pass1(trailing []string) error {
	address := 0
	for i, in := range l.Instrs {
		for _, lbl := range in.Labels {
			if err := l.bind(lbl, i); err != nil {
				return err
			}
		}
		width, ok := Width(in.Op)
		if !ok {
			return fmt.Errorf("unknown instruction %d: %s", i, in.Op)
		}
		l.Addrs[i] = address
		address += width
	}
	for _, lbl := range trailing {
		if err := l.bind(lbl, len(l.Instrs)); err != nil {
			return err
		}
	}
	l.Size = address
	return nil
}

func (l *Listing) pass2() error {
	for i, in := range l.Instrs {
		if IsBranch(in.Op) {
			if in.Target == "" {
				return fmt.Errorf("%s without a target at instruction %d", in.Op, i)
			}
			if _, ok := l.labels[normalizeLabel(in.Target)]; !ok {
				return fmt.Errorf("undefined label '%s' at instruction %d", in.Target, i)
			}
		} else if in.Target != "" {
			return fmt.Errorf("%s cannot take a label operand at instruction %d", in.Op, i)
		}
	}
	return nil
}

// Parse reads symbolic IL text into a body. Each line holds optional
// "label:" prefixes followed by one instruction; "//" starts a comment.
func Parse(code string) (*Body, error) {
	b := NewBody()
	for i, raw := range strings.Split(code, "\n") {
		lineNo := i + 1
		labels, op, operand, err := parseLine(raw, lineNo)
		if err != nil {
			return nil, err
		}
		for _, lbl := range labels {
			b.Mark(lbl)
		}
		if op == "" {
			continue
		}
		if _, ok := Width(op); !ok {
			return nil, fmt.Errorf("unknown instruction on line %d: %s", lineNo, op)
		}
		if IsBranch(op) {
			if operand == "" || !isIdentifier(operand) {
				return nil, fmt.Errorf("%s expects a label on line %d", op, lineNo)
			}
			b.Branch(op, operand)
			continue
		}
		b.Emit(op, operand)
	}
	return b, nil
}

func parseLine(raw string, lineNo int) (labels []string, op, operand string, err error) {
	line := strings.TrimSpace(stripComments(raw))
	if line == "" {
		return nil, "", "", nil
	}

	for {
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			break
		}
		beforeColon := strings.TrimSpace(line[:colon])
		if strings.ContainsAny(beforeColon, " \t\"") {
			break
		}
		if colon+1 < len(line) && line[colon+1] == ':' {
			break
		}
		if !isIdentifier(beforeColon) {
			return nil, "", "", fmt.Errorf("invalid label '%s' on line %d", beforeColon, lineNo)
		}
		labels = append(labels, beforeColon)
		line = strings.TrimSpace(line[colon+1:])
		if line == "" {
			return labels, "", "", nil
		}
	}

	fields := strings.Fields(line)
	op = strings.ToLower(fields[0])
	operand = strings.TrimSpace(line[len(fields[0]):])
	return labels, op, operand, nil
}

// stripComments removes a trailing "//" comment that is not inside a
// string literal.
func stripComments(line string) string {
	inString := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\\':
			if inString {
				i++
			}
		case '"':
			inString = !inString
		case '/':
			if !inString && i+1 < len(line) && line[i+1] == '/' {
				return line[:i]
			}
		}
	}
	return line
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if i == 0 {
			if !unicode.IsLetter(r) && r != '_' {
				return false
			}
			continue
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '$' {
			return false
		}
	}
	return true
}

func normalizeLabel(label string) string {
	return strings.ToUpper(label)
}
