package catalog

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// ParseDescriptor reads a .types descriptor. Each line holds one directive:
//
//	assembly <name> <version> [public key token]
//	type <FullName> [attribute]
//	ctor [T1,T2]
//	method [static] <Name>([T1,T2]) <Return>
//	property [static] <Name> <Type>
//
// Members belong to the most recent type, types to the most recent
// assembly. A # starts a comment. source names the input in errors.
func ParseDescriptor(r io.Reader, source string) ([]*Assembly, error) {
	var (
		asms []*Assembly
		asm  *Assembly
		typ  *Type
	)
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		fail := func(format string, args ...any) error {
			return errors.Errorf("%s:%d: %s", source, lineNo, fmt.Sprintf(format, args...))
		}

		switch fields[0] {
		case "assembly":
			if len(fields) < 3 || len(fields) > 4 {
				return nil, fail("usage: assembly <name> <version> [token]")
			}
			if !ValidVersion(fields[2]) {
				return nil, fail("invalid version %q", fields[2])
			}
			asm = &Assembly{Name: fields[1], Version: fields[2]}
			if len(fields) == 4 {
				tok, err := hex.DecodeString(fields[3])
				if err != nil || len(tok) != 8 {
					return nil, fail("public key token must be 16 hex digits")
				}
				asm.PublicKeyToken = tok
			}
			asms = append(asms, asm)
			typ = nil
		case "type":
			if asm == nil {
				return nil, fail("type outside of an assembly")
			}
			if len(fields) < 2 || len(fields) > 3 || (len(fields) == 3 && fields[2] != "attribute") {
				return nil, fail("usage: type <FullName> [attribute]")
			}
			typ = &Type{FullName: fields[1], Assembly: asm.Name, Attribute: len(fields) == 3}
			asm.Types = append(asm.Types, typ)
		case "ctor", "method", "property":
			if typ == nil {
				return nil, fail("%s outside of a type", fields[0])
			}
			if err := parseMember(typ, fields); err != nil {
				return nil, fail("%v", err)
			}
		default:
			return nil, fail("unknown directive %q", fields[0])
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, source)
	}
	return asms, nil
}

func parseMember(t *Type, fields []string) error {
	kind, rest := fields[0], fields[1:]
	static := false
	if kind != "ctor" && len(rest) > 0 && rest[0] == "static" {
		static = true
		rest = rest[1:]
	}
	switch kind {
	case "ctor":
		if len(rest) > 1 {
			return errors.New("usage: ctor [T1,T2]")
		}
		var params []string
		if len(rest) == 1 {
			params = splitParams(rest[0])
		}
		t.Constructors = append(t.Constructors, params)
	case "method":
		if len(rest) != 2 {
			return errors.New("usage: method [static] Name(T1,T2) Return")
		}
		open := strings.IndexByte(rest[0], '(')
		if open <= 0 || !strings.HasSuffix(rest[0], ")") {
			return errors.Errorf("malformed method signature %q", rest[0])
		}
		t.Methods = append(t.Methods, Method{
			Name:   rest[0][:open],
			Params: splitParams(rest[0][open+1 : len(rest[0])-1]),
			Return: rest[1],
			Static: static,
		})
	case "property":
		if len(rest) != 2 {
			return errors.New("usage: property [static] Name Type")
		}
		t.Properties = append(t.Properties, Property{Name: rest[0], Type: rest[1], Static: static})
	}
	return nil
}

func splitParams(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// FormatDescriptor writes asm in the .types format read by ParseDescriptor.
func FormatDescriptor(w io.Writer, asm *Assembly) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "assembly %s %s", asm.Name, asm.Version)
	if len(asm.PublicKeyToken) > 0 {
		fmt.Fprintf(bw, " %s", strings.ToUpper(hex.EncodeToString(asm.PublicKeyToken)))
	}
	bw.WriteString("\n")
	for _, t := range asm.Types {
		fmt.Fprintf(bw, "type %s", t.FullName)
		if t.Attribute {
			bw.WriteString(" attribute")
		}
		bw.WriteString("\n")
		for _, c := range t.Constructors {
			if len(c) == 0 {
				bw.WriteString("  ctor\n")
				continue
			}
			fmt.Fprintf(bw, "  ctor %s\n", strings.Join(c, ","))
		}
		for _, m := range t.Methods {
			fmt.Fprintf(bw, "  method %s%s(%s) %s\n", staticWord(m.Static), m.Name, strings.Join(m.Params, ","), m.Return)
		}
		for _, p := range t.Properties {
			fmt.Fprintf(bw, "  property %s%s %s\n", staticWord(p.Static), p.Name, p.Type)
		}
	}
	return bw.Flush()
}

func staticWord(static bool) string {
	if static {
		return "static "
	}
	return ""
}
