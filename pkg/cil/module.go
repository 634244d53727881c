package cil

import (
	"fmt"
	"strings"
)

// ExternAssembly is an ".assembly extern" reference.
type ExternAssembly struct {
	Name           string
	Version        string // dotted, e.g. 2.0.0.0
	PublicKeyToken []byte
}

type Field struct {
	Name  string
	Type  string
	Flags string // defaults to "public"
}

type Local struct {
	Type string
	Name string
}

type Method struct {
	Name       string
	Flags      string // e.g. "public", "private hidebysig", "static public"
	Return     string
	Params     []string // "type [name]" entries rendered verbatim
	MaxStack   int
	Locals     []Local
	Custom     []string
	EntryPoint bool
	Body       *Body

	listing *Listing
}

// Listing resolves (once) and returns the method body's listing.
func (m *Method) Listing() (*Listing, error) {
	if m.listing != nil {
		return m.listing, nil
	}
	body := m.Body
	if body == nil {
		body = NewBody()
	}
	l, err := Resolve(body)
	if err != nil {
		return nil, fmt.Errorf("method %s: %w", m.Name, err)
	}
	m.listing = l
	return l, nil
}

type Class struct {
	Name    string
	Flags   string
	Extends string
	Custom  []string
	Fields  []Field
	Methods []*Method
}

// Method returns the method with the given name.
func (c *Class) Method(name string) (*Method, bool) {
	for _, m := range c.Methods {
		if m.Name == name {
			return m, true
		}
	}
	return nil, false
}

// Field returns the field with the given name.
func (c *Class) Field(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Module is one ilasm compilation unit.
type Module struct {
	Name           string
	Externs        []ExternAssembly
	AssemblyCustom []string
	Types          []*Class
	Globals        []*Method
}

// Type returns the class with the given name.
func (m *Module) Type(name string) (*Class, bool) {
	for _, c := range m.Types {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// EntryPoint returns the global method marked .entrypoint.
func (m *Module) EntryPoint() (*Method, bool) {
	for _, g := range m.Globals {
		if g.EntryPoint {
			return g, true
		}
	}
	return nil, false
}

// Render writes the module as ilasm source.
func (m *Module) Render() (string, error) {
	var w writer
	for _, ext := range m.Externs {
		w.line(".assembly extern %s", assemblyName(ext.Name))
		w.line("{")
		w.line("  .ver %s", strings.ReplaceAll(ext.Version, ".", ":"))
		if len(ext.PublicKeyToken) > 0 {
			w.line("  .publickeytoken = (%s)", HexBytes(ext.PublicKeyToken))
		}
		w.line("}")
	}
	w.line(".assembly %s", m.Name)
	w.line("{")
	for _, c := range m.AssemblyCustom {
		w.line("  %s", c)
	}
	w.line("}")
	w.line(".module %s.exe", m.Name)
	w.line("")

	for _, c := range m.Types {
		if err := w.class(c); err != nil {
			return "", err
		}
		w.line("")
	}
	for _, g := range m.Globals {
		if err := w.method(g, ""); err != nil {
			return "", err
		}
		w.line("")
	}
	return w.String(), nil
}

func assemblyName(name string) string {
	if strings.ContainsAny(name, "- ") {
		return "'" + name + "'"
	}
	return name
}

// HexBytes formats bytes the way ilasm expects inside "( ... )".
func HexBytes(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		fmt.Fprintf(&sb, "%02X ", c)
	}
	return sb.String()
}

type writer struct {
	strings.Builder
}

func (w *writer) line(format string, args ...any) {
	fmt.Fprintf(&w.Builder, format+"\n", args...)
}

func (w *writer) class(c *Class) error {
	w.line(".class %s %s", c.Flags, c.Name)
	w.line("       extends %s", c.Extends)
	w.line("{")
	for _, cu := range c.Custom {
		w.line("    %s", cu)
	}
	for _, f := range c.Fields {
		flags := f.Flags
		if flags == "" {
			flags = "public"
		}
		w.line("    .field %s %s %s", flags, f.Type, f.Name)
	}
	for _, m := range c.Methods {
		w.line("")
		if err := w.method(m, "    "); err != nil {
			return err
		}
	}
	w.line("}")
	return nil
}

func (w *writer) method(m *Method, indent string) error {
	l, err := m.Listing()
	if err != nil {
		return err
	}
	w.line("%s.method %s %s %s(%s) cil managed", indent, m.Flags, m.Return, m.Name, strings.Join(m.Params, ", "))
	w.line("%s{", indent)
	inner := indent + "    "
	for _, c := range m.Custom {
		w.line("%s%s", inner, c)
	}
	if m.EntryPoint {
		w.line("%s.entrypoint", inner)
	}
	maxStack := m.MaxStack
	if maxStack == 0 {
		maxStack = 8
	}
	w.line("%s.maxstack %d", inner, maxStack)
	if len(m.Locals) > 0 {
		w.line("%s.locals init (", inner)
		for i, loc := range m.Locals {
			sep := ","
			if i == len(m.Locals)-1 {
				sep = ")"
			}
			w.line("%s        [%d] %s %s%s", inner, i, loc.Type, loc.Name, sep)
		}
	}
	for _, text := range l.Lines() {
		w.line("%s%s", inner, text)
	}
	w.line("%s}", indent)
	return nil
}
