// Package catalog describes the external .NET types a program may name:
// their owning assemblies, constructors, methods and properties. The
// compiler only ever sees the Catalog interface, so tests run against a
// fixed in-memory catalog.
package catalog

import (
	"strings"
)

// Method is a method signature. Parameter and return types are full .NET
// names such as System.String or System.Object[].
type Method struct {
	Name   string
	Params []string
	Return string
	Static bool
}

// Property is a readable property, exposed through get_<Name>.
type Property struct {
	Name   string
	Type   string
	Static bool
}

// Type is the metadata of one public type.
type Type struct {
	FullName     string
	Assembly     string
	Attribute    bool
	Constructors [][]string
	Methods      []Method
	Properties   []Property
}

// ShortName is the type name without its namespace.
func (t *Type) ShortName() string {
	if i := strings.LastIndexByte(t.FullName, '.'); i >= 0 {
		return t.FullName[i+1:]
	}
	return t.FullName
}

// Constructor reports whether t has a constructor taking exactly params.
func (t *Type) Constructor(params []string) bool {
	for _, c := range t.Constructors {
		if sameParams(c, params) {
			return true
		}
	}
	return false
}

// Method returns the method with the given name and exact parameter types.
func (t *Type) Method(name string, params []string) (*Method, bool) {
	for i := range t.Methods {
		m := &t.Methods[i]
		if m.Name == name && sameParams(m.Params, params) {
			return m, true
		}
	}
	return nil, false
}

// MethodsNamed returns every overload called name, in declaration order.
func (t *Type) MethodsNamed(name string) []Method {
	var out []Method
	for _, m := range t.Methods {
		if m.Name == name {
			out = append(out, m)
		}
	}
	return out
}

// Property returns the property called name.
func (t *Type) Property(name string) (*Property, bool) {
	for i := range t.Properties {
		if t.Properties[i].Name == name {
			return &t.Properties[i], true
		}
	}
	return nil, false
}

func sameParams(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Assembly is a referenced library and the types it exports.
type Assembly struct {
	Name           string
	Version        string // four dotted parts, e.g. 2.0.0.0
	PublicKeyToken []byte
	Types          []*Type
}

// Catalog answers the type questions asked during analysis and code
// generation.
type Catalog interface {
	// LookupType finds a type by full name, or by short name when that is
	// unambiguous.
	LookupType(name string) (*Type, bool)
	// AssemblyOf returns the short name of the assembly owning a type.
	AssemblyOf(typeName string) (string, bool)
	Assembly(name string) (*Assembly, bool)
	// AttributeName maps an attribute short name such as STAThread to
	// "[asm]Full.NameAttribute".
	AttributeName(short string) (string, bool)
}

var builtinIL = map[string]string{
	"System.String":   "string",
	"System.Int32":    "int32",
	"System.Object":   "object",
	"System.Boolean":  "bool",
	"System.Void":     "void",
	"System.Object[]": "object[]",
	"System.String[]": "string[]",
	"System.Char":     "char",
	"System.Int64":    "int64",
	"System.Double":   "float64",
}

// ILType renders a .NET type name the way ilasm writes it in a signature:
// a keyword for the built-in types, "class [asm]Name" otherwise. A trailing
// & marks a by-reference parameter.
func ILType(c Catalog, name string) string {
	if strings.HasSuffix(name, "&") {
		return ILType(c, strings.TrimSuffix(name, "&")) + "&"
	}
	if il, ok := builtinIL[name]; ok {
		return il
	}
	if asm, ok := c.AssemblyOf(name); ok {
		return "class " + AssemblyRef(asm) + name
	}
	return "class " + name
}

// AssemblyRef renders "[name]", quoting names ilasm would not accept bare.
func AssemblyRef(name string) string {
	if strings.ContainsAny(name, "- ") {
		return "['" + name + "']"
	}
	return "[" + name + "]"
}
