package compiler

import (
	"fmt"
	"strings"

	"cobolc/pkg/catalog"
)

// staticType is the type source would push, found without emitting code.
func (g *CodeGen) staticType(s Source) valueType {
	switch n := s.(type) {
	case *Literal:
		switch n.Kind {
		case TextLiteral:
			return stringValue
		case BoolLiteral:
			return boolValue
		}
		return intValue
	case *FigurativeConstant:
		if n.Kind == FigZeros {
			return intValue
		}
		return stringValue
	case *Identifier:
		switch {
		case n.Constant != nil:
			return g.staticType(n.Constant)
		case n.Def == nil:
			return valueType{kind: kindObject}
		case n.Def.IsCondition():
			return boolValue
		case n.IsSubstring(), n.Def.Storage().IsGroup:
			return stringValue
		}
		return g.valueOf(n.Def.Storage())
	case *Expr:
		if simple, ok := n.Simple(); ok {
			return g.staticType(simple)
		}
		return intValue
	}
	return stringValue
}

func netValue(name string) valueType {
	switch name {
	case "System.Int32":
		return intValue
	case "System.String":
		return stringValue
	case "System.Boolean":
		return boolValue
	}
	return valueType{kind: kindObject, class: name}
}

func (g *CodeGen) ilParams(params []string) string {
	il := make([]string, len(params))
	for i, p := range params {
		il[i] = catalog.ILType(g.cat, p)
	}
	return strings.Join(il, ", ")
}

// member is the resolved target of an INVOKE.
type member struct {
	name   string // IL method name
	params []string
	ret    string
	static bool
}

// resolveMember finds name on t: a method with exactly the argument
// types, then one of the same arity whose differing parameters are all
// System.Object, then a property getter.
func resolveMember(t *catalog.Type, name string, args []string, static bool) (member, bool) {
	if m, ok := t.Method(name, args); ok && m.Static == static {
		return member{m.Name, m.Params, m.Return, m.Static}, true
	}
	for _, m := range t.MethodsNamed(name) {
		if m.Static != static || len(m.Params) != len(args) {
			continue
		}
		fits := true
		for i, p := range m.Params {
			if p != args[i] && p != "System.Object" {
				fits = false
				break
			}
		}
		if fits {
			return member{m.Name, m.Params, m.Return, m.Static}, true
		}
	}
	if len(args) == 0 {
		if p, ok := t.Property(name); ok && p.Static == static {
			return member{"get_" + p.Name, nil, p.Type, p.Static}, true
		}
	}
	return member{}, false
}

// invoke calls a constructor, method or property getter of an external
// type, through an OBJECT REFERENCE item or statically through a class.
func (g *CodeGen) invoke(s *InvokeStatement) error {
	var (
		class  *ClassDefinition
		static bool
	)
	switch {
	case s.Target.Class != nil:
		class, static = s.Target.Class, true
	case s.Target.Def != nil && s.Target.Def.Class != nil:
		class = s.Target.Def.Class
	default:
		return semanticErrorf(s.Line, "%s is neither an object nor a class", s.Target.Name)
	}
	t := class.Type
	if t == nil {
		return semanticErrorf(s.Line, "type %s not found, missing reference?", class.NetName)
	}
	asm := class.Assembly
	if asm == "" {
		asm = t.Assembly
	}
	typeRef := catalog.AssemblyRef(asm) + t.FullName

	args := make([]string, len(s.Using))
	for i, a := range s.Using {
		args[i] = g.staticType(a.Source).netName()
		if a.ByReference {
			args[i] += "&"
		}
	}

	if strings.EqualFold(s.Method, "NEW") {
		if !t.Constructor(args) {
			return semanticErrorf(s.Line, "could not find a constructor of %s with matching parameter types", t.FullName)
		}
		create := func() (valueType, error) {
			if err := g.arguments(s.Using, args); err != nil {
				return valueType{}, err
			}
			g.b.Emitf("newobj", "instance void %s::.ctor(%s)", typeRef, g.ilParams(args))
			return valueType{kind: kindObject, class: t.FullName}, nil
		}
		switch {
		case s.Returning != nil:
			return g.storeResult(s.Returning, create)
		case !static:
			return g.storeResult(s.Target, create)
		}
		if _, err := create(); err != nil {
			return err
		}
		g.b.Emit("pop")
		return nil
	}

	m, ok := resolveMember(t, s.Method, args, static)
	if !ok {
		return semanticErrorf(s.Line, "could not find property or method '%s' with matching parameter types", s.Method)
	}
	void := m.ret == "" || m.ret == "System.Void"
	if void && s.Returning != nil {
		return semanticErrorf(s.Line, "method %s returns nothing and cannot be used with RETURNING", s.Method)
	}
	call := func() (valueType, error) {
		if !static {
			if _, err := g.load(refOf(s.Target)); err != nil {
				return valueType{}, err
			}
		}
		if err := g.arguments(s.Using, m.params); err != nil {
			return valueType{}, err
		}
		ret := "void"
		if !void {
			ret = catalog.ILType(g.cat, m.ret)
		}
		sig := fmt.Sprintf("%s %s::%s(%s)", ret, typeRef, m.name, g.ilParams(m.params))
		if static {
			g.b.Emit("call", sig)
		} else {
			g.b.Emit("callvirt", "instance "+sig)
		}
		return netValue(m.ret), nil
	}
	if s.Returning != nil {
		return g.storeResult(s.Returning, call)
	}
	if _, err := call(); err != nil {
		return err
	}
	if !void {
		g.b.Emit("pop")
	}
	return nil
}

func (g *CodeGen) storeResult(id *Identifier, value func() (valueType, error)) error {
	if id.Def == nil || id.Def.IsCondition() {
		return semanticErrorf(g.line, "%s cannot receive a result", id.Name)
	}
	return g.store(refOf(id), value)
}

// arguments pushes the USING arguments for parameters of the given types.
// A BY REFERENCE argument passes the address of its item.
func (g *CodeGen) arguments(using []InvokeArgument, params []string) error {
	for i, a := range using {
		if a.ByReference {
			id, ok := a.Source.(*Identifier)
			if !ok {
				return semanticErrorf(g.line, "BY REFERENCE needs a data item, not %s", a.Source)
			}
			if err := g.itemAddress(id, g.staticType(id).kind); err != nil {
				return err
			}
			continue
		}
		t, err := g.source(a.Source)
		if err != nil {
			return err
		}
		if params[i] == "System.Object" {
			g.box(t)
		}
	}
	return nil
}
