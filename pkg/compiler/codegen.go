package compiler

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"cobolc/pkg/catalog"
	"cobolc/pkg/cil"
)

const (
	programClass = "__CobolProgram"
	stringHelper = "__CobolString"
	dataHelper   = "__CobolHasData"
)

var mscorlibToken = []byte{0xB7, 0x7A, 0x5C, 0x56, 0x19, 0x34, 0xE0, 0x89}

// valueKind is the static type of a value on the evaluation stack.
type valueKind int

const (
	kindInt valueKind = iota
	kindString
	kindBool
	kindObject
)

type valueType struct {
	kind  valueKind
	class string // .NET full name, for objects
}

var (
	intValue    = valueType{kind: kindInt}
	stringValue = valueType{kind: kindString}
	boolValue   = valueType{kind: kindBool}
)

// netName is the .NET name used when matching catalog signatures.
func (v valueType) netName() string {
	switch v.kind {
	case kindInt:
		return "System.Int32"
	case kindString:
		return "System.String"
	case kindBool:
		return "System.Boolean"
	}
	if v.class != "" {
		return v.class
	}
	return "System.Object"
}

func (v valueType) String() string { return v.netName() }

// ref is a data item as addressed by one identifier: the item and, for
// items inside an OCCURS table, the 1-based subscript.
type ref struct {
	d   *DataDescription
	sub *Expr
}

func refOf(id *Identifier) ref {
	return ref{d: id.Def.Storage(), sub: id.Subscript}
}

// CodeGen turns an analyzed program into a CIL module.
type CodeGen struct {
	prog *Program
	cat  catalog.Catalog
	log  *slog.Logger

	b    *cil.Body // body of the method being generated
	line int       // line of the command being generated

	usesString  bool
	usesHasData bool
}

func newCodeGen(prog *Program, cat catalog.Catalog, log *slog.Logger) *CodeGen {
	if cat == nil {
		cat = catalog.NewMemory()
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &CodeGen{prog: prog, cat: cat, log: log}
}

// mapName turns a COBOL name into a valid IL identifier.
func mapName(name string) string {
	s := strings.ReplaceAll(name, "-", "_")
	s = strings.ReplaceAll(s, "#", "__hash__")
	if s != "" && s[0] >= '0' && s[0] <= '9' {
		s = "_" + s
	}
	return s
}

func fieldName(d *DataDescription) string {
	if d.IsCondition() {
		return "_level88bool_" + mapName(d.Name)
	}
	return mapName(d.Name)
}

func (g *CodeGen) valueOf(d *DataDescription) valueType {
	switch {
	case d.IsCondition():
		return boolValue
	case d.ObjectClass != "":
		if d.Class != nil && d.Class.Type != nil {
			return valueType{kind: kindObject, class: d.Class.Type.FullName}
		}
		return valueType{kind: kindObject}
	case d.Type == TypeInteger:
		return intValue
	}
	return stringValue
}

func (g *CodeGen) ilType(v valueType) string {
	switch v.kind {
	case kindInt:
		return "int32"
	case kindString:
		return "string"
	case kindBool:
		return "bool"
	}
	if v.class == "" {
		return "object"
	}
	return catalog.ILType(g.cat, v.class)
}

func elementType(root *DataDescription) string {
	return "_" + mapName(root.Name)
}

// fieldRef is the operand of ldfld/stfld for an elementary item.
func (g *CodeGen) fieldRef(d *DataDescription) string {
	owner := programClass
	if root := d.ArrayRoot(); root != nil && !d.IsCondition() {
		owner = elementType(root)
	}
	return fmt.Sprintf("%s %s::%s", g.ilType(g.valueOf(d)), owner, fieldName(d))
}

func tableRef(root *DataDescription) string {
	return fmt.Sprintf("valuetype %s[] %s::%s", elementType(root), programClass, mapName(root.Name))
}

func hasDataRef(group *DataDescription) string {
	return fmt.Sprintf("bool %s::_hasData_%s", programClass, mapName(group.Name))
}

// tracksData reports whether a group carries a _hasData_ field.
func tracksData(d *DataDescription) bool {
	return d.IsGroup && d.ArrayRoot() == nil
}

// leafAt is an elementary item and its offset inside the group being
// decomposed.
type leafAt struct {
	d      *DataDescription
	offset int
}

// layoutOf lists the elementary items of d with their character offsets,
// plus every group below d (d included) with its offset.
func (g *CodeGen) layoutOf(d *DataDescription) (leaves, groups []leafAt, err error) {
	var walk func(d *DataDescription, off int) error
	walk = func(d *DataDescription, off int) error {
		if !d.IsGroup {
			if d.ObjectClass == "" {
				leaves = append(leaves, leafAt{d, off})
			}
			return nil
		}
		groups = append(groups, leafAt{d, off})
		for _, c := range d.Children {
			if c.RedefinesTarget != nil {
				continue
			}
			if c.Occurs > 0 {
				return notImplemented(g.line, "group "+d.Name+" containing the table "+c.Name+" used as a whole")
			}
			if err := walk(c, off); err != nil {
				return err
			}
			off += c.Size
		}
		return nil
	}
	err = walk(d, 0)
	return leaves, groups, err
}

//  Loads and stores

// pushOwner pushes the object whose field holds r: the program instance,
// or the address of the table element selected by the subscript.
func (g *CodeGen) pushOwner(r ref) error {
	g.b.Emit("ldarg.0")
	root := r.d.ArrayRoot()
	if root == nil || r.d.IsCondition() {
		return nil
	}
	if r.sub == nil {
		return semanticErrorf(g.line, "table item %s needs a subscript", r.d.Name)
	}
	g.b.Emit("ldfld", tableRef(root))
	if err := g.intExpr(r.sub); err != nil {
		return err
	}
	g.b.Emit("ldc.i4.1")
	g.b.Emit("sub")
	g.b.Emit("ldelema", elementType(root))
	return nil
}

// load pushes the value of r.
func (g *CodeGen) load(r ref) (valueType, error) {
	if r.d.IsGroup {
		return stringValue, g.loadGroup(r)
	}
	if err := g.pushOwner(r); err != nil {
		return valueType{}, err
	}
	g.b.Emit("ldfld", g.fieldRef(r.d))
	return g.valueOf(r.d), nil
}

// loadGroup formats the elementary items of a group into one string.
func (g *CodeGen) loadGroup(r ref) error {
	leaves, _, err := g.layoutOf(r.d)
	if err != nil {
		return err
	}
	var format strings.Builder
	sum := 0
	for i, l := range leaves {
		fmt.Fprintf(&format, "{%d,-%d}", i, l.d.Size)
		sum += l.d.Size
	}
	g.b.Emit("ldstr", cil.Quote(format.String()))
	g.b.LoadInt(len(leaves))
	g.b.Emit("newarr", cil.ObjectType)
	for i, l := range leaves {
		g.b.Emit("dup")
		g.b.LoadInt(i)
		t, err := g.load(ref{l.d, r.sub})
		if err != nil {
			return err
		}
		g.box(t)
		g.b.Emit("stelem.ref")
	}
	g.b.Emit("call", cil.StringFormatN)
	if sum < r.d.Size {
		g.b.LoadInt(r.d.Size)
		g.b.Emit("callvirt", cil.StringPadRight)
	}
	return nil
}

// store assigns the value pushed by value to r, converting it to the
// type of r.
func (g *CodeGen) store(r ref, value func() (valueType, error)) error {
	d := r.d
	if d.IsCondition() {
		return semanticErrorf(g.line, "condition name %s can only be SET", d.Name)
	}
	if d.IsGroup {
		t, err := value()
		if err != nil {
			return err
		}
		if err := g.convert(t, stringValue); err != nil {
			return err
		}
		g.b.Emit("stloc.1")
		if err := g.storeGroup(r); err != nil {
			return err
		}
		g.markData(d)
		return nil
	}
	if err := g.pushOwner(r); err != nil {
		return err
	}
	t, err := value()
	if err != nil {
		return err
	}
	if err := g.convert(t, g.valueOf(d)); err != nil {
		return err
	}
	g.b.Emit("stfld", g.fieldRef(d))
	g.markData(d)
	return nil
}

// markData records that the groups enclosing d now hold data.
func (g *CodeGen) markData(d *DataDescription) {
	for p := d.Parent; p != nil && tracksData(p); p = p.Parent {
		g.b.Emit("ldarg.0")
		g.b.Emit("ldc.i4.1")
		g.b.Emit("stfld", hasDataRef(p))
	}
}

// storeGroup splits the string in local 1 into the elementary items of a
// group. Items past the end of the string keep their value; the last
// item reached takes whatever characters remain.
func (g *CodeGen) storeGroup(r ref) error {
	leaves, groups, err := g.layoutOf(r.d)
	if err != nil {
		return err
	}
	for _, grp := range groups {
		if !tracksData(grp.d) {
			continue
		}
		g.usesHasData = true
		g.b.Emit("ldarg.0")
		g.b.Emit("ldloc.1")
		g.b.LoadInt(grp.offset)
		g.b.LoadInt(grp.d.Size)
		g.b.Emitf("call", "bool %s::%s(string, int32, int32)", programClass, dataHelper)
		g.b.Emit("stfld", hasDataRef(grp.d))
	}
	for _, l := range leaves {
		skip := g.b.NewLabel()
		g.b.LoadInt(l.offset)
		g.b.Emit("ldloc.1")
		g.b.Emit("callvirt", cil.StringLength)
		g.b.Branch("bge", skip)
		if err := g.pushOwner(ref{l.d, r.sub}); err != nil {
			return err
		}
		g.b.Emit("ldloc.1")
		g.b.LoadInt(l.offset)
		g.b.LoadInt(l.d.Size)
		g.b.Emit("ldloc.1")
		g.b.Emit("callvirt", cil.StringLength)
		g.b.LoadInt(l.offset)
		g.b.Emit("sub")
		g.b.Emit("call", cil.MathMin)
		g.b.Emit("callvirt", cil.StringSubstringN)
		if l.d.Type == TypeInteger {
			g.b.Emit("call", cil.Int32Parse)
		}
		g.b.Emit("stfld", g.fieldRef(l.d))
		g.b.Mark(skip)
	}
	return nil
}

// box turns a value type on the stack into an object.
func (g *CodeGen) box(t valueType) {
	switch t.kind {
	case kindInt:
		g.b.Emit("box", cil.BoxInt32)
	case kindBool:
		g.b.Emit("box", cil.BoxBoolean)
	}
}

// convert changes the value on top of the stack from one type to another.
func (g *CodeGen) convert(from, to valueType) error {
	if from.kind == to.kind {
		return nil
	}
	switch {
	case from.kind == kindInt && to.kind == kindString:
		g.b.Emit("stloc.2")
		g.b.Emit("ldstr", cil.Quote("{0}"))
		g.b.Emit("ldloc.2")
		g.b.Emit("box", cil.BoxInt32)
		g.b.Emit("call", cil.StringFormat)
	case from.kind == kindBool && to.kind == kindString:
		g.b.Emit("stloc.0")
		g.b.Emit("ldstr", cil.Quote("{0}"))
		g.b.Emit("ldloc.0")
		g.b.Emit("box", cil.BoxBoolean)
		g.b.Emit("call", cil.StringFormat)
	case from.kind == kindString && to.kind == kindInt:
		g.b.Emit("call", cil.Int32Parse)
	case from.kind == kindBool && to.kind == kindInt:
	case to.kind == kindObject && from.kind == kindString:
	case to.kind == kindObject && from.kind == kindInt:
		g.box(from)
	default:
		return semanticErrorf(g.line, "cannot convert %s to %s", from, to)
	}
	return nil
}

// fit pads or cuts the string on the stack to exactly size characters.
func (g *CodeGen) fit(size int) {
	g.b.LoadInt(size)
	g.b.Emit("callvirt", cil.StringPadRight)
	g.b.Emit("ldc.i4.0")
	g.b.LoadInt(size)
	g.b.Emit("callvirt", cil.StringSubstringN)
}

func fitText(s string, size int) string {
	if len(s) >= size {
		return s[:size]
	}
	return s + strings.Repeat(" ", size-len(s))
}

//  Sources and expressions

func (g *CodeGen) literal(lit *Literal) (valueType, error) {
	switch lit.Kind {
	case TextLiteral:
		g.b.Emit("ldstr", cil.Quote(lit.Value))
		return stringValue, nil
	case BoolLiteral:
		if lit.Value == "TRUE" {
			g.b.Emit("ldc.i4.1")
		} else {
			g.b.Emit("ldc.i4.0")
		}
		return boolValue, nil
	}
	v, err := integerValue(lit)
	if err != nil {
		return valueType{}, err
	}
	g.b.LoadInt(v)
	return intValue, nil
}

func integerValue(lit *Literal) (int, error) {
	if strings.Contains(lit.Value, ".") {
		return 0, notImplemented(lit.Line, "decimal literal "+lit.Value)
	}
	v, err := strconv.ParseInt(lit.Value, 10, 32)
	if err != nil {
		return 0, semanticErrorf(lit.Line, "number %s does not fit in 32 bits", lit.Value)
	}
	return int(v), nil
}

// source pushes the value of s.
func (g *CodeGen) source(s Source) (valueType, error) {
	switch n := s.(type) {
	case *Literal:
		return g.literal(n)
	case *FigurativeConstant:
		return g.figurative(n), nil
	case *IntrinsicFunction:
		if n.Name != "UPPER-CASE" {
			return valueType{}, notImplemented(n.Line, "FUNCTION "+n.Name)
		}
		t, err := g.source(n.Arg)
		if err != nil {
			return valueType{}, err
		}
		if err := g.convert(t, stringValue); err != nil {
			return valueType{}, err
		}
		g.b.Emit("callvirt", cil.StringToUpper)
		return stringValue, nil
	case *Identifier:
		return g.identifier(n)
	case *Expr:
		return g.exprValue(n)
	}
	return valueType{}, internalErrorf(g.line, "unexpected source %T", s)
}

func (g *CodeGen) figurative(f *FigurativeConstant) valueType {
	if f.Kind == FigZeros {
		g.b.Emit("ldc.i4.0")
		return intValue
	}
	g.b.Emit("ldstr", cil.Quote(f.Text(1)))
	return stringValue
}

func (g *CodeGen) identifier(id *Identifier) (valueType, error) {
	switch {
	case id.Constant != nil:
		return g.figurative(id.Constant), nil
	case id.Class != nil:
		return valueType{}, semanticErrorf(id.Line, "class %s cannot be used as a value", id.Name)
	case id.Def == nil:
		return valueType{}, internalErrorf(id.Line, "identifier %s is not bound", id.Name)
	}
	if id.Def.IsCondition() {
		g.b.Emit("ldarg.0")
		g.b.Emit("ldfld", g.fieldRef(id.Def))
		return boolValue, nil
	}
	t, err := g.load(refOf(id))
	if err != nil {
		return valueType{}, err
	}
	if !id.IsSubstring() {
		return t, nil
	}
	if err := g.convert(t, stringValue); err != nil {
		return valueType{}, err
	}
	if err := g.intExpr(id.Start); err != nil {
		return valueType{}, err
	}
	g.b.Emit("ldc.i4.1")
	g.b.Emit("sub")
	if id.Length == nil {
		g.b.Emit("callvirt", cil.StringSubstring)
		return stringValue, nil
	}
	if err := g.intExpr(id.Length); err != nil {
		return valueType{}, err
	}
	g.b.Emit("callvirt", cil.StringSubstringN)
	return stringValue, nil
}

// exprValue pushes a single source unchanged, or the integer result of
// an arithmetic expression.
func (g *CodeGen) exprValue(e *Expr) (valueType, error) {
	if s, ok := e.Simple(); ok {
		return g.source(s)
	}
	return intValue, g.intExpr(e)
}

func (g *CodeGen) intSource(s Source) error {
	t, err := g.source(s)
	if err != nil {
		return err
	}
	return g.convert(t, intValue)
}

func (g *CodeGen) intExpr(e *Expr) error {
	for i, t := range e.Terms {
		if err := g.term(t); err != nil {
			return err
		}
		if i == 0 {
			continue
		}
		if e.Ops[i-1] == MINUS {
			g.b.Emit("sub")
		} else {
			g.b.Emit("add")
		}
	}
	return nil
}

func (g *CodeGen) term(t *Term) error {
	for i, p := range t.Powers {
		if err := g.power(p); err != nil {
			return err
		}
		if i == 0 {
			continue
		}
		if t.Ops[i-1] == SLASH {
			g.b.Emit("div")
		} else {
			g.b.Emit("mul")
		}
	}
	return nil
}

// power supports only literal exponents, unrolled into multiplications.
func (g *CodeGen) power(p *Power) error {
	if err := g.basis(p.Bases[0]); err != nil {
		return err
	}
	for _, b := range p.Bases[1:] {
		lit, ok := b.Source.(*Literal)
		if !ok || lit.Kind != NumberLiteral {
			return notImplemented(g.line, "exponent that is not a number")
		}
		n, err := integerValue(lit)
		if err != nil {
			return err
		}
		if n < 0 {
			return notImplemented(g.line, "negative exponent")
		}
		if n == 0 {
			g.b.Emit("pop")
			g.b.Emit("ldc.i4.1")
			continue
		}
		for i := 1; i < n; i++ {
			g.b.Emit("dup")
		}
		for i := 1; i < n; i++ {
			g.b.Emit("mul")
		}
	}
	if p.Sign == MINUS {
		g.b.Emit("neg")
	}
	return nil
}

func (g *CodeGen) basis(b *Basis) error {
	if b.Expr != nil {
		return g.intExpr(b.Expr)
	}
	return g.intSource(b.Source)
}

//  Module

func standardLocals() []cil.Local {
	return []cil.Local{
		{Type: "bool", Name: "CS$4$0000"},
		{Type: "string", Name: "__cobolInputTemp"},
		{Type: "int32", Name: "__cobolIntTemp"},
	}
}

func (g *CodeGen) externs() []cil.ExternAssembly {
	var out []cil.ExternAssembly
	seen := make(map[string]bool)
	add := func(name string) {
		if seen[name] {
			return
		}
		seen[name] = true
		ext := cil.ExternAssembly{Name: name, Version: "0.0.0.0"}
		if a, ok := g.cat.Assembly(name); ok {
			ext.Version = a.Version
			ext.PublicKeyToken = a.PublicKeyToken
		}
		out = append(out, ext)
	}
	if _, ok := g.cat.Assembly("mscorlib"); ok {
		add("mscorlib")
	} else {
		seen["mscorlib"] = true
		out = append(out, cil.ExternAssembly{Name: "mscorlib", Version: "2.0.0.0", PublicKeyToken: mscorlibToken})
	}
	for _, r := range g.prog.References {
		add(r)
	}
	return out
}

// guidAttribute derives a stable assembly GUID from the program name.
func guidAttribute(programID string) string {
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte("cobol:"+programID)).String()
	blob := append([]byte{0x01, 0x00, byte(len(id))}, id...)
	blob = append(blob, 0x00, 0x00)
	return fmt.Sprintf(".custom instance void [mscorlib]System.Runtime.InteropServices.GuidAttribute::.ctor(string) = ( %s)",
		cil.HexBytes(blob))
}

func (g *CodeGen) attribute(short string, line int) (string, error) {
	name, ok := g.cat.AttributeName(short)
	if !ok {
		return "", semanticErrorf(line, "attribute %s not found, missing reference?", short)
	}
	return fmt.Sprintf(".custom instance void %s::.ctor() = ( 01 00 00 00 )", name), nil
}

// Generate builds the module for an analyzed program.
func Generate(prog *Program, assemblyName string, cat catalog.Catalog, log *slog.Logger) (*cil.Module, error) {
	g := newCodeGen(prog, cat, log)
	return g.module(assemblyName)
}

func (g *CodeGen) module(name string) (*cil.Module, error) {
	prog := g.prog
	if prog.Procedure == nil || len(prog.Procedure.Paragraphs) == 0 {
		return nil, semanticErrorf(0, "procedure division has no paragraphs")
	}
	if name == "" {
		name = mapName(prog.Name)
	}
	if name == "" {
		name = "cobol"
	}

	mod := &cil.Module{
		Name:           name,
		AssemblyCustom: []string{guidAttribute(prog.Name)},
	}

	class := &cil.Class{
		Name:    programClass,
		Flags:   "public auto ansi beforefieldinit",
		Extends: "[mscorlib]System.Object",
	}
	if conf := prog.Environment; conf != nil && conf.Configuration != nil && conf.Configuration.Attributes != "" {
		c := conf.Configuration
		custom, err := g.attribute(c.Attributes, c.AttributesLine)
		if err != nil {
			return nil, err
		}
		class.Custom = append(class.Custom, custom)
	}

	tables, err := g.tables()
	if err != nil {
		return nil, err
	}
	class.Fields = g.fields()

	ctor, err := g.constructor()
	if err != nil {
		return nil, err
	}
	class.Methods = append(class.Methods, ctor)

	for _, para := range prog.Procedure.Paragraphs {
		g.log.Debug("generate paragraph", "name", para.Name, "sentences", len(para.Sentences))
		m, err := g.paragraph(para)
		if err != nil {
			return nil, err
		}
		class.Methods = append(class.Methods, m)
	}
	helpers, err := g.helpers()
	if err != nil {
		return nil, err
	}
	class.Methods = append(class.Methods, helpers...)

	// Externs last: analysis and generation may both add references.
	mod.Externs = g.externs()
	mod.Types = append(tables, class)
	mod.Globals = []*cil.Method{g.main(prog.Procedure.Paragraphs[0])}
	return mod, nil
}

func (g *CodeGen) main(first *Paragraph) *cil.Method {
	b := cil.NewBody()
	b.Emitf("newobj", "instance void %s::.ctor()", programClass)
	b.Emitf("call", "instance void %s::%s()", programClass, mapName(first.Name))
	b.Emit("ret")
	return &cil.Method{
		Name:       "main",
		Flags:      "static public",
		Return:     "void",
		EntryPoint: true,
		Body:       b,
	}
}

func (g *CodeGen) paragraph(para *Paragraph) (*cil.Method, error) {
	g.b = cil.NewBody()
	for _, s := range para.Sentences {
		if err := g.sentence(s); err != nil {
			return nil, err
		}
	}
	g.b.Emit("ret")
	m := &cil.Method{
		Name:     mapName(para.Name),
		Flags:    "public",
		Return:   "void",
		MaxStack: 16,
		Locals:   standardLocals(),
		Body:     g.b,
	}
	if para.Attributes != "" {
		custom, err := g.attribute(para.Attributes, para.Line)
		if err != nil {
			return nil, err
		}
		m.Custom = append(m.Custom, custom)
	}
	return m, nil
}

// tables declares one value type per OCCURS item, holding the elementary
// items of one table element.
func (g *CodeGen) tables() ([]*cil.Class, error) {
	var out []*cil.Class
	for _, d := range g.prog.Records {
		if d.Occurs == 0 {
			continue
		}
		if p := d.Parent; p != nil && p.InArray() {
			return nil, notImplemented(d.Line, "nested OCCURS table "+d.Name)
		}
		vt := &cil.Class{
			Name:    elementType(d),
			Flags:   "private sequential ansi sealed beforefieldinit",
			Extends: "[mscorlib]System.ValueType",
		}
		leaves, _, err := g.elementLeaves(d)
		if err != nil {
			return nil, err
		}
		for _, l := range leaves {
			vt.Fields = append(vt.Fields, cil.Field{Name: fieldName(l.d), Type: g.ilType(g.valueOf(l.d))})
		}
		out = append(out, vt)
	}
	return out, nil
}

// elementLeaves lays out one element of a table.
func (g *CodeGen) elementLeaves(root *DataDescription) ([]leafAt, []leafAt, error) {
	if !root.IsGroup {
		return []leafAt{{root, 0}}, nil, nil
	}
	var leaves, groups []leafAt
	off := 0
	for _, c := range root.Children {
		if c.RedefinesTarget != nil {
			return nil, nil, notImplemented(c.Line, "REDEFINES inside the table "+root.Name)
		}
		if c.Occurs > 0 {
			return nil, nil, notImplemented(c.Line, "nested OCCURS table "+c.Name)
		}
		l, gr, err := g.layoutOf(c)
		if err != nil {
			return nil, nil, err
		}
		for _, x := range l {
			leaves = append(leaves, leafAt{x.d, x.offset + off})
		}
		groups = append(groups, gr...)
		off += c.Size
	}
	return leaves, groups, nil
}

// fields declares the storage of the program class.
func (g *CodeGen) fields() []cil.Field {
	var out []cil.Field
	if g.prog.Data != nil {
		for _, fd := range g.prog.Data.Files {
			out = append(out,
				cil.Field{Name: readerField(fd), Type: cil.ReaderType},
				cil.Field{Name: writerField(fd), Type: cil.WriterType})
		}
	}
	for _, d := range g.prog.Records {
		switch {
		case d.RedefinesTarget != nil:
		case d.IsCondition():
			out = append(out, cil.Field{Name: fieldName(d), Type: "bool"})
		case d.Occurs > 0:
			out = append(out, cil.Field{Name: mapName(d.Name), Type: fmt.Sprintf("valuetype %s[]", elementType(d))})
		case d.InArray():
		case d.IsGroup:
			out = append(out, cil.Field{Name: "_hasData_" + mapName(d.Name), Type: "bool"})
		default:
			out = append(out, cil.Field{Name: fieldName(d), Type: g.ilType(g.valueOf(d))})
		}
	}
	return out
}
