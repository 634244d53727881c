package compiler

import (
	"fmt"
	"log/slog"
	"strings"

	"cobolc/pkg/catalog"
)

// Severity grades a non-fatal finding.
type Severity int

const (
	Warning Severity = iota
	Note
)

func (s Severity) String() string {
	if s == Note {
		return "note"
	}
	return "warning"
}

// Diagnostic is a finding that does not stop compilation.
type Diagnostic struct {
	Severity Severity
	Line     int
	Msg      string
}

func (d Diagnostic) String() string {
	if d.Line > 0 {
		return fmt.Sprintf("%s: line %d: %s", d.Severity, d.Line, d.Msg)
	}
	return fmt.Sprintf("%s: %s", d.Severity, d.Msg)
}

// Analyzer enriches a parsed program in place: it binds names to their
// declarations, builds the data item trees and checks what the parser
// cannot. Each Analyzer numbers anonymous items from zero, so two
// compilations never share names.
type Analyzer struct {
	prog  *Program
	cat   catalog.Catalog
	syms  *SymbolTable
	anon  int
	diags []Diagnostic
	log   *slog.Logger
}

func NewAnalyzer(prog *Program, cat catalog.Catalog, log *slog.Logger) *Analyzer {
	if cat == nil {
		cat = catalog.NewMemory()
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Analyzer{prog: prog, cat: cat, syms: NewSymbolTable(), log: log}
}

// Analyze runs the analysis passes on prog with a fresh Analyzer.
func Analyze(prog *Program, cat catalog.Catalog) ([]Diagnostic, error) {
	a := NewAnalyzer(prog, cat, nil)
	err := a.Run()
	return a.Diagnostics(), err
}

func (a *Analyzer) Diagnostics() []Diagnostic { return a.diags }

func (a *Analyzer) Symbols() *SymbolTable { return a.syms }

// Run executes the passes in order. Later passes rely on the bindings
// made by earlier ones.
func (a *Analyzer) Run() error {
	passes := []struct {
		name string
		run  func() error
	}{
		{"aggregate", a.aggregate},
		{"bind classes", a.bindClasses},
		{"arrange class definitions", a.arrangeClassDefinitions},
		{"bind variables", a.bindVariables},
		{"arrange files", a.arrangeFiles},
		{"arrange groups", a.arrangeGroups},
		{"name anonymous items", a.nameAnonymous},
		{"resolve redefines", a.resolveRedefines},
		{"check procedure", a.checkProcedure},
	}
	for _, p := range passes {
		a.log.Debug("analyze", "pass", p.name)
		if err := p.run(); err != nil {
			return err
		}
	}
	a.diags = append(a.diags, FindUnreachable(a.prog)...)
	return nil
}

func (a *Analyzer) warn(line int, format string, args ...any) {
	d := Diagnostic{Severity: Warning, Line: line, Msg: fmt.Sprintf(format, args...)}
	a.log.Debug("diagnostic", "line", line, "msg", d.Msg)
	a.diags = append(a.diags, d)
}

func (a *Analyzer) addReference(asm string) {
	for _, r := range a.prog.References {
		if r == asm {
			return
		}
	}
	a.prog.References = append(a.prog.References, asm)
}

func displayName(d *DataDescription) string {
	if d.Name == "" {
		return "FILLER"
	}
	return d.Name
}

// aggregate flattens working storage and the file section into
// Program.Records and registers every named item.
func (a *Analyzer) aggregate() error {
	prog := a.prog
	prog.Records = nil
	prog.Symbols = a.syms
	prog.Variables = a.syms.data
	prog.Classes = a.syms.classes
	if prog.Data == nil {
		return nil
	}
	prog.Records = append(prog.Records, prog.Data.WorkingStorage...)
	for _, fd := range prog.Data.Files {
		prog.Records = append(prog.Records, fd.Records...)
	}
	for _, d := range prog.Records {
		if d.Anonymous || d.Name == "" {
			continue
		}
		if !a.syms.DefineData(d) {
			return semanticErrorf(d.Line, "duplicate data name %s", d.Name)
		}
	}
	return nil
}

func (a *Analyzer) configuration() *Configuration {
	if env := a.prog.Environment; env != nil && env.Configuration != nil {
		return env.Configuration
	}
	return &Configuration{}
}

// bindClasses resolves every REPOSITORY entry through the catalog.
func (a *Analyzer) bindClasses() error {
	conf := a.configuration()
	for _, c := range conf.Repository {
		t, ok := a.cat.LookupType(c.NetName)
		if !ok {
			return semanticErrorf(c.Line, "type %s not found, missing reference?", c.NetName)
		}
		c.Type = t
		c.Assembly = t.Assembly
		a.addReference(t.Assembly)
		if !a.syms.DefineClass(c) {
			return semanticErrorf(c.Line, "duplicate class name %s", c.Name)
		}
	}
	if conf.Attributes != "" {
		if err := a.bindAttribute(conf.Attributes, conf.AttributesLine); err != nil {
			return err
		}
	}
	return nil
}

func (a *Analyzer) bindAttribute(short string, line int) error {
	ref, ok := a.cat.AttributeName(short)
	if !ok {
		return semanticErrorf(line, "attribute %s not found, missing reference?", short)
	}
	// ref is "[asm]Full.Name", with the assembly possibly quoted.
	if end := strings.IndexByte(ref, ']'); strings.HasPrefix(ref, "[") && end > 0 {
		a.addReference(strings.Trim(ref[1:end], "'"))
	}
	return nil
}

// arrangeClassDefinitions links OBJECT REFERENCE items to their class.
// An unknown class only draws a warning; the item is then typed object.
func (a *Analyzer) arrangeClassDefinitions() error {
	for _, d := range a.prog.Records {
		if d.ObjectClass == "" {
			continue
		}
		if c, ok := a.syms.Class(d.ObjectClass); ok {
			d.Class = c
			continue
		}
		a.warn(d.Line, "class %s of %s is not declared in the REPOSITORY", d.ObjectClass, displayName(d))
	}
	return nil
}

var builtinConstants = map[string]FigurativeKind{
	"ZERO":   FigZeros,
	"ZEROS":  FigZeros,
	"ZEROES": FigZeros,
	"SPACE":  FigSpaces,
	"SPACES": FigSpaces,
}

// bindVariables resolves every identifier used in the procedure division.
func (a *Analyzer) bindVariables() error {
	for _, id := range a.prog.VariableReferences {
		if d, ok := a.syms.Data(id.Name); ok {
			id.Def = d
			continue
		}
		if c, ok := a.syms.Class(id.Name); ok {
			id.Class = c
			continue
		}
		if kind, ok := builtinConstants[strings.ToUpper(id.Name)]; ok {
			id.Constant = &FigurativeConstant{Kind: kind, Line: id.Line}
			continue
		}
		return semanticErrorf(id.Line, "undefined variable %s", id.Name)
	}
	return nil
}

// arrangeFiles pairs every FD with its SELECT entry.
func (a *Analyzer) arrangeFiles() error {
	var controls []*FileControlEntry
	if env := a.prog.Environment; env != nil && env.InputOutput != nil {
		controls = env.InputOutput.FileControl
	}
	var files []*FileDescription
	if a.prog.Data != nil {
		files = a.prog.Data.Files
	}

	used := make(map[*FileControlEntry]bool)
	for _, fd := range files {
		for _, ctl := range controls {
			if strings.EqualFold(ctl.Name, fd.Name) {
				fd.Control = ctl
				used[ctl] = true
				break
			}
		}
		if fd.Control == nil {
			return semanticErrorf(fd.Line, "file %s has no SELECT entry in FILE-CONTROL", fd.Name)
		}
		if !a.syms.DefineFile(fd) {
			return semanticErrorf(fd.Line, "duplicate file description %s", fd.Name)
		}
		for _, r := range fd.Records {
			r.File = fd
			if r.Level == 1 {
				r.Type = TypeString
			}
		}
	}

	for _, ctl := range controls {
		if !used[ctl] {
			a.warn(ctl.Line, "file %s has no FD entry", ctl.Name)
		}
		if ctl.AssignIsName {
			d, ok := a.syms.Data(ctl.Assign)
			if !ok {
				return semanticErrorf(ctl.Line, "undefined variable %s", ctl.Assign)
			}
			ctl.AssignItem = d
		}
	}
	return nil
}

// arrangeGroups rebuilds the flat entry list into trees. A stack holds the
// open items; an entry closes every open item whose level is not lower
// than its own and becomes a child of the item left on top.
func (a *Analyzer) arrangeGroups() error {
	var stack []*DataDescription
	var prev *DataDescription
	for _, d := range a.prog.Records {
		switch {
		case d.Level == 88:
			if prev == nil {
				return semanticErrorf(d.Line, "condition name %s has no data item", displayName(d))
			}
			d.ConditionOf = prev
			d.File = prev.File
			prev.Conditions = append(prev.Conditions, d)
			continue
		case d.Level == 66:
			return notImplemented(d.Line, "level 66 RENAMES")
		case d.Level == 1 || d.Level == 77:
			stack = stack[:0]
		default:
			for len(stack) > 0 && stack[len(stack)-1].Level >= d.Level {
				stack = stack[:len(stack)-1]
			}
			if len(stack) == 0 {
				return semanticErrorf(d.Line, "level %02d item %s has no enclosing group", d.Level, displayName(d))
			}
			parent := stack[len(stack)-1]
			if parent.Level == 77 {
				return semanticErrorf(d.Line, "level 77 item %s cannot have subordinate items", displayName(parent))
			}
			d.Parent = parent
			parent.Children = append(parent.Children, d)
		}
		stack = append(stack, d)
		prev = d
	}

	for _, root := range a.prog.Roots() {
		if _, err := a.layout(root); err != nil {
			return err
		}
	}
	return nil
}

// layout computes the size and type of d from its children and returns
// the number of characters d occupies in its parent.
func (a *Analyzer) layout(d *DataDescription) (int, error) {
	if len(d.Children) == 0 {
		if d.ObjectClass != "" {
			return 0, nil
		}
		if !d.HasPic {
			d.IsGroup = false
			d.Type = TypeString
			if lit, ok := d.Value.(*Literal); ok && lit.Kind == TextLiteral {
				d.Size = len(lit.Value)
			}
			if d.Size == 0 {
				return 0, semanticErrorf(d.Line, "record field %s has zero size", displayName(d))
			}
		}
		return d.Size * max(1, d.Occurs), nil
	}

	d.IsGroup = true
	sum := 0
	typed := false
	for _, c := range d.Children {
		n, err := a.layout(c)
		if err != nil {
			return 0, err
		}
		if c.Redefines == "" {
			sum += n
		}
		if c.Type != TypeUnknown {
			typed = true
		}
	}
	if d.HasPic {
		if sum > d.Size {
			return 0, semanticErrorf(d.Line, "group %s: children occupy %d characters, exceeding declared size %d",
				displayName(d), sum, d.Size)
		}
	} else {
		d.Size = sum
	}
	if typed || d.Type == TypeUnknown {
		d.Type = TypeString
	}
	if d.Size == 0 {
		return 0, semanticErrorf(d.Line, "record field %s has zero size", displayName(d))
	}
	return d.Size * max(1, d.Occurs), nil
}

// nameAnonymous gives FILLER and unnamed items deterministic names.
func (a *Analyzer) nameAnonymous() error {
	for _, d := range a.prog.Records {
		if !d.Anonymous && d.Name != "" {
			continue
		}
		d.Name = fmt.Sprintf("__anonDDE_%d", a.anon)
		d.Anonymous = true
		a.anon++
		a.syms.DefineData(d)
	}
	return nil
}

// resolveRedefines links each REDEFINES clause to the preceding item of
// the same level and parent. Targets are only searched backwards, so the
// links always point to earlier items and cannot form a cycle.
func (a *Analyzer) resolveRedefines() error {
	records := a.prog.Records
	for i, d := range records {
		if d.Redefines == "" {
			continue
		}
		for j := i - 1; j >= 0; j-- {
			c := records[j]
			if c.Parent == d.Parent && c.Level == d.Level && strings.EqualFold(c.Name, d.Redefines) {
				d.RedefinesTarget = c
				break
			}
		}
		if d.RedefinesTarget == nil {
			return semanticErrorf(d.Line, "REDEFINES target %s of %s not found", d.Redefines, d.Name)
		}
	}
	return nil
}

// checkProcedure registers paragraphs and checks what depends on the
// finished data trees: PERFORM targets, file names, table subscripts and
// condition-name assignments.
func (a *Analyzer) checkProcedure() error {
	proc := a.prog.Procedure
	if proc == nil {
		return nil
	}
	for i, para := range proc.Paragraphs {
		if !a.syms.DefineParagraph(para.Name, i) {
			return semanticErrorf(para.Line, "duplicate paragraph name %s", para.Name)
		}
		if para.Attributes != "" {
			if err := a.bindAttribute(para.Attributes, para.Line); err != nil {
				return err
			}
		}
	}

	for _, id := range a.prog.VariableReferences {
		if id.Def != nil && id.Subscript != nil && !id.Def.InArray() {
			return semanticErrorf(id.Line, "%s is not a table and cannot be subscripted", id.Name)
		}
	}

	for _, para := range proc.Paragraphs {
		if err := walkCommands(para.Sentences, a.checkCommand); err != nil {
			return err
		}
	}
	return nil
}

func (a *Analyzer) checkCommand(cmd Command) error {
	switch n := cmd.(type) {
	case *PerformStatement:
		if n.Paragraph == "" {
			return nil
		}
		start, ok := a.syms.Paragraph(n.Paragraph)
		if !ok {
			return semanticErrorf(n.Line, "paragraph %s not found", n.Paragraph)
		}
		if n.Thru != "" {
			end, ok := a.syms.Paragraph(n.Thru)
			if !ok {
				return semanticErrorf(n.Line, "paragraph %s not found", n.Thru)
			}
			if end < start {
				return semanticErrorf(n.Line, "paragraph %s comes before %s", n.Thru, n.Paragraph)
			}
		}
	case *OpenStatement:
		for i := range n.Files {
			fd, err := a.file(n.Files[i].Name, n.Line)
			if err != nil {
				return err
			}
			n.Files[i].File = fd
		}
	case *CloseStatement:
		n.Files = n.Files[:0]
		for _, name := range n.Names {
			fd, err := a.file(name, n.Line)
			if err != nil {
				return err
			}
			n.Files = append(n.Files, fd)
		}
	case *ReadStatement:
		fd, err := a.file(n.Name, n.Line)
		if err != nil {
			return err
		}
		n.File = fd
	case *WriteStatement:
		if n.Record.Def == nil || n.Record.Def.File == nil {
			return semanticErrorf(n.Line, "%s is not a file record", n.Record.Name)
		}
	case *SetStatement:
		if n.Target.Def != nil && n.Target.Def.IsCondition() {
			if lit, ok := n.Value.(*Literal); !ok || lit.Kind != BoolLiteral {
				return semanticErrorf(n.Line, "condition name %s can only be set to TRUE or FALSE", n.Target.Name)
			}
		}
	case *InvokeStatement:
		if n.Target.Def == nil && n.Target.Class == nil {
			return semanticErrorf(n.Line, "%s is neither an object nor a class", n.Target.Name)
		}
	}
	return nil
}

func (a *Analyzer) file(name string, line int) (*FileDescription, error) {
	fd, ok := a.syms.File(name)
	if !ok {
		return nil, semanticErrorf(line, "undefined file %s", name)
	}
	return fd, nil
}
