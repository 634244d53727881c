package compiler

import (
	"fmt"
	"strings"

	"cobolc/pkg/catalog"
)

// DataType is the storage class of a data item.
type DataType int

const (
	TypeUnknown DataType = iota
	TypeString
	TypeInteger
	TypeBoolean
)

func (t DataType) String() string {
	switch t {
	case TypeString:
		return "String"
	case TypeInteger:
		return "Integer"
	case TypeBoolean:
		return "Boolean"
	default:
		return "Unknown"
	}
}

//  Program structure

// Program is the root of the AST. The parser fills the divisions and the
// reference list; the analyzer fills the binding maps.
type Program struct {
	Name           string
	Identification *IdentificationDivision
	Environment    *EnvironmentDivision
	Data           *DataDivision
	Procedure      *ProcedureDivision
	Divisions      []Division // in source order

	// VariableReferences lists every identifier use site, for binding.
	VariableReferences []*Identifier

	// Set by the analyzer.
	Symbols    *SymbolTable
	Variables  map[string]*DataDescription
	Classes    map[string]*ClassDefinition
	References []string // assemblies the program needs, in first-use order
	Records    []*DataDescription // every entry in declaration order
}

// Roots returns the level 01 and 77 items in declaration order.
func (p *Program) Roots() []*DataDescription {
	var roots []*DataDescription
	for _, d := range p.Records {
		if d.Parent == nil && d.Level != 88 {
			roots = append(roots, d)
		}
	}
	return roots
}

// Division is implemented by the four division nodes.
type Division interface {
	divisionNode()
	String() string
}

type IdentificationDivision struct {
	ProgramID string
	Author    string
	Line      int
}

func (*IdentificationDivision) divisionNode() {}
func (d *IdentificationDivision) String() string {
	return fmt.Sprintf("IdentificationDivision(%s)", d.ProgramID)
}

type EnvironmentDivision struct {
	Configuration *Configuration
	InputOutput   *InputOutput
}

func (*EnvironmentDivision) divisionNode()    {}
func (*EnvironmentDivision) String() string { return "EnvironmentDivision" }

// Configuration is the CONFIGURATION SECTION.
type Configuration struct {
	SourceComputer string
	ObjectComputer string
	Repository     []*ClassDefinition
	Attributes     string // short attribute name applied to the program class
	AttributesLine int
}

// ClassDefinition is a REPOSITORY entry binding a COBOL class name to an
// external type.
type ClassDefinition struct {
	Name     string
	NetName  string
	Line     int
	Type     *catalog.Type // set by the analyzer
	Assembly string        // owning assembly short name, set by the analyzer
}

type InputOutput struct {
	FileControl []*FileControlEntry
}

// FileControlEntry is a SELECT clause.
type FileControlEntry struct {
	Name         string
	Assign       string // path literal or data name
	AssignIsName bool
	Optional     bool
	Organization string
	Line         int

	AssignItem *DataDescription // set by the analyzer when AssignIsName
}

type DataDivision struct {
	WorkingStorage []*DataDescription
	Files          []*FileDescription
}

func (*DataDivision) divisionNode()    {}
func (*DataDivision) String() string { return "DataDivision" }

// FileDescription is an FD entry and its record layouts.
type FileDescription struct {
	Name    string
	Records []*DataDescription
	Line    int
	Control *FileControlEntry // set by the analyzer
}

// DataDescription is one data description entry.
type DataDescription struct {
	Level     int
	Name      string
	Anonymous bool // FILLER or unnamed; Name is synthesized by the analyzer
	Type      DataType
	Size      int
	Picture   string
	HasPic    bool
	Comp      bool
	Value     Source // Literal or FigurativeConstant
	Occurs    int
	Redefines string
	IsGroup   bool
	Children  []*DataDescription
	Line      int

	// ObjectClass names the REPOSITORY class of an OBJECT REFERENCE item.
	ObjectClass string

	// Set by the analyzer.
	Parent          *DataDescription
	RedefinesTarget *DataDescription
	Conditions      []*DataDescription // level-88 names bound to this item
	ConditionOf     *DataDescription   // for a level-88 item, the item it tests
	Class           *ClassDefinition
	File            *FileDescription
}

func (d *DataDescription) String() string {
	return fmt.Sprintf("%02d %s %s(%d)", d.Level, d.Name, d.Type, d.Size)
}

// IsCondition reports whether d is a level-88 condition name.
func (d *DataDescription) IsCondition() bool { return d.Level == 88 }

// InArray reports whether d is an OCCURS item or lies inside one.
func (d *DataDescription) InArray() bool {
	for p := d; p != nil; p = p.Parent {
		if p.Occurs > 0 {
			return true
		}
	}
	return false
}

// ArrayRoot returns the nearest enclosing OCCURS item, or nil.
func (d *DataDescription) ArrayRoot() *DataDescription {
	for p := d; p != nil; p = p.Parent {
		if p.Occurs > 0 {
			return p
		}
	}
	return nil
}

// Storage follows REDEFINES links to the item that owns the storage.
func (d *DataDescription) Storage() *DataDescription {
	for d.RedefinesTarget != nil {
		d = d.RedefinesTarget
	}
	return d
}

type ProcedureDivision struct {
	Paragraphs []*Paragraph
}

func (*ProcedureDivision) divisionNode()    {}
func (*ProcedureDivision) String() string { return "ProcedureDivision" }

// Paragraph is a named block of sentences; PERFORM calls it by name.
type Paragraph struct {
	Name       string
	Attributes string
	Sentences  []*Sentence
	Line       int
}

// Sentence wraps exactly one command.
type Sentence struct {
	Command Command
	Line    int
}

//  Sources and expressions

// Source is implemented by every node that yields a value.
type Source interface {
	sourceNode()
	String() string
}

type LiteralKind int

const (
	TextLiteral LiteralKind = iota
	NumberLiteral
	BoolLiteral
)

// Literal is a quoted text, a number, or TRUE/FALSE.
type Literal struct {
	Kind  LiteralKind
	Value string // text without quotes, decimal digits, or TRUE/FALSE
	Line  int
}

func (*Literal) sourceNode() {}
func (l *Literal) String() string {
	if l.Kind == TextLiteral {
		return fmt.Sprintf("%q", l.Value)
	}
	return l.Value
}

type FigurativeKind int

const (
	FigSpaces FigurativeKind = iota
	FigZeros
	FigHighValues
	FigLowValues
	FigQuotes
)

// FigurativeConstant is SPACES, ZEROS, HIGH-VALUES, LOW-VALUES or QUOTES.
type FigurativeConstant struct {
	Kind FigurativeKind
	Line int
}

func (*FigurativeConstant) sourceNode() {}
func (f *FigurativeConstant) String() string {
	return [...]string{"SPACES", "ZEROS", "HIGH-VALUES", "LOW-VALUES", "QUOTES"}[f.Kind]
}

// Text returns the value of the constant repeated to size characters.
func (f *FigurativeConstant) Text(size int) string {
	var c string
	switch f.Kind {
	case FigSpaces:
		c = " "
	case FigZeros:
		c = "0"
	case FigHighValues:
		c = "ÿ"
	case FigLowValues:
		c = "\u0000"
	case FigQuotes:
		c = "\""
	}
	return strings.Repeat(c, size)
}

// IntrinsicFunction is FUNCTION name ( arg ).
type IntrinsicFunction struct {
	Name string
	Arg  Source
	Line int
}

func (*IntrinsicFunction) sourceNode() {}
func (f *IntrinsicFunction) String() string {
	return fmt.Sprintf("FUNCTION %s(%s)", f.Name, f.Arg)
}

// Identifier is a reference to a data item, optionally subscripted or
// reference-modified. Length may be nil for X(start:).
type Identifier struct {
	Name      string
	Subscript *Expr
	Start     *Expr
	Length    *Expr
	Line      int

	// Set by the analyzer: exactly one of Def, Class or Constant.
	Def      *DataDescription
	Class    *ClassDefinition
	Constant *FigurativeConstant
}

func (*Identifier) sourceNode() {}
func (id *Identifier) String() string {
	switch {
	case id.Subscript != nil:
		return fmt.Sprintf("%s(%s)", id.Name, id.Subscript)
	case id.Start != nil && id.Length != nil:
		return fmt.Sprintf("%s(%s:%s)", id.Name, id.Start, id.Length)
	case id.Start != nil:
		return fmt.Sprintf("%s(%s:)", id.Name, id.Start)
	}
	return id.Name
}

// IsSubstring reports whether the identifier carries (start:length).
func (id *Identifier) IsSubstring() bool { return id.Start != nil }

// Expr is an arithmetic expression: Terms joined by + or -.
type Expr struct {
	Terms []*Term
	Ops   []TokenType // len(Ops) == len(Terms)-1
}

func (*Expr) sourceNode() {}
func (e *Expr) String() string {
	var sb strings.Builder
	for i, t := range e.Terms {
		if i > 0 {
			fmt.Fprintf(&sb, " %s ", e.Ops[i-1])
		}
		sb.WriteString(t.String())
	}
	return sb.String()
}

// Simple returns the lone source of an expression without operators.
func (e *Expr) Simple() (Source, bool) {
	if len(e.Terms) != 1 || len(e.Terms[0].Powers) != 1 {
		return nil, false
	}
	pw := e.Terms[0].Powers[0]
	if pw.Sign != 0 || len(pw.Bases) != 1 {
		return nil, false
	}
	b := pw.Bases[0]
	if b.Expr != nil {
		return b.Expr.Simple()
	}
	return b.Source, true
}

// Term is Powers joined by * or /.
type Term struct {
	Powers []*Power
	Ops    []TokenType
}

func (t *Term) String() string {
	var sb strings.Builder
	for i, p := range t.Powers {
		if i > 0 {
			fmt.Fprintf(&sb, " %s ", t.Ops[i-1])
		}
		sb.WriteString(p.String())
	}
	return sb.String()
}

// Power is an optionally signed chain of bases joined by **.
type Power struct {
	Sign  TokenType // 0, PLUS or MINUS
	Bases []*Basis
}

func (p *Power) String() string {
	parts := make([]string, len(p.Bases))
	for i, b := range p.Bases {
		parts[i] = b.String()
	}
	s := strings.Join(parts, " ** ")
	if p.Sign == MINUS {
		s = "-" + s
	}
	return s
}

// Basis is a parenthesised expression or a single source.
type Basis struct {
	Expr   *Expr
	Source Source
}

func (b *Basis) String() string {
	if b.Expr != nil {
		return "(" + b.Expr.String() + ")"
	}
	return b.Source.String()
}

// ExprOf wraps a single source as an expression.
func ExprOf(s Source) *Expr {
	return &Expr{Terms: []*Term{{Powers: []*Power{{Bases: []*Basis{{Source: s}}}}}}}
}

//  Conditions

// Condition is implemented by every boolean node.
type Condition interface {
	conditionNode()
	String() string
}

// BoolCondition is the constant TRUE or FALSE.
type BoolCondition struct {
	Value bool
	Not   bool
}

func (*BoolCondition) conditionNode() {}
func (c *BoolCondition) String() string {
	s := "FALSE"
	if c.Value {
		s = "TRUE"
	}
	if c.Not {
		s = "NOT " + s
	}
	return s
}

// RelationCondition compares two expressions.
type RelationCondition struct {
	Left  *Expr
	Op    TokenType // EQUALS, NOT_EQ, LESS, GREATER, LESS_EQ, GREATER_EQ
	Right *Expr
	Not   bool
	Line  int
}

func (*RelationCondition) conditionNode() {}
func (c *RelationCondition) String() string {
	s := fmt.Sprintf("%s %s %s", c.Left, c.Op, c.Right)
	if c.Not {
		s = "NOT (" + s + ")"
	}
	return s
}

// IdentifierCondition tests a level-88 condition name.
type IdentifierCondition struct {
	Ident *Identifier
	Not   bool
}

func (*IdentifierCondition) conditionNode() {}
func (c *IdentifierCondition) String() string {
	if c.Not {
		return "NOT " + c.Ident.String()
	}
	return c.Ident.String()
}

// Combinator joins a sub-condition to the one before it.
type Combinator int

const (
	CombineNone Combinator = iota
	CombineAnd
	CombineOr
)

func (c Combinator) String() string {
	switch c {
	case CombineAnd:
		return "AND"
	case CombineOr:
		return "OR"
	}
	return ""
}

// CombinedCondition is a chain of sub-conditions. The operator written
// between Parts[i-1] and Parts[i] is stored in Modes[i]; Modes[0] starts as
// CombineNone and is filled in from Modes[1] before emission.
type CombinedCondition struct {
	Parts []Condition
	Modes []Combinator
	Not   bool
}

func (*CombinedCondition) conditionNode() {}
func (c *CombinedCondition) String() string {
	var sb strings.Builder
	if c.Not {
		sb.WriteString("NOT ")
	}
	sb.WriteString("(")
	for i, p := range c.Parts {
		if i > 0 {
			fmt.Fprintf(&sb, " %s ", c.Modes[i])
		}
		sb.WriteString(p.String())
	}
	sb.WriteString(")")
	return sb.String()
}

//  Commands

// Command is implemented by every statement node.
type Command interface {
	commandNode()
	Pos() int
	String() string
}

type DisplayStatement struct {
	Sources     []Source
	NoAdvancing bool
	Line        int
}

func (*DisplayStatement) commandNode() {}
func (s *DisplayStatement) Pos() int   { return s.Line }
func (s *DisplayStatement) String() string {
	return fmt.Sprintf("DISPLAY %v", s.Sources)
}

type AcceptStatement struct {
	Target *Identifier
	Line   int
}

func (*AcceptStatement) commandNode()     {}
func (s *AcceptStatement) Pos() int       { return s.Line }
func (s *AcceptStatement) String() string { return "ACCEPT " + s.Target.String() }

// StringStatement concatenates Sources into Into. A nil Delimiter means
// DELIMITED BY SIZE.
type StringStatement struct {
	Sources   []Source
	Delimiter Source
	Into      *Identifier
	Pointer   *Identifier
	Line      int
}

func (*StringStatement) commandNode() {}
func (s *StringStatement) Pos() int   { return s.Line }
func (s *StringStatement) String() string {
	return fmt.Sprintf("STRING %v INTO %s", s.Sources, s.Into)
}

// Varying is the VARYING counter FROM x BY y phrase.
type Varying struct {
	Counter *Identifier
	From    Source
	By      Source
}

// PerformStatement covers the named, VARYING and in-line forms. Body is
// set for in-line loops; Paragraph for calls.
type PerformStatement struct {
	Paragraph string
	Thru      string
	Until     Condition
	Varying   *Varying
	Body      []*Sentence
	Inline    bool
	Line      int
}

func (*PerformStatement) commandNode() {}
func (s *PerformStatement) Pos() int   { return s.Line }
func (s *PerformStatement) String() string {
	var sb strings.Builder
	sb.WriteString("PERFORM")
	if s.Paragraph != "" {
		sb.WriteString(" " + s.Paragraph)
	}
	if s.Thru != "" {
		sb.WriteString(" THRU " + s.Thru)
	}
	if s.Varying != nil {
		fmt.Fprintf(&sb, " VARYING %s FROM %s BY %s", s.Varying.Counter, s.Varying.From, s.Varying.By)
	}
	if s.Until != nil {
		sb.WriteString(" UNTIL " + s.Until.String())
	}
	return sb.String()
}

type IfStatement struct {
	Cond Condition
	Then []*Sentence
	Else []*Sentence
	Line int
}

func (*IfStatement) commandNode()     {}
func (s *IfStatement) Pos() int       { return s.Line }
func (s *IfStatement) String() string { return "IF " + s.Cond.String() }

type MoveStatement struct {
	Source        Source
	Targets       []*Identifier
	Corresponding bool
	Line          int
}

func (*MoveStatement) commandNode() {}
func (s *MoveStatement) Pos() int   { return s.Line }
func (s *MoveStatement) String() string {
	return fmt.Sprintf("MOVE %s TO %v", s.Source, s.Targets)
}

// ArithmeticClauses are the optional phrases shared by ADD, SUBTRACT,
// MULTIPLY and DIVIDE.
type ArithmeticClauses struct {
	Giving        []*Identifier
	Rounded       bool
	Corresponding bool
	SizeError     []*Sentence
	NotSizeError  []*Sentence
}

type AddStatement struct {
	Operands []Source
	To       []*Identifier
	ArithmeticClauses
	Line int
}

func (*AddStatement) commandNode() {}
func (s *AddStatement) Pos() int   { return s.Line }
func (s *AddStatement) String() string {
	return fmt.Sprintf("ADD %v TO %v GIVING %v", s.Operands, s.To, s.Giving)
}

type SubtractStatement struct {
	Operands []Source
	From     []*Identifier
	ArithmeticClauses
	Line int
}

func (*SubtractStatement) commandNode() {}
func (s *SubtractStatement) Pos() int   { return s.Line }
func (s *SubtractStatement) String() string {
	return fmt.Sprintf("SUBTRACT %v FROM %v GIVING %v", s.Operands, s.From, s.Giving)
}

type MultiplyStatement struct {
	Operand Source
	By      []*Identifier
	ArithmeticClauses
	Line int
}

func (*MultiplyStatement) commandNode() {}
func (s *MultiplyStatement) Pos() int   { return s.Line }
func (s *MultiplyStatement) String() string {
	return fmt.Sprintf("MULTIPLY %s BY %v GIVING %v", s.Operand, s.By, s.Giving)
}

// DivideStatement is DIVIDE a INTO b (b / a) or DIVIDE a BY b (a / b).
type DivideStatement struct {
	Operand   Source
	Into      bool
	Targets   []*Identifier
	Remainder *Identifier
	ArithmeticClauses
	Line int
}

func (*DivideStatement) commandNode() {}
func (s *DivideStatement) Pos() int   { return s.Line }
func (s *DivideStatement) String() string {
	word := "BY"
	if s.Into {
		word = "INTO"
	}
	return fmt.Sprintf("DIVIDE %s %s %v GIVING %v", s.Operand, word, s.Targets, s.Giving)
}

type SetStatement struct {
	Target *Identifier
	Value  Source
	Line   int
}

func (*SetStatement) commandNode() {}
func (s *SetStatement) Pos() int   { return s.Line }
func (s *SetStatement) String() string {
	return fmt.Sprintf("SET %s TO %s", s.Target, s.Value)
}

// InvokeArgument is one USING argument.
type InvokeArgument struct {
	Source      Source
	ByReference bool
}

type InvokeStatement struct {
	Target    *Identifier
	Method    string
	Using     []InvokeArgument
	Returning *Identifier
	Line      int
}

func (*InvokeStatement) commandNode() {}
func (s *InvokeStatement) Pos() int   { return s.Line }
func (s *InvokeStatement) String() string {
	return fmt.Sprintf("INVOKE %s %q", s.Target, s.Method)
}

// ExitStatement is EXIT PROGRAM, or a bare EXIT that does nothing.
type ExitStatement struct {
	Program bool
	Line    int
}

func (*ExitStatement) commandNode() {}
func (s *ExitStatement) Pos() int   { return s.Line }
func (s *ExitStatement) String() string {
	if s.Program {
		return "EXIT PROGRAM"
	}
	return "EXIT"
}

type StopStatement struct {
	Line int
}

func (*StopStatement) commandNode()   {}
func (s *StopStatement) Pos() int     { return s.Line }
func (*StopStatement) String() string { return "STOP RUN" }

type OpenMode int

const (
	OpenInput OpenMode = iota
	OpenOutput
	OpenInputOutput
	OpenExtend
)

// OpenFile is one file named by an OPEN statement.
type OpenFile struct {
	Mode OpenMode
	Name string
	File *FileDescription // set by the analyzer
}

type OpenStatement struct {
	Files []OpenFile
	Line  int
}

func (*OpenStatement) commandNode()     {}
func (s *OpenStatement) Pos() int       { return s.Line }
func (s *OpenStatement) String() string { return fmt.Sprintf("OPEN %v", s.Files) }

type CloseStatement struct {
	Names []string
	Files []*FileDescription // set by the analyzer
	Line  int
}

func (*CloseStatement) commandNode()     {}
func (s *CloseStatement) Pos() int       { return s.Line }
func (s *CloseStatement) String() string { return fmt.Sprintf("CLOSE %v", s.Names) }

type ReadStatement struct {
	Name     string
	Into     *Identifier
	AtEnd    []*Sentence
	NotAtEnd []*Sentence
	File     *FileDescription // set by the analyzer
	Line     int
}

func (*ReadStatement) commandNode()     {}
func (s *ReadStatement) Pos() int       { return s.Line }
func (s *ReadStatement) String() string { return "READ " + s.Name }

// WriteStatement writes a record, optionally FROM another item.
type WriteStatement struct {
	Record *Identifier
	From   *Identifier
	Line   int
}

func (*WriteStatement) commandNode()     {}
func (s *WriteStatement) Pos() int       { return s.Line }
func (s *WriteStatement) String() string { return "WRITE " + s.Record.String() }
