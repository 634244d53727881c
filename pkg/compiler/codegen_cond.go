package compiler

import (
	"cobolc/pkg/cil"
)

// operandClass decides how a relation is compared. Operands are
// classified before any code is emitted.
type operandClass int

const (
	numericOperand operandClass = iota
	textualOperand
	figurativeOperand
)

func (g *CodeGen) classify(e *Expr) operandClass {
	s, ok := e.Simple()
	if !ok {
		return numericOperand
	}
	switch n := s.(type) {
	case *Literal:
		if n.Kind == TextLiteral {
			return textualOperand
		}
		return numericOperand
	case *FigurativeConstant:
		return figurativeOperand
	case *Identifier:
		switch {
		case n.Constant != nil:
			return figurativeOperand
		case n.Def == nil:
			return textualOperand
		case n.Def.IsCondition():
			return numericOperand
		case n.IsSubstring():
			return textualOperand
		}
		d := n.Def.Storage()
		if !d.IsGroup && d.Type == TypeInteger {
			return numericOperand
		}
	}
	return textualOperand
}

func figurativeOf(e *Expr) (*FigurativeConstant, bool) {
	s, ok := e.Simple()
	if !ok {
		return nil, false
	}
	switch n := s.(type) {
	case *FigurativeConstant:
		return n, true
	case *Identifier:
		if n.Constant != nil {
			return n.Constant, true
		}
	}
	return nil, false
}

// elementaryOf returns the data item an operand names, unless it is
// reference-modified.
func elementaryOf(e *Expr) (*Identifier, bool) {
	s, ok := e.Simple()
	if !ok {
		return nil, false
	}
	id, ok := s.(*Identifier)
	if !ok || id.Def == nil || id.IsSubstring() || id.Def.IsCondition() {
		return nil, false
	}
	return id, true
}

var signedBranch = map[TokenType]string{
	EQUALS:     "beq",
	NOT_EQ:     "bne.un",
	LESS:       "blt",
	GREATER:    "bgt",
	LESS_EQ:    "ble",
	GREATER_EQ: "bge",
}

// mirror returns the operator that holds after swapping the operands.
func mirror(op TokenType) TokenType {
	switch op {
	case LESS:
		return GREATER
	case GREATER:
		return LESS
	case LESS_EQ:
		return GREATER_EQ
	case GREATER_EQ:
		return LESS_EQ
	}
	return op
}

// condition emits code that branches to t when c holds and to f
// otherwise. Control never falls through.
func (g *CodeGen) condition(c Condition, t, f string) error {
	switch n := c.(type) {
	case *BoolCondition:
		if n.Value != n.Not {
			g.b.Branch("br", t)
		} else {
			g.b.Branch("br", f)
		}
		return nil
	case *IdentifierCondition:
		if n.Not {
			t, f = f, t
		}
		id := n.Ident
		if id.Def == nil || !id.Def.IsCondition() {
			return semanticErrorf(id.Line, "%s is not a condition name", id.Name)
		}
		g.b.Emit("ldarg.0")
		g.b.Emit("ldfld", g.fieldRef(id.Def))
		g.b.Branch("brtrue", t)
		g.b.Branch("br", f)
		return nil
	case *RelationCondition:
		if n.Not {
			t, f = f, t
		}
		if n.Line > 0 {
			g.line = n.Line
		}
		return g.relation(n, t, f)
	case *CombinedCondition:
		if n.Not {
			t, f = f, t
		}
		propagateModes(n)
		return g.chain(n.Parts, n.Modes, t, f)
	}
	return internalErrorf(g.line, "unexpected condition %T", c)
}

// propagateModes copies the first written combinator onto the leading
// sub-condition, which the parser leaves without one.
func propagateModes(c *CombinedCondition) {
	if len(c.Modes) > 1 && c.Modes[0] == CombineNone {
		c.Modes[0] = c.Modes[1]
	}
}

// chain evaluates ((c1 op2 c2) op3 c3) ... left to right with short
// circuits. Under AND a failing prefix jumps to f; under OR a holding
// prefix jumps to t.
func (g *CodeGen) chain(parts []Condition, modes []Combinator, t, f string) error {
	n := len(parts)
	if n == 1 {
		return g.condition(parts[0], t, f)
	}
	next := g.b.NewLabel()
	var err error
	if modes[n-1] == CombineOr {
		err = g.chain(parts[:n-1], modes[:n-1], t, next)
	} else {
		err = g.chain(parts[:n-1], modes[:n-1], next, f)
	}
	if err != nil {
		return err
	}
	g.b.Mark(next)
	return g.condition(parts[n-1], t, f)
}

func (g *CodeGen) relation(c *RelationCondition, t, f string) error {
	lc, rc := g.classify(c.Left), g.classify(c.Right)
	switch {
	case lc == figurativeOperand && rc == figurativeOperand:
		return semanticErrorf(g.line, "cannot compare two figurative constants")
	case rc == figurativeOperand:
		fig, _ := figurativeOf(c.Right)
		return g.figurativeRelation(c.Left, lc, c.Op, fig, t, f)
	case lc == figurativeOperand:
		fig, _ := figurativeOf(c.Left)
		return g.figurativeRelation(c.Right, rc, mirror(c.Op), fig, t, f)
	case lc == numericOperand && rc == numericOperand:
		if err := g.intExpr(c.Left); err != nil {
			return err
		}
		if err := g.intExpr(c.Right); err != nil {
			return err
		}
		g.b.Branch(signedBranch[c.Op], t)
		g.b.Branch("br", f)
		return nil
	}
	if err := g.textOperand(c.Left, c.Right); err != nil {
		return err
	}
	if err := g.textOperand(c.Right, c.Left); err != nil {
		return err
	}
	return g.compareStrings(c.Op, t, f)
}

// textOperand pushes e as a string. A text literal compared with a data
// item is padded to the item's size, as fixed-size fields are.
func (g *CodeGen) textOperand(e, other *Expr) error {
	if s, ok := e.Simple(); ok {
		if lit, ok := s.(*Literal); ok && lit.Kind == TextLiteral {
			text := lit.Value
			if other == nil {
				g.b.Emit("ldstr", cil.Quote(text))
				return nil
			}
			if id, ok := elementaryOf(other); ok && len(text) < id.Def.Storage().Size {
				text = fitText(text, id.Def.Storage().Size)
			}
			g.b.Emit("ldstr", cil.Quote(text))
			return nil
		}
	}
	v, err := g.exprValue(e)
	if err != nil {
		return err
	}
	return g.convert(v, stringValue)
}

// compareStrings branches on two strings on the stack.
func (g *CodeGen) compareStrings(op TokenType, t, f string) error {
	switch op {
	case EQUALS:
		g.b.Emit("call", cil.StringEquality)
		g.b.Branch("brtrue", t)
	case NOT_EQ:
		g.b.Emit("call", cil.StringEquality)
		g.b.Branch("brfalse", t)
	default:
		g.b.Emit("call", cil.StringCompareOrd)
		g.b.Emit("ldc.i4.0")
		g.b.Branch(signedBranch[op], t)
	}
	g.b.Branch("br", f)
	return nil
}

// figurativeRelation compares operand e, of class ec, with a figurative
// constant: SPACES against a group tests its data flag, SPACES against a
// text item ignores padding, and ZERO against a number compares with 0.
func (g *CodeGen) figurativeRelation(e *Expr, ec operandClass, op TokenType, fig *FigurativeConstant, t, f string) error {
	equality := op == EQUALS || op == NOT_EQ
	id, isItem := elementaryOf(e)

	if ec == numericOperand {
		switch fig.Kind {
		case FigZeros, FigSpaces, FigLowValues:
		default:
			return semanticErrorf(g.line, "%s cannot be compared with a numeric item", fig)
		}
		if err := g.intExpr(e); err != nil {
			return err
		}
		g.b.Emit("ldc.i4.0")
		g.b.Branch(signedBranch[op], t)
		g.b.Branch("br", f)
		return nil
	}

	if fig.Kind == FigSpaces && equality {
		if isItem && tracksData(id.Def.Storage()) {
			g.b.Emit("ldarg.0")
			g.b.Emit("ldfld", hasDataRef(id.Def.Storage()))
			if op == EQUALS {
				g.b.Branch("brfalse", t)
			} else {
				g.b.Branch("brtrue", t)
			}
			g.b.Branch("br", f)
			return nil
		}
		if err := g.textOperand(e, nil); err != nil {
			return err
		}
		g.b.Emit("callvirt", cil.StringTrim)
		g.b.Emit("ldstr", cil.Quote(""))
		return g.compareStrings(op, t, f)
	}

	size := 1
	if isItem {
		size = id.Def.Storage().Size
	}
	if err := g.textOperand(e, nil); err != nil {
		return err
	}
	g.b.Emit("ldstr", cil.Quote(fig.Text(size)))
	return g.compareStrings(op, t, f)
}
