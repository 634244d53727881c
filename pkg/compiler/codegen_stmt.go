package compiler

import (
	"fmt"
	"strings"

	"cobolc/pkg/cil"
)

func (g *CodeGen) sentence(s *Sentence) error {
	g.line = s.Command.Pos()
	g.b.Comment("line %d: %s", g.line, s.Command)
	return g.command(s.Command)
}

func (g *CodeGen) sentences(list []*Sentence) error {
	for _, s := range list {
		if err := g.sentence(s); err != nil {
			return err
		}
	}
	return nil
}

func (g *CodeGen) command(cmd Command) error {
	switch n := cmd.(type) {
	case *DisplayStatement:
		return g.display(n)
	case *AcceptStatement:
		return g.accept(n)
	case *StringStatement:
		return g.stringStatement(n)
	case *PerformStatement:
		return g.perform(n)
	case *IfStatement:
		return g.ifStatement(n)
	case *MoveStatement:
		return g.move(n)
	case *AddStatement:
		return g.add(n)
	case *SubtractStatement:
		return g.subtract(n)
	case *MultiplyStatement:
		return g.multiply(n)
	case *DivideStatement:
		return g.divide(n)
	case *SetStatement:
		return g.set(n)
	case *InvokeStatement:
		return g.invoke(n)
	case *ExitStatement:
		if !n.Program {
			g.b.Emit("nop")
			return nil
		}
		g.exit()
		return nil
	case *StopStatement:
		g.exit()
		return nil
	case *OpenStatement:
		return g.open(n)
	case *CloseStatement:
		return g.close(n)
	case *ReadStatement:
		return g.read(n)
	case *WriteStatement:
		return g.write(n)
	}
	return notImplemented(cmd.Pos(), cmd.String())
}

func (g *CodeGen) exit() {
	g.b.Emit("ldc.i4.0")
	g.b.Emit("call", cil.EnvironmentExit)
}

//  DISPLAY

// formatItem is one argument of a composite format string. Width 0 means
// the value is shown as is.
type formatItem struct {
	width int
	emit  func() (valueType, error)
}

// formatItems expands the sources of DISPLAY and WRITE: group items
// become one argument per elementary item, padded to its size.
func (g *CodeGen) formatItems(sources []Source) ([]formatItem, error) {
	var items []formatItem
	for _, s := range sources {
		id, ok := s.(*Identifier)
		if !ok || id.Def == nil || id.IsSubstring() || id.Def.IsCondition() {
			items = append(items, formatItem{emit: func() (valueType, error) { return g.source(s) }})
			continue
		}
		r := refOf(id)
		if !r.d.IsGroup {
			items = append(items, formatItem{width: r.d.Size, emit: func() (valueType, error) { return g.load(r) }})
			continue
		}
		leaves, _, err := g.layoutOf(r.d)
		if err != nil {
			return nil, err
		}
		for _, l := range leaves {
			lr := ref{l.d, r.sub}
			items = append(items, formatItem{width: l.d.Size, emit: func() (valueType, error) { return g.load(lr) }})
		}
	}
	return items, nil
}

// formatArgs pushes a composite format string and its object array.
func (g *CodeGen) formatArgs(items []formatItem) error {
	var format strings.Builder
	for i, it := range items {
		if it.width > 0 {
			fmt.Fprintf(&format, "{%d,-%d}", i, it.width)
		} else {
			fmt.Fprintf(&format, "{%d}", i)
		}
	}
	g.b.Emit("ldstr", cil.Quote(format.String()))
	g.b.LoadInt(len(items))
	g.b.Emit("newarr", cil.ObjectType)
	for i, it := range items {
		g.b.Emit("dup")
		g.b.LoadInt(i)
		t, err := it.emit()
		if err != nil {
			return err
		}
		g.box(t)
		g.b.Emit("stelem.ref")
	}
	return nil
}

func (g *CodeGen) display(s *DisplayStatement) error {
	items, err := g.formatItems(s.Sources)
	if err != nil {
		return err
	}
	if err := g.formatArgs(items); err != nil {
		return err
	}
	if s.NoAdvancing {
		g.b.Emit("call", cil.ConsoleWrite)
	} else {
		g.b.Emit("call", cil.ConsoleWriteLn)
	}
	return nil
}

func (g *CodeGen) accept(s *AcceptStatement) error {
	if s.Target.Def == nil {
		return semanticErrorf(s.Line, "cannot ACCEPT into %s", s.Target.Name)
	}
	g.b.Emit("call", cil.ConsoleReadLine)
	g.b.Emit("stloc.1")
	return g.store(refOf(s.Target), func() (valueType, error) {
		g.b.Emit("ldloc.1")
		return stringValue, nil
	})
}

//  Arithmetic

// targetOf checks that an arithmetic receiving item is a data item.
func (g *CodeGen) targetOf(id *Identifier) (ref, error) {
	if id.Def == nil || id.Def.IsCondition() {
		return ref{}, semanticErrorf(g.line, "%s cannot receive an arithmetic result", id.Name)
	}
	return refOf(id), nil
}

// sum pushes the integer sum of first followed by rest.
func (g *CodeGen) sum(first []Source, rest []Source) error {
	all := append(append([]Source{}, first...), rest...)
	for i, s := range all {
		if err := g.intSource(s); err != nil {
			return err
		}
		if i > 0 {
			g.b.Emit("add")
		}
	}
	return nil
}

func sources(ids []*Identifier) []Source {
	out := make([]Source, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

// assign stores the integer computed by value into every target.
func (g *CodeGen) assign(targets []*Identifier, value func(target *Identifier) error) error {
	for _, id := range targets {
		r, err := g.targetOf(id)
		if err != nil {
			return err
		}
		err = g.store(r, func() (valueType, error) {
			return intValue, value(id)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (g *CodeGen) checkClauses(c *ArithmeticClauses) error {
	if c.Corresponding {
		return notImplemented(g.line, "CORRESPONDING arithmetic")
	}
	return nil
}

func (g *CodeGen) add(s *AddStatement) error {
	if err := g.checkClauses(&s.ArithmeticClauses); err != nil {
		return err
	}
	if len(s.Giving) > 0 {
		return g.assign(s.Giving, func(*Identifier) error {
			return g.sum(sources(s.To), s.Operands)
		})
	}
	return g.assign(s.To, func(t *Identifier) error {
		return g.sum([]Source{t}, s.Operands)
	})
}

func (g *CodeGen) subtract(s *SubtractStatement) error {
	if err := g.checkClauses(&s.ArithmeticClauses); err != nil {
		return err
	}
	minus := func(from Source) error {
		if err := g.intSource(from); err != nil {
			return err
		}
		for _, op := range s.Operands {
			if err := g.intSource(op); err != nil {
				return err
			}
			g.b.Emit("sub")
		}
		return nil
	}
	if len(s.Giving) > 0 {
		if len(s.From) != 1 {
			return semanticErrorf(s.Line, "SUBTRACT GIVING needs exactly one FROM item")
		}
		return g.assign(s.Giving, func(*Identifier) error { return minus(s.From[0]) })
	}
	return g.assign(s.From, func(t *Identifier) error { return minus(t) })
}

func (g *CodeGen) multiply(s *MultiplyStatement) error {
	if err := g.checkClauses(&s.ArithmeticClauses); err != nil {
		return err
	}
	times := func(by Source) error {
		if err := g.intSource(s.Operand); err != nil {
			return err
		}
		if err := g.intSource(by); err != nil {
			return err
		}
		g.b.Emit("mul")
		return nil
	}
	if len(s.Giving) > 0 {
		if len(s.By) != 1 {
			return semanticErrorf(s.Line, "MULTIPLY GIVING needs exactly one BY item")
		}
		return g.assign(s.Giving, func(*Identifier) error { return times(s.By[0]) })
	}
	return g.assign(s.By, func(t *Identifier) error { return times(t) })
}

func (g *CodeGen) divide(s *DivideStatement) error {
	if err := g.checkClauses(&s.ArithmeticClauses); err != nil {
		return err
	}
	// DIVIDE a INTO b is b / a; DIVIDE a BY b is a / b.
	quotient := func(other Source, op string) error {
		dividend, divisor := other, s.Operand
		if !s.Into {
			dividend, divisor = s.Operand, other
		}
		if err := g.intSource(dividend); err != nil {
			return err
		}
		if err := g.intSource(divisor); err != nil {
			return err
		}
		g.b.Emit(op)
		return nil
	}
	if len(s.Giving) == 0 {
		if !s.Into {
			return semanticErrorf(s.Line, "DIVIDE BY needs GIVING")
		}
		if s.Remainder != nil {
			return semanticErrorf(s.Line, "REMAINDER needs GIVING")
		}
		return g.assign(s.Targets, func(t *Identifier) error { return quotient(t, "div") })
	}
	if len(s.Targets) != 1 {
		word := "BY"
		if s.Into {
			word = "INTO"
		}
		return semanticErrorf(s.Line, "DIVIDE GIVING needs exactly one %s item", word)
	}
	if err := g.assign(s.Giving, func(*Identifier) error { return quotient(s.Targets[0], "div") }); err != nil {
		return err
	}
	if s.Remainder != nil {
		return g.assign([]*Identifier{s.Remainder}, func(*Identifier) error { return quotient(s.Targets[0], "rem") })
	}
	return nil
}

func (g *CodeGen) set(s *SetStatement) error {
	if s.Target.Def == nil {
		return semanticErrorf(s.Line, "cannot SET %s", s.Target.Name)
	}
	if s.Target.Def.IsCondition() {
		g.b.Emit("ldarg.0")
		if lit, ok := s.Value.(*Literal); ok && lit.Value == "TRUE" {
			g.b.Emit("ldc.i4.1")
		} else {
			g.b.Emit("ldc.i4.0")
		}
		g.b.Emit("stfld", g.fieldRef(s.Target.Def))
		return nil
	}
	return g.store(refOf(s.Target), func() (valueType, error) { return g.source(s.Value) })
}

//  Control flow

// ifStatement lays out the branches before the condition:
//
//	br cond; then; br end; [else; br end;] cond: test; end:
func (g *CodeGen) ifStatement(s *IfStatement) error {
	condLabel, thenLabel, endLabel := g.b.NewLabel(), g.b.NewLabel(), g.b.NewLabel()
	elseLabel := endLabel

	g.b.Branch("br", condLabel)
	g.b.Mark(thenLabel)
	if err := g.sentences(s.Then); err != nil {
		return err
	}
	g.b.Branch("br", endLabel)
	if len(s.Else) > 0 {
		elseLabel = g.b.NewLabel()
		g.b.Mark(elseLabel)
		if err := g.sentences(s.Else); err != nil {
			return err
		}
		g.b.Branch("br", endLabel)
	}
	g.b.Mark(condLabel)
	g.line = s.Line
	if err := g.condition(s.Cond, thenLabel, elseLabel); err != nil {
		return err
	}
	g.b.Mark(endLabel)
	return nil
}

// calls emits the paragraph calls of a named PERFORM.
func (g *CodeGen) calls(s *PerformStatement) error {
	paragraphs := g.prog.Procedure.Paragraphs
	targets := performTargets(s, paragraphs)
	if len(targets) == 0 {
		return semanticErrorf(s.Line, "paragraph %s not found", s.Paragraph)
	}
	for _, i := range targets {
		g.b.Emit("ldarg.0")
		g.b.Emitf("call", "instance void %s::%s()", programClass, mapName(paragraphs[i].Name))
	}
	return nil
}

func (g *CodeGen) perform(s *PerformStatement) error {
	body := func() error {
		if s.Paragraph != "" {
			return g.calls(s)
		}
		return g.sentences(s.Body)
	}
	if s.Varying != nil {
		return g.varying(s, body)
	}
	if s.Until == nil {
		return body()
	}

	testLabel, bodyLabel, endLabel := g.b.NewLabel(), g.b.NewLabel(), g.b.NewLabel()
	g.b.Branch("br", testLabel)
	g.b.Mark(bodyLabel)
	if err := body(); err != nil {
		return err
	}
	g.b.Mark(testLabel)
	g.line = s.Line
	if err := g.condition(s.Until, endLabel, bodyLabel); err != nil {
		return err
	}
	g.b.Mark(endLabel)
	return nil
}

// varying starts the counter one step before FROM so that the step in
// front of the test brings it to FROM for the first test.
func (g *CodeGen) varying(s *PerformStatement, body func() error) error {
	v := s.Varying
	ctr, err := g.targetOf(v.Counter)
	if err != nil {
		return err
	}
	step := func(op string) error {
		return g.store(ctr, func() (valueType, error) {
			t, err := g.load(ctr)
			if err != nil {
				return t, err
			}
			if err := g.convert(t, intValue); err != nil {
				return t, err
			}
			if err := g.intSource(v.By); err != nil {
				return t, err
			}
			g.b.Emit(op)
			return intValue, nil
		})
	}

	if err := g.store(ctr, func() (valueType, error) { return g.source(v.From) }); err != nil {
		return err
	}
	if err := step("sub"); err != nil {
		return err
	}
	stepLabel, bodyLabel, endLabel := g.b.NewLabel(), g.b.NewLabel(), g.b.NewLabel()
	g.b.Branch("br", stepLabel)
	g.b.Mark(bodyLabel)
	if err := body(); err != nil {
		return err
	}
	g.b.Mark(stepLabel)
	g.line = s.Line
	if err := step("add"); err != nil {
		return err
	}
	if s.Until == nil {
		return semanticErrorf(s.Line, "PERFORM VARYING needs UNTIL")
	}
	if err := g.condition(s.Until, endLabel, bodyLabel); err != nil {
		return err
	}
	g.b.Mark(endLabel)
	return nil
}
