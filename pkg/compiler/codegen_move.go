package compiler

import (
	"fmt"

	"cobolc/pkg/cil"
)

func (g *CodeGen) move(s *MoveStatement) error {
	if s.Corresponding {
		return notImplemented(s.Line, "MOVE CORRESPONDING")
	}
	for _, target := range s.Targets {
		if target.Def == nil {
			return semanticErrorf(s.Line, "cannot MOVE to %s", target.Name)
		}
		if target.Def.IsCondition() {
			return semanticErrorf(s.Line, "cannot MOVE to condition name %s; use SET", target.Name)
		}
		if err := g.moveTo(s.Source, target); err != nil {
			return err
		}
	}
	return nil
}

func (g *CodeGen) moveTo(src Source, target *Identifier) error {
	if target.IsSubstring() {
		return g.moveToSubstring(src, target)
	}
	dst := refOf(target)

	if fig, ok := sourceFigurative(src); ok {
		return g.fill(dst, fig)
	}
	if id, ok := src.(*Identifier); ok && id.Def != nil && !id.IsSubstring() && !id.Def.IsCondition() {
		from := refOf(id)
		if from.d.IsGroup && dst.d.IsGroup {
			return g.moveGroup(from, dst)
		}
	}
	return g.moveValue(src, dst)
}

func sourceFigurative(src Source) (*FigurativeConstant, bool) {
	switch n := src.(type) {
	case *FigurativeConstant:
		return n, true
	case *Identifier:
		if n.Constant != nil {
			return n.Constant, true
		}
	}
	return nil, false
}

// moveValue stores one value, fitting text to the size of a text item.
func (g *CodeGen) moveValue(src Source, dst ref) error {
	text := !dst.d.IsGroup && g.valueOf(dst.d).kind == kindString
	if lit, ok := src.(*Literal); ok && lit.Kind == TextLiteral && text {
		return g.store(dst, func() (valueType, error) {
			g.b.Emit("ldstr", cil.Quote(fitText(lit.Value, dst.d.Size)))
			return stringValue, nil
		})
	}
	return g.store(dst, func() (valueType, error) {
		t, err := g.source(src)
		if err != nil || !text {
			return t, err
		}
		if t.kind == kindObject {
			return t, nil
		}
		if id, ok := src.(*Identifier); ok && t.kind == kindString && id.Def != nil &&
			!id.IsSubstring() && id.Def.Storage().Size == dst.d.Size {
			return t, nil
		}
		if err := g.convert(t, stringValue); err != nil {
			return t, err
		}
		g.fit(dst.d.Size)
		return stringValue, nil
	})
}

// fill moves a figurative constant: every elementary item of a group,
// or the item itself, is set to the constant repeated to its size. A
// numeric item receives 0.
func (g *CodeGen) fill(dst ref, fig *FigurativeConstant) error {
	leaves := []leafAt{{dst.d, 0}}
	var groups []leafAt
	if dst.d.IsGroup {
		var err error
		if leaves, groups, err = g.layoutOf(dst.d); err != nil {
			return err
		}
	}
	for _, l := range leaves {
		r := ref{l.d, dst.sub}
		if err := g.pushOwner(r); err != nil {
			return err
		}
		if g.valueOf(l.d).kind == kindInt {
			g.b.Emit("ldc.i4.0")
		} else if g.valueOf(l.d).kind == kindString {
			g.b.Emit("ldstr", cil.Quote(fig.Text(l.d.Size)))
		} else {
			return semanticErrorf(g.line, "cannot MOVE %s to %s", fig, l.d.Name)
		}
		g.b.Emit("stfld", g.fieldRef(l.d))
	}
	holds := 1
	if fig.Kind == FigSpaces {
		holds = 0
	}
	for _, grp := range groups {
		if tracksData(grp.d) {
			g.b.Emit("ldarg.0")
			g.b.LoadInt(holds)
			g.b.Emit("stfld", hasDataRef(grp.d))
		}
	}
	if holds == 1 {
		g.markData(dst.d)
	}
	return nil
}

// moveGroup pairs the children of two groups by position and moves each
// pair. Children without a partner are left alone.
func (g *CodeGen) moveGroup(from, dst ref) error {
	n := min(len(from.d.Children), len(dst.d.Children))
	for i := 0; i < n; i++ {
		fc, dc := from.d.Children[i], dst.d.Children[i]
		if fc.Occurs > 0 || dc.Occurs > 0 {
			return notImplemented(g.line, "group MOVE involving the table "+fc.Name)
		}
		fr, dr := ref{fc.Storage(), from.sub}, ref{dc.Storage(), dst.sub}
		if fr.d.IsGroup && dr.d.IsGroup {
			if err := g.moveGroup(fr, dr); err != nil {
				return err
			}
			continue
		}
		err := g.store(dr, func() (valueType, error) {
			t, err := g.load(fr)
			if err != nil {
				return t, err
			}
			if g.valueOf(dr.d).kind == kindString && !dr.d.IsGroup && fr.d.Size != dr.d.Size {
				if err := g.convert(t, stringValue); err != nil {
					return t, err
				}
				g.fit(dr.d.Size)
				return stringValue, nil
			}
			return t, nil
		})
		if err != nil {
			return err
		}
	}
	if tracksData(from.d) && tracksData(dst.d) {
		g.b.Emit("ldarg.0")
		g.b.Emit("ldarg.0")
		g.b.Emit("ldfld", hasDataRef(from.d))
		g.b.Emit("stfld", hasDataRef(dst.d))
	}
	return nil
}

func (g *CodeGen) stringHelperCall() string {
	g.usesString = true
	return fmt.Sprintf("void %s::%s(string, string, string&, int32, int32&)", programClass, stringHelper)
}

// itemAddress pushes the address of an elementary text item.
func (g *CodeGen) itemAddress(id *Identifier, want valueKind) error {
	if id.Def == nil || id.Def.IsCondition() {
		return semanticErrorf(g.line, "%s is not a data item", id.Name)
	}
	r := refOf(id)
	if r.d.IsGroup || g.valueOf(r.d).kind != want {
		kind := "alphanumeric"
		if want == kindInt {
			kind = "numeric"
		}
		return semanticErrorf(g.line, "%s must be an elementary %s item", id.Name, kind)
	}
	if err := g.pushOwner(r); err != nil {
		return err
	}
	g.b.Emit("ldflda", g.fieldRef(r.d))
	return nil
}

// moveToSubstring splices the source into target(start:length) through
// the string helper.
func (g *CodeGen) moveToSubstring(src Source, target *Identifier) error {
	t, err := g.source(src)
	if err != nil {
		return err
	}
	if err := g.convert(t, stringValue); err != nil {
		return err
	}
	if target.Length != nil {
		if err := g.intExpr(target.Length); err != nil {
			return err
		}
		g.b.Emit("callvirt", cil.StringPadRight)
		g.b.Emit("ldc.i4.0")
		if err := g.intExpr(target.Length); err != nil {
			return err
		}
		g.b.Emit("callvirt", cil.StringSubstringN)
	}
	g.b.Emit("ldnull")
	if err := g.itemAddress(target, kindString); err != nil {
		return err
	}
	if err := g.intExpr(target.Start); err != nil {
		return err
	}
	g.b.Emit("ldloca.s", "__cobolIntTemp")
	g.b.Emit("call", g.stringHelperCall())
	g.markData(target.Def.Storage())
	return nil
}

// stringStatement appends each source, cut at the delimiter, to the INTO
// item. The first piece starts at the POINTER value, or replaces the item
// when there is no POINTER; each later piece starts where the previous
// one ended.
func (g *CodeGen) stringStatement(s *StringStatement) error {
	for i, src := range s.Sources {
		t, err := g.source(src)
		if err != nil {
			return err
		}
		if err := g.convert(t, stringValue); err != nil {
			return err
		}
		if s.Delimiter == nil {
			g.b.Emit("ldnull")
		} else {
			dt, err := g.source(s.Delimiter)
			if err != nil {
				return err
			}
			if err := g.convert(dt, stringValue); err != nil {
				return err
			}
		}
		if err := g.itemAddress(s.Into, kindString); err != nil {
			return err
		}

		switch {
		case s.Pointer != nil:
			if _, err := g.load(refOf(s.Pointer)); err != nil {
				return err
			}
		case i == 0:
			g.b.Emit("ldc.i4.m1")
		default:
			g.b.Emit("ldloc.2")
		}
		if s.Pointer != nil {
			if err := g.itemAddress(s.Pointer, kindInt); err != nil {
				return err
			}
		} else {
			g.b.Emit("ldloca.s", "__cobolIntTemp")
		}
		g.b.Emit("call", g.stringHelperCall())
	}
	g.markData(s.Into.Def.Storage())
	return nil
}
