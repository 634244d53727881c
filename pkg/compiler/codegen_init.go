package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"cobolc/pkg/cil"
)

// initialText is the VALUE of an item as text, and whether it has one.
func initialText(d *DataDescription) (string, bool) {
	switch v := d.Value.(type) {
	case *Literal:
		return fitText(v.Value, d.Size), true
	case *FigurativeConstant:
		return v.Text(d.Size), true
	}
	return "", false
}

// initialValues spreads the VALUE of each group over its elementary
// items. An item's own VALUE wins over the group's.
func (g *CodeGen) initialValues() (map[*DataDescription]string, error) {
	out := make(map[*DataDescription]string)
	for _, d := range g.prog.Records {
		if !d.IsGroup || d.InArray() || d.RedefinesTarget != nil {
			continue
		}
		text, ok := initialText(d)
		if !ok {
			continue
		}
		leaves, _, err := g.layoutOf(d)
		if err != nil {
			return nil, err
		}
		fig, _ := d.Value.(*FigurativeConstant)
		for _, l := range leaves {
			if fig != nil && fig.Kind != FigSpaces && g.valueOf(l.d).kind == kindInt {
				// Numeric items take a figurative constant as zero, as MOVE does.
				out[l.d] = strings.Repeat("0", l.d.Size)
				continue
			}
			end := min(l.offset+l.d.Size, len(text))
			if l.offset < end {
				out[l.d] = fitText(text[l.offset:end], l.d.Size)
			}
		}
	}
	for _, d := range g.prog.Records {
		if d.IsGroup || d.IsCondition() {
			continue
		}
		if text, ok := initialText(d); ok {
			out[d] = text
		}
	}
	return out, nil
}

// pushInitial pushes the starting value of an elementary item.
func (g *CodeGen) pushInitial(d *DataDescription, values map[*DataDescription]string) error {
	text, ok := values[d]
	if g.valueOf(d).kind == kindInt {
		n := 0
		if lit, isLit := d.Value.(*Literal); isLit && lit.Kind == NumberLiteral {
			v, err := integerValue(lit)
			if err != nil {
				return err
			}
			n = v
		} else if ok {
			if digits := strings.TrimSpace(text); digits != "" {
				v, err := strconv.Atoi(digits)
				if err != nil {
					return semanticErrorf(d.Line, "initial value %q of %s is not a number", text, displayName(d))
				}
				n = v
			}
		}
		g.b.LoadInt(n)
		return nil
	}
	if !ok {
		text = strings.Repeat(" ", d.Size)
	}
	g.b.Emit("ldstr", cil.Quote(text))
	return nil
}

// holdsData reports whether a group starts out with a non-blank VALUE
// somewhere inside it.
func holdsData(d *DataDescription, values map[*DataDescription]string) bool {
	for _, c := range d.Children {
		if c.IsCondition() || c.RedefinesTarget != nil {
			continue
		}
		if c.IsGroup {
			if holdsData(c, values) {
				return true
			}
			continue
		}
		if text, ok := values[c]; ok && strings.TrimSpace(text) != "" {
			return true
		}
	}
	return false
}

// conditionHolds reports whether a level-88 name is true for the starting
// value of its item.
func conditionHolds(cond *DataDescription, values map[*DataDescription]string) bool {
	item := cond.ConditionOf
	if item == nil || cond.Value == nil {
		return false
	}
	text, ok := values[item]
	if !ok {
		return false
	}
	want, _ := initialText(&DataDescription{Value: cond.Value, Size: item.Size})
	return strings.TrimSpace(text) == strings.TrimSpace(want)
}

func (g *CodeGen) constructor() (*cil.Method, error) {
	g.b = cil.NewBody()
	g.line = 0
	g.b.Emit("ldarg.0")
	g.b.Emit("call", cil.ObjectCtor)

	values, err := g.initialValues()
	if err != nil {
		return nil, err
	}
	for _, d := range g.prog.Records {
		switch {
		case d.RedefinesTarget != nil:
		case d.IsCondition():
			g.b.Emit("ldarg.0")
			if conditionHolds(d, values) {
				g.b.Emit("ldc.i4.1")
			} else {
				g.b.Emit("ldc.i4.0")
			}
			g.b.Emit("stfld", g.fieldRef(d))
		case d.Occurs > 0:
			if err := g.table(d, values); err != nil {
				return nil, err
			}
		case d.InArray():
		case d.IsGroup:
			if !tracksData(d) {
				continue
			}
			g.b.Emit("ldarg.0")
			if holdsData(d, values) {
				g.b.Emit("ldc.i4.1")
			} else {
				g.b.Emit("ldc.i4.0")
			}
			g.b.Emit("stfld", hasDataRef(d))
		case d.ObjectClass != "":
		default:
			g.b.Emit("ldarg.0")
			if err := g.pushInitial(d, values); err != nil {
				return nil, err
			}
			g.b.Emit("stfld", g.fieldRef(d))
		}
	}
	g.b.Emit("ret")

	return &cil.Method{
		Name:     ".ctor",
		Flags:    "public hidebysig specialname rtspecialname instance",
		Return:   "void",
		MaxStack: 16,
		Locals:   append(standardLocals(), cil.Local{Type: "int32", Name: "__cobolIndex"}),
		Body:     g.b,
	}, nil
}

// table allocates an OCCURS array and fills every element:
//
//	i = 0; br test; body: element[i] = initial; i++; test: if i < n goto body
func (g *CodeGen) table(root *DataDescription, values map[*DataDescription]string) error {
	g.b.Emit("ldarg.0")
	g.b.LoadInt(root.Occurs)
	g.b.Emit("newarr", elementType(root))
	g.b.Emit("stfld", tableRef(root))

	leaves, _, err := g.elementLeaves(root)
	if err != nil {
		return err
	}
	var fill []leafAt
	for _, l := range leaves {
		if l.d.ObjectClass != "" {
			continue
		}
		if g.valueOf(l.d).kind == kindInt && l.d.Value == nil {
			continue
		}
		fill = append(fill, l)
	}
	if len(fill) == 0 {
		return nil
	}

	body, test := g.b.NewLabel(), g.b.NewLabel()
	g.b.Emit("ldc.i4.0")
	g.b.Emit("stloc.3")
	g.b.Branch("br", test)
	g.b.Mark(body)
	for _, l := range fill {
		g.b.Emit("ldarg.0")
		g.b.Emit("ldfld", tableRef(root))
		g.b.Emit("ldloc.3")
		g.b.Emit("ldelema", elementType(root))
		if err := g.pushInitial(l.d, values); err != nil {
			return err
		}
		g.b.Emit("stfld", g.fieldRef(l.d))
	}
	g.b.Emit("ldloc.3")
	g.b.Emit("ldc.i4.1")
	g.b.Emit("add")
	g.b.Emit("stloc.3")
	g.b.Mark(test)
	g.b.Emit("ldloc.3")
	g.b.LoadInt(root.Occurs)
	g.b.Branch("blt", body)
	return nil
}

// stringHelperIL copies from, cut at the first delim when delim is not
// null, into to. Offset -1 replaces to; otherwise the text is spliced in
// at the 1-based offset, keeping the length of to. ptr receives the
// position after the copied text.
var stringHelperIL = fmt.Sprintf(`
	ldarg.0
	stloc.1
	ldarg.1
	brfalse CUT
	ldarg.0
	ldarg.1
	callvirt %[1]s
	stloc.0
	ldloc.0
	ldc.i4.0
	blt CUT
	ldarg.0
	ldc.i4.0
	ldloc.0
	callvirt %[2]s
	stloc.1
CUT:
	ldarg.2
	ldind.ref
	stloc.2
	ldarg.3
	ldc.i4.m1
	bne.un SPLICE
	ldarg.2
	ldloc.1
	ldloc.2
	callvirt %[3]s
	callvirt %[4]s
	ldc.i4.0
	ldloc.2
	callvirt %[3]s
	callvirt %[2]s
	stind.ref
	ldarg.s 4
	ldloc.1
	callvirt %[3]s
	ldc.i4.1
	add
	stind.i4
	ret
SPLICE:
	ldarg.3
	ldc.i4.1
	sub
	stloc.0
	ldloc.0
	ldc.i4.0
	blt ADVANCE
	ldloc.0
	ldloc.2
	callvirt %[3]s
	bge ADVANCE
	ldarg.2
	ldloc.2
	ldc.i4.0
	ldloc.0
	callvirt %[2]s
	ldloc.1
	ldloc.2
	ldloc.0
	ldloc.1
	callvirt %[3]s
	add
	ldloc.2
	callvirt %[3]s
	call %[5]s
	callvirt %[6]s
	call %[7]s
	ldc.i4.0
	ldloc.2
	callvirt %[3]s
	callvirt %[2]s
	stind.ref
ADVANCE:
	ldarg.s 4
	ldarg.3
	ldloc.1
	callvirt %[3]s
	add
	stind.i4
	ret
`, cil.StringIndexOf, cil.StringSubstringN, cil.StringLength, cil.StringPadRight,
	cil.MathMin, cil.StringSubstring, cil.StringConcat3)

// hasDataHelperIL reports whether s holds a non-blank character in the n
// characters from position p.
var hasDataHelperIL = fmt.Sprintf(`
	ldarg.1
	ldarg.0
	callvirt %[1]s
	blt SOME
	ldc.i4.0
	ret
SOME:
	ldarg.0
	ldarg.1
	ldarg.2
	ldarg.0
	callvirt %[1]s
	ldarg.1
	sub
	call %[2]s
	callvirt %[3]s
	callvirt %[4]s
	callvirt %[1]s
	ldc.i4.0
	cgt
	ret
`, cil.StringLength, cil.MathMin, cil.StringSubstringN, cil.StringTrim)

// helpers returns the runtime support methods the generated code called.
func (g *CodeGen) helpers() ([]*cil.Method, error) {
	var out []*cil.Method
	if g.usesString {
		body, err := cil.Parse(stringHelperIL)
		if err != nil {
			return nil, internalErrorf(0, "string helper: %v", err)
		}
		out = append(out, &cil.Method{
			Name:     stringHelper,
			Flags:    "private hidebysig static",
			Return:   "void",
			Params:   []string{"string from", "string delim", "string& to", "int32 offset", "int32& ptr"},
			MaxStack: 8,
			Locals: []cil.Local{
				{Type: "int32", Name: "pos"},
				{Type: "string", Name: "piece"},
				{Type: "string", Name: "target"},
			},
			Body: body,
		})
	}
	if g.usesHasData {
		body, err := cil.Parse(hasDataHelperIL)
		if err != nil {
			return nil, internalErrorf(0, "data helper: %v", err)
		}
		out = append(out, &cil.Method{
			Name:     dataHelper,
			Flags:    "private hidebysig static",
			Return:   "bool",
			Params:   []string{"string s", "int32 p", "int32 n"},
			MaxStack: 8,
			Body:     body,
		})
	}
	return out, nil
}
