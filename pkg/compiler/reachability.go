package compiler

import "strings"

// walkCommands calls fn for every command in sentences, including the
// commands nested inside IF branches, in-line PERFORM bodies, AT END
// lists and SIZE ERROR lists. It stops at the first error.
func walkCommands(sentences []*Sentence, fn func(Command) error) error {
	for _, s := range sentences {
		if err := fn(s.Command); err != nil {
			return err
		}
		for _, nested := range nestedSentences(s.Command) {
			if err := walkCommands(nested, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

func nestedSentences(cmd Command) [][]*Sentence {
	switch n := cmd.(type) {
	case *IfStatement:
		return [][]*Sentence{n.Then, n.Else}
	case *PerformStatement:
		return [][]*Sentence{n.Body}
	case *ReadStatement:
		return [][]*Sentence{n.AtEnd, n.NotAtEnd}
	case *AddStatement:
		return [][]*Sentence{n.SizeError, n.NotSizeError}
	case *SubtractStatement:
		return [][]*Sentence{n.SizeError, n.NotSizeError}
	case *MultiplyStatement:
		return [][]*Sentence{n.SizeError, n.NotSizeError}
	case *DivideStatement:
		return [][]*Sentence{n.SizeError, n.NotSizeError}
	}
	return nil
}

// performTargets returns the indexes of the paragraphs a PERFORM calls:
// the named paragraph, or every paragraph from it through the THRU one.
func performTargets(p *PerformStatement, paragraphs []*Paragraph) []int {
	if p.Paragraph == "" {
		return nil
	}
	start, end := -1, -1
	for i, para := range paragraphs {
		if strings.EqualFold(para.Name, p.Paragraph) && start < 0 {
			start = i
		}
		if p.Thru != "" && strings.EqualFold(para.Name, p.Thru) && end < 0 {
			end = i
		}
	}
	if start < 0 {
		return nil
	}
	if end < start {
		end = start
	}
	out := make([]int, 0, end-start+1)
	for i := start; i <= end; i++ {
		out = append(out, i)
	}
	return out
}

// FindUnreachable reports every paragraph that no chain of PERFORMs
// starting at the first paragraph can reach. Only the first paragraph is
// entered from main, so the others run only when performed.
func FindUnreachable(prog *Program) []Diagnostic {
	if prog.Procedure == nil || len(prog.Procedure.Paragraphs) == 0 {
		return nil
	}
	paragraphs := prog.Procedure.Paragraphs
	reachable := make([]bool, len(paragraphs))
	worklist := []int{0}
	reachable[0] = true

	for len(worklist) > 0 {
		curr := worklist[0]
		worklist = worklist[1:]

		walkCommands(paragraphs[curr].Sentences, func(cmd Command) error {
			if p, ok := cmd.(*PerformStatement); ok {
				for _, t := range performTargets(p, paragraphs) {
					if !reachable[t] {
						reachable[t] = true
						worklist = append(worklist, t)
					}
				}
			}
			return nil
		})
	}

	var diags []Diagnostic
	for i, para := range paragraphs {
		if !reachable[i] {
			diags = append(diags, Diagnostic{
				Severity: Warning,
				Line:     para.Line,
				Msg:      "paragraph " + para.Name + " is never performed",
			})
		}
	}
	return diags
}
