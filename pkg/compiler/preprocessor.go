package compiler

import (
	"fmt"
	"io/fs"
	"strings"

	"github.com/pkg/errors"
)

// copyExtensions are tried, in order, after the bare copybook name.
var copyExtensions = []string{".cpy", ".CPY", ".cbl", ".CBL"}

// maxCopyDepth bounds nested COPY statements.
const maxCopyDepth = 16

// origin is where a line of expanded source came from. An empty file
// means the program itself.
type origin struct {
	file string
	line int
}

// Expansion is a program with its COPY statements replaced by the text
// of their copybooks.
type Expansion struct {
	Text    string
	origins []origin // indexed by expanded line - 1
}

// Origin maps a line of the expanded text back to the copybook and line
// it came from. Lines of the program itself report an empty file.
func (e *Expansion) Origin(line int) (file string, orig int) {
	if line <= 0 || line > len(e.origins) {
		return "", line
	}
	o := e.origins[line-1]
	return o.file, o.line
}

// Locate rewrites the line of a CompileError raised against the expanded
// text so that it names the original position.
func (e *Expansion) Locate(err error) error {
	ce, ok := AsCompileError(err)
	if !ok || ce.Line <= 0 {
		return err
	}
	file, line := e.Origin(ce.Line)
	ce.Line = line
	if file != "" {
		ce.Msg = fmt.Sprintf("%s (in copybook %s)", ce.Msg, file)
	}
	return err
}

func (e *Expansion) locateDiagnostics(diags []Diagnostic) []Diagnostic {
	for i := range diags {
		file, line := e.Origin(diags[i].Line)
		diags[i].Line = line
		if file != "" {
			diags[i].Msg = fmt.Sprintf("%s (in copybook %s)", diags[i].Msg, file)
		}
	}
	return diags
}

// Preprocess expands every "COPY name." line of src with the copybook
// read from lib. Copybooks may COPY other copybooks; a copybook that
// includes itself is an error. lib may be nil when src has no COPY.
func Preprocess(src string, lib fs.FS) (*Expansion, error) {
	p := &preprocessor{lib: lib, active: make(map[string]bool)}
	var out strings.Builder
	if err := p.expand(&out, src, "", 0); err != nil {
		return nil, err
	}
	text := out.String()
	if !strings.HasSuffix(src, "\n") {
		text = strings.TrimSuffix(text, "\n")
	}
	return &Expansion{Text: text, origins: p.origins}, nil
}

type preprocessor struct {
	lib     fs.FS
	active  map[string]bool // copybooks being expanded
	origins []origin
}

func (p *preprocessor) expand(out *strings.Builder, src, file string, depth int) error {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	lines := strings.Split(strings.TrimSuffix(src, "\n"), "\n")
	for i, raw := range lines {
		name, isCopy, err := copyStatement(raw)
		if err != nil {
			return p.fail(err, file, i+1)
		}
		if !isCopy {
			out.WriteString(raw)
			out.WriteByte('\n')
			p.origins = append(p.origins, origin{file, i + 1})
			continue
		}
		if depth >= maxCopyDepth {
			return p.fail(semanticErrorf(i+1, "COPY %s nested too deeply", name), file, i+1)
		}
		path, text, err := p.read(name)
		if err != nil {
			return p.fail(semanticErrorf(i+1, "%v", err), file, i+1)
		}
		if p.active[path] {
			return p.fail(semanticErrorf(i+1, "copybook %s includes itself", path), file, i+1)
		}
		p.active[path] = true
		err = p.expand(out, text, path, depth+1)
		delete(p.active, path)
		if err != nil {
			return err
		}
	}
	return nil
}

// fail tags an error raised inside a copybook with the copybook's name.
func (p *preprocessor) fail(err error, file string, line int) error {
	if ce, ok := AsCompileError(err); ok {
		ce.Line = line
		if file != "" {
			ce.Msg = fmt.Sprintf("%s (in copybook %s)", ce.Msg, file)
		}
	}
	return err
}

// read finds a copybook by its name, trying the usual extensions.
func (p *preprocessor) read(name string) (string, string, error) {
	if p.lib == nil {
		return "", "", errors.Errorf("copybook %s not found, no copybook directory configured", name)
	}
	candidates := []string{name}
	if !strings.Contains(name, ".") {
		for _, ext := range copyExtensions {
			candidates = append(candidates, name+ext)
		}
	}
	for _, c := range candidates {
		data, err := fs.ReadFile(p.lib, c)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", "", errors.Wrapf(err, "read copybook %s", c)
		}
		return c, string(data), nil
	}
	return "", "", errors.Errorf("copybook %s not found", name)
}

// copyStatement recognises a fixed-format line holding "COPY name." and
// returns the copybook name. Comment lines never match.
func copyStatement(raw string) (string, bool, error) {
	runes := []rune(raw)
	if len(runes) > indicatorCol {
		switch runes[indicatorCol] {
		case ' ', '\t':
		default:
			return "", false, nil
		}
	}
	if len(runes) <= textStartCol {
		return "", false, nil
	}
	text := string(runes[textStartCol:min(len(runes), textEndCol)])
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.EqualFold(fields[0], "COPY") {
		return "", false, nil
	}
	if len(fields) == 1 {
		return "", false, syntaxErrorf(0, "COPY needs a copybook name")
	}
	last := fields[len(fields)-1]
	if !strings.HasSuffix(last, ".") {
		return "", false, syntaxErrorf(0, "COPY statement must end with a period on the same line")
	}
	fields[len(fields)-1] = strings.TrimSuffix(last, ".")
	if fields[len(fields)-1] == "" {
		fields = fields[:len(fields)-1]
	}
	if len(fields) < 2 {
		return "", false, syntaxErrorf(0, "COPY needs a copybook name")
	}
	if len(fields) > 2 {
		if strings.EqualFold(fields[2], "REPLACING") {
			return "", false, notImplemented(0, "COPY REPLACING")
		}
		return "", false, syntaxErrorf(0, "unexpected %q after the copybook name", fields[2])
	}
	name := strings.Trim(fields[1], `"'`)
	if name == "" {
		return "", false, syntaxErrorf(0, "COPY needs a copybook name")
	}
	return name, true, nil
}
