package compiler

import (
	"io/fs"
	"log/slog"
	"strings"

	"github.com/pkg/errors"

	"cobolc/pkg/catalog"
	"cobolc/pkg/cil"
)

// Options carries the configuration of one compilation.
type Options struct {
	// AssemblyName names the emitted assembly. Empty means the PROGRAM-ID.
	AssemblyName string
	// Catalog answers type questions. Nil means the built-in mscorlib subset.
	Catalog catalog.Catalog
	Logger  *slog.Logger
	// Copybooks is searched for the targets of COPY statements.
	Copybooks fs.FS
}

// Result is everything a successful compilation produces.
type Result struct {
	Program     *Program
	Module      *cil.Module
	IL          string
	Diagnostics []Diagnostic
}

// Compile runs the whole pipeline on one source file. A failing stage
// returns its *CompileError wrapped with the stage name; errors.Cause
// recovers it.
func Compile(src string, opts Options) (*Result, error) {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	cat := opts.Catalog
	if cat == nil {
		cat = catalog.NewMemory()
	}

	exp, err := Preprocess(src, opts.Copybooks)
	if err != nil {
		return nil, errors.Wrap(err, "copy")
	}
	text := exp.Text
	locate := func(err error) error { return exp.Locate(withSnippet(err, text)) }

	tokens, err := Lex(text)
	if err != nil {
		return nil, errors.Wrap(locate(err), "lex")
	}
	log.Debug("lexed", "tokens", len(tokens))

	prog, err := Parse(tokens, text)
	if err != nil {
		return nil, errors.Wrap(locate(err), "parse")
	}
	log.Debug("parsed", "program", prog.Name, "divisions", len(prog.Divisions))

	a := NewAnalyzer(prog, cat, log)
	if err := a.Run(); err != nil {
		return nil, errors.Wrap(locate(err), "analyze")
	}

	mod, err := Generate(prog, opts.AssemblyName, cat, log)
	if err != nil {
		return nil, errors.Wrap(locate(err), "generate")
	}
	il, err := mod.Render()
	if err != nil {
		return nil, errors.Wrap(internalErrorf(0, "%v", err), "generate")
	}
	log.Debug("generated", "assembly", mod.Name, "types", len(mod.Types))

	return &Result{
		Program:     prog,
		Module:      mod,
		IL:          il,
		Diagnostics: exp.locateDiagnostics(a.Diagnostics()),
	}, nil
}

// withSnippet fills in the offending source line of a CompileError.
func withSnippet(err error, src string) error {
	ce, ok := AsCompileError(err)
	if !ok || ce.Snippet != "" || ce.Line <= 0 {
		return err
	}
	lines := strings.Split(src, "\n")
	if ce.Line <= len(lines) {
		ce.Snippet = strings.TrimSpace(lines[ce.Line-1])
	}
	return err
}
