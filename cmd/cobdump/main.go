// Command cobdump prints what each compiler stage makes of a COBOL
// source file: the expanded source, the tokens, the parse tree, the
// symbol table and the generated IL.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/kr/pretty"

	"cobolc/pkg/compiler"
)

var stageNames = []string{"source", "tokens", "ast", "symbols", "il"}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("cobdump", flag.ContinueOnError)
	fs.SetOutput(stderr)
	stages := fs.String("stages", strings.Join(stageNames, ","), "comma separated stages to print")
	copyDir := fs.String("I", "", "copybook directory (default: the source file's directory)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Usage: cobdump [-stages list] [-I dir] program.cbl")
		return 2
	}
	show := make(map[string]bool)
	for _, s := range strings.Split(*stages, ",") {
		show[strings.TrimSpace(s)] = true
	}

	path := fs.Arg(0)
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(stderr, "read error:", err)
		return 1
	}
	if *copyDir == "" {
		*copyDir = filepath.Dir(path)
	}

	// Expand copybooks
	exp, err := compiler.Preprocess(string(data), os.DirFS(*copyDir))
	if err != nil {
		fmt.Fprintln(stderr, "copy error:", err)
		return 1
	}
	src := exp.Text
	if show["source"] {
		fmt.Fprintf(stdout, "Source:\n%s\n", src)
	}

	// Lex
	tokens, err := compiler.Lex(src)
	if err != nil {
		fmt.Fprintln(stderr, "lex error:", exp.Locate(err))
		return 1
	}
	if show["tokens"] {
		fmt.Fprintf(stdout, "Tokens (%d)\n", len(tokens))
		for _, tok := range tokens {
			fmt.Fprintln(stdout, " ", tok)
		}
		fmt.Fprintln(stdout)
	}

	// Parse
	prog, err := compiler.Parse(tokens, src)
	if err != nil {
		fmt.Fprintln(stderr, "parse error:", exp.Locate(err))
		return 1
	}
	if show["ast"] {
		// Printed before analysis links items to their parents.
		fmt.Fprintln(stdout, "AST")
		for _, d := range prog.Divisions {
			fmt.Fprintf(stdout, "%# v\n", pretty.Formatter(d))
		}
		fmt.Fprintln(stdout)
	}

	// Analyze
	diags, err := compiler.Analyze(prog, nil)
	if err != nil {
		fmt.Fprintln(stderr, "analyze error:", exp.Locate(err))
		return 1
	}
	for _, d := range diags {
		fmt.Fprintln(stderr, d)
	}
	if show["symbols"] {
		fmt.Fprint(stdout, prog.Symbols)
		fmt.Fprintln(stdout)
	}

	// Generate
	mod, err := compiler.Generate(prog, "", nil, nil)
	if err != nil {
		fmt.Fprintln(stderr, "codegen error:", exp.Locate(err))
		return 1
	}
	il, err := mod.Render()
	if err != nil {
		fmt.Fprintln(stderr, "render error:", err)
		return 1
	}
	if show["il"] {
		fmt.Fprintf(stdout, "Generated IL (%s)\n", humanize.Bytes(uint64(len(il))))
		fmt.Fprint(stdout, il)
	}
	return 0
}
