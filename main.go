package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"

	"cobolc/pkg/catalog"
	"cobolc/pkg/compiler"
	"cobolc/pkg/toolchain"
	"cobolc/pkg/vm"
)

// Exit codes: 1 for a failed compilation or run, 2 for bad usage or a
// missing external tool.
const (
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

type listFlag []string

func (l *listFlag) String() string     { return strings.Join(*l, ",") }
func (l *listFlag) Set(v string) error { *l = append(*l, v); return nil }

// legacyArgs rewrites the slash switches of the original command line,
// such as /ref:System.Xml.dll or /verbose, into flag syntax.
func legacyArgs(args []string) []string {
	var out []string
	for _, a := range args {
		if !strings.HasPrefix(a, "/") {
			out = append(out, a)
			continue
		}
		name, value, hasValue := strings.Cut(a[1:], ":")
		switch strings.ToLower(name) {
		case "r", "ref", "reference":
			if hasValue {
				out = append(out, "-ref", value)
				continue
			}
		case "pkg", "package":
			if hasValue {
				out = append(out, "-pkg", value)
				continue
			}
		case "v", "verbose":
			if !hasValue {
				out = append(out, "-v")
				continue
			}
		}
		out = append(out, a)
	}
	return out
}

type painter struct{ color bool }

func (p painter) paint(code, s string) string {
	if !p.color {
		return s
	}
	return "\x1b[" + code + "m" + s + "\x1b[0m"
}

func colorOutput(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("cobolc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var refs, pkgs listFlag
	fs.Var(&refs, "ref", "reference an assembly: a name, .dll path, .types descriptor or .db catalog (repeatable)")
	fs.Var(&pkgs, "pkg", "reference the assemblies of a pkg-config package (repeatable)")
	verbose := fs.Bool("v", false, "verbose output")
	outDir := fs.String("o", "", "output directory (default: the source file's directory)")
	catalogPath := fs.String("catalog", os.Getenv("COBOLC_CATALOG"), "SQLite type catalog used to resolve -ref names")
	ilOnly := fs.Bool("S", false, "write the .il file and stop")
	interpret := fs.Bool("run", false, "interpret the program instead of assembling it")
	timeout := fs.Duration("timeout", 2*time.Minute, "time limit for each external tool")
	copyDir := fs.String("I", "", "copybook directory (default: the source file's directory)")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: cobolc [options] program.cbl")
		fs.PrintDefaults()
	}
	if err := fs.Parse(legacyArgs(args)); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return exitUsage
	}
	src := fs.Arg(0)
	if !strings.EqualFold(filepath.Ext(src), ".cbl") {
		fmt.Fprintln(stderr, "program filename must end in .cbl")
		return exitUsage
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	p := painter{color: colorOutput(stdout)}
	ctx := context.Background()

	for _, pkg := range pkgs {
		tctx, cancel := context.WithTimeout(ctx, *timeout)
		paths, err := toolchain.PackageReferences(tctx, pkg)
		cancel()
		if err != nil {
			fmt.Fprintf(stderr, "%s %v\n", p.paint("31", "error:"), err)
			if errors.Is(err, toolchain.ErrToolNotFound) {
				return exitUsage
			}
			return exitFailure
		}
		log.Debug("package references", "package", pkg, "refs", paths)
		refs = append(refs, paths...)
	}

	cat, err := loadCatalog(ctx, refs, *catalogPath)
	if err != nil {
		fmt.Fprintf(stderr, "%s %v\n", p.paint("31", "error:"), err)
		return exitFailure
	}

	source, err := os.ReadFile(src)
	if err != nil {
		fmt.Fprintf(stderr, "%s %v\n", p.paint("31", "error:"), err)
		return exitFailure
	}
	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	fmt.Fprintf(stdout, "Compiling %s\n", src)

	if *copyDir == "" {
		*copyDir = filepath.Dir(src)
	}
	res, err := compiler.Compile(string(source), compiler.Options{
		AssemblyName: base,
		Catalog:      cat,
		Logger:       log,
		Copybooks:    os.DirFS(*copyDir),
	})
	if err != nil {
		log.Debug("compile failed", "err", err)
		if ce, ok := compiler.AsCompileError(err); ok {
			fmt.Fprintf(stderr, "%s %s\n", p.paint("31", "error:"), ce)
		} else {
			fmt.Fprintf(stderr, "%s %v\n", p.paint("31", "error:"), err)
		}
		return exitFailure
	}
	for _, d := range res.Diagnostics {
		text := d.String()
		if label, rest, ok := strings.Cut(text, ":"); ok {
			text = p.paint("33", label+":") + rest
		}
		fmt.Fprintln(stdout, text)
	}

	if *interpret {
		return interpretProgram(res, stdin, stdout, stderr, log, p)
	}

	dir := *outDir
	if dir == "" {
		dir = filepath.Dir(src)
	}
	ilFile := filepath.Join(dir, base+".il")
	if err := os.WriteFile(ilFile, []byte(res.IL), 0o644); err != nil {
		fmt.Fprintf(stderr, "%s %v\n", p.paint("31", "error:"), err)
		return exitFailure
	}
	log.Debug("wrote IL", "file", ilFile, "size", humanize.Bytes(uint64(len(res.IL))))
	if *ilOnly {
		fmt.Fprintf(stdout, "Wrote %s (%s)\n", ilFile, humanize.Bytes(uint64(len(res.IL))))
		return 0
	}

	ilasm, err := toolchain.FindAssembler()
	if err != nil {
		fmt.Fprintf(stderr, "%s %v\n", p.paint("31", "error:"), err)
		return exitUsage
	}
	log.Debug("assembling", "assembler", ilasm)
	var trace io.Writer
	if *verbose {
		trace = stderr
	}
	actx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()
	if err := toolchain.Assemble(actx, ilasm, ilFile, trace); err != nil {
		fmt.Fprintf(stderr, "%s %v\n", p.paint("31", "error:"), err)
		fmt.Fprintln(stdout, "Compilation failed")
		return exitFailure
	}
	if exe := filepath.Join(dir, base+".exe"); *verbose {
		if info, err := os.Stat(exe); err == nil {
			log.Debug("assembled", "file", exe, "size", humanize.Bytes(uint64(info.Size())))
		}
	}
	fmt.Fprintln(stdout, "Compilation succeeded")
	return 0
}

// loadCatalog builds the type catalog from the references, opening the
// SQLite catalog when one is configured.
func loadCatalog(ctx context.Context, refs []string, path string) (catalog.Catalog, error) {
	var store *catalog.Store
	if path != "" {
		s, err := catalog.OpenStore(ctx, path)
		if err != nil {
			return nil, err
		}
		defer s.Close()
		store = s
	}
	return catalog.Load(ctx, refs, store)
}

// interpretProgram runs the module on the interpreter, with the current
// directory as the disk its files live on.
func interpretProgram(res *compiler.Result, stdin io.Reader, stdout, stderr io.Writer, log *slog.Logger, p painter) int {
	disk := vm.NewDisk()
	if err := disk.LoadFrom("."); err != nil {
		fmt.Fprintf(stderr, "%s %v\n", p.paint("31", "error:"), err)
		return exitFailure
	}
	m := vm.New(res.Module,
		vm.WithInput(stdin),
		vm.WithOutput(stdout),
		vm.WithDisk(disk),
		vm.WithLogger(log))
	runErr := m.Run()
	if err := disk.PersistTo("."); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		fmt.Fprintf(stderr, "%s %v\n", p.paint("31", "runtime error:"), runErr)
		return exitFailure
	}
	return m.ExitCode
}
