// Command cobolcat manages the SQLite type catalog that cobolc reads
// through -catalog.
//
//	cobolcat import <db> <file.types>...
//	cobolcat list <db>
//	cobolcat export <db> <assembly>
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"cobolc/pkg/catalog"
)

const usage = `Usage:
  cobolcat import <db> <file.types>...
  cobolcat list <db>
  cobolcat export <db> <assembly>`

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		fmt.Fprintln(stderr, usage)
		return 2
	}
	cmd, db, rest := args[0], args[1], args[2:]
	var err error
	switch {
	case cmd == "import" && len(rest) > 0:
		err = importDescriptors(ctx, db, rest, stdout)
	case cmd == "list" && len(rest) == 0:
		err = list(ctx, db, stdout)
	case cmd == "export" && len(rest) == 1:
		err = export(ctx, db, rest[0], stdout)
	default:
		fmt.Fprintln(stderr, usage)
		return 2
	}
	if err != nil {
		fmt.Fprintln(stderr, "cobolcat:", err)
		return 1
	}
	return 0
}

func importDescriptors(ctx context.Context, db string, files []string, stdout io.Writer) error {
	store, err := catalog.OpenStore(ctx, db)
	if err != nil {
		return err
	}
	defer store.Close()
	for _, file := range files {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		asms, err := catalog.ParseDescriptor(f, file)
		f.Close()
		if err != nil {
			return err
		}
		for _, asm := range asms {
			if err := store.Put(ctx, asm); err != nil {
				return errors.Wrapf(err, "import %s", file)
			}
			fmt.Fprintf(stdout, "imported %s %s (%s types)\n", asm.Name, asm.Version, humanize.Comma(int64(len(asm.Types))))
		}
	}
	return nil
}

func list(ctx context.Context, db string, stdout io.Writer) error {
	if _, err := os.Stat(db); err != nil {
		return err
	}
	store, err := catalog.OpenStore(ctx, db)
	if err != nil {
		return err
	}
	defer store.Close()
	sums, err := store.List(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ASSEMBLY\tVERSION\tTYPES")
	for _, s := range sums {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Name, s.Version, humanize.Comma(int64(s.Types)))
	}
	return tw.Flush()
}

func export(ctx context.Context, db, name string, stdout io.Writer) error {
	store, err := catalog.OpenStore(ctx, db)
	if err != nil {
		return err
	}
	defer store.Close()
	asm, err := store.Get(ctx, name)
	if err != nil {
		return err
	}
	return catalog.FormatDescriptor(stdout, asm)
}
