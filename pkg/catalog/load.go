package catalog

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Load resolves every reference and merges the result into one catalog,
// in reference order. A reference is one of:
//
//   - a .types descriptor file;
//   - a .db catalog file, contributing every assembly it holds;
//   - an assembly name or .dll path, looked up by base name in store.
//
// References are resolved concurrently. store may be nil when no reference
// needs it.
func Load(ctx context.Context, refs []string, store *Store) (*Memory, error) {
	results := make([][]*Assembly, len(refs))
	g, ctx := errgroup.WithContext(ctx)
	for i, ref := range refs {
		g.Go(func() error {
			asms, err := resolve(ctx, ref, store)
			if err != nil {
				return errors.Wrapf(err, "reference %s", ref)
			}
			results[i] = asms
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	mem := NewMemory()
	for _, asms := range results {
		for _, a := range asms {
			mem.Add(a)
		}
	}
	return mem, nil
}

func resolve(ctx context.Context, ref string, store *Store) ([]*Assembly, error) {
	switch strings.ToLower(filepath.Ext(ref)) {
	case ".types":
		f, err := os.Open(ref)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return ParseDescriptor(f, ref)
	case ".db":
		s, err := OpenStore(ctx, ref)
		if err != nil {
			return nil, err
		}
		defer s.Close()
		return s.All(ctx)
	}

	name := AssemblyName(ref)
	if store != nil {
		asm, err := store.Get(ctx, name)
		if err == nil {
			return []*Assembly{asm}, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	if strings.EqualFold(name, "mscorlib") {
		return nil, nil // always present
	}
	if store == nil {
		return nil, errors.Errorf("assembly %s is not described; pass a .types file or a catalog", name)
	}
	return nil, errors.Wrap(ErrNotFound, name)
}

// AssemblyName reduces a reference such as /usr/lib/mono/2.0/System.Xml.dll
// to the assembly name System.Xml.
func AssemblyName(ref string) string {
	base := filepath.Base(ref)
	if strings.EqualFold(filepath.Ext(base), ".dll") || strings.EqualFold(filepath.Ext(base), ".exe") {
		base = base[:len(base)-4]
	}
	return base
}
