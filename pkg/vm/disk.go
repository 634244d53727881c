package vm

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrFileNotFound    = errors.New("file not found")
	ErrInvalidFilename = errors.New("invalid filename")
)

type fileEntry struct {
	data     []byte
	modified time.Time
}

// Disk is the in-memory file system that OPEN, READ and WRITE work
// against. It is safe for concurrent use.
type Disk struct {
	mu    sync.RWMutex
	files map[string]*fileEntry
	dirty map[string]bool
}

func NewDisk() *Disk {
	return &Disk{
		files: make(map[string]*fileEntry),
		dirty: make(map[string]bool),
	}
}

// clean maps a program-supplied path to a disk key. Absolute paths and
// paths leaving the disk root are rejected.
func clean(name string) (string, error) {
	if name == "" || !filepath.IsLocal(name) {
		return "", errors.Wrap(ErrInvalidFilename, name)
	}
	return filepath.ToSlash(filepath.Clean(name)), nil
}

// Write replaces the contents of a file, creating it if needed. The data
// is copied.
func (d *Disk) Write(name string, data []byte) error {
	key, err := clean(name)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.files[key] = &fileEntry{data: append([]byte(nil), data...), modified: time.Now()}
	d.dirty[key] = true
	return nil
}

// Read returns a copy of a file's contents.
func (d *Disk) Read(name string) ([]byte, error) {
	key, err := clean(name)
	if err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.files[key]
	if !ok {
		return nil, errors.Wrap(ErrFileNotFound, name)
	}
	return append([]byte(nil), e.data...), nil
}

func (d *Disk) Delete(name string) error {
	key, err := clean(name)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.files[key]; !ok {
		return errors.Wrap(ErrFileNotFound, name)
	}
	delete(d.files, key)
	d.dirty[key] = true
	return nil
}

// List returns the sorted names of all files.
func (d *Disk) List() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.files))
	for name := range d.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadFrom copies the regular files of a host directory, not recursing
// into subdirectories. A missing directory loads nothing.
func (d *Disk) LoadFrom(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "load %s", path)
		}
		e := &fileEntry{data: raw, modified: time.Now()}
		if info, err := entry.Info(); err == nil {
			e.modified = info.ModTime()
		}
		d.files[entry.Name()] = e
	}
	return nil
}

// PersistTo writes every file changed since the last persist into a host
// directory, creating it if needed, and removes files deleted since. It
// returns the first error; files that failed stay dirty.
func (d *Disk) PersistTo(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	d.mu.Lock()
	snapshot := make(map[string][]byte)
	var deleted []string
	for name := range d.dirty {
		if e, ok := d.files[name]; ok {
			snapshot[name] = append([]byte(nil), e.data...)
		} else {
			deleted = append(deleted, name)
		}
		delete(d.dirty, name)
	}
	d.mu.Unlock()

	var firstErr error
	for _, name := range deleted {
		if err := os.Remove(filepath.Join(dir, filepath.FromSlash(name))); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	for name, data := range snapshot {
		path := filepath.Join(dir, filepath.FromSlash(name))
		err := os.MkdirAll(filepath.Dir(path), 0o755)
		if err == nil {
			err = os.WriteFile(path, data, 0o644)
		}
		if err != nil {
			d.mu.Lock()
			d.dirty[name] = true
			d.mu.Unlock()
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
