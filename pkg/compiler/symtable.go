package compiler

import (
	"fmt"
	"sort"
	"strings"
)

// SymbolTable maps the names a program declares to their declarations.
// COBOL names are case-insensitive, so every key is upper-cased.
type SymbolTable struct {
	data       map[string]*DataDescription
	classes    map[string]*ClassDefinition
	files      map[string]*FileDescription
	paragraphs map[string]int // index into the procedure division
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		data:       make(map[string]*DataDescription),
		classes:    make(map[string]*ClassDefinition),
		files:      make(map[string]*FileDescription),
		paragraphs: make(map[string]int),
	}
}

func key(name string) string {
	return strings.ToUpper(name)
}

// DefineData registers a named data item. It reports false when the name
// is already taken.
func (s *SymbolTable) DefineData(d *DataDescription) bool {
	k := key(d.Name)
	if _, exists := s.data[k]; exists {
		return false
	}
	s.data[k] = d
	return true
}

func (s *SymbolTable) DefineClass(c *ClassDefinition) bool {
	k := key(c.Name)
	if _, exists := s.classes[k]; exists {
		return false
	}
	s.classes[k] = c
	return true
}

func (s *SymbolTable) DefineFile(fd *FileDescription) bool {
	k := key(fd.Name)
	if _, exists := s.files[k]; exists {
		return false
	}
	s.files[k] = fd
	return true
}

func (s *SymbolTable) DefineParagraph(name string, index int) bool {
	k := key(name)
	if _, exists := s.paragraphs[k]; exists {
		return false
	}
	s.paragraphs[k] = index
	return true
}

func (s *SymbolTable) Data(name string) (*DataDescription, bool) {
	d, ok := s.data[key(name)]
	return d, ok
}

func (s *SymbolTable) Class(name string) (*ClassDefinition, bool) {
	c, ok := s.classes[key(name)]
	return c, ok
}

func (s *SymbolTable) File(name string) (*FileDescription, bool) {
	fd, ok := s.files[key(name)]
	return fd, ok
}

// Paragraph returns the position of a paragraph in the procedure division.
func (s *SymbolTable) Paragraph(name string) (int, bool) {
	i, ok := s.paragraphs[key(name)]
	return i, ok
}

// String returns a deterministically ordered dump of the table.
func (s *SymbolTable) String() string {
	var sb strings.Builder
	if len(s.data) > 0 {
		sb.WriteString("Data:\n")
		for _, name := range sortedKeys(s.data) {
			d := s.data[name]
			fmt.Fprintf(&sb, "  %-24s  level %02d  %-7s size %d", d.Name, d.Level, d.Type, d.Size)
			if d.Parent != nil {
				fmt.Fprintf(&sb, "  in %s", d.Parent.Name)
			}
			if d.Occurs > 0 {
				fmt.Fprintf(&sb, "  occurs %d", d.Occurs)
			}
			if d.RedefinesTarget != nil {
				fmt.Fprintf(&sb, "  redefines %s", d.RedefinesTarget.Name)
			}
			if d.ConditionOf != nil {
				fmt.Fprintf(&sb, "  condition of %s", d.ConditionOf.Name)
			}
			sb.WriteString("\n")
		}
	} else {
		sb.WriteString("Data: (empty)\n")
	}

	if len(s.classes) > 0 {
		sb.WriteString("Classes:\n")
		for _, name := range sortedKeys(s.classes) {
			c := s.classes[name]
			fmt.Fprintf(&sb, "  %-24s  %s [%s]\n", c.Name, c.NetName, c.Assembly)
		}
	}
	if len(s.files) > 0 {
		sb.WriteString("Files:\n")
		for _, name := range sortedKeys(s.files) {
			fd := s.files[name]
			assign := ""
			if fd.Control != nil {
				assign = fd.Control.Assign
			}
			fmt.Fprintf(&sb, "  %-24s  %q\n", fd.Name, assign)
		}
	}
	if len(s.paragraphs) > 0 {
		sb.WriteString("Paragraphs:\n")
		names := sortedKeys(s.paragraphs)
		sort.Slice(names, func(i, j int) bool { return s.paragraphs[names[i]] < s.paragraphs[names[j]] })
		for _, name := range names {
			fmt.Fprintf(&sb, "  %d  %s\n", s.paragraphs[name], name)
		}
	}
	return sb.String()
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
