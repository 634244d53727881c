package catalog

import (
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// Memory is a Catalog held in maps. It is filled once and then only read.
type Memory struct {
	assemblies map[string]*Assembly
	order      []string
	types      map[string]*Type   // by full name
	short      map[string][]*Type // by short name
}

// NewMemory returns a catalog holding mscorlib and asms.
func NewMemory(asms ...*Assembly) *Memory {
	m := &Memory{
		assemblies: make(map[string]*Assembly),
		types:      make(map[string]*Type),
		short:      make(map[string][]*Type),
	}
	m.Add(Mscorlib())
	for _, a := range asms {
		m.Add(a)
	}
	return m
}

// Add registers an assembly. When an assembly of the same name is already
// present, the higher version wins and the other is ignored.
func (m *Memory) Add(a *Assembly) {
	if old, ok := m.assemblies[a.Name]; ok {
		if CompareVersions(a.Version, old.Version) <= 0 {
			return
		}
		m.remove(old)
	} else {
		m.order = append(m.order, a.Name)
	}
	m.assemblies[a.Name] = a
	for _, t := range a.Types {
		t.Assembly = a.Name
		m.types[t.FullName] = t
		s := t.ShortName()
		m.short[s] = append(m.short[s], t)
	}
}

func (m *Memory) remove(a *Assembly) {
	for _, t := range a.Types {
		delete(m.types, t.FullName)
		s := t.ShortName()
		kept := m.short[s][:0]
		for _, o := range m.short[s] {
			if o != t {
				kept = append(kept, o)
			}
		}
		m.short[s] = kept
	}
}

// Assemblies returns every registered assembly in registration order.
func (m *Memory) Assemblies() []*Assembly {
	out := make([]*Assembly, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.assemblies[name])
	}
	return out
}

func (m *Memory) LookupType(name string) (*Type, bool) {
	if t, ok := m.types[name]; ok {
		return t, true
	}
	if ts := m.short[name]; len(ts) == 1 {
		return ts[0], true
	}
	return nil, false
}

func (m *Memory) AssemblyOf(typeName string) (string, bool) {
	t, ok := m.LookupType(typeName)
	if !ok {
		return "", false
	}
	return t.Assembly, true
}

func (m *Memory) Assembly(name string) (*Assembly, bool) {
	a, ok := m.assemblies[name]
	return a, ok
}

func (m *Memory) AttributeName(short string) (string, bool) {
	for _, cand := range []string{short + "Attribute", short} {
		for _, t := range m.short[cand] {
			if t.Attribute {
				return AssemblyRef(t.Assembly) + t.FullName, true
			}
		}
	}
	if t, ok := m.types[short]; ok && t.Attribute {
		return AssemblyRef(t.Assembly) + t.FullName, true
	}
	return "", false
}

// CompareVersions orders two dotted four-part versions. The first three
// parts are compared as semantic versions, the fourth as a build number.
func CompareVersions(a, b string) int {
	sa, ra := splitVersion(a)
	sb, rb := splitVersion(b)
	if c := semver.Compare(sa, sb); c != 0 {
		return c
	}
	switch {
	case ra < rb:
		return -1
	case ra > rb:
		return 1
	}
	return 0
}

func splitVersion(v string) (string, int) {
	parts := strings.Split(v, ".")
	for len(parts) < 4 {
		parts = append(parts, "0")
	}
	rev, _ := strconv.Atoi(parts[3])
	return "v" + strings.Join(parts[:3], "."), rev
}

// ValidVersion reports whether v is a dotted version of one to four
// numeric parts.
func ValidVersion(v string) bool {
	parts := strings.Split(v, ".")
	if len(parts) > 4 {
		return false
	}
	for _, p := range parts {
		if _, err := strconv.Atoi(p); err != nil || p == "" || p[0] == '-' {
			return false
		}
	}
	s, _ := splitVersion(v)
	return semver.IsValid(s)
}
