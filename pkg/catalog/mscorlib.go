package catalog

import (
	_ "embed"
	"strings"
)

//go:embed mscorlib.types
var mscorlibTypes string

// Mscorlib returns a fresh copy of the base library subset that every
// catalog starts with.
func Mscorlib() *Assembly {
	asms, err := ParseDescriptor(strings.NewReader(mscorlibTypes), "mscorlib.types")
	if err != nil || len(asms) != 1 {
		panic("catalog: bad built-in mscorlib descriptor: " + errString(err))
	}
	return asms[0]
}

func errString(err error) string {
	if err == nil {
		return "expected exactly one assembly"
	}
	return err.Error()
}
