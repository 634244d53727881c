package compiler

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind classifies a compilation failure.
type ErrorKind int

const (
	SyntaxError ErrorKind = iota
	SemanticError
	NotImplementedError
	InternalError
)

func (k ErrorKind) String() string {
	switch k {
	case SyntaxError:
		return "syntax error"
	case SemanticError:
		return "error"
	case NotImplementedError:
		return "feature not implemented"
	default:
		return "internal error"
	}
}

// CompileError is the error every pipeline stage reports. Line is the
// 1-based source line, or 0 when the failure is not tied to one.
type CompileError struct {
	Kind    ErrorKind
	Line    int
	Msg     string
	Snippet string // offending source line, filled in by Compile
}

func (e *CompileError) Error() string {
	var msg string
	if e.Line > 0 {
		msg = fmt.Sprintf("%s on line %d: %s", e.Kind, e.Line, e.Msg)
	} else {
		msg = fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	if e.Snippet != "" {
		msg += "\n  |> " + e.Snippet
	}
	return msg
}

func syntaxErrorf(line int, format string, args ...any) error {
	return &CompileError{Kind: SyntaxError, Line: line, Msg: fmt.Sprintf(format, args...)}
}

func semanticErrorf(line int, format string, args ...any) error {
	return &CompileError{Kind: SemanticError, Line: line, Msg: fmt.Sprintf(format, args...)}
}

func notImplemented(line int, what string) error {
	return &CompileError{Kind: NotImplementedError, Line: line, Msg: what}
}

func internalErrorf(line int, format string, args ...any) error {
	return &CompileError{Kind: InternalError, Line: line, Msg: fmt.Sprintf(format, args...)}
}

// AsCompileError unwraps err to the CompileError it carries, if any.
func AsCompileError(err error) (*CompileError, bool) {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
