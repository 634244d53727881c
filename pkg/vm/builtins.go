package vm

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"cobolc/pkg/cil"
)

// reader is an open StreamReader: the file's lines and the next one.
type reader struct {
	lines []string
	next  int
}

// writer is an open StreamWriter. Its text reaches the disk on Flush.
type writer struct {
	path string
	buf  strings.Builder
}

func str(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		if v == nil {
			return "", errors.New("NullReferenceException: string is null")
		}
		return "", errors.Errorf("expected string, got %T", v)
	}
	return s, nil
}

// strArgs converts every argument to a string.
func strArgs(args []any) ([]string, error) {
	out := make([]string, len(args))
	for i, a := range args {
		s, err := str(a)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func intArgs(args []any) ([]int, error) {
	out := make([]int, len(args))
	for i, a := range args {
		n, err := toInt(a)
		if err != nil {
			return nil, err
		}
		out[i] = int(n)
	}
	return out, nil
}

func display(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int32:
		return strconv.Itoa(int(x))
	case bool:
		if x {
			return "True"
		}
		return "False"
	}
	return fmt.Sprint(v)
}

// Format implements composite formatting with {index[,alignment]} items
// and {{ }} escapes.
func Format(format string, args []any) (string, error) {
	var sb strings.Builder
	for i := 0; i < len(format); i++ {
		c := format[i]
		switch {
		case c == '{' && i+1 < len(format) && format[i+1] == '{':
			sb.WriteByte('{')
			i++
		case c == '}' && i+1 < len(format) && format[i+1] == '}':
			sb.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(format[i:], '}')
			if end < 0 {
				return "", errors.Errorf("FormatException: unclosed item in %q", format)
			}
			item := format[i+1 : i+end]
			i += end
			index, align, _ := strings.Cut(item, ",")
			n, err := strconv.Atoi(strings.TrimSpace(index))
			if err != nil || n < 0 || n >= len(args) {
				return "", errors.Errorf("FormatException: bad item {%s}", item)
			}
			text := display(args[n])
			if align != "" {
				w, err := strconv.Atoi(strings.TrimSpace(align))
				if err != nil {
					return "", errors.Errorf("FormatException: bad alignment {%s}", item)
				}
				if pad := abs(w) - len(text); pad > 0 {
					if w < 0 {
						text += strings.Repeat(" ", pad)
					} else {
						text = strings.Repeat(" ", pad) + text
					}
				}
			}
			sb.WriteString(text)
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String(), nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func objects(v any) ([]any, error) {
	arr, ok := v.([]any)
	if !ok && v != nil {
		return nil, errors.Errorf("expected object[], got %T", v)
	}
	return arr, nil
}

func formatArgs(args []any) (string, error) {
	format, err := str(args[0])
	if err != nil {
		return "", err
	}
	items, err := objects(args[1])
	if err != nil {
		return "", err
	}
	return Format(format, items)
}

func substring(s string, start, length int) (string, error) {
	if start < 0 || length < 0 || start+length > len(s) {
		return "", errors.Errorf("ArgumentOutOfRangeException: Substring(%d, %d) of length %d", start, length, len(s))
	}
	return s[start : start+length], nil
}

func (m *Machine) readLine() (any, error) {
	if m.in == nil {
		m.in = bufio.NewReader(m.Input)
	}
	line, err := m.in.ReadString('\n')
	if err == io.EOF && line == "" {
		return nil, nil
	}
	if err != nil && err != io.EOF {
		return nil, err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (m *Machine) openWriter(path string, appendTo bool) (*writer, error) {
	w := &writer{path: path}
	if appendTo {
		old, err := m.Disk.Read(path)
		if err != nil && !errors.Is(err, ErrFileNotFound) {
			return nil, err
		}
		w.buf.Write(old)
	}
	return w, m.Disk.Write(path, []byte(w.buf.String()))
}

// builtins implements the base library members generated code calls.
func (m *Machine) builtins() map[string]Func {
	return map[string]Func{
		cil.ObjectCtor: func([]any) (any, error) { return nil, nil },

		cil.ConsoleWrite: func(args []any) (any, error) {
			s, err := formatArgs(args)
			if err != nil {
				return nil, err
			}
			_, err = io.WriteString(m.Output, s)
			return nil, err
		},
		cil.ConsoleWriteLn: func(args []any) (any, error) {
			s, err := formatArgs(args)
			if err != nil {
				return nil, err
			}
			_, err = io.WriteString(m.Output, s+"\n")
			return nil, err
		},
		cil.ConsoleReadLine: func([]any) (any, error) { return m.readLine() },
		cil.EnvironmentExit: func(args []any) (any, error) {
			code, err := toInt(args[0])
			if err != nil {
				return nil, err
			}
			return nil, &exitError{int(code)}
		},
		cil.MathMin: func(args []any) (any, error) {
			n, err := intArgs(args)
			if err != nil {
				return nil, err
			}
			return int32(min(n[0], n[1])), nil
		},
		cil.Int32Parse: func(args []any) (any, error) {
			s, err := str(args[0])
			if err != nil {
				return nil, err
			}
			n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
			if err != nil {
				return nil, errors.Errorf("FormatException: %q is not an int32", s)
			}
			return int32(n), nil
		},

		cil.StringFormat: func(args []any) (any, error) {
			format, err := str(args[0])
			if err != nil {
				return nil, err
			}
			return Format(format, args[1:])
		},
		cil.StringFormatN: func(args []any) (any, error) { return formatArgs(args) },
		cil.StringConcat2: func(args []any) (any, error) {
			s, err := strArgs(args)
			if err != nil {
				return nil, err
			}
			return s[0] + s[1], nil
		},
		cil.StringConcat3: func(args []any) (any, error) {
			s, err := strArgs(args)
			if err != nil {
				return nil, err
			}
			return s[0] + s[1] + s[2], nil
		},
		cil.StringEquality: func(args []any) (any, error) {
			return boolInt(args[0] == args[1]), nil
		},
		cil.StringCompareOrd: func(args []any) (any, error) {
			s, err := strArgs(args)
			if err != nil {
				return nil, err
			}
			return int32(strings.Compare(s[0], s[1])), nil
		},
		cil.StringLength: func(args []any) (any, error) {
			s, err := str(args[0])
			return int32(len(s)), err
		},
		cil.StringSubstring: func(args []any) (any, error) {
			s, err := str(args[0])
			if err != nil {
				return nil, err
			}
			start, err := toInt(args[1])
			if err != nil {
				return nil, err
			}
			return substring(s, int(start), len(s)-int(start))
		},
		cil.StringSubstringN: func(args []any) (any, error) {
			s, err := str(args[0])
			if err != nil {
				return nil, err
			}
			n, err := intArgs(args[1:])
			if err != nil {
				return nil, err
			}
			return substring(s, n[0], n[1])
		},
		cil.StringPadRight: func(args []any) (any, error) {
			s, err := str(args[0])
			if err != nil {
				return nil, err
			}
			width, err := toInt(args[1])
			if err != nil {
				return nil, err
			}
			if pad := int(width) - len(s); pad > 0 {
				s += strings.Repeat(" ", pad)
			}
			return s, nil
		},
		cil.StringTrim: func(args []any) (any, error) {
			s, err := str(args[0])
			return strings.TrimSpace(s), err
		},
		cil.StringToUpper: func(args []any) (any, error) {
			s, err := str(args[0])
			return strings.ToUpper(s), err
		},
		cil.StringIndexOf: func(args []any) (any, error) {
			s, err := strArgs(args)
			if err != nil {
				return nil, err
			}
			return int32(strings.Index(s[0], s[1])), nil
		},

		cil.ReaderCtor: func(args []any) (any, error) {
			path, err := str(args[0])
			if err != nil {
				return nil, err
			}
			data, err := m.Disk.Read(path)
			if err != nil {
				return nil, errors.Wrap(err, "FileNotFoundException")
			}
			text := strings.TrimSuffix(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
			r := &reader{}
			if text != "" {
				r.lines = strings.Split(text, "\n")
			}
			return r, nil
		},
		cil.ReaderEndOfStream: func(args []any) (any, error) {
			r, ok := args[0].(*reader)
			if !ok {
				return nil, errors.Errorf("expected StreamReader, got %T", args[0])
			}
			return boolInt(r.next >= len(r.lines)), nil
		},
		cil.ReaderReadLine: func(args []any) (any, error) {
			r, ok := args[0].(*reader)
			if !ok {
				return nil, errors.Errorf("expected StreamReader, got %T", args[0])
			}
			if r.next >= len(r.lines) {
				return nil, nil
			}
			r.next++
			return r.lines[r.next-1], nil
		},
		cil.ReaderClose: func([]any) (any, error) { return nil, nil },

		cil.WriterCtor: func(args []any) (any, error) {
			path, err := str(args[0])
			if err != nil {
				return nil, err
			}
			return m.openWriter(path, false)
		},
		cil.WriterCtorMode: func(args []any) (any, error) {
			path, err := str(args[0])
			if err != nil {
				return nil, err
			}
			return m.openWriter(path, truthy(args[1]))
		},
		cil.WriterWriteLine: func(args []any) (any, error) {
			w, ok := args[0].(*writer)
			if !ok {
				return nil, errors.Errorf("expected StreamWriter, got %T", args[0])
			}
			s, err := formatArgs(args[1:])
			if err != nil {
				return nil, err
			}
			w.buf.WriteString(s + "\n")
			return nil, nil
		},
		cil.WriterFlush: func(args []any) (any, error) {
			w := args[0].(*writer)
			return nil, m.Disk.Write(w.path, []byte(w.buf.String()))
		},
		cil.WriterClose: func(args []any) (any, error) {
			w := args[0].(*writer)
			return nil, m.Disk.Write(w.path, []byte(w.buf.String()))
		},
	}
}
