// Package vm interprets the CIL modules the compiler generates, so that
// programs can be run and tested without a .NET runtime. It executes the
// instruction subset of package cil and the base library members listed
// in cil's runtime signatures; anything else must be bound with Bind.
package vm

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"cobolc/pkg/cil"
)

// DefaultMaxSteps bounds a run when MaxSteps is zero.
const DefaultMaxSteps = 10_000_000

var ErrStepLimit = errors.New("step limit exceeded")

// Func implements an external method. Instance methods receive the
// object as args[0].
type Func func(args []any) (any, error)

// exitError unwinds the interpreter when Environment.Exit is called.
type exitError struct{ code int }

func (e *exitError) Error() string { return fmt.Sprintf("exit %d", e.code) }

// object is a class instance or a value-type table element. Fields that
// were never stored read as the zero value of their type.
type object struct {
	class  string
	fields map[string]any
}

func newObject(class string) *object {
	return &object{class: class, fields: make(map[string]any)}
}

// pointer is a managed address made by ldflda, ldloca or ldarga.
type pointer interface {
	load() any
	store(v any)
}

type fieldAddr struct {
	obj  *object
	name string
}

func (p fieldAddr) load() any    { return p.obj.fields[p.name] }
func (p fieldAddr) store(v any) { p.obj.fields[p.name] = v }

type slotAddr struct {
	slots []any
	i     int
}

func (p slotAddr) load() any    { return p.slots[p.i] }
func (p slotAddr) store(v any) { p.slots[p.i] = v }

// Machine runs one module.
type Machine struct {
	Output   io.Writer
	Input    io.Reader
	Disk     *Disk
	MaxSteps int
	Logger   *slog.Logger

	// ExitCode is the code passed to Environment.Exit, or 0.
	ExitCode int

	mod   *cil.Module
	funcs map[string]Func
	steps int
	in    *bufio.Reader
}

type Option func(*Machine)

func WithOutput(w io.Writer) Option  { return func(m *Machine) { m.Output = w } }
func WithInput(r io.Reader) Option   { return func(m *Machine) { m.Input = r } }
func WithDisk(d *Disk) Option        { return func(m *Machine) { m.Disk = d } }
func WithMaxSteps(n int) Option      { return func(m *Machine) { m.MaxSteps = n } }
func WithLogger(l *slog.Logger) Option { return func(m *Machine) { m.Logger = l } }

func New(mod *cil.Module, opts ...Option) *Machine {
	m := &Machine{mod: mod}
	for _, opt := range opts {
		opt(m)
	}
	if m.Output == nil {
		m.Output = os.Stdout
	}
	if m.Input == nil {
		m.Input = os.Stdin
	}
	if m.Disk == nil {
		m.Disk = NewDisk()
	}
	if m.Logger == nil {
		m.Logger = slog.New(slog.DiscardHandler)
	}
	m.funcs = m.builtins()
	return m
}

// Bind installs the implementation of an external method. sig is the
// operand of call, callvirt or newobj as the generated code spells it.
func (m *Machine) Bind(sig string, fn Func) {
	m.funcs[sig] = fn
}

// Run executes the module's entry point. A program that stops through
// STOP RUN or EXIT PROGRAM ends without error; ExitCode holds its code.
func (m *Machine) Run() error {
	entry, ok := m.mod.EntryPoint()
	if !ok {
		return errors.New("module has no entry point")
	}
	m.steps = 0
	_, err := m.exec(entry, nil)
	var exit *exitError
	if errors.As(err, &exit) {
		m.ExitCode = exit.code
		return nil
	}
	return err
}

// signature is a parsed method reference such as
// "instance int32 [mscorlib]System.String::get_Length()".
type signature struct {
	instance bool
	ret      string
	owner    string
	name     string
	params   int
}

func parseSignature(s string) (signature, error) {
	var sig signature
	rest := s
	if strings.HasPrefix(rest, "instance ") {
		sig.instance = true
		rest = strings.TrimPrefix(rest, "instance ")
	}
	open := strings.IndexByte(rest, '(')
	sep := strings.LastIndex(rest[:max(open, 0)], "::")
	if open < 0 || sep < 0 || !strings.HasSuffix(rest, ")") {
		return sig, errors.Errorf("malformed method reference %q", s)
	}
	sig.name = rest[sep+2 : open]
	head := rest[:sep]
	sp := strings.LastIndexByte(head, ' ')
	if sp < 0 {
		return sig, errors.Errorf("method reference %q has no return type", s)
	}
	sig.ret, sig.owner = head[:sp], head[sp+1:]
	if params := strings.TrimSpace(rest[open+1 : len(rest)-1]); params != "" {
		sig.params = strings.Count(params, ",") + 1
	}
	return sig, nil
}

// frame is the state of one method activation.
type frame struct {
	method *cil.Method
	args   []any
	locals []any
	stack  []any
}

func (f *frame) push(v any) { f.stack = append(f.stack, v) }

func (f *frame) pop() (any, error) {
	if len(f.stack) == 0 {
		return nil, errors.New("evaluation stack underflow")
	}
	v := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return v, nil
}

func (f *frame) popN(n int) ([]any, error) {
	if len(f.stack) < n {
		return nil, errors.New("evaluation stack underflow")
	}
	out := append([]any(nil), f.stack[len(f.stack)-n:]...)
	f.stack = f.stack[:len(f.stack)-n]
	return out, nil
}

func (f *frame) popInt() (int32, error) {
	v, err := f.pop()
	if err != nil {
		return 0, err
	}
	return toInt(v)
}

func toInt(v any) (int32, error) {
	switch n := v.(type) {
	case int32:
		return n, nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	}
	return 0, errors.Errorf("expected int32, got %T", v)
}

func truthy(v any) bool {
	switch n := v.(type) {
	case int32:
		return n != 0
	case bool:
		return n
	}
	return v != nil
}

// zero is the default value of a field or local of the given IL type.
func zero(ilType string) any {
	if f := strings.Fields(ilType); len(f) > 0 && (f[0] == "int32" || f[0] == "bool") {
		return int32(0)
	}
	return nil
}

// fieldName splits a field operand "type Owner::name".
func fieldName(operand string) (typ, name string) {
	i := strings.LastIndex(operand, "::")
	if i < 0 {
		return "", operand
	}
	head := operand[:i]
	if sp := strings.LastIndexByte(head, ' '); sp >= 0 {
		typ = head[:sp]
	}
	return typ, operand[i+2:]
}

func (m *Machine) exec(meth *cil.Method, args []any) (any, error) {
	l, err := meth.Listing()
	if err != nil {
		return nil, err
	}
	f := &frame{method: meth, args: args, locals: make([]any, len(meth.Locals))}
	for i, loc := range meth.Locals {
		f.locals[i] = zero(loc.Type)
	}
	limit := m.MaxSteps
	if limit == 0 {
		limit = DefaultMaxSteps
	}

	for pc := 0; pc < len(l.Instrs); {
		m.steps++
		if m.steps > limit {
			return nil, ErrStepLimit
		}
		in := l.Instrs[pc]
		next := pc + 1
		if in.Target != "" {
			taken, err := m.branch(f, in.Op)
			if err != nil {
				return nil, errors.Wrapf(err, "%s IL_%04x %s", meth.Name, l.Addrs[pc], in)
			}
			if taken {
				next, _ = l.Index(in.Target)
			}
			pc = next
			continue
		}
		if in.Op == "ret" {
			if meth.Return == "void" || len(f.stack) == 0 {
				return nil, nil
			}
			return f.pop()
		}
		if err := m.step(f, in); err != nil {
			var exit *exitError
			if errors.As(err, &exit) || errors.Is(err, ErrStepLimit) {
				return nil, err
			}
			return nil, errors.Wrapf(err, "%s IL_%04x %s", meth.Name, l.Addrs[pc], in)
		}
		pc = next
	}
	return nil, nil
}

// branch reports whether a branch instruction is taken.
func (m *Machine) branch(f *frame, op string) (bool, error) {
	op = strings.TrimSuffix(op, ".s")
	switch op {
	case "br":
		return true, nil
	case "brtrue", "brfalse":
		v, err := f.pop()
		if err != nil {
			return false, err
		}
		return truthy(v) == (op == "brtrue"), nil
	}
	b, err := f.pop()
	if err != nil {
		return false, err
	}
	a, err := f.pop()
	if err != nil {
		return false, err
	}
	ai, aok := a.(int32)
	bi, bok := b.(int32)
	if !aok || !bok {
		switch op {
		case "beq":
			return a == b, nil
		case "bne.un":
			return a != b, nil
		}
		return false, errors.Errorf("%s needs int32 operands, got %T and %T", op, a, b)
	}
	if strings.HasSuffix(op, ".un") && op != "bne.un" {
		ua, ub := uint32(ai), uint32(bi)
		switch op {
		case "bge.un":
			return ua >= ub, nil
		case "bgt.un":
			return ua > ub, nil
		case "ble.un":
			return ua <= ub, nil
		case "blt.un":
			return ua < ub, nil
		}
	}
	switch op {
	case "beq":
		return ai == bi, nil
	case "bne.un":
		return ai != bi, nil
	case "bge":
		return ai >= bi, nil
	case "bgt":
		return ai > bi, nil
	case "ble":
		return ai <= bi, nil
	case "blt":
		return ai < bi, nil
	}
	return false, errors.Errorf("unsupported branch %s", op)
}

// slotIndex resolves the operand of ldarg.s, ldloca.s and friends: a
// number or a declared local name.
func slotIndex(meth *cil.Method, operand string, locals bool) (int, error) {
	if n, err := strconv.Atoi(operand); err == nil {
		return n, nil
	}
	if locals {
		for i, loc := range meth.Locals {
			if loc.Name == operand {
				return i, nil
			}
		}
	}
	return 0, errors.Errorf("unknown slot %q", operand)
}

func (m *Machine) step(f *frame, in cil.Instr) error {
	op := in.Op
	switch {
	case strings.HasPrefix(op, "ldarg.") && op != "ldarg.s":
		i := int(op[len(op)-1] - '0')
		if i >= len(f.args) {
			return errors.Errorf("argument %d out of range", i)
		}
		f.push(f.args[i])
		return nil
	case strings.HasPrefix(op, "ldloc.") && op != "ldloc.s",
		strings.HasPrefix(op, "stloc.") && op != "stloc.s":
		i := int(op[len(op)-1] - '0')
		if i >= len(f.locals) {
			return errors.Errorf("local %d out of range", i)
		}
		if op[0] == 'l' {
			f.push(f.locals[i])
			return nil
		}
		v, err := f.pop()
		f.locals[i] = v
		return err
	case strings.HasPrefix(op, "ldc.i4"):
		return m.loadConst(f, in)
	}

	switch op {
	case "nop", "box":
		if op == "box" && in.Operand == cil.BoxBoolean {
			v, err := f.pop()
			if err != nil {
				return err
			}
			f.push(truthy(v))
		}
		return nil
	case "ldarg.s", "starg.s", "ldloc.s", "stloc.s", "ldloca.s":
		return m.slot(f, in)
	case "ldnull":
		f.push(nil)
	case "dup":
		v, err := f.pop()
		if err != nil {
			return err
		}
		f.push(v)
		f.push(v)
	case "pop":
		_, err := f.pop()
		return err
	case "ldstr":
		s, err := cil.Unquote(in.Operand)
		if err != nil {
			return err
		}
		f.push(s)
	case "add", "sub", "mul", "div", "rem", "ceq", "cgt", "clt":
		return arith(f, op)
	case "neg":
		v, err := f.popInt()
		if err != nil {
			return err
		}
		f.push(-v)
	case "ldind.i4", "ldind.ref":
		v, err := f.pop()
		if err != nil {
			return err
		}
		p, ok := v.(pointer)
		if !ok {
			return errors.Errorf("%s on %T", op, v)
		}
		f.push(p.load())
	case "stind.i4", "stind.ref":
		vals, err := f.popN(2)
		if err != nil {
			return err
		}
		p, ok := vals[0].(pointer)
		if !ok {
			return errors.Errorf("%s on %T", op, vals[0])
		}
		p.store(vals[1])
	case "ldfld", "ldflda", "stfld":
		return m.field(f, in)
	case "newarr":
		n, err := f.popInt()
		if err != nil {
			return err
		}
		arr := make([]any, n)
		if in.Operand != cil.ObjectType {
			for i := range arr {
				arr[i] = newObject(in.Operand)
			}
		}
		f.push(arr)
	case "ldelema", "ldelem.ref":
		vals, err := f.popN(2)
		if err != nil {
			return err
		}
		arr, i, err := element(vals[0], vals[1])
		if err != nil {
			return err
		}
		f.push(arr[i])
	case "stelem.ref":
		vals, err := f.popN(3)
		if err != nil {
			return err
		}
		arr, i, err := element(vals[0], vals[1])
		if err != nil {
			return err
		}
		arr[i] = vals[2]
	case "call", "callvirt", "newobj":
		return m.call(f, op, in.Operand)
	default:
		return errors.Errorf("unsupported instruction %s", op)
	}
	return nil
}

func element(a, idx any) ([]any, int, error) {
	arr, ok := a.([]any)
	if !ok {
		return nil, 0, errors.Errorf("expected array, got %T", a)
	}
	i, err := toInt(idx)
	if err != nil {
		return nil, 0, err
	}
	if i < 0 || int(i) >= len(arr) {
		return nil, 0, errors.Errorf("IndexOutOfRangeException: index %d, length %d", i, len(arr))
	}
	return arr, int(i), nil
}

func (m *Machine) loadConst(f *frame, in cil.Instr) error {
	switch in.Op {
	case "ldc.i4", "ldc.i4.s":
		v, err := strconv.ParseInt(in.Operand, 0, 64)
		if err != nil {
			return errors.Wrap(err, "bad constant")
		}
		f.push(int32(uint32(v)))
	case "ldc.i4.m1":
		f.push(int32(-1))
	default:
		f.push(int32(in.Op[len(in.Op)-1] - '0'))
	}
	return nil
}

func (m *Machine) slot(f *frame, in cil.Instr) error {
	locals := in.Op != "ldarg.s" && in.Op != "starg.s"
	i, err := slotIndex(f.method, in.Operand, locals)
	if err != nil {
		return err
	}
	slots := f.args
	if locals {
		slots = f.locals
	}
	if i < 0 || i >= len(slots) {
		return errors.Errorf("slot %d out of range", i)
	}
	switch in.Op {
	case "ldarg.s", "ldloc.s":
		f.push(slots[i])
	case "ldloca.s":
		f.push(slotAddr{slots, i})
	default:
		v, err := f.pop()
		if err != nil {
			return err
		}
		slots[i] = v
	}
	return nil
}

func arith(f *frame, op string) error {
	b, err := f.popInt()
	if err != nil {
		return err
	}
	a, err := f.popInt()
	if err != nil {
		return err
	}
	var r int32
	switch op {
	case "add":
		r = a + b
	case "sub":
		r = a - b
	case "mul":
		r = a * b
	case "div", "rem":
		if b == 0 {
			return errors.New("DivideByZeroException")
		}
		if op == "div" {
			r = a / b
		} else {
			r = a % b
		}
	case "ceq":
		r = boolInt(a == b)
	case "cgt":
		r = boolInt(a > b)
	case "clt":
		r = boolInt(a < b)
	}
	f.push(r)
	return nil
}

func boolInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

func (m *Machine) field(f *frame, in cil.Instr) error {
	typ, name := fieldName(in.Operand)
	if in.Op == "stfld" {
		vals, err := f.popN(2)
		if err != nil {
			return err
		}
		obj, ok := vals[0].(*object)
		if !ok {
			return errors.Errorf("NullReferenceException: stfld %s on %T", name, vals[0])
		}
		obj.fields[name] = vals[1]
		return nil
	}
	v, err := f.pop()
	if err != nil {
		return err
	}
	obj, ok := v.(*object)
	if !ok {
		return errors.Errorf("NullReferenceException: %s %s on %T", in.Op, name, v)
	}
	if _, set := obj.fields[name]; !set {
		obj.fields[name] = zero(typ)
	}
	if in.Op == "ldflda" {
		f.push(fieldAddr{obj, name})
	} else {
		f.push(obj.fields[name])
	}
	return nil
}

func (m *Machine) call(f *frame, op, operand string) error {
	sig, err := parseSignature(operand)
	if err != nil {
		return err
	}
	n := sig.params
	if sig.instance && op != "newobj" {
		n++
	}
	args, err := f.popN(n)
	if err != nil {
		return err
	}

	if class, ok := m.mod.Type(sig.owner); ok {
		meth, ok := class.Method(sig.name)
		if !ok {
			return errors.Errorf("MissingMethodException: %s", operand)
		}
		if op == "newobj" {
			obj := newObject(class.Name)
			if _, err := m.exec(meth, append([]any{obj}, args...)); err != nil {
				return err
			}
			f.push(obj)
			return nil
		}
		m.Logger.Debug("call", "method", sig.name)
		v, err := m.exec(meth, args)
		if err != nil {
			return err
		}
		if sig.ret != "void" {
			f.push(v)
		}
		return nil
	}

	fn, ok := m.funcs[operand]
	if !ok {
		return errors.Errorf("no implementation bound for %s", operand)
	}
	if sig.instance && op != "newobj" && args[0] == nil {
		return errors.Errorf("NullReferenceException: %s", operand)
	}
	v, err := fn(args)
	if err != nil {
		return err
	}
	if op == "newobj" || sig.ret != "void" {
		f.push(v)
	}
	return nil
}
