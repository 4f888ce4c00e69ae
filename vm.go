package teng

import (
	"io"
	"regexp"
	"strconv"
	"strings"
)

// frameIter drives one active <?teng frag?> loop: a single fragment
// cursor when the path resolved to a bare fragment (loop body runs
// exactly once), or a list cursor that advances element by element.
type frameIter struct {
	frag  *Fragment
	list  *FragmentList
	index int
}

func (fi *frameIter) done() bool {
	if fi.list != nil {
		return fi.index >= fi.list.Len()
	}
	return fi.index >= 1
}

func (fi *frameIter) current() *Fragment {
	if fi.list != nil {
		f, _ := fi.list.At(fi.index)
		return f
	}
	return fi.frag
}

// VM executes a compiled Program against a root Fragment, writing
// output to a Writer and appending diagnostics as it goes. One VM value
// is used for exactly one execution; create a fresh VM per render.
type VM struct {
	prog *Program
	diag *Diagnostics
	w    io.Writer

	stack   []Value
	rtVars  []Value
	cursors []*frameIter // one entry per currently open <?teng frag?>

	cts  *ctypeStack
	dict Dictionary

	funcs map[string]Func

	regexCache map[string]*regexp.Regexp

	includes map[string]*Program // resolved by Engine before Run
}

// NewVM builds a VM ready to execute prog against root.
func NewVM(prog *Program, root *Fragment, w io.Writer, diag *Diagnostics, dict Dictionary, defaultCType string) *VM {
	ct, ok := builtinCTypes[defaultCType]
	if !ok {
		ct = builtinCTypes["html"]
	}
	vm := &VM{
		prog:       prog,
		diag:       diag,
		w:          w,
		rtVars:     make([]Value, prog.NumRTVars),
		cts:        newCTypeStack(ct),
		dict:       dict,
		funcs:      builtinFuncs,
		regexCache: make(map[string]*regexp.Regexp),
	}
	vm.cursors = append(vm.cursors, &frameIter{frag: root})
	return vm
}

// RegisterFunc adds or overrides a callable function for CALL_FN.
func (vm *VM) RegisterFunc(name string, fn Func) {
	if vm.funcs == nil {
		vm.funcs = make(map[string]Func)
	}
	vm.funcs[name] = fn
}

// SetIncludes installs the already-compiled programs <?teng include?>
// markers resolve to, keyed by the literal path string used in the
// directive.
func (vm *VM) SetIncludes(includes map[string]*Program) {
	vm.includes = includes
}

func (vm *VM) push(v Value) { vm.stack = append(vm.stack, v) }

func (vm *VM) pop() Value {
	n := len(vm.stack)
	if n == 0 {
		return Undefined
	}
	v := vm.stack[n-1]
	vm.stack = vm.stack[:n-1]
	return v
}

func (vm *VM) top() Value {
	if len(vm.stack) == 0 {
		return Undefined
	}
	return vm.stack[len(vm.stack)-1]
}

func (vm *VM) curFrag() *Fragment {
	if len(vm.cursors) == 0 {
		return nil
	}
	return vm.cursors[len(vm.cursors)-1].current()
}

// Run executes the program from address 0 until HALT, returning the
// first VM-fatal error encountered (a built-in function error, a call to
// an unknown function, or a non-regex right side of =~/!~); anything less
// severe becomes a Diagnostics entry
// and execution continues, matching the "degrade gracefully, log loudly"
// contract templates are rendered under.
func (vm *VM) Run() error {
	pc := 0
	code := vm.prog.Code
	for pc < len(code) {
		ins := code[pc]
		next := pc + 1
		switch ins.Op {
		case OpHalt:
			return nil
		case OpPushUndefined:
			vm.push(Undefined)
		case OpPushInt:
			vm.push(IntValue(ins.I))
		case OpPushReal:
			vm.push(RealValue(ins.F))
		case OpPushString:
			vm.push(StringValue(ins.Str))
		case OpPushRegex:
			vm.push(vm.pushRegex(ins))
		case OpPop:
			vm.pop()
		case OpDup:
			vm.push(vm.top())
		case OpLoadVar:
			vm.execLoadVar(ins)
		case OpLoadRTVar:
			vm.push(vm.rtVars[ins.I])
		case OpStoreRTVar:
			vm.rtVars[ins.I] = vm.pop()
		case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpPow:
			if err := vm.execArith(ins); err != nil {
				return err
			}
		case OpNeg:
			a := vm.pop()
			if a.Kind() == KindInt {
				vm.push(IntValue(-a.AsInt()))
			} else {
				vm.push(RealValue(-a.ToReal()))
			}
		case OpConcat:
			b, a := vm.pop(), vm.pop()
			vm.push(StringValue(a.String() + b.String()))
		case OpNot:
			a := vm.pop()
			vm.push(boolValue(!a.IsTrue()))
		case OpAnd:
			b, a := vm.pop(), vm.pop()
			vm.push(boolValue(a.IsTrue() && b.IsTrue()))
		case OpOr:
			b, a := vm.pop(), vm.pop()
			vm.push(boolValue(a.IsTrue() || b.IsTrue()))
		case OpEq:
			b, a := vm.pop(), vm.pop()
			vm.push(boolValue(a.Equal(b)))
		case OpNe:
			b, a := vm.pop(), vm.pop()
			vm.push(boolValue(!a.Equal(b)))
		case OpLt, OpLe, OpGt, OpGe:
			vm.execCompare(ins)
		case OpMatch, OpNotMatch:
			if err := vm.execMatch(ins); err != nil {
				return err
			}
		case OpJmp:
			next = int(ins.I)
		case OpJmpIfFalse:
			if !vm.pop().IsTrue() {
				next = int(ins.I)
			}
		case OpJmpIfTrue:
			if vm.pop().IsTrue() {
				next = int(ins.I)
			}
		case OpOpenFrag:
			next = vm.execOpenFrag(ins, next, pc)
		case OpNextFrag:
			if r := vm.execNextFrag(ins); r >= 0 {
				next = r
			}
		case OpCloseFrag:
			if len(vm.cursors) > 1 {
				vm.cursors = vm.cursors[:len(vm.cursors)-1]
			}
		case OpPrint:
			vm.execPrint(ins, true)
		case OpPrintRaw:
			vm.execPrint(ins, false)
		case OpPrintText:
			io.WriteString(vm.w, ins.Str)
		case OpPushCType:
			ct, ok := builtinCTypes[ins.Str]
			if !ok {
				vm.diag.Warningf(ins.Pos, "Unknown content type %q, using current", ins.Str)
				ct = vm.cts.current()
			}
			vm.cts.push(ct)
		case OpPopCType:
			vm.cts.pop()
		case OpDictLookup:
			lang := vm.currentLang()
			text := dictLookup(vm.dict, vm.diag, ins.Pos, lang, ins.Str)
			io.WriteString(vm.w, text)
		case OpCallFn:
			if err := vm.execCallFn(ins); err != nil {
				return err
			}
		case OpIndex:
			vm.execIndex(ins)
		case OpExists:
			vm.execExists(ins)
		case OpIsEmpty:
			vm.execIsEmpty(ins)
		case OpTypeOf:
			vm.execTypeOf(ins)
		case OpCount:
			vm.execCount(ins)
		case OpDefined:
			vm.execDefined(ins)
		case OpJsonify:
			vm.execJsonify(ins)
		case OpMark:
			// no-op: position marker only.
		}
		pc = next
	}
	return nil
}

// currentLang returns the language selected by the most recent <?teng
// dict?> directive (stored in the reserved "$lang" runtime-variable
// slot), or "" if the template never used one.
func (vm *VM) currentLang() string {
	for i, name := range vm.prog.RTVarNames {
		if name == "$lang" {
			return vm.rtVars[i].AsString()
		}
	}
	return ""
}

func (vm *VM) pushRegex(ins Instruction) Value {
	if re, ok := vm.regexCache[ins.Str]; ok {
		return RegexValue(re)
	}
	pattern, flags := ParseRegexLiteral(ins.Str)
	goPattern := pattern
	if strings.Contains(flags, "i") {
		goPattern = "(?i)" + goPattern
	}
	re, err := regexp.Compile(goPattern)
	if err != nil {
		vm.diag.Errorf(ins.Pos, "Invalid regex /%s/: %v", pattern, err)
		return Undefined
	}
	vm.regexCache[ins.Str] = re
	return RegexValue(re)
}

// execLoadVar resolves a single path segment against either the operand
// stack's top (member access chained via parsePostfix, in which case the
// receiver is already on the stack) or, for a bare identifier, the
// current fragment cursor.
func (vm *VM) execLoadVar(ins Instruction) {
	if len(vm.stack) > 0 {
		recv := vm.pop()
		if recv.Kind() == KindListRef && IsAmbiguousListStep(recv.AsList()) {
			vm.diag.Warningf(ins.Pos, "Lookup of %q references fragment list of '%d' fragments; the expression is ambiguous", ins.Str, recv.AsList().Len())
		}
		v, ok := resolveStep(recv, ins.Str)
		if !ok {
			vm.diag.Warningf(ins.Pos, "Undefined path segment %q", ins.Str)
			vm.push(Undefined)
			return
		}
		vm.push(v)
		return
	}
	cur := vm.curFrag()
	if cur == nil {
		vm.push(Undefined)
		return
	}
	v, ok := resolveStep(FragValue(cur), ins.Str)
	if !ok {
		vm.diag.Warningf(ins.Pos, "Undefined variable %q", ins.Str)
		vm.push(Undefined)
		return
	}
	vm.push(v)
}

func (vm *VM) execArith(ins Instruction) error {
	b, a := vm.pop(), vm.pop()
	if !a.IsNumeric() || !b.IsNumeric() {
		vm.diag.Errorf(ins.Pos, "Arithmetic on non-numeric operand (%s, %s)", a.Kind(), b.Kind())
		vm.push(Undefined)
		return nil
	}
	bothInt := a.Kind() == KindInt && b.Kind() == KindInt
	switch ins.Op {
	case OpAdd:
		if bothInt {
			vm.push(IntValue(a.AsInt() + b.AsInt()))
		} else {
			vm.push(RealValue(a.ToReal() + b.ToReal()))
		}
	case OpSub:
		if bothInt {
			vm.push(IntValue(a.AsInt() - b.AsInt()))
		} else {
			vm.push(RealValue(a.ToReal() - b.ToReal()))
		}
	case OpMul:
		if bothInt {
			vm.push(IntValue(a.AsInt() * b.AsInt()))
		} else {
			vm.push(RealValue(a.ToReal() * b.ToReal()))
		}
	case OpDiv:
		if bothInt {
			if b.AsInt() == 0 {
				vm.diag.Errorf(ins.Pos, "integer division by zero")
				vm.push(Undefined)
				return nil
			}
			vm.push(IntValue(a.AsInt() / b.AsInt()))
		} else {
			if b.ToReal() == 0 {
				vm.diag.Errorf(ins.Pos, "division by zero")
				vm.push(Undefined)
				return nil
			}
			vm.push(RealValue(a.ToReal() / b.ToReal()))
		}
	case OpMod:
		if !bothInt || b.AsInt() == 0 {
			vm.diag.Errorf(ins.Pos, "modulo requires non-zero integer operands")
			vm.push(Undefined)
			return nil
		}
		vm.push(IntValue(a.AsInt() % b.AsInt()))
	case OpPow:
		vm.push(RealValue(powFloat(a.ToReal(), b.ToReal())))
	}
	return nil
}

func powFloat(base, exp float64) float64 {
	result := 1.0
	neg := exp < 0
	if neg {
		exp = -exp
	}
	for i := 0; i < int(exp); i++ {
		result *= base
	}
	if neg {
		if result == 0 {
			return 0
		}
		return 1 / result
	}
	return result
}

func (vm *VM) execCompare(ins Instruction) {
	b, a := vm.pop(), vm.pop()
	cmp, ok := a.Compare(b)
	if !ok {
		vm.diag.Warningf(ins.Pos, "Incomparable operands (%s, %s)", a.Kind(), b.Kind())
		vm.push(boolValue(false))
		return
	}
	switch ins.Op {
	case OpLt:
		vm.push(boolValue(cmp < 0))
	case OpLe:
		vm.push(boolValue(cmp <= 0))
	case OpGt:
		vm.push(boolValue(cmp > 0))
	case OpGe:
		vm.push(boolValue(cmp >= 0))
	}
}

func (vm *VM) execMatch(ins Instruction) error {
	b, a := vm.pop(), vm.pop()
	if b.Kind() != KindRegex {
		return newErrorf("vm:match", ins.Pos, vm.prog.Filename, "right-hand side of =~/!~ must be a regex literal")
	}
	matched := b.AsRegex() != nil && b.AsRegex().MatchString(a.String())
	if ins.Op == OpNotMatch {
		matched = !matched
	}
	vm.push(boolValue(matched))
	return nil
}

// execOpenFrag resolves ins.Str (a dotted path) against the current
// fragment cursor and returns the pc to continue at. If there's at least
// one element to run against, it pushes a new iteration cursor and
// continues at the loop body. If the path resolved to an empty list or
// failed to resolve at all, no cursor is pushed and execution continues
// just past the loop's CLOSE_FRAG (ins.I points at CLOSE_FRAG, which must
// not run since it would pop the enclosing cursor).
func (vm *VM) execOpenFrag(ins Instruction, bodyPC int, pc int) int {
	segments := strings.Split(ins.Str, ".")
	v, ok := ResolvePath(vm.curFrag(), segments)
	if !ok {
		vm.diag.Warningf(ins.Pos, "Fragment path %q did not resolve, skipping loop", ins.Str)
		return int(ins.I) + 1
	}
	switch v.Kind() {
	case KindFragRef:
		vm.cursors = append(vm.cursors, &frameIter{frag: v.AsFrag()})
		return bodyPC
	case KindListRef:
		l := v.AsList()
		if l.Len() == 0 {
			return int(ins.I) + 1
		}
		vm.cursors = append(vm.cursors, &frameIter{list: l})
		return bodyPC
	default:
		vm.diag.Warningf(ins.Pos, "Fragment path %q did not resolve to a fragment or list", ins.Str)
		return int(ins.I) + 1
	}
}

// execNextFrag advances the innermost cursor; ins.I is the loop body's
// start address.
func (vm *VM) execNextFrag(ins Instruction) int {
	top := vm.cursors[len(vm.cursors)-1]
	top.index++
	if top.done() {
		return -1 // signal caller to fall through to CLOSE_FRAG at pc+1
	}
	return int(ins.I)
}

func (vm *VM) execPrint(ins Instruction, escape bool) {
	v := vm.pop()
	switch v.Kind() {
	case KindFragRef, KindListRef:
		vm.diag.Errorf(ins.Pos, "Cannot print a non-scalar value (%s)", v.Kind())
		return
	}
	s := v.String()
	if escape {
		s = vm.cts.current().Escape(s)
	}
	io.WriteString(vm.w, s)
}

func (vm *VM) execCallFn(ins Instruction) error {
	if strings.HasPrefix(ins.Str, "@include:") {
		path := strings.TrimPrefix(ins.Str, "@include:")
		sub, ok := vm.includes[path]
		if !ok {
			vm.diag.Errorf(ins.Pos, "Included template %q was not resolved at compile time", path)
			return nil
		}
		subVM := NewVM(sub, vm.curFrag(), vm.w, vm.diag, vm.dict, vm.cts.current().Name)
		subVM.funcs = vm.funcs
		subVM.includes = vm.includes
		return subVM.Run()
	}
	argc := int(ins.I)
	args := make([]Value, argc)
	for i := argc - 1; i >= 0; i-- {
		args[i] = vm.pop()
	}
	fn, ok := vm.funcs[ins.Str]
	if !ok {
		return newErrorf("vm:call", ins.Pos, vm.prog.Filename, "call to undefined function %q", ins.Str)
	}
	result, err := fn(args)
	if err != nil {
		return newErrorf("builtin:"+ins.Str, ins.Pos, vm.prog.Filename, "%v", err)
	}
	vm.push(result)
	return nil
}

// execIndex implements the postfix "[expr]" indexing form against a list
// or, for a fragment, a member name computed at runtime (e.g. x[somekey]).
func (vm *VM) execIndex(ins Instruction) {
	idx, recv := vm.pop(), vm.pop()
	switch recv.Kind() {
	case KindListRef:
		if !idx.IsNumeric() {
			vm.diag.Errorf(ins.Pos, "List index must be numeric, got %s", idx.Kind())
			vm.push(Undefined)
			return
		}
		f, err := IndexList(recv.AsList(), idx.AsInt())
		if err != nil {
			vm.diag.Warningf(ins.Pos, "%v", err)
			vm.push(Undefined)
			return
		}
		vm.push(FragValue(f))
	case KindFragRef:
		v, ok := resolveStep(recv, idx.String())
		if !ok {
			vm.diag.Warningf(ins.Pos, "Undefined computed member %q", idx.String())
			vm.push(Undefined)
			return
		}
		vm.push(v)
	default:
		vm.diag.Errorf(ins.Pos, "Cannot index into a %s value", recv.Kind())
		vm.push(Undefined)
	}
}

// queryPath splits ins.Str and resolves it quietly (no diagnostics) against
// the current fragment cursor - every query op applies to the unresolved
// path itself, which is the whole point: EXISTS must not trip the "missing"
// warning its own lookup would otherwise cause.
func (vm *VM) queryPath(ins Instruction) (Value, bool) {
	return ResolvePath(vm.curFrag(), strings.Split(ins.Str, "."))
}

func (vm *VM) execExists(ins Instruction) {
	_, ok := vm.queryPath(ins)
	vm.push(boolValue(ok))
}

func (vm *VM) execIsEmpty(ins Instruction) {
	v, ok := vm.queryPath(ins)
	if !ok {
		vm.push(boolValue(true))
		return
	}
	switch v.Kind() {
	case KindUndefined:
		vm.push(boolValue(true))
	case KindString:
		vm.push(boolValue(v.AsString() == ""))
	case KindListRef:
		vm.push(boolValue(v.AsList().Len() == 0))
	default:
		vm.push(boolValue(false))
	}
}

func (vm *VM) execTypeOf(ins Instruction) {
	v, _ := vm.queryPath(ins)
	vm.push(StringValue(v.TypeName()))
}

// execCount pushes the element count of a list path. Calling count() on a
// non-list is a deprecated usage (originally tolerated by treating a bare
// fragment as a one-element list); any resolved non-list value still
// counts as a single element, but logs a DIAG hint followed by the
// WARNING, rather than failing outright.
func (vm *VM) execCount(ins Instruction) {
	v, ok := vm.queryPath(ins)
	if !ok {
		vm.push(IntValue(0))
		return
	}
	if v.Kind() == KindListRef {
		vm.push(IntValue(int64(v.AsList().Len())))
		return
	}
	vm.diag.Diagf(ins.Pos, "count() is meant for lists, not a %s value", v.Kind())
	vm.diag.Warningf(ins.Pos, "count(%q) called on a non-list value, assuming a single element", ins.Str)
	vm.push(IntValue(1))
}

// execDefined reports whether the path's final segment was explicitly set
// on its owning fragment, as opposed to merely resolving through a
// pseudo-attribute the way EXISTS does.
func (vm *VM) execDefined(ins Instruction) {
	segments := strings.Split(ins.Str, ".")
	cur := FragValue(vm.curFrag())
	for i, seg := range segments {
		if i == len(segments)-1 {
			f := cur.AsFrag()
			if cur.Kind() != KindFragRef || f == nil {
				vm.push(boolValue(false))
				return
			}
			_, ok := f.values[seg]
			vm.push(boolValue(ok))
			return
		}
		next, ok := resolveStep(cur, seg)
		if !ok {
			vm.push(boolValue(false))
			return
		}
		cur = next
	}
	vm.push(boolValue(false))
}

func (vm *VM) execJsonify(ins Instruction) {
	v, _ := vm.queryPath(ins)
	vm.push(StringValue(jsonifyValue(v)))
}

func jsonifyValue(v Value) string {
	switch v.Kind() {
	case KindUndefined:
		return "null"
	case KindInt:
		return strconv.FormatInt(v.AsInt(), 10)
	case KindReal:
		return strconv.FormatFloat(v.AsReal(), 'g', -1, 64)
	case KindString:
		return jsonString(v.AsString())
	case KindRegex:
		return jsonString(v.String())
	case KindFragRef:
		return jsonifyFragment(v.AsFrag())
	case KindListRef:
		return jsonifyList(v.AsList())
	default:
		return "null"
	}
}

func jsonifyFragment(f *Fragment) string {
	if f == nil {
		return "null"
	}
	var sb strings.Builder
	sb.WriteByte('{')
	for i, name := range f.Names() {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(jsonString(name))
		sb.WriteByte(':')
		sb.WriteString(jsonifyValue(f.Get(name)))
	}
	sb.WriteByte('}')
	return sb.String()
}

func jsonifyList(l *FragmentList) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, el := range l.Items() {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(jsonifyFragment(el))
	}
	sb.WriteByte(']')
	return sb.String()
}

func jsonString(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\r':
			sb.WriteString(`\r`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
