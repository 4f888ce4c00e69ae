package teng

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Kind discriminates the tagged union stored in a Value. Unlike a
// reflect-based generic value, a teng Value only ever holds one of these
// concrete shapes, so arithmetic/comparison/printing never has to consult
// reflect.Kind at runtime.
type Kind int

const (
	KindUndefined Kind = iota
	KindInt
	KindReal
	KindString
	KindRegex
	KindFragRef
	KindListRef
)

// String returns the exact literal teng's type()/typeof() query reports:
// one of {integral, real, string_ref, list_ref, frag_ref, regex, undefined}.
func (k Kind) String() string {
	switch k {
	case KindUndefined:
		return "undefined"
	case KindInt:
		return "integral"
	case KindReal:
		return "real"
	case KindString:
		return "string_ref"
	case KindRegex:
		return "regex"
	case KindFragRef:
		return "frag_ref"
	case KindListRef:
		return "list_ref"
	default:
		return "unknown"
	}
}

// Value is teng's runtime value: a small tagged union, copied by value on
// the VM's operand stack. Strings are carried as Go strings (StringRef in
// the spec's vocabulary is just this same representation, since Go strings
// are already immutable, reference-counted-by-the-runtime views of their
// backing bytes - no separate representation is needed).
type Value struct {
	kind Kind

	i int64
	f float64
	s string
	r *regexp.Regexp

	frag *Fragment
	list *FragmentList
}

// Undefined is the zero Value; reading a missing path yields it.
var Undefined = Value{kind: KindUndefined}

func IntValue(i int64) Value             { return Value{kind: KindInt, i: i} }
func RealValue(f float64) Value          { return Value{kind: KindReal, f: f} }
func StringValue(s string) Value         { return Value{kind: KindString, s: s} }
func RegexValue(re *regexp.Regexp) Value { return Value{kind: KindRegex, r: re} }
func FragValue(f *Fragment) Value        { return Value{kind: KindFragRef, frag: f} }
func ListValue(l *FragmentList) Value    { return Value{kind: KindListRef, list: l} }

func (v Value) Kind() Kind         { return v.kind }
func (v Value) IsUndefined() bool  { return v.kind == KindUndefined }

func (v Value) AsInt() int64            { return v.i }
func (v Value) AsReal() float64         { return v.f }
func (v Value) AsString() string        { return v.s }
func (v Value) AsRegex() *regexp.Regexp { return v.r }
func (v Value) AsFrag() *Fragment       { return v.frag }
func (v Value) AsList() *FragmentList   { return v.list }

// IsTrue implements the truthiness rules used by if/elif and the logical
// operators: undefined and zero-valued scalars are false; empty strings
// are false; fragments/lists are true whenever they're non-nil (their
// emptiness is judged by _count, not by boolean coercion).
func (v Value) IsTrue() bool {
	switch v.kind {
	case KindUndefined:
		return false
	case KindInt:
		return v.i != 0
	case KindReal:
		return v.f != 0
	case KindString:
		return v.s != ""
	case KindRegex:
		return v.r != nil
	case KindFragRef:
		return v.frag != nil
	case KindListRef:
		return v.list != nil
	default:
		return false
	}
}

// ToReal coerces int/real to float64; anything else is 0.
func (v Value) ToReal() float64 {
	switch v.kind {
	case KindInt:
		return float64(v.i)
	case KindReal:
		return v.f
	default:
		return 0
	}
}

// IsNumeric reports whether v is int or real.
func (v Value) IsNumeric() bool {
	return v.kind == KindInt || v.kind == KindReal
}

// String renders v the way PRINT/PRINT_RAW render a scalar before
// escaping is applied: integers in base 10, reals with Go's shortest
// round-tripping form, strings verbatim, regexes as their pattern, and
// everything else (undefined, fragments, lists) as an empty string; the
// VM's execPrint logs an ERROR before printing a fragment or list.
func (v Value) String() string {
	switch v.kind {
	case KindUndefined:
		return ""
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindReal:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return v.s
	case KindRegex:
		if v.r != nil {
			return v.r.String()
		}
		return ""
	default:
		return ""
	}
}

// TypeName reports the dictionary-lookup/diagnostics-friendly name of v's
// kind, used by builtins like typeof().
func (v Value) TypeName() string {
	return v.kind.String()
}

// Equal implements teng's "==" / "!=" semantics: numeric values compare by
// value across int/real, strings compare byte-wise, fragments/lists
// compare by identity, and any other combination (including either side
// being undefined) is unequal unless both sides are undefined.
func (v Value) Equal(o Value) bool {
	switch {
	case v.kind == KindUndefined && o.kind == KindUndefined:
		return true
	case v.IsNumeric() && o.IsNumeric():
		return v.ToReal() == o.ToReal()
	case v.kind == KindString && o.kind == KindString:
		return v.s == o.s
	case v.kind == KindFragRef && o.kind == KindFragRef:
		return v.frag == o.frag
	case v.kind == KindListRef && o.kind == KindListRef:
		return v.list == o.list
	default:
		return false
	}
}

// Compare implements ordering for </<=/>/>=: numeric values order
// numerically, strings order lexicographically by byte value, anything
// else is incomparable and Compare's second return is false.
func (v Value) Compare(o Value) (cmp int, ok bool) {
	switch {
	case v.IsNumeric() && o.IsNumeric():
		a, b := v.ToReal(), o.ToReal()
		switch {
		case a < b:
			return -1, true
		case a > b:
			return 1, true
		default:
			return 0, true
		}
	case v.kind == KindString && o.kind == KindString:
		return strings.Compare(v.s, o.s), true
	default:
		return 0, false
	}
}

// GoString supports %#v-style debug dumps used by the dump package and by
// test golden output.
func (v Value) GoString() string {
	switch v.kind {
	case KindUndefined:
		return "Undefined"
	case KindInt:
		return fmt.Sprintf("Int(%d)", v.i)
	case KindReal:
		return fmt.Sprintf("Real(%g)", v.f)
	case KindString:
		return fmt.Sprintf("String(%q)", v.s)
	case KindRegex:
		return fmt.Sprintf("Regex(/%s/)", v.r.String())
	case KindFragRef:
		return fmt.Sprintf("Frag(%p)", v.frag)
	case KindListRef:
		return fmt.Sprintf("List(%p, len=%d)", v.list, v.list.Len())
	default:
		return "?"
	}
}
