package teng

import "fmt"

// ResolvePath looks up a dotted path (already split into segments by the
// caller, e.g. "a.b.c" -> ["a","b","c"]) against a starting fragment,
// returning the resolved Value. ok is false if any step fails to resolve,
// including a plain name stepping into a list that doesn't hold exactly
// one element (see resolveListStep). ResolvePath itself logs nothing.
func ResolvePath(start *Fragment, segments []string) (Value, bool) {
	cur := FragValue(start)
	for _, seg := range segments {
		next, ok := resolveStep(cur, seg)
		if !ok {
			return Undefined, false
		}
		cur = next
	}
	return cur, true
}

// resolveStep resolves one path segment against the current value. A
// segment applies only to a fragment or list value; scalars have no
// members and any attempt to step into one fails.
func resolveStep(cur Value, seg string) (Value, bool) {
	switch cur.Kind() {
	case KindFragRef:
		f := cur.AsFrag()
		if f == nil {
			return Undefined, false
		}
		if v, ok := f.pseudo(seg); ok {
			return v, true
		}
		if v, ok := f.values[seg]; ok {
			return v, true
		}
		return Undefined, false
	case KindListRef:
		l := cur.AsList()
		if l == nil {
			return Undefined, false
		}
		return resolveListStep(l, seg)
	default:
		return Undefined, false
	}
}

// resolveListStep implements the ambiguous-list lookup rule: stepping
// into a list with a plain attribute name (not an index, not a list
// pseudo-attribute) is only valid when the list has exactly one element,
// in which case the step is forwarded to that element; any other count
// is unresolvable here (execLoadVar logs the ambiguity as a WARNING).
// Numeric indices are handled by the parser emitting INDEX (see
// VM.execIndex) instead of going through this generic string-segment
// path.
func resolveListStep(l *FragmentList, seg string) (Value, bool) {
	switch l.Len() {
	case 1:
		return resolveStep(FragValue(l.items[0]), seg)
	default:
		return Undefined, false
	}
}

// IsAmbiguousListStep reports whether stepping into list l with a plain
// name (as opposed to an explicit index) would be ambiguous, i.e. l
// holds more than one element. The VM calls this before resolveListStep
// to decide whether to log a WARNING.
func IsAmbiguousListStep(l *FragmentList) bool {
	return l.Len() > 1
}

// IndexList resolves list[i] with wraparound, returning a descriptive
// error suitable for a diagnostics message when i is out of range.
func IndexList(l *FragmentList, i int64) (*Fragment, error) {
	f, ok := l.At(int(i))
	if !ok {
		return nil, fmt.Errorf("list index %d out of range (length %d)", i, l.Len())
	}
	return f, nil
}
