package teng

// Fragment is one node of the caller-supplied data tree: an ordered map
// from attribute name to Value, plus a back-pointer to its parent so
// path resolution can walk upward (_parent) and a back-pointer to the
// FragmentList it lives in, if any, so pseudo-attributes like _count,
// _index and _number can be computed without storing them redundantly.
type Fragment struct {
	names  []string
	values map[string]Value

	parent *Fragment
	inList *FragmentList // list this fragment is an element of, if any
	index  int           // 0-based position within inList
}

// NewFragment returns an empty fragment with no parent. Use Set to
// populate it and SetFrag/SetList/FragmentList.Add to place it in a tree.
func NewFragment() *Fragment {
	return &Fragment{values: make(map[string]Value)}
}

// Set assigns name to val, preserving first-insertion order for Names.
// Re-setting an existing name keeps its original position.
func (f *Fragment) Set(name string, val Value) {
	if _, ok := f.values[name]; !ok {
		f.names = append(f.names, name)
	}
	f.values[name] = val
}

// SetFrag sets a child fragment attribute and wires its parent pointer.
func (f *Fragment) SetFrag(name string, child *Fragment) {
	child.parent = f
	f.Set(name, FragValue(child))
}

// SetList sets a child list attribute and wires every element's parent
// pointer to f (a list does not itself carry a parent pointer; only the
// fragments inside it do, all pointing to the same enclosing fragment -
// per spec, _parent skips over the list level entirely).
func (f *Fragment) SetList(name string, list *FragmentList) {
	for _, el := range list.items {
		el.parent = f
	}
	f.Set(name, ListValue(list))
}

// Get returns the plain (non-pseudo) attribute named name, or Undefined
// if absent.
func (f *Fragment) Get(name string) Value {
	if v, ok := f.values[name]; ok {
		return v
	}
	return Undefined
}

// Names returns attribute names in insertion order.
func (f *Fragment) Names() []string {
	return f.names
}

// Parent returns the enclosing fragment, or nil at the tree root.
func (f *Fragment) Parent() *Fragment {
	return f.parent
}

// pseudo resolves one of the fixed pseudo-attributes (_this, _parent,
// _count, _first, _last, _inner, _index, _number) against f. ok is false
// for any other name, letting the caller fall back to a plain lookup.
func (f *Fragment) pseudo(name string) (Value, bool) {
	switch name {
	case "_this":
		return FragValue(f), true
	case "_parent":
		if f.parent == nil {
			// Degrade to self past the root, per spec: _parent at the
			// top of the tree has nowhere to go, so it stays put rather
			// than producing Undefined.
			return FragValue(f), true
		}
		return FragValue(f.parent), true
	}
	if f.inList == nil {
		return Undefined, false
	}
	switch name {
	case "_count":
		return IntValue(int64(f.inList.Len())), true
	case "_index":
		return IntValue(int64(f.index)), true
	case "_number":
		return IntValue(int64(f.index + 1)), true
	case "_first":
		return boolValue(f.index == 0), true
	case "_last":
		return boolValue(f.index == f.inList.Len()-1), true
	case "_inner":
		return boolValue(f.index != 0 && f.index != f.inList.Len()-1), true
	}
	return Undefined, false
}

func boolValue(b bool) Value {
	if b {
		return IntValue(1)
	}
	return IntValue(0)
}

// FragmentList is an ordered, 0-indexed sequence of fragments, the only
// collection type in the data model (there is no bare list of scalars;
// every element is a Fragment).
type FragmentList struct {
	items []*Fragment
}

// NewFragmentList returns an empty list.
func NewFragmentList() *FragmentList {
	return &FragmentList{}
}

// Add appends el, wiring its inList/index bookkeeping for the pseudo
// attributes. Call this (not raw slice append) whenever building a list
// that templates will iterate with <?teng frag list?>.
func (l *FragmentList) Add(el *Fragment) {
	el.inList = l
	el.index = len(l.items)
	l.items = append(l.items, el)
}

// Len returns the number of elements.
func (l *FragmentList) Len() int {
	return len(l.items)
}

// At returns the element at i, supporting negative indices counted from
// the end (-1 is the last element), matching the path resolver's
// wraparound rule. ok is false if i is out of range even after
// wraparound.
func (l *FragmentList) At(i int) (*Fragment, bool) {
	n := len(l.items)
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return nil, false
	}
	return l.items[i], true
}

// Items returns the elements in order. The returned slice must not be
// mutated by the caller.
func (l *FragmentList) Items() []*Fragment {
	return l.items
}
