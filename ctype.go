package teng

import "strings"

// CType names a registered content type, used by <?teng ctype NAME?> /
// <?teng endctype?> to select how PRINT escapes scalar values. The VM
// resolves ctype names against the built-in "html" and "none" table below
// only.
type CType struct {
	Name string
	// Escape transforms raw into its escaped form for this content type.
	Escape func(raw string) string
}

var builtinCTypes = map[string]*CType{
	"none": {Name: "none", Escape: func(s string) string { return s }},
	"html": {Name: "html", Escape: escapeHTML},
}

func escapeHTML(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		switch r {
		case '&':
			sb.WriteString("&amp;")
		case '<':
			sb.WriteString("&lt;")
		case '>':
			sb.WriteString("&gt;")
		case '"':
			sb.WriteString("&quot;")
		case '\'':
			sb.WriteString("&#39;")
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// ctypeStack tracks the active content type during VM execution. It
// starts with a single implicit entry (the template's default, usually
// "html") and grows/shrinks with PUSH_CTYPE/POP_CTYPE, mirroring the
// directive nesting teng authors write. The parser rejects an endctype
// with no open ctype; it does not check that ctype/endctype balance
// within a fragment body.
type ctypeStack struct {
	stack []*CType
}

func newCTypeStack(defaultCType *CType) *ctypeStack {
	return &ctypeStack{stack: []*CType{defaultCType}}
}

func (c *ctypeStack) push(ct *CType) {
	c.stack = append(c.stack, ct)
}

func (c *ctypeStack) pop() *CType {
	n := len(c.stack)
	if n <= 1 {
		// Popping past the default is a compiler bug (parser is supposed
		// to reject unbalanced ctype/endctype), not a runtime condition
		// to recover from gracefully; stay on the default rather than
		// panic so a malformed program degrades instead of crashing.
		return c.stack[0]
	}
	top := c.stack[n-1]
	c.stack = c.stack[:n-1]
	return top
}

func (c *ctypeStack) current() *CType {
	return c.stack[len(c.stack)-1]
}
