package teng

import (
	"bytes"

	. "gopkg.in/check.v1"
)

type VMSuite struct{}

var _ = Suite(&VMSuite{})

func render(c *C, tplSrc string, root *Fragment) (string, *Diagnostics) {
	diag := NewDiagnostics()
	src := NewSource("vm_test", tplSrc)
	prog := Parse(src, diag, ParseOptions{DefaultCType: "html"})
	var buf bytes.Buffer
	vm := NewVM(prog, root, &buf, diag, nil, "html")
	err := vm.Run()
	c.Assert(err, IsNil)
	return buf.String(), diag
}

func (s *VMSuite) TestPrintEscapesHTML(c *C) {
	root := NewFragment()
	root.Set("name", StringValue("<b>Bob</b>"))
	out, _ := render(c, `Hi ${name}!`, root)
	c.Check(out, Equals, "Hi &lt;b&gt;Bob&lt;/b&gt;!")
}

func (s *VMSuite) TestPrintRawDoesNotEscape(c *C) {
	root := NewFragment()
	root.Set("html", StringValue("<i>x</i>"))
	out, _ := render(c, `%{html}`, root)
	c.Check(out, Equals, "<i>x</i>")
}

func (s *VMSuite) TestIfElifElse(c *C) {
	root := NewFragment()
	root.Set("n", IntValue(2))
	out, _ := render(c, `<?teng if n == 1?>one<?teng elif n == 2?>two<?teng else?>other<?teng endif?>`, root)
	c.Check(out, Equals, "two")
}

func (s *VMSuite) TestFragLoopOverList(c *C) {
	root := NewFragment()
	list := NewFragmentList()
	for _, name := range []string{"a", "b", "c"} {
		el := NewFragment()
		el.Set("name", StringValue(name))
		list.Add(el)
	}
	root.SetList("items", list)

	out, _ := render(c, `<?teng frag items?>[${name}:${_number}]<?teng endfrag?>`, root)
	c.Check(out, Equals, "[a:1][b:2][c:3]")
}

func (s *VMSuite) TestSetAndArithmetic(c *C) {
	root := NewFragment()
	out, _ := render(c, `<?teng set x = 2 + 3 * 4?>${x}`, root)
	c.Check(out, Equals, "14")
}

func (s *VMSuite) TestDivisionByZeroLogsErrorAndYieldsUndefined(c *C) {
	diag := NewDiagnostics()
	src := NewSource("t", `${1/0}`)
	prog := Parse(src, diag, ParseOptions{DefaultCType: "html"})
	var buf bytes.Buffer
	vm := NewVM(prog, NewFragment(), &buf, diag, nil, "html")
	err := vm.Run()
	c.Assert(err, IsNil)
	c.Check(buf.String(), Equals, "")
	c.Check(diag.CountSeverity(ErrorSeverity), Equals, 1)
}

func (s *VMSuite) TestUndefinedPathLogsWarning(c *C) {
	root := NewFragment()
	out, diag := render(c, `${missing}`, root)
	c.Check(out, Equals, "")
	c.Check(diag.CountSeverity(Warning), Equals, 1)
}

func (s *VMSuite) TestCaseExpression(c *C) {
	root := NewFragment()
	root.Set("n", IntValue(3))
	out, _ := render(c, `${case(n, 1: "a", 2, 3: "b", *: "z")}`, root)
	c.Check(out, Equals, "b")
}

func (s *VMSuite) TestCaseExpressionFallsThroughToDefault(c *C) {
	root := NewFragment()
	root.Set("n", IntValue(9))
	out, _ := render(c, `${case(n, 1: "a", 2, 3: "b", *: "z")}`, root)
	c.Check(out, Equals, "z")
}

func (s *VMSuite) TestBuiltinFunction(c *C) {
	root := NewFragment()
	root.Set("name", StringValue("bob"))
	out, _ := render(c, `${strtoupper(name)}`, root)
	c.Check(out, Equals, "BOB")
}

func (s *VMSuite) TestCTypeDirectiveSwitchesEscaping(c *C) {
	root := NewFragment()
	root.Set("raw", StringValue("<x>"))
	out, _ := render(c, `<?teng ctype none?>${raw}<?teng endctype?>|${raw}`, root)
	c.Check(out, Equals, "<x>|&lt;x&gt;")
}

// TestExistsNeverLogsUndefinedWarning pins the invariant that exists()
// inspects a path directly rather than evaluating it as a variable
// reference, so a missing path never produces the "undefined" warning a
// plain ${missing} would.
func (s *VMSuite) TestExistsNeverLogsUndefinedWarning(c *C) {
	root := NewFragment()
	out, diag := render(c, `${exists(missing)}`, root)
	c.Check(out, Equals, "0")
	c.Check(diag.CountSeverity(Warning), Equals, 0)
}

func (s *VMSuite) TestExistsOnSetPath(c *C) {
	root := NewFragment()
	root.Set("name", StringValue("bob"))
	out, _ := render(c, `${exists(name)}`, root)
	c.Check(out, Equals, "1")
}

func (s *VMSuite) TestIsEmpty(c *C) {
	root := NewFragment()
	root.Set("empty", StringValue(""))
	root.Set("full", StringValue("x"))
	out, _ := render(c, `${isempty(empty)}:${isempty(full)}:${isempty(missing)}`, root)
	c.Check(out, Equals, "1:0:1")
}

func (s *VMSuite) TestTypeOfQuery(c *C) {
	root := NewFragment()
	root.Set("n", IntValue(3))
	root.Set("s", StringValue("x"))
	out, _ := render(c, `${type(n)}:${type(s)}:${type(missing)}`, root)
	c.Check(out, Equals, "integral:string_ref:undefined")
}

// TestCountOnNonListLogsDiagThenWarning pins the DIAG-hint-then-WARNING
// sequencing for count() called on something other than a list: the DIAG
// always immediately precedes the WARNING it explains.
func (s *VMSuite) TestCountOnNonListLogsDiagThenWarning(c *C) {
	root := NewFragment()
	root.Set("name", StringValue("bob"))
	out, diag := render(c, `${count(name)}`, root)
	c.Check(out, Equals, "1")

	entries := diag.Entries()
	c.Assert(len(entries) >= 2, Equals, true)
	c.Check(entries[0].Severity, Equals, Diag)
	c.Check(entries[1].Severity, Equals, Warning)
}

func (s *VMSuite) TestCountOnList(c *C) {
	root := NewFragment()
	list := NewFragmentList()
	list.Add(NewFragment())
	list.Add(NewFragment())
	root.SetList("items", list)
	out, _ := render(c, `${count(items)}`, root)
	c.Check(out, Equals, "2")
}

// TestDefinedRequiresExplicitAssignment pins the difference between
// defined() and exists(): defined() only answers true for a path that was
// explicitly set on its fragment, not a pseudo-attribute or a path that
// merely resolves.
func (s *VMSuite) TestDefinedRequiresExplicitAssignment(c *C) {
	root := NewFragment()
	root.Set("name", StringValue("bob"))
	out, _ := render(c, `${defined(name)}:${defined(missing)}`, root)
	c.Check(out, Equals, "1:0")
}

func (s *VMSuite) TestJsonifyScalarAndMissing(c *C) {
	root := NewFragment()
	root.Set("name", StringValue("bob"))
	out, _ := render(c, `%{jsonify(name)}|%{jsonify(missing)}`, root)
	c.Check(out, Equals, `"bob"|null`)
}
