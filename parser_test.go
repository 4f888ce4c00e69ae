package teng

import (
	"bytes"

	. "gopkg.in/check.v1"
)

type ParserSuite struct{}

var _ = Suite(&ParserSuite{})

// TestFragCrossingIfIsDiscarded pins the scenario where an <?teng if?>
// opened inside a fragment block is closed by the fragment's "endfrag"
// instead of its own "endif": the if statement crosses the parent
// fragment block, so its body ("X") never renders, the fragment body
// compiles as empty, and the stray trailing "endif" is reported and
// skipped, leaving "Y" and "Z" from the surrounding text.
func (s *ParserSuite) TestFragCrossingIfIsDiscarded(c *C) {
	diag := NewDiagnostics()
	src := NewSource("t", `<?teng frag a?><?teng if 1?>X<?teng endfrag?>Y<?teng endif?>Z`)
	prog := Parse(src, diag, ParseOptions{DefaultCType: "html"})

	var buf bytes.Buffer
	root := NewFragment()
	vm := NewVM(prog, root, &buf, diag, nil, "html")
	c.Assert(vm.Run(), IsNil)
	c.Check(buf.String(), Equals, "YZ")

	var crossMsg string
	for _, e := range diag.Entries() {
		if e.Severity == ErrorSeverity {
			crossMsg = e.Message
			break
		}
	}
	c.Check(crossMsg, Equals, "if statement crosses the parent fragment block")
}

// TestUnterminatedFragIsDiscarded pins the EOF-before-"endfrag" case: the
// fragment's whole body is discarded rather than emitted partially.
func (s *ParserSuite) TestUnterminatedFragIsDiscarded(c *C) {
	diag := NewDiagnostics()
	src := NewSource("t", `<?teng frag a?>X`)
	prog := Parse(src, diag, ParseOptions{DefaultCType: "html"})

	var buf bytes.Buffer
	vm := NewVM(prog, NewFragment(), &buf, diag, nil, "html")
	c.Assert(vm.Run(), IsNil)
	c.Check(buf.String(), Equals, "")
	c.Check(diag.CountSeverity(ErrorSeverity), Equals, 1)
	c.Check(diag.Entries()[len(diag.Entries())-1].Message, Equals, "discarding fragment block content")
}

// TestMalformedIfConditionLogsDiagThenError pins the DIAG-hint-then-ERROR
// sequencing for an if statement with no condition at all: the DIAG
// entry always immediately precedes the ERROR it explains.
func (s *ParserSuite) TestMalformedIfConditionLogsDiagThenError(c *C) {
	diag := NewDiagnostics()
	src := NewSource("t", `<?teng if ?>x<?teng endif?>`)
	Parse(src, diag, ParseOptions{DefaultCType: "html"})

	entries := diag.Entries()
	c.Assert(len(entries) >= 2, Equals, true)
	var diagIdx, errIdx = -1, -1
	for i, e := range entries {
		if e.Severity == Diag && diagIdx < 0 {
			diagIdx = i
		}
		if e.Severity == ErrorSeverity && errIdx < 0 {
			errIdx = i
		}
	}
	c.Assert(diagIdx, Not(Equals), -1)
	c.Assert(errIdx, Not(Equals), -1)
	c.Check(errIdx, Equals, diagIdx+1)
	c.Check(entries[diagIdx].Message, Equals, `Invalid expression in the if statement condition`)
}
