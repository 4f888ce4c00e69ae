package teng

import (
	"testing"

	. "gopkg.in/check.v1"
)

func Test(t *testing.T) { TestingT(t) }

type LexerSuite struct{}

var _ = Suite(&LexerSuite{})

func lexAll(c *C, text string) []*Token {
	src := NewSource("lexer_test", text)
	diag := NewDiagnostics()
	lx := NewLexer(src, diag, false)
	toks := lx.Lex()
	c.Assert(diag.HasFatal(), Equals, false)
	return toks
}

func (s *LexerSuite) TestTextOnly(c *C) {
	toks := lexAll(c, "hello world")
	c.Assert(toks, HasLen, 2)
	c.Check(toks[0].Typ, Equals, TokText)
	c.Check(toks[0].Val, Equals, "hello world")
	c.Check(toks[1].Typ, Equals, TokEOF)
}

func (s *LexerSuite) TestPrintForm(c *C) {
	toks := lexAll(c, "a${x+1}b")
	types := make([]TokenType, len(toks))
	for i, t := range toks {
		types[i] = t.Typ
	}
	c.Check(types, DeepEquals, []TokenType{
		TokText, TokPrintOpen, TokIdent, TokSymbol, TokInt, TokShortClose, TokText, TokEOF,
	})
}

func (s *LexerSuite) TestDirective(c *C) {
	toks := lexAll(c, "<?teng if x > 1?>yes<?teng endif?>")
	c.Check(toks[0].Typ, Equals, TokDirectiveOpen)
	c.Check(toks[1].Typ, Equals, TokKeyword)
	c.Check(toks[1].Val, Equals, "if")
}

func (s *LexerSuite) TestRegexVsDivision(c *C) {
	toks := lexAll(c, "${a / b}")
	c.Check(toks[2].Typ, Equals, TokSymbol)
	c.Check(toks[2].Val, Equals, "/")

	toks2 := lexAll(c, "${a =~ /foo/}")
	var sawRegex bool
	for _, t := range toks2 {
		if t.Typ == TokRegex {
			sawRegex = true
			pattern, _ := ParseRegexLiteral(t.Val)
			c.Check(pattern, Equals, "foo")
		}
	}
	c.Check(sawRegex, Equals, true)
}

func (s *LexerSuite) TestStringEscapes(c *C) {
	toks := lexAll(c, `${"a\nb"}`)
	c.Check(toks[1].Typ, Equals, TokString)
	c.Check(toks[1].Val, Equals, "a\nb")
}

func (s *LexerSuite) TestUnterminatedComment(c *C) {
	src := NewSource("t", "${1 /* never closed")
	diag := NewDiagnostics()
	lx := NewLexer(src, diag, false)
	lx.Lex()
	c.Assert(diag.CountSeverity(ErrorSeverity), Equals, 1)
}

func (s *LexerSuite) TestNoPrintEscape(c *C) {
	src := NewSource("t", "price: %{x}")
	diag := NewDiagnostics()
	lx := NewLexer(src, diag, true)
	toks := lx.Lex()
	c.Assert(toks, HasLen, 2)
	c.Check(toks[0].Typ, Equals, TokText)
	c.Check(toks[0].Val, Equals, "price: %{x}")
}
