package teng

import (
	. "gopkg.in/check.v1"
)

type ValueSuite struct{}

var _ = Suite(&ValueSuite{})

func (s *ValueSuite) TestTruthiness(c *C) {
	c.Check(Undefined.IsTrue(), Equals, false)
	c.Check(IntValue(0).IsTrue(), Equals, false)
	c.Check(IntValue(1).IsTrue(), Equals, true)
	c.Check(StringValue("").IsTrue(), Equals, false)
	c.Check(StringValue("x").IsTrue(), Equals, true)
}

func (s *ValueSuite) TestEqualAcrossNumericKinds(c *C) {
	c.Check(IntValue(2).Equal(RealValue(2.0)), Equals, true)
	c.Check(IntValue(2).Equal(RealValue(2.5)), Equals, false)
	c.Check(Undefined.Equal(Undefined), Equals, true)
}

func (s *ValueSuite) TestCompareStrings(c *C) {
	cmp, ok := StringValue("a").Compare(StringValue("b"))
	c.Assert(ok, Equals, true)
	c.Check(cmp < 0, Equals, true)

	_, ok = StringValue("a").Compare(IntValue(1))
	c.Check(ok, Equals, false)
}

func (s *ValueSuite) TestStringRendering(c *C) {
	c.Check(IntValue(42).String(), Equals, "42")
	c.Check(RealValue(1.5).String(), Equals, "1.5")
	c.Check(StringValue("hi").String(), Equals, "hi")
	c.Check(Undefined.String(), Equals, "")
}

func (s *ValueSuite) TestTypeNameLiterals(c *C) {
	c.Check(Undefined.TypeName(), Equals, "undefined")
	c.Check(IntValue(1).TypeName(), Equals, "integral")
	c.Check(RealValue(1.5).TypeName(), Equals, "real")
	c.Check(StringValue("x").TypeName(), Equals, "string_ref")
	c.Check(FragValue(NewFragment()).TypeName(), Equals, "frag_ref")
	c.Check(ListValue(NewFragmentList()).TypeName(), Equals, "list_ref")
}
