package teng

import (
	. "gopkg.in/check.v1"
)

type FragmentSuite struct{}

var _ = Suite(&FragmentSuite{})

func (s *FragmentSuite) TestPseudoAttributes(c *C) {
	root := NewFragment()
	list := NewFragmentList()
	for i := 0; i < 3; i++ {
		el := NewFragment()
		el.Set("n", IntValue(int64(i)))
		list.Add(el)
	}
	root.SetList("items", list)

	first, _ := list.At(0)
	last, _ := list.At(-1)
	c.Check(last, Equals, list.Items()[2])

	v, ok := first.pseudo("_first")
	c.Assert(ok, Equals, true)
	c.Check(v.IsTrue(), Equals, true)

	v, ok = first.pseudo("_count")
	c.Assert(ok, Equals, true)
	c.Check(v.AsInt(), Equals, int64(3))

	v, ok = first.pseudo("_parent")
	c.Assert(ok, Equals, true)
	c.Check(v.AsFrag(), Equals, root)
}

func (s *FragmentSuite) TestParentPastRootDegradesToSelf(c *C) {
	root := NewFragment()
	v, ok := root.pseudo("_parent")
	c.Assert(ok, Equals, true)
	c.Check(v.AsFrag(), Equals, root)
}

func (s *FragmentSuite) TestResolvePath(c *C) {
	root := NewFragment()
	child := NewFragment()
	child.Set("name", StringValue("alice"))
	root.SetFrag("user", child)

	v, ok := ResolvePath(root, []string{"user", "name"})
	c.Assert(ok, Equals, true)
	c.Check(v.AsString(), Equals, "alice")

	_, ok = ResolvePath(root, []string{"missing"})
	c.Check(ok, Equals, false)
}

func (s *FragmentSuite) TestAmbiguousListStep(c *C) {
	list := NewFragmentList()
	list.Add(NewFragment())
	c.Check(IsAmbiguousListStep(list), Equals, false)
	list.Add(NewFragment())
	c.Check(IsAmbiguousListStep(list), Equals, true)
}
