package teng

import (
	. "gopkg.in/check.v1"
	jujutesting "github.com/juju/testing"
)

// EngineSuite embeds juju/testing's CleanupSuite so tests can register
// e.Close() via AddCleanup instead of a bare defer, to release the
// engine's background resources (its optional fsnotify watcher).
type EngineSuite struct {
	jujutesting.CleanupSuite
}

var _ = Suite(&EngineSuite{})

func (s *EngineSuite) TestRenderFileWithInclude(c *C) {
	loader := MapLoader{
		"main.teng":   `Header: <?teng include "footer.teng"?>`,
		"footer.teng": `(c) teng`,
	}
	e, err := New(DefaultConfig(), WithLoader(loader))
	c.Assert(err, IsNil)
	s.AddCleanup(func(*C) { e.Close() })

	res, err := e.RenderFile("main.teng", NewFragment())
	c.Assert(err, IsNil)
	c.Check(res.Output, Equals, "Header: (c) teng")
}

func (s *EngineSuite) TestRenderStringWithDictionary(c *C) {
	dict, err := LoadDictionaryFile([]byte("en:\n  greeting: Hello\n"))
	c.Assert(err, IsNil)
	e, err := New(DefaultConfig(), WithDictionary(dict))
	c.Assert(err, IsNil)
	defer e.Close()

	root := NewFragment()
	res, err := e.RenderString("t", `<?teng dict en?>#{"greeting"}`, root)
	c.Assert(err, IsNil)
	c.Check(res.Output, Equals, "Hello")
}

func (s *EngineSuite) TestRenderStringMissingDictKeyWarns(c *C) {
	e, err := New(DefaultConfig())
	c.Assert(err, IsNil)
	defer e.Close()

	res, err := e.RenderString("t", `#{"missing"}`, NewFragment())
	c.Assert(err, IsNil)
	c.Check(res.Output, Equals, "missing")
	c.Check(res.Diagnostics.CountSeverity(Warning), Equals, 1)
}

func (s *EngineSuite) TestCircularIncludeIsReported(c *C) {
	loader := MapLoader{
		"a.teng": `<?teng include "b.teng"?>`,
		"b.teng": `<?teng include "a.teng"?>`,
	}
	e, err := New(DefaultConfig(), WithLoader(loader))
	c.Assert(err, IsNil)
	defer e.Close()

	res, err := e.RenderFile("a.teng", NewFragment())
	c.Assert(err, IsNil)
	c.Check(res.Diagnostics.CountSeverity(ErrorSeverity) > 0, Equals, true)
}
