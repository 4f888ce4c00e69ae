package teng

import (
	"os"
	"strings"

	. "gopkg.in/check.v1"
	"golang.org/x/tools/txtar"
)

func readTestdata(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// ScenarioSuite runs the golden template/output pairs recorded in
// testdata/scenarios/*.txtar against a fixed data tree, the way the
// engine's behavior is pinned down for review instead of asserting on
// bytecode shape directly.
type ScenarioSuite struct{}

var _ = Suite(&ScenarioSuite{})

func scenarioRoot() *Fragment {
	root := NewFragment()
	root.Set("name", StringValue("<world>"))
	root.Set("n", IntValue(0))

	list := NewFragmentList()
	a := NewFragment()
	a.Set("label", StringValue("a"))
	list.Add(a)
	b := NewFragment()
	b.Set("label", StringValue("b"))
	list.Add(b)
	root.SetList("items", list)
	return root
}

func (s *ScenarioSuite) TestBasicScenarios(c *C) {
	data, err := readTestdata("testdata/scenarios/basic.txtar")
	c.Assert(err, IsNil)
	arc := txtar.Parse(data)

	files := make(map[string]string)
	for _, f := range arc.Files {
		files[f.Name] = string(f.Data)
	}

	for _, name := range []string{"print", "if", "loop", "case"} {
		tpl := files[name+".tpl"]
		want := files[name+".out"]
		out, diag := render(c, tpl, scenarioRoot())
		c.Assert(diag.HasFatal(), Equals, false, Commentf("scenario %s", name))
		c.Check(strings.TrimRight(out, "\n")+"\n", Equals, want, Commentf("scenario %s", name))
	}
}
