package tools

import (
	"strings"
	"testing"

	"github.com/valetrules/valet/core"
)

const testRules = `
num : /^[0-9]+$/
animal : { cat dog }i
pair -> &num &animal
svo ^ nsubj obj
`

func testManager(t *testing.T) *core.Manager {
	t.Helper()
	m := core.NewManager()
	if err := m.ParseString(testRules, "test.vrules"); err != nil {
		t.Fatal(err)
	}
	return m
}

func TestAnalysis(t *testing.T) {
	a, err := Analyze(testManager(t))
	if err != nil {
		t.Fatal(err)
	}

	if a.Rules != 4 {
		t.Fatalf("rules %d", a.Rules)
	}
	if a.ByType["token test"] != 2 || a.ByType["phrase"] != 1 || a.ByType["parse"] != 1 {
		t.Fatalf("byType %v", a.ByType)
	}
	if got := a.References["pair"]; len(got) != 2 {
		t.Fatalf("references %v", got)
	}
	if len(a.Unresolved) != 0 {
		t.Fatalf("unresolved %v", a.Unresolved)
	}
	for _, root := range []string{"pair", "svo"} {
		found := false
		for _, r := range a.Roots {
			if r == root {
				found = true
			}
		}
		if !found {
			t.Fatalf("%s not in roots %v", root, a.Roots)
		}
	}
	if got := a.Requirements["svo"]; len(got) != 1 || got[0] != "parse" {
		t.Fatalf("requirements %v", a.Requirements)
	}

	ya, err := a.YAML()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(ya, "rules: 4") {
		t.Fatalf("yaml: %s", ya)
	}
}

func TestAnalysisUnresolved(t *testing.T) {
	m := core.NewManager()
	if err := m.ParseString("x -> &ghost\n", "test.vrules"); err != nil {
		t.Fatal(err)
	}
	a, err := Analyze(m)
	if err != nil {
		t.Fatal(err)
	}
	if len(a.Unresolved) != 1 || a.Unresolved[0] != "ghost" {
		t.Fatalf("unresolved %v", a.Unresolved)
	}
}
