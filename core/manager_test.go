/* Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package core

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/valetrules/valet/tokens"
)

func ruleSet(t *testing.T, src string) *Manager {
	t.Helper()
	m := NewManager()
	if err := m.ParseString(src, "test.vrules"); err != nil {
		t.Fatal(err)
	}
	return m
}

func applied(t *testing.T, m *Manager, name, text string) []*Match {
	t.Helper()
	ms, err := m.Apply(name, tokens.Tokenize(text))
	if err != nil {
		t.Fatal(err)
	}
	return ms
}

func wantExtents(t *testing.T, ms []*Match, want ...Extent) {
	t.Helper()
	if len(ms) != len(want) {
		t.Fatalf("got %d matches %v, want %d", len(ms), ms, len(want))
	}
	for i, m := range ms {
		if m.Extent() != want[i] {
			t.Fatalf("match %d covers %v, want %v", i, m.Extent(), want[i])
		}
	}
}

func TestTokenTests(t *testing.T) {
	m := ruleSet(t, `
num  : /^[0-9]+$/
abc  : {cats dogs fish}
sub  : <og>
both : &abc and not &num
caps i: {HELLO}
`)
	text := "cats 4 dogs 17 fish"

	t.Run("regex", func(t *testing.T) {
		wantExtents(t, applied(t, m, "num", text), Extent{1, 2}, Extent{3, 4})
	})
	t.Run("membership", func(t *testing.T) {
		wantExtents(t, applied(t, m, "abc", text), Extent{0, 1}, Extent{2, 3}, Extent{4, 5})
	})
	t.Run("substring", func(t *testing.T) {
		wantExtents(t, applied(t, m, "sub", text), Extent{2, 3})
	})
	t.Run("boolean", func(t *testing.T) {
		wantExtents(t, applied(t, m, "both", text), Extent{0, 1}, Extent{2, 3}, Extent{4, 5})
	})
	t.Run("insens", func(t *testing.T) {
		wantExtents(t, applied(t, m, "caps", "say hello now"), Extent{1, 2})
	})
	t.Run("names", func(t *testing.T) {
		for _, got := range applied(t, m, "num", text) {
			if got.Name != "num" {
				t.Fatalf("match named %q, want num", got.Name)
			}
		}
	})
}

func TestPhrases(t *testing.T) {
	m := ruleSet(t, `
animal : {cats dogs fish}
num    : /^[0-9]+$/
pair  -> &animal &num
opt   -> a b? c*
plus  -> &num+
alt   -> (red | green) light
greet i-> hello world
whole -> &START &animal &END
`)

	t.Run("concat", func(t *testing.T) {
		ms := applied(t, m, "pair", "cats 4 dogs 17 fish")
		wantExtents(t, ms, Extent{0, 2}, Extent{2, 4})
		if got := ms[0].MatchingText(); got != "cats 4" {
			t.Fatalf("matching text %q", got)
		}
	})
	t.Run("operators", func(t *testing.T) {
		wantExtents(t, applied(t, m, "opt", "a c c"), Extent{0, 3})
		wantExtents(t, applied(t, m, "opt", "a b c"), Extent{0, 3})
		wantExtents(t, applied(t, m, "plus", "7 8 x"), Extent{0, 2}, Extent{1, 2})
	})
	t.Run("alternation", func(t *testing.T) {
		wantExtents(t, applied(t, m, "alt", "green light"), Extent{0, 2})
		if ms := applied(t, m, "alt", "blue light"); len(ms) != 0 {
			t.Fatalf("unexpected matches %v", ms)
		}
	})
	t.Run("insens", func(t *testing.T) {
		wantExtents(t, applied(t, m, "greet", "Hello World"), Extent{0, 2})
	})
	t.Run("anchors", func(t *testing.T) {
		wantExtents(t, applied(t, m, "whole", "fish"), Extent{0, 1})
		if ms := applied(t, m, "whole", "big fish"); len(ms) != 0 {
			t.Fatalf("anchored phrase matched mid-sequence: %v", ms)
		}
	})
	t.Run("submatches", func(t *testing.T) {
		ms := applied(t, m, "pair", "dogs 9")
		if len(ms) != 1 || len(ms[0].Submatches) != 2 {
			t.Fatalf("want one match with two submatches, got %v", ms)
		}
		if ms[0].Submatches[0].Name != "animal" || ms[0].Submatches[1].Name != "num" {
			t.Fatalf("submatch names %q, %q", ms[0].Submatches[0].Name, ms[0].Submatches[1].Name)
		}
	})
}

func TestBindings(t *testing.T) {
	m := ruleSet(t, `
num   : /^[0-9]+$/
word  : /^[a-z]+$/
thing : &num
pick -> [thing=word] &thing
`)
	text := "abc 12"
	wantExtents(t, applied(t, m, "thing", text), Extent{1, 2})
	wantExtents(t, applied(t, m, "pick", text), Extent{0, 1})
}

func TestNamespaces(t *testing.T) {
	m := ruleSet(t, `
num : /^[0-9]+$/
units <-
	name : {kg lbs}
	mass -> &num &name
weight -> &num &units.name
`)
	text := "add 70 kg now"
	wantExtents(t, applied(t, m, "weight", text), Extent{1, 3})
	wantExtents(t, applied(t, m, "units.mass", text), Extent{1, 3})

	if _, err := m.Apply("units.missing", tokens.Tokenize(text)); err == nil {
		t.Fatal("lookup of units.missing succeeded")
	}
	var unres *UnresolvedName
	_, err := m.Apply("nowhere", tokens.Tokenize(text))
	if !errors.As(err, &unres) {
		t.Fatalf("got %v, want UnresolvedName", err)
	}
}

func TestFileImports(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		t.Helper()
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}
	colors := write("colors.txt", "red\nnavy blue\n")
	vips := write("vips.txt", "Ada\nGrace\n")
	attrs := write("attrs.json", `{"color": ["red", "green"], "size": "big small"}`)
	csv := write("cars.csv", "id,phrase\n1,red car\n")
	sub := write("sub.vrules", "digit : /^[0-9]$/\n")

	m := ruleSet(t, `
colors L-> `+colors+`
vip <- {`+vips+`}
attr <- j{`+attrs+`}
cars Lc1-> `+csv+`
ext <- `+sub+`
`)

	t.Run("lexicon", func(t *testing.T) {
		wantExtents(t, applied(t, m, "colors", "a navy blue coat"), Extent{1, 3})
	})
	t.Run("membership", func(t *testing.T) {
		wantExtents(t, applied(t, m, "vip", "met Grace today"), Extent{1, 2})
	})
	t.Run("json", func(t *testing.T) {
		wantExtents(t, applied(t, m, "attr.color", "green eggs"), Extent{0, 1})
		wantExtents(t, applied(t, m, "attr.size", "big deal"), Extent{0, 1})
	})
	t.Run("csv", func(t *testing.T) {
		wantExtents(t, applied(t, m, "cars", "one red car here"), Extent{1, 3})
	})
	t.Run("rulefile", func(t *testing.T) {
		wantExtents(t, applied(t, m, "ext.digit", "a 7 b"), Extent{1, 2})
	})
}

func TestStrictRedefinition(t *testing.T) {
	m := NewManager()
	m.Strict = true
	err := m.ParseString("a : {x}\na : {y}\n", "test.vrules")
	var redef *Redefined
	if !errors.As(err, &redef) {
		t.Fatalf("got %v, want Redefined", err)
	}

	loose := NewManager()
	if err := loose.ParseString("a : {x}\na : {y}\n", "test.vrules"); err != nil {
		t.Fatal(err)
	}
}

func TestRecursionGuard(t *testing.T) {
	m := ruleSet(t, "loop -> @loop x\n")
	_, err := m.Apply("loop", tokens.Tokenize("x x"))
	var rec *RecursionError
	if !errors.As(err, &rec) {
		t.Fatalf("got %v, want RecursionError", err)
	}
}

func TestMatchAndSearch(t *testing.T) {
	m := ruleSet(t, `
num  : /^[0-9]+$/
nums -> &num+
`)
	seq := tokens.Tokenize("a 1 2 3 b")

	got, err := m.Match("nums", seq, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Extent() != (Extent{1, 4}) {
		t.Fatalf("Match got %v, want [1,4)", got)
	}

	if got, err = m.Match("nums", seq, 0); err != nil || got != nil {
		t.Fatalf("Match at 0 got %v, %v", got, err)
	}

	got, err = m.Search("nums", seq, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Extent() != (Extent{1, 4}) {
		t.Fatalf("Search got %v, want [1,4)", got)
	}
}

func TestRequirements(t *testing.T) {
	m := ruleSet(t, `
nouns : pos[NN NNS]
subj ^ /nsubj
both -> &nouns &subj
plain : {x}
`)
	if req := m.Requirements("nouns"); !req[NeedPOS] {
		t.Fatalf("nouns requirements %v", req.List())
	}
	if req := m.Requirements("subj"); !req[NeedParse] {
		t.Fatalf("subj requirements %v", req.List())
	}
	req := m.Requirements("both")
	if !req[NeedPOS] || !req[NeedParse] {
		t.Fatalf("both requirements %v", req.List())
	}
	if req := m.Requirements("plain"); len(req) != 0 {
		t.Fatalf("plain requirements %v", req.List())
	}
}

func TestAnnotationLayers(t *testing.T) {
	m := ruleSet(t, "nouns : pos[NN NNS]\n")
	seq := &tokens.Sequence{
		Tokens: []string{"the", "dog", "barks"},
		Tags:   map[string][]string{"pos": {"DT", "NN", "VBZ"}},
	}
	ms, err := m.Apply("nouns", seq)
	if err != nil {
		t.Fatal(err)
	}
	wantExtents(t, ms, Extent{1, 2})

	bare := tokens.Tokenize("the dog barks")
	var perr *ParseRequirementError
	if _, err := m.Apply("nouns", bare); !errors.As(err, &perr) {
		t.Fatalf("got %v, want ParseRequirementError", err)
	}
}

func TestParseExpressions(t *testing.T) {
	m := ruleSet(t, `
link ^ /nsubj \dobj
verbs ~ match(ROOT, _)
`)
	seq := &tokens.Sequence{
		Tokens: []string{"Alice", "saw", "Bob"},
		Deps: []tokens.Edge{
			{Head: 1, Label: "nsubj", Child: 0},
			{Head: 1, Label: "dobj", Child: 2},
		},
	}
	ms, err := m.Apply("link", seq)
	if err != nil {
		t.Fatal(err)
	}
	wantExtents(t, ms, Extent{0, 3})

	ms, err = m.Apply("verbs", seq)
	if err != nil {
		t.Fatal(err)
	}
	wantExtents(t, ms, Extent{1, 2})
}

func TestStatementParsing(t *testing.T) {
	t.Run("comments and continuation", func(t *testing.T) {
		sts, err := ParseStatements("# heading\nlong -> a b\n\tc d\n", "f")
		if err != nil {
			t.Fatal(err)
		}
		if len(sts) != 1 || sts[0].Body != "a b c d" {
			t.Fatalf("got %+v", sts)
		}
	})
	t.Run("malformed", func(t *testing.T) {
		var perr *ParseError
		_, err := ParseStatements("just some text\n", "f")
		if !errors.As(err, &perr) {
			t.Fatalf("got %v, want ParseError", err)
		}
	})
	t.Run("lexicon flags", func(t *testing.T) {
		sts, err := ParseStatements("x Lic12-> file.csv\n", "f")
		if err != nil {
			t.Fatal(err)
		}
		insens, isCSV, col := sts[0].LexiconFlags()
		if !insens || !isCSV || col != 12 {
			t.Fatalf("flags %v %v %d", insens, isCSV, col)
		}
	})
	t.Run("render", func(t *testing.T) {
		sts, err := ParseStatements("pick -> [a=b] &a x\n", "f")
		if err != nil {
			t.Fatal(err)
		}
		if got := sts[0].Render(); got != "pick -> [a=b] &a x" {
			t.Fatalf("rendered %q", got)
		}
	})
}

func TestRuleNames(t *testing.T) {
	m := ruleSet(t, "b : {x}\na : {y}\n")
	names := m.RuleNames()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("names %v", names)
	}
}
