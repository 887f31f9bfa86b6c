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
	"testing"

	"github.com/valetrules/valet/tokens"
)

// End-to-end scenarios exercising whole rule cascades the way client
// code uses them.

func TestScenarioMembership(t *testing.T) {
	m := ruleSet(t, "article : { a an the }i\n")
	wantExtents(t, applied(t, m, "article", "The quick fox"), Extent{0, 1})
}

const moneyRules = `
num : /^\d+$/
bignum -> &num ( , &num )* ( . &num )?
money -> $ @bignum
dollar : { $ }
ma ~ select(bignum, money)
notmoney ~ prefix(dollar, bignum, inverted)
`

func TestScenarioPhraseCascade(t *testing.T) {
	m := ruleSet(t, moneyRules)
	ms := applied(t, m, "money", "Cost is $ 1 , 130 , 000 today")
	if len(ms) != 1 {
		t.Fatalf("money matched %v", ms)
	}
	if got := ms[0].MatchingText(); got != "$ 1 , 130 , 000" {
		t.Fatalf("money text %q", got)
	}
	bs := ms[0].Query("bignum")
	if len(bs) != 1 || bs[0].MatchingText() != "1 , 130 , 000" {
		t.Fatalf("bignum submatch %v", bs)
	}
	if nums := ms[0].Query("bignum", "num"); len(nums) != 3 {
		t.Fatalf("num submatches %v", nums)
	}
}

func TestScenarioSelect(t *testing.T) {
	m := ruleSet(t, moneyRules)
	ms := applied(t, m, "ma", "Cost is $ 1 , 130 , 000 today")
	if len(ms) != 1 || ms[0].MatchingText() != "1 , 130 , 000" {
		t.Fatalf("selected %v", ms)
	}
}

func TestScenarioPrefixInversion(t *testing.T) {
	m := ruleSet(t, moneyRules)
	ms := applied(t, m, "notmoney", "pay $ 5 and 6 dollars")
	wantExtents(t, ms, Extent{4, 5})
	if got := ms[0].MatchingText(); got != "6" {
		t.Fatalf("notmoney text %q", got)
	}
}

func TestScenarioParseDirections(t *testing.T) {
	m := ruleSet(t, `
svo ^ nsubj obj
sv  ^ /nsubj
`)
	seq := &tokens.Sequence{
		Tokens: []string{"Rita", "bought", "an", "apple"},
		Deps: []tokens.Edge{
			{Head: 1, Label: "nsubj", Child: 0},
			{Head: 1, Label: "obj", Child: 3},
		},
	}
	// The undirected pattern is recognized from both endpoints: once
	// from Rita and once, with the walk reversed, from apple.
	ms, err := m.Apply("svo", seq)
	if err != nil {
		t.Fatal(err)
	}
	wantExtents(t, ms, Extent{0, 4}, Extent{0, 4})
	if ms[0].Begin != 0 || ms[0].End != 3 {
		t.Fatalf("forward walk is %d..%d, want 0..3", ms[0].Begin, ms[0].End)
	}
	if ms[1].Begin != 3 || ms[1].End != 0 {
		t.Fatalf("reverse walk is %d..%d, want 3..0", ms[1].Begin, ms[1].End)
	}

	// A direction prefix pins the walk to one orientation.
	ms, err = m.Apply("sv", seq)
	if err != nil {
		t.Fatal(err)
	}
	wantExtents(t, ms, Extent{0, 2})
	if ms[0].Begin != 0 || ms[0].End != 1 {
		t.Fatalf("upward walk is %d..%d, want 0..1", ms[0].Begin, ms[0].End)
	}
}

func TestScenarioHiringFrame(t *testing.T) {
	m := ruleSet(t, `
name : {Acme Bob}
hire : {hired}
nsubj ^ /nsubj
dobj  ^ \dobj
hsubj ~ select(hire, connects(nsubj, name, hire))
hobj  ~ select(hire, connects(dobj, hire, name))
hiring ~ union(hsubj, hobj)
hframe $ frame(hiring, employer = hsubj name, employee = hobj name)
`)
	seq := &tokens.Sequence{
		Tokens: []string{"Acme", "hired", "Bob"},
		Deps: []tokens.Edge{
			{Head: 1, Label: "nsubj", Child: 0},
			{Head: 1, Label: "dobj", Child: 2},
		},
	}
	fs, err := m.Frames("hframe", seq)
	if err != nil {
		t.Fatal(err)
	}
	wantExtents(t, fs, Extent{1, 2})
	if got := fieldTexts(t, fs[0], "employer"); len(got) != 1 || got[0] != "Acme" {
		t.Fatalf("employer = %v", got)
	}
	if got := fieldTexts(t, fs[0], "employee"); len(got) != 1 || got[0] != "Bob" {
		t.Fatalf("employee = %v", got)
	}
}

func TestScenarioBoundPhrase(t *testing.T) {
	m := ruleSet(t, `
article : { a an the }i
adj  : pos[JJ]
noun : pos[NN NNS]
propnoun : pos[NNP]
np -> &article? &adj* &noun+
pnp ~ [noun=propnoun] np
`)
	proper := &tokens.Sequence{
		Tokens: []string{"John", "met", "Mary"},
		Tags:   map[string][]string{"pos": {"NNP", "VBD", "NNP"}},
	}
	ms, err := m.Apply("pnp", proper)
	if err != nil {
		t.Fatal(err)
	}
	wantExtents(t, ms, Extent{0, 1}, Extent{2, 3})

	// Unbound, np only accepts common nouns.
	if ms, err := m.Apply("np", proper); err != nil || len(ms) != 0 {
		t.Fatalf("np on proper nouns: %v, %v", ms, err)
	}
	common := &tokens.Sequence{
		Tokens: []string{"the", "dog", "barks"},
		Tags:   map[string][]string{"pos": {"DT", "NN", "VBZ"}},
	}
	ms, err = m.Apply("np", common)
	if err != nil {
		t.Fatal(err)
	}
	wantExtents(t, ms, Extent{0, 2}, Extent{1, 2})
}

func TestPropertyPrecedesZeroIsPrefix(t *testing.T) {
	m := coordSet(t, `
pre ~ prefix(num, animal)
prz ~ precedes(num, 0, animal)
`)
	a := applied(t, m, "pre", coordText)
	b := applied(t, m, "prz", coordText)
	if len(a) != len(b) {
		t.Fatalf("prefix %v, precedes %v", a, b)
	}
	for i := range a {
		if a[i].Extent() != b[i].Extent() {
			t.Fatalf("extent %d: %v vs %v", i, a[i].Extent(), b[i].Extent())
		}
	}
	wantExtents(t, a, Extent{2, 3}, Extent{4, 5})
}

func TestPropertyFollowsZeroIsSuffix(t *testing.T) {
	m := coordSet(t, `
suf ~ suffix(num, animal)
flz ~ follows(num, 0, animal)
`)
	a := applied(t, m, "suf", coordText)
	b := applied(t, m, "flz", coordText)
	if len(a) != len(b) {
		t.Fatalf("suffix %v, follows %v", a, b)
	}
	for i := range a {
		if a[i].Extent() != b[i].Extent() {
			t.Fatalf("extent %d: %v vs %v", i, a[i].Extent(), b[i].Extent())
		}
	}
}

func TestPropertySelfIntersection(t *testing.T) {
	m := coordSet(t, `
same ~ inter(animal, animal)
none ~ diff(animal, animal)
`)
	a := applied(t, m, "animal", coordText)
	b := applied(t, m, "same", coordText)
	if len(a) != len(b) {
		t.Fatalf("animal %v, inter %v", a, b)
	}
	for i := range a {
		if a[i].Extent() != b[i].Extent() {
			t.Fatalf("extent %d: %v vs %v", i, a[i].Extent(), b[i].Extent())
		}
	}
	if ms := applied(t, m, "none", coordText); len(ms) != 0 {
		t.Fatalf("diff(animal, animal) = %v", ms)
	}
}

func TestPropertyBindingIdempotence(t *testing.T) {
	m := ruleSet(t, `
b : {x}
inner -> [a=b] &a
outer -> [a=b] @inner
`)
	wantExtents(t, applied(t, m, "inner", "x y"), Extent{0, 1})
	// Re-entering an identical binding resolves the same way.
	wantExtents(t, applied(t, m, "outer", "x y"), Extent{0, 1})
}

func TestPropertySubmatchContainment(t *testing.T) {
	m := ruleSet(t, moneyRules)
	for _, got := range applied(t, m, "money", "Cost is $ 1 , 130 , 000 today") {
		for _, s := range got.AllSubmatches("") {
			if s.Begin < got.Begin || s.End > got.End {
				t.Fatalf("submatch %v escapes %v", s.Extent(), got.Extent())
			}
		}
	}
}
