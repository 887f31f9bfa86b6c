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

// The corpus for most coordinator tests:
//
//	cats 4 dogs 17 fish
//	 0   1  2    3   4
//
// animal matches tokens 0, 2, 4; num matches 1 and 3; pair matches
// [0,2) and [2,4).
const coordRules = `
animal : {cats dogs fish}
num    : /^[0-9]+$/
pair  -> &animal &num
`

const coordText = "cats 4 dogs 17 fish"

func coordSet(t *testing.T, extra string) *Manager {
	t.Helper()
	return ruleSet(t, coordRules+extra)
}

func TestCoordMatchAndSelect(t *testing.T) {
	m := coordSet(t, `
bare  ~ pair
expl  ~ match(num, pair)
picks ~ select(num, pair)
`)
	t.Run("bare name", func(t *testing.T) {
		ms := applied(t, m, "bare", coordText)
		wantExtents(t, ms, Extent{0, 2}, Extent{2, 4})
		if ms[0].Op != "match" || ms[0].Supermatch == nil {
			t.Fatalf("match output %+v", ms[0])
		}
	})
	t.Run("match rescans", func(t *testing.T) {
		ms := applied(t, m, "expl", coordText)
		wantExtents(t, ms, Extent{1, 2}, Extent{3, 4})
		if ms[0].Supermatch.Extent() != (Extent{0, 2}) {
			t.Fatalf("supermatch %v", ms[0].Supermatch.Extent())
		}
	})
	t.Run("select reuses submatches", func(t *testing.T) {
		ms := applied(t, m, "picks", coordText)
		wantExtents(t, ms, Extent{1, 2}, Extent{3, 4})
		if ms[0].Submatch == nil || ms[0].Submatch.Name != "num" {
			t.Fatalf("selected %+v", ms[0].Submatch)
		}
	})
}

func TestCoordFilterFamily(t *testing.T) {
	m := coordSet(t, `
has   ~ filter(num, pair)
hasnt ~ filter(num, pair, invert)
pre   ~ prefix(animal, num)
suf   ~ suffix(num, animal)
sufn  ~ suffix(num, animal, invert)
`)
	t.Run("filter", func(t *testing.T) {
		ms := applied(t, m, "has", coordText)
		wantExtents(t, ms, Extent{0, 2}, Extent{2, 4})
		if ms[0].Submatch == nil {
			t.Fatal("filter output lost its witness")
		}
	})
	t.Run("filter inverted", func(t *testing.T) {
		if ms := applied(t, m, "hasnt", coordText); len(ms) != 0 {
			t.Fatalf("unexpected matches %v", ms)
		}
	})
	t.Run("prefix", func(t *testing.T) {
		wantExtents(t, applied(t, m, "pre", coordText), Extent{1, 2}, Extent{3, 4})
	})
	t.Run("suffix", func(t *testing.T) {
		wantExtents(t, applied(t, m, "suf", coordText), Extent{0, 1}, Extent{2, 3})
	})
	t.Run("suffix inverted", func(t *testing.T) {
		// Only fish has no number after it.
		wantExtents(t, applied(t, m, "sufn", coordText), Extent{4, 5})
	})
}

func TestCoordProximity(t *testing.T) {
	m := coordSet(t, `
close ~ near(animal, 1, num)
after ~ follows(num, 0, animal)
lone  ~ follows(num, 0, animal, invert)
`)
	t.Run("near emits per witness", func(t *testing.T) {
		// Each number has an animal adjacent on both sides.
		wantExtents(t, applied(t, m, "close", coordText),
			Extent{1, 2}, Extent{1, 2}, Extent{3, 4}, Extent{3, 4})
	})
	t.Run("follows", func(t *testing.T) {
		wantExtents(t, applied(t, m, "after", coordText), Extent{0, 1}, Extent{2, 3})
	})
	t.Run("follows inverted", func(t *testing.T) {
		wantExtents(t, applied(t, m, "lone", coordText), Extent{4, 5})
	})
}

func TestCoordCount(t *testing.T) {
	m := coordSet(t, `
three ~ count(animal, 3, _)
four  ~ count(animal, 4, _)
none  ~ count(animal, 4, _, invert)
`)
	t.Run("enough", func(t *testing.T) {
		ms := applied(t, m, "three", coordText)
		wantExtents(t, ms, Extent{0, 5})
		if len(ms[0].Submatches) != 3 {
			t.Fatalf("attached %d submatches", len(ms[0].Submatches))
		}
	})
	t.Run("not enough", func(t *testing.T) {
		if ms := applied(t, m, "four", coordText); len(ms) != 0 {
			t.Fatalf("unexpected matches %v", ms)
		}
	})
	t.Run("inverted", func(t *testing.T) {
		wantExtents(t, applied(t, m, "none", coordText), Extent{0, 5})
	})
}

func TestCoordSetOperators(t *testing.T) {
	m := coordSet(t, `
all  ~ union(animal, num)
same ~ inter(animal, match(animal, _))
only ~ diff(union(animal, num), num)
dup  ~ union(animal, animal)
`)
	t.Run("union", func(t *testing.T) {
		wantExtents(t, applied(t, m, "all", coordText),
			Extent{0, 1}, Extent{1, 2}, Extent{2, 3}, Extent{3, 4}, Extent{4, 5})
	})
	t.Run("inter", func(t *testing.T) {
		wantExtents(t, applied(t, m, "same", coordText),
			Extent{0, 1}, Extent{2, 3}, Extent{4, 5})
	})
	t.Run("diff", func(t *testing.T) {
		wantExtents(t, applied(t, m, "only", coordText),
			Extent{0, 1}, Extent{2, 3}, Extent{4, 5})
	})
	t.Run("coextensive collapse", func(t *testing.T) {
		ms := applied(t, m, "dup", coordText)
		wantExtents(t, ms, Extent{0, 1}, Extent{2, 3}, Extent{4, 5})
		if len(ms[0].Submatches) != 2 {
			t.Fatalf("accumulated %d inputs", len(ms[0].Submatches))
		}
	})
}

func TestCoordJoins(t *testing.T) {
	m := coordSet(t, `
inpair ~ contains(pair, num)
inside ~ contained_by(num, pair)
lap    ~ overlaps(pair, animal)
wide   ~ widen(contained_by(num, pair))
`)
	t.Run("contains", func(t *testing.T) {
		ms := applied(t, m, "inpair", coordText)
		wantExtents(t, ms, Extent{0, 2}, Extent{2, 4})
		if ms[0].Right == nil || ms[0].Right.Extent() != (Extent{1, 2}) {
			t.Fatalf("right operand %+v", ms[0].Right)
		}
	})
	t.Run("contained_by", func(t *testing.T) {
		wantExtents(t, applied(t, m, "inside", coordText), Extent{1, 2}, Extent{3, 4})
	})
	t.Run("overlaps", func(t *testing.T) {
		// Each pair overlaps exactly the animal it starts with.
		wantExtents(t, applied(t, m, "lap", coordText), Extent{0, 2}, Extent{2, 4})
	})
	t.Run("widen", func(t *testing.T) {
		wantExtents(t, applied(t, m, "wide", coordText), Extent{0, 2}, Extent{2, 4})
	})
}

func TestCoordMerge(t *testing.T) {
	m := coordSet(t, `
lumps ~ merge(union(pair, num))
`)
	ms := applied(t, m, "lumps", coordText)
	wantExtents(t, ms, Extent{0, 2}, Extent{2, 4})
	if len(ms[0].Members) != 2 {
		t.Fatalf("first lump has %d members", len(ms[0].Members))
	}
}

func TestCoordConnects(t *testing.T) {
	m := ruleSet(t, `
person : {Alice Bob}
link ^ /nsubj \dobj
saw ~ connects(link, person, person)
`)
	seq := &tokens.Sequence{
		Tokens: []string{"Alice", "saw", "Bob"},
		Deps: []tokens.Edge{
			{Head: 1, Label: "nsubj", Child: 0},
			{Head: 1, Label: "dobj", Child: 2},
		},
	}
	ms, err := m.Apply("saw", seq)
	if err != nil {
		t.Fatal(err)
	}
	wantExtents(t, ms, Extent{0, 3})
	if ms[0].Left.Extent() != (Extent{0, 1}) || ms[0].Right.Extent() != (Extent{2, 3}) {
		t.Fatalf("endpoints %v, %v", ms[0].Left.Extent(), ms[0].Right.Extent())
	}
}

func TestCoordNesting(t *testing.T) {
	// The base stream under a nested operator is the enclosing
	// coordinator's extent, not the whole sequence.
	m := coordSet(t, `
counted ~ count(num, 1, pair)
`)
	ms := applied(t, m, "counted", coordText)
	wantExtents(t, ms, Extent{0, 2}, Extent{2, 4})
	if len(ms[0].Submatches) != 1 {
		t.Fatalf("counted %d inside first pair", len(ms[0].Submatches))
	}
}

func TestCoordParseErrors(t *testing.T) {
	m := NewManager()
	for _, expr := range []string{
		"match(num)",
		"near(num, x, _)",
		"bogus(num, _)",
		"filter(num, _, maybe)",
		"union()",
		"match(num, _) trailing",
	} {
		if _, err := m.ParseCoordExpr(expr); err == nil {
			t.Errorf("%q parsed", expr)
		}
	}
}
