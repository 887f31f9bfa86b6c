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

package interpreters

import (
	"errors"
	"testing"

	"github.com/valetrules/valet/core"
	"github.com/valetrules/valet/tokens"
)

func TestScriptedRule(t *testing.T) {
	m := core.NewManager()
	Install(m)
	if err := m.ParseString("long : js{ token.length > 4 }\n", "test.vrules"); err != nil {
		t.Fatal(err)
	}
	ms, err := m.Apply("long", tokens.Tokenize("tiny gigantic word"))
	if err != nil {
		t.Fatal(err)
	}
	if len(ms) != 1 || ms[0].MatchingText() != "gigantic" {
		t.Fatalf("matched %v", ms)
	}
}

func TestScriptedRuleWithTags(t *testing.T) {
	m := core.NewManager()
	Install(m)
	if err := m.ParseString("noun : js{ tags.pos == \"NN\" }\n", "test.vrules"); err != nil {
		t.Fatal(err)
	}
	seq := &tokens.Sequence{
		Tokens: []string{"the", "dog", "barks"},
		Tags:   map[string][]string{"pos": {"DT", "NN", "VBZ"}},
	}
	ms, err := m.Apply("noun", seq)
	if err != nil {
		t.Fatal(err)
	}
	if len(ms) != 1 || ms[0].Begin != 1 {
		t.Fatalf("matched %v", ms)
	}
}

func TestUnregisteredLanguage(t *testing.T) {
	m := core.NewManager()
	if err := m.ParseString("x : js{ true }\n", "test.vrules"); err != nil {
		t.Fatal(err)
	}
	var uerr *core.UnresolvedName
	if _, err := m.Apply("x", tokens.Tokenize("a")); !errors.As(err, &uerr) {
		t.Fatalf("got %v, want UnresolvedName", err)
	}
}
