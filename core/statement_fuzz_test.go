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

import "testing"

func FuzzParseStatements(f *testing.F) {
	for _, seed := range []string{
		"num : /^[0-9]+$/\n",
		"word i: /^\\w+$/\n",
		"pair -> &animal &num\n",
		"pick -> [a=b] &a x\n",
		"colors L-> colors.txt\n",
		"cars Lic2-> cars.csv\n",
		"ns <-\n\tinner : {a b}\n",
		"attr <- j{attrs.json}\n",
		"link ^ /nsubj \\dobj\n",
		"all ~ union(animal, num)\n",
		"fr $ frame(rel, who = name)\n",
		"# comment\nx : {a}\n  continued\n",
		"broken ->",
		"= nope\n",
	} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, src string) {
		sts, err := ParseStatements(src, "fuzz")
		if err != nil {
			return
		}
		for _, st := range sts {
			line := st.Render()
			again, err := ParseStatements(line+"\n", "fuzz")
			if err != nil {
				t.Fatalf("rendered %q does not reparse: %v", line, err)
			}
			if len(again) != 1 {
				t.Fatalf("rendered %q split into %d statements", line, len(again))
			}
			if got := again[0].Render(); got != line {
				t.Fatalf("render unstable: %q became %q", line, got)
			}
			if again[0].Name != st.Name || again[0].Type != st.Type {
				t.Fatalf("reparse of %q changed identity: %+v vs %+v", line, again[0], st)
			}
		}
	})
}
