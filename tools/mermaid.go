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

package tools

import (
	"fmt"
	"io"
	"strings"

	"github.com/valetrules/valet/core"
)

type MermaidOpts struct {
	// AcceptFill is the fill color for accepting states.
	AcceptFill string `json:"acceptFill,omitempty"`

	// ShowEps labels epsilon edges with "ε" instead of leaving
	// them bare.
	ShowEps bool `json:"showEps,omitempty"`
}

// Mermaid makes a Mermaid (https://mermaidjs.github.io/) input file
// for the given compiled automaton.
func Mermaid(fa *core.FA, w io.Writer, opts *MermaidOpts) error {
	if opts == nil {
		opts = &MermaidOpts{
			AcceptFill: "#bcf2db",
		}
	}

	fmt.Fprintf(w, "graph LR\n")

	for id := 0; id < fa.Size(); id++ {
		if fa.Accepting(id) {
			fmt.Fprintf(w, "  n%d((\"%d\"))\n", id, id)
			if opts.AcceptFill != "" {
				fmt.Fprintf(w, "  style n%d fill:%s\n", id, opts.AcceptFill)
			}
		} else {
			fmt.Fprintf(w, "  n%d(\"%d\")\n", id, id)
		}
	}

	for _, t := range fa.Transitions() {
		label := t.Symbol
		if t.Ref {
			label = "&" + label
		}
		if t.Dir != 0 {
			label = string(t.Dir) + label
		}
		if label == "" {
			if opts.ShowEps {
				fmt.Fprintf(w, "  n%d -- \"ε\" --> n%d\n", t.From, t.To)
			} else {
				fmt.Fprintf(w, "  n%d --> n%d\n", t.From, t.To)
			}
			continue
		}
		label = strings.Replace(label, `"`, `'`, -1)
		fmt.Fprintf(w, "  n%d -- \"%s\" --> n%d\n", t.From, label, t.To)
	}

	fmt.Fprintf(w, "\n")

	return nil
}
