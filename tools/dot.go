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

// dot -Tpng g.dot > g.png

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/valetrules/valet/core"
)

// Dot writes a Graphviz dot file for the given compiled automaton.
//
// Accepting states are double circles.  Epsilon edges are gray and
// unlabeled.  Reference edges carry the referenced name; a '/' or '\'
// prefix marks a direction-restricted edge in a parse automaton.
func Dot(name string, fa *core.FA, w io.Writer) error {
	fmt.Fprintf(w, "digraph %s {\n", escape(name))
	fmt.Fprintf(w, `  graph [rankdir=LR,nodesep=0.3,ranksep=0.6]
  node [shape="circle" style="filled" fillcolor="#99ddc8"]
  edge [fontsize="12"]
`)

	for id := 0; id < fa.Size(); id++ {
		shape := "circle"
		style := "filled"
		if fa.Accepting(id) {
			shape = "doublecircle"
		}
		if id == fa.Initial() {
			style += ",bold"
		}
		fmt.Fprintf(w, "  n%d [shape=\"%s\", style=\"%s\", label=\"%d\"]\n", id, shape, style, id)
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
			fmt.Fprintf(w, "  n%d -> n%d [ color=\"gray\" ]\n", t.From, t.To)
			continue
		}
		fmt.Fprintf(w, "  n%d -> n%d [ label=\"%s\" ]\n", t.From, t.To, escape(label))
	}

	fmt.Fprintf(w, "}\n")
	return nil
}

// RuleDot looks up a rule, which must compile to an automaton, and
// writes its dot file.
func RuleDot(m *core.Manager, name string, w io.Writer) error {
	r, err := m.Lookup(name)
	if err != nil {
		return err
	}
	fa, is := r.Ext.(*core.FA)
	if !is {
		return fmt.Errorf("'%s' is a %s, not an automaton", name, r.Type)
	}
	return Dot(name, fa, w)
}

// PNG generates a PNG image based on output from Dot.
//
// This function will write two files: basename.dot and basename.png,
// where the basename is the given string.
func PNG(m *core.Manager, name, basename string) (string, error) {
	dotname := basename + ".dot"
	pngname := basename + ".png"

	dotfile, err := os.Create(dotname)
	if err != nil {
		return pngname, err
	}
	if err = RuleDot(m, name, dotfile); err != nil {
		dotfile.Close()
		return pngname, err
	}
	if err = dotfile.Close(); err != nil {
		return pngname, err
	}
	cmd := "dot -Tpng -Gstart=1 " + dotname + " > " + pngname
	if err := exec.Command("bash", "-c", cmd).Run(); err != nil {
		return pngname, err
	}
	return pngname, nil
}

func escape(s string) string {
	s = strings.Replace(s, `\`, `\\`, -1)
	return strings.Replace(s, `"`, `\"`, -1)
}
