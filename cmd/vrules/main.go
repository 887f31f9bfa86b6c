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

// Package main inspects a rule file.
//
//	vrules -rules food.vrules -analysis
//	vrules -rules food.vrules -dot pair | dot -Tpng > pair.png
//	vrules -rules food.vrules -html > food.html
package main

import (
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/valetrules/valet/core"
	"github.com/valetrules/valet/interpreters"
	"github.com/valetrules/valet/tools"
)

func main() {

	var (
		rulesFile = flag.String("rules", "", "rules filename")
		analysis  = flag.Bool("analysis", false, "print a YAML analysis of the rule set")
		dot       = flag.String("dot", "", "write Graphviz source for the named phrase rule")
		png       = flag.String("png", "", "render the named phrase rule to a PNG (needs dot)")
		mermaid   = flag.String("mermaid", "", "write Mermaid source for the named phrase rule")
		html      = flag.Bool("html", false, "render the rule file as an HTML page")
		title     = flag.String("title", "", "HTML page title (default: the rules filename)")
	)

	flag.Parse()

	if *rulesFile == "" {
		fmt.Fprintf(os.Stderr, "vrules: -rules is required\n")
		os.Exit(1)
	}

	protest := func(err error) {
		fmt.Fprintf(os.Stderr, "vrules: %s\n", err)
		os.Exit(1)
	}

	m := core.NewManager()
	interpreters.Install(m)
	if err := m.ParseFile(*rulesFile); err != nil {
		protest(err)
	}

	did := false

	if *analysis {
		a, err := tools.Analyze(m)
		if err != nil {
			protest(err)
		}
		ya, err := a.YAML()
		if err != nil {
			protest(err)
		}
		fmt.Printf("%s", ya)
		did = true
	}

	if *dot != "" {
		if err := tools.RuleDot(m, *dot, os.Stdout); err != nil {
			protest(err)
		}
		did = true
	}

	if *png != "" {
		base := *png
		filename, err := tools.PNG(m, *png, base)
		if err != nil {
			protest(err)
		}
		fmt.Printf("%s\n", filename)
		did = true
	}

	if *mermaid != "" {
		r, err := m.Lookup(*mermaid)
		if err != nil {
			protest(err)
		}
		fa, is := r.Ext.(*core.FA)
		if !is {
			protest(fmt.Errorf("rule '%s' is not a phrase automaton", *mermaid))
		}
		if err = tools.Mermaid(fa, os.Stdout, nil); err != nil {
			protest(err)
		}
		did = true
	}

	if *html {
		src, err := ioutil.ReadFile(*rulesFile)
		if err != nil {
			protest(err)
		}
		t := *title
		if t == "" {
			base := filepath.Base(*rulesFile)
			t = base[:len(base)-len(filepath.Ext(base))]
		}
		if err = tools.RenderRulePage(t, string(src), os.Stdout, nil); err != nil {
			protest(err)
		}
		did = true
	}

	if !did {
		flag.Usage()
		os.Exit(1)
	}
}
