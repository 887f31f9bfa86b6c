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

// Package main runs expectation sessions: YAML files that pair rule
// sets with example documents and the matches they should produce.
//
//	vexpect sessions/*.yaml
//
// The exit code is 0 when every session passes.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/valetrules/valet/interpreters"
	"github.com/valetrules/valet/tools"
)

func main() {

	var (
		show = flag.Bool("show", false, "print each case's matches")
	)

	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "vexpect: no session files given\n")
		os.Exit(1)
	}

	failed := false
	for _, filename := range files {
		s, err := tools.LoadSession(filename)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %s\n", filename, err)
			failed = true
			continue
		}
		s.ShowResults = *show
		s.Install = interpreters.Install
		if err = s.Run(nil); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %s\n", filename, err)
			failed = true
			continue
		}
		fmt.Printf("%s: ok\n", filename)
	}

	if failed {
		os.Exit(1)
	}
}
