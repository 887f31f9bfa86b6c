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

// Package main is a command-line utility that applies a rule file to
// documents read from stdin and writes match records to stdout.
//
//	echo 'we like tacos' | vrmatch -rules food.vrules -pattern likes -text
//
// Input is one document per line: a JSON token sequence by default,
// or raw text with -text.  The exit code reports what happened: 0 if
// anything matched, 1 if nothing did, 2 on a rule parse error, and 3
// if a rule failed to resolve at match time.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/valetrules/valet/core"
	"github.com/valetrules/valet/interpreters"
	"github.com/valetrules/valet/sio"

	"github.com/fsnotify/fsnotify"
)

const (
	exitMatched    = 0
	exitNoMatch    = 1
	exitBadRules   = 2
	exitUnresolved = 3
)

func main() {
	os.Exit(run())
}

func run() int {

	var (
		rulesFile = flag.String("rules", "", "rules filename")
		pattern   = flag.String("pattern", "", "rule to apply (default: all top-level rules)")
		text      = flag.Bool("text", false, "read raw text lines instead of token sequences")
		tokenized = flag.Bool("tokens", false, "read JSON token sequences (the default)")
		watch     = flag.Bool("watch", false, "reload the rules file when it changes")
		verbose   = flag.Bool("v", false, "verbose")
	)

	flag.Parse()

	if *rulesFile == "" {
		fmt.Fprintf(os.Stderr, "vrmatch: -rules is required\n")
		return exitBadRules
	}
	if *text && *tokenized {
		fmt.Fprintf(os.Stderr, "vrmatch: -text and -tokens conflict\n")
		return exitBadRules
	}

	load := func() (*core.Manager, error) {
		m := core.NewManager()
		interpreters.Install(m)
		if err := m.ParseFile(*rulesFile); err != nil {
			return nil, err
		}
		if *pattern != "" {
			if _, err := m.Lookup(*pattern); err != nil {
				return nil, err
			}
		}
		return m, nil
	}

	var (
		mu  sync.Mutex
		mgr *core.Manager
	)

	m, err := load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "vrmatch: %s\n", err)
		return exitBadRules
	}
	mgr = m

	if *watch {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			fmt.Fprintf(os.Stderr, "vrmatch: %s\n", err)
			return exitBadRules
		}
		defer w.Close()
		if err = w.Add(*rulesFile); err != nil {
			fmt.Fprintf(os.Stderr, "vrmatch: %s\n", err)
			return exitBadRules
		}
		go func() {
			for {
				select {
				case ev, ok := <-w.Events:
					if !ok {
						return
					}
					if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
						continue
					}
					m, err := load()
					if err != nil {
						log.Printf("reload of %s failed: %s", *rulesFile, err)
						continue
					}
					mu.Lock()
					mgr = m
					mu.Unlock()
					if *verbose {
						log.Printf("reloaded %s", *rulesFile)
					}
				case err, ok := <-w.Errors:
					if !ok {
						return
					}
					log.Printf("watch error: %s", err)
				}
			}
		}()
	}

	var (
		in         = bufio.NewReader(os.Stdin)
		out        = bufio.NewWriter(os.Stdout)
		matched    = false
		unresolved = false
		n          = 0
	)
	defer out.Flush()

	for {
		line, err := in.ReadString('\n')
		if err == io.EOF && line == "" {
			break
		}
		if err != nil && err != io.EOF {
			fmt.Fprintf(os.Stderr, "vrmatch: %s\n", err)
			return exitBadRules
		}

		line = strings.TrimSuffix(line, "\n")
		if line == "" {
			if err == io.EOF {
				break
			}
			continue
		}

		n++

		var doc *sio.Document
		if *text {
			doc = sio.TextDocument(strconv.Itoa(n), line)
		} else {
			if doc, err = sio.DecodeDocument([]byte(line)); err != nil {
				fmt.Fprintf(os.Stderr, "vrmatch: document %d: %s\n", n, err)
				continue
			}
			if doc.Id == "" {
				doc.Id = strconv.Itoa(n)
			}
		}

		mu.Lock()
		m := mgr
		mu.Unlock()

		patterns := []string{*pattern}
		if *pattern == "" {
			patterns = m.RuleNames()
		}

		for _, pat := range patterns {
			ms, err := m.Apply(pat, doc.Seq)
			if err != nil {
				fmt.Fprintf(os.Stderr, "vrmatch: %s on document %s: %s\n", pat, doc.Id, err)
				switch err.(type) {
				case *core.UnresolvedName, *core.OperandError, *core.ParseRequirementError:
					unresolved = true
				}
				continue
			}
			for _, match := range ms {
				rec := sio.NewRecord(doc.Id, pat, match)
				js, err := json.Marshal(rec)
				if err != nil {
					fmt.Fprintf(os.Stderr, "vrmatch: %s\n", err)
					continue
				}
				fmt.Fprintf(out, "%s\n", js)
				matched = true
			}
		}
		out.Flush()

		if err == io.EOF {
			break
		}
	}

	if unresolved {
		return exitUnresolved
	}
	if matched {
		return exitMatched
	}
	return exitNoMatch
}
