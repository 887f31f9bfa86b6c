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

// Package main runs a rule set against a coupling.
//
// With no configuration file, documents are read from stdin and match
// records are written to stdout.  A -conf YAML file can select an
// MQTT or WebSocket coupling instead and schedule timer documents.
package main

import (
	"context"
	"flag"
	"log"
	"strings"

	"github.com/valetrules/valet/core"
	"github.com/valetrules/valet/interpreters"
	"github.com/valetrules/valet/sio"
)

func main() {

	var (
		rulesFile = flag.String("rules", "", "rules filename")
		confFile  = flag.String("conf", "", "optional YAML coupling configuration")
		patterns  = flag.String("patterns", "", "comma-separated rules to apply (default: all)")
		haltOnEOF = flag.Bool("halt-on-eof", true, "stop on input EOF")
		verbose   = flag.Bool("v", false, "verbose")

		sh   = flag.Bool("sh", false, "shell-expand input")
		raw  = flag.Bool("text", false, "read raw text lines instead of token sequences")
		echo = flag.Bool("echo", false, "echo input")
		ts   = flag.Bool("ts", false, "print timestamps")
		pad  = flag.Bool("pad", false, "pad tags")
		tags = flag.Bool("tags", true, "tags")

		recordFile = flag.String("records", "", "optional filename for a record log")
	)

	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *rulesFile == "" {
		log.Fatal("vsio: -rules is required")
	}

	m := core.NewManager()
	interpreters.Install(m)
	if err := m.ParseFile(*rulesFile); err != nil {
		log.Fatalf("vsio: %s", err)
	}

	var (
		conf *sio.Conf
		err  error
	)
	if *confFile != "" {
		if conf, err = sio.LoadConf(*confFile); err != nil {
			log.Fatalf("vsio: %s", err)
		}
	} else {
		conf = &sio.Conf{
			Stdio: &sio.StdioConf{
				Raw:         *raw,
				ShellExpand: *sh,
				Timestamps:  *ts,
				EchoInput:   *echo,
				Tags:        *tags,
				PadTags:     *pad,
				RecordFile:  *recordFile,
			},
		}
	}

	if conf.Runner == nil {
		conf.Runner = &sio.RunnerConf{
			HaltOnInputEOF: *haltOnEOF,
		}
	}
	if *patterns != "" {
		conf.Runner.Patterns = strings.Split(*patterns, ",")
	}
	if *verbose {
		conf.Runner.Verbose = true
	}

	if err := sio.Run(ctx, m, conf); err != nil {
		log.Fatalf("vsio: %s", err)
	}
}
