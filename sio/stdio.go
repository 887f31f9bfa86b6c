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

package sio

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Stdio is a fairly simple Couplings that uses stdin for input and
// stdout for output.
//
// Each input line is one document.  By default a line is JSON in the
// token-sequence wire format; with Raw set, a line is plain text that
// gets tokenized.  Each match is written to stdout as one JSON line.
type Stdio struct {
	// In is coupled to document input.
	In io.Reader

	// Out is coupled to record output.
	Out io.Writer

	// Raw treats each input line as plain text to tokenize rather
	// than as a JSON document.
	Raw bool

	// ShellExpand enables input to include inline shell commands
	// delimited by '<<' and '>>'.  Use at your own risk, of
	// course!
	ShellExpand bool

	// Timestamps prepends a timestamp to each output line.
	Timestamps bool

	// EchoInput writes input lines (prepended with "input") to
	// the output.
	EchoInput bool

	// Tags prefixes tags indicating type of output ("input",
	// "match").
	Tags bool

	// PadTags adds some padding to tags used in output.
	PadTags bool

	RecordLog

	// InputEOF will be closed on EOF from stdin.
	InputEOF chan bool
}

// NewStdio creates a new Stdio.
//
// ShellExpand enables input to include inline shell commands
// delimited by '<<' and '>>'.  Use at your own risk, of course!
//
// In and Out are initialized with os.Stdin and os.Stdout
// respectively.
func NewStdio(shellExpand bool) *Stdio {
	return &Stdio{
		In:          os.Stdin,
		Out:         os.Stdout,
		ShellExpand: shellExpand,
		InputEOF:    make(chan bool),
	}
}

// Start does nothing.
func (s *Stdio) Start(ctx context.Context) error {
	return nil
}

// Stop closes the record log (if any) after IO is complete.
func (s *Stdio) Stop(ctx context.Context) error {
	s.WG.Wait()
	return s.Close(ctx)
}

// IO returns channels for reading from stdin and writing to stdout.
func (s *Stdio) IO(ctx context.Context) (chan *Document, chan *Record, chan bool, error) {
	in := make(chan *Document)
	done := make(chan bool)

	if err := s.Open(ctx); err != nil {
		return nil, nil, nil, err
	}

	printf := func(tag, format string, args ...interface{}) {
		if s.PadTags {
			tag = fmt.Sprintf("% 10s", tag)
		}
		if s.Tags {
			format = tag + " " + format
		}
		if s.Timestamps {
			ts := fmt.Sprintf("%-31s", time.Now().UTC().Format(time.RFC3339Nano))
			format = ts + " " + format
		}

		fmt.Fprintf(s.Out, format, args...)
	}

	s.WG.Add(1)
	go func() {
		defer s.WG.Done()
		stdin := bufio.NewReader(s.In)
		n := 0
		for {
			select {
			case <-ctx.Done():
				return
			default:
				line, err := stdin.ReadString('\n')
				if err == io.EOF || strings.TrimSpace(line) == "quit" {
					close(done)
					close(s.InputEOF)
					return
				}
				if err != nil {
					log.Printf("stdin error %s", err)
					return
				}
				if s.EchoInput {
					printf("input", "%s", line)
				}
				if strings.HasPrefix(line, "#") || len(strings.TrimSpace(line)) == 0 {
					continue
				}
				if s.ShellExpand {
					line, err = ShellExpand(line)
					if err != nil {
						log.Printf("stdin error %s", err)
						return
					}
				}

				n++
				var doc *Document
				if s.Raw {
					doc = TextDocument(strconv.Itoa(n), strings.TrimSpace(line))
				} else {
					doc, err = DecodeDocument([]byte(line))
					if err != nil {
						fmt.Fprintf(os.Stderr, "bad input: %s\n", err)
						continue
					}
					if doc.Id == "" {
						doc.Id = strconv.Itoa(n)
					}
				}

				select {
				case <-ctx.Done():
				case in <- doc:
				}
			}
		}
	}()

	out := make(chan *Record)

	s.WG.Add(1)
	go func() {
		defer s.WG.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case r := <-out:
				if r == nil {
					return
				}
				printf("match", "%s\n", JS(r))
				if err := s.Append(r); err != nil {
					log.Printf("record log error %s", err)
				}
			}
		}
	}()

	return in, out, done, nil
}
