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
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/valetrules/valet/core"
)

const testRules = `
num : /^[0-9]+$/
animal : { cat dog }i
pair -> &num &animal
`

func testManager(t *testing.T) *core.Manager {
	t.Helper()
	m := core.NewManager()
	if err := m.ParseString(testRules, "test.vrules"); err != nil {
		t.Fatal(err)
	}
	return m
}

// chanCouplings is an in-memory Couplings for tests.
type chanCouplings struct {
	in   chan *Document
	out  chan *Record
	done chan bool
}

func newChanCouplings() *chanCouplings {
	return &chanCouplings{
		in:   make(chan *Document),
		out:  make(chan *Record, 64),
		done: make(chan bool),
	}
}

func (c *chanCouplings) Start(ctx context.Context) error { return nil }
func (c *chanCouplings) Stop(ctx context.Context) error  { return nil }
func (c *chanCouplings) IO(ctx context.Context) (chan *Document, chan *Record, chan bool, error) {
	return c.in, c.out, c.done, nil
}

func TestRunnerProcess(t *testing.T) {
	ctx := context.Background()

	io := newChanCouplings()
	r, err := NewRunner(ctx, testManager(t), &RunnerConf{
		Patterns: []string{"pair"},
	}, io)
	if err != nil {
		t.Fatal(err)
	}

	recs, err := r.Process(TextDocument("d1", "we saw 2 dog and 1 cat"))
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records: %s", len(recs), JS(recs))
	}
	for _, rec := range recs {
		if rec.Doc != "d1" || rec.Pattern != "pair" {
			t.Fatalf("bad record %s", JS(rec))
		}
	}
	if recs[0].Text != "2 dog" || recs[1].Text != "1 cat" {
		t.Fatalf("bad texts %q %q", recs[0].Text, recs[1].Text)
	}
}

func TestRunnerDefaultPatterns(t *testing.T) {
	ctx := context.Background()

	io := newChanCouplings()
	r, err := NewRunner(ctx, testManager(t), nil, io)
	if err != nil {
		t.Fatal(err)
	}

	recs, err := r.Process(TextDocument("d2", "1 dog"))
	if err != nil {
		t.Fatal(err)
	}

	// All three rules should report.
	seen := map[string]bool{}
	for _, rec := range recs {
		seen[rec.Pattern] = true
	}
	for _, pat := range []string{"num", "animal", "pair"} {
		if !seen[pat] {
			t.Fatalf("no records for %s in %s", pat, JS(recs))
		}
	}
}

func TestRunnerLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	io := newChanCouplings()
	r, err := NewRunner(ctx, testManager(t), &RunnerConf{
		Patterns:       []string{"pair"},
		HaltOnInputEOF: true,
	}, io)
	if err != nil {
		t.Fatal(err)
	}

	go func() {
		io.in <- TextDocument("a", "3 cat")
		io.in <- TextDocument("b", "no match here")
		close(io.done)
	}()

	if err := r.Loop(ctx); err != nil {
		t.Fatal(err)
	}

	select {
	case rec := <-io.out:
		if rec.Doc != "a" || rec.Text != "3 cat" {
			t.Fatalf("bad record %s", JS(rec))
		}
	default:
		t.Fatal("no record emitted")
	}
}

func TestRunnerTimers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	io := newChanCouplings()
	r, err := NewRunner(ctx, testManager(t), &RunnerConf{
		Patterns: []string{"animal"},
	}, io)
	if err != nil {
		t.Fatal(err)
	}

	go r.Loop(ctx)

	if err := r.Timers().Add(ctx, "t0", TextDocument("t0", "a dog"), 10*time.Millisecond); err != nil {
		t.Fatal(err)
	}

	select {
	case rec := <-io.out:
		if rec.Text != "dog" {
			t.Fatalf("bad record %s", JS(rec))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}
}

func TestStdio(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewStdio(false)
	s.Raw = true
	ri, wi := io.Pipe()
	s.In = ri
	ro, wo := io.Pipe()
	s.Out = wo

	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}

	r, err := NewRunner(ctx, testManager(t), &RunnerConf{
		Patterns:       []string{"pair"},
		HaltOnInputEOF: true,
	}, s)
	if err != nil {
		t.Fatal(err)
	}

	go func() {
		fmt.Fprintf(wi, "# a comment\n")
		fmt.Fprintf(wi, "we saw 2 dog\n")
		fmt.Fprintf(wi, "quit\n")
	}()

	heard := make(chan *Record, 1)
	go func() {
		out := bufio.NewReader(ro)
		for {
			line, err := out.ReadString('\n')
			if err == io.EOF {
				return
			}
			if err != nil {
				return
			}
			var rec Record
			if err := json.Unmarshal([]byte(line), &rec); err != nil {
				continue
			}
			select {
			case heard <- &rec:
			default:
			}
		}
	}()

	if err := r.Loop(ctx); err != nil {
		t.Fatal(err)
	}

	select {
	case rec := <-heard:
		if rec.Text != "2 dog" {
			t.Fatalf("bad record %s", JS(rec))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no output")
	}

	wo.Close()
	cancel()
	if err := s.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestTimerCronValidation(t *testing.T) {
	ctx := context.Background()

	ts := NewTimers(func(context.Context, *TimerEntry) {})
	err := ts.AddCron(ctx, &TimerEntry{Id: "bad", Schedule: "not a schedule"})
	if err == nil {
		t.Fatal("bad schedule accepted")
	}
	if err = ts.AddCron(ctx, &TimerEntry{Id: "ok", Schedule: "0 0 * * *", Text: "1 dog"}); err != nil {
		t.Fatal(err)
	}
	if err = ts.Cancel(ctx, "ok"); err != nil {
		t.Fatal(err)
	}
	if err = ts.Cancel(ctx, "ok"); err == nil {
		t.Fatal("cancel of missing timer succeeded")
	}
}

func TestDecodeDocument(t *testing.T) {
	doc, err := DecodeDocument([]byte(`{"id":"d9","text":"1 dog"}`))
	if err != nil {
		t.Fatal(err)
	}
	if doc.Id != "d9" {
		t.Fatalf("id %q", doc.Id)
	}
	if got := strings.Join(doc.Seq.Tokens, " "); got != "1 dog" {
		t.Fatalf("tokens %q", got)
	}
}

func TestConfCouplings(t *testing.T) {
	conf := &Conf{}
	c, err := conf.Couplings()
	if err != nil {
		t.Fatal(err)
	}
	if _, is := c.(*Stdio); !is {
		t.Fatalf("default coupling is %T", c)
	}

	conf = &Conf{
		Stdio: &StdioConf{Raw: true},
		MQTT:  NewMQTTCouplings("tcp://localhost", "in", "out"),
	}
	if _, err = conf.Couplings(); err == nil {
		t.Fatal("two couplings accepted")
	}
}
