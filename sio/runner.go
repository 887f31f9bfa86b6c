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
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/valetrules/valet/core"
)

// RunnerConf provides some basic Runner parameters.
type RunnerConf struct {
	// Id names this runner in logs and errors.
	Id string `json:"id,omitempty" yaml:"id"`

	// Patterns are the extractor names applied to each document.
	// When empty, every rule the manager knows is applied.
	Patterns []string `json:"patterns,omitempty" yaml:"patterns"`

	// HaltOnInputEOF stops the loop when the input coupling is
	// exhausted.
	HaltOnInputEOF bool `json:"haltOnInputEOF,omitempty" yaml:"haltoninputeof"`

	// Verbose turns on runner logging.
	Verbose bool `json:"verbose,omitempty" yaml:"verbose"`
}

// Runner owns a rule manager and pumps documents through extraction,
// with I/O coupled via two channels (in and out).
type Runner struct {
	// Mgr holds the compiled rules the runner applies.
	Mgr *core.Manager

	// Conf provides some basic Runner parameters.
	Conf *RunnerConf `json:"conf"`

	// Verbose turns on logging.
	Verbose bool

	// timers holds the local, internal, native Timers system.
	timers *Timers

	// in receives all in-bound documents.
	in chan *Document

	// out receives all out-bound records.
	out chan *Record

	// done is closed by Couplings when its input is closed.
	done chan bool

	sync.Mutex
}

// NewRunner makes a runner with the given manager, configuration, and
// couplings.
//
// The coupling's IO() method is called to obtain the runner's in/out
// channels.
func NewRunner(ctx context.Context, mgr *core.Manager, conf *RunnerConf, couplings Couplings) (*Runner, error) {
	in, out, done, err := couplings.IO(ctx)
	if err != nil {
		return nil, err
	}
	if conf == nil {
		conf = &RunnerConf{}
	}
	r := &Runner{
		Mgr:     mgr,
		Conf:    conf,
		Verbose: conf.Verbose,
		in:      in,
		out:     out,
		done:    done,
	}

	f := func(ctx context.Context, te *TimerEntry) {
		select {
		case <-ctx.Done():
		case r.in <- te.Doc:
		}
	}
	r.timers = NewTimers(f)

	return r, nil
}

// Timers exposes the runner's timers so couplings can schedule
// document emission.
func (r *Runner) Timers() *Timers {
	return r.timers
}

// Logf logs if r.Verbose.
func (r *Runner) Logf(format string, args ...interface{}) {
	if !r.Verbose {
		return
	}
	log.Printf(format, args...)
}

// Errorf writes a log line with "ERROR" prepended.
func (r *Runner) Errorf(format string, args ...interface{}) {
	log.Println("ERROR " + fmt.Sprintf(format, args...))
}

// patterns resolves the extractor names for a run.
func (r *Runner) patterns() []string {
	if 0 < len(r.Conf.Patterns) {
		return r.Conf.Patterns
	}
	return r.Mgr.RuleNames()
}

// Process applies the runner's patterns to one document and returns
// the resulting records.
//
// A pattern that fails to apply doesn't abort the document.  The
// first error is returned after all patterns have run.
func (r *Runner) Process(doc *Document) ([]*Record, error) {
	r.Lock()
	defer r.Unlock()

	r.Logf("Runner.Process %s", doc.Id)

	acc := make([]*Record, 0, 8)
	var first error
	for _, pat := range r.patterns() {
		ms, err := r.Mgr.Apply(pat, doc.Seq)
		if err != nil {
			r.Errorf("Runner.Process %s on %s: %s", pat, doc.Id, err)
			if first == nil {
				first = err
			}
			continue
		}
		for _, m := range ms {
			acc = append(acc, NewRecord(doc.Id, pat, m))
		}
	}

	return acc, first
}

// Loop starts the input processing loop in the current goroutine.
//
// This loop calls Process on each document that arrives via the input
// coupling, and the loop halts when ctx.Done().
func (r *Runner) Loop(ctx context.Context) error {
	r.Logf("Runner.Loop starting")

	if err := r.timers.Start(ctx); err != nil {
		return err
	}

LOOP:
	for {
		select {
		case <-r.done:
			if r.Conf.HaltOnInputEOF {
				r.Logf("Runner.Loop shutting down (r.done)")
				break LOOP
			}
		case <-ctx.Done():
			r.Logf("Runner.Loop shutting down (ctx.Done)")
			break LOOP
		case doc := <-r.in:
			if doc == nil {
				break LOOP
			}
			recs, err := r.Process(doc)
			if err != nil {
				// Process already logged; partial records
				// still go out.
				_ = err
			}
			for _, rec := range recs {
				select {
				case <-ctx.Done():
					break LOOP
				case r.out <- rec:
				}
			}
		}
	}

	r.Logf("Runner.Loop done")
	return nil
}
