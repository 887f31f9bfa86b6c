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
	"io/ioutil"
	"sync"
	"time"

	"github.com/gorhill/cronexpr"
)

// TimerEntry represents a scheduled document source.
//
// A one-shot entry fires once at At.  An entry with a cron Schedule
// fires repeatedly.  Each firing emits the entry's document: either
// the literal Text or the contents of File, read at firing time.
type TimerEntry struct {
	Id       string `json:"id" yaml:"id"`
	Schedule string `json:"schedule,omitempty" yaml:"schedule"`
	At       time.Time
	Text     string    `json:"text,omitempty" yaml:"text"`
	File     string    `json:"file,omitempty" yaml:"file"`
	Ctl      chan bool `json:"-" yaml:"-"`

	// Doc is the document a firing emits when neither Text nor
	// File is set.
	Doc *Document `json:"-" yaml:"-"`

	timers *Timers
	expr   *cronexpr.Expression
}

// document materializes the entry's document for one firing.
func (te *TimerEntry) document() (*Document, error) {
	switch {
	case te.File != "":
		bs, err := ioutil.ReadFile(te.File)
		if err != nil {
			return nil, err
		}
		return TextDocument(te.Id, string(bs)), nil
	case te.Text != "":
		return TextDocument(te.Id, te.Text), nil
	case te.Doc != nil:
		return te.Doc, nil
	}
	return nil, fmt.Errorf("timer '%s' has no document", te.Id)
}

// Timers represents pending timers.
type Timers struct {
	Map     map[string]*TimerEntry
	Emitter func(context.Context, *TimerEntry) `json:"-"`

	// Errs receives document materialization failures when not
	// nil.
	Errs chan error `json:"-"`

	started bool

	sync.Mutex
}

// NewTimers creates a Timers with the given function that the
// TimerEntries will use to emit their documents.
func NewTimers(emitter func(context.Context, *TimerEntry)) *Timers {
	return &Timers{
		Map:     make(map[string]*TimerEntry, 8),
		Emitter: emitter,
	}
}

// Start starts all known timers.  Entries added later start as they
// are added.
func (ts *Timers) Start(ctx context.Context) error {
	ts.Lock()
	defer ts.Unlock()
	if ts.started {
		return nil
	}
	ts.started = true
	for _, t := range ts.Map {
		if t.Ctl == nil {
			t.Ctl = make(chan bool)
		}
		if t.timers == nil {
			t.timers = ts
		}
		if t.Schedule != "" && t.expr == nil {
			expr, err := cronexpr.Parse(t.Schedule)
			if err != nil {
				return fmt.Errorf("timer '%s': %s", t.Id, err)
			}
			t.expr = expr
		}
		go t.run(ctx)
	}
	return nil
}

func (ts *Timers) add(ctx context.Context, e *TimerEntry) error {
	if _, have := ts.Map[e.Id]; have {
		if err := ts.cancel(ctx, e.Id); err != nil {
			return err
		}
	}

	ts.Map[e.Id] = e
	e.timers = ts

	if ts.started {
		go e.run(ctx)
	}

	return nil
}

// Add creates a new one-shot timer that will emit the given document
// later (if the timer isn't cancelled first).
func (ts *Timers) Add(ctx context.Context, id string, doc *Document, d time.Duration) error {
	ts.Lock()
	defer ts.Unlock()

	e := &TimerEntry{
		Id:  id,
		At:  time.Now().UTC().Add(d),
		Doc: doc,
		Ctl: make(chan bool),
	}

	return ts.add(ctx, e)
}

// AddCron creates a new recurring timer driven by a cron expression.
func (ts *Timers) AddCron(ctx context.Context, e *TimerEntry) error {
	expr, err := cronexpr.Parse(e.Schedule)
	if err != nil {
		return fmt.Errorf("timer '%s': %s", e.Id, err)
	}
	e.expr = expr
	if e.Ctl == nil {
		e.Ctl = make(chan bool)
	}

	ts.Lock()
	defer ts.Unlock()

	return ts.add(ctx, e)
}

// next computes the entry's next firing time, or zero when the entry
// will never fire again.
func (te *TimerEntry) next() time.Time {
	if te.expr != nil {
		return te.expr.Next(time.Now())
	}
	return te.At
}

// run fires the TimerEntry at its appointed times until the entry is
// exhausted or cancelled.
func (te *TimerEntry) run(ctx context.Context) {
	for {
		at := te.next()
		if at.IsZero() {
			break
		}
		t := time.NewTimer(at.Sub(time.Now()))
		select {
		case <-t.C:
			doc, err := te.document()
			if err != nil {
				if te.timers.Errs != nil {
					select {
					case te.timers.Errs <- err:
					default:
					}
				}
			} else {
				emit := *te
				emit.Doc = doc
				te.timers.Emitter(ctx, &emit)
			}
			if te.expr != nil {
				continue
			}
		case <-te.Ctl:
			t.Stop()
		case <-ctx.Done():
			t.Stop()
		}
		break
	}

	te.timers.Lock()
	if te.timers.Map[te.Id] == te {
		delete(te.timers.Map, te.Id)
	}
	te.timers.Unlock()
}

func (ts *Timers) cancel(ctx context.Context, id string) error {
	t, have := ts.Map[id]
	if !have {
		return fmt.Errorf("timer '%s' doesn't exist", id)
	}
	delete(ts.Map, id)

	close(t.Ctl)

	return nil
}

// Cancel attempts to cancel the timer with the given id.
func (ts *Timers) Cancel(ctx context.Context, id string) error {
	ts.Lock()
	err := ts.cancel(ctx, id)
	ts.Unlock()
	return err
}
