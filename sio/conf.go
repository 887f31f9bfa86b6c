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

	"github.com/valetrules/valet/core"

	"github.com/jsccast/yaml"
)

// StdioConf describes a Stdio coupling.
type StdioConf struct {
	Raw         bool   `json:"raw,omitempty" yaml:"raw"`
	ShellExpand bool   `json:"shellExpand,omitempty" yaml:"shellexpand"`
	Timestamps  bool   `json:"timestamps,omitempty" yaml:"timestamps"`
	EchoInput   bool   `json:"echoInput,omitempty" yaml:"echoinput"`
	Tags        bool   `json:"tags,omitempty" yaml:"tags"`
	PadTags     bool   `json:"padTags,omitempty" yaml:"padtags"`
	RecordFile  string `json:"recordFile,omitempty" yaml:"recordfile"`
}

// Conf describes a runner and the coupling it should use.
//
// Exactly one coupling section should be present.  When none is, the
// runner reads stdin and writes stdout.
type Conf struct {
	Runner *RunnerConf `json:"runner,omitempty" yaml:"runner"`

	Stdio     *StdioConf          `json:"stdio,omitempty" yaml:"stdio"`
	MQTT      *MQTTCouplings      `json:"mqtt,omitempty" yaml:"mqtt"`
	WebSocket *WebSocketCouplings `json:"websocket,omitempty" yaml:"websocket"`

	// Timers are scheduled document sources started alongside the
	// coupling.
	Timers []*TimerEntry `json:"timers,omitempty" yaml:"timers"`
}

// LoadConf reads a YAML configuration file.
func LoadConf(filename string) (*Conf, error) {
	bs, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var conf Conf
	if err = yaml.Unmarshal(bs, &conf); err != nil {
		return nil, fmt.Errorf("%s: %s", filename, err)
	}
	return &conf, nil
}

// Couplings constructs the configured coupling.
func (conf *Conf) Couplings() (Couplings, error) {
	var acc []Couplings
	if conf.Stdio != nil {
		s := NewStdio(conf.Stdio.ShellExpand)
		s.Raw = conf.Stdio.Raw
		s.Timestamps = conf.Stdio.Timestamps
		s.EchoInput = conf.Stdio.EchoInput
		s.Tags = conf.Stdio.Tags
		s.PadTags = conf.Stdio.PadTags
		s.Filename = conf.Stdio.RecordFile
		acc = append(acc, s)
	}
	if conf.MQTT != nil {
		m := conf.MQTT
		if m.in == nil {
			m.in = make(chan *Document)
			m.out = make(chan *Record)
			m.done = make(chan bool)
		}
		acc = append(acc, m)
	}
	if conf.WebSocket != nil {
		w := conf.WebSocket
		if w.in == nil {
			w.in = make(chan *Document)
			w.out = make(chan *Record)
			w.done = make(chan bool)
		}
		acc = append(acc, w)
	}
	switch len(acc) {
	case 0:
		return NewStdio(false), nil
	case 1:
		return acc[0], nil
	}
	return nil, fmt.Errorf("configuration has %d couplings; want one", len(acc))
}

// Run wires a manager, a configuration, and its coupling together and
// runs the loop until the input is exhausted or the context is done.
func Run(ctx context.Context, mgr *core.Manager, conf *Conf) error {
	couplings, err := conf.Couplings()
	if err != nil {
		return err
	}

	if err = couplings.Start(ctx); err != nil {
		return err
	}

	r, err := NewRunner(ctx, mgr, conf.Runner, couplings)
	if err != nil {
		return err
	}

	for _, te := range conf.Timers {
		if te.Schedule == "" {
			return fmt.Errorf("timer '%s' has no schedule", te.Id)
		}
		if err = r.Timers().AddCron(ctx, te); err != nil {
			return err
		}
	}

	if err = r.Loop(ctx); err != nil {
		return err
	}

	return couplings.Stop(ctx)
}
