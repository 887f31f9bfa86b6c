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

import (
	"fmt"
	"io/ioutil"
	"log"

	"github.com/valetrules/valet/core"
	"github.com/valetrules/valet/tokens"

	"gopkg.in/yaml.v2"
)

// A Case is one expectation: apply Pattern to Text and require the
// matching texts in Want, in order.
type Case struct {
	// Doc is an opaque documentation string.
	Doc string `json:"doc,omitempty" yaml:"doc,omitempty"`

	// Text is the input, which gets tokenized.
	Text string `json:"text" yaml:"text"`

	// Pattern is the rule to apply.
	Pattern string `json:"pattern" yaml:"pattern"`

	// Want lists the matching texts required, in order.  An empty
	// list requires no matches.
	Want []string `json:"want,omitempty" yaml:"want,omitempty"`

	// Fields optionally requires frame fields (field name to
	// matching texts) on the sole expected match.
	Fields map[string][]string `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// A Session packages rules with the cases that exercise them.
type Session struct {
	// Doc is an opaque documentation string.
	Doc string `json:"doc,omitempty" yaml:"doc,omitempty"`

	// Rules is inline rule source.
	Rules string `json:"rules,omitempty" yaml:"rules,omitempty"`

	// RuleFiles are loaded in order after Rules.
	RuleFiles []string `json:"ruleFiles,omitempty" yaml:"ruleFiles,omitempty"`

	// Cases are run in order.
	Cases []Case `json:"cases" yaml:"cases"`

	// ShowResults logs each case's matches.
	ShowResults bool `json:"-" yaml:"-"`

	// Install, when set, is applied to a freshly made manager
	// before the rules load.  Use it to register script engines.
	Install func(*core.Manager) `json:"-" yaml:"-"`
}

// LoadSession reads a YAML Session file.
func LoadSession(filename string) (*Session, error) {
	bs, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var s Session
	if err = yaml.Unmarshal(bs, &s); err != nil {
		return nil, fmt.Errorf("%s: %s", filename, err)
	}
	return &s, nil
}

// Manager builds a rule manager from the session's rules.
func (s *Session) Manager() (*core.Manager, error) {
	m := core.NewManager()
	if s.Install != nil {
		s.Install(m)
	}
	if s.Rules != "" {
		if err := m.ParseString(s.Rules, "session"); err != nil {
			return nil, err
		}
	}
	for _, f := range s.RuleFiles {
		if err := m.ParseFile(f); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Run runs every case against the given manager.  A nil manager is
// built from the session's own rules.  The first failure is returned.
func (s *Session) Run(m *core.Manager) error {
	if m == nil {
		var err error
		if m, err = s.Manager(); err != nil {
			return err
		}
	}

	for i := range s.Cases {
		if err := s.run(m, i, &s.Cases[i]); err != nil {
			return err
		}
	}

	return nil
}

func (s *Session) run(m *core.Manager, i int, c *Case) error {
	where := fmt.Sprintf("case %d", i)
	if c.Doc != "" {
		where += " (" + c.Doc + ")"
	}

	seq := tokens.Tokenize(c.Text)
	ms, err := m.Apply(c.Pattern, seq)
	if err != nil {
		return fmt.Errorf("%s: %s", where, err)
	}

	if s.ShowResults {
		for _, mt := range ms {
			ext := mt.Extent()
			log.Printf("%s: [%d,%d) %q", where, ext.Begin, ext.End, mt.MatchingText())
		}
	}

	if len(ms) != len(c.Want) {
		return fmt.Errorf("%s: got %d matches, want %d", where, len(ms), len(c.Want))
	}
	for j, want := range c.Want {
		if got := ms[j].MatchingText(); got != want {
			return fmt.Errorf("%s: match %d is %q, want %q", where, j, got, want)
		}
	}

	if 0 < len(c.Fields) {
		if len(ms) != 1 {
			return fmt.Errorf("%s: field expectations need exactly one match", where)
		}
		mt := ms[0]
		for field, want := range c.Fields {
			vs := mt.Fields[field]
			if len(vs) != len(want) {
				return fmt.Errorf("%s: field %s has %d values, want %d", where, field, len(vs), len(want))
			}
			for j, w := range want {
				if got := vs[j].MatchingText(); got != w {
					return fmt.Errorf("%s: field %s value %d is %q, want %q", where, field, j, got, w)
				}
			}
		}
	}

	return nil
}
