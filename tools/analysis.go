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

// Package tools examines and renders rule sets: structural reports,
// automaton diagrams, and HTML documentation.
package tools

import (
	"sort"

	"github.com/valetrules/valet/core"

	"gopkg.in/yaml.v2"
)

// Analysis reports the structure of a rule namespace.
type Analysis struct {
	// Rules counts the named extractors (namespaces excluded).
	Rules int `json:"rules" yaml:"rules"`

	// ByType counts rules per statement kind.
	ByType map[string]int `json:"byType" yaml:"byType"`

	// Namespaces lists imported child namespaces.
	Namespaces []string `json:"namespaces,omitempty" yaml:"namespaces,omitempty"`

	// References maps each rule to the names it refers to.
	References map[string][]string `json:"references,omitempty" yaml:"references,omitempty"`

	// Unresolved lists references that don't name any rule.
	Unresolved []string `json:"unresolved,omitempty" yaml:"unresolved,omitempty"`

	// Roots lists rules no other rule refers to.  These are the
	// natural entry points of the set.
	Roots []string `json:"roots,omitempty" yaml:"roots,omitempty"`

	// Requirements maps each rule to the annotation layers it
	// needs, transitively.
	Requirements map[string][]string `json:"requirements,omitempty" yaml:"requirements,omitempty"`
}

// Analyze examines the rules defined directly in the given namespace.
func Analyze(m *core.Manager) (*Analysis, error) {
	a := &Analysis{
		ByType:       map[string]int{},
		References:   map[string][]string{},
		Requirements: map[string][]string{},
	}

	referenced := map[string]bool{}
	unresolved := map[string]bool{}

	for _, name := range m.RuleNames() {
		r, err := m.Lookup(name)
		if err != nil {
			if _, is := err.(*core.OperandError); is {
				// A namespace import has no extractor.
				a.Namespaces = append(a.Namespaces, name)
				continue
			}
			return nil, err
		}

		a.Rules++
		a.ByType[r.Type.String()]++

		refs := r.Ext.References()
		if 0 < len(refs) {
			sort.Strings(refs)
			a.References[name] = refs
		}
		for _, ref := range refs {
			// A binding qualifier may redirect the reference.
			if to, have := r.Bindings[ref]; have {
				ref = to
			}
			referenced[ref] = true
			if _, err := m.Lookup(ref); err != nil {
				if _, is := err.(*core.UnresolvedName); is {
					unresolved[ref] = true
				}
			}
		}

		if caps := m.Requirements(name).List(); 0 < len(caps) {
			ss := make([]string, len(caps))
			for i, c := range caps {
				ss[i] = string(c)
			}
			a.Requirements[name] = ss
		}
	}

	for _, name := range m.RuleNames() {
		if referenced[name] {
			continue
		}
		// Only rules, not namespaces.
		if r, err := m.Lookup(name); err == nil && r.Ext != nil {
			a.Roots = append(a.Roots, name)
		}
	}

	for ref := range unresolved {
		a.Unresolved = append(a.Unresolved, ref)
	}
	sort.Strings(a.Unresolved)
	sort.Strings(a.Namespaces)
	sort.Strings(a.Roots)

	return a, nil
}

// YAML renders the analysis as YAML.
func (a *Analysis) YAML() (string, error) {
	bs, err := yaml.Marshal(a)
	if err != nil {
		return "", err
	}
	return string(bs), nil
}
