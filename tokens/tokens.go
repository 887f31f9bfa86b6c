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

// Package tokens represents tokenized documents: token strings with
// their character offsets, optional per-token annotation layers (POS
// tags, entity labels), and optional labeled dependency edges.
package tokens

import (
	"encoding/json"
	"fmt"
)

// A Dependency is one endpoint of a labeled edge incident to a token.
// At is the index of the token at the other end.
type Dependency struct {
	At    int
	Label string
}

// TokenSequence is the read-only view of a tokenized document that
// matching code works against.
type TokenSequence interface {
	// Len returns the number of tokens.
	Len() int

	// Token returns the ith token string.
	Token(i int) string

	// Text returns the full source text, when known.
	Text() string

	// Offset returns the character offset of the ith token in Text.
	Offset(i int) int

	// TokenLength returns the character length of the ith token.
	TokenLength(i int) int

	// Annotations returns the per-token tags of the named layer
	// (e.g., "pos"), or false if the layer is absent.
	Annotations(layer string) ([]string, bool)

	// UpDependencies returns the edges from token i to its heads.
	UpDependencies(i int) []Dependency

	// DownDependencies returns the edges from token i to its children.
	DownDependencies(i int) []Dependency

	// HasDependencies reports whether the sequence carries any
	// dependency edges at all.
	HasDependencies() bool

	// IsRoot reports whether token i has no head edge.
	IsRoot(i int) bool
}

// An Edge is a labeled dependency edge as it appears on the wire:
// a three-element array [head, label, child].
type Edge struct {
	Head  int
	Label string
	Child int
}

func (e Edge) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{e.Head, e.Label, e.Child})
}

func (e *Edge) UnmarshalJSON(bs []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(bs, &parts); err != nil {
		return err
	}
	if len(parts) != 3 {
		return fmt.Errorf("dependency edge has %d elements (want 3)", len(parts))
	}
	if err := json.Unmarshal(parts[0], &e.Head); err != nil {
		return err
	}
	if err := json.Unmarshal(parts[1], &e.Label); err != nil {
		return err
	}
	return json.Unmarshal(parts[2], &e.Child)
}

// A Sequence is the concrete TokenSequence that documents decode
// into. Offsets and Lengths are optional on the wire; when absent
// they are synthesized by joining tokens with single spaces.
type Sequence struct {
	SourceText string              `json:"text,omitempty"`
	Tokens     []string            `json:"tokens"`
	Offsets    []int               `json:"offsets,omitempty"`
	Lengths    []int               `json:"lengths,omitempty"`
	Tags       map[string][]string `json:"annotations,omitempty"`
	Deps       []Edge              `json:"deps,omitempty"`

	up, down [][]Dependency
}

// NewSequence builds a Sequence from bare token strings, synthesizing
// text and offsets.
func NewSequence(toks []string) *Sequence {
	s := &Sequence{Tokens: toks}
	s.synthesize()
	return s
}

func (s *Sequence) synthesize() {
	if s.Offsets != nil && s.Lengths != nil {
		return
	}
	s.Offsets = make([]int, len(s.Tokens))
	s.Lengths = make([]int, len(s.Tokens))
	at := 0
	text := s.SourceText
	rebuild := text == ""
	for i, tok := range s.Tokens {
		if i > 0 {
			at++
		}
		s.Offsets[i] = at
		s.Lengths[i] = len(tok)
		at += len(tok)
	}
	if rebuild {
		bs := make([]byte, 0, at)
		for i, tok := range s.Tokens {
			if i > 0 {
				bs = append(bs, ' ')
			}
			bs = append(bs, tok...)
		}
		s.SourceText = string(bs)
	}
}

// Decode unmarshals a JSON document into a Sequence, filling in
// offsets and lengths if the document omitted them.
func Decode(bs []byte) (*Sequence, error) {
	var s Sequence
	if err := json.Unmarshal(bs, &s); err != nil {
		return nil, err
	}
	if len(s.Tokens) == 0 && s.SourceText != "" {
		t := Tokenize(s.SourceText)
		s.Tokens, s.Offsets, s.Lengths = t.Tokens, t.Offsets, t.Lengths
	}
	s.synthesize()
	return &s, nil
}

func (s *Sequence) Len() int           { return len(s.Tokens) }
func (s *Sequence) Token(i int) string { return s.Tokens[i] }

func (s *Sequence) Text() string {
	s.synthesize()
	return s.SourceText
}

func (s *Sequence) Offset(i int) int {
	s.synthesize()
	return s.Offsets[i]
}

func (s *Sequence) TokenLength(i int) int {
	s.synthesize()
	return s.Lengths[i]
}

func (s *Sequence) Annotations(layer string) ([]string, bool) {
	tags, have := s.Tags[layer]
	return tags, have
}

func (s *Sequence) HasDependencies() bool { return len(s.Deps) > 0 }

func (s *Sequence) index() {
	if s.up != nil {
		return
	}
	s.up = make([][]Dependency, len(s.Tokens))
	s.down = make([][]Dependency, len(s.Tokens))
	for _, e := range s.Deps {
		if e.Child < 0 || e.Child >= len(s.Tokens) || e.Head < 0 || e.Head >= len(s.Tokens) {
			continue
		}
		s.up[e.Child] = append(s.up[e.Child], Dependency{At: e.Head, Label: e.Label})
		s.down[e.Head] = append(s.down[e.Head], Dependency{At: e.Child, Label: e.Label})
	}
}

func (s *Sequence) UpDependencies(i int) []Dependency {
	s.index()
	return s.up[i]
}

func (s *Sequence) DownDependencies(i int) []Dependency {
	s.index()
	return s.down[i]
}

// IsRoot reports whether token i has no head.
func (s *Sequence) IsRoot(i int) bool {
	s.index()
	return len(s.up[i]) == 0
}

// MatchingText returns the text span covered by tokens [begin,end).
func MatchingText(seq TokenSequence, begin, end int) string {
	if begin >= end || begin < 0 || end > seq.Len() {
		return ""
	}
	from := seq.Offset(begin)
	to := seq.Offset(end-1) + seq.TokenLength(end-1)
	text := seq.Text()
	if to > len(text) {
		to = len(text)
	}
	return text[from:to]
}
