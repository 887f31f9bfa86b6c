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

package core

import (
	"encoding/csv"
	"os"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/valetrules/valet/tokens"
)

// A Lexicon holds literal phrases in a token trie. Each phrase is run
// through the same tokenizer as input text, so a lexicon line matches
// wherever its token sequence appears, regardless of the punctuation
// and spacing conventions of the source.
type Lexicon struct {
	root   *lexiconNode
	insens bool
}

type lexiconNode struct {
	complete bool
	children map[string]*lexiconNode
}

func NewLexicon(insens bool) *Lexicon {
	return &Lexicon{root: &lexiconNode{}, insens: insens}
}

// AddPhrase enters one phrase into the trie.
func (l *Lexicon) AddPhrase(entry string) {
	if l.insens {
		entry = strings.ToLower(entry)
	}
	node := l.root
	for _, tok := range tokens.Tokenize(entry).Tokens {
		next, have := node.children[tok]
		if !have {
			next = &lexiconNode{}
			if node.children == nil {
				node.children = map[string]*lexiconNode{}
			}
			node.children[tok] = next
		}
		node = next
	}
	node.complete = true
}

// AddLines enters each nonblank line as a phrase.
func (l *Lexicon) AddLines(lines []string) {
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			l.AddPhrase(line)
		}
	}
}

// MatchEnds walks the trie from token position at and returns the end
// index of every complete phrase found, shortest first. The walk stops
// at the first token with no trie child or at end.
func (l *Lexicon) MatchEnds(seq tokens.TokenSequence, at, end int) []int {
	var out []int
	node := l.root
	if node.complete {
		out = append(out, at)
	}
	for at < end {
		tok := seq.Token(at)
		if l.insens {
			tok = strings.ToLower(tok)
		}
		next, have := node.children[tok]
		if !have {
			break
		}
		at++
		if next.complete {
			out = append(out, at)
		}
		node = next
	}
	return out
}

func loadLexiconText(path string, insens bool) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	lex := NewLexicon(insens)
	lex.AddLines(strings.Split(string(data), "\n"))
	return lex, nil
}

// loadLexiconCSV reads phrases from one column of a CSV file. The
// first row is taken to be a header and skipped.
func loadLexiconCSV(path string, insens bool, column int) (*Lexicon, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	reader := csv.NewReader(fh)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	lex := NewLexicon(insens)
	for i, row := range rows {
		if i == 0 || column >= len(row) {
			continue
		}
		if entry := strings.TrimSpace(row[column]); entry != "" {
			lex.AddPhrase(entry)
		}
	}
	return lex, nil
}

// A lexiconCache keeps loaded lexicons keyed by file and load options,
// reloading when the file's modification time changes.
type lexiconCache struct {
	entries *lru.Cache[lexiconKey, lexiconEntry]
}

type lexiconKey struct {
	path   string
	insens bool
	csv    bool
	column int
}

type lexiconEntry struct {
	lex   *Lexicon
	mtime time.Time
}

func newLexiconCache() *lexiconCache {
	entries, _ := lru.New[lexiconKey, lexiconEntry](64)
	return &lexiconCache{entries: entries}
}

func (c *lexiconCache) load(key lexiconKey) (*Lexicon, error) {
	st, err := os.Stat(key.path)
	if err != nil {
		return nil, err
	}
	if e, have := c.entries.Get(key); have && e.mtime.Equal(st.ModTime()) {
		return e.lex, nil
	}
	var lex *Lexicon
	if key.csv {
		lex, err = loadLexiconCSV(key.path, key.insens, key.column)
	} else {
		lex, err = loadLexiconText(key.path, key.insens)
	}
	if err != nil {
		return nil, err
	}
	c.entries.Add(key, lexiconEntry{lex: lex, mtime: st.ModTime()})
	return lex, nil
}

// A LexiconExtractor matches any phrase from a lexicon file.
type LexiconExtractor struct {
	lex *Lexicon
}

// NewLexiconExtractor loads the lexicon at path through the manager's
// cache. The flags come from the statement's lexicon delimiter.
func (m *Manager) NewLexiconExtractor(path string, insens, isCSV bool, column int) (*LexiconExtractor, error) {
	full, err := m.resolveImportPath(path)
	if err != nil {
		return nil, err
	}
	lex, err := m.lexicons.load(lexiconKey{path: full, insens: insens, csv: isCSV, column: column})
	if err != nil {
		return nil, err
	}
	return &LexiconExtractor{lex: lex}, nil
}

func (x *LexiconExtractor) Matches(ctx *Context, seq tokens.TokenSequence, start, end int) ([]*Match, error) {
	end = clipEnd(seq, end)
	var out []*Match
	for _, to := range x.lex.MatchEnds(seq, start, end) {
		if to > start {
			out = append(out, &Match{Seq: seq, Begin: start, End: to})
		}
	}
	return out, nil
}

func (x *LexiconExtractor) Scan(ctx *Context, seq tokens.TokenSequence, start, end int) ([]*Match, error) {
	end = clipEnd(seq, end)
	var out []*Match
	for at := start; at < end; at++ {
		ms, err := x.Matches(ctx, seq, at, end)
		if err != nil {
			return nil, err
		}
		out = append(out, ms...)
	}
	return out, nil
}

func (x *LexiconExtractor) Requirements(seen map[string]bool) Capabilities {
	return Capabilities{}
}

func (x *LexiconExtractor) References() []string { return nil }

// lexiconLines returns the nonblank trimmed lines of a lexicon file,
// for membership tests that draw their members from a file.
func (m *Manager) lexiconLines(path string) ([]string, error) {
	full, err := m.resolveImportPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out, nil
}
