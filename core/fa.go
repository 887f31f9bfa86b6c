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
	"sort"
	"strings"

	"github.com/valetrules/valet/tokens"
)

// maxMatch caps how many tokens past the start a single match may
// reach, a guard against runaway patterns on long sequences.
const maxMatch = 300

type transitionKind int

const (
	epsTrans transitionKind = iota
	literalTrans
	refTrans
)

// A faTransition consumes nothing (eps), one literal token or edge
// label, or one reference. A reference resolves at match time: to a
// token test, which consumes one token (or edge), or to another rule,
// which consumes whatever that rule matches. dir restricts edge
// direction in parse automata ('/' upward, '\' downward, 0 either).
type faTransition struct {
	kind   transitionKind
	symbol string
	dir    byte
	dest   int
}

type faState struct {
	id    int
	trans []faTransition
}

// An FA is a compiled phrase or parse expression. Phrase automata
// consume tokens left to right. Matches yields every nonempty accepting
// run from the start index; Scan is greedy and keeps only the longest
// run per start index. Parse automata (arcs set)
// walk dependency edges in any direction and yield every accepting
// walk, with raw endpoints on the match.
type FA struct {
	mgr     *Manager
	insens  bool
	arcs    bool
	states  []*faState
	initial int
	final   map[int]bool
	refs    []string

	// rev is the reversed automaton of a parse expression without
	// direction prefixes, built at compile time so walks are also
	// recognized from their far endpoints.
	rev *FA
}

func (fa *FA) newState() int {
	s := &faState{id: len(fa.states)}
	fa.states = append(fa.states, s)
	return s.id
}

func (fa *FA) addTrans(from int, t faTransition) {
	fa.states[from].trans = append(fa.states[from].trans, t)
}

func (fa *FA) addEps(from, to int) {
	fa.addTrans(from, faTransition{kind: epsTrans, dest: to})
}

// addPlus loops a fragment's exits back to its entry.
func (fa *FA) addPlus(f frag) {
	for _, end := range f.ends {
		fa.addEps(end, f.start)
	}
}

// addOpt lets a fragment be skipped.
func (fa *FA) addOpt(f frag) {
	for _, end := range f.ends {
		fa.addEps(f.start, end)
	}
}

// closure returns the states reachable from sid by eps transitions
// alone, sid first, in deterministic discovery order.
func (fa *FA) closure(sid int) []*faState {
	seen := map[int]bool{sid: true}
	order := []int{sid}
	for i := 0; i < len(order); i++ {
		for _, t := range fa.states[order[i]].trans {
			if t.kind == epsTrans && !seen[t.dest] {
				seen[t.dest] = true
				order = append(order, t.dest)
			}
		}
	}
	out := make([]*faState, len(order))
	for i, id := range order {
		out[i] = fa.states[id]
	}
	return out
}

func (fa *FA) Matches(ctx *Context, seq tokens.TokenSequence, start, end int) ([]*Match, error) {
	end = clipEnd(seq, end)
	if fa.arcs {
		return fa.arcMatches(ctx, seq, start, end)
	}
	var out []*Match
	err := fa.phraseStep(ctx, seq, start, end, start, fa.initial, nil, func(m *Match) {
		if m.End != start {
			out = append(out, m)
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Scan is greedy per start index: the longest accepting run at each
// index is emitted, and the start index advances one token at a time,
// so matches from different start indices may overlap.
func (fa *FA) Scan(ctx *Context, seq tokens.TokenSequence, start, end int) ([]*Match, error) {
	end = clipEnd(seq, end)
	var out []*Match
	for at := start; at < end; at++ {
		ms, err := fa.Matches(ctx, seq, at, end)
		if err != nil {
			return nil, err
		}
		if fa.arcs {
			out = append(out, ms...)
			continue
		}
		if m := longestMatch(ms); m != nil {
			out = append(out, m)
		}
	}
	return out, nil
}

// longestMatch picks the match reaching furthest right, preferring
// the earliest of equals.
func longestMatch(ms []*Match) *Match {
	var best *Match
	bestEnd := -1
	for _, m := range ms {
		if e := m.Extent().End; best == nil || e > bestEnd {
			best, bestEnd = m, e
		}
	}
	return best
}

// phraseStep explores the automaton from one state at one token
// position, calling emit for every accepting configuration. Submatches
// accumulate in token order.
func (fa *FA) phraseStep(ctx *Context, seq tokens.TokenSequence, start, end, at, sid int, subs []*Match, emit func(*Match)) error {
	if at > end || at-start > maxMatch {
		return nil
	}
	for _, s := range fa.closure(sid) {
		if fa.final[s.id] {
			emit(&Match{Seq: seq, Begin: start, End: at, Submatches: subs})
		}
		for _, t := range s.trans {
			switch t.kind {
			case literalTrans:
				// References are still tried at the end of the
				// range, where zero-width ones such as END match.
				if at < end && fa.tokenEqual(seq.Token(at), t.symbol) {
					if err := fa.phraseStep(ctx, seq, start, end, at+1, t.dest, subs, emit); err != nil {
						return err
					}
				}
			case refTrans:
				if err := fa.phraseRef(ctx, seq, start, end, at, t, subs, emit); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (fa *FA) phraseRef(ctx *Context, seq tokens.TokenSequence, start, end, at int, t faTransition, subs []*Match, emit func(*Match)) error {
	name := ctx.Resolve(t.symbol)
	ext, kind, err := fa.mgr.LookupExtractor(name)
	if err != nil {
		return err
	}
	if tt, ok := ext.(*TokenTest); ok {
		if at >= end {
			return nil
		}
		hit, err := tt.MatchesAt(ctx, seq, at)
		if err != nil {
			return err
		}
		if !hit {
			return nil
		}
		sub := &Match{Seq: seq, Begin: at, End: at + 1, Name: name}
		return fa.phraseStep(ctx, seq, start, end, at+1, t.dest, appendSub(subs, sub), emit)
	}
	if t.dir != 0 {
		return &OperandError{Op: string(t.dir) + t.symbol, Got: kind.String(), Want: "a token test"}
	}
	if kind == DepStatement {
		return &OperandError{Op: t.symbol, Got: "a parse expression", Want: "a phrase-compatible extractor"}
	}
	ms, err := fa.mgr.matchesFor(name, ctx, seq, at, end)
	if err != nil {
		return err
	}
	for _, sub := range ms {
		// A nested parse rule behind a coordinator can hand back
		// extents reaching before the current token; those cannot
		// extend a left-to-right match.
		if sub.Begin < at {
			continue
		}
		if err := fa.phraseStep(ctx, seq, start, end, sub.End, t.dest, appendSub(subs, sub), emit); err != nil {
			return err
		}
	}
	return nil
}

func (fa *FA) tokenEqual(tok, symbol string) bool {
	if fa.insens {
		return strings.EqualFold(tok, symbol)
	}
	return tok == symbol
}

func appendSub(subs []*Match, sub *Match) []*Match {
	out := make([]*Match, len(subs), len(subs)+1)
	copy(out, subs)
	return append(out, sub)
}

func (fa *FA) Requirements(seen map[string]bool) Capabilities {
	caps := Capabilities{}
	if fa.arcs {
		caps[NeedParse] = true
	}
	for _, name := range fa.refs {
		caps.Add(fa.mgr.requirementsOf(name, seen))
	}
	return caps
}

func (fa *FA) References() []string {
	return append([]string(nil), fa.refs...)
}

// A Transition describes one automaton edge for inspection tools.
// An empty Symbol means an epsilon edge. Ref marks edges that resolve
// a rule reference at match time.
type Transition struct {
	From, To int
	Symbol   string
	Ref      bool
	Dir      byte
}

// Transitions lists every edge of the automaton in state order.
func (fa *FA) Transitions() []Transition {
	var out []Transition
	for _, s := range fa.states {
		for _, t := range s.trans {
			tr := Transition{From: s.id, To: t.dest, Dir: t.dir}
			switch t.kind {
			case literalTrans:
				tr.Symbol = t.symbol
			case refTrans:
				tr.Symbol = t.symbol
				tr.Ref = true
			}
			out = append(out, tr)
		}
	}
	return out
}

// Initial returns the start state id.
func (fa *FA) Initial() int { return fa.initial }

// Accepting reports whether the given state accepts.
func (fa *FA) Accepting(id int) bool { return fa.final[id] }

// Size returns the state count.
func (fa *FA) Size() int { return len(fa.states) }

// Arcs reports whether the automaton walks dependency edges rather
// than consuming tokens.
func (fa *FA) Arcs() bool { return fa.arcs }

// directed reports whether any transition restricts edge direction.
func (fa *FA) directed() bool {
	for _, s := range fa.states {
		for _, t := range s.trans {
			if t.dir != 0 {
				return true
			}
		}
	}
	return false
}

// reverse builds the automaton accepting the reversed walks: every
// transition flips, a fresh initial state reaches the old accepting
// states by epsilon, and the old initial state accepts.
func (fa *FA) reverse() *FA {
	rev := &FA{mgr: fa.mgr, insens: fa.insens, arcs: fa.arcs, final: map[int]bool{}}
	for range fa.states {
		rev.newState()
	}
	for _, s := range fa.states {
		for _, t := range s.trans {
			rev.addTrans(t.dest, faTransition{kind: t.kind, symbol: t.symbol, dir: t.dir, dest: s.id})
		}
	}
	finals := make([]int, 0, len(fa.final))
	for id := range fa.final {
		finals = append(finals, id)
	}
	sort.Ints(finals)
	rev.initial = rev.newState()
	for _, id := range finals {
		rev.addEps(rev.initial, id)
	}
	rev.final[fa.initial] = true
	rev.refs = fa.refs
	return rev
}
