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
	"regexp"
	"strconv"

	"github.com/valetrules/valet/tokens"
)

// A Coordinator is a compiled coordinator expression: a tree of
// stream operators over match streams. The leaf stream '_' yields a
// single match covering the extent the coordinator is evaluated over,
// so operators applied under another coordinator see that
// coordinator's extents, not the whole sequence.
type Coordinator struct {
	mgr  *Manager
	root coordStream
	src  string
}

// A coordStream produces a match stream over a region of a sequence.
type coordStream interface {
	scan(ctx *Context, seq tokens.TokenSequence, start, end int) ([]*Match, error)
	requirements(seen map[string]bool) Capabilities
	references() []string
}

func (c *Coordinator) Scan(ctx *Context, seq tokens.TokenSequence, start, end int) ([]*Match, error) {
	return c.root.scan(ctx, seq, start, clipEnd(seq, end))
}

// Matches yields the scanned matches anchored exactly at start.
func (c *Coordinator) Matches(ctx *Context, seq tokens.TokenSequence, start, end int) ([]*Match, error) {
	ms, err := c.Scan(ctx, seq, start, end)
	if err != nil {
		return nil, err
	}
	var out []*Match
	for _, m := range ms {
		if m.Begin == start {
			out = append(out, m)
		}
	}
	return out, nil
}

func (c *Coordinator) Requirements(seen map[string]bool) Capabilities {
	return c.root.requirements(seen)
}

func (c *Coordinator) References() []string { return c.root.references() }

// baseStream is the '_' leaf: one match covering the region.
type baseStream struct{}

func (baseStream) scan(_ *Context, seq tokens.TokenSequence, start, end int) ([]*Match, error) {
	return []*Match{{Seq: seq, Begin: start, End: end, Name: "_"}}, nil
}

func (baseStream) requirements(map[string]bool) Capabilities { return Capabilities{} }
func (baseStream) references() []string                      { return nil }

// matchCoord scans a rule inside each feed extent; the outputs take
// the rule matches' extents and the feed matches become supermatches.
type matchCoord struct {
	mgr  *Manager
	pat  string
	feed coordStream
}

func (c *matchCoord) scan(ctx *Context, seq tokens.TokenSequence, start, end int) ([]*Match, error) {
	fms, err := c.feed.scan(ctx, seq, start, end)
	if err != nil {
		return nil, err
	}
	var out []*Match
	for _, fm := range fms {
		pms, err := c.mgr.scanFor(c.pat, ctx, seq, fm.Begin, fm.End)
		if err != nil {
			return nil, err
		}
		for _, pm := range pms {
			pe := pm.Extent()
			out = append(out, &Match{
				Seq: seq, Begin: pe.Begin, End: pe.End,
				Op: "match", Base: pm, Left: fm, Submatch: pm, Supermatch: fm,
			})
		}
	}
	return out, nil
}

func (c *matchCoord) requirements(seen map[string]bool) Capabilities {
	return c.feed.requirements(seen).Add(c.mgr.requirementsOf(c.pat, seen))
}

func (c *matchCoord) references() []string {
	return append([]string{c.pat}, c.feed.references()...)
}

// selectCoord picks already-recorded submatches of a rule out of each
// feed match instead of rescanning, so it can reach matches captured
// during the feed's own matching, including frame fields.
type selectCoord struct {
	mgr  *Manager
	pat  string
	feed coordStream
}

func (c *selectCoord) scan(ctx *Context, seq tokens.TokenSequence, start, end int) ([]*Match, error) {
	fms, err := c.feed.scan(ctx, seq, 0, end)
	if err != nil {
		return nil, err
	}
	var out []*Match
	for _, fm := range fms {
		pms := fm.AllSubmatches(c.pat)
		SortMatches(pms)
		for _, pm := range pms {
			pe := pm.Extent()
			if pe.Begin >= start && pe.End <= end {
				out = append(out, &Match{
					Seq: seq, Begin: pe.Begin, End: pe.End,
					Op: "select", Base: pm, Left: fm, Submatch: pm, Supermatch: fm,
				})
			}
		}
	}
	return out, nil
}

// The selected name only ever matches inside feed matches, so the
// feed's requirements already cover it.
func (c *selectCoord) requirements(seen map[string]bool) Capabilities {
	return c.feed.requirements(seen)
}

func (c *selectCoord) references() []string {
	return append([]string{c.pat}, c.feed.references()...)
}

// filterCoord passes feed matches through unchanged when the rule
// matches inside their extent. Inverted, it passes the ones where the
// rule does not match; inverted outputs carry no submatch.
type filterCoord struct {
	mgr      *Manager
	pat      string
	feed     coordStream
	inverted bool
}

func (c *filterCoord) scan(ctx *Context, seq tokens.TokenSequence, start, end int) ([]*Match, error) {
	fms, err := c.feed.scan(ctx, seq, start, end)
	if err != nil {
		return nil, err
	}
	var out []*Match
	for _, fm := range fms {
		pms, err := c.mgr.scanFor(c.pat, ctx, seq, fm.Begin, fm.End)
		if err != nil {
			return nil, err
		}
		if c.inverted {
			if len(pms) == 0 {
				out = append(out, &Match{Seq: seq, Begin: fm.Begin, End: fm.End, Op: "filter", Base: fm, Left: fm})
			}
			continue
		}
		if len(pms) > 0 {
			out = append(out, &Match{Seq: seq, Begin: fm.Begin, End: fm.End, Op: "filter", Base: fm, Left: fm, Submatch: pms[0]})
		}
	}
	return out, nil
}

func (c *filterCoord) requirements(seen map[string]bool) Capabilities {
	return c.feed.requirements(seen).Add(c.mgr.requirementsOf(c.pat, seen))
}

func (c *filterCoord) references() []string {
	return append([]string{c.pat}, c.feed.references()...)
}

// prefixCoord passes feed matches immediately preceded by a rule
// match; suffixCoord is its mirror image.
type prefixCoord struct {
	mgr      *Manager
	pat      string
	feed     coordStream
	inverted bool
}

func (c *prefixCoord) scan(ctx *Context, seq tokens.TokenSequence, start, end int) ([]*Match, error) {
	fms, err := c.feed.scan(ctx, seq, start, end)
	if err != nil {
		return nil, err
	}
	var out []*Match
	for _, fm := range fms {
		pms, err := c.mgr.scanFor(c.pat, ctx, seq, start, fm.Begin)
		if err != nil {
			return nil, err
		}
		var hit *Match
		for _, pm := range pms {
			if pm.Extent().End == fm.Begin {
				hit = pm
				break
			}
		}
		switch {
		case c.inverted && hit == nil:
			out = append(out, &Match{Seq: seq, Begin: fm.Begin, End: fm.End, Op: "prefix", Base: fm, Left: fm})
		case !c.inverted && hit != nil:
			out = append(out, &Match{Seq: seq, Begin: fm.Begin, End: fm.End, Op: "prefix", Base: fm, Left: fm, Submatch: hit})
		}
	}
	return out, nil
}

func (c *prefixCoord) requirements(seen map[string]bool) Capabilities {
	return c.feed.requirements(seen).Add(c.mgr.requirementsOf(c.pat, seen))
}

func (c *prefixCoord) references() []string {
	return append([]string{c.pat}, c.feed.references()...)
}

type suffixCoord struct {
	mgr      *Manager
	pat      string
	feed     coordStream
	inverted bool
}

func (c *suffixCoord) scan(ctx *Context, seq tokens.TokenSequence, start, end int) ([]*Match, error) {
	fms, err := c.feed.scan(ctx, seq, start, end)
	if err != nil {
		return nil, err
	}
	var out []*Match
	for _, fm := range fms {
		pms, err := c.mgr.scanFor(c.pat, ctx, seq, fm.End, end)
		if err != nil {
			return nil, err
		}
		var hit *Match
		for _, pm := range pms {
			if pm.Extent().Begin == fm.End {
				hit = pm
				break
			}
		}
		switch {
		case c.inverted && hit == nil:
			out = append(out, &Match{Seq: seq, Begin: fm.Begin, End: fm.End, Op: "suffix", Base: fm, Left: fm})
		case !c.inverted && hit != nil:
			out = append(out, &Match{Seq: seq, Begin: fm.Begin, End: fm.End, Op: "suffix", Base: fm, Left: fm, Submatch: hit})
		}
	}
	return out, nil
}

func (c *suffixCoord) requirements(seen map[string]bool) Capabilities {
	return c.feed.requirements(seen).Add(c.mgr.requirementsOf(c.pat, seen))
}

func (c *suffixCoord) references() []string {
	return append([]string{c.pat}, c.feed.references()...)
}

// proxCoord is the near/precedes/follows family: feed matches with a
// rule match within a token distance on one or either side. Unlike
// the filter family it emits once per qualifying rule match.
type proxCoord struct {
	mgr      *Manager
	op       string // "near", "precedes", "follows"
	pat      string
	prox     int
	feed     coordStream
	inverted bool
}

func (c *proxCoord) scan(ctx *Context, seq tokens.TokenSequence, start, end int) ([]*Match, error) {
	fms, err := c.feed.scan(ctx, seq, start, end)
	if err != nil {
		return nil, err
	}
	var out []*Match
	for _, fm := range fms {
		var scanFrom, scanTo int
		switch c.op {
		case "precedes":
			scanFrom, scanTo = start, fm.Begin
		case "follows":
			scanFrom, scanTo = fm.End, end
		default:
			scanFrom, scanTo = start, end
		}
		pms, err := c.mgr.scanFor(c.pat, ctx, seq, scanFrom, scanTo)
		if err != nil {
			return nil, err
		}
		hit := false
		for _, pm := range pms {
			pe := pm.Extent()
			before := c.op != "follows" && 0 <= fm.Begin-pe.End && fm.Begin-pe.End <= c.prox
			after := c.op != "precedes" && 0 <= pe.Begin-fm.End && pe.Begin-fm.End <= c.prox
			if !before && !after {
				continue
			}
			hit = true
			if c.inverted {
				break
			}
			out = append(out, &Match{Seq: seq, Begin: fm.Begin, End: fm.End, Op: c.op, Base: fm, Left: fm, Submatch: pm})
			// A zero-width rule match at a shared boundary counts on
			// both sides.
			if before && after {
				out = append(out, &Match{Seq: seq, Begin: fm.Begin, End: fm.End, Op: c.op, Base: fm, Left: fm, Submatch: pm})
			}
		}
		if c.inverted && !hit {
			out = append(out, &Match{Seq: seq, Begin: fm.Begin, End: fm.End, Op: c.op, Base: fm, Left: fm})
		}
	}
	return out, nil
}

func (c *proxCoord) requirements(seen map[string]bool) Capabilities {
	return c.feed.requirements(seen).Add(c.mgr.requirementsOf(c.pat, seen))
}

func (c *proxCoord) references() []string {
	return append([]string{c.pat}, c.feed.references()...)
}

// countCoord passes feed matches containing at least n rule matches,
// attaching them as submatches.
type countCoord struct {
	mgr      *Manager
	pat      string
	count    int
	feed     coordStream
	inverted bool
}

func (c *countCoord) scan(ctx *Context, seq tokens.TokenSequence, start, end int) ([]*Match, error) {
	fms, err := c.feed.scan(ctx, seq, start, end)
	if err != nil {
		return nil, err
	}
	var out []*Match
	for _, fm := range fms {
		pms, err := c.mgr.scanFor(c.pat, ctx, seq, fm.Begin, fm.End)
		if err != nil {
			return nil, err
		}
		enough := len(pms) >= c.count
		switch {
		case c.inverted && !enough:
			out = append(out, &Match{Seq: seq, Begin: fm.Begin, End: fm.End, Op: "count", Base: fm, Left: fm})
		case !c.inverted && enough:
			out = append(out, &Match{Seq: seq, Begin: fm.Begin, End: fm.End, Op: "count", Base: fm, Left: fm, Submatches: pms})
		}
	}
	return out, nil
}

func (c *countCoord) requirements(seen map[string]bool) Capabilities {
	return c.feed.requirements(seen).Add(c.mgr.requirementsOf(c.pat, seen))
}

func (c *countCoord) references() []string {
	return append([]string{c.pat}, c.feed.references()...)
}

// joinCoord is the contains/contained_by/overlaps family: pairs of
// overlapping matches from two streams, emitted with the left match's
// extent.
type joinCoord struct {
	op    string // "contains", "contained_by", "overlaps"
	left  coordStream
	right coordStream
}

func (c *joinCoord) scan(ctx *Context, seq tokens.TokenSequence, start, end int) ([]*Match, error) {
	rms, err := c.right.scan(ctx, seq, start, end)
	if err != nil {
		return nil, err
	}
	lms, err := c.left.scan(ctx, seq, start, end)
	if err != nil {
		return nil, err
	}
	var out []*Match
	for _, lm := range lms {
		for _, rm := range rms {
			if !lm.Overlaps(rm) {
				continue
			}
			switch c.op {
			case "contains":
				if !lm.Contains(rm) {
					continue
				}
			case "contained_by":
				if !rm.Contains(lm) {
					continue
				}
			}
			out = append(out, &Match{Seq: seq, Begin: lm.Begin, End: lm.End, Op: c.op, Base: lm, Left: lm, Right: rm})
		}
	}
	return out, nil
}

func (c *joinCoord) requirements(seen map[string]bool) Capabilities {
	return c.left.requirements(seen).Add(c.right.requirements(seen))
}

func (c *joinCoord) references() []string {
	return append(c.left.references(), c.right.references()...)
}

// naryCoord is the union/inter/diff family over any number of
// streams, keyed by extent. Coextensive matches collapse to a single
// output accumulating the inputs as submatches; coextensive frames
// are merged.
type naryCoord struct {
	op    string // "union", "inter", "diff"
	feeds []coordStream
}

type extentAcc struct {
	result map[Extent]*Match
	order  []Extent
	op     string
}

func newExtentAcc(op string) *extentAcc {
	return &extentAcc{result: map[Extent]*Match{}, op: op}
}

func (a *extentAcc) add(m *Match, requireExisting bool) {
	ext := m.Extent()
	om, have := a.result[ext]
	if !have {
		if requireExisting {
			return
		}
		a.result[ext] = &Match{
			Seq: m.Seq, Begin: ext.Begin, End: ext.End,
			Op: a.op, Base: m, Submatches: []*Match{m},
		}
		a.order = append(a.order, ext)
		return
	}
	mf, omf := m.GetFrame(), om.GetFrame()
	if mf != nil && omf == nil {
		// First frame seen for this extent; rebase the accumulated
		// match on it so GetFrame finds it.
		a.result[ext] = &Match{
			Seq: m.Seq, Begin: ext.Begin, End: ext.End,
			Op: a.op, Base: m, Submatches: append(om.Submatches, m),
		}
		return
	}
	om.Submatches = append(om.Submatches, m)
	if mf != nil && omf != nil {
		merged := omf.MergeFrame(mf)
		rebased := *om
		rebased.Base = merged
		a.result[ext] = &rebased
	}
}

func (a *extentAcc) remove(ext Extent) { delete(a.result, ext) }

func (a *extentAcc) matches() []*Match {
	var out []*Match
	for _, ext := range a.order {
		if m, have := a.result[ext]; have {
			out = append(out, m)
		}
	}
	return out
}

func (c *naryCoord) scan(ctx *Context, seq tokens.TokenSequence, start, end int) ([]*Match, error) {
	acc := newExtentAcc(c.op)
	for fi, feed := range c.feeds {
		ms, err := feed.scan(ctx, seq, start, end)
		if err != nil {
			return nil, err
		}
		switch {
		case fi == 0 || c.op == "union":
			for _, m := range ms {
				acc.add(m, false)
			}
		case c.op == "inter":
			matched := map[Extent]bool{}
			for _, m := range ms {
				acc.add(m, true)
				matched[m.Extent()] = true
			}
			for _, ext := range acc.order {
				if !matched[ext] {
					acc.remove(ext)
				}
			}
		case c.op == "diff":
			for _, m := range ms {
				acc.remove(m.Extent())
			}
		}
		if fi > 0 && len(acc.result) == 0 {
			return nil, nil
		}
	}
	return acc.matches(), nil
}

func (c *naryCoord) requirements(seen map[string]bool) Capabilities {
	caps := Capabilities{}
	for _, feed := range c.feeds {
		caps.Add(feed.requirements(seen))
	}
	return caps
}

func (c *naryCoord) references() []string {
	var out []string
	for _, feed := range c.feeds {
		out = append(out, feed.references()...)
	}
	return out
}

// connectsCoord emits a match per path of the rule, usually a parse
// expression, starting inside a left match and ending inside a right
// match. The output takes the path's extent.
type connectsCoord struct {
	mgr   *Manager
	pat   string
	left  coordStream
	right coordStream
}

func (c *connectsCoord) scan(ctx *Context, seq tokens.TokenSequence, start, end int) ([]*Match, error) {
	lms, err := c.left.scan(ctx, seq, start, end)
	if err != nil || len(lms) == 0 {
		return nil, err
	}
	rms, err := c.right.scan(ctx, seq, start, end)
	if err != nil || len(rms) == 0 {
		return nil, err
	}
	var out []*Match
	for _, lm := range lms {
		for i := lm.Begin; i < lm.End; i++ {
			pms, err := c.mgr.matchesFor(c.pat, ctx, seq, i, seq.Len())
			if err != nil {
				return nil, err
			}
			for _, pm := range pms {
				// A walk lands on its raw End token; a phrase run
				// lands on its last token.
				landing := pm.End
				if !pm.Arc {
					landing = pm.End - 1
				}
				pe := pm.Extent()
				for _, rm := range rms {
					if rm.Covers(landing) {
						out = append(out, &Match{
							Seq: seq, Begin: pe.Begin, End: pe.End,
							Op: "connects", Base: pm, Left: lm, Right: rm, Submatch: pm,
						})
					}
				}
			}
		}
	}
	return out, nil
}

func (c *connectsCoord) requirements(seen map[string]bool) Capabilities {
	return c.left.requirements(seen).
		Add(c.right.requirements(seen)).
		Add(c.mgr.requirementsOf(c.pat, seen))
}

func (c *connectsCoord) references() []string {
	return append(append([]string{c.pat}, c.left.references()...), c.right.references()...)
}

// widenCoord stretches each feed match to cover both of its operand
// matches and the text between them.
type widenCoord struct {
	feed coordStream
}

func (c *widenCoord) scan(ctx *Context, seq tokens.TokenSequence, start, end int) ([]*Match, error) {
	fms, err := c.feed.scan(ctx, seq, start, end)
	if err != nil {
		return nil, err
	}
	out := make([]*Match, len(fms))
	for i, fm := range fms {
		out[i] = widen(fm)
	}
	return out, nil
}

func widen(m *Match) *Match {
	if m.Left == nil || m.Right == nil {
		return m
	}
	w := *m
	w.Begin = min4(m.Left.Begin, m.Left.End, m.Right.Begin, m.Right.End)
	w.End = max4(m.Left.Begin, m.Left.End, m.Right.Begin, m.Right.End)
	return &w
}

func min4(a, b, c, d int) int {
	out := a
	for _, v := range []int{b, c, d} {
		if v < out {
			out = v
		}
	}
	return out
}

func max4(a, b, c, d int) int {
	out := a
	for _, v := range []int{b, c, d} {
		if v > out {
			out = v
		}
	}
	return out
}

func (c *widenCoord) requirements(seen map[string]bool) Capabilities {
	return c.feed.requirements(seen)
}

func (c *widenCoord) references() []string { return c.feed.references() }

// mergeCoord coalesces runs of mutually overlapping feed matches into
// single covering matches, recording the originals as members.
type mergeCoord struct {
	feed coordStream
}

func (c *mergeCoord) scan(ctx *Context, seq tokens.TokenSequence, start, end int) ([]*Match, error) {
	fms, err := c.feed.scan(ctx, seq, start, end)
	if err != nil {
		return nil, err
	}
	sorted := append([]*Match(nil), fms...)
	SortMatches(sorted)
	var out []*Match
	var last *Match
	for _, m := range sorted {
		ext := m.Extent()
		if last != nil && last.Overlaps(m) {
			if ext.Begin < last.Begin {
				last.Begin = ext.Begin
			}
			if ext.End > last.End {
				last.End = ext.End
			}
			last.Members = append(last.Members, m)
			continue
		}
		if last != nil {
			out = append(out, last)
		}
		last = &Match{Seq: seq, Begin: ext.Begin, End: ext.End, Op: "merge", Base: m, Left: m, Members: []*Match{m}}
	}
	if last != nil {
		out = append(out, last)
	}
	return out, nil
}

func (c *mergeCoord) requirements(seen map[string]bool) Capabilities {
	return c.feed.requirements(seen)
}

func (c *mergeCoord) references() []string { return c.feed.references() }

// Coordinator expression parsing.
//
//	stream  ::= '_' | name | op '(' args ')'
//	match   ::= ('match'|'select') '(' name ',' stream ')'
//	filter  ::= ('filter'|'prefix'|'suffix') '(' name ',' stream [',' inv] ')'
//	prox    ::= ('near'|'precedes'|'follows'|'count') '(' name ',' int ',' stream [',' inv] ')'
//	nary    ::= ('union'|'inter'|'diff') '(' stream (',' stream)* ')'
//	join    ::= ('contains'|'contained_by'|'overlaps') '(' stream ',' stream ')'
//	conn    ::= 'connects' '(' name ',' stream ',' stream ')'
//	unit    ::= ('widen'|'merge') '(' stream ')'
//
// A bare name is shorthand for match(name, _).

var coordTokRe = regexp.MustCompile(`\w+(?:\.\w+)*|\S`)

var coordNameRe = regexp.MustCompile(`^\w+(?:\.\w+)*$`)

// ParseCoordExpr compiles a coordinator expression body.
func (m *Manager) ParseCoordExpr(expr string) (*Coordinator, error) {
	p := &coordParser{mgr: m, expr: expr, toks: coordTokRe.FindAllString(expr, -1)}
	root, err := p.stream()
	if err != nil {
		return nil, err
	}
	if len(p.toks) > 0 {
		return nil, &ExprError{Expr: expr, Msg: "extra tokens starting with '" + p.toks[0] + "'"}
	}
	return &Coordinator{mgr: m, root: root, src: expr}, nil
}

type coordParser struct {
	mgr  *Manager
	expr string
	toks []string
}

func (p *coordParser) peek() string {
	if len(p.toks) == 0 {
		return ""
	}
	return p.toks[0]
}

func (p *coordParser) next() (string, error) {
	if len(p.toks) == 0 {
		return "", &ExprError{Expr: p.expr, Msg: "unexpected end of expression"}
	}
	tok := p.toks[0]
	p.toks = p.toks[1:]
	return tok, nil
}

func (p *coordParser) expect(want string) error {
	tok, err := p.next()
	if err != nil {
		return err
	}
	if tok != want {
		return &ExprError{Expr: p.expr, Msg: "expected '" + want + "', got '" + tok + "'"}
	}
	return nil
}

func (p *coordParser) stream() (coordStream, error) {
	op, err := p.next()
	if err != nil {
		return nil, err
	}
	if op == "_" {
		return baseStream{}, nil
	}
	if p.peek() != "(" {
		if !coordNameRe.MatchString(op) {
			return nil, &ExprError{Expr: p.expr, Msg: "illegal extractor name '" + op + "'"}
		}
		return &matchCoord{mgr: p.mgr, pat: op, feed: baseStream{}}, nil
	}
	if err := p.expect("("); err != nil {
		return nil, err
	}
	var node coordStream
	switch op {
	case "match", "select":
		pat, feed, err := p.matchArgs()
		if err != nil {
			return nil, err
		}
		if op == "match" {
			node = &matchCoord{mgr: p.mgr, pat: pat, feed: feed}
		} else {
			node = &selectCoord{mgr: p.mgr, pat: pat, feed: feed}
		}
	case "filter", "prefix", "suffix":
		pat, feed, inv, err := p.filterArgs()
		if err != nil {
			return nil, err
		}
		switch op {
		case "filter":
			node = &filterCoord{mgr: p.mgr, pat: pat, feed: feed, inverted: inv}
		case "prefix":
			node = &prefixCoord{mgr: p.mgr, pat: pat, feed: feed, inverted: inv}
		case "suffix":
			node = &suffixCoord{mgr: p.mgr, pat: pat, feed: feed, inverted: inv}
		}
	case "near", "precedes", "follows", "count":
		pat, n, feed, inv, err := p.proxArgs()
		if err != nil {
			return nil, err
		}
		if op == "count" {
			node = &countCoord{mgr: p.mgr, pat: pat, count: n, feed: feed, inverted: inv}
		} else {
			node = &proxCoord{mgr: p.mgr, op: op, pat: pat, prox: n, feed: feed, inverted: inv}
		}
	case "union", "inter", "diff":
		feeds, err := p.naryArgs()
		if err != nil {
			return nil, err
		}
		node = &naryCoord{op: op, feeds: feeds}
	case "contains", "contained_by", "overlaps":
		left, err := p.stream()
		if err != nil {
			return nil, err
		}
		if err := p.expect(","); err != nil {
			return nil, err
		}
		right, err := p.stream()
		if err != nil {
			return nil, err
		}
		node = &joinCoord{op: op, left: left, right: right}
	case "connects":
		pat, err := p.name()
		if err != nil {
			return nil, err
		}
		if err := p.expect(","); err != nil {
			return nil, err
		}
		left, err := p.stream()
		if err != nil {
			return nil, err
		}
		if err := p.expect(","); err != nil {
			return nil, err
		}
		right, err := p.stream()
		if err != nil {
			return nil, err
		}
		node = &connectsCoord{mgr: p.mgr, pat: pat, left: left, right: right}
	case "widen", "merge":
		feed, err := p.stream()
		if err != nil {
			return nil, err
		}
		if op == "widen" {
			node = &widenCoord{feed: feed}
		} else {
			node = &mergeCoord{feed: feed}
		}
	default:
		return nil, &ExprError{Expr: p.expr, Msg: "illegal operator '" + op + "'"}
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	return node, nil
}

func (p *coordParser) name() (string, error) {
	tok, err := p.next()
	if err != nil {
		return "", err
	}
	if !coordNameRe.MatchString(tok) {
		return "", &ExprError{Expr: p.expr, Msg: "illegal extractor name '" + tok + "'"}
	}
	return tok, nil
}

func (p *coordParser) matchArgs() (string, coordStream, error) {
	pat, err := p.name()
	if err != nil {
		return "", nil, err
	}
	if err := p.expect(","); err != nil {
		return "", nil, err
	}
	feed, err := p.stream()
	return pat, feed, err
}

func (p *coordParser) filterArgs() (string, coordStream, bool, error) {
	pat, feed, err := p.matchArgs()
	if err != nil {
		return "", nil, false, err
	}
	inv, err := p.invFlag()
	return pat, feed, inv, err
}

func (p *coordParser) proxArgs() (string, int, coordStream, bool, error) {
	pat, err := p.name()
	if err != nil {
		return "", 0, nil, false, err
	}
	if err := p.expect(","); err != nil {
		return "", 0, nil, false, err
	}
	numTok, err := p.next()
	if err != nil {
		return "", 0, nil, false, err
	}
	n, err := strconv.Atoi(numTok)
	if err != nil || n < 0 {
		return "", 0, nil, false, &ExprError{Expr: p.expr, Msg: "'" + numTok + "' is not a non-negative integer"}
	}
	if err := p.expect(","); err != nil {
		return "", 0, nil, false, err
	}
	feed, err := p.stream()
	if err != nil {
		return "", 0, nil, false, err
	}
	inv, err := p.invFlag()
	return pat, n, feed, inv, err
}

// invFlag consumes an optional trailing inversion argument. Both the
// keyword forms and the older 0/1 form are accepted.
func (p *coordParser) invFlag() (bool, error) {
	if p.peek() != "," {
		return false, nil
	}
	p.toks = p.toks[1:]
	tok, err := p.next()
	if err != nil {
		return false, err
	}
	switch tok {
	case "invert", "inverted", "1":
		return true, nil
	case "0":
		return false, nil
	}
	return false, &ExprError{Expr: p.expr, Msg: "invalid inversion flag '" + tok + "'"}
}

func (p *coordParser) naryArgs() ([]coordStream, error) {
	first, err := p.stream()
	if err != nil {
		return nil, err
	}
	feeds := []coordStream{first}
	for p.peek() == "," {
		p.toks = p.toks[1:]
		feed, err := p.stream()
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, feed)
	}
	return feeds, nil
}
