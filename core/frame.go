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

	"github.com/valetrules/valet/tokens"
)

// A FrameExtractor turns matches of an anchor rule into frame
// matches: the anchor match's extent plus named fields populated by
// selection paths into the anchor's submatch tree. Coextensive frames
// from one scan are merged.
type FrameExtractor struct {
	mgr    *Manager
	anchor string
	fields []frameField
}

// A frameField is one selection path and the field names it fills.
// When several fields share a path, the path's matches are dealt out
// to the fields in order, the last field taking any extras.
type frameField struct {
	names []string
	path  []string
}

func (x *FrameExtractor) addField(name string, path []string) {
	for i := range x.fields {
		if pathEqual(x.fields[i].path, path) {
			x.fields[i].names = append(x.fields[i].names, name)
			return
		}
	}
	x.fields = append(x.fields, frameField{names: []string{name}, path: path})
}

func pathEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (x *FrameExtractor) Matches(ctx *Context, seq tokens.TokenSequence, start, end int) ([]*Match, error) {
	return x.extract(ctx, seq, start, end, true)
}

func (x *FrameExtractor) Scan(ctx *Context, seq tokens.TokenSequence, start, end int) ([]*Match, error) {
	return x.extract(ctx, seq, start, end, false)
}

func (x *FrameExtractor) extract(ctx *Context, seq tokens.TokenSequence, start, end int, startOnly bool) ([]*Match, error) {
	ms, err := x.mgr.scanFor(x.anchor, ctx, seq, start, clipEnd(seq, end))
	if err != nil {
		return nil, err
	}
	result := map[Extent]*Match{}
	var order []Extent
	for _, m := range ms {
		if startOnly && m.Begin != start {
			continue
		}
		frame := x.frameFromMatch(m)
		ext := m.Extent()
		if have, ok := result[ext]; ok {
			result[ext] = have.MergeFrame(frame)
		} else {
			result[ext] = frame
			order = append(order, ext)
		}
	}
	out := make([]*Match, len(order))
	for i, ext := range order {
		out[i] = result[ext]
	}
	return out, nil
}

func (x *FrameExtractor) frameFromMatch(m *Match) *Match {
	ext := m.Extent()
	frame := &Match{
		Seq: m.Seq, Begin: ext.Begin, End: ext.End,
		Base: m, Fields: map[string][]*Match{},
	}
	for _, f := range x.fields {
		names := f.names
		field := names[0]
		names = names[1:]
		for _, v := range m.Query(f.path...) {
			frame.AddField(field, v)
			if len(names) > 0 {
				field = names[0]
				names = names[1:]
			}
		}
	}
	return frame
}

func (x *FrameExtractor) Requirements(seen map[string]bool) Capabilities {
	return x.mgr.requirementsOf(x.anchor, seen)
}

func (x *FrameExtractor) References() []string { return []string{x.anchor} }

// A FrameReducer takes a stream whose matches may carry frames and
// stitches them together: coextensive frames merge, field values that
// are coextensive with another frame are replaced by that frame, and
// frames absorbed into another frame's fields drop out of the output.
type FrameReducer struct {
	mgr  *Manager
	feed string
}

func (x *FrameReducer) Scan(ctx *Context, seq tokens.TokenSequence, start, end int) ([]*Match, error) {
	ms, err := x.mgr.scanFor(x.feed, ctx, seq, 0, seq.Len())
	if err != nil {
		return nil, err
	}
	frames, order := reduceMerge(ms)
	for _, ext := range order {
		linkFrames(frames, frames[ext])
	}
	embedded := subframeSet(frames, order)
	// Reduction is defined over the whole sequence, so the start and
	// end bounds do not trim the surviving frames.
	var out []*Match
	for _, ext := range order {
		f := frames[ext]
		if !embedded[f] {
			out = append(out, breakFrameCycles(f))
		}
	}
	return out, nil
}

func (x *FrameReducer) Matches(ctx *Context, seq tokens.TokenSequence, start, end int) ([]*Match, error) {
	ms, err := x.Scan(ctx, seq, start, end)
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

// reduceMerge collapses the frames in a match stream by extent,
// copying so cached matches stay untouched.
func reduceMerge(ms []*Match) (map[Extent]*Match, []Extent) {
	frames := map[Extent]*Match{}
	var order []Extent
	for _, m := range ms {
		frame := m.GetFrame()
		if frame == nil {
			continue
		}
		ext := m.Extent()
		if have, ok := frames[ext]; ok {
			frames[ext] = have.MergeFrame(frame)
		} else {
			frames[ext] = copyFrame(frame)
			order = append(order, ext)
		}
	}
	return frames, order
}

func copyFrame(f *Match) *Match {
	c := *f
	c.Fields = map[string][]*Match{}
	for name, vs := range f.Fields {
		c.Fields[name] = append([]*Match(nil), vs...)
	}
	return &c
}

// linkFrames substitutes coextensive frames for plain field values,
// recursing through frames already embedded in fields.
func linkFrames(frames map[Extent]*Match, frame *Match) {
	ext := frame.Extent()
	for name, vs := range frame.Fields {
		out := make([]*Match, len(vs))
		for i, v := range vs {
			vframe := v.GetFrame()
			switch {
			case vframe != nil:
				out[i] = v
				linkFrames(frames, vframe)
			case frames[v.Extent()] != nil && v.Extent() != ext:
				out[i] = frames[v.Extent()]
			default:
				out[i] = v
			}
		}
		frame.Fields[name] = out
	}
}

// subframeSet finds the frames that ended up embedded in the fields
// of other frames.
func subframeSet(frames map[Extent]*Match, order []Extent) map[*Match]bool {
	embedded := map[*Match]bool{}
	var note func(f *Match)
	note = func(f *Match) {
		for _, vs := range f.Fields {
			for _, v := range vs {
				if v.IsFrame() && !embedded[v] {
					embedded[v] = true
					note(v)
				}
			}
		}
	}
	for _, ext := range order {
		note(frames[ext])
	}
	return embedded
}

// breakFrameCycles replaces a field value referring back to a frame
// on the current descent path with that frame's plain anchor match.
// Cycles come from phrase matches spanning unrelated parts of a
// parse, so distinct fields end up pointing at the same extent.
func breakFrameCycles(frame *Match) *Match {
	var onPath []*Match
	var walk func(v *Match) *Match
	walk = func(v *Match) *Match {
		if !v.IsFrame() {
			return v
		}
		for _, p := range onPath {
			if p == v {
				return v.Base
			}
		}
		onPath = append(onPath, v)
		for name, vs := range v.Fields {
			out := make([]*Match, len(vs))
			for i, sub := range vs {
				out[i] = walk(sub)
			}
			v.Fields[name] = out
		}
		onPath = onPath[:len(onPath)-1]
		return v
	}
	return walk(frame)
}

func (x *FrameReducer) Requirements(seen map[string]bool) Capabilities {
	return x.mgr.requirementsOf(x.feed, seen)
}

func (x *FrameReducer) References() []string { return []string{x.feed} }

// Frame expression parsing.
//
//	frameexpr ::= 'frame' '(' anchor (',' field '=' name+)* ')'
//	            | 'reduce' '(' name ')'

var frameTokRe = regexp.MustCompile(`(?:\w+\.)*\w+|\S`)

var frameNameRe = regexp.MustCompile(`^(?:\w+\.)*\w+$`)

// ParseFrameExpr compiles a frame expression body.
func (m *Manager) ParseFrameExpr(expr string) (Extractor, error) {
	p := &frameParser{expr: expr, toks: frameTokRe.FindAllString(expr, -1)}
	op, err := p.next()
	if err != nil {
		return nil, err
	}
	var ext Extractor
	switch op {
	case "frame":
		ext, err = p.frame(m)
	case "reduce":
		ext, err = p.reduce(m)
	default:
		return nil, &ExprError{Expr: expr, Msg: "expected 'frame' or 'reduce', got '" + op + "'"}
	}
	if err != nil {
		return nil, err
	}
	if len(p.toks) > 0 {
		return nil, &ExprError{Expr: expr, Msg: "extra tokens starting with '" + p.toks[0] + "'"}
	}
	return ext, nil
}

type frameParser struct {
	expr string
	toks []string
}

func (p *frameParser) next() (string, error) {
	if len(p.toks) == 0 {
		return "", &ExprError{Expr: p.expr, Msg: "unexpected end of expression"}
	}
	tok := p.toks[0]
	p.toks = p.toks[1:]
	return tok, nil
}

func (p *frameParser) peek() string {
	if len(p.toks) == 0 {
		return ""
	}
	return p.toks[0]
}

func (p *frameParser) expect(want string) error {
	tok, err := p.next()
	if err != nil {
		return err
	}
	if tok != want {
		return &ExprError{Expr: p.expr, Msg: "expected '" + want + "', got '" + tok + "'"}
	}
	return nil
}

func (p *frameParser) name() (string, error) {
	tok, err := p.next()
	if err != nil {
		return "", err
	}
	if !frameNameRe.MatchString(tok) {
		return "", &ExprError{Expr: p.expr, Msg: "'" + tok + "' is not a name"}
	}
	return tok, nil
}

func (p *frameParser) frame(m *Manager) (Extractor, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	anchor, err := p.name()
	if err != nil {
		return nil, err
	}
	x := &FrameExtractor{mgr: m, anchor: anchor}
	for p.peek() == "," {
		p.toks = p.toks[1:]
		field, err := p.name()
		if err != nil {
			return nil, err
		}
		if err := p.expect("="); err != nil {
			return nil, err
		}
		var path []string
		for frameNameRe.MatchString(p.peek()) {
			sel, _ := p.next()
			path = append(path, sel)
		}
		if len(path) == 0 {
			return nil, &ExprError{Expr: p.expr, Msg: "field '" + field + "' has no selector"}
		}
		x.addField(field, path)
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	return x, nil
}

// Frames scans a sequence with a frame rule and returns the extracted
// frames in sequence order.
func (m *Manager) Frames(name string, seq tokens.TokenSequence) ([]*Match, error) {
	r, err := m.lookupRule(name)
	if err != nil {
		return nil, err
	}
	if r.Type != FrameStatement {
		return nil, &OperandError{Op: name, Got: r.Type.String(), Want: "a frame"}
	}
	return m.Apply(name, seq)
}

func (p *frameParser) reduce(m *Manager) (Extractor, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	feed, err := p.name()
	if err != nil {
		return nil, err
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	return &FrameReducer{mgr: m, feed: feed}, nil
}
