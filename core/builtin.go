package core

import (
	"github.com/valetrules/valet/tokens"
)

// Built-in extractors, preseeded into every root namespace. START and
// END are zero-width anchors; ANY consumes any single token; ROOT
// matches runs of parse-root tokens.

type startExtractor struct{}

func (startExtractor) Matches(ctx *Context, seq tokens.TokenSequence, start, end int) ([]*Match, error) {
	if start != 0 {
		return nil, nil
	}
	return []*Match{{Seq: seq, Begin: 0, End: 0}}, nil
}

func (startExtractor) Scan(ctx *Context, seq tokens.TokenSequence, start, end int) ([]*Match, error) {
	if start > 0 {
		return nil, nil
	}
	return []*Match{{Seq: seq, Begin: 0, End: 0}}, nil
}

func (startExtractor) Requirements(seen map[string]bool) Capabilities { return Capabilities{} }
func (startExtractor) References() []string                          { return nil }

type endExtractor struct{}

func (endExtractor) Matches(ctx *Context, seq tokens.TokenSequence, start, end int) ([]*Match, error) {
	if start != seq.Len() {
		return nil, nil
	}
	return []*Match{{Seq: seq, Begin: start, End: start}}, nil
}

func (endExtractor) Scan(ctx *Context, seq tokens.TokenSequence, start, end int) ([]*Match, error) {
	n := seq.Len()
	if start > n || clipEnd(seq, end) < n {
		return nil, nil
	}
	return []*Match{{Seq: seq, Begin: n, End: n}}, nil
}

func (endExtractor) Requirements(seen map[string]bool) Capabilities { return Capabilities{} }
func (endExtractor) References() []string                          { return nil }

type anyExtractor struct{}

func (anyExtractor) Matches(ctx *Context, seq tokens.TokenSequence, start, end int) ([]*Match, error) {
	if start >= clipEnd(seq, end) {
		return nil, nil
	}
	return []*Match{{Seq: seq, Begin: start, End: start + 1}}, nil
}

func (anyExtractor) Scan(ctx *Context, seq tokens.TokenSequence, start, end int) ([]*Match, error) {
	end = clipEnd(seq, end)
	var out []*Match
	for at := start; at < end; at++ {
		out = append(out, &Match{Seq: seq, Begin: at, End: at + 1})
	}
	return out, nil
}

func (anyExtractor) Requirements(seen map[string]bool) Capabilities { return Capabilities{} }
func (anyExtractor) References() []string                          { return nil }

// rootExtractor matches the maximal run of consecutive root tokens
// beginning exactly at the start index. For a single-rooted sentence
// that is the head verb; fragments can have several roots in a row.
type rootExtractor struct{}

func (rootExtractor) Matches(ctx *Context, seq tokens.TokenSequence, start, end int) ([]*Match, error) {
	if !seq.HasDependencies() {
		return nil, &ParseRequirementError{Name: "ROOT", Need: "a dependency parse"}
	}
	end = clipEnd(seq, end)
	at := start
	for at < end && seq.IsRoot(at) {
		at++
	}
	if at == start {
		return nil, nil
	}
	return []*Match{{Seq: seq, Begin: start, End: at}}, nil
}

func (r rootExtractor) Scan(ctx *Context, seq tokens.TokenSequence, start, end int) ([]*Match, error) {
	end = clipEnd(seq, end)
	var out []*Match
	at := start
	for at < end {
		ms, err := r.Matches(ctx, seq, at, end)
		if err != nil {
			return nil, err
		}
		if len(ms) == 0 {
			at++
			continue
		}
		out = append(out, ms...)
		at = ms[0].End
	}
	return out, nil
}

func (rootExtractor) Requirements(seen map[string]bool) Capabilities {
	return Capabilities{NeedParse: true}
}

func (rootExtractor) References() []string { return nil }
