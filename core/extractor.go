package core

import (
	"sort"

	"github.com/valetrules/valet/tokens"
)

// A Capability names an NLP layer an extractor needs on its input.
type Capability string

const (
	NeedPOS   Capability = "pos"
	NeedNER   Capability = "ner"
	NeedParse Capability = "parse"
)

// Capabilities is a requirement set.
type Capabilities map[Capability]bool

func (c Capabilities) Add(o Capabilities) Capabilities {
	for k := range o {
		c[k] = true
	}
	return c
}

func (c Capabilities) List() []Capability {
	out := make([]Capability, 0, len(c))
	for k := range c {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// An Extractor is a named compiled rule. Matches finds matches that
// begin exactly at start and end no later than end; Scan finds all
// matches whose start lies in [start,end). Both return matches in
// deterministic order.
//
// end < 0 means the sequence length. Implementations do not assign
// the Name field of the matches they yield; the Manager does that
// when a match leaves a named rule.
type Extractor interface {
	Matches(ctx *Context, seq tokens.TokenSequence, start, end int) ([]*Match, error)
	Scan(ctx *Context, seq tokens.TokenSequence, start, end int) ([]*Match, error)

	// Requirements reports the NLP layers the extractor and its
	// transitive references need. The seen set caps recursion at
	// reference cycles.
	Requirements(seen map[string]bool) Capabilities

	// References lists the names of other extractors this one
	// refers to directly.
	References() []string
}

// clipEnd normalizes an end argument to a concrete token index.
func clipEnd(seq tokens.TokenSequence, end int) int {
	if end < 0 || end > seq.Len() {
		return seq.Len()
	}
	return end
}
