package core

import (
	"sort"
	"strconv"
	"strings"

	"github.com/valetrules/valet/tokens"
)

// An Extent is the normalized half-open token range [Begin,End) of a
// match, the sole basis for coordinator comparisons like "same
// extent", "contains", and "overlaps".
type Extent struct {
	Begin, End int
}

// A Match records where an extractor matched a token sequence.
//
// For phrase, coordinator, and frame matches Begin and End are a
// half-open extent: 0 <= Begin <= End <= seq len. Arc matches keep
// the raw walk endpoints instead: Begin is the token the walk started
// on, End the token it landed on, both inclusive, and End < Begin for
// a walk that ran right to left. Extent reconciles the two forms;
// everything that compares matches goes through it.
//
// Submatches holds child matches captured during matching, each
// carrying the name of the referencing rule. The operator fields
// (Left, Right, Submatch, Supermatch, Members) are set by
// coordinators and hold non-owning references into sibling streams.
type Match struct {
	Seq   tokens.TokenSequence
	Begin int
	End   int
	Name  string

	// Arc marks a parse-expression match, whose Begin and End are
	// inclusive walk endpoints rather than a half-open extent.
	Arc bool

	Submatches []*Match

	Op         string
	Left       *Match
	Right      *Match
	Submatch   *Match
	Supermatch *Match
	Members    []*Match

	// Base is the input match a coordinator derived this match
	// from; the derived match shares its extent with Base.
	Base *Match

	// Fields is non-nil only on frame matches.
	Fields map[string][]*Match
}

// Extent returns the match's normalized half-open extent. An arc
// match's inclusive endpoints fold into [min, max+1).
func (m *Match) Extent() Extent {
	if m.Arc {
		b, e := m.Begin, m.End
		if e < b {
			b, e = e, b
		}
		return Extent{b, e + 1}
	}
	return Extent{m.Begin, m.End}
}

// SameExtent reports whether two matches cover exactly the same
// range of the same sequence.
func (m *Match) SameExtent(o *Match) bool {
	return m.Seq == o.Seq && m.Extent() == o.Extent()
}

// Overlaps reports whether the extents intersect.
func (m *Match) Overlaps(o *Match) bool {
	me, oe := m.Extent(), o.Extent()
	return m.Seq == o.Seq && me.Begin < oe.End && oe.Begin < me.End
}

// Contains reports whether m's extent fully contains o's.
func (m *Match) Contains(o *Match) bool {
	me, oe := m.Extent(), o.Extent()
	return m.Seq == o.Seq && me.Begin <= oe.Begin && oe.End <= me.End
}

// Covers reports whether the token index lies inside the extent.
func (m *Match) Covers(i int) bool {
	ext := m.Extent()
	return ext.Begin <= i && i < ext.End
}

// StartOffset returns the character offset of the match start.
func (m *Match) StartOffset() int {
	ext := m.Extent()
	if ext.Begin == ext.End && ext.Begin >= m.Seq.Len() {
		return len(m.Seq.Text())
	}
	return m.Seq.Offset(ext.Begin)
}

// EndOffset returns the character offset just past the match end.
func (m *Match) EndOffset() int {
	ext := m.Extent()
	if ext.Begin == ext.End {
		return m.StartOffset()
	}
	last := ext.End - 1
	return m.Seq.Offset(last) + m.Seq.TokenLength(last)
}

// MatchingText returns the text substring determined by the extent.
func (m *Match) MatchingText() string {
	ext := m.Extent()
	if ext.Begin == ext.End {
		return ""
	}
	return m.Seq.Text()[m.StartOffset():m.EndOffset()]
}

// IsFrame reports whether the match carries frame fields.
func (m *Match) IsFrame() bool { return m.Fields != nil }

// GetFrame returns the frame match this match wraps or derives from,
// walking Base links, or nil when there is none.
func (m *Match) GetFrame() *Match {
	for x := m; x != nil; x = x.Base {
		if x.IsFrame() {
			return x
		}
	}
	return nil
}

// DirectSubmatches returns the immediate children: captured
// submatches plus any operator-field matches, deduplicated by
// identity.
func (m *Match) DirectSubmatches() []*Match {
	var out []*Match
	seen := map[*Match]bool{}
	add := func(s *Match) {
		if s != nil && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range m.Submatches {
		add(s)
	}
	add(m.Left)
	add(m.Right)
	add(m.Submatch)
	add(m.Supermatch)
	for _, s := range m.Members {
		add(s)
	}
	return out
}

// AllSubmatches returns every named submatch in the tree below m,
// restricted to the given query name when name is nonempty. Frame
// matches also answer from their fields.
func (m *Match) AllSubmatches(name string) []*Match {
	if m.IsFrame() {
		var out []*Match
		if vs, have := m.Fields[name]; have {
			out = append(out, vs...)
		}
		if m.Base != nil {
			if QueryNameMatches(name, m.Base.Name) {
				out = append(out, m.Base)
			}
			out = append(out, m.Base.AllSubmatches(name)...)
		}
		return out
	}
	var out []*Match
	for _, s := range m.DirectSubmatches() {
		if name == "" || QueryNameMatches(name, s.Name) {
			out = append(out, s)
		}
		out = append(out, s.AllSubmatches(name)...)
	}
	return out
}

// Query finds matches in the submatch tree along a sequence of
// extractor names, like the path /**/n1/**/n2/**/.../nk. Matches of
// other extractors may intervene. The matches of the last name are
// returned. On frame matches the first unconsumed name may select a
// field instead.
func (m *Match) Query(names ...string) []*Match {
	if len(names) == 0 {
		return nil
	}
	if m.IsFrame() {
		return m.queryFrame(names)
	}
	if QueryNameMatches(names[0], m.Name) {
		names = names[1:]
		if len(names) == 0 {
			return []*Match{m}
		}
	}
	var out []*Match
	for _, s := range m.DirectSubmatches() {
		out = append(out, s.Query(names...)...)
	}
	return out
}

func (m *Match) queryFrame(names []string) []*Match {
	if QueryNameMatches(names[0], m.Name) {
		names = names[1:]
		if len(names) == 0 {
			return []*Match{m}
		}
	}
	if vs, have := m.Fields[names[0]]; have {
		rest := names[1:]
		if len(rest) == 0 {
			return append([]*Match{}, vs...)
		}
		var out []*Match
		for _, v := range vs {
			out = append(out, v.Query(rest...)...)
		}
		return out
	}
	if m.Base != nil {
		return m.Base.Query(names...)
	}
	return nil
}

// AddField records a frame field value, skipping values already
// present under the field with the same extent.
func (m *Match) AddField(field string, v *Match) {
	if m.Fields == nil {
		m.Fields = map[string][]*Match{}
	}
	for _, have := range m.Fields[field] {
		if have.SameExtent(v) {
			return
		}
	}
	m.Fields[field] = append(m.Fields[field], v)
}

// MergeFrame combines the fields of two coextensive frame matches
// into a new frame match.
func (m *Match) MergeFrame(o *Match) *Match {
	merged := &Match{
		Seq:   m.Seq,
		Begin: m.Begin,
		End:   m.End,
		Name:  m.Name,
		Base:  m.Base,
	}
	for f, vs := range m.Fields {
		for _, v := range vs {
			merged.AddField(f, v)
		}
	}
	for f, vs := range o.Fields {
		for _, v := range vs {
			merged.AddField(f, v)
		}
	}
	if merged.Fields == nil {
		merged.Fields = map[string][]*Match{}
	}
	return merged
}

func (m *Match) String() string {
	var b strings.Builder
	b.WriteString("Match(")
	if m.Name != "" {
		b.WriteString("[" + m.Name + "],")
	}
	b.WriteString(strconv.Itoa(m.Begin) + "," + strconv.Itoa(m.End) + "," + m.MatchingText())
	if len(m.Submatches) > 0 {
		b.WriteString(",ss=[")
		for i, s := range m.Submatches {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(s.String())
		}
		b.WriteString("]")
	}
	b.WriteString(")")
	return b.String()
}

// QueryNameMatches tests a query name against a match name. Match
// names with dotted import prefixes are stripped down to the number
// of components in the query name, so an unqualified query name finds
// matches recorded under qualified names.
func QueryNameMatches(qname, mname string) bool {
	if mname == "" {
		return false
	}
	q := strings.Split(qname, ".")
	mn := strings.Split(mname, ".")
	if len(mn) > len(q) {
		mn = mn[len(mn)-len(q):]
	}
	if len(q) != len(mn) {
		return false
	}
	for i := range q {
		if q[i] != mn[i] {
			return false
		}
	}
	return true
}

// SortMatches orders a stream by normalized (begin, end) ascending,
// keeping the incoming order for ties.
func SortMatches(ms []*Match) {
	sort.SliceStable(ms, func(i, j int) bool {
		a, b := ms[i].Extent(), ms[j].Extent()
		if a.Begin != b.Begin {
			return a.Begin < b.Begin
		}
		return a.End < b.End
	})
}
