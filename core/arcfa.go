package core

import (
	"github.com/valetrules/valet/tokens"
)

// The parse runtime walks dependency edges instead of consuming
// tokens, so a walk can move left as well as right. A match keeps its
// raw walk endpoints: Begin is the start token, End the landing
// token, and End < Begin for a leftward walk. When the expression has
// no direction prefixes, each start is also tried against the
// reversed automaton, so a walk is recognized from either of its
// endpoints.

type arcVisit struct {
	sid int
	at  int
}

func (fa *FA) arcMatches(ctx *Context, seq tokens.TokenSequence, start, end int) ([]*Match, error) {
	if !seq.HasDependencies() {
		return nil, &ParseRequirementError{Need: "a dependency parse"}
	}
	var out []*Match
	seen := map[int]bool{}
	emit := func(rawEnd int, subs []*Match) {
		if rawEnd == start || seen[rawEnd] {
			return
		}
		seen[rawEnd] = true
		out = append(out, &Match{Seq: seq, Begin: start, End: rawEnd, Arc: true, Submatches: subs})
	}
	visited := map[arcVisit]bool{}
	if err := fa.arcStep(ctx, seq, start, end, start, fa.initial, visited, nil, emit); err != nil {
		return nil, err
	}
	if fa.rev != nil {
		visited = map[arcVisit]bool{}
		if err := fa.rev.arcStep(ctx, seq, start, end, start, fa.rev.initial, visited, nil, emit); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// arcStep explores walks from one state at one token. The visited set
// spans the whole invocation so a walk cannot revisit a state at a
// token it has already been tried from.
func (fa *FA) arcStep(ctx *Context, seq tokens.TokenSequence, start, end, at, sid int, visited map[arcVisit]bool, subs []*Match, emit func(int, []*Match)) error {
	if at > end || at-start > maxMatch || at-start < -maxMatch {
		return nil
	}
	for _, s := range fa.closure(sid) {
		v := arcVisit{sid: s.id, at: at}
		if visited[v] {
			continue
		}
		visited[v] = true
		if fa.final[s.id] {
			emit(at, subs)
		}
		if at >= end {
			continue
		}
		for _, t := range s.trans {
			switch t.kind {
			case literalTrans:
				for _, toki := range arcEndpoints(seq, at, t.dir, func(label string) bool {
					return fa.tokenEqual(label, t.symbol)
				}) {
					if err := fa.arcStep(ctx, seq, start, end, toki, t.dest, visited, subs, emit); err != nil {
						return err
					}
				}
			case refTrans:
				if err := fa.arcRef(ctx, seq, start, end, at, t, visited, subs, emit); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (fa *FA) arcRef(ctx *Context, seq tokens.TokenSequence, start, end, at int, t faTransition, visited map[arcVisit]bool, subs []*Match, emit func(int, []*Match)) error {
	name := ctx.Resolve(t.symbol)
	ext, kind, err := fa.mgr.LookupExtractor(name)
	if err != nil {
		return err
	}
	if tt, ok := ext.(*TokenTest); ok {
		var deps []tokens.Dependency
		if t.dir == 0 || t.dir == '/' {
			deps = append(deps, seq.UpDependencies(at)...)
		}
		if t.dir == 0 || t.dir == '\\' {
			deps = append(deps, seq.DownDependencies(at)...)
		}
		for _, d := range deps {
			hit, err := tt.MatchesToken(ctx, d.Label)
			if err != nil {
				return err
			}
			if !hit {
				continue
			}
			if err := fa.arcStep(ctx, seq, start, end, d.At, t.dest, visited, subs, emit); err != nil {
				return err
			}
		}
		return nil
	}
	if kind != DepStatement {
		return &OperandError{Op: t.symbol, Got: kind.String(), Want: "a parse expression or token test"}
	}
	ms, err := fa.mgr.matchesFor(name, ctx, seq, at, end)
	if err != nil {
		return err
	}
	for _, sub := range ms {
		// The inner walk began at the current token and landed on
		// sub.End; the outer walk continues from there.
		if err := fa.arcStep(ctx, seq, start, end, sub.End, t.dest, visited, appendSub(subs, sub), emit); err != nil {
			return err
		}
	}
	return nil
}

// arcEndpoints returns the endpoints of edges at token at whose label
// satisfies ok, honoring a direction restriction. Upward edges go to
// the token's head, downward edges to its dependents.
func arcEndpoints(seq tokens.TokenSequence, at int, dir byte, ok func(string) bool) []int {
	var out []int
	if dir == 0 || dir == '/' {
		for _, d := range seq.UpDependencies(at) {
			if ok(d.Label) {
				out = append(out, d.At)
			}
		}
	}
	if dir == 0 || dir == '\\' {
		for _, d := range seq.DownDependencies(at) {
			if ok(d.Label) {
				out = append(out, d.At)
			}
		}
	}
	return out
}
