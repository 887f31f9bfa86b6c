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
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/valetrules/valet/tokens"
)

// A ScriptEngine evaluates scripted token tests written in an
// embedded language, like js{ token.length > 3 }.
type ScriptEngine interface {
	// EvalTokenTest evaluates src with token, index, and tags in
	// scope and reports whether the result is truthy. index is -1
	// and tags nil when only a bare token string is available.
	EvalTokenTest(src, token string, index int, tags map[string]string) (bool, error)
}

// A Predicate is the evaluable body of a token test. At tests the
// token at an index of a sequence; Token tests a bare string, which
// is how parse expressions apply token tests to edge labels.
type Predicate interface {
	At(ctx *Context, seq tokens.TokenSequence, i int) (bool, error)
	Token(ctx *Context, tok string) (bool, error)
	Requirements(seen map[string]bool) Capabilities
	References() []string
}

// A TokenTest is an extractor that emits a match of extent [i,i+1)
// for every token where its predicate holds.
type TokenTest struct {
	Pred Predicate
}

func (t *TokenTest) MatchesAt(ctx *Context, seq tokens.TokenSequence, i int) (bool, error) {
	return t.Pred.At(ctx, seq, i)
}

func (t *TokenTest) MatchesToken(ctx *Context, tok string) (bool, error) {
	return t.Pred.Token(ctx, tok)
}

func (t *TokenTest) Matches(ctx *Context, seq tokens.TokenSequence, start, end int) ([]*Match, error) {
	end = clipEnd(seq, end)
	if start >= end {
		return nil, nil
	}
	ok, err := t.Pred.At(ctx, seq, start)
	if err != nil || !ok {
		return nil, err
	}
	return []*Match{{Seq: seq, Begin: start, End: start + 1}}, nil
}

func (t *TokenTest) Scan(ctx *Context, seq tokens.TokenSequence, start, end int) ([]*Match, error) {
	end = clipEnd(seq, end)
	var out []*Match
	for i := start; i < end; i++ {
		ok, err := t.Pred.At(ctx, seq, i)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, &Match{Seq: seq, Begin: i, End: i + 1})
		}
	}
	return out, nil
}

func (t *TokenTest) Requirements(seen map[string]bool) Capabilities {
	return t.Pred.Requirements(seen)
}

func (t *TokenTest) References() []string { return t.Pred.References() }

// tokenAt reads the token string under a predicate, the only part of
// the sequence most predicates consult.
func tokenAt(seq tokens.TokenSequence, i int) string { return seq.Token(i) }

// anyPred matches any token.
type anyPred struct{}

func (anyPred) At(_ *Context, _ tokens.TokenSequence, _ int) (bool, error) { return true, nil }
func (anyPred) Token(_ *Context, _ string) (bool, error)                   { return true, nil }
func (anyPred) Requirements(map[string]bool) Capabilities                  { return Capabilities{} }
func (anyPred) References() []string                                       { return nil }

// membershipPred holds a literal token set.
type membershipPred struct {
	members map[string]bool
	insens  bool
}

func newMembershipPred(members []string, insens bool) *membershipPred {
	p := &membershipPred{members: map[string]bool{}, insens: insens}
	for _, m := range members {
		if insens {
			m = strings.ToLower(m)
		}
		p.members[m] = true
	}
	return p
}

func (p *membershipPred) Token(_ *Context, tok string) (bool, error) {
	if p.insens {
		tok = strings.ToLower(tok)
	}
	return p.members[tok], nil
}

func (p *membershipPred) At(ctx *Context, seq tokens.TokenSequence, i int) (bool, error) {
	return p.Token(ctx, tokenAt(seq, i))
}

func (p *membershipPred) Requirements(map[string]bool) Capabilities { return Capabilities{} }
func (p *membershipPred) References() []string                      { return nil }

// regexPred matches the token against a regexp2 pattern, so
// lookaround and the usual Perl-style classes work. Anchoring is
// explicit in the pattern.
type regexPred struct {
	re *regexp2.Regexp
}

func newRegexPred(expr string, insens bool) (*regexPred, error) {
	opts := regexp2.RegexOptions(regexp2.RE2)
	if insens {
		opts |= regexp2.IgnoreCase
	}
	re, err := regexp2.Compile(expr, opts)
	if err != nil {
		// Fall back to full regexp2 semantics for patterns RE2
		// rejects, like lookaround.
		re, err = regexp2.Compile(expr, regexOpts(insens))
		if err != nil {
			return nil, err
		}
	}
	return &regexPred{re: re}, nil
}

func regexOpts(insens bool) regexp2.RegexOptions {
	if insens {
		return regexp2.IgnoreCase
	}
	return regexp2.None
}

func (p *regexPred) Token(_ *Context, tok string) (bool, error) {
	return p.re.MatchString(tok)
}

func (p *regexPred) At(ctx *Context, seq tokens.TokenSequence, i int) (bool, error) {
	return p.Token(ctx, tokenAt(seq, i))
}

func (p *regexPred) Requirements(map[string]bool) Capabilities { return Capabilities{} }
func (p *regexPred) References() []string                      { return nil }

// substringPred matches when its string occurs inside the token.
type substringPred struct {
	substring string
	insens    bool
}

func (p *substringPred) Token(_ *Context, tok string) (bool, error) {
	if p.insens {
		tok = strings.ToLower(tok)
	}
	return strings.Contains(tok, p.substring), nil
}

func (p *substringPred) At(ctx *Context, seq tokens.TokenSequence, i int) (bool, error) {
	return p.Token(ctx, tokenAt(seq, i))
}

func (p *substringPred) Requirements(map[string]bool) Capabilities { return Capabilities{} }
func (p *substringPred) References() []string                      { return nil }

// lookupPred consults a per-token annotation layer.
type lookupPred struct {
	layer   string
	members map[string]bool
}

func (p *lookupPred) Token(_ *Context, _ string) (bool, error) {
	return false, &ParseRequirementError{Name: p.layer, Need: "a token index for annotation lookup"}
}

func (p *lookupPred) At(_ *Context, seq tokens.TokenSequence, i int) (bool, error) {
	layer, have := seq.Annotations(p.layer)
	if !have {
		return false, &ParseRequirementError{Name: p.layer, Need: "annotation layer \"" + p.layer + "\""}
	}
	if i >= len(layer) {
		return false, nil
	}
	return p.members[layer[i]], nil
}

func (p *lookupPred) Requirements(map[string]bool) Capabilities {
	switch p.layer {
	case "pos":
		return Capabilities{NeedPOS: true}
	case "ner":
		return Capabilities{NeedNER: true}
	}
	return Capabilities{}
}

func (p *lookupPred) References() []string { return nil }

// refPred defers to another token test by name, resolved through the
// manager with the current bindings.
type refPred struct {
	mgr     *Manager
	patname string
}

func (p *refPred) resolve(ctx *Context) (*TokenTest, error) {
	name := ctx.Resolve(p.patname)
	ext, kind, err := p.mgr.LookupExtractor(name)
	if err != nil {
		return nil, err
	}
	tt, ok := ext.(*TokenTest)
	if !ok {
		return nil, &OperandError{Op: p.patname, Got: kind.String(), Want: "a token test"}
	}
	return tt, nil
}

func (p *refPred) At(ctx *Context, seq tokens.TokenSequence, i int) (bool, error) {
	tt, err := p.resolve(ctx)
	if err != nil {
		return false, err
	}
	return tt.MatchesAt(ctx, seq, i)
}

func (p *refPred) Token(ctx *Context, tok string) (bool, error) {
	tt, err := p.resolve(ctx)
	if err != nil {
		return false, err
	}
	return tt.MatchesToken(ctx, tok)
}

func (p *refPred) Requirements(seen map[string]bool) Capabilities {
	return p.mgr.requirementsOf(p.patname, seen)
}

func (p *refPred) References() []string { return []string{p.patname} }

// scriptPred evaluates an embedded-language expression per token.
type scriptPred struct {
	mgr  *Manager
	lang string
	src  string
}

func (p *scriptPred) engine() (ScriptEngine, error) {
	eng := p.mgr.ScriptEngine(p.lang)
	if eng == nil {
		return nil, &UnresolvedName{Name: p.lang + " script engine"}
	}
	return eng, nil
}

func (p *scriptPred) At(_ *Context, seq tokens.TokenSequence, i int) (bool, error) {
	eng, err := p.engine()
	if err != nil {
		return false, err
	}
	tags := map[string]string{}
	for _, layer := range []string{"pos", "ner", "lemma"} {
		if vals, have := seq.Annotations(layer); have && i < len(vals) {
			tags[layer] = vals[i]
		}
	}
	return eng.EvalTokenTest(p.src, tokenAt(seq, i), i, tags)
}

func (p *scriptPred) Token(_ *Context, tok string) (bool, error) {
	eng, err := p.engine()
	if err != nil {
		return false, err
	}
	return eng.EvalTokenTest(p.src, tok, -1, nil)
}

func (p *scriptPred) Requirements(map[string]bool) Capabilities { return Capabilities{} }
func (p *scriptPred) References() []string                      { return nil }

// Boolean combinators.

type andPred struct{ subs []Predicate }

func (p *andPred) At(ctx *Context, seq tokens.TokenSequence, i int) (bool, error) {
	for _, s := range p.subs {
		ok, err := s.At(ctx, seq, i)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (p *andPred) Token(ctx *Context, tok string) (bool, error) {
	for _, s := range p.subs {
		ok, err := s.Token(ctx, tok)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (p *andPred) Requirements(seen map[string]bool) Capabilities { return unionReqs(p.subs, seen) }
func (p *andPred) References() []string                           { return unionRefs(p.subs) }

type orPred struct{ subs []Predicate }

func (p *orPred) At(ctx *Context, seq tokens.TokenSequence, i int) (bool, error) {
	for _, s := range p.subs {
		ok, err := s.At(ctx, seq, i)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (p *orPred) Token(ctx *Context, tok string) (bool, error) {
	for _, s := range p.subs {
		ok, err := s.Token(ctx, tok)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (p *orPred) Requirements(seen map[string]bool) Capabilities { return unionReqs(p.subs, seen) }
func (p *orPred) References() []string                           { return unionRefs(p.subs) }

type notPred struct{ arg Predicate }

func (p *notPred) At(ctx *Context, seq tokens.TokenSequence, i int) (bool, error) {
	ok, err := p.arg.At(ctx, seq, i)
	return !ok, err
}

func (p *notPred) Token(ctx *Context, tok string) (bool, error) {
	ok, err := p.arg.Token(ctx, tok)
	return !ok, err
}

func (p *notPred) Requirements(seen map[string]bool) Capabilities { return p.arg.Requirements(seen) }
func (p *notPred) References() []string                           { return p.arg.References() }

func unionReqs(subs []Predicate, seen map[string]bool) Capabilities {
	req := Capabilities{}
	for _, s := range subs {
		req.Add(s.Requirements(seen))
	}
	return req
}

func unionRefs(subs []Predicate) []string {
	var refs []string
	for _, s := range subs {
		refs = append(refs, s.References()...)
	}
	return refs
}

// Token test expression parsing.
//
// orexpr  -> andexpr ('or' andexpr)*
// andexpr -> notexpr ('and' notexpr)*
// notexpr -> 'not'? atom
// atom    -> /RE/i? | <SUB>i? | {MEMBERS}i? | f{PATH}i? | j{PATH}i?
//          | js{EXPR} | LAYER[TAGS] | &REF | @REF | '(' orexpr ')'

var testTokRe = regexp.MustCompile(`(?s)js\{.*?\}|[fj]?\{.*?\}i?|\w+\[[^\]]*\]|/\S+?/i?|<\S+?>i?|[&@]\w+(?:\.\w+)*|\(|\)|\S+`)

type testParser struct {
	mgr    *Manager
	expr   string
	toks   []string
	insens bool
}

// ParseTokenTest parses a token test expression into a TokenTest.
// insens forces case-insensitivity on every literal atom, as the i:
// delimiter does.
func (m *Manager) ParseTokenTest(expr string, insens bool) (*TokenTest, error) {
	p := &testParser{mgr: m, expr: expr, toks: testTokRe.FindAllString(expr, -1), insens: insens}
	pred, err := p.orexpr()
	if err != nil {
		return nil, err
	}
	if len(p.toks) > 0 {
		return nil, &ExprError{Expr: expr, Msg: "extra tokens starting with '" + p.toks[0] + "'"}
	}
	return &TokenTest{Pred: pred}, nil
}

func (p *testParser) orexpr() (Predicate, error) {
	first, err := p.andexpr()
	if err != nil {
		return nil, err
	}
	subs := []Predicate{first}
	for len(p.toks) > 0 && p.toks[0] == "or" {
		p.toks = p.toks[1:]
		next, err := p.andexpr()
		if err != nil {
			return nil, err
		}
		subs = append(subs, next)
	}
	if len(subs) == 1 {
		return subs[0], nil
	}
	return &orPred{subs: subs}, nil
}

func (p *testParser) andexpr() (Predicate, error) {
	first, err := p.notexpr()
	if err != nil {
		return nil, err
	}
	subs := []Predicate{first}
	for len(p.toks) > 0 && p.toks[0] == "and" {
		p.toks = p.toks[1:]
		next, err := p.notexpr()
		if err != nil {
			return nil, err
		}
		subs = append(subs, next)
	}
	if len(subs) == 1 {
		return subs[0], nil
	}
	return &andPred{subs: subs}, nil
}

func (p *testParser) notexpr() (Predicate, error) {
	if len(p.toks) == 0 {
		return nil, &ExprError{Expr: p.expr, Msg: "missing operand"}
	}
	notted := false
	if p.toks[0] == "not" {
		notted = true
		p.toks = p.toks[1:]
	}
	pred, err := p.atom()
	if err != nil {
		return nil, err
	}
	if notted {
		return &notPred{arg: pred}, nil
	}
	return pred, nil
}

var (
	memberAtomRe = regexp.MustCompile(`(?s)^([fj]?)\{(.*)\}(i?)$`)
	substrAtomRe = regexp.MustCompile(`^<(.*)>(i?)$`)
	regexAtomRe  = regexp.MustCompile(`^/(.*)/(i?)$`)
	refAtomRe    = regexp.MustCompile(`^[&@]([\w.]+)$`)
	lookupAtomRe = regexp.MustCompile(`(?s)^(\w+)\[(.*)\]$`)
	scriptAtomRe = regexp.MustCompile(`(?s)^js\{(.*)\}$`)
)

func (p *testParser) atom() (Predicate, error) {
	if len(p.toks) == 0 {
		return nil, &ExprError{Expr: p.expr, Msg: "missing operand"}
	}
	tok := p.toks[0]
	p.toks = p.toks[1:]

	if tok == "(" {
		pred, err := p.orexpr()
		if err != nil {
			return nil, err
		}
		if len(p.toks) == 0 || p.toks[0] != ")" {
			return nil, &ExprError{Expr: p.expr, Msg: "unbalanced '('"}
		}
		p.toks = p.toks[1:]
		return pred, nil
	}

	if m := scriptAtomRe.FindStringSubmatch(tok); m != nil {
		return &scriptPred{mgr: p.mgr, lang: "js", src: strings.TrimSpace(m[1])}, nil
	}

	if m := memberAtomRe.FindStringSubmatch(tok); m != nil {
		kind, body, flag := m[1], m[2], m[3]
		insens := p.insens || flag == "i"
		switch kind {
		case "f":
			members, err := p.mgr.lexiconLines(body)
			if err != nil {
				return nil, err
			}
			return newMembershipPred(members, insens), nil
		case "j":
			return nil, &ExprError{Expr: p.expr, Msg: "the j{...} form defines multiple tests; use it on an import (<-) statement"}
		default:
			return newMembershipPred(strings.Fields(body), insens), nil
		}
	}

	if m := substrAtomRe.FindStringSubmatch(tok); m != nil {
		insens := p.insens || m[2] == "i"
		s := m[1]
		if insens {
			s = strings.ToLower(s)
		}
		return &substringPred{substring: s, insens: insens}, nil
	}

	if m := regexAtomRe.FindStringSubmatch(tok); m != nil {
		pred, err := newRegexPred(m[1], p.insens || m[2] == "i")
		if err != nil {
			return nil, &ExprError{Expr: p.expr, Msg: "bad regex /" + m[1] + "/: " + err.Error()}
		}
		return pred, nil
	}

	if m := refAtomRe.FindStringSubmatch(tok); m != nil {
		return &refPred{mgr: p.mgr, patname: m[1]}, nil
	}

	if m := lookupAtomRe.FindStringSubmatch(tok); m != nil {
		return &lookupPred{layer: m[1], members: stringSet(strings.Fields(m[2]))}, nil
	}

	return nil, &ExprError{Expr: p.expr, Msg: "unparsable atom '" + tok + "'"}
}

func stringSet(ss []string) map[string]bool {
	set := make(map[string]bool, len(ss))
	for _, s := range ss {
		set[s] = true
	}
	return set
}
