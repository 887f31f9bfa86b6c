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
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/valetrules/valet/tokens"
)

// A Manager holds one namespace of compiled rules. File and block
// imports become child Managers, so a Manager tree mirrors the
// namespace tree of the rule sources. References resolve in the
// defining namespace first and then climb toward the root, which is
// where the built-in extractors live.
//
// A Manager is immutable once its rules are loaded and may be shared
// by concurrent extractions; all per-run state lives in a Context.
type Manager struct {
	parent *Manager
	rules  map[string]*Rule

	// Strict makes redefinition of a name an error instead of an
	// overwrite.
	Strict bool

	sourceDirs []string
	dataDir    string
	lexicons   *lexiconCache
	engines    map[string]ScriptEngine
}

// A Rule is one named entry in a namespace: a compiled extractor, or
// for imports, a child namespace.
type Rule struct {
	Name     string
	Type     StatementType
	Ext      Extractor
	Bindings Substitutions
	NS       *Manager
	Stmt     *Statement
}

func NewManager() *Manager {
	m := &Manager{
		rules:    map[string]*Rule{},
		lexicons: newLexiconCache(),
		engines:  map[string]ScriptEngine{},
	}
	m.rules["START"] = &Rule{Name: "START", Type: PhraseStatement, Ext: startExtractor{}}
	m.rules["END"] = &Rule{Name: "END", Type: PhraseStatement, Ext: endExtractor{}}
	m.rules["ANY"] = &Rule{Name: "ANY", Type: PhraseStatement, Ext: anyExtractor{}}
	m.rules["ROOT"] = &Rule{Name: "ROOT", Type: PhraseStatement, Ext: rootExtractor{}}
	return m
}

// SetDataDir names a directory searched last when resolving relative
// lexicon and import paths, typically the shipped rule data.
func (m *Manager) SetDataDir(dir string) { m.dataDir = dir }

// RegisterScriptEngine makes an embedded-language engine available to
// scripted token tests under a language tag like "js".
func (m *Manager) RegisterScriptEngine(lang string, eng ScriptEngine) {
	m.engines[lang] = eng
}

// ScriptEngine returns the engine registered for a language tag,
// consulting enclosing namespaces, or nil.
func (m *Manager) ScriptEngine(lang string) ScriptEngine {
	for s := m; s != nil; s = s.parent {
		if eng, have := s.engines[lang]; have {
			return eng
		}
	}
	return nil
}

func (m *Manager) newChild() *Manager {
	return &Manager{
		parent:   m,
		rules:    map[string]*Rule{},
		Strict:   m.Strict,
		lexicons: m.lexicons,
	}
}

// ParseFile loads a rule file into this namespace. The file's
// directory joins the search path for relative imports.
func (m *Manager) ParseFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	m.sourceDirs = append(m.sourceDirs, filepath.Dir(path))
	sts, err := ParseStatements(string(data), path)
	if err != nil {
		return err
	}
	return m.AddStatements(sts)
}

// ParseString loads rule text into this namespace. file labels error
// messages.
func (m *Manager) ParseString(src, file string) error {
	sts, err := ParseStatements(src, file)
	if err != nil {
		return err
	}
	return m.AddStatements(sts)
}

func (m *Manager) AddStatements(sts []*Statement) error {
	for _, st := range sts {
		if err := m.AddStatement(st); err != nil {
			return err
		}
	}
	return nil
}

// AddStatement compiles one statement and enters it in the namespace.
// A name already present is overwritten unless the manager is strict.
func (m *Manager) AddStatement(st *Statement) error {
	if old, have := m.rules[st.Name]; have && m.Strict {
		return &Redefined{Name: st.Name, As: old.Type.String()}
	}
	if st.Type == ImportStatement {
		return m.addImport(st)
	}
	r := &Rule{Name: st.Name, Type: st.Type, Bindings: Substitutions(st.Bindings), Stmt: st}
	var err error
	switch st.Type {
	case TestStatement:
		r.Ext, err = m.ParseTokenTest(st.Body, st.Insens)
	case PhraseStatement:
		r.Ext, err = m.ParsePhraseExpr(st.Body, st.Insens)
	case DepStatement:
		r.Ext, err = m.ParseDepExpr(st.Body)
	case LexiconStatement:
		insens, isCSV, column := st.LexiconFlags()
		r.Ext, err = m.NewLexiconExtractor(st.Body, insens, isCSV, column)
	case CoordStatement:
		r.Ext, err = m.ParseCoordExpr(st.Body)
	case FrameStatement:
		r.Ext, err = m.ParseFrameExpr(st.Body)
	}
	if err != nil {
		return &ParseError{File: st.File, Line: st.Line, Msg: err.Error()}
	}
	m.rules[st.Name] = r
	return nil
}

var (
	importJSONRe   = regexp.MustCompile(`^j\{(.*)\}(i?)$`)
	importMemberRe = regexp.MustCompile(`^\{(.*)\}(i?)$`)
)

func (m *Manager) addImport(st *Statement) error {
	enter := func(r *Rule) {
		r.Name = st.Name
		r.Bindings = Substitutions(st.Bindings)
		r.Stmt = st
		m.rules[st.Name] = r
	}
	if st.Body == "" {
		child := m.newChild()
		if err := child.AddStatements(st.Block); err != nil {
			return err
		}
		enter(&Rule{Type: ImportStatement, NS: child})
		return nil
	}
	if g := importJSONRe.FindStringSubmatch(st.Body); g != nil {
		child, err := m.importJSONTests(g[1], g[2] == "i")
		if err != nil {
			return &ParseError{File: st.File, Line: st.Line, Msg: err.Error()}
		}
		enter(&Rule{Type: ImportStatement, NS: child})
		return nil
	}
	if g := importMemberRe.FindStringSubmatch(st.Body); g != nil {
		members, err := m.lexiconLines(g[1])
		if err != nil {
			return &ParseError{File: st.File, Line: st.Line, Msg: err.Error()}
		}
		enter(&Rule{
			Type: TestStatement,
			Ext:  &TokenTest{Pred: newMembershipPred(members, g[2] == "i")},
		})
		return nil
	}
	full, err := m.resolveImportPath(st.Body)
	if err != nil {
		return &ParseError{File: st.File, Line: st.Line, Msg: err.Error()}
	}
	child := m.newChild()
	if err := child.ParseFile(full); err != nil {
		return err
	}
	enter(&Rule{Type: ImportStatement, NS: child})
	return nil
}

// importJSONTests loads a JSON object mapping names to member lists
// and builds a namespace of membership token tests from it.
func (m *Manager) importJSONTests(path string, insens bool) (*Manager, error) {
	full, err := m.resolveImportPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	child := m.newChild()
	for name, val := range raw {
		var members []string
		if err := json.Unmarshal(val, &members); err != nil {
			var joined string
			if err := json.Unmarshal(val, &joined); err != nil {
				return nil, &ExprError{Expr: path, Msg: "entry '" + name + "' is neither a list nor a string"}
			}
			members = strings.Fields(joined)
		}
		child.rules[name] = &Rule{
			Name: name,
			Type: TestStatement,
			Ext:  &TokenTest{Pred: newMembershipPred(members, insens)},
		}
	}
	return child, nil
}

// resolveImportPath locates a lexicon or import path. Relative paths
// are tried against the working directory, then the directories of
// the files already loaded into this namespace and its ancestors, and
// last the configured data directory.
func (m *Manager) resolveImportPath(path string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}
	cands := []string{path}
	for s := m; s != nil; s = s.parent {
		for _, dir := range s.sourceDirs {
			cands = append(cands, filepath.Join(dir, path))
		}
		if s.dataDir != "" {
			cands = append(cands, filepath.Join(s.dataDir, path))
		}
	}
	for _, c := range cands {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", &UnresolvedName{Name: path}
}

// lookupRule resolves a dotted reference. The first component is
// searched in this namespace and then its ancestors; the remaining
// components descend strictly through imported namespaces.
func (m *Manager) lookupRule(name string) (*Rule, error) {
	parts := strings.Split(name, ".")
	for scope := m; scope != nil; scope = scope.parent {
		r, have := scope.rules[parts[0]]
		if !have {
			continue
		}
		for _, p := range parts[1:] {
			if r.NS == nil {
				return nil, &UnresolvedName{Name: name}
			}
			r, have = r.NS.rules[p]
			if !have {
				return nil, &UnresolvedName{Name: name}
			}
		}
		if r.Ext == nil {
			return nil, &OperandError{Op: name, Got: r.Type.String(), Want: "an extractor"}
		}
		return r, nil
	}
	return nil, &UnresolvedName{Name: name}
}

// LookupExtractor resolves a reference to its compiled extractor and
// statement kind.
func (m *Manager) LookupExtractor(name string) (Extractor, StatementType, error) {
	r, err := m.lookupRule(name)
	if err != nil {
		return nil, 0, err
	}
	return r.Ext, r.Type, nil
}

// Lookup resolves a reference to its rule entry, for inspection.
func (m *Manager) Lookup(name string) (*Rule, error) {
	return m.lookupRule(name)
}

// RuleNames lists the names defined directly in this namespace,
// sorted, built-ins excluded.
func (m *Manager) RuleNames() []string {
	var out []string
	for name, r := range m.rules {
		if m.parent == nil && r.Stmt == nil {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// A resultKey identifies one rule invocation for caching. Keys carry
// the sequence, so a Context may be reused across documents.
type resultKey struct {
	rule  *Rule
	seq   tokens.TokenSequence
	start int
	end   int
	scan  bool
}

func (c *Context) cached(key resultKey) ([]*Match, bool) {
	if c.results == nil {
		return nil, false
	}
	return c.results.Get(key)
}

func (c *Context) store(key resultKey, ms []*Match) {
	if c.results == nil {
		c.results, _ = lru.New[resultKey, []*Match](8192)
	}
	c.results.Add(key, ms)
}

// matchesFor runs the named rule's Matches at one start index, with
// the rule's own bindings in scope and the results labeled with the
// name they were reached by.
func (m *Manager) matchesFor(name string, ctx *Context, seq tokens.TokenSequence, start, end int) ([]*Match, error) {
	return m.runFor(name, ctx, seq, start, end, false)
}

// scanFor runs the named rule's Scan over [start,end).
func (m *Manager) scanFor(name string, ctx *Context, seq tokens.TokenSequence, start, end int) ([]*Match, error) {
	return m.runFor(name, ctx, seq, start, end, true)
}

func (m *Manager) runFor(name string, ctx *Context, seq tokens.TokenSequence, start, end int, scan bool) ([]*Match, error) {
	r, err := m.lookupRule(name)
	if err != nil {
		return nil, err
	}
	// Results are only reusable when no dynamic bindings are in
	// force; a binding frame can change what any nested reference
	// resolves to.
	cacheable := ctx.bindings == nil
	key := resultKey{rule: r, seq: seq, start: start, end: end, scan: scan}
	if cacheable {
		if ms, have := ctx.cached(key); have {
			return ms, nil
		}
	}
	leave, err := ctx.enter(name, start)
	if err != nil {
		return nil, err
	}
	defer leave()
	pop := ctx.Push(r.Bindings)
	defer pop()
	var ms []*Match
	if scan {
		ms, err = r.Ext.Scan(ctx, seq, start, end)
	} else {
		ms, err = r.Ext.Matches(ctx, seq, start, end)
	}
	if err != nil {
		return nil, err
	}
	out := make([]*Match, len(ms))
	for i, mm := range ms {
		if mm.Name == name {
			out[i] = mm
			continue
		}
		named := *mm
		named.Name = name
		out[i] = &named
	}
	if cacheable {
		ctx.store(key, out)
	}
	return out, nil
}

// requirementsOf reports the annotation capabilities a rule needs,
// with a visited set guarding against reference cycles. Unresolved
// names contribute nothing; they fail at match time instead.
func (m *Manager) requirementsOf(name string, seen map[string]bool) Capabilities {
	if seen == nil {
		seen = map[string]bool{}
	}
	if seen[name] {
		return Capabilities{}
	}
	seen[name] = true
	r, err := m.lookupRule(name)
	if err != nil {
		return Capabilities{}
	}
	return r.Ext.Requirements(seen)
}

// Requirements reports the annotation layers the named rule needs on
// its input, like a POS layer or a dependency parse.
func (m *Manager) Requirements(name string) Capabilities {
	return m.requirementsOf(name, nil)
}

// Apply scans a whole sequence with the named rule and returns its
// matches in positional order.
func (m *Manager) Apply(name string, seq tokens.TokenSequence) ([]*Match, error) {
	ms, err := m.scanFor(name, NewContext(), seq, 0, seq.Len())
	if err != nil {
		return nil, err
	}
	SortMatches(ms)
	return ms, nil
}

// A Stream is a pull-based view over a rule's matches, for callers
// that consume incrementally.
type Stream struct {
	ms []*Match
	at int
}

// Next returns the next match, or false when the stream is drained.
func (s *Stream) Next() (*Match, bool) {
	if s.at >= len(s.ms) {
		return nil, false
	}
	m := s.ms[s.at]
	s.at++
	return m, true
}

// Stream scans a whole sequence with the named rule and returns the
// matches as a pull-based stream.
func (m *Manager) Stream(name string, seq tokens.TokenSequence) (*Stream, error) {
	ms, err := m.Apply(name, seq)
	if err != nil {
		return nil, err
	}
	return &Stream{ms: ms}, nil
}

// Match returns the longest match of the named rule starting exactly
// at start, or nil.
func (m *Manager) Match(name string, seq tokens.TokenSequence, start int) (*Match, error) {
	ms, err := m.matchesFor(name, NewContext(), seq, start, seq.Len())
	if err != nil {
		return nil, err
	}
	return longestMatch(ms), nil
}

// Search returns the first match of the named rule at or after start,
// or nil.
func (m *Manager) Search(name string, seq tokens.TokenSequence, start int) (*Match, error) {
	ctx := NewContext()
	for at := start; at <= seq.Len(); at++ {
		ms, err := m.matchesFor(name, ctx, seq, at, seq.Len())
		if err != nil {
			return nil, err
		}
		if mm := longestMatch(ms); mm != nil {
			return mm, nil
		}
	}
	return nil, nil
}
