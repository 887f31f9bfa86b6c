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
	"sort"
	"strings"
)

// A StatementType says what kind of extractor a statement defines,
// chosen by the delimiter between name and body.
type StatementType int

const (
	TestStatement StatementType = iota
	PhraseStatement
	LexiconStatement
	ImportStatement
	DepStatement
	CoordStatement
	FrameStatement
)

func (t StatementType) String() string {
	switch t {
	case TestStatement:
		return "token test"
	case PhraseStatement:
		return "phrase"
	case LexiconStatement:
		return "lexicon"
	case ImportStatement:
		return "import"
	case DepStatement:
		return "parse"
	case CoordStatement:
		return "coordinator"
	case FrameStatement:
		return "frame"
	}
	return "unknown"
}

// A Statement is one parsed rule: a name, a delimiter, an optional
// binding qualifier, and a body. A namespace import (empty-body <-)
// carries the indented block that followed it.
type Statement struct {
	Name     string
	Delim    string
	Type     StatementType
	Insens   bool
	Bindings map[string]string
	Body     string
	Block    []*Statement
	File     string
	Line     int
}

var stmtRe = regexp.MustCompile(`^(\w+)\s*(i?->|L[ic0-9]*->|i?:|<-|~|\^|\$)\s*(\[[^\]]*\])?\s*(.*)$`)

// ParseStatements splits rule-file text into statements. A statement
// starts at a scope's indentation level; following deeper-indented
// lines are joined to it with a single space, except after an
// empty-body import, where they form the namespace block. Lines whose
// first nonblank character is '#' are comments.
func ParseStatements(src, file string) ([]*Statement, error) {
	type line struct {
		indent int
		text   string
		num    int
	}
	var lines []line
	for num, raw := range strings.Split(src, "\n") {
		trimmed := strings.TrimLeft(raw, " \t")
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		indent := 0
		for _, c := range raw {
			if c == ' ' {
				indent++
			} else if c == '\t' {
				indent += 8
			} else {
				break
			}
		}
		lines = append(lines, line{indent, strings.TrimRight(trimmed, " \t\r"), num + 1})
	}

	var parse func(ls []line) ([]*Statement, error)
	parse = func(ls []line) ([]*Statement, error) {
		if len(ls) == 0 {
			return nil, nil
		}
		base := ls[0].indent
		var out []*Statement
		i := 0
		for i < len(ls) {
			if ls[i].indent > base {
				return nil, &ParseError{File: file, Line: ls[i].num, Msg: "unexpected indentation"}
			}
			head := ls[i]
			j := i + 1
			for j < len(ls) && ls[j].indent > base {
				j++
			}
			group := ls[i+1 : j]
			st, err := parseOne(head.text, file, head.num)
			if err != nil {
				return nil, err
			}
			if st.Type == ImportStatement && st.Body == "" && len(group) > 0 {
				block, err := parse(group)
				if err != nil {
					return nil, err
				}
				st.Block = block
			} else {
				for _, g := range group {
					st.Body += " " + g.text
				}
				st.Body = strings.TrimSpace(st.Body)
			}
			out = append(out, st)
			i = j
		}
		return out, nil
	}

	return parse(lines)
}

func parseOne(text, file string, num int) (*Statement, error) {
	m := stmtRe.FindStringSubmatch(text)
	if m == nil {
		return nil, &ParseError{File: file, Line: num, Msg: "malformed statement '" + text + "'"}
	}
	st := &Statement{
		Name:  m[1],
		Delim: m[2],
		Body:  strings.TrimSpace(m[4]),
		File:  file,
		Line:  num,
	}
	switch {
	case st.Delim == ":" || st.Delim == "i:":
		st.Type = TestStatement
		st.Insens = st.Delim == "i:"
	case st.Delim == "->" || st.Delim == "i->":
		st.Type = PhraseStatement
		st.Insens = st.Delim == "i->"
	case strings.HasPrefix(st.Delim, "L"):
		st.Type = LexiconStatement
		st.Insens = strings.Contains(st.Delim, "i")
	case st.Delim == "<-":
		st.Type = ImportStatement
	case st.Delim == "^":
		st.Type = DepStatement
	case st.Delim == "~":
		st.Type = CoordStatement
	case st.Delim == "$":
		st.Type = FrameStatement
	default:
		return nil, &ParseError{File: file, Line: num, Msg: "unknown delimiter '" + st.Delim + "'"}
	}
	if m[3] != "" {
		bs, err := parseBindingQualifier(m[3])
		if err != nil {
			return nil, &ParseError{File: file, Line: num, Msg: err.Error()}
		}
		st.Bindings = bs
	}
	return st, nil
}

// parseBindingQualifier parses "[a=b, c=d]" into a substitution map.
func parseBindingQualifier(q string) (map[string]string, error) {
	inner := strings.TrimSpace(q[1 : len(q)-1])
	bs := map[string]string{}
	if inner == "" {
		return bs, nil
	}
	for _, part := range strings.Split(inner, ",") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return nil, &ExprError{Expr: q, Msg: "bad binding '" + strings.TrimSpace(part) + "'"}
		}
		k := strings.TrimSpace(kv[0])
		v := strings.TrimSpace(kv[1])
		if k == "" || v == "" {
			return nil, &ExprError{Expr: q, Msg: "bad binding '" + strings.TrimSpace(part) + "'"}
		}
		bs[k] = v
	}
	return bs, nil
}

// LexiconFlags reports the option characters between "L" and "->" of
// a lexicon delimiter: 'i' for case-insensitive, 'c' for CSV input,
// digits selecting the CSV column.
func (st *Statement) LexiconFlags() (insens, csv bool, column int) {
	flags := strings.TrimSuffix(strings.TrimPrefix(st.Delim, "L"), "->")
	for _, c := range flags {
		switch {
		case c == 'i':
			insens = true
		case c == 'c':
			csv = true
		case c >= '0' && c <= '9':
			column = column*10 + int(c-'0')
		}
	}
	return
}

// Render reconstructs the statement's source form.
func (st *Statement) Render() string {
	var b strings.Builder
	b.WriteString(st.Name)
	b.WriteString(" " + st.Delim)
	if st.Bindings != nil {
		b.WriteString(" " + renderBindings(st.Bindings))
	}
	if st.Body != "" {
		b.WriteString(" " + st.Body)
	}
	return b.String()
}

func renderBindings(bs map[string]string) string {
	keys := make([]string, 0, len(bs))
	for k := range bs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + bs[k]
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
