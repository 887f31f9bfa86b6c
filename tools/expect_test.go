package tools

import (
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"
)

func TestSessionRun(t *testing.T) {
	s := &Session{
		Rules: testRules,
		Cases: []Case{
			{Text: "we saw 2 dog and 1 cat", Pattern: "pair", Want: []string{"2 dog", "1 cat"}},
			{Text: "nothing here", Pattern: "pair"},
		},
	}
	if err := s.Run(nil); err != nil {
		t.Fatal(err)
	}
}

func TestSessionFailure(t *testing.T) {
	s := &Session{
		Rules: testRules,
		Cases: []Case{
			{Doc: "wrong", Text: "1 cat", Pattern: "pair", Want: []string{"2 dog"}},
		},
	}
	err := s.Run(nil)
	if err == nil {
		t.Fatal("bad expectation passed")
	}
	if !strings.Contains(err.Error(), "wrong") {
		t.Fatalf("error does not name the case: %v", err)
	}
}

func TestSessionFields(t *testing.T) {
	s := &Session{
		Rules: testRules + "deal $ frame(pair, count = num, kind = animal)\n",
		Cases: []Case{
			{
				Text:    "just 1 cat",
				Pattern: "deal",
				Want:    []string{"1 cat"},
				Fields: map[string][]string{
					"count": {"1"},
					"kind":  {"cat"},
				},
			},
		},
	}
	if err := s.Run(nil); err != nil {
		t.Fatal(err)
	}
}

func TestLoadSession(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "session.yaml")
	src := `doc: smoke
rules: |
  num : /^[0-9]+$/
cases:
  - text: "a 7 b"
    pattern: num
    want: ["7"]
`
	if err := ioutil.WriteFile(file, []byte(src), 0644); err != nil {
		t.Fatal(err)
	}
	s, err := LoadSession(file)
	if err != nil {
		t.Fatal(err)
	}
	if err = s.Run(nil); err != nil {
		t.Fatal(err)
	}
}
