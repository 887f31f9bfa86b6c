package tools

import (
	"bytes"
	"strings"
	"testing"
)

func TestRuleDot(t *testing.T) {
	m := testManager(t)

	var buf bytes.Buffer
	if err := RuleDot(m, "pair", &buf); err != nil {
		t.Fatal(err)
	}
	got := buf.String()
	for _, want := range []string{"digraph pair {", "&num", "&animal", "doublecircle"} {
		if !strings.Contains(got, want) {
			t.Fatalf("no %q in %s", want, got)
		}
	}
}

func TestRuleDotNotAutomaton(t *testing.T) {
	m := testManager(t)

	var buf bytes.Buffer
	if err := RuleDot(m, "num", &buf); err == nil {
		t.Fatal("token test rendered as automaton")
	}
	if err := RuleDot(m, "nope", &buf); err == nil {
		t.Fatal("missing rule rendered")
	}
}
