package tools

import (
	"bytes"
	"strings"
	"testing"
)

func TestRenderRulesHTML(t *testing.T) {
	src := `## Money amounts
##
## Matches *numbers* with separators.

num : /^[0-9]+$/
# internal note
bignum -> &num ( , &num )*
`
	var buf bytes.Buffer
	if err := RenderRulesHTML(src, &buf); err != nil {
		t.Fatal(err)
	}
	got := buf.String()

	for _, want := range []string{
		"<em>numbers</em>",
		"num : /^[0-9]+$/",
		"bignum -&gt; &amp;num ( , &amp;num )*",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("no %q in %s", want, got)
		}
	}
	if strings.Contains(got, "internal note") {
		t.Fatal("ordinary comment rendered")
	}
}

func TestRenderRulePage(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderRulePage("money", "num : /^[0-9]+$/\n", &buf, nil); err != nil {
		t.Fatal(err)
	}
	got := buf.String()
	if !strings.Contains(got, "<title>money</title>") {
		t.Fatalf("no title in %s", got)
	}
	if !strings.Contains(got, "/static/rules.css") {
		t.Fatalf("no default css in %s", got)
	}
}
