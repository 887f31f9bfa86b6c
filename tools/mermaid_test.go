package tools

import (
	"bytes"
	"strings"
	"testing"

	"github.com/valetrules/valet/core"
)

func TestMermaid(t *testing.T) {
	m := testManager(t)

	r, err := m.Lookup("pair")
	if err != nil {
		t.Fatal(err)
	}
	fa, is := r.Ext.(*core.FA)
	if !is {
		t.Fatalf("pair is %T", r.Ext)
	}

	var buf bytes.Buffer
	if err := Mermaid(fa, &buf, nil); err != nil {
		t.Fatal(err)
	}
	got := buf.String()
	for _, want := range []string{"graph LR", "&num", "&animal", "style"} {
		if !strings.Contains(got, want) {
			t.Fatalf("no %q in %s", want, got)
		}
	}
}
