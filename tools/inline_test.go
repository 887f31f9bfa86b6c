package tools

import (
	"strings"
	"testing"
)

func TestInline(t *testing.T) {
	input := `
lex L-> %inline("tacos")
other : %inline("queso")
`
	want := `
lex L-> TACOS
other : QUESO
`

	find := func(name string) ([]byte, error) {
		return []byte(strings.ToUpper(name)), nil
	}

	got, err := Inline([]byte(input), find)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != want {
		t.Fatalf("got %s", got)
	}
}
