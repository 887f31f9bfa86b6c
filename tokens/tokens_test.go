package tokens

import (
	"encoding/json"
	"testing"
)

func TestTokenize(t *testing.T) {
	s := Tokenize("Dr. Smith, 42!")
	want := []string{"Dr", ".", "Smith", ",", "42", "!"}
	if len(s.Tokens) != len(want) {
		t.Fatalf("got %v", s.Tokens)
	}
	for i, w := range want {
		if s.Tokens[i] != w {
			t.Fatalf("token %d: got %q, want %q", i, s.Tokens[i], w)
		}
	}
	for i := range want {
		at := s.Offsets[i]
		if s.SourceText[at:at+s.Lengths[i]] != s.Tokens[i] {
			t.Errorf("offset %d does not cover %q", at, s.Tokens[i])
		}
	}
}

func TestTokenizeAlnumBoundary(t *testing.T) {
	s := Tokenize("abc123")
	if len(s.Tokens) != 2 || s.Tokens[0] != "abc" || s.Tokens[1] != "123" {
		t.Fatalf("got %v", s.Tokens)
	}
}

func TestDecode(t *testing.T) {
	doc := `{"text":"a dog barks","tokens":["a","dog","barks"],
                 "offsets":[0,2,6],"lengths":[1,3,5],
                 "annotations":{"pos":["DT","NN","VBZ"]},
                 "deps":[[2,"nsubj",1],[1,"det",0]]}`
	s, err := Decode([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if s.Len() != 3 {
		t.Fatalf("got %d tokens", s.Len())
	}
	pos, have := s.Annotations("pos")
	if !have || pos[1] != "NN" {
		t.Fatalf("pos layer: %v %v", pos, have)
	}
	if _, have := s.Annotations("ner"); have {
		t.Fatal("unexpected ner layer")
	}
	if !s.HasDependencies() {
		t.Fatal("expected dependencies")
	}
	up := s.UpDependencies(1)
	if len(up) != 1 || up[0].At != 2 || up[0].Label != "nsubj" {
		t.Fatalf("up(1) = %v", up)
	}
	down := s.DownDependencies(1)
	if len(down) != 1 || down[0].At != 0 || down[0].Label != "det" {
		t.Fatalf("down(1) = %v", down)
	}
	if !s.IsRoot(2) || s.IsRoot(0) {
		t.Fatal("root detection wrong")
	}
	if got := MatchingText(s, 1, 3); got != "dog barks" {
		t.Fatalf("MatchingText = %q", got)
	}
}

func TestDecodeTextOnly(t *testing.T) {
	s, err := Decode([]byte(`{"text":"hello, world"}`))
	if err != nil {
		t.Fatal(err)
	}
	if s.Len() != 3 {
		t.Fatalf("got %v", s.Tokens)
	}
	if s.Token(1) != "," {
		t.Fatalf("got %v", s.Tokens)
	}
}

func TestEdgeRoundTrip(t *testing.T) {
	e := Edge{Head: 2, Label: "nsubj", Child: 1}
	bs, err := json.Marshal(e)
	if err != nil {
		t.Fatal(err)
	}
	if string(bs) != `[2,"nsubj",1]` {
		t.Fatalf("got %s", bs)
	}
	var back Edge
	if err := json.Unmarshal(bs, &back); err != nil {
		t.Fatal(err)
	}
	if back != e {
		t.Fatalf("got %v", back)
	}
}

func TestSynthesizedOffsets(t *testing.T) {
	s := NewSequence([]string{"a", "bb", "ccc"})
	if s.Text() != "a bb ccc" {
		t.Fatalf("text = %q", s.Text())
	}
	if s.Offset(2) != 5 || s.TokenLength(2) != 3 {
		t.Fatalf("offsets = %v lengths = %v", s.Offsets, s.Lengths)
	}
}
