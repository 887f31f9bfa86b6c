package testutil

import (
	"reflect"
	"testing"
)

func TestJS(t *testing.T) {
	got := JS(map[string]int{"cats": 2})
	if got != `{"cats":2}` {
		t.Fatal(got)
	}
}

func TestDwimjs(t *testing.T) {
	got := Dwimjs(`{"cats":2}`)
	want := map[string]interface{}{"cats": float64(2)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("%#v", got)
	}
	if got := Dwimjs(42); got != 42 {
		t.Fatalf("%#v", got)
	}
}

func TestReencode(t *testing.T) {
	type rec struct {
		Pattern string `json:"pattern"`
		Begin   int    `json:"begin"`
	}
	got, err := Reencode(rec{Pattern: "pair", Begin: 3})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]interface{}{"pattern": "pair", "begin": float64(3)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("%#v", got)
	}
}
