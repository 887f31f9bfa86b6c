package main

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	. "github.com/valetrules/valet/util/testutil"
)

const testRules = `
num : /^[0-9]+$/
animal : { cat dog }i
pair -> &num &animal
`

func testService(t *testing.T) (*Service, *httptest.Server) {
	t.Helper()
	store := NewRulesetStore(filepath.Join(t.TempDir(), "test.db"))
	if err := store.Open(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	s := NewService(store)
	srv := httptest.NewServer(s.Mux())
	t.Cleanup(srv.Close)
	return s, srv
}

func TestRulesetAPI(t *testing.T) {
	_, srv := testService(t)

	req, err := http.NewRequest("PUT", srv.URL+"/api/rulesets/food", strings.NewReader(testRules))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put status %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/api/rulesets")
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	if err = json.NewDecoder(resp.Body).Decode(&names); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if len(names) != 1 || names[0] != "food" {
		t.Fatalf("names %v", names)
	}

	resp, err = http.Get(srv.URL + "/api/rulesets/food")
	if err != nil {
		t.Fatal(err)
	}
	bs, _ := ioutil.ReadAll(resp.Body)
	resp.Body.Close()
	if string(bs) != testRules {
		t.Fatalf("source %s", bs)
	}

	req, err = http.NewRequest("DELETE", srv.URL+"/api/rulesets/food", nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp, err = http.DefaultClient.Do(req); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status %d", resp.StatusCode)
	}

	if resp, err = http.Get(srv.URL + "/api/rulesets/food"); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete status %d", resp.StatusCode)
	}
}

func TestRulesetValidation(t *testing.T) {
	_, srv := testService(t)

	req, err := http.NewRequest("PUT", srv.URL+"/api/rulesets/bad", strings.NewReader("num /broken\n"))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad rules accepted (status %d)", resp.StatusCode)
	}
}

func TestExtractAPI(t *testing.T) {
	s, srv := testService(t)

	if err := s.SetRuleset("food", testRules); err != nil {
		t.Fatal(err)
	}

	js, err := json.Marshal(&ExtractRequest{
		Ruleset: "food",
		Pattern: "pair",
		Text:    "we saw 2 dog",
	})
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(srv.URL+"/api/extract", "application/json", bytes.NewReader(js))
	if err != nil {
		t.Fatal(err)
	}
	var er ExtractResponse
	if err = json.NewDecoder(resp.Body).Decode(&er); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if len(er.Records) != 1 || er.Records[0].Text != "2 dog" {
		t.Fatalf("records %s", JS(er.Records))
	}
}

func TestAnalysisAPI(t *testing.T) {
	s, srv := testService(t)

	if err := s.SetRuleset("food", testRules); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(srv.URL + "/api/rulesets/food/analysis")
	if err != nil {
		t.Fatal(err)
	}
	bs, _ := ioutil.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(bs), "\"rules\":3") {
		t.Fatalf("analysis %s", bs)
	}
}

func TestWebSocketExtract(t *testing.T) {
	s, srv := testService(t)

	if err := s.SetRuleset("food", testRules); err != nil {
		t.Fatal(err)
	}

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	req := &ExtractRequest{
		Ruleset: "food",
		Pattern: "pair",
		Text:    "just 1 cat here",
	}
	if err = c.WriteJSON(req); err != nil {
		t.Fatal(err)
	}
	var er ExtractResponse
	if err = c.ReadJSON(&er); err != nil {
		t.Fatal(err)
	}
	if er.Error != "" {
		t.Fatal(er.Error)
	}
	if len(er.Records) != 1 || er.Records[0].Text != "1 cat" {
		t.Fatalf("records %s", JS(er.Records))
	}
}
