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

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/valetrules/valet/core"
	"github.com/valetrules/valet/interpreters"
	"github.com/valetrules/valet/sio"
	"github.com/valetrules/valet/tools"
)

// Service serves rule sets and extraction over HTTP.
//
// Compiled managers are cached by rule-set name, and a cache entry is
// dropped whenever its source changes.
type Service struct {
	Verbose bool

	store *RulesetStore

	sync.RWMutex
	compiled map[string]*core.Manager
}

// NewService makes a service on an open store.
func NewService(store *RulesetStore) *Service {
	return &Service{
		store:    store,
		compiled: make(map[string]*core.Manager, 32),
	}
}

func (s *Service) logf(format string, args ...interface{}) {
	if !s.Verbose {
		return
	}
	log.Printf(format, args...)
}

// compile parses rule text into a fresh manager.
func (s *Service) compile(src, label string) (*core.Manager, error) {
	m := core.NewManager()
	interpreters.Install(m)
	if err := m.ParseString(src, label); err != nil {
		return nil, err
	}
	return m, nil
}

// manager returns a compiled manager for a stored rule set.
func (s *Service) manager(name string) (*core.Manager, error) {
	s.RLock()
	m, have := s.compiled[name]
	s.RUnlock()
	if have {
		return m, nil
	}

	src, err := s.store.Get(name)
	if err != nil {
		return nil, err
	}
	if m, err = s.compile(src, name); err != nil {
		return nil, err
	}

	s.Lock()
	s.compiled[name] = m
	s.Unlock()

	return m, nil
}

// invalidate drops a cached manager.
func (s *Service) invalidate(name string) {
	s.Lock()
	delete(s.compiled, name)
	s.Unlock()
}

// SetRuleset validates and stores a rule-set source.
func (s *Service) SetRuleset(name, src string) error {
	if _, err := s.compile(src, name); err != nil {
		return err
	}
	if err := s.store.Put(name, src); err != nil {
		return err
	}
	s.invalidate(name)
	return nil
}

// An ExtractRequest asks for one document to be run through a rule
// set.  Either Ruleset (a stored name) or Rules (inline source) picks
// the rules, and either Text (raw) or Doc (a token sequence) provides
// the document.
type ExtractRequest struct {
	Ruleset string `json:"ruleset,omitempty"`
	Rules   string `json:"rules,omitempty"`

	Pattern  string   `json:"pattern,omitempty"`
	Patterns []string `json:"patterns,omitempty"`

	Id   string          `json:"id,omitempty"`
	Text string          `json:"text,omitempty"`
	Doc  json.RawMessage `json:"doc,omitempty"`
}

// An ExtractResponse reports the records for one ExtractRequest.
type ExtractResponse struct {
	Records []*sio.Record `json:"records"`
	Error   string        `json:"error,omitempty"`
}

// Extract runs one request.
func (s *Service) Extract(req *ExtractRequest) ([]*sio.Record, error) {
	var (
		m   *core.Manager
		err error
	)
	switch {
	case req.Rules != "":
		m, err = s.compile(req.Rules, "request")
	case req.Ruleset != "":
		m, err = s.manager(req.Ruleset)
	default:
		err = fmt.Errorf("need either 'ruleset' or 'rules'")
	}
	if err != nil {
		return nil, err
	}

	var doc *sio.Document
	if 0 < len(req.Doc) {
		if doc, err = sio.DecodeDocument(req.Doc); err != nil {
			return nil, err
		}
		if req.Id != "" {
			doc.Id = req.Id
		}
	} else {
		doc = sio.TextDocument(req.Id, req.Text)
	}

	patterns := req.Patterns
	if req.Pattern != "" {
		patterns = append(patterns, req.Pattern)
	}
	if len(patterns) == 0 {
		patterns = m.RuleNames()
	}

	recs := make([]*sio.Record, 0, 8)
	for _, pat := range patterns {
		ms, err := m.Apply(pat, doc.Seq)
		if err != nil {
			return nil, err
		}
		for _, match := range ms {
			recs = append(recs, sio.NewRecord(doc.Id, pat, match))
		}
	}

	return recs, nil
}

// Mux builds the HTTP API.
func (s *Service) Mux() *http.ServeMux {
	mux := http.NewServeMux()

	puntf := func(w http.ResponseWriter, status int, format string, args ...interface{}) {
		msg := fmt.Sprintf(format, args...)
		s.logf("vservice error: %s", msg)
		w.WriteHeader(status)
		resp := map[string]interface{}{
			"error": msg,
		}
		js, err := json.Marshal(&resp)
		if err != nil {
			// Better than nothing?
			js = []byte(msg)
		}
		fmt.Fprintf(w, "%s\n", js)
	}

	status := func(err error) int {
		if errors.Is(err, NotFound) {
			return http.StatusNotFound
		}
		return http.StatusBadRequest
	}

	mux.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "\"pong\"\n")
	})

	mux.HandleFunc("/api/rulesets", func(w http.ResponseWriter, r *http.Request) {
		names, err := s.store.List()
		if err != nil {
			puntf(w, http.StatusInternalServerError, "List: %s", err)
			return
		}
		js, err := json.Marshal(&names)
		if err != nil {
			puntf(w, http.StatusInternalServerError, "Marshal: %s", err)
			return
		}
		fmt.Fprintf(w, "%s\n", js)
	})

	mux.HandleFunc("/api/rulesets/", func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/api/rulesets/")

		if sub := strings.TrimSuffix(name, "/analysis"); sub != name {
			s.analysisHandler(w, r, sub, puntf, status)
			return
		}

		if name == "" || strings.Contains(name, "/") {
			puntf(w, http.StatusBadRequest, "bad ruleset name '%s'", name)
			return
		}

		switch r.Method {
		case "GET":
			src, err := s.store.Get(name)
			if err != nil {
				puntf(w, status(err), "%s", err)
				return
			}
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			fmt.Fprintf(w, "%s", src)

		case "PUT", "POST":
			bs, err := ioutil.ReadAll(r.Body)
			if err != nil {
				puntf(w, http.StatusBadRequest, "ReadAll: %s", err)
				return
			}
			if err = s.SetRuleset(name, string(bs)); err != nil {
				puntf(w, http.StatusBadRequest, "%s", err)
				return
			}
			fmt.Fprintf(w, "{}\n")

		case "DELETE":
			if err := s.store.Rem(name); err != nil {
				puntf(w, status(err), "%s", err)
				return
			}
			s.invalidate(name)
			fmt.Fprintf(w, "{}\n")

		default:
			puntf(w, http.StatusMethodNotAllowed, "method %s not supported", r.Method)
		}
	})

	mux.HandleFunc("/api/extract", func(w http.ResponseWriter, r *http.Request) {
		bs, err := ioutil.ReadAll(r.Body)
		if err != nil {
			puntf(w, http.StatusBadRequest, "ReadAll: %s", err)
			return
		}
		var req ExtractRequest
		if err = json.Unmarshal(bs, &req); err != nil {
			puntf(w, http.StatusBadRequest, "Unmarshal: %s", err)
			return
		}
		recs, err := s.Extract(&req)
		if err != nil {
			puntf(w, status(err), "%s", err)
			return
		}
		resp := ExtractResponse{
			Records: recs,
		}
		js, err := json.Marshal(&resp)
		if err != nil {
			puntf(w, http.StatusInternalServerError, "Marshal: %s", err)
			return
		}
		fmt.Fprintf(w, "%s\n", js)
	})

	mux.HandleFunc("/doc/", func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/doc/")
		src, err := s.store.Get(name)
		if err != nil {
			puntf(w, status(err), "%s", err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err = tools.RenderRulePage(name, src, w, nil); err != nil {
			s.logf("RenderRulePage %s: %s", name, err)
		}
	})

	s.WebSockets(mux)

	return mux
}

// analysisHandler reports the structure of a stored rule set.
func (s *Service) analysisHandler(w http.ResponseWriter, r *http.Request, name string, puntf func(http.ResponseWriter, int, string, ...interface{}), status func(error) int) {
	m, err := s.manager(name)
	if err != nil {
		puntf(w, status(err), "%s", err)
		return
	}
	a, err := tools.Analyze(m)
	if err != nil {
		puntf(w, http.StatusInternalServerError, "Analyze: %s", err)
		return
	}
	js, err := json.Marshal(a)
	if err != nil {
		puntf(w, http.StatusInternalServerError, "Marshal: %s", err)
		return
	}
	fmt.Fprintf(w, "%s\n", js)
}
