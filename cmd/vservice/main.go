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

// Package main is an HTTP service for rule-set storage and
// extraction.
//
// Rule sets live in a small database and are managed via
// /api/rulesets.  One-shot extraction goes through /api/extract, and
// /ws streams extractions over a WebSocket.
package main

import (
	"flag"
	"io/ioutil"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/net/netutil"
)

func init() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.LUTC)
}

func main() {

	var (
		httpPort  = flag.String("h", ":8080", "HTTP service port")
		dbFile    = flag.String("db", "vservice.db", "rule-set database filename")
		httpDir   = flag.String("d", "", "optional directory that the HTTP service will serve")
		rulesFile = flag.String("rules", "", "optional rules file loaded at startup")
		name      = flag.String("name", "default", "rule-set name for -rules")
		watch     = flag.Bool("watch", false, "reload -rules when the file changes")
		maxConns  = flag.Int("max-conns", 0, "limit on concurrent connections (0: no limit)")
		verbose   = flag.Bool("v", false, "verbose")
	)

	flag.Parse()

	store := NewRulesetStore(*dbFile)
	store.Debug = *verbose
	if err := store.Open(); err != nil {
		panic(err)
	}
	defer store.Close()

	s := NewService(store)
	s.Verbose = *verbose

	load := func() error {
		bs, err := ioutil.ReadFile(*rulesFile)
		if err != nil {
			return err
		}
		return s.SetRuleset(*name, string(bs))
	}

	if *rulesFile != "" {
		if err := load(); err != nil {
			panic(err)
		}
		log.Printf("loaded %s as ruleset '%s'", *rulesFile, *name)
	}

	if *watch {
		if *rulesFile == "" {
			panic("-watch requires -rules")
		}
		w, err := fsnotify.NewWatcher()
		if err != nil {
			panic(err)
		}
		defer w.Close()
		if err = w.Add(*rulesFile); err != nil {
			panic(err)
		}
		go func() {
			for {
				select {
				case ev, ok := <-w.Events:
					if !ok {
						return
					}
					if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
						continue
					}
					if err := load(); err != nil {
						log.Printf("reload of %s failed: %s", *rulesFile, err)
						continue
					}
					log.Printf("reloaded %s as ruleset '%s'", *rulesFile, *name)
				case err, ok := <-w.Errors:
					if !ok {
						return
					}
					log.Printf("watch error: %s", err)
				}
			}
		}()
	}

	mux := s.Mux()

	if *httpDir != "" {
		fs := http.FileServer(http.Dir(*httpDir))
		mux.Handle("/static/", http.StripPrefix("/static", fs))
	}

	ln, err := net.Listen("tcp", *httpPort)
	if err != nil {
		panic(err)
	}
	if 0 < *maxConns {
		ln = netutil.LimitListener(ln, *maxConns)
	}

	// No read/write timeouts here since /ws connections are
	// long-lived.
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	log.Printf("vservice listening on %s", *httpPort)
	if err := srv.Serve(ln); err != nil {
		log.Printf("Serve error %v", err)
	}
}
