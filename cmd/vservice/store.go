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
	"errors"
	"fmt"
	"log"
	"time"

	bolt "go.etcd.io/bbolt"
)

var rulesetsBucket = []byte("rulesets")

// NotFound reports a request for a rule set the store doesn't have.
var NotFound = errors.New("not found")

// RulesetStore is a type of persistence for rule-set sources.
type RulesetStore struct {
	Debug    bool
	filename string
	db       *bolt.DB
}

// NewRulesetStore makes a store backed by the given filename.
func NewRulesetStore(filename string) *RulesetStore {
	return &RulesetStore{
		filename: filename,
	}
}

// Open opens the database and ensures the rule-set bucket exists.
func (s *RulesetStore) Open() error {
	opts := &bolt.Options{
		Timeout: time.Second,
	}

	db, err := bolt.Open(s.filename, 0644, opts)
	if err != nil {
		return err
	}
	s.db = db

	return s.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(rulesetsBucket)
		return err
	})
}

// Close closes the database.
func (s *RulesetStore) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

func (s *RulesetStore) logf(format string, args ...interface{}) {
	if s.Debug {
		log.Printf("RulesetStore."+format, args...)
	}
}

// Put writes a rule-set source under the given name.
func (s *RulesetStore) Put(name, src string) error {
	s.logf("Put %s (%d bytes)", name, len(src))
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(rulesetsBucket).Put([]byte(name), []byte(src))
	})
}

// Get returns the stored source for the given name.
func (s *RulesetStore) Get(name string) (string, error) {
	s.logf("Get %s", name)
	var src string
	err := s.db.View(func(tx *bolt.Tx) error {
		bs := tx.Bucket(rulesetsBucket).Get([]byte(name))
		if bs == nil {
			return fmt.Errorf("ruleset '%s': %w", name, NotFound)
		}
		src = string(bs)
		return nil
	})
	return src, err
}

// Rem removes a rule set.
func (s *RulesetStore) Rem(name string) error {
	s.logf("Rem %s", name)
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(rulesetsBucket)
		if b.Get([]byte(name)) == nil {
			return fmt.Errorf("ruleset '%s': %w", name, NotFound)
		}
		return b.Delete([]byte(name))
	})
}

// List returns the names of the stored rule sets.
func (s *RulesetStore) List() ([]string, error) {
	names := make([]string, 0, 32)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(rulesetsBucket).Cursor()
		for name, _ := c.First(); name != nil; name, _ = c.Next() {
			names = append(names, string(name))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logf("List found %d rulesets", len(names))
	return names, nil
}
