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

package sio

import (
	"context"
	"encoding/json"
	"os"
	"sync"
)

// RecordLog is a primitive facility to append match records as JSON
// lines to a file.
//
// Not glamorous or efficient.
type RecordLog struct {
	// Filename, if not empty, will be the file records are
	// appended to.
	Filename string

	f *os.File

	mu sync.Mutex

	WG sync.WaitGroup
}

// Open opens the log file for appending (if a Filename was given).
func (l *RecordLog) Open(ctx context.Context) error {
	if l.Filename == "" {
		return nil
	}
	f, err := os.OpenFile(l.Filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	l.f = f
	return nil
}

// Append writes one record as a JSON line.
func (l *RecordLog) Append(r *Record) error {
	if l.f == nil {
		return nil
	}
	js, err := json.Marshal(r)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err = l.f.Write(append(js, '\n')); err != nil {
		return err
	}
	return nil
}

// Close closes the log file.
func (l *RecordLog) Close(ctx context.Context) error {
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}
