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

// Package goja evaluates scripted token tests with Goja, a Go
// implementation of ECMAScript 5.1+.
//
// See https://github.com/dop251/goja.
package goja

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
)

var (
	// InterruptedMessage is the string value of Interrupted.
	InterruptedMessage = "RuntimeError: timeout"

	// Interrupted is returned when a script runs past the engine's
	// timeout.
	Interrupted = errors.New(InterruptedMessage)
)

// An Engine compiles and runs the expression bodies of scripted token
// tests. The expression sees three globals per evaluation:
//
//	token: the token string under test
//	index: the token's position, or -1 when unknown
//	tags:  annotation-layer values for the token, keyed by layer
//
// The expression's value is converted to a boolean the ECMAScript
// way. Compiled programs are cached per source text, so an Engine is
// meant to be shared; evaluation itself is serialized per Engine
// because a Goja runtime is not safe for concurrent use.
type Engine struct {
	// Timeout bounds a single evaluation. Zero means DefaultTimeout.
	Timeout time.Duration

	mu       sync.Mutex
	runtime  *goja.Runtime
	programs map[string]*goja.Program
}

// DefaultTimeout bounds script evaluation when Engine.Timeout is zero.
var DefaultTimeout = 100 * time.Millisecond

// NewEngine makes an Engine with an empty program cache.
func NewEngine() *Engine {
	return &Engine{programs: map[string]*goja.Program{}}
}

func wrapSrc(src string) string {
	return fmt.Sprintf("(function() {\nreturn (%s);\n}());\n", src)
}

func (e *Engine) compiled(src string) (*goja.Program, error) {
	if p, have := e.programs[src]; have {
		return p, nil
	}
	p, err := goja.Compile("", wrapSrc(src), true)
	if err != nil {
		return nil, errors.New(err.Error() + ": " + strings.TrimSpace(src))
	}
	e.programs[src] = p
	return p, nil
}

// EvalTokenTest runs the expression against one token.
func (e *Engine) EvalTokenTest(src, token string, index int, tags map[string]string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.compiled(src)
	if err != nil {
		return false, err
	}
	if e.runtime == nil {
		e.runtime = goja.New()
	}
	o := e.runtime

	o.Set("token", token)
	o.Set("index", index)
	if tags == nil {
		tags = map[string]string{}
	}
	o.Set("tags", tags)

	timeout := e.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	timer := time.AfterFunc(timeout, func() {
		o.Interrupt(InterruptedMessage)
	})
	v, err := o.RunProgram(p)
	if !timer.Stop() {
		// The interrupt fired; the runtime is poisoned until cleared.
		o.ClearInterrupt()
	}

	if err != nil {
		if _, is := err.(*goja.InterruptedError); is {
			return false, Interrupted
		}
		return false, err
	}
	return v.ToBoolean(), nil
}
