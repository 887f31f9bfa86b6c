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

// Package noop provides a script engine that rejects every token.
// Deployments that must not run embedded code can register it under
// "js" so rule files with scripted tests still load and apply.
package noop

import "log"

// Engine answers false to every scripted test.
type Engine struct {
	// Silent suppresses the per-evaluation warning.
	Silent bool
}

// NewEngine makes a noop Engine.
func NewEngine() *Engine {
	return &Engine{}
}

func (e *Engine) EvalTokenTest(src, token string, index int, tags map[string]string) (bool, error) {
	if !e.Silent {
		log.Printf("warning: noop engine rejecting scripted test")
	}
	return false, nil
}
