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

// Package interpreters wires embedded-language engines to rule
// managers, so the core package itself does not depend on any
// particular runtime.
package interpreters

import (
	"github.com/valetrules/valet/core"
	"github.com/valetrules/valet/interpreters/goja"
	"github.com/valetrules/valet/interpreters/noop"
)

// Standard returns the stock engines, keyed by the language tag used
// in scripted token tests.
func Standard() map[string]core.ScriptEngine {
	return map[string]core.ScriptEngine{
		"js":   goja.NewEngine(),
		"noop": noop.NewEngine(),
	}
}

// Install registers the standard engines on a Manager.
func Install(m *core.Manager) {
	for lang, eng := range Standard() {
		m.RegisterScriptEngine(lang, eng)
	}
}
