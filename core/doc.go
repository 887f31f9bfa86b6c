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

// Package core compiles and applies extraction rules.
//
// A rule file is a sequence of statements, and a statement's
// delimiter gives the rule its type: token tests (':') decide single
// tokens, phrases ('->') are regular expressions over token tests,
// lexicons ('L->') match phrase lists loaded from files, parse
// expressions ('^') walk dependency trees, coordinators ('~') combine
// the matches of other rules, and frames ('$') pull named fields out
// of an anchor match.  An import ('<-') mounts another rule file as a
// namespace.
//
// The primary type is Manager, and the primary method is Apply().  A
// Manager holds compiled rules by name.  Apply runs one rule over a
// tokenized document and returns Matches: extents in the token
// sequence, with submatches where the rule referenced other rules and
// fields where the rule was a frame.
//
// References are resolved lazily.  Naming a rule that was never
// defined is not an error until a match actually needs it, so rule
// files can load in any order.
//
// Token-test predicates can be backed by embedded scripts.  A Manager
// doesn't know any scripting language itself; register a ScriptEngine
// to teach it one.
package core
