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

package tools

import (
	"fmt"
	"html"
	"io"
	"strings"

	md "github.com/russross/blackfriday/v2"
)

// RenderRulesHTML renders rule-file source as HTML documentation.
//
// Comment lines starting with '##' are Markdown; their rendered text
// interleaves with the statements, which appear as code blocks.
// Ordinary '#' comments are dropped.
func RenderRulesHTML(src string, out io.Writer) error {
	f := func(format string, args ...interface{}) {
		fmt.Fprintf(out, format+"\n", args...)
	}

	var doc, code []string

	flushDoc := func() {
		if len(doc) == 0 {
			return
		}
		text := strings.Join(doc, "\n")
		f(`<div class="ruleDoc doc">%s</div>`, md.Run([]byte(text)))
		doc = nil
	}
	flushCode := func() {
		if len(code) == 0 {
			return
		}
		f(`<div class="rules code"><pre>%s</pre></div>`,
			html.EscapeString(strings.Join(code, "\n")))
		code = nil
	}

	for _, line := range strings.Split(src, "\n") {
		trimmed := strings.TrimLeft(line, " \t")
		switch {
		case strings.HasPrefix(trimmed, "##"):
			flushCode()
			doc = append(doc, strings.TrimPrefix(strings.TrimPrefix(trimmed, "##"), " "))
		case strings.HasPrefix(trimmed, "#"):
			// Ordinary comment.
		case trimmed == "":
			// A blank line ends a doc block but not a code
			// block, so indented continuations stay together.
			flushDoc()
		default:
			flushDoc()
			code = append(code, strings.TrimRight(line, " \t\r"))
		}
	}
	flushDoc()
	flushCode()

	return nil
}

// RenderRulePage wraps RenderRulesHTML in a complete HTML page.
func RenderRulePage(title, src string, out io.Writer, cssFiles []string) error {
	if cssFiles == nil {
		cssFiles = []string{"/static/rules.css"}
	}

	fmt.Fprintf(out, `<!DOCTYPE html>
<meta charset="utf-8">
<html>
  <head>
  <title>%s</title>
`, html.EscapeString(title))

	for _, cssFile := range cssFiles {
		fmt.Fprintf(out, "  <link href=\"%s\" rel=\"stylesheet\">\n", cssFile)
	}

	fmt.Fprintf(out, `  </head>
  <body>
    <h1>%s</h1>
`, html.EscapeString(title))

	if err := RenderRulesHTML(src, out); err != nil {
		return err
	}

	fmt.Fprintf(out, `  </body>
</html>
`)

	return nil
}
