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

// Package sio couples rule extraction to streams: documents arrive
// over some transport, matches leave as records over the same or
// another transport.
package sio

import (
	"context"
	"encoding/json"

	"github.com/valetrules/valet/core"
	"github.com/valetrules/valet/tokens"
)

// Couplings provide channels for document input and record output.
//
// For example, an implementation could couple a runner to an MQTT
// broker, with documents arriving on one topic and match records
// published to another.
type Couplings interface {
	// Start initializes the Couplings.
	Start(context.Context) error

	// IO returns the document and record channels. The done channel
	// is closed when the input side is exhausted.
	IO(context.Context) (chan *Document, chan *Record, chan bool, error)

	// Stop shuts down the Couplings.
	Stop(context.Context) error
}

// A Document is one unit of input: a tokenized sequence plus an
// optional caller-assigned id that records echo back.
type Document struct {
	Id  string
	Seq *tokens.Sequence
}

// DecodeDocument unmarshals a JSON document. The payload is a token
// sequence in the wire format of the tokens package, optionally
// carrying an "id" property.
func DecodeDocument(bs []byte) (*Document, error) {
	seq, err := tokens.Decode(bs)
	if err != nil {
		return nil, err
	}
	var head struct {
		Id string `json:"id"`
	}
	json.Unmarshal(bs, &head)
	return &Document{Id: head.Id, Seq: seq}, nil
}

// TextDocument tokenizes raw text into a Document.
func TextDocument(id, text string) *Document {
	return &Document{Id: id, Seq: tokens.Tokenize(text)}
}

// A Record is one match reported for a document. For parse-expression
// matches Begin and End are the raw walk endpoints, so End < Begin
// when the walk ran right to left; Text always covers the full
// extent.
type Record struct {
	Doc     string              `json:"doc,omitempty"`
	Pattern string              `json:"pattern"`
	Begin   int                 `json:"begin"`
	End     int                 `json:"end"`
	Text    string              `json:"text"`
	Fields  map[string][]string `json:"fields,omitempty"`
}

// NewRecord flattens a match into a Record. Frame fields become lists
// of matching texts.
func NewRecord(doc, pattern string, m *core.Match) *Record {
	r := &Record{
		Doc:     doc,
		Pattern: pattern,
		Begin:   m.Begin,
		End:     m.End,
		Text:    m.MatchingText(),
	}
	if m.IsFrame() {
		r.Fields = map[string][]string{}
		for name, vs := range m.Fields {
			for _, v := range vs {
				r.Fields[name] = append(r.Fields[name], v.MatchingText())
			}
		}
	}
	return r
}
