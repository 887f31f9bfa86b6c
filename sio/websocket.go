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
	"log"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketCouplings couples a Runner to a WebSocket endpoint.  Each
// in-bound message is one document; each match record goes back out
// as one JSON message.
type WebSocketCouplings struct {
	// URL is the endpoint to dial ("ws://localhost:8080/ws").
	URL string `json:"url" yaml:"url"`

	// WriteTimeout bounds a single record write.
	WriteTimeout time.Duration `json:"writeTimeout,omitempty" yaml:"writetimeout"`

	Conn *websocket.Conn `json:"-" yaml:"-"`

	in   chan *Document
	out  chan *Record
	done chan bool
}

// NewWebSocketCouplings makes an undialed WebSocketCouplings.
func NewWebSocketCouplings(url string) *WebSocketCouplings {
	return &WebSocketCouplings{
		URL:          url,
		WriteTimeout: 10 * time.Second,
		in:           make(chan *Document),
		out:          make(chan *Record),
		done:         make(chan bool),
	}
}

// Start dials the endpoint.
func (c *WebSocketCouplings) Start(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.URL, nil)
	if err != nil {
		return err
	}
	c.Conn = conn
	return nil
}

// IO starts the read and write loops and returns the coupling's
// channels.
func (c *WebSocketCouplings) IO(ctx context.Context) (chan *Document, chan *Record, chan bool, error) {
	go func() {
		for {
			_, bs, err := c.Conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Printf("websocket read error %s", err)
				}
				close(c.done)
				return
			}
			doc, err := DecodeDocument(bs)
			if err != nil {
				log.Printf("bad input: %s", err)
				continue
			}
			select {
			case <-ctx.Done():
				return
			case c.in <- doc:
			}
		}
	}()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case r := <-c.out:
				if r == nil {
					return
				}
				if c.WriteTimeout != 0 {
					c.Conn.SetWriteDeadline(time.Now().Add(c.WriteTimeout))
				}
				if err := c.Conn.WriteJSON(r); err != nil {
					log.Printf("websocket write error %s", err)
					return
				}
			}
		}
	}()

	return c.in, c.out, c.done, nil
}

// Stop sends a close message and closes the connection.
func (c *WebSocketCouplings) Stop(ctx context.Context) error {
	if c.Conn == nil {
		return nil
	}
	deadline := time.Now().Add(time.Second)
	c.Conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return c.Conn.Close()
}
