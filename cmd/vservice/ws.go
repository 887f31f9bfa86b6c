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
	"encoding/json"
	"log"
	"net/http"

	"github.com/valetrules/valet/sio"

	"github.com/gorilla/websocket"
)

// WebSockets adds a streaming extraction endpoint.
//
// A client sends ExtractRequests and receives one ExtractResponse per
// request, in order.  An extraction error is reported in the response
// rather than closing the connection.
func (s *Service) WebSockets(mux *http.ServeMux) {

	var upgrader = websocket.Upgrader{} // use default options

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error", err)
			return
		}
		defer c.Close()

		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.logf("ws read error: %s", err)
				}
				break
			}

			var (
				req  ExtractRequest
				resp ExtractResponse
			)
			if err = json.Unmarshal(message, &req); err != nil {
				resp.Error = err.Error()
			} else if resp.Records, err = s.Extract(&req); err != nil {
				resp.Error = err.Error()
			}
			if resp.Records == nil {
				resp.Records = []*sio.Record{}
			}

			if err = c.WriteJSON(&resp); err != nil {
				log.Println("ws write error:", err)
				break
			}
		}
	})
}
