/*
Copyright © 2019 the gridcollect authors.
This file is part of gridcollect.

gridcollect is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

gridcollect is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with gridcollect.  If not, see <http://www.gnu.org/licenses/>.
*/

package transport

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// WebSocketReceiver is an http.Handler that accepts websocket connections
// from workers. Every text or binary frame is one JSON message. Any number
// of workers may be connected at once.
type WebSocketReceiver struct {
	queue
	upgrader websocket.Upgrader

	Log logrus.FieldLogger
}

// NewWebSocketReceiver returns a receiver whose Receive method gives up
// after timeout. A timeout of zero waits indefinitely.
func NewWebSocketReceiver(timeout time.Duration) *WebSocketReceiver {
	return &WebSocketReceiver{
		queue: newQueue(timeout),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		Log: logrus.StandardLogger(),
	}
}

// ServeHTTP upgrades the connection and queues the messages read from it
// until the peer goes away or the receiver is closed.
func (ws *WebSocketReceiver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := ws.Log.WithField("addr", r.RemoteAddr)
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()
	log.Info("worker connected")
	for {
		_, p, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Warn("worker connection lost")
			} else {
				log.Info("worker disconnected")
			}
			return
		}
		m, err := Decode(p)
		if !ws.put(r.Context(), delivery{m: m, err: err}) {
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "collector closed"),
				time.Now().Add(time.Second))
			return
		}
	}
}
