// Copyright (C) 2008-2018 by Nicolas Piganeau and the TS2 TEAM
// (See AUTHORS file)
//
// This program is free software; you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; either version 2 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program; if not, write to the
// Free Software Foundation, Inc.,
// 59 Temple Place - Suite 330, Boston, MA  02111-1307, USA.

package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Request is a client-to-server websocket message: "do Action on Object,
// with these Params, and tag the reply with ID". The dispatcher
// override API rides this same envelope.
type Request struct {
	ID     string          `json:"id"`
	Object string          `json:"object"`
	Action string          `json:"action"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response is the server-to-client reply envelope.
type Response struct {
	ID    string          `json:"id"`
	OK    bool            `json:"ok"`
	Msg   string          `json:"msg,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func errUnknownObject(name string) error {
	return fmt.Errorf("unknown object %q", name)
}

// RawJSON lets a hubObject hand back already-marshaled JSON.
func RawJSON(b []byte) json.RawMessage { return json.RawMessage(b) }

// NewOkResponse builds a success reply carrying only a human-readable message.
func NewOkResponse(id, msg string) Response {
	return Response{ID: id, OK: true, Msg: msg}
}

// NewErrorResponse builds a failure reply from a Go error.
func NewErrorResponse(id string, err error) Response {
	return Response{ID: id, OK: false, Msg: err.Error()}
}

// NewResponse builds a success reply carrying a JSON payload.
func NewResponse(id string, data json.RawMessage) Response {
	return Response{ID: id, OK: true, Data: data}
}

// hubObject handles every Request whose Object field names it; registered
// into Hub.objects by registerHubObjects once the hub exists, the way the
// teacher's simulationObject/suggestionsObject register themselves.
type hubObject interface {
	dispatch(h *Hub, req Request, conn *connection)
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// connection wraps one websocket client: a read loop decoding Requests and
// a buffered push channel of outbound Responses/broadcasts.
type connection struct {
	ws       *websocket.Conn
	pushChan chan Response
	hub      *Hub
}

func (c *connection) readLoop() {
	defer func() {
		c.hub.unregister <- c
		c.ws.Close()
	}()
	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		var req Request
		if err := c.ws.ReadJSON(&req); err != nil {
			return
		}
		c.hub.requests <- hubRequest{req: req, conn: c}
	}
}

func (c *connection) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()
	for {
		select {
		case resp, ok := <-c.pushChan:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteJSON(resp); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// hubRequest pairs a decoded Request with the connection it arrived on,
// so readLoop can hand it to the hub's run loop instead of dispatching it
// on the connection's own goroutine.
type hubRequest struct {
	req  Request
	conn *connection
}

// Hub is the single goroutine that serializes every websocket connection's
// requests and every broadcast onto one select loop: this is what keeps
// the engine's single-threaded assumption true even though the process
// is concurrent.
type Hub struct {
	objects     map[string]hubObject
	connections map[*connection]bool
	register    chan *connection
	unregister  chan *connection
	broadcast   chan Response
	requests    chan hubRequest
}

// NewHub returns an empty, unstarted hub.
func NewHub() *Hub {
	return &Hub{
		objects:     make(map[string]hubObject),
		connections: make(map[*connection]bool),
		register:    make(chan *connection),
		unregister:  make(chan *connection),
		broadcast:   make(chan Response, 256),
		requests:    make(chan hubRequest, 256),
	}
}

// run is the hub's single serializing loop. hubUp is closed once the loop
// is ready to accept connections. Every object dispatch, and therefore
// every engine.Ingest/ApplyEvent/SetManualCorrection call a hubObject
// makes, runs here rather than on the originating connection's own
// goroutine, so two concurrent clients can never race on the engine.
func (h *Hub) run(hubUp chan bool) {
	close(hubUp)
	for {
		select {
		case c := <-h.register:
			h.connections[c] = true
		case c := <-h.unregister:
			if _, ok := h.connections[c]; ok {
				delete(h.connections, c)
				close(c.pushChan)
			}
		case resp := <-h.broadcast:
			for c := range h.connections {
				select {
				case c.pushChan <- resp:
				default:
					delete(h.connections, c)
					close(c.pushChan)
				}
			}
		case hr := <-h.requests:
			obj, ok := h.objects[hr.req.Object]
			if !ok {
				hr.conn.pushChan <- NewErrorResponse(hr.req.ID, errUnknownObject(hr.req.Object))
				continue
			}
			obj.dispatch(h, hr.req, hr.conn)
		}
	}
}

// Broadcast queues resp for delivery to every connected client.
func (h *Hub) Broadcast(resp Response) {
	h.broadcast <- resp
}

func serveWs(h *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
			return
		}
		c := &connection{ws: ws, pushChan: make(chan Response, 256), hub: h}
		h.register <- c
		go c.writeLoop()
		c.readLoop()
	}
}
