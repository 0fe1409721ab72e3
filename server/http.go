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
	"fmt"
	"net/http"
	"os"
	"time"

	log "gopkg.in/inconshreveable/log15.v2"

	"github.com/stskit/dispatch/dispatch"
	"github.com/stskit/dispatch/gtfsrt"
)

const (
	DefaultAddr       string = "0.0.0.0"
	DefaultPort       string = "22222"
	MaxHubStartupTime        = 3 * time.Second
)

var (
	engine    *dispatch.Engine
	hub       *Hub
	publisher *gtfsrt.Publisher
	logger    log.Logger
)

// InitializeLogger creates the logger for the server module.
func InitializeLogger(parentLogger log.Logger) {
	logger = parentLogger.New("module", "server")
}

// Run starts the websocket hub and HTTP/REST API for the given engine, on
// the given address and port. pub may be nil if GTFS-Realtime publishing is
// disabled.
func Run(e *dispatch.Engine, pub *gtfsrt.Publisher, addr, port string) {
	logger.Info("Starting server")
	engine = e
	publisher = pub
	hub = NewHub()
	registerHubObjects(hub)
	startMetricsTicker()
	hubUp := make(chan bool)
	timer := time.After(MaxHubStartupTime)
	go hub.run(hubUp)
	select {
	case <-hubUp:
		HttpdStart(addr, port)
		os.Exit(1)
	case <-timer:
		log.Crit("Hub did not start")
		os.Exit(1)
	}
}

// HttpdStart starts the server which serves on the following routes:
//
//	/ws   - WebSocket endpoint for live dispatcher clients.
//	/api/ - REST API for polling clients and the GTFS-Realtime feed.
func HttpdStart(addr, port string) {
	http.HandleFunc("/ws", serveWs(hub))
	installHTTPAPI()

	serverAddress := fmt.Sprintf("%s:%s", addr, port)
	logger.Info("Starting HTTP", "submodule", "http", "address", serverAddress)
	err := http.ListenAndServe(serverAddress, nil)
	logger.Crit("HTTP crashed", "submodule", "http", "error", err)
}
