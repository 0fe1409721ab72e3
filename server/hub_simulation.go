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

	"github.com/stskit/dispatch/dispatch"
	"github.com/stskit/dispatch/timeutil"
)

// engineObject exposes the dispatch engine's ingest/event/dump operations
// over the hub: "simulation" in the stskit original becomes
// "engine" here since there is no running simulation loop to start/pause,
// only a timetable snapshot to ingest and react to.
type engineObject struct{}

type ingestParams struct {
	SimClockMin int               `json:"simClockMin"`
	Trains      []dispatch.SnapshotTrain `json:"trains"`
}

// dispatch processes requests made on the engine object.
func (s *engineObject) dispatch(h *Hub, req Request, conn *connection) {
	ch := conn.pushChan
	logger.Debug("Request for engine received", "submodule", "hub", "object", req.Object, "action", req.Action)
	switch req.Action {
	case "ingest":
		var p ingestParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			ch <- NewErrorResponse(req.ID, fmt.Errorf("unparsable request: %s", err))
			return
		}
		if err := engine.Ingest(p.Trains, timeutil.SomeMinutes(p.SimClockMin)); err != nil {
			ch <- NewErrorResponse(req.ID, err)
			return
		}
		recordIngestAudit(p.SimClockMin, len(p.Trains))
		broadcastTrains()
		ch <- NewOkResponse(req.ID, "Snapshot ingested")
	case "event":
		var ev dispatch.Event
		if err := json.Unmarshal(req.Params, &ev); err != nil {
			ch <- NewErrorResponse(req.ID, fmt.Errorf("unparsable request: %s", err))
			return
		}
		if err := engine.ApplyEvent(ev); err != nil {
			ch <- NewErrorResponse(req.ID, err)
			return
		}
		recordEventAudit(ev)
		broadcastTrains()
		ch <- NewOkResponse(req.ID, "Event applied")
	case "dump":
		data, err := json.Marshal(engine.PublishAll())
		if err != nil {
			ch <- NewErrorResponse(req.ID, fmt.Errorf("internal error: %s", err))
			return
		}
		ch <- NewResponse(req.ID, data)
	default:
		ch <- NewErrorResponse(req.ID, fmt.Errorf("unknown action %s/%s", req.Object, req.Action))
		logger.Debug("Request for unknown action received", "submodule", "hub", "object", req.Object, "action", req.Action)
	}
}

// broadcastTrains pushes the current published state to every connected
// client after an ingest or event changes it.
func broadcastTrains() {
	data, err := json.Marshal(engine.PublishAll())
	if err != nil {
		logger.Error("failed to marshal trains for broadcast", "error", err)
		return
	}
	hub.Broadcast(NewResponse("", RawJSON(data)))
}

var _ hubObject = new(engineObject)
