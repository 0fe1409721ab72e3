// Copyright (C) 2008-2019 by Nicolas Piganeau and the TS2 TEAM
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

	"github.com/google/uuid"

	"github.com/stskit/dispatch/dispatch"
)

// overridesObject exposes manual-correction overrides over the hub:
// "suggestions" in the stskit original becomes "overrides" here, since
// there is no route/signal suggestion engine to accept or reject here,
// only direct corrections a dispatcher sets on a row.
type overridesObject struct{}

type setOverrideParams struct {
	Row          dispatch.RowKey        `json:"row"`
	Kind         dispatch.CorrectionKind `json:"kind"`
	DelayMin     int                     `json:"delayMin"`
	Peer         dispatch.RowKey         `json:"peer"`
	ExtraWaitMin int                     `json:"extraWaitMin"`
}

type clearOverrideParams struct {
	Row dispatch.RowKey `json:"row"`
}

// dispatch processes requests on the overrides object.
func (s *overridesObject) dispatch(h *Hub, req Request, conn *connection) {
	ch := conn.pushChan
	switch req.Action {
	case "set":
		var p setOverrideParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			ch <- NewErrorResponse(req.ID, fmt.Errorf("unparsable request: %s (%s)", err, req.Params))
			return
		}
		corr := dispatch.Correction{
			Kind:         p.Kind,
			DelayMin:     p.DelayMin,
			Peer:         p.Peer,
			ExtraWaitMin: p.ExtraWaitMin,
		}
		if err := engine.SetManualCorrection(p.Row, corr); err != nil {
			ch <- NewErrorResponse(req.ID, err)
			return
		}
		correlationID := uuid.New().String()
		recordOverrideAudit(correlationID, p.Row, corr)
		broadcastTrains()
		ch <- NewOkResponse(req.ID, fmt.Sprintf("Override applied (%s)", correlationID))
	case "clear":
		var p clearOverrideParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			ch <- NewErrorResponse(req.ID, fmt.Errorf("unparsable request: %s (%s)", err, req.Params))
			return
		}
		if err := engine.ClearManualCorrection(p.Row); err != nil {
			ch <- NewErrorResponse(req.ID, err)
			return
		}
		broadcastTrains()
		ch <- NewOkResponse(req.ID, "Override cleared")
	default:
		ch <- NewErrorResponse(req.ID, fmt.Errorf("unknown action %s/%s", req.Object, req.Action))
		logger.Debug("Request for unknown action received", "submodule", "hub", "object", req.Object, "action", req.Action)
	}
}

var _ hubObject = new(overridesObject)

// registerHubObjects wires every hubObject into h. Called once from Run,
// right after NewHub and before the hub's loop starts.
func registerHubObjects(h *Hub) {
	h.objects["engine"] = new(engineObject)
	h.objects["overrides"] = new(overridesObject)
}
