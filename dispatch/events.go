package dispatch

import (
	"fmt"

	"github.com/stskit/dispatch/timeutil"
)

// ApplyEvent folds one realized simulator event into the row it names
// (planung.py's ereignis_uebernehmen), then re-propagates using
// the clock recorded by the last Ingest call. Events older than the
// train's current position are discarded rather than erroring, matching
// the original's tolerance of repeated or out-of-order event delivery.
func (e *Engine) ApplyEvent(ev Event) error {
	t, ok := e.trains[ev.Zid]
	if !ok {
		return fmt.Errorf("dispatch: unknown train %d", ev.Zid)
	}
	row := t.RowByTrack(ev.Plangleis)
	if row == nil {
		return fmt.Errorf("dispatch: train %d has no row at %q", ev.Zid, ev.Plangleis)
	}
	if e.isStale(t, row) {
		e.log.Debug("stale event discarded", "zid", ev.Zid, "plangleis", ev.Plangleis, "art", ev.Art)
		return nil
	}
	eventMinutes := timeutil.TimeToMinutes(ev.Zeit)

	switch ev.Art {
	case EventEntry:
		dep := 0
		if row.PlannedDeparture.Ok {
			dep = eventMinutes.Value - row.PlannedDeparture.Value
		}
		row.DepartureDelayMin = dep
		row.ArrivedAt = at(eventMinutes)
		row.DepartedAt = at(eventMinutes)
		t.Visible = true

	case EventExit:
		e.observeSegment(t, row, eventMinutes)
		row.ArrivalDelayMin = ev.Verspaetung
		row.DepartureDelayMin = ev.Verspaetung
		row.ArrivedAt = at(eventMinutes)
		row.DepartedAt = at(eventMinutes)
		t.MarkDeparted()
		for _, r := range t.Rows {
			e.targetGraph.RemoveRow(r.Key())
		}

	case EventArrival:
		arr := 0
		if row.PlannedArrival.Ok {
			arr = eventMinutes.Value - row.PlannedArrival.Value
		}
		e.forwardFillSkipped(t, row, eventMinutes, arr)
		e.observeSegment(t, row, eventMinutes)
		row.ArrivalDelayMin = arr
		row.ArrivedAt = at(eventMinutes)
		if row.IsPassThrough() {
			row.DepartureDelayMin = arr
			row.DepartedAt = at(eventMinutes)
		}
		t.AtPlatform = ev.Amgleis

	case EventDeparture:
		if ev.Amgleis && ev.Verspaetung > 0 {
			row.AutoCorrection = &Correction{Kind: CorrSignalHold, DelayMin: ev.Verspaetung}
		} else {
			row.DepartureDelayMin = ev.Verspaetung
			row.DepartedAt = at(eventMinutes)
		}
		t.AtPlatform = ev.Amgleis

	case EventRedSignal, EventGreenSignal:
		t.DelayMin = ev.Verspaetung
		if next := nextRow(t, row); next != nil {
			next.ArrivalDelayMin = ev.Verspaetung
		}

	default:
		return fmt.Errorf("dispatch: unknown event kind %q", ev.Art)
	}

	return e.PropagateAll(e.simClockMin)
}

// isStale reports whether row lies strictly before the train's current
// position: such events are discarded rather than applied.
func (e *Engine) isStale(t *Train, row *TimetableRow) bool {
	if t.CurrentRowIndex < 0 || t.CurrentRowIndex >= len(t.Rows) {
		return false
	}
	return row.SeqNo < t.Rows[t.CurrentRowIndex].SeqNo
}

// nextRow returns the row immediately following row in itinerary order.
func nextRow(t *Train, row *TimetableRow) *TimetableRow {
	for i, r := range t.Rows {
		if r == row {
			if i+1 < len(t.Rows) {
				return t.Rows[i+1]
			}
			return nil
		}
	}
	return nil
}

// forwardFillSkipped backfills any earlier, not-yet-realized row of t with
// the arriving row's timestamp and delay, for rows the simulator evidently
// passed through without a separate event. Entry rows are left alone;
// they are filled by their own einfahrt event.
func (e *Engine) forwardFillSkipped(t *Train, upto *TimetableRow, minutes timeutil.Minutes, delay int) {
	for _, r := range t.Rows {
		if r.SeqNo >= upto.SeqNo {
			break
		}
		if r.IsEntry {
			continue
		}
		if !r.Arrived() {
			r.ArrivedAt = at(minutes)
			r.ArrivalDelayMin = delay
		}
		if !r.Departed() {
			r.DepartedAt = at(minutes)
			r.DepartureDelayMin = delay
		}
	}
}
