package dispatch

import (
	"strings"

	"github.com/stskit/dispatch/timeutil"
)

// RowTime is either "not yet" (Ok false) or a minute-of-day timestamp.
// Rows closed without an event of their own carry a stand-in: minute 0
// for rows closed at first sighting or when the train leaves, and the
// arrival event's time for rows forward-filled by a later arrival.
type RowTime struct {
	At timeutil.Minutes
	Ok bool
}

func at(m timeutil.Minutes) RowTime { return RowTime{At: m, Ok: true} }

// TimetableRow is one stop of one train's itinerary.
type TimetableRow struct {
	Zid       int
	SeqNo     int
	PlanTrack string

	ActualTrack string

	PlannedArrival   timeutil.Minutes
	PlannedDeparture timeutil.Minutes

	IsEntry bool
	IsExit  bool

	Flags string
	flagSet

	MinDwellMinutes int

	AutoCorrection   *Correction
	ManualCorrection *Correction

	ArrivalDelayMin   int
	DepartureDelayMin int

	ArrivedAt  RowTime
	DepartedAt RowTime

	// ActualDepartureTime is written by the Replacement correction.
	ActualDepartureTime timeutil.Minutes

	train *Train
}

// Key returns the row's primary key.
func (r *TimetableRow) Key() RowKey {
	return RowKey{Zid: r.Zid, SeqNo: r.SeqNo, PlanTrack: r.PlanTrack}
}

// Arrived reports whether the row has a realized arrival.
func (r *TimetableRow) Arrived() bool { return r.ArrivedAt.Ok }

// Departed reports whether the row has a realized departure.
func (r *TimetableRow) Departed() bool { return r.DepartedAt.Ok }

// IsPassThrough reports whether the row is a "through" stop with no
// planned dwell (the row's flags mark it, or no planned departure exists
// distinct from the arrival).
func (r *TimetableRow) IsPassThrough() bool {
	if r.PassThrough {
		return true
	}
	return !r.IsEntry && !r.IsExit && r.PlannedArrival.Ok && r.PlannedDeparture.Ok &&
		r.PlannedArrival.Value == r.PlannedDeparture.Value
}

// IsOperational reports whether the row is a dispatcher-inserted
// operational stop: seq_no not a multiple of 1000.
func (r *TimetableRow) IsOperational() bool {
	return !r.IsEntry && !r.IsExit && r.SeqNo%1000 != 0
}

// Kind derives the node kind for the target graph.
func (r *TimetableRow) Kind() NodeKind {
	switch {
	case r.IsEntry:
		return NodeEntry
	case r.IsExit:
		return NodeExit
	case r.IsOperational():
		return NodeOperational
	case r.IsPassThrough():
		return NodePass
	default:
		return NodeHold
	}
}

// effectiveCorrection returns the manual correction if present, else the
// auto correction, else PassThrough.
func (r *TimetableRow) effectiveCorrection() Correction {
	if r.ManualCorrection != nil {
		return *r.ManualCorrection
	}
	if r.AutoCorrection != nil {
		return *r.AutoCorrection
	}
	return Correction{Kind: CorrPassThrough}
}

// Train is one simulator train and its frozen itinerary.
type Train struct {
	Zid            int
	Name           string
	Origin         string
	Destination    string
	DispatcherText string
	CurrentTrack   string
	PlanTrack      string
	Visible        bool
	AtPlatform     bool
	DelayMin       int
	DepartedSystem bool

	Rows []*TimetableRow

	// CurrentRowIndex mirrors ziel_index in the original source: the
	// itinerary index of the row matching the snapshot's plan track, or -1
	// when an update matches no row. A train first seen invisible starts
	// at 0; MarkDeparted leaves the index as it was.
	CurrentRowIndex int

	CorrectionsDefined bool
}

// RowByTrack returns the row whose plan track matches, if any.
func (t *Train) RowByTrack(planTrack string) *TimetableRow {
	for _, r := range t.Rows {
		if r.PlanTrack == planTrack {
			return r
		}
	}
	return nil
}

// RowBySeqNo returns the row with the given stable ordering key.
func (t *Train) RowBySeqNo(seqNo int) *TimetableRow {
	for _, r := range t.Rows {
		if r.SeqNo == seqNo {
			return r
		}
	}
	return nil
}

// stripGleisPrefix removes the "Gleis " prefix the simulator uses to mark
// an internal track, and reports whether the prefix was present (spec
// §4.2).
func stripGleisPrefix(s string) (stripped string, wasInternal bool) {
	if strings.HasPrefix(s, "Gleis ") {
		return strings.TrimPrefix(s, "Gleis "), true
	}
	return s, false
}

// NewTrainFromSnapshot hydrates a Train from its first sighting in a
// simulator snapshot. The itinerary is frozen after this call;
// only UpdateFromSnapshot may touch it again.
func NewTrainFromSnapshot(s SnapshotTrain) *Train {
	t := &Train{Zid: s.Zid, Name: s.Name}

	origin, originInternal := stripGleisPrefix(s.Von)
	dest, destInternal := stripGleisPrefix(s.Nach)
	t.Origin = origin
	t.Destination = dest

	var rows []*TimetableRow

	if !originInternal && origin != "" {
		entry := &TimetableRow{Zid: s.Zid, PlanTrack: origin, ActualTrack: origin, IsEntry: true}
		if len(s.Fahrplan) > 0 {
			entry.PlannedArrival = wireTimeToMinutes(s.Fahrplan[0].An)
			entry.PlannedDeparture = entry.PlannedArrival
		}
		rows = append(rows, entry)
	}

	for _, zeile := range s.Fahrplan {
		r := &TimetableRow{
			Zid:              s.Zid,
			PlanTrack:        zeile.Plan,
			ActualTrack:      zeile.Gleis,
			PlannedArrival:   wireTimeToMinutes(zeile.An),
			PlannedDeparture: wireTimeToMinutes(zeile.Ab),
			Flags:            zeile.Flags,
			flagSet:          parseFlags(zeile.Flags),
		}
		rows = append(rows, r)
	}

	if !destInternal && dest != "" {
		exit := &TimetableRow{Zid: s.Zid, PlanTrack: dest, ActualTrack: dest, IsExit: true}
		if n := len(s.Fahrplan); n > 0 {
			exit.PlannedDeparture = wireTimeToMinutes(s.Fahrplan[n-1].Ab)
			exit.PlannedArrival = exit.PlannedDeparture
		}
		rows = append(rows, exit)
	}

	for i, r := range rows {
		r.SeqNo = i * 1000
		r.train = t
	}
	t.Rows = rows

	// Startaufstellung: train already visible and moving when first seen.
	if s.Sichtbar {
		idx := -1
		for i, r := range rows {
			if r.PlanTrack == s.Plangleis {
				idx = i
				break
			}
		}
		if idx < 0 {
			idx = len(rows) - 1
		}
		for _, r := range rows[:idx] {
			r.ArrivedAt = at(timeutil.SomeMinutes(0))
			r.DepartedAt = at(timeutil.SomeMinutes(0))
			r.ArrivalDelayMin = s.Verspaetung
			r.DepartureDelayMin = s.Verspaetung
		}
		if s.Amgleis && idx >= 0 && idx < len(rows) {
			rows[idx].ArrivedAt = at(timeutil.SomeMinutes(0))
			rows[idx].ArrivalDelayMin = s.Verspaetung
		}
		t.CurrentRowIndex = idx
	} else {
		t.CurrentRowIndex = 0
	}

	t.applyVolatile(s)
	return t
}

func wireTimeToMinutes(w *WireTime) timeutil.Minutes {
	if w == nil {
		return timeutil.NoMinutes()
	}
	return timeutil.TimeToMinutes(w.Time)
}

// UpdateFromSnapshot mutates only the volatile fields of an already-known
// train: current/planned track, at-platform, visible,
// top-level delay, dispatcher text, and per-row actual track.
func (t *Train) UpdateFromSnapshot(s SnapshotTrain) {
	t.applyVolatile(s)

	for _, zeile := range s.Fahrplan {
		if r := t.RowByTrack(zeile.Plan); r != nil {
			r.ActualTrack = zeile.Gleis
		}
	}

	idx := -1
	for i, r := range t.Rows {
		if r.PlanTrack == s.Plangleis {
			idx = i
			break
		}
	}
	t.CurrentRowIndex = idx
}

func (t *Train) applyVolatile(s SnapshotTrain) {
	if s.Gleis != "" {
		t.CurrentTrack = s.Gleis
		t.PlanTrack = s.Plangleis
	} else {
		t.CurrentTrack = t.Destination
		t.PlanTrack = t.Destination
	}
	t.DelayMin = s.Verspaetung
	t.AtPlatform = s.Amgleis
	t.Visible = s.Sichtbar
	t.DispatcherText = s.Hinweistext
}

// MarkDeparted handles a train that disappeared from a later snapshot.
func (t *Train) MarkDeparted() {
	t.DepartedSystem = true
	t.Visible = false
	t.AtPlatform = false
	t.CurrentTrack = ""
	t.PlanTrack = ""
	for _, r := range t.Rows {
		if !r.Departed() {
			r.DepartedAt = at(timeutil.SomeMinutes(0))
		}
		if !r.Arrived() {
			r.ArrivedAt = at(timeutil.SomeMinutes(0))
		}
	}
}
