package dispatch

import "github.com/stskit/dispatch/timeutil"

// PublishedRow is a read-only rendering of a TimetableRow for external
// consumers: the simulator-facing fields plus everything derived
// by propagation, including the correction's stable descriptor string
// (e.g. "Fix(3)", "Arrival(12-1000@A, 2)", "PassThrough").
type PublishedRow struct {
	Key RowKey

	PlanTrack   string
	ActualTrack string
	Kind        NodeKind

	PlannedArrival     timeutil.Minutes
	PlannedDeparture   timeutil.Minutes
	EstimatedArrival   timeutil.Minutes
	EstimatedDeparture timeutil.Minutes

	ArrivalDelayMin   int
	DepartureDelayMin int

	Arrived  bool
	Departed bool

	Correction string
	// Overridden is true when Correction comes from a dispatcher-installed
	// ManualCorrection rather than the row's automatic rule.
	Overridden bool
}

// PublishedTrain is a read-only rendering of a Train.
type PublishedTrain struct {
	Zid            int
	Name           string
	Origin         string
	Destination    string
	CurrentTrack   string
	PlanTrack      string
	Visible        bool
	AtPlatform     bool
	DepartedSystem bool
	DelayMin       int
	Family         []int
	Rows           []PublishedRow
}

// PublishRow renders one row.
func PublishRow(r *TimetableRow) PublishedRow {
	corr := r.effectiveCorrection()
	return PublishedRow{
		Key:                r.Key(),
		PlanTrack:          r.PlanTrack,
		ActualTrack:        r.ActualTrack,
		Kind:               r.Kind(),
		PlannedArrival:     r.PlannedArrival,
		PlannedDeparture:   r.PlannedDeparture,
		EstimatedArrival:   estimatedMinutes(r.PlannedArrival, r.ArrivalDelayMin),
		EstimatedDeparture: estimatedMinutes(r.PlannedDeparture, r.DepartureDelayMin),
		ArrivalDelayMin:    r.ArrivalDelayMin,
		DepartureDelayMin:  r.DepartureDelayMin,
		Arrived:            r.Arrived(),
		Departed:           r.Departed(),
		Correction:         corr.String(),
		Overridden:         r.ManualCorrection != nil,
	}
}

// PublishTrain renders a train, resolving its family via the engine's
// train graph.
func (e *Engine) PublishTrain(zid int) (PublishedTrain, bool) {
	t, ok := e.trains[zid]
	if !ok {
		return PublishedTrain{}, false
	}
	pt := PublishedTrain{
		Zid:            t.Zid,
		Name:           t.Name,
		Origin:         t.Origin,
		Destination:    t.Destination,
		CurrentTrack:   t.CurrentTrack,
		PlanTrack:      t.PlanTrack,
		Visible:        t.Visible,
		AtPlatform:     t.AtPlatform,
		DepartedSystem: t.DepartedSystem,
		DelayMin:       t.DelayMin,
	}
	for _, fam := range e.trainGraph.Families() {
		for _, z := range fam {
			if z == zid {
				pt.Family = fam
				break
			}
		}
	}
	pt.Rows = make([]PublishedRow, 0, len(t.Rows))
	for _, r := range t.Rows {
		pt.Rows = append(pt.Rows, PublishRow(r))
	}
	return pt, true
}

// PublishAll renders every known train, keyed by zid.
func (e *Engine) PublishAll() map[int]PublishedTrain {
	out := make(map[int]PublishedTrain, len(e.trains))
	for zid := range e.trains {
		pt, _ := e.PublishTrain(zid)
		out[zid] = pt
	}
	return out
}
