package dispatch

import (
	"fmt"
	"math"

	log "gopkg.in/inconshreveable/log15.v2"

	"github.com/stskit/dispatch/timeutil"
)

// maxPropagationDepth bounds both the coupling-row convergence loop and
// the fixed-point re-sweep below: propagate_train and propagate_all both
// collapse to the same bounded full sweep here, so one shared constant
// covers both.
const maxPropagationDepth = 30

// TravelTimeEstimator supplies the running-time oracle used to fill in
// entry/exit rows that arrive without a planned time (planung.py's
// auswertung.fahrzeit_schaetzen). EstimateSeconds returns
// math.NaN() for a segment it has never observed; Observe feeds back a
// realized crossing so later estimates improve.
type TravelTimeEstimator interface {
	EstimateSeconds(trainName, fromTrack, toTrack string) float64
	Observe(trainName, fromTrack, toTrack string, durationSeconds float64)
}

// Engine is the delay-propagation core. It owns the train
// roster, the train-family graph G_T and the target graph G_R, and
// performs ingestion, correction assignment, propagation and manual
// overrides exactly as planung.Planung does in the original source.
type Engine struct {
	log         log.Logger
	trains      map[int]*Train
	trainGraph  *TrainGraph
	targetGraph *TargetGraph
	travelTime  TravelTimeEstimator

	// simClockMin is the monotonically rising simulator clock:
	// read by the EntryTime correction, written only by Ingest.
	simClockMin timeutil.Minutes
}

// NewEngine builds an empty engine. travelTime may be nil, in which case
// entry/exit time estimation is skipped.
func NewEngine(logger log.Logger, travelTime TravelTimeEstimator) *Engine {
	if logger == nil {
		logger = log.New()
	}
	return &Engine{
		log:         logger,
		trains:      make(map[int]*Train),
		trainGraph:  NewTrainGraph(),
		targetGraph: NewTargetGraph(),
		travelTime:  travelTime,
	}
}

// Train returns the known train for zid, if any.
func (e *Engine) Train(zid int) (*Train, bool) {
	t, ok := e.trains[zid]
	return t, ok
}

// Trains returns every train the engine currently knows about, including
// ones that have departed the system: trains are never removed once
// ingested.
func (e *Engine) Trains() map[int]*Train {
	return e.trains
}

func (e *Engine) rowByKey(key RowKey) (*TimetableRow, bool) {
	t, ok := e.trains[key.Zid]
	if !ok {
		return nil, false
	}
	r := t.RowBySeqNo(key.SeqNo)
	if r == nil || r.PlanTrack != key.PlanTrack {
		return nil, false
	}
	return r, true
}

// Ingest absorbs one simulator snapshot: updates known trains,
// hydrates newly-seen trains, retires trains that vanished, re-resolves
// peer links, estimates missing entry/exit times, and re-propagates.
// simClockMin is the host's reading of the simulator clock at snapshot
// time; it becomes the clock EntryTime corrections see until the next
// Ingest call.
func (e *Engine) Ingest(snapshot []SnapshotTrain, simClockMin timeutil.Minutes) error {
	e.simClockMin = simClockMin
	seen := make(map[int]bool, len(snapshot))
	for _, s := range snapshot {
		seen[s.Zid] = true
		if t, ok := e.trains[s.Zid]; ok {
			t.UpdateFromSnapshot(s)
			continue
		}
		t := NewTrainFromSnapshot(s)
		e.trains[s.Zid] = t
		e.trainGraph.AddTrain(s.Zid)
		for _, row := range t.Rows {
			e.targetGraph.AddRow(row.Key())
		}
		e.addSequenceEdges(t)
		e.DefineCorrections(t)
		e.log.Debug("ingested new train", "zid", t.Zid, "name", t.Name, "rows", len(t.Rows))
	}

	for zid, t := range e.trains {
		if seen[zid] || t.DepartedSystem {
			continue
		}
		t.MarkDeparted()
		for _, row := range t.Rows {
			e.targetGraph.RemoveRow(row.Key())
		}
		e.log.Info("train departed the system", "zid", zid, "name", t.Name)
	}

	e.resolvePeerLinks()
	e.estimateEntryExitTimes()
	return e.PropagateAll(simClockMin)
}

// addSequenceEdges wires a freshly-hydrated train's rows into G_R in
// itinerary order as Sequence edges.
func (e *Engine) addSequenceEdges(t *Train) {
	for i := 0; i+1 < len(t.Rows); i++ {
		if err := e.targetGraph.AddEdge(t.Rows[i].Key(), t.Rows[i+1].Key(), EdgeSequence); err != nil {
			e.log.Error("rejected sequence edge", "err", err)
		}
	}
}

// DefineCorrections assigns each row of t its default automatic correction
// (planung.py's zug_korrekturen_definieren/ziel_korrekturen_definieren).
// Peer-referencing rows (Replace/Couple/Split flags) are finished off by
// resolvePeerLinks once the peer train is known.
func (e *Engine) DefineCorrections(t *Train) {
	for _, row := range t.Rows {
		switch {
		case row.DirectionReversal, row.LocoMove:
			row.MinDwellMinutes = 2
		case row.LocoChange:
			row.MinDwellMinutes = 5
		}

		switch row.Kind() {
		case NodeEntry:
			row.AutoCorrection = &Correction{Kind: CorrEntryTime}
		case NodeExit, NodePass:
			row.AutoCorrection = &Correction{Kind: CorrPassThrough}
		default:
			row.AutoCorrection = &Correction{Kind: CorrScheduledDeparture}
		}
	}
	t.CorrectionsDefined = true
}

// resolvePeerLinks walks every row carrying a Replace/Couple/Split flag
// and, for every peer train already known, installs the paired
// corrections and graph edges on both sides (planung.py's
// _folgezuege_aufloesen). Safe to call repeatedly: already-wired rows are
// left untouched.
func (e *Engine) resolvePeerLinks() {
	for _, t := range e.trains {
		for _, row := range t.Rows {
			if row.ReplacementZid != nil {
				e.wirePeer(t, row, *row.ReplacementZid, TrainEdgeReplace, EdgeReplace, CorrReplacement, CorrAwaitArrival, 0)
			}
			if row.CouplingZid != nil {
				e.wirePeer(t, row, *row.CouplingZid, TrainEdgeCouple, EdgeCouple, CorrCoupling, CorrAwaitArrival, 0)
			}
			if row.SplitZid != nil {
				e.wirePeer(t, row, *row.SplitZid, TrainEdgeSplit, EdgeSplit, CorrSplit, CorrAwaitDeparture, 2)
			}
		}
	}
}

// wirePeer installs `fromKind` on row (pointing at the peer row) and
// `peerKind` on the peer row (pointing back at row), plus the matching
// edges in G_T and G_R. It is idempotent: a row whose AutoCorrection
// already carries fromKind is left alone.
func (e *Engine) wirePeer(t *Train, row *TimetableRow, peerZid int, trainEdge TrainEdgeKind, targetEdge TargetEdgeKind, fromKind, peerCorrKind CorrectionKind, peerExtraWait int) {
	if row.AutoCorrection != nil && row.AutoCorrection.Kind == fromKind {
		return
	}
	peer, ok := e.trains[peerZid]
	if !ok {
		return
	}
	peerRow := peer.RowByTrack(row.PlanTrack)
	if peerRow == nil && len(peer.Rows) > 0 {
		peerRow = peer.Rows[0]
	}
	if peerRow == nil {
		return
	}

	row.AutoCorrection = &Correction{Kind: fromKind, Peer: peerRow.Key()}
	peerRow.AutoCorrection = &Correction{Kind: peerCorrKind, Peer: row.Key(), ExtraWaitMin: peerExtraWait}

	if err := e.trainGraph.AddLink(t.Zid, peer.Zid, trainEdge); err != nil {
		e.log.Error("rejected train-graph link", "err", err)
	}
	if err := e.targetGraph.AddEdge(row.Key(), peerRow.Key(), targetEdge); err != nil {
		e.log.Error("rejected target-graph edge", "err", err)
	}
}

// estimateEntryExitTimes fills in a missing planned arrival for entry/exit
// rows, anchoring off the neighboring row's planned time and the oracle's
// estimated running time between them (planung.py's
// einfahrten_korrigieren). A NaN estimate (unseen segment) leaves the
// row's planned time absent, which applyCorrection already tolerates.
func (e *Engine) estimateEntryExitTimes() {
	if e.travelTime == nil {
		return
	}
	for _, t := range e.trains {
		for _, row := range t.Rows {
			if row.PlannedArrival.Ok {
				continue
			}
			var neighbor *TimetableRow
			if row.IsEntry && len(t.Rows) > 1 {
				neighbor = t.Rows[1]
			}
			if row.IsExit && len(t.Rows) > 1 {
				neighbor = t.Rows[len(t.Rows)-2]
			}
			if neighbor == nil || !neighbor.PlannedArrival.Ok {
				continue
			}
			from, to := row.PlanTrack, neighbor.PlanTrack
			if row.IsExit {
				from, to = neighbor.PlanTrack, row.PlanTrack
			}
			seconds := e.travelTime.EstimateSeconds(t.Name, from, to)
			if math.IsNaN(seconds) {
				continue
			}
			minutes := int(seconds / 60)
			if row.IsEntry {
				row.PlannedArrival = timeutil.SomeMinutes(neighbor.PlannedArrival.Value - minutes)
			} else {
				row.PlannedArrival = timeutil.SomeMinutes(neighbor.PlannedArrival.Value + minutes)
			}
			row.PlannedDeparture = row.PlannedArrival
		}
	}
}

// observeSegment feeds the realized crossing between row and its immediate
// itinerary predecessor back into the travel-time oracle, once both ends
// carry a realized timestamp, mirroring estimateEntryExitTimes's neighbor
// choice in reverse. Called from ApplyEvent as entry/exit rows resolve.
func (e *Engine) observeSegment(t *Train, row *TimetableRow, eventMinutes timeutil.Minutes) {
	if e.travelTime == nil {
		return
	}
	idx := -1
	for i, r := range t.Rows {
		if r == row {
			idx = i
			break
		}
	}
	if idx <= 0 {
		return
	}
	prev := t.Rows[idx-1]
	var from timeutil.Minutes
	switch {
	case row.IsExit && prev.DepartedAt.Ok:
		from = prev.DepartedAt.At
	case prev.IsEntry && prev.ArrivedAt.Ok:
		from = prev.ArrivedAt.At
	default:
		return
	}
	seconds := float64(eventMinutes.Value-from.Value) * 60
	e.travelTime.Observe(t.Name, prev.PlanTrack, row.PlanTrack, seconds)
}

// PropagateAll performs one topological-order sweep of G_R:
//  1. If not yet arrived, arrival_delay := max over predecessor
//     departure_delays, widened by the train's top-level delay for entry
//     rows, the train's current planned row, or rows with no predecessors.
//  2. If already arrived, the realized arrival_delay is left untouched.
//  3. If not yet departed, apply manual_correction if present, else
//     auto_correction, else PassThrough, to compute departure_delay.
//  4. The row's departure_delay becomes v_dep for its successors.
//
// Replacement/Coupling/Split corrections mutate peer trains' top-level
// delay or first-row arrival_delay as a side effect; the sweep
// is repeated to a fixed point (bounded by maxPropagationDepth) so those
// knock-on effects reach their own successors, mirroring the original's
// repeated full re-sweep on structural change without risking unbounded
// recursion.
func (e *Engine) PropagateAll(simClockMin timeutil.Minutes) error {
	order, err := e.targetGraph.TopologicalOrder()
	if err != nil {
		return err
	}
	for depth := 0; depth < maxPropagationDepth; depth++ {
		changed := false
		for _, key := range order {
			row, ok := e.rowByKey(key)
			if !ok {
				continue
			}
			t := e.trains[row.Zid]

			if !row.Arrived() {
				v := 0
				hasPred := false
				for _, pred := range e.targetGraph.Predecessors(key) {
					if predRow, ok := e.rowByKey(pred.Key); ok {
						if !hasPred || predRow.DepartureDelayMin > v {
							v = predRow.DepartureDelayMin
						}
						hasPred = true
					}
				}
				isCurrent := t != nil && t.CurrentRowIndex >= 0 && t.CurrentRowIndex < len(t.Rows) && t.Rows[t.CurrentRowIndex] == row
				if row.IsEntry || isCurrent || !hasPred {
					if t != nil && (!hasPred || t.DelayMin > v) {
						v = t.DelayMin
					}
				}
				newArr := v
				if newArr != row.ArrivalDelayMin {
					changed = true
				}
				row.ArrivalDelayMin = newArr
			}

			if !row.Departed() {
				corr := row.effectiveCorrection()
				dep := e.applyCorrection(row, corr, simClockMin)
				if dep != row.DepartureDelayMin {
					changed = true
				}
				row.DepartureDelayMin = dep
			}
		}
		if !changed {
			break
		}
	}
	return nil
}

// PropagateTrain recomputes delays for a single train. The original source
// (planung.py's zugverspaetung_korrigieren) simply delegates to the global
// sweep; this keeps that equivalence here rather than attempting a
// narrower dependency-only recomputation.
func (e *Engine) PropagateTrain(zid int) error {
	return e.PropagateAll(e.simClockMin)
}

// SetManualCorrection installs a dispatcher override on the row named by
// key and clears the manual correction on every strictly later row of the
// same train (planung.py's fdl_korrektur_setzen), then
// re-propagates. If corr names an origin row (its Peer field), an AwaitDep
// edge from that origin row to key is added to G_R, so the topological
// sweep orders the origin ahead of the awaiting row instead of relying on
// the bounded fixpoint re-sweep to eventually converge.
func (e *Engine) SetManualCorrection(key RowKey, corr Correction) error {
	t, ok := e.trains[key.Zid]
	if !ok {
		return fmt.Errorf("dispatch: unknown train %d", key.Zid)
	}
	row, ok := e.rowByKey(key)
	if !ok {
		return fmt.Errorf("dispatch: unknown row %s", key)
	}
	e.unwireManualAwaitDep(row)
	row.ManualCorrection = &corr
	e.wireManualAwaitDep(key, corr)
	for _, other := range t.Rows {
		if other.SeqNo > row.SeqNo {
			e.unwireManualAwaitDep(other)
			other.ManualCorrection = nil
		}
	}
	e.log.Info("manual correction set", "row", key, "correction", corr)
	return e.PropagateAll(e.simClockMin)
}

// ClearManualCorrection removes a dispatcher override from the row named
// by key, reverting it to its auto-correction, then re-propagates.
func (e *Engine) ClearManualCorrection(key RowKey) error {
	row, ok := e.rowByKey(key)
	if !ok {
		return fmt.Errorf("dispatch: unknown row %s", key)
	}
	e.unwireManualAwaitDep(row)
	row.ManualCorrection = nil
	e.log.Info("manual correction cleared", "row", key)
	return e.PropagateAll(e.simClockMin)
}

// wireManualAwaitDep adds the AwaitDep edge a manual correction's origin
// row demands (planung.py's fdl_korrektur_setzen wiring the awaited row
// into zielgraph): corr.Peer -> key. A zero Peer means the correction
// names no origin row, so nothing is added.
func (e *Engine) wireManualAwaitDep(key RowKey, corr Correction) {
	if corr.Peer.Zid == 0 {
		return
	}
	if err := e.targetGraph.AddEdge(corr.Peer, key, EdgeAwaitDep); err != nil {
		e.log.Error("rejected manual await-dep edge", "err", err)
	}
}

// unwireManualAwaitDep removes the AwaitDep edge installed for row's
// current manual correction, if any, before that correction is replaced
// or cleared.
func (e *Engine) unwireManualAwaitDep(row *TimetableRow) {
	if row.ManualCorrection == nil || row.ManualCorrection.Peer.Zid == 0 {
		return
	}
	e.targetGraph.RemoveEdge(row.ManualCorrection.Peer, row.Key())
}
