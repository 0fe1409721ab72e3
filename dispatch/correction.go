package dispatch

import (
	"fmt"

	"github.com/stskit/dispatch/timeutil"
)

// CorrectionKind tags a Correction's variant. Go has no sum types, so the
// VerspaetungsKorrektur subclass hierarchy in the stskit original becomes a
// single struct dispatched on this tag.
type CorrectionKind int

const (
	CorrPassThrough CorrectionKind = iota
	CorrFixedDelay
	CorrSignalHold
	CorrEntryTime
	CorrScheduledDeparture
	CorrAwaitArrival
	CorrAwaitDeparture
	CorrReplacement
	CorrCoupling
	CorrSplit
)

// Correction carries the tag plus whichever payload fields the variant
// needs. Unused fields are left zero for a given Kind.
type Correction struct {
	Kind CorrectionKind

	// FixedDelay, SignalHold: the delay in minutes to impose directly.
	DelayMin int

	// AwaitArrival, AwaitDeparture, Replacement, Coupling, Split: the peer
	// row this correction reads state from.
	Peer RowKey

	// AwaitArrival, AwaitDeparture: extra wait on top of the peer's own
	// delay, in minutes.
	ExtraWaitMin int
}

func (c Correction) String() string {
	switch c.Kind {
	case CorrPassThrough:
		return "PassThrough"
	case CorrFixedDelay:
		return fmt.Sprintf("Fix(%d)", c.DelayMin)
	case CorrSignalHold:
		return fmt.Sprintf("Signal(%d)", c.DelayMin)
	case CorrEntryTime:
		return "Entry"
	case CorrScheduledDeparture:
		return "Plan"
	case CorrAwaitArrival:
		return fmt.Sprintf("Arrival(%s, %d)", c.Peer, c.ExtraWaitMin)
	case CorrAwaitDeparture:
		return fmt.Sprintf("Departure(%s, %d)", c.Peer, c.ExtraWaitMin)
	case CorrReplacement:
		return "Replace"
	case CorrCoupling:
		return "Couple"
	case CorrSplit:
		return "Split"
	default:
		return "Unknown"
	}
}

// applyCorrection computes row.departure_delay_min, given
// the row's already-resolved arrival_delay_min (set by PropagateAll's step
// 1 before this is called). It mutates row.ArrivalDelayMin only for the
// Coupling variant, whose convergence loop is defined in terms of it, and
// may reach into peer trains for the Replacement/Split hand-off. When the
// row's planned arrival is absent it returns the arrival delay unchanged,
// the same result as PassThrough.
func (e *Engine) applyCorrection(row *TimetableRow, corr Correction, simClockMin timeutil.Minutes) int {
	pA := row.PlannedArrival
	if !pA.Ok {
		e.log.Debug("missing planned arrival, falling back to pass-through", "row", row.Key())
		return row.ArrivalDelayMin
	}
	a := pA.Value + row.ArrivalDelayMin

	pD := row.PlannedDeparture
	pDVal := pA.Value + row.MinDwellMinutes
	if pD.Ok {
		pDVal = pD.Value
	}
	dwell := pDVal - a
	if row.MinDwellMinutes > dwell {
		dwell = row.MinDwellMinutes
	}

	switch corr.Kind {
	case CorrPassThrough:
		return row.ArrivalDelayMin

	case CorrFixedDelay, CorrSignalHold:
		return corr.DelayMin

	case CorrEntryTime:
		v := a
		if simClockMin.Ok && simClockMin.Value > v {
			v = simClockMin.Value
		}
		return v - pDVal

	case CorrScheduledDeparture:
		return (a + dwell) - pDVal

	case CorrAwaitArrival:
		peer, ok := e.rowByKey(corr.Peer)
		if !ok {
			e.log.Debug("await-arrival peer not resolvable yet", "row", row.Key(), "peer", corr.Peer)
			return row.ArrivalDelayMin
		}
		ca := 0
		if peer.PlannedArrival.Ok {
			ca = peer.PlannedArrival.Value + peer.ArrivalDelayMin
		}
		v := a + dwell
		if target := ca + corr.ExtraWaitMin; target > v {
			v = target
		}
		return v - pDVal

	case CorrAwaitDeparture:
		peer, ok := e.rowByKey(corr.Peer)
		if !ok {
			e.log.Debug("await-departure peer not resolvable yet", "row", row.Key(), "peer", corr.Peer)
			return row.ArrivalDelayMin
		}
		cd := 0
		if peer.PlannedDeparture.Ok {
			cd = peer.PlannedDeparture.Value + peer.DepartureDelayMin
		}
		v := a + dwell
		if target := cd + corr.ExtraWaitMin; target > v {
			v = target
		}
		return v - pDVal

	case CorrReplacement:
		peerRow, ok := e.rowByKey(corr.Peer)
		replacementPD := pDVal
		if ok && peerRow.PlannedDeparture.Ok {
			replacementPD = peerRow.PlannedDeparture.Value
		}
		dep := (a + dwell) - replacementPD
		row.ActualDepartureTime = timeutil.SomeMinutes(a + dwell - dep)
		if ok {
			if peerTrain, found := e.trains[corr.Peer.Zid]; found {
				peerTrain.DelayMin = dep
			}
		}
		return dep

	case CorrCoupling:
		peer, ok := e.rowByKey(corr.Peer)
		ka := 0
		if ok && peer.PlannedArrival.Ok {
			ka = peer.PlannedArrival.Value + peer.ArrivalDelayMin
		}
		converged := false
		for i := 0; i < maxPropagationDepth; i++ {
			diff := ka - a
			if diff < 0 {
				diff = -diff
			}
			if diff >= 2 {
				converged = true
				break
			}
			row.ArrivalDelayMin++
			a = pA.Value + row.ArrivalDelayMin
		}
		if !converged {
			e.log.Error("coupling separation did not converge", "row", row.Key(), "peer", corr.Peer, "iterations", maxPropagationDepth)
		}
		v := a + dwell
		if ka > v {
			v = ka
		}
		if t, found := e.trains[row.Zid]; found {
			t.DepartedSystem = true
		}
		return v - pDVal

	case CorrSplit:
		dep := (a + dwell) - pDVal
		if peerTrain, found := e.trains[corr.Peer.Zid]; found {
			peerTrain.DelayMin = row.ArrivalDelayMin
			if len(peerTrain.Rows) > 0 {
				peerTrain.Rows[0].ArrivalDelayMin = row.ArrivalDelayMin
			}
		}
		return dep

	default:
		return row.ArrivalDelayMin
	}
}

// estimatedMinutes renders a planned time plus a delay as wall-clock
// minutes, or absence if the planned time itself is absent.
func estimatedMinutes(planned timeutil.Minutes, delayMin int) timeutil.Minutes {
	if !planned.Ok {
		return timeutil.NoMinutes()
	}
	return timeutil.SomeMinutes(planned.Value + delayMin)
}
