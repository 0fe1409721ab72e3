package dispatch

import (
	"testing"
	"time"

	log "gopkg.in/inconshreveable/log15.v2"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/stskit/dispatch/timeutil"
)

func wt(h, m int) *WireTime {
	return &WireTime{Time: time.Date(0, 1, 1, h, m, 0, 0, time.UTC)}
}

func newTestEngine() *Engine {
	logger := log.New()
	logger.SetHandler(log.DiscardHandler())
	return NewEngine(logger, nil)
}

func TestEntryInThePast(t *testing.T) {
	Convey("S1: a train entering after its planned time carries the overrun into its departure delay", t, func() {
		e := newTestEngine()
		snap := []SnapshotTrain{{
			Zid: 100, Name: "100", Von: "Einfahrt", Nach: "Gleis X",
			Fahrplan: []SnapshotRow{{Plan: "A", An: wt(10, 0), Ab: wt(10, 0)}},
		}}
		err := e.Ingest(snap, timeutil.SomeMinutes(10*60+5))
		So(err, ShouldBeNil)

		train, ok := e.Train(100)
		So(ok, ShouldBeTrue)
		entry := train.Rows[0]
		So(entry.IsEntry, ShouldBeTrue)
		So(entry.ArrivalDelayMin, ShouldEqual, 0)
		So(entry.DepartureDelayMin, ShouldEqual, 5)
	})
}

func TestRecoveryWithinDwell(t *testing.T) {
	Convey("S2: a hold row that recovers all its delay within its dwell departs on time", t, func() {
		e := newTestEngine()
		snap := []SnapshotTrain{{
			Zid: 200, Name: "200", Von: "Gleis X", Nach: "Gleis Y",
			Fahrplan: []SnapshotRow{{Plan: "A", An: wt(10, 0), Ab: wt(10, 7)}},
		}}
		err := e.Ingest(snap, timeutil.SomeMinutes(0))
		So(err, ShouldBeNil)
		train, _ := e.Train(200)
		row := train.RowByTrack("A")
		row.MinDwellMinutes = 2
		train.DelayMin = 4
		So(e.PropagateAll(timeutil.SomeMinutes(0)), ShouldBeNil)

		So(row.DepartureDelayMin, ShouldEqual, 0)
	})
}

func TestAwaitArrival(t *testing.T) {
	Convey("S3: a row waiting on a peer's arrival departs no earlier than the peer plus extra wait", t, func() {
		e := newTestEngine()
		snapB := []SnapshotTrain{{
			Zid: 2, Name: "B", Von: "Gleis X", Nach: "Gleis Y", Verspaetung: 8,
			Fahrplan: []SnapshotRow{{Plan: "J", An: wt(10, 15), Ab: wt(10, 15)}},
		}}
		So(e.Ingest(snapB, timeutil.SomeMinutes(0)), ShouldBeNil)
		trainB, _ := e.Train(2)
		peerRow := trainB.RowByTrack("J")
		peerRow.ArrivalDelayMin = 8

		snapA := []SnapshotTrain{
			snapB[0],
			{
				Zid: 1, Name: "A", Von: "Gleis X", Nach: "Gleis Y",
				Fahrplan: []SnapshotRow{{Plan: "J", An: wt(10, 19), Ab: wt(10, 20)}},
			},
		}
		So(e.Ingest(snapA, timeutil.SomeMinutes(0)), ShouldBeNil)
		trainA, _ := e.Train(1)
		rowA := trainA.RowByTrack("J")
		rowA.MinDwellMinutes = 2
		rowA.AutoCorrection = &Correction{Kind: CorrAwaitArrival, Peer: peerRow.Key(), ExtraWaitMin: 3}

		So(e.PropagateAll(timeutil.SomeMinutes(0)), ShouldBeNil)

		So(rowA.DepartureDelayMin, ShouldEqual, 6)
	})
}

func TestCouplingSeparation(t *testing.T) {
	Convey("S4: coupling forces at least a 2-minute separation by nudging only the coupling row", t, func() {
		e := newTestEngine()
		snapPartner := []SnapshotTrain{{
			Zid: 20, Name: "partner", Von: "Gleis X", Nach: "Gleis Y",
			Fahrplan: []SnapshotRow{{Plan: "K", An: wt(10, 30), Ab: wt(10, 30)}},
		}}
		So(e.Ingest(snapPartner, timeutil.SomeMinutes(0)), ShouldBeNil)
		partner, _ := e.Train(20)
		partnerRow := partner.RowByTrack("K")

		snap := []SnapshotTrain{
			snapPartner[0],
			{
				Zid: 10, Name: "coupling", Von: "Gleis X", Nach: "Gleis Y",
				Fahrplan: []SnapshotRow{{Plan: "K", An: wt(10, 30), Ab: wt(10, 30)}},
			},
		}
		So(e.Ingest(snap, timeutil.SomeMinutes(0)), ShouldBeNil)
		train, _ := e.Train(10)
		row := train.RowByTrack("K")
		row.AutoCorrection = &Correction{Kind: CorrCoupling, Peer: partnerRow.Key()}

		before := row.ArrivalDelayMin
		So(e.PropagateAll(timeutil.SomeMinutes(0)), ShouldBeNil)

		So(row.ArrivalDelayMin-before, ShouldEqual, 2)
		So(partnerRow.ArrivalDelayMin, ShouldEqual, 0)
	})
}

func TestReplacementHandoff(t *testing.T) {
	Convey("S5: a replaced train's departure delay becomes the successor's top-level and first-row delay", t, func() {
		e := newTestEngine()
		snapY := []SnapshotTrain{{
			Zid: 31, Name: "Y", Von: "Gleis X", Nach: "Gleis Y",
			Fahrplan: []SnapshotRow{{Plan: "Z", An: wt(11, 0), Ab: wt(11, 5)}},
		}}
		So(e.Ingest(snapY, timeutil.SomeMinutes(0)), ShouldBeNil)
		trainY, _ := e.Train(31)
		firstRowY := trainY.Rows[0]

		snap := []SnapshotTrain{
			snapY[0],
			{
				Zid: 30, Name: "X", Von: "Gleis X", Nach: "Gleis Y",
				Fahrplan: []SnapshotRow{{Plan: "Z", An: wt(10, 55), Ab: wt(11, 0), Flags: "E:31"}},
			},
		}
		So(e.Ingest(snap, timeutil.SomeMinutes(0)), ShouldBeNil)
		trainX, _ := e.Train(30)
		rowX := trainX.RowByTrack("Z")
		rowX.ArrivalDelayMin = 4

		So(e.PropagateAll(timeutil.SomeMinutes(0)), ShouldBeNil)

		So(rowX.AutoCorrection.Kind, ShouldEqual, CorrReplacement)
		So(trainY.DelayMin, ShouldEqual, rowX.DepartureDelayMin)
		So(firstRowY.AutoCorrection.Kind, ShouldEqual, CorrAwaitArrival)
	})
}

func TestDisappearingTrain(t *testing.T) {
	Convey("S6: a train missing from the next snapshot is retired", t, func() {
		e := newTestEngine()
		snap1 := []SnapshotTrain{{
			Zid: 40, Name: "Z", Von: "Gleis X", Nach: "Gleis Y",
			Fahrplan: []SnapshotRow{{Plan: "A", An: wt(10, 0), Ab: wt(10, 0)}},
		}}
		So(e.Ingest(snap1, timeutil.SomeMinutes(0)), ShouldBeNil)

		So(e.Ingest(nil, timeutil.SomeMinutes(1)), ShouldBeNil)

		train, ok := e.Train(40)
		So(ok, ShouldBeTrue)
		So(train.DepartedSystem, ShouldBeTrue)
		So(train.Visible, ShouldBeFalse)
		for _, row := range train.Rows {
			So(row.Departed(), ShouldBeTrue)
		}
	})
}

func TestTargetGraphRejectsCycles(t *testing.T) {
	Convey("the target graph refuses an edge that would close a cycle", t, func() {
		g := NewTargetGraph()
		a := RowKey{Zid: 1, SeqNo: 0, PlanTrack: "A"}
		b := RowKey{Zid: 1, SeqNo: 1000, PlanTrack: "B"}
		So(g.AddEdge(a, b, EdgeSequence), ShouldBeNil)
		So(g.AddEdge(b, a, EdgeSequence), ShouldNotBeNil)
	})
}

func TestRowKeyUniqueness(t *testing.T) {
	Convey("rows are addressed uniquely by (zid, seq_no, plan_track)", t, func() {
		e := newTestEngine()
		snap := []SnapshotTrain{{
			Zid: 50, Name: "dup", Von: "Gleis X", Nach: "Gleis Y",
			Fahrplan: []SnapshotRow{
				{Plan: "A", An: wt(9, 0), Ab: wt(9, 5)},
				{Plan: "B", An: wt(9, 10), Ab: wt(9, 15)},
			},
		}}
		So(e.Ingest(snap, timeutil.SomeMinutes(0)), ShouldBeNil)
		train, _ := e.Train(50)
		seen := map[RowKey]bool{}
		for _, r := range train.Rows {
			So(seen[r.Key()], ShouldBeFalse)
			seen[r.Key()] = true
		}
	})
}

func TestManualCorrectionClearsDownstream(t *testing.T) {
	Convey("setting a manual correction clears every strictly later manual correction on the same train", t, func() {
		e := newTestEngine()
		snap := []SnapshotTrain{{
			Zid: 60, Name: "manual", Von: "Gleis X", Nach: "Gleis Y",
			Fahrplan: []SnapshotRow{
				{Plan: "A", An: wt(9, 0), Ab: wt(9, 5)},
				{Plan: "B", An: wt(9, 10), Ab: wt(9, 15)},
			},
		}}
		So(e.Ingest(snap, timeutil.SomeMinutes(0)), ShouldBeNil)
		train, _ := e.Train(60)
		rowA := train.RowByTrack("A")
		rowB := train.RowByTrack("B")
		rowB.ManualCorrection = &Correction{Kind: CorrFixedDelay, DelayMin: 9}

		So(e.SetManualCorrection(rowA.Key(), Correction{Kind: CorrFixedDelay, DelayMin: 3}), ShouldBeNil)

		So(rowA.ManualCorrection.DelayMin, ShouldEqual, 3)
		So(rowB.ManualCorrection, ShouldBeNil)
	})
}

func TestFamilyMembershipIsSymmetricAndTransitive(t *testing.T) {
	Convey("trains linked by Replace/Couple/Split land in the same family regardless of link direction", t, func() {
		g := NewTrainGraph()
		So(g.AddLink(1, 2, TrainEdgeReplace), ShouldBeNil)
		So(g.AddLink(2, 3, TrainEdgeCouple), ShouldBeNil)
		g.AddTrain(9)

		families := g.Families()
		var withOne, withThree, withNine []int
		for _, fam := range families {
			for _, zid := range fam {
				switch zid {
				case 1:
					withOne = fam
				case 3:
					withThree = fam
				case 9:
					withNine = fam
				}
			}
		}

		So(withOne, ShouldResemble, withThree)
		So(withNine, ShouldNotResemble, withOne)
		So(len(withOne), ShouldEqual, 3)
		So(len(withNine), ShouldEqual, 1)
	})
}

func TestArrivedRowIsFrozenAgainstFurtherPropagation(t *testing.T) {
	Convey("a row with a realized arrival keeps its arrival delay across further propagation", t, func() {
		e := newTestEngine()
		snap := []SnapshotTrain{{
			Zid: 80, Name: "frozen", Von: "Gleis X", Nach: "Gleis Y",
			Fahrplan: []SnapshotRow{{Plan: "A", An: wt(9, 0), Ab: wt(9, 5)}},
		}}
		So(e.Ingest(snap, timeutil.SomeMinutes(0)), ShouldBeNil)
		train, _ := e.Train(80)
		row := train.RowByTrack("A")

		So(e.ApplyEvent(Event{Art: EventArrival, Zid: 80, Plangleis: "A", Zeit: wt(9, 6).Time, Verspaetung: 6}), ShouldBeNil)
		So(row.Arrived(), ShouldBeTrue)
		So(row.ArrivalDelayMin, ShouldEqual, 6)

		So(e.PropagateAll(timeutil.SomeMinutes(0)), ShouldBeNil)
		So(e.PropagateAll(timeutil.SomeMinutes(0)), ShouldBeNil)

		So(row.ArrivalDelayMin, ShouldEqual, 6)
	})
}

func TestPropagateIsIdempotentAtFixedPoint(t *testing.T) {
	Convey("re-running propagate_all at a fixed point leaves delays unchanged", t, func() {
		e := newTestEngine()
		snap := []SnapshotTrain{{
			Zid: 70, Name: "stable", Von: "Gleis X", Nach: "Gleis Y",
			Fahrplan: []SnapshotRow{{Plan: "A", An: wt(9, 0), Ab: wt(9, 5)}},
		}}
		So(e.Ingest(snap, timeutil.SomeMinutes(0)), ShouldBeNil)
		train, _ := e.Train(70)
		row := train.RowByTrack("A")
		before := row.DepartureDelayMin

		So(e.PropagateAll(timeutil.SomeMinutes(0)), ShouldBeNil)

		So(row.DepartureDelayMin, ShouldEqual, before)
	})
}
