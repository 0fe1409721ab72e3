package dispatch

import "fmt"

// RowKey is the primary key of a TimetableRow: (zid, seq_no, plan_track).
// Two rows are equal iff this triple agrees.
type RowKey struct {
	Zid       int
	SeqNo     int
	PlanTrack string
}

func (k RowKey) String() string {
	return fmt.Sprintf("%d-%d@%s", k.Zid, k.SeqNo, k.PlanTrack)
}

// NodeKind classifies a target-graph node.
type NodeKind string

const (
	NodeEntry       NodeKind = "Entry"
	NodeExit        NodeKind = "Exit"
	NodeHold        NodeKind = "Hold"
	NodePass        NodeKind = "Pass"
	NodeOperational NodeKind = "Operational"
	NodeSignalHold  NodeKind = "SignalHold"
)

// TargetEdgeKind classifies a target-graph (G_R) edge.
type TargetEdgeKind string

const (
	EdgeSequence TargetEdgeKind = "Sequence"
	EdgeReplace  TargetEdgeKind = "Replace"
	EdgeSplit    TargetEdgeKind = "Split"
	EdgeCouple   TargetEdgeKind = "Couple"
	EdgeShunt    TargetEdgeKind = "Shunt"
	EdgeAwaitDep TargetEdgeKind = "AwaitDep"
	EdgeDropConn TargetEdgeKind = "DropConn"
)

// TrainEdgeKind classifies a train-family graph (G_T) edge.
type TrainEdgeKind string

const (
	TrainEdgeReplace TrainEdgeKind = "Replace"
	TrainEdgeCouple  TrainEdgeKind = "Couple"
	TrainEdgeSplit   TrainEdgeKind = "Split"
)
