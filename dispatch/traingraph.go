package dispatch

import (
	"fmt"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// trainEdge attaches a TrainEdgeKind to a gonum simple.Edge, the way
// zugbaum edges in planung.py carry a "typ" attribute.
type trainEdge struct {
	simple.Edge
	Kind TrainEdgeKind
}

// TrainGraph is G_T, the train-family graph: a DAG whose nodes
// are train zids and whose edges record Replace/Couple/Split relationships
// discovered while defining corrections. Grounded on planung.py's
// `self.zugbaum` (a networkx DiGraph) and its undirected sibling
// `zugbaum_ungerichtet` used for family/connected-component queries; gonum
// is used here instead of hand-rolling a DAG, per the graph/simple and
// graph/topo usage pattern observed in the distr1 batch scheduler.
type TrainGraph struct {
	directed   *simple.DirectedGraph
	undirected *simple.UndirectedGraph
}

// NewTrainGraph returns an empty train-family graph.
func NewTrainGraph() *TrainGraph {
	return &TrainGraph{
		directed:   simple.NewDirectedGraph(),
		undirected: simple.NewUndirectedGraph(),
	}
}

// AddTrain registers a train zid as a node, idempotently.
func (g *TrainGraph) AddTrain(zid int) {
	n := simple.Node(int64(zid))
	if g.directed.Node(n.ID()) == nil {
		g.directed.AddNode(n)
	}
	if g.undirected.Node(n.ID()) == nil {
		g.undirected.AddNode(n)
	}
}

// AddLink adds a Replace/Couple/Split edge from predecessor zid `from` to
// successor zid `to`. It refuses an edge that would close a cycle, via a
// BFS over the descendants of the target before committing.
func (g *TrainGraph) AddLink(from, to int, kind TrainEdgeKind) error {
	g.AddTrain(from)
	g.AddTrain(to)
	fn, tn := simple.Node(int64(from)), simple.Node(int64(to))
	if g.hasPath(tn.ID(), fn.ID()) {
		return fmt.Errorf("dispatch: link %d->%d (%s) would close a cycle in the train graph", from, to, kind)
	}
	g.directed.SetEdge(trainEdge{Edge: simple.Edge{F: fn, T: tn}, Kind: kind})
	g.undirected.SetEdge(simple.Edge{F: fn, T: tn})
	return nil
}

// hasPath reports whether a path exists from src to dst in the directed
// graph, via a plain BFS over outbound edges.
func (g *TrainGraph) hasPath(src, dst int64) bool {
	if src == dst {
		return true
	}
	visited := map[int64]bool{src: true}
	queue := []int64{src}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		to := g.directed.From(cur)
		for to.Next() {
			id := to.Node().ID()
			if id == dst {
				return true
			}
			if !visited[id] {
				visited[id] = true
				queue = append(queue, id)
			}
		}
	}
	return false
}

// EdgeKind returns the kind of the edge from->to, if any.
func (g *TrainGraph) EdgeKind(from, to int) (TrainEdgeKind, bool) {
	e := g.directed.Edge(int64(from), int64(to))
	if e == nil {
		return "", false
	}
	te, ok := e.(trainEdge)
	if !ok {
		return "", false
	}
	return te.Kind, true
}

// Successors returns the zids directly linked from zid.
func (g *TrainGraph) Successors(zid int) []int {
	it := g.directed.From(int64(zid))
	var out []int
	for it.Next() {
		out = append(out, int(it.Node().ID()))
	}
	return out
}

// Predecessors returns the zids directly linking into zid.
func (g *TrainGraph) Predecessors(zid int) []int {
	it := g.directed.To(int64(zid))
	var out []int
	for it.Next() {
		out = append(out, int(it.Node().ID()))
	}
	return out
}

// Families partitions all registered trains into connected components of
// the undirected mirror graph, via topo.ConnectedComponents.
func (g *TrainGraph) Families() [][]int {
	comps := topo.ConnectedComponents(g.undirected)
	out := make([][]int, 0, len(comps))
	for _, comp := range comps {
		var fam []int
		for _, n := range comp {
			fam = append(fam, int(n.ID()))
		}
		out = append(out, fam)
	}
	return out
}

// TopologicalOrder returns all train zids in an order where every
// predecessor precedes its successors, or an
// error if a cycle slipped past AddLink's guard.
func (g *TrainGraph) TopologicalOrder() ([]int, error) {
	sorted, err := topo.Sort(g.directed)
	if err != nil {
		return nil, fmt.Errorf("dispatch: train graph is not acyclic: %w", err)
	}
	out := make([]int, 0, len(sorted))
	for _, n := range sorted {
		out = append(out, int(n.ID()))
	}
	return out, nil
}
