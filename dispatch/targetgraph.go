package dispatch

import (
	"fmt"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// targetNode wraps a RowKey as a gonum graph.Node, lazily assigned an
// int64 id the first time it's seen.
type targetNode struct {
	id  int64
	key RowKey
}

func (n targetNode) ID() int64 { return n.id }

// targetEdge attaches a TargetEdgeKind to a gonum simple.Edge: one of
// Sequence/Replace/Split/Couple/Shunt/AwaitDep/DropConn.
type targetEdge struct {
	simple.Edge
	Kind TargetEdgeKind
}

// TargetGraph is G_R: a DAG over TimetableRow keys whose
// topological order is the single propagation sweep order. Grounded on
// planung.py's `self.zielgraph` (networkx DiGraph) and `_zielgraph_erstellen`,
// reimplemented on gonum/graph/simple + graph/topo.
type TargetGraph struct {
	g        *simple.DirectedGraph
	nodeByID map[RowKey]targetNode
	nextID   int64
}

// NewTargetGraph returns an empty target graph.
func NewTargetGraph() *TargetGraph {
	return &TargetGraph{
		g:        simple.NewDirectedGraph(),
		nodeByID: make(map[RowKey]targetNode),
	}
}

func (g *TargetGraph) nodeFor(key RowKey) targetNode {
	if n, ok := g.nodeByID[key]; ok {
		return n
	}
	n := targetNode{id: g.nextID, key: key}
	g.nextID++
	g.nodeByID[key] = n
	g.g.AddNode(n)
	return n
}

// AddRow registers a row as a node, idempotently.
func (g *TargetGraph) AddRow(key RowKey) { g.nodeFor(key) }

// AddEdge links from->to with the given kind. It refuses an edge that
// would close a cycle, logging the rejection is
// left to the caller via the returned error.
func (g *TargetGraph) AddEdge(from, to RowKey, kind TargetEdgeKind) error {
	fn, tn := g.nodeFor(from), g.nodeFor(to)
	if g.hasPath(tn.id, fn.id) {
		return fmt.Errorf("dispatch: edge %s->%s (%s) would close a cycle in the target graph", from, to, kind)
	}
	g.g.SetEdge(targetEdge{Edge: simple.Edge{F: fn, T: tn}, Kind: kind})
	return nil
}

// RemoveRow deletes a row and all its incident edges (used when a train
// leaves the system and its rows are pruned from the active sweep).
func (g *TargetGraph) RemoveRow(key RowKey) {
	n, ok := g.nodeByID[key]
	if !ok {
		return
	}
	g.g.RemoveNode(n.id)
	delete(g.nodeByID, key)
}

// RemoveEdge deletes the from->to edge, if one exists, without touching
// either node (used when a manual correction naming an origin row is
// replaced or cleared).
func (g *TargetGraph) RemoveEdge(from, to RowKey) {
	fn, fok := g.nodeByID[from]
	tn, tok := g.nodeByID[to]
	if !fok || !tok {
		return
	}
	g.g.RemoveEdge(fn.id, tn.id)
}

func (g *TargetGraph) hasPath(src, dst int64) bool {
	if src == dst {
		return true
	}
	visited := map[int64]bool{src: true}
	queue := []int64{src}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		to := g.g.From(cur)
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

// Predecessors returns the row keys with an edge into key, alongside the
// edge kind, in no particular order.
func (g *TargetGraph) Predecessors(key RowKey) []struct {
	Key  RowKey
	Kind TargetEdgeKind
} {
	n, ok := g.nodeByID[key]
	if !ok {
		return nil
	}
	it := g.g.To(n.id)
	var out []struct {
		Key  RowKey
		Kind TargetEdgeKind
	}
	for it.Next() {
		pn := it.Node().(targetNode)
		e := g.g.Edge(pn.id, n.id).(targetEdge)
		out = append(out, struct {
			Key  RowKey
			Kind TargetEdgeKind
		}{Key: pn.key, Kind: e.Kind})
	}
	return out
}

// TopologicalOrder returns every registered row key in an order consistent
// with all edges, or an error if a cycle slipped past AddEdge's guard,
// mirroring planung.py's nx.NetworkXUnfeasible handling in
// `_zielgraph_erstellen`.
func (g *TargetGraph) TopologicalOrder() ([]RowKey, error) {
	sorted, err := topo.Sort(g.g)
	if err != nil {
		return nil, fmt.Errorf("dispatch: target graph is not acyclic: %w", err)
	}
	out := make([]RowKey, 0, len(sorted))
	for _, n := range sorted {
		out = append(out, n.(targetNode).key)
	}
	return out, nil
}
