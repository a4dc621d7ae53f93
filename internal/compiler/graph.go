package compiler

import (
	"math"

	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/Huangmachi/exp-IPMAN/internal/model"
)

// fabricGraph is the switch-only view of a topology. Every switch-to-switch
// link weighs one hop; leaves never carry transit traffic and are left out.
type fabricGraph struct {
	topo  *model.Topology
	g     *simple.WeightedUndirectedGraph
	trees map[int]path.Shortest
}

func newFabricGraph(topo *model.Topology) *fabricGraph {
	g := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	for _, sw := range topo.Switches {
		g.AddNode(simple.Node(sw.Index))
	}
	for _, l := range topo.Links {
		if l.A.Node.Kind != model.NodeSwitch || l.B.Node.Kind != model.NodeSwitch {
			continue
		}
		g.SetWeightedEdge(simple.WeightedEdge{
			F: simple.Node(l.A.Node.Index),
			T: simple.Node(l.B.Node.Index),
			W: 1,
		})
	}
	return &fabricGraph{topo: topo, g: g, trees: make(map[int]path.Shortest)}
}

// tree returns the shortest path tree rooted at a switch, computing it once.
func (f *fabricGraph) tree(root int) path.Shortest {
	t, ok := f.trees[root]
	if !ok {
		t = path.DijkstraFrom(simple.Node(root), f.g)
		f.trees[root] = t
	}
	return t
}

// distance returns the hop count between two switches, +Inf if disconnected.
func (f *fabricGraph) distance(from, to int) float64 {
	if from == to {
		return 0
	}
	return f.tree(to).WeightTo(int64(from))
}

// nextHops returns, in ascending port order, every port of sw whose peer
// switch is one hop closer to target.
func (f *fabricGraph) nextHops(sw *model.Switch, target int) []int {
	d := f.distance(sw.Index, target)
	if math.IsInf(d, 1) || d == 0 {
		return nil
	}
	var ports []int
	for _, p := range sw.Ports {
		peer, err := f.topo.Links[p.Link].Other(model.NodeRef{Kind: model.NodeSwitch, Index: sw.Index})
		if err != nil || peer.Node.Kind != model.NodeSwitch {
			continue
		}
		if f.distance(peer.Node.Index, target) == d-1 {
			ports = append(ports, p.Number)
		}
	}
	return ports
}

// onShortestPath reports whether sw lies on some equal-cost path from src to
// dst.
func (f *fabricGraph) onShortestPath(src, sw, dst int) bool {
	total := f.distance(src, dst)
	if math.IsInf(total, 1) {
		return false
	}
	return f.distance(src, sw)+f.distance(sw, dst) == total
}
