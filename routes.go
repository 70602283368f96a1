package netexp

// routes.go surveys the multi-hop connectivity of a run's network as it
// stands when senders start.  Traffic itself is always sent in one hop to the
// sink; the survey tells how many senders could have reached the sink over
// some path of in-range links, which is what a routing protocol would find.
//
//   The approach is the one used for shortest path routes: convert the nodes
// and the links between them into a graph from the gonum graph package.
// Weighting each edge by 1, a shortest path minimizes the number of hops.
// Links are directed (antenna gains differ), so the graph holds the edge
// j->i whenever a frame from i is heard at j, and a single Dijkstra tree
// rooted in the sink then gives every node's hop count toward the sink.

import (
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
	"math"
	"strings"
)

// Connectivity summarizes the paths from senders to the sink
type Connectivity struct {
	Senders   int `json:"senders" yaml:"senders"`
	Direct    int `json:"direct" yaml:"direct"`       // senders heard by the sink in one hop
	Reachable int `json:"reachable" yaml:"reachable"` // senders with a path of any length
	MaxHops   int `json:"maxhops" yaml:"maxhops"`     // longest of the shortest paths

	hops  map[int]int   // node id -> hops to the sink, absent when unreachable
	paths map[int][]int // node id -> ids on its shortest path, sink last
}

// Hops returns the hop count from the node to the sink, and whether there is a path
func (conn *Connectivity) Hops(nodeID int) (int, bool) {
	h, present := conn.hops[nodeID]
	return h, present
}

// ShowPath returns a string that lists the names of the nodes on the
// shortest path from the node to the sink
func (conn *Connectivity) ShowPath(nodeID int, nw *Network) string {
	ids, present := conn.paths[nodeID]
	if !present {
		return ""
	}
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, nw.Nodes[id].Name)
	}
	return strings.Join(names, ",")
}

// buildConnGraph returns the graph of links among the network's nodes at time now
func buildConnGraph(nw *Network, now float64) *simple.WeightedDirectedGraph {
	connGraph := simple.NewWeightedDirectedGraph(0, math.Inf(1))
	for _, node := range nw.Nodes {
		connGraph.AddNode(simple.Node(node.ID))
	}
	for _, src := range nw.Nodes {
		srcPos := src.Position(now)
		for _, dst := range nw.Nodes {
			if src.ID == dst.ID {
				continue
			}
			if !nw.channel.InRange(src, dst, Distance(srcPos, dst.Position(now))) {
				continue
			}
			// reversed, so the tree rooted at the sink follows links toward it
			weightedEdge := simple.WeightedEdge{F: simple.Node(dst.ID), T: simple.Node(src.ID), W: 1.0}
			connGraph.SetWeightedEdge(weightedEdge)
		}
	}
	return connGraph
}

// SurveyConnectivity computes the shortest path from every node to the sink
func SurveyConnectivity(nw *Network, sink *Node, now float64) *Connectivity {
	conn := new(Connectivity)
	conn.hops = make(map[int]int)
	conn.paths = make(map[int][]int)

	connGraph := buildConnGraph(nw, now)
	spTree := path.DijkstraFrom(simple.Node(sink.ID), connGraph)

	for _, node := range nw.Nodes {
		if node.ID == sink.ID {
			continue
		}
		conn.Senders += 1
		nodeSeq, weight := spTree.To(int64(node.ID))
		if math.IsInf(weight, 1) || len(nodeSeq) == 0 {
			continue
		}
		hops := int(weight)
		conn.hops[node.ID] = hops
		conn.paths[node.ID] = convertNodeSeq(nodeSeq)
		conn.Reachable += 1
		if hops == 1 {
			conn.Direct += 1
		}
		if hops > conn.MaxHops {
			conn.MaxHops = hops
		}
	}
	return conn
}

// convertNodeSeq turns a path found in the tree (sink first) into node ids,
// ordered from the sender to the sink
func convertNodeSeq(nsQ []graph.Node) []int {
	rtn := make([]int, len(nsQ))
	for idx, node := range nsQ {
		rtn[len(nsQ)-1-idx] = int(node.ID())
	}
	return rtn
}
