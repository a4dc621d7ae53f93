package model

import "fmt"

// NodeKind distinguishes the three node types a link can attach.
type NodeKind int

const (
	NodeSwitch NodeKind = iota
	NodeHost
	NodeServer
)

func (k NodeKind) String() string {
	switch k {
	case NodeSwitch:
		return "switch"
	case NodeHost:
		return "host"
	case NodeServer:
		return "server"
	}
	return "unknown"
}

// NodeRef points at a node owned by the Topology.
type NodeRef struct {
	Kind  NodeKind
	Index int
}

// Endpoint is one side of a link.
type Endpoint struct {
	Node NodeRef
	Port int
}

// LinkClass groups links that share provisioning parameters.
type LinkClass string

const (
	LinkMetro    LinkClass = "gz"        // server↔metro and metro↔core
	LinkCDN      LinkClass = "cdn"       // server↔cdn and core↔cdn
	LinkCoreAgg  LinkClass = "core_agg"  // core↔aggregation
	LinkAggEdge  LinkClass = "agg_edge"  // aggregation↔edge
	LinkEdgeHost LinkClass = "edge_host" // edge↔host
)

// LinkParams are the shaping parameters handed to the traffic collaborator.
type LinkParams struct {
	BandwidthMbps float64 `json:"bandwidth_mbps" yaml:"bandwidth_mbps"`
	MaxQueueSize  int     `json:"max_queue_size" yaml:"max_queue_size"`
}

// Link is an undirected edge. Index is its position in construction order.
type Link struct {
	Index  int
	A, B   Endpoint
	Class  LinkClass
	Params LinkParams
}

// Other returns the endpoint opposite to n.
func (l *Link) Other(n NodeRef) (Endpoint, error) {
	switch n {
	case l.A.Node:
		return l.B, nil
	case l.B.Node:
		return l.A, nil
	}
	return Endpoint{}, fmt.Errorf("link %d does not attach %s %d", l.Index, n.Kind, n.Index)
}
