package model

import "fmt"

// Spec holds the density and tier counts a fabric is built from.
type Spec struct {
	Density     int // hosts per Edge switch
	Edge        int
	Aggregation int
	Core        int
	Metro       int
	CDN         int
	Servers     int
}

// DefaultSpec returns the testbed fabric shape for the given density.
func DefaultSpec(density int) Spec {
	return Spec{
		Density:     density,
		Edge:        2,
		Aggregation: 2,
		Core:        2,
		Metro:       2,
		CDN:         1,
		Servers:     3,
	}
}

// TotalHosts returns the number of hosts the fabric will carry.
func (s Spec) TotalHosts() int {
	return s.Edge * s.Density
}

// TotalSwitches returns the number of switches across all tiers.
func (s Spec) TotalSwitches() int {
	return s.Edge + s.Aggregation + s.Core + s.Metro + s.CDN
}

// Validate checks the density and the wiring constraints between counts.
func (s Spec) Validate() error {
	if s.Density < 1 {
		return &ConfigurationError{Field: "density", Value: s.Density, Reason: "must be at least 1"}
	}
	counts := []struct {
		field string
		value int
		min   int
	}{
		{"edge", s.Edge, 1},
		{"aggregation", s.Aggregation, 1},
		{"core", s.Core, 1},
		{"metro", s.Metro, 0},
		{"cdn", s.CDN, 0},
	}
	for _, c := range counts {
		if c.value < c.min {
			return &ConfigurationError{Field: c.field, Value: c.value, Reason: fmt.Sprintf("must be at least %d", c.min)}
		}
	}
	if s.Metro > s.Core {
		return &ConfigurationError{Field: "metro", Value: s.Metro, Reason: "each metro switch needs its own core switch"}
	}
	if s.Metro+s.CDN < 1 {
		return &ConfigurationError{Field: "metro+cdn", Value: s.Metro + s.CDN, Reason: "at least one tier-1 switch is required"}
	}
	if s.Servers != s.Metro+s.CDN {
		return &ConfigurationError{Field: "servers", Value: s.Servers, Reason: "each tier-1 switch carries exactly one server"}
	}
	return nil
}

// Topology owns every switch, leaf and link of one fabric.
type Topology struct {
	Spec     Spec
	Switches []*Switch
	Hosts    []*Host
	Servers  []*Server
	Links    []*Link

	tiers map[Tier][]int
}

// BuildTopology constructs the fabric graph. Link construction order is
// fixed and determines every port number.
func BuildTopology(spec Spec) (*Topology, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	t := &Topology{
		Spec:     spec,
		Switches: make([]*Switch, 0, spec.TotalSwitches()),
		tiers:    make(map[Tier][]int),
	}

	t.addSwitches(TierMetro, spec.Metro)
	t.addSwitches(TierContentDelivery, spec.CDN)
	t.addSwitches(TierCore, spec.Core)
	t.addSwitches(TierAggregation, spec.Aggregation)
	t.addSwitches(TierEdge, spec.Edge)

	for i := 0; i < spec.TotalHosts(); i++ {
		t.Hosts = append(t.Hosts, &Host{Ordinal: i, Link: -1})
	}
	for i := 0; i < spec.Servers; i++ {
		t.Servers = append(t.Servers, &Server{Ordinal: i, Link: -1})
	}

	metro := t.tiers[TierMetro]
	cdn := t.tiers[TierContentDelivery]
	core := t.tiers[TierCore]
	agg := t.tiers[TierAggregation]
	edge := t.tiers[TierEdge]

	// Servers to tier-1 switches
	for i, srv := range t.Servers {
		class, sw := LinkMetro, 0
		if i < len(metro) {
			sw = metro[i]
		} else {
			class, sw = LinkCDN, cdn[i-len(metro)]
		}
		srv.Switch = sw
		srv.Link = t.connect(switchRef(sw), NodeRef{Kind: NodeServer, Index: i}, class)
	}

	// Edge to hosts
	for x, sw := range edge {
		for i := 0; i < spec.Density; i++ {
			h := t.Hosts[spec.Density*x+i]
			h.Edge = sw
			h.IndexInEdge = i + 1
			h.Link = t.connect(switchRef(sw), NodeRef{Kind: NodeHost, Index: h.Ordinal}, LinkEdgeHost)
		}
	}

	// Core to CDN, dual-homed
	for _, c := range cdn {
		for _, co := range core {
			t.connect(switchRef(co), switchRef(c), LinkCDN)
		}
	}

	// Metro to core
	for i, m := range metro {
		t.connect(switchRef(m), switchRef(core[i]), LinkMetro)
	}

	for _, co := range core {
		for _, a := range agg {
			t.connect(switchRef(co), switchRef(a), LinkCoreAgg)
		}
	}

	for _, a := range agg {
		for _, e := range edge {
			t.connect(switchRef(a), switchRef(e), LinkAggEdge)
		}
	}

	return t, nil
}

func switchRef(index int) NodeRef {
	return NodeRef{Kind: NodeSwitch, Index: index}
}

func (t *Topology) addSwitches(tier Tier, n int) {
	for i := 0; i < n; i++ {
		sw := &Switch{ID: SwitchID{Tier: tier, Ordinal: i}, Index: len(t.Switches)}
		t.Switches = append(t.Switches, sw)
		t.tiers[tier] = append(t.tiers[tier], sw.Index)
	}
}

func (t *Topology) connect(a, b NodeRef, class LinkClass) int {
	idx := len(t.Links)
	l := &Link{Index: idx, Class: class}
	l.A = Endpoint{Node: a, Port: t.attach(a, idx)}
	l.B = Endpoint{Node: b, Port: t.attach(b, idx)}
	t.Links = append(t.Links, l)
	return idx
}

func (t *Topology) attach(n NodeRef, link int) int {
	if n.Kind == NodeSwitch {
		return t.Switches[n.Index].addPort(link)
	}
	// hosts and servers are single-homed
	return 1
}

// Tier returns the switches of one tier in ordinal order.
func (t *Topology) Tier(tier Tier) []*Switch {
	idx := t.tiers[tier]
	out := make([]*Switch, len(idx))
	for i, j := range idx {
		out[i] = t.Switches[j]
	}
	return out
}

// Switch looks a switch up by identity.
func (t *Topology) Switch(id SwitchID) (*Switch, bool) {
	idx := t.tiers[id.Tier]
	if id.Ordinal < 0 || id.Ordinal >= len(idx) {
		return nil, false
	}
	return t.Switches[idx[id.Ordinal]], true
}

// Peer returns the endpoint on the far side of a switch port.
func (t *Topology) Peer(sw *Switch, port int) (Endpoint, error) {
	p, ok := sw.Port(port)
	if !ok {
		return Endpoint{}, fmt.Errorf("%s has no port %d", sw.ID, port)
	}
	return t.Links[p.Link].Other(switchRef(sw.Index))
}

// HostsOf returns the hosts attached to an Edge switch in port order.
func (t *Topology) HostsOf(sw *Switch) []*Host {
	var out []*Host
	for _, h := range t.Hosts {
		if h.Edge == sw.Index && h.Link >= 0 {
			out = append(out, h)
		}
	}
	return out
}

// ServersOf returns the servers attached to a switch.
func (t *Topology) ServersOf(sw *Switch) []*Server {
	var out []*Server
	for _, s := range t.Servers {
		if s.Switch == sw.Index && s.Link >= 0 {
			out = append(out, s)
		}
	}
	return out
}

// NodeName returns the legacy display name of any node.
func (t *Topology) NodeName(n NodeRef) string {
	switch n.Kind {
	case NodeSwitch:
		return t.Switches[n.Index].Name()
	case NodeHost:
		return t.Hosts[n.Index].Name()
	case NodeServer:
		return t.Servers[n.Index].Name()
	}
	return "unknown"
}
