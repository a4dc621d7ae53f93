// Package compiler derives the static forwarding state of a fabric: exact
// downstream rules toward attached leaves and upstream rules, spread over
// equal-cost multipath groups, toward every other destination.
//
// Compile is a pure function of the topology and its addresses. Two runs over
// the same input produce identical plans.
package compiler

import (
	"fmt"
	"math"
	"net/netip"
	"slices"
	"strings"

	"go4.org/netipx"

	"github.com/Huangmachi/exp-IPMAN/internal/model"
)

// DefaultPriority is the single priority every compiled rule carries.
const DefaultPriority = 10

// Scope selects which switches carry rules for a destination.
type Scope string

const (
	// ScopeHostServer installs a destination only on switches lying on an
	// equal-cost path from a leaf of the opposite kind: hosts toward
	// servers, servers toward host subnets.
	ScopeHostServer Scope = "host-server"
	// ScopeAllPairs installs every destination on every switch.
	ScopeAllPairs Scope = "all-pairs"
)

// ParseScope parses a scope name.
func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case ScopeHostServer, "":
		return ScopeHostServer, nil
	case ScopeAllPairs:
		return ScopeAllPairs, nil
	}
	return "", &model.ConfigurationError{Field: "compile.scope", Value: s, Reason: "must be host-server or all-pairs"}
}

// Options tune a compilation.
type Options struct {
	Scope    Scope
	Priority int
}

// DefaultOptions returns the options that reproduce the testbed tables.
func DefaultOptions() Options {
	return Options{Scope: ScopeHostServer, Priority: DefaultPriority}
}

// destination is one routable target: a host subnet under an Edge switch or
// a single server address.
type destination struct {
	name   string
	group  int
	match  netip.Prefix
	owner  int // switch index
	server bool
}

// Compile derives one table per switch, visiting tiers Edge, Aggregation,
// Core, ContentDelivery, Metro. Any error aborts the whole compilation.
func Compile(topo *model.Topology, opts Options) (*Plan, error) {
	if opts.Scope == "" {
		opts.Scope = ScopeHostServer
	}
	if opts.Priority == 0 {
		opts.Priority = DefaultPriority
	}
	if opts.Scope != ScopeHostServer && opts.Scope != ScopeAllPairs {
		return nil, &model.ConfigurationError{Field: "compile.scope", Value: string(opts.Scope), Reason: "unknown scope"}
	}

	dests, err := destinations(topo)
	if err != nil {
		return nil, err
	}

	c := &compilation{
		topo:  topo,
		opts:  opts,
		graph: newFabricGraph(topo),
		dests: dests,
	}
	if err := c.checkReachable(); err != nil {
		return nil, err
	}

	plan := &Plan{Scope: opts.Scope}
	for _, tier := range model.CompileOrder {
		for _, sw := range topo.Tier(tier) {
			t, err := c.compileSwitch(sw)
			if err != nil {
				return nil, err
			}
			plan.Tables = append(plan.Tables, t)
		}
	}
	return plan, nil
}

// destinations lists host subnets and servers in ascending group order.
func destinations(topo *model.Topology) ([]destination, error) {
	for _, h := range topo.Hosts {
		if !h.Addr.Valid() {
			return nil, fmt.Errorf("%w: host %s", ErrUnassignedAddress, h.Name())
		}
	}
	for _, s := range topo.Servers {
		if !s.Addr.Valid() {
			return nil, fmt.Errorf("%w: server %s", ErrUnassignedAddress, s.Name())
		}
	}

	var out []destination
	for _, sw := range topo.Tier(model.TierEdge) {
		hosts := topo.HostsOf(sw)
		if len(hosts) == 0 {
			continue
		}
		a := hosts[0].Addr
		out = append(out, destination{
			name:  a.Subnet().String(),
			group: a.Group,
			match: a.Subnet(),
			owner: sw.Index,
		})
	}
	for _, s := range topo.Servers {
		if s.Link < 0 || s.Switch < 0 || s.Switch >= len(topo.Switches) {
			return nil, &UnreachableDestinationError{
				Destination: fmt.Sprintf("%s (%s)", s.Addr.IP, s.Name()),
				Reason:      "not attached to any switch",
			}
		}
		out = append(out, destination{
			name:   s.Addr.IP.String(),
			group:  s.Addr.Group,
			match:  s.Addr.Exact(),
			owner:  s.Switch,
			server: true,
		})
	}

	slices.SortStableFunc(out, func(a, b destination) int {
		return a.group - b.group
	})
	return out, nil
}

type compilation struct {
	topo  *model.Topology
	opts  Options
	graph *fabricGraph
	dests []destination
}

// sources returns the switches traffic toward d originates from.
func (c *compilation) sources(d destination) []int {
	var out []int
	if c.opts.Scope == ScopeAllPairs {
		for _, sw := range c.topo.Switches {
			out = append(out, sw.Index)
		}
		return out
	}
	if d.server {
		for _, sw := range c.topo.Tier(model.TierEdge) {
			if len(c.topo.HostsOf(sw)) > 0 {
				out = append(out, sw.Index)
			}
		}
		return out
	}
	seen := make(map[int]bool)
	for _, s := range c.topo.Servers {
		if !seen[s.Switch] {
			seen[s.Switch] = true
			out = append(out, s.Switch)
		}
	}
	return out
}

func (c *compilation) checkReachable() error {
	for _, d := range c.dests {
		for _, src := range c.sources(d) {
			if math.IsInf(c.graph.distance(src, d.owner), 1) {
				return &UnreachableDestinationError{
					Destination: d.name,
					Switch:      c.topo.Switches[src].Name(),
					Reason:      "no path to " + c.topo.Switches[d.owner].Name(),
				}
			}
		}
	}
	return nil
}

// inScope reports whether sw carries an upstream rule for d.
func (c *compilation) inScope(sw int, d destination) bool {
	if sw == d.owner {
		return false
	}
	if c.opts.Scope == ScopeAllPairs {
		return true
	}
	for _, src := range c.sources(d) {
		if c.graph.onShortestPath(src, sw, d.owner) {
			return true
		}
	}
	return false
}

func (c *compilation) compileSwitch(sw *model.Switch) (*Table, error) {
	tb := newTableBuilder(sw.ID, c.opts.Priority)
	self := model.NodeRef{Kind: model.NodeSwitch, Index: sw.Index}

	for _, h := range c.topo.HostsOf(sw) {
		end, err := c.topo.Links[h.Link].Other(model.NodeRef{Kind: model.NodeHost, Index: h.Ordinal})
		if err != nil || end.Node != self {
			return nil, fmt.Errorf("%s: host %s link does not end here", sw.ID, h.Name())
		}
		if err := tb.output(h.Addr.Exact(), end.Port, true); err != nil {
			return nil, err
		}
	}
	for _, s := range c.topo.ServersOf(sw) {
		end, err := c.topo.Links[s.Link].Other(model.NodeRef{Kind: model.NodeServer, Index: s.Ordinal})
		if err != nil || end.Node != self {
			return nil, fmt.Errorf("%s: server %s link does not end here", sw.ID, s.Name())
		}
		if err := tb.output(s.Addr.Exact(), end.Port, true); err != nil {
			return nil, err
		}
	}

	for _, d := range c.dests {
		if !c.inScope(sw.Index, d) {
			continue
		}
		ports := c.graph.nextHops(sw, d.owner)
		var err error
		switch len(ports) {
		case 0:
			return nil, &UnreachableDestinationError{
				Destination: d.name,
				Switch:      sw.Name(),
				Reason:      "no port leads toward " + c.topo.Switches[d.owner].Name(),
			}
		case 1:
			err = tb.output(d.match, ports[0], false)
		default:
			err = tb.group(d.match, ports)
		}
		if err != nil {
			return nil, err
		}
	}
	return tb.table, nil
}

// tableBuilder accumulates one switch's entries and rejects overlapping
// matches.
type tableBuilder struct {
	table    *Table
	priority int
	matches  []netip.Prefix
	covered  netipx.IPSetBuilder
	groupIDs map[string]uint32
}

func newTableBuilder(id model.SwitchID, priority int) *tableBuilder {
	return &tableBuilder{
		table:    &Table{Switch: id},
		priority: priority,
		groupIDs: make(map[string]uint32),
	}
}

func (b *tableBuilder) claim(match netip.Prefix) error {
	set, err := b.covered.IPSet()
	if err != nil {
		return fmt.Errorf("%s: %w", b.table.Switch, err)
	}
	if set.OverlapsPrefix(match) {
		dup := &DuplicateRuleError{Switch: b.table.Switch, Match: match}
		for _, m := range b.matches {
			if m.Overlaps(match) {
				dup.Existing = m
				break
			}
		}
		return dup
	}
	b.covered.AddPrefix(match)
	b.matches = append(b.matches, match)
	return nil
}

func (b *tableBuilder) output(match netip.Prefix, port int, downstream bool) error {
	if err := b.claim(match); err != nil {
		return err
	}
	for _, proto := range Protocols {
		b.table.Rules = append(b.table.Rules, Rule{
			Match:      match,
			Protocol:   proto,
			Priority:   b.priority,
			Port:       port,
			Downstream: downstream,
		})
	}
	return nil
}

// group points match at the select group over ports, allocating the group
// on first use of that port set.
func (b *tableBuilder) group(match netip.Prefix, ports []int) error {
	if err := b.claim(match); err != nil {
		return err
	}
	key := fmt.Sprint(ports)
	id, ok := b.groupIDs[key]
	if !ok {
		id = uint32(len(b.table.Groups) + 1)
		b.groupIDs[key] = id
		b.table.Groups = append(b.table.Groups, Group{ID: id, Ports: slices.Clone(ports)})
	}
	for _, proto := range Protocols {
		b.table.Rules = append(b.table.Rules, Rule{
			Match:    match,
			Protocol: proto,
			Priority: b.priority,
			Group:    id,
		})
	}
	return nil
}
