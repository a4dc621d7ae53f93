package compiler

import (
	"fmt"
	"net/netip"
	"slices"

	"github.com/Huangmachi/exp-IPMAN/internal/model"
)

// Verify traces every (host, server) pair in both directions through the
// compiled tables, for both protocol classes, following every bucket of
// every group. Under ScopeAllPairs host-to-host traffic between different
// Edge switches is traced too. The first drop, loop or misdelivery found is
// returned as a *TraceError.
func Verify(topo *model.Topology, plan *Plan) error {
	tables := make(map[int]*Table, len(topo.Switches))
	for _, sw := range topo.Switches {
		t, ok := plan.Table(sw.ID)
		if !ok {
			return fmt.Errorf("%w: no table for %s", ErrVerification, sw.ID)
		}
		tables[sw.Index] = t
	}
	tr := &tracer{topo: topo, tables: tables}

	for _, proto := range Protocols {
		for _, h := range topo.Hosts {
			hostRef := model.NodeRef{Kind: model.NodeHost, Index: h.Ordinal}
			for _, s := range topo.Servers {
				srvRef := model.NodeRef{Kind: model.NodeServer, Index: s.Ordinal}
				if err := tr.trace(proto, hostRef, h.Link, srvRef, s.Addr.IP); err != nil {
					return err
				}
				if err := tr.trace(proto, srvRef, s.Link, hostRef, h.Addr.IP); err != nil {
					return err
				}
			}
		}
		if plan.Scope != ScopeAllPairs {
			continue
		}
		for _, a := range topo.Hosts {
			for _, b := range topo.Hosts {
				if a.Edge == b.Edge {
					continue
				}
				if err := tr.trace(proto,
					model.NodeRef{Kind: model.NodeHost, Index: a.Ordinal}, a.Link,
					model.NodeRef{Kind: model.NodeHost, Index: b.Ordinal}, b.Addr.IP); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

type tracer struct {
	topo   *model.Topology
	tables map[int]*Table
}

// trace injects a packet for dst at the leaf from, on its access link.
func (tr *tracer) trace(proto Protocol, from model.NodeRef, link int, to model.NodeRef, dst netip.Addr) error {
	fail := func(path []string, reason string) error {
		return &TraceError{
			Protocol: proto,
			From:     tr.topo.NodeName(from),
			To:       tr.topo.NodeName(to),
			Path:     path,
			Reason:   reason,
		}
	}
	if link < 0 {
		return fail(nil, "source is not attached")
	}
	ingress, err := tr.topo.Links[link].Other(from)
	if err != nil {
		return fail(nil, err.Error())
	}
	if ingress.Node.Kind != model.NodeSwitch {
		return fail(nil, "access link does not reach a switch")
	}

	var walk func(sw int, path []string, onPath map[int]bool) error
	walk = func(sw int, path []string, onPath map[int]bool) error {
		s := tr.topo.Switches[sw]
		path = append(slices.Clip(path), s.Name())
		if onPath[sw] {
			return fail(path, "forwarding loop")
		}
		onPath[sw] = true
		defer delete(onPath, sw)

		rule, ok := tr.tables[sw].Lookup(proto, dst)
		if !ok {
			return fail(path, "dropped: no matching rule on "+s.Name())
		}
		ports := []int{rule.Port}
		if rule.Group != 0 {
			g, ok := tr.tables[sw].Group(rule.Group)
			if !ok {
				return fail(path, fmt.Sprintf("rule references missing group %d", rule.Group))
			}
			ports = g.Ports
		}

		for _, port := range ports {
			peer, err := tr.topo.Peer(s, port)
			if err != nil {
				return fail(path, err.Error())
			}
			if peer.Node.Kind == model.NodeSwitch {
				if err := walk(peer.Node.Index, path, onPath); err != nil {
					return err
				}
				continue
			}
			if peer.Node != to {
				return fail(append(path, tr.topo.NodeName(peer.Node)), "delivered to the wrong leaf")
			}
		}
		return nil
	}

	return walk(ingress.Node.Index, nil, make(map[int]bool))
}
