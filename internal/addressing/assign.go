// Package addressing assigns hierarchical IPv4 addresses to the leaves of a
// fabric. The second octet is the top-level component: one per Edge switch
// for hosts, then one per server. The last octet is the member index.
package addressing

import (
	"errors"
	"fmt"
	"net/netip"

	"go4.org/netipx"

	"github.com/Huangmachi/exp-IPMAN/internal/model"
)

// MaxMember and MaxGroup bound the two address components.
const (
	MaxMember = 254
	MaxGroup  = 255
)

// DefaultBase is the network every fabric is numbered from.
var DefaultBase = netip.MustParsePrefix("10.0.0.0/8")

// ErrAddressSpaceExhausted is the sentinel behind AddressSpaceExhaustedError.
var ErrAddressSpaceExhausted = errors.New("address space exhausted")

// AddressSpaceExhaustedError reports a component that does not fit its range.
type AddressSpaceExhaustedError struct {
	Component string // "member" or "group"
	Need      int
	Max       int
}

func (e *AddressSpaceExhaustedError) Error() string {
	return fmt.Sprintf("%s component needs %d values, range allows %d", e.Component, e.Need, e.Max)
}

func (e *AddressSpaceExhaustedError) Unwrap() error {
	return ErrAddressSpaceExhausted
}

// Assign numbers every host and server of topo in place. Hosts under Edge
// switch e get group e+1 and members 1..density; server k gets group
// edge+1+k and member 1.
func Assign(topo *model.Topology, base netip.Prefix) error {
	if !base.IsValid() || !base.Addr().Is4() || base.Bits() != 8 {
		return &model.ConfigurationError{Field: "addressing.base", Value: base, Reason: "must be an IPv4 /8"}
	}
	base = base.Masked()

	edges := topo.Tier(model.TierEdge)
	if topo.Spec.Density > MaxMember {
		return &AddressSpaceExhaustedError{Component: "member", Need: topo.Spec.Density, Max: MaxMember}
	}
	if need := len(edges) + len(topo.Servers); need > MaxGroup {
		return &AddressSpaceExhaustedError{Component: "group", Need: need, Max: MaxGroup}
	}

	for e, sw := range edges {
		for _, h := range topo.HostsOf(sw) {
			h.Addr = compose(base, e+1, h.IndexInEdge)
		}
	}
	for k, srv := range topo.Servers {
		srv.Addr = compose(base, len(edges)+1+k, 1)
	}

	return checkDisjoint(topo)
}

func compose(base netip.Prefix, group, member int) model.Address {
	b := base.Addr().As4()
	return model.Address{
		Group:  group,
		Member: member,
		IP:     netip.AddrFrom4([4]byte{b[0], byte(group), 0, byte(member)}),
	}
}

// checkDisjoint verifies that no two leaves share an address and that no
// server falls inside a host subnet.
func checkDisjoint(topo *model.Topology) error {
	var hosts netipx.IPSetBuilder
	seen := make(map[netip.Addr]string)

	for _, h := range topo.Hosts {
		if prev, ok := seen[h.Addr.IP]; ok {
			return fmt.Errorf("address %s assigned to both %s and %s", h.Addr.IP, prev, h.Name())
		}
		seen[h.Addr.IP] = h.Name()
		hosts.AddPrefix(h.Addr.Subnet())
	}
	hostSet, err := hosts.IPSet()
	if err != nil {
		return fmt.Errorf("building host subnet set: %w", err)
	}

	for _, s := range topo.Servers {
		if prev, ok := seen[s.Addr.IP]; ok {
			return fmt.Errorf("address %s assigned to both %s and %s", s.Addr.IP, prev, s.Name())
		}
		seen[s.Addr.IP] = s.Name()
		if hostSet.Contains(s.Addr.IP) {
			return fmt.Errorf("server %s address %s falls inside a host subnet", s.Name(), s.Addr.IP)
		}
	}
	return nil
}

// Subnets returns the top-level prefix of every host group and server in
// ascending group order.
func Subnets(topo *model.Topology) []netip.Prefix {
	var b netipx.IPSetBuilder
	for _, h := range topo.Hosts {
		if h.Addr.Valid() {
			b.AddPrefix(h.Addr.Subnet())
		}
	}
	for _, s := range topo.Servers {
		if s.Addr.Valid() {
			b.AddPrefix(s.Addr.Subnet())
		}
	}
	set, err := b.IPSet()
	if err != nil {
		return nil
	}
	// adjacent /16s merge in the set, split them back per group
	var out []netip.Prefix
	for _, p := range set.Prefixes() {
		out = append(out, split16(p)...)
	}
	return out
}

func split16(p netip.Prefix) []netip.Prefix {
	if p.Bits() >= model.SubnetBits {
		return []netip.Prefix{p}
	}
	r := netipx.RangeOfPrefix(p)
	var out []netip.Prefix
	for a := r.From(); r.Contains(a); {
		sub := netip.PrefixFrom(a, model.SubnetBits)
		out = append(out, sub)
		next := netipx.PrefixLastIP(sub).Next()
		if !next.IsValid() {
			break
		}
		a = next
	}
	return out
}
