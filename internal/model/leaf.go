package model

import (
	"fmt"
	"net/netip"
)

// SubnetBits is the prefix length of one top-level address component.
const SubnetBits = 16

// Address is a hierarchical leaf address. Group is the high-order (top-level)
// component, Member the low-order one.
type Address struct {
	Group  int
	Member int
	IP     netip.Addr
}

// Valid reports whether the address has been assigned.
func (a Address) Valid() bool {
	return a.IP.IsValid()
}

// Exact returns the single-address prefix.
func (a Address) Exact() netip.Prefix {
	return netip.PrefixFrom(a.IP, a.IP.BitLen())
}

// Subnet returns the prefix covering the whole top-level component.
func (a Address) Subnet() netip.Prefix {
	return netip.PrefixFrom(a.IP, SubnetBits).Masked()
}

func (a Address) String() string {
	if !a.Valid() {
		return "unassigned"
	}
	return fmt.Sprintf("%s (%d,%d)", a.IP, a.Group, a.Member)
}

// Host is a leaf endpoint attached to one Edge switch.
type Host struct {
	Ordinal     int // 0-based across the fabric
	Edge        int // index into Topology.Switches
	IndexInEdge int // 1-based position under its Edge switch
	Link        int // index into Topology.Links
	Addr        Address
}

// Name returns the legacy host name, e.g. "h001".
func (h *Host) Name() string {
	return legacyName("h", h.Ordinal+1)
}

// Server is an origin/content server attached to a tier-1 switch.
type Server struct {
	Ordinal int
	Switch  int // index into Topology.Switches
	Link    int
	Addr    Address
}

// Name returns the legacy server name, e.g. "ser001".
func (s *Server) Name() string {
	return legacyName("ser", s.Ordinal+1)
}
