package compiler

import (
	"fmt"
	"net/netip"
	"slices"

	"github.com/gopacket/gopacket/layers"

	"github.com/Huangmachi/exp-IPMAN/internal/model"
)

// Protocol is the packet class a rule matches on.
type Protocol int

const (
	ProtocolARP Protocol = iota
	ProtocolIP
)

// Protocols lists the classes every destination is emitted for, in order.
var Protocols = []Protocol{ProtocolARP, ProtocolIP}

func (p Protocol) String() string {
	switch p {
	case ProtocolARP:
		return "arp"
	case ProtocolIP:
		return "ip"
	}
	return fmt.Sprintf("protocol(%d)", int(p))
}

// MarshalText renders the class by name in YAML and JSON exports.
func (p Protocol) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// EtherType returns the Ethernet type field the class corresponds to.
func (p Protocol) EtherType() layers.EthernetType {
	if p == ProtocolARP {
		return layers.EthernetTypeARP
	}
	return layers.EthernetTypeIPv4
}

// Entry is one item installed on a switch: a Group or a Rule.
type Entry interface {
	isEntry()
}

// Group is a select group spreading flows uniformly over its buckets.
type Group struct {
	ID    uint32 `json:"id" yaml:"id"`
	Ports []int  `json:"ports" yaml:"ports"`
}

func (Group) isEntry() {}

func (g Group) String() string {
	return fmt.Sprintf("group %d %v", g.ID, g.Ports)
}

// Rule matches a destination prefix for one protocol class and forwards to
// either a port or a group. Exactly one of Port and Group is non-zero.
type Rule struct {
	Match      netip.Prefix `json:"match" yaml:"match"`
	Protocol   Protocol     `json:"protocol" yaml:"protocol"`
	Priority   int          `json:"priority" yaml:"priority"`
	Port       int          `json:"port,omitempty" yaml:"port,omitempty"`
	Group      uint32       `json:"group,omitempty" yaml:"group,omitempty"`
	Downstream bool         `json:"downstream" yaml:"downstream"`
}

func (Rule) isEntry() {}

// Exact reports whether the rule matches a single address.
func (r Rule) Exact() bool {
	return r.Match.Bits() == r.Match.Addr().BitLen()
}

// Action returns the action in ovs-ofctl syntax.
func (r Rule) Action() string {
	if r.Group != 0 {
		return fmt.Sprintf("group:%d", r.Group)
	}
	return fmt.Sprintf("output:%d", r.Port)
}

func (r Rule) String() string {
	return fmt.Sprintf("%s %s -> %s", r.Protocol, r.Match, r.Action())
}

// Table is the compiled state of one switch.
type Table struct {
	Switch model.SwitchID
	Groups []Group
	Rules  []Rule
}

// Entries returns groups first, then rules, in installation order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, 0, len(t.Groups)+len(t.Rules))
	for _, g := range t.Groups {
		out = append(out, g)
	}
	for _, r := range t.Rules {
		out = append(out, r)
	}
	return out
}

// Group returns the group with the given id.
func (t *Table) Group(id uint32) (Group, bool) {
	for _, g := range t.Groups {
		if g.ID == id {
			return g, true
		}
	}
	return Group{}, false
}

// Ports returns every port referenced by the table's rules, directly or
// through a group, in ascending order.
func (t *Table) Ports() []int {
	seen := make(map[int]bool)
	for _, r := range t.Rules {
		if r.Group == 0 {
			seen[r.Port] = true
			continue
		}
		if g, ok := t.Group(r.Group); ok {
			for _, p := range g.Ports {
				seen[p] = true
			}
		}
	}
	out := make([]int, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Lookup returns the longest-prefix rule matching addr for a protocol class.
func (t *Table) Lookup(proto Protocol, addr netip.Addr) (Rule, bool) {
	var best Rule
	found := false
	for _, r := range t.Rules {
		if r.Protocol != proto || !r.Match.Contains(addr) {
			continue
		}
		if !found || r.Match.Bits() > best.Match.Bits() {
			best, found = r, true
		}
	}
	return best, found
}

// Plan is the compiled forwarding state of a whole fabric, one table per
// switch in compile order.
type Plan struct {
	Scope  Scope
	Tables []*Table
}

// Table returns the table compiled for a switch.
func (p *Plan) Table(id model.SwitchID) (*Table, bool) {
	for _, t := range p.Tables {
		if t.Switch == id {
			return t, true
		}
	}
	return nil, false
}

// Counts returns the total number of groups and rules in the plan.
func (p *Plan) Counts() (groups, rules int) {
	for _, t := range p.Tables {
		groups += len(t.Groups)
		rules += len(t.Rules)
	}
	return groups, rules
}
