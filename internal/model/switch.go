package model

import "fmt"

// SwitchID identifies a switch by tier and 0-based ordinal within the tier.
type SwitchID struct {
	Tier    Tier
	Ordinal int
}

// String returns a structured display form such as "edge[0]".
func (id SwitchID) String() string {
	return fmt.Sprintf("%s[%d]", id.Tier, id.Ordinal)
}

// Name returns the legacy bridge name: the tier digit followed by the
// zero-padded 1-based ordinal, e.g. "4001" for edge[0].
func (id SwitchID) Name() string {
	return legacyName(fmt.Sprintf("%d", int(id.Tier)), id.Ordinal+1)
}

// legacyName pads n to at least three digits behind prefix, matching the
// names the testbed scripts gave to bridges and hosts.
func legacyName(prefix string, n int) string {
	switch {
	case n >= 100:
		return fmt.Sprintf("%s%d", prefix, n)
	case n >= 10:
		return fmt.Sprintf("%s0%d", prefix, n)
	default:
		return fmt.Sprintf("%s00%d", prefix, n)
	}
}

// Port is one numbered switch or leaf port. Numbers start at 1 and follow
// link construction order.
type Port struct {
	Number int
	Link   int // index into Topology.Links
}

// Switch is a fabric switch with its ordered port list.
type Switch struct {
	ID    SwitchID
	Index int // index into Topology.Switches
	Ports []Port
}

// Name returns the legacy bridge name.
func (s *Switch) Name() string {
	return s.ID.Name()
}

// Port returns the port with the given number.
func (s *Switch) Port(number int) (Port, bool) {
	if number < 1 || number > len(s.Ports) {
		return Port{}, false
	}
	return s.Ports[number-1], true
}

// PortNumbers returns every port number on the switch in ascending order.
func (s *Switch) PortNumbers() []int {
	out := make([]int, len(s.Ports))
	for i, p := range s.Ports {
		out[i] = p.Number
	}
	return out
}

func (s *Switch) addPort(link int) int {
	n := len(s.Ports) + 1
	s.Ports = append(s.Ports, Port{Number: n, Link: link})
	return n
}
