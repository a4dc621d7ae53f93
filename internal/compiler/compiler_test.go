package compiler

import (
	"errors"
	"fmt"
	"net/netip"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Huangmachi/exp-IPMAN/internal/addressing"
	"github.com/Huangmachi/exp-IPMAN/internal/model"
)

func buildFabric(t *testing.T, spec model.Spec) *model.Topology {
	t.Helper()
	topo, err := model.BuildTopology(spec)
	require.NoError(t, err)
	require.NoError(t, addressing.Assign(topo, addressing.DefaultBase))
	return topo
}

func compileFabric(t *testing.T, spec model.Spec, scope Scope) (*model.Topology, *Plan) {
	t.Helper()
	topo := buildFabric(t, spec)
	plan, err := Compile(topo, Options{Scope: scope})
	require.NoError(t, err)
	return topo, plan
}

func table(t *testing.T, plan *Plan, tier model.Tier, ordinal int) *Table {
	t.Helper()
	tb, ok := plan.Table(model.SwitchID{Tier: tier, Ordinal: ordinal})
	require.True(t, ok, "no table for %s[%d]", tier, ordinal)
	return tb
}

// flows renders one line per match, checking the ARP and IP rules agree.
func flows(t *testing.T, tb *Table) []string {
	t.Helper()
	require.Zero(t, len(tb.Rules)%2)
	var out []string
	for i := 0; i < len(tb.Rules); i += 2 {
		arp, ip := tb.Rules[i], tb.Rules[i+1]
		require.Equal(t, ProtocolARP, arp.Protocol)
		require.Equal(t, ProtocolIP, ip.Protocol)
		require.Equal(t, arp.Match, ip.Match)
		require.Equal(t, arp.Action(), ip.Action())
		out = append(out, fmt.Sprintf("%s %s", arp.Match, arp.Action()))
	}
	return out
}

func TestCompileTestbedTables(t *testing.T) {
	_, plan := compileFabric(t, model.DefaultSpec(15), ScopeHostServer)

	var order []string
	for _, tb := range plan.Tables {
		order = append(order, tb.Switch.String())
	}
	assert.Equal(t, []string{
		"edge[0]", "edge[1]",
		"aggregation[0]", "aggregation[1]",
		"core[0]", "core[1]",
		"cdn[0]",
		"metro[0]", "metro[1]",
	}, order)

	tests := []struct {
		name    string
		tier    model.Tier
		ordinal int
		groups  []Group
		flows   []string
	}{
		{
			name: "aggregation[0]", tier: model.TierAggregation, ordinal: 0,
			groups: []Group{{ID: 1, Ports: []int{1, 2}}},
			flows: []string{
				"10.1.0.0/16 output:3",
				"10.2.0.0/16 output:4",
				"10.3.0.1/32 output:1",
				"10.4.0.1/32 output:2",
				"10.5.0.1/32 group:1",
			},
		},
		{
			name: "core[0]", tier: model.TierCore, ordinal: 0,
			groups: []Group{{ID: 1, Ports: []int{3, 4}}},
			flows: []string{
				"10.1.0.0/16 group:1",
				"10.2.0.0/16 group:1",
				"10.3.0.1/32 output:2",
				"10.5.0.1/32 output:1",
			},
		},
		{
			name: "core[1]", tier: model.TierCore, ordinal: 1,
			groups: []Group{{ID: 1, Ports: []int{3, 4}}},
			flows: []string{
				"10.1.0.0/16 group:1",
				"10.2.0.0/16 group:1",
				"10.4.0.1/32 output:2",
				"10.5.0.1/32 output:1",
			},
		},
		{
			name: "cdn[0]", tier: model.TierContentDelivery, ordinal: 0,
			groups: []Group{{ID: 1, Ports: []int{2, 3}}},
			flows: []string{
				"10.5.0.1/32 output:1",
				"10.1.0.0/16 group:1",
				"10.2.0.0/16 group:1",
			},
		},
		{
			name: "metro[0]", tier: model.TierMetro, ordinal: 0,
			flows: []string{
				"10.3.0.1/32 output:1",
				"10.1.0.0/16 output:2",
				"10.2.0.0/16 output:2",
			},
		},
		{
			name: "metro[1]", tier: model.TierMetro, ordinal: 1,
			flows: []string{
				"10.4.0.1/32 output:1",
				"10.1.0.0/16 output:2",
				"10.2.0.0/16 output:2",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := table(t, plan, tt.tier, tt.ordinal)
			assert.Equal(t, tt.groups, tb.Groups)
			assert.Equal(t, tt.flows, flows(t, tb))
		})
	}

	t.Run("edges", func(t *testing.T) {
		for e := 0; e < 2; e++ {
			tb := table(t, plan, model.TierEdge, e)
			assert.Equal(t, []Group{{ID: 1, Ports: []int{16, 17}}}, tb.Groups)

			got := flows(t, tb)
			require.Len(t, got, 18)
			for i := 0; i < 15; i++ {
				assert.Equal(t, fmt.Sprintf("10.%d.0.%d/32 output:%d", e+1, i+1, i+1), got[i])
			}
			assert.Equal(t, []string{
				"10.3.0.1/32 group:1",
				"10.4.0.1/32 group:1",
				"10.5.0.1/32 group:1",
			}, got[15:])
		}
	})
}

func TestCompileRuleFields(t *testing.T) {
	_, plan := compileFabric(t, model.DefaultSpec(4), ScopeHostServer)

	for _, tb := range plan.Tables {
		for _, r := range tb.Rules {
			assert.Equal(t, DefaultPriority, r.Priority)
			assert.True(t, (r.Port == 0) != (r.Group == 0), "%s: %s", tb.Switch, r)
			if r.Downstream {
				assert.True(t, r.Exact(), "%s: downstream rule %s is not exact", tb.Switch, r)
				assert.Zero(t, r.Group)
			}
		}
	}
}

func TestCompilePortUnion(t *testing.T) {
	specs := []model.Spec{
		model.DefaultSpec(1),
		model.DefaultSpec(15),
		{Density: 3, Edge: 3, Aggregation: 4, Core: 3, Metro: 2, CDN: 1, Servers: 3},
	}
	for _, scope := range []Scope{ScopeHostServer, ScopeAllPairs} {
		for _, spec := range specs {
			t.Run(fmt.Sprintf("%s/%+v", scope, spec), func(t *testing.T) {
				topo, plan := compileFabric(t, spec, scope)
				for _, sw := range topo.Switches {
					tb := table(t, plan, sw.ID.Tier, sw.ID.Ordinal)
					assert.Equal(t, sw.PortNumbers(), tb.Ports(), "%s", sw.ID)
				}
			})
		}
	}
}

func TestCompileMultipathAlwaysGroups(t *testing.T) {
	spec := model.Spec{Density: 2, Edge: 2, Aggregation: 3, Core: 2, Metro: 2, CDN: 1, Servers: 3}
	_, plan := compileFabric(t, spec, ScopeAllPairs)

	tb := table(t, plan, model.TierEdge, 0)
	require.Len(t, tb.Groups, 1)
	assert.Equal(t, []int{3, 4, 5}, tb.Groups[0].Ports)
	for _, r := range tb.Rules {
		if !r.Downstream {
			assert.Equal(t, uint32(1), r.Group, "%s", r)
		}
	}
}

func TestCompileIdempotent(t *testing.T) {
	topo := buildFabric(t, model.DefaultSpec(15))

	first, err := Compile(topo, DefaultOptions())
	require.NoError(t, err)
	second, err := Compile(topo, DefaultOptions())
	require.NoError(t, err)

	prefixes := cmp.Comparer(func(a, b netip.Prefix) bool { return a == b })
	if diff := cmp.Diff(first, second, prefixes); diff != "" {
		t.Errorf("recompilation differs (-first +second):\n%s", diff)
	}
}

func TestCompileAllPairsCoversEveryDestination(t *testing.T) {
	_, plan := compileFabric(t, model.DefaultSpec(2), ScopeAllPairs)

	edge1 := table(t, plan, model.TierEdge, 1)
	assert.Contains(t, flows(t, edge1), "10.1.0.0/16 group:1")

	metro0 := table(t, plan, model.TierMetro, 0)
	assert.Equal(t, []string{
		"10.3.0.1/32 output:1",
		"10.1.0.0/16 output:2",
		"10.2.0.0/16 output:2",
		"10.4.0.1/32 output:2",
		"10.5.0.1/32 output:2",
	}, flows(t, metro0))
}

func TestCompileErrors(t *testing.T) {
	t.Run("unassigned", func(t *testing.T) {
		topo, err := model.BuildTopology(model.DefaultSpec(2))
		require.NoError(t, err)
		_, err = Compile(topo, DefaultOptions())
		assert.True(t, errors.Is(err, ErrUnassignedAddress))
	})

	t.Run("detached server", func(t *testing.T) {
		topo := buildFabric(t, model.DefaultSpec(2))
		topo.Servers[2].Link = -1
		plan, err := Compile(topo, DefaultOptions())
		assert.Nil(t, plan)
		var uerr *UnreachableDestinationError
		require.True(t, errors.As(err, &uerr))
		assert.Contains(t, uerr.Destination, "ser003")
		assert.True(t, errors.Is(err, ErrUnreachableDestination))
	})

	t.Run("duplicate host address", func(t *testing.T) {
		topo := buildFabric(t, model.DefaultSpec(2))
		topo.Hosts[1].Addr = topo.Hosts[0].Addr
		plan, err := Compile(topo, DefaultOptions())
		assert.Nil(t, plan)
		var derr *DuplicateRuleError
		require.True(t, errors.As(err, &derr))
		assert.Equal(t, model.SwitchID{Tier: model.TierEdge, Ordinal: 0}, derr.Switch)
		assert.Equal(t, "10.1.0.1/32", derr.Existing.String())
		assert.True(t, errors.Is(err, ErrDuplicateRule))
	})

	t.Run("server inside host subnet", func(t *testing.T) {
		topo := buildFabric(t, model.DefaultSpec(2))
		topo.Servers[0].Addr.IP = netip.MustParseAddr("10.1.0.200")
		_, err := Compile(topo, DefaultOptions())
		var derr *DuplicateRuleError
		require.True(t, errors.As(err, &derr))
		// the first switch carrying both the subnet and the server route
		assert.Equal(t, model.SwitchID{Tier: model.TierAggregation, Ordinal: 0}, derr.Switch)
		assert.Equal(t, "10.1.0.0/16", derr.Existing.String())
		assert.Equal(t, "10.1.0.200/32", derr.Match.String())
	})

	t.Run("unknown scope", func(t *testing.T) {
		topo := buildFabric(t, model.DefaultSpec(2))
		_, err := Compile(topo, Options{Scope: "spine-only"})
		assert.True(t, errors.Is(err, model.ErrConfiguration))
	})
}

func TestParseScope(t *testing.T) {
	tests := []struct {
		input    string
		expected Scope
		wantErr  bool
	}{
		{"", ScopeHostServer, false},
		{"host-server", ScopeHostServer, false},
		{"ALL-PAIRS", ScopeAllPairs, false},
		{"mesh", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseScope(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestProtocolEtherType(t *testing.T) {
	assert.Equal(t, uint16(0x0806), uint16(ProtocolARP.EtherType()))
	assert.Equal(t, uint16(0x0800), uint16(ProtocolIP.EtherType()))
	assert.Equal(t, "arp", ProtocolARP.String())
}
