package addressing

import (
	"errors"
	"fmt"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Huangmachi/exp-IPMAN/internal/model"
)

func buildAssigned(t *testing.T, density int) *model.Topology {
	t.Helper()
	topo, err := model.BuildTopology(model.DefaultSpec(density))
	require.NoError(t, err)
	require.NoError(t, Assign(topo, DefaultBase))
	return topo
}

func TestAssignDefaultDensity(t *testing.T) {
	topo := buildAssigned(t, 15)

	edges := topo.Tier(model.TierEdge)
	for e, sw := range edges {
		hosts := topo.HostsOf(sw)
		require.Len(t, hosts, 15)
		for i, h := range hosts {
			assert.Equal(t, fmt.Sprintf("10.%d.0.%d", e+1, i+1), h.Addr.IP.String())
			assert.Equal(t, e+1, h.Addr.Group)
			assert.Equal(t, i+1, h.Addr.Member)
		}
	}

	want := []string{"10.3.0.1", "10.4.0.1", "10.5.0.1"}
	for i, s := range topo.Servers {
		assert.Equal(t, want[i], s.Addr.IP.String())
		assert.Equal(t, 1, s.Addr.Member)
	}
}

func TestAssignUniqueAndGrouped(t *testing.T) {
	for _, d := range []int{1, 7, 254} {
		t.Run(fmt.Sprintf("d=%d", d), func(t *testing.T) {
			topo := buildAssigned(t, d)

			seen := make(map[netip.Addr]bool)
			for _, h := range topo.Hosts {
				assert.False(t, seen[h.Addr.IP], "duplicate %s", h.Addr.IP)
				seen[h.Addr.IP] = true
			}
			for _, s := range topo.Servers {
				assert.False(t, seen[s.Addr.IP], "duplicate %s", s.Addr.IP)
				seen[s.Addr.IP] = true
			}

			// same group iff same edge switch
			for _, a := range topo.Hosts {
				for _, b := range topo.Hosts {
					assert.Equal(t, a.Edge == b.Edge, a.Addr.Group == b.Addr.Group)
				}
			}

			hostGroups := make(map[int]bool)
			for _, h := range topo.Hosts {
				hostGroups[h.Addr.Group] = true
			}
			serverGroups := make(map[int]bool)
			for _, s := range topo.Servers {
				assert.False(t, hostGroups[s.Addr.Group])
				assert.False(t, serverGroups[s.Addr.Group])
				serverGroups[s.Addr.Group] = true
			}
		})
	}
}

func TestAssignExhausted(t *testing.T) {
	topo, err := model.BuildTopology(model.DefaultSpec(255))
	require.NoError(t, err)

	err = Assign(topo, DefaultBase)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAddressSpaceExhausted))

	var aerr *AddressSpaceExhaustedError
	require.True(t, errors.As(err, &aerr))
	assert.Equal(t, "member", aerr.Component)
	assert.Equal(t, 255, aerr.Need)
	assert.Equal(t, MaxMember, aerr.Max)
}

func TestAssignGroupExhausted(t *testing.T) {
	spec := model.DefaultSpec(1)
	spec.Edge = 253
	topo, err := model.BuildTopology(spec)
	require.NoError(t, err)

	err = Assign(topo, DefaultBase)
	var aerr *AddressSpaceExhaustedError
	require.True(t, errors.As(err, &aerr))
	assert.Equal(t, "group", aerr.Component)
	assert.Equal(t, 256, aerr.Need)
}

func TestAssignBase(t *testing.T) {
	topo, err := model.BuildTopology(model.DefaultSpec(2))
	require.NoError(t, err)

	require.NoError(t, Assign(topo, netip.MustParsePrefix("172.0.0.0/8")))
	assert.Equal(t, "172.1.0.1", topo.Hosts[0].Addr.IP.String())
	assert.Equal(t, "172.3.0.1", topo.Servers[0].Addr.IP.String())

	for _, bad := range []string{"10.0.0.0/16", "fd00::/8"} {
		err := Assign(topo, netip.MustParsePrefix(bad))
		assert.True(t, errors.Is(err, model.ErrConfiguration), bad)
	}
}

func TestSubnets(t *testing.T) {
	topo := buildAssigned(t, 15)

	var got []string
	for _, p := range Subnets(topo) {
		got = append(got, p.String())
	}
	assert.Equal(t, []string{
		"10.1.0.0/16",
		"10.2.0.0/16",
		"10.3.0.0/16",
		"10.4.0.0/16",
		"10.5.0.0/16",
	}, got)
}
