package render

import (
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Huangmachi/exp-IPMAN/internal/addressing"
	"github.com/Huangmachi/exp-IPMAN/internal/compiler"
	"github.com/Huangmachi/exp-IPMAN/internal/config"
	"github.com/Huangmachi/exp-IPMAN/internal/model"
	"github.com/Huangmachi/exp-IPMAN/internal/provision"
)

func testFabric(t *testing.T, density int) *Fabric {
	t.Helper()
	topo, err := model.BuildTopology(model.DefaultSpec(density))
	require.NoError(t, err)
	require.NoError(t, addressing.Assign(topo, addressing.DefaultBase))
	require.NoError(t, provision.Apply(topo, provision.DefaultProfile()))
	plan, err := compiler.Compile(topo, compiler.DefaultOptions())
	require.NoError(t, err)
	return &Fabric{Topology: topo, Plan: plan}
}

func testConfig(detail string) *config.Config {
	cfg := config.Default()
	cfg.Render.DetailLevel = detail
	return cfg
}

// lineWith returns the first line containing every fragment.
func lineWith(out string, fragments ...string) string {
	for _, line := range strings.Split(out, "\n") {
		ok := true
		for _, f := range fragments {
			if !strings.Contains(line, f) {
				ok = false
				break
			}
		}
		if ok {
			return line
		}
	}
	return ""
}

func TestD2RendererStandard(t *testing.T) {
	f := testFabric(t, 2)
	output := RenderD2(f, testConfig("standard"))

	assert.True(t, strings.HasPrefix(output, "direction: down\n"))
	assert.Contains(t, output, `fabric: "IPMAN fabric (d=2)" {`)
	assert.Contains(t, output, `  metro: "Metro (GZ)" {`)
	assert.Contains(t, output, `  cdn: "Content Delivery" {`)
	assert.Contains(t, output, `    s2001: "2001" {`)
	assert.Contains(t, output, `tooltip: "core[0]: 1 groups, 8 rules"`)
	assert.Contains(t, output, `style.fill: "#EDE9FE"`)

	assert.Contains(t, output, `fabric.core.s2001 -- fabric.aggregation.s3001: "3.3 Mbit/s"`)
	assert.Contains(t, output, `fabric.metro.s1001 -- servers.ser001: "23.2 Mbit/s"`)
	assert.Contains(t, output, `hosts.under-4001 -- fabric.edge.s4001: "2 × 1 Mbit/s"`)
	assert.Contains(t, output, `under-4002: "2 hosts 10.2.0.0/16"`)
	assert.NotContains(t, output, "h001")
}

func TestD2RendererMinimal(t *testing.T) {
	f := testFabric(t, 2)
	output := RenderD2(f, testConfig("minimal"))

	assert.NotContains(t, output, "servers:")
	assert.NotContains(t, output, "hosts:")
	assert.NotContains(t, output, "icon:")
	assert.Contains(t, output, "fabric.agg")
	assert.Contains(t, output, "fabric.aggregation.s3001 -- fabric.edge.s4001\n")
}

func TestD2RendererDetailed(t *testing.T) {
	f := testFabric(t, 2)
	cfg := testConfig("detailed")
	cfg.Render.Direction = "right"
	cfg.Render.Theme = "dark"
	output := RenderD2(f, cfg)

	assert.True(t, strings.HasPrefix(output, "direction: right\n"))
	assert.Contains(t, output, `h001: "h001 — 10.1.0.1"`)
	assert.Contains(t, output, `ser003: "ser003 — 10.5.0.1"`)
	assert.Contains(t, output, `fabric.core.s2001 -- fabric.aggregation.s3001: "p3 ↔ p1 · 3.3 Mbit/s"`)
	assert.Contains(t, output, `fabric.edge.s4001 -- hosts.h001: "p1 ↔ p1 · 1 Mbit/s"`)
	assert.Contains(t, output, `style.fill: "#2E1065"`)
}

func TestTableRenderer(t *testing.T) {
	f := testFabric(t, 2)

	r, err := Get("table")
	require.NoError(t, err)

	out, err := r.Render(f, testConfig("standard"))
	require.NoError(t, err)
	assert.NotEmpty(t, lineWith(out, "BRIDGE", "GROUP", "BUCKETS"))
	assert.NotEmpty(t, lineWith(out, "4001", "select", "3,4"))
	assert.NotEmpty(t, lineWith(out, "4001", "up", "10.3.0.1/32", "group:1"))
	assert.NotEmpty(t, lineWith(out, "1001", "down", "10.3.0.1/32", "output:1"))
	assert.Empty(t, lineWith(out, "(0x0806)"))

	out, err = r.Render(f, testConfig("detailed"))
	require.NoError(t, err)
	assert.NotEmpty(t, lineWith(out, "5001", "arp (0x0806)", "10.5.0.1/32"))
	assert.NotEmpty(t, lineWith(out, "5001", "ip (0x0800)", "10.5.0.1/32"))

	out, err = r.Render(f, testConfig("minimal"))
	require.NoError(t, err)
	assert.NotEmpty(t, lineWith(out, "SWITCH", "RULES"))
	assert.NotEmpty(t, lineWith(out, "metro[0]", "1001", "0", "6", "1,2"))

	_, err = r.Render(&Fabric{Topology: f.Topology}, testConfig("standard"))
	assert.Error(t, err)
}

func TestYAMLRenderer(t *testing.T) {
	f := testFabric(t, 2)
	r, err := Get("yaml")
	require.NoError(t, err)

	out, err := r.Render(f, testConfig("detailed"))
	require.NoError(t, err)

	var doc Document
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	assert.Equal(t, 2, doc.Fabric.Density)
	assert.Equal(t, "host-server", doc.Fabric.Scope)
	assert.Len(t, doc.Switches, 9)
	assert.Len(t, doc.Hosts, 4)
	assert.Equal(t, Leaf{Name: "h003", Address: "10.2.0.1", Switch: "4002", Port: 1}, doc.Hosts[2])

	edge := doc.Switches[0]
	assert.Equal(t, "4001", edge.Name)
	assert.Equal(t, []compiler.Group{{ID: 1, Ports: []int{3, 4}}}, edge.Groups)
	assert.Equal(t, "3001", edge.Ports[2].Peer)
	assert.Equal(t, model.LinkAggEdge, edge.Ports[2].Class)
}

func TestJSONRenderer(t *testing.T) {
	f := testFabric(t, 15)
	r, err := Get("json")
	require.NoError(t, err)

	out, err := r.Render(f, testConfig("standard"))
	require.NoError(t, err)

	var doc Document
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Empty(t, doc.Hosts)
	assert.Equal(t, 45, doc.Fabric.Links)
	require.Len(t, doc.Servers, 3)
	assert.Equal(t, Leaf{Name: "ser001", Address: "10.3.0.1", Switch: "1001", Port: 1}, doc.Servers[0])

	i := slices.IndexFunc(doc.Switches, func(s Switch) bool { return s.Name == "2001" })
	require.GreaterOrEqual(t, i, 0)
	core := doc.Switches[i]
	assert.Equal(t, "3001", core.Ports[2].Peer)
	assert.InDelta(t, 3.3, core.Ports[2].Params.BandwidthMbps, 1e-9)
	assert.Equal(t, 1000, core.Ports[2].Params.MaxQueueSize)
	assert.Equal(t, Rule{Match: "10.1.0.0/16", Protocol: "arp", Action: "group:1", Priority: 10}, core.Rules[0])
}

func TestOfctlRenderer(t *testing.T) {
	f := testFabric(t, 1)
	r, err := Get("ofctl")
	require.NoError(t, err)

	out, err := r.Render(f, testConfig("standard"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "#!/bin/sh\n"))
	assert.Contains(t, out, "scope host-server")
	assert.Contains(t, out, "ovs-vsctl set bridge 4001 protocols=OpenFlow13\n")
	assert.Contains(t, out, "ovs-ofctl -O OpenFlow13 add-flow 5001 table=0,idle_timeout=0,hard_timeout=0,priority=10,arp,nw_dst=10.5.0.1,actions=output:1\n")

	// blocks follow compile order
	assert.Less(t, strings.Index(out, "# edge[0]"), strings.Index(out, "# aggregation[0]"))
	assert.Less(t, strings.Index(out, "# cdn[0]"), strings.Index(out, "# metro[0]"))
}

func TestGetUnknownFormat(t *testing.T) {
	_, err := Get("svg")
	assert.True(t, errors.Is(err, model.ErrConfiguration))

	expected := slices.Clone(config.Formats)
	slices.Sort(expected)
	assert.Equal(t, expected, Formats())
}

func TestThemes(t *testing.T) {
	assert.Equal(t, []string{"dark", "default", "monochrome", "ocean"}, ThemeNames())
	assert.Equal(t, "default", GetTheme("neon").Name)

	for _, name := range ThemeNames() {
		theme := GetTheme(name)
		for _, tier := range tierOrder {
			_, ok := theme.Colors[tier.String()]
			assert.True(t, ok, "%s has no color for %s", name, tier)
		}
	}
	assert.Equal(t, "#F9FAFB", GetTheme("default").ColorForElement("missing").Fill)
}
