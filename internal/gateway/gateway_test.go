package gateway

import (
	"bytes"
	"context"
	"errors"
	"net/netip"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Huangmachi/exp-IPMAN/internal/addressing"
	"github.com/Huangmachi/exp-IPMAN/internal/compiler"
	"github.com/Huangmachi/exp-IPMAN/internal/logging"
	"github.com/Huangmachi/exp-IPMAN/internal/model"
)

// fakeExecutor records invocations and fails those matching a subcommand.
type fakeExecutor struct {
	mu     sync.Mutex
	calls  []string
	failOn string
	output string
}

func (f *fakeExecutor) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, strings.Join(append([]string{name}, args...), " "))
	for _, a := range args {
		if f.failOn != "" && a == f.failOn {
			return []byte(f.output), errors.New("exit status 1")
		}
	}
	return nil, nil
}

func mustPrefix(s string) netip.Prefix {
	return netip.MustParsePrefix(s)
}

func compiledPlan(t *testing.T, density int) *compiler.Plan {
	t.Helper()
	topo, err := model.BuildTopology(model.DefaultSpec(density))
	require.NoError(t, err)
	require.NoError(t, addressing.Assign(topo, addressing.DefaultBase))
	plan, err := compiler.Compile(topo, compiler.DefaultOptions())
	require.NoError(t, err)
	return plan
}

func edge0(t *testing.T, plan *compiler.Plan) *compiler.Table {
	t.Helper()
	tb, ok := plan.Table(model.SwitchID{Tier: model.TierEdge, Ordinal: 0})
	require.True(t, ok)
	return tb
}

func TestFlowSpec(t *testing.T) {
	tests := []struct {
		name     string
		rule     compiler.Rule
		expected string
	}{
		{
			name:     "exact arp output",
			rule:     compiler.Rule{Match: mustPrefix("10.1.0.1/32"), Protocol: compiler.ProtocolARP, Priority: 10, Port: 1},
			expected: "table=0,idle_timeout=0,hard_timeout=0,priority=10,arp,nw_dst=10.1.0.1,actions=output:1",
		},
		{
			name:     "subnet ip group",
			rule:     compiler.Rule{Match: mustPrefix("10.2.0.0/16"), Protocol: compiler.ProtocolIP, Priority: 10, Group: 1},
			expected: "table=0,idle_timeout=0,hard_timeout=0,priority=10,ip,nw_dst=10.2.0.0/16,actions=group:1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FlowSpec(tt.rule))
		})
	}

	assert.Equal(t, "group_id=1,type=select,bucket=output:16,bucket=output:17",
		GroupSpec(compiler.Group{ID: 1, Ports: []int{16, 17}}))
}

func TestOfctlApply(t *testing.T) {
	plan := compiledPlan(t, 2)
	tb := edge0(t, plan)

	fx := &fakeExecutor{}
	gw, err := Open("ofctl", Options{Executor: fx, SetProtocol: true})
	require.NoError(t, err)
	require.NoError(t, gw.Apply(context.Background(), tb.Switch, tb.Entries()))

	require.Len(t, fx.calls, 1+len(tb.Groups)+len(tb.Rules))
	assert.Equal(t, "ovs-vsctl set bridge 4001 protocols=OpenFlow13", fx.calls[0])
	assert.Equal(t, "ovs-ofctl -O OpenFlow13 add-group 4001 group_id=1,type=select,bucket=output:3,bucket=output:4", fx.calls[1])
	assert.Equal(t, "ovs-ofctl -O OpenFlow13 add-flow 4001 table=0,idle_timeout=0,hard_timeout=0,priority=10,arp,nw_dst=10.1.0.1,actions=output:1", fx.calls[2])
	assert.Equal(t, "ovs-ofctl -O OpenFlow13 add-flow 4001 table=0,idle_timeout=0,hard_timeout=0,priority=10,ip,nw_dst=10.1.0.1,actions=output:1", fx.calls[3])
}

func TestOfctlGroupExists(t *testing.T) {
	plan := compiledPlan(t, 1)
	tb := edge0(t, plan)

	fx := &fakeExecutor{failOn: "add-group", output: "OFPT_ERROR (OF1.3): OFPGMFC_GROUP_EXISTS"}
	gw, err := Open("ofctl", Options{Executor: fx})
	require.NoError(t, err)
	require.NoError(t, gw.Apply(context.Background(), tb.Switch, tb.Entries()))

	assert.Contains(t, fx.calls[0], "add-group")
	assert.Contains(t, fx.calls[1], "mod-group 4001 group_id=1")
}

func TestOfctlCommandFailure(t *testing.T) {
	plan := compiledPlan(t, 1)
	tb := edge0(t, plan)

	fx := &fakeExecutor{failOn: "add-flow", output: "ovs-ofctl: 4001 is not a bridge or a socket"}
	gw, err := Open("ofctl", Options{Executor: fx})
	require.NoError(t, err)

	err = gw.Apply(context.Background(), tb.Switch, tb.Entries())
	require.Error(t, err)

	var aerr *ApplyError
	require.True(t, errors.As(err, &aerr))
	assert.Equal(t, tb.Switch, aerr.Switch)

	var cerr *CommandError
	require.True(t, errors.As(err, &cerr))
	assert.Contains(t, cerr.Error(), "not a bridge")
	// no retry, stops at the first failing flow
	assert.Len(t, fx.calls, 2)
}

func TestScriptGateway(t *testing.T) {
	plan := compiledPlan(t, 1)

	var buf bytes.Buffer
	gw, err := Open("script", Options{Out: &buf})
	require.NoError(t, err)

	_, err = Install(context.Background(), gw, plan, 4)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "# edge[0] (4001)\n")
	assert.Contains(t, out, "ovs-ofctl -O OpenFlow13 add-group 4001 group_id=1,type=select,bucket=output:2,bucket=output:3 2>/dev/null || ovs-ofctl -O OpenFlow13 mod-group 4001 group_id=1,type=select,bucket=output:2,bucket=output:3\n")
	assert.Contains(t, out, "ovs-ofctl -O OpenFlow13 add-flow 1001 table=0,idle_timeout=0,hard_timeout=0,priority=10,ip,nw_dst=10.3.0.1,actions=output:1\n")

	_, err = Open("script", Options{})
	assert.Error(t, err)
}

func TestInstallMemory(t *testing.T) {
	plan := compiledPlan(t, 3)
	gw := NewMemoryGateway()

	core, logs := observer.New(zap.InfoLevel)
	ctx := logging.CtxWith(context.Background(), zap.New(core))

	results, err := Install(ctx, gw, plan, 3)
	require.NoError(t, err)
	installed := logs.FilterMessage("switch installed")
	assert.Equal(t, len(plan.Tables), installed.Len())
	assert.Contains(t, installed.All()[0].ContextMap(), "bridge")
	require.Len(t, results, len(plan.Tables))
	assert.Equal(t, len(plan.Tables), gw.Switches())

	for i, tb := range plan.Tables {
		assert.Equal(t, tb.Switch, results[i].Switch)
		assert.False(t, results[i].Skipped)
		assert.NoError(t, results[i].Err)
		assert.Equal(t, tb.Entries(), gw.Entries(tb.Switch))
	}

	// reapplying leaves the recorded state unchanged
	_, err = Install(context.Background(), gw, plan, 1)
	require.NoError(t, err)
	assert.Equal(t, 2*len(plan.Tables), gw.Applies())
	assert.Equal(t, edge0(t, plan).Entries(), gw.Entries(edge0(t, plan).Switch))
}

type failingGateway struct {
	fail model.SwitchID
}

func (g failingGateway) Apply(_ context.Context, sw model.SwitchID, _ []compiler.Entry) error {
	if sw == g.fail {
		return errors.New("bridge unreachable")
	}
	return nil
}

func TestInstallFailFast(t *testing.T) {
	plan := compiledPlan(t, 1)
	first := plan.Tables[0].Switch

	results, err := Install(context.Background(), failingGateway{fail: first}, plan, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bridge unreachable")

	require.Len(t, results, len(plan.Tables))
	assert.Error(t, results[0].Err)
	for _, r := range results[1:] {
		assert.True(t, r.Skipped, "%s should not have been attempted", r.Switch)
	}
}

func TestInstallCanceled(t *testing.T) {
	plan := compiledPlan(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Install(ctx, NewMemoryGateway(), plan, 2)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryRejectsUnknownGroup(t *testing.T) {
	gw := NewMemoryGateway()
	sw := model.SwitchID{Tier: model.TierEdge, Ordinal: 0}
	entries := []compiler.Entry{
		compiler.Rule{Match: mustPrefix("10.3.0.1/32"), Protocol: compiler.ProtocolIP, Priority: 10, Group: 1},
	}
	err := gw.Apply(context.Background(), sw, entries)
	var aerr *ApplyError
	require.True(t, errors.As(err, &aerr))
	assert.Zero(t, gw.Switches())
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open("netconf", Options{})
	assert.True(t, errors.Is(err, model.ErrConfiguration))

	var names []string
	for _, d := range Drivers() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"memory", "ofctl", "script"}, names)
}
