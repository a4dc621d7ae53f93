package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/gopacket/gopacket/layers"
	"go.uber.org/zap"

	"github.com/Huangmachi/exp-IPMAN/internal/compiler"
	"github.com/Huangmachi/exp-IPMAN/internal/model"
)

const groupExists = "OFPGMFC_GROUP_EXISTS"

func init() {
	Register(func() Driver { return ofctlDriver{} })
}

// FlowSpec renders a rule as an ovs-ofctl flow, e.g.
// "table=0,idle_timeout=0,hard_timeout=0,priority=10,arp,nw_dst=10.1.0.1,actions=output:1".
func FlowSpec(r compiler.Rule) string {
	dst := r.Match.String()
	if r.Exact() {
		dst = r.Match.Addr().String()
	}
	return fmt.Sprintf("table=0,idle_timeout=0,hard_timeout=0,priority=%d,%s,nw_dst=%s,actions=%s",
		r.Priority, protocolKeyword(r.Protocol), dst, r.Action())
}

// GroupSpec renders a select group, one bucket per port.
func GroupSpec(g compiler.Group) string {
	var b strings.Builder
	fmt.Fprintf(&b, "group_id=%d,type=select", g.ID)
	for _, p := range g.Ports {
		fmt.Fprintf(&b, ",bucket=output:%d", p)
	}
	return b.String()
}

func protocolKeyword(p compiler.Protocol) string {
	switch p.EtherType() {
	case layers.EthernetTypeARP:
		return "arp"
	case layers.EthernetTypeIPv4:
		return "ip"
	}
	return fmt.Sprintf("dl_type=0x%04x", uint16(p.EtherType()))
}

// Command is one external invocation.
type Command struct {
	Name string
	Args []string
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// commands builds the invocations installing entries on one bridge. Group
// additions come paired with the mod-group fallback used when the group
// already exists.
type commands struct {
	ofctl, vsctl, protocol string
}

func (c commands) setProtocol(bridge string) Command {
	return Command{Name: c.vsctl, Args: []string{"set", "bridge", bridge, "protocols=" + c.protocol}}
}

func (c commands) group(bridge string, g compiler.Group) (add, mod Command) {
	spec := GroupSpec(g)
	add = Command{Name: c.ofctl, Args: []string{"-O", c.protocol, "add-group", bridge, spec}}
	mod = Command{Name: c.ofctl, Args: []string{"-O", c.protocol, "mod-group", bridge, spec}}
	return add, mod
}

func (c commands) flow(bridge string, r compiler.Rule) Command {
	return Command{Name: c.ofctl, Args: []string{"-O", c.protocol, "add-flow", bridge, FlowSpec(r)}}
}

type ofctlDriver struct{}

func (ofctlDriver) Metadata() DriverMetadata {
	return DriverMetadata{
		Name:        "ofctl",
		DisplayName: "Open vSwitch",
		Description: "Installs groups and flows with ovs-ofctl",
		Binaries:    []string{"ovs-ofctl", "ovs-vsctl"},
	}
}

func (ofctlDriver) Open(opts Options) (Gateway, error) {
	ex := opts.Executor
	if ex == nil {
		ex = commandExecutor{timeout: opts.Timeout}
	}
	return &OfctlGateway{
		cmds:        commands{ofctl: opts.OfctlPath, vsctl: opts.VsctlPath, protocol: opts.Protocol},
		setProtocol: opts.SetProtocol,
		exec:        ex,
		logger:      opts.Logger,
	}, nil
}

// OfctlGateway drives Open vSwitch bridges named after the legacy switch
// names. Commands are not retried.
type OfctlGateway struct {
	cmds        commands
	setProtocol bool
	exec        Executor
	logger      *zap.Logger
}

func (g *OfctlGateway) Apply(ctx context.Context, sw model.SwitchID, entries []compiler.Entry) error {
	bridge := sw.Name()

	if g.setProtocol {
		if _, err := g.run(ctx, g.cmds.setProtocol(bridge)); err != nil {
			return &ApplyError{Switch: sw, Err: err}
		}
	}

	for _, e := range entries {
		var err error
		switch e := e.(type) {
		case compiler.Group:
			err = g.applyGroup(ctx, bridge, e)
		case compiler.Rule:
			_, err = g.run(ctx, g.cmds.flow(bridge, e))
		default:
			err = fmt.Errorf("unsupported entry %T", e)
		}
		if err != nil {
			return &ApplyError{Switch: sw, Err: err}
		}
	}
	return nil
}

func (g *OfctlGateway) applyGroup(ctx context.Context, bridge string, grp compiler.Group) error {
	add, mod := g.cmds.group(bridge, grp)
	out, err := g.run(ctx, add)
	if err == nil {
		return nil
	}
	if !strings.Contains(string(out), groupExists) {
		return err
	}
	g.logger.Debug("group exists, modifying", zap.String("bridge", bridge), zap.Uint32("group", grp.ID))
	_, err = g.run(ctx, mod)
	return err
}

func (g *OfctlGateway) run(ctx context.Context, c Command) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.logger.Debug("exec", zap.String("cmd", c.String()))
	out, err := g.exec.Run(ctx, c.Name, c.Args...)
	if err != nil {
		return out, &CommandError{Command: c.Name, Args: c.Args, Output: string(out), Err: err}
	}
	return out, nil
}
