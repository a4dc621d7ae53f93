package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/Huangmachi/exp-IPMAN/internal/compiler"
	"github.com/Huangmachi/exp-IPMAN/internal/model"
)

func init() {
	Register(func() Driver { return scriptDriver{} })
}

type scriptDriver struct{}

func (scriptDriver) Metadata() DriverMetadata {
	return DriverMetadata{
		Name:        "script",
		DisplayName: "Shell script",
		Description: "Writes the ovs-ofctl commands instead of running them",
	}
}

func (scriptDriver) Open(opts Options) (Gateway, error) {
	if opts.Out == nil {
		return nil, errors.New("script driver needs an output writer")
	}
	return &ScriptGateway{
		w:           opts.Out,
		cmds:        commands{ofctl: opts.OfctlPath, vsctl: opts.VsctlPath, protocol: opts.Protocol},
		setProtocol: opts.SetProtocol,
	}, nil
}

// ScriptGateway writes one shell block per switch. Blocks never interleave.
type ScriptGateway struct {
	mu          sync.Mutex
	w           io.Writer
	cmds        commands
	setProtocol bool
}

func (g *ScriptGateway) Apply(ctx context.Context, sw model.SwitchID, entries []compiler.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	bridge := sw.Name()

	var lines []string
	lines = append(lines, fmt.Sprintf("# %s (%s)", sw, bridge))
	if g.setProtocol {
		lines = append(lines, g.cmds.setProtocol(bridge).String())
	}
	for _, e := range entries {
		switch e := e.(type) {
		case compiler.Group:
			add, mod := g.cmds.group(bridge, e)
			lines = append(lines, fmt.Sprintf("%s 2>/dev/null || %s", add, mod))
		case compiler.Rule:
			lines = append(lines, g.cmds.flow(bridge, e).String())
		default:
			return &ApplyError{Switch: sw, Err: fmt.Errorf("unsupported entry %T", e)}
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	for _, l := range lines {
		if _, err := fmt.Fprintln(g.w, l); err != nil {
			return &ApplyError{Switch: sw, Err: err}
		}
	}
	return nil
}
