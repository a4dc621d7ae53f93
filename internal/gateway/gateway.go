// Package gateway installs compiled forwarding tables on switches.
package gateway

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/Huangmachi/exp-IPMAN/internal/compiler"
	"github.com/Huangmachi/exp-IPMAN/internal/model"
)

// Gateway applies the entries of one switch. Entries arrive groups first,
// then rules. Applying the same list twice leaves the switch unchanged.
type Gateway interface {
	Apply(ctx context.Context, sw model.SwitchID, entries []compiler.Entry) error
}

// Options carry everything a driver may need to open a gateway.
type Options struct {
	OfctlPath   string
	VsctlPath   string
	Protocol    string // OpenFlow version passed to -O
	SetProtocol bool   // run ovs-vsctl set bridge ... protocols= first
	Timeout     time.Duration
	Out         io.Writer // script driver destination
	Executor    Executor  // nil means run real commands
	Logger      *zap.Logger
}

func (o *Options) setDefaults() {
	if o.OfctlPath == "" {
		o.OfctlPath = "ovs-ofctl"
	}
	if o.VsctlPath == "" {
		o.VsctlPath = "ovs-vsctl"
	}
	if o.Protocol == "" {
		o.Protocol = "OpenFlow13"
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// DriverMetadata describes a driver for discovery and validation.
type DriverMetadata struct {
	Name        string   // config key, e.g. "ofctl"
	DisplayName string   // human-readable name
	Description string   // one-line description
	Binaries    []string // executables the driver shells out to
}

// Driver opens gateways of one kind.
type Driver interface {
	Metadata() DriverMetadata
	Open(opts Options) (Gateway, error)
}

var registry = map[string]func() Driver{}

// Register adds a driver factory. Each driver calls this in its init().
func Register(factory func() Driver) {
	registry[factory().Metadata().Name] = factory
}

// Drivers returns the metadata of every registered driver sorted by name.
func Drivers() []DriverMetadata {
	out := make([]DriverMetadata, 0, len(registry))
	for _, f := range registry {
		out = append(out, f().Metadata())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Open looks a driver up by name and opens a gateway with it.
func Open(name string, opts Options) (Gateway, error) {
	f, ok := registry[name]
	if !ok {
		return nil, &model.ConfigurationError{Field: "gateway.driver", Value: name, Reason: "unknown driver"}
	}
	opts.setDefaults()
	gw, err := f().Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening %s gateway: %w", name, err)
	}
	return gw, nil
}
