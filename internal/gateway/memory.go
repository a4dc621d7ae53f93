package gateway

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/Huangmachi/exp-IPMAN/internal/compiler"
	"github.com/Huangmachi/exp-IPMAN/internal/model"
)

func init() {
	Register(func() Driver { return memoryDriver{} })
}

type memoryDriver struct{}

func (memoryDriver) Metadata() DriverMetadata {
	return DriverMetadata{
		Name:        "memory",
		DisplayName: "In-memory",
		Description: "Records applied entries in process",
	}
}

func (memoryDriver) Open(Options) (Gateway, error) {
	return NewMemoryGateway(), nil
}

// MemoryGateway keeps the last list applied to each switch.
type MemoryGateway struct {
	mu      sync.Mutex
	entries map[model.SwitchID][]compiler.Entry
	applies int
}

func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{entries: make(map[model.SwitchID][]compiler.Entry)}
}

// Apply replaces the switch's entries. A rule pointing at a group that was
// not applied earlier in the same list is rejected, like a real switch would.
func (g *MemoryGateway) Apply(ctx context.Context, sw model.SwitchID, entries []compiler.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	groups := make(map[uint32]bool)
	for _, e := range entries {
		switch e := e.(type) {
		case compiler.Group:
			groups[e.ID] = true
		case compiler.Rule:
			if e.Group != 0 && !groups[e.Group] {
				return &ApplyError{Switch: sw, Err: fmt.Errorf("rule %s references unknown group %d", e, e.Group)}
			}
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.entries[sw] = slices.Clone(entries)
	g.applies++
	return nil
}

// Entries returns what was last applied to a switch.
func (g *MemoryGateway) Entries(sw model.SwitchID) []compiler.Entry {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.entries[sw])
}

// Switches returns how many switches hold entries.
func (g *MemoryGateway) Switches() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

// Applies returns how many Apply calls succeeded.
func (g *MemoryGateway) Applies() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.applies
}
