package render

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Huangmachi/exp-IPMAN/internal/compiler"
	"github.com/Huangmachi/exp-IPMAN/internal/config"
	"github.com/Huangmachi/exp-IPMAN/internal/model"
)

// Fabric bundles what the renderers draw from. Plan may be nil for formats
// that only describe the topology.
type Fabric struct {
	Topology *model.Topology
	Plan     *compiler.Plan
}

// Renderer turns a fabric into one output format.
type Renderer interface {
	Render(f *Fabric, cfg *config.Config) (string, error)
}

var errNoPlan = errors.New("format needs a compiled plan")

var renderers = map[string]func() Renderer{
	"d2":    func() Renderer { return &D2Renderer{} },
	"table": func() Renderer { return &TableRenderer{} },
	"yaml":  func() Renderer { return &YAMLRenderer{} },
	"json":  func() Renderer { return &JSONRenderer{} },
	"ofctl": func() Renderer { return &OfctlRenderer{} },
}

// Get returns the renderer for a format name.
func Get(format string) (Renderer, error) {
	f, ok := renderers[format]
	if !ok {
		return nil, &model.ConfigurationError{Field: "render.format", Value: format, Reason: fmt.Sprintf("must be one of %v", Formats())}
	}
	return f(), nil
}

// Formats returns every known format name, sorted.
func Formats() []string {
	out := make([]string, 0, len(renderers))
	for name := range renderers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// RenderD2 generates a D2 diagram of the fabric.
func RenderD2(f *Fabric, cfg *config.Config) string {
	r := &D2Renderer{
		DetailLevel: cfg.Render.DetailLevel,
	}
	out, _ := r.Render(f, cfg)
	return out
}
