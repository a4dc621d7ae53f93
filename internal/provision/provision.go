// Package provision attaches shaping parameters to every fabric link. The
// values feed the traffic-generation side of the testbed only; forwarding
// never reads them.
package provision

import (
	"fmt"

	"github.com/Huangmachi/exp-IPMAN/internal/model"
)

// Profile holds per-class bandwidths in Mbit/s and the shared queue size.
type Profile struct {
	MetroMbps    float64 `mapstructure:"gz_bw"`
	CDNMbps      float64 `mapstructure:"cdn_bw"`
	CoreAggMbps  float64 `mapstructure:"core_agg_bw"`
	AggEdgeMbps  float64 `mapstructure:"agg_edge_bw"`
	EdgeHostMbps float64 `mapstructure:"edge_host_bw"`
	MaxQueueSize int     `mapstructure:"max_queue_size"`
}

// DefaultProfile returns the bandwidths the testbed experiments run with.
func DefaultProfile() Profile {
	return Profile{
		MetroMbps:    23.2,
		CDNMbps:      26.1,
		CoreAggMbps:  3.3,
		AggEdgeMbps:  10,
		EdgeHostMbps: 1,
		MaxQueueSize: 1000,
	}
}

// Bandwidth returns the configured bandwidth for a link class.
func (p Profile) Bandwidth(class model.LinkClass) (float64, error) {
	switch class {
	case model.LinkMetro:
		return p.MetroMbps, nil
	case model.LinkCDN:
		return p.CDNMbps, nil
	case model.LinkCoreAgg:
		return p.CoreAggMbps, nil
	case model.LinkAggEdge:
		return p.AggEdgeMbps, nil
	case model.LinkEdgeHost:
		return p.EdgeHostMbps, nil
	}
	return 0, fmt.Errorf("unknown link class %q", class)
}

// Validate rejects non-positive bandwidths and queue sizes.
func (p Profile) Validate() error {
	for _, class := range []model.LinkClass{
		model.LinkMetro, model.LinkCDN, model.LinkCoreAgg, model.LinkAggEdge, model.LinkEdgeHost,
	} {
		bw, _ := p.Bandwidth(class)
		if bw <= 0 {
			return &model.ConfigurationError{Field: "links." + string(class) + "_bw", Value: bw, Reason: "bandwidth must be positive"}
		}
	}
	if p.MaxQueueSize <= 0 {
		return &model.ConfigurationError{Field: "links.max_queue_size", Value: p.MaxQueueSize, Reason: "queue size must be positive"}
	}
	return nil
}

// Apply sets the parameters of every link in topo according to its class.
func Apply(topo *model.Topology, p Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	for _, l := range topo.Links {
		bw, err := p.Bandwidth(l.Class)
		if err != nil {
			return fmt.Errorf("link %d: %w", l.Index, err)
		}
		l.Params = model.LinkParams{BandwidthMbps: bw, MaxQueueSize: p.MaxQueueSize}
	}
	return nil
}

// Summary counts links and aggregate capacity per class.
type Summary struct {
	Class         model.LinkClass
	Links         int
	BandwidthMbps float64
}

// Summarize returns one row per link class in a stable order.
func Summarize(topo *model.Topology) []Summary {
	order := []model.LinkClass{
		model.LinkMetro, model.LinkCDN, model.LinkCoreAgg, model.LinkAggEdge, model.LinkEdgeHost,
	}
	rows := make(map[model.LinkClass]*Summary)
	for _, c := range order {
		rows[c] = &Summary{Class: c}
	}
	for _, l := range topo.Links {
		if r, ok := rows[l.Class]; ok {
			r.Links++
			r.BandwidthMbps += l.Params.BandwidthMbps
		}
	}
	out := make([]Summary, 0, len(order))
	for _, c := range order {
		if rows[c].Links > 0 {
			out = append(out, *rows[c])
		}
	}
	return out
}
