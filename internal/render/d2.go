package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Huangmachi/exp-IPMAN/internal/config"
	"github.com/Huangmachi/exp-IPMAN/internal/model"
	"github.com/Huangmachi/exp-IPMAN/internal/util"
)

// tierOrder is the top-down drawing order.
var tierOrder = []model.Tier{
	model.TierMetro,
	model.TierContentDelivery,
	model.TierCore,
	model.TierAggregation,
	model.TierEdge,
}

// D2Renderer generates D2 diagram text of the fabric.
type D2Renderer struct {
	DetailLevel string // minimal, standard, detailed
}

func (r *D2Renderer) detail() string {
	if r.DetailLevel == "" {
		return "standard"
	}
	return r.DetailLevel
}

func (r *D2Renderer) Render(f *Fabric, cfg *config.Config) (string, error) {
	if cfg.Render.DetailLevel != "" {
		r.DetailLevel = cfg.Render.DetailLevel
	}
	theme := GetTheme(cfg.Render.Theme)
	topo := f.Topology
	var b strings.Builder

	direction := cfg.Render.Direction
	if direction == "" {
		direction = "down"
	}
	fmt.Fprintf(&b, "direction: %s\n\n", direction)

	fmt.Fprintf(&b, "fabric: %s {\n", util.Quote(fmt.Sprintf("IPMAN fabric (d=%d)", topo.Spec.Density)))
	for _, tier := range tierOrder {
		switches := topo.Tier(tier)
		if len(switches) == 0 {
			continue
		}
		color := theme.ColorForTier(tier)
		fmt.Fprintf(&b, "  %s: %s {\n", util.SanitizeID(tier.String()), util.Quote(tierLabel(tier)))
		fmt.Fprintf(&b, "    style.fill: %q\n", color.Fill)
		fmt.Fprintf(&b, "    style.stroke: %q\n", color.Stroke)
		b.WriteString("\n")
		for _, sw := range switches {
			r.renderSwitch(&b, f, sw, "    ")
		}
		b.WriteString("  }\n")
	}
	b.WriteString("}\n\n")

	if r.detail() != "minimal" {
		r.renderServers(&b, topo, theme)
		r.renderHosts(&b, topo, theme)
	}
	r.renderLinks(&b, topo)

	return b.String(), nil
}

func tierLabel(t model.Tier) string {
	switch t {
	case model.TierMetro:
		return "Metro (GZ)"
	case model.TierContentDelivery:
		return "Content Delivery"
	}
	s := t.String()
	return strings.ToUpper(s[:1]) + s[1:]
}

func (r *D2Renderer) renderSwitch(b *strings.Builder, f *Fabric, sw *model.Switch, indent string) {
	fmt.Fprintf(b, "%s%s: %s {\n", indent, switchNodeID(sw), util.Quote(sw.Name()))
	if r.detail() != "minimal" {
		fmt.Fprintf(b, "%s  icon: %s\n", indent, LookupIcon(model.NodeSwitch))
	}
	tooltip := sw.ID.String()
	if f.Plan != nil {
		if t, ok := f.Plan.Table(sw.ID); ok {
			tooltip = fmt.Sprintf("%s: %d groups, %d rules", sw.ID, len(t.Groups), len(t.Rules))
		}
	}
	fmt.Fprintf(b, "%s  tooltip: %q\n", indent, tooltip)
	fmt.Fprintf(b, "%s}\n", indent)
}

func (r *D2Renderer) renderServers(b *strings.Builder, topo *model.Topology, theme *Theme) {
	if len(topo.Servers) == 0 {
		return
	}
	color := theme.ColorForElement("servers")
	b.WriteString("servers: \"Servers\" {\n")
	fmt.Fprintf(b, "  style.fill: %q\n", color.Fill)
	fmt.Fprintf(b, "  style.stroke: %q\n", color.Stroke)
	b.WriteString("\n")
	for _, s := range topo.Servers {
		fmt.Fprintf(b, "  %s: %s {\n", util.SanitizeID(s.Name()), util.Quote(leafLabel(s.Name(), s.Addr)))
		fmt.Fprintf(b, "    icon: %s\n", LookupIcon(model.NodeServer))
		b.WriteString("  }\n")
	}
	b.WriteString("}\n\n")
}

func (r *D2Renderer) renderHosts(b *strings.Builder, topo *model.Topology, theme *Theme) {
	if len(topo.Hosts) == 0 {
		return
	}
	color := theme.ColorForElement("hosts")
	b.WriteString("hosts: \"Hosts\" {\n")
	fmt.Fprintf(b, "  style.fill: %q\n", color.Fill)
	fmt.Fprintf(b, "  style.stroke: %q\n", color.Stroke)
	b.WriteString("\n")

	if r.detail() == "detailed" {
		if len(topo.Hosts) > 8 {
			b.WriteString("  grid-columns: 8\n")
		}
		for _, h := range topo.Hosts {
			fmt.Fprintf(b, "  %s: %s\n", util.SanitizeID(h.Name()), util.Quote(leafLabel(h.Name(), h.Addr)))
		}
	} else {
		// one summary node per Edge switch
		for _, sw := range topo.Tier(model.TierEdge) {
			hosts := topo.HostsOf(sw)
			if len(hosts) == 0 {
				continue
			}
			label := fmt.Sprintf("%d hosts", len(hosts))
			if hosts[0].Addr.Valid() {
				label = fmt.Sprintf("%s %s", label, hosts[0].Addr.Subnet())
			}
			fmt.Fprintf(b, "  %s: %s {\n", hostGroupID(sw), util.Quote(label))
			fmt.Fprintf(b, "    icon: %s\n", LookupIcon(model.NodeHost))
			b.WriteString("  }\n")
		}
	}
	b.WriteString("}\n\n")
}

func (r *D2Renderer) renderLinks(b *strings.Builder, topo *model.Topology) {
	collapsed := make(map[int]bool)
	for _, l := range topo.Links {
		a, z := l.A, l.B
		if a.Node.Kind != model.NodeSwitch {
			a, z = z, a
		}
		if z.Node.Kind != model.NodeSwitch && r.detail() == "minimal" {
			continue
		}

		from := nodePath(topo, a.Node)
		if z.Node.Kind == model.NodeHost && r.detail() != "detailed" {
			// one edge per Edge switch for the collapsed host node
			if collapsed[a.Node.Index] {
				continue
			}
			collapsed[a.Node.Index] = true
			sw := topo.Switches[a.Node.Index]
			n := len(topo.HostsOf(sw))
			label := ""
			if bw := l.Params.BandwidthMbps; bw > 0 {
				label = fmt.Sprintf("%d × %s", n, mbps(bw))
			}
			writeEdge(b, util.Path("hosts", hostGroupID(sw)), from, label)
			continue
		}

		label := ""
		if r.detail() != "minimal" && l.Params.BandwidthMbps > 0 {
			label = mbps(l.Params.BandwidthMbps)
		}
		if r.detail() == "detailed" {
			ports := fmt.Sprintf("p%d ↔ p%d", a.Port, z.Port)
			if label == "" {
				label = ports
			} else {
				label = ports + " · " + label
			}
		}
		writeEdge(b, from, nodePath(topo, z.Node), label)
	}
}

func writeEdge(b *strings.Builder, from, to, label string) {
	if label == "" {
		fmt.Fprintf(b, "%s -- %s\n", from, to)
		return
	}
	fmt.Fprintf(b, "%s -- %s: %s\n", from, to, util.Quote(label))
}

func nodePath(topo *model.Topology, n model.NodeRef) string {
	switch n.Kind {
	case model.NodeSwitch:
		sw := topo.Switches[n.Index]
		return util.Path("fabric", sw.ID.Tier.String(), switchNodeID(sw))
	case model.NodeServer:
		return util.Path("servers", topo.Servers[n.Index].Name())
	default:
		return util.Path("hosts", topo.Hosts[n.Index].Name())
	}
}

func switchNodeID(sw *model.Switch) string {
	return util.SanitizeID("s" + sw.Name())
}

func hostGroupID(edge *model.Switch) string {
	return util.SanitizeID("under-" + edge.Name())
}

func leafLabel(name string, a model.Address) string {
	if !a.Valid() {
		return name
	}
	return fmt.Sprintf("%s — %s", name, a.IP)
}

func mbps(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + " Mbit/s"
}
