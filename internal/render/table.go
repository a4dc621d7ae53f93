package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/Huangmachi/exp-IPMAN/internal/compiler"
	"github.com/Huangmachi/exp-IPMAN/internal/config"
)

// TableRenderer prints the compiled plan as aligned text tables. Minimal
// detail prints one summary row per switch.
type TableRenderer struct{}

func (r *TableRenderer) Render(f *Fabric, cfg *config.Config) (string, error) {
	if f.Plan == nil {
		return "", errNoPlan
	}
	var b strings.Builder

	if cfg.Render.DetailLevel == "minimal" {
		tw := newTable(&b, []string{"SWITCH", "BRIDGE", "GROUPS", "RULES", "PORTS"})
		for _, t := range f.Plan.Tables {
			tw.Append([]string{
				t.Switch.String(),
				t.Switch.Name(),
				strconv.Itoa(len(t.Groups)),
				strconv.Itoa(len(t.Rules)),
				joinInts(t.Ports()),
			})
		}
		tw.Render()
		return b.String(), nil
	}

	var groups [][]string
	for _, t := range f.Plan.Tables {
		for _, g := range t.Groups {
			groups = append(groups, []string{t.Switch.Name(), strconv.FormatUint(uint64(g.ID), 10), "select", joinInts(g.Ports)})
		}
	}
	if len(groups) > 0 {
		tw := newTable(&b, []string{"BRIDGE", "GROUP", "TYPE", "BUCKETS"})
		tw.AppendBulk(groups)
		tw.Render()
		b.WriteString("\n")
	}

	tw := newTable(&b, []string{"BRIDGE", "DIR", "PROTO", "MATCH", "ACTION", "PRIO"})
	for _, t := range f.Plan.Tables {
		for _, rule := range t.Rules {
			if cfg.Render.DetailLevel != "detailed" && rule.Protocol == compiler.ProtocolARP {
				// the ARP twin carries the same match and action
				continue
			}
			tw.Append([]string{
				t.Switch.Name(),
				direction(rule),
				protocolColumn(rule, cfg.Render.DetailLevel == "detailed"),
				rule.Match.String(),
				rule.Action(),
				strconv.Itoa(rule.Priority),
			})
		}
	}
	tw.Render()
	return b.String(), nil
}

func newTable(b *strings.Builder, header []string) *tablewriter.Table {
	tw := tablewriter.NewWriter(b)
	tw.SetAutoWrapText(false)
	tw.SetBorder(false)
	tw.SetHeaderLine(false)
	tw.SetCenterSeparator("")
	tw.SetColumnSeparator("")
	tw.SetRowSeparator("")
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetHeader(header)
	return tw
}

func direction(r compiler.Rule) string {
	if r.Downstream {
		return "down"
	}
	return "up"
}

func protocolColumn(r compiler.Rule, detailed bool) string {
	if !detailed {
		return "arp+ip"
	}
	return fmt.Sprintf("%s (0x%04x)", r.Protocol, uint16(r.Protocol.EtherType()))
}

func joinInts(v []int) string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}
