package render

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/Huangmachi/exp-IPMAN/internal/compiler"
	"github.com/Huangmachi/exp-IPMAN/internal/config"
	"github.com/Huangmachi/exp-IPMAN/internal/model"
)

// Document is the serialisable form of a fabric and its compiled plan. It
// is what the traffic tooling reads link parameters and addresses from.
type Document struct {
	Fabric   FabricInfo `json:"fabric" yaml:"fabric"`
	Servers  []Leaf     `json:"servers" yaml:"servers"`
	Hosts    []Leaf     `json:"hosts,omitempty" yaml:"hosts,omitempty"`
	Switches []Switch   `json:"switches" yaml:"switches"`
}

type FabricInfo struct {
	Density  int    `json:"density" yaml:"density"`
	Scope    string `json:"scope,omitempty" yaml:"scope,omitempty"`
	Switches int    `json:"switches" yaml:"switches"`
	Hosts    int    `json:"hosts" yaml:"hosts"`
	Servers  int    `json:"servers" yaml:"servers"`
	Links    int    `json:"links" yaml:"links"`
	Groups   int    `json:"groups" yaml:"groups"`
	Rules    int    `json:"rules" yaml:"rules"`
}

type Leaf struct {
	Name    string `json:"name" yaml:"name"`
	Address string `json:"address" yaml:"address"`
	Switch  string `json:"switch" yaml:"switch"`
	Port    int    `json:"port" yaml:"port"`
}

type Switch struct {
	Name   string           `json:"name" yaml:"name"`
	ID     string           `json:"id" yaml:"id"`
	Ports  []Port           `json:"ports" yaml:"ports"`
	Groups []compiler.Group `json:"groups,omitempty" yaml:"groups,omitempty"`
	Rules  []Rule           `json:"rules,omitempty" yaml:"rules,omitempty"`
}

type Port struct {
	Number int              `json:"number" yaml:"number"`
	Peer   string           `json:"peer" yaml:"peer"`
	Class  model.LinkClass  `json:"class" yaml:"class"`
	Params model.LinkParams `json:"params" yaml:"params"`
}

type Rule struct {
	Match      string `json:"match" yaml:"match"`
	Protocol   string `json:"protocol" yaml:"protocol"`
	Action     string `json:"action" yaml:"action"`
	Priority   int    `json:"priority" yaml:"priority"`
	Downstream bool   `json:"downstream,omitempty" yaml:"downstream,omitempty"`
}

// NewDocument flattens a fabric. Hosts are listed only at detailed level.
func NewDocument(f *Fabric, detail string) (*Document, error) {
	topo := f.Topology
	doc := &Document{
		Fabric: FabricInfo{
			Density:  topo.Spec.Density,
			Switches: len(topo.Switches),
			Hosts:    len(topo.Hosts),
			Servers:  len(topo.Servers),
			Links:    len(topo.Links),
		},
	}
	if f.Plan != nil {
		doc.Fabric.Scope = string(f.Plan.Scope)
		doc.Fabric.Groups, doc.Fabric.Rules = f.Plan.Counts()
	}

	for _, s := range topo.Servers {
		leaf, err := leafEntry(topo, model.NodeRef{Kind: model.NodeServer, Index: s.Ordinal}, s.Link, s.Addr)
		if err != nil {
			return nil, err
		}
		doc.Servers = append(doc.Servers, leaf)
	}
	if detail == "detailed" {
		for _, h := range topo.Hosts {
			leaf, err := leafEntry(topo, model.NodeRef{Kind: model.NodeHost, Index: h.Ordinal}, h.Link, h.Addr)
			if err != nil {
				return nil, err
			}
			doc.Hosts = append(doc.Hosts, leaf)
		}
	}

	for _, tier := range model.CompileOrder {
		for _, sw := range topo.Tier(tier) {
			entry := Switch{Name: sw.Name(), ID: sw.ID.String()}
			for _, p := range sw.Ports {
				peer, err := topo.Peer(sw, p.Number)
				if err != nil {
					return nil, err
				}
				l := topo.Links[p.Link]
				entry.Ports = append(entry.Ports, Port{
					Number: p.Number,
					Peer:   topo.NodeName(peer.Node),
					Class:  l.Class,
					Params: l.Params,
				})
			}
			if f.Plan != nil {
				if t, ok := f.Plan.Table(sw.ID); ok {
					entry.Groups = t.Groups
					for _, r := range t.Rules {
						entry.Rules = append(entry.Rules, Rule{
							Match:      r.Match.String(),
							Protocol:   r.Protocol.String(),
							Action:     r.Action(),
							Priority:   r.Priority,
							Downstream: r.Downstream,
						})
					}
				}
			}
			doc.Switches = append(doc.Switches, entry)
		}
	}
	return doc, nil
}

func leafEntry(topo *model.Topology, ref model.NodeRef, link int, addr model.Address) (Leaf, error) {
	leaf := Leaf{Name: topo.NodeName(ref), Address: addr.IP.String()}
	if !addr.Valid() {
		leaf.Address = ""
	}
	if link < 0 {
		return leaf, nil
	}
	end, err := topo.Links[link].Other(ref)
	if err != nil {
		return Leaf{}, err
	}
	leaf.Switch = topo.NodeName(end.Node)
	leaf.Port = end.Port
	return leaf, nil
}

// YAMLRenderer exports the Document as YAML.
type YAMLRenderer struct{}

func (r *YAMLRenderer) Render(f *Fabric, cfg *config.Config) (string, error) {
	doc, err := NewDocument(f, cfg.Render.DetailLevel)
	if err != nil {
		return "", err
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encoding yaml: %w", err)
	}
	return string(out), nil
}

// JSONRenderer exports the Document as indented JSON.
type JSONRenderer struct{}

func (r *JSONRenderer) Render(f *Fabric, cfg *config.Config) (string, error) {
	doc, err := NewDocument(f, cfg.Render.DetailLevel)
	if err != nil {
		return "", err
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding json: %w", err)
	}
	return string(out) + "\n", nil
}
