package render

import (
	"context"
	"fmt"
	"strings"

	"github.com/Huangmachi/exp-IPMAN/internal/config"
	"github.com/Huangmachi/exp-IPMAN/internal/gateway"
)

// OfctlRenderer writes a shell script that installs the plan with ovs-ofctl.
// The commands come from the script gateway driver.
type OfctlRenderer struct{}

func (r *OfctlRenderer) Render(f *Fabric, cfg *config.Config) (string, error) {
	if f.Plan == nil {
		return "", errNoPlan
	}
	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	fmt.Fprintf(&b, "# IPMAN static forwarding state, density %d, scope %s\n", f.Topology.Spec.Density, f.Plan.Scope)
	b.WriteString("set -e\n\n")

	gw, err := gateway.Open("script", gateway.Options{
		OfctlPath:   cfg.Gateway.OfctlPath,
		VsctlPath:   cfg.Gateway.VsctlPath,
		Protocol:    cfg.Gateway.Protocol,
		SetProtocol: cfg.Gateway.SetProtocol,
		Out:         &b,
	})
	if err != nil {
		return "", err
	}
	// one switch at a time keeps blocks in plan order
	if _, err := gateway.Install(context.Background(), gw, f.Plan, 1); err != nil {
		return "", err
	}
	return b.String(), nil
}
