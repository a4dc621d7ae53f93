package cmd

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Huangmachi/exp-IPMAN/internal/addressing"
	"github.com/Huangmachi/exp-IPMAN/internal/compiler"
	"github.com/Huangmachi/exp-IPMAN/internal/config"
	"github.com/Huangmachi/exp-IPMAN/internal/model"
	"github.com/Huangmachi/exp-IPMAN/internal/provision"
	"github.com/Huangmachi/exp-IPMAN/internal/render"
	"github.com/Huangmachi/exp-IPMAN/internal/ui"
)

type stage struct {
	name string
	run  func() (string, error)
}

// buildFabric runs topology, addressing, provisioning, compilation and,
// when enabled, verification. Progress lines are printed only when stdout
// is not carrying the result.
func buildFabric(cfg *config.Config, logger *zap.Logger, progress bool) (*render.Fabric, error) {
	f := &render.Fabric{}

	stages := []stage{
		{"topology", func() (string, error) {
			topo, err := model.BuildTopology(cfg.Spec())
			if err != nil {
				return "", err
			}
			f.Topology = topo
			return fmt.Sprintf("(%d switches, %d hosts, %d servers)", len(topo.Switches), len(topo.Hosts), len(topo.Servers)), nil
		}},
		{"addressing", func() (string, error) {
			base, err := cfg.Base()
			if err != nil {
				return "", err
			}
			if err := addressing.Assign(f.Topology, base); err != nil {
				return "", err
			}
			return fmt.Sprintf("(%d host subnets)", len(addressing.Subnets(f.Topology))), nil
		}},
		{"links", func() (string, error) {
			if err := provision.Apply(f.Topology, cfg.Links); err != nil {
				return "", err
			}
			return fmt.Sprintf("(%d links)", len(f.Topology.Links)), nil
		}},
		{"compile", func() (string, error) {
			scope, err := compiler.ParseScope(cfg.Compile.Scope)
			if err != nil {
				return "", err
			}
			plan, err := compiler.Compile(f.Topology, compiler.Options{Scope: scope, Priority: compiler.DefaultPriority})
			if err != nil {
				return "", err
			}
			f.Plan = plan
			groups, rules := plan.Counts()
			return fmt.Sprintf("(%d groups, %d rules, scope %s)", groups, rules, scope), nil
		}},
	}
	if cfg.Compile.Verify {
		stages = append(stages, stage{"verify", func() (string, error) {
			if err := compiler.Verify(f.Topology, f.Plan); err != nil {
				return "", err
			}
			return "(every host reaches every server)", nil
		}})
	}

	for _, s := range stages {
		if progress {
			ui.StageStarted(s.name)
		}
		detail, err := s.run()
		if err != nil {
			if progress {
				ui.StageFailed(s.name)
			}
			logger.Error("pipeline stage failed", zap.String("stage", s.name), zap.Error(err))
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}
		if progress {
			ui.StageDone(s.name, detail)
		}
		logger.Info("pipeline stage done", zap.String("stage", s.name), zap.String("detail", detail))
	}
	return f, nil
}
