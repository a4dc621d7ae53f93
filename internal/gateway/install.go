package gateway

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Huangmachi/exp-IPMAN/internal/compiler"
	"github.com/Huangmachi/exp-IPMAN/internal/logging"
	"github.com/Huangmachi/exp-IPMAN/internal/model"
)

// Result records the outcome of installing one switch table.
type Result struct {
	Switch   model.SwitchID
	Groups   int
	Rules    int
	Duration time.Duration
	Err      error
	Skipped  bool // not attempted because an earlier switch failed
}

// Install applies every table of plan through gw, at most parallelism
// switches at a time. The first failure cancels the switches not yet
// started and is returned; results hold one entry per table in plan order.
// Progress is logged to the logger carried by ctx.
func Install(ctx context.Context, gw Gateway, plan *compiler.Plan, parallelism int) ([]Result, error) {
	logger := logging.FromCtx(ctx)
	if parallelism < 1 {
		parallelism = 1
	}

	results := make([]Result, len(plan.Tables))
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(parallelism)

	for i, t := range plan.Tables {
		results[i] = Result{Switch: t.Switch, Groups: len(t.Groups), Rules: len(t.Rules), Skipped: true}
		eg.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			results[i].Skipped = false
			start := time.Now()
			err := gw.Apply(gctx, t.Switch, t.Entries())
			results[i].Duration = time.Since(start)
			if err != nil {
				results[i].Err = err
				logger.Error("install failed",
					zap.String("switch", t.Switch.String()),
					zap.String("bridge", t.Switch.Name()),
					zap.Error(err))
				return err
			}
			logger.Info("switch installed",
				zap.String("switch", t.Switch.String()),
				zap.String("bridge", t.Switch.Name()),
				zap.Int("groups", len(t.Groups)),
				zap.Int("rules", len(t.Rules)),
				zap.Duration("took", results[i].Duration))
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}
