package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Huangmachi/exp-IPMAN/internal/config"
	"github.com/Huangmachi/exp-IPMAN/internal/gateway"
	"github.com/Huangmachi/exp-IPMAN/internal/ui"
)

var (
	driverName  string
	parallelism int
	dryRun      bool
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Compile the fabric and install the rules on the switches",
	Long: `Compile the forwarding rules and install them through a gateway driver.
The ofctl driver runs ovs-ofctl against bridges named after the switches
(1001, 2001, ...). With --dry-run the commands are printed instead.`,
	RunE: runApply,
}

func init() {
	rootCmd.AddCommand(applyCmd)

	addFabricFlags(applyCmd)
	applyCmd.Flags().StringVar(&driverName, "driver", "", fmt.Sprintf("gateway driver: %v", config.Drivers))
	applyCmd.Flags().IntVar(&parallelism, "parallel", 0, "switches installed at the same time")
	applyCmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the commands instead of running them")
}

func runApply(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	applyFlagOverrides(cfg)
	if driverName != "" {
		cfg.Gateway.Driver = driverName
	}
	if parallelism != 0 {
		cfg.Gateway.Parallelism = parallelism
	}
	if dryRun {
		cfg.Gateway.Driver = "script"
	}
	if err := checkConfig(cfg); err != nil {
		return err
	}

	// the script driver owns stdout
	progress := cfg.Gateway.Driver != "script"
	if progress {
		fmt.Println(ui.Bold("Compiling fabric..."))
	}
	f, err := buildFabric(cfg, logger, progress)
	if err != nil {
		printPipelineError(err)
		return err
	}

	gw, err := gateway.Open(cfg.Gateway.Driver, gateway.Options{
		OfctlPath:   cfg.Gateway.OfctlPath,
		VsctlPath:   cfg.Gateway.VsctlPath,
		Protocol:    cfg.Gateway.Protocol,
		SetProtocol: cfg.Gateway.SetProtocol,
		Timeout:     cfg.Gateway.Timeout,
		Out:         cmd.OutOrStdout(),
		Logger:      logger.Named("gateway"),
	})
	if err != nil {
		fmt.Fprint(os.Stderr, ui.FormatError("Failed to open gateway", err.Error(), "run 'ipman validate' to check the gateway settings"))
		return err
	}

	if progress {
		fmt.Println()
		fmt.Println(ui.Bold(fmt.Sprintf("Installing with %s (%d at a time)...", cfg.Gateway.Driver, cfg.Gateway.Parallelism)))
	}
	parallel := cfg.Gateway.Parallelism
	if !progress {
		// keep script blocks in plan order
		parallel = 1
	}
	results, err := gateway.Install(cmd.Context(), gw, f.Plan, parallel)

	failed := 0
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
			fmt.Fprint(os.Stderr, ui.FormatError(r.Switch.String()+" failed", r.Err.Error(), ""))
		case r.Skipped && progress:
			ui.SwitchSkipped(r.Switch.String())
		case progress:
			ui.SwitchApplied(r.Switch.String(), r.Groups, r.Rules, r.Duration)
		}
	}
	if err != nil {
		logger.Error("install aborted", zap.Int("failed", failed), zap.Error(err))
		return err
	}

	if progress {
		groups, rules := f.Plan.Counts()
		ui.Success(fmt.Sprintf("Installed %d switches (%d groups, %d rules)", len(results), groups, rules))
	}
	return nil
}
