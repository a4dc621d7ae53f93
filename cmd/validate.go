package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Huangmachi/exp-IPMAN/internal/gateway"
	"github.com/Huangmachi/exp-IPMAN/internal/provision"
	"github.com/Huangmachi/exp-IPMAN/internal/ui"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate your ipman.yml configuration",
	Long: `Check the configuration values, look for the binaries the gateway driver
needs, and run the compile and verify pipeline without installing anything.`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	addFabricFlags(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	applyFlagOverrides(cfg)
	cfg.Compile.Verify = true

	fmt.Println(ui.Bold("Validating ipman.yml..."))

	passed := 0
	failed := 0

	errs := cfg.Validate()
	if len(errs) == 0 {
		ui.ValidationOK("config", "all values valid")
		passed++
	}
	for _, ve := range errs {
		ui.ValidationErr(ve.Field, ve.Message, ve.Suggestion)
		failed++
	}

	paths := map[string]string{
		"ovs-ofctl": cfg.Gateway.OfctlPath,
		"ovs-vsctl": cfg.Gateway.VsctlPath,
	}
	for _, d := range gateway.Drivers() {
		if d.Name != cfg.Gateway.Driver {
			continue
		}
		if len(d.Binaries) == 0 {
			ui.ValidationOK(d.DisplayName, "no binaries needed")
			passed++
		}
		for _, bin := range d.Binaries {
			name := bin
			if p := paths[bin]; p != "" {
				name = p
			}
			if found, err := findExecutable(name); err != nil {
				ui.ValidationErr(d.DisplayName, fmt.Sprintf("%s not found in PATH", name), "install Open vSwitch or use --dry-run with ipman apply")
				failed++
			} else {
				ui.ValidationOK(d.DisplayName, found)
				passed++
			}
		}
	}

	if failed == 0 {
		fmt.Println()
		f, err := buildFabric(cfg, logger, true)
		if err != nil {
			printPipelineError(err)
			failed++
		} else {
			passed++
			for _, s := range provision.Summarize(f.Topology) {
				ui.ValidationOK(string(s.Class), fmt.Sprintf("%d links, %.1f Mbit/s total", s.Links, s.BandwidthMbps))
			}
		}
	}

	fmt.Println()
	if failed == 0 {
		ui.Success(fmt.Sprintf("%d checks passed, 0 errors", passed))
	} else {
		fmt.Fprintf(os.Stderr, "%d checks passed, %d errors\n", passed, failed)
	}

	if failed > 0 {
		return fmt.Errorf("%d validation errors", failed)
	}
	return nil
}
