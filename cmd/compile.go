package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Huangmachi/exp-IPMAN/internal/addressing"
	"github.com/Huangmachi/exp-IPMAN/internal/compiler"
	"github.com/Huangmachi/exp-IPMAN/internal/config"
	"github.com/Huangmachi/exp-IPMAN/internal/model"
	"github.com/Huangmachi/exp-IPMAN/internal/render"
	"github.com/Huangmachi/exp-IPMAN/internal/ui"
)

var (
	outputFile  string
	density     int
	scope       string
	format      string
	detailLevel string
	themeName   string
	noVerify    bool
)

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Compile the forwarding rules of every switch",
	Long: `Build the fabric, assign addresses, provision links, compile the static
forwarding rules and verify that every host reaches every server. The result
is printed in the selected format.`,
	RunE: runCompile,
}

func init() {
	rootCmd.AddCommand(compileCmd)

	addFabricFlags(compileCmd)
	compileCmd.Flags().StringVarP(&outputFile, "output", "o", "", "write to a file instead of stdout")
	compileCmd.Flags().StringVarP(&format, "format", "f", "", fmt.Sprintf("output format: %v", render.Formats()))
	compileCmd.Flags().StringVar(&detailLevel, "detail", "", "detail level: minimal, standard, detailed")
	compileCmd.Flags().StringVar(&themeName, "theme", "", "color theme for d2: default, dark, monochrome, ocean")
}

// addFabricFlags registers the flags every pipeline command shares.
func addFabricFlags(c *cobra.Command) {
	c.Flags().IntVarP(&density, "density", "d", 0, "hosts per edge switch")
	c.Flags().StringVar(&scope, "scope", "", "rule scope: host-server, all-pairs")
	c.Flags().BoolVar(&noVerify, "no-verify", false, "skip reachability verification")
}

func runCompile(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	applyFlagOverrides(cfg)
	if err := checkConfig(cfg); err != nil {
		return err
	}

	progress := cfg.Output != ""
	if progress {
		fmt.Println(ui.Bold("Compiling fabric..."))
	}
	f, err := buildFabric(cfg, logger, progress)
	if err != nil {
		printPipelineError(err)
		return err
	}

	r, err := render.Get(cfg.Render.Format)
	if err != nil {
		fmt.Fprint(os.Stderr, ui.FormatError("Unknown format", err.Error(), ""))
		return err
	}
	out, err := r.Render(f, cfg)
	if err != nil {
		fmt.Fprint(os.Stderr, ui.FormatError("Render failed", err.Error(), ""))
		return err
	}

	if cfg.Output == "" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), out)
		return err
	}
	if err := os.WriteFile(cfg.Output, []byte(out), 0644); err != nil {
		fmt.Fprint(os.Stderr, ui.FormatError("Failed to write output", err.Error(), ""))
		return err
	}
	groups, rules := f.Plan.Counts()
	ui.Success(fmt.Sprintf("Wrote %s (%d switches, %d groups, %d rules)", cfg.Output, len(f.Plan.Tables), groups, rules))
	return nil
}

func applyFlagOverrides(cfg *config.Config) {
	if outputFile != "" {
		cfg.Output = outputFile
	}
	if density != 0 {
		cfg.Density = density
	}
	if scope != "" {
		cfg.Compile.Scope = scope
	}
	if noVerify {
		cfg.Compile.Verify = false
	}
	if format != "" {
		cfg.Render.Format = format
	}
	if detailLevel != "" {
		cfg.Render.DetailLevel = detailLevel
	}
	if themeName != "" {
		cfg.Render.Theme = themeName
	}
}

// printPipelineError prints err with a hint picked by its kind.
func printPipelineError(err error) {
	hint := ""
	switch {
	case errors.Is(err, model.ErrConfiguration):
		hint = "check the fabric section of ipman.yml, or run 'ipman validate'"
	case errors.Is(err, addressing.ErrAddressSpaceExhausted):
		hint = "lower the density or the number of edge switches"
	case errors.Is(err, compiler.ErrUnreachableDestination):
		hint = "every tier needs at least one switch to connect hosts and servers"
	case errors.Is(err, compiler.ErrDuplicateRule):
		hint = "two destinations share a prefix; check addressing.base"
	case errors.Is(err, compiler.ErrVerification):
		hint = "rerun with --log-level debug and compare the tables with --format table --detail detailed"
	}
	fmt.Fprint(os.Stderr, ui.FormatError("Compilation failed", err.Error(), hint))
}
