package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Huangmachi/exp-IPMAN/internal/render"
	"github.com/Huangmachi/exp-IPMAN/internal/ui"
)

var (
	autoRender  bool
	imageFormat string
	direction   string
)

var diagramCmd = &cobra.Command{
	Use:   "diagram",
	Short: "Write a D2 diagram of the fabric",
	Long: `Generate a D2 diagram of the switch tiers, hosts, servers and links.

The output is a .d2 file that can be rendered with: d2 fabric.d2 fabric.svg`,
	RunE: runDiagram,
}

func init() {
	rootCmd.AddCommand(diagramCmd)

	addFabricFlags(diagramCmd)
	diagramCmd.Flags().StringVarP(&outputFile, "output", "o", "", "output D2 file path (default: fabric.d2)")
	diagramCmd.Flags().StringVar(&detailLevel, "detail", "", "detail level: minimal, standard, detailed")
	diagramCmd.Flags().StringVar(&themeName, "theme", "", "color theme: default, dark, monochrome, ocean")
	diagramCmd.Flags().StringVar(&direction, "direction", "", "layout direction: down, right")
	diagramCmd.Flags().BoolVar(&autoRender, "render", false, "render to SVG/PNG after generating D2 (requires d2)")
	diagramCmd.Flags().StringVar(&imageFormat, "image-format", "", "image format for --render: svg, png (default: svg)")
}

func runDiagram(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	applyFlagOverrides(cfg)
	if direction != "" {
		cfg.Render.Direction = direction
	}
	if autoRender {
		cfg.Render.AutoRender = true
	}
	if imageFormat != "" {
		cfg.Render.ImageFormat = imageFormat
	}
	if err := checkConfig(cfg); err != nil {
		return err
	}

	output := cfg.Output
	if output == "" || !strings.HasSuffix(output, ".d2") {
		output = "fabric.d2"
	}

	fmt.Println(ui.Bold("Drawing fabric..."))
	f, err := buildFabric(cfg, logger, true)
	if err != nil {
		printPipelineError(err)
		return err
	}

	content := render.RenderD2(f, cfg)
	if err := os.WriteFile(output, []byte(content), 0644); err != nil {
		fmt.Fprint(os.Stderr, ui.FormatError("Failed to write output", err.Error(), ""))
		return err
	}
	ui.Success(fmt.Sprintf("Generated %s (%d switches, %d hosts, %d servers)", output, len(f.Topology.Switches), len(f.Topology.Hosts), len(f.Topology.Servers)))

	if cfg.Render.AutoRender {
		if err := autoRenderD2(output, cfg.Render.ImageFormat); err != nil {
			fmt.Fprint(os.Stderr, ui.FormatError("Auto-render failed", err.Error(), "install d2: https://d2lang.com/tour/install"))
		}
	}
	return nil
}

func autoRenderD2(d2File, format string) error {
	if format == "" {
		format = "svg"
	}

	d2Path, err := findExecutable("d2")
	if err != nil {
		return fmt.Errorf("d2 not found in PATH")
	}

	outFile := strings.TrimSuffix(d2File, ".d2") + "." + format

	c := execCommand(d2Path, d2File, outFile)
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr

	if err := c.Run(); err != nil {
		return fmt.Errorf("d2 render failed: %w", err)
	}

	ui.Success(fmt.Sprintf("Rendered %s", outFile))
	return nil
}
