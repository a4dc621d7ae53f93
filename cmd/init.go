package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Huangmachi/exp-IPMAN/internal/ui"
	"github.com/Huangmachi/exp-IPMAN/internal/wizard"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an ipman.yml config file interactively",
	Long: `Look for Open vSwitch and d2 on this machine and generate a config file
through an interactive wizard.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := "ipman.yml"
	if cfgFile != "" {
		configPath = cfgFile
	}

	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("%s already exists.\n", configPath)
		fmt.Print("Overwrite? [y/N] ")
		var answer string
		_, _ = fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println(ui.Bold("Scanning environment..."))
	detection := wizard.Detect(nil)
	if !detection.OpenVSwitch() {
		ui.Warn("Open vSwitch tools not found, ipman apply will need --dry-run")
	}

	answers, err := wizard.Run(detection)
	if err != nil {
		return fmt.Errorf("wizard: %w", err)
	}

	content, err := wizard.GenerateConfig(*answers)
	if err != nil {
		return fmt.Errorf("generating config: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	ui.Success(fmt.Sprintf("Created %s", configPath))
	fmt.Println()
	fmt.Printf("Next step: %s\n", ui.Bold("ipman compile"))
	fmt.Printf("           %s\n", ui.Hint("or ipman validate to check the config and the Open vSwitch tools"))

	return nil
}
