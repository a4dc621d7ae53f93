package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Huangmachi/exp-IPMAN/internal/config"
	"github.com/Huangmachi/exp-IPMAN/internal/logging"
	"github.com/Huangmachi/exp-IPMAN/internal/ui"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "ipman",
	Short: "Compile static forwarding state for an IPMAN switch fabric",
	Long: `ipman builds the five-tier IPMAN switch fabric, numbers its hosts and
servers, and compiles the static ARP and IP forwarding rules every switch
needs so each host can reach each server over all equal-cost paths.

The rules can be printed, exported, drawn as a D2 diagram, or installed on
Open vSwitch bridges with ovs-ofctl.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ipman.yml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("ipman")
		viper.SetConfigType("yml")
		viper.AddConfigPath(".")
	}

	config.BindEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config: %v\n", err)
		}
	}
}

// setup loads the config and the logger, and stores the logger in the
// command context.
func setup(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprint(os.Stderr, ui.FormatError("Failed to load config", err.Error(), "run 'ipman init' to create a config file"))
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprint(os.Stderr, ui.FormatError("Invalid log settings", err.Error(), "log.level is one of debug, info, warn, error"))
		return nil, nil, err
	}
	cmd.SetContext(logging.CtxWith(cmd.Context(), logger))
	return cfg, logger, nil
}

// checkConfig prints every validation error and fails if there was any.
func checkConfig(cfg *config.Config) error {
	errs := cfg.Validate()
	if len(errs) == 0 {
		return nil
	}
	for _, ve := range errs {
		fmt.Fprint(os.Stderr, ui.FormatError("Invalid "+ve.Field, ve.Message, ve.Suggestion))
	}
	return fmt.Errorf("%d config errors", len(errs))
}
