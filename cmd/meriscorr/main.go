package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"meriscorr/pkg/config"
)

// cli holds the state shared by all commands
type cli struct {
	verbose    bool
	configPath string

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "meriscorr",
		Short: "MERIS L1b radiometric correction",
		Long: `meriscorr applies radiometric corrections to MERIS Level 1b products.

Enabled stages run in this order: re-calibration to the 3rd reprocessing,
smile correction, radiance to reflectance conversion and detector
equalization.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(c.configPath)
			if err != nil {
				return err
			}
			c.cfg = cfg

			zc := zap.NewProductionConfig()
			if c.verbose || cfg.Output.Verbose {
				zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			c.logger, err = zc.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}

	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Enable verbose logging")
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "meriscorr.yaml", "Configuration file")

	root.AddCommand(newCorrectCmd(c))
	root.AddCommand(newInspectCmd(c))
	root.AddCommand(newInitConfigCmd(c))
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
