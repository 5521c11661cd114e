package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"meriscorr/pkg/config"
)

func newInitConfigCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "init-config [path]",
		Short: "Write a configuration file with default values",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := c.configPath
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.CreateDefaultConfigFile(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Default configuration written to %s\n", path)
			return nil
		},
	}
}
