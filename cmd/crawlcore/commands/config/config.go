// Package config implements the `crawlcore config` subcommands.
package config

import (
	"github.com/spf13/cobra"
)

// Cmd is the config subcommand.
var Cmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long: `Inspect crawlcore configuration.

Use 'crawlcore init' to create a new configuration file.

Subcommands:
  show    Display current configuration
  schema  Generate JSON schema for IDE/validation`,
}

func init() {
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(schemaCmd)
}
