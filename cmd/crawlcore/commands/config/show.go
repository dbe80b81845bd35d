package config

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/scrapeforge/crawlcore/internal/cli/output"
	"github.com/scrapeforge/crawlcore/internal/config"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Long: `Display the current crawlcore configuration.

By default outputs YAML. Use --output to change format.

Examples:
  # Show default config as YAML
  crawlcore config show

  # Show as JSON
  crawlcore config show --output json`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, cfg)
	default:
		return output.PrintYAML(os.Stdout, cfg)
	}
}
