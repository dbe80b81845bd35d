// Package commands implements the crawlcore CLI commands.
package commands

import (
	"os"

	"github.com/spf13/cobra"

	cfgcmd "github.com/scrapeforge/crawlcore/cmd/crawlcore/commands/config"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "crawlcore",
	Short: "crawlcore - core runtime for web-scraping and actor execution",
	Long: `crawlcore drives a RequestQueue, RequestList, AutoscaledPool and
SessionPool wired together against a pluggable storage backend.

Use "crawlcore [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Called once by main.main().
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/crawlcore/config.yaml)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(cfgcmd.Cmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// GetConfigFile returns the config file path from the global flag.
func GetConfigFile() string {
	return cfgFile
}

// PrintErr prints an error message to stderr.
func PrintErr(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
}

// Exit prints an error and exits with code 1.
func Exit(format string, args ...any) {
	PrintErr(format, args...)
	os.Exit(1)
}
