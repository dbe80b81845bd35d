package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scrapeforge/crawlcore/internal/cli/prompt"
	"github.com/scrapeforge/crawlcore/internal/config"
)

var (
	initForce    bool
	initNonInter bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample crawlcore configuration file.

By default, the configuration file is created at
$XDG_CONFIG_HOME/crawlcore/config.yaml. Use --config to specify a custom
path. Runs an interactive wizard unless --yes is given.

Examples:
  # Initialize with default location, answering the wizard prompts
  crawlcore init

  # Initialize with custom path, no prompts
  crawlcore init --config /etc/crawlcore/config.yaml --yes

  # Force overwrite existing config
  crawlcore init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
	initCmd.Flags().BoolVarP(&initNonInter, "yes", "y", false, "Skip the interactive wizard and write defaults")
}

func runInit(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	cfg := config.DefaultConfig()
	if !initNonInter {
		if err := runInitWizard(cfg); err != nil {
			if prompt.IsAborted(err) {
				fmt.Println("Aborted.")
				return nil
			}
			return err
		}
	}
	config.ApplyDefaults(cfg)

	var configPath string
	var err error
	if configFile != "" {
		configPath, err = config.InitConfigToPath(cfg, configFile, initForce)
	} else {
		configPath, err = config.InitConfig(cfg, initForce)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to customize your setup")
	fmt.Println("  2. Run a crawl with: crawlcore run <seed-url>")
	fmt.Printf("  3. Or specify custom config: crawlcore run --config %s <seed-url>\n", configPath)

	return nil
}

// runInitWizard walks the operator through the storage backend choice and
// its backend-specific settings, mutating cfg in place.
func runInitWizard(cfg *config.Config) error {
	backend, err := prompt.Select("Storage backend", []prompt.SelectOption{
		{Label: "Local filesystem", Value: "local", Description: "One file per key, good for local development"},
		{Label: "BadgerDB", Value: "badger", Description: "Embedded KV store, single process"},
		{Label: "SQL (sqlite/postgres)", Value: "sql", Description: "Transactional queue, shareable across processes"},
		{Label: "S3-compatible object storage", Value: "s3", Description: "Durable blobs, shareable across processes"},
		{Label: "Remote platform API", Value: "remote", Description: "Delegate storage to an external crawlcore-compatible API"},
	})
	if err != nil {
		return err
	}
	cfg.Storage.Backend = backend

	switch backend {
	case "local":
		dir, err := prompt.Input("Local storage directory", "/tmp/crawlcore-storage")
		if err != nil {
			return err
		}
		cfg.Storage.Local.Dir = dir
	case "badger":
		dir, err := prompt.Input("Badger data directory", "/tmp/crawlcore-badger")
		if err != nil {
			return err
		}
		cfg.Storage.Badger.Dir = dir
	case "sql":
		driver, err := prompt.SelectString("SQL driver", []string{"sqlite", "postgres"})
		if err != nil {
			return err
		}
		cfg.Storage.SQL.Driver = driver
		dsn, err := prompt.Input("Data source name", defaultDSN(driver))
		if err != nil {
			return err
		}
		cfg.Storage.SQL.DSN = dsn
	case "s3":
		bucket, err := prompt.InputRequired("S3 bucket")
		if err != nil {
			return err
		}
		cfg.Storage.S3.Bucket = bucket
		region, err := prompt.Input("S3 region", "us-east-1")
		if err != nil {
			return err
		}
		cfg.Storage.S3.Region = region
		endpoint, err := prompt.InputOptional("S3-compatible endpoint (blank for AWS)")
		if err != nil {
			return err
		}
		cfg.Storage.S3.Endpoint = endpoint
	case "remote":
		baseURL, err := prompt.InputRequired("Remote platform base URL")
		if err != nil {
			return err
		}
		cfg.Storage.Remote.BaseURL = baseURL
		fmt.Println("Remember to export TOKEN with the bearer credential before running.")
	}

	minConcurrency, err := prompt.InputInt("Minimum concurrency", 1)
	if err != nil {
		return err
	}
	cfg.AutoscaledPool.MinConcurrency = minConcurrency

	maxConcurrency, err := prompt.InputInt("Maximum concurrency", 200)
	if err != nil {
		return err
	}
	cfg.AutoscaledPool.MaxConcurrency = maxConcurrency

	adminAPI, err := prompt.Confirm("Enable the admin HTTP API", true)
	if err != nil {
		return err
	}
	enabled := adminAPI
	cfg.AdminAPI.Enabled = &enabled
	if adminAPI {
		port, err := prompt.InputPort("Admin API port", 8080)
		if err != nil {
			return err
		}
		cfg.AdminAPI.Port = port
	}

	return nil
}

func defaultDSN(driver string) string {
	if driver == "postgres" {
		return "postgres://localhost:5432/crawlcore?sslmode=disable"
	}
	return "/tmp/crawlcore-sqlqueue/queue.db"
}
