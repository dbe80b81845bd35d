package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/scrapeforge/crawlcore/internal/cli/output"
	"github.com/scrapeforge/crawlcore/internal/config"
	"github.com/scrapeforge/crawlcore/pkg/session"
)

var sessionOutput string

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect the session pool",
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions persisted in the session pool",
	Long: `List every session recorded in the session pool's persisted state.

Reads the session.PersistStateKey record directly from the configured
storage backend, so it works without a running runtime.`,
	RunE: runSessionList,
}

func init() {
	sessionListCmd.Flags().StringVarP(&sessionOutput, "output", "o", "table", "Output format (table|json|yaml)")
	sessionCmd.AddCommand(sessionListCmd)
}

type sessionListView []session.State

func (v sessionListView) Headers() []string {
	return []string{"ID", "Usage", "Error Score", "Expires At"}
}

func (v sessionListView) Rows() [][]string {
	rows := make([][]string, 0, len(v))
	for _, s := range v {
		rows = append(rows, []string{
			s.ID,
			fmt.Sprintf("%d/%d", s.UsageCount, s.MaxUsageCount),
			fmt.Sprintf("%.2f/%.2f", s.ErrorScore, s.MaxErrorScore),
			s.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return rows
}

func runSessionList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}
	if cfg.SessionPool.PersistStateKey == "" {
		return fmt.Errorf("session_pool.persist_state_key is not configured; nothing to list")
	}

	store, err := cfg.Storage.NewStore(ctx, "session-pool")
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}

	data, found, err := store.GetRecord(ctx, cfg.SessionPool.PersistStateKey)
	if err != nil {
		return fmt.Errorf("failed to read session pool state: %w", err)
	}

	var states sessionListView
	if found {
		var poolState session.PoolState
		if err := json.Unmarshal(data, &poolState); err != nil {
			return fmt.Errorf("failed to parse session pool state: %w", err)
		}
		states = poolState.Sessions
	}

	format, err := output.ParseFormat(sessionOutput)
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, states)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, states)
	default:
		return output.PrintTable(os.Stdout, states)
	}
}
