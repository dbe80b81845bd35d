package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/scrapeforge/crawlcore/internal/cli/output"
	"github.com/scrapeforge/crawlcore/internal/cli/prompt"
	"github.com/scrapeforge/crawlcore/internal/config"
	"github.com/scrapeforge/crawlcore/pkg/requestqueue"
)

var queueOutput string

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and manage request queues",
}

var queueInspectCmd = &cobra.Command{
	Use:   "inspect <queue-id>",
	Short: "Show a queue's current Info snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runQueueInspect,
}

var (
	queueDropForce bool
)

var queueDropCmd = &cobra.Command{
	Use:   "drop <queue-id>",
	Short: "Drop a queue's persisted storage",
	Args:  cobra.ExactArgs(1),
	RunE:  runQueueDrop,
}

func init() {
	queueInspectCmd.Flags().StringVarP(&queueOutput, "output", "o", "table", "Output format (table|json|yaml)")
	queueDropCmd.Flags().BoolVar(&queueDropForce, "force", false, "Skip the confirmation prompt")

	queueCmd.AddCommand(queueInspectCmd)
	queueCmd.AddCommand(queueDropCmd)
}

type queueInfoView requestqueue.Info

func (v queueInfoView) Headers() []string { return []string{"Field", "Value"} }

func (v queueInfoView) Rows() [][]string {
	return [][]string{
		{"id", v.ID},
		{"assumed_total_count", fmt.Sprint(v.AssumedTotalCount)},
		{"assumed_handled_count", fmt.Sprint(v.AssumedHandledCount)},
		{"in_progress_count", fmt.Sprint(v.InProgressCount)},
	}
}

func openQueue(ctx context.Context, queueID string) (*requestqueue.Queue, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, err
	}
	backend, err := cfg.Storage.NewQueueBackend(ctx, queueID)
	if err != nil {
		return nil, fmt.Errorf("failed to open queue backend: %w", err)
	}
	return requestqueue.New(queueID, backend, cfg.RequestQueue.ToRequestQueueConfig()), nil
}

func runQueueInspect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	queueID := args[0]

	q, err := openQueue(ctx, queueID)
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(queueOutput)
	if err != nil {
		return err
	}

	info := q.GetInfo()
	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, info)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, info)
	default:
		return output.PrintTable(os.Stdout, queueInfoView(info))
	}
}

func runQueueDrop(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	queueID := args[0]

	confirmed, err := prompt.ConfirmWithForce(fmt.Sprintf("Drop queue %q? This deletes all persisted requests", queueID), queueDropForce)
	if err != nil {
		return err
	}
	if !confirmed {
		fmt.Println("Aborted.")
		return nil
	}

	q, err := openQueue(ctx, queueID)
	if err != nil {
		return err
	}
	if err := q.Drop(ctx); err != nil {
		return fmt.Errorf("failed to drop queue: %w", err)
	}

	fmt.Printf("Queue %q dropped.\n", queueID)
	return nil
}
