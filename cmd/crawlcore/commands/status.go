package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/scrapeforge/crawlcore/internal/cli/output"
	"github.com/scrapeforge/crawlcore/internal/config"
)

var (
	statusOutput string
	statusPort   int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show runtime status",
	Long: `Display the current status of a running crawlcore admin API.

This command calls the admin API's /health and /system-status/current
routes and reports whether the runtime is reachable and overloaded.

Examples:
  # Check status using the configured admin API port
  crawlcore status

  # Check status on an explicit port
  crawlcore status --port 9090

  # Output as JSON
  crawlcore status --output json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusPort, "port", 0, "admin API port (default: from config)")
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

// runtimeStatus is the CLI-facing view of admin API reachability.
type runtimeStatus struct {
	Reachable bool   `json:"reachable" yaml:"reachable"`
	Message   string `json:"message" yaml:"message"`
	Overload  any    `json:"overload,omitempty" yaml:"overload,omitempty"`
}

func (s runtimeStatus) Headers() []string { return []string{"Field", "Value"} }

func (s runtimeStatus) Rows() [][]string {
	reachable := "no"
	if s.Reachable {
		reachable = "yes"
	}
	rows := [][]string{
		{"reachable", reachable},
		{"message", s.Message},
	}
	if s.Overload != nil {
		data, _ := json.Marshal(s.Overload)
		rows = append(rows, []string{"overload", string(data)})
	}
	return rows
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(statusOutput)
	if err != nil {
		return err
	}

	port := statusPort
	if port == 0 {
		cfg, err := config.Load(GetConfigFile())
		if err != nil {
			return err
		}
		port = cfg.AdminAPI.Port
		if port == 0 {
			port = 8080
		}
	}

	st := fetchStatus(port)

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, st)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, st)
	default:
		return output.PrintTable(os.Stdout, st)
	}
}

func fetchStatus(port int) runtimeStatus {
	client := &http.Client{Timeout: 2 * time.Second}
	base := fmt.Sprintf("http://localhost:%d", port)

	resp, err := client.Get(base + "/health")
	if err != nil {
		return runtimeStatus{Reachable: false, Message: fmt.Sprintf("admin API unreachable: %v", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return runtimeStatus{Reachable: false, Message: fmt.Sprintf("admin API returned status %d", resp.StatusCode)}
	}

	st := runtimeStatus{Reachable: true, Message: "runtime is reachable"}

	overloadResp, err := client.Get(base + "/system-status/current")
	if err == nil {
		defer func() { _ = overloadResp.Body.Close() }()
		var body map[string]any
		if json.NewDecoder(overloadResp.Body).Decode(&body) == nil {
			st.Overload = body["data"]
		}
	}
	return st
}
