// Command crawlcore drives a RequestQueue, RequestList, AutoscaledPool and
// SessionPool wired together against a pluggable storage backend.
package main

import (
	"fmt"
	"os"

	"github.com/scrapeforge/crawlcore/cmd/crawlcore/commands"
)

// Build-time variables injected via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.Version = version
	commands.Commit = commit
	commands.Date = date

	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
