package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"swiftkernel/store"
)

// HistoryCmd lists recently executed cells from the audit log.
type HistoryCmd struct {
	Limit int `help:"Maximum number of cells to show" default:"20"`
}

// Run implements the "swiftkernel history" subcommand.
func (h *HistoryCmd) Run(cli *CLI) error {
	st, err := store.Open(cli.settings.EffectiveAuditDBPath())
	if err != nil {
		return fmt.Errorf("open audit database: %w", err)
	}
	defer st.Close()

	records, err := st.History(context.Background(), h.Limit)
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\t[N]\tOUTCOME\tMESSAGE\tWHEN")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t[%d]\t%s\t%s\t%s\n",
			shortID(r.SessionID), r.ExecutionCount, r.Outcome, truncate(r.Message, 60),
			r.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	w.Flush()

	fmt.Printf("\nTotal: %d cells\n", len(records))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
