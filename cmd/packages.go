package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"swiftkernel/store"
)

// PackagesCmd lists packages installed via the audit log, across sessions.
type PackagesCmd struct{}

// Run implements the "swiftkernel packages" subcommand.
func (p *PackagesCmd) Run(cli *CLI) error {
	st, err := store.Open(cli.settings.EffectiveAuditDBPath())
	if err != nil {
		return fmt.Errorf("open audit database: %w", err)
	}
	defer st.Close()

	records, err := st.Packages(context.Background())
	if err != nil {
		return fmt.Errorf("read packages: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tPRODUCT\tDEPENDENCY\tFINGERPRINT\tWHEN")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			shortID(r.SessionID), r.Product, r.Dependency, r.Fingerprint,
			r.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	w.Flush()

	fmt.Printf("\nTotal: %d installs\n", len(records))
	return nil
}
