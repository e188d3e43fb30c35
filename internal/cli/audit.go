package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/vigil/internal/store"
)

// AuditReport is the JSON payload for audit output.
type AuditReport struct {
	Summary store.Summary `json:"summary"`
	Audits  []store.Audit `json:"audits"`
}

// NewAuditCommand creates the audit command.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		dbPath        string
		correlationID string
		limit         int
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the validation audit log",
		Long: `List recorded validations from an audit database, newest first.
With --correlation, lists every validation recorded under that ID in
the order it happened.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(rootOpts, cmd, dbPath, correlationID, limit)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "audit database path")
	cmd.Flags().StringVar(&correlationID, "correlation", "", "filter by correlation ID")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum audits to list")
	cmd.MarkFlagRequired("db") //nolint:errcheck

	return cmd
}

func runAudit(opts *RootOptions, cmd *cobra.Command, dbPath, correlationID string, limit int) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	db, err := store.Open(dbPath)
	if err != nil {
		formatter.Error("E020", err.Error(), nil) //nolint:errcheck
		return WrapExitError(ExitCommandError, "open audit database", err)
	}
	defer db.Close()

	var audits []store.Audit
	if correlationID != "" {
		audits, err = db.ReadAuditsByCorrelation(cmd.Context(), correlationID)
	} else {
		audits, err = db.ReadRecentAudits(cmd.Context(), limit)
	}
	if err != nil {
		formatter.Error("E021", err.Error(), nil) //nolint:errcheck
		return WrapExitError(ExitCommandError, "read audits", err)
	}

	summary, err := db.Summarize(cmd.Context())
	if err != nil {
		formatter.Error("E021", err.Error(), nil) //nolint:errcheck
		return WrapExitError(ExitCommandError, "summarize audits", err)
	}

	if formatter.Format == "json" {
		return formatter.JSON(AuditReport{Summary: summary, Audits: audits})
	}

	fmt.Fprintf(formatter.Writer, "%d audit(s), %d invalid, %d error(s), %d warning(s) total\n",
		summary.Total, summary.Invalid, summary.Errors, summary.Warnings)
	for _, a := range audits {
		status := "VALID"
		if !a.Valid {
			status = "INVALID"
		}
		fmt.Fprintf(formatter.Writer, "%s  %-8s %-16s %s (%de/%dw, %dms) corr=%s\n",
			a.CreatedAt.UTC().Format(time.RFC3339),
			status,
			a.EntityType,
			a.Operation,
			a.ErrorCount,
			a.WarningCount,
			a.DurationMS,
			a.CorrelationID,
		)
		if opts.Verbose {
			for _, issue := range a.Issues {
				fmt.Fprintf(formatter.Writer, "    [%s] %s: %s\n", issue.Severity, issue.Code, issue.Message)
			}
		}
	}
	return nil
}
