package cli

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/vigil/internal/store"
	"github.com/roach88/vigil/rule"
	"github.com/roach88/vigil/validation"
)

// ValidateReport is the JSON payload for validate output.
type ValidateReport struct {
	EntityType    string             `json:"entity_type"`
	Operation     string             `json:"operation"`
	Valid         bool               `json:"valid"`
	ErrorCount    int                `json:"error_count"`
	WarningCount  int                `json:"warning_count"`
	Issues        []validation.Issue `json:"issues,omitempty"`
	CorrelationID string             `json:"correlation_id,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		entityType string
		entityPath string
		configPath string
		operation  string
		dbPath     string
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate an entity against the registered rules",
		Long: `Validate a JSON entity against built-in and configured business rules.

The entity is read from --entity (use "-" for stdin). Exit code 1 means
the entity failed validation; the issue list explains why.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, cmd, validateOptions{
				entityType: entityType,
				entityPath: entityPath,
				configPath: configPath,
				operation:  operation,
				dbPath:     dbPath,
			})
		},
	}

	cmd.Flags().StringVar(&entityType, "type", "", "entity type (e.g. Ticket)")
	cmd.Flags().StringVar(&entityPath, "entity", "", "path to entity JSON (\"-\" for stdin)")
	cmd.Flags().StringVar(&configPath, "config", "", "rule configuration file (JSON or YAML)")
	cmd.Flags().StringVar(&operation, "operation", "create", "operation (create|update|delete)")
	cmd.Flags().StringVar(&dbPath, "db", "", "audit database path (records the validation)")
	cmd.MarkFlagRequired("type")   //nolint:errcheck
	cmd.MarkFlagRequired("entity") //nolint:errcheck

	return cmd
}

type validateOptions struct {
	entityType string
	entityPath string
	configPath string
	operation  string
	dbPath     string
}

func runValidate(opts *RootOptions, cmd *cobra.Command, vo validateOptions) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	op, err := parseOperation(vo.operation)
	if err != nil {
		formatter.Error("E001", err.Error(), nil) //nolint:errcheck
		return WrapExitError(ExitCommandError, "invalid operation", err)
	}

	entity, err := loadEntity(vo.entityPath, cmd.InOrStdin())
	if err != nil {
		formatter.Error("E002", err.Error(), nil) //nolint:errcheck
		return err
	}

	eng, err := buildEngine(vo.configPath)
	if err != nil {
		formatter.Error("E003", err.Error(), nil) //nolint:errcheck
		return err
	}

	correlationID := uuid.Must(uuid.NewV7()).String()
	rctx := &rule.Context{Operation: op, CorrelationID: correlationID}
	formatter.VerboseLog("Validating %s entity with %d rule(s)", vo.entityType, len(eng.RulesFor(vo.entityType)))

	start := time.Now()
	result := eng.ValidateEntity(cmd.Context(), vo.entityType, entity, rctx)
	elapsed := time.Since(start)
	if vo.dbPath != "" {
		if err := recordAudit(cmd, vo, op, correlationID, result, elapsed); err != nil {
			formatter.Error("E004", err.Error(), nil) //nolint:errcheck
			return err
		}
	}

	report := ValidateReport{
		EntityType:    vo.entityType,
		Operation:     string(op),
		Valid:         result.IsValid(),
		ErrorCount:    result.ErrorCount(),
		WarningCount:  result.WarningCount(),
		Issues:        result.Issues(),
		CorrelationID: correlationID,
	}
	if err := writeValidateReport(formatter, report); err != nil {
		return err
	}

	if !report.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("%s failed validation with %d error(s)", vo.entityType, report.ErrorCount))
	}
	return nil
}

func recordAudit(cmd *cobra.Command, vo validateOptions, op rule.Operation, correlationID string, result *validation.Result, elapsed time.Duration) error {
	db, err := store.Open(vo.dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "open audit database", err)
	}
	defer db.Close()

	audit := store.NewAudit(vo.entityType, op, correlationID, result, elapsed)
	if err := db.WriteAudit(cmd.Context(), audit); err != nil {
		return WrapExitError(ExitCommandError, "record audit", err)
	}
	return nil
}

func writeValidateReport(f *OutputFormatter, report ValidateReport) error {
	if f.Format == "json" {
		return f.JSON(report)
	}

	status := "VALID"
	if !report.Valid {
		status = "INVALID"
	}
	fmt.Fprintf(f.Writer, "%s %s (%s)\n", report.EntityType, status, report.Operation)
	for _, issue := range report.Issues {
		fmt.Fprintf(f.Writer, "  [%s] %s: %s", issue.Severity, issue.Code, issue.Message)
		if issue.RuleName != "" {
			fmt.Fprintf(f.Writer, " (rule: %s)", issue.RuleName)
		}
		fmt.Fprintln(f.Writer)
	}
	fmt.Fprintf(f.Writer, "%d error(s), %d warning(s)\n", report.ErrorCount, report.WarningCount)
	return nil
}

func parseOperation(s string) (rule.Operation, error) {
	switch rule.Operation(s) {
	case rule.OpCreate, rule.OpUpdate, rule.OpDelete:
		return rule.Operation(s), nil
	default:
		return "", fmt.Errorf("unknown operation %q: must be create, update, or delete", s)
	}
}
