package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/vigil/engine"
	"github.com/roach88/vigil/rule"
)

// RuleInfo describes one resolved rule for listing.
type RuleInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Priority    int      `json:"priority"`
	Enabled     bool     `json:"enabled"`
	AppliesTo   []string `json:"applies_to,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// RulesReport is the JSON payload for rules output.
type RulesReport struct {
	EntityType string     `json:"entity_type"`
	Rules      []RuleInfo `json:"rules"`
}

// NewRulesCommand creates the rules command.
func NewRulesCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		entityType string
		configPath string
	)

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List resolved rules in execution order",
		Long: `List the rules that would run for an entity type, in execution order
(global rules by priority, then type-specific rules by priority).

Without --type, lists every entity type with built-in or configured rules.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRules(rootOpts, cmd, entityType, configPath)
		},
	}

	cmd.Flags().StringVar(&entityType, "type", "", "entity type to list (default: all)")
	cmd.Flags().StringVar(&configPath, "config", "", "rule configuration file (JSON or YAML)")

	return cmd
}

func runRules(opts *RootOptions, cmd *cobra.Command, entityType, configPath string) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	eng, err := buildEngine(configPath)
	if err != nil {
		formatter.Error("E003", err.Error(), nil) //nolint:errcheck
		return err
	}

	types := []string{entityType}
	if entityType == "" {
		types = knownEntityTypes(eng)
	}

	var reports []RulesReport
	for _, et := range types {
		reports = append(reports, RulesReport{
			EntityType: et,
			Rules:      describeRules(eng.RulesFor(et)),
		})
	}

	if formatter.Format == "json" {
		return formatter.JSON(reports)
	}
	for _, report := range reports {
		fmt.Fprintf(formatter.Writer, "%s (%d rule(s))\n", report.EntityType, len(report.Rules))
		for _, info := range report.Rules {
			state := ""
			if !info.Enabled {
				state = " [disabled]"
			}
			fmt.Fprintf(formatter.Writer, "  %4d %s%s", info.Priority, info.Name, state)
			if info.Description != "" {
				fmt.Fprintf(formatter.Writer, " - %s", info.Description)
			}
			fmt.Fprintln(formatter.Writer)
		}
	}
	return nil
}

func describeRules(rules []rule.Rule) []RuleInfo {
	infos := make([]RuleInfo, 0, len(rules))
	for _, r := range rules {
		infos = append(infos, RuleInfo{
			Name:        r.Name(),
			Description: r.Description(),
			Priority:    int(r.Priority()),
			Enabled:     r.Enabled(),
			AppliesTo:   r.AppliesTo(),
			Tags:        r.Tags(),
		})
	}
	return infos
}

// knownEntityTypes returns every type the engine has rules for, from
// the built-in factory plus any appearing in registered rules'
// appliesTo lists.
func knownEntityTypes(eng *engine.Engine) []string {
	seen := map[string]bool{}
	for _, et := range engine.DefaultFactory().EntityTypes() {
		seen[et] = true
	}
	for _, et := range eng.EntityTypes() {
		seen[et] = true
	}
	types := make([]string, 0, len(seen))
	for et := range seen {
		types = append(types, et)
	}
	sort.Strings(types)
	return types
}
