package engine

import (
	"github.com/roach88/vigil/rule"
)

// DefaultFactory returns a factory pre-loaded with the built-in rule
// sets for the common ticketing entity types. Hosts typically start
// from this factory and layer configuration-driven rules on top.
func DefaultFactory() *RuleSetFactory {
	f := NewRuleSetFactory()
	f.RegisterSet("Ticket", TicketRules)
	f.RegisterSet("Account", AccountRules)
	f.RegisterSet("TimeEntry", TimeEntryRules)
	return f
}

// TicketRules builds the default validation set for tickets.
func TicketRules() []rule.Rule {
	required := rule.NewRequiredField("ticket_required_fields",
		[]string{"title", "status", "accountId"},
		rule.WithPriority(rule.PriorityCritical),
		rule.WithDescription("tickets need a title, status, and owning account"),
	)

	priorityRange := rule.NewRange("ticket_priority_range", "priority",
		rule.RangeBounds{Min: rule.Bound(1), Max: rule.Bound(4), Inclusive: true},
		rule.WithPriority(rule.PriorityHigh),
	)

	closedNeedsResolution := rule.NewConditionalRequired("ticket_closed_resolution",
		"status", rule.OpEquals, "Closed", []string{"resolution"},
		rule.WithPriority(rule.PriorityNormal),
		rule.WithDescription("closing a ticket requires a resolution note"),
	)

	dueAfterCreated := rule.NewDateRange("ticket_due_after_created",
		"createdDate", "dueDate", rule.DateRangeConfig{Inclusive: true},
		rule.WithPriority(rule.PriorityNormal),
	)

	return []rule.Rule{required, priorityRange, closedNeedsResolution, dueAfterCreated}
}

// AccountRules builds the default validation set for accounts.
func AccountRules() []rule.Rule {
	required := rule.NewRequiredField("account_required_fields",
		[]string{"name"},
		rule.WithPriority(rule.PriorityCritical),
	)

	phonePattern, err := rule.NewPattern("account_phone_format", "phone", `^[0-9+()\-. ]{7,20}$`,
		rule.WithPriority(rule.PriorityLow),
	)
	if err != nil {
		// Static pattern; a failure here is a programming error.
		panic(err)
	}

	oneOwnerContact := rule.NewMutuallyExclusive("account_owner_contact",
		[]string{"ownerEmail", "ownerContactId"},
		rule.WithPriority(rule.PriorityNormal),
	)

	return []rule.Rule{required, phonePattern, oneOwnerContact}
}

// TimeEntryRules builds the default validation set for time entries.
func TimeEntryRules() []rule.Rule {
	required := rule.NewRequiredField("time_entry_required_fields",
		[]string{"resourceId", "dateWorked"},
		rule.WithPriority(rule.PriorityCritical),
	)

	hoursRange := rule.NewRange("time_entry_hours_range", "hoursWorked",
		rule.RangeBounds{Min: rule.Bound(0), Max: rule.Bound(24), Inclusive: true},
		rule.WithPriority(rule.PriorityHigh),
	)

	splitSum := rule.NewPercentageSum("time_entry_billing_split",
		[]string{"billablePercent", "nonBillablePercent"}, 0.01,
		rule.WithPriority(rule.PriorityNormal),
	)

	return []rule.Rule{required, hoursRange, splitSum}
}
