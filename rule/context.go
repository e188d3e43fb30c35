package rule

// Operation identifies the mutation being validated.
type Operation string

const (
	// OpCreate is validation before inserting a new entity.
	OpCreate Operation = "create"
	// OpUpdate is validation before modifying an existing entity.
	OpUpdate Operation = "update"
	// OpDelete is validation before removing an entity.
	OpDelete Operation = "delete"
)

// Context is the read-only view passed to every rule invocation.
// The engine never mutates a caller's Context; it works on a copy with
// EntityType forced to the validated type.
type Context struct {
	EntityType     string
	Operation      Operation
	OriginalEntity Entity // pre-change snapshot for diff-based rules
	UserID         string
	SessionID      string
	CorrelationID  string
	Metadata       map[string]any
	Environment    string
}

// WithEntityType returns a copy of the context with EntityType set.
// A caller-supplied EntityType is overwritten, not merged.
func (c *Context) WithEntityType(entityType string) *Context {
	var out Context
	if c != nil {
		out = *c
	}
	out.EntityType = entityType
	return &out
}
