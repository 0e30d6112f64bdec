package logg

// Structured log field names shared across layers.
const (
	Layer     = "layer"
	Operation = "operation"
	TaskID    = "task_id"
	Turn      = "turn"
	Tool      = "tool"
	Scope     = "scope"
	Selector  = "selector"
	URL       = "url"
	State     = "state"
)
