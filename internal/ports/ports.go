package ports

import (
	"context"

	"browser-pilot/internal/entity"
)

// SessionController owns the single live page and its lifecycle.
type SessionController interface {
	Open(ctx context.Context) (*entity.SessionState, error)
	Close(ctx context.Context) (*entity.SessionState, error)
	Navigate(ctx context.Context, url string, waitMillis int) error
	IsOpen() bool
}

// PageDriver performs one complete action against a single selector,
// including its own bounded visibility wait. The executor's fallback
// chain is built on top of it.
type PageDriver interface {
	FillField(ctx context.Context, selector, value string) error
	ClickElement(ctx context.Context, selector string) error
}

// PageInspector evaluates a read-only script against the live document.
type PageInspector interface {
	Inspect(ctx context.Context, script string) (any, error)
	PageInfo(ctx context.Context) (url, title string, err error)
}

// PageShooter renders the current viewport to an image buffer.
type PageShooter interface {
	Screenshot(ctx context.Context) ([]byte, error)
}

type SnapshotExtractor interface {
	Snapshot(ctx context.Context, scope entity.Scope) ([]entity.ElementDescriptor, error)
}

type ActionExecutor interface {
	Fill(ctx context.Context, selectors []string, value string) (*entity.ActionResult, error)
	Click(ctx context.Context, selectors []string) (*entity.ActionResult, error)
}

type Capturer interface {
	Capture(ctx context.Context) ([]byte, error)
	Store(data []byte) (string, error)
}

// ToolRunner dispatches validated tool calls; the loop and planner depend
// on this interface, never on concrete tools.
type ToolRunner interface {
	Run(ctx context.Context, call entity.ToolCall) (*entity.ToolResult, error)
	Schemas() []entity.ToolSchema
}

// Planner is the external decision-making collaborator: one observation
// in, exactly one tool call or completion signal out.
type Planner interface {
	Begin(task string)
	Decide(ctx context.Context, obs *entity.Observation, feedback string) (*entity.Decision, error)
}

type TaskRunner interface {
	Run(ctx context.Context, description string) (*entity.TaskRun, error)
}
