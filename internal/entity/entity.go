package entity

import (
	"time"

	"github.com/google/uuid"
)

// Scope filters which element kinds a snapshot inspects.
type Scope string

const (
	ScopeForm   Scope = "form"
	ScopeInput  Scope = "input"
	ScopeButton Scope = "button"
	ScopeAll    Scope = "all"
)

func ParseScope(s string) (Scope, bool) {
	switch Scope(s) {
	case ScopeForm, ScopeInput, ScopeButton, ScopeAll:
		return Scope(s), true
	case "":
		return ScopeForm, true
	default:
		return "", false
	}
}

type ElementKind string

const (
	ElementKindForm   ElementKind = "form"
	ElementKindInput  ElementKind = "input"
	ElementKindButton ElementKind = "button"
)

// ElementDescriptor summarizes one interactive DOM node. Produced fresh on
// every snapshot; never carried across turns.
type ElementDescriptor struct {
	Kind        ElementKind
	Tag         string
	ID          string
	Name        string
	Placeholder string
	Type        string
	Text        string
	Classes     []string
	Required    bool
	Visible     bool
	Selectors   []string
}

type ActionKind string

const (
	ActionKindFill  ActionKind = "fill"
	ActionKindClick ActionKind = "click"
)

type ActionRequest struct {
	Kind      ActionKind
	Selectors []string
	Value     string
}

type ActionResult struct {
	Success   bool
	Selector  string
	Attempted []string
}

type Observation struct {
	URL        string
	Title      string
	Scope      Scope
	Elements   []ElementDescriptor
	Screenshot []byte
	CapturedAt time.Time
}

type ToolCall struct {
	Name string
	Args map[string]any
}

type ToolSchema struct {
	Name        string
	Description string
	InputSchema map[string]any
}

type ToolResult struct {
	Summary  string
	Selector string
	Elements []ElementDescriptor
	Image    []byte
}

// Decision is the planner's single answer per turn: either one tool call
// or a completion signal, never both.
type Decision struct {
	Thought  string
	Complete bool
	Result   string
	Call     *ToolCall
}

type TurnRecord struct {
	ID          uuid.UUID
	Index       int
	Observation *Observation
	Call        *ToolCall
	Result      *ToolResult
	Err         string
	Timestamp   time.Time
}

type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeExhausted Outcome = "exhausted"
	OutcomeFailed    Outcome = "failed"
)

type TaskRun struct {
	ID          uuid.UUID
	Description string
	Outcome     Outcome
	Result      string
	Error       string
	Turns       []TurnRecord
	CreatedAt   time.Time
	CompletedAt *time.Time
}

type SessionState struct {
	Open        bool
	AlreadyOpen bool
	WasOpen     bool
	URL         string
}
