package apperr

import (
	"errors"
	"fmt"
)

const (
	MetaReason    = "reason"
	MetaStage     = "stage"
	MetaField     = "field"
	MetaTaskID    = "task_id"
	MetaTool      = "tool"
	MetaSelector  = "selector"
	MetaAttempted = "attempted_selectors"
	MetaURL       = "url"

	StageSession     = "session"
	StageSnapshot    = "snapshot"
	StageNavigation  = "navigation"
	StageInteraction = "interaction"
	StageCapture     = "capture"
	StagePlanner     = "planner"

	CodeInternal         = "internal"
	CodeInvalidArgument  = "invalid_argument"
	CodeSessionNotReady  = "session_not_ready"
	CodeNavigationError  = "navigation_error"
	CodeActionUnresolved = "action_unresolved"
	CodePlannerError     = "planner_error"
	CodeDuplicateAction  = "duplicate_action"
	CodeCancelled        = "cancelled"
)

type Error struct {
	Op       string
	Code     string
	Err      error
	Metadata map[string]any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}

	return e.Op
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Wrap(op, code string, err error, metadata map[string]any) error {
	if metadata == nil {
		metadata = make(map[string]any)
	}

	return &Error{
		Op:       op,
		Code:     code,
		Err:      err,
		Metadata: metadata,
	}
}

func WrapWithReason(op, code string, err error, reason string) error {
	return Wrap(op, code, err, map[string]any{
		MetaReason: reason,
	})
}

func WrapErrorWithReason(op, code, reason string) error {
	return Wrap(op, code, errors.New(reason), map[string]any{
		MetaReason: reason,
	})
}

func InvalidReqError(op, field string, err error) error {
	return Wrap(op, CodeInvalidArgument, err, map[string]any{
		MetaField:  field,
		MetaReason: "invalid_request",
	})
}

// CodeOf walks the error chain and returns the code of the outermost
// *Error, or CodeInternal when the chain carries none.
func CodeOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}

	return CodeInternal
}

// MetadataOf returns the metadata of the outermost *Error in the chain.
func MetadataOf(err error) map[string]any {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Metadata
	}

	return nil
}
