package tool

import (
	"context"
	"errors"
	"fmt"

	"browser-pilot/internal/entity"
	"browser-pilot/internal/ports"
	"browser-pilot/pkg/apperr"
)

type openSessionTool struct {
	session ports.SessionController
}

func (t *openSessionTool) Name() string { return "open_session" }

func (t *openSessionTool) Describe() entity.ToolSchema {
	return entity.ToolSchema{
		Name:        t.Name(),
		Description: "Open the browser session. Idempotent: reports existing state if already open.",
		InputSchema: objectSchema(nil, nil),
	}
}

func (t *openSessionTool) Validate(map[string]any) error { return nil }

func (t *openSessionTool) Execute(ctx context.Context, _ map[string]any) (*entity.ToolResult, error) {
	state, err := t.session.Open(ctx)
	if err != nil {
		return nil, err
	}

	summary := "Session opened."
	if state.AlreadyOpen {
		summary = "Session was already open."
	}

	return &entity.ToolResult{Summary: summary}, nil
}

type closeSessionTool struct {
	session ports.SessionController
}

func (t *closeSessionTool) Name() string { return "close_session" }

func (t *closeSessionTool) Describe() entity.ToolSchema {
	return entity.ToolSchema{
		Name:        t.Name(),
		Description: "Close the browser session. Idempotent: reports when no session was open.",
		InputSchema: objectSchema(nil, nil),
	}
}

func (t *closeSessionTool) Validate(map[string]any) error { return nil }

func (t *closeSessionTool) Execute(ctx context.Context, _ map[string]any) (*entity.ToolResult, error) {
	state, err := t.session.Close(ctx)
	if err != nil {
		return nil, err
	}

	summary := "Session closed."
	if !state.WasOpen {
		summary = "No session was open."
	}

	return &entity.ToolResult{Summary: summary}, nil
}

type navigateTool struct {
	session ports.SessionController
}

func (t *navigateTool) Name() string { return "navigate" }

func (t *navigateTool) Describe() entity.ToolSchema {
	return entity.ToolSchema{
		Name:        t.Name(),
		Description: "Load a URL into the active page, optionally waiting wait_millis after load.",
		InputSchema: objectSchema(map[string]any{
			"url":         map[string]any{"type": "string"},
			"wait_millis": map[string]any{"type": "integer", "minimum": 0},
		}, []string{"url"}),
	}
}

func (t *navigateTool) Validate(args map[string]any) error {
	const op = "navigate.Validate"

	url, ok := args["url"].(string)
	if !ok || url == "" {
		return apperr.InvalidReqError(op, "url", errors.New("url is required"))
	}

	if wait, present := args["wait_millis"]; present {
		millis, ok := toInt(wait)
		if !ok || millis < 0 {
			return apperr.InvalidReqError(op, "wait_millis", errors.New("wait_millis must be a non-negative integer"))
		}
	}

	return nil
}

func (t *navigateTool) Execute(ctx context.Context, args map[string]any) (*entity.ToolResult, error) {
	url, _ := args["url"].(string)
	waitMillis, _ := toInt(args["wait_millis"])

	if err := t.session.Navigate(ctx, url, waitMillis); err != nil {
		return nil, err
	}

	return &entity.ToolResult{Summary: fmt.Sprintf("Navigated to %s.", url)}, nil
}

type snapshotTool struct {
	extractor ports.SnapshotExtractor
}

func (t *snapshotTool) Name() string { return "snapshot" }

func (t *snapshotTool) Describe() entity.ToolSchema {
	return entity.ToolSchema{
		Name:        t.Name(),
		Description: "Inspect the page and return interactive elements with ranked selector candidates.",
		InputSchema: objectSchema(map[string]any{
			"scope": map[string]any{
				"type":    "string",
				"enum":    []string{"form", "input", "button", "all"},
				"default": "form",
			},
		}, nil),
	}
}

func (t *snapshotTool) Validate(args map[string]any) error {
	const op = "snapshot.Validate"

	raw, _ := args["scope"].(string)
	if _, ok := entity.ParseScope(raw); !ok {
		return apperr.InvalidReqError(op, "scope", fmt.Errorf("unknown scope: %s", raw))
	}

	return nil
}

func (t *snapshotTool) Execute(ctx context.Context, args map[string]any) (*entity.ToolResult, error) {
	raw, _ := args["scope"].(string)
	scope, _ := entity.ParseScope(raw)

	elements, err := t.extractor.Snapshot(ctx, scope)
	if err != nil {
		return nil, err
	}

	return &entity.ToolResult{
		Summary:  fmt.Sprintf("Snapshot (%s): %d elements.", scope, len(elements)),
		Elements: elements,
	}, nil
}

type fillTool struct {
	executor ports.ActionExecutor
}

func (t *fillTool) Name() string { return "fill" }

func (t *fillTool) Describe() entity.ToolSchema {
	return entity.ToolSchema{
		Name:        t.Name(),
		Description: "Fill a field with a value, trying selector candidates in order until one works.",
		InputSchema: objectSchema(map[string]any{
			"selectors": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"value": map[string]any{"type": "string"},
		}, []string{"selectors", "value"}),
	}
}

func (t *fillTool) Validate(args map[string]any) error {
	const op = "fill.Validate"

	if _, ok := toStrings(args["selectors"]); !ok {
		return apperr.InvalidReqError(op, "selectors", errors.New("selectors must be a non-empty string list"))
	}

	if _, ok := args["value"].(string); !ok {
		return apperr.InvalidReqError(op, "value", errors.New("value is required"))
	}

	return nil
}

func (t *fillTool) Execute(ctx context.Context, args map[string]any) (*entity.ToolResult, error) {
	selectors, _ := toStrings(args["selectors"])
	value, _ := args["value"].(string)

	result, err := t.executor.Fill(ctx, selectors, value)
	if err != nil {
		return nil, err
	}

	return &entity.ToolResult{
		Summary:  fmt.Sprintf("Filled %s.", result.Selector),
		Selector: result.Selector,
	}, nil
}

type clickTool struct {
	executor ports.ActionExecutor
}

func (t *clickTool) Name() string { return "click" }

func (t *clickTool) Describe() entity.ToolSchema {
	return entity.ToolSchema{
		Name:        t.Name(),
		Description: "Click an element, trying selector candidates in order until one works.",
		InputSchema: objectSchema(map[string]any{
			"selectors": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		}, []string{"selectors"}),
	}
}

func (t *clickTool) Validate(args map[string]any) error {
	const op = "click.Validate"

	if _, ok := toStrings(args["selectors"]); !ok {
		return apperr.InvalidReqError(op, "selectors", errors.New("selectors must be a non-empty string list"))
	}

	return nil
}

func (t *clickTool) Execute(ctx context.Context, args map[string]any) (*entity.ToolResult, error) {
	selectors, _ := toStrings(args["selectors"])

	result, err := t.executor.Click(ctx, selectors)
	if err != nil {
		return nil, err
	}

	return &entity.ToolResult{
		Summary:  fmt.Sprintf("Clicked %s.", result.Selector),
		Selector: result.Selector,
	}, nil
}

type captureTool struct {
	capturer ports.Capturer
}

func (t *captureTool) Name() string { return "capture" }

func (t *captureTool) Describe() entity.ToolSchema {
	return entity.ToolSchema{
		Name:        t.Name(),
		Description: "Take a screenshot of the current viewport.",
		InputSchema: objectSchema(nil, nil),
	}
}

func (t *captureTool) Validate(map[string]any) error { return nil }

func (t *captureTool) Execute(ctx context.Context, _ map[string]any) (*entity.ToolResult, error) {
	data, err := t.capturer.Capture(ctx)
	if err != nil {
		return nil, err
	}

	path, err := t.capturer.Store(data)
	if err != nil {
		return nil, err
	}

	return &entity.ToolResult{
		Summary: fmt.Sprintf("Screenshot stored at %s.", path),
		Image:   data,
	}, nil
}

func objectSchema(properties map[string]any, required []string) map[string]any {
	if properties == nil {
		properties = map[string]any{}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}

	if len(required) > 0 {
		schema["required"] = required
	}

	return schema
}

func toStrings(v any) ([]string, bool) {
	switch items := v.(type) {
	case []string:
		if len(items) == 0 {
			return nil, false
		}

		return items, true
	case []any:
		if len(items) == 0 {
			return nil, false
		}

		out := make([]string, 0, len(items))

		for _, item := range items {
			s, ok := item.(string)
			if !ok || s == "" {
				return nil, false
			}

			out = append(out, s)
		}

		return out, true
	default:
		return nil, false
	}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
