package planner

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"browser-pilot/internal/config"
	"browser-pilot/internal/entity"
	"browser-pilot/internal/ports"
	"browser-pilot/pkg/apperr"
	"browser-pilot/pkg/logg"
	"browser-pilot/pkg/tracing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	plannerName   = "Planner"
	plannerTracer = "planner.claude"

	messagesEndpoint = "https://api.anthropic.com/v1/messages"
	apiVersion       = "2023-06-01"

	completeToolName = "complete_task"
)

// Claude is the decision-making collaborator behind ports.Planner: it turns
// one observation into exactly one tool call or a completion signal.
type Claude struct {
	config     *config.Config
	logger     *zap.Logger
	tracer     trace.Tracer
	httpClient *http.Client
	tools      ports.ToolRunner
	messages   []claudeMessage
}

type Params struct {
	fx.In

	Config *config.Config
	Logger *zap.Logger
	Tools  ports.ToolRunner
}

func New(params Params) *Claude {
	return &Claude{
		config:     params.Config,
		logger:     params.Logger.With(zap.String(logg.Layer, plannerName)),
		tracer:     otel.Tracer(plannerTracer),
		httpClient: &http.Client{},
		tools:      params.Tools,
	}
}

type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	Messages  []claudeMessage `json:"messages"`
	Tools     []claudeTool    `json:"tools,omitempty"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type claudeTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type contentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type claudeResponse struct {
	Content []struct {
		Type  string         `json:"type"`
		Text  string         `json:"text,omitempty"`
		Name  string         `json:"name,omitempty"`
		Input map[string]any `json:"input,omitempty"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// Begin resets the conversation for a new task.
func (c *Claude) Begin(task string) {
	c.messages = []claudeMessage{
		{
			Role:    "user",
			Content: systemPrompt(task, c.config.AgentConfig.MaxTurns),
		},
	}
}

// Decide sends the observation (element inventory plus screenshot) and any
// feedback from the previous action, and parses the model's single answer.
func (c *Claude) Decide(ctx context.Context, obs *entity.Observation, feedback string) (decision *entity.Decision, err error) {
	const op = "Decide"
	logger := c.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, c.tracer, logger, op,
		attribute.Int("elements", len(obs.Elements)))
	defer func() {
		step.End(err)
	}()

	c.messages = append(c.messages, c.observationMessage(obs, feedback))

	reqBody := claudeRequest{
		Model:     c.config.PlannerConfig.Model,
		MaxTokens: c.config.PlannerConfig.MaxTokens,
		Messages:  c.messages,
		Tools:     c.toolDefinitions(),
	}

	step.AddEvent("marshaling request")

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "marshal_failed",
			apperr.MetaStage:  apperr.StagePlanner,
		})
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, messagesEndpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "request_create_failed",
			apperr.MetaStage:  apperr.StagePlanner,
		})
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.config.PlannerConfig.APIKey)
	req.Header.Set("anthropic-version", apiVersion)

	step.AddEvent("sending request")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodePlannerError, err, map[string]any{
			apperr.MetaReason: "http_request_failed",
			apperr.MetaStage:  apperr.StagePlanner,
		})
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodePlannerError, err, map[string]any{
			apperr.MetaReason: "read_body_failed",
			apperr.MetaStage:  apperr.StagePlanner,
		})
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, apperr.Wrap(op, apperr.CodePlannerError,
			fmt.Errorf("API error (status %d): %s", httpResp.StatusCode, string(body)),
			map[string]any{
				apperr.MetaReason: "api_error",
				apperr.MetaStage:  apperr.StagePlanner,
				"status_code":     httpResp.StatusCode,
			})
	}

	step.AddEvent("parsing response")

	var resp claudeResponse

	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apperr.Wrap(op, apperr.CodePlannerError, err, map[string]any{
			apperr.MetaReason: "unmarshal_failed",
			apperr.MetaStage:  apperr.StagePlanner,
		})
	}

	decision = c.parseResponse(&resp)

	if decision.Thought != "" {
		c.messages = append(c.messages, claudeMessage{
			Role:    "assistant",
			Content: decision.Thought,
		})
	}

	return decision, nil
}

func (c *Claude) observationMessage(obs *entity.Observation, feedback string) claudeMessage {
	text := renderObservation(obs, feedback)

	if len(obs.Screenshot) == 0 {
		return claudeMessage{Role: "user", Content: text}
	}

	data := downscale(obs.Screenshot, c.logger)

	return claudeMessage{
		Role: "user",
		Content: []contentBlock{
			{
				Type: "image",
				Source: &imageSource{
					Type:      "base64",
					MediaType: "image/jpeg",
					Data:      base64.StdEncoding.EncodeToString(data),
				},
			},
			{
				Type: "text",
				Text: text,
			},
		},
	}
}

func (c *Claude) toolDefinitions() []claudeTool {
	schemas := c.tools.Schemas()
	defs := make([]claudeTool, 0, len(schemas)+1)

	for _, s := range schemas {
		defs = append(defs, claudeTool{
			Name:        s.Name,
			Description: s.Description,
			InputSchema: s.InputSchema,
		})
	}

	defs = append(defs, claudeTool{
		Name:        completeToolName,
		Description: "Signal that the task is finished, with the final result.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"result": map[string]any{"type": "string"},
			},
			"required": []string{"result"},
		},
	})

	return defs
}

func (c *Claude) parseResponse(resp *claudeResponse) *entity.Decision {
	decision := &entity.Decision{}

	for _, content := range resp.Content {
		switch content.Type {
		case "text":
			decision.Thought = content.Text
		case "tool_use":
			if content.Name == completeToolName {
				decision.Complete = true

				if result, ok := content.Input["result"].(string); ok {
					decision.Result = result
				}

				continue
			}

			decision.Call = &entity.ToolCall{
				Name: content.Name,
				Args: content.Input,
			}
		}
	}

	return decision
}

func systemPrompt(task string, maxTurns int) string {
	return fmt.Sprintf(`You are a browser automation planner. Complete the task efficiently.

Task: %s

Each turn you receive the current page state: interactive elements with ranked
selector candidate lists, plus a screenshot. Respond with exactly one tool call.

RULES:
1. Pass the FULL candidate list to fill/click; candidates are tried in order.
2. Candidates are ranked most specific first; never reorder them.
3. After each action check the screenshot for what actually happened.
4. Re-snapshot after the page changes; old selectors may be stale.
5. Never repeat an action that just failed with identical arguments.
6. Call %s only when you can see proof of success.

You have at most %d turns.`, task, completeToolName, maxTurns)
}
