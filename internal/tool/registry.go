package tool

import (
	"context"
	"fmt"

	"browser-pilot/internal/entity"
	"browser-pilot/internal/ports"
	"browser-pilot/pkg/apperr"
	"browser-pilot/pkg/logg"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

const registryName = "ToolRegistry"

// Tool is the uniform contract every browser operation implements. The
// control loop and planner depend on this interface, never on concrete
// tool identities.
type Tool interface {
	Name() string
	Describe() entity.ToolSchema
	Validate(args map[string]any) error
	Execute(ctx context.Context, args map[string]any) (*entity.ToolResult, error)
}

// Registry dispatches validated tool calls by name.
type Registry struct {
	tools  map[string]Tool
	order  []string
	logger *zap.Logger
}

type Params struct {
	fx.In

	Session   ports.SessionController
	Extractor ports.SnapshotExtractor
	Executor  ports.ActionExecutor
	Capturer  ports.Capturer
	Logger    *zap.Logger
}

func NewRegistry(params Params) *Registry {
	r := &Registry{
		tools:  make(map[string]Tool),
		logger: params.Logger.With(zap.String(logg.Layer, registryName)),
	}

	r.register(
		&openSessionTool{session: params.Session},
		&navigateTool{session: params.Session},
		&snapshotTool{extractor: params.Extractor},
		&fillTool{executor: params.Executor},
		&clickTool{executor: params.Executor},
		&captureTool{capturer: params.Capturer},
		&closeSessionTool{session: params.Session},
	)

	return r
}

func (r *Registry) register(tools ...Tool) {
	for _, t := range tools {
		r.tools[t.Name()] = t
		r.order = append(r.order, t.Name())
	}
}

func (r *Registry) Run(ctx context.Context, call entity.ToolCall) (result *entity.ToolResult, err error) {
	const op = "Run"
	logger := r.logger.With(zap.String(logg.Operation, op), zap.String(logg.Tool, call.Name))

	t, ok := r.tools[call.Name]
	if !ok {
		return nil, apperr.Wrap(op, apperr.CodeInvalidArgument,
			fmt.Errorf("unknown tool: %s", call.Name),
			map[string]any{apperr.MetaTool: call.Name})
	}

	if err := t.Validate(call.Args); err != nil {
		return nil, err
	}

	logger.Debug("Dispatching tool call")

	return t.Execute(ctx, call.Args)
}

func (r *Registry) Schemas() []entity.ToolSchema {
	schemas := make([]entity.ToolSchema, 0, len(r.order))

	for _, name := range r.order {
		schemas = append(schemas, r.tools[name].Describe())
	}

	return schemas
}
