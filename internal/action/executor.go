package action

import (
	"context"
	"errors"
	"fmt"

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
	executorName   = "ActionExecutor"
	executorTracer = "action.executor"
)

// Executor resolves a semantic action against an ordered selector candidate
// list. Candidates are tried strictly in order; a failing candidate is
// absorbed and the next one gets a fresh wait. The first full success
// short-circuits the chain.
type Executor struct {
	driver ports.PageDriver
	logger *zap.Logger
	tracer trace.Tracer
}

type Params struct {
	fx.In

	Driver ports.PageDriver
	Logger *zap.Logger
}

func New(params Params) *Executor {
	return &Executor{
		driver: params.Driver,
		logger: params.Logger.With(zap.String(logg.Layer, executorName)),
		tracer: otel.Tracer(executorTracer),
	}
}

func (e *Executor) Fill(ctx context.Context, selectors []string, value string) (*entity.ActionResult, error) {
	const op = "Fill"

	return e.resolve(ctx, op, selectors, func(ctx context.Context, selector string) error {
		return e.driver.FillField(ctx, selector, value)
	})
}

func (e *Executor) Click(ctx context.Context, selectors []string) (*entity.ActionResult, error) {
	const op = "Click"

	return e.resolve(ctx, op, selectors, func(ctx context.Context, selector string) error {
		return e.driver.ClickElement(ctx, selector)
	})
}

func (e *Executor) resolve(ctx context.Context, op string, selectors []string, attempt func(context.Context, string) error) (result *entity.ActionResult, err error) {
	logger := e.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, e.tracer, logger, op,
		attribute.Int("candidates", len(selectors)))
	defer func() {
		step.End(err)
	}()

	if len(selectors) == 0 {
		return nil, apperr.InvalidReqError(op, "selectors", errors.New("selector list cannot be empty"))
	}

	attempted := make([]string, 0, len(selectors))

	for _, selector := range selectors {
		attempted = append(attempted, selector)
		step.AddEvent(fmt.Sprintf("trying candidate %d", len(attempted)),
			attribute.String("selector", selector))

		aerr := attempt(ctx, selector)
		if aerr == nil {
			logger.Debug("Candidate resolved", zap.String(logg.Selector, selector))
			step.AddEvent("candidate succeeded")

			return &entity.ActionResult{
				Success:   true,
				Selector:  selector,
				Attempted: attempted,
			}, nil
		}

		// Absorbed: the next candidate retries with a fresh wait.
		logger.Warn("Candidate failed", zap.String(logg.Selector, selector), zap.Error(aerr))
	}

	err = apperr.Wrap(op, apperr.CodeActionUnresolved,
		fmt.Errorf("all %d selector candidates failed", len(attempted)),
		map[string]any{
			apperr.MetaReason:    "candidates_exhausted",
			apperr.MetaStage:     apperr.StageInteraction,
			apperr.MetaAttempted: attempted,
		})

	return &entity.ActionResult{Attempted: attempted}, err
}
