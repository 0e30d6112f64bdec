package loop

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"browser-pilot/internal/config"
	"browser-pilot/internal/entity"
	"browser-pilot/internal/ports"
	"browser-pilot/pkg/apperr"
	"browser-pilot/pkg/logg"
	"browser-pilot/pkg/tracing"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	loopName   = "ControlLoop"
	loopTracer = "loop.control"
)

// State names one position in the observe-decide-act machine.
type State string

const (
	StateIdle      State = "idle"
	StateObserving State = "observing"
	StateDeciding  State = "deciding"
	StateActing    State = "acting"
	StateCompleted State = "completed"
	StateExhausted State = "exhausted"
	StateFailed    State = "failed"
)

// Loop drives repeated observe-decide-act cycles against one session, up
// to a configured turn budget. The session is closed exactly once on every
// path out.
type Loop struct {
	config    *config.Config
	logger    *zap.Logger
	tracer    trace.Tracer
	session   ports.SessionController
	inspector ports.PageInspector
	extractor ports.SnapshotExtractor
	capturer  ports.Capturer
	planner   ports.Planner
	tools     ports.ToolRunner
}

type Params struct {
	fx.In

	Config    *config.Config
	Logger    *zap.Logger
	Session   ports.SessionController
	Inspector ports.PageInspector
	Extractor ports.SnapshotExtractor
	Capturer  ports.Capturer
	Planner   ports.Planner
	Tools     ports.ToolRunner
}

func New(params Params) *Loop {
	return &Loop{
		config:    params.Config,
		logger:    params.Logger.With(zap.String(logg.Layer, loopName)),
		tracer:    otel.Tracer(loopTracer),
		session:   params.Session,
		inspector: params.Inspector,
		extractor: params.Extractor,
		capturer:  params.Capturer,
		planner:   params.Planner,
		tools:     params.Tools,
	}
}

// Run executes one task to a terminal state: Completed, Exhausted or
// Failed. Exhaustion is not an error; the partial turn log is returned.
func (l *Loop) Run(ctx context.Context, description string) (run *entity.TaskRun, err error) {
	const op = "Run"
	logger := l.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, l.tracer, logger, op,
		attribute.String("task", description))
	defer func() {
		step.End(err)
	}()

	if description == "" {
		return nil, apperr.InvalidReqError(op, "description", errors.New("task description cannot be empty"))
	}

	run = &entity.TaskRun{
		ID:          uuid.New(),
		Description: description,
		CreatedAt:   time.Now(),
		Turns:       make([]entity.TurnRecord, 0),
	}

	logger = logger.With(zap.String(logg.TaskID, run.ID.String()))
	l.transition(logger, StateIdle, StateObserving)

	scope, ok := entity.ParseScope(l.config.AgentConfig.DefaultScope)
	if !ok {
		scope = entity.ScopeForm
	}

	if _, err = l.session.Open(ctx); err != nil {
		return l.fail(run, err)
	}

	closed := false
	closeSession := func() {
		if closed {
			return
		}
		closed = true

		if _, cerr := l.session.Close(ctx); cerr != nil {
			logger.Warn("Failed to close session", zap.Error(cerr))
		}
	}
	defer closeSession()

	l.planner.Begin(description)

	maxTurns := l.config.AgentConfig.MaxTurns
	state := StateObserving
	feedback := ""
	turn := 0

	var (
		lastCall   *entity.ToolCall
		lastFailed bool
	)

	for {
		select {
		case <-ctx.Done():
			return l.fail(run, apperr.Wrap(op, apperr.CodeCancelled, ctx.Err(), map[string]any{
				apperr.MetaReason: "context_cancelled",
			}))
		default:
		}

		logger.Info("Turn starting", zap.Int(logg.Turn, turn+1))

		obs, oerr := l.observe(ctx, scope)
		if oerr != nil {
			return l.fail(run, oerr)
		}

		l.transition(logger, state, StateDeciding)
		state = StateDeciding

		decision, derr := l.planner.Decide(ctx, obs, feedback)
		if derr != nil {
			return l.fail(run, derr)
		}

		if decision.Thought != "" {
			logger.Info("Planner thought", zap.String("thought", decision.Thought))
		}

		if decision.Complete {
			return l.complete(ctx, logger, run, turn, decision.Result)
		}

		record := entity.TurnRecord{
			ID:          uuid.New(),
			Index:       turn,
			Observation: obs,
			Call:        decision.Call,
			Timestamp:   time.Now(),
		}

		switch {
		case decision.Call == nil:
			record.Err = "planner returned neither action nor completion"
			feedback = "No action was provided. Issue exactly one tool call or complete the task."
			lastFailed = true

		case lastFailed && sameCall(lastCall, decision.Call):
			record.Err = "duplicate of previous failed action"
			feedback = "That exact action just failed and was not retried. Try a different approach."
			lastCall = decision.Call

		default:
			l.transition(logger, state, StateActing)
			state = StateActing

			result, aerr := l.tools.Run(ctx, *decision.Call)
			record.Result = result

			if aerr != nil {
				if !recoverable(aerr) {
					record.Err = aerr.Error()
					run.Turns = append(run.Turns, record)

					return l.fail(run, aerr)
				}

				logger.Warn("Action failed", zap.String(logg.Tool, decision.Call.Name), zap.Error(aerr))
				record.Err = aerr.Error()
				feedback = fmt.Sprintf("%s failed: %v", decision.Call.Name, aerr)
				lastFailed = true
			} else {
				feedback = result.Summary
				lastFailed = false
			}

			lastCall = decision.Call
		}

		run.Turns = append(run.Turns, record)
		turn++

		if turn >= maxTurns {
			l.transition(logger, state, StateExhausted)
			logger.Info("Turn budget exhausted", zap.Int(logg.Turn, turn))

			run.Outcome = entity.OutcomeExhausted
			now := time.Now()
			run.CompletedAt = &now
			closeSession()

			return run, nil
		}

		l.transition(logger, state, StateObserving)
		state = StateObserving
	}
}

// observe assembles the observation half of a turn: page identity, scoped
// element snapshot, verification screenshot.
func (l *Loop) observe(ctx context.Context, scope entity.Scope) (*entity.Observation, error) {
	url, title, err := l.inspector.PageInfo(ctx)
	if err != nil {
		return nil, err
	}

	elements, err := l.extractor.Snapshot(ctx, scope)
	if err != nil {
		return nil, err
	}

	shot, err := l.capturer.Capture(ctx)
	if err != nil {
		return nil, err
	}

	if _, serr := l.capturer.Store(shot); serr != nil {
		l.logger.Warn("Failed to store screenshot", zap.Error(serr))
	}

	return &entity.Observation{
		URL:        url,
		Title:      title,
		Scope:      scope,
		Elements:   elements,
		Screenshot: shot,
		CapturedAt: time.Now(),
	}, nil
}

// complete performs the final audit capture and seals the run.
func (l *Loop) complete(ctx context.Context, logger *zap.Logger, run *entity.TaskRun, turn int, result string) (*entity.TaskRun, error) {
	l.transition(logger, StateDeciding, StateCompleted)

	record := entity.TurnRecord{
		ID:        uuid.New(),
		Index:     turn,
		Timestamp: time.Now(),
	}

	if shot, cerr := l.capturer.Capture(ctx); cerr != nil {
		logger.Warn("Final capture failed", zap.Error(cerr))
		record.Err = cerr.Error()
	} else {
		if _, serr := l.capturer.Store(shot); serr != nil {
			logger.Warn("Failed to store final screenshot", zap.Error(serr))
		}

		record.Observation = &entity.Observation{
			Screenshot: shot,
			CapturedAt: time.Now(),
		}
	}

	run.Turns = append(run.Turns, record)
	run.Outcome = entity.OutcomeCompleted
	run.Result = result
	now := time.Now()
	run.CompletedAt = &now

	logger.Info("Task completed", zap.Int(logg.Turn, turn), zap.String("result", result))

	return run, nil
}

func (l *Loop) fail(run *entity.TaskRun, err error) (*entity.TaskRun, error) {
	l.logger.Error("Task failed", zap.Error(err))

	run.Outcome = entity.OutcomeFailed
	run.Error = err.Error()
	now := time.Now()
	run.CompletedAt = &now

	return run, err
}

func (l *Loop) transition(logger *zap.Logger, from, to State) {
	logger.Debug("State transition",
		zap.String("from", string(from)),
		zap.String(logg.State, string(to)))
}

// recoverable reports whether an action error can be routed back to the
// planner instead of failing the whole loop.
func recoverable(err error) bool {
	switch apperr.CodeOf(err) {
	case apperr.CodeActionUnresolved, apperr.CodeNavigationError, apperr.CodeInvalidArgument:
		return true
	default:
		return false
	}
}

func sameCall(a, b *entity.ToolCall) bool {
	if a == nil || b == nil {
		return false
	}

	return a.Name == b.Name && reflect.DeepEqual(a.Args, b.Args)
}
