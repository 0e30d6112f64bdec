package loop

import (
	"context"
	"fmt"
	"testing"

	"browser-pilot/internal/config"
	"browser-pilot/internal/entity"
	"browser-pilot/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSession struct {
	openCount  int
	closeCount int
	open       bool
}

func (f *fakeSession) Open(context.Context) (*entity.SessionState, error) {
	f.openCount++
	already := f.open
	f.open = true

	return &entity.SessionState{Open: true, AlreadyOpen: already}, nil
}

func (f *fakeSession) Close(context.Context) (*entity.SessionState, error) {
	f.closeCount++
	was := f.open
	f.open = false

	return &entity.SessionState{Open: false, WasOpen: was}, nil
}

func (f *fakeSession) Navigate(context.Context, string, int) error { return nil }

func (f *fakeSession) IsOpen() bool { return f.open }

type fakeInspector struct {
	err error
}

func (f *fakeInspector) Inspect(context.Context, string) (any, error) { return nil, nil }

func (f *fakeInspector) PageInfo(context.Context) (string, string, error) {
	if f.err != nil {
		return "", "", f.err
	}

	return "https://example.test", "Example", nil
}

type fakeExtractor struct {
	calls int
	errAt int // 1-based call index that fails; 0 never fails
}

func (f *fakeExtractor) Snapshot(context.Context, entity.Scope) ([]entity.ElementDescriptor, error) {
	f.calls++

	if f.errAt > 0 && f.calls >= f.errAt {
		return nil, apperr.WrapErrorWithReason("Snapshot", apperr.CodeSessionNotReady, "no page open")
	}

	return []entity.ElementDescriptor{
		{Kind: entity.ElementKindInput, Tag: "input", ID: "email", Selectors: []string{"#email"}},
	}, nil
}

type fakeCapturer struct {
	captures int
	stores   int
}

func (f *fakeCapturer) Capture(context.Context) ([]byte, error) {
	f.captures++

	return []byte{0xff, 0xd8}, nil
}

func (f *fakeCapturer) Store([]byte) (string, error) {
	f.stores++

	return "/tmp/shot.jpg", nil
}

// scriptedPlanner replays decisions in order; decide func overrides when set.
type scriptedPlanner struct {
	decide    func(turn int, feedback string) *entity.Decision
	decisions int
	feedbacks []string
	task      string
}

func (f *scriptedPlanner) Begin(task string) { f.task = task }

func (f *scriptedPlanner) Decide(_ context.Context, _ *entity.Observation, feedback string) (*entity.Decision, error) {
	f.feedbacks = append(f.feedbacks, feedback)
	f.decisions++

	return f.decide(f.decisions, feedback), nil
}

type fakeTools struct {
	runs []entity.ToolCall
	err  func(call entity.ToolCall) error
}

func (f *fakeTools) Run(_ context.Context, call entity.ToolCall) (*entity.ToolResult, error) {
	f.runs = append(f.runs, call)

	if f.err != nil {
		if err := f.err(call); err != nil {
			return nil, err
		}
	}

	return &entity.ToolResult{Summary: fmt.Sprintf("%s ok", call.Name), Selector: "#email"}, nil
}

func (f *fakeTools) Schemas() []entity.ToolSchema { return nil }

type deps struct {
	session   *fakeSession
	inspector *fakeInspector
	extractor *fakeExtractor
	capturer  *fakeCapturer
	planner   *scriptedPlanner
	tools     *fakeTools
}

func newLoop(maxTurns int, d *deps) *Loop {
	cfg := &config.Config{
		AppConfig: &config.AppConfig{},
		AgentConfig: &config.AgentConfig{
			MaxTurns:            maxTurns,
			ActionTimeoutMillis: 4000,
			DefaultScope:        "form",
			ScreenshotDir:       "/tmp",
		},
	}

	return New(Params{
		Config:    cfg,
		Logger:    zap.NewNop(),
		Session:   d.session,
		Inspector: d.inspector,
		Extractor: d.extractor,
		Capturer:  d.capturer,
		Planner:   d.planner,
		Tools:     d.tools,
	})
}

func defaultDeps(decide func(turn int, feedback string) *entity.Decision) *deps {
	return &deps{
		session:   &fakeSession{},
		inspector: &fakeInspector{},
		extractor: &fakeExtractor{},
		capturer:  &fakeCapturer{},
		planner:   &scriptedPlanner{decide: decide},
		tools:     &fakeTools{},
	}
}

func clickCall(n int) *entity.ToolCall {
	return &entity.ToolCall{
		Name: "click",
		Args: map[string]any{"selectors": []any{fmt.Sprintf("#btn-%d", n)}},
	}
}

func TestRunExhaustsTurnBudget(t *testing.T) {
	const maxTurns = 5

	d := defaultDeps(func(turn int, _ string) *entity.Decision {
		return &entity.Decision{Call: clickCall(turn)}
	})

	run, err := newLoop(maxTurns, d).Run(context.Background(), "never finishes")
	require.NoError(t, err, "exhaustion is a defined outcome, not an error")

	assert.Equal(t, entity.OutcomeExhausted, run.Outcome)
	assert.Len(t, run.Turns, maxTurns)
	assert.Len(t, d.tools.runs, maxTurns)
	assert.Equal(t, 1, d.session.closeCount)
	assert.NotNil(t, run.CompletedAt)
}

func TestRunCompletesWithFinalCapture(t *testing.T) {
	const actionTurns = 2

	d := defaultDeps(func(turn int, _ string) *entity.Decision {
		if turn > actionTurns {
			return &entity.Decision{Complete: true, Result: "signed up"}
		}

		return &entity.Decision{Call: clickCall(turn)}
	})

	run, err := newLoop(20, d).Run(context.Background(), "sign up")
	require.NoError(t, err)

	assert.Equal(t, entity.OutcomeCompleted, run.Outcome)
	assert.Equal(t, "signed up", run.Result)
	assert.Len(t, d.tools.runs, actionTurns)

	// One observation capture per decision cycle plus exactly one final
	// audit capture.
	assert.Equal(t, actionTurns+2, d.capturer.captures)

	// The final record is capture-only: no call, screenshot attached.
	require.Len(t, run.Turns, actionTurns+1)
	final := run.Turns[len(run.Turns)-1]
	assert.Nil(t, final.Call)
	require.NotNil(t, final.Observation)
	assert.NotEmpty(t, final.Observation.Screenshot)

	assert.Equal(t, 1, d.session.closeCount)
}

func TestRunFailsWhenObservationBreaks(t *testing.T) {
	d := defaultDeps(func(turn int, _ string) *entity.Decision {
		return &entity.Decision{Call: clickCall(turn)}
	})
	d.extractor.errAt = 2

	run, err := newLoop(20, d).Run(context.Background(), "task")
	require.Error(t, err)

	assert.Equal(t, apperr.CodeSessionNotReady, apperr.CodeOf(err))
	assert.Equal(t, entity.OutcomeFailed, run.Outcome)
	assert.NotEmpty(t, run.Error)
	assert.Equal(t, 1, d.session.closeCount, "session closed exactly once on the failure path")
}

func TestRunRoutesRecoverableActionErrorsBack(t *testing.T) {
	d := defaultDeps(nil)
	d.planner.decide = func(turn int, _ string) *entity.Decision {
		if turn == 1 {
			return &entity.Decision{Call: clickCall(1)}
		}

		return &entity.Decision{Complete: true, Result: "done"}
	}
	d.tools.err = func(entity.ToolCall) error {
		return apperr.WrapErrorWithReason("Click", apperr.CodeActionUnresolved, "candidates_exhausted")
	}

	run, err := newLoop(20, d).Run(context.Background(), "task")
	require.NoError(t, err)

	assert.Equal(t, entity.OutcomeCompleted, run.Outcome)
	require.Len(t, d.planner.feedbacks, 2)
	assert.Contains(t, d.planner.feedbacks[1], "failed")
}

func TestRunSkipsDuplicateOfFailedAction(t *testing.T) {
	d := defaultDeps(func(int, string) *entity.Decision {
		// Identical call every time.
		return &entity.Decision{Call: clickCall(1)}
	})
	d.tools.err = func(entity.ToolCall) error {
		return apperr.WrapErrorWithReason("Click", apperr.CodeActionUnresolved, "candidates_exhausted")
	}

	run, err := newLoop(3, d).Run(context.Background(), "task")
	require.NoError(t, err)

	assert.Equal(t, entity.OutcomeExhausted, run.Outcome)
	// First attempt executes and fails; identical retries are not executed.
	assert.Len(t, d.tools.runs, 1)
	assert.Len(t, run.Turns, 3)
}

func TestRunEmptyDescription(t *testing.T) {
	d := defaultDeps(func(int, string) *entity.Decision { return &entity.Decision{Complete: true} })

	_, err := newLoop(20, d).Run(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(err))
	assert.Zero(t, d.session.openCount)
}

func TestRunCancelledContext(t *testing.T) {
	d := defaultDeps(func(turn int, _ string) *entity.Decision {
		return &entity.Decision{Call: clickCall(turn)}
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := newLoop(20, d).Run(ctx, "task")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeCancelled, apperr.CodeOf(err))
	assert.Equal(t, entity.OutcomeFailed, run.Outcome)
	assert.Equal(t, 1, d.session.closeCount)
}

func TestRunPassesTaskToPlanner(t *testing.T) {
	d := defaultDeps(func(int, string) *entity.Decision {
		return &entity.Decision{Complete: true, Result: "ok"}
	})

	_, err := newLoop(20, d).Run(context.Background(), "check the cart")
	require.NoError(t, err)
	assert.Equal(t, "check the cart", d.planner.task)
}
