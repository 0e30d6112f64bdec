package bootstrap

import (
	"time"

	"browser-pilot/internal/action"
	"browser-pilot/internal/capture"
	"browser-pilot/internal/config"
	"browser-pilot/internal/console"
	"browser-pilot/internal/loop"
	"browser-pilot/internal/planner"
	"browser-pilot/internal/ports"
	"browser-pilot/internal/session"
	"browser-pilot/internal/snapshot"
	"browser-pilot/internal/tool"

	"go.uber.org/fx"
)

func NewApp() *fx.App {
	return fx.New(
		fx.Provide(
			config.GetConfig,
			newLogger,
			newTraceProvider,

			fx.Annotate(session.New,
				fx.As(new(ports.SessionController)),
				fx.As(new(ports.PageDriver)),
				fx.As(new(ports.PageInspector)),
				fx.As(new(ports.PageShooter)),
			),
			fx.Annotate(snapshot.New, fx.As(new(ports.SnapshotExtractor))),
			fx.Annotate(action.New, fx.As(new(ports.ActionExecutor))),
			fx.Annotate(capture.New, fx.As(new(ports.Capturer))),
			fx.Annotate(tool.NewRegistry, fx.As(new(ports.ToolRunner))),
			fx.Annotate(planner.New, fx.As(new(ports.Planner))),
			fx.Annotate(loop.New, fx.As(new(ports.TaskRunner))),

			console.NewInterface,
		),

		fx.Invoke(
			runConsole,
		),

		fx.StartTimeout(10*time.Second),
	)
}
