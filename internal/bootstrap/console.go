package bootstrap

import (
	"context"

	"browser-pilot/internal/console"
	"browser-pilot/internal/ports"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func runConsole(lc fx.Lifecycle, consoleInterface *console.Interface, session ports.SessionController, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("Starting console interface...")

			go func() {
				if err := consoleInterface.Start(); err != nil {
					logger.Error("Console interface error", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down...")

			if err := consoleInterface.Stop(); err != nil {
				logger.Error("Failed to stop console", zap.Error(err))
			}

			// Idempotent: reports cleanly when the loop already closed it.
			if _, err := session.Close(ctx); err != nil {
				logger.Error("Failed to close session", zap.Error(err))
			}

			return nil
		},
	})
}
