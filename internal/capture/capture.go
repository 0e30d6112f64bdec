package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"browser-pilot/internal/config"
	"browser-pilot/internal/ports"
	"browser-pilot/pkg/apperr"
	"browser-pilot/pkg/logg"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

const capturerName = "VerificationCapture"

// Capturer produces screenshot artifacts of the current session state.
// Purely observational; interpretation is left to the caller.
type Capturer struct {
	shooter ports.PageShooter
	dir     string
	logger  *zap.Logger
}

type Params struct {
	fx.In

	Config  *config.Config
	Shooter ports.PageShooter
	Logger  *zap.Logger
}

func New(params Params) *Capturer {
	return &Capturer{
		shooter: params.Shooter,
		dir:     params.Config.AgentConfig.ScreenshotDir,
		logger:  params.Logger.With(zap.String(logg.Layer, capturerName)),
	}
}

func (c *Capturer) Capture(ctx context.Context) ([]byte, error) {
	return c.shooter.Screenshot(ctx)
}

// Store writes the buffer to a file named by capture timestamp and returns
// its path. The screenshot directory is the only durable state the core owns.
func (c *Capturer) Store(data []byte) (string, error) {
	const op = "Store"

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return "", apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "mkdir_failed",
			apperr.MetaStage:  apperr.StageCapture,
		})
	}

	name := fmt.Sprintf("%s.jpg", time.Now().Format("20060102-150405.000"))
	path := filepath.Join(c.dir, name)

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "write_failed",
			apperr.MetaStage:  apperr.StageCapture,
		})
	}

	c.logger.Debug("Screenshot stored", zap.String("path", path))

	return path, nil
}
