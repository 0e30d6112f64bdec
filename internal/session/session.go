package session

import (
	"context"
	"fmt"
	"time"

	"browser-pilot/internal/config"
	"browser-pilot/internal/entity"
	"browser-pilot/pkg/apperr"
	"browser-pilot/pkg/logg"
	"browser-pilot/pkg/tracing"

	"github.com/playwright-community/playwright-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	sessionName   = "SessionContext"
	sessionTracer = "session.context"
)

// Session owns the live browser, context and page. Every other component
// reaches the page through it; at most one page is active at a time.
type Session struct {
	config         *config.Config
	logger         *zap.Logger
	tracer         trace.Tracer
	playwright     *playwright.Playwright
	browser        playwright.Browser
	browserContext playwright.BrowserContext
	page           playwright.Page
	open           bool
}

type Params struct {
	fx.In

	Config *config.Config
	Logger *zap.Logger
}

func New(params Params) *Session {
	return &Session{
		config: params.Config,
		logger: params.Logger.With(zap.String(logg.Layer, sessionName)),
		tracer: otel.Tracer(sessionTracer),
	}
}

// Open launches the browser and creates the single active page. Calling it
// while a session is already open is a no-op reporting the existing state.
func (s *Session) Open(ctx context.Context) (state *entity.SessionState, err error) {
	const op = "Open"
	logger := s.logger.With(zap.String(logg.Operation, op))

	_, step := tracing.StartSpan(ctx, s.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	if s.open && s.page != nil && !s.page.IsClosed() {
		logger.Info("Session already open")

		return &entity.SessionState{Open: true, AlreadyOpen: true, URL: s.page.URL()}, nil
	}

	logger.Info("Launching browser...")
	step.AddEvent("installing playwright")

	if err = playwright.Install(); err != nil {
		return nil, apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "playwright_install_failed",
			apperr.MetaStage:  apperr.StageSession,
		})
	}

	step.AddEvent("starting playwright")

	pw, err := playwright.Run()
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "playwright_start_failed",
			apperr.MetaStage:  apperr.StageSession,
		})
	}
	s.playwright = pw

	browserOptions := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(s.config.BrowserConfig.Headless),
		SlowMo:   playwright.Float(float64(s.config.BrowserConfig.SlowMo)),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
		},
	}

	browser, err := pw.Chromium.Launch(browserOptions)
	if err != nil {
		s.releasePartial(logger)

		return nil, apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "browser_launch_failed",
			apperr.MetaStage:  apperr.StageSession,
		})
	}
	s.browser = browser

	contextOptions := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  1280,
			Height: 720,
		},
		UserAgent:         playwright.String("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"),
		JavaScriptEnabled: playwright.Bool(true),
	}

	browserContext, err := browser.NewContext(contextOptions)
	if err != nil {
		s.releasePartial(logger)

		return nil, apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "context_create_failed",
			apperr.MetaStage:  apperr.StageSession,
		})
	}
	s.browserContext = browserContext

	page, err := browserContext.NewPage()
	if err != nil {
		s.releasePartial(logger)

		return nil, apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "page_create_failed",
			apperr.MetaStage:  apperr.StageSession,
		})
	}
	s.page = page

	s.open = true
	logger.Info("Session opened")

	return &entity.SessionState{Open: true}, nil
}

// Close releases the page and browser. Closing an already-closed session
// reports that no session was open.
func (s *Session) Close(ctx context.Context) (state *entity.SessionState, err error) {
	const op = "Close"
	logger := s.logger.With(zap.String(logg.Operation, op))

	_, step := tracing.StartSpan(ctx, s.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	if !s.open {
		logger.Info("No session open")

		return &entity.SessionState{Open: false, WasOpen: false}, nil
	}

	logger.Info("Closing session...")

	if s.browserContext != nil {
		if cerr := s.browserContext.Close(); cerr != nil {
			logger.Warn("Failed to close context", zap.Error(cerr))
		}
	}

	if s.browser != nil {
		if cerr := s.browser.Close(); cerr != nil {
			logger.Warn("Failed to close browser", zap.Error(cerr))
		}
	}

	if s.playwright != nil {
		if cerr := s.playwright.Stop(); cerr != nil {
			return nil, apperr.Wrap(op, apperr.CodeInternal, cerr, map[string]any{
				apperr.MetaReason: "playwright_stop_failed",
			})
		}
	}

	s.page = nil
	s.browserContext = nil
	s.browser = nil
	s.playwright = nil
	s.open = false

	logger.Info("Session closed")

	return &entity.SessionState{Open: false, WasOpen: true}, nil
}

// releasePartial tears down whatever a failed Open left behind so a later
// Open starts clean.
func (s *Session) releasePartial(logger *zap.Logger) {
	if s.browserContext != nil {
		if cerr := s.browserContext.Close(); cerr != nil {
			logger.Warn("Failed to close context", zap.Error(cerr))
		}
	}

	if s.browser != nil {
		if cerr := s.browser.Close(); cerr != nil {
			logger.Warn("Failed to close browser", zap.Error(cerr))
		}
	}

	if s.playwright != nil {
		if cerr := s.playwright.Stop(); cerr != nil {
			logger.Warn("Failed to stop driver", zap.Error(cerr))
		}
	}

	s.page = nil
	s.browserContext = nil
	s.browser = nil
	s.playwright = nil
	s.open = false
}

func (s *Session) IsOpen() bool {
	return s.open && s.page != nil && !s.page.IsClosed()
}

func (s *Session) requirePage(op string) error {
	if !s.open || s.page == nil || s.page.IsClosed() {
		return apperr.WrapErrorWithReason(op, apperr.CodeSessionNotReady, "no page open")
	}

	return nil
}

// Navigate loads url into the active page and, when waitMillis is positive,
// holds completion for that long after the load settles.
func (s *Session) Navigate(ctx context.Context, url string, waitMillis int) (err error) {
	const op = "Navigate"
	logger := s.logger.With(zap.String(logg.Operation, op), zap.String(logg.URL, url))

	_, step := tracing.StartSpan(ctx, s.tracer, logger, op, attribute.String("url", url))
	defer func() {
		step.End(err)
	}()

	if err = s.requirePage(op); err != nil {
		return err
	}

	step.AddEvent("navigating to URL")

	_, err = s.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(float64(s.config.BrowserConfig.NavigationTimeout)),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return apperr.Wrap(op, apperr.CodeNavigationError, err, map[string]any{
			apperr.MetaReason: "goto_failed",
			apperr.MetaStage:  apperr.StageNavigation,
			apperr.MetaURL:    url,
		})
	}

	if waitMillis > 0 {
		step.AddEvent("settle wait")
		time.Sleep(time.Duration(waitMillis) * time.Millisecond)
	}

	step.AddEvent("navigation completed")

	return nil
}

// FillField performs the complete fill sequence against one selector: wait
// for visibility, select existing content with a triple click, then type
// the value with inter-keystroke pacing.
func (s *Session) FillField(ctx context.Context, selector, value string) (err error) {
	const op = "FillField"
	logger := s.logger.With(zap.String(logg.Operation, op), zap.String(logg.Selector, selector))

	_, step := tracing.StartSpan(ctx, s.tracer, logger, op, attribute.String("selector", selector))
	defer func() {
		step.End(err)
	}()

	if err = s.requirePage(op); err != nil {
		return err
	}

	timeout := float64(s.config.AgentConfig.ActionTimeoutMillis)

	step.AddEvent("waiting for element")

	_, err = s.page.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(timeout),
		State:   playwright.WaitForSelectorStateVisible,
	})
	if err != nil {
		return fmt.Errorf("wait for %q: %w", selector, err)
	}

	step.AddEvent("selecting existing content")

	err = s.page.Click(selector, playwright.PageClickOptions{
		ClickCount: playwright.Int(3),
		Timeout:    playwright.Float(timeout),
	})
	if err != nil {
		return fmt.Errorf("focus %q: %w", selector, err)
	}

	step.AddEvent("typing value")

	err = s.page.Type(selector, value, playwright.PageTypeOptions{
		Delay:   playwright.Float(float64(s.config.AgentConfig.TypeDelayMillis)),
		Timeout: playwright.Float(timeout),
	})
	if err != nil {
		return fmt.Errorf("type into %q: %w", selector, err)
	}

	return nil
}

// ClickElement waits for the selector to become visible, then performs a
// single pointer click.
func (s *Session) ClickElement(ctx context.Context, selector string) (err error) {
	const op = "ClickElement"
	logger := s.logger.With(zap.String(logg.Operation, op), zap.String(logg.Selector, selector))

	_, step := tracing.StartSpan(ctx, s.tracer, logger, op, attribute.String("selector", selector))
	defer func() {
		step.End(err)
	}()

	if err = s.requirePage(op); err != nil {
		return err
	}

	timeout := float64(s.config.AgentConfig.ActionTimeoutMillis)

	step.AddEvent("waiting for element")

	_, err = s.page.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(timeout),
		State:   playwright.WaitForSelectorStateVisible,
	})
	if err != nil {
		return fmt.Errorf("wait for %q: %w", selector, err)
	}

	step.AddEvent("clicking")

	err = s.page.Click(selector, playwright.PageClickOptions{
		Timeout: playwright.Float(timeout),
	})
	if err != nil {
		return fmt.Errorf("click %q: %w", selector, err)
	}

	return nil
}

// Screenshot renders the current viewport as a JPEG byte buffer.
func (s *Session) Screenshot(ctx context.Context) (data []byte, err error) {
	const op = "Screenshot"
	logger := s.logger.With(zap.String(logg.Operation, op))

	_, step := tracing.StartSpan(ctx, s.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	if err = s.requirePage(op); err != nil {
		return nil, err
	}

	data, err = s.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(false),
		Type:     playwright.ScreenshotTypeJpeg,
		Quality:  playwright.Int(60),
	})
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "screenshot_failed",
			apperr.MetaStage:  apperr.StageCapture,
		})
	}

	return data, nil
}

// Inspect evaluates a read-only script against the current document.
func (s *Session) Inspect(ctx context.Context, script string) (result any, err error) {
	const op = "Inspect"
	logger := s.logger.With(zap.String(logg.Operation, op))

	_, step := tracing.StartSpan(ctx, s.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	if err = s.requirePage(op); err != nil {
		return nil, err
	}

	s.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateDomcontentloaded,
		Timeout: playwright.Float(5000),
	})

	result, err = s.page.Evaluate(script)
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "evaluate_failed",
			apperr.MetaStage:  apperr.StageSnapshot,
		})
	}

	return result, nil
}

// PageInfo reports the current URL and title without side effects.
func (s *Session) PageInfo(ctx context.Context) (url, title string, err error) {
	const op = "PageInfo"

	if err = s.requirePage(op); err != nil {
		return "", "", err
	}

	url = s.page.URL()
	title, _ = s.page.Title()

	return url, title, nil
}
