package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"panel-agent/internal/config"
	"panel-agent/pkg/apperr"
	"panel-agent/pkg/logg"
	"panel-agent/pkg/tracing"
)

const (
	layerName  = "Browser"
	tracerName = "panel.browser"
	userAgent  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

var viewport = &playwright.Size{Width: 1440, Height: 900}

// Manager owns the playwright process and the single page every engine
// component drives. It implements ports.BrowserManager and ports.Page.
type Manager struct {
	cfg    *config.BrowserConfig
	logger *zap.Logger
	tracer trace.Tracer

	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser // nil for persistent profiles
	bctx    playwright.BrowserContext
	page    playwright.Page
	ready   bool
}

type Params struct {
	fx.In

	Config *config.Config
	Logger *zap.Logger
}

func NewManager(params Params) *Manager {
	return &Manager{
		cfg:    params.Config.BrowserConfig,
		logger: params.Logger.With(zap.String(logg.Layer, layerName)),
		tracer: otel.Tracer(tracerName),
	}
}

func failure(op, reason string, err error) error {
	return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
		apperr.MetaReason: reason,
		apperr.MetaStage:  apperr.StageBrowser,
	})
}

// Launch starts chromium. With a user data dir the profile is reused so a
// logged-in panel session survives restarts.
func (m *Manager) Launch(ctx context.Context) (err error) {
	const op = "Launch"
	logger := m.logger.With(zap.String(logg.Operation, op))

	_, step := tracing.StartSpan(ctx, m.tracer, logger, op)
	defer func() { step.End(err) }()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ready {
		return nil
	}

	if err = playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
		return failure(op, "driver_install_failed", err)
	}
	step.AddEvent("driver installed")

	if m.pw, err = playwright.Run(); err != nil {
		return failure(op, "driver_start_failed", err)
	}

	persistent := m.cfg.UserDataDir != ""
	if persistent {
		err = m.openProfile()
	} else {
		err = m.openEphemeral()
	}
	if err != nil {
		_ = m.pw.Stop()
		m.pw = nil
		return err
	}

	m.ready = true
	logger.Info("Browser ready",
		zap.Bool("persistent", persistent),
		zap.Bool("headless", m.cfg.Headless),
	)

	return nil
}

func (m *Manager) openProfile() error {
	const op = "openProfile"

	if err := os.MkdirAll(m.cfg.UserDataDir, 0o755); err != nil {
		return failure(op, "profile_dir_failed", err)
	}

	bctx, err := m.pw.Chromium.LaunchPersistentContext(m.cfg.UserDataDir, playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless:          playwright.Bool(m.cfg.Headless),
		SlowMo:            m.slowMo(),
		Args:              launchArgs(),
		Viewport:          viewport,
		UserAgent:         playwright.String(userAgent),
		Locale:            playwright.String(m.cfg.Locale),
		TimezoneId:        playwright.String(m.cfg.TimezoneID),
		IgnoreHttpsErrors: playwright.Bool(true),
	})
	if err != nil {
		return failure(op, "profile_launch_failed", err)
	}
	m.bctx = bctx

	// A reopened profile restores its last tab.
	if pages := bctx.Pages(); len(pages) > 0 {
		m.page = pages[0]
		return nil
	}

	return m.newPage(op)
}

func (m *Manager) openEphemeral() error {
	const op = "openEphemeral"

	b, err := m.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(m.cfg.Headless),
		SlowMo:   m.slowMo(),
		Args:     launchArgs(),
	})
	if err != nil {
		return failure(op, "chromium_launch_failed", err)
	}
	m.browser = b

	bctx, err := b.NewContext(playwright.BrowserNewContextOptions{
		Viewport:          viewport,
		UserAgent:         playwright.String(userAgent),
		Locale:            playwright.String(m.cfg.Locale),
		TimezoneId:        playwright.String(m.cfg.TimezoneID),
		IgnoreHttpsErrors: playwright.Bool(true),
	})
	if err != nil {
		return failure(op, "context_failed", err)
	}
	m.bctx = bctx

	return m.newPage(op)
}

func (m *Manager) newPage(op string) error {
	page, err := m.bctx.NewPage()
	if err != nil {
		return failure(op, "new_page_failed", err)
	}
	m.page = page

	return nil
}

// Close tears everything down and reports every failure, not just the first.
func (m *Manager) Close(ctx context.Context) (err error) {
	const op = "Close"
	logger := m.logger.With(zap.String(logg.Operation, op))

	_, step := tracing.StartSpan(ctx, m.tracer, logger, op)
	defer func() { step.End(err) }()

	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	if m.bctx != nil {
		errs = append(errs, m.bctx.Close())
	}
	if m.browser != nil {
		errs = append(errs, m.browser.Close())
	}
	if m.pw != nil {
		errs = append(errs, m.pw.Stop())
	}

	m.ready = false
	m.page, m.bctx, m.browser, m.pw = nil, nil, nil, nil

	if joined := errors.Join(errs...); joined != nil {
		return failure(op, "shutdown_incomplete", joined)
	}

	logger.Info("Browser closed")

	return nil
}

func (m *Manager) IsReady() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.ready
}

// activePage returns the page to drive. If the operator closed the tab, it
// falls back to any other open tab, then to a fresh one.
func (m *Manager) activePage(op string) (playwright.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.ready || m.bctx == nil {
		return nil, apperr.WrapErrorWithReason(op, apperr.CodeBrowserNotReady, "browser_not_ready")
	}

	if m.page != nil && !m.page.IsClosed() {
		return m.page, nil
	}

	for _, p := range m.bctx.Pages() {
		if p.IsClosed() {
			continue
		}
		m.page = p
		m.logger.Warn("Active tab was closed, switched to another tab", zap.String(logg.URL, p.URL()))

		return p, nil
	}

	page, err := m.bctx.NewPage()
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeBrowserNotReady, fmt.Errorf("reopen page: %w", err), map[string]any{
			apperr.MetaReason: "page_not_active",
			apperr.MetaStage:  apperr.StageBrowser,
		})
	}
	m.page = page
	m.logger.Warn("Active tab was closed, opened a new one")

	return page, nil
}

func (m *Manager) slowMo() *float64 {
	return playwright.Float(float64(m.cfg.SlowMo))
}

func (m *Manager) actionTimeout() *float64 {
	return playwright.Float(float64(m.cfg.Timeout))
}

func launchArgs() []string {
	return []string{
		"--disable-blink-features=AutomationControlled",
		"--disable-dev-shm-usage",
		"--no-first-run",
	}
}

func millis(d time.Duration) *float64 {
	return playwright.Float(float64(d.Milliseconds()))
}
