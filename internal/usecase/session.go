package usecase

import (
	"context"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"panel-agent/internal/config"
	"panel-agent/internal/entity"
	"panel-agent/internal/ports"
	"panel-agent/pkg/logg"
	"panel-agent/pkg/tracing"
)

const (
	sessionServiceName = "SessionService"
	sessionTracer      = "usecase.session"

	passwordSelector = `input[type="password"]`
)

var (
	usernameSelectors = []string{
		`input[name="username"]`,
		`input[name="userId"]`,
		`input[name="id"]`,
		`input#username`,
		`input[type="email"]`,
		`input[placeholder*="아이디"]`,
		`input[placeholder*="id" i]`,
		`form input[type="text"]`,
	}

	passwordSelectors = []string{
		passwordSelector,
		`input[name="password"]`,
		`input[placeholder*="비밀번호"]`,
	}

	submitSelectors = []string{
		`button[type="submit"]`,
		`input[type="submit"]`,
		`button:has-text("로그인")`,
		`button:has-text("Login")`,
		`[role="button"]:has-text("로그인")`,
	}
)

// Session verifies and establishes the authenticated state of the page.
// It never returns errors: every fault is logged and reported as false.
type Session struct {
	panel  *config.PanelConfig
	timing *config.TimingConfig
	logger *zap.Logger
	tracer trace.Tracer
	page   ports.Page
	clock  ports.Clock
}

func NewSession(params Params) *Session {
	return &Session{
		panel:  params.Config.PanelConfig,
		timing: params.Config.TimingConfig,
		logger: params.Logger.With(zap.String(logg.Layer, sessionServiceName)),
		tracer: otel.Tracer(sessionTracer),
		page:   params.Page,
		clock:  params.Clock,
	}
}

// IsAuthenticated is a heuristic: any location other than the login page
// counts as authenticated; on the login page the session is authenticated
// only when no password input is rendered.
func (s *Session) IsAuthenticated(ctx context.Context) bool {
	if !s.onLoginPage(s.page.URL()) {
		return true
	}

	fields, err := s.page.Query(ctx, passwordSelector)
	if err != nil {
		s.logger.Warn("Password field query failed", zap.String(logg.Operation, "IsAuthenticated"), zap.Error(err))

		return false
	}

	return len(fields) == 0
}

func (s *Session) Login(ctx context.Context, creds entity.Credentials) (ok bool) {
	const op = "Login"
	logger := s.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op)
	reason := ""
	defer func() {
		step.EndResult(ok, reason)
	}()

	if !creds.Present() {
		reason = "credentials_incomplete"
		logger.Error("Login requires both identifier and secret")

		return false
	}

	loginURL, err := s.loginURL()
	if err != nil {
		reason = "bad_login_url"
		logger.Error("Cannot build login URL", zap.Error(err))

		return false
	}

	logg.Step(logger, "Opening login page", zap.String(logg.URL, loginURL))

	if err := s.page.Goto(ctx, loginURL, s.timing.LoginNavigationTimeout); err != nil {
		reason = "login_navigation_failed"
		logger.Error("Login page navigation failed", zap.Error(err))

		return false
	}

	if err := s.clock.Sleep(ctx, s.timing.LoginNavigationSettle); err != nil {
		reason = "cancelled"

		return false
	}

	if s.IsAuthenticated(ctx) {
		logg.Success(logger, "Session already authenticated")

		return true
	}

	username := s.firstPresent(ctx, logger, usernameSelectors)
	if username == nil {
		reason = "username_field_not_found"
		logger.Error("Username field not found")

		return false
	}

	password := s.firstPresent(ctx, logger, passwordSelectors)
	if password == nil {
		reason = "password_field_not_found"
		logger.Error("Password field not found")

		return false
	}

	step.AddEvent("entering credentials")

	if err := s.enter(ctx, username, creds.Username); err != nil {
		reason = "username_entry_failed"
		logger.Error("Failed to enter username", zap.Error(err))

		return false
	}

	if err := s.enter(ctx, password, creds.Password); err != nil {
		reason = "password_entry_failed"
		logger.Error("Failed to enter password", zap.Error(err))

		return false
	}

	s.submit(ctx, logger)

	if err := s.page.WaitForNetworkIdle(ctx, s.timing.LoginSubmitTimeout); err != nil {
		logger.Warn("Network did not settle after submit", zap.Error(err))
	}

	if err := s.clock.Sleep(ctx, s.timing.LoginSubmitSettle); err != nil {
		reason = "cancelled"

		return false
	}

	if !s.IsAuthenticated(ctx) {
		reason = "still_on_login_page"
		logger.Error("Login did not establish a session", zap.String(logg.URL, s.page.URL()))

		return false
	}

	logg.Success(logger, "Logged in", zap.String(logg.URL, s.page.URL()))

	return true
}

// WaitForExternalLogin polls until a person completes authentication in the
// same browser or the timeout elapses.
func (s *Session) WaitForExternalLogin(ctx context.Context, timeout time.Duration) (ok bool) {
	const op = "WaitForExternalLogin"
	logger := s.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op, attribute.String("timeout", timeout.String()))
	reason := ""
	defer func() {
		step.EndResult(ok, reason)
	}()

	deadline := s.clock.Now().Add(timeout)
	logg.Step(logger, "Waiting for manual login in the browser window", zap.Duration("timeout", timeout))

	for {
		if s.IsAuthenticated(ctx) {
			logg.Success(logger, "Manual login detected")

			return true
		}

		if !s.clock.Now().Before(deadline) {
			reason = "timeout"
			logger.Error("Timed out waiting for manual login", zap.Duration("timeout", timeout))

			return false
		}

		if err := s.clock.Sleep(ctx, s.timing.ManualLoginPoll); err != nil {
			reason = "cancelled"
			logger.Warn("Manual login wait cancelled", zap.Error(err))

			return false
		}
	}
}

func (s *Session) EnsureAuthenticated(ctx context.Context, creds *entity.Credentials) bool {
	const op = "EnsureAuthenticated"
	logger := s.logger.With(zap.String(logg.Operation, op))

	if s.IsAuthenticated(ctx) {
		logger.Info("Session already authenticated")

		return true
	}

	if creds.Present() {
		if s.Login(ctx, *creds) {
			return true
		}

		logger.Warn("Automatic login failed, falling back to manual login")
	} else {
		logger.Info("No credentials configured, waiting for manual login")
	}

	return s.WaitForExternalLogin(ctx, s.timing.ManualLoginTimeout)
}

func (s *Session) loginURL() (string, error) {
	return panelURL(s.panel, s.panel.LoginPath)
}

// panelURL resolves path against the configured panel base URL.
func panelURL(panel *config.PanelConfig, path string) (string, error) {
	base, err := url.Parse(panel.BaseURL)
	if err != nil {
		return "", err
	}

	ref, err := url.Parse(path)
	if err != nil {
		return "", err
	}

	return base.ResolveReference(ref).String(), nil
}

func (s *Session) onLoginPage(current string) bool {
	u, err := url.Parse(current)
	if err != nil {
		return false
	}

	loginPath := strings.TrimSuffix(s.panel.LoginPath, "/")
	path := strings.TrimSuffix(u.Path, "/")

	return path == loginPath || strings.HasPrefix(path, loginPath+"/")
}

func (s *Session) firstPresent(ctx context.Context, logger *zap.Logger, selectors []string) ports.Element {
	for _, selector := range selectors {
		found, err := s.page.Query(ctx, selector)
		if err != nil {
			logger.Debug("Selector rejected", zap.String(logg.Selector, selector), zap.Error(err))
			continue
		}

		if len(found) > 0 {
			logger.Debug("Field resolved", zap.String(logg.Selector, selector))

			return found[0]
		}
	}

	return nil
}

// enter replaces the field content rather than appending to prefilled text.
func (s *Session) enter(ctx context.Context, field ports.Element, value string) error {
	if err := field.Click(ctx, 3); err != nil {
		return err
	}

	if err := field.Fill(ctx, ""); err != nil {
		return err
	}

	return field.Type(ctx, value, s.timing.TypeDelay)
}

func (s *Session) submit(ctx context.Context, logger *zap.Logger) {
	if button := s.firstPresent(ctx, logger, submitSelectors); button != nil {
		err := button.Click(ctx, 1)
		if err == nil {
			return
		}

		logger.Warn("Submit click failed, pressing Enter", zap.Error(err))
	}

	if err := s.page.Press(ctx, "Enter"); err != nil {
		logger.Warn("Enter key submit failed", zap.Error(err))
	}
}
