package usecase

import (
	"context"
	"errors"
	"fmt"
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
	navigatorServiceName = "NavigatorService"
	navigatorTracer      = "usecase.navigator"
)

// Navigator opens a panel resource for a manager and makes sure the live
// URL still carries that manager after any server-side redirect.
type Navigator struct {
	panel  *config.PanelConfig
	timing *config.TimingConfig
	logger *zap.Logger
	tracer trace.Tracer
	page   ports.Page
	clock  ports.Clock
}

func NewNavigator(params Params) *Navigator {
	return &Navigator{
		panel:  params.Config.PanelConfig,
		timing: params.Config.TimingConfig,
		logger: params.Logger.With(zap.String(logg.Layer, navigatorServiceName)),
		tracer: otel.Tracer(navigatorTracer),
		page:   params.Page,
		clock:  params.Clock,
	}
}

func (n *Navigator) GoTo(ctx context.Context, target entity.NavigationTarget) (ok bool) {
	const op = "GoTo"
	logger := n.logger.With(zap.String(logg.Operation, op), zap.String("manager", target.Manager))

	ctx, step := tracing.StartSpan(ctx, n.tracer, logger, op,
		attribute.String("resource", target.Resource),
		attribute.String("manager", target.Manager))
	reason := ""
	defer func() {
		step.EndResult(ok, reason)
	}()

	dest, err := n.BuildURL(target)
	if err != nil {
		reason = "invalid_target"
		logger.Error("Cannot build navigation URL", zap.Error(err))

		return false
	}

	logg.Step(logger, "Navigating", zap.String(logg.URL, dest))

	if !n.visit(ctx, logger, dest, n.timing.NavigationSettle) {
		reason = "navigation_failed"

		return false
	}

	current := n.page.URL()
	if n.paramOf(current) == target.Manager {
		logg.Success(logger, "Navigation verified", zap.String(logg.URL, current))

		return true
	}

	logger.Warn("Manager parameter not honored, rewriting URL",
		zap.String(logg.URL, current),
		zap.String("got", n.paramOf(current)))
	step.AddEvent("corrective navigation")

	corrected, err := withQueryParam(current, n.panel.ManagerParam, target.Manager)
	if err != nil {
		reason = "unparseable_location"
		logger.Error("Cannot rewrite current URL", zap.Error(err))

		return false
	}

	if !n.visit(ctx, logger, corrected, n.timing.CorrectiveSettle) {
		reason = "corrective_navigation_failed"

		return false
	}

	current = n.page.URL()
	if got := n.paramOf(current); got != target.Manager {
		reason = "post_condition_mismatch"
		logger.Error("Manager parameter still not honored after rewrite",
			zap.String(logg.URL, current),
			zap.String("got", got))

		return false
	}

	logg.Success(logger, "Navigation verified after rewrite", zap.String(logg.URL, current))

	return true
}

// BuildURL resolves the resource against the panel base URL and sets the
// manager parameter, replacing any value already present.
func (n *Navigator) BuildURL(target entity.NavigationTarget) (string, error) {
	if strings.TrimSpace(target.Resource) == "" {
		return "", errors.New("resource is empty")
	}

	if target.Manager == "" {
		return "", errors.New("manager is empty")
	}

	base, err := url.Parse(n.panel.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}

	ref, err := url.Parse(strings.TrimSpace(target.Resource))
	if err != nil {
		return "", fmt.Errorf("parse resource: %w", err)
	}

	return withQueryParam(base.ResolveReference(ref).String(), n.panel.ManagerParam, target.Manager)
}

func (n *Navigator) visit(ctx context.Context, logger *zap.Logger, dest string, settle time.Duration) bool {
	if err := n.page.Goto(ctx, dest, n.timing.NavigationTimeout); err != nil {
		logger.Error("Navigation failed", zap.String(logg.URL, dest), zap.Error(err))

		return false
	}

	if err := n.clock.Sleep(ctx, settle); err != nil {
		logger.Warn("Navigation settle interrupted", zap.Error(err))

		return false
	}

	return true
}

func (n *Navigator) paramOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	return u.Query().Get(n.panel.ManagerParam)
}

func withQueryParam(raw, key, value string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()

	return u.String(), nil
}
