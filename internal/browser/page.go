package browser

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"panel-agent/internal/ports"
	"panel-agent/pkg/apperr"
	"panel-agent/pkg/logg"
	"panel-agent/pkg/tracing"
)

var _ ports.Page = (*Manager)(nil)

func (m *Manager) Goto(ctx context.Context, url string, timeout time.Duration) (err error) {
	const op = "Goto"
	logger := m.logger.With(zap.String(logg.Operation, op), zap.String(logg.URL, url))

	_, step := tracing.StartSpan(ctx, m.tracer, logger, op, attribute.String("url", url))
	defer func() {
		step.End(err)
	}()

	if err := ctx.Err(); err != nil {
		return err
	}

	page, err := m.activePage(op)
	if err != nil {
		return err
	}

	_, err = page.Goto(url, playwright.PageGotoOptions{
		Timeout:   millis(timeout),
		WaitUntil: playwright.WaitUntilStateNetworkidle,
	})
	if err != nil {
		code := apperr.CodeActionFailed
		if isTimeout(err) {
			code = apperr.CodeTimeout
		}

		return apperr.Wrap(op, code, err, map[string]any{
			apperr.MetaReason: "goto_failed",
			apperr.MetaStage:  apperr.StageNavigation,
			apperr.MetaURL:    url,
		})
	}

	step.AddEvent("navigation completed")

	return nil
}

func (m *Manager) WaitForNetworkIdle(ctx context.Context, timeout time.Duration) error {
	const op = "WaitForNetworkIdle"

	if err := ctx.Err(); err != nil {
		return err
	}

	page, err := m.activePage(op)
	if err != nil {
		return err
	}

	err = page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: millis(timeout),
	})
	if err != nil {
		return apperr.Wrap(op, apperr.CodeTimeout, err, map[string]any{
			apperr.MetaReason: "network_idle_timeout",
			apperr.MetaStage:  apperr.StageNavigation,
		})
	}

	return nil
}

func (m *Manager) URL() string {
	page, err := m.activePage("URL")
	if err != nil {
		return ""
	}

	return page.URL()
}

func (m *Manager) Content(ctx context.Context) (string, error) {
	const op = "Content"

	page, err := m.activePage(op)
	if err != nil {
		return "", err
	}

	html, err := page.Content()
	if err != nil {
		return "", apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "content_failed",
			apperr.MetaStage:  apperr.StagePageState,
		})
	}

	return html, nil
}

func (m *Manager) Query(ctx context.Context, selector string) ([]ports.Element, error) {
	const op = "Query"

	page, err := m.activePage(op)
	if err != nil {
		return nil, err
	}

	return m.expand(op, page.Locator(selector), selector)
}

func (m *Manager) QueryMatching(ctx context.Context, selector string, pattern *regexp.Regexp) ([]ports.Element, error) {
	const op = "QueryMatching"

	page, err := m.activePage(op)
	if err != nil {
		return nil, err
	}

	loc := page.Locator(selector).Filter(playwright.LocatorFilterOptions{
		HasText: pattern,
	})

	return m.expand(op, loc, selector)
}

func (m *Manager) QueryByRole(ctx context.Context, role, name string, exact bool) ([]ports.Element, error) {
	const op = "QueryByRole"

	page, err := m.activePage(op)
	if err != nil {
		return nil, err
	}

	loc := page.GetByRole(playwright.AriaRole(role), playwright.PageGetByRoleOptions{
		Name:  name,
		Exact: playwright.Bool(exact),
	})

	return m.expand(op, loc, "role="+role)
}

func (m *Manager) Evaluate(ctx context.Context, script string, arg any) (any, error) {
	const op = "Evaluate"

	page, err := m.activePage(op)
	if err != nil {
		return nil, err
	}

	result, err := page.Evaluate(script, arg)
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "evaluate_failed",
		})
	}

	return result, nil
}

func (m *Manager) Press(ctx context.Context, key string) error {
	const op = "Press"

	page, err := m.activePage(op)
	if err != nil {
		return err
	}

	if err := page.Keyboard().Press(key); err != nil {
		return apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaReason: "press_failed",
			apperr.MetaStage:  apperr.StageInteraction,
		})
	}

	return nil
}

// expand turns a locator into one element per current match.
func (m *Manager) expand(op string, loc playwright.Locator, selector string) ([]ports.Element, error) {
	count, err := loc.Count()
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeInvalidArgument, err, map[string]any{
			apperr.MetaReason:   "query_failed",
			apperr.MetaSelector: selector,
		})
	}

	elements := make([]ports.Element, 0, count)
	for i := 0; i < count; i++ {
		elements = append(elements, &element{
			loc:     loc.Nth(i),
			timeout: m.actionTimeout(),
			manager: m,
		})
	}

	return elements, nil
}

type element struct {
	loc     playwright.Locator
	timeout *float64
	manager *Manager
}

func (e *element) Query(ctx context.Context, selector string) ([]ports.Element, error) {
	return e.manager.expand("Element.Query", e.loc.Locator(selector), selector)
}

func (e *element) Click(ctx context.Context, clickCount int) error {
	if clickCount < 1 {
		clickCount = 1
	}

	err := e.loc.Click(playwright.LocatorClickOptions{
		ClickCount: playwright.Int(clickCount),
		Timeout:    e.timeout,
	})
	if err != nil {
		return apperr.Wrap("Element.Click", apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaStage: apperr.StageInteraction,
		})
	}

	return nil
}

func (e *element) Fill(ctx context.Context, value string) error {
	if err := e.loc.Fill(value, playwright.LocatorFillOptions{Timeout: e.timeout}); err != nil {
		return apperr.Wrap("Element.Fill", apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaStage: apperr.StageInteraction,
		})
	}

	return nil
}

func (e *element) Type(ctx context.Context, text string, delay time.Duration) error {
	err := e.loc.PressSequentially(text, playwright.LocatorPressSequentiallyOptions{
		Delay:   millis(delay),
		Timeout: e.timeout,
	})
	if err != nil {
		return apperr.Wrap("Element.Type", apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaStage: apperr.StageInteraction,
		})
	}

	return nil
}

func isTimeout(err error) bool {
	return errors.Is(err, playwright.ErrTimeout)
}
