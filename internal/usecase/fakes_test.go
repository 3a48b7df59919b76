package usecase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"panel-agent/internal/config"
	"panel-agent/internal/ports"
)

const testBaseURL = "https://panel.example.com"

var errUnsupported = errors.New("unsupported selector")

func testConfig() *config.Config {
	return &config.Config{
		AppConfig:     &config.AppConfig{LogLevel: "debug"},
		BrowserConfig: &config.BrowserConfig{Timeout: 30000},
		PanelConfig: &config.PanelConfig{
			BaseURL:          testBaseURL,
			LoginPath:        "/login",
			ManagerParam:     "manager",
			FarmPathPattern:  `/farms?/(\d+)/sections?/(\d+)`,
			ReportCountLabel: "리포트 수",
		},
		CredentialsConfig: &config.CredentialsConfig{},
		TimingConfig:      config.DefaultTiming(),
	}
}

func testParams(page ports.Page, clock ports.Clock) Params {
	return Params{
		Logger: zap.NewNop(),
		Config: testConfig(),
		Page:   page,
		Clock:  clock,
	}
}

// fakeClock advances virtual time on Sleep and records every requested delay.
type fakeClock struct {
	now     time.Time
	slept   []time.Duration
	onSleep func(n int)
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)

	if c.onSleep != nil {
		c.onSleep(len(c.slept))
	}

	return nil
}

type fakeElement struct {
	attrs    map[string]string
	children map[string][]ports.Element
	clickErr error
	onClick  func()
	clicks   []int
	fills    []string
	typed    []string
}

func (e *fakeElement) Query(_ context.Context, selector string) ([]ports.Element, error) {
	return e.children[selector], nil
}

func (e *fakeElement) Click(_ context.Context, clickCount int) error {
	if e.clickErr != nil {
		return e.clickErr
	}

	e.clicks = append(e.clicks, clickCount)

	if e.onClick != nil {
		e.onClick()
	}

	return nil
}

func (e *fakeElement) Fill(_ context.Context, value string) error {
	e.fills = append(e.fills, value)

	return nil
}

func (e *fakeElement) Type(_ context.Context, text string, _ time.Duration) error {
	e.typed = append(e.typed, text)

	return nil
}

// fakeLabel is a label container with an optional nested span and an
// optional embedded radio control.
type fakeLabel struct {
	text    string
	span    string
	el      *fakeElement
	control *fakeElement
}

// fakePage models the parts of a panel page the engine touches. Label
// lookups understand the selectors the resolver generates; anything else
// is served from elements.
type fakePage struct {
	url        string
	content    string
	labels     []*fakeLabel
	elements   map[string][]ports.Element
	errs       map[string]error
	evalResult map[string]any
	onGoto     func(url string) string
	onPress    func(key string)
	gotoURLs   []string
	pressed    []string
	idleErr    error
}

func newFakePage(url string) *fakePage {
	return &fakePage{
		url:      url,
		elements: make(map[string][]ports.Element),
		errs:     make(map[string]error),
	}
}

// addLabel adds a label whose own text is text. A non-empty span nests the
// visible name in a span. A non-empty value embeds a radio input with that
// value and accessible name.
func (p *fakePage) addLabel(text, span, value string) *fakeLabel {
	l := &fakeLabel{
		text: text,
		span: span,
		el:   &fakeElement{children: make(map[string][]ports.Element)},
	}

	if value != "" {
		l.control = &fakeElement{attrs: map[string]string{"type": "radio", "value": value}}
		l.el.children[controlSelector] = []ports.Element{l.control}
	}

	p.labels = append(p.labels, l)

	return l
}

func (p *fakePage) Goto(_ context.Context, url string, _ time.Duration) error {
	p.gotoURLs = append(p.gotoURLs, url)

	if err := p.errs["goto"]; err != nil {
		return err
	}

	p.url = url
	if p.onGoto != nil {
		p.url = p.onGoto(url)
	}

	return nil
}

func (p *fakePage) WaitForNetworkIdle(context.Context, time.Duration) error {
	return p.idleErr
}

func (p *fakePage) URL() string {
	return p.url
}

func (p *fakePage) Content(context.Context) (string, error) {
	if err := p.errs["content"]; err != nil {
		return "", err
	}

	return p.content, nil
}

func (p *fakePage) Query(_ context.Context, selector string) ([]ports.Element, error) {
	if err := p.errs[selector]; err != nil {
		return nil, err
	}

	if found, ok := p.elements[selector]; ok {
		return found, nil
	}

	var found []ports.Element

	for _, l := range p.labels {
		switch {
		case selector == labelSelector:
			found = append(found, l.el)
		case l.control != nil && selector == valueSelector(l.control.attrs["value"]):
			found = append(found, l.control)
		case l.span != "" && selector == textEqualitySelectors(l.span)[0]:
			found = append(found, l.el)
		case selector == textEqualitySelectors(l.text)[1]:
			found = append(found, l.el)
		}
	}

	return found, nil
}

func (p *fakePage) QueryMatching(_ context.Context, selector string, pattern *regexp.Regexp) ([]ports.Element, error) {
	if err := p.errs["matching"]; err != nil {
		return nil, err
	}

	if selector != labelSelector {
		return nil, errUnsupported
	}

	var found []ports.Element

	for _, l := range p.labels {
		if pattern.MatchString(l.text) {
			found = append(found, l.el)
		}
	}

	return found, nil
}

func (p *fakePage) QueryByRole(_ context.Context, role, name string, exact bool) ([]ports.Element, error) {
	if err := p.errs["role"]; err != nil {
		return nil, err
	}

	if role != selectableRole || !exact {
		return nil, errUnsupported
	}

	var found []ports.Element

	for _, l := range p.labels {
		if l.control != nil && strings.TrimSpace(l.text) == name {
			found = append(found, l.control)
		}
	}

	return found, nil
}

func (p *fakePage) Evaluate(_ context.Context, script string, arg any) (any, error) {
	if err := p.errs["evaluate"]; err != nil {
		return nil, err
	}

	if script == labelScanScript {
		args, _ := arg.(map[string]any)
		label, _ := args["label"].(string)
		activate, _ := args["activate"].(bool)

		return p.scan(label, activate), nil
	}

	if p.evalResult != nil {
		return p.evalResult, nil
	}

	return nil, fmt.Errorf("no result configured for script")
}

func (p *fakePage) Press(_ context.Context, key string) error {
	p.pressed = append(p.pressed, key)

	if p.onPress != nil {
		p.onPress(key)
	}

	return p.errs["press"]
}

// scan mirrors labelScanScript: strict equality on the trimmed own text or
// nested span text, first match wins.
func (p *fakePage) scan(label string, activate bool) map[string]interface{} {
	wanted := strings.TrimSpace(label)

	observed := make([]interface{}, 0, len(p.labels))
	for _, l := range p.labels {
		if inner := strings.TrimSpace(l.span); inner != "" {
			observed = append(observed, inner)
		} else {
			observed = append(observed, strings.TrimSpace(l.text))
		}
	}

	for i, l := range p.labels {
		own := strings.TrimSpace(l.text)

		text := ""
		switch {
		case own == wanted:
			text = own
		case l.span != "" && strings.TrimSpace(l.span) == wanted:
			text = strings.TrimSpace(l.span)
		default:
			continue
		}

		if activate {
			target := l.el
			if l.control != nil {
				target = l.control
			}
			target.clicks = append(target.clicks, 1)
		}

		return map[string]interface{}{
			"matched":   true,
			"index":     float64(i),
			"text":      text,
			"activated": activate,
			"labels":    observed,
		}
	}

	return map[string]interface{}{
		"matched":   false,
		"index":     float64(-1),
		"text":      "",
		"activated": false,
		"labels":    observed,
	}
}
