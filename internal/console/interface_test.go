package console

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"panel-agent/internal/config"
	"panel-agent/internal/entity"
	"panel-agent/internal/usecase"
)

type stubSession struct {
	loggedIn bool
	waited   time.Duration
}

func (s *stubSession) IsAuthenticated(context.Context) bool { return s.loggedIn }

func (s *stubSession) Login(_ context.Context, creds entity.Credentials) bool {
	s.loggedIn = creds.Present()
	return s.loggedIn
}

func (s *stubSession) WaitForExternalLogin(_ context.Context, timeout time.Duration) bool {
	s.waited = timeout
	return false
}

func (s *stubSession) EnsureAuthenticated(context.Context, *entity.Credentials) bool { return true }

type stubResolver struct {
	selected []string
}

func (r *stubResolver) Resolve(_ context.Context, req entity.ResolutionRequest) entity.ResolutionResult {
	if req.Label == "진우" {
		return entity.ResolutionResult{Found: true, Strategy: 1, StrategyName: "pattern-label", MatchedText: "진우"}
	}

	return entity.ResolutionResult{Ambiguous: []string{"value-attribute"}, ObservedLabels: []string{"진우", "승진"}}
}

func (r *stubResolver) SelectExact(_ context.Context, label string) bool {
	r.selected = append(r.selected, label)
	return label == "진우"
}

type stubNavigator struct {
	targets []entity.NavigationTarget
}

func (n *stubNavigator) GoTo(_ context.Context, target entity.NavigationTarget) bool {
	n.targets = append(n.targets, target)
	return true
}

type stubPageState struct{}

func (stubPageState) ReadReportStatus(context.Context) entity.ReportStatus {
	return entity.ReportStatus{AlreadySent: true, ReportCount: 4, LabelFound: true}
}

func (stubPageState) ListNavigableResources(context.Context) []entity.FarmEntry {
	return []entity.FarmEntry{
		{Name: "햇살농장", URL: "https://panel.example.com/farms/1/sections/2"},
		{Name: "바람농장", URL: "https://panel.example.com/farms/3/sections/4"},
	}
}

type stubDatePicker struct{}

func (stubDatePicker) SelectDate(context.Context, time.Time) bool { return true }

type stubRunner struct {
	jobs []entity.Job
}

func (r *stubRunner) Execute(_ context.Context, job entity.Job) (*entity.Run, error) {
	r.jobs = append(r.jobs, job)
	return &entity.Run{Status: entity.RunStatusCompleted, Report: &entity.ReportStatus{}}, nil
}

type harness struct {
	iface     *Interface
	out       *bytes.Buffer
	session   *stubSession
	resolver  *stubResolver
	navigator *stubNavigator
	runner    *stubRunner
}

func newHarness(creds *config.CredentialsConfig) *harness {
	h := &harness{
		out:       &bytes.Buffer{},
		session:   &stubSession{},
		resolver:  &stubResolver{},
		navigator: &stubNavigator{},
		runner:    &stubRunner{},
	}

	cfg := &config.Config{
		PanelConfig:       &config.PanelConfig{ReportCountLabel: "리포트 수"},
		CredentialsConfig: creds,
		TimingConfig:      config.DefaultTiming(),
	}

	h.iface = NewInterface(Params{
		Config: cfg,
		Logger: zap.NewNop(),
		Usecase: &usecase.Service{
			Session:    h.session,
			Resolver:   h.resolver,
			Navigator:  h.navigator,
			PageState:  stubPageState{},
			DatePicker: stubDatePicker{},
			Runner:     h.runner,
		},
	})
	h.iface.out = h.out

	return h
}

func TestInterface_GotoByFarmNumber(t *testing.T) {
	h := newHarness(&config.CredentialsConfig{})

	require.NoError(t, h.iface.handleCommand("farms"))
	require.NoError(t, h.iface.handleCommand("goto 2 진우"))

	require.Len(t, h.navigator.targets, 1)
	assert.Equal(t, entity.NavigationTarget{
		Resource: "https://panel.example.com/farms/3/sections/4",
		Manager:  "진우",
	}, h.navigator.targets[0])
	assert.Contains(t, h.out.String(), "바람농장")
}

func TestInterface_SelectKeepsSpacesInLabel(t *testing.T) {
	h := newHarness(&config.CredentialsConfig{})

	require.NoError(t, h.iface.handleCommand("select 김 진우"))

	assert.Equal(t, []string{"김 진우"}, h.resolver.selected)
	assert.Contains(t, h.out.String(), "FAILED")
}

func TestInterface_ResolvePrintsDiagnostics(t *testing.T) {
	h := newHarness(&config.CredentialsConfig{})

	require.NoError(t, h.iface.handleCommand("resolve B"))

	out := h.out.String()
	assert.Contains(t, out, "value-attribute")
	assert.Contains(t, out, "진우 | 승진")
}

func TestInterface_RunParsesArguments(t *testing.T) {
	h := newHarness(&config.CredentialsConfig{Username: "operator", Password: "s3cret"})

	require.NoError(t, h.iface.handleCommand("run 진우 /farms/1/sections/2 2024-05-02"))

	require.Len(t, h.runner.jobs, 1)
	job := h.runner.jobs[0]
	assert.Equal(t, "진우", job.Manager)
	assert.Equal(t, "/farms/1/sections/2", job.Farm)
	require.NotNil(t, job.Date)
	assert.Equal(t, "2024-05-02", job.Date.Format(time.DateOnly))
	require.NotNil(t, job.Credentials)
	assert.Equal(t, "operator", job.Credentials.Username)
}

func TestInterface_LoginRequiresCredentials(t *testing.T) {
	h := newHarness(&config.CredentialsConfig{})

	assert.Error(t, h.iface.handleCommand("login"))
	assert.False(t, h.session.loggedIn)
}

func TestInterface_WaitParsesTimeout(t *testing.T) {
	h := newHarness(&config.CredentialsConfig{})

	require.NoError(t, h.iface.handleCommand("wait 90s"))
	assert.Equal(t, 90*time.Second, h.session.waited)

	assert.Error(t, h.iface.handleCommand("wait soon"))
}

func TestInterface_StartStopsOnExit(t *testing.T) {
	h := newHarness(&config.CredentialsConfig{})
	h.iface.in = strings.NewReader("status\nexit\nstatus\n")

	require.NoError(t, h.iface.Start())

	assert.Equal(t, 1, strings.Count(h.out.String(), "Report count: 4"))
}

func TestInterface_UnknownCommand(t *testing.T) {
	h := newHarness(&config.CredentialsConfig{})

	assert.Error(t, h.iface.handleCommand("dance"))
}
