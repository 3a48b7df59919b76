package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"panel-agent/internal/config"
	"panel-agent/internal/entity"
	"panel-agent/internal/ports"
	"panel-agent/internal/usecase/adapters"
	"panel-agent/pkg/apperr"
	"panel-agent/pkg/logg"
	"panel-agent/pkg/tracing"
)

const (
	runnerServiceName = "RunnerService"
	runnerTracer      = "usecase.runner"
)

// Runner drives one job through the engine: open the panel, authenticate,
// pick the farm, navigate for the manager, select the manager and date, read
// report status.
type Runner struct {
	panel      *config.PanelConfig
	timing     *config.TimingConfig
	logger     *zap.Logger
	tracer     trace.Tracer
	page       ports.Page
	clock      ports.Clock
	session    adapters.SessionService
	resolver   adapters.ResolverService
	navigator  adapters.NavigatorService
	pageState  adapters.PageStateService
	datePicker adapters.DatePickerService
}

type RunnerParams struct {
	fx.In

	Logger     *zap.Logger
	Config     *config.Config
	Page       ports.Page
	Clock      ports.Clock
	Session    adapters.SessionService
	Resolver   adapters.ResolverService
	Navigator  adapters.NavigatorService
	PageState  adapters.PageStateService
	DatePicker adapters.DatePickerService
}

func NewRunner(params RunnerParams) *Runner {
	return &Runner{
		panel:      params.Config.PanelConfig,
		timing:     params.Config.TimingConfig,
		logger:     params.Logger.With(zap.String(logg.Layer, runnerServiceName)),
		tracer:     otel.Tracer(runnerTracer),
		page:       params.Page,
		clock:      params.Clock,
		session:    params.Session,
		resolver:   params.Resolver,
		navigator:  params.Navigator,
		pageState:  params.PageState,
		datePicker: params.DatePicker,
	}
}

func (r *Runner) Execute(ctx context.Context, job entity.Job) (run *entity.Run, err error) {
	const op = "Execute"
	logger := r.logger.With(zap.String(logg.Operation, op))

	ctx, span := tracing.StartSpan(ctx, r.tracer, logger, op,
		attribute.String("manager", job.Manager),
		attribute.String("farm", job.Farm))
	defer func() {
		span.End(err)
	}()

	if err := job.Validate(); err != nil {
		return nil, apperr.InvalidReqError(op, "job", err)
	}

	run = &entity.Run{
		ID:        uuid.New(),
		Job:       job,
		Status:    entity.RunStatusInProgress,
		CreatedAt: r.clock.Now(),
		Steps:     make([]entity.Step, 0, 7),
	}

	logger = logger.With(zap.String(logg.RunID, run.ID.String()))
	logg.Step(logger, "Run started", zap.String("manager", job.Manager))

	// A fresh browser sits on about:blank, which the session check would
	// read as authenticated.
	if !r.step(run, logger, entity.StepOpenPanel, "open login page", func() bool {
		return r.openPanel(ctx, logger)
	}) {
		return r.fail(run, op, entity.StepOpenPanel, apperr.CodeActionFailed)
	}

	if !r.authenticate(ctx, run, logger, job) {
		return r.fail(run, op, entity.StepAuthenticate, apperr.CodeNotAuthenticated)
	}

	farm := job.Farm
	if farm == "" {
		if !r.step(run, logger, entity.StepListFarms, "list navigable farms", func() bool {
			run.Farms = r.pageState.ListNavigableResources(ctx)
			farm = pickFarm(run.Farms, job.FarmName)

			return farm != ""
		}) {
			return r.fail(run, op, entity.StepListFarms, apperr.CodeNotFound)
		}
	}

	if !r.navigate(ctx, run, logger, farm, job.Manager) {
		return r.fail(run, op, entity.StepNavigate, apperr.CodeActionFailed)
	}

	// The session can expire between login and navigation; the panel then
	// redirects to the login page and the manager check passes on it.
	if !r.session.IsAuthenticated(ctx) {
		logger.Warn("Navigation ended on the login page, authenticating again", zap.String(logg.URL, r.page.URL()))

		if !r.authenticate(ctx, run, logger, job) {
			return r.fail(run, op, entity.StepAuthenticate, apperr.CodeNotAuthenticated)
		}

		if !r.navigate(ctx, run, logger, farm, job.Manager) {
			return r.fail(run, op, entity.StepNavigate, apperr.CodeActionFailed)
		}

		if !r.session.IsAuthenticated(ctx) {
			return r.fail(run, op, entity.StepNavigate, apperr.CodeNotAuthenticated)
		}
	}

	if job.SelectManager {
		if !r.step(run, logger, entity.StepSelectManager, job.Manager, func() bool {
			return r.resolver.SelectExact(ctx, job.Manager)
		}) {
			return r.fail(run, op, entity.StepSelectManager, apperr.CodeNotFound)
		}
	}

	if job.Date != nil {
		if !r.step(run, logger, entity.StepSelectDate, job.Date.Format(time.DateOnly), func() bool {
			return r.datePicker.SelectDate(ctx, *job.Date)
		}) {
			return r.fail(run, op, entity.StepSelectDate, apperr.CodeActionFailed)
		}
	}

	r.step(run, logger, entity.StepReadReport, "read report status", func() bool {
		status := r.pageState.ReadReportStatus(ctx)
		run.Report = &status

		return true
	})

	completedAt := r.clock.Now()
	run.CompletedAt = &completedAt
	run.Status = entity.RunStatusCompleted

	logg.Success(logger, "Run completed",
		zap.Bool("already_sent", run.Report.AlreadySent),
		zap.Int("report_count", run.Report.ReportCount))

	return run, nil
}

func (r *Runner) openPanel(ctx context.Context, logger *zap.Logger) bool {
	entry, err := panelURL(r.panel, r.panel.LoginPath)
	if err != nil {
		logger.Error("Cannot build panel entry URL", zap.Error(err))

		return false
	}

	if err := r.page.Goto(ctx, entry, r.timing.LoginNavigationTimeout); err != nil {
		logger.Error("Panel did not open", zap.String(logg.URL, entry), zap.Error(err))

		return false
	}

	return r.clock.Sleep(ctx, r.timing.LoginNavigationSettle) == nil
}

func (r *Runner) authenticate(ctx context.Context, run *entity.Run, logger *zap.Logger, job entity.Job) bool {
	return r.step(run, logger, entity.StepAuthenticate, "ensure authenticated session", func() bool {
		return r.session.EnsureAuthenticated(ctx, job.Credentials)
	})
}

func (r *Runner) navigate(ctx context.Context, run *entity.Run, logger *zap.Logger, farm, manager string) bool {
	return r.step(run, logger, entity.StepNavigate, farm, func() bool {
		return r.navigator.GoTo(ctx, entity.NavigationTarget{Resource: farm, Manager: manager})
	})
}

func (r *Runner) step(run *entity.Run, logger *zap.Logger, name entity.StepName, desc string, fn func() bool) bool {
	started := r.clock.Now()
	logg.Step(logger, "Step started", zap.String(logg.Action, string(name)), zap.String("description", desc))

	ok := fn()

	step := entity.Step{
		ID:          uuid.New(),
		Name:        name,
		Description: desc,
		StartedAt:   started,
		Duration:    r.clock.Now().Sub(started),
		Success:     ok,
	}

	if !ok {
		step.Error = fmt.Sprintf("%s failed", name)
		logger.Error("Step failed", zap.String(logg.Action, string(name)))
	}

	run.Steps = append(run.Steps, step)

	return ok
}

func (r *Runner) fail(run *entity.Run, op string, name entity.StepName, code string) (*entity.Run, error) {
	completedAt := r.clock.Now()
	run.CompletedAt = &completedAt
	run.Status = entity.RunStatusFailed
	run.Error = fmt.Sprintf("%s failed", name)

	return run, apperr.Wrap(op, code, fmt.Errorf("step %s failed", name), map[string]any{
		apperr.MetaStep:  string(name),
		apperr.MetaRunID: run.ID.String(),
	})
}

// pickFarm returns the URL of the farm whose name equals want, or of the
// first farm when want is empty.
func pickFarm(farms []entity.FarmEntry, want string) string {
	want = strings.TrimSpace(want)

	for _, f := range farms {
		if want == "" || f.Name == want {
			return f.URL
		}
	}

	return ""
}
