package bootstrap

import (
	"context"
	"errors"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"panel-agent/internal/config"
	"panel-agent/internal/entity"
	"panel-agent/internal/ports"
	"panel-agent/internal/usecase"
	"panel-agent/pkg/apperr"
	"panel-agent/pkg/logg"
)

const (
	exitRunFailed  = 1
	exitInvalidJob = 2
)

type runParams struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Shutdowner fx.Shutdowner
	Config     *config.Config
	Job        *config.JobFile
	Browser    ports.BrowserManager
	Usecase    *usecase.Service
	Logger     *zap.Logger
}

// runJob executes a single job once the browser is up and then asks the
// application to shut down with an exit code reflecting the outcome.
func runJob(params runParams) error {
	logger := params.Logger.With(zap.String(logg.Layer, "Run"))

	job, err := params.Job.Job(params.Config.CredentialsConfig)
	if err != nil {
		logger.Error("Invalid job", zap.Error(err))

		return apperr.InvalidReqError("runJob", "job", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	params.Lifecycle.Append(browserHook(params.Browser, logger,
		func() error {
			go func() {
				defer close(done)

				code := exitCode(logger, job, func() (*entity.Run, error) {
					return params.Usecase.Runner.Execute(runCtx, job)
				})

				if err := params.Shutdowner.Shutdown(fx.ExitCode(code)); err != nil {
					logger.Error("Failed to request shutdown", zap.Error(err))
				}
			}()

			return nil
		},
		func(ctx context.Context) {
			cancel()

			select {
			case <-done:
			case <-ctx.Done():
				logger.Warn("Job did not stop before shutdown deadline")
			}
		},
	))

	return nil
}

func exitCode(logger *zap.Logger, job entity.Job, execute func() (*entity.Run, error)) int {
	run, err := execute()

	switch {
	case err == nil:
		logg.Success(logger, "Job finished",
			zap.String(logg.RunID, run.ID.String()),
			zap.String("manager", job.Manager),
			zap.Bool("already_sent", run.Report.AlreadySent),
			zap.Int("report_count", run.Report.ReportCount),
			zap.Bool("label_found", run.Report.LabelFound))

		return 0
	case errors.Is(err, context.Canceled):
		logger.Warn("Job cancelled")

		return exitRunFailed
	case apperr.CodeOf(err) == apperr.CodeInvalidArgument:
		logger.Error("Job rejected", append(apperr.Fields(err), zap.Error(err))...)

		return exitInvalidJob
	default:
		logger.Error("Job failed", append(apperr.Fields(err), zap.Error(err))...)

		return exitRunFailed
	}
}
