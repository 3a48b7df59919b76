package bootstrap

import (
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"panel-agent/internal/browser"
	"panel-agent/internal/config"
	"panel-agent/internal/console"
	"panel-agent/internal/ports"
	"panel-agent/internal/usecase"
)

type Mode string

const (
	ModeConsole Mode = "console"
	ModeRun     Mode = "run"
)

// NewApp wires the engine. In ModeRun the caller must supply a
// *config.JobFile describing the single job to execute.
func NewApp(mode Mode, opts ...fx.Option) *fx.App {
	return fx.New(append(appOptions(mode), opts...)...)
}

func appOptions(mode Mode) []fx.Option {
	options := []fx.Option{
		fx.Provide(
			config.GetConfig,
			newLogger,
			newTraceProvider,

			browser.NewManager,
			func(m *browser.Manager) ports.BrowserManager { return m },
			func(m *browser.Manager) ports.Page { return m },
			usecase.NewClock,

			usecase.NewUsecase,
		),

		// Launch may download the browser on first use.
		fx.StartTimeout(3 * time.Minute),
		fx.WithLogger(newFxLogger),
	}

	switch mode {
	case ModeRun:
		options = append(options, fx.Invoke(runJob))
	default:
		options = append(options,
			fx.Provide(console.NewInterface),
			fx.Invoke(runConsole),
		)
	}

	return options
}

// newFxLogger routes fx lifecycle events through the app logger. Routine
// events go to debug; provide and invoke failures stay at error level.
func newFxLogger(logger *zap.Logger) fxevent.Logger {
	l := &fxevent.ZapLogger{Logger: logger.Named("fx")}
	l.UseLogLevel(zapcore.DebugLevel)

	return l
}
