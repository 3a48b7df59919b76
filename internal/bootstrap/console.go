package bootstrap

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"panel-agent/internal/console"
	"panel-agent/internal/ports"
	"panel-agent/pkg/logg"
)

// browserHook launches the browser before start runs and closes it after
// stop, so both run modes share one page lifecycle.
func browserHook(browser ports.BrowserManager, logger *zap.Logger, start func() error, stop func(ctx context.Context)) fx.Hook {
	return fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("Launching browser...")

			if err := browser.Launch(ctx); err != nil {
				logger.Error("Failed to launch browser", zap.Error(err))

				return err
			}

			logg.Success(logger, "Browser launched")

			return start()
		},
		OnStop: func(ctx context.Context) error {
			stop(ctx)

			if !browser.IsReady() {
				return nil
			}

			if err := browser.Close(ctx); err != nil {
				logger.Error("Failed to close browser", zap.Error(err))
			}

			return nil
		},
	}
}

func runConsole(lc fx.Lifecycle, consoleInterface *console.Interface, browser ports.BrowserManager, logger *zap.Logger) {
	logger = logger.With(zap.String(logg.Layer, "Console"))

	lc.Append(browserHook(browser, logger,
		func() error {
			go func() {
				if err := consoleInterface.Start(); err != nil {
					logger.Error("Console interface error", zap.Error(err))
				}
			}()

			return nil
		},
		func(context.Context) {
			if err := consoleInterface.Stop(); err != nil {
				logger.Error("Failed to stop console", zap.Error(err))
			}
		},
	))
}
