package logg

import "go.uber.org/zap"

const (
	Layer     = "layer"
	Operation = "operation"
	URL       = "url"
	Selector  = "selector"
	RunID     = "run_id"
	Action    = "action"
	Label     = "label"
	Strategy  = "strategy"
	Severity  = "severity"
)

const (
	SeveritySuccess = "success"
	SeverityStep    = "step"
)

// Success logs at info level tagged as a successful outcome.
func Success(logger *zap.Logger, msg string, fields ...zap.Field) {
	logger.Info(msg, append(fields, zap.String(Severity, SeveritySuccess))...)
}

// Step logs at info level tagged as a workflow step marker.
func Step(logger *zap.Logger, msg string, fields ...zap.Field) {
	logger.Info(msg, append(fields, zap.String(Severity, SeverityStep))...)
}
