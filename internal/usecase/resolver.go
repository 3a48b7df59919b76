package usecase

import (
	"context"

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
	resolverServiceName = "ResolverService"
	resolverTracer      = "usecase.resolver"
)

// outcome is what a single strategy observed on the page.
type outcome struct {
	candidates  []ports.Element
	matchedText string
	activated   bool // the strategy already acted inside the page
	observed    []string
}

type strategy struct {
	name string
	find func(ctx context.Context, label string, activate bool) (outcome, error)
}

// Resolver locates a control by its exact visible label. Strategies run in
// order; the first one that yields exactly one candidate wins. Zero or
// several candidates move resolution on to the next strategy.
type Resolver struct {
	timing     *config.TimingConfig
	logger     *zap.Logger
	tracer     trace.Tracer
	page       ports.Page
	clock      ports.Clock
	strategies []strategy
}

func NewResolver(params Params) *Resolver {
	r := &Resolver{
		timing: params.Config.TimingConfig,
		logger: params.Logger.With(zap.String(logg.Layer, resolverServiceName)),
		tracer: otel.Tracer(resolverTracer),
		page:   params.Page,
		clock:  params.Clock,
	}

	r.strategies = []strategy{
		{name: "pattern-label", find: r.findByLabelPattern},
		{name: "value-attribute", find: r.findByValueAttribute},
		{name: "accessible-name", find: r.findByAccessibleName},
		{name: "text-equality", find: r.findByTextEquality},
		{name: "in-page-scan", find: r.findByInPageScan},
	}

	return r
}

func (r *Resolver) SelectExact(ctx context.Context, label string) bool {
	return r.Resolve(ctx, entity.ResolutionRequest{Label: label, Action: entity.ActionActivate}).Found
}

func (r *Resolver) Resolve(ctx context.Context, req entity.ResolutionRequest) (result entity.ResolutionResult) {
	const op = "Resolve"
	logger := r.logger.With(
		zap.String(logg.Operation, op),
		zap.String(logg.Label, req.Label),
		zap.String(logg.Action, string(req.Action)),
	)

	ctx, step := tracing.StartSpan(ctx, r.tracer, logger, op,
		attribute.String("label", req.Label),
		attribute.String("action", string(req.Action)))
	defer func() {
		step.SetAttributes(attribute.Int("strategy", result.Strategy))
		step.EndResult(result.Found, "no_exact_match")
	}()

	if req.Label == "" {
		logger.Error("Empty label cannot be resolved")

		return result
	}

	activate := req.Action == entity.ActionActivate

	for i, st := range r.strategies {
		if ctx.Err() != nil {
			logger.Warn("Resolution cancelled", zap.Error(ctx.Err()))

			return result
		}

		index := i + 1
		stLogger := logger.With(zap.String(logg.Strategy, st.name))
		step.Attempt(index, st.name)

		out, err := st.find(ctx, req.Label, activate)
		if err != nil {
			stLogger.Warn("Strategy failed, trying next", zap.Error(err))
			continue
		}

		if len(out.observed) > 0 {
			result.ObservedLabels = out.observed
		}

		if out.activated {
			logg.Success(stLogger, "Target activated in page", zap.String("matched", out.matchedText))

			return r.settled(ctx, r.found(result, index, st.name, nil, out.matchedText))
		}

		switch len(out.candidates) {
		case 0:
			stLogger.Debug("No candidates")
			continue
		case 1:
		default:
			stLogger.Warn("Ambiguous match rejected", zap.Int("candidates", len(out.candidates)))
			result.Ambiguous = append(result.Ambiguous, st.name)
			continue
		}

		target := out.candidates[0]

		if !activate {
			stLogger.Debug("Target located")

			return r.found(result, index, st.name, target, out.matchedText)
		}

		if err := target.Click(ctx, 1); err != nil {
			stLogger.Warn("Click on resolved target failed, trying next", zap.Error(err))
			continue
		}

		logg.Success(stLogger, "Target selected")

		return r.settled(ctx, r.found(result, index, st.name, target, out.matchedText))
	}

	logger.Error("No strategy produced an exact match",
		zap.Strings("ambiguous", result.Ambiguous),
		zap.Strings("observed_labels", result.ObservedLabels))

	return result
}

func (r *Resolver) found(result entity.ResolutionResult, index int, name string, el ports.Element, text string) entity.ResolutionResult {
	result.Found = true
	result.Strategy = index
	result.StrategyName = name
	result.MatchedText = text

	if el != nil {
		result.Element = el
	}

	return result
}

// settled applies the post-action delay so dependent content starts reloading
// before the caller continues.
func (r *Resolver) settled(ctx context.Context, result entity.ResolutionResult) entity.ResolutionResult {
	if err := r.clock.Sleep(ctx, r.timing.PostActionSettle); err != nil {
		r.logger.Warn("Post-action settle interrupted", zap.Error(err))
	}

	return result
}
