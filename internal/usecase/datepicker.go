package usecase

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"panel-agent/internal/config"
	"panel-agent/internal/ports"
	"panel-agent/pkg/logg"
	"panel-agent/pkg/tracing"
)

const (
	datePickerServiceName = "DatePickerService"
	datePickerTracer      = "usecase.datepicker"

	nativeDateSelector = `input[type="date"]`
	textDateSelector   = `input[name*="date" i]:not([type="date"]), input[id*="date" i]:not([type="date"]), input.datepicker`
)

// DatePicker writes a calendar date into the report date control.
type DatePicker struct {
	timing *config.TimingConfig
	logger *zap.Logger
	tracer trace.Tracer
	page   ports.Page
	clock  ports.Clock
}

func NewDatePicker(params Params) *DatePicker {
	return &DatePicker{
		timing: params.Config.TimingConfig,
		logger: params.Logger.With(zap.String(logg.Layer, datePickerServiceName)),
		tracer: otel.Tracer(datePickerTracer),
		page:   params.Page,
		clock:  params.Clock,
	}
}

func (d *DatePicker) SelectDate(ctx context.Context, date time.Time) (ok bool) {
	const op = "SelectDate"
	value := date.Format(time.DateOnly)
	logger := d.logger.With(zap.String(logg.Operation, op), zap.String("date", value))

	ctx, step := tracing.StartSpan(ctx, d.tracer, logger, op, attribute.String("date", value))
	defer func() {
		step.EndResult(ok, "date_not_set")
	}()

	strategies := []struct {
		name string
		fn   func() error
	}{
		{
			name: "native-date-input",
			fn: func() error {
				input, err := d.single(ctx, nativeDateSelector)
				if err != nil {
					return err
				}

				return input.Fill(ctx, value)
			},
		},
		{
			name: "text-date-input",
			fn: func() error {
				input, err := d.single(ctx, textDateSelector)
				if err != nil {
					return err
				}

				if err := input.Click(ctx, 3); err != nil {
					return err
				}

				return input.Fill(ctx, value)
			},
		},
		{
			name: "in-page-setter",
			fn: func() error {
				raw, err := d.page.Evaluate(ctx, dateInputScript, map[string]any{"value": value})
				if err != nil {
					return err
				}

				res, isMap := raw.(map[string]interface{})
				if !isMap {
					return fmt.Errorf("unexpected result type %T", raw)
				}

				if !getBool(res, "set") {
					return fmt.Errorf("date input not set (%d candidates)", getInt(res, "count"))
				}

				return nil
			},
		},
	}

	for i, st := range strategies {
		step.Attempt(i+1, st.name)

		if err := st.fn(); err != nil {
			logger.Warn("Date strategy failed", zap.String(logg.Strategy, st.name), zap.Error(err))
			continue
		}

		if err := d.clock.Sleep(ctx, d.timing.PostActionSettle); err != nil {
			logger.Warn("Post-action settle interrupted", zap.Error(err))
		}

		logg.Success(logger, "Date selected", zap.String(logg.Strategy, st.name))

		return true
	}

	logger.Error("No date strategy succeeded")

	return false
}

func (d *DatePicker) single(ctx context.Context, selector string) (ports.Element, error) {
	found, err := d.page.Query(ctx, selector)
	if err != nil {
		return nil, err
	}

	if len(found) != 1 {
		return nil, fmt.Errorf("expected one match for %s, found %d", selector, len(found))
	}

	return found[0], nil
}
