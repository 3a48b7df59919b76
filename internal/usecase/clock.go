package usecase

import (
	"context"
	"time"

	"panel-agent/internal/ports"
)

type systemClock struct{}

// NewClock returns the wall clock used outside tests.
func NewClock() ports.Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
