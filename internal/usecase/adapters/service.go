package adapters

import (
	"context"
	"time"

	"panel-agent/internal/entity"
)

type SessionService interface {
	IsAuthenticated(ctx context.Context) bool
	Login(ctx context.Context, creds entity.Credentials) bool
	WaitForExternalLogin(ctx context.Context, timeout time.Duration) bool
	EnsureAuthenticated(ctx context.Context, creds *entity.Credentials) bool
}

type ResolverService interface {
	Resolve(ctx context.Context, req entity.ResolutionRequest) entity.ResolutionResult
	SelectExact(ctx context.Context, label string) bool
}

type NavigatorService interface {
	GoTo(ctx context.Context, target entity.NavigationTarget) bool
}

type PageStateService interface {
	ReadReportStatus(ctx context.Context) entity.ReportStatus
	ListNavigableResources(ctx context.Context) []entity.FarmEntry
}

type DatePickerService interface {
	SelectDate(ctx context.Context, date time.Time) bool
}

type RunnerService interface {
	Execute(ctx context.Context, job entity.Job) (*entity.Run, error)
}
