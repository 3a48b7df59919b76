package usecase

import (
	"panel-agent/internal/config"
	"panel-agent/internal/ports"
	"panel-agent/internal/usecase/adapters"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Service struct {
	Session    adapters.SessionService
	Resolver   adapters.ResolverService
	Navigator  adapters.NavigatorService
	PageState  adapters.PageStateService
	DatePicker adapters.DatePickerService
	Runner     adapters.RunnerService
}

type Params struct {
	fx.In

	Logger *zap.Logger
	Config *config.Config
	Page   ports.Page
	Clock  ports.Clock
}

func NewUsecase(params Params) (*Service, error) {
	factory := newServiceFactory(params)

	pageState, err := factory.CreatePageStateService()
	if err != nil {
		return nil, err
	}

	session := factory.CreateSessionService()
	resolver := factory.CreateResolverService()
	navigator := factory.CreateNavigatorService()
	datePicker := factory.CreateDatePickerService()

	return &Service{
		Session:    session,
		Resolver:   resolver,
		Navigator:  navigator,
		PageState:  pageState,
		DatePicker: datePicker,
		Runner:     factory.CreateRunnerService(session, resolver, navigator, pageState, datePicker),
	}, nil
}
