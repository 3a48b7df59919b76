package usecase

import (
	"panel-agent/internal/usecase/adapters"
)

type serviceFactory struct {
	deps Params
}

func newServiceFactory(deps Params) *serviceFactory {
	return &serviceFactory{
		deps: deps,
	}
}

func (f *serviceFactory) CreateSessionService() adapters.SessionService {
	return NewSession(f.deps)
}

func (f *serviceFactory) CreateResolverService() adapters.ResolverService {
	return NewResolver(f.deps)
}

func (f *serviceFactory) CreateNavigatorService() adapters.NavigatorService {
	return NewNavigator(f.deps)
}

func (f *serviceFactory) CreatePageStateService() (adapters.PageStateService, error) {
	return NewPageState(f.deps)
}

func (f *serviceFactory) CreateDatePickerService() adapters.DatePickerService {
	return NewDatePicker(f.deps)
}

func (f *serviceFactory) CreateRunnerService(
	session adapters.SessionService,
	resolver adapters.ResolverService,
	navigator adapters.NavigatorService,
	pageState adapters.PageStateService,
	datePicker adapters.DatePickerService,
) adapters.RunnerService {
	return NewRunner(RunnerParams{
		Logger:     f.deps.Logger,
		Config:     f.deps.Config,
		Page:       f.deps.Page,
		Clock:      f.deps.Clock,
		Session:    session,
		Resolver:   resolver,
		Navigator:  navigator,
		PageState:  pageState,
		DatePicker: datePicker,
	})
}
