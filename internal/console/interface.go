package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"panel-agent/internal/config"
	"panel-agent/internal/entity"
	"panel-agent/internal/usecase"
	"panel-agent/pkg/logg"
)

var errExit = errors.New("exit")

type Interface struct {
	config     *config.Config
	logger     *zap.Logger
	usecase    *usecase.Service
	shutdowner fx.Shutdowner
	in         io.Reader
	out        io.Writer
	ctx        context.Context
	cancel     context.CancelFunc
	stopping   atomic.Bool
	farms      []entity.FarmEntry
}

type Params struct {
	fx.In

	Config     *config.Config
	Logger     *zap.Logger
	Usecase    *usecase.Service
	Shutdowner fx.Shutdowner
}

func NewInterface(params Params) *Interface {
	ctx, cancel := context.WithCancel(context.Background())

	return &Interface{
		config:     params.Config,
		logger:     params.Logger.With(zap.String(logg.Layer, "Console")),
		usecase:    params.Usecase,
		shutdowner: params.Shutdowner,
		in:         os.Stdin,
		out:        os.Stdout,
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (i *Interface) Start() error {
	i.printBanner()
	i.printHelp()

	scanner := bufio.NewScanner(i.in)

	for !i.stopping.Load() {
		fmt.Fprint(i.out, "\n> ")

		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if err := i.handleCommand(input); err != nil {
			if errors.Is(err, errExit) {
				break
			}

			i.logger.Error("Command error", zap.Error(err))
			fmt.Fprintf(i.out, "Error: %v\n", err)
		}
	}

	if i.shutdowner != nil && !i.stopping.Load() {
		return i.shutdowner.Shutdown()
	}

	return scanner.Err()
}

func (i *Interface) Stop() error {
	if !i.stopping.CompareAndSwap(false, true) {
		return nil
	}

	i.logger.Info("Stopping console interface...")
	i.cancel()

	fmt.Fprintln(i.out, "Goodbye!")

	return nil
}

func (i *Interface) handleCommand(input string) error {
	command, rest, _ := strings.Cut(input, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(command) {
	case "help", "h":
		i.printHelp()

		return nil
	case "exit", "quit", "q":
		fmt.Fprintln(i.out, "Shutting down...")

		return errExit
	case "login":
		return i.login()
	case "wait":
		return i.wait(rest)
	case "farms":
		return i.listFarms()
	case "goto":
		return i.goTo(rest)
	case "select":
		return i.selectLabel(rest)
	case "resolve":
		return i.resolve(rest)
	case "date":
		return i.selectDate(rest)
	case "status":
		return i.status()
	case "run":
		return i.run(rest)
	default:
		return fmt.Errorf("unknown command %q, type help", command)
	}
}

func (i *Interface) login() error {
	creds := i.credentials()
	if creds == nil {
		return errors.New("PANEL_USERNAME and PANEL_PASSWORD are not set, use wait for a manual login")
	}

	i.report(i.usecase.Session.Login(i.ctx, *creds), "Logged in", "Login failed")

	return nil
}

func (i *Interface) wait(arg string) error {
	timeout := i.config.TimingConfig.ManualLoginTimeout

	if arg != "" {
		d, err := time.ParseDuration(arg)
		if err != nil {
			return fmt.Errorf("parse timeout: %w", err)
		}
		timeout = d
	}

	fmt.Fprintf(i.out, "Waiting up to %s for a manual login in the browser...\n", timeout)
	i.report(i.usecase.Session.WaitForExternalLogin(i.ctx, timeout), "Session authenticated", "No login observed")

	return nil
}

func (i *Interface) listFarms() error {
	i.farms = i.usecase.PageState.ListNavigableResources(i.ctx)

	if len(i.farms) == 0 {
		fmt.Fprintln(i.out, "No farms found on the current page")

		return nil
	}

	for n, farm := range i.farms {
		fmt.Fprintf(i.out, "%2d. %-30s %s\n", n+1, farm.Name, farm.URL)
	}

	return nil
}

func (i *Interface) goTo(arg string) error {
	resource, manager, ok := strings.Cut(arg, " ")
	manager = strings.TrimSpace(manager)

	if !ok || resource == "" || manager == "" {
		return errors.New("usage: goto <url|farm-number> <manager>")
	}

	resource = i.farmURL(resource)
	i.report(i.usecase.Navigator.GoTo(i.ctx, entity.NavigationTarget{Resource: resource, Manager: manager}),
		"Navigated", "Navigation did not land on the manager view")

	return nil
}

func (i *Interface) selectLabel(label string) error {
	if label == "" {
		return errors.New("usage: select <label>")
	}

	i.report(i.usecase.Resolver.SelectExact(i.ctx, label), "Selected "+label, "Could not select "+label)

	return nil
}

func (i *Interface) resolve(label string) error {
	if label == "" {
		return errors.New("usage: resolve <label>")
	}

	result := i.usecase.Resolver.Resolve(i.ctx, entity.ResolutionRequest{Label: label, Action: entity.ActionLocate})
	if result.Found {
		fmt.Fprintf(i.out, "Found %q via strategy %d (%s)\n", result.MatchedText, result.Strategy, result.StrategyName)

		return nil
	}

	fmt.Fprintf(i.out, "Not found: %q\n", label)

	if len(result.Ambiguous) > 0 {
		fmt.Fprintf(i.out, "Ambiguous strategies: %s\n", strings.Join(result.Ambiguous, ", "))
	}

	if len(result.ObservedLabels) > 0 {
		fmt.Fprintf(i.out, "Labels on page: %s\n", strings.Join(result.ObservedLabels, " | "))
	}

	return nil
}

func (i *Interface) selectDate(arg string) error {
	date, err := entity.ParseDate(arg)
	if err != nil {
		return err
	}

	i.report(i.usecase.DatePicker.SelectDate(i.ctx, date), "Date set", "Date could not be set")

	return nil
}

func (i *Interface) status() error {
	status := i.usecase.PageState.ReadReportStatus(i.ctx)

	if !status.LabelFound {
		fmt.Fprintf(i.out, "%q not found on the current page\n", i.config.PanelConfig.ReportCountLabel)

		return nil
	}

	fmt.Fprintf(i.out, "Report count: %d (already sent: %t)\n", status.ReportCount, status.AlreadySent)

	return nil
}

// run accepts "<manager> [farm-url|farm-number] [date]".
func (i *Interface) run(arg string) error {
	fields := strings.Fields(arg)
	if len(fields) == 0 {
		return errors.New("usage: run <manager> [farm] [date]")
	}

	job := entity.Job{
		Manager:       fields[0],
		SelectManager: true,
		Credentials:   i.credentials(),
	}

	for _, field := range fields[1:] {
		if date, err := entity.ParseDate(field); err == nil {
			job.Date = &date

			continue
		}

		job.Farm = i.farmURL(field)
	}

	run, err := i.usecase.Runner.Execute(i.ctx, job)
	if err != nil {
		fmt.Fprintf(i.out, "Run failed: %v\n", err)

		return nil
	}

	fmt.Fprintf(i.out, "Run %s completed in %d steps\n", run.ID, len(run.Steps))
	fmt.Fprintf(i.out, "Report count: %d (already sent: %t)\n", run.Report.ReportCount, run.Report.AlreadySent)

	return nil
}

// farmURL maps a 1-based index from the last farms listing to its URL.
func (i *Interface) farmURL(ref string) string {
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(i.farms) {
		return i.farms[n-1].URL
	}

	return ref
}

func (i *Interface) credentials() *entity.Credentials {
	creds := i.config.CredentialsConfig
	if creds == nil || creds.Username == "" || creds.Password == "" {
		return nil
	}

	return &entity.Credentials{Username: creds.Username, Password: creds.Password}
}

func (i *Interface) report(ok bool, success, failure string) {
	if ok {
		fmt.Fprintf(i.out, "OK: %s\n", success)

		return
	}

	fmt.Fprintf(i.out, "FAILED: %s\n", failure)
}

func (i *Interface) printBanner() {
	banner := `
+-----------------------------------------------------------+
|                                                           |
|                  Panel Agent Console                      |
|                                                           |
|   Drive the farm management panel step by step            |
|                                                           |
+-----------------------------------------------------------+
`
	fmt.Fprintln(i.out, banner)
}

func (i *Interface) printHelp() {
	help := `
Available commands:
  login                      - Log in with PANEL_USERNAME / PANEL_PASSWORD
  wait [timeout]             - Wait for a manual login in the browser window
  farms                      - List farms linked from the current page
  goto <url|n> <manager>     - Open a farm (URL or number from farms) for a manager
  select <label>             - Click the control whose label is exactly <label>
  resolve <label>            - Locate a control without clicking it
  date <yyyy-mm-dd>          - Set the report date
  status                     - Read the report count on the current page
  run <manager> [farm] [date] - Run the whole flow for one manager
  help, h                    - Show this help message
  exit, quit, q              - Exit the application
`
	fmt.Fprintln(i.out, help)
}
