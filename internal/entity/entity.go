package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Credentials are read-only input to the authenticator and are never logged.
type Credentials struct {
	Username string
	Password string
}

func (c *Credentials) Present() bool {
	return c != nil && c.Username != "" && c.Password != ""
}

func (c Credentials) String() string {
	return "Credentials{redacted}"
}

type ResolveAction string

const (
	// ActionLocate finds the control without acting on it.
	ActionLocate ResolveAction = "locate"
	// ActionActivate finds the control and clicks it.
	ActionActivate ResolveAction = "activate"
)

type ResolutionRequest struct {
	Label  string
	Action ResolveAction
}

type ResolutionResult struct {
	Found bool
	// Element is the matched control. It is nil when the in-page scan
	// activated the control itself.
	Element        Handle
	Strategy       int
	StrategyName   string
	MatchedText    string
	Ambiguous      []string
	ObservedLabels []string
}

// Handle is an opaque reference to a page element. The concrete type is
// ports.Element; entity keeps it opaque to stay free of driver imports.
type Handle any

type NavigationTarget struct {
	// Resource is an absolute URL or a path relative to the panel base URL.
	Resource string
	Manager  string
}

type FarmEntry struct {
	Name      string
	URL       string
	FarmID    string
	SectionID string
}

type ReportStatus struct {
	AlreadySent bool
	ReportCount int
	// LabelFound distinguishes a real zero count from the conservative default.
	LabelFound bool
}

type Job struct {
	Farm          string
	FarmName      string
	Manager       string
	SelectManager bool
	Date          *time.Time
	Credentials   *Credentials
}

func (j Job) Validate() error {
	if strings.TrimSpace(j.Manager) == "" {
		return fmt.Errorf("manager is required")
	}

	return nil
}

type Run struct {
	ID          uuid.UUID
	Job         Job
	Status      RunStatus
	CreatedAt   time.Time
	CompletedAt *time.Time
	Steps       []Step
	Farms       []FarmEntry
	Report      *ReportStatus
	Error       string
}

type RunStatus string

const (
	RunStatusInProgress RunStatus = "in_progress"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"
)

type Step struct {
	ID          uuid.UUID
	Name        StepName
	Description string
	StartedAt   time.Time
	Duration    time.Duration
	Success     bool
	Error       string
}

type StepName string

const (
	StepOpenPanel     StepName = "open_panel"
	StepAuthenticate  StepName = "authenticate"
	StepListFarms     StepName = "list_farms"
	StepNavigate      StepName = "navigate"
	StepSelectManager StepName = "select_manager"
	StepSelectDate    StepName = "select_date"
	StepReadReport    StepName = "read_report"
)

// ParseDate accepts an ISO calendar date or an RFC3339 timestamp.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)

	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return t, nil
	}

	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: expected YYYY-MM-DD or RFC3339", value)
	}

	return t, nil
}
