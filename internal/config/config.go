package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	AppConfig         *AppConfig
	BrowserConfig     *BrowserConfig
	PanelConfig       *PanelConfig
	CredentialsConfig *CredentialsConfig
	TimingConfig      *TimingConfig
}

type AppConfig struct {
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
	Tracing  bool   `envconfig:"TRACING" default:"false"`
}

type BrowserConfig struct {
	Headless    bool   `envconfig:"BROWSER_HEADLESS" default:"false"`
	SlowMo      int    `envconfig:"BROWSER_SLOW_MO" default:"0"`
	Timeout     int    `envconfig:"BROWSER_TIMEOUT" default:"30000"`
	UserDataDir string `envconfig:"BROWSER_USER_DATA_DIR" default:""`
	Locale      string `envconfig:"BROWSER_LOCALE" default:"ko-KR"`
	TimezoneID  string `envconfig:"BROWSER_TIMEZONE" default:"Asia/Seoul"`
}

type PanelConfig struct {
	BaseURL          string `envconfig:"PANEL_BASE_URL" required:"true"`
	LoginPath        string `envconfig:"PANEL_LOGIN_PATH" default:"/login"`
	ManagerParam     string `envconfig:"PANEL_MANAGER_PARAM" default:"manager"`
	FarmPathPattern  string `envconfig:"PANEL_FARM_PATH_PATTERN" default:"/farms?/(\\d+)/sections?/(\\d+)"`
	ReportCountLabel string `envconfig:"PANEL_REPORT_COUNT_LABEL" default:"리포트 수"`
}

// CredentialsConfig is optional; leaving both fields empty selects the manual login wait.
type CredentialsConfig struct {
	Username string `envconfig:"PANEL_USERNAME"`
	Password string `envconfig:"PANEL_PASSWORD"`
}

type TimingConfig struct {
	LoginNavigationTimeout time.Duration `envconfig:"TIMING_LOGIN_NAVIGATION_TIMEOUT" default:"30s"`
	LoginNavigationSettle  time.Duration `envconfig:"TIMING_LOGIN_NAVIGATION_SETTLE" default:"1s"`
	LoginSubmitTimeout     time.Duration `envconfig:"TIMING_LOGIN_SUBMIT_TIMEOUT" default:"15s"`
	LoginSubmitSettle      time.Duration `envconfig:"TIMING_LOGIN_SUBMIT_SETTLE" default:"2s"`
	TypeDelay              time.Duration `envconfig:"TIMING_TYPE_DELAY" default:"50ms"`
	ManualLoginTimeout     time.Duration `envconfig:"TIMING_MANUAL_LOGIN_TIMEOUT" default:"5m"`
	ManualLoginPoll        time.Duration `envconfig:"TIMING_MANUAL_LOGIN_POLL" default:"1s"`
	NavigationTimeout      time.Duration `envconfig:"TIMING_NAVIGATION_TIMEOUT" default:"30s"`
	NavigationSettle       time.Duration `envconfig:"TIMING_NAVIGATION_SETTLE" default:"1s"`
	CorrectiveSettle       time.Duration `envconfig:"TIMING_CORRECTIVE_SETTLE" default:"500ms"`
	PostActionSettle       time.Duration `envconfig:"TIMING_POST_ACTION_SETTLE" default:"500ms"`
}

func GetConfig() (*Config, error) {
	_ = godotenv.Load()

	var conf Config

	if err := envconfig.Process("", &conf); err != nil {
		return nil, fmt.Errorf("read config from env vars: %w", err)
	}

	return &conf, nil
}

// DefaultTiming returns the timing values used when nothing is configured.
func DefaultTiming() *TimingConfig {
	return &TimingConfig{
		LoginNavigationTimeout: 30 * time.Second,
		LoginNavigationSettle:  time.Second,
		LoginSubmitTimeout:     15 * time.Second,
		LoginSubmitSettle:      2 * time.Second,
		TypeDelay:              50 * time.Millisecond,
		ManualLoginTimeout:     5 * time.Minute,
		ManualLoginPoll:        time.Second,
		NavigationTimeout:      30 * time.Second,
		NavigationSettle:       time.Second,
		CorrectiveSettle:       500 * time.Millisecond,
		PostActionSettle:       500 * time.Millisecond,
	}
}
