package runner

import (
	"time"

	"github.com/xkilldash9x/scenario-cli/internal/config"
)

// actionRetryWindow bounds how long fill and click keep retrying a missing or
// not yet actionable element.
const actionRetryWindow = 5 * time.Second

const (
	defaultNavigationTimeout = 30 * time.Second
	defaultPollInterval      = 100 * time.Millisecond
	defaultTeardownTimeout   = 15 * time.Second
)

// Options configures a Runner.
type Options struct {
	BaseURL string
	// ArtifactPath is used when the scenario does not name its own artifact.
	ArtifactPath      string
	FullPage          bool
	NavigationTimeout time.Duration
	// DefaultAssertionTimeout applies to assert_visible steps without a timeout.
	// Zero means a single check with no polling.
	DefaultAssertionTimeout time.Duration
	PollInterval            time.Duration
	TeardownTimeout         time.Duration
}

// OptionsFromConfig maps the runner configuration section onto Options.
func OptionsFromConfig(cfg config.RunnerConfig) Options {
	return Options{
		BaseURL:                 cfg.BaseURL,
		ArtifactPath:            cfg.ArtifactPath,
		FullPage:                cfg.FullPage,
		NavigationTimeout:       cfg.NavigationTimeout,
		DefaultAssertionTimeout: cfg.AssertionTimeout,
		PollInterval:            cfg.PollInterval,
		TeardownTimeout:         cfg.TeardownTimeout,
	}
}

func (o Options) withDefaults() Options {
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = defaultNavigationTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
	if o.TeardownTimeout <= 0 {
		o.TeardownTimeout = defaultTeardownTimeout
	}
	if o.DefaultAssertionTimeout < 0 {
		o.DefaultAssertionTimeout = 0
	}
	return o
}
