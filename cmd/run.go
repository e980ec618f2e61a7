// File: cmd/run.go
package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scenario-cli/api/schemas"
	"github.com/xkilldash9x/scenario-cli/internal/browser"
	"github.com/xkilldash9x/scenario-cli/internal/browser/pwdriver"
	"github.com/xkilldash9x/scenario-cli/internal/config"
	"github.com/xkilldash9x/scenario-cli/internal/observability"
	"github.com/xkilldash9x/scenario-cli/internal/reporting"
	"github.com/xkilldash9x/scenario-cli/internal/runner"
	"github.com/xkilldash9x/scenario-cli/internal/scenario"
)

// newDriver selects the browser driver. Tests replace it with a fake.
var newDriver = func(cfg config.BrowserConfig, logger *zap.Logger) (schemas.Driver, error) {
	switch cfg.Driver {
	case config.DriverChromedp:
		return browser.New(cfg, logger), nil
	case config.DriverPlaywright:
		return pwdriver.New(cfg, logger), nil
	}
	return nil, usageErrorf("unknown browser driver %q", cfg.Driver)
}

// revisionDir is where the working-tree revision is read from.
var revisionDir = "."

func newRunCmd(v *viper.Viper) *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run [name|file]",
		Short: "Run a built-in scenario or a scenario file",
		Long: `Runs one scenario. The argument is a built-in scenario name (see "scenario list")
or a path to a YAML scenario file. Without an argument runner.scenario is used.`,
		Args: usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			ref := ""
			if len(args) == 1 {
				ref = args[0]
			}
			return runScenario(cmd.Context(), cmd.OutOrStdout(), cfg, ref, NewStoreProvider())
		},
	}

	f := runCmd.Flags()
	f.Bool("full-page", false, "capture the whole page instead of the viewport")
	f.Duration("navigation-timeout", 0, "bound for the initial page load")
	f.Duration("assertion-timeout", 0, "default bound for assertions that declare none")
	bindFlags(v, f.Lookup, map[string]string{
		"runner.full_page":          "full-page",
		"runner.navigation_timeout": "navigation-timeout",
		"runner.assertion_timeout":  "assertion-timeout",
	})
	return runCmd
}

// runScenario resolves ref (or the configured scenario), runs it, prints a
// summary to out, writes the report file and records the run in history when
// a database is configured. It returns the runner's error unchanged.
func runScenario(ctx context.Context, out io.Writer, cfg *config.Config, ref string, provider storeProvider) error {
	logger := observability.GetLogger()
	if ref == "" {
		ref = cfg.Runner.Scenario
	}
	sc, err := scenario.Resolve(ref)
	if err != nil {
		return usageErrorf("%w", err)
	}

	driver, err := newDriver(cfg.Browser, logger)
	if err != nil {
		return err
	}
	r := runner.New(driver, runner.OptionsFromConfig(cfg.Runner), logger)

	report, runErr := r.Run(ctx, sc)
	if report == nil {
		return runErr
	}
	if rev, err := reporting.Revision(revisionDir); err == nil {
		report.Revision = rev
	} else {
		logger.Debug("No git revision for the report.", zap.Error(err))
	}

	summary, err := reporting.NewWithStdout("text", "", out)
	if err != nil {
		return err
	}
	if err := summary.Write(report); err != nil {
		logger.Warn("Failed to print run summary.", zap.Error(err))
	}

	if cfg.Report.Path != "" {
		if err := writeReportFile(logger, report, cfg.Report.Path, cfg.Report.Format); err != nil {
			logger.Error("Failed to write run report.", zap.Error(err))
			if runErr == nil {
				runErr = err
			}
		}
	}

	if cfg.Database.URL != "" {
		// History is best effort; a run's verdict never depends on it.
		saveCtx := context.WithoutCancel(ctx)
		if err := saveRun(saveCtx, logger, cfg, report, provider); err != nil {
			logger.Warn("Failed to record run history.", zap.Error(err))
		}
	}
	return runErr
}

// writeReportFile handles writing the report to a file using the reporting module.
func writeReportFile(logger *zap.Logger, report *schemas.RunReport, outputPath, format string) error {
	reporter, err := reporting.New(format, outputPath)
	if err != nil {
		return fmt.Errorf("failed to initialize reporter: %w", err)
	}
	defer func() {
		if err := reporter.Close(); err != nil {
			logger.Warn("Failed to close reporter cleanly.", zap.Error(err))
		}
	}()

	if err := reporter.Write(report); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}
	logger.Info("Report successfully written to file", zap.String("path", outputPath))
	return nil
}

func saveRun(ctx context.Context, logger *zap.Logger, cfg *config.Config, report *schemas.RunReport, provider storeProvider) error {
	runStore, cleanup, err := provider.Create(ctx, cfg)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}
	if err := runStore.SaveRun(ctx, report); err != nil {
		return err
	}
	logger.Debug("Run recorded in history.", zap.String("run_id", report.ID))
	return nil
}
