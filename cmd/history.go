// File: cmd/history.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scenario-cli/api/schemas"
	"github.com/xkilldash9x/scenario-cli/internal/config"
	"github.com/xkilldash9x/scenario-cli/internal/observability"
	"github.com/xkilldash9x/scenario-cli/internal/store"
)

// storeProvider creates the run history store. Tests inject a mock.
type storeProvider interface {
	// Create returns the store and a cleanup function that releases its resources.
	Create(ctx context.Context, cfg *config.Config) (schemas.RunStore, func(), error)
}

// defaultStoreProvider connects to PostgreSQL.
type defaultStoreProvider struct{}

// NewStoreProvider returns the production store provider.
func NewStoreProvider() storeProvider {
	return &defaultStoreProvider{}
}

// Create connects to the configured database and makes sure the history tables exist.
func (p *defaultStoreProvider) Create(ctx context.Context, cfg *config.Config) (schemas.RunStore, func(), error) {
	logger := observability.GetLogger()
	if cfg.Database.URL == "" {
		return nil, nil, usageErrorf("database URL is not configured (SCENARIO_DATABASE_URL)")
	}

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	runStore, err := store.New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to initialize store service: %w", err)
	}
	if err := runStore.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	cleanup := func() {
		pool.Close()
		logger.Debug("Database connection pool closed.")
	}
	return runStore, cleanup, nil
}

func newHistoryCmd(provider storeProvider) *cobra.Command {
	var scenarioName string
	var limit int

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List recent scenario runs recorded in the database",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			return runHistory(cmd.Context(), cmd.OutOrStdout(), cfg, scenarioName, limit, provider)
		},
	}
	historyCmd.Flags().StringVarP(&scenarioName, "scenario", "s", "", "only show runs of this scenario")
	historyCmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs to show")
	return historyCmd
}

func runHistory(ctx context.Context, out io.Writer, cfg *config.Config, scenarioName string, limit int, provider storeProvider) error {
	logger := observability.GetLogger()
	runStore, cleanup, err := provider.Create(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	runs, err := runStore.ListRuns(ctx, scenarioName, limit)
	if err != nil {
		logger.Error("Failed to list runs", zap.Error(err))
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tSCENARIO\tDRIVER\tSTATE\tDURATION\tID")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.StartedAt.Local().Format(time.DateTime), r.Scenario, r.Driver, r.State,
			(time.Duration(r.DurationMs) * time.Millisecond).String(), r.ID)
	}
	return tw.Flush()
}
