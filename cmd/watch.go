// File: cmd/watch.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/probeworks/shopflow-cli/internal/config"
	"github.com/probeworks/shopflow-cli/internal/observability"
	"github.com/probeworks/shopflow-cli/internal/service"
)

// recentRunsShown is how many archived runs a fresh watch session logs
// at startup.
const recentRunsShown = 5

// schedulerDrainGrace bounds how long an interrupted watch waits for a
// running cycle before giving up on it.
const schedulerDrainGrace = 30 * time.Second

// newWatchCmd creates and configures the `watch` command.
func newWatchCmd() *cobra.Command {
	watchCmd := &cobra.Command{
		Use:   "watch [keywords...]",
		Short: "Repeats the shopping flow on a schedule until interrupted",
		Long: "Watch executes the same probe as `run` on a cron schedule, writing a\n" +
			"report each cycle. Cycles that overlap their schedule are skipped, and a\n" +
			"panicking cycle never takes the scheduler down.",
		Args: cobra.ArbitraryArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("watch.schedule", cmd.Flags().Lookup("schedule")); err != nil {
				return err
			}
			if err := viper.BindPFlag("report.output", cmd.Flags().Lookup("output")); err != nil {
				return err
			}
			if err := viper.BindPFlag("report.format", cmd.Flags().Lookup("format")); err != nil {
				return err
			}
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}

			// Validate the schedule before any heavy initialization.
			schedule, err := cron.ParseStandard(cfg.Watch.Schedule)
			if err != nil {
				return fmt.Errorf("invalid watch schedule %q: %w", cfg.Watch.Schedule, err)
			}

			keywords := args
			if len(keywords) == 0 {
				keywords = []string{cfg.Flow.Keyword}
			}

			components, err := service.Initialize(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize components: %w", err)
			}
			defer components.Shutdown()

			cmd.SilenceUsage = true

			logRecentRuns(ctx, components, logger)

			logger.Info("Watch mode started.",
				zap.String("schedule", cfg.Watch.Schedule),
				zap.Strings("keywords", keywords))

			cycle := func() {
				if err := executeCycle(ctx, cfg, components, keywords, logger); err != nil {
					switch {
					case errors.Is(err, context.Canceled):
						// Shutdown is already in progress.
					case errors.Is(err, ErrScenariosFailed):
						logger.Warn("Watch cycle completed with problems.", zap.Error(err))
					default:
						logger.Error("Watch cycle failed.", zap.Error(err))
					}
				}
			}

			// One cycle right away; the schedule covers the repeats.
			cycle()
			if ctx.Err() != nil {
				return ctx.Err()
			}

			cronLogger := cron.PrintfLogger(zap.NewStdLog(logger.Named("cron")))
			scheduler := cron.New(cron.WithChain(
				cron.SkipIfStillRunning(cronLogger),
				cron.Recover(cronLogger),
			))
			entryID := scheduler.Schedule(schedule, cron.FuncJob(cycle))
			scheduler.Start()
			logger.Info("Next cycle scheduled.", zap.Time("next_run", scheduler.Entry(entryID).Next))

			<-ctx.Done()
			logger.Info("Watch interrupted; waiting for any running cycle to finish.")

			stopCtx := scheduler.Stop()
			select {
			case <-stopCtx.Done():
				logger.Info("Scheduler drained.")
			case <-time.After(schedulerDrainGrace):
				logger.Warn("Scheduler shutdown timeout; a cycle may still be running.")
			}
			return ctx.Err()
		},
	}

	watchCmd.Flags().String("schedule", "", "Cron schedule for repeated runs, e.g. '@every 15m'. (Overrides config/env)")
	watchCmd.Flags().StringP("output", "o", "", "Report file path rewritten each cycle. If unset, reports go to stdout.")
	watchCmd.Flags().StringP("format", "f", "text", "Report format ('text', 'json' or 'junit').")

	return watchCmd
}

// logRecentRuns surfaces the last archived runs so a fresh watch session
// starts with context about the target's recent health.
func logRecentRuns(ctx context.Context, components *service.Components, logger *zap.Logger) {
	if components.Store == nil {
		return
	}

	runs, err := components.Store.RecentRuns(ctx, recentRunsShown)
	if err != nil {
		logger.Warn("Could not load recent run history.", zap.Error(err))
		return
	}
	for _, r := range runs {
		logger.Info("Previous run.",
			zap.String("run_id", r.RunID),
			zap.String("target", r.Target),
			zap.Time("started_at", r.StartedAt),
			zap.Int("passed", r.Passed),
			zap.Int("failed", r.Failed),
			zap.Int("errored", r.Errored))
	}
}
