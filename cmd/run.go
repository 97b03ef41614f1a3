// File: cmd/run.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/probeworks/shopflow-cli/api/schemas"
	"github.com/probeworks/shopflow-cli/internal/config"
	"github.com/probeworks/shopflow-cli/internal/observability"
	"github.com/probeworks/shopflow-cli/internal/reporting"
	"github.com/probeworks/shopflow-cli/internal/scenario"
	"github.com/probeworks/shopflow-cli/internal/service"
)

// ErrScenariosFailed marks a completed run whose scenarios did not all
// pass. It distinguishes a probe verdict from an execution failure and
// drives the nonzero exit code.
var ErrScenariosFailed = errors.New("one or more scenarios did not pass")

// envelopePersistGrace bounds the final archive write so a signal
// arriving right after the run never loses the envelope.
const envelopePersistGrace = 30 * time.Second

// newRunCmd creates and configures the `run` command.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run [keywords...]",
		Short: "Executes the shopping flow once and reports the results",
		Long: "Run drives a real browser through the storefront's search, filter and\n" +
			"product-detail flow for each keyword, records every check, and writes a\n" +
			"report. With no keywords the configured flow.keyword is probed.",
		Args: cobra.ArbitraryArgs,
		// Bind flags to their corresponding Viper keys here so command-line
		// flags correctly override values from the config file and
		// environment variables.
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("report.output", cmd.Flags().Lookup("output")); err != nil {
				return err
			}
			if err := viper.BindPFlag("report.format", cmd.Flags().Lookup("format")); err != nil {
				return err
			}
			if err := viper.BindPFlag("flow.parallel", cmd.Flags().Lookup("parallel")); err != nil {
				return err
			}
			if err := viper.BindPFlag("target.base_url", cmd.Flags().Lookup("target")); err != nil {
				return err
			}
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Use the context passed from main.go (signal-aware).
			ctx := cmd.Context()
			logger := observability.GetLogger()

			// Flags are bound by now, so this unmarshal sees the final
			// precedence: flags over env over file over defaults.
			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}

			keywords := args
			if len(keywords) == 0 {
				keywords = []string{cfg.Flow.Keyword}
			}

			logger.Info("Starting storefront probe",
				zap.Strings("keywords", keywords),
				zap.String("target", cfg.Target.BaseURL),
				zap.Int("parallel", cfg.Flow.Parallel),
				zap.String("format", cfg.Report.Format))

			components, err := service.Initialize(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize components: %w", err)
			}
			defer components.Shutdown()

			// Past this point every error is an execution or verdict
			// problem, not a usage problem.
			cmd.SilenceUsage = true

			return executeCycle(ctx, cfg, components, keywords, logger)
		},
	}

	// Reporting flags.
	runCmd.Flags().StringP("output", "o", "", "Report file path. If unset, the report goes to stdout.")
	runCmd.Flags().StringP("format", "f", "text", "Report format ('text', 'json' or 'junit').")

	// Flow override flags.
	runCmd.Flags().IntP("parallel", "p", 0, "Number of scenarios to run concurrently. (Overrides config/env)")
	runCmd.Flags().String("target", "", "Storefront base URL. (Overrides config/env)")

	return runCmd
}

// executeCycle runs every keyword scenario once, writes the report, and
// archives the envelope when persistence is enabled. Both the run and
// watch commands call it.
func executeCycle(ctx context.Context, cfg *config.Config, components *service.Components, keywords []string, logger *zap.Logger) error {
	provider := &scenario.SessionEnvProvider{
		Manager: components.Browser,
		Cfg:     cfg,
		Limiter: components.Limiter,
		Logger:  logger,
	}
	runner := scenario.NewRunner(provider, cfg, Version, logger)
	if sink := components.CheckSink(); sink != nil {
		runner = runner.WithCheckSink(sink)
	}

	envelope, err := runner.Run(ctx, keywords)
	if err != nil {
		// Canceled mid-run; a partial report would mislead more than help.
		return fmt.Errorf("run aborted by user signal: %w", err)
	}

	if err := generateReport(cfg, envelope, logger); err != nil {
		return err
	}

	if components.Store != nil {
		// Archive under a background deadline so a signal arriving after
		// the run completes cannot lose the envelope.
		persistCtx, cancel := context.WithTimeout(context.Background(), envelopePersistGrace)
		defer cancel()
		if err := components.Store.SaveEnvelope(persistCtx, envelope); err != nil {
			// The report already carries the results; archiving is best effort.
			logger.Error("Failed to archive run envelope.", zap.Error(err), zap.String("run_id", envelope.RunID))
		}
	}

	passed, failed, errored := envelope.Tally()
	if failed+errored > 0 {
		return fmt.Errorf("%w: %d passed, %d failed, %d errored", ErrScenariosFailed, passed, failed, errored)
	}

	logger.Info("All scenarios passed.", zap.Int("passed", passed), zap.String("run_id", envelope.RunID))
	return nil
}

// generateReport renders the envelope with the configured reporter.
func generateReport(cfg *config.Config, envelope *schemas.RunEnvelope, logger *zap.Logger) error {
	reporter, err := reporting.New(cfg.Report.Format, cfg.Report.Output, Version)
	if err != nil {
		return fmt.Errorf("failed to initialize reporter: %w", err)
	}

	if err := reporter.Write(envelope); err != nil {
		// Release the file handle before surfacing the write failure.
		if cerr := reporter.Close(); cerr != nil {
			logger.Error("Failed to close reporter", zap.Error(cerr))
		}
		return fmt.Errorf("failed to write report: %w", err)
	}

	// The JUnit reporter assembles its document here, so a Close failure
	// means no report landed.
	if err := reporter.Close(); err != nil {
		return fmt.Errorf("failed to finalize report: %w", err)
	}

	if cfg.Report.Output != "" {
		logger.Info("Report generated successfully.",
			zap.String("path", cfg.Report.Output),
			zap.String("format", cfg.Report.Format))
	}
	return nil
}
