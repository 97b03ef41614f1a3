// File: cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/probeworks/shopflow-cli/internal/config"
	"github.com/probeworks/shopflow-cli/internal/observability"
)

// NewRootCommand builds a pristine root command with all subcommands
// attached. Each execution gets a fresh instance so flag state never
// leaks between runs.
func NewRootCommand() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:     "shopflow-cli",
		Short:   "Shopflow probes a retail storefront's shopping flow end to end.",
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// This function runs before any command, setting up config and logging.
			if err := initializeConfig(cfgFile); err != nil {
				return err
			}

			var cfg config.Config
			if err := viper.Unmarshal(&cfg); err != nil {
				// Initialize a fallback logger if config unmarshal fails.
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "shopflow-cli"})
				return fmt.Errorf("failed to unmarshal config: %w", err)
			}

			observability.InitializeLogger(cfg.Logger)
			observability.GetLogger().Info("Starting shopflow-cli", zap.String("version", Version))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newWatchCmd())
	return rootCmd
}

// Execute builds the command tree and runs it with the supplied
// signal-aware context. The caller owns the exit code.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			observability.GetLogger().Warn("Aborted by user signal.")
		} else {
			observability.GetLogger().Error("Command execution failed", zap.Error(err))
		}
		return err
	}
	return nil
}

// initializeConfig reads in the config file and ENV variables if set.
func initializeConfig(cfgFile string) error {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		expanded, err := homedir.Expand(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to expand config path %q: %w", cfgFile, err)
		}
		viper.SetConfigFile(expanded)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("SHOPFLOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults and env vars.
	}
	return nil
}
