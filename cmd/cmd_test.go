// File: cmd/cmd_test.go
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probeworks/shopflow-cli/internal/config"
	"github.com/probeworks/shopflow-cli/internal/observability"
)

// resetForTest clears the global viper and logger state a prior test or
// command execution may have left behind.
func resetForTest(t *testing.T) {
	t.Helper()

	viper.Reset()
	// Prevent a stray ./config.yaml from leaking into tests.
	viper.SetConfigName("a-config-file-that-does-not-exist")

	// Consume the logger's init-once guard at a silent level so command
	// hooks cannot install a noisy logger mid-test.
	observability.ResetForTest()
	observability.InitializeLogger(config.LoggerConfig{Level: "fatal", Format: "console", ServiceName: "test"})

	t.Cleanup(func() {
		viper.Reset()
		observability.ResetForTest()
	})
}

// executeCommand runs a pristine command tree with the given args and
// returns everything it printed.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	testRootCmd := NewRootCommand()
	buf := new(bytes.Buffer)
	testRootCmd.SetOut(buf)
	testRootCmd.SetErr(buf)
	testRootCmd.SetArgs(args)
	err := testRootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

// executeCommandNoPreRun is for testing argument and flag validation
// without triggering config loading in PersistentPreRunE.
func executeCommandNoPreRun(t *testing.T, args ...string) (string, error) {
	t.Helper()

	testRootCmd := NewRootCommand()
	testRootCmd.PersistentPreRunE = nil
	buf := new(bytes.Buffer)
	testRootCmd.SetOut(buf)
	testRootCmd.SetErr(buf)
	testRootCmd.SetArgs(args)
	err := testRootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

// createTempConfig helper
func createTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestUnknownCommand(t *testing.T) {
	output, err := executeCommandNoPreRun(t, "probe")
	require.Error(t, err)
	assert.Contains(t, output, "unknown command")
}

func TestRunCmdRejectsUnknownFlag(t *testing.T) {
	output, err := executeCommandNoPreRun(t, "run", "--depth", "3")
	require.Error(t, err)
	assert.Contains(t, output, "unknown flag: --depth")
}

func TestConfigFlagOverride(t *testing.T) {
	resetForTest(t)

	configContent := `
flow:
  min_price: 750
  parallel: 3
report:
  format: junit
`
	configFile := createTempConfig(t, configContent)
	t.Setenv("SHOPFLOW_TARGET_BASE_URL", "https://staging.daraz.pk")

	testRootCmd := NewRootCommand()

	// Find the run command from this test's command tree.
	var runCmd *cobra.Command
	for _, c := range testRootCmd.Commands() {
		if c.Use == "run [keywords...]" {
			runCmd = c
			break
		}
	}
	require.NotNil(t, runCmd)

	// Intercept RunE so the test stops after config resolution instead
	// of launching a browser.
	var captured *config.Config
	runCmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.NewConfigFromViper(viper.GetViper())
		if err != nil {
			return err
		}
		captured = cfg
		return nil
	}

	testRootCmd.SetArgs([]string{"--config", configFile, "run", "--format", "json", "wireless earbuds"})
	require.NoError(t, testRootCmd.ExecuteContext(context.Background()))

	require.NotNil(t, captured)
	// Flag beats the config file.
	assert.Equal(t, "json", captured.Report.Format)
	// Env beats the file and the defaults.
	assert.Equal(t, "https://staging.daraz.pk", captured.Target.BaseURL)
	// File beats the defaults.
	assert.Equal(t, 750.0, captured.Flow.MinPrice)
	assert.Equal(t, 3, captured.Flow.Parallel)
	// Untouched keys keep their defaults.
	assert.Equal(t, "electronics", captured.Flow.Keyword)
}

func TestRunCmdRejectsInvalidPriceBand(t *testing.T) {
	resetForTest(t)

	configFile := createTempConfig(t, "flow:\n  min_price: 9000\n")
	_, err := executeCommand(t, "--config", configFile, "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_price")
}

func TestRunCmdRejectsUnsupportedFormat(t *testing.T) {
	resetForTest(t)

	_, err := executeCommand(t, "run", "--format", "sarif")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported report format")
}

func TestWatchCmdRejectsBadSchedule(t *testing.T) {
	resetForTest(t)

	_, err := executeCommand(t, "watch", "--schedule", "every sometimes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid watch schedule")
}
