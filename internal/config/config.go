// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration. It is an explicit
// record passed by reference so every component sees the same settings.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Target   TargetConfig   `mapstructure:"target" yaml:"target"`
	Flow     FlowConfig     `mapstructure:"flow" yaml:"flow"`
	Timeouts TimeoutsConfig `mapstructure:"timeouts" yaml:"timeouts"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Report   ReportConfig   `mapstructure:"report" yaml:"report"`
	Watch    WatchConfig    `mapstructure:"watch" yaml:"watch"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// TargetConfig identifies the storefront under test.
type TargetConfig struct {
	// BaseURL is the storefront root, e.g. https://www.daraz.pk.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	// NavRate caps page navigations per second across all sessions.
	NavRate   float64 `mapstructure:"nav_rate" yaml:"nav_rate"`
	UserAgent string  `mapstructure:"user_agent" yaml:"user_agent"`
}

// FlowConfig parameterizes the shopping scenario itself.
type FlowConfig struct {
	Keyword       string   `mapstructure:"keyword" yaml:"keyword"`
	Brands        []string `mapstructure:"brands" yaml:"brands"`
	MinPrice      float64  `mapstructure:"min_price" yaml:"min_price"`
	MaxPrice      float64  `mapstructure:"max_price" yaml:"max_price"`
	MinProducts   int      `mapstructure:"min_products" yaml:"min_products"`
	ProductIndex  int      `mapstructure:"product_index" yaml:"product_index"`
	RetryAttempts int      `mapstructure:"retry_attempts" yaml:"retry_attempts"`
	Parallel      int      `mapstructure:"parallel" yaml:"parallel"`
}

// TimeoutsConfig collects every named wait the flow performs. Values are
// budgets or deadlines depending on the component that consumes them.
type TimeoutsConfig struct {
	Lookup        time.Duration `mapstructure:"lookup" yaml:"lookup"`
	PopupBudget   time.Duration `mapstructure:"popup_budget" yaml:"popup_budget"`
	FilterInput   time.Duration `mapstructure:"filter_input" yaml:"filter_input"`
	FilterApply   time.Duration `mapstructure:"filter_apply" yaml:"filter_apply"`
	FilterSettle  time.Duration `mapstructure:"filter_settle" yaml:"filter_settle"`
	ResultsSettle time.Duration `mapstructure:"results_settle" yaml:"results_settle"`
	Navigation    time.Duration `mapstructure:"navigation" yaml:"navigation"`
	NewTabWait    time.Duration `mapstructure:"new_tab_wait" yaml:"new_tab_wait"`
	RetryDelay    time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
	PostLoadWait  time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
}

// BrowserConfig holds settings for the headless browser instances.
type BrowserConfig struct {
	Headless        bool           `mapstructure:"headless" yaml:"headless"`
	DisableCache    bool           `mapstructure:"disable_cache" yaml:"disable_cache"`
	IgnoreTLSErrors bool           `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Debug           bool           `mapstructure:"debug" yaml:"debug"`
	Args            []string       `mapstructure:"args" yaml:"args"`
	Viewport        map[string]int `mapstructure:"viewport" yaml:"viewport"`
}

// DatabaseConfig holds the database connection details. An empty URL
// disables result persistence entirely.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
	// BatchSize is how many live check events accumulate before a flush.
	BatchSize int `mapstructure:"batch_size" yaml:"batch_size"`
	// FlushInterval bounds how long a partial batch may sit unflushed.
	FlushInterval time.Duration `mapstructure:"flush_interval" yaml:"flush_interval"`
}

// ReportConfig selects the report format and destination.
type ReportConfig struct {
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// WatchConfig schedules repeated runs in watch mode.
type WatchConfig struct {
	Schedule string `mapstructure:"schedule" yaml:"schedule"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "shopflow-cli")
	v.SetDefault("logger.log_file", "shopflow.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Target --
	v.SetDefault("target.base_url", "https://www.daraz.pk")
	v.SetDefault("target.nav_rate", 0.5)
	v.SetDefault("target.user_agent", "")

	// -- Flow --
	v.SetDefault("flow.keyword", "electronics")
	v.SetDefault("flow.brands", []string{"Samsung", "Xiaomi", "Audionic", "Anker", "Sony"})
	v.SetDefault("flow.min_price", 500)
	v.SetDefault("flow.max_price", 5000)
	v.SetDefault("flow.min_products", 2)
	v.SetDefault("flow.product_index", 0)
	v.SetDefault("flow.retry_attempts", 3)
	v.SetDefault("flow.parallel", 1)

	// -- Timeouts --
	v.SetDefault("timeouts.lookup", "10s")
	v.SetDefault("timeouts.popup_budget", "6s")
	v.SetDefault("timeouts.filter_input", "8s")
	v.SetDefault("timeouts.filter_apply", "5s")
	v.SetDefault("timeouts.filter_settle", "4s")
	v.SetDefault("timeouts.results_settle", "3s")
	v.SetDefault("timeouts.navigation", "30s")
	v.SetDefault("timeouts.new_tab_wait", "2s")
	v.SetDefault("timeouts.retry_delay", "1s")
	v.SetDefault("timeouts.post_load_wait", "2s")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.disable_cache", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.debug", false)
	v.SetDefault("browser.viewport", map[string]int{"width": 1366, "height": 768})

	// -- Database --
	v.SetDefault("database.url", "")
	v.SetDefault("database.batch_size", 50)
	v.SetDefault("database.flush_interval", "2s")

	// -- Report --
	v.SetDefault("report.format", "text")
	v.SetDefault("report.output", "")

	// -- Watch --
	v.SetDefault("watch.schedule", "@every 15m")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	v.BindEnv("database.url", "SHOPFLOW_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.Target.Validate(); err != nil {
		return fmt.Errorf("target configuration invalid: %w", err)
	}
	if err := c.Flow.Validate(); err != nil {
		return fmt.Errorf("flow configuration invalid: %w", err)
	}
	if err := c.Timeouts.Validate(); err != nil {
		return fmt.Errorf("timeouts configuration invalid: %w", err)
	}
	if err := c.Report.Validate(); err != nil {
		return fmt.Errorf("report configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the target section.
func (t *TargetConfig) Validate() error {
	if t.BaseURL == "" {
		return fmt.Errorf("base_url is a required configuration field")
	}
	u, err := url.Parse(t.BaseURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("base_url %q is not an absolute URL", t.BaseURL)
	}
	if t.NavRate <= 0 {
		return fmt.Errorf("nav_rate must be a positive number of navigations per second")
	}
	return nil
}

// Validate checks the flow section.
func (f *FlowConfig) Validate() error {
	if f.Keyword == "" {
		return fmt.Errorf("keyword must not be empty")
	}
	if f.MinPrice > f.MaxPrice {
		return fmt.Errorf("min_price must not exceed max_price (got %.2f > %.2f)", f.MinPrice, f.MaxPrice)
	}
	if f.MinProducts < 1 {
		return fmt.Errorf("min_products must be a positive integer")
	}
	if f.ProductIndex < 0 {
		return fmt.Errorf("product_index must not be negative")
	}
	if f.RetryAttempts < 1 {
		return fmt.Errorf("retry_attempts must be a positive integer")
	}
	if f.Parallel < 1 {
		return fmt.Errorf("parallel must be a positive integer")
	}
	return nil
}

// Validate checks that every named wait is positive.
func (t *TimeoutsConfig) Validate() error {
	waits := map[string]time.Duration{
		"lookup":         t.Lookup,
		"popup_budget":   t.PopupBudget,
		"filter_input":   t.FilterInput,
		"filter_apply":   t.FilterApply,
		"filter_settle":  t.FilterSettle,
		"results_settle": t.ResultsSettle,
		"navigation":     t.Navigation,
		"new_tab_wait":   t.NewTabWait,
		"retry_delay":    t.RetryDelay,
		"post_load_wait": t.PostLoadWait,
	}
	for name, d := range waits {
		if d <= 0 {
			return fmt.Errorf("timeouts.%s must be a positive duration", name)
		}
	}
	return nil
}

// Validate checks the report section.
func (r *ReportConfig) Validate() error {
	switch r.Format {
	case "text", "json", "junit":
		return nil
	default:
		return fmt.Errorf("unsupported report format %q (expected text, json or junit)", r.Format)
	}
}
