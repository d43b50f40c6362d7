package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// DBConfig holds the connection pool settings passed to the store.
type DBConfig struct {
	Driver         string
	DSN            string
	PoolSize       int
	AcquireTimeout time.Duration
	ResetSession   bool
}

// BrowserConfig holds settings for the rendered-page strategy.
type BrowserConfig struct {
	ChromePath string
	Headless   bool
	JSWait     time.Duration
}

// Config holds application configuration values
type Config struct {
	// Logging
	LogLevel string
	JSONLog  bool
	Quiet    bool

	// HTTP/Scraping
	HTTPTimeout    time.Duration
	UserAgent      string
	MaxAttempts    int
	BackoffBase    time.Duration
	RespectRobots  bool
	RunScripts     bool
	UseReadability bool

	// Output
	OutputFormat string

	// Storage
	DB DBConfig

	// Browser
	Browser BrowserConfig

	// Warnings collected while loading, for the CLI to surface. Never
	// fatal on their own.
	Warnings []string
}

// Load builds a Config by combining defaults, an optional YAML config file,
// environment variables, and CLI flags, in that order of precedence.
// Caller should pass the invoked *cobra.Command so flags can be read.
func Load(cmd *cobra.Command) (*Config, error) {
	cfg := &Config{
		LogLevel:       DefaultLogLevel,
		JSONLog:        DefaultJSONLog,
		HTTPTimeout:    DefaultHTTPTimeout,
		UserAgent:      DefaultUserAgent,
		MaxAttempts:    DefaultMaxAttempts,
		BackoffBase:    DefaultBackoffBase,
		RespectRobots:  DefaultRespectRobots,
		RunScripts:     DefaultRunScripts,
		UseReadability: DefaultUseReadability,
		OutputFormat:   DefaultOutputFormat,
		DB: DBConfig{
			Driver:         DefaultDBDriver,
			DSN:            DefaultDBDSN,
			PoolSize:       DefaultDBPoolSize,
			AcquireTimeout: DefaultDBAcquireTimeout,
			ResetSession:   DefaultDBResetSession,
		},
		Browser: BrowserConfig{
			Headless: DefaultBrowserHeadless,
			JSWait:   DefaultJSWaitTime,
		},
	}

	// Optional config file, from flag or environment.
	path := configPath(cmd)
	if path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	// Override from environment variables
	var problems []string
	applyEnv(cfg, &problems)

	// Read CLI flags if provided
	if cmd != nil {
		applyFlags(cfg, cmd)
	}

	// The stored DSN is the weakest source for the DSN itself: consulted
	// only when neither file, environment, nor flags set one.
	if cfg.DB.DSN == DefaultDBDSN {
		if stored, err := LoadDSN(); err == nil && stored != "" {
			cfg.DB.DSN = stored
		}
	}

	problems = append(problems, validate(cfg)...)
	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}

	return cfg, nil
}

func configPath(cmd *cobra.Command) string {
	if cmd != nil {
		if f := cmd.Flags().Lookup("config"); f != nil && f.Value.String() != "" {
			return f.Value.String()
		}
	}
	return os.Getenv("CRAWLY_CONFIG")
}

func applyEnv(cfg *Config, problems *[]string) {
	if v := os.Getenv("CRAWLY_LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("CRAWLY_USER_AGENT"); v != "" {
		cfg.UserAgent = v
	}
	if v := os.Getenv("CRAWLY_DB_DRIVER"); v != "" {
		cfg.DB.Driver = v
	}
	if v := os.Getenv("CRAWLY_DB_DSN"); v != "" {
		cfg.DB.DSN = v
	}
	if v, ok := envInt(cfg, "CRAWLY_DB_POOL_SIZE", problems); ok {
		cfg.DB.PoolSize = v
	}
	if v, ok := envBool("CRAWLY_DB_RESET_SESSION", problems); ok {
		cfg.DB.ResetSession = v
	}
	if v := os.Getenv("CRAWLY_CHROME_PATH"); v != "" {
		cfg.Browser.ChromePath = v
	}
}

// envInt parses an integer environment variable, collecting a problem when
// the value is malformed and a warning when it looks suspicious.
func envInt(cfg *Config, name string, problems *[]string) (int, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		*problems = append(*problems, fmt.Sprintf("%s must be an integer, got: %q", name, raw))
		return 0, false
	}
	if v > 100 {
		cfg.Warnings = append(cfg.Warnings,
			fmt.Sprintf("%s is unusually high (%d), this may cause resource issues", name, v))
	}
	return v, true
}

func envBool(name string, problems *[]string) (bool, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return false, false
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes":
		return true, true
	case "false", "0", "no":
		return false, true
	default:
		*problems = append(*problems, fmt.Sprintf("%s must be 'true' or 'false' (or '1'/'0'), got: %q", name, raw))
		return false, false
	}
}

func applyFlags(cfg *Config, cmd *cobra.Command) {
	if f := cmd.Flags().Lookup("user-agent"); f != nil {
		if s := f.Value.String(); s != "" {
			cfg.UserAgent = s
		}
	}
	if f := cmd.Flags().Lookup("timeout"); f != nil && f.Changed {
		if d, err := time.ParseDuration(f.Value.String()); err == nil {
			cfg.HTTPTimeout = d
		}
	}
	if f := cmd.Flags().Lookup("json"); f != nil {
		if f.Value.String() == "true" {
			cfg.JSONLog = true
		}
	}
	if f := cmd.Flags().Lookup("verbose"); f != nil {
		if f.Value.String() == "true" {
			cfg.LogLevel = "debug"
		}
	}
	if f := cmd.Flags().Lookup("quiet"); f != nil {
		if f.Value.String() == "true" {
			cfg.Quiet = true
		}
	}
	// Scrape-command flags; absent on other commands.
	if f := cmd.Flags().Lookup("scripts"); f != nil && f.Changed {
		cfg.RunScripts = f.Value.String() == "true"
	}
	if f := cmd.Flags().Lookup("no-robots"); f != nil && f.Changed {
		cfg.RespectRobots = f.Value.String() != "true"
	}
}
