package config

import (
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v2"
)

// fileConfig mirrors Config with pointer fields so absent keys leave the
// current value untouched. Durations are strings in time.ParseDuration form.
type fileConfig struct {
	LogLevel       *string            `yaml:"log_level"`
	JSONLog        *bool              `yaml:"json_log"`
	UserAgent      *string            `yaml:"user_agent"`
	HTTPTimeout    *string            `yaml:"http_timeout"`
	MaxAttempts    *int               `yaml:"max_attempts"`
	BackoffBase    *string            `yaml:"backoff_base"`
	RespectRobots  *bool              `yaml:"respect_robots"`
	RunScripts     *bool              `yaml:"run_scripts"`
	UseReadability *bool              `yaml:"use_readability"`
	OutputFormat   *string            `yaml:"output_format"`
	DB             *fileDBConfig      `yaml:"db"`
	Browser        *fileBrowserConfig `yaml:"browser"`
}

type fileDBConfig struct {
	Driver         *string `yaml:"driver"`
	DSN            *string `yaml:"dsn"`
	PoolSize       *int    `yaml:"pool_size"`
	AcquireTimeout *string `yaml:"acquire_timeout"`
	ResetSession   *bool   `yaml:"reset_session"`
}

type fileBrowserConfig struct {
	ChromePath *string `yaml:"chrome_path"`
	Headless   *bool   `yaml:"headless"`
	JSWait     *string `yaml:"js_wait"`
}

// applyFile overlays the YAML file at path onto cfg. Unknown keys are
// rejected so typos surface instead of silently using defaults.
func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.UnmarshalStrict(data, &fc); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if fc.LogLevel != nil {
		cfg.LogLevel = *fc.LogLevel
	}
	if fc.JSONLog != nil {
		cfg.JSONLog = *fc.JSONLog
	}
	if fc.UserAgent != nil {
		cfg.UserAgent = *fc.UserAgent
	}
	if err := overlayDuration(&cfg.HTTPTimeout, fc.HTTPTimeout, path, "http_timeout"); err != nil {
		return err
	}
	if fc.MaxAttempts != nil {
		cfg.MaxAttempts = *fc.MaxAttempts
	}
	if err := overlayDuration(&cfg.BackoffBase, fc.BackoffBase, path, "backoff_base"); err != nil {
		return err
	}
	if fc.RespectRobots != nil {
		cfg.RespectRobots = *fc.RespectRobots
	}
	if fc.RunScripts != nil {
		cfg.RunScripts = *fc.RunScripts
	}
	if fc.UseReadability != nil {
		cfg.UseReadability = *fc.UseReadability
	}
	if fc.OutputFormat != nil {
		cfg.OutputFormat = *fc.OutputFormat
	}

	if fc.DB != nil {
		if fc.DB.Driver != nil {
			cfg.DB.Driver = *fc.DB.Driver
		}
		if fc.DB.DSN != nil {
			cfg.DB.DSN = *fc.DB.DSN
		}
		if fc.DB.PoolSize != nil {
			cfg.DB.PoolSize = *fc.DB.PoolSize
		}
		if err := overlayDuration(&cfg.DB.AcquireTimeout, fc.DB.AcquireTimeout, path, "db.acquire_timeout"); err != nil {
			return err
		}
		if fc.DB.ResetSession != nil {
			cfg.DB.ResetSession = *fc.DB.ResetSession
		}
	}

	if fc.Browser != nil {
		if fc.Browser.ChromePath != nil {
			cfg.Browser.ChromePath = *fc.Browser.ChromePath
		}
		if fc.Browser.Headless != nil {
			cfg.Browser.Headless = *fc.Browser.Headless
		}
		if err := overlayDuration(&cfg.Browser.JSWait, fc.Browser.JSWait, path, "browser.js_wait"); err != nil {
			return err
		}
	}

	return nil
}

func overlayDuration(dst *time.Duration, src *string, path, key string) error {
	if src == nil {
		return nil
	}
	d, err := time.ParseDuration(*src)
	if err != nil {
		return fmt.Errorf("config file %s: %s: %w", path, key, err)
	}
	*dst = d
	return nil
}
