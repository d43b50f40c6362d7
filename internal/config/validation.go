package config

import (
	"fmt"
	"strings"
)

// ValidationError aggregates every configuration problem found during Load
// so the user can fix them all in one pass.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config: %s", strings.Join(e.Problems, "; "))
}

var knownLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var knownOutputFormats = map[string]bool{
	"json":     true,
	"pretty":   true,
	"csv":      true,
	"markdown": true,
}

func validate(c *Config) []string {
	var problems []string
	if !knownLogLevels[c.LogLevel] {
		problems = append(problems, fmt.Sprintf("log level must be one of trace, debug, info, warn, error; got %q", c.LogLevel))
	}
	if c.HTTPTimeout <= 0 {
		problems = append(problems, "http timeout must be > 0")
	}
	if c.MaxAttempts < 1 {
		problems = append(problems, "max attempts must be >= 1")
	}
	if c.BackoffBase < 0 {
		problems = append(problems, "backoff base must be >= 0")
	}
	if !knownOutputFormats[c.OutputFormat] {
		problems = append(problems, fmt.Sprintf("output format must be one of json, pretty, csv, markdown; got %q", c.OutputFormat))
	}
	if c.DB.PoolSize < 1 {
		problems = append(problems, "db pool size must be >= 1")
	}
	if c.DB.AcquireTimeout <= 0 {
		problems = append(problems, "db acquire timeout must be > 0")
	}
	if strings.TrimSpace(c.DB.DSN) == "" {
		problems = append(problems, "db dsn cannot be empty")
	}
	return problems
}
