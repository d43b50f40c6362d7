package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

// isolate forces file-based credential storage into a throwaway home so
// tests never touch the real keyring or a developer's stored DSN.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("CI", "1")
	t.Setenv("HOME", t.TempDir())
	for _, name := range []string{
		"CRAWLY_CONFIG", "CRAWLY_LOG_LEVEL", "CRAWLY_USER_AGENT",
		"CRAWLY_DB_DRIVER", "CRAWLY_DB_DSN", "CRAWLY_DB_POOL_SIZE",
		"CRAWLY_DB_RESET_SESSION", "CRAWLY_CHROME_PATH",
	} {
		t.Setenv(name, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("Expected log level info, got %q", cfg.LogLevel)
	}
	if cfg.HTTPTimeout != 10*time.Second {
		t.Errorf("Expected 10s timeout, got %v", cfg.HTTPTimeout)
	}
	if cfg.MaxAttempts != 3 {
		t.Errorf("Expected 3 max attempts, got %d", cfg.MaxAttempts)
	}
	if cfg.BackoffBase != 500*time.Millisecond {
		t.Errorf("Expected 500ms backoff base, got %v", cfg.BackoffBase)
	}
	if cfg.DB.Driver != "sqlite" || cfg.DB.PoolSize != 5 || !cfg.DB.ResetSession {
		t.Errorf("Unexpected DB defaults: %+v", cfg.DB)
	}
	if !cfg.RespectRobots {
		t.Error("Expected robots.txt respected by default")
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("CRAWLY_LOG_LEVEL", "DEBUG")
	t.Setenv("CRAWLY_USER_AGENT", "TestAgent/2.0")
	t.Setenv("CRAWLY_DB_DSN", "file:env.db")
	t.Setenv("CRAWLY_DB_POOL_SIZE", "8")
	t.Setenv("CRAWLY_DB_RESET_SESSION", "no")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("Expected log level debug, got %q", cfg.LogLevel)
	}
	if cfg.UserAgent != "TestAgent/2.0" {
		t.Errorf("Expected env user agent, got %q", cfg.UserAgent)
	}
	if cfg.DB.DSN != "file:env.db" {
		t.Errorf("Expected env DSN, got %q", cfg.DB.DSN)
	}
	if cfg.DB.PoolSize != 8 {
		t.Errorf("Expected pool size 8, got %d", cfg.DB.PoolSize)
	}
	if cfg.DB.ResetSession {
		t.Error("Expected reset session disabled")
	}
}

func TestLoad_MalformedEnvValuesAggregate(t *testing.T) {
	isolate(t)
	t.Setenv("CRAWLY_DB_POOL_SIZE", "lots")
	t.Setenv("CRAWLY_DB_RESET_SESSION", "maybe")

	_, err := Load(nil)
	if err == nil {
		t.Fatal("Expected error for malformed environment values")
	}

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected *ValidationError, got %T: %v", err, err)
	}
	if len(verr.Problems) != 2 {
		t.Fatalf("Expected 2 problems, got %d: %v", len(verr.Problems), verr.Problems)
	}
	if !strings.Contains(verr.Problems[0], "CRAWLY_DB_POOL_SIZE") {
		t.Errorf("First problem should name the pool size variable: %q", verr.Problems[0])
	}
}

func TestLoad_HighPoolSizeWarns(t *testing.T) {
	isolate(t)
	t.Setenv("CRAWLY_DB_POOL_SIZE", "150")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.Warnings) == 0 {
		t.Fatal("Expected a warning for an unusually high pool size")
	}
	if !strings.Contains(cfg.Warnings[0], "unusually high") {
		t.Errorf("Unexpected warning text: %q", cfg.Warnings[0])
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	isolate(t)

	path := filepath.Join(t.TempDir(), "crawly.yaml")
	content := `log_level: warn
http_timeout: 25s
max_attempts: 5
backoff_base: 1s
db:
  dsn: file:fromfile.db
  pool_size: 2
browser:
  headless: false
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	t.Setenv("CRAWLY_CONFIG", path)

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.LogLevel != "warn" {
		t.Errorf("Expected log level warn, got %q", cfg.LogLevel)
	}
	if cfg.HTTPTimeout != 25*time.Second {
		t.Errorf("Expected 25s timeout, got %v", cfg.HTTPTimeout)
	}
	if cfg.MaxAttempts != 5 {
		t.Errorf("Expected 5 attempts, got %d", cfg.MaxAttempts)
	}
	if cfg.BackoffBase != time.Second {
		t.Errorf("Expected 1s backoff, got %v", cfg.BackoffBase)
	}
	if cfg.DB.DSN != "file:fromfile.db" || cfg.DB.PoolSize != 2 {
		t.Errorf("Unexpected DB config: %+v", cfg.DB)
	}
	if cfg.Browser.Headless {
		t.Error("Expected headless disabled from file")
	}
}

func TestLoad_ConfigFileRejectsUnknownKeys(t *testing.T) {
	isolate(t)

	path := filepath.Join(t.TempDir(), "crawly.yaml")
	if err := os.WriteFile(path, []byte("log_levle: warn\n"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	t.Setenv("CRAWLY_CONFIG", path)

	if _, err := Load(nil); err == nil {
		t.Fatal("Expected error for misspelled config key")
	}
}

func TestLoad_EnvironmentBeatsFile(t *testing.T) {
	isolate(t)

	path := filepath.Join(t.TempDir(), "crawly.yaml")
	if err := os.WriteFile(path, []byte("user_agent: FromFile/1.0\n"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	t.Setenv("CRAWLY_CONFIG", path)
	t.Setenv("CRAWLY_USER_AGENT", "FromEnv/1.0")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.UserAgent != "FromEnv/1.0" {
		t.Errorf("Expected environment to beat file, got %q", cfg.UserAgent)
	}
}

func TestLoad_FlagsBeatEverything(t *testing.T) {
	isolate(t)
	t.Setenv("CRAWLY_USER_AGENT", "FromEnv/1.0")

	cmd := &cobra.Command{Use: "crawly"}
	RegisterFlags(cmd)
	if err := cmd.ParseFlags([]string{"--user-agent", "FromFlag/1.0", "--timeout", "3s", "--verbose"}); err != nil {
		t.Fatalf("Failed to parse flags: %v", err)
	}

	cfg, err := Load(cmd)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.UserAgent != "FromFlag/1.0" {
		t.Errorf("Expected flag to beat environment, got %q", cfg.UserAgent)
	}
	if cfg.HTTPTimeout != 3*time.Second {
		t.Errorf("Expected 3s timeout from flag, got %v", cfg.HTTPTimeout)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected verbose to force debug level, got %q", cfg.LogLevel)
	}
}

func TestLoad_ValidationCatchesBadValues(t *testing.T) {
	isolate(t)
	t.Setenv("CRAWLY_DB_POOL_SIZE", "0")
	t.Setenv("CRAWLY_LOG_LEVEL", "loud")

	_, err := Load(nil)
	if err == nil {
		t.Fatal("Expected validation error")
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected *ValidationError, got %T", err)
	}
	if len(verr.Problems) != 2 {
		t.Errorf("Expected 2 problems, got %d: %v", len(verr.Problems), verr.Problems)
	}
}

func TestDSN_FileFallbackRoundTrip(t *testing.T) {
	isolate(t)

	if dsn, err := LoadDSN(); err != nil || dsn != "" {
		t.Fatalf("Expected empty DSN before save, got %q, %v", dsn, err)
	}

	if err := SaveDSN("file:stored.db"); err != nil {
		t.Fatalf("SaveDSN failed: %v", err)
	}
	dsn, err := LoadDSN()
	if err != nil {
		t.Fatalf("LoadDSN failed: %v", err)
	}
	if dsn != "file:stored.db" {
		t.Errorf("Expected stored DSN, got %q", dsn)
	}

	if err := DeleteDSN(); err != nil {
		t.Fatalf("DeleteDSN failed: %v", err)
	}
	if dsn, _ := LoadDSN(); dsn != "" {
		t.Errorf("Expected DSN gone after delete, got %q", dsn)
	}

	// Deleting again is fine.
	if err := DeleteDSN(); err != nil {
		t.Errorf("Second DeleteDSN failed: %v", err)
	}
}

func TestLoad_StoredDSNUsedAsLastResort(t *testing.T) {
	isolate(t)

	if err := SaveDSN("file:stored.db"); err != nil {
		t.Fatalf("SaveDSN failed: %v", err)
	}

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DB.DSN != "file:stored.db" {
		t.Errorf("Expected stored DSN as fallback, got %q", cfg.DB.DSN)
	}

	t.Setenv("CRAWLY_DB_DSN", "file:env.db")
	cfg, err = Load(nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DB.DSN != "file:env.db" {
		t.Errorf("Expected environment to beat stored DSN, got %q", cfg.DB.DSN)
	}
}
