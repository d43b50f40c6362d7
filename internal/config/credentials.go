package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name for keyring storage
	KeyringService = "crawly-cli"
	// dsnKey is the keyring entry holding the database DSN
	dsnKey = "db-dsn"
	// FallbackDir is the directory for file-based credential storage (when keyring fails)
	FallbackDir = ".crawly/credentials"
)

// useFileBasedStorage checks if we should use file-based storage
// This is a fallback for environments where keyring isn't available (Codespaces, CI)
var fileBasedStorageCache *bool

func useFileBasedStorage() bool {
	// Cache the result to avoid repeated tests
	if fileBasedStorageCache != nil {
		return *fileBasedStorageCache
	}

	// Check environment hints
	if os.Getenv("CODESPACES") != "" || os.Getenv("CI") != "" {
		result := true
		fileBasedStorageCache = &result
		return true
	}

	// Try to use keyring, but if it fails, use file-based storage
	testKey := "_test_keyring_access_"
	err := keyring.Set(KeyringService, testKey, "test")
	result := (err != nil)
	fileBasedStorageCache = &result

	if !result {
		keyring.Delete(KeyringService, testKey)
	}

	return result
}

func credentialsDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, FallbackDir)
	return dir, os.MkdirAll(dir, 0700)
}

func dsnPath() (string, error) {
	dir, err := credentialsDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, dsnKey), nil
}

// SaveDSN stores the database DSN in the OS keyring, or a file when no
// keyring is available.
func SaveDSN(dsn string) error {
	if strings.TrimSpace(dsn) == "" {
		return fmt.Errorf("dsn cannot be empty")
	}

	if useFileBasedStorage() {
		path, err := dsnPath()
		if err != nil {
			return fmt.Errorf("failed to get credentials path: %w", err)
		}
		if err := os.WriteFile(path, []byte(dsn), 0600); err != nil {
			return fmt.Errorf("failed to save credentials file: %w", err)
		}
		return nil
	}

	if err := keyring.Set(KeyringService, dsnKey, dsn); err != nil {
		return fmt.Errorf("failed to save to keyring: %w", err)
	}
	return nil
}

// LoadDSN retrieves a previously stored DSN. An empty string with nil error
// means nothing is stored.
func LoadDSN() (string, error) {
	if useFileBasedStorage() {
		path, err := dsnPath()
		if err != nil {
			return "", fmt.Errorf("failed to get credentials path: %w", err)
		}
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			return "", nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to load credentials file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	dsn, err := keyring.Get(KeyringService, dsnKey)
	if err == keyring.ErrNotFound {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load from keyring: %w", err)
	}
	return dsn, nil
}

// DeleteDSN removes the stored DSN. Deleting when nothing is stored is not
// an error.
func DeleteDSN() error {
	if useFileBasedStorage() {
		path, err := dsnPath()
		if err != nil {
			return fmt.Errorf("failed to get credentials path: %w", err)
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete credentials file: %w", err)
		}
		return nil
	}

	if err := keyring.Delete(KeyringService, dsnKey); err != nil && err != keyring.ErrNotFound {
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return nil
}
