package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.applyEnvOverrides(); err != nil {
		return err
	}
	c.normalizeStorage()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Storage.LocalDir, err = expandPath(c.Storage.LocalDir); err != nil {
		return fmt.Errorf("storage.local_dir: %w", err)
	}
	return nil
}

// applyEnvOverrides lets deployment environments tune the engine without
// editing the file. Environment values win over file values.
func (c *Config) applyEnvOverrides() error {
	if err := envInt("MAX_RETRIES", &c.Retry.MaxRetries); err != nil {
		return err
	}
	if err := envFloat("RETRY_BACKOFF_MULTIPLIER", &c.Retry.BackoffMultiplier); err != nil {
		return err
	}
	if err := envInt("WORKER_POOL_SIZE", &c.Pool.WorkerPoolSize); err != nil {
		return err
	}
	if err := envInt("UPLOAD_TIMEOUT_SECONDS", &c.Stages.UploadTimeoutSeconds); err != nil {
		return err
	}
	if err := envInt("MAX_UPLOAD_SIZE_MB", &c.Storage.MaxUploadSizeMB); err != nil {
		return err
	}
	if value, ok := os.LookupEnv("GCS_BUCKET"); ok && strings.TrimSpace(value) != "" {
		c.Storage.Bucket = strings.TrimSpace(value)
		if strings.TrimSpace(c.Storage.Backend) == "" || c.Storage.Backend == StorageBackendLocal {
			c.Storage.Backend = StorageBackendGCS
		}
	}
	return nil
}

func (c *Config) normalizeStorage() {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = StorageBackendLocal
	}
	c.Storage.Bucket = strings.TrimSpace(c.Storage.Bucket)
	c.Storage.Bucket = strings.TrimPrefix(c.Storage.Bucket, "gs://")
	c.Storage.Bucket = strings.TrimSuffix(c.Storage.Bucket, "/")
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "", "auto":
		c.Logging.Format = "auto"
	case "json":
		c.Logging.Format = "json"
	case "console", "text", "pretty":
		c.Logging.Format = "console"
	default:
		c.Logging.Format = format
	}
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	if level == "warning" {
		level = "warn"
	}
	c.Logging.Level = level
}

func envInt(key string, dst *int) error {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%s: invalid integer %q", key, value)
	}
	*dst = parsed
	return nil
}

func envFloat(key string, dst *float64) error {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fmt.Errorf("%s: invalid number %q", key, value)
	}
	*dst = parsed
	return nil
}
