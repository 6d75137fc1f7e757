package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRetry(); err != nil {
		return err
	}
	if err := c.validatePool(); err != nil {
		return err
	}
	if err := c.validateBreaker(); err != nil {
		return err
	}
	if err := c.validateStages(); err != nil {
		return err
	}
	if err := c.validateFetch(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateRetry() error {
	if c.Retry.MaxRetries < 0 {
		return errors.New("retry.max_retries must be zero or positive")
	}
	if c.Retry.BaseDelayMillis < 0 {
		return errors.New("retry.base_delay_ms must be zero or positive")
	}
	if c.Retry.MaxDelayMillis < 0 {
		return errors.New("retry.max_delay_ms must be zero or positive")
	}
	if c.Retry.MaxDelayMillis > 0 && c.Retry.MaxDelayMillis < c.Retry.BaseDelayMillis {
		return errors.New("retry.max_delay_ms must not be smaller than retry.base_delay_ms")
	}
	if c.Retry.BackoffMultiplier < 1 {
		return fmt.Errorf("retry.backoff_multiplier must be at least 1 (got %v)", c.Retry.BackoffMultiplier)
	}
	if c.Retry.Jitter < 0 || c.Retry.Jitter > 0.2 {
		return fmt.Errorf("retry.jitter must be between 0 and 0.2 (got %v)", c.Retry.Jitter)
	}
	return nil
}

func (c *Config) validatePool() error {
	if c.Pool.WorkerPoolSize < 1 {
		return fmt.Errorf("pool.worker_pool_size must be positive (got %d)", c.Pool.WorkerPoolSize)
	}
	return nil
}

func (c *Config) validateBreaker() error {
	if err := validateBreakerSettings("breaker", BreakerSettings{
		FailureThreshold: c.Breaker.FailureThreshold,
		CooldownSeconds:  c.Breaker.CooldownSeconds,
	}); err != nil {
		return err
	}
	for name, settings := range c.Breaker.Dependencies {
		if strings.TrimSpace(name) == "" {
			return errors.New("breaker.dependencies keys must be non-empty")
		}
		if err := validateBreakerSettings("breaker.dependencies."+name, settings); err != nil {
			return err
		}
	}
	return nil
}

func validateBreakerSettings(prefix string, s BreakerSettings) error {
	if s.FailureThreshold < 1 {
		return fmt.Errorf("%s.failure_threshold must be positive", prefix)
	}
	if s.CooldownSeconds < 0 {
		return fmt.Errorf("%s.cooldown_seconds must be zero or positive", prefix)
	}
	return nil
}

func (c *Config) validateStages() error {
	if c.Stages.FetchTimeoutSeconds <= 0 {
		return errors.New("stages.fetch_timeout_seconds must be positive")
	}
	if c.Stages.TransformTimeoutSeconds <= 0 {
		return errors.New("stages.transform_timeout_seconds must be positive")
	}
	if c.Stages.UploadTimeoutSeconds <= 0 {
		return errors.New("stages.upload_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateFetch() error {
	if c.Fetch.MinFileSizeBytes < 0 {
		return errors.New("fetch.min_file_size_bytes must be zero or positive")
	}
	if c.Fetch.RequestsPerSecond < 0 {
		return errors.New("fetch.requests_per_second must be zero or positive")
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case StorageBackendLocal:
		if strings.TrimSpace(c.Storage.LocalDir) == "" {
			return errors.New("storage.local_dir must be set when storage.backend is local")
		}
	case StorageBackendGCS:
		if c.Storage.Bucket == "" {
			defaultPath, err := DefaultConfigPath()
			if err != nil {
				defaultPath = defaultConfigPath
			}
			return fmt.Errorf("storage.bucket is required for the gcs backend. Set GCS_BUCKET or edit %s (create with 'blendflow config init')", defaultPath)
		}
	default:
		return fmt.Errorf("storage.backend must be %q or %q (got %q)", StorageBackendLocal, StorageBackendGCS, c.Storage.Backend)
	}
	if c.Storage.MaxUploadSizeMB <= 0 {
		return errors.New("storage.max_upload_size_mb must be positive")
	}
	if c.Storage.RequestsPerSecond < 0 {
		return errors.New("storage.requests_per_second must be zero or positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("logging.format must be auto, console, or json (got %q)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error (got %q)", c.Logging.Level)
	}
	return nil
}
