package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains working and state directory configuration.
type Paths struct {
	WorkDir  string `toml:"work_dir"`
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Retry contains the backoff policy shared by every stage.
type Retry struct {
	MaxRetries        int     `toml:"max_retries"`
	BaseDelayMillis   int     `toml:"base_delay_ms"`
	MaxDelayMillis    int     `toml:"max_delay_ms"`
	BackoffMultiplier float64 `toml:"backoff_multiplier"`
	Jitter            float64 `toml:"jitter"`
}

// Pool bounds batch concurrency.
type Pool struct {
	WorkerPoolSize int `toml:"worker_pool_size"`
}

// BreakerSettings configures one circuit breaker.
type BreakerSettings struct {
	FailureThreshold int `toml:"failure_threshold"`
	CooldownSeconds  int `toml:"cooldown_seconds"`
}

// Breaker contains defaults plus per-dependency overrides keyed by dependency name.
type Breaker struct {
	FailureThreshold int                        `toml:"failure_threshold"`
	CooldownSeconds  int                        `toml:"cooldown_seconds"`
	Dependencies     map[string]BreakerSettings `toml:"dependencies"`
}

// Stages holds per-stage attempt timeouts.
type Stages struct {
	FetchTimeoutSeconds     int `toml:"fetch_timeout_seconds"`
	TransformTimeoutSeconds int `toml:"transform_timeout_seconds"`
	UploadTimeoutSeconds    int `toml:"upload_timeout_seconds"`
}

// Fetch configures the asset downloader.
type Fetch struct {
	MinFileSizeBytes  int64   `toml:"min_file_size_bytes"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// Storage configures where published artifacts land.
type Storage struct {
	Backend           string  `toml:"backend"`
	Bucket            string  `toml:"bucket"`
	LocalDir          string  `toml:"local_dir"`
	MaxUploadSizeMB   int     `toml:"max_upload_size_mb"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all runtime configuration for blendflow.
type Config struct {
	Paths   Paths   `toml:"paths"`
	Retry   Retry   `toml:"retry"`
	Pool    Pool    `toml:"pool"`
	Breaker Breaker `toml:"breaker"`
	Stages  Stages  `toml:"stages"`
	Fetch   Fetch   `toml:"fetch"`
	Storage Storage `toml:"storage"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the expanded location of the user config file.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load reads the config file (when present), applies environment overrides,
// and validates the result. It returns the resolved path and whether the file
// existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("parse config: %s", strict.String())
			}
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("blendflow.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the working, state, and log directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.WorkDir, c.Paths.StateDir, c.Paths.LogDir}
	if c.Storage.Backend == StorageBackendLocal {
		dirs = append(dirs, c.Storage.LocalDir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// StatePath returns the checkpoint database location.
func (c *Config) StatePath() string {
	return filepath.Join(c.Paths.StateDir, "blendflow.db")
}

// LockPath returns the run lock location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "blendflow.lock")
}

// RetryBaseDelay converts the configured base delay.
func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.Retry.BaseDelayMillis) * time.Millisecond
}

// RetryMaxDelay converts the configured delay cap.
func (c *Config) RetryMaxDelay() time.Duration {
	return time.Duration(c.Retry.MaxDelayMillis) * time.Millisecond
}

// BreakerCooldown converts the default cooldown.
func (c *Config) BreakerCooldown() time.Duration {
	return time.Duration(c.Breaker.CooldownSeconds) * time.Second
}

// FetchTimeout returns the per-attempt timeout for the fetch stage.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Stages.FetchTimeoutSeconds) * time.Second
}

// TransformTimeout returns the per-attempt timeout for the transform stage.
func (c *Config) TransformTimeout() time.Duration {
	return time.Duration(c.Stages.TransformTimeoutSeconds) * time.Second
}

// UploadTimeout returns the per-attempt timeout for the publish stage.
func (c *Config) UploadTimeout() time.Duration {
	return time.Duration(c.Stages.UploadTimeoutSeconds) * time.Second
}

// MaxUploadBytes converts the upload size ceiling.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Storage.MaxUploadSizeMB) * 1024 * 1024
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes the annotated sample configuration to path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
