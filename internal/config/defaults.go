package config

const (
	defaultConfigPath              = "~/.config/blendflow/config.toml"
	defaultWorkDir                 = "~/.local/share/blendflow/work"
	defaultStateDir                = "~/.local/share/blendflow/state"
	defaultLogDir                  = "~/.local/share/blendflow/logs"
	defaultPublishDir              = "~/.local/share/blendflow/published"
	defaultMaxRetries              = 3
	defaultBaseDelayMillis         = 1000
	defaultMaxDelayMillis          = 60000
	defaultBackoffMultiplier       = 2.0
	defaultJitter                  = 0.2
	defaultWorkerPoolSize          = 4
	defaultFailureThreshold        = 5
	defaultCooldownSeconds         = 60
	defaultFetchTimeoutSeconds     = 120
	defaultTransformTimeoutSeconds = 300
	defaultUploadTimeoutSeconds    = 300
	defaultMinFileSizeBytes        = 1024
	defaultMaxUploadSizeMB         = 500
	defaultLogFormat               = "auto"
	defaultLogLevel                = "info"
)

const (
	StorageBackendLocal = "local"
	StorageBackendGCS   = "gcs"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:  defaultWorkDir,
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Retry: Retry{
			MaxRetries:        defaultMaxRetries,
			BaseDelayMillis:   defaultBaseDelayMillis,
			MaxDelayMillis:    defaultMaxDelayMillis,
			BackoffMultiplier: defaultBackoffMultiplier,
			Jitter:            defaultJitter,
		},
		Pool: Pool{
			WorkerPoolSize: defaultWorkerPoolSize,
		},
		Breaker: Breaker{
			FailureThreshold: defaultFailureThreshold,
			CooldownSeconds:  defaultCooldownSeconds,
		},
		Stages: Stages{
			FetchTimeoutSeconds:     defaultFetchTimeoutSeconds,
			TransformTimeoutSeconds: defaultTransformTimeoutSeconds,
			UploadTimeoutSeconds:    defaultUploadTimeoutSeconds,
		},
		Fetch: Fetch{
			MinFileSizeBytes: defaultMinFileSizeBytes,
		},
		Storage: Storage{
			Backend:         StorageBackendLocal,
			LocalDir:        defaultPublishDir,
			MaxUploadSizeMB: defaultMaxUploadSizeMB,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
