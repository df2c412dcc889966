package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// StorageBackend selects the media storage adapter.
type StorageBackend string

const (
	StorageLocal StorageBackend = "local"
	StorageS3    StorageBackend = "s3"
)

// LedgerBackend selects the usage store.
type LedgerBackend string

const (
	LedgerMemory LedgerBackend = "memory"
	LedgerBadger LedgerBackend = "badger"
	LedgerMongo  LedgerBackend = "mongo"
)

// Config is the top-level configuration struct.  All fields have safe defaults
// so callers can start with Default() and override only what they need.
type Config struct {
	// Usage task queue.
	WorkerCount int           `koanf:"worker_count" validate:"gte=0"` // default: runtime.NumCPU()
	QueueSize   int           `koanf:"queue_size" validate:"gte=1"`   // buffered usage events before dropping
	TaskTimeout time.Duration `koanf:"task_timeout" validate:"gte=0"`

	// Retry of transient pipeline failures.
	MaxRetries int           `koanf:"max_retries" validate:"gte=0"`
	RetryDelay time.Duration `koanf:"retry_delay" validate:"gte=0"`

	// Encoding.
	DefaultQuality int    `koanf:"default_quality" validate:"gte=1,lte=100"`
	FallbackFormat string `koanf:"fallback_format" validate:"oneof=jpeg png"`

	// Streaming / memory limits.
	MaxImageBytes int64 `koanf:"max_image_bytes" validate:"gte=0"` // 0 = no limit
	ChunkSize     int   `koanf:"chunk_size" validate:"gt=0"`

	Storage StorageBackend `koanf:"storage" validate:"oneof=local s3"`
	Local   LocalConfig    `koanf:"local"`
	S3      S3Config       `koanf:"s3"`

	Provider ProviderConfig `koanf:"provider"`
	Ledger   LedgerConfig   `koanf:"ledger"`
	Suggest  SuggestConfig  `koanf:"suggest"`
	Log      LogConfig      `koanf:"log"`
	Metrics  MetricsConfig  `koanf:"metrics"`
}

// LocalConfig configures the local filesystem storage adapter.
type LocalConfig struct {
	RootDir string `koanf:"root_dir"`
}

// S3Config configures the S3 storage adapter.  The client itself is injected.
type S3Config struct {
	Bucket string `koanf:"bucket"`
	Prefix string `koanf:"prefix"`
}

// ProviderConfig selects and tunes the AI provider.
type ProviderConfig struct {
	Name    string        `koanf:"name" validate:"omitempty,oneof=replicate stability huggingface"`
	BaseURL string        `koanf:"base_url" validate:"omitempty,url"`
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`

	// RateLimit is requests per second; 0 disables limiting.
	RateLimit float64 `koanf:"rate_limit" validate:"gte=0"`
	Burst     int     `koanf:"burst" validate:"gte=0"`

	Breaker BreakerConfig `koanf:"breaker"`
}

// BreakerConfig controls the optional circuit breaker around provider calls.
type BreakerConfig struct {
	Enabled      bool          `koanf:"enabled"`
	MaxFailures  uint32        `koanf:"max_failures"`
	OpenInterval time.Duration `koanf:"open_interval"`
}

// LedgerConfig selects the usage store.
type LedgerConfig struct {
	Backend     LedgerBackend `koanf:"backend" validate:"oneof=memory badger mongo"`
	BadgerDir   string        `koanf:"badger_dir"`
	MongoURI    string        `koanf:"mongo_uri"`
	MongoDB     string        `koanf:"mongo_db"`
	RecentLimit int           `koanf:"recent_limit" validate:"gte=1"`
}

// MaxSuggestionsCap is the most suggestions a single request may return.
const MaxSuggestionsCap = 6

// SuggestConfig tunes the suggestion engine.
type SuggestConfig struct {
	MaxSuggestions   int           `koanf:"max_suggestions" validate:"gte=1,lte=6"`
	FrequentLimit    int           `koanf:"frequent_limit" validate:"gte=0"`
	TrendingWindow   time.Duration `koanf:"trending_window" validate:"gt=0"`
	TrendingLimit    int           `koanf:"trending_limit" validate:"gte=0"`
	PaletteThreshold float64       `koanf:"palette_threshold" validate:"gte=0,lte=1"`
}

// LogConfig configures the root zerolog logger.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// MetricsConfig toggles Prometheus collection.
type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Namespace string `koanf:"namespace"`
}

// Default returns a Config populated with sensible production defaults.
func Default() Config {
	return Config{
		WorkerCount:    0, // resolved at runtime to NumCPU
		QueueSize:      256,
		TaskTimeout:    10 * time.Second,
		MaxRetries:     0,
		RetryDelay:     200 * time.Millisecond,
		DefaultQuality: 85,
		FallbackFormat: "jpeg",
		ChunkSize:      32 * 1024,
		MaxImageBytes:  50 << 20,
		Storage:        StorageLocal,
		Provider: ProviderConfig{
			Timeout: 60 * time.Second,
			Breaker: BreakerConfig{MaxFailures: 5, OpenInterval: 30 * time.Second},
		},
		Ledger: LedgerConfig{
			Backend:     LedgerMemory,
			MongoDB:     "filters",
			RecentLimit: 10,
		},
		Suggest: SuggestConfig{
			MaxSuggestions:   MaxSuggestionsCap,
			FrequentLimit:    3,
			TrendingWindow:   7 * 24 * time.Hour,
			TrendingLimit:    3,
			PaletteThreshold: 0.10,
		},
		Log:     LogConfig{Level: "info", Format: "json"},
		Metrics: MetricsConfig{Namespace: "filterengine"},
	}
}

var validate = validator.New()

// Validate returns an error if the configuration is inconsistent.
func Validate(c Config) error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Storage == StorageS3 && c.S3.Bucket == "" {
		return errors.New("config: S3.Bucket is required for s3 storage")
	}
	switch c.Ledger.Backend {
	case LedgerBadger:
		if c.Ledger.BadgerDir == "" {
			return errors.New("config: Ledger.BadgerDir is required for the badger backend")
		}
	case LedgerMongo:
		if c.Ledger.MongoURI == "" || c.Ledger.MongoDB == "" {
			return errors.New("config: Ledger.MongoURI and Ledger.MongoDB are required for the mongo backend")
		}
	}
	if c.Provider.Breaker.Enabled && c.Provider.Breaker.MaxFailures == 0 {
		return errors.New("config: Provider.Breaker.MaxFailures must be positive when the breaker is enabled")
	}
	return nil
}
