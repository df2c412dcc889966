package core

import (
	"context"
	"io"
	"time"
)

// Decoder converts raw bytes / a reader into an in-memory ImageData.
// Implementations live in adapters/decoder/.
type Decoder interface {
	Decode(ctx context.Context, r io.Reader) (*ImageData, error)
	CanDecode(format Format) bool
}

// Encoder serialises an ImageData to bytes in a target format.
// Implementations live in adapters/encoder/.
type Encoder interface {
	Encode(ctx context.Context, img *ImageData, opts EncodeOptions) ([]byte, error)
	CanEncode(format Format) bool
}

// EncodeOptions carries format-specific encoding parameters.
type EncodeOptions struct {
	Quality  int  // 1-100; 0 = use encoder default
	Lossless bool // WebP / PNG lossless mode
}

// Registry maps Format values to Decoder/Encoder implementations.
type Registry interface {
	DecoderFor(format Format) (Decoder, bool)
	EncoderFor(format Format) (Encoder, bool)
	RegisterDecoder(format Format, d Decoder)
	RegisterEncoder(format Format, e Encoder)
}

// ── Collaborators ─────────────────────────────────────────────────────────────

// MediaStore is the read-only view of the media store.
type MediaStore interface {
	GetBytes(ctx context.Context, fileID string) ([]byte, error)
}

// PresetStore resolves custom presets.  LookupPreset returns an error in the
// not_found category when id is unknown.
type PresetStore interface {
	LookupPreset(ctx context.Context, id string) (*FilterPreset, error)
	LookupPresetsByCategory(ctx context.Context, category Category) ([]FilterPreset, error)
	LookupPresetsByType(ctx context.Context, typ string) ([]FilterPreset, error)
}

// UsageStore persists the ledger.  IncrementUsage must be atomic for a given
// user and filter: concurrent calls never lose an increment.
type UsageStore interface {
	AppendApplication(ctx context.Context, app FilterApplication) error
	IncrementUsage(ctx context.Context, userID, filterID string, at time.Time) error
	// Preference returns nil, nil when the user has no aggregate yet.
	Preference(ctx context.Context, userID string) (*UserFilterPreference, error)
	History(ctx context.Context, userID string) ([]FilterApplication, error)
	// Trending counts applications since the given time by users other
	// than excludeUser, most applied first.
	Trending(ctx context.Context, since time.Time, excludeUser string, limit int) ([]FilterCount, error)
	SaveStyleProfile(ctx context.Context, userID string, profile StyleProfile) error
}

// ── Observability ─────────────────────────────────────────────────────────────

// MetricsCollector receives performance observations.
type MetricsCollector interface {
	RecordProcessingTime(stepName string, d time.Duration)
	RecordThroughput(bytes int64)
	RecordError(stepName string, category string)
	RecordEvent(name string)
}

// Logger is a minimal structured logging interface.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
