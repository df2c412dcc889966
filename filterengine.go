// Package filterengine applies named visual filters to images, routes AI
// style-transfer and mood-enhancement requests to an external provider, and
// ranks personalised filter suggestions from recorded usage.
//
// Service is the entry point; it wires the codec registry, the preset
// resolver, the usage ledger and its background queue, the provider gateway
// and the suggestion engine from one config.Config.
package filterengine

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/Skryldev/filter-engine/adapters/decoder"
	"github.com/Skryldev/filter-engine/adapters/encoder"
	"github.com/Skryldev/filter-engine/adapters/storage"
	"github.com/Skryldev/filter-engine/config"
	"github.com/Skryldev/filter-engine/core"
	"github.com/Skryldev/filter-engine/engine"
	apperrors "github.com/Skryldev/filter-engine/errors"
	"github.com/Skryldev/filter-engine/hooks"
	"github.com/Skryldev/filter-engine/ledger"
	"github.com/Skryldev/filter-engine/logging"
	"github.com/Skryldev/filter-engine/presets"
	"github.com/Skryldev/filter-engine/provider"
	"github.com/Skryldev/filter-engine/suggest"
)

// Re-exported for callers that only import the root package.
type (
	ApplyRequest = engine.Request
	ApplyResult  = engine.Result
)

const (
	JPEG = core.FormatJPEG
	PNG  = core.FormatPNG
	WebP = core.FormatWebP
)

// DefaultConfig returns a sensible production configuration.
func DefaultConfig() config.Config { return config.Default() }

// Options carries collaborators that cannot come from configuration.  Every
// field is optional.
type Options struct {
	// Logger replaces the logger built from cfg.Log.
	Logger *zerolog.Logger
	// Registerer receives the Prometheus collectors when cfg.Metrics.Enabled.
	// Default: prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer

	// Codecs runs after the pure-Go codecs are registered, e.g. to install
	// the libvips backend.
	Codecs func(core.Registry)

	// CustomPresets is consulted after the built-in table.
	CustomPresets core.PresetStore
	// Usage replaces the store selected by cfg.Ledger.
	Usage core.UsageStore
	// Media replaces the store selected by cfg.Storage.
	Media core.MediaStore
	// S3Client backs the s3 media store.
	S3Client storage.S3Client

	// Provider replaces the vendor named by cfg.Provider.Name.
	Provider   provider.Provider
	HTTPClient *http.Client
}

// Service is safe for concurrent use.  Call Close when done.
type Service struct {
	cfg     config.Config
	zlog    zerolog.Logger
	metrics core.MetricsCollector

	registry *core.DefaultRegistry
	resolver *presets.Resolver
	ledger   *ledger.Ledger
	queue    *core.TaskQueue
	engine   *engine.Engine
	gateway  *provider.Gateway
	suggest  *suggest.Engine
	media    core.MediaStore

	closeUsage func() error
}

// New validates cfg, opens the usage store and starts the usage queue.
func New(ctx context.Context, cfg config.Config, opts Options) (*Service, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, apperrors.New(apperrors.CategoryConfig, "filterengine.new", err)
	}

	s := &Service{cfg: cfg}
	if opts.Logger != nil {
		s.zlog = *opts.Logger
	} else {
		s.zlog = logging.New(cfg.Log, os.Stderr)
	}

	if cfg.Metrics.Enabled {
		reg := opts.Registerer
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		s.metrics = hooks.NewPrometheusMetrics(reg, cfg.Metrics.Namespace)
	} else {
		s.metrics = hooks.NewInMemoryMetrics()
	}

	s.registry = core.NewRegistry()
	for _, d := range decoder.All() {
		s.registry.RegisterDecoder(d.Format(), d)
	}
	for _, e := range encoder.All(cfg.DefaultQuality) {
		s.registry.RegisterEncoder(e.Format(), e)
	}
	if opts.Codecs != nil {
		opts.Codecs(s.registry)
	}

	s.resolver = presets.NewResolver(presets.Builtin(), opts.CustomPresets)

	store, closeUsage := opts.Usage, func() error { return nil }
	if store == nil {
		var err error
		store, closeUsage, err = ledger.Open(ctx, cfg.Ledger, s.component("ledger"))
		if err != nil {
			return nil, err
		}
	}
	s.closeUsage = closeUsage
	s.ledger = ledger.New(store)

	s.queue = core.NewTaskQueue(core.QueueOptions{
		Workers: cfg.WorkerCount,
		Size:    cfg.QueueSize,
		Timeout: cfg.TaskTimeout,
	})
	s.queue.SetLogger(s.component("usage_queue"))
	s.queue.SetMetrics(s.metrics)

	eng, err := engine.New(engine.Options{
		Resolver: s.resolver,
		Registry: s.registry,
		Usage:    s.ledger,
		Queue:    s.queue,
		Hooks: []core.Hook{
			hooks.NewLoggingHook(s.component("pipeline")),
			hooks.NewMetricsHook(s.metrics),
		},
		Logger:         s.component("engine"),
		Metrics:        s.metrics,
		FallbackFormat: core.Format(cfg.FallbackFormat),
		Quality:        cfg.DefaultQuality,
		MaxImageBytes:  cfg.MaxImageBytes,
		MaxRetries:     cfg.MaxRetries,
		RetryDelay:     cfg.RetryDelay,
	})
	if err != nil {
		_ = closeUsage()
		return nil, err
	}
	s.engine = eng

	if s.media, err = s.openMedia(opts); err != nil {
		_ = closeUsage()
		return nil, err
	}

	switch {
	case opts.Provider != nil:
		s.gateway = provider.NewGateway(opts.Provider, provider.Options{
			Timeout:   cfg.Provider.Timeout,
			RateLimit: cfg.Provider.RateLimit,
			Burst:     cfg.Provider.Burst,
			Breaker:   cfg.Provider.Breaker,
			Logger:    s.component("provider"),
			Metrics:   s.metrics,
		})
	case cfg.Provider.Name != "":
		if s.gateway, err = provider.New(cfg.Provider, opts.HTTPClient, s.component("provider"), s.metrics); err != nil {
			_ = closeUsage()
			return nil, err
		}
	}

	s.suggest = suggest.New(s.ledger, s.resolver, cfg.Suggest, s.component("suggest"), s.metrics)

	s.queue.Start()
	s.zlog.Info().
		Str("ledger", string(cfg.Ledger.Backend)).
		Str("provider", s.providerName()).
		Bool("media", s.media != nil).
		Msg("filter engine ready")
	return s, nil
}

func (s *Service) component(name string) core.Logger {
	return hooks.NewZerologLogger(s.zlog).Component(name)
}

func (s *Service) openMedia(opts Options) (core.MediaStore, error) {
	if opts.Media != nil {
		return opts.Media, nil
	}
	switch s.cfg.Storage {
	case config.StorageS3:
		if opts.S3Client == nil {
			return nil, nil
		}
		st, err := storage.NewS3(opts.S3Client, s.cfg.S3.Bucket, s.cfg.S3.Prefix, s.cfg.MaxImageBytes, s.cfg.ChunkSize)
		if err != nil {
			return nil, apperrors.New(apperrors.CategoryConfig, "filterengine.media", err)
		}
		return st, nil
	default:
		if s.cfg.Local.RootDir == "" {
			return nil, nil
		}
		st, err := storage.NewLocal(s.cfg.Local.RootDir, s.cfg.MaxImageBytes, s.cfg.ChunkSize)
		if err != nil {
			return nil, apperrors.New(apperrors.CategoryConfig, "filterengine.media", err)
		}
		return st, nil
	}
}

func (s *Service) providerName() string {
	if s.gateway == nil {
		return "none"
	}
	return s.gateway.Provider()
}

// ── Filters ───────────────────────────────────────────────────────────────────

// ApplyFilter transforms req.Image with the preset req.PresetID merged with
// req.Override.  Usage is recorded in the background when req.UserID is set.
func (s *Service) ApplyFilter(ctx context.Context, req ApplyRequest) (*ApplyResult, error) {
	ctx = logging.WithCorrelationID(ctx)
	log := logging.Ctx(ctx, s.zlog)

	res, err := s.engine.Apply(ctx, req)
	if err != nil {
		log.Warn().Err(err).Str("preset", req.PresetID).Msg("apply filter failed")
		return nil, err
	}
	log.Debug().
		Str("preset", res.Preset.ID).
		Str("format", string(res.Format)).
		Dur("elapsed", res.ProcessingTime).
		Bool("usage_queued", res.UsageQueued).
		Msg("filter applied")
	return res, nil
}

// ApplyFilterToMedia reads mediaID from the media store and applies presetID.
func (s *Service) ApplyFilterToMedia(ctx context.Context, mediaID, userID, presetID string, override *core.FilterConfig) (*ApplyResult, error) {
	if s.media == nil {
		return nil, apperrors.New(apperrors.CategoryConfig, "filterengine.apply_to_media",
			fmt.Errorf("no media store configured"))
	}
	data, err := s.media.GetBytes(ctx, mediaID)
	if err != nil {
		return nil, err
	}
	return s.ApplyFilter(ctx, ApplyRequest{
		Image:    data,
		PresetID: presetID,
		Override: override,
		MediaID:  mediaID,
		UserID:   userID,
	})
}

// Presets lists built-in and custom presets in category c.
func (s *Service) Presets(ctx context.Context, c core.Category) ([]core.FilterPreset, error) {
	if !c.Valid() {
		return nil, apperrors.InvalidInput("filterengine.presets", fmt.Errorf("unknown category %q", c))
	}
	return s.resolver.ByCategory(ctx, c)
}

// ── AI ────────────────────────────────────────────────────────────────────────

// ApplyStyleTransfer restyles image through the configured provider.
func (s *Service) ApplyStyleTransfer(ctx context.Context, image []byte, style string, intensity float64, extra map[string]any) (*core.AIProcessingResult, error) {
	return s.processAI(ctx, core.AIRequest{
		Kind: core.AIStyleTransfer, SourceImage: image, Style: style, Intensity: intensity, ExtraParams: extra,
	})
}

// ApplyMoodEnhancement shifts the mood of image through the configured provider.
func (s *Service) ApplyMoodEnhancement(ctx context.Context, image []byte, mood string, intensity float64, extra map[string]any) (*core.AIProcessingResult, error) {
	return s.processAI(ctx, core.AIRequest{
		Kind: core.AIMoodEnhancement, SourceImage: image, Style: mood, Intensity: intensity, ExtraParams: extra,
	})
}

func (s *Service) processAI(ctx context.Context, req core.AIRequest) (*core.AIProcessingResult, error) {
	if s.gateway == nil {
		return nil, apperrors.Unsupported("filterengine.ai",
			fmt.Errorf("%w: no AI provider configured", apperrors.ErrUnsupportedOperation))
	}
	ctx = logging.WithCorrelationID(ctx)
	res, err := s.gateway.Process(ctx, req)
	if err != nil {
		return nil, err
	}
	log := logging.Ctx(ctx, s.zlog)
	log.Debug().
		Str("provider", res.Provider).
		Str("model", res.ModelID).
		Float64("confidence", res.Confidence).
		Dur("elapsed", res.Duration).
		Msg("ai request done")
	return res, nil
}

// ── Suggestions ───────────────────────────────────────────────────────────────

// GetSuggestions ranks filters for userID.  It never fails; an unavailable
// ledger yields an empty list.
func (s *Service) GetSuggestions(ctx context.Context, userID, mediaID string) []core.Suggestion {
	return s.suggest.Suggest(ctx, userID, mediaID)
}

// AnalyzeStyle derives and stores the style profile of userID.
func (s *Service) AnalyzeStyle(ctx context.Context, userID string) (core.StyleProfile, error) {
	return s.suggest.AnalyzeStyle(ctx, userID)
}

// ── Lifecycle ─────────────────────────────────────────────────────────────────

// Metrics returns the active collector.  It is a *hooks.InMemoryMetrics
// unless Prometheus metrics are enabled.
func (s *Service) Metrics() core.MetricsCollector { return s.metrics }

// QueueStats reports usage tasks completed, failed and dropped.
func (s *Service) QueueStats() (done, failed, dropped int64) { return s.queue.Stats() }

// Close drains pending usage writes and releases the usage store.
func (s *Service) Close() error {
	s.queue.Stop()
	done, failed, dropped := s.queue.Stats()
	s.zlog.Info().Int64("done", done).Int64("failed", failed).Int64("dropped", dropped).Msg("usage queue drained")
	return s.closeUsage()
}
