// Package engine resolves a preset, merges the caller's override and runs the
// decode → tone → effects → encode pipeline.  Usage is recorded on a
// background queue after a successful run.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/Skryldev/filter-engine/core"
	"github.com/Skryldev/filter-engine/effects"
	apperrors "github.com/Skryldev/filter-engine/errors"
	"github.com/Skryldev/filter-engine/pipeline"
	"github.com/Skryldev/filter-engine/presets"
	"github.com/Skryldev/filter-engine/utils"
)

// UsageRecorder is the part of the ledger the engine writes to.
type UsageRecorder interface {
	Record(ctx context.Context, mediaID, userID, filterID string, override *core.FilterConfig) (core.FilterApplication, error)
	IncrementUsage(ctx context.Context, userID, filterID string) error
}

// Options wires an Engine.  Resolver and Registry are required.
type Options struct {
	Resolver *presets.Resolver
	Registry core.Registry
	Stack    *effects.Stack // default: effects.NewStack(nil)

	Usage UsageRecorder   // nil disables usage recording
	Queue *core.TaskQueue // required when Usage is set

	Hooks   []core.Hook
	Logger  core.Logger
	Metrics core.MetricsCollector

	FallbackFormat core.Format // default: jpeg
	Quality        int
	MaxImageBytes  int64 // 0 = no limit
	MaxRetries     int
	RetryDelay     time.Duration
}

// Request is one ApplyFilter call.
type Request struct {
	Image     []byte
	MediaType string // declared type; sniffed when empty
	PresetID  string
	Override  *core.FilterConfig
	MediaID   string
	UserID    string // usage is recorded only when set
}

// Result is the transformed image plus what was applied.
type Result struct {
	Data      []byte
	Format    core.Format
	MediaType string
	// Fallback is true when the input format had no encoder and
	// FallbackFormat was used instead.
	Fallback bool

	Preset core.FilterPreset
	Config core.FilterConfig

	Timings        map[string]time.Duration
	ProcessingTime time.Duration
	UsageQueued    bool
}

// Engine applies filters.  It holds no per-call mutable state and is safe for
// concurrent use.
type Engine struct {
	opts Options
	hook []core.Hook
}

// New validates opts and returns an Engine.
func New(opts Options) (*Engine, error) {
	if opts.Resolver == nil || opts.Registry == nil {
		return nil, apperrors.New(apperrors.CategoryConfig, "engine.new", fmt.Errorf("resolver and registry are required"))
	}
	if opts.Usage != nil && opts.Queue == nil {
		return nil, apperrors.New(apperrors.CategoryConfig, "engine.new", fmt.Errorf("usage recorder needs a task queue"))
	}
	if opts.Stack == nil {
		opts.Stack = effects.NewStack(nil)
	}
	if opts.Logger == nil {
		opts.Logger = core.NopLogger{}
	}
	if opts.FallbackFormat == "" {
		opts.FallbackFormat = core.FormatJPEG
	}
	return &Engine{opts: opts, hook: append([]core.Hook(nil), opts.Hooks...)}, nil
}

// Resolver returns the preset resolver the engine was built with.
func (e *Engine) Resolver() *presets.Resolver { return e.opts.Resolver }

// Apply runs req through the filter pipeline.  Failures are terminal and
// never return partial output.
func (e *Engine) Apply(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	format, err := e.checkInput(req)
	if err != nil {
		e.recordError("input", err)
		return nil, err
	}

	preset, err := e.opts.Resolver.Lookup(ctx, req.PresetID)
	if err != nil {
		e.recordError("resolve", err)
		return nil, err
	}

	cfg := presets.Merge(preset.Config, req.Override)
	if err := presets.Validate(cfg); err != nil {
		e.recordError("merge", err)
		return nil, err
	}

	out, timings, err := e.pipelineFor(cfg).Run(ctx, &core.ImageData{
		Data:         req.Image,
		Format:       format,
		OriginalSize: int64(len(req.Image)),
	})
	if err != nil {
		e.opts.Logger.Warn("engine.apply.failed", "preset", preset.ID, "error", err)
		return nil, err
	}

	res := &Result{
		Data:           out.Data,
		Format:         out.Format,
		MediaType:      out.Format.MediaType(),
		Fallback:       out.Fallback,
		Preset:         *preset,
		Config:         cfg,
		Timings:        timings,
		ProcessingTime: time.Since(start),
	}
	if out.Fallback {
		e.opts.Logger.Info("engine.apply.fallback", "from", string(format), "to", string(out.Format))
	}
	res.UsageQueued = e.queueUsage(req, preset.ID)

	if e.opts.Metrics != nil {
		e.opts.Metrics.RecordProcessingTime("apply", res.ProcessingTime)
	}
	return res, nil
}

// checkInput enforces size and media type and returns the sniffed format.
func (e *Engine) checkInput(req Request) (core.Format, error) {
	const op = "engine.check_input"
	if len(req.Image) == 0 {
		return "", apperrors.InvalidInput(op, apperrors.ErrEmptyInput)
	}
	if e.opts.MaxImageBytes > 0 && int64(len(req.Image)) > e.opts.MaxImageBytes {
		return "", apperrors.InvalidInput(op, fmt.Errorf("%w: %d > %d bytes",
			apperrors.ErrInputTooLarge, len(req.Image), e.opts.MaxImageBytes))
	}
	if req.MediaType != "" && !utils.IsImageMediaType(req.MediaType) {
		return "", apperrors.InvalidInput(op, fmt.Errorf("%w: %s", apperrors.ErrUnsupportedMediaType, req.MediaType))
	}
	if !utils.IsImage(req.Image) {
		mt := utils.DetectMediaType(req.Image)
		if mt == "" {
			mt = "unrecognised content"
		}
		return "", apperrors.InvalidInput(op, fmt.Errorf("%w: %s", apperrors.ErrUnsupportedMediaType, mt))
	}
	return core.Format(utils.DetectFormat(req.Image)), nil
}

func (e *Engine) pipelineFor(cfg core.FilterConfig) *pipeline.Pipeline {
	p := pipeline.New().Use(
		&pipeline.DecodeStep{Registry: e.opts.Registry},
		&pipeline.ToneStep{Config: cfg},
		&pipeline.EffectsStep{Stack: e.opts.Stack, Effects: cfg.Effects},
		&pipeline.EncodeStep{
			Registry: e.opts.Registry,
			Fallback: e.opts.FallbackFormat,
			Options:  core.EncodeOptions{Quality: e.opts.Quality},
		},
	).AddHook(e.hook...)
	if e.opts.MaxRetries > 0 {
		p = p.WithRetry(e.opts.MaxRetries, e.opts.RetryDelay)
	}
	return p
}

// queueUsage submits the ledger writes.  It never blocks and never fails the
// call; a dropped event is logged by the queue.
func (e *Engine) queueUsage(req Request, filterID string) bool {
	if e.opts.Usage == nil || req.UserID == "" {
		return false
	}
	usage := e.opts.Usage
	var override *core.FilterConfig
	if req.Override != nil {
		c := presets.Merge(core.FilterConfig{}, req.Override)
		override = &c
	}
	mediaID, userID := req.MediaID, req.UserID
	return e.opts.Queue.Submit(core.Task{
		Name: "usage",
		Run: func(ctx context.Context) error {
			if _, err := usage.Record(ctx, mediaID, userID, filterID, override); err != nil {
				return err
			}
			return usage.IncrementUsage(ctx, userID, filterID)
		},
	})
}

func (e *Engine) recordError(step string, err error) {
	if e.opts.Metrics == nil {
		return
	}
	cat := "unknown"
	for _, c := range []apperrors.Category{apperrors.CategoryInput, apperrors.CategoryNotFound, apperrors.CategoryStorage} {
		if apperrors.IsCategory(err, c) {
			cat = string(c)
			break
		}
	}
	e.opts.Metrics.RecordError(step, cat)
}
