// Package provider dispatches AI style-transfer and mood-enhancement requests
// to the configured vendor.
//
// Each vendor is a Provider with its own style/mood lookup table, request
// shaping and response normalisation.  The Gateway owns what is common to all
// of them: request validation, fail-fast on unmapped styles, the per-call
// timeout, and the optional rate limiter and circuit breaker.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/Skryldev/filter-engine/config"
	"github.com/Skryldev/filter-engine/core"
	apperrors "github.com/Skryldev/filter-engine/errors"
)

// Model is one entry of a provider's lookup table.
type Model struct {
	ID     string
	Prompt string
	Params map[string]any
}

// Output is what a provider returns before normalisation.
type Output struct {
	Image      []byte
	Confidence float64
	Params     map[string]any
}

// Provider is one AI vendor.
type Provider interface {
	Name() string
	// Resolve maps (kind, style) to a model.  ok is false when the vendor
	// has no mapping; the gateway then fails without any network call.
	Resolve(kind core.AIKind, style string) (m Model, ok bool)
	Invoke(ctx context.Context, m Model, req core.AIRequest) (*Output, error)
}

// Options tunes a Gateway.
type Options struct {
	Timeout time.Duration // per call; default 60s

	RateLimit float64 // requests per second; 0 = unlimited
	Burst     int

	Breaker config.BreakerConfig

	Logger  core.Logger
	Metrics core.MetricsCollector
}

// Gateway is safe for concurrent use.  The breaker and limiter are the only
// shared state and both synchronise internally.
type Gateway struct {
	provider Provider
	timeout  time.Duration
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker[*Output]
	validate *validator.Validate
	logger   core.Logger
	metrics  core.MetricsCollector
}

// NewGateway wraps p.
func NewGateway(p Provider, opts Options) *Gateway {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = core.NopLogger{}
	}
	g := &Gateway{
		provider: p,
		timeout:  opts.Timeout,
		validate: validator.New(),
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	if opts.Breaker.Enabled {
		g.breaker = newBreaker(p.Name(), opts.Breaker, opts.Logger)
	}
	return g
}

// New builds the gateway for the provider named in cfg.  client may be nil.
func New(cfg config.ProviderConfig, client *http.Client, logger core.Logger, metrics core.MetricsCollector) (*Gateway, error) {
	if client == nil {
		client = &http.Client{}
	}
	var p Provider
	switch strings.ToLower(cfg.Name) {
	case "replicate":
		p = NewReplicate(cfg.BaseURL, cfg.APIKey, client)
	case "stability":
		p = NewStability(cfg.BaseURL, cfg.APIKey, client)
	case "huggingface":
		p = NewHuggingFace(cfg.BaseURL, cfg.APIKey, client)
	default:
		return nil, apperrors.New(apperrors.CategoryConfig, "provider.new",
			fmt.Errorf("unknown provider %q", cfg.Name))
	}
	return NewGateway(p, Options{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		Burst:     cfg.Burst,
		Breaker:   cfg.Breaker,
		Logger:    logger,
		Metrics:   metrics,
	}), nil
}

// Provider returns the active provider's name.
func (g *Gateway) Provider() string { return g.provider.Name() }

// Process runs req against the active provider.
func (g *Gateway) Process(ctx context.Context, req core.AIRequest) (*core.AIProcessingResult, error) {
	const op = "provider.process"
	name := g.provider.Name()

	if err := g.validate.Struct(req); err != nil {
		return nil, apperrors.InvalidInput(op, err)
	}
	if len(req.SourceImage) == 0 {
		return nil, apperrors.InvalidInput(op, apperrors.ErrEmptyInput)
	}

	style := NormalizeStyle(req.Style)
	model, ok := g.provider.Resolve(req.Kind, style)
	if !ok {
		return nil, apperrors.Unsupported(op, fmt.Errorf("%w: %s has no %s mapping for %q",
			apperrors.ErrUnsupportedOperation, name, req.Kind, style))
	}
	req.Style = style

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	out, err := g.invoke(ctx, model, req)
	elapsed := time.Since(start)
	if g.metrics != nil {
		g.metrics.RecordProcessingTime("provider."+name, elapsed)
		g.metrics.RecordEvent("provider_call")
	}
	if err != nil {
		perr := apperrors.Provider(op, name, err)
		g.logger.Warn("provider.call.failed",
			"provider", name, "kind", string(req.Kind), "style", style,
			"timeout", apperrors.IsTimeout(perr), "error", err)
		if g.metrics != nil {
			g.metrics.RecordError("provider."+name, string(apperrors.CategoryProvider))
		}
		return nil, perr
	}
	if len(out.Image) == 0 {
		return nil, apperrors.Provider(op, name, apperrors.ErrMalformedResponse)
	}

	return &core.AIProcessingResult{
		ProcessedImage: out.Image,
		Confidence:     clamp01(out.Confidence),
		Duration:       elapsed,
		ModelID:        model.ID,
		Provider:       name,
		Params:         resultParams(model, req, out),
	}, nil
}

func (g *Gateway) invoke(ctx context.Context, m Model, req core.AIRequest) (*Output, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			// Wait fails early when the deadline cannot be met; report it
			// as the deadline so the caller sees a timeout.
			if ctx.Err() == nil {
				err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
			}
			return nil, err
		}
	}
	if g.breaker == nil {
		return g.provider.Invoke(ctx, m, req)
	}
	return g.breaker.Execute(func() (*Output, error) {
		return g.provider.Invoke(ctx, m, req)
	})
}

func newBreaker(name string, cfg config.BreakerConfig, logger core.Logger) *gobreaker.CircuitBreaker[*Output] {
	return gobreaker.NewCircuitBreaker[*Output](gobreaker.Settings{
		Name:        "provider-" + name,
		MaxRequests: 1,
		Timeout:     cfg.OpenInterval,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("provider.breaker", "name", name, "from", from.String(), "to", to.String())
		},
		// a canceled caller says nothing about the vendor's health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
}

// NormalizeStyle lowercases name and folds spaces and hyphens to '_'.
func NormalizeStyle(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

func resultParams(m Model, req core.AIRequest, out *Output) map[string]any {
	p := make(map[string]any, len(m.Params)+len(req.ExtraParams)+len(out.Params)+2)
	for k, v := range m.Params {
		p[k] = v
	}
	for k, v := range req.ExtraParams {
		p[k] = v
	}
	for k, v := range out.Params {
		p[k] = v
	}
	p["style"] = req.Style
	p["intensity"] = req.Intensity
	return p
}

func clamp01(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
