// Package pipeline runs one filter application as an ordered chain of steps:
// decode, tone, effects, encode.  Hooks observe every step and transient
// failures may be retried.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/Skryldev/filter-engine/core"
	apperrors "github.com/Skryldev/filter-engine/errors"
)

// Pipeline is the step chain of a single filter application.  The engine
// builds one per request from the merged FilterConfig; Clone derives an
// independent copy from a template.
type Pipeline struct {
	steps      []core.Step
	hooks      []core.Hook
	maxRetries int
	retryDelay time.Duration
}

// New returns a Pipeline with no steps.
func New() *Pipeline { return &Pipeline{} }

// Use appends steps in execution order.
func (p *Pipeline) Use(s ...core.Step) *Pipeline {
	p.steps = append(p.steps, s...)
	return p
}

// AddHook registers step observers, such as the logging and metrics hooks.
func (p *Pipeline) AddHook(h ...core.Hook) *Pipeline {
	p.hooks = append(p.hooks, h...)
	return p
}

// WithRetry lets a step that fails with a transient error run up to
// maxRetries more times, delay apart.  Decode, encode and input errors fail
// the application immediately.
func (p *Pipeline) WithRetry(maxRetries int, delay time.Duration) *Pipeline {
	p.maxRetries = maxRetries
	p.retryDelay = delay
	return p
}

// Steps returns the step names in execution order.
func (p *Pipeline) Steps() []string {
	out := make([]string, len(p.steps))
	for i, s := range p.steps {
		out[i] = s.Name()
	}
	return out
}

// Run passes img through every step and returns the encoded result with the
// time spent in each step.  A filter application is all or nothing: on the
// first failure the partial image is discarded.
func (p *Pipeline) Run(ctx context.Context, img *core.ImageData) (*core.ImageData, map[string]time.Duration, error) {
	timings := make(map[string]time.Duration, len(p.steps))
	for _, step := range p.steps {
		name := step.Name()
		if err := ctx.Err(); err != nil {
			return nil, timings, apperrors.Wrap(apperrors.CategoryPipeline, name, err)
		}

		for _, h := range p.hooks {
			h.BeforeStep(ctx, name, img)
		}
		out, took, err := p.attempt(ctx, step, img)
		for _, h := range p.hooks {
			h.AfterStep(ctx, name, out, took, err)
		}

		timings[name] = took
		if err != nil {
			return nil, timings, err
		}
		img = out
	}
	return img, timings, nil
}

// attempt runs step, retrying transient failures.  The returned duration
// covers the final attempt only.
func (p *Pipeline) attempt(ctx context.Context, step core.Step, img *core.ImageData) (*core.ImageData, time.Duration, error) {
	for retry := 0; ; retry++ {
		start := time.Now()
		out, err := execute(ctx, step, img)
		took := time.Since(start)

		if err == nil || retry >= p.maxRetries || !apperrors.IsRetryable(err) {
			return out, took, err
		}

		wait := time.NewTimer(p.retryDelay)
		select {
		case <-ctx.Done():
			wait.Stop()
			return nil, took, apperrors.Wrap(apperrors.CategoryPipeline, step.Name(), ctx.Err())
		case <-wait.C:
		}
	}
}

// execute calls step.Execute and turns a panic inside a codec or pixel stage
// into a pipeline error, so one bad image cannot take the process down.
func execute(ctx context.Context, step core.Step, img *core.ImageData) (out *core.ImageData, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = apperrors.New(apperrors.CategoryPipeline, step.Name(), fmt.Errorf("step panicked: %v", r))
		}
	}()
	return step.Execute(ctx, img)
}

// Clone returns a copy whose step and hook slices are independent of p, so a
// template can be extended per request from several goroutines.
func (p *Pipeline) Clone() *Pipeline {
	return &Pipeline{
		steps:      append([]core.Step(nil), p.steps...),
		hooks:      append([]core.Hook(nil), p.hooks...),
		maxRetries: p.maxRetries,
		retryDelay: p.retryDelay,
	}
}
