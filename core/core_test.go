package core_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/Skryldev/filter-engine/core"
)

func TestFilterConfig_UnmarshalPresence(t *testing.T) {
	var cfg core.FilterConfig
	if err := json.Unmarshal([]byte(`{"contrast":1.2,"sepia":null}`), &cfg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !cfg.Contrast.Set || cfg.Contrast.Value != 1.2 {
		t.Errorf("contrast = %+v, want set 1.2", cfg.Contrast)
	}
	if cfg.Sepia.Set {
		t.Error("null sepia must stay unset")
	}
	if cfg.Brightness.Set {
		t.Error("absent brightness must stay unset")
	}
	if cfg.EffectsSet {
		t.Error("absent effects must not be marked as set")
	}

	var withEmpty core.FilterConfig
	if err := json.Unmarshal([]byte(`{"effects":[]}`), &withEmpty); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !withEmpty.EffectsSet || len(withEmpty.Effects) != 0 {
		t.Errorf("empty effects list should be set and empty, got %+v", withEmpty)
	}
}

func TestFilterConfig_ResolvedUsesNeutral(t *testing.T) {
	var cfg core.FilterConfig
	for _, f := range core.Fields {
		if got, want := cfg.Resolved(f), core.DomainOf(f).Neutral; got != want {
			t.Errorf("%s resolved to %v, want neutral %v", f, got, want)
		}
		if !cfg.IsNeutral(f) {
			t.Errorf("%s should be neutral when unset", f)
		}
	}
	cfg.Opacity = core.Val(0.5)
	if cfg.IsNeutral(core.FieldOpacity) {
		t.Error("opacity 0.5 is not neutral")
	}
}

func TestDomain_RejectsInfinities(t *testing.T) {
	blur := core.DomainOf(core.FieldBlur)
	if !blur.Contains(1e6) {
		t.Error("blur domain is open above; large finite values belong to it")
	}
	for _, v := range []float64{math.Inf(1), math.Inf(-1), math.NaN()} {
		if blur.Contains(v) {
			t.Errorf("blur domain contains %v", v)
		}
	}
}

func TestBlurSigma(t *testing.T) {
	tests := []struct {
		sigma float64
		w, h  int
		want  float64
	}{
		{0, 100, 100, 0},
		{-3, 100, 100, 0},
		{math.NaN(), 100, 100, 0},
		{2.5, 100, 100, 2.5},
		{1e10, 1000, 1000, core.MaxBlurSigma},
		{math.Inf(1), 1000, 1000, core.MaxBlurSigma},
		{1e6, 4, 3, 4},
	}
	for _, tc := range tests {
		if got := core.BlurSigma(tc.sigma, tc.w, tc.h); got != tc.want {
			t.Errorf("BlurSigma(%v, %d, %d) = %v, want %v", tc.sigma, tc.w, tc.h, got, tc.want)
		}
	}
}

func TestReasonPriorityOrder(t *testing.T) {
	order := []core.Reason{
		core.ReasonFrequentlyUsed, core.ReasonStyleMatch, core.ReasonMoodMatch,
		core.ReasonTrending, core.ReasonContentSimilarity,
	}
	for i := 1; i < len(order); i++ {
		if order[i-1].Priority() >= order[i].Priority() {
			t.Errorf("%s should outrank %s", order[i-1], order[i])
		}
	}
}

// ── TaskQueue ─────────────────────────────────────────────────────────────────

func TestTaskQueue_RunsSubmittedTasks(t *testing.T) {
	q := core.NewTaskQueue(core.QueueOptions{Workers: 2, Size: 16})
	q.Start()

	var ran int64
	for i := 0; i < 10; i++ {
		ok := q.Submit(core.Task{Name: "count", Run: func(context.Context) error {
			atomic.AddInt64(&ran, 1)
			return nil
		}})
		if !ok {
			t.Fatalf("submit %d rejected", i)
		}
	}
	q.Stop()

	if got := atomic.LoadInt64(&ran); got != 10 {
		t.Fatalf("ran %d tasks, want 10", got)
	}
	done, failed, dropped := q.Stats()
	if done != 10 || failed != 0 || dropped != 0 {
		t.Errorf("stats = %d/%d/%d", done, failed, dropped)
	}
}

func TestTaskQueue_SubmitNeverBlocks(t *testing.T) {
	q := core.NewTaskQueue(core.QueueOptions{Workers: 1, Size: 1})
	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(1)
	q.Start()

	q.Submit(core.Task{Name: "block", Run: func(context.Context) error {
		started.Done()
		<-release
		return nil
	}})
	started.Wait()
	q.Submit(core.Task{Name: "buffered", Run: func(context.Context) error { return nil }})

	doneCh := make(chan bool)
	go func() {
		doneCh <- q.Submit(core.Task{Name: "overflow", Run: func(context.Context) error { return nil }})
	}()
	select {
	case ok := <-doneCh:
		if ok {
			t.Error("overflow task should have been dropped")
		}
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on a full queue")
	}

	close(release)
	q.Stop()
	if _, _, dropped := q.Stats(); dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
}

func TestTaskQueue_FailuresAreCounted(t *testing.T) {
	q := core.NewTaskQueue(core.QueueOptions{Workers: 1, Size: 4, Timeout: time.Second})
	q.Start()
	q.Submit(core.Task{Name: "fail", Run: func(context.Context) error { return errors.New("boom") }})
	q.Submit(core.Task{Name: "panic", Run: func(context.Context) error { panic("boom") }})
	q.Stop()

	if _, failed, _ := q.Stats(); failed != 2 {
		t.Errorf("failed = %d, want 2", failed)
	}
	if q.Submit(core.Task{Name: "late", Run: func(context.Context) error { return nil }}) {
		t.Error("submit after Stop must be rejected")
	}
}

func TestRegistry_Encodable(t *testing.T) {
	reg := core.NewRegistry()
	if _, ok := reg.EncoderFor(core.FormatPNG); ok {
		t.Fatal("empty registry should have no encoders")
	}
	reg.RegisterDecoder(core.FormatWebP, nil)
	if _, ok := reg.DecoderFor(core.FormatWebP); ok {
		t.Error("nil decoder must not count as registered")
	}
	if got := reg.Encodable(); len(got) != 0 {
		t.Errorf("Encodable = %v, want none", got)
	}
}
