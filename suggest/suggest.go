// Package suggest ranks filters for a user from ledger aggregates and derives
// the user's style profile from their application history.
package suggest

import (
	"context"
	"sort"
	"time"

	"github.com/Skryldev/filter-engine/config"
	"github.com/Skryldev/filter-engine/core"
	"github.com/Skryldev/filter-engine/presets"
)

// Base confidence of each suggestion source.
const (
	ConfidenceFrequentlyUsed = 0.80
	ConfidenceStyleMatch     = 0.75
	ConfidenceMoodMatch      = 0.70
	ConfidenceTrending       = 0.60
)

// Usage is the read side of the ledger, plus the profile write-back.
type Usage interface {
	Preference(ctx context.Context, userID string) (*core.UserFilterPreference, error)
	History(ctx context.Context, userID string) ([]core.FilterApplication, error)
	Trending(ctx context.Context, window time.Duration, excludeUser string, limit int) ([]core.FilterCount, error)
	SaveStyleProfile(ctx context.Context, userID string, p core.StyleProfile) error
}

// Engine produces suggestions.  It is stateless and safe for concurrent use.
type Engine struct {
	usage    Usage
	resolver *presets.Resolver
	cfg      config.SuggestConfig
	logger   core.Logger
	metrics  core.MetricsCollector
}

// New returns an Engine.  Zero fields of cfg take the package defaults, and
// MaxSuggestions is capped at config.MaxSuggestionsCap.
func New(usage Usage, resolver *presets.Resolver, cfg config.SuggestConfig, logger core.Logger, metrics core.MetricsCollector) *Engine {
	def := config.Default().Suggest
	if cfg.MaxSuggestions <= 0 {
		cfg.MaxSuggestions = def.MaxSuggestions
	}
	cfg.MaxSuggestions = min(cfg.MaxSuggestions, config.MaxSuggestionsCap)
	if cfg.FrequentLimit <= 0 {
		cfg.FrequentLimit = def.FrequentLimit
	}
	if cfg.TrendingWindow <= 0 {
		cfg.TrendingWindow = def.TrendingWindow
	}
	if cfg.TrendingLimit <= 0 {
		cfg.TrendingLimit = def.TrendingLimit
	}
	if cfg.PaletteThreshold <= 0 {
		cfg.PaletteThreshold = def.PaletteThreshold
	}
	if resolver == nil {
		resolver = presets.NewResolver(presets.Builtin(), nil)
	}
	if logger == nil {
		logger = core.NopLogger{}
	}
	return &Engine{usage: usage, resolver: resolver, cfg: cfg, logger: logger, metrics: metrics}
}

// Suggest returns at most MaxSuggestions suggestions for userID, ordered by
// non-increasing confidence.  Any failure is logged and yields an empty
// list.
func (e *Engine) Suggest(ctx context.Context, userID, mediaID string) []core.Suggestion {
	start := time.Now()
	out, err := e.suggest(ctx, userID, mediaID)
	if err != nil {
		e.logger.Warn("suggestions unavailable", "user_id", userID, "error", err)
		if e.metrics != nil {
			e.metrics.RecordError("suggest", "suggest_failed")
		}
		return []core.Suggestion{}
	}
	if e.metrics != nil {
		e.metrics.RecordProcessingTime("suggest", time.Since(start))
		e.metrics.RecordEvent("suggestions_generated")
	}
	e.logger.Debug("suggestions generated", "user_id", userID, "count", len(out))
	return out
}

func (e *Engine) suggest(ctx context.Context, userID, mediaID string) ([]core.Suggestion, error) {
	pref, err := e.usage.Preference(ctx, userID)
	if err != nil {
		return nil, err
	}
	if pref == nil {
		pref = &core.UserFilterPreference{UserID: userID}
	}

	profile := pref.StyleProfile
	if stale(pref) {
		if profile, err = e.AnalyzeStyle(ctx, userID); err != nil {
			return nil, err
		}
	}

	var pool []core.Suggestion
	add := func(filterID string, conf float64, reason core.Reason) {
		pool = append(pool, core.Suggestion{
			FilterID:   filterID,
			Confidence: clamp01(conf),
			Reason:     reason,
			MediaID:    mediaID,
			UserID:     userID,
		})
	}

	for _, c := range topUsed(pref.UsageCount, e.cfg.FrequentLimit) {
		add(c.FilterID, ConfidenceFrequentlyUsed, core.ReasonFrequentlyUsed)
	}
	for _, p := range e.matching(profile.PreferredStyles, core.CategoryArtistic) {
		add(p.ID, ConfidenceStyleMatch, core.ReasonStyleMatch)
	}
	for _, p := range e.matching(profile.PreferredMoods, core.CategoryMood) {
		add(p.ID, ConfidenceMoodMatch, core.ReasonMoodMatch)
	}
	trending, err := e.usage.Trending(ctx, e.cfg.TrendingWindow, userID, e.cfg.TrendingLimit)
	if err != nil {
		return nil, err
	}
	for _, c := range trending {
		add(c.FilterID, ConfidenceTrending, core.ReasonTrending)
	}

	return Rank(pool, e.cfg.MaxSuggestions), nil
}

// stale reports whether the stored profile was derived from fewer
// applications than the usage counters now hold.  A profile that was never
// analysed has no filter stats, so it is stale as soon as anything is used.
func stale(pref *core.UserFilterPreference) bool {
	var used, analysed int64
	for _, n := range pref.UsageCount {
		used += n
	}
	for _, s := range pref.StyleProfile.FilterStats {
		analysed += s.Count
	}
	return used > analysed
}

// matching returns the built-in presets of category c whose type is in types.
func (e *Engine) matching(types []string, c core.Category) []core.FilterPreset {
	var out []core.FilterPreset
	for _, typ := range types {
		for _, p := range e.resolver.Builtin().ByType(typ) {
			if p.Category == c {
				out = append(out, p)
			}
		}
	}
	return out
}

// Rank sorts pool by confidence (source priority breaks ties), keeps the
// first occurrence of each filter and truncates to limit.
func Rank(pool []core.Suggestion, limit int) []core.Suggestion {
	if limit < 0 {
		limit = 0
	}
	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].Confidence != pool[j].Confidence {
			return pool[i].Confidence > pool[j].Confidence
		}
		return pool[i].Reason.Priority() < pool[j].Reason.Priority()
	})

	out := make([]core.Suggestion, 0, limit)
	seen := make(map[string]bool, len(pool))
	for _, s := range pool {
		if len(out) == limit {
			break
		}
		if seen[s.FilterID] {
			continue
		}
		seen[s.FilterID] = true
		out = append(out, s)
	}
	return out
}

// topUsed returns up to limit filters by usage count, highest first.
func topUsed(counts map[string]int64, limit int) []core.FilterCount {
	if limit <= 0 {
		return nil
	}
	out := make([]core.FilterCount, 0, len(counts))
	for id, n := range counts {
		if n > 0 {
			out = append(out, core.FilterCount{FilterID: id, Count: n})
		}
	}
	sortCounts(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func sortCounts(c []core.FilterCount) {
	sort.Slice(c, func(i, j int) bool {
		if c[i].Count != c[j].Count {
			return c[i].Count > c[j].Count
		}
		return c[i].FilterID < c[j].FilterID
	})
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
