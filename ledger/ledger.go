// Package ledger records filter applications and keeps each user's usage
// aggregate.  Applications are append-only; the aggregate is updated with a
// single atomic operation per application in every store.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Skryldev/filter-engine/core"
	apperrors "github.com/Skryldev/filter-engine/errors"
)

// DefaultRecentLimit bounds UserFilterPreference.RecentlyUsed.
const DefaultRecentLimit = 10

// Ledger is the write side used by the engine and the read side used by the
// suggestion engine.
type Ledger struct {
	store core.UsageStore
	now   func() time.Time
	newID func() string
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(l *Ledger) { l.now = now } }

// WithIDs replaces the uuid generator.
func WithIDs(newID func() string) Option { return func(l *Ledger) { l.newID = newID } }

// New returns a Ledger over store.
func New(store core.UsageStore, opts ...Option) *Ledger {
	l := &Ledger{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Store returns the underlying usage store.
func (l *Ledger) Store() core.UsageStore { return l.store }

// Record appends one FilterApplication.
func (l *Ledger) Record(ctx context.Context, mediaID, userID, filterID string, override *core.FilterConfig) (core.FilterApplication, error) {
	const op = "ledger.record"
	if userID == "" || filterID == "" {
		return core.FilterApplication{}, apperrors.InvalidInput(op, errors.New("user and filter ids are required"))
	}
	app := core.FilterApplication{
		ID:        l.newID(),
		MediaID:   mediaID,
		UserID:    userID,
		FilterID:  filterID,
		Override:  override,
		AppliedAt: l.now(),
	}
	if err := l.store.AppendApplication(ctx, app); err != nil {
		return core.FilterApplication{}, apperrors.Wrap(apperrors.CategoryStorage, op, err)
	}
	return app, nil
}

// IncrementUsage adds one to the user's count for filterID and moves it to
// the front of the recently-used list, creating the aggregate on first use.
func (l *Ledger) IncrementUsage(ctx context.Context, userID, filterID string) error {
	const op = "ledger.increment"
	if userID == "" || filterID == "" {
		return apperrors.InvalidInput(op, errors.New("user and filter ids are required"))
	}
	if err := l.store.IncrementUsage(ctx, userID, filterID, l.now()); err != nil {
		return apperrors.Wrap(apperrors.CategoryStorage, op, err)
	}
	return nil
}

// Preference returns the user's aggregate; a user without one gets an empty
// aggregate, not an error.
func (l *Ledger) Preference(ctx context.Context, userID string) (*core.UserFilterPreference, error) {
	p, err := l.store.Preference(ctx, userID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "ledger.preference", err)
	}
	if p == nil {
		p = &core.UserFilterPreference{UserID: userID}
	}
	if p.UsageCount == nil {
		p.UsageCount = map[string]int64{}
	}
	return p, nil
}

// History returns every application by userID, oldest first.
func (l *Ledger) History(ctx context.Context, userID string) ([]core.FilterApplication, error) {
	h, err := l.store.History(ctx, userID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "ledger.history", err)
	}
	return h, nil
}

// Trending counts applications in the trailing window by users other than
// excludeUser.
func (l *Ledger) Trending(ctx context.Context, window time.Duration, excludeUser string, limit int) ([]core.FilterCount, error) {
	if limit <= 0 {
		return nil, nil
	}
	t, err := l.store.Trending(ctx, l.now().Add(-window), excludeUser, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "ledger.trending", err)
	}
	return t, nil
}

// SaveStyleProfile stores a derived profile on the user's aggregate.
func (l *Ledger) SaveStyleProfile(ctx context.Context, userID string, p core.StyleProfile) error {
	if err := l.store.SaveStyleProfile(ctx, userID, p); err != nil {
		return apperrors.Wrap(apperrors.CategoryStorage, "ledger.save_profile", err)
	}
	return nil
}

// ── shared helpers ────────────────────────────────────────────────────────────

// pushRecent moves id to the front of list, dropping older duplicates and
// trimming to limit.
func pushRecent(list []string, id string, limit int) []string {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	out := make([]string, 0, min(len(list)+1, limit))
	out = append(out, id)
	for _, v := range list {
		if len(out) == limit {
			break
		}
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// dedupe keeps the first occurrence of each id.
func dedupe(list []string) []string {
	seen := make(map[string]struct{}, len(list))
	out := list[:0:0]
	for _, v := range list {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func clonePreference(p *core.UserFilterPreference) *core.UserFilterPreference {
	if p == nil {
		return nil
	}
	out := *p
	out.UsageCount = make(map[string]int64, len(p.UsageCount))
	for k, v := range p.UsageCount {
		out.UsageCount[k] = v
	}
	out.RecentlyUsed = append([]string(nil), p.RecentlyUsed...)
	out.StyleProfile = cloneProfile(p.StyleProfile)
	return &out
}

func cloneProfile(p core.StyleProfile) core.StyleProfile {
	return core.StyleProfile{
		PreferredStyles: append([]string(nil), p.PreferredStyles...),
		PreferredMoods:  append([]string(nil), p.PreferredMoods...),
		ColorPalette:    append([]core.ColorSwatch(nil), p.ColorPalette...),
		PreferredColors: append([]string(nil), p.PreferredColors...),
		FilterStats:     append([]core.FilterCount(nil), p.FilterStats...),
	}
}
