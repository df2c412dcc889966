package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Skryldev/filter-engine/core"
)

// MemoryStore is a mutex-guarded core.UsageStore for tests and single-node
// deployments.
type MemoryStore struct {
	mu          sync.RWMutex
	apps        []core.FilterApplication
	prefs       map[string]*core.UserFilterPreference
	recentLimit int
}

// NewMemoryStore returns an empty store.  recentLimit <= 0 uses
// DefaultRecentLimit.
func NewMemoryStore(recentLimit int) *MemoryStore {
	if recentLimit <= 0 {
		recentLimit = DefaultRecentLimit
	}
	return &MemoryStore{prefs: make(map[string]*core.UserFilterPreference), recentLimit: recentLimit}
}

func (s *MemoryStore) AppendApplication(_ context.Context, app core.FilterApplication) error {
	s.mu.Lock()
	s.apps = append(s.apps, app)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) IncrementUsage(_ context.Context, userID, filterID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.pref(userID)
	p.UsageCount[filterID]++
	p.RecentlyUsed = pushRecent(p.RecentlyUsed, filterID, s.recentLimit)
	p.UpdatedAt = at
	return nil
}

func (s *MemoryStore) Preference(_ context.Context, userID string) (*core.UserFilterPreference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clonePreference(s.prefs[userID]), nil
}

func (s *MemoryStore) History(_ context.Context, userID string) ([]core.FilterApplication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.FilterApplication
	for _, a := range s.apps {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *MemoryStore) Trending(_ context.Context, since time.Time, excludeUser string, limit int) ([]core.FilterCount, error) {
	s.mu.RLock()
	counts := make(map[string]*core.FilterCount)
	for _, a := range s.apps {
		if a.AppliedAt.Before(since) || (excludeUser != "" && a.UserID == excludeUser) {
			continue
		}
		c, ok := counts[a.FilterID]
		if !ok {
			c = &core.FilterCount{FilterID: a.FilterID}
			counts[a.FilterID] = c
		}
		c.Count++
		if a.AppliedAt.After(c.LastUsed) {
			c.LastUsed = a.AppliedAt
		}
	}
	s.mu.RUnlock()

	out := make([]core.FilterCount, 0, len(counts))
	for _, c := range counts {
		out = append(out, *c)
	}
	sortCounts(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) SaveStyleProfile(_ context.Context, userID string, profile core.StyleProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pref(userID).StyleProfile = cloneProfile(profile)
	return nil
}

// pref returns the aggregate for userID, creating it.  Caller holds mu.
func (s *MemoryStore) pref(userID string) *core.UserFilterPreference {
	p, ok := s.prefs[userID]
	if !ok {
		p = &core.UserFilterPreference{UserID: userID, UsageCount: map[string]int64{}}
		s.prefs[userID] = p
	}
	return p
}

// sortCounts orders by count desc, then filter id.
func sortCounts(c []core.FilterCount) {
	sort.Slice(c, func(i, j int) bool {
		if c[i].Count != c[j].Count {
			return c[i].Count > c[j].Count
		}
		return c[i].FilterID < c[j].FilterID
	})
}
