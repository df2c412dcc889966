package ledger

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/Skryldev/filter-engine/core"
	apperrors "github.com/Skryldev/filter-engine/errors"
)

// Key layout:
//
//	app/<user>/<appliedAt unix nanos, 20 digits>/<id>  → FilterApplication
//	pref/<user>                                        → UserFilterPreference
//
// User ids are path-escaped so '/' cannot break the layout.
const (
	appKeyPrefix  = "app/"
	prefKeyPrefix = "pref/"

	// maxConflictRetries bounds optimistic retries of one increment.
	maxConflictRetries = 1000
)

// BadgerStore is a core.UsageStore on an embedded badger database.  The
// aggregate update is a read-modify-write transaction; badger's conflict
// detection rejects a commit whose read set changed, and the store retries it.
type BadgerStore struct {
	db          *badger.DB
	recentLimit int
}

// NewBadgerStore wraps an open database.  The caller owns db.
func NewBadgerStore(db *badger.DB, recentLimit int) *BadgerStore {
	if recentLimit <= 0 {
		recentLimit = DefaultRecentLimit
	}
	return &BadgerStore{db: db, recentLimit: recentLimit}
}

// OpenBadger opens (or creates) a database under dir.
func OpenBadger(dir string, logger core.Logger) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if logger != nil {
		opts = opts.WithLogger(badgerLogger{logger})
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, apperrors.Storage("ledger.open_badger", err)
	}
	return db, nil
}

func (s *BadgerStore) AppendApplication(_ context.Context, app core.FilterApplication) error {
	data, err := json.Marshal(app)
	if err != nil {
		return apperrors.Storage("ledger.badger.append", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(appKey(app), data)
	})
	if err != nil {
		return apperrors.Storage("ledger.badger.append", err)
	}
	return nil
}

func (s *BadgerStore) IncrementUsage(ctx context.Context, userID, filterID string, at time.Time) error {
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return apperrors.Storage("ledger.badger.increment", err)
		}
		err := s.db.Update(func(txn *badger.Txn) error {
			p, err := getPref(txn, userID)
			if err != nil {
				return err
			}
			if p == nil {
				p = &core.UserFilterPreference{UserID: userID}
			}
			if p.UsageCount == nil {
				p.UsageCount = map[string]int64{}
			}
			p.UsageCount[filterID]++
			p.RecentlyUsed = pushRecent(p.RecentlyUsed, filterID, s.recentLimit)
			p.UpdatedAt = at
			return putPref(txn, p)
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		if err != nil {
			return apperrors.Storage("ledger.badger.increment", err)
		}
		return nil
	}
	return apperrors.Transient("ledger.badger.increment",
		fmt.Errorf("%w after %d attempts", badger.ErrConflict, maxConflictRetries))
}

func (s *BadgerStore) Preference(_ context.Context, userID string) (*core.UserFilterPreference, error) {
	var p *core.UserFilterPreference
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		p, err = getPref(txn, userID)
		return err
	})
	if err != nil {
		return nil, apperrors.Storage("ledger.badger.preference", err)
	}
	return p, nil
}

func (s *BadgerStore) History(_ context.Context, userID string) ([]core.FilterApplication, error) {
	var out []core.FilterApplication
	prefix := []byte(appKeyPrefix + url.PathEscape(userID) + "/")
	err := s.scan(prefix, func(a core.FilterApplication) {
		out = append(out, a)
	})
	if err != nil {
		return nil, apperrors.Storage("ledger.badger.history", err)
	}
	return out, nil
}

func (s *BadgerStore) Trending(_ context.Context, since time.Time, excludeUser string, limit int) ([]core.FilterCount, error) {
	counts := make(map[string]*core.FilterCount)
	err := s.scan([]byte(appKeyPrefix), func(a core.FilterApplication) {
		if a.AppliedAt.Before(since) || (excludeUser != "" && a.UserID == excludeUser) {
			return
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
	})
	if err != nil {
		return nil, apperrors.Storage("ledger.badger.trending", err)
	}
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

func (s *BadgerStore) SaveStyleProfile(ctx context.Context, userID string, profile core.StyleProfile) error {
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return apperrors.Storage("ledger.badger.save_profile", err)
		}
		err := s.db.Update(func(txn *badger.Txn) error {
			p, err := getPref(txn, userID)
			if err != nil {
				return err
			}
			if p == nil {
				p = &core.UserFilterPreference{UserID: userID, UsageCount: map[string]int64{}}
			}
			p.StyleProfile = profile
			return putPref(txn, p)
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		if err != nil {
			return apperrors.Storage("ledger.badger.save_profile", err)
		}
		return nil
	}
	return apperrors.Transient("ledger.badger.save_profile", badger.ErrConflict)
}

// scan decodes every application under prefix, in key order.
func (s *BadgerStore) scan(prefix []byte, fn func(core.FilterApplication)) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var a core.FilterApplication
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &a)
			})
			if err != nil {
				return err
			}
			fn(a)
		}
		return nil
	})
}

func appKey(a core.FilterApplication) []byte {
	return []byte(fmt.Sprintf("%s%s/%020d/%s", appKeyPrefix, url.PathEscape(a.UserID), a.AppliedAt.UnixNano(), a.ID))
}

func prefKey(userID string) []byte {
	return []byte(prefKeyPrefix + url.PathEscape(userID))
}

func getPref(txn *badger.Txn, userID string) (*core.UserFilterPreference, error) {
	item, err := txn.Get(prefKey(userID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var p core.UserFilterPreference
	if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &p) }); err != nil {
		return nil, err
	}
	return &p, nil
}

func putPref(txn *badger.Txn, p *core.UserFilterPreference) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return txn.Set(prefKey(p.UserID), data)
}

// badgerLogger routes badger's printf-style logs to a core.Logger.
type badgerLogger struct{ l core.Logger }

func (b badgerLogger) Errorf(f string, v ...interface{})   { b.l.Error("badger", "msg", fmt.Sprintf(f, v...)) }
func (b badgerLogger) Warningf(f string, v ...interface{}) { b.l.Warn("badger", "msg", fmt.Sprintf(f, v...)) }
func (b badgerLogger) Infof(f string, v ...interface{})    { b.l.Debug("badger", "msg", fmt.Sprintf(f, v...)) }
func (b badgerLogger) Debugf(f string, v ...interface{})   { b.l.Debug("badger", "msg", fmt.Sprintf(f, v...)) }
