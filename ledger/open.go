package ledger

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Skryldev/filter-engine/config"
	"github.com/Skryldev/filter-engine/core"
	apperrors "github.com/Skryldev/filter-engine/errors"
)

// Open builds the usage store selected by cfg.  The returned close function
// releases the backend and is never nil.
func Open(ctx context.Context, cfg config.LedgerConfig, logger core.Logger) (core.UsageStore, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Backend {
	case config.LedgerMemory, "":
		return NewMemoryStore(cfg.RecentLimit), noop, nil

	case config.LedgerBadger:
		db, err := OpenBadger(cfg.BadgerDir, logger)
		if err != nil {
			return nil, noop, err
		}
		return NewBadgerStore(db, cfg.RecentLimit), db.Close, nil

	case config.LedgerMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, noop, apperrors.Storage("ledger.open_mongo", err)
		}
		if err := client.Ping(ctx, nil); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, noop, apperrors.Storage("ledger.open_mongo", err)
		}
		store := NewMongoStore(client.Database(cfg.MongoDB), cfg.RecentLimit)
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, noop, err
		}
		return store, func() error { return client.Disconnect(context.Background()) }, nil
	}
	return nil, noop, apperrors.New(apperrors.CategoryConfig, "ledger.open",
		fmt.Errorf("unknown ledger backend %q", cfg.Backend))
}
