package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/Skryldev/filter-engine/core"
	apperrors "github.com/Skryldev/filter-engine/errors"
)

func TestEscapeField(t *testing.T) {
	for _, id := range []string{"cozy", "my.preset", "$price", "a.b$c", "100%", "%2E", "%"} {
		esc := escapeField(id)
		assert.NotContains(t, esc, ".", id)
		assert.NotContains(t, esc, "$", id)
		assert.Equal(t, id, unescapeField(esc), id)
	}
}

func TestMongoStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("increment is one upserting update", func(mt *mtest.T) {
		store := NewMongoStore(mt.DB, 5)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))

		require.NoError(mt, store.IncrementUsage(ctx, "u1", "cozy", t0))

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, "update", evt.CommandName)

		var cmd struct {
			Updates []struct {
				Q      bson.M `bson:"q"`
				Upsert bool   `bson:"upsert"`
				U      struct {
					Inc  map[string]int `bson:"$inc"`
					Push struct {
						RecentlyUsed struct {
							Each     []string `bson:"$each"`
							Position int      `bson:"$position"`
							Slice    int      `bson:"$slice"`
						} `bson:"recentlyUsed"`
					} `bson:"$push"`
				} `bson:"u"`
			} `bson:"updates"`
		}
		require.NoError(mt, bson.Unmarshal(evt.Command, &cmd))
		require.Len(mt, cmd.Updates, 1)
		up := cmd.Updates[0]
		assert.Equal(mt, "u1", up.Q["userId"])
		assert.True(mt, up.Upsert)
		assert.Equal(mt, 1, up.U.Inc["usageCount.cozy"])
		assert.Equal(mt, []string{"cozy"}, up.U.Push.RecentlyUsed.Each)
		assert.Equal(mt, 0, up.U.Push.RecentlyUsed.Position)
		assert.Equal(mt, 5, up.U.Push.RecentlyUsed.Slice)
	})

	mt.Run("preference removes duplicate recent entries", func(mt *mtest.T) {
		store := NewMongoStore(mt.DB, 5)
		ns := mt.DB.Name() + "." + CollectionPreferences
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "userId", Value: "u1"},
			{Key: "usageCount", Value: bson.D{{Key: "cozy", Value: 3}, {Key: "warm", Value: 1}}},
			{Key: "recentlyUsed", Value: bson.A{"cozy", "warm", "cozy"}},
		}))

		p, err := store.Preference(ctx, "u1")
		require.NoError(mt, err)
		require.NotNil(mt, p)
		assert.Equal(mt, int64(3), p.UsageCount["cozy"])
		assert.Equal(mt, []string{"cozy", "warm"}, p.RecentlyUsed)
	})

	mt.Run("dotted and dollar ids stay flat counters", func(mt *mtest.T) {
		store := NewMongoStore(mt.DB, 5)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))
		require.NoError(mt, store.IncrementUsage(ctx, "u1", "my.preset", t0))

		var cmd struct {
			Updates []struct {
				U struct {
					Inc map[string]int `bson:"$inc"`
				} `bson:"u"`
			} `bson:"updates"`
		}
		require.NoError(mt, bson.Unmarshal(mt.GetStartedEvent().Command, &cmd))
		require.Len(mt, cmd.Updates, 1)
		assert.Equal(mt, map[string]int{"usageCount.my%2Epreset": 1}, cmd.Updates[0].U.Inc)

		ns := mt.DB.Name() + "." + CollectionPreferences
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "userId", Value: "u1"},
			{Key: "usageCount", Value: bson.D{
				{Key: "my%2Epreset", Value: int64(2)},
				{Key: "%24price", Value: int64(1)},
				{Key: "100%25", Value: int64(4)},
			}},
		}))
		p, err := store.Preference(ctx, "u1")
		require.NoError(mt, err)
		assert.Equal(mt, map[string]int64{"my.preset": 2, "$price": 1, "100%": 4}, p.UsageCount)
	})

	mt.Run("missing preference is nil", func(mt *mtest.T) {
		store := NewMongoStore(mt.DB, 5)
		ns := mt.DB.Name() + "." + CollectionPreferences
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		p, err := store.Preference(ctx, "nobody")
		require.NoError(mt, err)
		assert.Nil(mt, p)
	})

	mt.Run("trending decodes grouped counts", func(mt *mtest.T) {
		store := NewMongoStore(mt.DB, 5)
		ns := mt.DB.Name() + "." + CollectionApplications
		last := t0.Truncate(time.Millisecond)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "cozy"}, {Key: "count", Value: 4}, {Key: "lastUsed", Value: last}},
			bson.D{{Key: "_id", Value: "vintage"}, {Key: "count", Value: 2}, {Key: "lastUsed", Value: last}},
		))

		got, err := store.Trending(ctx, t0.Add(-7*24*time.Hour), "u1", 3)
		require.NoError(mt, err)
		require.Len(mt, got, 2)
		assert.Equal(mt, core.FilterCount{FilterID: "cozy", Count: 4, LastUsed: last}, got[0])
		assert.Equal(mt, "vintage", got[1].FilterID)
	})

	mt.Run("append failure is a storage error", func(mt *mtest.T) {
		store := NewMongoStore(mt.DB, 5)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index: 0, Code: 11000, Message: "duplicate key",
		}))

		err := store.AppendApplication(ctx, core.FilterApplication{ID: "a1", UserID: "u1", FilterID: "cozy", AppliedAt: t0})
		require.Error(mt, err)
		assert.True(mt, apperrors.IsCategory(err, apperrors.CategoryStorage))
	})

	mt.Run("history through a ledger", func(mt *mtest.T) {
		l := New(NewMongoStore(mt.DB, 5))
		ns := mt.DB.Name() + "." + CollectionApplications
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "a1"}, {Key: "userId", Value: "u1"}, {Key: "filterId", Value: "watercolor"}},
			bson.D{{Key: "_id", Value: "a2"}, {Key: "userId", Value: "u1"}, {Key: "filterId", Value: "cozy"}},
		))

		hist, err := l.History(ctx, "u1")
		require.NoError(mt, err)
		require.Len(mt, hist, 2)
		assert.Equal(mt, "a1", hist[0].ID)
		assert.Equal(mt, "cozy", hist[1].FilterID)
	})
}
