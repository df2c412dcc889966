package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Skryldev/filter-engine/core"
	apperrors "github.com/Skryldev/filter-engine/errors"
)

// Collection names.
const (
	CollectionApplications = "filter_applications"
	CollectionPreferences  = "user_filter_preferences"
)

// MongoStore is a core.UsageStore on MongoDB.  The aggregate update is one
// server-side UpdateOne with $inc and a bounded $push, so concurrent
// increments never lose an update.
//
// $push cannot also remove an older occurrence of the same id in that
// operation, so recentlyUsed may hold duplicates; they are removed on read.
type MongoStore struct {
	apps        *mongo.Collection
	prefs       *mongo.Collection
	recentLimit int
}

// NewMongoStore uses the ledger collections of db.
func NewMongoStore(db *mongo.Database, recentLimit int) *MongoStore {
	if recentLimit <= 0 {
		recentLimit = DefaultRecentLimit
	}
	return &MongoStore{
		apps:        db.Collection(CollectionApplications),
		prefs:       db.Collection(CollectionPreferences),
		recentLimit: recentLimit,
	}
}

// EnsureIndexes creates the indexes the queries rely on.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.apps.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "appliedAt", Value: 1}}},
		{Keys: bson.D{{Key: "appliedAt", Value: -1}}},
	})
	if err != nil {
		return apperrors.Storage("ledger.mongo.indexes", err)
	}
	_, err = s.prefs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return apperrors.Storage("ledger.mongo.indexes", err)
	}
	return nil
}

func (s *MongoStore) AppendApplication(ctx context.Context, app core.FilterApplication) error {
	if _, err := s.apps.InsertOne(ctx, app); err != nil {
		return apperrors.Storage("ledger.mongo.append", err)
	}
	return nil
}

func (s *MongoStore) IncrementUsage(ctx context.Context, userID, filterID string, at time.Time) error {
	update := bson.M{
		"$inc": bson.M{"usageCount." + escapeField(filterID): 1},
		"$push": bson.M{"recentlyUsed": bson.M{
			"$each":     bson.A{filterID},
			"$position": 0,
			"$slice":    s.recentLimit,
		}},
		"$set": bson.M{"updatedAt": at},
	}
	opts := options.Update().SetUpsert(true)
	if _, err := s.prefs.UpdateOne(ctx, bson.M{"userId": userID}, update, opts); err != nil {
		return apperrors.Storage("ledger.mongo.increment", err)
	}
	return nil
}

func (s *MongoStore) Preference(ctx context.Context, userID string) (*core.UserFilterPreference, error) {
	var p core.UserFilterPreference
	err := s.prefs.FindOne(ctx, bson.M{"userId": userID}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Storage("ledger.mongo.preference", err)
	}
	counts := make(map[string]int64, len(p.UsageCount))
	for k, n := range p.UsageCount {
		counts[unescapeField(k)] = n
	}
	p.UsageCount = counts
	p.RecentlyUsed = dedupe(p.RecentlyUsed)
	return &p, nil
}

func (s *MongoStore) History(ctx context.Context, userID string) ([]core.FilterApplication, error) {
	opts := options.Find().SetSort(bson.D{{Key: "appliedAt", Value: 1}})
	cur, err := s.apps.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, apperrors.Storage("ledger.mongo.history", err)
	}
	var out []core.FilterApplication
	if err := cur.All(ctx, &out); err != nil {
		return nil, apperrors.Storage("ledger.mongo.history", err)
	}
	return out, nil
}

func (s *MongoStore) Trending(ctx context.Context, since time.Time, excludeUser string, limit int) ([]core.FilterCount, error) {
	match := bson.M{"appliedAt": bson.M{"$gte": since}}
	if excludeUser != "" {
		match["userId"] = bson.M{"$ne": excludeUser}
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$filterId"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "lastUsed", Value: bson.D{{Key: "$max", Value: "$appliedAt"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
	}
	if limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: limit}})
	}

	cur, err := s.apps.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, apperrors.Storage("ledger.mongo.trending", err)
	}
	var out []core.FilterCount
	if err := cur.All(ctx, &out); err != nil {
		return nil, apperrors.Storage("ledger.mongo.trending", err)
	}
	return out, nil
}

// Filter ids become field names under usageCount.  A '.' would nest the
// counter and a '$' is rejected by the server, so both are percent-escaped,
// along with '%' itself.
var (
	fieldEscaper   = strings.NewReplacer("%", "%25", ".", "%2E", "$", "%24")
	fieldUnescaper = strings.NewReplacer("%25", "%", "%2E", ".", "%24", "$")
)

func escapeField(id string) string { return fieldEscaper.Replace(id) }
func unescapeField(f string) string { return fieldUnescaper.Replace(f) }

func (s *MongoStore) SaveStyleProfile(ctx context.Context, userID string, profile core.StyleProfile) error {
	update := bson.M{"$set": bson.M{"styleProfile": profile}}
	opts := options.Update().SetUpsert(true)
	if _, err := s.prefs.UpdateOne(ctx, bson.M{"userId": userID}, update, opts); err != nil {
		return apperrors.Storage("ledger.mongo.save_profile", err)
	}
	return nil
}
