package nonce

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// DefaultCollection is the collection MongoStore writes to.
const DefaultCollection = "consumed_nonces"

// MongoStore keeps consumption records in a MongoDB collection keyed by _id.
// The upsert only matches expired documents, so a live record turns a second
// claim into a duplicate key error on _id.
type MongoStore struct {
	coll *mongo.Collection
	cfg  config
}

var _ Store = (*MongoStore)(nil)

func NewMongoStore(db *mongo.Database, opts ...Option) *MongoStore {
	return &MongoStore{
		coll: db.Collection(DefaultCollection),
		cfg:  applyOptions(opts),
	}
}

// EnsureIndexes creates the TTL index that lets MongoDB drop expired records.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0).SetName("expires_at_ttl"),
	})
	if err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

func (s *MongoStore) Claim(ctx context.Context, nonce, subjectID string, now time.Time) (bool, error) {
	if nonce == "" {
		return false, ErrEmptyNonce
	}

	rec := newRecord(nonce, subjectID, now, s.cfg.ttl)
	filter := bson.D{
		{Key: "_id", Value: rec.Key},
		{Key: "expires_at", Value: bson.D{{Key: "$lte", Value: rec.ConsumedAt}}},
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "subject_id", Value: rec.SubjectID},
		{Key: "consumed_at", Value: rec.ConsumedAt},
		{Key: "expires_at", Value: rec.ExpiresAt},
	}}}

	res, err := s.coll.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.Join(ErrStoreUnavailable, err)
	}
	return res.UpsertedCount == 1 || res.ModifiedCount == 1, nil
}

func (s *MongoStore) IsClaimed(ctx context.Context, nonce string) (bool, error) {
	n, err := s.coll.CountDocuments(ctx, bson.D{
		{Key: "_id", Value: Key(nonce)},
		{Key: "expires_at", Value: bson.D{{Key: "$gt", Value: s.cfg.clock().UTC()}}},
	})
	if err != nil {
		return false, errors.Join(ErrStoreUnavailable, err)
	}
	return n > 0, nil
}

// Purge deletes records expired at now. The TTL index does the same lazily.
func (s *MongoStore) Purge(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.D{
		{Key: "expires_at", Value: bson.D{{Key: "$lte", Value: now.UTC()}}},
	})
	if err != nil {
		return 0, errors.Join(ErrStoreUnavailable, err)
	}
	return res.DeletedCount, nil
}
