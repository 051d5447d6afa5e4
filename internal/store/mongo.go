package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lol-tracker/internal/db"
	"lol-tracker/internal/errs"
	"lol-tracker/internal/metrics"
	"lol-tracker/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const duplicateKeyCode = 11000

// MongoStore implements Store on the users and matches collections.
type MongoStore struct {
	db *db.MongoDB
}

func NewMongoStore(database *db.MongoDB) *MongoStore {
	return &MongoStore{db: database}
}

func (s *MongoStore) GetUser(ctx context.Context, gametag string) (*models.UserRecord, bool, error) {
	defer observe("get_user", time.Now())

	var user models.UserRecord
	err := s.db.Users().FindOne(ctx, bson.M{"gametag": gametag}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		metrics.StoreErrors.WithLabelValues("get_user").Inc()
		return nil, false, fmt.Errorf("find user %q: %w: %v", gametag, errs.ErrStoreUnavailable, err)
	}
	return &user, true, nil
}

func (s *MongoStore) PutUser(ctx context.Context, user *models.UserRecord) error {
	defer observe("put_user", time.Now())

	_, err := s.db.Users().InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("insert user %q: %w", user.Gametag, errs.ErrDuplicateKey)
	}
	if err != nil {
		metrics.StoreErrors.WithLabelValues("put_user").Inc()
		return fmt.Errorf("insert user %q: %w: %v", user.Gametag, errs.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *MongoStore) UpdateUserMatches(ctx context.Context, gametag string, matchIDs []string) error {
	defer observe("update_user_matches", time.Now())

	result, err := s.db.Users().UpdateOne(ctx,
		bson.M{"gametag": gametag},
		bson.M{"$set": bson.M{"matches": matchIDs, "updatedAt": time.Now()}},
	)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("update_user_matches").Inc()
		return fmt.Errorf("update user %q: %w: %v", gametag, errs.ErrStoreUnavailable, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("update user %q: %w", gametag, errs.ErrNotFound)
	}
	return nil
}

func (s *MongoStore) GetMatch(ctx context.Context, matchID string) (*models.MatchRecord, bool, error) {
	defer observe("get_match", time.Now())

	var match models.MatchRecord
	err := s.db.Matches().FindOne(ctx, bson.M{"metadata.matchId": matchID}).Decode(&match)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		metrics.StoreErrors.WithLabelValues("get_match").Inc()
		return nil, false, fmt.Errorf("find match %q: %w: %v", matchID, errs.ErrStoreUnavailable, err)
	}
	return &match, true, nil
}

func (s *MongoStore) PutManyMatches(ctx context.Context, matches []models.MatchRecord) error {
	if len(matches) == 0 {
		return nil
	}
	defer observe("put_many_matches", time.Now())

	docs := make([]interface{}, len(matches))
	for i := range matches {
		docs[i] = matches[i]
	}

	// Unordered so one duplicate does not stop the rest of the batch.
	_, err := s.db.Matches().InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err == nil || onlyDuplicates(err) {
		return nil
	}
	metrics.StoreErrors.WithLabelValues("put_many_matches").Inc()
	return fmt.Errorf("insert %d matches: %w: %v", len(matches), errs.ErrStoreUnavailable, err)
}

// onlyDuplicates reports whether every write error in a bulk failure is a duplicate key.
func onlyDuplicates(err error) bool {
	var bulkErr mongo.BulkWriteException
	if !errors.As(err, &bulkErr) {
		return false
	}
	if bulkErr.WriteConcernError != nil || len(bulkErr.WriteErrors) == 0 {
		return false
	}
	for _, we := range bulkErr.WriteErrors {
		if we.Code != duplicateKeyCode {
			return false
		}
	}
	return true
}

func observe(operation string, start time.Time) {
	metrics.StoreDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
