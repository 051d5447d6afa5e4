package db

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection     = "users"
	matchesCollection   = "matches"
	lookupLogCollection = "lookup_log"

	lookupLogRetention = 30 * 24 * time.Hour
)

// MongoDB owns the process-wide client. It is created once at startup,
// shared by every request, and closed on shutdown.
type MongoDB struct {
	Client   *mongo.Client
	Database *mongo.Database
	log      log.FieldLogger
}

func NewMongoDB(uri, database string, logger log.FieldLogger) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(100).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(5 * time.Minute)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := &MongoDB{
		Client:   client,
		Database: client.Database(database),
		log:      logger,
	}

	// Unique keys back the store's duplicate detection, so build them before serving.
	db.EnsureIndexes(ctx)

	return db, nil
}

// EnsureIndexes creates all required indexes. Idempotent.
func (m *MongoDB) EnsureIndexes(ctx context.Context) {
	indexes := []struct {
		collection string
		models     []mongo.IndexModel
	}{
		{
			usersCollection,
			[]mongo.IndexModel{
				{Keys: bson.D{{Key: "gametag", Value: 1}}, Options: options.Index().SetUnique(true)},
				{Keys: bson.D{{Key: "puuid", Value: 1}}},
			},
		},
		{
			matchesCollection,
			[]mongo.IndexModel{
				{Keys: bson.D{{Key: "metadata.matchId", Value: 1}}, Options: options.Index().SetUnique(true)},
				{Keys: bson.D{{Key: "metadata.participants", Value: 1}}},
			},
		},
		{
			lookupLogCollection,
			[]mongo.IndexModel{
				{Keys: bson.D{{Key: "createdAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(int32(lookupLogRetention.Seconds()))},
				{Keys: bson.D{{Key: "gametag", Value: 1}, {Key: "createdAt", Value: -1}}},
			},
		},
	}

	for _, idx := range indexes {
		coll := m.Database.Collection(idx.collection)
		_, err := coll.Indexes().CreateMany(ctx, idx.models)
		if err != nil {
			m.log.WithError(err).Warnf("failed to create indexes on %s", idx.collection)
		}
	}

	m.log.Info("Database indexes ensured")
}

func (m *MongoDB) Ping(ctx context.Context) error {
	return m.Client.Ping(ctx, nil)
}

func (m *MongoDB) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}

func (m *MongoDB) Users() *mongo.Collection {
	return m.Database.Collection(usersCollection)
}

func (m *MongoDB) Matches() *mongo.Collection {
	return m.Database.Collection(matchesCollection)
}

func (m *MongoDB) LookupLog() *mongo.Collection {
	return m.Database.Collection(lookupLogCollection)
}
