package main

import (
	"context"
	"fmt"
	"time"

	"lol-tracker/internal/config"
	"lol-tracker/internal/db"
	"lol-tracker/internal/logging"

	"go.mongodb.org/mongo-driver/bson"
)

func main() {
	cfg, err := config.Load(config.GetEnv())
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)

	mongodb, err := db.NewMongoDB(cfg.MongoDB.URI, cfg.MongoDB.Database, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		mongodb.Close(ctx)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	usersResult, err := mongodb.Users().DeleteMany(ctx, bson.M{})
	if err != nil {
		logger.WithError(err).Fatal("Failed to delete users")
	}
	fmt.Printf("Deleted %d users\n", usersResult.DeletedCount)

	matchesResult, err := mongodb.Matches().DeleteMany(ctx, bson.M{})
	if err != nil {
		logger.WithError(err).Fatal("Failed to delete matches")
	}
	fmt.Printf("Deleted %d matches\n", matchesResult.DeletedCount)

	fmt.Println("Database cleared successfully")
}
