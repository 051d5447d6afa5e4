// Package store is the key-addressed record store for users and matches.
package store

import (
	"context"

	"lol-tracker/internal/models"
)

// Store persists UserRecords keyed by gametag and MatchRecords keyed by match id.
// A miss is reported as found=false with a nil error.
type Store interface {
	GetUser(ctx context.Context, gametag string) (*models.UserRecord, bool, error)
	// PutUser fails with errs.ErrDuplicateKey when the gametag exists.
	PutUser(ctx context.Context, user *models.UserRecord) error
	// UpdateUserMatches replaces the cached match list for gametag.
	UpdateUserMatches(ctx context.Context, gametag string, matchIDs []string) error

	GetMatch(ctx context.Context, matchID string) (*models.MatchRecord, bool, error)
	// PutManyMatches reports success only if the whole batch is acknowledged.
	// Records whose match id already exists are skipped, not treated as errors.
	PutManyMatches(ctx context.Context, matches []models.MatchRecord) error
}
