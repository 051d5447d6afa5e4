package reconcile

import (
	"context"

	"lol-tracker/internal/models"

	"github.com/stretchr/testify/mock"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetUser(ctx context.Context, gametag string) (*models.UserRecord, bool, error) {
	args := m.Called(ctx, gametag)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.UserRecord), args.Bool(1), args.Error(2)
}

func (m *MockStore) PutUser(ctx context.Context, user *models.UserRecord) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockStore) UpdateUserMatches(ctx context.Context, gametag string, matchIDs []string) error {
	args := m.Called(ctx, gametag, matchIDs)
	return args.Error(0)
}

func (m *MockStore) GetMatch(ctx context.Context, matchID string) (*models.MatchRecord, bool, error) {
	args := m.Called(ctx, matchID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.MatchRecord), args.Bool(1), args.Error(2)
}

func (m *MockStore) PutManyMatches(ctx context.Context, matches []models.MatchRecord) error {
	args := m.Called(ctx, matches)
	return args.Error(0)
}

type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) FetchProfile(ctx context.Context, gameName, tagLine, routing string) (*models.Profile, error) {
	args := m.Called(ctx, gameName, tagLine, routing)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *MockFetcher) FetchMatchIDs(ctx context.Context, puuid, routing string, start, count int) ([]string, error) {
	args := m.Called(ctx, puuid, routing, start, count)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockFetcher) FetchMatch(ctx context.Context, matchID, routing string) (*models.MatchRecord, error) {
	args := m.Called(ctx, matchID, routing)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MatchRecord), args.Error(1)
}
