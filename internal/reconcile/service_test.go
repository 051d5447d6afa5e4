package reconcile

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"lol-tracker/internal/errs"
	"lol-tracker/internal/models"
	"lol-tracker/internal/store"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func quietLogger() log.FieldLogger {
	logger, _ := test.NewNullLogger()
	return logger
}

func newMatch(id string) *models.MatchRecord {
	return &models.MatchRecord{
		Metadata: models.MatchMetadata{MatchID: id},
		Info:     models.MatchInfo{GameDuration: 1500, QueueID: 420},
	}
}

func matchIDs(matches []models.MatchRecord) []string {
	ids := make([]string, len(matches))
	for i := range matches {
		ids[i] = matches[i].MatchID()
	}
	return ids
}

func TestResolveUser_MissThenHit(t *testing.T) {
	ctx := context.Background()
	memStore := store.NewMemoryStore()
	fetcher := new(MockFetcher)
	service := NewService(memStore, fetcher, Config{FetchConcurrency: 2}, quietLogger())

	fetcher.On("FetchProfile", mock.Anything, "Faker", "KR1", "asia").
		Return(&models.Profile{PUUID: "P1", GameName: "Faker", TagLine: "KR1", RecentMatchIDs: []string{"M1", "M2"}}, nil).
		Once()

	first, err := service.ResolveUser(ctx, "Faker#KR1", "asia")
	require.NoError(t, err)
	assert.Equal(t, "FakerKR1", first.Gametag)
	assert.Equal(t, "P1", first.PUUID)
	assert.Equal(t, []string{"M1", "M2"}, first.Matches)
	assert.Equal(t, "asia", first.Platform)

	second, err := service.ResolveUser(ctx, "Faker#KR1", "asia")
	require.NoError(t, err)
	assert.Equal(t, first.PUUID, second.PUUID)
	assert.Equal(t, first.Matches, second.Matches)

	users, _ := memStore.Counts()
	assert.Equal(t, 1, users)
	fetcher.AssertNumberOfCalls(t, "FetchProfile", 1)
}

func TestResolveUser_CacheHitSkipsUpstream(t *testing.T) {
	mockStore := new(MockStore)
	fetcher := new(MockFetcher)
	service := NewService(mockStore, fetcher, Config{}, quietLogger())

	cached := &models.UserRecord{Gametag: "FakerKR1", PUUID: "P1"}
	mockStore.On("GetUser", mock.Anything, "FakerKR1").Return(cached, true, nil)

	user, err := service.ResolveUser(context.Background(), "Faker#KR1", "asia")
	require.NoError(t, err)
	assert.Same(t, cached, user)
	fetcher.AssertNotCalled(t, "FetchProfile", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	mockStore.AssertNotCalled(t, "PutUser", mock.Anything, mock.Anything)
}

func TestResolveUser_StoreWriteFailureStillReturnsProfile(t *testing.T) {
	mockStore := new(MockStore)
	fetcher := new(MockFetcher)
	logger, hook := test.NewNullLogger()
	service := NewService(mockStore, fetcher, Config{}, logger)

	mockStore.On("GetUser", mock.Anything, "FakerKR1").Return(nil, false, nil)
	mockStore.On("PutUser", mock.Anything, mock.AnythingOfType("*models.UserRecord")).
		Return(fmt.Errorf("insert: %w", errs.ErrStoreUnavailable))
	fetcher.On("FetchProfile", mock.Anything, "Faker", "KR1", "asia").
		Return(&models.Profile{PUUID: "P1", RecentMatchIDs: []string{"M1"}}, nil)

	user, err := service.ResolveUser(context.Background(), "Faker#KR1", "asia")
	require.NoError(t, err)
	assert.Equal(t, "P1", user.PUUID)

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, log.WarnLevel, hook.LastEntry().Level)
	mockStore.AssertExpectations(t)
}

func TestResolveUser_StoreReadFailureFallsBackToUpstream(t *testing.T) {
	mockStore := new(MockStore)
	fetcher := new(MockFetcher)
	service := NewService(mockStore, fetcher, Config{}, quietLogger())

	mockStore.On("GetUser", mock.Anything, "FakerKR1").Return(nil, false, errs.ErrStoreUnavailable)
	mockStore.On("PutUser", mock.Anything, mock.Anything).Return(errs.ErrStoreUnavailable)
	fetcher.On("FetchProfile", mock.Anything, "Faker", "KR1", "asia").
		Return(&models.Profile{PUUID: "P1"}, nil)

	user, err := service.ResolveUser(context.Background(), "Faker#KR1", "asia")
	require.NoError(t, err)
	assert.Equal(t, "P1", user.PUUID)
	assert.NotNil(t, user.Matches)
}

func TestResolveUser_DuplicateOnWriteIsNotAnError(t *testing.T) {
	mockStore := new(MockStore)
	fetcher := new(MockFetcher)
	service := NewService(mockStore, fetcher, Config{}, quietLogger())

	mockStore.On("GetUser", mock.Anything, "FakerKR1").Return(nil, false, nil)
	mockStore.On("PutUser", mock.Anything, mock.Anything).Return(errs.ErrDuplicateKey)
	fetcher.On("FetchProfile", mock.Anything, "Faker", "KR1", "asia").
		Return(&models.Profile{PUUID: "P1"}, nil)

	_, err := service.ResolveUser(context.Background(), "Faker#KR1", "asia")
	assert.NoError(t, err)
}

func TestResolveUser_UpstreamFailurePropagates(t *testing.T) {
	testCases := []struct {
		name string
		err  error
	}{
		{"not found", fmt.Errorf("account: %w", errs.ErrNotFound)},
		{"unavailable", fmt.Errorf("account: %w", errs.ErrUpstreamUnavailable)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mockStore := new(MockStore)
			fetcher := new(MockFetcher)
			service := NewService(mockStore, fetcher, Config{}, quietLogger())

			mockStore.On("GetUser", mock.Anything, "NobodyNA1").Return(nil, false, nil)
			fetcher.On("FetchProfile", mock.Anything, "Nobody", "NA1", "americas").Return(nil, tc.err)

			user, err := service.ResolveUser(context.Background(), "Nobody#NA1", "americas")
			assert.Nil(t, user)
			assert.ErrorIs(t, err, tc.err)
			mockStore.AssertNotCalled(t, "PutUser", mock.Anything, mock.Anything)
		})
	}
}

func TestResolveUser_MalformedInput(t *testing.T) {
	mockStore := new(MockStore)
	fetcher := new(MockFetcher)
	service := NewService(mockStore, fetcher, Config{}, quietLogger())

	_, err := service.ResolveUser(context.Background(), "FakerKR1", "asia")
	assert.ErrorIs(t, err, errs.ErrMalformedInput)
	mockStore.AssertNotCalled(t, "GetUser", mock.Anything, mock.Anything)
}

func TestResolveMatches_PartialMiss(t *testing.T) {
	mockStore := new(MockStore)
	fetcher := new(MockFetcher)
	service := NewService(mockStore, fetcher, Config{FetchConcurrency: 4}, quietLogger())

	m1, m2, m3 := newMatch("M1"), newMatch("M2"), newMatch("M3")
	mockStore.On("GetMatch", mock.Anything, "M1").Return(nil, false, nil)
	mockStore.On("GetMatch", mock.Anything, "M2").Return(m2, true, nil)
	mockStore.On("GetMatch", mock.Anything, "M3").Return(nil, false, nil)
	mockStore.On("PutManyMatches", mock.Anything, []models.MatchRecord{*m1, *m3}).Return(nil).Once()
	fetcher.On("FetchMatch", mock.Anything, "M1", "americas").Return(m1, nil).Once()
	fetcher.On("FetchMatch", mock.Anything, "M3", "americas").Return(m3, nil).Once()

	result, err := service.ResolveMatches(context.Background(), []string{"M1", "M2", "M3"}, "americas")
	require.NoError(t, err)
	assert.Equal(t, []string{"M1", "M2", "M3"}, matchIDs(result.Matches))
	assert.Empty(t, result.Missing)

	fetcher.AssertNotCalled(t, "FetchMatch", mock.Anything, "M2", mock.Anything)
	mockStore.AssertExpectations(t)
	fetcher.AssertExpectations(t)
}

func TestResolveMatches_FailedFetchIsDropped(t *testing.T) {
	mockStore := new(MockStore)
	fetcher := new(MockFetcher)
	logger, hook := test.NewNullLogger()
	service := NewService(mockStore, fetcher, Config{FetchConcurrency: 4}, logger)

	m1, m2 := newMatch("M1"), newMatch("M2")
	mockStore.On("GetMatch", mock.Anything, "M1").Return(nil, false, nil)
	mockStore.On("GetMatch", mock.Anything, "M2").Return(m2, true, nil)
	mockStore.On("GetMatch", mock.Anything, "M3").Return(nil, false, nil)
	mockStore.On("PutManyMatches", mock.Anything, []models.MatchRecord{*m1}).Return(nil).Once()
	fetcher.On("FetchMatch", mock.Anything, "M1", "americas").Return(m1, nil)
	fetcher.On("FetchMatch", mock.Anything, "M3", "americas").Return(nil, fmt.Errorf("match M3: %w", errs.ErrNotFound))

	result, err := service.ResolveMatches(context.Background(), []string{"M1", "M2", "M3"}, "americas")
	require.NoError(t, err)
	assert.Equal(t, []string{"M1", "M2"}, matchIDs(result.Matches))
	assert.Equal(t, []string{"M3"}, result.Missing)

	var warned bool
	for _, entry := range hook.AllEntries() {
		if entry.Level == log.WarnLevel && entry.Data["matchId"] == "M3" {
			warned = true
		}
	}
	assert.True(t, warned, "expected a warning for the skipped match")
}

func TestResolveMatches_AllMissFetchesEverything(t *testing.T) {
	memStore := store.NewMemoryStore()
	fetcher := new(MockFetcher)
	service := NewService(memStore, fetcher, Config{FetchConcurrency: 3}, quietLogger())

	ids := []string{"M1", "M2", "M3"}
	for _, id := range ids {
		fetcher.On("FetchMatch", mock.Anything, id, "europe").Return(newMatch(id), nil).Once()
	}

	result, err := service.ResolveMatches(context.Background(), ids, "europe")
	require.NoError(t, err)
	assert.Equal(t, ids, matchIDs(result.Matches))

	_, stored := memStore.Counts()
	assert.Equal(t, 3, stored)

	// Everything is cached now.
	result, err = service.ResolveMatches(context.Background(), ids, "europe")
	require.NoError(t, err)
	assert.Equal(t, ids, matchIDs(result.Matches))
	fetcher.AssertNumberOfCalls(t, "FetchMatch", 3)
}

func TestResolveMatches_AllHitsSkipPersistence(t *testing.T) {
	mockStore := new(MockStore)
	fetcher := new(MockFetcher)
	service := NewService(mockStore, fetcher, Config{}, quietLogger())

	mockStore.On("GetMatch", mock.Anything, "M1").Return(newMatch("M1"), true, nil)
	mockStore.On("GetMatch", mock.Anything, "M2").Return(newMatch("M2"), true, nil)

	result, err := service.ResolveMatches(context.Background(), []string{"M1", "M2"}, "americas")
	require.NoError(t, err)
	assert.Equal(t, []string{"M1", "M2"}, matchIDs(result.Matches))
	mockStore.AssertNotCalled(t, "PutManyMatches", mock.Anything, mock.Anything)
	fetcher.AssertNotCalled(t, "FetchMatch", mock.Anything, mock.Anything, mock.Anything)
}

func TestResolveMatches_EmptyInput(t *testing.T) {
	service := NewService(new(MockStore), new(MockFetcher), Config{}, quietLogger())

	result, err := service.ResolveMatches(context.Background(), nil, "americas")
	require.NoError(t, err)
	assert.NotNil(t, result.Matches)
	assert.Empty(t, result.Matches)
}

func TestResolveMatches_PersistFailureStillReturnsMatches(t *testing.T) {
	mockStore := new(MockStore)
	fetcher := new(MockFetcher)
	service := NewService(mockStore, fetcher, Config{}, quietLogger())

	mockStore.On("GetMatch", mock.Anything, "M1").Return(nil, false, nil)
	mockStore.On("PutManyMatches", mock.Anything, mock.Anything).Return(errs.ErrStoreUnavailable)
	fetcher.On("FetchMatch", mock.Anything, "M1", "americas").Return(newMatch("M1"), nil)

	result, err := service.ResolveMatches(context.Background(), []string{"M1"}, "americas")
	require.NoError(t, err)
	assert.Equal(t, []string{"M1"}, matchIDs(result.Matches))
}

func TestResolveMatches_RejectsMismatchedRecord(t *testing.T) {
	memStore := store.NewMemoryStore()
	fetcher := new(MockFetcher)
	service := NewService(memStore, fetcher, Config{}, quietLogger())

	fetcher.On("FetchMatch", mock.Anything, "M1", "americas").Return(newMatch("M9"), nil)

	result, err := service.ResolveMatches(context.Background(), []string{"M1"}, "americas")
	require.NoError(t, err)
	assert.Empty(t, result.Matches)
	assert.Equal(t, []string{"M1"}, result.Missing)

	_, found, _ := memStore.GetMatch(context.Background(), "M9")
	assert.False(t, found)
}

// scriptedFetcher fails ids in fail and tracks concurrency.
type scriptedFetcher struct {
	fail     map[string]bool
	delay    time.Duration
	inFlight int32
	peak     int32
	calls    int32
}

func (f *scriptedFetcher) FetchProfile(ctx context.Context, gameName, tagLine, routing string) (*models.Profile, error) {
	return nil, errs.ErrNotFound
}

func (f *scriptedFetcher) FetchMatchIDs(ctx context.Context, puuid, routing string, start, count int) ([]string, error) {
	return nil, errs.ErrNotFound
}

func (f *scriptedFetcher) FetchMatch(ctx context.Context, matchID, routing string) (*models.MatchRecord, error) {
	atomic.AddInt32(&f.calls, 1)
	current := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		peak := atomic.LoadInt32(&f.peak)
		if current <= peak || atomic.CompareAndSwapInt32(&f.peak, peak, current) {
			break
		}
	}
	time.Sleep(f.delay)
	if f.fail[matchID] {
		return nil, fmt.Errorf("match %s: %w", matchID, errs.ErrUpstreamUnavailable)
	}
	return newMatch(matchID), nil
}

func TestResolveMatches_ConcurrentFetchKeepsIDsAligned(t *testing.T) {
	ids := make([]string, 20)
	for i := range ids {
		ids[i] = fmt.Sprintf("NA1_%02d", i)
	}

	testCases := []struct {
		name string
		fail map[string]bool
	}{
		{"no failures", map[string]bool{}},
		{"one failure", map[string]bool{"NA1_07": true}},
		{"first and last fail", map[string]bool{"NA1_00": true, "NA1_19": true}},
		{"every third fails", func() map[string]bool {
			fail := map[string]bool{}
			for i := 0; i < len(ids); i += 3 {
				fail[ids[i]] = true
			}
			return fail
		}()},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fetcher := &scriptedFetcher{fail: tc.fail, delay: 2 * time.Millisecond}
			service := NewService(store.NewMemoryStore(), fetcher, Config{FetchConcurrency: 4}, quietLogger())

			result, err := service.ResolveMatches(context.Background(), ids, "americas")
			require.NoError(t, err)

			var want []string
			for _, id := range ids {
				if !tc.fail[id] {
					want = append(want, id)
				}
			}
			assert.Equal(t, want, matchIDs(result.Matches))
			assert.Len(t, result.Missing, len(tc.fail))
			assert.LessOrEqual(t, atomic.LoadInt32(&fetcher.peak), int32(4))
			assert.Equal(t, int32(len(ids)), atomic.LoadInt32(&fetcher.calls))
		})
	}
}

func TestResolveMatches_ConcurrentCallersShareStore(t *testing.T) {
	memStore := store.NewMemoryStore()
	fetcher := &scriptedFetcher{fail: map[string]bool{}}
	service := NewService(memStore, fetcher, Config{FetchConcurrency: 2}, quietLogger())

	ids := []string{"M1", "M2", "M3", "M4"}
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := service.ResolveMatches(context.Background(), ids, "americas")
			assert.NoError(t, err)
			assert.Equal(t, ids, matchIDs(result.Matches))
		}()
	}
	wg.Wait()

	_, stored := memStore.Counts()
	assert.Equal(t, len(ids), stored)
}

func TestRefreshUser_PrependsNewMatches(t *testing.T) {
	ctx := context.Background()
	memStore := store.NewMemoryStore()
	fetcher := new(MockFetcher)
	service := NewService(memStore, fetcher, Config{PageSize: 20}, quietLogger())

	require.NoError(t, memStore.PutUser(ctx, &models.UserRecord{
		Gametag: "FakerKR1", PUUID: "P1", Matches: []string{"M2", "M1"}, Platform: "asia",
	}))
	fetcher.On("FetchMatchIDs", mock.Anything, "P1", "asia", 0, 20).Return([]string{"M4", "M3", "M2"}, nil)

	user, err := service.RefreshUser(ctx, "Faker#KR1", "asia")
	require.NoError(t, err)
	assert.Equal(t, []string{"M4", "M3", "M2", "M1"}, user.Matches)

	stored, _, err := memStore.GetUser(ctx, "FakerKR1")
	require.NoError(t, err)
	assert.Equal(t, []string{"M4", "M3", "M2", "M1"}, stored.Matches)
}

func TestRefreshUser_NothingNew(t *testing.T) {
	mockStore := new(MockStore)
	fetcher := new(MockFetcher)
	service := NewService(mockStore, fetcher, Config{PageSize: 20}, quietLogger())

	mockStore.On("GetUser", mock.Anything, "FakerKR1").
		Return(&models.UserRecord{Gametag: "FakerKR1", PUUID: "P1", Matches: []string{"M2", "M1"}, Platform: "asia"}, true, nil)
	fetcher.On("FetchMatchIDs", mock.Anything, "P1", "asia", 0, 20).Return([]string{"M2", "M1"}, nil)

	user, err := service.RefreshUser(context.Background(), "Faker#KR1", "asia")
	require.NoError(t, err)
	assert.Equal(t, []string{"M2", "M1"}, user.Matches)
	mockStore.AssertNotCalled(t, "UpdateUserMatches", mock.Anything, mock.Anything, mock.Anything)
}

func TestRefreshUser_UncachedResolves(t *testing.T) {
	memStore := store.NewMemoryStore()
	fetcher := new(MockFetcher)
	service := NewService(memStore, fetcher, Config{}, quietLogger())

	fetcher.On("FetchProfile", mock.Anything, "Faker", "KR1", "asia").
		Return(&models.Profile{PUUID: "P1", RecentMatchIDs: []string{"M1"}}, nil).Once()

	user, err := service.RefreshUser(context.Background(), "Faker#KR1", "asia")
	require.NoError(t, err)
	assert.Equal(t, []string{"M1"}, user.Matches)
	fetcher.AssertNotCalled(t, "FetchMatchIDs", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHistory_LimitsToPageSize(t *testing.T) {
	ctx := context.Background()
	memStore := store.NewMemoryStore()
	fetcher := &scriptedFetcher{fail: map[string]bool{"M2": true}}
	service := NewService(memStore, fetcher, Config{PageSize: 3, FetchConcurrency: 2}, quietLogger())

	require.NoError(t, memStore.PutUser(ctx, &models.UserRecord{
		Gametag: "FakerKR1", PUUID: "P1", Matches: []string{"M4", "M3", "M2", "M1"}, Platform: "asia",
	}))

	history, err := service.History(ctx, "Faker#KR1", "americas")
	require.NoError(t, err)
	assert.Equal(t, "P1", history.User.PUUID)
	assert.Equal(t, []string{"M4", "M3"}, matchIDs(history.Matches))
	assert.Equal(t, []string{"M2"}, history.Missing)
	assert.Equal(t, int32(3), atomic.LoadInt32(&fetcher.calls))
}

func TestMergeMatchIDs(t *testing.T) {
	merged, added := mergeMatchIDs([]string{"C", "B", "A"}, []string{"B", "A"})
	assert.Equal(t, []string{"C", "B", "A"}, merged)
	assert.Equal(t, 1, added)

	merged, added = mergeMatchIDs(nil, []string{"A"})
	assert.Equal(t, []string{"A"}, merged)
	assert.Equal(t, 0, added)

	merged, added = mergeMatchIDs([]string{"X", "X"}, nil)
	assert.Equal(t, []string{"X"}, merged)
	assert.Equal(t, 1, added)
}
