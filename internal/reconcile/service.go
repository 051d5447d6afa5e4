// Package reconcile resolves users and matches against the record store,
// fetching whatever is missing from the Riot API and backfilling the store.
package reconcile

import (
	"context"
	"errors"
	"sync"
	"time"

	"lol-tracker/internal/errs"
	"lol-tracker/internal/metrics"
	"lol-tracker/internal/models"
	"lol-tracker/internal/store"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Fetcher is the remote source of profiles and matches.
type Fetcher interface {
	FetchProfile(ctx context.Context, gameName, tagLine, routing string) (*models.Profile, error)
	FetchMatchIDs(ctx context.Context, puuid, routing string, start, count int) ([]string, error)
	FetchMatch(ctx context.Context, matchID, routing string) (*models.MatchRecord, error)
}

type Config struct {
	// FetchConcurrency bounds in-flight match fetches per ResolveMatches call.
	FetchConcurrency int
	// PageSize is how many match ids a refresh or history view covers.
	PageSize int
}

type Service struct {
	store       store.Store
	fetcher     Fetcher
	log         log.FieldLogger
	concurrency int
	pageSize    int
	now         func() time.Time
}

func NewService(s store.Store, f Fetcher, cfg Config, logger log.FieldLogger) *Service {
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = 1
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = models.DefaultMatchPageSize
	}
	return &Service{
		store:       s,
		fetcher:     f,
		log:         logger.WithField("component", "reconcile"),
		concurrency: cfg.FetchConcurrency,
		pageSize:    cfg.PageSize,
		now:         time.Now,
	}
}

// MatchResult holds resolved matches in request order. Missing lists the
// requested ids whose fetch failed; they are absent from Matches.
type MatchResult struct {
	Matches []models.MatchRecord `json:"matches"`
	Missing []string             `json:"missing,omitempty"`
}

// History is a user together with their first page of resolved matches.
type History struct {
	User    *models.UserRecord   `json:"user"`
	Matches []models.MatchRecord `json:"matches"`
	Missing []string             `json:"missing,omitempty"`
}

// ResolveUser returns the cached user for riotID, fetching and caching the
// profile on a miss. A failed store write is logged and the fetched record
// is still returned.
func (s *Service) ResolveUser(ctx context.Context, riotID, routing string) (*models.UserRecord, error) {
	id, err := ParseRiotID(riotID)
	if err != nil {
		return nil, err
	}
	gametag := id.Gametag()
	logger := s.log.WithFields(log.Fields{"gametag": gametag, "routing": routing})

	user, found, err := s.store.GetUser(ctx, gametag)
	if err != nil {
		// Treat an unreadable store as a miss; upstream can still answer.
		logger.WithError(err).Warn("User lookup failed, fetching from upstream")
	}
	if found {
		metrics.CacheLookups.WithLabelValues("user", metrics.ResultHit).Inc()
		return user, nil
	}
	metrics.CacheLookups.WithLabelValues("user", metrics.ResultMiss).Inc()

	profile, err := s.fetcher.FetchProfile(ctx, id.GameName, id.TagLine, routing)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user = &models.UserRecord{
		Gametag:   gametag,
		GameName:  id.GameName,
		TagLine:   id.TagLine,
		PUUID:     profile.PUUID,
		Matches:   profile.RecentMatchIDs,
		Platform:  routing,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if user.Matches == nil {
		user.Matches = []string{}
	}

	switch err := s.store.PutUser(ctx, user); {
	case err == nil:
		logger.WithField("matches", len(user.Matches)).Info("Cached new user")
	case errors.Is(err, errs.ErrDuplicateKey):
		logger.Debug("User was cached concurrently")
	default:
		logger.WithError(err).Warn("Failed to cache user")
	}
	return user, nil
}

// RefreshUser pulls the latest page of match ids for a cached user and
// prepends the ones not seen before. Uncached users are resolved normally.
func (s *Service) RefreshUser(ctx context.Context, riotID, routing string) (*models.UserRecord, error) {
	id, err := ParseRiotID(riotID)
	if err != nil {
		return nil, err
	}
	gametag := id.Gametag()

	user, found, err := s.store.GetUser(ctx, gametag)
	if err != nil || !found {
		return s.ResolveUser(ctx, riotID, routing)
	}

	platform := user.Platform
	if platform == "" {
		platform = routing
	}
	latest, err := s.fetcher.FetchMatchIDs(ctx, user.PUUID, platform, 0, s.pageSize)
	if err != nil {
		return nil, err
	}

	merged, added := mergeMatchIDs(latest, user.Matches)
	if added == 0 {
		return user, nil
	}

	logger := s.log.WithFields(log.Fields{"gametag": gametag, "added": added})
	if err := s.store.UpdateUserMatches(ctx, gametag, merged); err != nil {
		logger.WithError(err).Warn("Failed to persist refreshed match list")
	} else {
		logger.Info("Refreshed user match list")
	}
	user.Matches = merged
	user.UpdatedAt = s.now()
	return user, nil
}

// ResolveMatches returns the matches for matchIDs in input order. Cached
// records are used as-is; the rest are fetched (at most FetchConcurrency at
// a time), persisted, and slotted back by match id. Ids whose fetch fails
// are left out of the result and reported in Missing.
func (s *Service) ResolveMatches(ctx context.Context, matchIDs []string, routing string) (*MatchResult, error) {
	result := &MatchResult{Matches: make([]models.MatchRecord, 0, len(matchIDs))}
	if len(matchIDs) == 0 {
		return result, nil
	}

	resolved := make(map[string]*models.MatchRecord, len(matchIDs))
	var misses []string
	for _, id := range matchIDs {
		if _, seen := resolved[id]; seen {
			continue
		}
		match, found, err := s.store.GetMatch(ctx, id)
		if err != nil {
			s.log.WithError(err).WithField("matchId", id).Warn("Match lookup failed, fetching from upstream")
		}
		if found {
			metrics.CacheLookups.WithLabelValues("match", metrics.ResultHit).Inc()
			resolved[id] = match
			continue
		}
		metrics.CacheLookups.WithLabelValues("match", metrics.ResultMiss).Inc()
		resolved[id] = nil
		misses = append(misses, id)
	}

	if len(misses) > 0 {
		fetched := s.fetchMissing(ctx, misses, routing)

		batch := make([]models.MatchRecord, 0, len(fetched))
		for _, id := range misses {
			if match, ok := fetched[id]; ok {
				resolved[id] = match
				batch = append(batch, *match)
			}
		}

		if len(batch) > 0 {
			if err := s.store.PutManyMatches(ctx, batch); err != nil {
				s.log.WithError(err).WithField("count", len(batch)).Warn("Failed to cache fetched matches")
			}
		}
	}

	for _, id := range matchIDs {
		if match := resolved[id]; match != nil {
			result.Matches = append(result.Matches, *match)
		} else {
			result.Missing = appendUnique(result.Missing, id)
		}
	}
	return result, nil
}

// History resolves a user and their most recent page of matches.
func (s *Service) History(ctx context.Context, riotID, routing string) (*History, error) {
	user, err := s.ResolveUser(ctx, riotID, routing)
	if err != nil {
		return nil, err
	}

	ids := user.Matches
	if len(ids) > s.pageSize {
		ids = ids[:s.pageSize]
	}
	platform := user.Platform
	if platform == "" {
		platform = routing
	}

	matches, err := s.ResolveMatches(ctx, ids, platform)
	if err != nil {
		return nil, err
	}
	return &History{User: user, Matches: matches.Matches, Missing: matches.Missing}, nil
}

// fetchMissing fetches ids concurrently, keyed by the id that was requested.
// Failures are logged and skipped.
func (s *Service) fetchMissing(ctx context.Context, ids []string, routing string) map[string]*models.MatchRecord {
	var (
		mu      sync.Mutex
		fetched = make(map[string]*models.MatchRecord, len(ids))
		g       errgroup.Group
	)
	g.SetLimit(s.concurrency)

	for _, id := range ids {
		id := id
		g.Go(func() error {
			match, err := s.fetcher.FetchMatch(ctx, id, routing)
			logger := s.log.WithField("matchId", id)
			if err != nil {
				metrics.MatchFetchSkipped.Inc()
				logger.WithError(err).Warn("Skipping match, fetch failed")
				return nil
			}
			if match.MatchID() != id {
				metrics.MatchFetchSkipped.Inc()
				logger.WithField("got", match.MatchID()).Warn("Skipping match, upstream returned a different id")
				return nil
			}
			mu.Lock()
			fetched[id] = match
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	return fetched
}

// mergeMatchIDs puts ids from latest that are not in existing ahead of
// existing, keeping both orders. It returns the merged list and how many
// ids were added.
func mergeMatchIDs(latest, existing []string) ([]string, int) {
	known := make(map[string]struct{}, len(existing))
	for _, id := range existing {
		known[id] = struct{}{}
	}

	merged := make([]string, 0, len(latest)+len(existing))
	for _, id := range latest {
		if _, ok := known[id]; ok {
			continue
		}
		known[id] = struct{}{}
		merged = append(merged, id)
	}
	added := len(merged)
	merged = append(merged, existing...)
	return merged, added
}

func appendUnique(list []string, id string) []string {
	for _, existing := range list {
		if existing == id {
			return list
		}
	}
	return append(list, id)
}
