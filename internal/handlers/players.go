package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"lol-tracker/internal/audit"
	"lol-tracker/internal/errs"
	"lol-tracker/internal/middleware"
	"lol-tracker/internal/models"
	"lol-tracker/internal/reconcile"
	"lol-tracker/internal/riot"
	"lol-tracker/internal/stats"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const (
	defaultRequestTimeout = 25 * time.Second
	maxMatchIDsPerRequest = 100
	maxBodyBytes          = 1 << 20
)

// PlayerService is the reconciliation surface the handlers call.
type PlayerService interface {
	ResolveUser(ctx context.Context, riotID, routing string) (*models.UserRecord, error)
	RefreshUser(ctx context.Context, riotID, routing string) (*models.UserRecord, error)
	ResolveMatches(ctx context.Context, matchIDs []string, routing string) (*reconcile.MatchResult, error)
	History(ctx context.Context, riotID, routing string) (*reconcile.History, error)
}

type PlayerHandler struct {
	service  PlayerService
	recorder *audit.Recorder
	log      log.FieldLogger
	timeout  time.Duration
}

func NewPlayerHandler(service PlayerService, recorder *audit.Recorder, logger log.FieldLogger) *PlayerHandler {
	return &PlayerHandler{
		service:  service,
		recorder: recorder,
		log:      logger.WithField("component", "handlers"),
		timeout:  defaultRequestTimeout,
	}
}

// Register mounts the player and match routes under /api. The middleware
// applies to those routes only.
func (h *PlayerHandler) Register(router *mux.Router, mw ...mux.MiddlewareFunc) {
	api := router.PathPrefix("/api").Subrouter()
	api.Use(mw...)
	api.HandleFunc("/players/{riotId}", h.GetPlayer).Methods("GET")
	api.HandleFunc("/players/{riotId}/refresh", h.RefreshPlayer).Methods("POST")
	api.HandleFunc("/players/{riotId}/matches", h.GetMatchHistory).Methods("GET")
	api.HandleFunc("/matches", h.PostMatches).Methods("POST")
}

type MatchHistoryResponse struct {
	User    *models.UserRecord   `json:"user"`
	Matches []models.MatchRecord `json:"matches"`
	Summary stats.Summary        `json:"summary"`
	Missing []string             `json:"missing,omitempty"`
}

type MatchesRequest struct {
	MatchIDs []string `json:"matchIds"`
	Region   string   `json:"region"`
}

// GetPlayer returns the cached profile, fetching it on first lookup.
// GET /api/players/{riotId}?region=na1
func (h *PlayerHandler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	h.serveUser(w, r, audit.EventPlayerLookup, h.service.ResolveUser)
}

// RefreshPlayer pulls the newest match ids for a player.
// POST /api/players/{riotId}/refresh?region=na1
func (h *PlayerHandler) RefreshPlayer(w http.ResponseWriter, r *http.Request) {
	h.serveUser(w, r, audit.EventPlayerRefresh, h.service.RefreshUser)
}

func (h *PlayerHandler) serveUser(w http.ResponseWriter, r *http.Request, event string,
	resolve func(ctx context.Context, riotID, routing string) (*models.UserRecord, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	riotID := riotIDFromPath(r)
	region, routing, err := regionFromQuery(r)
	if err != nil {
		respondWithErr(w, err)
		return
	}

	user, err := resolve(ctx, riotID, routing)
	h.recorder.Record(r, event, gametagFor(riotID), region, err == nil)
	if err != nil {
		h.logFailure(ctx, err, riotID)
		respondWithErr(w, err)
		return
	}
	respondWithData(w, user)
}

// GetMatchHistory returns a player with their latest resolved matches and
// a summary over them.
// GET /api/players/{riotId}/matches?region=na1&filter=all&sort=recent
func (h *PlayerHandler) GetMatchHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	riotID := riotIDFromPath(r)
	region, routing, err := regionFromQuery(r)
	if err != nil {
		respondWithErr(w, err)
		return
	}
	filter, err := stats.ParseFilter(r.URL.Query().Get("filter"))
	if err != nil {
		respondWithErr(w, err)
		return
	}
	order, err := stats.ParseSort(r.URL.Query().Get("sort"))
	if err != nil {
		respondWithErr(w, err)
		return
	}

	history, err := h.service.History(ctx, riotID, routing)
	h.recorder.Record(r, audit.EventMatchHistory, gametagFor(riotID), region, err == nil)
	if err != nil {
		h.logFailure(ctx, err, riotID)
		respondWithErr(w, err)
		return
	}

	respondWithData(w, MatchHistoryResponse{
		User:    history.User,
		Matches: stats.Apply(history.User.PUUID, history.Matches, filter, order),
		Summary: stats.Summarize(history.User.PUUID, history.Matches),
		Missing: history.Missing,
	})
}

// PostMatches resolves an explicit list of match ids.
// POST /api/matches {"matchIds": [...], "region": "na1"}
func (h *PlayerHandler) PostMatches(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req MatchesRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.MatchIDs) > maxMatchIDsPerRequest {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("at most %d match ids per request", maxMatchIDsPerRequest))
		return
	}
	for _, id := range req.MatchIDs {
		if strings.TrimSpace(id) == "" {
			respondWithError(w, http.StatusBadRequest, "match ids must not be empty")
			return
		}
	}

	region := req.Region
	if region == "" {
		region = models.DefaultRegion
	}
	routing, err := riot.RoutingFor(region)
	if err != nil {
		respondWithErr(w, err)
		return
	}

	result, err := h.service.ResolveMatches(ctx, req.MatchIDs, routing)
	if err != nil {
		middleware.Logger(ctx, h.log).WithError(err).Warn("Match resolution failed")
		respondWithErr(w, err)
		return
	}
	respondWithData(w, result)
}

func (h *PlayerHandler) logFailure(ctx context.Context, err error, riotID string) {
	entry := middleware.Logger(ctx, h.log).WithError(err).WithField("riotId", riotID)
	if errs.HTTPStatus(err) >= http.StatusInternalServerError {
		entry.Warn("Player request failed")
		return
	}
	entry.Debug("Player request rejected")
}

// riotIDFromPath returns the {riotId} segment. The router matches on the
// already-decoded path, so "Faker%23KR1" arrives as "Faker#KR1" and must
// not be unescaped again.
func riotIDFromPath(r *http.Request) string {
	return mux.Vars(r)["riotId"]
}

func regionFromQuery(r *http.Request) (region, routing string, err error) {
	region = strings.ToLower(strings.TrimSpace(r.URL.Query().Get("region")))
	if region == "" {
		region = models.DefaultRegion
	}
	routing, err = riot.RoutingFor(region)
	return region, routing, err
}

func gametagFor(riotID string) string {
	if id, err := reconcile.ParseRiotID(riotID); err == nil {
		return id.Gametag()
	}
	return riotID
}

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health answers 200 when pinger (if any) is reachable, 503 otherwise.
func Health(pinger Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pinger != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := pinger.Ping(ctx); err != nil {
				respondWithError(w, http.StatusServiceUnavailable, "record store unavailable")
				return
			}
		}
		respondWithData(w, map[string]string{"status": "ok"})
	}
}
