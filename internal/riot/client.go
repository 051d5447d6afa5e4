package riot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"lol-tracker/internal/errs"
	"lol-tracker/internal/metrics"
	"lol-tracker/internal/models"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
	gobreaker "github.com/sony/gobreaker/v2"
)

const (
	// hostTemplate is filled with a routing key, e.g. https://americas.api.riotgames.com
	hostTemplate = "https://%s.api.riotgames.com"

	maxBodyBytes = 4 << 20

	endpointAccount  = "account"
	endpointMatchIDs = "match_ids"
	endpointMatch    = "match"

	breakerPrefix = "riot-api-"
)

// ClientConfig configures a Client. Zero values get defaults.
type ClientConfig struct {
	APIKey         string
	Timeout        time.Duration
	MaxRetries     int
	MatchPageSize  int
	InitialBackoff time.Duration
	// BaseURL replaces the per-routing host when set.
	BaseURL string
}

// Client fetches accounts and matches from the Riot API. Requests that fail
// with a transport error, 429 or 5xx are retried with exponential backoff.
// Each routing host has its own circuit breaker, and a request counts once
// toward it however many attempts it took.
type Client struct {
	apiKey         string
	httpClient     *http.Client
	baseURL        string
	maxRetries     int
	pageSize       int
	initialBackoff time.Duration
	log            log.FieldLogger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[[]byte] // by routing key
}

// NewClient creates a new Riot API client
func NewClient(cfg ClientConfig, logger log.FieldLogger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("riot api key is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.MatchPageSize <= 0 {
		cfg.MatchPageSize = models.DefaultMatchPageSize
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}

	c := &Client{
		apiKey:         cfg.APIKey,
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		baseURL:        cfg.BaseURL,
		maxRetries:     cfg.MaxRetries,
		pageSize:       cfg.MatchPageSize,
		initialBackoff: cfg.InitialBackoff,
		breakers:       make(map[string]*gobreaker.CircuitBreaker[[]byte]),
		log:            logger.WithField("component", "riot"),
	}

	return c, nil
}

// PageSize is the number of match ids FetchProfile requests.
func (c *Client) PageSize() int {
	return c.pageSize
}

// FetchProfile looks up an account by Riot ID and its most recent page of match ids.
func (c *Client) FetchProfile(ctx context.Context, gameName, tagLine, routing string) (*models.Profile, error) {
	account, err := c.GetAccountByRiotID(ctx, gameName, tagLine, routing)
	if err != nil {
		return nil, err
	}

	matchIDs, err := c.FetchMatchIDs(ctx, account.PUUID, routing, 0, c.pageSize)
	if err != nil {
		return nil, err
	}

	return &models.Profile{
		PUUID:          account.PUUID,
		GameName:       account.GameName,
		TagLine:        account.TagLine,
		RecentMatchIDs: matchIDs,
	}, nil
}

// GetAccountByRiotID fetches account info by Riot ID (gameName#tagLine)
func (c *Client) GetAccountByRiotID(ctx context.Context, gameName, tagLine, routing string) (*AccountResponse, error) {
	path := fmt.Sprintf("/riot/account/v1/accounts/by-riot-id/%s/%s",
		url.PathEscape(gameName), url.PathEscape(tagLine))

	var account AccountResponse
	if err := c.doRequest(ctx, endpointAccount, routing, path, &account); err != nil {
		return nil, fmt.Errorf("account %s#%s: %w", gameName, tagLine, err)
	}
	if account.PUUID == "" {
		return nil, fmt.Errorf("account %s#%s: empty puuid: %w", gameName, tagLine, errs.ErrNotFound)
	}
	return &account, nil
}

// FetchMatchIDs fetches one page of match ids for a player, most recent first.
func (c *Client) FetchMatchIDs(ctx context.Context, puuid, routing string, start, count int) ([]string, error) {
	path := fmt.Sprintf("/lol/match/v5/matches/by-puuid/%s/ids?start=%d&count=%d",
		url.PathEscape(puuid), start, count)

	matchIDs := []string{}
	if err := c.doRequest(ctx, endpointMatchIDs, routing, path, &matchIDs); err != nil {
		return nil, fmt.Errorf("match ids for %s: %w", puuid, err)
	}
	return matchIDs, nil
}

// FetchMatch fetches match details
func (c *Client) FetchMatch(ctx context.Context, matchID, routing string) (*models.MatchRecord, error) {
	path := fmt.Sprintf("/lol/match/v5/matches/%s", url.PathEscape(matchID))

	var match models.MatchRecord
	if err := c.doRequest(ctx, endpointMatch, routing, path, &match); err != nil {
		return nil, fmt.Errorf("match %s: %w", matchID, err)
	}
	if match.Metadata.MatchID == "" {
		match.Metadata.MatchID = matchID
	}
	return &match, nil
}

// doRequest runs one logical GET through the routing key's breaker.
func (c *Client) doRequest(ctx context.Context, endpoint, routing, path string, result interface{}) error {
	key, err := RoutingFor(routing)
	if err != nil {
		return err
	}
	host, err := c.host(key)
	if err != nil {
		return err
	}
	target := host + path

	breaker := c.breakerFor(key)
	body, err := breaker.Execute(func() ([]byte, error) {
		return c.getWithRetry(ctx, endpoint, target)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.UpstreamRequests.WithLabelValues(endpoint, "rejected").Inc()
		return fmt.Errorf("%w: circuit breaker %s: %v", errs.ErrUpstreamUnavailable, breaker.Name(), err)
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", errs.ErrUpstreamUnavailable, endpoint, err)
	}
	return nil
}

// getWithRetry retries transport errors, 429 and 5xx up to maxRetries times.
func (c *Client) getWithRetry(ctx context.Context, endpoint, target string) ([]byte, error) {
	var body []byte
	operation := func() error {
		b, err := c.get(ctx, endpoint, target)
		if err != nil {
			if retryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		body = b
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initialBackoff
	policy.MaxInterval = 10 * c.initialBackoff
	policy.MaxElapsedTime = 0

	notify := func(err error, wait time.Duration) {
		c.log.WithFields(log.Fields{
			"endpoint": endpoint,
			"wait":     wait.String(),
			"error":    err,
		}).Warn("Riot request failed, retrying")
	}

	err := backoff.RetryNotify(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.maxRetries)), ctx),
		notify)
	if err != nil && ctx.Err() != nil && !errors.Is(err, errs.ErrUpstreamUnavailable) && !errors.Is(err, errs.ErrNotFound) {
		return nil, fmt.Errorf("%w: %w", errs.ErrUpstreamUnavailable, err)
	}
	return body, err
}

// breakerFor returns the breaker for a routing key, creating it on first use.
func (c *Client) breakerFor(key string) *gobreaker.CircuitBreaker[[]byte] {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cb, ok := c.breakers[key]; ok {
		return cb
	}
	name := breakerPrefix + key
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A missing account or match is an answer, not an outage, and a
		// caller giving up says nothing about the host.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errs.ErrNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.WithFields(log.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	c.breakers[key] = cb
	return cb
}

func (c *Client) get(ctx context.Context, endpoint, target string) ([]byte, error) {
	start := time.Now()
	defer func() {
		metrics.UpstreamDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", errs.ErrMalformedInput, err)
	}
	req.Header.Set("X-Riot-Token", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(endpoint, "transport_error").Inc()
		return nil, fmt.Errorf("%w: %w", errs.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	metrics.UpstreamRequests.WithLabelValues(endpoint, outcome(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, newStatusError(resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", errs.ErrUpstreamUnavailable, err)
	}
	return body, nil
}

func (c *Client) host(routing string) (string, error) {
	if c.baseURL != "" {
		return c.baseURL, nil
	}
	if routing == "" {
		return "", fmt.Errorf("empty routing key: %w", errs.ErrMalformedInput)
	}
	key, err := RoutingFor(routing)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(hostTemplate, key), nil
}

// statusError is a non-200 upstream response.
type statusError struct {
	code int
	err  error
}

func newStatusError(code int) *statusError {
	err := errs.ErrUpstreamUnavailable
	if code == http.StatusNotFound {
		err = errs.ErrNotFound
	}
	return &statusError{code: code, err: err}
}

func (e *statusError) Error() string {
	switch e.code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Sprintf("riot api returned %d (check RIOT_API_KEY): %v", e.code, e.err)
	default:
		return fmt.Sprintf("riot api returned %d: %v", e.code, e.err)
	}
}

func (e *statusError) Unwrap() error {
	return e.err
}

// retryable reports whether another attempt may succeed: transport errors,
// 429 and 5xx. Everything else, including 404 and rejected keys, is final.
func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	return errors.Is(err, errs.ErrUpstreamUnavailable)
}

func outcome(code int) string {
	switch {
	case code == http.StatusOK:
		return "ok"
	case code == http.StatusNotFound:
		return "not_found"
	case code == http.StatusTooManyRequests:
		return "rate_limited"
	case code >= 500:
		return "server_error"
	default:
		return "client_error"
	}
}
