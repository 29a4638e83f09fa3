// Package riot is the HTTP client for the game-statistics API: account,
// summoner, league and match lookups with proactive rate limiting and a
// typed error taxonomy.
package riot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/riftwatch/smurfwatch/errors"
	"github.com/riftwatch/smurfwatch/internal/httpclient"
	"github.com/riftwatch/smurfwatch/riot/ratelimit"
)

const (
	// retryAfterDefault is used when a 429 carries no Retry-After header.
	retryAfterDefault = 1 * time.Second
	// retryAfterInlineCap bounds the backoff the client will absorb
	// itself on a 429. Longer waits are surfaced to the caller, which
	// checkpoints and ends its run instead of blocking a worker.
	retryAfterInlineCap = 10 * time.Second

	serverErrorBackoffBase = 500 * time.Millisecond
)

// Options configures a Client.
type Options struct {
	// APIKey is sent as X-Riot-Token on every request.
	APIKey string
	// Region is the continental routing value for account and match
	// endpoints, e.g. "europe".
	Region string
	// Platform is the shard routing value for summoner and league
	// endpoints, e.g. "euw1".
	Platform string
	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration
	// MaxRetries bounds retries on 5xx responses.
	MaxRetries int
	// SteadyRPS caps the request rate independently of advertised
	// windows, smoothing bursts between header updates. Zero disables
	// the cap.
	SteadyRPS float64
	// BaseURL overrides both routing hosts when set. Used to point
	// the client at a stub server.
	BaseURL string
}

// Client calls the game-statistics API. Every request passes the
// steady-rate cap, then the sliding-window limiter, before going out.
// Response headers feed the limiter so the next request sees fresh
// budgets. Safe for concurrent use.
type Client struct {
	http     *httpclient.Client
	limiter  *ratelimit.Limiter
	steady   *rate.Limiter
	opts     Options
	logger   *zap.SugaredLogger
	requests atomic.Int64

	regionBase   string
	platformBase string

	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a Client with a hardened HTTP transport.
func NewClient(opts Options, logger *zap.SugaredLogger) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	return newClient(httpclient.New(opts.Timeout), opts, logger)
}

// NewClientWithHTTP creates a Client over an existing HTTP client.
// Tests use this with httpclient.WrapClient and an httptest server.
func NewClientWithHTTP(hc *httpclient.Client, opts Options, logger *zap.SugaredLogger) *Client {
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	return newClient(hc, opts, logger)
}

func newClient(hc *httpclient.Client, opts Options, logger *zap.SugaredLogger) *Client {
	var steady *rate.Limiter
	if opts.SteadyRPS > 0 {
		steady = rate.NewLimiter(rate.Limit(opts.SteadyRPS), 1)
	}

	regionBase := fmt.Sprintf("https://%s.api.riotgames.com", opts.Region)
	platformBase := fmt.Sprintf("https://%s.api.riotgames.com", opts.Platform)
	if opts.BaseURL != "" {
		regionBase = opts.BaseURL
		platformBase = opts.BaseURL
	}

	c := &Client{
		http:         hc,
		limiter:      ratelimit.New(),
		steady:       steady,
		opts:         opts,
		logger:       logger,
		regionBase:   regionBase,
		platformBase: platformBase,
		sleep: func(ctx context.Context, d time.Duration) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
				return nil
			}
		},
	}
	return c
}

// Requests returns the total number of HTTP requests dispatched so
// far. Jobs snapshot this around a run to report API usage.
func (c *Client) Requests() int64 {
	return c.requests.Load()
}

// Limiter exposes the sliding-window limiter, for CLI status output.
func (c *Client) Limiter() *ratelimit.Limiter {
	return c.limiter
}

// GetAccountByRiotID resolves a "gameName#tagLine" identity to its PUUID.
func (c *Client) GetAccountByRiotID(ctx context.Context, gameName, tagLine string) (*Account, error) {
	var out Account
	err := c.get(ctx, c.regionBase,
		"/riot/account/v1/accounts/by-riot-id",
		fmt.Sprintf("/riot/account/v1/accounts/by-riot-id/%s/%s",
			url.PathEscape(gameName), url.PathEscape(tagLine)),
		&out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetAccountByPUUID looks up the current riot ID for a PUUID.
func (c *Client) GetAccountByPUUID(ctx context.Context, puuid string) (*Account, error) {
	var out Account
	err := c.get(ctx, c.regionBase,
		"/riot/account/v1/accounts/by-puuid",
		"/riot/account/v1/accounts/by-puuid/"+url.PathEscape(puuid),
		&out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSummonerByPUUID fetches the platform-level summoner record.
func (c *Client) GetSummonerByPUUID(ctx context.Context, puuid string) (*Summoner, error) {
	var out Summoner
	err := c.get(ctx, c.platformBase,
		"/lol/summoner/v4/summoners/by-puuid",
		"/lol/summoner/v4/summoners/by-puuid/"+url.PathEscape(puuid),
		&out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetLeagueEntriesByPUUID fetches current ranked standings.
func (c *Client) GetLeagueEntriesByPUUID(ctx context.Context, puuid string) ([]LeagueEntry, error) {
	var out []LeagueEntry
	err := c.get(ctx, c.platformBase,
		"/lol/league/v4/entries/by-puuid",
		"/lol/league/v4/entries/by-puuid/"+url.PathEscape(puuid),
		&out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetMatchIDs lists recent match IDs for a player, newest first.
func (c *Client) GetMatchIDs(ctx context.Context, puuid string, start, count int) ([]string, error) {
	var out []string
	err := c.get(ctx, c.regionBase,
		"/lol/match/v5/matches/by-puuid",
		fmt.Sprintf("/lol/match/v5/matches/by-puuid/%s/ids?start=%d&count=%d",
			url.PathEscape(puuid), start, count),
		&out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetMatch fetches full detail for one match.
func (c *Client) GetMatch(ctx context.Context, matchID string) (*Match, error) {
	var out Match
	err := c.get(ctx, c.regionBase,
		"/lol/match/v5/matches",
		"/lol/match/v5/matches/"+url.PathEscape(matchID),
		&out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// get runs one GET through the rate limiting stack and decodes the
// JSON body into out. endpoint is the template path used as the
// method-scope key; path is the concrete request path with values
// filled in.
func (c *Client) get(ctx context.Context, base, endpoint, path string, out interface{}) error {
	if c.opts.APIKey == "" {
		return &AuthError{APIError: APIError{
			StatusCode: 401,
			Endpoint:   endpoint,
			Message:    "no API key configured",
		}}
	}

	retried429 := false
	attempt := 0
	for {
		if c.steady != nil {
			if err := c.steady.Wait(ctx); err != nil {
				return errors.Wrap(err, "steady rate wait cancelled")
			}
		}
		if err := c.limiter.Wait(ctx, endpoint, http.MethodGet); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
		if err != nil {
			return errors.Wrapf(err, "failed to build request for %s", endpoint)
		}
		req.Header.Set("X-Riot-Token", c.opts.APIKey)
		req.Header.Set("Accept", "application/json")

		c.requests.Add(1)
		resp, err := c.http.Do(req)
		if err != nil {
			return errors.Wrapf(err, "request to %s failed", endpoint)
		}

		c.limiter.RecordLimits(resp.Header, endpoint, http.MethodGet)

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if resp.Header.Get(ratelimit.HeaderAppLimit) == "" {
				c.limiter.RecordSuccess(endpoint, http.MethodGet)
			}
			defer resp.Body.Close()
			if out == nil {
				io.Copy(io.Discard, resp.Body)
				return nil
			}
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return errors.Wrapf(err, "failed to decode %s response", endpoint)
			}
			return nil
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()

		apiErr := classifyStatus(resp.StatusCode, endpoint, string(body),
			parseRetryAfter(resp.Header),
			resp.Header.Get(ratelimit.HeaderAppLimit),
			resp.Header.Get(ratelimit.HeaderMethodLimit))

		switch {
		case resp.StatusCode == 429:
			rl, _ := IsRateLimited(apiErr)
			if !retried429 && rl.RetryAfter <= retryAfterInlineCap {
				retried429 = true
				c.logger.Warnw("Rate limited, retrying once inline",
					"endpoint", endpoint,
					"retry_after", rl.RetryAfter)
				if err := c.sleep(ctx, rl.RetryAfter); err != nil {
					return rl
				}
				continue
			}
			return rl

		case resp.StatusCode >= 500 && attempt < c.opts.MaxRetries:
			backoff := serverErrorBackoffBase << attempt
			attempt++
			c.logger.Warnw("Server error, backing off",
				"endpoint", endpoint,
				"status", resp.StatusCode,
				"attempt", attempt,
				"backoff", backoff)
			if err := c.sleep(ctx, backoff); err != nil {
				return apiErr
			}
			continue

		default:
			return apiErr
		}
	}
}

// parseRetryAfter reads a Retry-After header of whole seconds.
func parseRetryAfter(hdr http.Header) time.Duration {
	raw := hdr.Get(ratelimit.HeaderRetryAfter)
	if raw == "" {
		return retryAfterDefault
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs < 0 {
		return retryAfterDefault
	}
	return time.Duration(secs) * time.Second
}
