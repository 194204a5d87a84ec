package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"lp-tracker/internal/config"
	"lp-tracker/internal/metrics"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
)

const (
	endpointActiveGame = "spectator_active_game"
	endpointLeague     = "league_entries"
	endpointMatchIDs   = "match_ids"
	endpointMatch      = "match"
)

type RiotClient struct {
	apiKey      string
	platformURL string
	regionalURL string
	client      *fasthttp.Client
	rateLimitMu sync.RWMutex
	rateLimit   RateLimitInfo
}

// RateLimitInfo mirrors the most recent Riot rate limit headers.
type RateLimitInfo struct {
	AppLimit    string        `json:"app_limit"`
	AppCount    string        `json:"app_count"`
	MethodLimit string        `json:"method_limit"`
	MethodCount string        `json:"method_count"`
	RetryAfter  time.Duration `json:"retry_after"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// StatusError is returned for every non-200 response.
type StatusError struct {
	Endpoint   string
	Code       int
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("riot %s: status %d", e.Endpoint, e.Code)
}

func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

func IsNotFound(err error) bool {
	return StatusCode(err) == fasthttp.StatusNotFound
}

func IsRateLimited(err error) bool {
	return StatusCode(err) == fasthttp.StatusTooManyRequests
}

func NewRiotClient(cfg *config.Config) *RiotClient {
	return &RiotClient{
		apiKey:      cfg.RiotAPIKey,
		platformURL: strings.TrimRight(cfg.RiotPlatformURL, "/"),
		regionalURL: strings.TrimRight(cfg.RiotRegionalURL, "/"),
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         10 * time.Second,
			WriteTimeout:        10 * time.Second,
			MaxIdleConnDuration: 1 * time.Minute,
		},
	}
}

func (c *RiotClient) GetRateLimitInfo() RateLimitInfo {
	c.rateLimitMu.RLock()
	defer c.rateLimitMu.RUnlock()
	return c.rateLimit
}

func (c *RiotClient) updateRateLimit(resp *fasthttp.Response) {
	c.rateLimitMu.Lock()
	defer c.rateLimitMu.Unlock()

	if v := string(resp.Header.Peek("X-App-Rate-Limit")); v != "" {
		c.rateLimit.AppLimit = v
	}
	if v := string(resp.Header.Peek("X-App-Rate-Limit-Count")); v != "" {
		c.rateLimit.AppCount = v
	}
	if v := string(resp.Header.Peek("X-Method-Rate-Limit")); v != "" {
		c.rateLimit.MethodLimit = v
	}
	if v := string(resp.Header.Peek("X-Method-Rate-Limit-Count")); v != "" {
		c.rateLimit.MethodCount = v
	}
	c.rateLimit.RetryAfter = retryAfter(resp)
	c.rateLimit.UpdatedAt = time.Now()
}

func retryAfter(resp *fasthttp.Response) time.Duration {
	if v := string(resp.Header.Peek("Retry-After")); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}

func (c *RiotClient) platformBase(platform string) string {
	return strings.ReplaceAll(c.platformURL, "{platform}", strings.ToLower(platform))
}

func (c *RiotClient) regionalBase(platform string) string {
	return strings.ReplaceAll(c.regionalURL, "{region}", RoutingRegion(platform))
}

// GetActiveGame returns the live game of a player. A player who is not in game
// yields a *StatusError with code 404.
func (c *RiotClient) GetActiveGame(ctx context.Context, platform, puuid string) (*ActiveGame, error) {
	u := fmt.Sprintf("%s/lol/spectator/v5/active-games/by-summoner/%s", c.platformBase(platform), url.PathEscape(puuid))
	return doRequest[ActiveGame](ctx, c, endpointActiveGame, u)
}

func (c *RiotClient) GetLeagueEntries(ctx context.Context, platform, puuid string) ([]LeagueEntry, error) {
	u := fmt.Sprintf("%s/lol/league/v4/entries/by-puuid/%s", c.platformBase(platform), url.PathEscape(puuid))
	entries, err := doRequest[[]LeagueEntry](ctx, c, endpointLeague, u)
	if err != nil {
		return nil, err
	}
	return *entries, nil
}

func (c *RiotClient) GetMatchIDs(ctx context.Context, platform, puuid string, count int) ([]string, error) {
	u := fmt.Sprintf("%s/lol/match/v5/matches/by-puuid/%s/ids?count=%d", c.regionalBase(platform), url.PathEscape(puuid), count)
	ids, err := doRequest[[]string](ctx, c, endpointMatchIDs, u)
	if err != nil {
		return nil, err
	}
	return *ids, nil
}

func (c *RiotClient) GetMatch(ctx context.Context, platform, matchID string) (*MatchResponse, error) {
	u := fmt.Sprintf("%s/lol/match/v5/matches/%s", c.regionalBase(platform), url.PathEscape(matchID))
	return doRequest[MatchResponse](ctx, c, endpointMatch, u)
}

func doRequest[T any](ctx context.Context, client *RiotClient, endpoint, url string) (*T, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("X-Riot-Token", client.apiKey)

	deadline, ok := ctx.Deadline()
	if ok {
		if err := client.client.DoDeadline(req, resp, deadline); err != nil {
			return nil, fmt.Errorf("riot %s request failed: %w", endpoint, err)
		}
	} else {
		if err := client.client.Do(req, resp); err != nil {
			return nil, fmt.Errorf("riot %s request failed: %w", endpoint, err)
		}
	}

	client.updateRateLimit(resp)
	metrics.ObserveAPIResponse(endpoint, resp.StatusCode())

	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, &StatusError{
			Endpoint:   endpoint,
			Code:       resp.StatusCode(),
			RetryAfter: retryAfter(resp),
		}
	}

	var result T
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("failed to decode riot %s response: %w", endpoint, err)
	}
	return &result, nil
}

var platformRouting = map[string]string{
	"na1":  "americas",
	"br1":  "americas",
	"la1":  "americas",
	"la2":  "americas",
	"euw1": "europe",
	"eun1": "europe",
	"tr1":  "europe",
	"ru":   "europe",
	"me1":  "europe",
	"kr":   "asia",
	"jp1":  "asia",
	"oc1":  "sea",
	"sg2":  "sea",
	"tw2":  "sea",
	"vn2":  "sea",
}

// RoutingRegion maps a platform (na1, euw1, ...) to the regional cluster used
// by match-v5. Unknown platforms fall back to americas.
func RoutingRegion(platform string) string {
	if region, ok := platformRouting[strings.ToLower(platform)]; ok {
		return region
	}
	return "americas"
}
