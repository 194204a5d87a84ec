package api

import (
	"context"
	"lp-tracker/internal/config"
	"sync"
	"time"
)

type ActiveGameLookup interface {
	GetActiveGame(ctx context.Context, platform, puuid string) (*ActiveGame, error)
}

type liveEntry struct {
	game      *ActiveGame
	err       error
	expiresAt time.Time
}

// LiveGameCache memoizes spectator lookups for a short TTL. Found games and
// 404s are cached; transport failures and other statuses are not.
type LiveGameCache struct {
	next    ActiveGameLookup
	ttl     time.Duration
	now     func() time.Time
	mu      sync.Mutex
	entries map[string]liveEntry
}

func NewLiveGameCache(next ActiveGameLookup, ttl time.Duration) *LiveGameCache {
	return &LiveGameCache{
		next:    next,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]liveEntry),
	}
}

func NewLiveGameCacheFromConfig(client *RiotClient, cfg *config.Config) *LiveGameCache {
	return NewLiveGameCache(client, cfg.LiveCacheTTL)
}

func (c *LiveGameCache) GetActiveGame(ctx context.Context, platform, puuid string) (*ActiveGame, error) {
	key := platform + "/" + puuid
	now := c.now()

	c.mu.Lock()
	if e, ok := c.entries[key]; ok && now.Before(e.expiresAt) {
		c.mu.Unlock()
		return e.game, e.err
	}
	c.mu.Unlock()

	game, err := c.next.GetActiveGame(ctx, platform, puuid)
	if err != nil && !IsNotFound(err) {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = liveEntry{game: game, err: err, expiresAt: now.Add(c.ttl)}
	c.evictExpiredLocked(now)
	c.mu.Unlock()

	return game, err
}

// Invalidate drops the cached state of one player.
func (c *LiveGameCache) Invalidate(platform, puuid string) {
	c.mu.Lock()
	delete(c.entries, platform+"/"+puuid)
	c.mu.Unlock()
}

func (c *LiveGameCache) evictExpiredLocked(now time.Time) {
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}
