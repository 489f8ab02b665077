package repository

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"tablebook/internal/domain"

	"github.com/rs/zerolog"
)

// FailoverSettingsCache serves from the primary cache until it errors, then
// switches to the fallback and probes the primary again after a minute.
// Cache misses are not failures and never trip the failover.
type FailoverSettingsCache struct {
	primary   domain.SettingsCache
	fallback  domain.SettingsCache
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64 // unix nanos of the last failed probe
}

func NewFailoverSettingsCache(primary, fallback domain.SettingsCache, logger *zerolog.Logger) *FailoverSettingsCache {
	return &FailoverSettingsCache{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (c *FailoverSettingsCache) markDown(err error) {
	c.logger.Error().Err(err).Msg("primary settings cache failed, falling back to memory")
	c.isDown.Store(true)
	c.lastCheck.Store(time.Now().UnixNano())
}

func (c *FailoverSettingsCache) shouldProbe() bool {
	return time.Since(time.Unix(0, c.lastCheck.Load())) > time.Minute
}

func (c *FailoverSettingsCache) Get(ctx context.Context, key string) ([]byte, error) {
	if !c.isDown.Load() {
		payload, err := c.primary.Get(ctx, key)
		if err == nil || errors.Is(err, ErrCacheMiss) {
			return payload, err
		}
		c.markDown(err)
	} else if c.shouldProbe() {
		payload, err := c.primary.Get(ctx, key)
		if err == nil || errors.Is(err, ErrCacheMiss) {
			c.isDown.Store(false)
			return payload, err
		}
		c.lastCheck.Store(time.Now().UnixNano())
	}

	return c.fallback.Get(ctx, key)
}

func (c *FailoverSettingsCache) Set(ctx context.Context, key string, payload []byte) error {
	if !c.isDown.Load() {
		if err := c.primary.Set(ctx, key, payload); err != nil {
			c.markDown(err)
		}
	}
	return c.fallback.Set(ctx, key, payload)
}

func (c *FailoverSettingsCache) Invalidate(ctx context.Context, key string) error {
	if !c.isDown.Load() {
		if err := c.primary.Invalidate(ctx, key); err != nil {
			c.markDown(err)
		}
	}
	return c.fallback.Invalidate(ctx, key)
}
