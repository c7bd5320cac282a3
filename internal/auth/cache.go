package auth

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// DefaultExpirySkew is subtracted from a token's expiry before reuse.
const DefaultExpirySkew = 30 * time.Second

// DefaultFetchTimeout bounds a shared token exchange.
const DefaultFetchTimeout = 30 * time.Second

// Cached reuses tokens from a TokenStore until they expire. Concurrent
// misses share a single exchange; no lock is held during the exchange.
type Cached struct {
	fetcher Fetcher
	store   TokenStore
	skew    time.Duration
	timeout time.Duration
	now     func() time.Time
	group   singleflight.Group
	logger  *slog.Logger
}

type CacheOption func(*Cached)

func WithStore(s TokenStore) CacheOption {
	return func(c *Cached) {
		if s != nil {
			c.store = s
		}
	}
}

func WithExpirySkew(d time.Duration) CacheOption {
	return func(c *Cached) {
		if d >= 0 {
			c.skew = d
		}
	}
}

// WithFetchTimeout bounds each token exchange. The exchange outlives the
// caller that started it, so it carries its own deadline.
func WithFetchTimeout(d time.Duration) CacheOption {
	return func(c *Cached) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func withClock(now func() time.Time) CacheOption {
	return func(c *Cached) { c.now = now }
}

func NewCached(f Fetcher, logger *slog.Logger, opts ...CacheOption) *Cached {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cached{
		fetcher: f,
		store:   NewMemoryStore(),
		skew:    DefaultExpirySkew,
		timeout: DefaultFetchTimeout,
		now:     time.Now,
		logger:  logger,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Token implements Provider.
func (c *Cached) Token(ctx context.Context) (string, error) {
	tok, err := c.store.Load(ctx)
	if err != nil {
		c.logger.Warn("auth.cache.load_failed", "error", err)
	}
	if c.fresh(tok) {
		return tok.AccessToken, nil
	}

	ch := c.group.DoChan("token", func() (any, error) {
		// detached from the first caller; waiters share the result
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		t, err := c.fetcher.Fetch(fctx)
		if err != nil {
			return nil, err
		}
		if err := c.store.Save(fctx, t); err != nil {
			c.logger.Warn("auth.cache.save_failed", "error", err)
		}
		return t, nil
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		if res.Shared {
			c.logger.Debug("auth.cache.shared_refresh")
		}
		return res.Val.(*oauth2.Token).AccessToken, nil
	}
}

// Invalidate implements Invalidator.
func (c *Cached) Invalidate(ctx context.Context) {
	if err := c.store.Clear(ctx); err != nil {
		c.logger.Warn("auth.cache.clear_failed", "error", err)
		return
	}
	c.logger.Info("auth.cache.invalidated")
}

func (c *Cached) fresh(tok *oauth2.Token) bool {
	if tok == nil || tok.AccessToken == "" {
		return false
	}
	// tokens without expiry are reused until invalidated
	if tok.Expiry.IsZero() {
		return true
	}
	return c.now().Add(c.skew).Before(tok.Expiry)
}
