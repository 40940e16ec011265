package limiter

import (
	"context"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Window is a fixed-window request limiter backed by Redis counters, shared
// by every app instance pointing at the same Redis.
type Window struct {
	rdb    *redis.Client
	limit  int64
	window time.Duration
	prefix string
}

type Options struct {
	Limit  int
	Window time.Duration
	Prefix string
}

// New returns a limiter admitting opts.Limit requests per key per window.
func New(rdb *redis.Client, opts Options) *Window {
	if opts.Window <= 0 {
		opts.Window = time.Minute
	}
	if opts.Prefix == "" {
		opts.Prefix = "rl:generate"
	}
	return &Window{rdb: rdb, limit: int64(opts.Limit), window: opts.Window, prefix: opts.Prefix}
}

func (w *Window) key(client string, now time.Time) string {
	slot := now.UnixNano() / int64(w.window)
	return fmt.Sprintf("%s:%s:%d", w.prefix, strings.ToLower(client), slot)
}

// Allow counts one request for client and reports whether it is within the limit.
// A non-positive limit admits everything.
func (w *Window) Allow(ctx context.Context, client string) (bool, error) {
	if w.limit <= 0 {
		return true, nil
	}
	k := w.key(client, time.Now())
	pipe := w.rdb.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, w.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return incr.Val() <= w.limit, nil
}
