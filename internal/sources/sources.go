package sources

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"sentibot/internal/interfaces"
	"sentibot/internal/logger"
	"sentibot/internal/store"
	"sentibot/internal/types"
)

// Build constructs the enabled headline sources from configuration.
func Build(cfgs []store.SourceConfig, maxPerSource int, timeout time.Duration) []interfaces.Source {
	var out []interfaces.Source
	for _, cfg := range cfgs {
		if !cfg.Enabled {
			continue
		}
		limiter := newHostLimiter(time.Duration(cfg.MinDelayMs) * time.Millisecond)
		retry := retryConfig{maxAttempts: cfg.MaxRetries + 1, initialDelay: time.Second}
		switch cfg.Kind {
		case "rss":
			out = append(out, newRSSSource(cfg.ID, cfg.URL, maxPerSource, timeout, limiter, retry))
		case "scrape":
			out = append(out, newScrapeSource(cfg.ID, cfg.URL, maxPerSource, timeout, limiter, retry))
		case "reddit":
			out = append(out, newRedditSource(cfg.ID, cfg.Subreddits, maxPerSource, timeout, limiter, retry))
		}
	}
	return out
}

// FetchAll gathers items for a symbol from every source concurrently.
// A failing source contributes zero items and a warning; it never fails
// the symbol. The combined result is capped at maxTotal.
func FetchAll(ctx context.Context, srcs []interfaces.Source, symbol string, maxTotal int) []types.HeadlineItem {
	var (
		mu  sync.Mutex
		all []types.HeadlineItem
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, src := range srcs {
		g.Go(func() error {
			items, err := src.Fetch(gctx, symbol)
			if err != nil {
				logger.Warn(gctx, "Source fetch failed, continuing without it",
					"source", src.ID(), "symbol", symbol, "error", err)
			}
			if len(items) == 0 {
				return nil
			}
			mu.Lock()
			all = append(all, items...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if len(all) > maxTotal {
		all = all[:maxTotal]
	}
	return all
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// expandSymbol substitutes {symbol} placeholders in URL templates.
func expandSymbol(template, symbol string) string {
	s := strings.ReplaceAll(template, "{symbol}", symbol)
	return strings.ReplaceAll(s, "{symbol_lower}", strings.ToLower(symbol))
}

// hostLimiter enforces a minimum gap between requests to one upstream
// host. The delays upstream services demand are an external constraint,
// not tunable behavior.
type hostLimiter struct {
	mu       sync.Mutex
	minDelay time.Duration
	last     time.Time
}

func newHostLimiter(minDelay time.Duration) *hostLimiter {
	return &hostLimiter{minDelay: minDelay}
}

func (l *hostLimiter) wait(ctx context.Context) error {
	if l.minDelay <= 0 {
		return nil
	}
	l.mu.Lock()
	next := l.last.Add(l.minDelay)
	now := time.Now()
	if next.Before(now) {
		next = now
	}
	l.last = next
	l.mu.Unlock()

	wait := time.Until(next)
	if wait <= 0 {
		return nil
	}
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type retryConfig struct {
	maxAttempts  int
	initialDelay time.Duration
}

// withRetry runs fn with bounded exponential backoff.
func withRetry(ctx context.Context, cfg retryConfig, fn func() error) error {
	attempts := cfg.maxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := cfg.initialDelay

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
	}
	return err
}
