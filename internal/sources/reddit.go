package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"sentibot/internal/types"
)

// redditSource searches configured subreddits for posts mentioning the
// symbol, via Reddit's public JSON listings.
type redditSource struct {
	id         string
	subreddits []string
	maxItems   int
	client     *resty.Client
	limiter    *hostLimiter
	retry      retryConfig
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data struct {
				Title      string  `json:"title"`
				Selftext   string  `json:"selftext"`
				Stickied   bool    `json:"stickied"`
				CreatedUTC float64 `json:"created_utc"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func newRedditSource(id string, subreddits []string, maxItems int, timeout time.Duration, limiter *hostLimiter, retry retryConfig) *redditSource {
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("User-Agent", "sentibot/1.0 (headline collector)")
	return &redditSource{
		id:         id,
		subreddits: subreddits,
		maxItems:   maxItems,
		client:     client,
		limiter:    limiter,
		retry:      retry,
	}
}

func (s *redditSource) ID() string { return s.id }

func (s *redditSource) Fetch(ctx context.Context, symbol string) ([]types.HeadlineItem, error) {
	var (
		items   []types.HeadlineItem
		lastErr error
	)

	perSubreddit := s.maxItems / len(s.subreddits)
	if perSubreddit < 1 {
		perSubreddit = 1
	}

	for _, subreddit := range s.subreddits {
		if len(items) >= s.maxItems {
			break
		}
		got, err := s.fetchSubreddit(ctx, subreddit, symbol, perSubreddit)
		if err != nil {
			// One subreddit failing should not hide the others.
			lastErr = err
			continue
		}
		items = append(items, got...)
	}

	if len(items) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return items, nil
}

func (s *redditSource) fetchSubreddit(ctx context.Context, subreddit, symbol string, limit int) ([]types.HeadlineItem, error) {
	if err := s.limiter.wait(ctx); err != nil {
		return nil, err
	}

	searchURL := fmt.Sprintf(
		"https://www.reddit.com/r/%s/search.json?q=%s&restrict_sr=1&sort=new&limit=%d",
		subreddit, url.QueryEscape(symbol), limit,
	)

	var listing redditListing
	err := withRetry(ctx, s.retry, func() error {
		resp, rerr := s.client.R().
			SetContext(ctx).
			SetResult(&listing).
			Get(searchURL)
		if rerr != nil {
			return rerr
		}
		if resp.StatusCode() != 200 {
			return fmt.Errorf("reddit http %d for r/%s", resp.StatusCode(), subreddit)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	items := make([]types.HeadlineItem, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		post := child.Data
		if post.Stickied {
			continue
		}
		title := strings.TrimSpace(post.Title)
		if title == "" {
			continue
		}

		var observed time.Time
		if post.CreatedUTC > 0 {
			observed = time.Unix(int64(post.CreatedUTC), 0).UTC()
		}

		items = append(items, types.HeadlineItem{
			Text:       title,
			SourceID:   s.id,
			ObservedAt: observed,
		})
	}

	return items, nil
}
