package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"sentibot/internal/types"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Headline selectors that cover the finance sites this targets
// (MarketWatch-style quote pages and similar layouts).
var headlineSelectors = []string{
	"h3.article__headline a",
	"h4.article__headline a",
	"div.article__content > a > h3.article__title",
	"h3 a.link",
}

// scrapeSource pulls headlines by scraping a stock page directly, for
// upstreams without a usable feed.
type scrapeSource struct {
	id          string
	urlTemplate string
	maxItems    int
	timeout     time.Duration
	limiter     *hostLimiter
	retry       retryConfig
}

func newScrapeSource(id, urlTemplate string, maxItems int, timeout time.Duration, limiter *hostLimiter, retry retryConfig) *scrapeSource {
	return &scrapeSource{
		id:          id,
		urlTemplate: urlTemplate,
		maxItems:    maxItems,
		timeout:     timeout,
		limiter:     limiter,
		retry:       retry,
	}
}

func (s *scrapeSource) ID() string { return s.id }

func (s *scrapeSource) Fetch(ctx context.Context, symbol string) ([]types.HeadlineItem, error) {
	pageURL := expandSymbol(s.urlTemplate, symbol)

	if err := s.limiter.wait(ctx); err != nil {
		return nil, err
	}

	var items []types.HeadlineItem
	err := withRetry(ctx, s.retry, func() error {
		got, verr := s.scrapePage(pageURL)
		if verr != nil {
			return verr
		}
		items = got
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scrape %s: %w", pageURL, err)
	}
	return items, nil
}

func (s *scrapeSource) scrapePage(pageURL string) ([]types.HeadlineItem, error) {
	var items []types.HeadlineItem
	observed := time.Now() // scraped pages carry no reliable per-item timestamp

	c := colly.NewCollector(
		colly.AllowedDomains(hostOf(pageURL)),
		colly.MaxDepth(1),
	)
	c.SetRequestTimeout(s.timeout)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", userAgent)
	})

	selector := strings.Join(headlineSelectors, ", ")
	c.OnHTML("body", func(e *colly.HTMLElement) {
		e.DOM.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			if len(items) >= s.maxItems {
				return false
			}
			title := strings.TrimSpace(sel.Text())
			if title == "" {
				return true
			}
			items = append(items, types.HeadlineItem{
				Text:       title,
				SourceID:   s.id,
				ObservedAt: observed,
			})
			return true
		})
	})

	var scrapeErr error
	c.OnError(func(_ *colly.Response, err error) {
		scrapeErr = err
	})

	if err := c.Visit(pageURL); err != nil {
		return nil, err
	}
	c.Wait()

	if scrapeErr != nil {
		return nil, scrapeErr
	}
	return items, nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
