// Package news fetches market headlines from configured RSS feeds so the
// console can show what is moving the currencies a user holds.
package news

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/attacker735/finalproject-malygin-m25-555/internal/infra"
)

// Feed is one configured RSS source.
type Feed struct {
	Name string
	URL  string
}

// Article is a single headline.
type Article struct {
	Source    string
	Title     string
	Link      string
	Published time.Time
}

// Service fetches and caches headlines.
type Service struct {
	feeds   []Feed
	parser  *gofeed.Parser
	cache   *infra.Cache
	limiter *infra.RateLimiter
}

// New creates a news service over the given feeds.
func New(feeds []Feed, timeout time.Duration) *Service {
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: timeout}
	return &Service{
		feeds:   feeds,
		parser:  parser,
		cache:   infra.NewCache(10 * time.Minute),
		limiter: infra.NewRateLimiter(2, time.Second),
	}
}

// Latest returns up to limit recent articles across all feeds, newest
// first. A single failing feed is skipped; it fails only when every feed
// is unreachable.
func (s *Service) Latest(ctx context.Context, limit int) ([]Article, error) {
	cacheKey := fmt.Sprintf("news:%d", limit)
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached.([]Article), nil
	}

	var (
		articles []Article
		failures int
		lastErr  error
	)
	for _, feed := range s.feeds {
		fetched, err := s.fetch(ctx, feed)
		if err != nil {
			failures++
			lastErr = err
			continue
		}
		articles = append(articles, fetched...)
	}
	if failures == len(s.feeds) && lastErr != nil {
		return nil, fmt.Errorf("all news feeds failed: %w", lastErr)
	}

	sort.Slice(articles, func(i, j int) bool {
		return articles[i].Published.After(articles[j].Published)
	})
	if limit > 0 && len(articles) > limit {
		articles = articles[:limit]
	}

	s.cache.Set(cacheKey, articles)
	return articles, nil
}

func (s *Service) fetch(ctx context.Context, feed Feed) ([]Article, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	parsed, err := s.parser.ParseURLWithContext(feed.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", feed.Name, err)
	}

	articles := make([]Article, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		published := time.Time{}
		if item.PublishedParsed != nil {
			published = *item.PublishedParsed
		}
		articles = append(articles, Article{
			Source:    feed.Name,
			Title:     item.Title,
			Link:      item.Link,
			Published: published,
		})
	}
	return articles, nil
}
