// Package fetch retrieves feeds over HTTP and parses them into entries
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"feedreader/feeds"
	"feedreader/models"

	"github.com/cenkalti/backoff/v4"
	"github.com/mmcdole/gofeed"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

var (
	fetchAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedreader_fetch_attempts_total",
		Help: "HTTP attempts made to retrieve feeds, retries included",
	})

	fetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedreader_fetch_errors_total",
		Help: "Failed fetch attempts by kind (http, parse, transport)",
	}, []string{"kind"})
)

// Config holds the retry and transport settings of a Fetcher
type Config struct {
	// Client defaults to an http.Client with a 20s timeout
	Client    *http.Client
	UserAgent string

	// MaxRetries after the first attempt, 0 disables retrying
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Fetcher implements feeds.Fetcher with gofeed
type Fetcher struct {
	config Config
}

func New(config Config) *Fetcher {
	if config.Client == nil {
		config.Client = &http.Client{Timeout: 20 * time.Second}
	}
	if config.UserAgent == "" {
		config.UserAgent = "feedreader/1.0"
	}
	if config.InitialInterval <= 0 {
		config.InitialInterval = 200 * time.Millisecond
	}
	if config.MaxInterval <= 0 {
		config.MaxInterval = 5 * time.Second
	}
	return &Fetcher{config: config}
}

// FetchEntries downloads and parses the feed at url, retrying transient failures
func (f *Fetcher) FetchEntries(ctx context.Context, url string) ([]models.Entry, error) {
	parser := gofeed.NewParser()
	parser.Client = f.config.Client
	parser.UserAgent = f.config.UserAgent

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.config.InitialInterval
	b.MaxInterval = f.config.MaxInterval
	b.Multiplier = 1.5
	b.MaxElapsedTime = 0 // bounded by MaxRetries and ctx instead

	var parsed *gofeed.Feed
	attempt := 0
	operation := func() error {
		attempt++
		fetchAttempts.Inc()

		feed, err := parser.ParseURLWithContext(url, ctx)
		if err == nil {
			parsed = feed
			return nil
		}

		kind, retry := classify(err)
		fetchErrors.WithLabelValues(kind).Inc()
		log.WithFields(log.Fields{
			"url":     url,
			"attempt": attempt,
			"kind":    kind,
			"error":   err,
		}).Warn("Feed fetch attempt failed")

		if !retry || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, f.config.MaxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, fmt.Errorf("retrieving %s: %w", url, err)
	}

	return toEntries(parsed), nil
}

// classify names the failure and reports whether another attempt could succeed
func classify(err error) (string, bool) {
	var httpErr gofeed.HTTPError
	if errors.As(err, &httpErr) {
		// only server side and rate limit failures are worth another try
		return "http", httpErr.StatusCode >= 500 || httpErr.StatusCode == http.StatusTooManyRequests
	}
	if errors.Is(err, gofeed.ErrFeedTypeNotDetected) {
		return "parse", false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "transport", false
	}
	return "transport", true
}

func toEntries(feed *gofeed.Feed) []models.Entry {
	if feed == nil {
		return []models.Entry{}
	}

	items := lo.Filter(feed.Items, func(item *gofeed.Item, _ int) bool {
		return item != nil
	})
	return lo.Map(items, func(item *gofeed.Item, _ int) models.Entry {
		link := item.Link
		if link == "" && len(item.Links) > 0 {
			link = item.Links[0]
		}
		title := strings.TrimSpace(item.Title)
		if title == "" {
			title = link
		}
		return models.Entry{
			Title:  title,
			Link:   link,
			Status: models.Unread,
		}
	})
}

var _ feeds.Fetcher = (*Fetcher)(nil)
