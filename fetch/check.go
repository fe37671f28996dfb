package fetch

import (
	"context"
	"sync"
	"time"

	"feedreader/feeds"
	"feedreader/models"

	log "github.com/sirupsen/logrus"
)

// CheckResult is the outcome of fetching one configured feed
type CheckResult struct {
	Index   int
	Source  models.FeedSource
	Entries int
	Latency time.Duration
	Err     error
}

// CheckAll fetches every source with a pool of workers. Results are in source order.
func CheckAll(ctx context.Context, fetcher feeds.Fetcher, sources []models.FeedSource, workers int) []CheckResult {
	if workers < 1 {
		workers = 1
	}

	results := make([]CheckResult, len(sources))
	queue := make(chan int)
	var wg sync.WaitGroup

	for id := 0; id < workers; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for index := range queue {
				results[index] = check(ctx, fetcher, index, sources[index])
				log.WithFields(log.Fields{
					"worker": id,
					"feed":   sources[index].Name,
					"error":  results[index].Err,
				}).Debug("Checked feed")
			}
		}(id)
	}

	for i := range sources {
		queue <- i
	}
	close(queue)
	wg.Wait()

	return results
}

func check(ctx context.Context, fetcher feeds.Fetcher, index int, src models.FeedSource) CheckResult {
	start := time.Now()
	entries, err := fetcher.FetchEntries(ctx, src.URL)
	return CheckResult{
		Index:   index,
		Source:  src,
		Entries: len(entries),
		Latency: time.Since(start),
		Err:     err,
	}
}
