// Package pipeline implements the periodic fetch and classification jobs.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"newswatcher/internal/fetcher"
	"newswatcher/internal/model"
	"newswatcher/internal/storage"
)

// FetchSummary reports the outcome of one fetch run.
type FetchSummary struct {
	Sources    int
	NewItems   int
	Duplicates int
	Errors     int
}

// FetchJob polls all active sources and stores new items.
type FetchJob struct {
	store       storage.Storage
	producers   map[model.SourceKind]fetcher.Producer
	concurrency int
	log         *slog.Logger
}

// NewFetchJob creates a FetchJob dispatching to the given producers by
// source kind.
func NewFetchJob(store storage.Storage, producers map[model.SourceKind]fetcher.Producer, concurrency int, log *slog.Logger) *FetchJob {
	if concurrency < 1 {
		concurrency = 1
	}
	return &FetchJob{store: store, producers: producers, concurrency: concurrency, log: log}
}

// Run processes every active source once. A failing source is counted and
// skipped; it never aborts the run for other sources.
func (j *FetchJob) Run(ctx context.Context) FetchSummary {
	sources, err := j.store.ListActiveSources(ctx)
	if err != nil {
		j.log.Error("list active sources", "error", err)
		return FetchSummary{Errors: 1}
	}

	var mu sync.Mutex
	summary := FetchSummary{Sources: len(sources)}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.concurrency)
	for _, source := range sources {
		g.Go(func() error {
			newItems, dups, ok := j.processSource(gctx, source)
			mu.Lock()
			summary.NewItems += newItems
			summary.Duplicates += dups
			if !ok {
				summary.Errors++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	j.log.Info("fetch run complete",
		"sources", summary.Sources, "new_items", summary.NewItems,
		"duplicates", summary.Duplicates, "errors", summary.Errors)
	return summary
}

func (j *FetchJob) processSource(ctx context.Context, source model.Source) (newItems, dups int, ok bool) {
	producer, found := j.producers[source.Kind]
	if !found {
		j.log.Error("no producer for source kind", "source_id", source.ID, "kind", source.Kind)
		return 0, 0, false
	}

	items, err := producer.Fetch(ctx, source)
	if err != nil {
		// Leave last_fetch_at untouched so the next run retries the same window.
		j.log.Error("fetch source", "source_id", source.ID, "name", source.Name, "error", err)
		return 0, 0, false
	}

	for _, item := range items {
		inserted, err := j.store.InsertItem(ctx, &item)
		if err != nil {
			j.log.Error("insert item", "source_id", source.ID, "url", item.URL, "error", err)
			continue
		}
		if inserted {
			newItems++
		} else {
			dups++
		}
	}

	if err := j.store.TouchSourceFetched(ctx, source.ID, time.Now().UTC()); err != nil {
		j.log.Error("touch source", "source_id", source.ID, "error", err)
	}

	j.log.Debug("source processed",
		"source_id", source.ID, "name", source.Name, "new_items", newItems, "duplicates", dups)
	return newItems, dups, true
}
