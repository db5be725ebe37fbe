package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/sportpick-hq/newsdesk/internal/domain"
	"github.com/sportpick-hq/newsdesk/internal/logger"
)

// FeedParser is the gofeed surface the collector needs.
type FeedParser interface {
	ParseURLWithContext(feedURL string, ctx context.Context) (*gofeed.Feed, error)
}

// Queue receives discovered items.
type Queue interface {
	UpsertItem(item domain.QueueItem) error
}

// Collector walks the configured sources and upserts every feed entry into
// the queue. Re-discovered URLs update title fields but never reset status.
type Collector struct {
	parser FeedParser
	queue  Queue
	log    logger.Logger
	now    func() time.Time
}

// NewCollector builds a collector; a nil parser gets the gofeed default.
func NewCollector(parser FeedParser, queue Queue, log logger.Logger) *Collector {
	if parser == nil {
		parser = gofeed.NewParser()
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Collector{parser: parser, queue: queue, log: log, now: time.Now}
}

// Run ingests all sources and returns the number of upserted items. Source
// failures are aggregated; one broken feed never stops the rest.
func (c *Collector) Run(ctx context.Context, sources []Source) (int, error) {
	var errs []error
	total := 0

	for i, src := range sources {
		select {
		case <-ctx.Done():
			errs = append(errs, ctx.Err())
			return total, errors.Join(errs...)
		default:
		}

		added, err := c.ingestSource(ctx, src)
		total += added
		if err != nil {
			errs = append(errs, fmt.Errorf("source %q: %w", src.ID, err))
			c.log.WarnObj("feed ingestion failed", "ingest_error", map[string]any{
				"source_id": src.ID,
				"error":     err.Error(),
			})
		} else {
			c.log.InfoObj("feed ingested", "ingest", map[string]any{
				"source_id": src.ID,
				"items":     added,
			})
		}

		if delay := time.Duration(src.RequestDelayMS) * time.Millisecond; delay > 0 && i < len(sources)-1 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				errs = append(errs, ctx.Err())
				return total, errors.Join(errs...)
			case <-timer.C:
			}
		}
	}
	return total, errors.Join(errs...)
}

func (c *Collector) ingestSource(ctx context.Context, src Source) (int, error) {
	feed, err := c.parser.ParseURLWithContext(src.FeedURL, ctx)
	if err != nil {
		return 0, fmt.Errorf("parse feed: %w", err)
	}

	added := 0
	for _, entry := range feed.Items {
		title := strings.TrimSpace(entry.Title)
		link := strings.TrimSpace(entry.Link)
		if title == "" || link == "" {
			continue
		}

		discovered := c.now().UTC()
		if entry.PublishedParsed != nil {
			discovered = entry.PublishedParsed.UTC()
		}

		item := domain.QueueItem{
			ID:           CanonicalURL(link),
			DiscoveredAt: discovered,
			Topic:        src.Topic,
			Title:        title,
			SourceURL:    link,
			Status:       domain.StatusNew,
		}
		if err := c.queue.UpsertItem(item); err != nil {
			return added, fmt.Errorf("upsert %s: %w", item.ID, err)
		}
		added++
	}
	return added, nil
}
