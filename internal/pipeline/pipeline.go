// Package pipeline runs one publish pass over the article queue: dedup,
// rewrite, image resolution, board submission and write-back. Items are
// handled one at a time; serializing the run keeps the board host from
// throttling the account.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sportpick-hq/newsdesk/internal/dedup"
	"github.com/sportpick-hq/newsdesk/internal/domain"
	"github.com/sportpick-hq/newsdesk/internal/logger"
	"github.com/sportpick-hq/newsdesk/internal/publish"
	"github.com/sportpick-hq/newsdesk/internal/rewrite"
	"github.com/sportpick-hq/newsdesk/internal/storage"
	"github.com/sportpick-hq/newsdesk/pkg/notify"
)

// ArticleFetcher downloads the article text for a queue item.
type ArticleFetcher interface {
	FetchArticle(ctx context.Context, url string) (domain.Article, error)
}

// Rewriter produces the publishable article. It never fails; the worst case
// is a templated fallback.
type Rewriter interface {
	Rewrite(ctx context.Context, req rewrite.Request) domain.RewrittenArticle
}

// ImageResolver finds upload-ready image bytes for an article page.
type ImageResolver interface {
	Resolve(ctx context.Context, pageURL string) domain.ResolvedImage
}

// Publisher submits one article to its routed board.
type Publisher interface {
	EnsureCredentials() error
	Publish(ctx context.Context, item domain.QueueItem, art domain.RewrittenArticle, img domain.ResolvedImage) publish.AttemptResult
}

// Notifier mirrors audit events downstream, best-effort.
type Notifier interface {
	Notify(ctx context.Context, evt notify.Event) (int, error)
}

// Options tune one run.
type Options struct {
	BatchSize      int
	Threshold      float64
	BodyPrefixLen  int
	PerItemTimeout time.Duration
}

// Orchestrator wires the pipeline stages over the queue store.
type Orchestrator struct {
	store     storage.Store
	fetcher   ArticleFetcher
	rewriter  Rewriter
	resolver  ImageResolver
	publisher Publisher
	fanout    Notifier
	opts      Options
	log       logger.Logger
	now       func() time.Time
}

// New builds an orchestrator. fanout may be nil.
func New(store storage.Store, fetcher ArticleFetcher, rewriter Rewriter, resolver ImageResolver, publisher Publisher, fanout Notifier, opts Options, log logger.Logger) *Orchestrator {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.Threshold <= 0 {
		opts.Threshold = 0.8
	}
	if opts.BodyPrefixLen <= 0 {
		opts.BodyPrefixLen = 550
	}
	if opts.PerItemTimeout <= 0 {
		opts.PerItemTimeout = 3 * time.Minute
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Orchestrator{
		store:     store,
		fetcher:   fetcher,
		rewriter:  rewriter,
		resolver:  resolver,
		publisher: publisher,
		fanout:    fanout,
		opts:      opts,
		log:       log,
		now:       time.Now,
	}
}

// Run executes one pass. The summary is returned even when the run aborts
// partway so callers always log it.
func (o *Orchestrator) Run(ctx context.Context) (domain.RunSummary, error) {
	var summary domain.RunSummary

	// A board account without a credential fails the whole run before any
	// queue row is read or modified.
	if err := o.publisher.EnsureCredentials(); err != nil {
		return summary, err
	}

	items, err := o.store.ItemsByStatus(domain.StatusNew)
	if err != nil {
		return summary, fmt.Errorf("load queue: %w", err)
	}
	batch := newestFirst(items)
	if len(batch) > o.opts.BatchSize {
		batch = batch[:o.opts.BatchSize]
	}
	summary.Processed = len(batch)
	if len(batch) == 0 {
		return summary, nil
	}

	filter := dedup.NewFilter(o.opts.Threshold, o.opts.BodyPrefixLen, o.log)
	o.seedPostedTitles(filter, batch)

	kept, dropped := filter.FilterTitles(batch)
	for _, d := range dropped {
		o.recordSkip(ctx, d.Item, d.Reason)
		summary.Skip++
	}

	for _, item := range newestFirst(kept) {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		switch o.processItem(ctx, filter, item) {
		case domain.LogOK:
			summary.OK++
		case domain.LogSkip:
			summary.Skip++
		default:
			summary.Fail++
		}
	}
	return summary, nil
}

// processItem resolves one queue row end to end and returns the log status
// it settled on.
func (o *Orchestrator) processItem(ctx context.Context, filter *dedup.Filter, item domain.QueueItem) string {
	itemCtx, cancel := context.WithTimeout(ctx, o.opts.PerItemTimeout)
	defer cancel()

	art, err := o.fetcher.FetchArticle(itemCtx, item.SourceURL)
	if err != nil {
		o.recordFail(ctx, item, fmt.Sprintf("fetch article: %v", err))
		return domain.LogFail
	}

	if filter.CheckBody(item, art.Body) {
		o.recordSkip(ctx, item, domain.ReasonDupBody)
		return domain.LogSkip
	}

	img := o.resolver.Resolve(itemCtx, item.SourceURL)
	rewritten := o.rewriter.Rewrite(itemCtx, rewrite.Request{
		SourceTitle: item.Title,
		SourceText:  art.Body,
		Topic:       item.Topic,
		HasImage:    img.HasImage(),
	})

	res := o.publisher.Publish(itemCtx, item, rewritten, img)
	switch res.Kind {
	case publish.ResultSuccess:
		o.recordPosted(ctx, item, rewritten.Title, res.PostID)
		return domain.LogOK
	case publish.ResultAlreadyPosted:
		// The log already holds the OK entry; only the row catches up.
		if err := o.store.SetStatus(item.ID, domain.StatusPosted, o.now().UTC(), ""); err != nil {
			o.logStoreError(item, err)
		}
		return domain.LogOK
	default:
		o.recordFail(ctx, item, fmt.Sprint(res.Err))
		return domain.LogFail
	}
}

func (o *Orchestrator) seedPostedTitles(filter *dedup.Filter, batch []domain.QueueItem) {
	seen := map[string]struct{}{}
	for _, item := range batch {
		if _, done := seen[item.Topic]; done {
			continue
		}
		seen[item.Topic] = struct{}{}
		titles, err := o.store.PostedTitles(item.Topic)
		if err != nil {
			o.log.WarnObj("posted titles lookup failed", "pipeline_error", map[string]any{
				"topic": item.Topic,
				"error": err.Error(),
			})
			continue
		}
		filter.SeedTitles(item.Topic, titles)
	}
}

// recordSkip logs a suppression. The queue row stays NEW.
func (o *Orchestrator) recordSkip(ctx context.Context, item domain.QueueItem, reason string) {
	entry := domain.PublishLogEntry{
		SourceURL:      item.SourceURL,
		PublishedTitle: item.Title,
		Status:         domain.LogSkip,
		Reason:         reason,
	}
	if err := o.store.AppendLog(entry); err != nil {
		o.logStoreError(item, err)
	}
	o.emit(ctx, item, entry, "")
}

func (o *Orchestrator) recordPosted(ctx context.Context, item domain.QueueItem, publishedTitle, postID string) {
	postedAt := o.now().UTC()
	if err := o.store.SetStatus(item.ID, domain.StatusPosted, postedAt, ""); err != nil {
		o.logStoreError(item, err)
	}
	entry := domain.PublishLogEntry{
		SourceURL:      item.SourceURL,
		PublishedTitle: publishedTitle,
		PostedAt:       postedAt,
		Status:         domain.LogOK,
	}
	if err := o.store.AppendLog(entry); err != nil {
		o.logStoreError(item, err)
	}
	o.emit(ctx, item, entry, postID)
}

func (o *Orchestrator) recordFail(ctx context.Context, item domain.QueueItem, reason string) {
	if err := o.store.SetStatus(item.ID, domain.StatusFail, time.Time{}, reason); err != nil {
		o.logStoreError(item, err)
	}
	entry := domain.PublishLogEntry{
		SourceURL:      item.SourceURL,
		PublishedTitle: item.Title,
		Status:         domain.LogFail,
		Reason:         reason,
	}
	if err := o.store.AppendLog(entry); err != nil {
		o.logStoreError(item, err)
	}
	o.emit(ctx, item, entry, "")
}

// emit mirrors one outcome through the notifier fanout. Sink failures are
// logged and ignored.
func (o *Orchestrator) emit(ctx context.Context, item domain.QueueItem, entry domain.PublishLogEntry, postID string) {
	if o.fanout == nil {
		return
	}
	evt := notify.NewEvent(entry.SourceURL, item.Topic, entry.PublishedTitle, entry.Status, entry.Reason, postID)
	if _, err := o.fanout.Notify(ctx, evt); err != nil {
		o.log.WarnObj("audit event delivery failed", "notify_error", map[string]any{
			"source_url": entry.SourceURL,
			"error":      err.Error(),
		})
	}
}

func (o *Orchestrator) logStoreError(item domain.QueueItem, err error) {
	o.log.ErrorObj("store write failed", "pipeline_error", map[string]any{
		"id":    item.ID,
		"error": err.Error(),
	})
}

func newestFirst(items []domain.QueueItem) []domain.QueueItem {
	out := append([]domain.QueueItem(nil), items...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DiscoveredAt.After(out[j].DiscoveredAt)
	})
	return out
}
