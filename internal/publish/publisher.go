package publish

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sportpick-hq/newsdesk/internal/domain"
	"github.com/sportpick-hq/newsdesk/internal/logger"
)

// PostedChecker answers whether a source URL already published successfully.
type PostedChecker interface {
	HasPosted(sourceURL string) (bool, error)
}

// Options tune throttle handling and pacing.
type Options struct {
	InterPostDelay   time.Duration
	RateLimitBase    time.Duration
	RateLimitRetries int
}

// Publisher walks the content-variant ladder for each article, retrying
// throttled submissions with a growing delay and pacing consecutive posts.
type Publisher struct {
	client Submitter
	routes *Routes
	tokens map[string]string
	posted PostedChecker
	opts   Options
	log    logger.Logger

	sleep    func(context.Context, time.Duration) error
	now      func() time.Time
	lastPost time.Time
}

// New builds a publisher. tokens maps board accounts to credentials.
func New(client Submitter, routes *Routes, tokens map[string]string, posted PostedChecker, opts Options, log logger.Logger) *Publisher {
	if opts.InterPostDelay <= 0 {
		opts.InterPostDelay = 8 * time.Second
	}
	if opts.RateLimitBase <= 0 {
		opts.RateLimitBase = 20 * time.Second
	}
	if opts.RateLimitRetries <= 0 {
		opts.RateLimitRetries = 3
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Publisher{
		client: client,
		routes: routes,
		tokens: tokens,
		posted: posted,
		opts:   opts,
		log:    log,
		sleep:  sleepCtx,
		now:    time.Now,
	}
}

// EnsureCredentials verifies every configured board account has a token.
// Called before a run touches any queue row.
func (p *Publisher) EnsureCredentials() error {
	for _, acc := range p.routes.Accounts() {
		if strings.TrimSpace(p.tokens[acc]) == "" {
			return fmt.Errorf("no credential configured for board account %q", acc)
		}
	}
	return nil
}

// Publish submits one rewritten article. An already-published source URL
// returns without any network traffic.
func (p *Publisher) Publish(ctx context.Context, item domain.QueueItem, art domain.RewrittenArticle, img domain.ResolvedImage) AttemptResult {
	if p.posted != nil {
		done, err := p.posted.HasPosted(item.SourceURL)
		if err != nil {
			p.log.WarnObj("publish log lookup failed", "publish_error", map[string]any{
				"source_url": item.SourceURL,
				"error":      err.Error(),
			})
		} else if done {
			return AlreadyPosted()
		}
	}

	board := p.routes.ForTopic(item.Topic)
	token := p.tokens[board.Account]
	if token == "" {
		return Failure(fmt.Errorf("no credential for account %q (board %q)", board.Account, board.ID))
	}

	if err := p.pace(ctx); err != nil {
		return Failure(err)
	}

	content := composeContent(art)
	ladder := buildLadder(art.Title, content, img.HasImage())

	var lastErr error
	for _, sub := range ladder {
		res, err := p.submitWithBackoff(ctx, board, token, sub, img)
		if err != nil {
			p.lastPost = p.now()
			return Failure(err)
		}
		if res.Kind == ResultSuccess {
			p.lastPost = p.now()
			p.log.InfoObj("article posted", "publish", map[string]any{
				"board":   board.ID,
				"variant": sub.name,
				"post_id": res.PostID,
			})
			return res
		}
		lastErr = res.Err
		p.log.WarnObj("variant rejected", "publish", map[string]any{
			"board":   board.ID,
			"variant": sub.name,
			"error":   fmt.Sprint(res.Err),
		})
	}
	p.lastPost = p.now()
	return Failure(fmt.Errorf("all content variants rejected: %w", lastErr))
}

// submitWithBackoff retries a throttled submission with a delay of
// base times the attempt number. After the retry ceiling the throttle is
// reported as an error, which aborts the whole ladder.
func (p *Publisher) submitWithBackoff(ctx context.Context, board Board, token string, sub submission, img domain.ResolvedImage) (AttemptResult, error) {
	for attempt := 1; ; attempt++ {
		res := p.client.Submit(ctx, board, token, sub, img)
		if res.Kind != ResultRateLimited {
			return res, nil
		}
		if attempt > p.opts.RateLimitRetries {
			return res, fmt.Errorf("rate limited after %d attempts: %s", attempt, res.Reason)
		}
		delay := p.opts.RateLimitBase * time.Duration(attempt)
		p.log.WarnObj("rate limited, backing off", "publish", map[string]any{
			"board":   board.ID,
			"attempt": attempt,
			"delay":   delay.String(),
			"reason":  res.Reason,
		})
		if err := p.sleep(ctx, delay); err != nil {
			return res, err
		}
	}
}

// pace enforces the fixed delay between consecutive submissions. The delay
// is independent of throttle backoff and counts from the last attempt,
// successful or not.
func (p *Publisher) pace(ctx context.Context) error {
	if p.lastPost.IsZero() {
		return nil
	}
	elapsed := p.now().Sub(p.lastPost)
	if remaining := p.opts.InterPostDelay - elapsed; remaining > 0 {
		return p.sleep(ctx, remaining)
	}
	return nil
}

// composeContent appends the hashtag line to the article body.
func composeContent(art domain.RewrittenArticle) string {
	body := strings.TrimRight(art.Body, "\n ")
	if len(art.Hashtags) == 0 {
		return body
	}
	return body + "\n\n" + strings.Join(art.Hashtags, " ")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
