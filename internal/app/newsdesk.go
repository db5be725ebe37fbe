// Package app wires configuration into the collector and publish runtimes.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sportpick-hq/newsdesk/internal/config"
	"github.com/sportpick-hq/newsdesk/internal/imaging"
	"github.com/sportpick-hq/newsdesk/internal/ingest"
	"github.com/sportpick-hq/newsdesk/internal/logger"
	"github.com/sportpick-hq/newsdesk/internal/pipeline"
	"github.com/sportpick-hq/newsdesk/internal/publish"
	"github.com/sportpick-hq/newsdesk/internal/rewrite"
	"github.com/sportpick-hq/newsdesk/internal/storage"
	"github.com/sportpick-hq/newsdesk/pkg/httpclient"
	"github.com/sportpick-hq/newsdesk/pkg/notify"
)

// Newsdesk is the publish-pipeline runtime: one Run call drains a batch of
// NEW queue rows through dedup, rewrite, imaging and board submission.
type Newsdesk struct {
	cfg          *config.Config
	log          logger.Logger
	store        storage.Store
	orchestrator *pipeline.Orchestrator
	gemini       *rewrite.GeminiGenerator
}

// NewNewsdesk builds the publish runtime from config files.
func NewNewsdesk(ctx context.Context, cfg *config.Config, log logger.Logger) (*Newsdesk, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if err := cfg.ValidatePublishing(); err != nil {
		return nil, err
	}

	store, err := storage.NewStore("bbolt", cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	routes, err := publish.LoadRoutes(cfg.BoardsFile)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("load boards registry: %w", err)
	}
	log.InfoObj("boards registry loaded", "boards_meta", map[string]any{
		"accounts": routes.Accounts(),
	})

	tokens := map[string]string{
		publish.AccountNews:     cfg.NewsAccountToken,
		publish.AccountAnalysis: cfg.AnalysisAccountToken,
	}
	boardClient := publish.NewBulletinClient(cfg.BulletinBaseURL, cfg.RequestTimeout, log)
	publisher := publish.New(boardClient, routes, tokens, store, publish.Options{
		InterPostDelay:   cfg.InterPostDelay,
		RateLimitBase:    cfg.RateLimitBase,
		RateLimitRetries: cfg.RateLimitRetries,
	}, log)

	var generator rewrite.Generator = disabledGenerator{}
	var gemini *rewrite.GeminiGenerator
	if cfg.GeminiAPIKey != "" {
		gemini, err = rewrite.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("init gemini client: %w", err)
		}
		generator = gemini
	} else {
		log.WarnObj("gemini api key missing, every article will use the fallback template", "rewrite_config", nil)
	}
	rewriter := rewrite.New(generator, rewrite.Options{
		MinChars:          cfg.RewriteMinChars,
		MinCharsWithImage: cfg.RewriteMinCharsWithImage,
		MaxChars:          cfg.RewriteMaxChars,
		Retries:           cfg.RewriteRetries,
	}, log)

	httpClient := httpclient.NewRestyClient(cfg.RequestTimeout)
	scraper := ingest.NewScraper(httpClient)
	resolver := imaging.NewResolver(httpClient, imaging.Options{
		MaxBytes:     cfg.ImageMaxBytes,
		MaxDimension: cfg.ImageMaxDimension,
	}, log)

	fanout, err := buildFanout(ctx, cfg, log)
	if err != nil {
		store.Close()
		return nil, err
	}

	orchestrator := pipeline.New(store, scraper, rewriter, resolver, publisher, fanout, pipeline.Options{
		BatchSize:     cfg.BatchSize,
		Threshold:     cfg.TitleSimilarityThreshold,
		BodyPrefixLen: cfg.BodyHashPrefixLen,
	}, log)

	return &Newsdesk{
		cfg:          cfg,
		log:          log,
		store:        store,
		orchestrator: orchestrator,
		gemini:       gemini,
	}, nil
}

// Run executes one publish pass and always logs the summary.
func (n *Newsdesk) Run(ctx context.Context) error {
	defer n.close()

	start := time.Now()
	summary, err := n.orchestrator.Run(ctx)
	n.log.InfoObj("run summary", "run_summary", map[string]any{
		"processed":  summary.Processed,
		"ok":         summary.OK,
		"fail":       summary.Fail,
		"skip":       summary.Skip,
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	if err != nil {
		return fmt.Errorf("pipeline run: %w", err)
	}
	return nil
}

func (n *Newsdesk) close() {
	if n.gemini != nil {
		if err := n.gemini.Close(); err != nil {
			n.log.WarnObj("gemini close failed", "error", err.Error())
		}
	}
	if err := n.store.Close(); err != nil {
		n.log.ErrorObj("storage close failed", "error", err.Error())
	}
}

// buildFanout assembles the optional audit-event sinks. No file configured
// means no fanout.
func buildFanout(ctx context.Context, cfg *config.Config, log logger.Logger) (pipeline.Notifier, error) {
	if cfg.NotifiersFile == "" {
		return nil, nil
	}
	sinkCfgs, err := notify.LoadSinks(cfg.NotifiersFile)
	if err != nil {
		return nil, fmt.Errorf("load notifier sinks: %w", err)
	}
	sinks, err := notify.BuildAll(ctx, notify.DefaultRegistry(), sinkCfgs, log)
	if err != nil {
		return nil, fmt.Errorf("build notifier sinks: %w", err)
	}
	fanout := notify.NewFanout(sinks)
	log.InfoObj("notifier sinks loaded", "notify_meta", map[string]any{
		"count": fanout.Size(),
	})
	return fanout, nil
}

// disabledGenerator stands in when no model credential is configured, which
// forces the rewrite fallback path.
type disabledGenerator struct{}

func (disabledGenerator) Generate(context.Context, string) (string, error) {
	return "", errors.New("text generation is not configured")
}
