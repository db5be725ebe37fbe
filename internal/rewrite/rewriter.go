// Package rewrite turns source article text into a structurally distinct
// bulletin article plus a hashtag block. Attempt outcomes are logged, never
// returned: the component always produces something publishable.
package rewrite

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sportpick-hq/newsdesk/internal/domain"
	"github.com/sportpick-hq/newsdesk/internal/logger"
)

// Generator produces text for a prompt. The production implementation is the
// Gemini client; tests inject fakes.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Options bound the accepted output.
type Options struct {
	MinChars          int // without image
	MinCharsWithImage int
	MaxChars          int
	Retries           int // total generation attempts before fallback
}

// Request carries one item's rewrite inputs.
type Request struct {
	SourceTitle string
	SourceText  string
	Topic       string
	HasImage    bool
}

// Rewriter drives generation attempts through the quality gate.
type Rewriter struct {
	gen  Generator
	opts Options
	log  logger.Logger
}

// New builds a rewriter. Zero option fields fall back to the defaults used
// across the pipeline.
func New(gen Generator, opts Options, log logger.Logger) *Rewriter {
	if opts.MinChars <= 0 {
		opts.MinChars = 1500
	}
	if opts.MinCharsWithImage <= 0 {
		opts.MinCharsWithImage = 1200
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = 2500
	}
	if opts.Retries <= 0 {
		opts.Retries = 2
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Rewriter{gen: gen, opts: opts, log: log}
}

var tagLineRe = regexp.MustCompile(`#[^\s#]+`)

// Rewrite produces an accepted article. Generation failures and gate
// rejections fall through to the templated fallback, so the result is always
// usable and no error escapes this component.
func (r *Rewriter) Rewrite(ctx context.Context, req Request) domain.RewrittenArticle {
	minChars := r.opts.MinChars
	if req.HasImage {
		minChars = r.opts.MinCharsWithImage
	}

	for attempt := 1; attempt <= r.opts.Retries; attempt++ {
		prompt := buildPrompt(req, attempt > 1)
		raw, err := r.gen.Generate(ctx, prompt)
		if err != nil {
			r.log.WarnObj("rewrite generation failed", "rewrite_attempt", map[string]any{
				"attempt": attempt,
				"title":   req.SourceTitle,
				"error":   err.Error(),
			})
			continue
		}

		body, tags := splitTags(raw)
		tags = EnsureTags(tags, body, req.Topic)
		if err := validate(body, req.SourceText, minChars, r.opts.MaxChars); err != nil {
			r.log.WarnObj("rewrite gate rejected attempt", "rewrite_attempt", map[string]any{
				"attempt": attempt,
				"title":   req.SourceTitle,
				"reason":  err.Error(),
			})
			continue
		}

		r.log.InfoObj("rewrite accepted", "rewrite_result", map[string]any{
			"attempt": attempt,
			"chars":   len([]rune(body)),
			"tags":    len(tags),
		})
		return domain.RewrittenArticle{Title: req.SourceTitle, Body: body, Hashtags: tags}
	}

	// All generation attempts exhausted: the templated rewrite is accepted
	// unconditionally so the pipeline always has something publishable.
	fb := buildFallback(req)
	r.log.InfoObj("rewrite fell back to template", "rewrite_result", map[string]any{
		"title": req.SourceTitle,
		"chars": len([]rune(fb.Body)),
	})
	return fb
}

// splitTags separates hashtag-only lines from the article body and collects
// every hashtag token found anywhere in the output.
func splitTags(raw string) (string, []string) {
	var bodyLines []string
	seen := make(map[string]struct{})
	var tags []string

	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		trimmed := strings.TrimSpace(line)
		lineTags := tagLineRe.FindAllString(trimmed, -1)
		for _, tg := range lineTags {
			if _, dup := seen[tg]; dup {
				continue
			}
			seen[tg] = struct{}{}
			tags = append(tags, tg)
		}
		// A line consisting only of hashtags belongs to the tag block.
		if len(lineTags) > 0 && strings.TrimSpace(tagLineRe.ReplaceAllString(trimmed, "")) == "" {
			continue
		}
		bodyLines = append(bodyLines, line)
	}
	return strings.TrimSpace(strings.Join(bodyLines, "\n")), tags
}

func buildPrompt(req Request, strict bool) string {
	var b strings.Builder
	b.WriteString("다음 스포츠 기사를 완전히 새로운 문장으로 재작성하라.\n\n")
	fmt.Fprintf(&b, "원문 제목: %s\n원문 본문:\n%s\n\n", req.SourceTitle, req.SourceText)
	b.WriteString("작성 규칙:\n")
	fmt.Fprintf(&b, "1. 아래 다섯 개 섹션 제목을 정확히 이 표기로 사용한다: %s\n", strings.Join(sectionHeaders, " / "))
	b.WriteString("2. ■ 핵심 포인트 아래에 '- '로 시작하는 불릿을 3개 이상 쓴다.\n")
	b.WriteString("3. 마지막 줄에 해시태그를 6개 이상 쓴다.\n")
	b.WriteString("4. 원문 문장을 그대로 옮기지 말고 모든 문장을 새로 구성한다.\n")
	if req.HasImage {
		b.WriteString("5. 전체 길이는 1200자 이상 2500자 이하로 쓴다.\n")
	} else {
		b.WriteString("5. 전체 길이는 1500자 이상 2500자 이하로 쓴다.\n")
	}
	if strict {
		b.WriteString("6. 원문과 10단어 이상 연속으로 겹치는 구간이 하나라도 있으면 안 된다.\n")
	}
	return b.String()
}
