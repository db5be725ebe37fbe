package publish

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/sportpick-hq/newsdesk/internal/domain"
	"github.com/sportpick-hq/newsdesk/internal/logger"
)

type scriptedSubmitter struct {
	results []AttemptResult
	calls   []string
}

func (s *scriptedSubmitter) Submit(_ context.Context, _ Board, _ string, sub submission, _ domain.ResolvedImage) AttemptResult {
	s.calls = append(s.calls, sub.name)
	if len(s.results) == 0 {
		return Failure(errors.New("script exhausted"))
	}
	res := s.results[0]
	if len(s.results) > 1 {
		s.results = s.results[1:]
	}
	return res
}

type fakePosted struct{ urls map[string]bool }

func (f fakePosted) HasPosted(u string) (bool, error) { return f.urls[u], nil }

func testRoutes(t *testing.T) *Routes {
	t.Helper()
	routes, err := NewRoutes([]Board{
		{ID: "news", Topic: "*", Slug: "sports_news", Account: AccountNews},
		{ID: "soccer", Topic: "축구", Slug: "soccer_analysis", Account: AccountAnalysis},
	})
	if err != nil {
		t.Fatalf("NewRoutes: %v", err)
	}
	return routes
}

func testArticle() domain.RewrittenArticle {
	return domain.RewrittenArticle{
		Title:    "리버풀, 후반 역전승",
		Body:     "■ 요약\n본문.",
		Hashtags: []string{"#축구", "#리버풀"},
	}
}

func newTestPublisher(t *testing.T, sub Submitter, posted PostedChecker, opts Options) (*Publisher, *[]time.Duration) {
	t.Helper()
	p := New(sub, testRoutes(t), map[string]string{
		AccountNews:     "news-token",
		AccountAnalysis: "analysis-token",
	}, posted, opts, logger.NopLogger{})
	var slept []time.Duration
	p.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return p, &slept
}

func TestPublishShortCircuitsAlreadyPosted(t *testing.T) {
	sub := &scriptedSubmitter{}
	p, _ := newTestPublisher(t, sub, fakePosted{urls: map[string]bool{"https://s.example/a": true}}, Options{})

	res := p.Publish(context.Background(), domain.QueueItem{SourceURL: "https://s.example/a", Topic: "축구"}, testArticle(), domain.ResolvedImage{})
	if res.Kind != ResultAlreadyPosted {
		t.Fatalf("expected already-posted, got %s", res)
	}
	if len(sub.calls) != 0 {
		t.Fatalf("already-posted item must make zero submissions, got %v", sub.calls)
	}
}

func TestPublishWalksLadderUntilSuccess(t *testing.T) {
	sub := &scriptedSubmitter{results: []AttemptResult{
		Failure(errors.New("html refused")),
		Failure(errors.New("html refused")),
		Failure(errors.New("plain refused")),
		Failure(errors.New("plain refused")),
		Success("post-77"),
	}}
	p, _ := newTestPublisher(t, sub, fakePosted{}, Options{})

	img := domain.ResolvedImage{Bytes: []byte{1}, MIMEType: "image/jpeg", FileName: "a.jpg"}
	res := p.Publish(context.Background(), domain.QueueItem{SourceURL: "https://s.example/b", Topic: "야구"}, testArticle(), img)
	if res.Kind != ResultSuccess || res.PostID != "post-77" {
		t.Fatalf("expected success post-77, got %s", res)
	}
	if len(sub.calls) != 5 {
		t.Fatalf("expected 5 submissions, got %v", sub.calls)
	}
	if !strings.HasPrefix(sub.calls[0], "multipart-html-image") {
		t.Fatalf("ladder must start with the richest variant, got %v", sub.calls)
	}
	if !strings.HasPrefix(sub.calls[4], "multipart-placeholder-image") {
		t.Fatalf("unexpected winning variant order: %v", sub.calls)
	}
}

func TestPublishAllVariantsRejected(t *testing.T) {
	sub := &scriptedSubmitter{results: []AttemptResult{Failure(errors.New("nope"))}}
	p, _ := newTestPublisher(t, sub, fakePosted{}, Options{})

	res := p.Publish(context.Background(), domain.QueueItem{SourceURL: "https://s.example/c", Topic: "농구"}, testArticle(), domain.ResolvedImage{})
	if res.Kind != ResultFailure {
		t.Fatalf("expected failure, got %s", res)
	}
	// Korean title, no image: two text-only shapes with two subject variants.
	if len(sub.calls) != 4 {
		t.Fatalf("expected 4 submissions, got %v", sub.calls)
	}
}

func TestBackoffGrowsAndGivesUpAtCeiling(t *testing.T) {
	sub := &scriptedSubmitter{results: []AttemptResult{RateLimited("too many posts")}}
	p, slept := newTestPublisher(t, sub, fakePosted{}, Options{
		RateLimitBase:    20 * time.Second,
		RateLimitRetries: 3,
	})

	res := p.Publish(context.Background(), domain.QueueItem{SourceURL: "https://s.example/d", Topic: "배구"}, testArticle(), domain.ResolvedImage{})
	if res.Kind != ResultFailure {
		t.Fatalf("exhausted throttle must surface as failure, got %s", res)
	}
	if len(sub.calls) != 4 {
		t.Fatalf("expected ceiling+1 submissions of one variant, got %d", len(sub.calls))
	}
	want := []time.Duration{20 * time.Second, 40 * time.Second, 60 * time.Second}
	if len(*slept) != len(want) {
		t.Fatalf("expected %d backoff sleeps, got %v", len(want), *slept)
	}
	for i, d := range *slept {
		if d != want[i] {
			t.Fatalf("backoff[%d] = %v, want %v", i, d, want[i])
		}
		if i > 0 && d < (*slept)[i-1] {
			t.Fatalf("backoff must be non-decreasing: %v", *slept)
		}
	}
}

func TestInterPostPacing(t *testing.T) {
	sub := &scriptedSubmitter{results: []AttemptResult{Success("p1")}}
	p, slept := newTestPublisher(t, sub, fakePosted{}, Options{InterPostDelay: 8 * time.Second})

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	p.now = func() time.Time { return now }

	item := domain.QueueItem{SourceURL: "https://s.example/e", Topic: "축구"}
	if res := p.Publish(context.Background(), item, testArticle(), domain.ResolvedImage{}); res.Kind != ResultSuccess {
		t.Fatalf("first publish: %s", res)
	}
	if len(*slept) != 0 {
		t.Fatalf("first post must not wait, slept %v", *slept)
	}

	now = base.Add(3 * time.Second)
	sub.results = []AttemptResult{Success("p2")}
	if res := p.Publish(context.Background(), item, testArticle(), domain.ResolvedImage{}); res.Kind != ResultSuccess {
		t.Fatalf("second publish: %s", res)
	}
	if len(*slept) != 1 || (*slept)[0] != 5*time.Second {
		t.Fatalf("expected 5s pacing sleep, got %v", *slept)
	}
}

func TestPacingAfterExhaustedThrottle(t *testing.T) {
	sub := &scriptedSubmitter{results: []AttemptResult{RateLimited("flood")}}
	p, slept := newTestPublisher(t, sub, fakePosted{}, Options{
		InterPostDelay:   8 * time.Second,
		RateLimitBase:    10 * time.Second,
		RateLimitRetries: 1,
	})

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	p.now = func() time.Time { return now }

	item := domain.QueueItem{SourceURL: "https://s.example/g", Topic: "축구"}
	if res := p.Publish(context.Background(), item, testArticle(), domain.ResolvedImage{}); res.Kind != ResultFailure {
		t.Fatalf("exhausted throttle must fail, got %s", res)
	}
	if len(*slept) != 1 || (*slept)[0] != 10*time.Second {
		t.Fatalf("expected one backoff sleep, got %v", *slept)
	}

	// The failed attempt still counts for pacing: the next item waits out
	// the remainder of the inter-post delay before submitting.
	now = base.Add(2 * time.Second)
	*slept = nil
	sub.results = []AttemptResult{Success("p9")}
	if res := p.Publish(context.Background(), item, testArticle(), domain.ResolvedImage{}); res.Kind != ResultSuccess {
		t.Fatalf("second publish: %s", res)
	}
	if len(*slept) == 0 || (*slept)[0] != 6*time.Second {
		t.Fatalf("expected 6s pacing sleep after failed attempt, got %v", *slept)
	}
}

func TestPublishMissingCredential(t *testing.T) {
	sub := &scriptedSubmitter{}
	p := New(sub, testRoutes(t), map[string]string{AccountNews: "tok"}, fakePosted{}, Options{}, logger.NopLogger{})

	// 축구 routes to the analysis board, which has no token here.
	res := p.Publish(context.Background(), domain.QueueItem{SourceURL: "https://s.example/f", Topic: "축구"}, testArticle(), domain.ResolvedImage{})
	if res.Kind != ResultFailure {
		t.Fatalf("expected failure, got %s", res)
	}
	if len(sub.calls) != 0 {
		t.Fatalf("missing credential must not reach the network, got %v", sub.calls)
	}
}

func TestBuildLadderShapes(t *testing.T) {
	subs := buildLadder("Liverpool win", "body", false)
	if len(subs) != 2 {
		t.Fatalf("ASCII title without image: want 2 variants, got %d", len(subs))
	}

	subs = buildLadder("리버풀 승리", "body", true)
	if len(subs) != 10 {
		t.Fatalf("Korean title with image: want 10 variants, got %d", len(subs))
	}
	if !subs[0].multipart || !subs[0].htmlMode || !subs[0].withImage {
		t.Fatalf("first variant must be multipart html with image: %+v", subs[0])
	}
	last := subs[len(subs)-1]
	if last.multipart || last.htmlMode || last.withImage {
		t.Fatalf("last variant must be plain form text: %+v", last)
	}
	if !strings.HasSuffix(last.name, "-encoded-subject") {
		t.Fatalf("encoded subject variant must follow the raw one: %q", last.name)
	}

	var placeholders int
	for _, s := range subs {
		if strings.Contains(s.body, imagePlaceholder) {
			placeholders++
			if !strings.HasPrefix(s.name, "multipart-placeholder-image") {
				t.Fatalf("placeholder markup leaked into variant %q", s.name)
			}
			if !s.withImage {
				t.Fatalf("placeholder variant must carry the upload: %+v", s)
			}
		}
	}
	if placeholders != 2 {
		t.Fatalf("expected the placeholder rung in both subject variants, got %d", placeholders)
	}
}

func TestBuildLadderTruncatesLongSubject(t *testing.T) {
	long := strings.Repeat("손흥민이 유럽 무대에서 ", 20)
	subs := buildLadder(long, "body", false)
	want := truncateSubject(long)
	if n := len([]rune(want)); n > subjectMaxRunes {
		t.Fatalf("truncated subject is %d runes, cap is %d", n, subjectMaxRunes)
	}
	for _, s := range subs {
		subject := s.subject
		if strings.HasSuffix(s.name, "-encoded-subject") {
			decoded, err := url.QueryUnescape(subject)
			if err != nil {
				t.Fatalf("variant %q subject does not decode: %v", s.name, err)
			}
			subject = decoded
		}
		if subject != want {
			t.Fatalf("variant %q subject = %q, want the capped title", s.name, subject)
		}
	}

	if got := truncateSubject("짧은 제목"); got != "짧은 제목" {
		t.Fatalf("short subject must pass through, got %q", got)
	}
}

func TestRenderHTMLBoldsHeaders(t *testing.T) {
	got := renderHTML("■ 요약\n첫 문장 <b>태그</b>\n\n- 불릿")
	if !strings.Contains(got, "<b>■ 요약</b>") {
		t.Fatalf("header not bolded: %q", got)
	}
	if strings.Contains(got, "<b>태그</b>") {
		t.Fatalf("source markup must be escaped: %q", got)
	}
}

func TestIsRateLimited(t *testing.T) {
	cases := []struct {
		status  int
		code    string
		message string
		want    bool
	}{
		{429, "", "", true},
		{200, "POST_LIMIT_EXCEEDED", "", true},
		{200, "post_limit_exceeded", "", true},
		{403, "", "너무 많은 게시물을 등록했습니다. 잠시 후 다시 시도하세요.", true},
		{500, "", "Too Many Posts detected, try again shortly", true},
		{400, "BAD_SUBJECT", "subject contains invalid characters", false},
		{500, "", "internal error", false},
	}
	for i, tc := range cases {
		if got := isRateLimited(tc.status, tc.code, tc.message); got != tc.want {
			t.Errorf("case %d: isRateLimited(%d, %q, %q) = %v", i, tc.status, tc.code, tc.message, got)
		}
	}
}
