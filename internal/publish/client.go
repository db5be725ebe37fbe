package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/sportpick-hq/newsdesk/internal/domain"
	"github.com/sportpick-hq/newsdesk/internal/logger"
	"github.com/sportpick-hq/newsdesk/pkg/httpclient"
)

// Submitter performs one board submission. The concrete client talks HTTP;
// tests swap in scripted fakes.
type Submitter interface {
	Submit(ctx context.Context, board Board, token string, sub submission, img domain.ResolvedImage) AttemptResult
}

// apiResponse is the board's JSON envelope.
type apiResponse struct {
	OK      bool   `json:"ok"`
	PostID  string `json:"post_id"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// BulletinClient posts to the bulletin host over HTTP.
type BulletinClient struct {
	baseURL string
	http    *resty.Client
	log     logger.Logger
}

// NewBulletinClient builds a client for the given board host.
func NewBulletinClient(baseURL string, timeout time.Duration, log logger.Logger) *BulletinClient {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &BulletinClient{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    httpclient.NewRestyHTTPClient(timeout),
		log:     log,
	}
}

// Submit sends one content variant and classifies the response.
func (c *BulletinClient) Submit(ctx context.Context, board Board, token string, sub submission, img domain.ResolvedImage) AttemptResult {
	mode := "plain"
	if sub.htmlMode {
		mode = "html"
	}
	form := map[string]string{
		"subject": sub.subject,
		"content": sub.body,
		"mode":    mode,
	}

	req := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+token)

	if sub.multipart && sub.withImage && img.HasImage() {
		req.SetMultipartFormData(form)
		req.SetFileReader("upload", img.FileName, bytes.NewReader(img.Bytes))
	} else {
		req.SetFormData(form)
	}

	endpoint := fmt.Sprintf("%s/boards/%s/posts", c.baseURL, board.Slug)
	resp, err := req.Post(endpoint)
	if err != nil {
		return Failure(fmt.Errorf("post %s (%s): %w", board.Slug, sub.name, err))
	}

	var parsed apiResponse
	_ = json.Unmarshal(resp.Body(), &parsed)

	status := resp.StatusCode()
	if status < 300 && parsed.OK {
		return Success(parsed.PostID)
	}
	if isRateLimited(status, parsed.Code, parsed.Message) {
		reason := parsed.Message
		if reason == "" {
			reason = fmt.Sprintf("status %d", status)
		}
		return RateLimited(reason)
	}
	return Failure(fmt.Errorf("board rejected %s (%s): status %d: %s",
		board.Slug, sub.name, status, responseSnippet(resp.Body())))
}

// responseSnippet keeps diagnostics readable when the board answers with a
// full error page.
func responseSnippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	if s == "" {
		return "(empty body)"
	}
	return s
}
