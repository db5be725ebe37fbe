package ingest

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sportpick-hq/newsdesk/internal/domain"
	"github.com/sportpick-hq/newsdesk/pkg/httpclient"
)

const maxHTMLBodyBytes = 1 << 20 // 1 MiB

// Paragraph containers tried in order. Korean news portals vary wildly,
// so the list runs from the specific article wrappers down to bare <p>.
var bodySelectors = []string{
	"#newsct_article",
	".article_body",
	"#articleBody",
	".news_view",
	"article",
	"main",
	"body",
}

// Boilerplate markers that disqualify a paragraph.
var junkMarkers = []string{
	"무단전재",
	"재배포 금지",
	"저작권자",
	"기사제보",
	"사진=",
	"ⓒ",
	"copyright",
	"all rights reserved",
}

// Scraper fetches article pages and extracts title and body text.
type Scraper struct {
	client httpclient.Client
}

// NewScraper constructs a scraper over the provided HTTP client.
func NewScraper(client httpclient.Client) *Scraper {
	return &Scraper{client: client}
}

// FetchArticle downloads the page and returns its title, body text and
// preview image URL.
func (s *Scraper) FetchArticle(ctx context.Context, pageURL string) (domain.Article, error) {
	resp, err := s.client.Get(ctx, pageURL, nil)
	if err != nil {
		return domain.Article{}, fmt.Errorf("http fetch: %w", err)
	}
	if resp.StatusCode() != 200 {
		return domain.Article{}, fmt.Errorf("status %d fetching %s", resp.StatusCode(), pageURL)
	}

	body := resp.Body()
	if len(body) > maxHTMLBodyBytes {
		body = body[:maxHTMLBodyBytes]
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return domain.Article{}, fmt.Errorf("parse html: %w", err)
	}

	art := domain.Article{URL: pageURL}
	art.Title = firstNonEmpty(
		metaContent(doc, `meta[property="og:title"]`),
		strings.TrimSpace(doc.Find("title").First().Text()),
	)
	art.ImageURL = metaContent(doc, `meta[property="og:image"]`)
	art.Body = extractBody(doc)
	if art.Body == "" {
		return art, fmt.Errorf("no article text found at %s", pageURL)
	}
	return art, nil
}

// extractBody harvests paragraph text from the first selector that yields
// enough usable content.
func extractBody(doc *goquery.Document) string {
	for _, sel := range bodySelectors {
		container := doc.Find(sel).First()
		if container.Length() == 0 {
			continue
		}
		var paras []string
		container.Find("p").Each(func(_ int, p *goquery.Selection) {
			line := strings.Join(strings.Fields(p.Text()), " ")
			if keepParagraph(line) {
				paras = append(paras, line)
			}
		})
		if len(paras) == 0 {
			// Portals that skip <p> entirely get the container text.
			line := strings.Join(strings.Fields(container.Text()), " ")
			if keepParagraph(line) {
				paras = append(paras, line)
			}
		}
		if body := strings.Join(paras, "\n"); len([]rune(body)) >= 80 {
			return body
		}
	}
	return ""
}

// keepParagraph drops short fragments and publisher boilerplate.
func keepParagraph(line string) bool {
	if len([]rune(line)) < 20 {
		return false
	}
	lower := strings.ToLower(line)
	for _, marker := range junkMarkers {
		if strings.Contains(lower, marker) {
			return false
		}
	}
	return true
}

func metaContent(doc *goquery.Document, sel string) string {
	if node := doc.Find(sel).First(); node.Length() > 0 {
		if val, ok := node.Attr("content"); ok {
			return strings.TrimSpace(val)
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
