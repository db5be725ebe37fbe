// Package imaging locates a representative image for an article and returns
// normalized bytes ready for upload. Every failure degrades to "no image";
// nothing here is fatal to the pipeline.
package imaging

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sportpick-hq/newsdesk/internal/domain"
	"github.com/sportpick-hq/newsdesk/internal/logger"
	"github.com/sportpick-hq/newsdesk/pkg/httpclient"
)

// Options bound the normalized payload.
type Options struct {
	MaxBytes     int
	MaxDimension int
}

// Resolver finds and downloads article images.
type Resolver struct {
	client httpclient.Client
	opts   Options
	log    logger.Logger
}

// NewResolver builds a resolver with the provided HTTP client.
func NewResolver(client httpclient.Client, opts Options, log logger.Logger) *Resolver {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 1_800_000
	}
	if opts.MaxDimension <= 0 {
		opts.MaxDimension = 1600
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Resolver{client: client, opts: opts, log: log}
}

// Resolve fetches the article page, locates the best image candidate, and
// returns upload-ready bytes. A zero ResolvedImage means no usable image.
func (r *Resolver) Resolve(ctx context.Context, pageURL string) domain.ResolvedImage {
	imgURL := r.findImageURL(ctx, pageURL)
	if imgURL == "" {
		return domain.ResolvedImage{}
	}

	// Thumbnail proxies encode the original asset in a query parameter;
	// prefer the original and keep the proxy URL as fallback.
	for _, candidate := range unwrapProxy(imgURL) {
		raw, err := r.download(ctx, candidate)
		if err != nil {
			r.log.WarnObj("image download failed", "image_error", map[string]any{
				"url":   candidate,
				"error": err.Error(),
			})
			continue
		}
		img, err := normalizePayload(raw, r.opts)
		if err != nil {
			r.log.WarnObj("image payload rejected", "image_error", map[string]any{
				"url":   candidate,
				"error": err.Error(),
			})
			continue
		}
		img.FileName = fileNameFor(candidate, img.MIMEType)
		return img
	}
	return domain.ResolvedImage{}
}

// findImageURL applies the lookup order: preview metadata tag, alternate
// metadata tag, first image in the article element, first image anywhere.
func (r *Resolver) findImageURL(ctx context.Context, pageURL string) string {
	resp, err := r.client.Get(ctx, pageURL, nil)
	if err != nil || resp.StatusCode() != 200 {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(resp.Body())))
	if err != nil {
		return ""
	}

	metaContent := func(sel string) string {
		if node := doc.Find(sel).First(); node.Length() > 0 {
			if val, ok := node.Attr("content"); ok {
				return strings.TrimSpace(val)
			}
		}
		return ""
	}
	firstSrc := func(sel string) string {
		if node := doc.Find(sel).First(); node.Length() > 0 {
			if val, ok := node.Attr("src"); ok {
				return strings.TrimSpace(val)
			}
		}
		return ""
	}

	candidates := []string{
		metaContent(`meta[property="og:image"]`),
		metaContent(`meta[name="twitter:image"]`),
		firstSrc("article img"),
		firstSrc("img"),
	}
	for _, c := range candidates {
		if c != "" {
			return absoluteURL(pageURL, c)
		}
	}
	return ""
}

func (r *Resolver) download(ctx context.Context, imgURL string) ([]byte, error) {
	resp, err := r.client.Get(ctx, imgURL, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode())
	}
	if err := checkContentType(resp.Header("Content-Type"), resp.Body()); err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

// unwrapProxy resolves thumbnail-proxy URLs back to the original asset URL
// when a query parameter carries an encoded original path.
func unwrapProxy(imgURL string) []string {
	u, err := url.Parse(imgURL)
	if err != nil {
		return []string{imgURL}
	}
	q := u.Query()
	for _, key := range []string{"src", "fname", "url"} {
		val := strings.TrimSpace(q.Get(key))
		if val == "" {
			continue
		}
		if decoded, err := url.QueryUnescape(val); err == nil {
			val = decoded
		}
		if strings.HasPrefix(val, "http://") || strings.HasPrefix(val, "https://") {
			return []string{val, imgURL}
		}
	}
	return []string{imgURL}
}

func absoluteURL(pageURL, ref string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

func fileNameFor(imgURL, mimeType string) string {
	name := "image"
	if u, err := url.Parse(imgURL); err == nil {
		if base := path.Base(u.Path); base != "" && base != "/" && base != "." {
			name = base
		}
	}
	if idx := strings.LastIndex(name, "."); idx > 0 {
		name = name[:idx]
	}
	switch mimeType {
	case "image/png":
		return name + ".png"
	case "image/gif":
		return name + ".gif"
	case "image/avif":
		return name + ".avif"
	case "image/heic":
		return name + ".heic"
	default:
		return name + ".jpg"
	}
}
