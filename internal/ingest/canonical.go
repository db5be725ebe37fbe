package ingest

import (
	"net/url"
	"strings"
)

// Query parameters that vary per click without changing the article.
var trackingParams = map[string]struct{}{
	"fbclid":   {},
	"gclid":    {},
	"igshid":   {},
	"ref":      {},
	"from":     {},
	"share":    {},
	"spm":      {},
	"cmpid":    {},
	"ncid":     {},
	"icid":     {},
	"referrer": {},
}

// CanonicalURL reduces an article link to a stable queue id: lowercase
// scheme and host, no fragment, no tracking parameters, no default port,
// no trailing slash. Re-crawling the same article yields the same id.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.Host = strings.TrimSuffix(u.Host, defaultPort(u.Scheme))

	q := u.Query()
	for key := range q {
		lower := strings.ToLower(key)
		if _, tracked := trackingParams[lower]; tracked || strings.HasPrefix(lower, "utm_") {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()

	if u.Path != "/" {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}
	return u.String()
}

func defaultPort(scheme string) string {
	switch scheme {
	case "http":
		return ":80"
	case "https":
		return ":443"
	}
	return ""
}
