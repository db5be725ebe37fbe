package domain

// Domain contains the core pipeline models shared across packages.

import "time"

// Queue item statuses. These are stored verbatim in the row store and
// matched exactly when filtering, so they must never be renamed.
const (
	StatusNew    = "NEW"
	StatusPosted = "POSTED"
	StatusFail   = "FAIL"
)

// Publish log statuses.
const (
	LogOK   = "OK"
	LogFail = "FAIL"
	LogSkip = "SKIP"
)

// Dedup suppression reason codes recorded on SKIP log entries.
const (
	ReasonDupTitle = "DUP_TOPIC_TITLE"
	ReasonDupBody  = "DUP_TOPIC_BODY"
)

// QueueItem is one discovered article awaiting processing. ID is the
// canonicalized source URL and doubles as the idempotency key.
type QueueItem struct {
	ID           string
	DiscoveredAt time.Time
	Topic        string
	Title        string
	SourceURL    string
	Status       string
	PostedAt     time.Time
	LastError    string
}

// PublishLogEntry records the outcome of one publish attempt. Entries are
// append-only and survive queue status bookkeeping inconsistencies, so the
// log is the authoritative "already posted" lookup.
type PublishLogEntry struct {
	SourceURL      string
	PublishedTitle string
	PostedAt       time.Time
	Status         string
	Reason         string
}

// Article is the fully fetched source material for a queue item.
type Article struct {
	Title    string
	Body     string
	URL      string
	ImageURL string
}

// RewrittenArticle is the accepted rewriter output for one item.
type RewrittenArticle struct {
	Title    string
	Body     string
	Hashtags []string
	Fallback bool
}

// ResolvedImage holds normalized image bytes ready for upload. A zero value
// means "no image" and is not an error.
type ResolvedImage struct {
	Bytes    []byte
	MIMEType string
	FileName string
}

// HasImage reports whether any payload was resolved.
func (r ResolvedImage) HasImage() bool { return len(r.Bytes) > 0 }

// RunSummary aggregates per-run outcome counts for the end-of-run report.
type RunSummary struct {
	Processed int
	OK        int
	Fail      int
	Skip      int
}
