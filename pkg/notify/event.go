package notify

import "time"

// Event mirrors one publish-log outcome to downstream sinks.
type Event struct {
	SourceURL      string    `json:"source_url"`
	Topic          string    `json:"topic"`
	PublishedTitle string    `json:"published_title"`
	Status         string    `json:"status"`
	Reason         string    `json:"reason,omitempty"`
	PostID         string    `json:"post_id,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// NewEvent constructs an Event stamped with the current time.
func NewEvent(sourceURL, topic, title, status, reason, postID string) Event {
	return Event{
		SourceURL:      sourceURL,
		Topic:          topic,
		PublishedTitle: title,
		Status:         status,
		Reason:         reason,
		PostID:         postID,
		OccurredAt:     time.Now().UTC(),
	}
}
