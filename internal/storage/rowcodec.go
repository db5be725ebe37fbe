package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/sportpick-hq/newsdesk/internal/domain"
)

// The row codec is the only place that knows column order. Queue rows:
// discoveredAt, topic, title, sourceUrl, status, postedAt, lastError.
// Log rows: sourceUrl, publishedTitle, postedAt, status, reason.

const (
	colSep         = "\t"
	queueRowCols   = 7
	logRowCols     = 5
	rowTimeLayout  = time.RFC3339
	maxErrorLength = 300
)

// sanitizeCell keeps cell values single-line and separator-free.
func sanitizeCell(s string) string {
	s = strings.ReplaceAll(s, "\t", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}

func encodeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(rowTimeLayout)
}

func decodeTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(rowTimeLayout, s)
}

func encodeQueueRow(item domain.QueueItem) []byte {
	lastErr := sanitizeCell(item.LastError)
	if runes := []rune(lastErr); len(runes) > maxErrorLength {
		lastErr = string(runes[:maxErrorLength])
	}
	cols := []string{
		encodeTime(item.DiscoveredAt),
		sanitizeCell(item.Topic),
		sanitizeCell(item.Title),
		sanitizeCell(item.SourceURL),
		item.Status,
		encodeTime(item.PostedAt),
		lastErr,
	}
	return []byte(strings.Join(cols, colSep))
}

func decodeQueueRow(id string, value []byte) (domain.QueueItem, error) {
	cols := strings.Split(string(value), colSep)
	if len(cols) != queueRowCols {
		return domain.QueueItem{}, fmt.Errorf("queue row %q has %d columns, want %d", id, len(cols), queueRowCols)
	}
	discovered, err := decodeTime(cols[0])
	if err != nil {
		return domain.QueueItem{}, fmt.Errorf("queue row %q discoveredAt: %w", id, err)
	}
	posted, err := decodeTime(cols[5])
	if err != nil {
		return domain.QueueItem{}, fmt.Errorf("queue row %q postedAt: %w", id, err)
	}
	return domain.QueueItem{
		ID:           id,
		DiscoveredAt: discovered,
		Topic:        cols[1],
		Title:        cols[2],
		SourceURL:    cols[3],
		Status:       cols[4],
		PostedAt:     posted,
		LastError:    cols[6],
	}, nil
}

func encodeLogRow(e domain.PublishLogEntry) []byte {
	cols := []string{
		sanitizeCell(e.SourceURL),
		sanitizeCell(e.PublishedTitle),
		encodeTime(e.PostedAt),
		e.Status,
		sanitizeCell(e.Reason),
	}
	return []byte(strings.Join(cols, colSep))
}

func decodeLogRow(value []byte) (domain.PublishLogEntry, error) {
	cols := strings.Split(string(value), colSep)
	if len(cols) != logRowCols {
		return domain.PublishLogEntry{}, fmt.Errorf("log row has %d columns, want %d", len(cols), logRowCols)
	}
	posted, err := decodeTime(cols[2])
	if err != nil {
		return domain.PublishLogEntry{}, fmt.Errorf("log row postedAt: %w", err)
	}
	return domain.PublishLogEntry{
		SourceURL:      cols[0],
		PublishedTitle: cols[1],
		PostedAt:       posted,
		Status:         cols[3],
		Reason:         cols[4],
	}, nil
}
