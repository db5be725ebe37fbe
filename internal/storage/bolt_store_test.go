package storage

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/sportpick-hq/newsdesk/internal/domain"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	store, err := NewStore("bbolt", filepath.Join(t.TempDir(), "newsdesk.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestUpsertIsIdempotentByID(t *testing.T) {
	store := openTestStore(t)

	item := domain.QueueItem{
		ID:           "https://sports.example.com/a/123",
		DiscoveredAt: time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
		Topic:        "soccer",
		Title:        "원정 3연승",
		SourceURL:    "https://sports.example.com/a/123?ref=rss",
		Status:       domain.StatusNew,
	}
	if err := store.UpsertItem(item); err != nil {
		t.Fatalf("UpsertItem: %v", err)
	}
	if err := store.SetStatus(item.ID, domain.StatusPosted, time.Now(), ""); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	// Re-discovery must not create a second row or reset progress.
	if err := store.UpsertItem(item); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	newRows, err := store.ItemsByStatus(domain.StatusNew)
	if err != nil {
		t.Fatalf("ItemsByStatus: %v", err)
	}
	if len(newRows) != 0 {
		t.Fatalf("re-upsert reset status: %+v", newRows)
	}
}

func TestSetStatusPostedClearsLastError(t *testing.T) {
	store := openTestStore(t)

	item := domain.QueueItem{ID: "u1", Topic: "soccer", Title: "t", SourceURL: "u1", Status: domain.StatusNew, DiscoveredAt: time.Now()}
	if err := store.UpsertItem(item); err != nil {
		t.Fatalf("UpsertItem: %v", err)
	}
	if err := store.SetStatus("u1", domain.StatusFail, time.Time{}, "timeout talking to board"); err != nil {
		t.Fatalf("SetStatus fail: %v", err)
	}
	if err := store.SetStatus("u1", domain.StatusPosted, time.Now(), ""); err != nil {
		t.Fatalf("SetStatus posted: %v", err)
	}

	posted, err := store.ItemsByStatus(domain.StatusPosted)
	if err != nil {
		t.Fatalf("ItemsByStatus: %v", err)
	}
	if len(posted) != 1 || posted[0].LastError != "" {
		t.Fatalf("expected cleared lastError, got %+v", posted)
	}
	if posted[0].PostedAt.IsZero() {
		t.Fatalf("expected postedAt to be set")
	}
}

func TestPostedTitlesScopedByTopic(t *testing.T) {
	store := openTestStore(t)

	for _, it := range []domain.QueueItem{
		{ID: "a", Topic: "soccer", Title: "축구 소식", SourceURL: "a", Status: domain.StatusNew, DiscoveredAt: time.Now()},
		{ID: "b", Topic: "basketball", Title: "농구 소식", SourceURL: "b", Status: domain.StatusNew, DiscoveredAt: time.Now()},
	} {
		if err := store.UpsertItem(it); err != nil {
			t.Fatalf("UpsertItem: %v", err)
		}
		if err := store.SetStatus(it.ID, domain.StatusPosted, time.Now(), ""); err != nil {
			t.Fatalf("SetStatus: %v", err)
		}
	}

	titles, err := store.PostedTitles("soccer")
	if err != nil {
		t.Fatalf("PostedTitles: %v", err)
	}
	if len(titles) != 1 || titles[0] != "축구 소식" {
		t.Fatalf("unexpected titles: %v", titles)
	}
}

func TestPublishLogIdempotencyLookup(t *testing.T) {
	store := openTestStore(t)

	url := "https://sports.example.com/a/9"
	ok, err := store.HasPosted(url)
	if err != nil || ok {
		t.Fatalf("expected no OK entry yet, ok=%v err=%v", ok, err)
	}

	if err := store.AppendLog(domain.PublishLogEntry{SourceURL: url, PublishedTitle: "제목", Status: domain.LogFail, Reason: "timeout"}); err != nil {
		t.Fatalf("AppendLog fail entry: %v", err)
	}
	ok, err = store.HasPosted(url)
	if err != nil || ok {
		t.Fatalf("FAIL entry must not mark as posted, ok=%v err=%v", ok, err)
	}

	if err := store.AppendLog(domain.PublishLogEntry{SourceURL: url, PublishedTitle: "제목", PostedAt: time.Now(), Status: domain.LogOK}); err != nil {
		t.Fatalf("AppendLog ok entry: %v", err)
	}
	ok, err = store.HasPosted(url)
	if err != nil || !ok {
		t.Fatalf("expected OK entry found, ok=%v err=%v", ok, err)
	}
}

func TestHasPostedSurvivesTrackingParamChurn(t *testing.T) {
	store := openTestStore(t)

	// A re-crawl can hand the same story a different tracking parameter;
	// the idempotency lookup must still hit.
	if err := store.AppendLog(domain.PublishLogEntry{
		SourceURL:      "https://sports.example.com/story/77?utm_source=rss",
		PublishedTitle: "제목",
		PostedAt:       time.Now(),
		Status:         domain.LogOK,
	}); err != nil {
		t.Fatalf("AppendLog: %v", err)
	}

	for _, variant := range []string{
		"https://sports.example.com/story/77?utm_source=twitter",
		"https://sports.example.com/story/77",
		"HTTPS://SPORTS.EXAMPLE.COM/story/77#comments",
	} {
		ok, err := store.HasPosted(variant)
		if err != nil {
			t.Fatalf("HasPosted(%q): %v", variant, err)
		}
		if !ok {
			t.Fatalf("variant %q of a posted story not recognized", variant)
		}
	}

	ok, err := store.HasPosted("https://sports.example.com/story/78")
	if err != nil || ok {
		t.Fatalf("different story must stay unposted, ok=%v err=%v", ok, err)
	}
}

func TestQueueRowErrorTruncatedOnRuneBoundary(t *testing.T) {
	item := domain.QueueItem{
		ID:           "u2",
		DiscoveredAt: time.Now().UTC(),
		Topic:        "soccer",
		Title:        "t",
		SourceURL:    "u2",
		Status:       domain.StatusFail,
		LastError:    strings.Repeat("오류", 400),
	}
	got, err := decodeQueueRow(item.ID, encodeQueueRow(item))
	if err != nil {
		t.Fatalf("decodeQueueRow: %v", err)
	}
	if !utf8.ValidString(got.LastError) {
		t.Fatalf("truncated error is not valid UTF-8: %q", got.LastError)
	}
	if n := utf8.RuneCountInString(got.LastError); n != maxErrorLength {
		t.Fatalf("expected %d-rune error cell, got %d", maxErrorLength, n)
	}
}

func TestQueueRowCodecRoundTrip(t *testing.T) {
	item := domain.QueueItem{
		ID:           "https://x/1",
		DiscoveredAt: time.Date(2026, 8, 29, 3, 4, 5, 0, time.UTC),
		Topic:        "baseball",
		Title:        "제목에\t탭과\n줄바꿈",
		SourceURL:    "https://x/1",
		Status:       domain.StatusFail,
		LastError:    "status 500 body: oops",
	}
	got, err := decodeQueueRow(item.ID, encodeQueueRow(item))
	if err != nil {
		t.Fatalf("decodeQueueRow: %v", err)
	}
	if got.Topic != item.Topic || got.Status != item.Status || got.LastError != item.LastError {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if !got.DiscoveredAt.Equal(item.DiscoveredAt) {
		t.Fatalf("discoveredAt mismatch: %v", got.DiscoveredAt)
	}
	if got.Title != "제목에 탭과 줄바꿈" {
		t.Fatalf("cell sanitization failed: %q", got.Title)
	}
}
