package storage

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/sportpick-hq/newsdesk/internal/domain"
	"github.com/sportpick-hq/newsdesk/internal/ingest"
)

const (
	queueBucket  = "queue"
	logBucket    = "publish_log"
	postedBucket = "posted_urls"
)

// boltStore implements Store backed by BoltDB.
type boltStore struct {
	db *bolt.DB
}

// openBolt initializes a BoltDB-backed Store.
func openBolt(path string) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{queueBucket, logBucket, postedBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}

	return &boltStore{db: db}, nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// UpsertItem inserts the row if absent. An existing row keeps its status and
// timestamps so a re-crawl never resets pipeline progress.
func (b *boltStore) UpsertItem(item domain.QueueItem) error {
	if item.ID == "" {
		return fmt.Errorf("queue item id is empty")
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(queueBucket))
		if bucket == nil {
			return fmt.Errorf("queue bucket missing")
		}
		key := []byte(item.ID)
		if existing := bucket.Get(key); existing != nil {
			prev, err := decodeQueueRow(item.ID, existing)
			if err != nil {
				return err
			}
			prev.Title = item.Title
			prev.SourceURL = item.SourceURL
			return bucket.Put(key, encodeQueueRow(prev))
		}
		return bucket.Put(key, encodeQueueRow(item))
	})
}

// ItemsByStatus returns all rows with the exact status string.
func (b *boltStore) ItemsByStatus(status string) ([]domain.QueueItem, error) {
	var items []domain.QueueItem
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(queueBucket))
		if bucket == nil {
			return fmt.Errorf("queue bucket missing")
		}
		return bucket.ForEach(func(k, v []byte) error {
			item, err := decodeQueueRow(string(k), v)
			if err != nil {
				return err
			}
			if item.Status == status {
				items = append(items, item)
			}
			return nil
		})
	})
	return items, err
}

// PostedTitles returns titles of POSTED rows for the topic.
func (b *boltStore) PostedTitles(topic string) ([]string, error) {
	var titles []string
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(queueBucket))
		if bucket == nil {
			return fmt.Errorf("queue bucket missing")
		}
		return bucket.ForEach(func(k, v []byte) error {
			item, err := decodeQueueRow(string(k), v)
			if err != nil {
				return err
			}
			if item.Status == domain.StatusPosted && item.Topic == topic {
				titles = append(titles, item.Title)
			}
			return nil
		})
	})
	return titles, err
}

// SetStatus updates the status cells of one row.
func (b *boltStore) SetStatus(id, status string, postedAt time.Time, lastError string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(queueBucket))
		if bucket == nil {
			return fmt.Errorf("queue bucket missing")
		}
		key := []byte(id)
		raw := bucket.Get(key)
		if raw == nil {
			return fmt.Errorf("queue row %q not found", id)
		}
		item, err := decodeQueueRow(id, raw)
		if err != nil {
			return err
		}
		item.Status = status
		item.LastError = lastError
		if status == domain.StatusPosted {
			item.PostedAt = postedAt
			item.LastError = ""
		}
		return bucket.Put(key, encodeQueueRow(item))
	})
}

// AppendLog appends one publish outcome row; OK entries also index the
// canonical source URL for fast idempotency lookups. The log cell keeps the
// raw URL for display, but the index key must survive a re-crawl rewriting
// a tracking parameter.
func (b *boltStore) AppendLog(e domain.PublishLogEntry) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(logBucket))
		if bucket == nil {
			return fmt.Errorf("publish log bucket missing")
		}
		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		if err := bucket.Put(key, encodeLogRow(e)); err != nil {
			return err
		}
		if e.Status == domain.LogOK {
			idx := tx.Bucket([]byte(postedBucket))
			if idx == nil {
				return fmt.Errorf("posted index bucket missing")
			}
			return idx.Put([]byte(ingest.CanonicalURL(e.SourceURL)), []byte(encodeTime(e.PostedAt)))
		}
		return nil
	})
}

// HasPosted reports whether an OK entry exists for the source URL. The
// lookup goes through the same canonical form as the index writes, so any
// URL variant of an already-published story answers true.
func (b *boltStore) HasPosted(sourceURL string) (bool, error) {
	var found bool
	err := b.db.View(func(tx *bolt.Tx) error {
		idx := tx.Bucket([]byte(postedBucket))
		if idx == nil {
			return fmt.Errorf("posted index bucket missing")
		}
		found = idx.Get([]byte(ingest.CanonicalURL(sourceURL))) != nil
		return nil
	})
	return found, err
}

// Entries returns the full publish log in append order. Used by audits and tests.
func (b *boltStore) Entries() ([]domain.PublishLogEntry, error) {
	var entries []domain.PublishLogEntry
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(logBucket))
		if bucket == nil {
			return fmt.Errorf("publish log bucket missing")
		}
		return bucket.ForEach(func(_, v []byte) error {
			e, err := decodeLogRow(v)
			if err != nil {
				return err
			}
			entries = append(entries, e)
			return nil
		})
	})
	return entries, err
}
