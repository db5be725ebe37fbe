// Package dedup decides which candidate queue items are genuinely new
// stories. It holds a transient per-run working set and is discarded at run
// end; durable "already posted" state lives in the publish log.
package dedup

import (
	"crypto/sha1"
	"encoding/hex"
	"sort"
	"strings"
	"unicode"

	"github.com/sportpick-hq/newsdesk/internal/domain"
	"github.com/sportpick-hq/newsdesk/internal/logger"
	"github.com/sportpick-hq/newsdesk/internal/textnorm"
)

// Suppression records one dropped candidate with its reason code. The queue
// row is left NEW so a human can audit false positives.
type Suppression struct {
	Item   domain.QueueItem
	Reason string
}

type titleSeed struct {
	norm   string
	tokens []string
}

// Filter clusters candidates by title similarity and body-prefix hash,
// scoped per topic so two different sports never suppress each other.
type Filter struct {
	threshold float64
	prefixLen int
	log       logger.Logger

	titles   map[string][]titleSeed
	bodyKeys map[string]map[string]struct{}
}

// NewFilter builds a filter with the given similarity threshold and
// body-hash prefix length (runes).
func NewFilter(threshold float64, prefixLen int, log logger.Logger) *Filter {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Filter{
		threshold: threshold,
		prefixLen: prefixLen,
		log:       log,
		titles:    make(map[string][]titleSeed),
		bodyKeys:  make(map[string]map[string]struct{}),
	}
}

// SeedTitles registers already-published titles for a topic so that new
// candidates similar to them are suppressed.
func (f *Filter) SeedTitles(topic string, titles []string) {
	for _, t := range titles {
		norm, tokens := textnorm.Normalize(t)
		if norm == "" {
			continue
		}
		f.titles[topic] = append(f.titles[topic], titleSeed{norm: norm, tokens: tokens})
	}
}

// FilterTitles runs the title-similarity pass over a batch. Candidates are
// clustered oldest-first so the first-discovered row of a cluster is kept
// and every later-discovered near-duplicate is suppressed.
func (f *Filter) FilterTitles(items []domain.QueueItem) ([]domain.QueueItem, []Suppression) {
	ordered := append([]domain.QueueItem(nil), items...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].DiscoveredAt.Before(ordered[j].DiscoveredAt)
	})

	kept := make([]domain.QueueItem, 0, len(ordered))
	var dropped []Suppression

	for _, item := range ordered {
		norm, tokens := textnorm.Normalize(item.Title)
		if f.similarToSeen(item.Topic, norm, tokens) {
			dropped = append(dropped, Suppression{Item: item, Reason: domain.ReasonDupTitle})
			f.log.InfoObj("duplicate title suppressed", "dedup", map[string]any{
				"id":    item.ID,
				"topic": item.Topic,
				"title": item.Title,
			})
			continue
		}
		f.titles[item.Topic] = append(f.titles[item.Topic], titleSeed{norm: norm, tokens: tokens})
		kept = append(kept, item)
	}
	return kept, dropped
}

func (f *Filter) similarToSeen(topic, norm string, tokens []string) bool {
	for _, seed := range f.titles[topic] {
		if similarity(seed.norm, norm, seed.tokens, tokens) >= f.threshold {
			return true
		}
	}
	return false
}

// CheckBody runs the body-prefix hash pass for a surviving candidate. It
// returns true when the body duplicates one already kept this run; otherwise
// the hash joins the working set (first-seen wins).
func (f *Filter) CheckBody(item domain.QueueItem, body string) bool {
	key := BodyKey(body, f.prefixLen)
	if key == "" {
		return false
	}
	seen := f.bodyKeys[item.Topic]
	if seen == nil {
		seen = make(map[string]struct{})
		f.bodyKeys[item.Topic] = seen
	}
	if _, dup := seen[key]; dup {
		return true
	}
	seen[key] = struct{}{}
	return false
}

// Similarity computes title similarity over normalized forms. Symmetric.
func Similarity(a, b string) float64 {
	na, ta := textnorm.Normalize(a)
	nb, tb := textnorm.Normalize(b)
	return similarity(na, nb, ta, tb)
}

func similarity(normA, normB string, tokensA, tokensB []string) float64 {
	sr := seqRatio(normA, normB)
	jc := jaccard(tokensA, tokensB)
	if jc > sr {
		return jc
	}
	return sr
}

// seqRatio is the classic matching-characters ratio 2*M/T computed over the
// longest common subsequence of runes.
func seqRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 && len(rb) == 0 {
		return 1
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	lcs := prev[len(rb)]
	return 2 * float64(lcs) / float64(len(ra)+len(rb))
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := make(map[string]struct{}, len(a))
	for _, t := range a {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, t := range b {
		setB[t] = struct{}{}
	}
	inter := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

// BodyKey hashes the first prefixLen runes of the body after lowercasing and
// stripping digits and non-letters. Catches re-syndicated stories whose
// titles were edited enough to dodge the title pass.
func BodyKey(body string, prefixLen int) string {
	var b strings.Builder
	count := 0
	for _, r := range strings.ToLower(body) {
		if !unicode.IsLetter(r) {
			continue
		}
		b.WriteRune(r)
		count++
		if count >= prefixLen {
			break
		}
	}
	if b.Len() == 0 {
		return ""
	}
	sum := sha1.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
