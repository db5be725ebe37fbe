package rewrite

import (
	"sort"
	"unicode/utf8"

	"github.com/sportpick-hq/newsdesk/internal/textnorm"
)

const minTags = 6

// padTags are appended when neither the generator nor the extractor produced
// enough tags.
var padTags = []string{"#스포츠", "#오늘의경기", "#경기분석", "#스포츠이슈", "#하이라이트", "#승부예측"}

// EnsureTags guarantees at least six hashtags: the generator's own tags
// first, then frequency-derived tags from the body, then the fixed topic
// tags and pad pool.
func EnsureTags(existing []string, body, topic string) []string {
	seen := make(map[string]struct{}, len(existing))
	tags := make([]string, 0, minTags)
	add := func(tag string) {
		if tag == "#" || tag == "" {
			return
		}
		if _, dup := seen[tag]; dup {
			return
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}

	for _, t := range existing {
		add(t)
	}
	if topic != "" {
		add("#" + topic)
		add("#" + topic + "뉴스")
	}
	if len(tags) < minTags {
		for _, t := range extractTags(body) {
			add(t)
			if len(tags) >= minTags {
				break
			}
		}
	}
	for _, t := range padTags {
		if len(tags) >= minTags {
			break
		}
		add(t)
	}
	return tags
}

// extractTags derives candidate tags from term frequency over the body,
// stopword-filtered and length-bounded.
func extractTags(body string) []string {
	_, tokens := textnorm.Normalize(body)

	freq := make(map[string]int)
	for _, tok := range tokens {
		n := utf8.RuneCountInString(tok)
		if n < 2 || n > 12 {
			continue
		}
		freq[tok]++
	}

	terms := make([]string, 0, len(freq))
	for term := range freq {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if freq[terms[i]] != freq[terms[j]] {
			return freq[terms[i]] > freq[terms[j]]
		}
		return terms[i] < terms[j]
	})

	out := make([]string, 0, len(terms))
	for _, term := range terms {
		out = append(out, "#"+term)
	}
	return out
}
