package rewrite

import (
	"fmt"
	"strings"
)

// The five required section headers, in order of appearance.
var sectionHeaders = []string{
	"■ 요약",
	"■ 핵심 포인트",
	"■ 배경",
	"■ 현황 분석",
	"■ 전망",
}

const (
	minBullets       = 3
	plagiarismWindow = 45 // runes
	plagiarismStride = 25
	// One matching window is tolerated (team names and fixed phrases
	// legitimately repeat); two or more means copied prose.
	plagiarismLimit = 2
)

// validate applies the structural and anti-plagiarism checks to a generated
// body. A nil return means the attempt is accepted.
func validate(body, source string, minChars, maxChars int) error {
	n := len([]rune(body))
	if n < minChars {
		return fmt.Errorf("body too short: %d < %d chars", n, minChars)
	}
	if n > maxChars {
		return fmt.Errorf("body too long: %d > %d chars", n, maxChars)
	}

	for _, h := range sectionHeaders {
		if !strings.Contains(body, h) {
			return fmt.Errorf("missing section header %q", h)
		}
	}
	if got := countKeyPointBullets(body); got < minBullets {
		return fmt.Errorf("key points section has %d bullets, want >= %d", got, minBullets)
	}

	if hits := matchingWindows(body, source); hits >= plagiarismLimit {
		return fmt.Errorf("plagiarism gate: %d verbatim windows matched source", hits)
	}
	return nil
}

// countKeyPointBullets counts "- " lines between the key-points header and
// the next section header.
func countKeyPointBullets(body string) int {
	idx := strings.Index(body, sectionHeaders[1])
	if idx < 0 {
		return 0
	}
	section := body[idx+len(sectionHeaders[1]):]
	if next := strings.Index(section, "■"); next >= 0 {
		section = section[:next]
	}
	count := 0
	for _, line := range strings.Split(section, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "- ") {
			count++
		}
	}
	return count
}

// matchingWindows slides a fixed-width rune window across the rewritten body
// at a coarse stride and counts verbatim membership in the source text.
// Whitespace is collapsed on both sides first so formatting differences do
// not mask copied prose.
func matchingWindows(body, source string) int {
	flatBody := []rune(collapseSpace(body))
	flatSource := collapseSpace(source)
	if len(flatBody) < plagiarismWindow || flatSource == "" {
		return 0
	}

	hits := 0
	for start := 0; start+plagiarismWindow <= len(flatBody); start += plagiarismStride {
		window := string(flatBody[start : start+plagiarismWindow])
		if strings.Contains(flatSource, window) {
			hits++
		}
	}
	return hits
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
