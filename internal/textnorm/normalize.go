// Package textnorm canonicalizes titles and bodies for comparison. The output
// is never used as display text. All cleanup rules live here as explicit
// tables rather than inline pattern literals at call sites.
package textnorm

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	reTag      = regexp.MustCompile(`<[^>]*>`)
	reEntity   = regexp.MustCompile(`&#?[a-zA-Z0-9]{2,8};`)
	reBracket  = regexp.MustCompile(`\[[^\]]*\]|\([^)]*\)|【[^】]*】|〈[^〉]*〉|《[^》]*》`)
	rePunct    = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
	reDigitRun = regexp.MustCompile(`\d+`)

	// Calendar-date shapes seen across source sites: ISO, dotted, slashed,
	// and Korean month/day spellings.
	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\d{4}[-./]\d{1,2}[-./]\d{1,2}`),
		regexp.MustCompile(`\d{1,2}[-./]\d{1,2}[-./]\d{2,4}`),
		regexp.MustCompile(`\d{1,2}월\s*\d{1,2}일`),
		regexp.MustCompile(`\d{4}년`),
		regexp.MustCompile(`\d{1,2}일(자)?`),
	}
)

// stopwords are generic news boilerplate tokens that carry no story identity.
var stopwords = map[string]struct{}{
	"단독": {}, "속보": {}, "공식": {}, "종합": {}, "영상": {}, "포토": {},
	"인터뷰": {}, "기자": {}, "특파원": {}, "리포트": {}, "오피셜": {}, "이슈": {},
	"뉴스": {}, "최신": {}, "업데이트": {}, "확정": {}, "전해": {}, "보도": {},
	"exclusive": {}, "breaking": {}, "official": {}, "update": {}, "news": {},
	"report": {}, "photo": {}, "video": {}, "the": {}, "and": {}, "for": {},
}

// Normalize canonicalizes s for comparison and returns the normalized string
// plus its whitespace-split token list with tokens shorter than 2 runes removed.
func Normalize(s string) (string, []string) {
	s = reTag.ReplaceAllString(s, " ")
	s = reEntity.ReplaceAllString(s, " ")
	s = reBracket.ReplaceAllString(s, " ")
	for _, re := range datePatterns {
		s = re.ReplaceAllString(s, " ")
	}
	s = rePunct.ReplaceAllString(s, " ")
	s = reDigitRun.ReplaceAllString(s, " ")
	s = strings.ToLower(s)

	fields := strings.Fields(s)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) < 2 {
			continue
		}
		if _, skip := stopwords[f]; skip {
			continue
		}
		tokens = append(tokens, f)
	}
	return strings.Join(tokens, " "), tokens
}

// StripMarkup removes tags and entity escapes without the heavier comparison
// canonicalization. Used when preparing source text for the rewriter.
func StripMarkup(s string) string {
	s = reTag.ReplaceAllString(s, " ")
	s = reEntity.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// IsStopword reports whether the token is generic news boilerplate.
func IsStopword(tok string) bool {
	_, ok := stopwords[strings.ToLower(tok)]
	return ok
}
