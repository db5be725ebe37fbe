package publish

import "strings"

// Vendor error code the board returns when posting too fast.
const codePostLimit = "POST_LIMIT_EXCEEDED"

var rateLimitPhrases = []string{
	"too many posts",
	"try again shortly",
	"try again later",
	"flood",
	"너무 많은 게시물",
	"잠시 후 다시",
	"도배",
}

// isRateLimited reports whether a board response means "slow down" rather
// than "this content is broken". Throttles retry the same variant; everything
// else falls through the ladder.
func isRateLimited(status int, code, message string) bool {
	if status == 429 {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(code), codePostLimit) {
		return true
	}
	msg := strings.ToLower(message)
	for _, phrase := range rateLimitPhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}
