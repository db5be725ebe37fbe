// Package publish submits rewritten articles to the bulletin board. It walks
// an ordered ladder of content variants, backs off on host rate limits, paces
// consecutive posts, and short-circuits source URLs that already published.
package publish

import "fmt"

// ResultKind classifies the outcome of a publish call.
type ResultKind int

const (
	ResultSuccess ResultKind = iota
	ResultAlreadyPosted
	ResultRateLimited
	ResultFailure
)

// AttemptResult is the typed outcome of one submission or of a whole publish.
type AttemptResult struct {
	Kind   ResultKind
	PostID string
	Reason string
	Err    error
}

// Success marks a completed post with the board-assigned id.
func Success(postID string) AttemptResult {
	return AttemptResult{Kind: ResultSuccess, PostID: postID}
}

// AlreadyPosted marks a source URL found in the publish log.
func AlreadyPosted() AttemptResult {
	return AttemptResult{Kind: ResultAlreadyPosted}
}

// RateLimited marks a host throttle response.
func RateLimited(reason string) AttemptResult {
	return AttemptResult{Kind: ResultRateLimited, Reason: reason}
}

// Failure marks any non-throttle submission failure.
func Failure(err error) AttemptResult {
	return AttemptResult{Kind: ResultFailure, Err: err}
}

func (r AttemptResult) String() string {
	switch r.Kind {
	case ResultSuccess:
		return "success:" + r.PostID
	case ResultAlreadyPosted:
		return "already-posted"
	case ResultRateLimited:
		return "rate-limited:" + r.Reason
	default:
		return fmt.Sprintf("failure:%v", r.Err)
	}
}
