package publish

import (
	"net/url"
	"strings"
	"unicode"
)

// The board rejects subjects longer than this many characters.
const subjectMaxRunes = 80

// imagePlaceholder is the board engine's inline-attachment token. The engine
// replaces it with the file received in the "upload" field, so the picture
// renders inside the post body instead of as a bare attachment.
const imagePlaceholder = `<img src="{upload}">`

// submission is one rung of the content-variant ladder.
type submission struct {
	name      string
	multipart bool
	htmlMode  bool
	subject   string
	body      string
	withImage bool
}

// buildLadder orders submissions from richest to plainest. Image-bearing
// multipart variants come first, then text-only form posts. Non-ASCII
// subjects additionally get a percent-encoded variant, since some board
// front-ends mangle raw multibyte subjects. The subject is truncated to the
// board's length cap once here, so every rung carries the same subject.
func buildLadder(title, body string, hasImage bool) []submission {
	title = truncateSubject(title)
	htmlBody := renderHTML(body)
	simpleBody := renderLineBreaks(body)

	var shapes []submission
	if hasImage {
		shapes = append(shapes,
			submission{name: "multipart-html-image", multipart: true, htmlMode: true, body: htmlBody, withImage: true},
			submission{name: "multipart-plain-image", multipart: true, body: body, withImage: true},
			submission{name: "multipart-placeholder-image", multipart: true, htmlMode: true, body: imagePlaceholder + "<br>" + simpleBody, withImage: true},
		)
	}
	shapes = append(shapes,
		submission{name: "form-html", htmlMode: true, body: htmlBody},
		submission{name: "form-plain", body: body},
	)

	subjects := []string{title}
	if !isASCII(title) {
		subjects = append(subjects, url.QueryEscape(title))
	}

	out := make([]submission, 0, len(shapes)*len(subjects))
	for _, shape := range shapes {
		for i, subj := range subjects {
			sub := shape
			sub.subject = subj
			if i > 0 {
				sub.name += "-encoded-subject"
			}
			out = append(out, sub)
		}
	}
	return out
}

// renderHTML converts the sectioned plain-text article into the board's
// HTML mode: section headers bolded, bullets and paragraphs on line breaks.
func renderHTML(body string) string {
	lines := strings.Split(body, "\n")
	var b strings.Builder
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			b.WriteString("<br>")
		case strings.HasPrefix(trimmed, "■"):
			b.WriteString("<b>" + escapeHTML(trimmed) + "</b>")
		default:
			b.WriteString(escapeHTML(trimmed))
		}
		b.WriteString("<br>")
	}
	return strings.TrimSuffix(b.String(), "<br>")
}

// renderLineBreaks keeps the text untouched except for <br> line breaks.
// Boards that reject nested markup still accept this shape.
func renderLineBreaks(body string) string {
	lines := strings.Split(body, "\n")
	escaped := make([]string, len(lines))
	for i, line := range lines {
		escaped[i] = escapeHTML(strings.TrimRight(line, " \t"))
	}
	return strings.Join(escaped, "<br>")
}

func escapeHTML(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}

// truncateSubject caps the subject at the board's character limit, counting
// runes so a multibyte title is never cut mid-character.
func truncateSubject(title string) string {
	runes := []rune(strings.TrimSpace(title))
	if len(runes) <= subjectMaxRunes {
		return string(runes)
	}
	return strings.TrimSpace(string(runes[:subjectMaxRunes]))
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}
