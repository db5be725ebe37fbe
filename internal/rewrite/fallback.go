package rewrite

import (
	"fmt"
	"strings"

	"github.com/sportpick-hq/newsdesk/internal/domain"
	"github.com/sportpick-hq/newsdesk/internal/textnorm"
)

// buildFallback assembles the minimal templated rewrite: a naive extractive
// summary poured into the fixed section skeleton. It is accepted without
// passing through the gate, so it can never fail.
func buildFallback(req Request) domain.RewrittenArticle {
	source := textnorm.StripMarkup(req.SourceText)
	sentences := splitSentences(source)

	summary := joinUpTo(sentences, 2, 300)
	if summary == "" {
		summary = truncateRunes(source, 200)
	}
	if summary == "" {
		summary = fmt.Sprintf("%s 관련 소식이 전해졌다.", req.SourceTitle)
	}

	bullets := make([]string, 0, minBullets)
	for _, s := range sentences {
		if len(bullets) >= minBullets {
			break
		}
		bullets = append(bullets, "- "+truncateRunes(s, 80))
	}
	for len(bullets) < minBullets {
		switch len(bullets) {
		case 0:
			bullets = append(bullets, fmt.Sprintf("- %s 소식이 전해졌다.", req.SourceTitle))
		case 1:
			bullets = append(bullets, fmt.Sprintf("- %s 관련 추가 소식이 이어질 전망이다.", req.Topic))
		default:
			bullets = append(bullets, "- 자세한 내용은 추후 업데이트될 예정이다.")
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s\n\n", sectionHeaders[0], summary)
	fmt.Fprintf(&b, "%s\n%s\n\n", sectionHeaders[1], strings.Join(bullets, "\n"))
	fmt.Fprintf(&b, "%s\n%s 소식은 %s 팬들 사이에서 꾸준히 관심을 모아온 주제다. 이번 소식 역시 그 연장선에서 나온 것으로, 관련 팀과 선수들의 최근 행보와 맞물려 있다.\n\n",
		sectionHeaders[2], req.SourceTitle, req.Topic)
	fmt.Fprintf(&b, "%s\n현재까지 전해진 내용을 기준으로 보면 상황은 유동적이다. 공식 발표와 추가 보도에 따라 세부 내용이 달라질 수 있는 만큼, 확정된 사실과 추측을 구분해서 지켜볼 필요가 있다.\n\n",
		sectionHeaders[3])
	fmt.Fprintf(&b, "%s\n후속 소식이 이어지는 대로 내용을 업데이트할 예정이다. 이번 사안이 %s 판도에 어떤 영향을 줄지 주목된다.",
		sectionHeaders[4], req.Topic)

	body := b.String()
	return domain.RewrittenArticle{
		Title:    req.SourceTitle,
		Body:     body,
		Hashtags: EnsureTags(nil, body, req.Topic),
		Fallback: true,
	}
}

// splitSentences breaks prose on terminal punctuation, keeping sentences of
// a meaningful length.
func splitSentences(s string) []string {
	var out []string
	var cur strings.Builder
	flush := func() {
		sentence := strings.TrimSpace(cur.String())
		cur.Reset()
		if len([]rune(sentence)) >= 15 {
			out = append(out, sentence)
		}
	}
	for _, r := range s {
		cur.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			flush()
		}
	}
	flush()
	return out
}

func joinUpTo(sentences []string, max, budget int) string {
	var picked []string
	total := 0
	for _, s := range sentences {
		if len(picked) >= max || total+len([]rune(s)) > budget {
			break
		}
		picked = append(picked, s)
		total += len([]rune(s))
	}
	return strings.Join(picked, " ")
}

func truncateRunes(s string, n int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= n {
		return string(runes)
	}
	return string(runes[:n])
}
