package publish

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// Board accounts. The shared news feed posts with the news credential;
	// per-sport analysis boards post with the analysis credential.
	AccountNews     = "news"
	AccountAnalysis = "analysis"
)

// Board is one posting target on the bulletin host.
type Board struct {
	ID      string `yaml:"id"`
	Topic   string `yaml:"topic"`
	Slug    string `yaml:"slug"`
	Account string `yaml:"account"`
}

type boardsFile struct {
	Boards []Board `yaml:"boards"`
}

// Routes resolves the board for an item topic.
type Routes struct {
	byTopic map[string]Board
	shared  Board
	hasNews bool
}

// LoadRoutes reads the board registry from a YAML file.
func LoadRoutes(path string) (*Routes, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("boards file path is empty")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read boards file: %w", err)
	}

	var file boardsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode boards file: %w", err)
	}
	return NewRoutes(file.Boards)
}

// NewRoutes validates board entries and builds the topic index. A board with
// topic "*" is the shared fallback target.
func NewRoutes(boards []Board) (*Routes, error) {
	if len(boards) == 0 {
		return nil, errors.New("boards file contains no boards entries")
	}

	routes := &Routes{byTopic: make(map[string]Board, len(boards))}
	seen := make(map[string]struct{}, len(boards))
	for i, b := range boards {
		b = sanitizeBoard(b)
		if err := validateBoard(b); err != nil {
			return nil, fmt.Errorf("boards[%d]: %w", i, err)
		}
		if _, dup := seen[b.ID]; dup {
			return nil, fmt.Errorf("duplicate board id %q", b.ID)
		}
		seen[b.ID] = struct{}{}

		if b.Topic == "*" {
			if routes.hasNews {
				return nil, errors.New("more than one shared board configured")
			}
			routes.shared = b
			routes.hasNews = true
			continue
		}
		if _, dup := routes.byTopic[b.Topic]; dup {
			return nil, fmt.Errorf("duplicate board for topic %q", b.Topic)
		}
		routes.byTopic[b.Topic] = b
	}
	if !routes.hasNews {
		return nil, errors.New("no shared board (topic \"*\") configured")
	}
	return routes, nil
}

func sanitizeBoard(b Board) Board {
	b.ID = strings.TrimSpace(b.ID)
	b.Topic = strings.TrimSpace(b.Topic)
	b.Slug = strings.TrimSpace(b.Slug)
	b.Account = strings.ToLower(strings.TrimSpace(b.Account))
	if b.Account == "" {
		b.Account = AccountNews
	}
	return b
}

func validateBoard(b Board) error {
	if b.ID == "" {
		return errors.New("id is required")
	}
	if b.Topic == "" {
		return fmt.Errorf("topic is required for board %q", b.ID)
	}
	if b.Slug == "" {
		return fmt.Errorf("slug is required for board %q", b.ID)
	}
	if b.Account != AccountNews && b.Account != AccountAnalysis {
		return fmt.Errorf("unknown account %q for board %q", b.Account, b.ID)
	}
	return nil
}

// ForTopic returns the analysis board registered for the topic, or the
// shared board when the topic has no dedicated target.
func (r *Routes) ForTopic(topic string) Board {
	if b, ok := r.byTopic[strings.TrimSpace(topic)]; ok {
		return b
	}
	return r.shared
}

// Accounts lists the distinct accounts the configured boards post with.
func (r *Routes) Accounts() []string {
	set := map[string]struct{}{}
	if r.hasNews {
		set[r.shared.Account] = struct{}{}
	}
	for _, b := range r.byTopic {
		set[b.Account] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for acc := range set {
		out = append(out, acc)
	}
	return out
}
