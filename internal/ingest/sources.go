// Package ingest pulls configured sport feeds and fills the article queue.
package ingest

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Source is one configured feed.
type Source struct {
	ID             string `yaml:"id"`
	Name           string `yaml:"name"`
	Topic          string `yaml:"topic"`
	FeedURL        string `yaml:"feed_url"`
	RequestDelayMS int    `yaml:"request_delay_ms"`
}

type sourcesFile struct {
	Sources []Source `yaml:"sources"`
}

// LoadSources reads the feed registry from a YAML file.
func LoadSources(path string) ([]Source, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sources file path is empty")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}
	return ParseSources(raw)
}

// ParseSources decodes, sanitizes and validates feed declarations.
func ParseSources(raw []byte) ([]Source, error) {
	var file sourcesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode sources file: %w", err)
	}
	if len(file.Sources) == 0 {
		return nil, errors.New("sources file contains no sources entries")
	}

	seen := make(map[string]struct{}, len(file.Sources))
	out := make([]Source, 0, len(file.Sources))
	for i := range file.Sources {
		src := sanitizeSource(file.Sources[i])
		if err := validateSource(src); err != nil {
			return nil, fmt.Errorf("sources[%d]: %w", i, err)
		}
		if _, dup := seen[src.ID]; dup {
			return nil, fmt.Errorf("duplicate source id %q", src.ID)
		}
		seen[src.ID] = struct{}{}
		out = append(out, src)
	}
	return out, nil
}

func sanitizeSource(src Source) Source {
	src.ID = strings.TrimSpace(src.ID)
	src.Name = strings.TrimSpace(src.Name)
	src.Topic = strings.TrimSpace(src.Topic)
	src.FeedURL = strings.TrimSpace(src.FeedURL)
	if src.Name == "" {
		src.Name = src.ID
	}
	if src.RequestDelayMS < 0 {
		src.RequestDelayMS = 0
	}
	return src
}

func validateSource(src Source) error {
	if src.ID == "" {
		return errors.New("id is required")
	}
	if src.Topic == "" {
		return fmt.Errorf("topic is required for source %q", src.ID)
	}
	if src.FeedURL == "" {
		return fmt.Errorf("feed_url is required for source %q", src.ID)
	}
	if !strings.HasPrefix(src.FeedURL, "http://") && !strings.HasPrefix(src.FeedURL, "https://") {
		return fmt.Errorf("feed_url must be absolute for source %q", src.ID)
	}
	return nil
}
