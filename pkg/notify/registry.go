package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Builder creates a Notifier from a sink config entry.
type Builder func(ctx context.Context, cfg SinkConfig, log Logger) (Notifier, error)

// Registry maps sink types to builders.
type Registry interface {
	Register(typ string, builder Builder)
	NotifierFor(ctx context.Context, cfg SinkConfig, log Logger) (Notifier, error)
}

type registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// NewRegistry returns a registry with optional pre-registered builders.
func NewRegistry(builders map[string]Builder) Registry {
	r := &registry{builders: make(map[string]Builder)}
	for typ, b := range builders {
		r.Register(typ, b)
	}
	return r
}

func (r *registry) Register(typ string, builder Builder) {
	if typ = strings.TrimSpace(strings.ToLower(typ)); typ == "" || builder == nil {
		return
	}
	r.mu.Lock()
	r.builders[typ] = builder
	r.mu.Unlock()
}

func (r *registry) NotifierFor(ctx context.Context, cfg SinkConfig, log Logger) (Notifier, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("sink %q has no type configured", cfg.ID)
	}

	r.mu.RLock()
	builder := r.builders[strings.ToLower(cfg.Type)]
	r.mu.RUnlock()

	if builder == nil {
		return nil, fmt.Errorf("no sink registered for type %q", cfg.Type)
	}
	return builder(ctx, cfg, log)
}

// DefaultRegistry wires up known sink types.
func DefaultRegistry() Registry {
	return NewRegistry(map[string]Builder{
		TypeHTTP: newHTTPSink,
		TypeSQS:  newSQSSink,
	})
}

// BuildAll instantiates notifiers for the enabled sink configs.
func BuildAll(ctx context.Context, reg Registry, cfgs []SinkConfig, log Logger) ([]Notifier, error) {
	if reg == nil || len(cfgs) == 0 {
		return nil, nil
	}

	var sinks []Notifier
	for _, cfg := range cfgs {
		if !cfg.EnabledValue() {
			continue
		}
		sink, err := reg.NotifierFor(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sink)
	}
	return sinks, nil
}
