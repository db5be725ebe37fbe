package notify

import (
	"context"
	"errors"
	"fmt"
)

// Fanout dispatches events to all configured sinks.
type Fanout struct {
	sinks []Notifier
}

// NewFanout builds a dispatcher that fans out events across sinks.
func NewFanout(sinks []Notifier) *Fanout {
	cp := make([]Notifier, 0, len(sinks))
	for _, s := range sinks {
		if s == nil {
			continue
		}
		cp = append(cp, s)
	}
	return &Fanout{sinks: cp}
}

// Notify forwards the event to every registered sink.
// It returns the number of sinks that handled the event.
func (f *Fanout) Notify(ctx context.Context, evt Event) (int, error) {
	if f == nil || len(f.sinks) == 0 {
		return 0, nil
	}

	var errs []error
	delivered := 0
	for _, s := range f.sinks {
		if err := s.Notify(ctx, evt); err != nil {
			errs = append(errs, fmt.Errorf("%s sink[%s]: %w", s.Type(), s.ID(), err))
		} else {
			delivered++
		}
	}
	return delivered, errors.Join(errs...)
}

// Size returns the number of active sinks.
func (f *Fanout) Size() int {
	if f == nil {
		return 0
	}
	return len(f.sinks)
}
