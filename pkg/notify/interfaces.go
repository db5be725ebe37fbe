package notify

import "context"

// Notifier delivers audit events to a downstream sink (SQS, HTTP, etc).
type Notifier interface {
	ID() string
	Type() string
	Notify(ctx context.Context, evt Event) error
}
