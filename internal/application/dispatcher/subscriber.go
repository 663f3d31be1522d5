package dispatcher

import (
	"context"
	"sync/atomic"

	"github.com/garyjia/justifi/internal/domain/event"
)

// Handler reacts to one domain event.
type Handler func(ctx context.Context, evt *event.Event) error

// SubscriberStats is a point-in-time view of one subscription.
type SubscriberStats struct {
	Name      string       `json:"name"`
	Types     []event.Type `json:"types"`
	Delivered int64        `json:"delivered"`
	Failed    int64        `json:"failed"`
}

type subscriber struct {
	name    string
	types   []event.Type
	handler Handler

	delivered atomic.Int64
	failed    atomic.Int64
}

func (s *subscriber) stats() SubscriberStats {
	return SubscriberStats{
		Name:      s.name,
		Types:     append([]event.Type(nil), s.types...),
		Delivered: s.delivered.Load(),
		Failed:    s.failed.Load(),
	}
}
