package testutil

import (
	"context"
	"sync"

	"github.com/roach88/components/internal/ir"
)

// RecordingSender captures telemetry events in send order.
// A non-nil Err is returned from every Send after recording.
type RecordingSender struct {
	Err error

	mu     sync.Mutex
	events []ir.Event
}

func (r *RecordingSender) Send(ctx context.Context, ev ir.Event) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	return r.Err
}

// Events returns a copy of everything sent so far.
func (r *RecordingSender) Events() []ir.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ir.Event(nil), r.events...)
}

// Data returns the payloads of events of the given kind.
func (r *RecordingSender) Data(kind ir.EventKind) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		if ev.Kind == kind {
			out = append(out, ev.Data)
		}
	}
	return out
}
