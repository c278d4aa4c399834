package telemetry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/components/internal/ir"
)

// Sender delivers one event to the channel named by ev.Socket.
type Sender interface {
	Send(ctx context.Context, ev ir.Event) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, ev ir.Event) error

func (f SenderFunc) Send(ctx context.Context, ev ir.Event) error {
	return f(ctx, ev)
}

// Discard drops every event.
var Discard Sender = SenderFunc(func(context.Context, ir.Event) error { return nil })

// Allowed reports whether an event of the given kind may be emitted.
//
// debug and log need a live channel and debug mode. status needs only a
// live channel.
func Allowed(kind ir.EventKind, socket *ir.Socket, debugMode bool) bool {
	if !socket.Live() {
		return false
	}
	switch kind {
	case ir.EventDebug, ir.EventLog:
		return debugMode
	case ir.EventStatus:
		return true
	default:
		return false
	}
}

// Sink receives events on the observing side.
type Sink interface {
	Deliver(ev ir.Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ev ir.Event)

func (f SinkFunc) Deliver(ev ir.Event) { f(ev) }

// SinkSender is a Sender that hands events straight to a Sink.
// Used when the whole call tree runs in one process.
type SinkSender struct {
	sink Sink
}

// NewSinkSender returns a Sender delivering to sink.
func NewSinkSender(sink Sink) *SinkSender {
	return &SinkSender{sink: sink}
}

func (s *SinkSender) Send(ctx context.Context, ev ir.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.sink.Deliver(ev)
	return nil
}

// ActionDefault is the action a client sends to open a channel.
const ActionDefault = "$default"

// Frame is one socket message in either direction.
type Frame struct {
	Action string          `json:"action,omitempty"`
	Event  ir.EventKind    `json:"event,omitempty"`
	Name   string          `json:"name,omitempty"`
	Seq    int64           `json:"seq,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// frameFor renders an event as a socket frame.
func frameFor(ev ir.Event) (Frame, error) {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return Frame{}, fmt.Errorf("encode %s event: %w", ev.Kind, err)
	}
	return Frame{Event: ev.Kind, Name: ev.Name, Seq: ev.Seq, Data: data}, nil
}

// eventFor converts a received frame back into an event. Non-string data
// is delivered as its JSON text.
func eventFor(f Frame) ir.Event {
	ev := ir.Event{
		Identity: ir.Identity{Name: f.Name},
		Kind:     f.Event,
		Seq:      f.Seq,
	}
	var text string
	if err := json.Unmarshal(f.Data, &text); err == nil {
		ev.Data = text
	} else {
		ev.Data = string(f.Data)
	}
	return ev
}
