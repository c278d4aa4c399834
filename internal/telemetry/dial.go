package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roach88/components/internal/ir"
)

const handshakeTimeout = 10 * time.Second

// Conn is an observer's end of a telemetry channel.
type Conn struct {
	ws     *websocket.Conn
	socket ir.Socket
	logger *slog.Logger
	once   sync.Once
}

// Dial opens a channel at url and completes the echo handshake. The
// returned Conn's Socket is attached to invocations so their events route
// back here.
func Dial(ctx context.Context, url string, logger *slog.Logger) (*Conn, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial telemetry socket: %w", err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = ws.SetReadDeadline(deadline)
	}
	if err := ws.WriteJSON(Frame{Action: ActionDefault}); err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("telemetry handshake: %w", err)
	}

	for {
		var f Frame
		if err := ws.ReadJSON(&f); err != nil {
			_ = ws.Close()
			return nil, fmt.Errorf("telemetry handshake: %w", err)
		}
		if f.Event != ir.EventEcho {
			continue
		}
		var socket ir.Socket
		if err := json.Unmarshal(f.Data, &socket); err != nil {
			_ = ws.Close()
			return nil, fmt.Errorf("telemetry handshake: bad echo: %w", err)
		}
		if socket.ConnectionID == "" {
			_ = ws.Close()
			return nil, errors.New("telemetry handshake: echo without connection id")
		}
		_ = ws.SetReadDeadline(time.Time{})
		logger.Debug("telemetry channel open", "connection_id", socket.ConnectionID)
		return &Conn{ws: ws, socket: socket, logger: logger}, nil
	}
}

// Socket returns the channel reference announced by the server.
func (c *Conn) Socket() ir.Socket {
	return c.socket
}

// Run delivers debug, log and status frames to sink until the channel
// closes or ctx is done. A normal close or cancellation returns nil.
func (c *Conn) Run(ctx context.Context, sink Sink) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-done:
		}
	}()

	for {
		var f Frame
		if err := c.ws.ReadJSON(&f); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read telemetry frame: %w", err)
		}
		switch f.Event {
		case ir.EventDebug, ir.EventLog, ir.EventStatus:
			sink.Deliver(eventFor(f))
		default:
			c.logger.Debug("telemetry frame ignored", "event", f.Event)
		}
	}
}

// Close closes the channel. Safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		_ = c.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		err = c.ws.Close()
	})
	return err
}
