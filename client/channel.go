package client

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"github.com/docpolish/docpolish/internal/document"
)

const (
	reconnectMin = time.Second
	reconnectMax = 30 * time.Second
)

// frame mirrors the envelope the server writes on the push channel.
type frame struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	EventID string `json:"event_id,omitempty"`
	document.Event
}

// EventChannel maintains the websocket connection to the server and feeds
// every lifecycle frame into the store. Delivery is at least once and may be
// reordered across reconnects; the store's merge absorbs both.
type EventChannel struct {
	logger *log.Logger
	url    string
	store  *Store
	dialer *websocket.Dialer
}

// NewEventChannel builds a channel for the given websocket URL, for example
// ws://localhost:5000/ws.
func NewEventChannel(url string, store *Store, logger *log.Logger) *EventChannel {
	if logger == nil {
		logger = log.New(log.Writer(), "[CLIENT] ", log.LstdFlags)
	}
	return &EventChannel{
		logger: logger,
		url:    url,
		store:  store,
		dialer: websocket.DefaultDialer,
	}
}

// Run connects and consumes frames until ctx is cancelled, reconnecting with
// exponential backoff after any failure. A session that delivered at least
// one frame resets the backoff to its minimum.
func (c *EventChannel) Run(ctx context.Context) error {
	backoff := reconnectMin
	for {
		delivered, err := c.consume(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if delivered {
			backoff = reconnectMin
		}
		if err != nil {
			c.logger.Printf("event channel disconnected: %v (retrying in %s)", err, backoff)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > reconnectMax {
			backoff = reconnectMax
		}
	}
}

// consume runs one connection lifetime and reports whether at least one frame
// was read, so the caller can tell a working session from a flapping one.
func (c *EventChannel) consume(ctx context.Context) (delivered bool, err error) {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	// close the socket when ctx is cancelled so ReadMessage unblocks
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return delivered, err
		}
		delivered = true
		var f frame
		if err := json.Unmarshal(payload, &f); err != nil {
			c.logger.Printf("warn: drop malformed frame: %v", err)
			continue
		}
		switch f.Type {
		case "connected":
			c.logger.Printf("event channel connected: %s", f.Message)
		case "document_update":
			c.store.ApplyEvent(f.Event)
		default:
			// unknown frame types are forward compatibility, not errors
		}
	}
}
