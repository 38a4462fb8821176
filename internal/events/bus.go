// Package events carries document lifecycle events from the processing
// pipeline to connected clients. Delivery is at-least-once and unordered
// across documents; correctness relies on the idempotent merge applied by
// consumers, not on the transport.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Bus is the publish side of the lifecycle event channel plus a subscription
// entry point for in-process consumers (the websocket hub).
type Bus interface {
	// Publish wraps payload in an Envelope and hands it to the transport.
	Publish(ctx context.Context, eventType string, payload interface{}) error
	// Subscribe registers a consumer. The returned cancel func detaches it.
	// Handlers must not block; slow consumers get envelopes dropped rather
	// than stalling delivery for other subscribers.
	Subscribe(handler func(Envelope)) (cancel func())
}

func newEnvelope(eventType string, payload interface{}) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal payload: %w", err)
	}
	env := Envelope{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
	if err := env.ValidateBasic(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}
