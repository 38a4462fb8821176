package events

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBus is a Bus backed by a Redis Stream with a consumer group. It lets
// several server replicas share one lifecycle feed: every replica consumes the
// stream and pushes to its own websocket clients. Unacked entries are
// reclaimed and redelivered, which is where the at-least-once semantics come
// from.
type RedisBus struct {
	client *redis.Client
	local  *Broker
	logger *log.Logger
	stream string
	group  string
	name   string
	maxLen int64
}

// RedisBusConfig configures a RedisBus.
type RedisBusConfig struct {
	Stream   string
	Group    string
	Consumer string
	// MaxLenApprox trims the stream to roughly this many entries (0 = unbounded).
	MaxLenApprox int64
}

// NewRedisBus connects the bus to Redis and creates the consumer group if it
// does not exist yet.
func NewRedisBus(ctx context.Context, client *redis.Client, cfg RedisBusConfig, logger *log.Logger) (*RedisBus, error) {
	if cfg.Stream == "" || cfg.Group == "" {
		return nil, fmt.Errorf("stream and group must be provided")
	}
	if cfg.Consumer == "" {
		cfg.Consumer = "docpolish-1"
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[EVENTS] ", log.LstdFlags)
	}
	if err := client.XGroupCreateMkStream(ctx, cfg.Stream, cfg.Group, "$").Err(); err != nil {
		if !strings.Contains(err.Error(), "BUSYGROUP") {
			return nil, fmt.Errorf("xgroup create: %w", err)
		}
	}
	return &RedisBus{
		client: client,
		local:  NewBroker(),
		logger: logger,
		stream: cfg.Stream,
		group:  cfg.Group,
		name:   cfg.Consumer,
		maxLen: cfg.MaxLenApprox,
	}, nil
}

// Publish appends the envelope to the stream.
func (b *RedisBus) Publish(ctx context.Context, eventType string, payload interface{}) error {
	env, err := newEnvelope(eventType, payload)
	if err != nil {
		return err
	}
	raw, err := env.Marshal()
	if err != nil {
		return err
	}
	args := &redis.XAddArgs{
		Stream: b.stream,
		Values: map[string]interface{}{"envelope": raw},
	}
	if b.maxLen > 0 {
		args.MaxLen = b.maxLen
		args.Approx = true
	}
	if err := b.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd: %w", err)
	}
	eventsPublished.Inc()
	return nil
}

// Subscribe registers an in-process handler fed by the stream read loop.
func (b *RedisBus) Subscribe(handler func(Envelope)) (cancel func()) {
	return b.local.Subscribe(handler)
}

// Run blocks, pumping stream entries into local subscribers until ctx ends.
func (b *RedisBus) Run(ctx context.Context) error {
	b.logger.Printf("consuming stream %s as %s/%s", b.stream, b.group, b.name)
	claimStart := "0-0"
	for {
		select {
		case <-ctx.Done():
			b.local.Close()
			return nil
		default:
		}

		res, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    b.group,
			Consumer: b.name,
			Streams:  []string{b.stream, ">"},
			Block:    5 * time.Second,
			Count:    32,
		}).Result()
		if err != nil && err != redis.Nil {
			if ctx.Err() != nil {
				b.local.Close()
				return nil
			}
			b.logger.Printf("error reading stream: %v", err)
			time.Sleep(time.Second)
			continue
		}
		for _, st := range res {
			for _, msg := range st.Messages {
				b.dispatch(ctx, msg, 0)
			}
		}

		// reclaim entries another consumer read but never acked
		claimed, next, err := b.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   b.stream,
			Group:    b.group,
			Consumer: b.name,
			MinIdle:  30 * time.Second,
			Start:    claimStart,
			Count:    32,
		}).Result()
		if err == nil {
			claimStart = next
			for _, msg := range claimed {
				b.dispatch(ctx, msg, 1)
			}
		}
	}
}

func (b *RedisBus) dispatch(ctx context.Context, msg redis.XMessage, attemptBump int) {
	defer func() {
		if err := b.client.XAck(ctx, b.stream, b.group, msg.ID).Err(); err != nil {
			b.logger.Printf("warn: failed to ack %s: %v", msg.ID, err)
		}
	}()

	raw, ok := msg.Values["envelope"]
	if !ok {
		return
	}
	var data []byte
	switch v := raw.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return
	}
	env, err := UnmarshalEnvelope(data)
	if err != nil {
		b.logger.Printf("warn: bad envelope %s: %v", msg.ID, err)
		return
	}
	env.Attempt += attemptBump
	if env.Attempt > 0 {
		eventsRedelivered.Inc()
	}
	b.local.publish(env)
}

var _ Bus = (*RedisBus)(nil)
