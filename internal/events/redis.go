package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/roach88/revdel/internal/log"
)

// defaultRetryDelay is the pause after a failed receive before the listener
// reads again.
const defaultRetryDelay = 500 * time.Millisecond

// Redis publishes JSON encoded values on a pub/sub channel so that every
// process subscribed to it sees them.
type Redis[T any] struct {
	client  *redis.Client
	channel string
	local   *Memory[T]

	active     int
	pubsub     *redis.PubSub
	cancel     context.CancelFunc
	retryDelay time.Duration
}

// NewRedis creates a cross-process notifier on channel.
func NewRedis[T any](client *redis.Client, channel string, opts MemoryOptions) (*Redis[T], error) {
	if client == nil {
		return nil, errors.New("events: redis client is required")
	}
	if channel == "" {
		return nil, errors.New("events: channel is required")
	}
	return &Redis[T]{
		client:     client,
		channel:    channel,
		local:      NewMemory[T](opts),
		retryDelay: defaultRetryDelay,
	}, nil
}

// Subscribe starts the channel listener with the first subscriber and stops
// it with the last.
func (r *Redis[T]) Subscribe() (<-chan T, func()) {
	ch, stop := r.local.Subscribe()

	r.local.mu.Lock()
	r.active++
	if r.active == 1 {
		r.startLocked()
	}
	r.local.mu.Unlock()

	var done bool
	return ch, func() {
		stop()
		r.local.mu.Lock()
		defer r.local.mu.Unlock()
		if done {
			return
		}
		done = true
		r.active--
		if r.active == 0 {
			r.stopLocked()
		}
	}
}

func (r *Redis[T]) Notify(ctx context.Context, v T) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", r.channel, err)
	}
	return nil
}

func (r *Redis[T]) startLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.pubsub = r.client.Subscribe(ctx, r.channel)
	// Wait for the subscription confirmation so a Notify issued right after
	// Subscribe is not lost. On failure the listener keeps retrying.
	if _, err := r.pubsub.Receive(ctx); err != nil {
		log.Warn(ctx, "event subscribe failed", log.String("channel", r.channel), log.Cause(err))
	}

	go r.receive(ctx, r.pubsub)
}

func (r *Redis[T]) receive(ctx context.Context, ps *redis.PubSub) {
	for {
		msg, err := ps.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, redis.ErrClosed) {
				return
			}
			log.Warn(ctx, "event receive failed", log.String("channel", r.channel), log.Cause(err))
			if !sleep(ctx, r.retryDelay) {
				return
			}
			continue
		}

		var v T
		if err := json.Unmarshal([]byte(msg.Payload), &v); err != nil {
			log.Warn(ctx, "event decode failed",
				log.String("channel", r.channel),
				log.String("payload", msg.Payload),
				log.Cause(err))
			continue
		}

		r.local.mu.Lock()
		r.local.broadcastLocked(v)
		r.local.mu.Unlock()
	}
}

func (r *Redis[T]) stopLocked() {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	if r.pubsub != nil {
		_ = r.pubsub.Close()
		r.pubsub = nil
	}
}

// sleep waits for d and reports false when ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
