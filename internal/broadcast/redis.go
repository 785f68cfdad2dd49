// Package broadcast provides a Redis pub/sub backend for room groups so several
// server nodes can serve the same room.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/core"
)

// DefaultPrefix is prepended to room names to form channel names.
const DefaultPrefix = "roomchat:room:"

// Redis publishes events on one channel per room and fans received events out
// to the subscribers on this node.
type Redis struct {
	client *redis.Client
	prefix string
	local  *core.LocalBroadcaster
	log    *zerolog.Logger

	mu     sync.Mutex
	rooms  map[string]*roomSub
	wg     sync.WaitGroup
	closed bool
}

// roomSub is one open channel subscription. done is closed when the room is
// given up; stopped is closed when its listener has returned.
type roomSub struct {
	ps      *redis.PubSub
	done    chan struct{}
	stopped chan struct{}
}

// NewRedis creates a broadcaster on top of client. An empty prefix uses DefaultPrefix.
func NewRedis(client *redis.Client, prefix string, logger *zerolog.Logger) *Redis {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Redis{
		client: client,
		prefix: prefix,
		local:  core.NewLocalBroadcaster(),
		log:    logger,
		rooms:  make(map[string]*roomSub),
	}
}

// Subscribe adds sub to room. The first local subscriber opens the room's
// channel subscription and waits for Redis to confirm it, so events published
// after Subscribe returns are not missed.
func (r *Redis) Subscribe(room string, sub core.Subscriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("broadcaster closed")
	}

	if _, ok := r.rooms[room]; !ok {
		ctx := context.Background()
		ps := r.client.Subscribe(ctx, r.channel(room))
		if _, err := ps.Receive(ctx); err != nil {
			_ = ps.Close()
			return fmt.Errorf("subscribe %s: %w", room, err)
		}
		rs := &roomSub{ps: ps, done: make(chan struct{}), stopped: make(chan struct{})}
		r.rooms[room] = rs

		r.wg.Add(1)
		go r.listen(room, rs)
	}

	return r.local.Subscribe(room, sub)
}

// Unsubscribe removes sub. The last local subscriber closes the room's channel
// subscription and waits for its listener to return, so a later Subscribe to
// the same room never sees events buffered for the old subscription.
func (r *Redis) Unsubscribe(room string, sub core.Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.local.Unsubscribe(room, sub)
	if r.local.Count(room) > 0 {
		return
	}
	if rs, ok := r.rooms[room]; ok {
		delete(r.rooms, room)
		r.stop(room, rs)
		<-rs.stopped
	}
}

// Publish sends ev to every node subscribed to room.
func (r *Redis) Publish(ctx context.Context, room string, ev *core.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel(room), data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", room, err)
	}
	return nil
}

// Close ends all room subscriptions. The Redis client is owned by the caller.
func (r *Redis) Close() error {
	r.mu.Lock()
	r.closed = true
	for room, rs := range r.rooms {
		r.stop(room, rs)
		delete(r.rooms, room)
	}
	r.mu.Unlock()

	r.wg.Wait()
	return r.local.Close()
}

func (r *Redis) stop(room string, rs *roomSub) {
	close(rs.done)
	if err := rs.ps.Close(); err != nil {
		r.log.Warn().Err(err).Str("room", room).Msg("close room subscription")
	}
}

func (r *Redis) listen(room string, rs *roomSub) {
	defer r.wg.Done()
	defer close(rs.stopped)

	for msg := range rs.ps.Channel() {
		select {
		case <-rs.done:
			// Drain what was already buffered without delivering it.
			continue
		default:
		}
		var ev core.Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			r.log.Warn().Err(err).Str("room", room).Msg("dropping undecodable event")
			continue
		}
		r.local.Deliver(room, &ev)
	}
}

func (r *Redis) channel(room string) string {
	return r.prefix + room
}

var _ core.Broadcaster = (*Redis)(nil)
