package pubsub

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
)

// RedisUpstream carries events over a Redis pub/sub channel.
type RedisUpstream struct {
	fanout
	rdb     *redis.Client
	ps      *redis.PubSub
	channel string
	cancel  context.CancelFunc
}

// NewRedisUpstream subscribes to channel on rdb
func NewRedisUpstream(rdb *redis.Client, channel string) (*RedisUpstream, error) {
	ctx, cancel := context.WithCancel(context.Background())
	ps := rdb.Subscribe(ctx, channel)
	// Wait for the subscription to be confirmed before publishing anything
	if _, err := ps.Receive(ctx); err != nil {
		cancel()
		ps.Close()
		return nil, err
	}

	u := &RedisUpstream{rdb: rdb, ps: ps, channel: channel, cancel: cancel}
	go func() {
		log.Printf("[BUS] redis subscriber started on %s", channel)
		for msg := range ps.Channel() {
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Printf("[BUS] invalid redis payload: %v", err)
				continue
			}
			u.deliver(event)
		}
		log.Printf("[BUS] redis subscriber on %s stopped", channel)
	}()
	return u, nil
}

// Publish sends event on the channel
func (u *RedisUpstream) Publish(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[BUS] failed to marshal event: %v", err)
		return
	}
	if err := u.rdb.Publish(context.Background(), u.channel, data).Err(); err != nil {
		log.Printf("[BUS] failed to publish to redis: %v", err)
	}
}

func (u *RedisUpstream) Subscribe() chan Event      { return u.subscribe() }
func (u *RedisUpstream) Unsubscribe(ch chan Event) { u.unsubscribe(ch) }

// Close stops the subscription. The client itself is owned by the caller.
func (u *RedisUpstream) Close() error {
	u.cancel()
	err := u.ps.Close()
	u.closeAll()
	return err
}
