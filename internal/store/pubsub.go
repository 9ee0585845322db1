package store

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Message is a payload delivered on a channel.
type Message struct {
	Channel string
	Payload string
}

// Subscription delivers messages until closed or its context ends.
type Subscription interface {
	Channel() <-chan *Message
	Close() error
}

// Bus fans out protocol events to subscribers across the process or, with
// redis, across every process sharing the server.
type Bus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channels ...string) Subscription
}

type memorySubscription struct {
	channels map[string]bool
	msgChan  chan *Message
	closeCh  chan struct{}
	closed   bool
	mu       sync.RWMutex
}

func newMemorySubscription(channels []string) *memorySubscription {
	channelMap := make(map[string]bool, len(channels))
	for _, ch := range channels {
		channelMap[ch] = true
	}

	return &memorySubscription{
		channels: channelMap,
		msgChan:  make(chan *Message, 100),
		closeCh:  make(chan struct{}),
	}
}

func (m *memorySubscription) Channel() <-chan *Message {
	return m.msgChan
}

func (m *memorySubscription) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed {
		m.closed = true
		close(m.closeCh)
		close(m.msgChan)
	}
	return nil
}

// send drops the message when the subscriber is not keeping up.
func (m *memorySubscription) send(msg *Message) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed || !m.channels[msg.Channel] {
		return
	}

	select {
	case m.msgChan <- msg:
	default:
	}
}

// PubSubHub is the in-process Bus.
type PubSubHub struct {
	subscribers map[string][]*memorySubscription
	mu          sync.RWMutex
}

func NewPubSubHub() *PubSubHub {
	return &PubSubHub{
		subscribers: make(map[string][]*memorySubscription),
	}
}

func (h *PubSubHub) Subscribe(ctx context.Context, channels ...string) Subscription {
	sub := newMemorySubscription(channels)

	h.mu.Lock()
	for _, channel := range channels {
		h.subscribers[channel] = append(h.subscribers[channel], sub)
	}
	h.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.closeCh:
		}
		h.remove(sub, channels)
	}()

	return sub
}

func (h *PubSubHub) remove(sub *memorySubscription, channels []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, channel := range channels {
		subs := h.subscribers[channel]
		for i, s := range subs {
			if s == sub {
				h.subscribers[channel] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
		if len(h.subscribers[channel]) == 0 {
			delete(h.subscribers, channel)
		}
	}
}

func (h *PubSubHub) Publish(_ context.Context, channel string, payload []byte) error {
	h.mu.RLock()
	subs := append([]*memorySubscription(nil), h.subscribers[channel]...)
	h.mu.RUnlock()

	msg := &Message{Channel: channel, Payload: string(payload)}
	for _, sub := range subs {
		sub.send(msg)
	}
	return nil
}

// Subscribers reports how many subscriptions listen on channel.
func (h *PubSubHub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[channel])
}

// RedisBus publishes through redis PUBLISH/SUBSCRIBE.
type RedisBus struct {
	client *redis.Client
}

func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client}
}

func (b *RedisBus) Publish(ctx context.Context, channel string, payload []byte) error {
	return b.client.Publish(ctx, channel, payload).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, channels ...string) Subscription {
	ps := b.client.Subscribe(ctx, channels...)
	sub := &redisSubscription{ps: ps, out: make(chan *Message, 100)}

	go func() {
		defer close(sub.out)
		in := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				ps.Close()
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case sub.out <- &Message{Channel: msg.Channel, Payload: msg.Payload}:
				default:
				}
			}
		}
	}()

	return sub
}

type redisSubscription struct {
	ps  *redis.PubSub
	out chan *Message
}

func (s *redisSubscription) Channel() <-chan *Message { return s.out }

func (s *redisSubscription) Close() error { return s.ps.Close() }
