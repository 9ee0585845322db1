package ws

import (
	"strings"

	"github.com/hylo-so/hylo-engine/internal/store"
)

// Topics clients subscribe to, and the bus channels behind them.
const (
	TopicState = "state"
	TopicPrice = "price"
	TopicAll   = "*"
)

var topicChannels = map[string]string{
	TopicState: store.ChannelProtocolState,
	TopicPrice: store.ChannelPrice,
}

// Channels lists every bus channel the hub relays.
func Channels() []string {
	return []string{store.ChannelProtocolState, store.ChannelPrice}
}

// TopicFor maps a bus channel back to its client topic.
func TopicFor(channel string) string {
	for topic, ch := range topicChannels {
		if ch == channel {
			return topic
		}
	}
	return channel
}

// ParseTopics normalizes a client topic list, accepting the aliases
// "protocol" and "protocol_state" for state. Unknown topics are dropped.
func ParseTopics(raw []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, t := range raw {
		t = strings.ToLower(strings.TrimSpace(t))
		switch t {
		case "protocol", "protocol_state":
			t = TopicState
		case "prices", "sol_usd":
			t = TopicPrice
		}
		if _, ok := topicChannels[t]; !ok && t != TopicAll {
			continue
		}
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func eventType(topic string) string {
	switch topic {
	case TopicState:
		return "protocol_update"
	case TopicPrice:
		return "price_update"
	default:
		return "update"
	}
}
