package ws

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hylo-so/hylo-engine/internal/store"
)

// SSEHandler streams the same events as the websocket hub over
// server-sent events, for clients that cannot hold a websocket.
type SSEHandler struct {
	cache     *store.Cache
	logger    *zap.SugaredLogger
	heartbeat time.Duration
}

func NewSSEHandler(cache *store.Cache, logger *zap.SugaredLogger) *SSEHandler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &SSEHandler{
		cache:     cache,
		logger:    logger,
		heartbeat: 30 * time.Second,
	}
}

// HandleSSE serves /v1/events?topics=state,price. Without topics the
// stream carries protocol state updates only.
func (h *SSEHandler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	topics := ParseTopics(strings.Split(r.URL.Query().Get("topics"), ","))
	if len(topics) == 0 {
		topics = []string{TopicState}
	}
	channels := make([]string, 0, len(topics))
	for _, t := range topics {
		if t == TopicAll {
			channels = Channels()
			break
		}
		channels = append(channels, topicChannels[t])
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	sub := h.cache.Subscribe(ctx, channels...)
	defer sub.Close()

	h.logger.Debugw("SSE connection established", "topics", topics)
	h.sendEvent(w, flusher, "connected", "", map[string]any{"topics": topics})

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			h.logger.Debugw("SSE client disconnected")
			return

		case <-heartbeat.C:
			h.sendEvent(w, flusher, "heartbeat", "ping", map[string]any{
				"timestamp": time.Now().Unix(),
			})

		case msg, ok := <-msgs:
			if !ok {
				return
			}
			topic := TopicFor(msg.Channel)
			h.sendEvent(w, flusher, eventType(topic), topic, json.RawMessage(msg.Payload))
		}
	}
}

func (h *SSEHandler) sendEvent(w http.ResponseWriter, f http.Flusher, event, id string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		h.logger.Errorw("Failed to marshal SSE data", "error", err)
		return
	}
	fmt.Fprintf(w, "event: %s\n", event)
	if id != "" {
		fmt.Fprintf(w, "id: %s\n", id)
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
	f.Flush()
}
