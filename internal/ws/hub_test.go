package ws

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hylo-so/hylo-engine/internal/store"
	"github.com/hylo-so/hylo-engine/pkg/kv/memory"
)

type testEnv struct {
	cache  *store.Cache
	bus    *store.PubSubHub
	hub    *Hub
	server *httptest.Server
}

func newTestEnv(t *testing.T, origins ...string) *testEnv {
	t.Helper()
	kv := memory.New(0)
	bus := store.NewPubSubHub()
	cache := store.NewCache(kv, bus, nil, nil)
	hub := NewHub(cache, origins, nil, nil)
	hub.SetInitial(TopicState, func(context.Context) (any, error) {
		return map[string]string{"stability_mode": "Normal"}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	require.Eventually(t, func() bool {
		return bus.Subscribers(store.ChannelProtocolState) == 1
	}, time.Second, 5*time.Millisecond)

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws", hub.HandleWebSocket)
	mux.HandleFunc("/v1/events", NewSSEHandler(cache, nil).HandleSSE)
	server := httptest.NewServer(mux)

	t.Cleanup(func() {
		server.Close()
		cancel()
		kv.Close()
	})
	return &testEnv{cache: cache, bus: bus, hub: hub, server: server}
}

func (e *testEnv) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/v1/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var m Message
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

func TestHub_SubscribeAndBroadcast(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t, "")

	require.NoError(t, conn.WriteJSON(SubscriptionRequest{Type: "subscribe", Topics: []string{"protocol"}}))

	snap := readMessage(t, conn)
	assert.Equal(t, "snapshot", snap.Type)
	assert.Equal(t, TopicState, snap.Topic)
	assert.JSONEq(t, `{"stability_mode":"Normal"}`, string(snap.Data))

	ack := readMessage(t, conn)
	assert.Equal(t, "subscribed", ack.Type)
	assert.Equal(t, []string{TopicState}, ack.Topics)
	assert.Equal(t, 1, env.hub.Clients())

	ctx := context.Background()
	require.NoError(t, env.cache.Publish(ctx, store.ChannelPrice, map[string]string{"price": "151"}))
	require.NoError(t, env.cache.Publish(ctx, store.ChannelProtocolState, map[string]int{"slot": 1001}))

	// The price update is filtered out.
	update := readMessage(t, conn)
	assert.Equal(t, "update", update.Type)
	assert.Equal(t, TopicState, update.Topic)
	assert.JSONEq(t, `{"slot":1001}`, string(update.Data))
}

func TestHub_QueryTopicsAndUnsubscribe(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t, "?topics=price")

	require.NoError(t, conn.WriteJSON(SubscriptionRequest{Type: "ping"}))
	assert.Equal(t, "pong", readMessage(t, conn).Type)

	require.NoError(t, env.cache.Publish(context.Background(), store.ChannelPrice, map[string]string{"price": "151"}))
	update := readMessage(t, conn)
	assert.Equal(t, TopicPrice, update.Topic)

	require.NoError(t, conn.WriteJSON(SubscriptionRequest{Type: "unsubscribe", Topics: []string{"price"}}))
	assert.Equal(t, "unsubscribed", readMessage(t, conn).Type)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "dance"}))
	m := readMessage(t, conn)
	assert.Equal(t, "error", m.Type)
	assert.Contains(t, m.Error, "dance")
}

func TestHub_DisconnectUnregisters(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t, "")
	require.NoError(t, conn.WriteJSON(SubscriptionRequest{Type: "ping"}))
	readMessage(t, conn)
	assert.Equal(t, 1, env.hub.Clients())

	conn.Close()
	assert.Eventually(t, func() bool { return env.hub.Clients() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_CheckOrigin(t *testing.T) {
	env := newTestEnv(t, "https://app.hylo.so")
	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/v1/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://app.hylo.so"}})
	require.NoError(t, err)
	conn.Close()
}

func TestSSE_StreamsEvents(t *testing.T) {
	env := newTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.server.URL+"/v1/events?topics=price", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)
	readEvent := func() (event, data string) {
		for {
			line, err := r.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimSpace(line)
			switch {
			case strings.HasPrefix(line, "event: "):
				event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			case line == "":
				return event, data
			}
		}
	}

	event, data := readEvent()
	assert.Equal(t, "connected", event)
	assert.JSONEq(t, `{"topics":["price"]}`, data)

	require.NoError(t, env.cache.Publish(context.Background(), store.ChannelPrice, map[string]string{"price": "151"}))
	event, data = readEvent()
	assert.Equal(t, "price_update", event)
	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(data), &got))
	assert.Equal(t, "151", got["price"])
}

func TestParseTopics(t *testing.T) {
	tests := []struct {
		in   []string
		want []string
	}{
		{in: []string{"state"}, want: []string{TopicState}},
		{in: []string{"protocol_state", " PRICE ", "state"}, want: []string{TopicState, TopicPrice}},
		{in: []string{"*"}, want: []string{TopicAll}},
		{in: []string{"candles", ""}, want: nil},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.in, ","), func(t *testing.T) {
			assert.Equal(t, tt.want, ParseTopics(tt.in))
		})
	}
	assert.Equal(t, TopicState, TopicFor(store.ChannelProtocolState))
	assert.Equal(t, "other", TopicFor("other"))
}
