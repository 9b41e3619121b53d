package clobengine

import (
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
)

// wsEchoServer accepts one connection, records subscriptions, and pushes a
// canned book update for every book subscription it sees.
func wsEchoServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			var msg subscribeMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if msg.Action != actionSubscribe || msg.Channel != ChannelBook {
				continue
			}
			data, _ := json.Marshal(BookUpdate{
				TokenID: msg.TokenID,
				Asks:    []bookLevelJSON{{Price: "0.50", Size: "40"}},
			})
			conn.WriteJSON(streamEnvelope{Channel: ChannelBook, Data: data})
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestMarketStreamDeliversBookUpdates(t *testing.T) {
	srv := wsEchoServer(t)
	defer srv.Close()

	updates := make(chan BookUpdate, 1)
	s := NewMarketStream(StreamConfig{
		Endpoint: wsURL(srv),
		OnBook:   func(u BookUpdate) { updates <- u },
	})
	require.NoError(t, s.Connect(context.Background()))
	defer s.Close()

	require.NoError(t, s.SubscribeBook("123"))

	select {
	case u := <-updates:
		assert.Equal(t, "123", u.TokenID)
		require.Len(t, u.Asks, 1)
		assert.Equal(t, "0.50", u.Asks[0].Price)
	case <-time.After(2 * time.Second):
		t.Fatal("no book update received")
	}
}

func TestMarketStreamSendRequiresConnection(t *testing.T) {
	s := NewMarketStream(StreamConfig{Endpoint: "ws://unused"})
	require.Error(t, s.SubscribeBook("123"))
}

func TestMarketStreamReconnectsAfterClose(t *testing.T) {
	srv := wsEchoServer(t)
	defer srv.Close()

	updates := make(chan BookUpdate, 1)
	s := NewMarketStream(StreamConfig{
		Endpoint: wsURL(srv),
		OnBook:   func(u BookUpdate) { updates <- u },
	})
	require.NoError(t, s.Connect(context.Background()))
	require.NoError(t, s.Close())

	// A closed stream can start a fresh session.
	require.NoError(t, s.Connect(context.Background()))
	defer s.Close()
	require.NoError(t, s.SubscribeBook("456"))

	select {
	case u := <-updates:
		assert.Equal(t, "456", u.TokenID)
	case <-time.After(2 * time.Second):
		t.Fatal("no book update after reconnect")
	}
}

func TestMarketStreamConnectIsIdempotent(t *testing.T) {
	srv := wsEchoServer(t)
	defer srv.Close()

	s := NewMarketStream(StreamConfig{Endpoint: wsURL(srv)})
	require.NoError(t, s.Connect(context.Background()))
	require.NoError(t, s.Connect(context.Background())) // already connected
	require.NoError(t, s.Close())
	require.NoError(t, s.Close()) // already closed
}
