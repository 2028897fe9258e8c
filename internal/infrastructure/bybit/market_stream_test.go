package bybit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romanzzaa/bybit-orderbook-monitor/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingSink struct {
	accepting atomic.Bool
	updates   chan domain.RawUpdate
}

func newRecordingSink(accepting bool) *recordingSink {
	s := &recordingSink{updates: make(chan domain.RawUpdate, 16)}
	s.accepting.Store(accepting)
	return s
}

func (s *recordingSink) Accepting() bool { return s.accepting.Load() }

func (s *recordingSink) OnUpdate(_ context.Context, u domain.RawUpdate) { s.updates <- u }

// fakeFeed поднимает websocket сервер, script пишет кадры после подписки
func fakeFeed(t *testing.T, subscribed chan<- []string, script func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var req wsRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		if subscribed != nil {
			subscribed <- req.Args
		}

		script(conn)
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func drain(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func TestMarketStreamSubscribesAndParses(t *testing.T) {
	subscribed := make(chan []string, 1)
	srv := fakeFeed(t, subscribed, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(`{"success":true,"ret_msg":"","conn_id":"x","op":"subscribe"}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"topic":"orderbook.500.BTCUSDT"}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"topic":"orderbook.500.BTCUSDT","type":"delta","ts":1,
			"data":{"s":"BTCUSDT","a":[["90000.5","12"],["oops","1"]],"b":[["89999","0.5"]],"u":7,"seq":9}}`))
		drain(conn)
	})
	defer srv.Close()

	stream := NewMarketStream(StreamOptions{URL: wsURL(srv), IdlePoll: 10 * time.Millisecond}, testLogger())
	sink := newRecordingSink(true)
	topics := []string{"orderbook.500.BTCUSDT", "orderbook.500.ETHUSDT"}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- stream.Run(ctx, topics, sink) }()

	select {
	case got := <-subscribed:
		assert.Equal(t, topics, got)
	case <-time.After(2 * time.Second):
		t.Fatal("no subscribe request")
	}

	select {
	case u := <-sink.updates:
		assert.Equal(t, "orderbook.500.BTCUSDT", u.Topic)
		assert.Equal(t, "delta", u.Kind)
		require.Len(t, u.Asks, 1)
		assert.Equal(t, "90000.5", u.Asks[0].Price.String())
		assert.Equal(t, domain.SideSell, u.Asks[0].Side)
		require.Len(t, u.Bids, 1)
		assert.Equal(t, domain.SideBuy, u.Bids[0].Side)
	case <-time.After(2 * time.Second):
		t.Fatal("no update received")
	}

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Empty(t, sink.updates)
}

func TestMarketStreamServerCloseIsTransportError(t *testing.T) {
	srv := fakeFeed(t, nil, func(conn *websocket.Conn) {})
	defer srv.Close()

	stream := NewMarketStream(StreamOptions{URL: wsURL(srv)}, testLogger())
	err := stream.Run(context.Background(), []string{"orderbook.500.BTCUSDT"}, newRecordingSink(true))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTransport))
}

func TestMarketStreamDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(srv)
	srv.Close()

	stream := NewMarketStream(StreamOptions{URL: url}, testLogger())
	err := stream.Run(context.Background(), nil, newRecordingSink(true))
	assert.True(t, errors.Is(err, domain.ErrTransport))
}

func TestMarketStreamPausedDoesNotDeliver(t *testing.T) {
	srv := fakeFeed(t, nil, func(conn *websocket.Conn) {
		for i := 0; i < 5; i++ {
			err := conn.WriteMessage(websocket.TextMessage, []byte(`{"topic":"orderbook.500.BTCUSDT","data":{"a":[["1","1"]],"b":[]}}`))
			if err != nil {
				return
			}
		}
		drain(conn)
	})
	defer srv.Close()

	stream := NewMarketStream(StreamOptions{URL: wsURL(srv), IdlePoll: 5 * time.Millisecond}, testLogger())
	sink := newRecordingSink(false)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := stream.Run(ctx, []string{"orderbook.500.BTCUSDT"}, sink)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Empty(t, sink.updates)
}
