package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/romanzzaa/bybit-orderbook-monitor/internal/domain"
)

const (
	// Public Linear Stream (USDT Perpetual)
	MainnetLinearURL = "wss://stream.bybit.com/v5/public/linear"
	TestnetLinearURL = "wss://stream-testnet.bybit.com/v5/public/linear"

	defaultPingInterval = 20 * time.Second
	defaultIdlePoll     = 1 * time.Second
	handshakeTimeout    = 10 * time.Second
)

// StreamURL выбирает хост стрима
func StreamURL(isTestnet bool) string {
	if isTestnet {
		return TestnetLinearURL
	}
	return MainnetLinearURL
}

type StreamOptions struct {
	URL          string
	PingInterval time.Duration
	IdlePoll     time.Duration
}

// MarketStream - одно соединение с orderbook стримом на один вызов Run.
// Реконнект делает супервизор, не стрим.
type MarketStream struct {
	url          string
	pingInterval time.Duration
	idlePoll     time.Duration
	dialer       *websocket.Dialer
	logger       *slog.Logger
	now          func() time.Time
}

func NewMarketStream(opts StreamOptions, logger *slog.Logger) *MarketStream {
	if opts.URL == "" {
		opts.URL = MainnetLinearURL
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaultPingInterval
	}
	if opts.IdlePoll <= 0 {
		opts.IdlePoll = defaultIdlePoll
	}

	return &MarketStream{
		url:          opts.URL,
		pingInterval: opts.PingInterval,
		idlePoll:     opts.IdlePoll,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
		logger: logger.With("component", "market_stream"),
		now:    time.Now,
	}
}

// wsConn - gorilla допускает только одного писателя одновременно
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// Run подключается, подписывается на topics и читает до ошибки или отмены ctx.
func (s *MarketStream) Run(ctx context.Context, topics []string, sink domain.UpdateSink) error {
	log := s.logger.With(slog.String("url", s.url))
	log.Info("Connecting to Bybit Linear Stream...")

	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return transportError(ctx, "dial", err)
	}
	defer conn.Close()

	// Отмена должна прерывать блокирующий ReadMessage сразу, а не по таймауту
	stopClose := context.AfterFunc(ctx, func() { conn.Close() })
	defer stopClose()

	c := &wsConn{conn: conn}

	log.Info("Sending subscription request", slog.Any("topics", topics))
	if err := c.writeJSON(wsRequest{Op: "subscribe", Args: topics}); err != nil {
		return transportError(ctx, "subscribe", err)
	}

	hbCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.heartbeat(hbCtx, c)

	for {
		if !sink.Accepting() {
			log.Debug("Waiting for start command...")
			if !sleep(ctx, s.idlePoll) {
				return ctx.Err()
			}
			continue
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			return transportError(ctx, "read", err)
		}

		update, ok := s.decode(message)
		if !ok {
			continue
		}
		sink.OnUpdate(ctx, update)
	}
}

func (s *MarketStream) decode(message []byte) (domain.RawUpdate, bool) {
	var frame wsFrame
	if err := json.Unmarshal(message, &frame); err != nil {
		s.logger.Warn("Failed to decode frame", slog.String("stage", "parse"), slog.String("err", err.Error()))
		return domain.RawUpdate{}, false
	}

	// Ответы на subscribe/ping
	if frame.Op != "" {
		if frame.Success != nil && !*frame.Success {
			s.logger.Error("Control request rejected",
				slog.String("op", frame.Op),
				slog.String("ret_msg", frame.RetMsg))
		}
		return domain.RawUpdate{}, false
	}

	if frame.Topic == "" || frame.Data == nil {
		return domain.RawUpdate{}, false
	}

	update := domain.RawUpdate{
		Topic:      frame.Topic,
		Kind:       frame.Type,
		ReceivedAt: s.now(),
	}
	update.Asks = s.parseLines(frame.Topic, frame.Data.Asks, domain.SideSell)
	update.Bids = s.parseLines(frame.Topic, frame.Data.Bids, domain.SideBuy)
	return update, true
}

func (s *MarketStream) parseLines(topic string, tuples [][]string, side domain.Side) []domain.OrderLine {
	lines := make([]domain.OrderLine, 0, len(tuples))
	for _, tuple := range tuples {
		line, err := domain.ParseOrderLine(tuple, side)
		if err != nil {
			s.logger.Warn("Skipping malformed order line",
				slog.String("stage", "parse"),
				slog.String("topic", topic),
				slog.String("err", err.Error()))
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func (s *MarketStream) heartbeat(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.writeJSON(wsRequest{Op: "ping"}); err != nil {
				s.logger.Error("Ping failed", "err", err)
			}
		}
	}
}

func transportError(ctx context.Context, stage string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrTransport, stage, err)
}

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
