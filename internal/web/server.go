package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/romanzzaa/bybit-orderbook-monitor/internal/domain"
	"github.com/romanzzaa/bybit-orderbook-monitor/internal/worker"
)

// StatusSource - worker.Supervisor
type StatusSource interface {
	Snapshot() worker.Status
}

// SubscriberCounter - usecase.Dispatcher
type SubscriberCounter interface {
	Subscribers() int
}

type filterResponse struct {
	Enabled   bool   `json:"enabled"`
	MinVolume string `json:"min_volume"`
	MaxVolume string `json:"max_volume"`
	MinPrice  string `json:"min_price"`
	MaxPrice  string `json:"max_price"`
}

type statusResponse struct {
	State        domain.SessionState `json:"state"`
	Filter       filterResponse      `json:"filter"`
	Topics       []string            `json:"topics"`
	Subscribers  int                 `json:"subscribers"`
	Sessions     uint64              `json:"sessions"`
	Restarts     int                 `json:"restarts"`
	LastUpdateAt *time.Time          `json:"last_update_at"`
	LastError    string              `json:"last_error,omitempty"`
}

// Server - read-only HTTP статус: /health и /status
type Server struct {
	engine *gin.Engine
	server *http.Server
	status StatusSource
	subs   SubscriberCounter
	logger *slog.Logger
}

func NewServer(addr string, status StatusSource, subs SubscriberCounter, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		engine: gin.New(),
		status: status,
		subs:   subs,
		logger: logger.With("component", "status_server"),
	}
	s.engine.Use(gin.Recovery())
	s.engine.GET("/health", s.getHealth)
	s.engine.GET("/status", s.getStatus)

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

// Start блокируется до Shutdown
func (s *Server) Start() error {
	s.logger.Info("Status server listening", slog.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) getStatus(c *gin.Context) {
	st := s.status.Snapshot()

	resp := statusResponse{
		State: st.State,
		Filter: filterResponse{
			Enabled:   st.Filter.FilteringEnabled,
			MinVolume: domain.FormatBound(st.Filter.MinVolume),
			MaxVolume: domain.FormatBound(st.Filter.MaxVolume),
			MinPrice:  domain.FormatBound(st.Filter.MinPrice),
			MaxPrice:  domain.FormatBound(st.Filter.MaxPrice),
		},
		Topics:      st.Topics,
		Subscribers: s.subs.Subscribers(),
		Sessions:    st.Sessions,
		Restarts:    st.Restarts,
		LastError:   st.LastError,
	}
	if !st.LastUpdateAt.IsZero() {
		t := st.LastUpdateAt.UTC()
		resp.LastUpdateAt = &t
	}

	c.JSON(http.StatusOK, resp)
}
