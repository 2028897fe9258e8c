package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/romanzzaa/bybit-orderbook-monitor/internal/domain"
	"github.com/romanzzaa/bybit-orderbook-monitor/internal/usecase"
)

const defaultRestartDelay = 5 * time.Second

var errFeedClosed = errors.New("feed returned without error")

type AlertDispatcher interface {
	Deliver(ctx context.Context, alerts []domain.Alert) usecase.DeliveryReport
}

type Options struct {
	Topics        []string
	RestartDelay  time.Duration
	InitialFilter domain.FilterConfig
}

// Status - согласованный снимок состояния для /status
type Status struct {
	State        domain.SessionState
	Filter       domain.FilterConfig
	Topics       []string
	Sessions     uint64
	Restarts     int
	LastUpdateAt time.Time
	LastError    string
}

// session - одна логическая сессия Running. Переживает реконнекты, умирает на Stop.
type session struct {
	id     uint64
	cancel context.CancelFunc
	done   chan struct{}
}

// Supervisor владеет состоянием сессии и фильтром. Все переходы под одним замком,
// команды никогда не ждут задачу чтения: только меняют состояние и отменяют ctx.
type Supervisor struct {
	feed         domain.OrderbookFeed
	dispatcher   AlertDispatcher
	topics       []string
	restartDelay time.Duration
	logger       *slog.Logger
	now          func() time.Time

	mu         sync.Mutex
	state      domain.SessionState
	filter     domain.FilterConfig
	active     *session
	lastDone   chan struct{} // done последней запущенной сессии
	nextID     uint64
	restarts   int
	lastUpdate time.Time
	lastErr    string
}

func NewSupervisor(feed domain.OrderbookFeed, dispatcher AlertDispatcher, opts Options, logger *slog.Logger) *Supervisor {
	if opts.RestartDelay <= 0 {
		opts.RestartDelay = defaultRestartDelay
	}
	return &Supervisor{
		feed:         feed,
		dispatcher:   dispatcher,
		topics:       append([]string(nil), opts.Topics...),
		restartDelay: opts.RestartDelay,
		logger:       logger.With("component", "supervisor"),
		now:          time.Now,
		state:        domain.SessionStopped,
		filter:       opts.InitialFilter,
	}
}

// StartAll - режим "все ордера". Возвращает true, если сессия реально запущена.
func (s *Supervisor) StartAll() bool {
	return s.start(func(cfg *domain.FilterConfig) {
		cfg.FilteringEnabled = false
	})
}

// StartFiltered включает фильтр. bounds == nil - оставить текущие границы,
// иначе конфиг заменяется целиком.
func (s *Supervisor) StartFiltered(bounds *domain.FilterConfig) bool {
	return s.start(func(cfg *domain.FilterConfig) {
		if bounds != nil {
			*cfg = *bounds
		}
		cfg.FilteringEnabled = true
	})
}

func (s *Supervisor) start(apply func(*domain.FilterConfig)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	apply(&s.filter)

	if s.state == domain.SessionRunning {
		// Живое соединение подхватит новый фильтр на следующем сообщении
		s.logger.Info("Filter updated on live session", filterAttrs(s.filter)...)
		return false
	}

	s.nextID++
	ctx, cancel := context.WithCancel(context.Background())
	sess := &session{id: s.nextID, cancel: cancel, done: make(chan struct{})}

	prev := s.lastDone
	s.active = sess
	s.lastDone = sess.done
	s.state = domain.SessionRunning

	s.logger.Info("Session started", append([]any{slog.Uint64("session", sess.id)}, filterAttrs(s.filter)...)...)
	go s.supervise(ctx, sess, prev)
	return true
}

// Stop отменяет активное соединение. false - уже остановлено.
func (s *Supervisor) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.SessionRunning {
		return false
	}

	s.active.cancel()
	s.logger.Info("Session stopped", slog.Uint64("session", s.active.id))
	s.active = nil
	s.state = domain.SessionStopped
	return true
}

// Shutdown останавливает сессию и ждет выхода всех задач чтения
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.Stop()

	s.mu.Lock()
	done := s.lastDone
	s.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Supervisor) Snapshot() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		State:        s.state,
		Filter:       s.filter,
		Topics:       append([]string(nil), s.topics...),
		Sessions:     s.nextID,
		Restarts:     s.restarts,
		LastUpdateAt: s.lastUpdate,
		LastError:    s.lastErr,
	}
}

// supervise - цикл жизни одной сессии: Run, при ошибке пауза restartDelay и новый Run,
// пока сессия активна.
func (s *Supervisor) supervise(ctx context.Context, sess *session, prev <-chan struct{}) {
	defer close(sess.done)

	// Предыдущая сессия уже отменена, ее выход быстрый. Ждем, чтобы не было двух соединений.
	if prev != nil {
		<-prev
	}

	log := s.logger.With(slog.Uint64("session", sess.id))
	sink := sessionSink{s: s, id: sess.id}

	for {
		if ctx.Err() != nil {
			return
		}

		err := s.feed.Run(ctx, s.topics, sink)
		if ctx.Err() != nil {
			log.Info("Feed connection closed")
			return
		}
		if err == nil {
			err = errFeedClosed
		}

		log.Error("Connection lost or failed", slog.String("stage", "feed"), slog.String("err", err.Error()))
		if !s.scheduleRestart(sess.id, err) {
			return
		}

		log.Info("Reconnecting...", slog.Duration("delay", s.restartDelay))
		if !sleep(ctx, s.restartDelay) {
			return
		}
	}
}

func (s *Supervisor) scheduleRestart(id uint64, cause error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = cause.Error()
	if !s.isActiveLocked(id) {
		return false
	}
	s.restarts++
	return true
}

func (s *Supervisor) isActive(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isActiveLocked(id)
}

func (s *Supervisor) isActiveLocked(id uint64) bool {
	return s.active != nil && s.active.id == id
}

// process - фильтр, рендер и рассылка одного апдейта
func (s *Supervisor) process(ctx context.Context, id uint64, update domain.RawUpdate) {
	s.mu.Lock()
	if !s.isActiveLocked(id) {
		s.mu.Unlock()
		return
	}
	cfg := s.filter
	s.lastUpdate = update.ReceivedAt
	s.mu.Unlock()

	if !domain.Admit(update, cfg) {
		s.logger.Debug("No matching orders yet", slog.String("topic", update.Topic))
		return
	}

	alerts := domain.RenderAlerts(update, cfg, s.now())
	if len(alerts) == 0 {
		return
	}
	s.dispatcher.Deliver(ctx, alerts)
}

// sessionSink привязывает соединение к конкретной сессии
type sessionSink struct {
	s  *Supervisor
	id uint64
}

func (k sessionSink) Accepting() bool { return k.s.isActive(k.id) }

func (k sessionSink) OnUpdate(ctx context.Context, update domain.RawUpdate) {
	k.s.process(ctx, k.id, update)
}

func filterAttrs(cfg domain.FilterConfig) []any {
	return []any{
		slog.Bool("filtering", cfg.FilteringEnabled),
		slog.String("min_volume", domain.FormatBound(cfg.MinVolume)),
		slog.String("max_volume", domain.FormatBound(cfg.MaxVolume)),
		slog.String("min_price", domain.FormatBound(cfg.MinPrice)),
		slog.String("max_price", domain.FormatBound(cfg.MaxPrice)),
	}
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
