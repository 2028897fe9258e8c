package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/romanzzaa/bybit-orderbook-monitor/internal/domain"
)

const journalTimeout = 3 * time.Second

// DeliveryReport - итог рассылки одной пачки алертов
type DeliveryReport struct {
	Attempted int
	Failed    int
	Skipped   int // не отправлено из-за отмены сессии
}

// Dispatcher рассылает алерты всем зарегистрированным получателям.
// Best-effort: ошибка одной отправки не прерывает остальные, ретраев и очереди нет.
type Dispatcher struct {
	notifier    domain.Notifier
	subscribers *domain.SubscriberSet
	journal     domain.AlertJournal // может быть nil
	logger      *slog.Logger
}

func NewDispatcher(notifier domain.Notifier, subscribers *domain.SubscriberSet, journal domain.AlertJournal, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		notifier:    notifier,
		subscribers: subscribers,
		journal:     journal,
		logger:      logger.With("component", "dispatcher"),
	}
}

// Register добавляет получателя при первом контакте
func (d *Dispatcher) Register(recipient domain.Recipient) bool {
	added := d.subscribers.Add(recipient)
	if added {
		d.logger.Info("New recipient registered",
			slog.Int64("recipient", recipient),
			slog.Int("total", d.subscribers.Len()))
	}
	return added
}

func (d *Dispatcher) Subscribers() int { return d.subscribers.Len() }

// Deliver рассылает алерты текущему списку получателей
func (d *Dispatcher) Deliver(ctx context.Context, alerts []domain.Alert) DeliveryReport {
	return d.DeliverTo(ctx, alerts, d.subscribers.Snapshot())
}

// DeliverTo - по одной попытке на каждую пару (алерт, получатель).
// После отмены ctx новые отправки не начинаются.
func (d *Dispatcher) DeliverTo(ctx context.Context, alerts []domain.Alert, recipients []domain.Recipient) DeliveryReport {
	var report DeliveryReport

	for _, alert := range alerts {
		text := alert.Text()
		delivered, failed := 0, 0

		for _, recipient := range recipients {
			if ctx.Err() != nil {
				report.Skipped++
				continue
			}

			report.Attempted++
			if err := d.notifier.Send(ctx, recipient, text, true); err != nil {
				failed++
				d.logger.Error("Failed to deliver alert",
					slog.String("stage", "deliver"),
					slog.Int64("recipient", recipient),
					slog.String("symbol", alert.Symbol),
					slog.String("alert_id", alert.ID.String()),
					slog.String("err", fmt.Errorf("%w: %w", domain.ErrDelivery, err).Error()))
				continue
			}
			delivered++
		}
		report.Failed += failed

		if delivered > 0 {
			d.logger.Info("✅ Alert delivered",
				slog.String("alert_id", alert.ID.String()),
				slog.String("symbol", alert.Symbol),
				slog.String("side", string(alert.Side)),
				slog.String("price", alert.Price.StringFixed(2)),
				slog.String("volume", alert.Volume.StringFixed(9)),
				slog.Int("recipients", delivered))
		}

		d.record(ctx, alert, delivered, failed)
	}

	return report
}

func (d *Dispatcher) record(ctx context.Context, alert domain.Alert, delivered, failed int) {
	if d.journal == nil || delivered+failed == 0 {
		return
	}
	// Журнал пишем и после отмены сессии: алерт уже ушел
	jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
	defer cancel()
	if err := d.journal.Record(jctx, alert, delivered, failed); err != nil {
		d.logger.Warn("Failed to journal alert",
			slog.String("stage", "journal"),
			slog.String("alert_id", alert.ID.String()),
			slog.String("err", err.Error()))
	}
}
