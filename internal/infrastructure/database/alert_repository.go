package database

import (
	"context"
	"fmt"

	"github.com/romanzzaa/bybit-orderbook-monitor/internal/domain"
)

const alertsSchema = `
	CREATE TABLE IF NOT EXISTS alerts (
		id          UUID PRIMARY KEY,
		topic       TEXT NOT NULL,
		symbol      TEXT NOT NULL,
		side        TEXT NOT NULL,
		price       NUMERIC NOT NULL,
		volume      NUMERIC NOT NULL,
		order_info  TEXT NOT NULL,
		rendered_at TIMESTAMPTZ NOT NULL,
		delivered   INT NOT NULL,
		failed      INT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

// AlertRepository - журнал отправленных алертов. Только запись, обратно не читается.
type AlertRepository struct {
	db *DB
}

func NewAlertRepository(db *DB) *AlertRepository {
	return &AlertRepository{db: db}
}

func (r *AlertRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, alertsSchema); err != nil {
		return fmt.Errorf("failed to create alerts table: %w", err)
	}
	return nil
}

func (r *AlertRepository) Record(ctx context.Context, alert domain.Alert, delivered, failed int) error {
	query := `
		INSERT INTO alerts (id, topic, symbol, side, price, volume, order_info, rendered_at, delivered, failed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query,
		alert.ID.String(),
		alert.Topic,
		alert.Symbol,
		string(alert.Side),
		alert.Price.String(),
		alert.Volume.String(),
		alert.OrderInfo,
		alert.RenderedAt,
		delivered,
		failed,
	)
	if err != nil {
		return fmt.Errorf("failed to record alert %s: %w", alert.ID, err)
	}
	return nil
}
