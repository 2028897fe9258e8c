package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- Enums & Constants ---

type Side string

const (
	SideBuy  Side = "Buy"  // bid
	SideSell Side = "Sell" // ask
)

type SessionState string

const (
	SessionStopped SessionState = "STOPPED"
	SessionRunning SessionState = "RUNNING"
)

// --- Value Objects ---

// OrderLine - одна строка стакана (цена/объем), живет только в рамках одного сообщения
type OrderLine struct {
	Price  decimal.Decimal
	Volume decimal.Decimal
	Side   Side
	Raw    string // исходный кортеж из фида, как есть
}

// FilterConfig - пороги фильтрации. Заменяется целиком, частичных обновлений нет.
// minVolume <= maxVolume и minPrice <= maxPrice НЕ проверяются: перевернутые
// границы просто ничего не пропускают.
type FilterConfig struct {
	MinVolume        float64
	MaxVolume        float64
	MinPrice         float64
	MaxPrice         float64
	FilteringEnabled bool
}

// DefaultFilterConfig - стартовые границы бота (объем от 10000, цена 85000..100000)
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		MinVolume: 10000,
		MaxVolume: math.Inf(1),
		MinPrice:  85000,
		MaxPrice:  100000,
	}
}

// Alert - готовое уведомление по одной строке стакана
type Alert struct {
	ID         uuid.UUID
	Topic      string
	Symbol     string
	Pair       string // BTC-USDT
	Side       Side
	OrderInfo  string
	Price      decimal.Decimal
	Volume     decimal.Decimal
	Link       string
	RenderedAt time.Time
}

// Recipient - id чата, который прислал хоть одну команду
type Recipient = int64
