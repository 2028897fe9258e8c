package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RenderAlerts превращает апдейт в уведомления, по одному на подходящую строку.
// Время фиксируется один раз на апдейт.
func RenderAlerts(update RawUpdate, cfg FilterConfig, now time.Time) []Alert {
	symbol := update.Symbol()
	pair := FormatPair(symbol)

	var alerts []Alert
	for _, line := range update.Lines() {
		if !cfg.Matches(line) {
			continue
		}
		alerts = append(alerts, Alert{
			ID:         uuid.New(),
			Topic:      update.Topic,
			Symbol:     symbol,
			Pair:       pair,
			Side:       line.Side,
			OrderInfo:  line.Raw,
			Price:      line.Price,
			Volume:     line.Volume,
			Link:       TradeLink(line.Side, symbol),
			RenderedAt: now,
		})
	}
	return alerts
}

// FormatTimestamp - "dd/mm/YYYY HH-MM-SS-mmm"
func FormatTimestamp(t time.Time) string {
	return fmt.Sprintf("%s-%03d", t.Format("02/01/2006 15-04-05"), t.Nanosecond()/int(time.Millisecond))
}

// Text - текст сообщения в Telegram
func (a Alert) Text() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("✅ %s Ордер:\n", a.Side))
	sb.WriteString(fmt.Sprintf("Пара: %s\n", a.Pair))
	sb.WriteString(fmt.Sprintf("Информация о ордере: %s\n", a.OrderInfo))
	sb.WriteString(fmt.Sprintf("Цена: %s\n", a.Price.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("Объем: %s\n", a.Volume.StringFixed(9)))
	sb.WriteString(fmt.Sprintf("Ссылка на покупку:\n(%s)\n", a.Link))
	sb.WriteString(fmt.Sprintf("Текущее время: %s", FormatTimestamp(a.RenderedAt)))
	return sb.String()
}
