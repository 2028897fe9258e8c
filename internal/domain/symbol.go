package domain

import (
	"fmt"
	"strings"
)

const (
	orderbookPrefix = "orderbook"
	tradeLinkBase   = "https://www.bybit.com/trade/spot/"
)

// OrderbookTopic собирает топик вида "orderbook.500.BTCUSDT"
func OrderbookTopic(depth int, symbol string) string {
	return fmt.Sprintf("%s.%d.%s", orderbookPrefix, depth, symbol)
}

// OrderbookTopics - топики для всего списка символов, порядок сохраняется
func OrderbookTopics(depth int, symbols []string) []string {
	topics := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		topics = append(topics, OrderbookTopic(depth, sym))
	}
	return topics
}

// SymbolFromTopic берет последний сегмент топика: "orderbook.500.BTCUSDT" -> "BTCUSDT"
func SymbolFromTopic(topic string) string {
	if i := strings.LastIndex(topic, "."); i >= 0 {
		return topic[i+1:]
	}
	return topic
}

// FormatPair режет символ как 3 + остаток: "BTCUSDT" -> "BTC-USDT".
// Известное ограничение: для DOGEUSDT получится "DOG-EUSDT", для MATICUSDT - "MAT-ICUSDT".
func FormatPair(symbol string) string {
	if len(symbol) <= 3 {
		return symbol + "-"
	}
	return symbol[:3] + "-" + symbol[3:]
}

// TradeLink - ссылка на покупку/продажу на споте
func TradeLink(side Side, symbol string) string {
	return tradeLinkBase + strings.ToLower(string(side)) + "?symbol=" + symbol
}
