package domain

import "time"

// RawUpdate - одно сообщение orderbook.<depth>.<SYMBOL>, после разбора кортежей.
// Не хранится: стакан мы не восстанавливаем.
type RawUpdate struct {
	Topic      string
	Kind       string // snapshot / delta
	Asks       []OrderLine
	Bids       []OrderLine
	ReceivedAt time.Time
}

// Lines возвращает сначала аски, потом биды
func (u RawUpdate) Lines() []OrderLine {
	lines := make([]OrderLine, 0, len(u.Asks)+len(u.Bids))
	lines = append(lines, u.Asks...)
	return append(lines, u.Bids...)
}

func (u RawUpdate) Symbol() string { return SymbolFromTopic(u.Topic) }
