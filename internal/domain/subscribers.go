package domain

import "sync"

// SubscriberSet - получатели уведомлений. Порядок добавления сохраняется,
// дубликатов нет, удаления нет: кто написал боту, получает алерты до рестарта процесса.
type SubscriberSet struct {
	mu    sync.RWMutex
	order []Recipient
	seen  map[Recipient]struct{}
}

func NewSubscriberSet() *SubscriberSet {
	return &SubscriberSet{seen: make(map[Recipient]struct{})}
}

// Add возвращает true, если получатель новый
func (s *SubscriberSet) Add(id Recipient) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = struct{}{}
	s.order = append(s.order, id)
	return true
}

// Snapshot - копия списка, безопасна для итерации без замка
func (s *SubscriberSet) Snapshot() []Recipient {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Recipient, len(s.order))
	copy(out, s.order)
	return out
}

func (s *SubscriberSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
