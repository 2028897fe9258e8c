package domain

import "context"

// UpdateSink - потребитель апдейтов для одного соединения с фидом
type UpdateSink interface {
	// Accepting - false, пока сессия остановлена: фид не должен звать OnUpdate
	Accepting() bool
	OnUpdate(ctx context.Context, update RawUpdate)
}

// OrderbookFeed - подключение к стриму. Run возвращается только при отмене ctx
// или ошибке транспорта (обернута в ErrTransport). Внутри Run ретраев нет.
type OrderbookFeed interface {
	Run(ctx context.Context, topics []string, sink UpdateSink) error
}

// Notifier - отправка текста получателю (Telegram)
type Notifier interface {
	Send(ctx context.Context, recipient Recipient, text string, suppressLinkPreview bool) error
}

// AlertJournal - журнал отправленных алертов (опционально, Postgres)
type AlertJournal interface {
	Record(ctx context.Context, alert Alert, delivered, failed int) error
}
