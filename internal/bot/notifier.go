package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/romanzzaa/bybit-orderbook-monitor/internal/domain"
)

const maxRetryAfterSeconds = 30

// sender - часть BotAPI, нужная для отправки
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier отправляет алерты в Telegram. На 429 с retry_after ждет и пробует еще раз.
type Notifier struct {
	bot       sender
	logger    *slog.Logger
	retryUnit time.Duration // retry_after приходит в секундах
}

func NewNotifier(bot sender, logger *slog.Logger) *Notifier {
	return &Notifier{
		bot:       bot,
		logger:    logger.With("component", "notifier"),
		retryUnit: time.Second,
	}
}

func (n *Notifier) Send(ctx context.Context, recipient domain.Recipient, text string, suppressLinkPreview bool) error {
	msg := tgbotapi.NewMessage(recipient, text)
	msg.DisableWebPagePreview = suppressLinkPreview

	_, err := n.bot.Send(msg)
	if wait, ok := retryAfter(err, n.retryUnit); ok {
		n.logger.Warn("Telegram rate limit, retrying",
			slog.Int64("recipient", recipient),
			slog.Duration("retry_after", wait))
		if !sleep(ctx, wait) {
			return ctx.Err()
		}
		_, err = n.bot.Send(msg)
	}

	if err != nil {
		return fmt.Errorf("send to %d: %w", recipient, err)
	}
	return nil
}

func retryAfter(err error, unit time.Duration) (time.Duration, bool) {
	var tgErr *tgbotapi.Error
	if !errors.As(err, &tgErr) || tgErr.RetryAfter <= 0 {
		return 0, false
	}
	if tgErr.RetryAfter > maxRetryAfterSeconds {
		return 0, false
	}
	return time.Duration(tgErr.RetryAfter) * unit, true
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
