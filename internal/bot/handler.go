package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/romanzzaa/bybit-orderbook-monitor/internal/domain"
	"github.com/romanzzaa/bybit-orderbook-monitor/internal/worker"
)

// Тексты ответов
const (
	MsgHelp = "Бот запущен! Используйте /all чтобы получать все ордера \n" +
		"Или /etc чтобы получать ордера по фильтру. \n\n" +
		"/etc ОБЪЕМ_ОТ ОБЪЕМ_ДО ЦЕНА_ОТ ЦЕНА_ДО (цена в USDT)\n\n" +
		"ПРИМЕР:\n(/etc 10 100 85000 100000)"
	MsgAll            = "Вы будете получать все ордера."
	MsgBadFilter      = "Неверные параметры фильтрации."
	MsgStopped        = "Поиск ордеров остановлен."
	MsgAlreadyStopped = "Поиск уже остановлен."
)

// Controller - управление сессией (worker.Supervisor)
type Controller interface {
	StartAll() bool
	StartFiltered(bounds *domain.FilterConfig) bool
	Stop() bool
	Snapshot() worker.Status
}

// Registry - регистрация получателей (usecase.Dispatcher)
type Registry interface {
	Register(recipient domain.Recipient) bool
	Subscribers() int
}

// botAPI - часть tgbotapi.BotAPI, которой пользуется Handler
type botAPI interface {
	sender
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type Handler struct {
	bot      botAPI
	control  Controller
	registry Registry
	logger   *slog.Logger
}

func NewHandler(bot botAPI, control Controller, registry Registry, logger *slog.Logger) *Handler {
	return &Handler{
		bot:      bot,
		control:  control,
		registry: registry,
		logger:   logger.With("component", "bot_handler"),
	}
}

// Start читает апдейты до отмены ctx. Команды обрабатываются по одной, в этом потоке.
func (h *Handler) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := h.bot.GetUpdatesChan(u)
	for {
		select {
		case <-ctx.Done():
			h.bot.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message != nil {
				h.handleMessage(update.Message)
			}
		}
	}
}

func (h *Handler) handleMessage(msg *tgbotapi.Message) {
	if !msg.IsCommand() || msg.Chat == nil {
		return
	}

	reply := h.execute(msg.Chat.ID, msg.Command(), msg.CommandArguments())
	if reply == "" {
		return
	}
	h.send(msg.Chat.ID, reply)
}

// execute - сама логика команд, возвращает текст ответа
func (h *Handler) execute(chatID int64, command, args string) string {
	// Любая команда регистрирует отправителя как получателя
	h.registry.Register(chatID)

	log := h.logger.With(slog.Int64("recipient", chatID), slog.String("command", command))

	switch command {
	case "start":
		return MsgHelp

	case "all":
		if h.control.StartAll() {
			log.Info("Order search started (all orders)")
		}
		return MsgAll

	case "etc":
		bounds, err := ParseFilterArgs(args)
		if err != nil {
			log.Warn("Invalid filter parameters", slog.String("stage", "command"), slog.String("err", err.Error()))
			return fmt.Sprintf("%s\n%s", MsgBadFilter, describeArgError(err))
		}
		if h.control.StartFiltered(bounds) {
			log.Info("Order search started (filtered)")
		}
		return filterReply(h.control.Snapshot().Filter)

	case "stop":
		if h.control.Stop() {
			log.Info("Order search stopped by user")
			return MsgStopped
		}
		return MsgAlreadyStopped

	case "status":
		return statusReply(h.control.Snapshot(), h.registry.Subscribers())
	}

	return MsgHelp
}

// ParseFilterArgs: пусто - оставить текущие границы (nil), 4 числа - новый конфиг целиком.
func ParseFilterArgs(args string) (*domain.FilterConfig, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return nil, nil
	}
	if len(fields) != 4 {
		return nil, &domain.CommandArgumentError{Reason: fmt.Sprintf("expected 4 numbers, got %d", len(fields))}
	}

	var values [4]float64
	for i, raw := range fields {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) {
			return nil, &domain.CommandArgumentError{Position: i + 1, Value: raw, Reason: "not a number"}
		}
		values[i] = v
	}

	// Перевернутые границы не проверяем: такой фильтр просто ничего не пропустит
	return &domain.FilterConfig{
		MinVolume:        values[0],
		MaxVolume:        values[1],
		MinPrice:         values[2],
		MaxPrice:         values[3],
		FilteringEnabled: true,
	}, nil
}

func describeArgError(err error) string {
	var argErr *domain.CommandArgumentError
	if errors.As(err, &argErr) && argErr.Position > 0 {
		return fmt.Sprintf("Параметр №%d (%s) не является числом.", argErr.Position, argErr.Value)
	}
	return "Формат: /etc ОБЪЕМ_ОТ ОБЪЕМ_ДО ЦЕНА_ОТ ЦЕНА_ДО"
}

func filterReply(cfg domain.FilterConfig) string {
	return fmt.Sprintf("Вы будете получать ордера по фильтру (Объем: от %s до %s, Цена: от %s до %s).\n\nОжидайте совпадений по фильтру.",
		domain.FormatBound(cfg.MinVolume), domain.FormatBound(cfg.MaxVolume),
		domain.FormatBound(cfg.MinPrice), domain.FormatBound(cfg.MaxPrice))
}

func statusReply(st worker.Status, subscribers int) string {
	var sb strings.Builder

	state := "🔴 остановлен"
	if st.State == domain.SessionRunning {
		state = "🟢 работает"
	}
	sb.WriteString(fmt.Sprintf("📊 Поиск: %s\n", state))

	if st.Filter.FilteringEnabled {
		sb.WriteString(fmt.Sprintf("├ Фильтр: объем %s..%s, цена %s..%s\n",
			domain.FormatBound(st.Filter.MinVolume), domain.FormatBound(st.Filter.MaxVolume),
			domain.FormatBound(st.Filter.MinPrice), domain.FormatBound(st.Filter.MaxPrice)))
	} else {
		sb.WriteString("├ Фильтр: выключен (все ордера)\n")
	}
	sb.WriteString(fmt.Sprintf("├ Топиков: %d\n", len(st.Topics)))
	sb.WriteString(fmt.Sprintf("├ Получателей: %d\n", subscribers))
	sb.WriteString(fmt.Sprintf("└ Переподключений: %d", st.Restarts))

	if st.LastError != "" {
		sb.WriteString(fmt.Sprintf("\n⚠️ Последняя ошибка: %s", st.LastError))
	}
	return sb.String()
}

func (h *Handler) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		h.logger.Error("Failed to send reply",
			slog.String("stage", "command"),
			slog.Int64("recipient", chatID),
			slog.String("err", err.Error()))
	}
}
