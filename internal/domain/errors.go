package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport - обрыв соединения, TLS, ошибка протокола. Лечится реконнектом.
	ErrTransport = errors.New("feed transport error")
	// ErrParse - битое числовое поле в строке стакана. Строка пропускается.
	ErrParse = errors.New("order line parse error")
	// ErrDelivery - не удалось доставить одно уведомление одному получателю.
	ErrDelivery = errors.New("notification delivery failed")
)

// CommandArgumentError - неверные параметры команды, показывается пользователю
type CommandArgumentError struct {
	Position int // 1-based, 0 - неверное количество аргументов
	Value    string
	Reason   string
}

func (e *CommandArgumentError) Error() string {
	if e.Position == 0 {
		return fmt.Sprintf("invalid arguments: %s", e.Reason)
	}
	return fmt.Sprintf("invalid argument #%d %q: %s", e.Position, e.Value, e.Reason)
}
