package domain

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// ParseOrderLine разбирает кортеж [price, size, ...] из фида
func ParseOrderLine(tuple []string, side Side) (OrderLine, error) {
	if len(tuple) < 2 {
		return OrderLine{}, fmt.Errorf("%w: tuple %v has %d fields", ErrParse, tuple, len(tuple))
	}

	price, err := decimal.NewFromString(tuple[0])
	if err != nil {
		return OrderLine{}, fmt.Errorf("%w: price %q: %v", ErrParse, tuple[0], err)
	}
	volume, err := decimal.NewFromString(tuple[1])
	if err != nil {
		return OrderLine{}, fmt.Errorf("%w: volume %q: %v", ErrParse, tuple[1], err)
	}

	return OrderLine{
		Price:  price,
		Volume: volume,
		Side:   side,
		Raw:    fmt.Sprint(tuple),
	}, nil
}

func (c FilterConfig) priceInRange(price float64) bool {
	return c.MinPrice <= price && price <= c.MaxPrice
}

// Admit решает, пропускать ли апдейт дальше.
// ВАЖНО: здесь проверяется только нижняя граница объема, верхняя - только в RenderAlerts.
// Асимметрия сохранена намеренно, не объединять проверки.
func Admit(update RawUpdate, cfg FilterConfig) bool {
	if !cfg.FilteringEnabled {
		return true
	}

	for _, line := range update.Lines() {
		if line.Volume.IsZero() {
			continue
		}
		volume := line.Volume.InexactFloat64()
		if volume >= cfg.MinVolume && cfg.priceInRange(line.Price.InexactFloat64()) {
			return true
		}
	}
	return false
}

// Matches - проверка одной строки для рендера, объем с обеих сторон
func (c FilterConfig) Matches(line OrderLine) bool {
	if line.Volume.IsZero() {
		return false
	}
	if !c.FilteringEnabled {
		return true
	}
	volume := line.Volume.InexactFloat64()
	return c.priceInRange(line.Price.InexactFloat64()) && c.MinVolume <= volume && volume <= c.MaxVolume
}

// FormatBound печатает границу фильтра, бесконечность как "+Inf"
func FormatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
