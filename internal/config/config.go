package config

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/romanzzaa/bybit-orderbook-monitor/internal/domain"
)

var defaultSymbols = []string{
	"BTCUSDT", "ETHUSDT", "SOLUSDT", "XRPUSDT", "ADAUSDT", "DOGEUSDT",
	"LTCUSDT", "TRXUSDT", "BNBUSDT", "DOTUSDT", "AVAXUSDT", "MATICUSDT",
}

// Глубины orderbook, которые отдает linear стрим Bybit
var allowedDepths = map[int]bool{1: true, 50: true, 200: true, 500: true}

// Config - глобальная конфигурация бота
type Config struct {
	Env      string // "local", "prod"
	LogLevel slog.Level

	Telegram TelegramConfig
	Bybit    BybitConfig
	Filter   domain.FilterConfig // стартовые границы для /etc без аргументов

	DatabaseURL string // пусто - журнал алертов выключен
	StatusAddr  string // пусто - HTTP статус выключен
}

type TelegramConfig struct {
	BotToken string
}

type BybitConfig struct {
	Testnet          bool
	StreamURL        string // пусто - по Testnet
	Depth            int
	Symbols          []string
	ValidateSymbols  bool
	ReconnectDelay   time.Duration
	IdlePollInterval time.Duration
	PingInterval     time.Duration
	HTTPTimeout      time.Duration
}

// fileConfig - необязательный YAML (CONFIG_FILE). Переменные окружения важнее файла.
type fileConfig struct {
	Symbols          []string `yaml:"symbols"`
	Depth            int      `yaml:"depth"`
	ReconnectDelay   string   `yaml:"reconnect_delay"`
	IdlePollInterval string   `yaml:"idle_poll_interval"`
	PingInterval     string   `yaml:"ping_interval"`
	Filter           *struct {
		MinVolume *float64 `yaml:"min_volume"`
		MaxVolume *float64 `yaml:"max_volume"`
		MinPrice  *float64 `yaml:"min_price"`
		MaxPrice  *float64 `yaml:"max_price"`
	} `yaml:"filter"`
}

func defaults() *Config {
	return &Config{
		Env:      "local",
		LogLevel: slog.LevelInfo,
		Bybit: BybitConfig{
			Depth:            500,
			Symbols:          append([]string(nil), defaultSymbols...),
			ValidateSymbols:  true,
			ReconnectDelay:   5 * time.Second,
			IdlePollInterval: time.Second,
			PingInterval:     20 * time.Second,
			HTTPTimeout:      10 * time.Second,
		},
		Filter: domain.DefaultFilterConfig(),
	}
}

// LoadConfig - defaults, потом YAML из CONFIG_FILE, потом переменные окружения
func LoadConfig() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	if len(fc.Symbols) > 0 {
		c.Bybit.Symbols = normalizeSymbols(fc.Symbols)
	}
	if fc.Depth != 0 {
		c.Bybit.Depth = fc.Depth
	}
	for _, d := range []struct {
		raw string
		dst *time.Duration
	}{
		{fc.ReconnectDelay, &c.Bybit.ReconnectDelay},
		{fc.IdlePollInterval, &c.Bybit.IdlePollInterval},
		{fc.PingInterval, &c.Bybit.PingInterval},
	} {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("invalid duration %q in '%s': %w", d.raw, path, err)
		}
		*d.dst = v
	}

	if f := fc.Filter; f != nil {
		setIfPresent(&c.Filter.MinVolume, f.MinVolume)
		setIfPresent(&c.Filter.MaxVolume, f.MaxVolume)
		setIfPresent(&c.Filter.MinPrice, f.MinPrice)
		setIfPresent(&c.Filter.MaxPrice, f.MaxPrice)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Telegram.BotToken = os.Getenv("BOT_TOKEN")
	c.DatabaseURL = os.Getenv("DATABASE_URL")
	c.StatusAddr = os.Getenv("STATUS_ADDR")
	c.Bybit.StreamURL = os.Getenv("BYBIT_WS_URL")

	if v := os.Getenv("ENV"); v != "" {
		c.Env = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if err := c.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("invalid LOG_LEVEL %q: %w", v, err)
		}
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Bybit.Symbols = normalizeSymbols(strings.Split(v, ","))
	}

	var err error
	if c.Bybit.Testnet, err = envBool("BYBIT_TESTNET", c.Bybit.Testnet); err != nil {
		return err
	}
	if c.Bybit.ValidateSymbols, err = envBool("VALIDATE_SYMBOLS", c.Bybit.ValidateSymbols); err != nil {
		return err
	}
	if c.Bybit.Depth, err = envInt("ORDERBOOK_DEPTH", c.Bybit.Depth); err != nil {
		return err
	}
	if c.Bybit.ReconnectDelay, err = envDuration("RECONNECT_DELAY", c.Bybit.ReconnectDelay); err != nil {
		return err
	}
	if c.Bybit.IdlePollInterval, err = envDuration("IDLE_POLL_INTERVAL", c.Bybit.IdlePollInterval); err != nil {
		return err
	}
	if c.Bybit.PingInterval, err = envDuration("PING_INTERVAL", c.Bybit.PingInterval); err != nil {
		return err
	}
	if c.Bybit.HTTPTimeout, err = envDuration("HTTP_TIMEOUT", c.Bybit.HTTPTimeout); err != nil {
		return err
	}

	for _, f := range []struct {
		key string
		dst *float64
	}{
		{"FILTER_MIN_VOLUME", &c.Filter.MinVolume},
		{"FILTER_MAX_VOLUME", &c.Filter.MaxVolume},
		{"FILTER_MIN_PRICE", &c.Filter.MinPrice},
		{"FILTER_MAX_PRICE", &c.Filter.MaxPrice},
	} {
		if *f.dst, err = envFloat(f.key, *f.dst); err != nil {
			return err
		}
	}
	return nil
}

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("BOT_TOKEN is not set")
	}
	if len(c.Bybit.Symbols) == 0 {
		return fmt.Errorf("at least one symbol is required")
	}
	if !allowedDepths[c.Bybit.Depth] {
		return fmt.Errorf("unsupported orderbook depth %d (allowed: 1, 50, 200, 500)", c.Bybit.Depth)
	}
	if c.Bybit.ReconnectDelay <= 0 || c.Bybit.IdlePollInterval <= 0 || c.Bybit.PingInterval <= 0 || c.Bybit.HTTPTimeout <= 0 {
		return fmt.Errorf("durations must be greater than 0")
	}
	if math.IsNaN(c.Filter.MinVolume) || math.IsNaN(c.Filter.MaxVolume) || math.IsNaN(c.Filter.MinPrice) || math.IsNaN(c.Filter.MaxPrice) {
		return fmt.Errorf("filter bounds cannot be NaN")
	}
	return nil
}

// Topics - orderbook.<depth>.<SYMBOL> для всех символов
func (c *Config) Topics() []string {
	return domain.OrderbookTopics(c.Bybit.Depth, c.Bybit.Symbols)
}

func normalizeSymbols(raw []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range raw {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func setIfPresent(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func envBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return b, nil
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func envFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return f, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}
