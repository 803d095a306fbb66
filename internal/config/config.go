package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"StochSentinel/internal/calculator"
	"StochSentinel/internal/model"
	"StochSentinel/internal/strategy"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	ExchangeHyperliquid = "hyperliquid"
	ExchangeBybit       = "bybit"
	ExchangeDemo        = "demo"

	ModeOnce       = "once"
	ModeContinuous = "continuous"
	ModeCron       = "cron"
)

// Config holds all application configuration.
type Config struct {
	Exchange struct {
		Name     string   `yaml:"name"`
		BaseURL  string   `yaml:"base_url"`
		Category string   `yaml:"category"`
		Symbols  []string `yaml:"symbols"`
	} `yaml:"exchange"`
	Screener struct {
		Timeframe string `yaml:"timeframe"`
		Limit     int    `yaml:"limit"`
		Period    int    `yaml:"period"`
		SmoothK   int    `yaml:"smooth_k"`
		SmoothD   int    `yaml:"smooth_d"`
		Workers   int    `yaml:"workers"`
	} `yaml:"screener"`
	Thresholds struct {
		OversoldK   float64 `yaml:"oversold_k"`
		OversoldD   float64 `yaml:"oversold_d"`
		OverboughtK float64 `yaml:"overbought_k"`
		OverboughtD float64 `yaml:"overbought_d"`
	} `yaml:"thresholds"`
	Schedule struct {
		Mode         string `yaml:"mode"`
		DelaySeconds int    `yaml:"delay_seconds"`
		Cron         string `yaml:"cron"`
	} `yaml:"schedule"`
	Telegram struct {
		BotToken   string `yaml:"bot_token"`
		ChatID     string `yaml:"chat_id"`
		MaxRetries int    `yaml:"max_retries"`
	} `yaml:"telegram"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Redis struct {
		Addr               string `yaml:"addr"`
		Password           string `yaml:"password"`
		DB                 int    `yaml:"db"`
		UniverseTTLSeconds int    `yaml:"universe_ttl_seconds"`
	} `yaml:"redis"`
	Proxy string `yaml:"proxy"`
	Log   struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Default returns a Config populated with the built-in defaults.
func Default() *Config {
	cfg := &Config{}
	cfg.Exchange.Name = ExchangeHyperliquid
	cfg.Screener.Timeframe = string(model.Timeframe1h)
	cfg.Screener.Limit = 100
	p := calculator.DefaultStochRSIParams()
	cfg.Screener.Period = p.Period
	cfg.Screener.SmoothK = p.SmoothK
	cfg.Screener.SmoothD = p.SmoothD
	cfg.Screener.Workers = 4
	t := strategy.DefaultThresholds()
	cfg.Thresholds.OversoldK = t.OversoldK
	cfg.Thresholds.OversoldD = t.OversoldD
	cfg.Thresholds.OverboughtK = t.OverboughtK
	cfg.Thresholds.OverboughtD = t.OverboughtD
	cfg.Schedule.Mode = ModeContinuous
	cfg.Schedule.DelaySeconds = 180
	cfg.Schedule.Cron = "0 */5 * * * *"
	cfg.Telegram.MaxRetries = 3
	cfg.Redis.UniverseTTLSeconds = 3600
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	return cfg
}

// Load reads an optional .env file and a YAML config file on top of the defaults,
// then applies environment variable overrides.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) error {
		v := os.Getenv(key)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("env %s: %w", key, err)
		}
		*dst = n
		return nil
	}

	setString("EXCHANGE", &c.Exchange.Name)
	setString("EXCHANGE_BASE_URL", &c.Exchange.BaseURL)
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Exchange.Symbols = splitList(v)
	}
	setString("TIMEFRAME", &c.Screener.Timeframe)
	setString("SCHEDULE_MODE", &c.Schedule.Mode)
	setString("CRON_SCREEN", &c.Schedule.Cron)
	setString("TELEGRAM_BOT_TOKEN", &c.Telegram.BotToken)
	setString("TELEGRAM_CHAT_ID", &c.Telegram.ChatID)
	setString("SQLITE_PATH", &c.Database.SQLitePath)
	setString("REDIS_ADDR", &c.Redis.Addr)
	setString("REDIS_PASSWORD", &c.Redis.Password)
	setString("HTTPS_PROXY", &c.Proxy)
	setString("LOG_LEVEL", &c.Log.Level)
	setString("LOG_FORMAT", &c.Log.Format)

	for key, dst := range map[string]*int{
		"SCREENER_LIMIT":   &c.Screener.Limit,
		"SCREENER_WORKERS": &c.Screener.Workers,
		"DELAY_SECONDS":    &c.Schedule.DelaySeconds,
		"REDIS_DB":         &c.Redis.DB,
	} {
		if err := setInt(key, dst); err != nil {
			return err
		}
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Exchange.Name {
	case ExchangeHyperliquid, ExchangeBybit, ExchangeDemo:
	default:
		return fmt.Errorf("exchange.name %q is not supported", c.Exchange.Name)
	}
	if _, err := model.ParseTimeframe(c.Screener.Timeframe); err != nil {
		return fmt.Errorf("screener.timeframe: %w", err)
	}
	if err := c.StochRSIParams().Validate(); err != nil {
		return fmt.Errorf("screener: %w", err)
	}
	if need := c.StochRSIParams().MinBars(); c.Screener.Limit < need {
		return fmt.Errorf("screener.limit must be at least %d, got %d", need, c.Screener.Limit)
	}
	if c.Screener.Workers <= 0 {
		return fmt.Errorf("screener.workers must be positive")
	}
	if err := c.StrategyThresholds().Validate(); err != nil {
		return fmt.Errorf("thresholds: %w", err)
	}
	switch c.Schedule.Mode {
	case ModeOnce:
	case ModeContinuous:
		if c.Schedule.DelaySeconds <= 0 {
			return fmt.Errorf("schedule.delay_seconds must be positive")
		}
	case ModeCron:
		if c.Schedule.Cron == "" {
			return fmt.Errorf("schedule.cron is required in cron mode")
		}
	default:
		return fmt.Errorf("schedule.mode %q is not supported", c.Schedule.Mode)
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	if c.Telegram.MaxRetries < 0 {
		return fmt.Errorf("telegram.max_retries must not be negative")
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format %q is not supported", c.Log.Format)
	}
	return nil
}

func (c *Config) Timeframe() model.Timeframe { return model.Timeframe(c.Screener.Timeframe) }

func (c *Config) StochRSIParams() calculator.StochRSIParams {
	return calculator.StochRSIParams{
		Period:  c.Screener.Period,
		SmoothK: c.Screener.SmoothK,
		SmoothD: c.Screener.SmoothD,
	}
}

func (c *Config) StrategyThresholds() strategy.Thresholds {
	return strategy.Thresholds{
		OversoldK:   c.Thresholds.OversoldK,
		OversoldD:   c.Thresholds.OversoldD,
		OverboughtK: c.Thresholds.OverboughtK,
		OverboughtD: c.Thresholds.OverboughtD,
	}
}

func (c *Config) Delay() time.Duration {
	return time.Duration(c.Schedule.DelaySeconds) * time.Second
}

func (c *Config) UniverseTTL() time.Duration {
	return time.Duration(c.Redis.UniverseTTLSeconds) * time.Second
}

func (c *Config) TelegramEnabled() bool { return c.Telegram.BotToken != "" }

// NewLogger builds a logrus logger from the log section.
func (c *Config) NewLogger() (*logrus.Logger, error) {
	logger := logrus.New()
	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	logger.SetLevel(level)
	if c.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}
