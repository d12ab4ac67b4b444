package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"slguard/internal/clock"

	"github.com/spf13/viper"
)

const (
	BreakerModeTick     = "tick"
	BreakerModeInterval = "interval"
)

type Config struct {
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Protection ProtectionConfig `yaml:"protection"`
	Risk       RiskConfig       `yaml:"risk"`
	Market     MarketConfig     `yaml:"market"`
	Runtime    RuntimeConfig    `yaml:"runtime"`
}

type ExchangeConfig struct {
	BaseUrl            string `yaml:"base_url"`
	WSUrl              string `yaml:"ws_url"`
	ApiKey             string `yaml:"-"`
	AccessToken        string `yaml:"-"`
	TokenFile          string `yaml:"token_file"`
	InstrumentExchange string `yaml:"instrument_exchange"`
}

type ProtectionConfig struct {
	// StopBuffer is the distance between entry and the initial stop trigger.
	StopBuffer float64 `yaml:"stop_buffer"`
	// LimitBuffer is the distance between the stop trigger and its limit price.
	LimitBuffer          float64 `yaml:"limit_buffer"`
	TickSize             float64 `yaml:"tick_size"`
	TrailStartMultiplier float64 `yaml:"trail_start_multiplier"`
}

type RiskConfig struct {
	MaxDailyLoss      float64       `yaml:"max_daily_loss"`
	MaxDailyProfit    float64       `yaml:"max_daily_profit"`
	BreakerMode       string        `yaml:"breaker_mode"`
	BreakerInterval   time.Duration `yaml:"breaker_interval"`
	SquareOffCooldown time.Duration `yaml:"square_off_cooldown"`
	HaltFile          string        `yaml:"halt_file"`
}

type MarketConfig struct {
	Open      string `yaml:"open"`
	Close     string `yaml:"close"`
	UTCOffset string `yaml:"utc_offset"`
}

type RuntimeConfig struct {
	PollInterval     time.Duration `yaml:"poll_interval"`
	FeedSyncInterval time.Duration `yaml:"feed_sync_interval"`
	JournalPath      string        `yaml:"journal_path"`
	MetricsAddr      string        `yaml:"metrics_addr"`
	Log              LogConfig     `yaml:"log"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// Load reads the configuration file at path, or configs/config.* when path is
// empty. Every key can be overridden by an SLGUARD_ prefixed environment
// variable, e.g. SLGUARD_RISK_MAX_DAILY_LOSS.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("configs")
		v.SetConfigName("config")
	}
	v.SetEnvPrefix("SLGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}

	cfg.Exchange = ExchangeConfig{
		BaseUrl:            v.GetString("exchange.base_url"),
		WSUrl:              v.GetString("exchange.ws_url"),
		ApiKey:             envSub(v, "exchange.api_key"),
		AccessToken:        envSub(v, "exchange.access_token"),
		TokenFile:          v.GetString("exchange.token_file"),
		InstrumentExchange: v.GetString("exchange.instrument_exchange"),
	}

	cfg.Protection = ProtectionConfig{
		StopBuffer:           v.GetFloat64("protection.stop_buffer"),
		LimitBuffer:          v.GetFloat64("protection.limit_buffer"),
		TickSize:             v.GetFloat64("protection.tick_size"),
		TrailStartMultiplier: v.GetFloat64("protection.trail_start_multiplier"),
	}

	cfg.Risk = RiskConfig{
		MaxDailyLoss:      v.GetFloat64("risk.max_daily_loss"),
		MaxDailyProfit:    v.GetFloat64("risk.max_daily_profit"),
		BreakerMode:       strings.ToLower(v.GetString("risk.breaker_mode")),
		BreakerInterval:   v.GetDuration("risk.breaker_interval"),
		SquareOffCooldown: v.GetDuration("risk.square_off_cooldown"),
		HaltFile:          v.GetString("risk.halt_file"),
	}

	cfg.Market = MarketConfig{
		Open:      v.GetString("market.open"),
		Close:     v.GetString("market.close"),
		UTCOffset: v.GetString("market.utc_offset"),
	}

	cfg.Runtime = RuntimeConfig{
		PollInterval:     v.GetDuration("runtime.poll_interval"),
		FeedSyncInterval: v.GetDuration("runtime.feed_sync_interval"),
		JournalPath:      v.GetString("runtime.journal_path"),
		MetricsAddr:      v.GetString("runtime.metrics_addr"),
		Log: LogConfig{
			Level:      v.GetString("runtime.log.level"),
			Format:     v.GetString("runtime.log.format"),
			File:       v.GetString("runtime.log.file"),
			MaxSize:    v.GetInt("runtime.log.max_size"),
			MaxBackups: v.GetInt("runtime.log.max_backups"),
			MaxAge:     v.GetInt("runtime.log.max_age"),
			Compress:   v.GetBool("runtime.log.compress"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("exchange.base_url", "https://api.kite.trade")
	v.SetDefault("exchange.ws_url", "wss://ws.kite.trade")
	v.SetDefault("exchange.token_file", "access_token.json")
	v.SetDefault("exchange.instrument_exchange", "NFO")

	v.SetDefault("protection.stop_buffer", 10.0)
	v.SetDefault("protection.limit_buffer", 2.0)
	v.SetDefault("protection.tick_size", 0.05)
	v.SetDefault("protection.trail_start_multiplier", 2.0)

	v.SetDefault("risk.max_daily_loss", -5000.0)
	v.SetDefault("risk.max_daily_profit", 0.0)
	v.SetDefault("risk.breaker_mode", BreakerModeTick)
	v.SetDefault("risk.breaker_interval", 10*time.Second)
	v.SetDefault("risk.square_off_cooldown", time.Minute)
	v.SetDefault("risk.halt_file", "HALT_TRADING.txt")

	v.SetDefault("market.open", "09:15")
	v.SetDefault("market.close", "15:30")
	v.SetDefault("market.utc_offset", "+05:30")

	v.SetDefault("runtime.poll_interval", 10*time.Second)
	v.SetDefault("runtime.feed_sync_interval", 2*time.Second)
	v.SetDefault("runtime.journal_path", "slguard.db")
	v.SetDefault("runtime.metrics_addr", "")
	v.SetDefault("runtime.log.level", "info")
	v.SetDefault("runtime.log.format", "text")
	v.SetDefault("runtime.log.file", "stdout")
	v.SetDefault("runtime.log.max_size", 50)
	v.SetDefault("runtime.log.max_backups", 7)
	v.SetDefault("runtime.log.max_age", 30)
}

func (c *Config) Validate() error {
	if c.Protection.StopBuffer <= 0 {
		return fmt.Errorf("protection.stop_buffer must be positive")
	}
	if c.Protection.LimitBuffer < 0 {
		return fmt.Errorf("protection.limit_buffer must not be negative")
	}
	if c.Protection.TickSize < 0 {
		return fmt.Errorf("protection.tick_size must not be negative")
	}
	if c.Protection.TrailStartMultiplier <= 0 {
		return fmt.Errorf("protection.trail_start_multiplier must be positive")
	}
	if c.Risk.MaxDailyLoss >= 0 {
		return fmt.Errorf("risk.max_daily_loss must be negative")
	}
	if c.Risk.MaxDailyProfit < 0 {
		return fmt.Errorf("risk.max_daily_profit must not be negative (0 disables)")
	}
	if c.Risk.BreakerMode != BreakerModeTick && c.Risk.BreakerMode != BreakerModeInterval {
		return fmt.Errorf("risk.breaker_mode must be %q or %q", BreakerModeTick, BreakerModeInterval)
	}
	if c.Risk.BreakerInterval <= 0 {
		return fmt.Errorf("risk.breaker_interval must be positive")
	}
	if c.Risk.SquareOffCooldown < 0 {
		return fmt.Errorf("risk.square_off_cooldown must not be negative")
	}
	if c.Risk.HaltFile == "" {
		return fmt.Errorf("risk.halt_file is required")
	}
	if c.Runtime.PollInterval <= 0 {
		return fmt.Errorf("runtime.poll_interval must be positive")
	}
	if c.Runtime.FeedSyncInterval <= 0 {
		return fmt.Errorf("runtime.feed_sync_interval must be positive")
	}
	if c.Exchange.InstrumentExchange == "" {
		return fmt.Errorf("exchange.instrument_exchange is required")
	}
	if _, err := c.Market.Hours(); err != nil {
		return err
	}
	return nil
}

// Hours converts the configured trading window into a clock.MarketHours.
func (m MarketConfig) Hours() (clock.MarketHours, error) {
	open, err := clock.ParseHHMM(m.Open)
	if err != nil {
		return clock.MarketHours{}, fmt.Errorf("market.open: %w", err)
	}
	closeAt, err := clock.ParseHHMM(m.Close)
	if err != nil {
		return clock.MarketHours{}, fmt.Errorf("market.close: %w", err)
	}
	if closeAt < open {
		return clock.MarketHours{}, fmt.Errorf("market.close must not be before market.open")
	}
	offset, err := clock.ParseOffset(m.UTCOffset)
	if err != nil {
		return clock.MarketHours{}, fmt.Errorf("market.utc_offset: %w", err)
	}
	return clock.MarketHours{Open: open, Close: closeAt, Offset: offset}, nil
}

var envPattern = regexp.MustCompile(`\$\{(\w+)\}`)

func envSub(v *viper.Viper, key string) string {
	val := v.GetString(key)
	if val == "" {
		return ""
	}

	return envPattern.ReplaceAllStringFunc(val, func(match string) string {
		envKey := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(envKey)
	})
}
