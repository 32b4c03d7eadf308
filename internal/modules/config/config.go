package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the flat key/value configuration read once at process start.
type Config struct {
	APIKey    string
	APISecret string
	BaseURL   string
	StreamURL string
	DataDir   string

	RecvWindowMS   int64
	EntryExitDelay time.Duration

	// Entry price multiplier in percent, clamped to 95..105 (100 = no-op).
	// Applied to the entry price only, never to SL/TP/trigger prices.
	EntryPriceAdjustPct float64

	ImmediateTP      bool // false = defer TP to the scheduler
	StopLossDisabled bool // global kill-switch, skips protective stops
	RawPassthrough   bool // trusted call sites only: disables the sanitizer

	Cooldown CooldownConfig

	WatchdogDeadline time.Duration

	TelegramToken  string
	TelegramChatID int64

	HealthAddr string

	JaegerHost string
	JaegerPort int
}

type CooldownConfig struct {
	Enabled        bool
	LossThreshold  int
	Duration       time.Duration
	Persist        bool
	IncomeLookback time.Duration
}

func NewConfig() (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("BINANCE_BASE_URL", "https://fapi.binance.com")
	v.SetDefault("BINANCE_STREAM_URL", "wss://fstream.binance.com/ws")
	v.SetDefault("DATA_DIR", "data")
	v.SetDefault("RECV_WINDOW_MS", 15000)
	v.SetDefault("ENTRY_EXIT_DELAY_MS", 3000)
	v.SetDefault("ENTRY_PRICE_ADJUSTMENT_PCT", 100.0)
	v.SetDefault("IMMEDIATE_TP", true)
	v.SetDefault("STOP_LOSS_DISABLED", false)
	v.SetDefault("RAW_PASSTHROUGH", false)
	v.SetDefault("COOLDOWN_ENABLED", true)
	v.SetDefault("COOLDOWN_LOSS_THRESHOLD", 2)
	v.SetDefault("COOLDOWN_MINUTES", 60)
	v.SetDefault("COOLDOWN_PERSIST", true)
	v.SetDefault("COOLDOWN_INCOME_LOOKBACK_MIN", 240)
	v.SetDefault("WATCHDOG_DEADLINE_SEC", 30)
	v.SetDefault("HEALTH_ADDR", ":8080")
	v.SetDefault("JAEGER_HOST", "")
	v.SetDefault("JAEGER_PORT", 6831)

	cfg := &Config{
		APIKey:    v.GetString("BINANCE_API_KEY"),
		APISecret: v.GetString("BINANCE_API_SECRET"),
		BaseURL:   v.GetString("BINANCE_BASE_URL"),
		StreamURL: v.GetString("BINANCE_STREAM_URL"),
		DataDir:   v.GetString("DATA_DIR"),

		RecvWindowMS:   v.GetInt64("RECV_WINDOW_MS"),
		EntryExitDelay: time.Duration(v.GetInt64("ENTRY_EXIT_DELAY_MS")) * time.Millisecond,

		EntryPriceAdjustPct: clampAdjustPct(v.GetFloat64("ENTRY_PRICE_ADJUSTMENT_PCT")),

		ImmediateTP:      v.GetBool("IMMEDIATE_TP"),
		StopLossDisabled: v.GetBool("STOP_LOSS_DISABLED"),
		RawPassthrough:   v.GetBool("RAW_PASSTHROUGH"),

		Cooldown: CooldownConfig{
			Enabled:        v.GetBool("COOLDOWN_ENABLED"),
			LossThreshold:  v.GetInt("COOLDOWN_LOSS_THRESHOLD"),
			Duration:       time.Duration(v.GetInt("COOLDOWN_MINUTES")) * time.Minute,
			Persist:        v.GetBool("COOLDOWN_PERSIST"),
			IncomeLookback: time.Duration(v.GetInt("COOLDOWN_INCOME_LOOKBACK_MIN")) * time.Minute,
		},

		WatchdogDeadline: time.Duration(v.GetInt("WATCHDOG_DEADLINE_SEC")) * time.Second,

		TelegramToken:  v.GetString("TELEGRAM_TOKEN"),
		TelegramChatID: v.GetInt64("TELEGRAM_CHAT_ID"),

		HealthAddr: v.GetString("HEALTH_ADDR"),

		JaegerHost: v.GetString("JAEGER_HOST"),
		JaegerPort: v.GetInt("JAEGER_PORT"),
	}

	return cfg, nil
}

// clampAdjustPct bounds the entry adjustment to ±5% of 100.
func clampAdjustPct(pct float64) float64 {
	if pct < 95 {
		return 95
	}
	if pct > 105 {
		return 105
	}
	return pct
}
