package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	databaseDSN       = "DATABASE_DSN"
)

// Config ...
type Config struct {
	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`
	DB     string `yaml:"db_dsn"`
	Jaeger struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"jaeger"`

	// Market data feed
	FeedURL string `yaml:"feed_url"`
	RestURL string `yaml:"rest_url"`

	Regulator RegulatorConfig `yaml:"regulator"`

	// Simulated investment per opened position, in quote currency.
	InvestmentAmount float64 `yaml:"investment_amount"`

	// Consecutive losses before a symbol is suspended.
	MaxLossStreak int `yaml:"max_loss_streak"`
}

// RegulatorConfig — admission-control thresholds plus the shared pipeline
// sizing knobs. Loaded once at startup, read-only afterwards.
type RegulatorConfig struct {
	// Each threshold is paired with how long it must hold before acting.
	MinThreshold      float64       `yaml:"min_threshold"`      // seconds
	MinDuration       time.Duration `yaml:"min_duration"`
	MaxThreshold      float64       `yaml:"max_threshold"`      // seconds
	MaxDuration       time.Duration `yaml:"max_duration"`
	CriticalThreshold float64       `yaml:"critical_threshold"` // seconds
	CriticalDuration  time.Duration `yaml:"critical_duration"`

	MaxSymbols    int `yaml:"max_symbols"`
	MinSymbols    int `yaml:"min_symbols"`
	ReductionStep int `yaml:"reduction_step"`

	Interval time.Duration `yaml:"interval"` // regulator cycle period

	Workers         int `yaml:"workers"`
	QueueSize       int `yaml:"queue_size"`
	MaxStreamsPerWS int `yaml:"max_streams_per_ws"`

	FlushMessages int           `yaml:"flush_messages"`
	FlushMaxAge   time.Duration `yaml:"flush_max_age"`
	FlushLockWait time.Duration `yaml:"flush_lock_wait"`

	// Candles loaded per timeframe before a symbol becomes ready.
	HistoryDepth int `yaml:"history_depth"`
}

func NewConfig() (*Config, error) {

	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	file, err := os.Open("configs/" + configFileName)
	if err != nil {
		log.Fatalf("Failed to open config file: %v", err)
	}

	defer func() {
		_ = file.Close()
	}()

	decoder := yaml.NewDecoder(file)
	config := Config{
		FeedURL: getenvDefault("FEED_URL", "wss://stream.binance.com:9443/ws"),
		RestURL: getenvDefault("REST_URL", "https://api.binance.com"),

		InvestmentAmount: floatFromEnv("INVESTMENT_AMOUNT", 100.0),
		MaxLossStreak:    intFromEnv("MAX_LOSS_STREAK", 3),

		Regulator: RegulatorConfig{
			MinThreshold:      0.5,
			MinDuration:       30 * time.Second,
			MaxThreshold:      3.0,
			MaxDuration:       60 * time.Second,
			CriticalThreshold: 5.0,
			CriticalDuration:  30 * time.Second,

			MaxSymbols:    50,
			MinSymbols:    5,
			ReductionStep: 3,

			Interval: 10 * time.Second,

			Workers:         intFromEnv("WORKERS", 10),
			QueueSize:       intFromEnv("QUEUE_SIZE", 1024),
			MaxStreamsPerWS: intFromEnv("MAX_STREAMS_PER_WS", 5),

			FlushMessages: intFromEnv("FLUSH_MESSAGES", 25),
			FlushMaxAge:   durationFromEnv("FLUSH_MAX_AGE", "5s"),
			FlushLockWait: durationFromEnv("FLUSH_LOCK_WAIT", "2s"),

			HistoryDepth: intFromEnv("HISTORY_DEPTH", 100),
		},
	}
	err = decoder.Decode(&config)
	if err != nil {
		log.Fatalf("Failed to decode config file: %v", err)
	}

	token := os.Getenv(tokenTelegramENV)
	if token != "" {
		config.Telegram.Token = token
	}

	dsn := os.Getenv(databaseDSN)
	if dsn != "" {
		config.DB = dsn
	}

	return &config, nil
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func floatFromEnv(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationFromEnv(key, def string) time.Duration {
	val := getenvDefault(key, def)
	d, err := time.ParseDuration(val)
	if err != nil {
		d, _ = time.ParseDuration(def)
	}
	return d
}
