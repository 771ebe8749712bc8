package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// Binance API
	APIKey    string
	SecretKey string
	IsTestnet bool

	// Trading Parameters
	Symbol    string // Pair in "BTC/USDT" form
	Timeframe string // Candle interval (e.g., "1h")

	// RSI
	RSIPeriod     int
	RSIOverbought float64
	RSIOversold   float64

	// MACD
	MACDFastPeriod   int
	MACDSlowPeriod   int
	MACDSignalPeriod int

	// ATR
	ATRPeriod int

	// Risk Management
	RiskPerTrade     float64 // Percent of balance risked per trade (e.g., 1.0)
	ATRMultiplier    float64 // ATR multiplier for stop loss distance
	TakeProfitRatio  float64 // Take profit / stop loss distance ratio
	UseATRStopLoss   bool
	BasePositionSize float64 // Fixed order size fallback when RiskPerTrade is 0

	// Scheduler
	PollInterval time.Duration // Sleep between iterations (e.g., 60s)
	ErrorBackoff time.Duration // Minimum sleep after a failed iteration (e.g., 5s)

	// Database
	DBPath string

	// Telegram
	TelegramToken  string
	TelegramChatID int64

	// Logging
	LogLevel string
	LogFile  string // Optional rotating log file, stderr only when empty
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Binance API
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", true) // Default to testnet for safety

	if cfg.APIKey == "" {
		errs = append(errs, "BINANCE_API_KEY must be set")
	}
	if cfg.SecretKey == "" {
		errs = append(errs, "BINANCE_API_SECRET must be set")
	}

	// Trading Parameters
	cfg.Symbol = normalizeSymbol(getEnv("SYMBOL", "BTC/USDT"))
	if cfg.Symbol == "" {
		errs = append(errs, "SYMBOL must be set")
	}
	cfg.Timeframe = getEnv("TIMEFRAME", "1h")
	if cfg.Timeframe == "" {
		errs = append(errs, "TIMEFRAME must be set")
	}

	// Indicator Parameters (using defaults if not set)
	cfg.RSIPeriod = getEnvAsInt("RSI_PERIOD", 14)
	cfg.RSIOverbought = getEnvAsFloat("RSI_OVERBOUGHT", 70.0)
	cfg.RSIOversold = getEnvAsFloat("RSI_OVERSOLD", 30.0)
	cfg.MACDFastPeriod = getEnvAsInt("MACD_FAST_PERIOD", 12)
	cfg.MACDSlowPeriod = getEnvAsInt("MACD_SLOW_PERIOD", 26)
	cfg.MACDSignalPeriod = getEnvAsInt("MACD_SIGNAL_PERIOD", 9)
	cfg.ATRPeriod = getEnvAsInt("ATR_PERIOD", 14)

	if cfg.RSIPeriod <= 0 || cfg.ATRPeriod <= 0 {
		errs = append(errs, "indicator periods (RSI, ATR) must be positive")
	}
	if cfg.MACDFastPeriod <= 0 || cfg.MACDSlowPeriod <= 0 || cfg.MACDSignalPeriod <= 0 {
		errs = append(errs, "MACD periods must be positive")
	}
	if cfg.MACDFastPeriod >= cfg.MACDSlowPeriod {
		errs = append(errs, "MACD_FAST_PERIOD must be less than MACD_SLOW_PERIOD")
	}
	if cfg.RSIOverbought <= cfg.RSIOversold || cfg.RSIOverbought > 100 || cfg.RSIOversold < 0 {
		errs = append(errs, "invalid RSI thresholds (Overbought must be > Oversold, between 0-100)")
	}

	// Risk Management
	cfg.RiskPerTrade, err = getEnvAsFloatRequired("RISK_PER_TRADE", 1.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid RISK_PER_TRADE: %v", err))
	} else if cfg.RiskPerTrade < 0 || cfg.RiskPerTrade > 100 {
		errs = append(errs, "RISK_PER_TRADE must be between 0 and 100")
	}

	cfg.ATRMultiplier, err = getEnvAsFloatRequired("ATR_MULTIPLIER", 2.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid ATR_MULTIPLIER: %v", err))
	} else if cfg.ATRMultiplier <= 0 {
		errs = append(errs, "ATR_MULTIPLIER must be positive")
	}

	cfg.TakeProfitRatio, err = getEnvAsFloatRequired("TAKE_PROFIT_RATIO", 2.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TAKE_PROFIT_RATIO: %v", err))
	} else if cfg.TakeProfitRatio <= 0 {
		errs = append(errs, "TAKE_PROFIT_RATIO must be positive")
	}

	cfg.UseATRStopLoss = getEnvAsBool("USE_ATR_STOP_LOSS", true)

	cfg.BasePositionSize, err = getEnvAsFloatRequired("BASE_POSITION_SIZE", 0.001)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid BASE_POSITION_SIZE: %v", err))
	} else if cfg.BasePositionSize < 0 {
		errs = append(errs, "BASE_POSITION_SIZE cannot be negative")
	}

	// Scheduler
	pollIntervalSeconds := getEnvAsInt("POLL_INTERVAL_SECONDS", 60)
	if pollIntervalSeconds <= 0 {
		errs = append(errs, "POLL_INTERVAL_SECONDS must be positive")
	}
	cfg.PollInterval = time.Duration(pollIntervalSeconds) * time.Second

	errorBackoffSeconds := getEnvAsInt("ERROR_BACKOFF_SECONDS", 5)
	if errorBackoffSeconds <= 0 {
		errs = append(errs, "ERROR_BACKOFF_SECONDS must be positive")
	}
	cfg.ErrorBackoff = time.Duration(errorBackoffSeconds) * time.Second

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/trading_bot.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Telegram (optional: notifications and commands are disabled when unset)
	cfg.TelegramToken = getEnv("TELEGRAM_BOT_TOKEN", "")
	cfg.TelegramChatID, err = getEnvAsInt64("TELEGRAM_CHAT_ID", 0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TELEGRAM_CHAT_ID: %v", err))
	}

	// Logging
	cfg.LogLevel = getEnv("LOG_LEVEL", "INFO")
	cfg.LogFile = getEnv("LOG_FILE", "")

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// normalizeSymbol ensures the pair is in "BASE/QUOTE" form, converting
// "BTCUSDT" style input to "BTC/USDT".
func normalizeSymbol(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" || strings.Contains(symbol, "/") {
		return symbol
	}
	for _, quote := range []string{"USDT", "BUSD", "USDC", "BTC", "ETH"} {
		if strings.HasSuffix(symbol, quote) && len(symbol) > len(quote) {
			return symbol[:len(symbol)-len(quote)] + "/" + quote
		}
	}
	return symbol
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsInt64(key string, defaultValue int64) (int64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
