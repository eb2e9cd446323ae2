package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"spotCycleBot/internal/adapters/logger"
)

// minRefreshInterval is the floor for the trading cycle interval. It bounds
// worst-case blocking of the cycle worker regardless of the configured value.
const minRefreshInterval = 60 * time.Second

// Config holds all application configuration. A Config value is an immutable
// snapshot; the orchestrator swaps in a fresh snapshot via Reload at the start
// of every cycle.
type Config struct {
	// Binance API
	APIKey    string
	SecretKey string
	IsTestnet bool

	// Trading Parameters
	Symbol          string
	QuoteAsset      string
	RefreshInterval time.Duration // Trading cycle interval, floored at 60s
	KlineInterval   string        // Candle interval fed to the evaluator
	KlineLimit      int           // History window size for the evaluator

	// Risk Parameters
	MinPositionSize float64 // Minimum entry notional in quote currency
	MaxPositionSize float64 // Maximum entry notional in quote currency
	MaxRiskPerTrade float64 // Fraction of free balance risked per entry
	StopLossPercent float64 // Stop-loss distance (e.g., 0.01 for 1%)
	RiskReward      float64 // Take-profit distance = StopLossPercent * RiskReward
	MaxHoldDuration time.Duration
	MinConfluence   float64 // Minimum signal score in percent

	// Daily Limits
	MaxDailyLoss      float64 // Percent of starting balance (positive number)
	DailyProfitTarget float64 // Percent of starting balance

	// Evaluator Parameters
	RSIPeriod     int
	ShortMAPeriod int
	LongMAPeriod  int
	EMAPeriod     int
	RSIOverbought float64
	RSIOversold   float64

	// Control
	EmergencyStop       bool
	MinAvailableBalance float64

	// Notifications
	TelegramToken  string
	TelegramChatID int64

	// HTTP status surface
	HTTPPort int

	// Database
	DBPath string

	// Logging
	LogLevel logger.LogLevel
}

// Load loads configuration from environment variables (.env file).
func Load() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()
	return fromEnv()
}

// Reload re-reads the environment (including .env, which takes precedence so
// file edits are picked up in a running process) and returns a fresh snapshot.
// Called at the start of every trading cycle for the emergency-stop flag and
// tunable limits.
func Reload() (*Config, error) {
	_ = godotenv.Overload()
	return fromEnv()
}

func fromEnv() (*Config, error) {
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
	cfg.Symbol = getEnv("SYMBOL", "BTCUSDT")
	if cfg.Symbol == "" {
		errs = append(errs, "SYMBOL must be set")
	}
	cfg.QuoteAsset = getEnv("QUOTE_ASSET", "USDT")

	refreshSeconds := getEnvAsInt("REFRESH_INTERVAL_SECONDS", 60)
	cfg.RefreshInterval = time.Duration(refreshSeconds) * time.Second
	if cfg.RefreshInterval < minRefreshInterval {
		cfg.RefreshInterval = minRefreshInterval
	}

	cfg.KlineInterval = getEnv("KLINE_INTERVAL", "1m")
	cfg.KlineLimit = getEnvAsInt("KLINE_LIMIT", 500)
	if cfg.KlineLimit <= 0 {
		errs = append(errs, "KLINE_LIMIT must be positive")
	}

	// Risk Parameters
	cfg.MinPositionSize, err = getEnvAsFloatRequired("MIN_POSITION_SIZE_USDT", 10.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MIN_POSITION_SIZE_USDT: %v", err))
	} else if cfg.MinPositionSize <= 0 {
		errs = append(errs, "MIN_POSITION_SIZE_USDT must be positive")
	}

	cfg.MaxPositionSize, err = getEnvAsFloatRequired("MAX_POSITION_SIZE_USDT", 1000.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_POSITION_SIZE_USDT: %v", err))
	} else if cfg.MaxPositionSize < cfg.MinPositionSize {
		errs = append(errs, "MAX_POSITION_SIZE_USDT must be >= MIN_POSITION_SIZE_USDT")
	}

	cfg.MaxRiskPerTrade, err = getEnvAsFloatRequired("MAX_RISK_PER_TRADE", 0.1)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_RISK_PER_TRADE: %v", err))
	} else if cfg.MaxRiskPerTrade <= 0 || cfg.MaxRiskPerTrade > 1.0 {
		errs = append(errs, "MAX_RISK_PER_TRADE must be between 0.0 and 1.0")
	}

	cfg.StopLossPercent, err = getEnvAsFloatRequired("STOP_LOSS_PERCENT", 0.01)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid STOP_LOSS_PERCENT: %v", err))
	} else if cfg.StopLossPercent <= 0 || cfg.StopLossPercent >= 1.0 {
		errs = append(errs, "STOP_LOSS_PERCENT must be between 0.0 and 1.0 (exclusive)")
	}

	cfg.RiskReward, err = getEnvAsFloatRequired("RISK_REWARD", 2.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid RISK_REWARD: %v", err))
	} else if cfg.RiskReward <= 0 {
		errs = append(errs, "RISK_REWARD must be positive")
	}

	maxHoldHours := getEnvAsInt("MAX_HOLD_HOURS", 24)
	if maxHoldHours <= 0 {
		errs = append(errs, "MAX_HOLD_HOURS must be positive")
	}
	cfg.MaxHoldDuration = time.Duration(maxHoldHours) * time.Hour

	cfg.MinConfluence = getEnvAsFloat("MIN_CONFLUENCE", 70.0)
	if cfg.MinConfluence < 0 || cfg.MinConfluence > 100 {
		errs = append(errs, "MIN_CONFLUENCE must be between 0 and 100")
	}

	// Daily Limits
	cfg.MaxDailyLoss, err = getEnvAsFloatRequired("MAX_DAILY_LOSS_PERCENT", 3.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_DAILY_LOSS_PERCENT: %v", err))
	} else if cfg.MaxDailyLoss <= 0 {
		errs = append(errs, "MAX_DAILY_LOSS_PERCENT must be positive")
	}

	cfg.DailyProfitTarget, err = getEnvAsFloatRequired("DAILY_PROFIT_TARGET_PERCENT", 2.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid DAILY_PROFIT_TARGET_PERCENT: %v", err))
	} else if cfg.DailyProfitTarget <= 0 {
		errs = append(errs, "DAILY_PROFIT_TARGET_PERCENT must be positive")
	}

	// Evaluator Parameters (using defaults if not set)
	cfg.RSIPeriod = getEnvAsInt("RSI_PERIOD", 14)
	cfg.ShortMAPeriod = getEnvAsInt("SHORT_MA_PERIOD", 20)
	cfg.LongMAPeriod = getEnvAsInt("LONG_MA_PERIOD", 50)
	cfg.EMAPeriod = getEnvAsInt("EMA_PERIOD", 20)
	cfg.RSIOverbought = getEnvAsFloat("RSI_OVERBOUGHT", 70.0)
	cfg.RSIOversold = getEnvAsFloat("RSI_OVERSOLD", 30.0)

	if cfg.RSIPeriod <= 0 || cfg.ShortMAPeriod <= 0 || cfg.LongMAPeriod <= 0 || cfg.EMAPeriod <= 0 {
		errs = append(errs, "evaluator periods (MA, EMA, RSI) must be positive")
	}
	if cfg.ShortMAPeriod >= cfg.LongMAPeriod {
		errs = append(errs, "SHORT_MA_PERIOD must be less than LONG_MA_PERIOD")
	}
	if cfg.RSIOverbought <= cfg.RSIOversold || cfg.RSIOverbought > 100 || cfg.RSIOversold < 0 {
		errs = append(errs, "invalid RSI thresholds (Overbought must be > Oversold, between 0-100)")
	}

	// Control
	cfg.EmergencyStop = getEnvAsBool("EMERGENCY_STOP", false)

	cfg.MinAvailableBalance, err = getEnvAsFloatRequired("MIN_AVAILABLE_BALANCE", 100.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MIN_AVAILABLE_BALANCE: %v", err))
	} else if cfg.MinAvailableBalance < 0 {
		errs = append(errs, "MIN_AVAILABLE_BALANCE cannot be negative")
	}

	// Notifications (optional: empty token disables the telegram sink)
	cfg.TelegramToken = getEnv("TELEGRAM_BOT_TOKEN", "")
	chatIDStr := getEnv("TELEGRAM_CHAT_ID", "0")
	cfg.TelegramChatID, err = strconv.ParseInt(chatIDStr, 10, 64)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TELEGRAM_CHAT_ID: %v", err))
	}
	if cfg.TelegramToken != "" && cfg.TelegramChatID == 0 {
		errs = append(errs, "TELEGRAM_CHAT_ID must be set when TELEGRAM_BOT_TOKEN is set")
	}

	// HTTP status surface
	cfg.HTTPPort = getEnvAsInt("PORT", 8080)
	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		errs = append(errs, "PORT must be a valid TCP port")
	}

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/trading_bot.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Logging
	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr)

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// Summary returns the non-secret settings for startup logging/notification.
func (c *Config) Summary() map[string]string {
	return map[string]string{
		"symbol":              c.Symbol,
		"testnet":             strconv.FormatBool(c.IsTestnet),
		"refresh_interval":    c.RefreshInterval.String(),
		"min_position_size":   strconv.FormatFloat(c.MinPositionSize, 'f', 2, 64),
		"max_risk_per_trade":  strconv.FormatFloat(c.MaxRiskPerTrade, 'f', 4, 64),
		"stop_loss_percent":   strconv.FormatFloat(c.StopLossPercent, 'f', 4, 64),
		"risk_reward":         strconv.FormatFloat(c.RiskReward, 'f', 2, 64),
		"max_daily_loss":      strconv.FormatFloat(c.MaxDailyLoss, 'f', 2, 64),
		"daily_profit_target": strconv.FormatFloat(c.DailyProfitTarget, 'f', 2, 64),
		"min_confluence":      strconv.FormatFloat(c.MinConfluence, 'f', 1, 64),
	}
}

// HasCredentials reports whether both API credentials are present.
func (c *Config) HasCredentials() bool {
	return c.APIKey != "" && c.SecretKey != ""
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
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		// Return error if env var is set but invalid
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
