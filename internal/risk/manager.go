package risk

import (
	"fmt"
	"math"
	"time"

	"spotCycleBot/internal/domain"
)

// Config holds the risk policy parameters.
type Config struct {
	MinNotional     float64       // Minimum entry size in quote currency
	MaxNotional     float64       // Maximum entry size in quote currency
	MaxRiskPerTrade float64       // Fraction of free balance committed per entry
	StopLossPercent float64       // Stop-loss distance from entry (e.g., 0.01)
	RiskReward      float64       // Take-profit distance = StopLossPercent * RiskReward
	MaxDailyLoss    float64       // Percent of starting balance (positive number)
	MinConfluence   float64       // Minimum signal score in percent
	MaxHoldDuration time.Duration // Time-based exit for stale positions
}

// Assessment is the admission decision for a candidate entry. Immutable and
// cycle-scoped.
type Assessment struct {
	Allowed         bool
	Reason          domain.RejectReason
	Message         string
	PositionSize    float64 // Base-asset quantity to request
	StopLossPrice   float64
	TakeProfitPrice float64
}

// Manager evaluates admission and exit policy. It owns no mutable state: both
// checks are deterministic functions of their inputs.
type Manager struct {
	cfg Config
}

// New creates a new risk manager.
func New(cfg Config) (*Manager, error) {
	if cfg.MinNotional <= 0 {
		return nil, fmt.Errorf("MinNotional must be positive")
	}
	if cfg.MaxNotional < cfg.MinNotional {
		return nil, fmt.Errorf("MaxNotional must be >= MinNotional")
	}
	if cfg.MaxRiskPerTrade <= 0 || cfg.MaxRiskPerTrade > 1 {
		return nil, fmt.Errorf("MaxRiskPerTrade must be between 0 and 1")
	}
	if cfg.StopLossPercent <= 0 || cfg.StopLossPercent >= 1 {
		return nil, fmt.Errorf("StopLossPercent must be between 0 and 1 (exclusive)")
	}
	if cfg.RiskReward <= 0 {
		return nil, fmt.Errorf("RiskReward must be positive")
	}
	if cfg.MaxDailyLoss <= 0 {
		return nil, fmt.Errorf("MaxDailyLoss must be positive")
	}
	return &Manager{cfg: cfg}, nil
}

// AssessEntry decides whether a candidate entry is admitted and, if so, its
// size and protective price levels. Denials are a normal, frequent outcome.
func (m *Manager) AssessEntry(signal *domain.Signal, balance *domain.AccountBalance, stats *domain.DailyStats, current *domain.Position) *Assessment {
	if current.IsOpen() {
		return &Assessment{
			Reason:  domain.RejectPositionOpen,
			Message: fmt.Sprintf("position on %s already open", current.Symbol),
		}
	}
	if stats != nil && stats.TargetReached {
		return &Assessment{
			Reason:  domain.RejectDailyTargetReached,
			Message: fmt.Sprintf("daily target reached (%.2f%%)", stats.DailyPnLPercent),
		}
	}
	if stats != nil && (stats.MaxLossReached || stats.DailyPnLPercent <= -m.cfg.MaxDailyLoss) {
		return &Assessment{
			Reason:  domain.RejectDailyLossReached,
			Message: fmt.Sprintf("daily loss limit breached (%.2f%% <= -%.2f%%)", stats.DailyPnLPercent, m.cfg.MaxDailyLoss),
		}
	}
	if balance == nil || balance.Free < m.cfg.MinNotional {
		free := 0.0
		if balance != nil {
			free = balance.Free
		}
		return &Assessment{
			Reason:  domain.RejectInsufficientBalance,
			Message: fmt.Sprintf("free balance %.2f below minimum notional %.2f", free, m.cfg.MinNotional),
		}
	}
	if signal == nil || !signal.Valid || signal.Confluence < m.cfg.MinConfluence {
		confluence := 0.0
		if signal != nil {
			confluence = signal.Confluence
		}
		return &Assessment{
			Reason:  domain.RejectLowConfluence,
			Message: fmt.Sprintf("confluence %.1f%% below threshold %.1f%%", confluence, m.cfg.MinConfluence),
		}
	}

	notional := balance.Free * m.cfg.MaxRiskPerTrade
	notional = math.Max(notional, m.cfg.MinNotional)
	notional = math.Min(notional, m.cfg.MaxNotional)
	notional = math.Min(notional, balance.Free)

	entryPrice := signal.Price
	size := notional / entryPrice

	stopLoss, takeProfit := m.protectiveLevels(entryPrice, signal.Direction)

	return &Assessment{
		Allowed:         true,
		PositionSize:    size,
		StopLossPrice:   stopLoss,
		TakeProfitPrice: takeProfit,
	}
}

// CheckExit decides whether an open position must be closed and with which
// reason. The daily loss cap force-closes to stop further exposure.
func (m *Manager) CheckExit(pos *domain.Position, currentPrice float64, stats *domain.DailyStats) (bool, domain.TradeReason) {
	if !pos.IsOpen() {
		return false, ""
	}

	if pos.Side == domain.Buy {
		if currentPrice <= pos.StopLoss {
			return true, domain.TradeReasonStopLoss
		}
		if currentPrice >= pos.TakeProfit {
			return true, domain.TradeReasonTakeProfit
		}
	} else {
		if currentPrice >= pos.StopLoss {
			return true, domain.TradeReasonStopLoss
		}
		if currentPrice <= pos.TakeProfit {
			return true, domain.TradeReasonTakeProfit
		}
	}

	if stats != nil && (stats.MaxLossReached || stats.DailyPnLPercent <= -m.cfg.MaxDailyLoss) {
		return true, domain.TradeReasonDailyLossLimit
	}

	if m.cfg.MaxHoldDuration > 0 && time.Since(pos.OpenedAt) >= m.cfg.MaxHoldDuration {
		return true, domain.TradeReasonTimeLimit
	}

	return false, ""
}

// protectiveLevels derives stop-loss and take-profit prices from the entry
// price and the configured risk/reward ratio.
func (m *Manager) protectiveLevels(entryPrice float64, direction domain.SignalDirection) (stopLoss, takeProfit float64) {
	tpPercent := m.cfg.StopLossPercent * m.cfg.RiskReward
	if direction == domain.DirectionShort {
		return entryPrice * (1 + m.cfg.StopLossPercent), entryPrice * (1 - tpPercent)
	}
	return entryPrice * (1 - m.cfg.StopLossPercent), entryPrice * (1 + tpPercent)
}
