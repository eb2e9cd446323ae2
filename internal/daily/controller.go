package daily

import (
	"context"
	"fmt"
	"sync"
	"time"

	"spotCycleBot/internal/domain"
	"spotCycleBot/internal/ports"
)

const dayKeyLayout = "2006-01-02"

// Config holds the daily limit parameters.
type Config struct {
	ProfitTarget float64 // Percent of starting balance
	MaxLoss      float64 // Percent of starting balance (positive number)
}

// Controller owns the per-UTC-day statistics aggregate and the day-rollover
// rule. It is the only component that evaluates day boundaries, so other
// components cannot drift on what "today" means.
type Controller struct {
	cfg    Config
	logger ports.Logger
	repo   ports.DailyStatsRepository // Optional persistence; nil disables it
	nowFn  func() time.Time

	mu    sync.Mutex
	stats *domain.DailyStats
}

// Option configures the controller.
type Option func(*Controller)

// WithClock overrides the time source. Used in tests.
func WithClock(nowFn func() time.Time) Option {
	return func(c *Controller) { c.nowFn = nowFn }
}

// WithRepository enables persistence of day snapshots.
func WithRepository(repo ports.DailyStatsRepository) Option {
	return func(c *Controller) { c.repo = repo }
}

// New creates a new daily controller.
func New(cfg Config, logger ports.Logger, opts ...Option) (*Controller, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for daily controller")
	}
	if cfg.ProfitTarget <= 0 || cfg.MaxLoss <= 0 {
		return nil, fmt.Errorf("ProfitTarget and MaxLoss must be positive")
	}
	c := &Controller{
		cfg:    cfg,
		logger: logger,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// dayKey derives the UTC calendar day key for "now".
func (c *Controller) dayKey() string {
	return c.nowFn().UTC().Format(dayKeyLayout)
}

// GetOrCreate resolves today's stats, creating a fresh aggregate on the first
// access of a new UTC day. The returned value reports whether a rollover
// happened so callers can emit the new-day notification.
func (c *Controller) GetOrCreate(ctx context.Context, balance float64) (*domain.DailyStats, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	today := c.dayKey()
	if c.stats != nil && c.stats.Date == today {
		return c.stats.Clone(), false
	}

	c.stats = &domain.DailyStats{
		Date:            today,
		StartingBalance: balance,
	}
	c.logger.Info(ctx, "New trading day started", map[string]interface{}{
		"date":            today,
		"startingBalance": balance,
	})
	c.persist(ctx)
	return c.stats.Clone(), true
}

// IsTradingAllowed denies trading once today's target is reached or today's
// loss limit is breached. Before the first access of a day it allows trading;
// the aggregate is created lazily by the cycle.
func (c *Controller) IsTradingAllowed() (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stats == nil || c.stats.Date != c.dayKey() {
		return true, ""
	}
	if c.stats.TargetReached {
		return false, fmt.Sprintf("daily profit target reached (%.2f%%)", c.stats.DailyPnLPercent)
	}
	if c.stats.MaxLossReached || c.stats.DailyPnLPercent <= -c.cfg.MaxLoss {
		return false, fmt.Sprintf("max daily loss reached (%.2f%%)", c.stats.DailyPnLPercent)
	}
	return true, ""
}

// UpdateAfterTrade applies a completed trade's realized P&L into the running
// aggregate. The target flag is one-way for the day: once set it never resets
// until rollover.
func (c *Controller) UpdateAfterTrade(ctx context.Context, trade *domain.Trade, balance float64) *domain.DailyStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	today := c.dayKey()
	if c.stats == nil || c.stats.Date != today {
		c.stats = &domain.DailyStats{
			Date:            today,
			StartingBalance: balance,
		}
	}

	c.stats.DailyPnL += trade.NetPnL
	c.stats.TotalTrades++
	if c.stats.StartingBalance > 0 {
		c.stats.DailyPnLPercent = c.stats.DailyPnL / c.stats.StartingBalance * 100
	}
	if c.stats.DailyPnLPercent >= c.cfg.ProfitTarget {
		c.stats.TargetReached = true
	}
	if c.stats.DailyPnLPercent <= -c.cfg.MaxLoss {
		c.stats.MaxLossReached = true
	}

	c.logger.Info(ctx, "Daily stats updated after trade", map[string]interface{}{
		"date":          c.stats.Date,
		"dailyPnl":      c.stats.DailyPnL,
		"dailyPnlPct":   c.stats.DailyPnLPercent,
		"totalTrades":   c.stats.TotalTrades,
		"targetReached": c.stats.TargetReached,
	})
	c.persist(ctx)
	return c.stats.Clone()
}

// Report returns a read-only snapshot of today's aggregate, or nil if no
// trading day has started yet.
func (c *Controller) Report() *domain.DailyStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats.Clone()
}

// persist writes the current aggregate through the repository. Persistence
// failures are logged and never affect the in-memory aggregate.
// Callers must hold c.mu.
func (c *Controller) persist(ctx context.Context) {
	if c.repo == nil || c.stats == nil {
		return
	}
	if err := c.repo.UpsertDailyStats(ctx, c.stats.Clone()); err != nil {
		c.logger.Warn(ctx, "Failed to persist daily stats", map[string]interface{}{
			"date":  c.stats.Date,
			"error": err.Error(),
		})
	}
}
