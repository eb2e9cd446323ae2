package ports

import (
	"context"

	"spotCycleBot/internal/domain"
)

// TradeRepository defines the interface for storing and retrieving completed trades.
type TradeRepository interface {
	// CreateTrade saves a new trade record.
	CreateTrade(ctx context.Context, trade *domain.Trade) error
	// FindBySymbol retrieves the most recent trades for a given symbol, up to a limit.
	FindBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.Trade, error)
	// CountByDay counts the trades closed on the given UTC day key for a symbol.
	CountByDay(ctx context.Context, symbol string, day string) (int, error)
}

// DailyStatsRepository persists per-day aggregates. Historical days are kept;
// the controller only ever touches the row for the current day key.
type DailyStatsRepository interface {
	// UpsertDailyStats inserts or replaces the stats row for its day key.
	UpsertDailyStats(ctx context.Context, stats *domain.DailyStats) error
	// FindByDate retrieves the stats for a UTC day key.
	// Returns nil, nil if no row exists.
	FindByDate(ctx context.Context, day string) (*domain.DailyStats, error)
}
