package ports

import (
	"context"

	"spotCycleBot/internal/domain"
)

// SignalEvaluator scores market conditions into a trade signal.
type SignalEvaluator interface {
	// RequiredDataPoints returns the minimum number of klines needed for the evaluation.
	RequiredDataPoints() int

	// Analyze consumes historical klines plus the current price and returns a
	// scored signal. It never returns nil; an unfavorable market yields an
	// invalid signal.
	Analyze(ctx context.Context, klines []*domain.Kline, currentPrice float64) *domain.Signal
}
