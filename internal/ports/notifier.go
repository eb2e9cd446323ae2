package ports

import (
	"context"

	"spotCycleBot/internal/domain"
)

// Notifier is the outbound notification sink. Implementations must be
// fire-and-forget: delivery failure is logged by the adapter and never
// surfaces into the trading cycle.
type Notifier interface {
	NotifyStartup(ctx context.Context, summary map[string]string)
	NotifyShutdown(ctx context.Context, reason string)
	NotifyEmergencyStop(ctx context.Context, reason string)
	NotifyNewDay(ctx context.Context, startingBalance float64)
	NotifySignal(ctx context.Context, signal *domain.Signal)
	NotifySignalRejected(ctx context.Context, reason domain.RejectReason, message string)
	NotifyTradeEntry(ctx context.Context, position *domain.Position, signal *domain.Signal)
	NotifyTradeExit(ctx context.Context, trade *domain.Trade)
	NotifyDailyTargetReached(ctx context.Context, stats *domain.DailyStats)
	NotifyMaxLossReached(ctx context.Context, stats *domain.DailyStats)
	NotifyDailyReport(ctx context.Context, stats *domain.DailyStats)
	NotifyError(ctx context.Context, title, detail string)
}
