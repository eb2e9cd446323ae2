package telegram

import (
	"context"

	"spotCycleBot/internal/domain"
)

// NoopNotifier discards all notifications. Used when no Telegram token is
// configured.
type NoopNotifier struct{}

func NewNoop() *NoopNotifier { return &NoopNotifier{} }

func (NoopNotifier) NotifyStartup(ctx context.Context, summary map[string]string)              {}
func (NoopNotifier) NotifyShutdown(ctx context.Context, reason string)                         {}
func (NoopNotifier) NotifyEmergencyStop(ctx context.Context, reason string)                    {}
func (NoopNotifier) NotifyNewDay(ctx context.Context, startingBalance float64)                 {}
func (NoopNotifier) NotifySignal(ctx context.Context, signal *domain.Signal)                   {}
func (NoopNotifier) NotifySignalRejected(ctx context.Context, r domain.RejectReason, m string) {}
func (NoopNotifier) NotifyTradeEntry(ctx context.Context, p *domain.Position, s *domain.Signal) {
}
func (NoopNotifier) NotifyTradeExit(ctx context.Context, trade *domain.Trade)                {}
func (NoopNotifier) NotifyDailyTargetReached(ctx context.Context, stats *domain.DailyStats)  {}
func (NoopNotifier) NotifyMaxLossReached(ctx context.Context, stats *domain.DailyStats)      {}
func (NoopNotifier) NotifyDailyReport(ctx context.Context, stats *domain.DailyStats)         {}
func (NoopNotifier) NotifyError(ctx context.Context, title, detail string)                   {}
