package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"spotCycleBot/internal/domain"
	"spotCycleBot/internal/ports"
)

// Notifier implements the ports.Notifier interface over a Telegram chat.
// Delivery is fire-and-forget: every notification is sent from its own
// goroutine and failures are only logged, never returned to the caller.
type Notifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
	logger ports.Logger
}

// Config holds configuration for the Telegram notifier.
type Config struct {
	Token  string
	ChatID int64
	Logger ports.Logger
}

// New creates a new Telegram notifier.
func New(cfg Config) (*Notifier, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Telegram notifier")
	}
	if cfg.Token == "" || cfg.ChatID == 0 {
		return nil, fmt.Errorf("telegram token and chat id are required: %w", ports.ErrConfigurationError)
	}

	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	cfg.Logger.Info(context.Background(), "Telegram notifier authorized", map[string]interface{}{"bot": api.Self.UserName})

	return &Notifier{api: api, chatID: cfg.ChatID, logger: cfg.Logger}, nil
}

// send delivers a message asynchronously so the trading cycle never blocks on
// Telegram latency or outages.
func (n *Notifier) send(text string) {
	go func() {
		msg := tgbotapi.NewMessage(n.chatID, text)
		msg.ParseMode = tgbotapi.ModeMarkdown
		if _, err := n.api.Send(msg); err != nil {
			n.logger.Warn(context.Background(), "Telegram delivery failed", map[string]interface{}{"error": err.Error()})
		}
	}()
}

func (n *Notifier) NotifyStartup(ctx context.Context, summary map[string]string) {
	var sb strings.Builder
	sb.WriteString("🚀 *Bot started*\n")
	for k, v := range summary {
		sb.WriteString(fmt.Sprintf("`%s`: %s\n", k, v))
	}
	n.send(sb.String())
}

func (n *Notifier) NotifyShutdown(ctx context.Context, reason string) {
	n.send(fmt.Sprintf("🛑 *Bot stopped*\nReason: %s", reason))
}

func (n *Notifier) NotifyEmergencyStop(ctx context.Context, reason string) {
	n.send(fmt.Sprintf("🚨 *EMERGENCY STOP*\n%s", reason))
}

func (n *Notifier) NotifyNewDay(ctx context.Context, startingBalance float64) {
	n.send(fmt.Sprintf("📅 *New trading day*\nStarting balance: %.2f USDT", startingBalance))
}

func (n *Notifier) NotifySignal(ctx context.Context, signal *domain.Signal) {
	n.send(fmt.Sprintf("📊 *Signal*\nDirection: %s\nConfluence: %.1f%%\nPrice: %.2f\nRSI: %.1f",
		signal.Direction, signal.Confluence, signal.Price, signal.RSI))
}

func (n *Notifier) NotifySignalRejected(ctx context.Context, reason domain.RejectReason, message string) {
	n.send(fmt.Sprintf("⛔ *Signal rejected*\nReason: `%s`\n%s", reason, message))
}

func (n *Notifier) NotifyTradeEntry(ctx context.Context, position *domain.Position, signal *domain.Signal) {
	n.send(fmt.Sprintf("🟢 *Trade entry* %s %s\nEntry: %.2f\nQty: %.6f\nStop loss: %.2f\nTake profit: %.2f\nConfluence: %.1f%%",
		position.Side, position.Symbol, position.EntryPrice, position.Quantity,
		position.StopLoss, position.TakeProfit, signal.Confluence))
}

func (n *Notifier) NotifyTradeExit(ctx context.Context, trade *domain.Trade) {
	emoji := "🔴"
	if trade.NetPnL >= 0 {
		emoji = "🟢"
	}
	n.send(fmt.Sprintf("%s *Trade exit* %s\nExit: %.2f\nNet P&L: %.2f USDT (%.2f%%)\nReason: `%s`",
		emoji, trade.Symbol, trade.ExitPrice, trade.NetPnL, trade.PnLPercent, trade.ExitReason))
}

func (n *Notifier) NotifyDailyTargetReached(ctx context.Context, stats *domain.DailyStats) {
	n.send(fmt.Sprintf("🎯 *Daily target reached*\nP&L: %.2f USDT (%.2f%%)\nTrades: %d",
		stats.DailyPnL, stats.DailyPnLPercent, stats.TotalTrades))
}

func (n *Notifier) NotifyMaxLossReached(ctx context.Context, stats *domain.DailyStats) {
	n.send(fmt.Sprintf("⚠️ *Max daily loss reached*\nP&L: %.2f USDT (%.2f%%)\nTrading halted for today.",
		stats.DailyPnL, stats.DailyPnLPercent))
}

func (n *Notifier) NotifyDailyReport(ctx context.Context, stats *domain.DailyStats) {
	n.send(fmt.Sprintf("📈 *Daily report* %s\nStarting balance: %.2f\nP&L: %.2f USDT (%.2f%%)\nTrades: %d\nTarget reached: %t",
		stats.Date, stats.StartingBalance, stats.DailyPnL, stats.DailyPnLPercent,
		stats.TotalTrades, stats.TargetReached))
}

func (n *Notifier) NotifyError(ctx context.Context, title, detail string) {
	ts := time.Now().UTC().Format(time.RFC3339)
	n.send(fmt.Sprintf("❗ *%s*\n%s\n`%s`", title, detail, ts))
}
