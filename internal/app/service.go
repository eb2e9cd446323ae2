package app

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"spotCycleBot/config"
	"spotCycleBot/internal/daily"
	"spotCycleBot/internal/domain"
	"spotCycleBot/internal/ports"
	"spotCycleBot/internal/risk"
)

// entryFeeRate models the spot taker fee applied to the entry notional. The
// exit fee comes from the gateway's reported fill commission.
const entryFeeRate = 0.001

// maxClockDrift is the tolerated offset between local and exchange clocks.
// Larger drift makes signed requests fail with timestamp errors.
const maxClockDrift = 5 * time.Second

// State is the orchestrator lifecycle state.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

// String returns the string representation of the State.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "STOPPED"
	case StateStarting:
		return "STARTING"
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	default:
		return "UNKNOWN"
	}
}

// ReloadFunc returns a fresh configuration snapshot. Called at the start of
// every trading cycle.
type ReloadFunc func() (*config.Config, error)

// TradingService orchestrates the trading cycle: it sequences the signal
// evaluator, risk manager, execution gateway, and daily controller, and owns
// the single current-position slot.
type TradingService struct {
	logger    ports.Logger
	exchange  ports.ExchangeClient
	evaluator ports.SignalEvaluator
	notifier  ports.Notifier
	tradeRepo ports.TradeRepository // Optional; nil disables the trade journal
	daily     *daily.Controller
	reload    ReloadFunc

	cfg       atomic.Pointer[config.Config]
	state     atomic.Int32
	hasOpen   atomic.Bool
	lastCycle atomic.Int64 // UnixNano of the last cycle start, 0 = never
	startNano atomic.Int64 // UnixNano of Start, 0 = never started

	// mu protects the position slot; all mutation happens on the cycle
	// goroutine (plus the shutdown close, which runs after the scheduler
	// has exited).
	mu       sync.Mutex
	position *domain.Position

	stopMu     sync.Mutex
	stopReason string
	cancel     context.CancelFunc
}

// NewTradingService creates a new orchestrator instance.
func NewTradingService(
	cfg *config.Config,
	logger ports.Logger,
	exchange ports.ExchangeClient,
	evaluator ports.SignalEvaluator,
	notifier ports.Notifier,
	dailyCtrl *daily.Controller,
	tradeRepo ports.TradeRepository,
	reload ReloadFunc,
) (*TradingService, error) {

	if cfg == nil || logger == nil || exchange == nil || evaluator == nil || notifier == nil || dailyCtrl == nil {
		return nil, fmt.Errorf("missing required dependencies for TradingService")
	}
	if reload == nil {
		reload = config.Reload
	}

	s := &TradingService{
		logger:    logger,
		exchange:  exchange,
		evaluator: evaluator,
		notifier:  notifier,
		tradeRepo: tradeRepo,
		daily:     dailyCtrl,
		reload:    reload,
	}
	s.cfg.Store(cfg)
	return s, nil
}

// Start validates the environment, schedules the periodic tasks, and blocks
// until the context is cancelled or an emergency stop fires. A validation
// failure here is fatal and never retried.
func (s *TradingService) Start(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return fmt.Errorf("trading service already started")
	}
	s.startNano.Store(time.Now().UTC().UnixNano())

	ctx, cancel := context.WithCancel(ctx)
	s.stopMu.Lock()
	s.cancel = cancel
	s.stopMu.Unlock()
	defer cancel()

	cfg := s.cfg.Load()
	s.logger.Info(ctx, "Starting trading service", map[string]interface{}{"symbol": cfg.Symbol, "interval": cfg.RefreshInterval.String()})

	if err := s.validateStartup(ctx, cfg); err != nil {
		s.logger.Error(ctx, err, "Startup validation failed")
		s.state.Store(int32(StateStopped))
		return fmt.Errorf("startup validation failed: %w", err)
	}

	s.notifier.NotifyStartup(ctx, cfg.Summary())

	// Initialize today's stats from the live balance.
	if bal, err := s.exchange.GetAccountBalance(ctx, cfg.QuoteAsset); err == nil {
		if _, fresh := s.daily.GetOrCreate(ctx, bal.Free); fresh {
			s.notifier.NotifyNewDay(ctx, bal.Free)
		}
	} else {
		s.logger.Warn(ctx, "Could not initialize daily stats at startup", map[string]interface{}{"error": err.Error()})
	}

	sched := NewScheduler(s.logger)
	if err := sched.AddInterval("trading_cycle", cfg.RefreshInterval, s.runCycle); err != nil {
		s.state.Store(int32(StateStopped))
		return err
	}
	if err := sched.AddInterval("check_new_day", time.Hour, s.checkNewDay); err != nil {
		s.state.Store(int32(StateStopped))
		return err
	}
	if err := sched.AddDailyAt("daily_report", 23, 59, s.sendDailyReport); err != nil {
		s.state.Store(int32(StateStopped))
		return err
	}

	s.state.Store(int32(StateRunning))
	s.logger.Info(ctx, "Trading service running", map[string]interface{}{"cycleInterval": cfg.RefreshInterval.String()})

	sched.Run(ctx)

	return s.shutdown(context.Background())
}

// validateStartup checks credentials, connectivity, balance, and the
// emergency-stop flag. Any failure aborts startup.
func (s *TradingService) validateStartup(ctx context.Context, cfg *config.Config) error {
	if !cfg.HasCredentials() {
		return fmt.Errorf("missing API credentials: %w", ports.ErrInvalidAPIKeys)
	}
	if cfg.EmergencyStop {
		return fmt.Errorf("emergency stop flag is set: %w", ports.ErrConfigurationError)
	}
	if err := s.exchange.Ping(ctx); err != nil {
		return fmt.Errorf("exchange connectivity check failed: %w", err)
	}
	if serverTime, err := s.exchange.GetServerTime(ctx); err != nil {
		s.logger.Warn(ctx, "Could not fetch exchange server time", map[string]interface{}{"error": err.Error()})
	} else if drift := time.Since(serverTime); drift > maxClockDrift || drift < -maxClockDrift {
		s.logger.Warn(ctx, "Local clock drifts from exchange server time", map[string]interface{}{
			"drift":      drift.String(),
			"serverTime": serverTime.Format(time.RFC3339),
		})
	}
	bal, err := s.exchange.GetAccountBalance(ctx, cfg.QuoteAsset)
	if err != nil {
		return fmt.Errorf("balance check failed: %w", err)
	}
	if bal.Free < cfg.MinAvailableBalance {
		return fmt.Errorf("insufficient balance %.2f %s (minimum %.2f): %w",
			bal.Free, cfg.QuoteAsset, cfg.MinAvailableBalance, ports.ErrInsufficientFunds)
	}
	s.logger.Info(ctx, "Startup validation passed", map[string]interface{}{"freeBalance": bal.Free, "asset": cfg.QuoteAsset})
	return nil
}

// requestStop records the reason and stops scheduling further cycles.
func (s *TradingService) requestStop(reason string) {
	s.stopMu.Lock()
	defer s.stopMu.Unlock()
	if s.stopReason == "" {
		s.stopReason = reason
	}
	if s.cancel != nil {
		s.cancel()
	}
}

// shutdown force-closes any open position and finishes the lifecycle. The
// close is best-effort: no future cycle will run, so a failure is logged and
// left unresolved rather than retried.
func (s *TradingService) shutdown(ctx context.Context) error {
	s.state.Store(int32(StateStopping))
	s.stopMu.Lock()
	reason := s.stopReason
	s.stopMu.Unlock()
	if reason == "" {
		reason = "shutdown signal"
	}
	s.logger.Info(ctx, "Stopping trading service", map[string]interface{}{"reason": reason})

	cfg := s.cfg.Load()
	s.mu.Lock()
	open := s.position.IsOpen()
	s.mu.Unlock()
	if open {
		price, err := s.exchange.GetTickerPrice(ctx, cfg.Symbol)
		if err != nil {
			s.mu.Lock()
			price = s.position.CurrentPrice
			s.mu.Unlock()
			s.logger.Warn(ctx, "Using last known price for shutdown close", map[string]interface{}{"price": price})
		}
		if err := s.closePosition(ctx, cfg, price, domain.TradeReasonManualClose); err != nil {
			s.logger.Error(ctx, err, "Failed to close position during shutdown; exposure left unmanaged")
		}
	}

	s.notifier.NotifyShutdown(ctx, reason)
	s.state.Store(int32(StateStopped))
	s.logger.Info(ctx, "Trading service stopped")
	return nil
}

// runCycle executes one trading cycle. Any unexpected failure is contained
// here: it is logged, reported to the sink, and the cycle ends without
// terminating the worker.
func (s *TradingService) runCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic in trading cycle: %v", r)
			s.logger.Error(ctx, err, "Trading cycle aborted")
			s.notifier.NotifyError(ctx, "Trading Cycle Error", err.Error())
		}
	}()

	s.lastCycle.Store(time.Now().UTC().UnixNano())

	// Reload settings to pick up external changes, the emergency-stop flag
	// in particular. On reload failure the previous snapshot stays active.
	cfg, err := s.reload()
	if err != nil {
		s.logger.Warn(ctx, "Settings reload failed, keeping previous snapshot", map[string]interface{}{"error": err.Error()})
		cfg = s.cfg.Load()
	} else {
		s.cfg.Store(cfg)
	}

	if cfg.EmergencyStop {
		s.logger.Warn(ctx, "Emergency stop activated")
		s.notifier.NotifyEmergencyStop(ctx, "Emergency stop flag set")
		s.requestStop("emergency stop")
		return
	}

	if allowed, reason := s.daily.IsTradingAllowed(); !allowed {
		s.logger.Debug(ctx, "Trading not allowed", map[string]interface{}{"reason": reason})
		return
	}

	// Price and balance are fetched once and used consistently through the
	// rest of the cycle.
	price, err := s.exchange.GetTickerPrice(ctx, cfg.Symbol)
	if err != nil {
		s.logger.Warn(ctx, "Failed to get current price", map[string]interface{}{"error": err.Error()})
		return
	}
	balance, err := s.exchange.GetAccountBalance(ctx, cfg.QuoteAsset)
	if err != nil {
		s.logger.Warn(ctx, "Failed to get account balance", map[string]interface{}{"error": err.Error()})
		return
	}

	stats, fresh := s.daily.GetOrCreate(ctx, balance.Free)
	if fresh {
		s.notifier.NotifyNewDay(ctx, balance.Free)
	}

	s.mu.Lock()
	open := s.position.IsOpen()
	s.mu.Unlock()

	if open {
		s.managePosition(ctx, cfg, price, stats)
		return
	}
	s.seekEntry(ctx, cfg, price, balance, stats)
}

// managePosition refreshes the open position's P&L and closes it when the
// risk policy says so.
func (s *TradingService) managePosition(ctx context.Context, cfg *config.Config, price float64, stats *domain.DailyStats) {
	s.mu.Lock()
	pos := s.position
	if !pos.IsOpen() {
		s.mu.Unlock()
		return
	}
	pos.UpdatePnL(price)
	s.mu.Unlock()

	mgr, err := s.riskManager(cfg)
	if err != nil {
		s.logger.Error(ctx, err, "Risk policy construction failed")
		return
	}

	shouldClose, reason := mgr.CheckExit(pos, price, stats)
	if !shouldClose {
		s.logger.Debug(ctx, "Holding position", map[string]interface{}{
			"entryPrice":    pos.EntryPrice,
			"currentPrice":  price,
			"unrealizedPnl": pos.UnrealizedPnL,
		})
		return
	}

	s.logger.Info(ctx, "Exit condition met", map[string]interface{}{"reason": reason, "price": price})
	if err := s.closePosition(ctx, cfg, price, reason); err != nil {
		s.logger.Error(ctx, err, "Failed to close position; will retry next cycle")
	}
}

// seekEntry fetches history, scores it, risk-gates it, and executes an entry.
func (s *TradingService) seekEntry(ctx context.Context, cfg *config.Config, price float64, balance *domain.AccountBalance, stats *domain.DailyStats) {
	klines, err := s.exchange.GetKlines(ctx, cfg.Symbol, cfg.KlineInterval, cfg.KlineLimit)
	if err != nil || len(klines) == 0 {
		s.logger.Warn(ctx, "Failed to get historical data", map[string]interface{}{"count": len(klines)})
		return
	}

	signal := s.evaluator.Analyze(ctx, klines, price)
	if !signal.Valid {
		// Invalid signals are the default non-action path; stay quiet.
		return
	}
	s.logger.Info(ctx, "Valid signal detected", map[string]interface{}{
		"direction":  signal.Direction,
		"confluence": signal.Confluence,
		"price":      signal.Price,
		"rsi":        signal.RSI,
	})

	mgr, err := s.riskManager(cfg)
	if err != nil {
		s.logger.Error(ctx, err, "Risk policy construction failed")
		return
	}

	s.mu.Lock()
	current := s.position
	s.mu.Unlock()

	assessment := mgr.AssessEntry(signal, balance, stats, current)
	if !assessment.Allowed {
		// Rejection is a normal, frequent outcome, not an error.
		s.logger.Info(ctx, "Signal rejected by risk policy", map[string]interface{}{
			"reason":  assessment.Reason,
			"message": assessment.Message,
		})
		s.notifier.NotifySignalRejected(ctx, assessment.Reason, assessment.Message)
		return
	}

	s.executeEntry(ctx, cfg, signal, assessment)
}

// executeEntry places the market entry and constructs the Position from the
// actual fill, not the requested size.
func (s *TradingService) executeEntry(ctx context.Context, cfg *config.Config, signal *domain.Signal, assessment *risk.Assessment) {
	s.notifier.NotifySignal(ctx, signal)

	side := domain.Buy
	if signal.Direction == domain.DirectionShort {
		side = domain.Sell
	}

	order, err := s.exchange.PlaceMarketOrder(ctx, cfg.Symbol, side, formatQuantity(assessment.PositionSize))
	if err != nil {
		s.logger.Error(ctx, err, "Failed to place entry order")
		s.notifier.NotifyError(ctx, "Order Error", "Failed to place entry order")
		return
	}

	entryPrice := order.ExecutedPrice
	if entryPrice == 0 {
		s.logger.Warn(ctx, "Entry fill price missing, falling back to signal price", map[string]interface{}{"orderID": order.OrderID})
		entryPrice = signal.Price
	}
	quantity := order.ExecutedQty
	if quantity == 0 {
		quantity = assessment.PositionSize
	}

	pos := &domain.Position{
		Symbol:       cfg.Symbol,
		Status:       domain.StatusOpen,
		Side:         side,
		EntryPrice:   entryPrice,
		Quantity:     quantity,
		CurrentPrice: entryPrice,
		StopLoss:     assessment.StopLossPrice,
		TakeProfit:   assessment.TakeProfitPrice,
		EntryOrderID: order.OrderID,
		OpenedAt:     time.Now().UTC(),
	}

	s.mu.Lock()
	s.position = pos
	s.mu.Unlock()
	s.hasOpen.Store(true)

	s.logger.Info(ctx, "Position opened", map[string]interface{}{
		"side":       pos.Side,
		"entryPrice": pos.EntryPrice,
		"quantity":   pos.Quantity,
		"stopLoss":   pos.StopLoss,
		"takeProfit": pos.TakeProfit,
		"orderID":    pos.EntryOrderID,
	})
	s.notifier.NotifyTradeEntry(ctx, pos, signal)
}

// closePosition executes the exit, builds the Trade record, updates the daily
// aggregate, and releases the position slot. On execution failure the
// position is deliberately left OPEN so the next cycle retries the close.
func (s *TradingService) closePosition(ctx context.Context, cfg *config.Config, price float64, reason domain.TradeReason) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos := s.position
	if !pos.IsOpen() {
		return nil
	}

	order, err := s.exchange.PlaceMarketOrder(ctx, cfg.Symbol, pos.Side.Opposite(), formatQuantity(pos.Quantity))
	if err != nil {
		s.notifier.NotifyError(ctx, "Order Error", "Failed to place exit order")
		return fmt.Errorf("failed to place exit order: %w", err)
	}

	exitPrice := order.ExecutedPrice
	if exitPrice == 0 {
		s.logger.Warn(ctx, "Exit fill price missing, falling back to cycle price", map[string]interface{}{"orderID": order.OrderID, "fallbackPrice": price})
		exitPrice = price
	}

	coerced, known := domain.TradeReasonFromString(string(reason))
	if !known {
		s.logger.Warn(ctx, "Unrecognized exit reason, falling back to manual close", map[string]interface{}{"reason": string(reason)})
	}

	now := time.Now().UTC()
	trade := &domain.Trade{
		ID:         domain.NewTradeID(now),
		Symbol:     pos.Symbol,
		Side:       pos.Side,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  exitPrice,
		Quantity:   pos.Quantity,
		Commission: pos.EntryPrice*pos.Quantity*entryFeeRate + order.Commission,
		ExitReason: coerced,
		EntryTime:  pos.OpenedAt,
		ExitTime:   now,
	}
	trade.ComputePnL()

	if s.tradeRepo != nil {
		if err := s.tradeRepo.CreateTrade(ctx, trade); err != nil {
			s.logger.Warn(ctx, "Failed to persist trade record", map[string]interface{}{"tradeID": trade.ID, "error": err.Error()})
		}
	}

	s.logger.Info(ctx, "Position closed", map[string]interface{}{
		"exitPrice":  trade.ExitPrice,
		"netPnl":     trade.NetPnL,
		"pnlPercent": trade.PnLPercent,
		"reason":     trade.ExitReason,
	})
	s.notifier.NotifyTradeExit(ctx, trade)

	var free float64
	if bal, err := s.exchange.GetAccountBalance(ctx, cfg.QuoteAsset); err == nil {
		free = bal.Free
	} else {
		s.logger.Warn(ctx, "Failed to refresh balance after close", map[string]interface{}{"error": err.Error()})
	}

	var prevTarget, prevMaxLoss bool
	if prev := s.daily.Report(); prev != nil {
		prevTarget = prev.TargetReached
		prevMaxLoss = prev.MaxLossReached
	}
	stats := s.daily.UpdateAfterTrade(ctx, trade, free)
	if stats.TargetReached && !prevTarget {
		s.notifier.NotifyDailyTargetReached(ctx, stats)
	}
	if stats.MaxLossReached && !prevMaxLoss {
		s.notifier.NotifyMaxLossReached(ctx, stats)
	}

	pos.Status = domain.StatusClosed
	pos.ClosedAt = &now
	pos.CurrentPrice = exitPrice
	s.position = nil
	s.hasOpen.Store(false)
	return nil
}

// checkNewDay runs hourly and triggers the rollover notification when a new
// UTC day has begun.
func (s *TradingService) checkNewDay(ctx context.Context) {
	cfg := s.cfg.Load()
	bal, err := s.exchange.GetAccountBalance(ctx, cfg.QuoteAsset)
	if err != nil {
		s.logger.Warn(ctx, "Day check could not fetch balance", map[string]interface{}{"error": err.Error()})
		return
	}
	if _, fresh := s.daily.GetOrCreate(ctx, bal.Free); fresh {
		s.notifier.NotifyNewDay(ctx, bal.Free)
	}
}

// sendDailyReport emits the end-of-day summary. With the trade journal
// enabled, the aggregate is reconciled against the journaled trade count and
// the day's closed trades are logged.
func (s *TradingService) sendDailyReport(ctx context.Context) {
	stats := s.daily.Report()
	if stats == nil {
		return
	}
	cfg := s.cfg.Load()

	if s.tradeRepo != nil {
		if count, err := s.tradeRepo.CountByDay(ctx, cfg.Symbol, stats.Date); err != nil {
			s.logger.Warn(ctx, "Could not count journaled trades for report", map[string]interface{}{"error": err.Error()})
		} else if count != stats.TotalTrades {
			s.logger.Warn(ctx, "Trade journal disagrees with daily aggregate", map[string]interface{}{
				"journaled": count,
				"aggregate": stats.TotalTrades,
			})
		}
		if stats.TotalTrades > 0 {
			if trades, err := s.tradeRepo.FindBySymbol(ctx, cfg.Symbol, stats.TotalTrades); err == nil {
				for _, trade := range trades {
					s.logger.Info(ctx, "Closed trade", map[string]interface{}{
						"tradeID": trade.ID,
						"reason":  trade.ExitReason,
						"netPnl":  trade.NetPnL,
					})
				}
			} else {
				s.logger.Warn(ctx, "Could not fetch journaled trades for report", map[string]interface{}{"error": err.Error()})
			}
		}
	}

	s.logger.Info(ctx, "Daily report", map[string]interface{}{
		"date":        stats.Date,
		"dailyPnl":    stats.DailyPnL,
		"dailyPnlPct": stats.DailyPnLPercent,
		"trades":      stats.TotalTrades,
	})
	s.notifier.NotifyDailyReport(ctx, stats)
}

// riskManager builds the risk policy from the current settings snapshot so
// per-cycle reloads take effect immediately.
func (s *TradingService) riskManager(cfg *config.Config) (*risk.Manager, error) {
	return risk.New(risk.Config{
		MinNotional:     cfg.MinPositionSize,
		MaxNotional:     cfg.MaxPositionSize,
		MaxRiskPerTrade: cfg.MaxRiskPerTrade,
		StopLossPercent: cfg.StopLossPercent,
		RiskReward:      cfg.RiskReward,
		MaxDailyLoss:    cfg.MaxDailyLoss,
		MinConfluence:   cfg.MinConfluence,
		MaxHoldDuration: cfg.MaxHoldDuration,
	})
}

// --- Read-only status accessors (never block on cycle execution) ---

// State returns the current lifecycle state.
func (s *TradingService) State() State {
	return State(s.state.Load())
}

// IsRunning reports whether the worker is in the running state.
func (s *TradingService) IsRunning() bool {
	return s.State() == StateRunning
}

// HasPosition reports whether a position is currently open.
func (s *TradingService) HasPosition() bool {
	return s.hasOpen.Load()
}

// LastCheck returns the start time of the most recent cycle, or the zero time
// if no cycle has run yet.
func (s *TradingService) LastCheck() time.Time {
	ns := s.lastCycle.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}

// Uptime returns how long the service has been up since Start.
func (s *TradingService) Uptime() time.Duration {
	ns := s.startNano.Load()
	if ns == 0 {
		return 0
	}
	return time.Since(time.Unix(0, ns))
}

// formatQuantity formats a base-asset quantity for the exchange API.
func formatQuantity(quantity float64) string {
	return strconv.FormatFloat(quantity, 'f', 6, 64)
}
