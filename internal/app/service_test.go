package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spotCycleBot/config"
	"spotCycleBot/internal/daily"
	"spotCycleBot/internal/domain"
	"spotCycleBot/internal/ports"
)

// --- Mocks ---

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

type mockExchange struct {
	mu sync.Mutex

	price      float64
	priceErr   error
	balance    *domain.AccountBalance
	balanceErr error
	klines     []*domain.Kline
	klinesErr  error
	orderResp  *ports.OrderResponse
	orderErr   error
	serverTime time.Time

	tickerCalls     int
	klineCalls      int
	orderCalls      int
	serverTimeCalls int

	lastOrderSide domain.OrderSide
	lastOrderQty  string
}

func (m *mockExchange) Ping(ctx context.Context) error { return nil }

func (m *mockExchange) GetServerTime(ctx context.Context) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.serverTimeCalls++
	if m.serverTime.IsZero() {
		return time.Now().UTC(), nil
	}
	return m.serverTime, nil
}

func (m *mockExchange) GetTickerPrice(ctx context.Context, symbol string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickerCalls++
	return m.price, m.priceErr
}

func (m *mockExchange) GetAccountBalance(ctx context.Context, asset string) (*domain.AccountBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balanceErr != nil {
		return nil, m.balanceErr
	}
	b := *m.balance
	return &b, nil
}

func (m *mockExchange) GetKlines(ctx context.Context, symbol string, interval string, limit int) ([]*domain.Kline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.klineCalls++
	return m.klines, m.klinesErr
}

func (m *mockExchange) PlaceMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity string) (*ports.OrderResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orderCalls++
	m.lastOrderSide = side
	m.lastOrderQty = quantity
	if m.orderErr != nil {
		return nil, m.orderErr
	}
	return m.orderResp, nil
}

type mockEvaluator struct {
	signal    *domain.Signal
	analyzeFn func(ctx context.Context, klines []*domain.Kline, currentPrice float64) *domain.Signal
}

func (m *mockEvaluator) RequiredDataPoints() int { return 1 }

func (m *mockEvaluator) Analyze(ctx context.Context, klines []*domain.Kline, currentPrice float64) *domain.Signal {
	if m.analyzeFn != nil {
		return m.analyzeFn(ctx, klines, currentPrice)
	}
	return m.signal
}

type mockNotifier struct {
	mu sync.Mutex

	entries        []*domain.Position
	exits          []*domain.Trade
	rejections     []domain.RejectReason
	errors         []string
	emergencyStops int
	newDays        int
}

func (m *mockNotifier) NotifyStartup(ctx context.Context, summary map[string]string) {}
func (m *mockNotifier) NotifyShutdown(ctx context.Context, reason string)            {}

func (m *mockNotifier) NotifyEmergencyStop(ctx context.Context, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emergencyStops++
}

func (m *mockNotifier) NotifyNewDay(ctx context.Context, startingBalance float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.newDays++
}

func (m *mockNotifier) NotifySignal(ctx context.Context, signal *domain.Signal) {}

func (m *mockNotifier) NotifySignalRejected(ctx context.Context, reason domain.RejectReason, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejections = append(m.rejections, reason)
}

func (m *mockNotifier) NotifyTradeEntry(ctx context.Context, position *domain.Position, signal *domain.Signal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, position)
}

func (m *mockNotifier) NotifyTradeExit(ctx context.Context, trade *domain.Trade) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exits = append(m.exits, trade)
}

func (m *mockNotifier) NotifyDailyTargetReached(ctx context.Context, stats *domain.DailyStats) {}
func (m *mockNotifier) NotifyMaxLossReached(ctx context.Context, stats *domain.DailyStats)     {}
func (m *mockNotifier) NotifyDailyReport(ctx context.Context, stats *domain.DailyStats)        {}

func (m *mockNotifier) NotifyError(ctx context.Context, title, detail string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, title)
}

type mockTradeRepo struct {
	mu         sync.Mutex
	trades     []*domain.Trade
	findCalls  int
	countCalls int
}

func (m *mockTradeRepo) CreateTrade(ctx context.Context, trade *domain.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = append(m.trades, trade)
	return nil
}

func (m *mockTradeRepo) FindBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findCalls++
	if limit > len(m.trades) {
		limit = len(m.trades)
	}
	return m.trades[:limit], nil
}

func (m *mockTradeRepo) CountByDay(ctx context.Context, symbol string, day string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.countCalls++
	return len(m.trades), nil
}

// --- Helpers ---

func testCfg() *config.Config {
	return &config.Config{
		APIKey:              "key",
		SecretKey:           "secret",
		Symbol:              "BTCUSDT",
		QuoteAsset:          "USDT",
		RefreshInterval:     time.Minute,
		KlineInterval:       "1m",
		KlineLimit:          100,
		MinPositionSize:     10,
		MaxPositionSize:     1000,
		MaxRiskPerTrade:     0.1,
		StopLossPercent:     0.01,
		RiskReward:          2.0,
		MaxHoldDuration:     24 * time.Hour,
		MinConfluence:       70,
		MaxDailyLoss:        3.0,
		DailyProfitTarget:   2.0,
		MinAvailableBalance: 100,
	}
}

func testDailyController(t *testing.T) *daily.Controller {
	t.Helper()
	ctrl, err := daily.New(daily.Config{ProfitTarget: 2.0, MaxLoss: 3.0}, &mockLogger{})
	require.NoError(t, err)
	return ctrl
}

func newTestService(t *testing.T, cfg *config.Config, ex *mockExchange, ev *mockEvaluator, n *mockNotifier, dc *daily.Controller, repo ports.TradeRepository) *TradingService {
	t.Helper()
	s, err := NewTradingService(cfg, &mockLogger{}, ex, ev, n, dc, repo,
		func() (*config.Config, error) { return cfg, nil })
	require.NoError(t, err)
	return s
}

func openTestPosition() *domain.Position {
	return &domain.Position{
		Symbol:     "BTCUSDT",
		Status:     domain.StatusOpen,
		Side:       domain.Buy,
		EntryPrice: 50000,
		Quantity:   0.02,
		StopLoss:   49500,
		TakeProfit: 51000,
		OpenedAt:   time.Now().UTC(),
	}
}

// --- Tests ---

func TestCycleOpensPositionFromExecutedFill(t *testing.T) {
	cfg := testCfg()
	ex := &mockExchange{
		price:   50000,
		balance: &domain.AccountBalance{Asset: "USDT", Free: 10000},
		klines:  []*domain.Kline{{Close: 50000, Volume: 1}},
		orderResp: &ports.OrderResponse{
			OrderID:       42,
			ExecutedPrice: 50010, // Slippage: differs from the signal price
			ExecutedQty:   0.0199,
			Status:        "FILLED",
		},
	}
	ev := &mockEvaluator{signal: &domain.Signal{
		Valid:      true,
		Direction:  domain.DirectionLong,
		Confluence: 80,
		Price:      50000,
	}}
	n := &mockNotifier{}
	s := newTestService(t, cfg, ex, ev, n, testDailyController(t), nil)

	s.runCycle(context.Background())

	require.True(t, s.HasPosition())
	s.mu.Lock()
	pos := s.position
	s.mu.Unlock()
	require.NotNil(t, pos)
	assert.Equal(t, 50010.0, pos.EntryPrice, "position must be built from the executed fill")
	assert.Equal(t, 0.0199, pos.Quantity)
	assert.Equal(t, int64(42), pos.EntryOrderID)
	assert.Equal(t, domain.Buy, ex.lastOrderSide)
	require.Len(t, n.entries, 1)
}

func TestCycleRejectedSignalPlacesNoOrder(t *testing.T) {
	cfg := testCfg()
	ex := &mockExchange{
		price:   50000,
		balance: &domain.AccountBalance{Asset: "USDT", Free: 10000},
		klines:  []*domain.Kline{{Close: 50000, Volume: 1}},
	}
	ev := &mockEvaluator{signal: &domain.Signal{
		Valid:      true,
		Direction:  domain.DirectionLong,
		Confluence: 50, // Below the 70 threshold
		Price:      50000,
	}}
	n := &mockNotifier{}
	s := newTestService(t, cfg, ex, ev, n, testDailyController(t), nil)

	s.runCycle(context.Background())

	assert.False(t, s.HasPosition())
	assert.Zero(t, ex.orderCalls)
	require.Len(t, n.rejections, 1)
	assert.Equal(t, domain.RejectLowConfluence, n.rejections[0])
}

func TestCycleExitFailureKeepsPositionOpen(t *testing.T) {
	cfg := testCfg()
	ex := &mockExchange{
		price:    49000, // Below the stop loss
		balance:  &domain.AccountBalance{Asset: "USDT", Free: 10000},
		orderErr: errors.New("exchange rejected order"),
	}
	n := &mockNotifier{}
	s := newTestService(t, cfg, ex, &mockEvaluator{}, n, testDailyController(t), nil)
	s.position = openTestPosition()
	s.hasOpen.Store(true)

	s.runCycle(context.Background())

	s.mu.Lock()
	pos := s.position
	s.mu.Unlock()
	require.NotNil(t, pos, "failed close must leave the position for the next cycle")
	assert.True(t, pos.IsOpen())
	assert.True(t, s.HasPosition())
	assert.Contains(t, n.errors, "Order Error")
	assert.Empty(t, n.exits)
}

func TestCycleStopLossCloseReleasesSlot(t *testing.T) {
	cfg := testCfg()
	ex := &mockExchange{
		price:   49000, // Below the stop loss
		balance: &domain.AccountBalance{Asset: "USDT", Free: 9979},
		orderResp: &ports.OrderResponse{
			OrderID:       43,
			ExecutedPrice: 48990, // Fill differs from the cycle price
			ExecutedQty:   0.02,
			Commission:    0.98,
			Status:        "FILLED",
		},
	}
	n := &mockNotifier{}
	repo := &mockTradeRepo{}
	s := newTestService(t, cfg, ex, &mockEvaluator{}, n, testDailyController(t), repo)
	s.position = openTestPosition()
	s.hasOpen.Store(true)

	s.runCycle(context.Background())

	s.mu.Lock()
	pos := s.position
	s.mu.Unlock()
	assert.Nil(t, pos, "closed position must release the slot")
	assert.False(t, s.HasPosition())
	assert.Equal(t, domain.Sell, ex.lastOrderSide, "a long exit flattens with a SELL")

	require.Len(t, n.exits, 1)
	trade := n.exits[0]
	assert.Equal(t, domain.TradeReasonStopLoss, trade.ExitReason)
	assert.Equal(t, 48990.0, trade.ExitPrice, "trade record must use the executed exit fill")
	assert.Negative(t, trade.NetPnL)

	require.Len(t, repo.trades, 1)
	assert.Equal(t, trade.ID, repo.trades[0].ID)
}

func TestCycleDailyLossLimitSkipsMarketCalls(t *testing.T) {
	cfg := testCfg()
	ex := &mockExchange{
		price:   50000,
		balance: &domain.AccountBalance{Asset: "USDT", Free: 960},
	}
	dc := testDailyController(t)
	dc.GetOrCreate(context.Background(), 1000)
	dc.UpdateAfterTrade(context.Background(), &domain.Trade{NetPnL: -40}, 960) // -4% breaches the 3% cap

	n := &mockNotifier{}
	s := newTestService(t, cfg, ex, &mockEvaluator{}, n, dc, nil)

	s.runCycle(context.Background())

	assert.Zero(t, ex.tickerCalls, "limited day must not touch the market")
	assert.Zero(t, ex.klineCalls)
	assert.Zero(t, ex.orderCalls)
}

func TestCycleEmergencyStop(t *testing.T) {
	cfg := testCfg()
	cfg.EmergencyStop = true
	ex := &mockExchange{
		price:   50000,
		balance: &domain.AccountBalance{Asset: "USDT", Free: 10000},
	}
	n := &mockNotifier{}
	s := newTestService(t, cfg, ex, &mockEvaluator{}, n, testDailyController(t), nil)

	s.runCycle(context.Background())

	assert.Equal(t, 1, n.emergencyStops)
	assert.Zero(t, ex.tickerCalls, "emergency stop must halt before any market call")
}

func TestCyclePanicIsContained(t *testing.T) {
	cfg := testCfg()
	ex := &mockExchange{
		price:   50000,
		balance: &domain.AccountBalance{Asset: "USDT", Free: 10000},
		klines:  []*domain.Kline{{Close: 50000, Volume: 1}},
	}
	ev := &mockEvaluator{analyzeFn: func(ctx context.Context, klines []*domain.Kline, currentPrice float64) *domain.Signal {
		panic("evaluator blew up")
	}}
	n := &mockNotifier{}
	s := newTestService(t, cfg, ex, ev, n, testDailyController(t), nil)

	assert.NotPanics(t, func() { s.runCycle(context.Background()) })
	assert.Contains(t, n.errors, "Trading Cycle Error")
}

func TestCyclePriceFetchFailureSkips(t *testing.T) {
	cfg := testCfg()
	ex := &mockExchange{
		priceErr: errors.New("network down"),
		balance:  &domain.AccountBalance{Asset: "USDT", Free: 10000},
	}
	n := &mockNotifier{}
	s := newTestService(t, cfg, ex, &mockEvaluator{}, n, testDailyController(t), nil)

	s.runCycle(context.Background())

	assert.Zero(t, ex.klineCalls, "failed price fetch must end the cycle")
	assert.Zero(t, ex.orderCalls)
	assert.False(t, s.HasPosition())
}

func TestStatusAccessors(t *testing.T) {
	cfg := testCfg()
	ex := &mockExchange{price: 50000, balance: &domain.AccountBalance{Asset: "USDT", Free: 10000}}
	s := newTestService(t, cfg, ex, &mockEvaluator{}, &mockNotifier{}, testDailyController(t), nil)

	assert.Equal(t, StateStopped, s.State())
	assert.False(t, s.IsRunning())
	assert.True(t, s.LastCheck().IsZero())
	assert.Zero(t, s.Uptime())

	s.runCycle(context.Background())
	assert.False(t, s.LastCheck().IsZero())
}

func TestStatusReadsDuringStart(t *testing.T) {
	cfg := testCfg()
	ex := &mockExchange{price: 50000, balance: &domain.AccountBalance{Asset: "USDT", Free: 10000}}
	s := newTestService(t, cfg, ex, &mockEvaluator{}, &mockNotifier{}, testDailyController(t), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	// Hammer the read-only accessors while Start runs on its own goroutine.
	deadline := time.After(100 * time.Millisecond)
poll:
	for {
		select {
		case <-deadline:
			break poll
		default:
			_ = s.Uptime()
			_ = s.IsRunning()
			_ = s.HasPosition()
			_ = s.LastCheck()
			_ = s.State()
		}
	}
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("service did not stop after cancellation")
	}
	assert.Equal(t, StateStopped, s.State())
	assert.Positive(t, s.Uptime())
}

func TestStartupValidationChecksServerClock(t *testing.T) {
	cfg := testCfg()
	ex := &mockExchange{
		price:      50000,
		balance:    &domain.AccountBalance{Asset: "USDT", Free: 10000},
		serverTime: time.Now().UTC().Add(-time.Minute), // Drifted clock must not abort startup
	}
	s := newTestService(t, cfg, ex, &mockEvaluator{}, &mockNotifier{}, testDailyController(t), nil)

	err := s.validateStartup(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, ex.serverTimeCalls)
}

func TestDailyReportReconcilesJournal(t *testing.T) {
	cfg := testCfg()
	ex := &mockExchange{price: 50000, balance: &domain.AccountBalance{Asset: "USDT", Free: 10000}}
	dc := testDailyController(t)
	dc.GetOrCreate(context.Background(), 1000)
	dc.UpdateAfterTrade(context.Background(), &domain.Trade{ID: "TRADE_1", NetPnL: 5}, 1005)

	repo := &mockTradeRepo{trades: []*domain.Trade{{ID: "TRADE_1", NetPnL: 5}}}
	s := newTestService(t, cfg, ex, &mockEvaluator{}, &mockNotifier{}, dc, repo)

	s.sendDailyReport(context.Background())

	assert.Equal(t, 1, repo.countCalls, "report must reconcile against the journal")
	assert.Equal(t, 1, repo.findCalls, "report must fetch the day's closed trades")
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "STOPPED", StateStopped.String())
	assert.Equal(t, "STARTING", StateStarting.String())
	assert.Equal(t, "RUNNING", StateRunning.String())
	assert.Equal(t, "STOPPING", StateStopping.String())
}
