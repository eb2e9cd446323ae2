package strategy

import (
	"context"
	"fmt"
	"time"

	"spotCycleBot/internal/domain"
	"spotCycleBot/internal/ports"
	"spotCycleBot/internal/strategy/indicators"
)

// Confluence weights. They sum to 100 so the score reads as a percentage.
const (
	weightTrend    = 30.0 // short SMA above long SMA
	weightEMA      = 20.0 // price above EMA
	weightRSI      = 25.0 // RSI in the buy zone (above oversold, below midline stretch)
	weightMomentum = 10.0 // last close above previous close
	weightVolume   = 15.0 // last volume above the window average
)

// Config holds the parameters for the confluence evaluator.
type Config struct {
	RSIPeriod     int
	ShortMAPeriod int
	LongMAPeriod  int
	EMAPeriod     int
	RSIOverbought float64
	RSIOversold   float64
	MinConfluence float64 // Score threshold in percent for a valid signal
}

// Evaluator scores market conditions into a domain.Signal. Spot trading is
// long-only, so it never emits a short signal.
type Evaluator struct {
	cfg     Config
	logger  ports.Logger
	rsi     *indicators.RSI
	shortMA *indicators.MovingAverage
	longMA  *indicators.MovingAverage
	ema     *indicators.MovingAverage
}

// New creates a new confluence evaluator.
func New(cfg Config, logger ports.Logger) (*Evaluator, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for evaluator")
	}
	if cfg.RSIPeriod <= 0 || cfg.ShortMAPeriod <= 0 || cfg.LongMAPeriod <= 0 || cfg.EMAPeriod <= 0 {
		return nil, fmt.Errorf("evaluator periods must be positive")
	}
	if cfg.ShortMAPeriod >= cfg.LongMAPeriod {
		return nil, fmt.Errorf("short MA period (%d) must be less than long MA period (%d)", cfg.ShortMAPeriod, cfg.LongMAPeriod)
	}
	if cfg.MinConfluence < 0 || cfg.MinConfluence > 100 {
		return nil, fmt.Errorf("MinConfluence must be between 0 and 100")
	}

	return &Evaluator{
		cfg:    cfg,
		logger: logger,
		rsi: indicators.NewRSI(indicators.RSIConfig{
			IndicatorConfig: indicators.IndicatorConfig{Period: cfg.RSIPeriod},
			Overbought:      cfg.RSIOverbought,
			Oversold:        cfg.RSIOversold,
		}),
		shortMA: indicators.NewMovingAverage(indicators.MovingAverageConfig{
			IndicatorConfig: indicators.IndicatorConfig{Period: cfg.ShortMAPeriod},
			Type:            indicators.SimpleMovingAverage,
		}),
		longMA: indicators.NewMovingAverage(indicators.MovingAverageConfig{
			IndicatorConfig: indicators.IndicatorConfig{Period: cfg.LongMAPeriod},
			Type:            indicators.SimpleMovingAverage,
		}),
		ema: indicators.NewMovingAverage(indicators.MovingAverageConfig{
			IndicatorConfig: indicators.IndicatorConfig{Period: cfg.EMAPeriod},
			Type:            indicators.ExponentialMovingAverage,
		}),
	}, nil
}

// RequiredDataPoints returns the minimum number of klines needed for the evaluation.
func (e *Evaluator) RequiredDataPoints() int {
	// RSI needs one extra point for the first price change.
	required := e.cfg.RSIPeriod + 1
	if e.cfg.LongMAPeriod > required {
		required = e.cfg.LongMAPeriod
	}
	return required
}

// Analyze scores the kline window against the current price. It always
// returns a signal; unfavorable or insufficient data yields an invalid one.
func (e *Evaluator) Analyze(ctx context.Context, klines []*domain.Kline, currentPrice float64) *domain.Signal {
	signal := &domain.Signal{
		Direction: domain.DirectionNone,
		Price:     currentPrice,
		Time:      time.Now().UTC(),
	}

	if len(klines) < e.RequiredDataPoints() {
		e.logger.Debug(ctx, "Not enough klines for signal evaluation", map[string]interface{}{
			"have": len(klines), "need": e.RequiredDataPoints(),
		})
		return signal
	}

	rsiVal, err := e.rsi.Calculate(ctx, klines)
	if err != nil {
		e.logger.Debug(ctx, "RSI calculation failed", map[string]interface{}{"error": err.Error()})
		return signal
	}
	shortMA, err := e.shortMA.Calculate(ctx, klines)
	if err != nil {
		e.logger.Debug(ctx, "Short MA calculation failed", map[string]interface{}{"error": err.Error()})
		return signal
	}
	longMA, err := e.longMA.Calculate(ctx, klines)
	if err != nil {
		e.logger.Debug(ctx, "Long MA calculation failed", map[string]interface{}{"error": err.Error()})
		return signal
	}
	emaVal, err := e.ema.Calculate(ctx, klines)
	if err != nil {
		e.logger.Debug(ctx, "EMA calculation failed", map[string]interface{}{"error": err.Error()})
		return signal
	}

	avgVolume := averageVolume(klines)

	signal.RSI = rsiVal
	signal.ShortMA = shortMA
	signal.LongMA = longMA
	signal.EMA = emaVal
	signal.AvgVolume = avgVolume

	// Overbought markets are never entered, whatever the other features say.
	if e.rsi.IsOverbought(rsiVal) {
		return signal
	}

	var score float64
	if shortMA > longMA {
		score += weightTrend
	}
	if currentPrice > emaVal {
		score += weightEMA
	}
	// Buy zone: recovered from oversold but not yet stretched.
	if rsiVal > e.cfg.RSIOversold && rsiVal <= 55 {
		score += weightRSI
	}
	last := klines[len(klines)-1]
	prev := klines[len(klines)-2]
	if last.Close > prev.Close {
		score += weightMomentum
	}
	if avgVolume > 0 && last.Volume > avgVolume {
		score += weightVolume
	}

	signal.Confluence = score
	if score >= e.cfg.MinConfluence {
		signal.Valid = true
		signal.Direction = domain.DirectionLong
	}
	return signal
}

func averageVolume(klines []*domain.Kline) float64 {
	if len(klines) == 0 {
		return 0
	}
	var total float64
	for _, k := range klines {
		total += k.Volume
	}
	return total / float64(len(klines))
}
