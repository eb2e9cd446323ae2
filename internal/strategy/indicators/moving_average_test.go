package indicators

import (
	"context"
	"math"
	"testing"

	"spotCycleBot/internal/domain"
)

func klinesFromCloses(closes []float64) []*domain.Kline {
	klines := make([]*domain.Kline, len(closes))
	for i, c := range closes {
		klines[i] = &domain.Kline{Close: c}
	}
	return klines
}

func TestSMACalculate(t *testing.T) {
	sma := NewMovingAverage(MovingAverageConfig{
		IndicatorConfig: IndicatorConfig{Period: 3},
		Type:            SimpleMovingAverage,
	})

	// Only the last 'period' closes count
	value, err := sma.Calculate(context.Background(), klinesFromCloses([]float64{1, 2, 3, 4, 5}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := (3.0 + 4.0 + 5.0) / 3.0
	if math.Abs(value-expected) > 1e-9 {
		t.Errorf("SMA = %f, want %f", value, expected)
	}

	// Not enough data
	_, err = sma.Calculate(context.Background(), klinesFromCloses([]float64{1, 2}))
	if err == nil {
		t.Error("expected error for insufficient data")
	}
}

func TestEMACalculate(t *testing.T) {
	ema := NewMovingAverage(MovingAverageConfig{
		IndicatorConfig: IndicatorConfig{Period: 3},
		Type:            ExponentialMovingAverage,
	})

	value, err := ema.Calculate(context.Background(), klinesFromCloses([]float64{1, 2, 3, 4, 5}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Seed SMA(1,2,3) = 2; multiplier = 0.5; then (4-2)*0.5+2 = 3, (5-3)*0.5+3 = 4
	if math.Abs(value-4.0) > 1e-9 {
		t.Errorf("EMA = %f, want 4", value)
	}

	_, err = ema.Calculate(context.Background(), klinesFromCloses([]float64{1, 2}))
	if err == nil {
		t.Error("expected error for insufficient data")
	}
}

func TestMovingAverageName(t *testing.T) {
	sma := NewMovingAverage(MovingAverageConfig{IndicatorConfig: IndicatorConfig{Period: 3}, Type: SimpleMovingAverage})
	if sma.Name() != "SMA" {
		t.Errorf("Name = %q, want SMA", sma.Name())
	}
	ema := NewMovingAverage(MovingAverageConfig{IndicatorConfig: IndicatorConfig{Period: 3}, Type: ExponentialMovingAverage})
	if ema.Name() != "EMA" {
		t.Errorf("Name = %q, want EMA", ema.Name())
	}
}

func TestMovingAverageUnsupportedType(t *testing.T) {
	ma := NewMovingAverage(MovingAverageConfig{IndicatorConfig: IndicatorConfig{Period: 3}, Type: "WMA"})
	_, err := ma.Calculate(context.Background(), klinesFromCloses([]float64{1, 2, 3}))
	if err == nil {
		t.Error("expected error for unsupported moving average type")
	}
}
