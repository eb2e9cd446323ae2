package strategy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spotCycleBot/internal/domain"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func testEvaluatorConfig() Config {
	return Config{
		RSIPeriod:     3,
		ShortMAPeriod: 2,
		LongMAPeriod:  4,
		EMAPeriod:     2,
		RSIOverbought: 90,
		RSIOversold:   30,
		MinConfluence: 70,
	}
}

// klinesFromCloses builds a kline series with unit volume except for the last
// candle, which gets the given volume.
func klinesFromCloses(closes []float64, lastVolume float64) []*domain.Kline {
	klines := make([]*domain.Kline, len(closes))
	for i, c := range closes {
		klines[i] = &domain.Kline{Close: c, Volume: 1}
	}
	klines[len(klines)-1].Volume = lastVolume
	return klines
}

func TestNewValidation(t *testing.T) {
	_, err := New(testEvaluatorConfig(), nil)
	assert.Error(t, err, "nil logger must be rejected")

	cfg := testEvaluatorConfig()
	cfg.RSIPeriod = 0
	_, err = New(cfg, &mockLogger{})
	assert.Error(t, err)

	cfg = testEvaluatorConfig()
	cfg.ShortMAPeriod = 10
	cfg.LongMAPeriod = 5
	_, err = New(cfg, &mockLogger{})
	assert.Error(t, err, "short MA period must be below long MA period")

	cfg = testEvaluatorConfig()
	cfg.MinConfluence = 150
	_, err = New(cfg, &mockLogger{})
	assert.Error(t, err)
}

func TestRequiredDataPoints(t *testing.T) {
	e, err := New(testEvaluatorConfig(), &mockLogger{})
	require.NoError(t, err)
	// RSI period 3 needs 4 points, long MA needs 4: both bind at 4
	assert.Equal(t, 4, e.RequiredDataPoints())

	cfg := testEvaluatorConfig()
	cfg.LongMAPeriod = 10
	e, err = New(cfg, &mockLogger{})
	require.NoError(t, err)
	assert.Equal(t, 10, e.RequiredDataPoints())
}

func TestAnalyzeInsufficientData(t *testing.T) {
	e, err := New(testEvaluatorConfig(), &mockLogger{})
	require.NoError(t, err)

	signal := e.Analyze(context.Background(), klinesFromCloses([]float64{10, 11}, 1), 11)
	require.NotNil(t, signal)
	assert.False(t, signal.Valid)
	assert.Equal(t, domain.DirectionNone, signal.Direction)
	assert.Zero(t, signal.Confluence)
}

func TestAnalyzeConfluence(t *testing.T) {
	e, err := New(testEvaluatorConfig(), &mockLogger{})
	require.NoError(t, err)

	// Uptrend with one pullback: short MA above long MA, rising close, and a
	// volume spike on the last candle. RSI lands between 55 and overbought, so
	// the RSI weight is not scored: 30 + 20 + 10 + 15 = 75.
	klines := klinesFromCloses([]float64{10, 11, 10, 11, 12, 13}, 10)
	signal := e.Analyze(context.Background(), klines, 13.2)

	require.NotNil(t, signal)
	assert.True(t, signal.Valid)
	assert.Equal(t, domain.DirectionLong, signal.Direction)
	assert.InDelta(t, 75, signal.Confluence, 0.001)
	assert.Greater(t, signal.RSI, 55.0)
	assert.Greater(t, signal.ShortMA, signal.LongMA)
}

func TestAnalyzeBelowThresholdIsInvalid(t *testing.T) {
	cfg := testEvaluatorConfig()
	cfg.MinConfluence = 80
	e, err := New(cfg, &mockLogger{})
	require.NoError(t, err)

	klines := klinesFromCloses([]float64{10, 11, 10, 11, 12, 13}, 10)
	signal := e.Analyze(context.Background(), klines, 13.2)

	require.NotNil(t, signal)
	assert.False(t, signal.Valid, "a scored but sub-threshold signal must stay invalid")
	assert.Equal(t, domain.DirectionNone, signal.Direction)
	assert.InDelta(t, 75, signal.Confluence, 0.001)
}

func TestAnalyzeOverboughtBlocksEntry(t *testing.T) {
	cfg := testEvaluatorConfig()
	cfg.RSIOverbought = 80 // The uptrend RSI exceeds this
	e, err := New(cfg, &mockLogger{})
	require.NoError(t, err)

	klines := klinesFromCloses([]float64{10, 11, 10, 11, 12, 13}, 10)
	signal := e.Analyze(context.Background(), klines, 13.2)

	require.NotNil(t, signal)
	assert.False(t, signal.Valid)
	assert.Zero(t, signal.Confluence, "overbought markets are never scored")
	assert.GreaterOrEqual(t, signal.RSI, 80.0)
}

func TestAnalyzeDowntrendScoresLow(t *testing.T) {
	e, err := New(testEvaluatorConfig(), &mockLogger{})
	require.NoError(t, err)

	klines := klinesFromCloses([]float64{13, 12, 11, 10, 9, 8}, 1)
	signal := e.Analyze(context.Background(), klines, 7.9)

	require.NotNil(t, signal)
	assert.False(t, signal.Valid)
	assert.Less(t, signal.Confluence, 70.0)
}
