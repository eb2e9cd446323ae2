package domain

import "time"

// SignalDirection is the trade direction suggested by the evaluator.
type SignalDirection string

const (
	DirectionNone  SignalDirection = "NONE"
	DirectionLong  SignalDirection = "LONG"
	DirectionShort SignalDirection = "SHORT"
)

// Signal is the evaluator's verdict on current market conditions. It is
// immutable and scoped to the cycle that produced it.
type Signal struct {
	Valid      bool            // Whether the signal clears the confluence threshold
	Direction  SignalDirection // Suggested direction
	Confluence float64         // Score in percent, 0..100
	Price      float64         // Price the signal was evaluated at

	// Supporting feature snapshot.
	RSI       float64
	ShortMA   float64
	LongMA    float64
	EMA       float64
	AvgVolume float64

	Time time.Time // When the signal was produced
}
