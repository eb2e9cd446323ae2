package domain

import (
	"fmt"
	"time"
)

// Trade represents a completed entry+exit round trip. It is written once at
// close time and never recomputed afterwards.
type Trade struct {
	ID         string      // Derived from the close timestamp
	Symbol     string      // Trading symbol
	Side       OrderSide   // Entry side of the round trip
	EntryPrice float64     // Executed entry price
	ExitPrice  float64     // Executed exit price
	Quantity   float64     // Executed quantity
	Commission float64     // Entry + exit fees in quote currency
	ExitReason TradeReason // Why the position was closed
	EntryTime  time.Time   // Timestamp of the entry fill
	ExitTime   time.Time   // Timestamp of the exit fill
	NetPnL     float64     // (exit - entry) * qty - commission, sign-adjusted by side
	PnLPercent float64     // NetPnL relative to entry notional
}

// NewTradeID derives a trade identifier from the close timestamp.
func NewTradeID(closedAt time.Time) string {
	return fmt.Sprintf("TRADE_%d", closedAt.Unix())
}

// ComputePnL calculates the net P&L and P&L percent for the trade. Called
// exactly once, when the trade record is built.
func (t *Trade) ComputePnL() {
	diff := t.ExitPrice - t.EntryPrice
	if t.Side == Sell {
		diff = -diff
	}
	t.NetPnL = diff*t.Quantity - t.Commission
	notional := t.EntryPrice * t.Quantity
	if notional > 0 {
		t.PnLPercent = t.NetPnL / notional * 100
	}
}
