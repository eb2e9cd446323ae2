package domain

import "time"

// Position represents the single open-or-closed market exposure of the bot.
// At most one position with StatusOpen exists at any time; the orchestrator
// owns it exclusively and dereferences it once its Trade record is produced.
type Position struct {
	Symbol        string         // Trading symbol (e.g., "BTCUSDT")
	Status        PositionStatus // Current status (OPEN, CLOSED)
	Side          OrderSide      // Entry side
	EntryPrice    float64        // Executed entry price reported by the gateway
	Quantity      float64        // Executed quantity reported by the gateway
	CurrentPrice  float64        // Last observed price, refreshed each cycle
	StopLoss      float64        // Price level that triggers a protective exit
	TakeProfit    float64        // Price level that triggers a profit-taking exit
	EntryOrderID  int64          // Exchange order id of the entry fill
	OpenedAt      time.Time      // Timestamp when the position was entered
	ClosedAt      *time.Time     // Timestamp when the position was closed (nil while open)
	UnrealizedPnL float64        // Running unrealized P&L, refreshed each cycle
}

// IsOpen checks if the position status is open.
func (p *Position) IsOpen() bool {
	return p != nil && p.Status == StatusOpen
}

// UpdatePnL refreshes the current price and the running unrealized P&L.
func (p *Position) UpdatePnL(currentPrice float64) {
	p.CurrentPrice = currentPrice
	diff := currentPrice - p.EntryPrice
	if p.Side == Sell {
		diff = -diff
	}
	p.UnrealizedPnL = diff * p.Quantity
}
