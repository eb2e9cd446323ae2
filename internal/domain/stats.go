package domain

// DailyStats aggregates realized results for one UTC calendar day. Unrealized
// P&L of an open position never contributes to it.
type DailyStats struct {
	Date            string  // UTC day key, "2006-01-02"
	StartingBalance float64 // Free quote balance at first access of the day
	DailyPnL        float64 // Cumulative realized P&L for the day
	DailyPnLPercent float64 // DailyPnL relative to StartingBalance
	TotalTrades     int     // Number of completed trades for the day
	TargetReached   bool    // One-way flag, never resets within the same day
	MaxLossReached  bool    // One-way flag, set when the daily loss cap is breached
}

// Clone returns a copy of the stats so callers cannot mutate the aggregate.
func (d *DailyStats) Clone() *DailyStats {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}
