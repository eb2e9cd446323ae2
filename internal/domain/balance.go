package domain

// AccountBalance is a read-only snapshot of the quote-currency balance,
// fetched fresh each cycle from the execution gateway.
type AccountBalance struct {
	Asset  string  // Quote asset (e.g., "USDT")
	Free   float64 // Balance available for trading
	Locked float64 // Balance locked in open orders
}

// Total returns the combined free and locked balance.
func (b *AccountBalance) Total() float64 {
	return b.Free + b.Locked
}
