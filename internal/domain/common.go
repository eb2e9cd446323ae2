package domain

// OrderSide represents the side of an order (BUY or SELL).
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// Opposite returns the side used to flatten an order of this side.
func (s OrderSide) Opposite() OrderSide {
	if s == Buy {
		return Sell
	}
	return Buy
}

// PositionStatus represents the status of a trading position.
type PositionStatus string

const (
	StatusOpen   PositionStatus = "OPEN"
	StatusClosed PositionStatus = "CLOSED"
)

// TradeReason indicates why a position was closed.
type TradeReason string

const (
	TradeReasonStopLoss       TradeReason = "STOP_LOSS"
	TradeReasonTakeProfit     TradeReason = "TAKE_PROFIT"
	TradeReasonDailyLossLimit TradeReason = "DAILY_LOSS_LIMIT"
	TradeReasonTimeLimit      TradeReason = "TIME_LIMIT"
	TradeReasonManualClose    TradeReason = "MANUAL_CLOSE"
)

// TradeReasonFromString maps a reason string onto the enumerated reasons.
// Unrecognized values fall back to TradeReasonManualClose; the second return
// value reports whether the input matched a known reason so callers can log
// the mismatch instead of swallowing it.
func TradeReasonFromString(s string) (TradeReason, bool) {
	switch TradeReason(s) {
	case TradeReasonStopLoss, TradeReasonTakeProfit, TradeReasonDailyLossLimit,
		TradeReasonTimeLimit, TradeReasonManualClose:
		return TradeReason(s), true
	default:
		return TradeReasonManualClose, false
	}
}

// RejectReason enumerates why the risk manager denied a candidate entry.
type RejectReason string

const (
	RejectNone                RejectReason = ""
	RejectPositionOpen        RejectReason = "POSITION_ALREADY_OPEN"
	RejectDailyTargetReached  RejectReason = "DAILY_TARGET_REACHED"
	RejectDailyLossReached    RejectReason = "DAILY_LOSS_REACHED"
	RejectInsufficientBalance RejectReason = "INSUFFICIENT_BALANCE"
	RejectLowConfluence       RejectReason = "LOW_CONFLUENCE"
)
