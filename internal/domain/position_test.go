package domain

import "testing"

func TestPositionIsOpen(t *testing.T) {
	var nilPos *Position
	if nilPos.IsOpen() {
		t.Error("nil position must not report open")
	}

	pos := &Position{Status: StatusOpen}
	if !pos.IsOpen() {
		t.Error("open position must report open")
	}

	pos.Status = StatusClosed
	if pos.IsOpen() {
		t.Error("closed position must not report open")
	}
}

func TestPositionUpdatePnL(t *testing.T) {
	pos := &Position{Side: Buy, EntryPrice: 100, Quantity: 2}
	pos.UpdatePnL(105)
	if pos.CurrentPrice != 105 {
		t.Errorf("CurrentPrice = %f, want 105", pos.CurrentPrice)
	}
	if pos.UnrealizedPnL != 10 {
		t.Errorf("UnrealizedPnL = %f, want 10", pos.UnrealizedPnL)
	}

	short := &Position{Side: Sell, EntryPrice: 100, Quantity: 2}
	short.UpdatePnL(105)
	if short.UnrealizedPnL != -10 {
		t.Errorf("short UnrealizedPnL = %f, want -10", short.UnrealizedPnL)
	}
}

func TestOrderSideOpposite(t *testing.T) {
	if Buy.Opposite() != Sell {
		t.Error("BUY opposite must be SELL")
	}
	if Sell.Opposite() != Buy {
		t.Error("SELL opposite must be BUY")
	}
}
