package domain

import (
	"testing"
	"time"
)

func TestComputePnL(t *testing.T) {
	tests := []struct {
		name           string
		trade          Trade
		wantNetPnL     float64
		wantPnLPercent float64
	}{
		{
			name: "buy with profit",
			trade: Trade{
				Side:       Buy,
				EntryPrice: 100,
				ExitPrice:  110,
				Quantity:   2,
				Commission: 1,
			},
			wantNetPnL:     19, // (110-100)*2 - 1
			wantPnLPercent: 9.5,
		},
		{
			name: "buy with loss",
			trade: Trade{
				Side:       Buy,
				EntryPrice: 100,
				ExitPrice:  95,
				Quantity:   1,
				Commission: 0.5,
			},
			wantNetPnL:     -5.5,
			wantPnLPercent: -5.5,
		},
		{
			name: "sell profits from falling price",
			trade: Trade{
				Side:       Sell,
				EntryPrice: 100,
				ExitPrice:  90,
				Quantity:   1,
				Commission: 1,
			},
			wantNetPnL:     9,
			wantPnLPercent: 9,
		},
		{
			name: "commission turns a flat exit negative",
			trade: Trade{
				Side:       Buy,
				EntryPrice: 100,
				ExitPrice:  100,
				Quantity:   1,
				Commission: 0.2,
			},
			wantNetPnL:     -0.2,
			wantPnLPercent: -0.2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.trade.ComputePnL()
			if tt.trade.NetPnL != tt.wantNetPnL {
				t.Errorf("NetPnL = %f, want %f", tt.trade.NetPnL, tt.wantNetPnL)
			}
			if tt.trade.PnLPercent != tt.wantPnLPercent {
				t.Errorf("PnLPercent = %f, want %f", tt.trade.PnLPercent, tt.wantPnLPercent)
			}
		})
	}
}

func TestTradeReasonFromString(t *testing.T) {
	for _, known := range []TradeReason{
		TradeReasonStopLoss, TradeReasonTakeProfit, TradeReasonDailyLossLimit,
		TradeReasonTimeLimit, TradeReasonManualClose,
	} {
		got, ok := TradeReasonFromString(string(known))
		if !ok || got != known {
			t.Errorf("TradeReasonFromString(%q) = %q, %v; want %q, true", known, got, ok, known)
		}
	}

	got, ok := TradeReasonFromString("SOMETHING_ELSE")
	if ok {
		t.Error("expected unknown reason to report false")
	}
	if got != TradeReasonManualClose {
		t.Errorf("unknown reason mapped to %q, want %q", got, TradeReasonManualClose)
	}
}

func TestNewTradeID(t *testing.T) {
	closedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	want := "TRADE_1748779200"
	if got := NewTradeID(closedAt); got != want {
		t.Errorf("NewTradeID = %q, want %q", got, want)
	}
}
