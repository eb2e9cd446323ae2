package ports

import (
	"context"
	"time"

	"spotCycleBot/internal/domain"
)

// OrderResponse represents the essential details returned after placing an order.
type OrderResponse struct {
	OrderID       int64     // Exchange's order ID
	ClientOrderID string    // Client-assigned order ID
	Symbol        string    // Symbol for the order
	Side          string    // Order side (BUY, SELL)
	ExecutedPrice float64   // Average filled price
	ExecutedQty   float64   // Quantity filled
	Commission    float64   // Total fill commission in quote currency
	Status        string    // Order status (e.g., FILLED)
	Timestamp     time.Time // Time the order response was generated
}

// ExchangeClient defines the interface for interacting with a spot exchange.
// Fetch failures return an error and are treated by the orchestrator as
// "retry next cycle"; only startup validation treats them as fatal.
type ExchangeClient interface {
	// Ping checks the connectivity to the exchange API.
	Ping(ctx context.Context) error

	// GetServerTime retrieves the current server time from the exchange.
	GetServerTime(ctx context.Context) (time.Time, error)

	// GetTickerPrice retrieves the last ticker price for a given symbol.
	GetTickerPrice(ctx context.Context, symbol string) (float64, error)

	// GetAccountBalance retrieves the balance snapshot for a specific asset (e.g., "USDT").
	GetAccountBalance(ctx context.Context, asset string) (*domain.AccountBalance, error)

	// GetKlines retrieves historical klines/candlestick data for the given symbol.
	GetKlines(ctx context.Context, symbol string, interval string, limit int) ([]*domain.Kline, error)

	// PlaceMarketOrder places a market order and returns the fill details.
	PlaceMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity string) (*OrderResponse, error)
}
