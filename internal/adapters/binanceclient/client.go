package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"spotCycleBot/internal/domain"
	"spotCycleBot/internal/ports"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/google/uuid"
)

const (
	// Base URLs for the spot API
	baseURLProduction = "https://api.binance.com"
	baseURLTestnet    = "https://testnet.binance.vision"
)

// Client implements the ports.ExchangeClient interface using the go-binance library.
type Client struct {
	spotClient *binance.Client
	logger     ports.Logger
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey     string
	SecretKey  string
	UseTestnet bool
	Logger     ports.Logger
}

// New creates a new Binance spot client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		cfg.Logger.Warn(context.Background(), "APIKey or SecretKey is empty. Client will only work for public endpoints.")
	}

	client := binance.NewClient(cfg.APIKey, cfg.SecretKey)

	// Set BaseURL directly instead of using the global binance.UseTestnet
	if cfg.UseTestnet {
		client.BaseURL = baseURLTestnet
		cfg.Logger.Info(context.Background(), "Binance client configured for Testnet", map[string]interface{}{"baseURL": client.BaseURL})
	} else {
		client.BaseURL = baseURLProduction
		cfg.Logger.Info(context.Background(), "Binance client configured for Production", map[string]interface{}{"baseURL": client.BaseURL})
	}

	return &Client{
		spotClient: client,
		logger:     cfg.Logger,
	}, nil
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		var mappedErr error
		switch apiErr.Code {
		case -1003: // Too many requests
			mappedErr = ports.ErrRateLimited
		case -1021: // Timestamp outside of the recvWindow
			mappedErr = ports.ErrTimeout
		case -1022: // Signature not valid
			mappedErr = ports.ErrAuthenticationFailed
		case -1100, -1101, -1102, -1103, -1104, -1105, -1106, -1111, -1112, -1121, -1130: // Parameter/request format errors
			mappedErr = ports.ErrInvalidRequest
		case -2010: // New order rejected
			mappedErr = ports.ErrOrderPlacementFailed
		case -2014: // API-key format invalid
			mappedErr = ports.ErrInvalidAPIKeys
		case -2015: // Invalid API-key, IP, or permissions for action
			mappedErr = ports.ErrInvalidAPIKeys
		case -3005, -2019: // Insufficient balance / margin
			mappedErr = ports.ErrInsufficientFunds
		default:
			mappedErr = ports.ErrUnknown
		}
		finalErr := fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		return finalErr
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return fmt.Errorf("%s failed: %w: %w", operation, ports.ErrExchangeUnavailable, err)
}

// Ping checks connectivity to the exchange API.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.spotClient.NewPingService().Do(ctx); err != nil {
		return c.handleError(ctx, err, "Ping")
	}
	return nil
}

// GetServerTime retrieves the current server time from the exchange.
func (c *Client) GetServerTime(ctx context.Context) (time.Time, error) {
	ms, err := c.spotClient.NewServerTimeService().Do(ctx)
	if err != nil {
		return time.Time{}, c.handleError(ctx, err, "GetServerTime")
	}
	return time.UnixMilli(ms).UTC(), nil
}

// GetTickerPrice retrieves the last ticker price for a given symbol.
func (c *Client) GetTickerPrice(ctx context.Context, symbol string) (float64, error) {
	prices, err := c.spotClient.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, c.handleError(ctx, err, "GetTickerPrice")
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("GetTickerPrice: no price returned for symbol %s: %w", symbol, ports.ErrNotFound)
	}
	price, err := strconv.ParseFloat(prices[0].Price, 64)
	if err != nil {
		return 0, fmt.Errorf("GetTickerPrice: failed to parse price '%s': %w", prices[0].Price, err)
	}
	return price, nil
}

// GetAccountBalance retrieves the balance snapshot for a specific asset.
func (c *Client) GetAccountBalance(ctx context.Context, asset string) (*domain.AccountBalance, error) {
	account, err := c.spotClient.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, "GetAccountBalance")
	}
	for _, b := range account.Balances {
		if b.Asset != asset {
			continue
		}
		free, err := strconv.ParseFloat(b.Free, 64)
		if err != nil {
			return nil, fmt.Errorf("GetAccountBalance: failed to parse free balance '%s': %w", b.Free, err)
		}
		locked, err := strconv.ParseFloat(b.Locked, 64)
		if err != nil {
			return nil, fmt.Errorf("GetAccountBalance: failed to parse locked balance '%s': %w", b.Locked, err)
		}
		return &domain.AccountBalance{Asset: asset, Free: free, Locked: locked}, nil
	}
	// Asset not present in the account is a zero balance, not an error.
	return &domain.AccountBalance{Asset: asset}, nil
}

// GetKlines retrieves historical klines/candlestick data for the given symbol.
func (c *Client) GetKlines(ctx context.Context, symbol string, interval string, limit int) ([]*domain.Kline, error) {
	raw, err := c.spotClient.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, "GetKlines")
	}

	klines := make([]*domain.Kline, 0, len(raw))
	for _, k := range raw {
		parsed, err := parseKline(k, symbol, interval)
		if err != nil {
			c.logger.Warn(ctx, "Skipping unparseable kline", map[string]interface{}{"symbol": symbol, "openTime": k.OpenTime, "error": err.Error()})
			continue
		}
		klines = append(klines, parsed)
	}
	return klines, nil
}

// PlaceMarketOrder places a market order and aggregates the fill details.
func (c *Client) PlaceMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity string) (*ports.OrderResponse, error) {
	clientOrderID := uuid.NewString()
	order, err := c.spotClient.NewCreateOrderService().
		Symbol(symbol).
		Side(binance.SideType(side)).
		Type(binance.OrderTypeMarket).
		Quantity(quantity).
		NewClientOrderID(clientOrderID).
		Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, "PlaceMarketOrder")
	}

	executedQty, err := strconv.ParseFloat(order.ExecutedQuantity, 64)
	if err != nil {
		return nil, fmt.Errorf("PlaceMarketOrder: failed to parse executed quantity '%s': %w", order.ExecutedQuantity, err)
	}
	quoteQty, err := strconv.ParseFloat(order.CummulativeQuoteQuantity, 64)
	if err != nil {
		return nil, fmt.Errorf("PlaceMarketOrder: failed to parse quote quantity '%s': %w", order.CummulativeQuoteQuantity, err)
	}

	var avgPrice float64
	if executedQty > 0 {
		avgPrice = quoteQty / executedQty
	}

	commission := c.sumCommission(ctx, order.Fills, avgPrice)

	resp := &ports.OrderResponse{
		OrderID:       order.OrderID,
		ClientOrderID: order.ClientOrderID,
		Symbol:        order.Symbol,
		Side:          string(order.Side),
		ExecutedPrice: avgPrice,
		ExecutedQty:   executedQty,
		Commission:    commission,
		Status:        string(order.Status),
		Timestamp:     time.UnixMilli(order.TransactTime).UTC(),
	}
	c.logger.Info(ctx, "Market order executed", map[string]interface{}{
		"symbol":   resp.Symbol,
		"side":     resp.Side,
		"orderID":  resp.OrderID,
		"avgPrice": resp.ExecutedPrice,
		"qty":      resp.ExecutedQty,
		"fee":      resp.Commission,
	})
	return resp, nil
}

// sumCommission totals fill commissions in quote currency. Fees charged in the
// base asset are converted at the fill price.
func (c *Client) sumCommission(ctx context.Context, fills []*binance.Fill, avgPrice float64) float64 {
	var total float64
	for _, f := range fills {
		fee, err := strconv.ParseFloat(f.Commission, 64)
		if err != nil {
			c.logger.Warn(ctx, "Skipping unparseable fill commission", map[string]interface{}{"commission": f.Commission})
			continue
		}
		fillPrice, err := strconv.ParseFloat(f.Price, 64)
		if err != nil || fillPrice == 0 {
			fillPrice = avgPrice
		}
		if f.CommissionAsset == "USDT" || f.CommissionAsset == "BUSD" {
			total += fee
		} else {
			total += fee * fillPrice
		}
	}
	return total
}

func parseKline(k *binance.Kline, symbol, interval string) (*domain.Kline, error) {
	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return nil, fmt.Errorf("high: %w", err)
	}
	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return nil, fmt.Errorf("low: %w", err)
	}
	closePrice, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return nil, fmt.Errorf("close: %w", err)
	}
	volume, err := strconv.ParseFloat(k.Volume, 64)
	if err != nil {
		return nil, fmt.Errorf("volume: %w", err)
	}
	return &domain.Kline{
		OpenTime:  time.UnixMilli(k.OpenTime).UTC(),
		CloseTime: time.UnixMilli(k.CloseTime).UTC(),
		Symbol:    symbol,
		Interval:  interval,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
		Volume:    volume,
	}, nil
}
