package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"spotCycleBot/internal/domain"
	"spotCycleBot/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements the ports.TradeRepository and ports.DailyStatsRepository
// interfaces using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/trading_bot.db" // Default path
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// Open database connection. WAL mode for better concurrency.
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// The Go driver benefits from limiting connections for SQLite.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger}

	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "SQLite repository initialized", map[string]interface{}{"path": dbPath})

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		entry_price REAL NOT NULL,
		exit_price REAL NOT NULL,
		quantity REAL NOT NULL,
		commission REAL NOT NULL,
		exit_reason TEXT NOT NULL,
		entry_time TIMESTAMP NOT NULL,
		exit_time TIMESTAMP NOT NULL,
		net_pnl REAL NOT NULL,
		pnl_percent REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS daily_stats (
		date TEXT PRIMARY KEY,
		starting_balance REAL NOT NULL,
		daily_pnl REAL NOT NULL,
		daily_pnl_percent REAL NOT NULL,
		total_trades INTEGER NOT NULL,
		target_reached INTEGER NOT NULL,
		max_loss_reached INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_trades_symbol_exit_time ON trades (symbol, exit_time);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// --- TradeRepository Implementation ---

// CreateTrade saves a new trade record.
func (r *Repository) CreateTrade(ctx context.Context, trade *domain.Trade) error {
	const query = `
	INSERT INTO trades (id, symbol, side, entry_price, exit_price, quantity, commission,
	                    exit_reason, entry_time, exit_time, net_pnl, pnl_percent)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		trade.ID, trade.Symbol, trade.Side, trade.EntryPrice, trade.ExitPrice,
		trade.Quantity, trade.Commission, trade.ExitReason, trade.EntryTime,
		trade.ExitTime, trade.NetPnL, trade.PnLPercent)
	if err != nil {
		return fmt.Errorf("failed to insert trade %s: %w: %w", trade.ID, ports.ErrQueryFailed, err)
	}
	r.logger.Debug(ctx, "Trade record created", map[string]interface{}{"tradeID": trade.ID, "symbol": trade.Symbol, "netPnl": trade.NetPnL})
	return nil
}

// FindBySymbol retrieves the most recent trades for a given symbol, up to a limit.
func (r *Repository) FindBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.Trade, error) {
	const query = `
	SELECT id, symbol, side, entry_price, exit_price, quantity, commission,
	       exit_reason, entry_time, exit_time, net_pnl, pnl_percent
	FROM trades
	WHERE symbol = ? ORDER BY exit_time DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades for symbol %s: %w", symbol, err)
	}
	defer rows.Close()

	trades := make([]*domain.Trade, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade during FindBySymbol: %w", err)
		}
		trades = append(trades, trade)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w", err)
	}
	return trades, nil
}

// CountByDay counts the trades closed on the given UTC day key for a symbol.
func (r *Repository) CountByDay(ctx context.Context, symbol string, day string) (int, error) {
	const query = `SELECT COUNT(*) FROM trades WHERE symbol = ? AND date(exit_time) = ?`
	var count int
	err := r.db.QueryRowContext(ctx, query, symbol, day).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count trades for symbol %s on %s: %w", symbol, day, err)
	}
	return count, nil
}

// --- DailyStatsRepository Implementation ---

// UpsertDailyStats inserts or replaces the stats row for its day key.
func (r *Repository) UpsertDailyStats(ctx context.Context, stats *domain.DailyStats) error {
	const query = `
	INSERT INTO daily_stats (date, starting_balance, daily_pnl, daily_pnl_percent,
	                         total_trades, target_reached, max_loss_reached)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(date) DO UPDATE SET
		starting_balance = excluded.starting_balance,
		daily_pnl = excluded.daily_pnl,
		daily_pnl_percent = excluded.daily_pnl_percent,
		total_trades = excluded.total_trades,
		target_reached = excluded.target_reached,
		max_loss_reached = excluded.max_loss_reached`

	_, err := r.db.ExecContext(ctx, query,
		stats.Date, stats.StartingBalance, stats.DailyPnL, stats.DailyPnLPercent,
		stats.TotalTrades, stats.TargetReached, stats.MaxLossReached)
	if err != nil {
		return fmt.Errorf("failed to upsert daily stats for %s: %w: %w", stats.Date, ports.ErrQueryFailed, err)
	}
	r.logger.Debug(ctx, "Daily stats persisted", map[string]interface{}{"date": stats.Date, "trades": stats.TotalTrades, "pnl": stats.DailyPnL})
	return nil
}

// FindByDate retrieves the stats for a UTC day key. Returns nil, nil if no row exists.
func (r *Repository) FindByDate(ctx context.Context, day string) (*domain.DailyStats, error) {
	const query = `
	SELECT date, starting_balance, daily_pnl, daily_pnl_percent,
	       total_trades, target_reached, max_loss_reached
	FROM daily_stats
	WHERE date = ?`

	stats := &domain.DailyStats{}
	err := r.db.QueryRowContext(ctx, query, day).Scan(
		&stats.Date, &stats.StartingBalance, &stats.DailyPnL, &stats.DailyPnLPercent,
		&stats.TotalTrades, &stats.TargetReached, &stats.MaxLossReached)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not an error, just not found
		}
		return nil, fmt.Errorf("failed to query daily stats for %s: %w", day, err)
	}
	return stats, nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanTrade scans a row into a domain.Trade struct.
func scanTrade(s scanner) (*domain.Trade, error) {
	t := &domain.Trade{}
	var side, reason string
	err := s.Scan(
		&t.ID, &t.Symbol, &side, &t.EntryPrice, &t.ExitPrice, &t.Quantity,
		&t.Commission, &reason, &t.EntryTime, &t.ExitTime, &t.NetPnL, &t.PnLPercent)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	t.Side = domain.OrderSide(side)
	t.ExitReason, _ = domain.TradeReasonFromString(reason)
	return t, nil
}
