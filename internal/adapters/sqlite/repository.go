package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"cryptoRsiBot/internal/domain"
	"cryptoRsiBot/internal/ports"
)

// Repository implements the ports.TradeRepository interface using SQLite.
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

	// Open database connection
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000") // WAL mode for better concurrency
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close() // Close the connection if ping fails
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// Set connection pool settings (important for SQLite)
	db.SetMaxOpenConns(1) // SQLite handles concurrency internally, but Go driver benefits from limiting connections
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger}

	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
// NOTE: This is a basic approach. A proper migration tool is recommended for production.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		entry_price REAL NOT NULL,
		exit_price REAL DEFAULT NULL,
		quantity REAL NOT NULL,
		stop_loss REAL DEFAULT NULL,
		take_profit REAL DEFAULT NULL,
		status TEXT NOT NULL,
		reason TEXT DEFAULT NULL,
		indicators TEXT DEFAULT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	-- Add indexes for common lookups
	CREATE INDEX IF NOT EXISTS idx_trades_status ON trades (status);
	CREATE INDEX IF NOT EXISTS idx_trades_symbol_status ON trades (symbol, status);
	CREATE INDEX IF NOT EXISTS idx_trades_updated_at ON trades (updated_at);
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

// Create persists a new trade, assigning its ID and timestamps.
func (r *Repository) Create(ctx context.Context, trade *domain.Trade) error {
	const query = `
	INSERT INTO trades (id, symbol, side, entry_price, exit_price, quantity, stop_loss,
	                    take_profit, status, reason, indicators, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	now := time.Now().UTC()
	trade.ID = uuid.NewString()
	trade.CreatedAt = now
	trade.UpdatedAt = now

	indicators, err := marshalIndicators(trade.Indicators)
	if err != nil {
		return fmt.Errorf("failed to encode indicators for trade %s: %w", trade.ID, err)
	}

	_, err = r.db.ExecContext(ctx, query,
		trade.ID, trade.Symbol, trade.Side, trade.EntryPrice, nullFloat(trade.ExitPrice),
		trade.Quantity, nullFloat(trade.StopLoss), nullFloat(trade.TakeProfit),
		trade.Status, nullString(trade.Reason), indicators, trade.CreatedAt, trade.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert trade for symbol %s: %w", trade.Symbol, err)
	}

	r.logger.Debug(ctx, "Trade created", map[string]interface{}{"tradeID": trade.ID, "symbol": trade.Symbol, "side": trade.Side})
	return nil
}

// Update modifies an existing trade based on its ID.
func (r *Repository) Update(ctx context.Context, trade *domain.Trade) error {
	const query = `
	UPDATE trades
	SET entry_price = ?, exit_price = ?, quantity = ?, stop_loss = ?, take_profit = ?,
	    status = ?, reason = ?, indicators = ?, updated_at = ?
	WHERE id = ?`

	trade.UpdatedAt = time.Now().UTC()

	indicators, err := marshalIndicators(trade.Indicators)
	if err != nil {
		return fmt.Errorf("failed to encode indicators for trade %s: %w", trade.ID, err)
	}

	result, err := r.db.ExecContext(ctx, query,
		trade.EntryPrice, nullFloat(trade.ExitPrice), trade.Quantity,
		nullFloat(trade.StopLoss), nullFloat(trade.TakeProfit),
		trade.Status, nullString(trade.Reason), indicators, trade.UpdatedAt,
		trade.ID)
	if err != nil {
		return fmt.Errorf("failed to update trade %s: %w", trade.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for update of trade %s: %w", trade.ID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("trade %s not found for update: %w", trade.ID, ports.ErrTradeNotFound)
	}
	r.logger.Debug(ctx, "Trade updated", map[string]interface{}{"tradeID": trade.ID, "status": trade.Status})
	return nil
}

// FindByID retrieves a trade by its unique ID.
func (r *Repository) FindByID(ctx context.Context, id string) (*domain.Trade, error) {
	const query = selectColumns + ` FROM trades WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	trade, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Debug(ctx, "Trade not found by ID", map[string]interface{}{"tradeID": id})
			return nil, nil // Not an error, just not found
		}
		return nil, fmt.Errorf("failed to query trade by ID %s: %w", id, err)
	}
	return trade, nil
}

// FindAllOpen retrieves all trades with status open, newest first.
func (r *Repository) FindAllOpen(ctx context.Context) ([]*domain.Trade, error) {
	const query = selectColumns + ` FROM trades WHERE status = ? ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, domain.StatusOpen)
	if err != nil {
		return nil, fmt.Errorf("failed to query open trades: %w", err)
	}
	defer rows.Close()

	return collectTrades(rows)
}

// FindRecent retrieves the most recently updated trades, up to a limit.
func (r *Repository) FindRecent(ctx context.Context, limit int) ([]*domain.Trade, error) {
	const query = selectColumns + ` FROM trades ORDER BY updated_at DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent trades: %w", err)
	}
	defer rows.Close()

	return collectTrades(rows)
}

const selectColumns = `
	SELECT id, symbol, side, entry_price, exit_price, quantity, stop_loss,
	       take_profit, status, reason, indicators, created_at, updated_at`

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanTrade scans a row into a domain.Trade struct.
func scanTrade(s scanner) (*domain.Trade, error) {
	t := &domain.Trade{}
	var side, status string
	var exitPrice, stopLoss, takeProfit sql.NullFloat64
	var reason, indicators sql.NullString
	err := s.Scan(
		&t.ID, &t.Symbol, &side, &t.EntryPrice, &exitPrice, &t.Quantity,
		&stopLoss, &takeProfit, &status, &reason, &indicators,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	t.Side = domain.OrderSide(side)
	t.Status = domain.TradeStatus(status)
	if exitPrice.Valid {
		t.ExitPrice = &exitPrice.Float64
	}
	if stopLoss.Valid {
		t.StopLoss = &stopLoss.Float64
	}
	if takeProfit.Valid {
		t.TakeProfit = &takeProfit.Float64
	}
	if reason.Valid {
		t.Reason = reason.String
	}
	if indicators.Valid && indicators.String != "" {
		if err := json.Unmarshal([]byte(indicators.String), &t.Indicators); err != nil {
			return nil, fmt.Errorf("failed to decode indicators for trade %s: %w", t.ID, err)
		}
	}
	return t, nil
}

func collectTrades(rows *sql.Rows) ([]*domain.Trade, error) {
	trades := make([]*domain.Trade, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade row: %w", err)
		}
		trades = append(trades, trade)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w", err)
	}
	return trades, nil
}

func marshalIndicators(indicators map[string]float64) (sql.NullString, error) {
	if len(indicators) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(indicators)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}
