package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mdevan/portfolio-manager/internal/models"
)

// CreateStock inserts a new stock
func (db *DB) CreateStock(ctx context.Context, s *models.Stock) error {
	query := `
		INSERT INTO stocks (symbol, name, current_price, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	now := time.Now()
	err := db.conn.QueryRowContext(ctx, query, s.Symbol, s.Name, s.CurrentPrice, now).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("failed to create stock: %w", err)
	}
	s.UpdatedAt = now
	return nil
}

// GetStockByID retrieves a stock by ID
func (db *DB) GetStockByID(ctx context.Context, id int64) (*models.Stock, error) {
	query := `
		SELECT id, symbol, name, current_price, updated_at
		FROM stocks
		WHERE id = $1
	`
	return db.scanStock(db.conn.QueryRowContext(ctx, query, id), fmt.Sprintf("stock %d", id))
}

// GetStockBySymbol retrieves a stock by its unique symbol
func (db *DB) GetStockBySymbol(ctx context.Context, symbol string) (*models.Stock, error) {
	query := `
		SELECT id, symbol, name, current_price, updated_at
		FROM stocks
		WHERE symbol = $1
	`
	return db.scanStock(db.conn.QueryRowContext(ctx, query, symbol), "stock "+symbol)
}

func (db *DB) scanStock(row *sql.Row, desc string) (*models.Stock, error) {
	var s models.Stock
	err := row.Scan(&s.ID, &s.Symbol, &s.Name, &s.CurrentPrice, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%s: %w", desc, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stock: %w", err)
	}
	return &s, nil
}

// GetAllStocks retrieves all stocks ordered by symbol
func (db *DB) GetAllStocks(ctx context.Context) ([]*models.Stock, error) {
	query := `
		SELECT id, symbol, name, current_price, updated_at
		FROM stocks
		ORDER BY symbol ASC
	`
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query stocks: %w", err)
	}
	defer rows.Close()

	var stocks []*models.Stock
	for rows.Next() {
		var s models.Stock
		if err := rows.Scan(&s.ID, &s.Symbol, &s.Name, &s.CurrentPrice, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stock: %w", err)
		}
		stocks = append(stocks, &s)
	}

	return stocks, rows.Err()
}

// UpdateStockPrice sets a stock's current price and returns the updated record
func (db *DB) UpdateStockPrice(ctx context.Context, id int64, price decimal.Decimal) (*models.Stock, error) {
	query := `
		UPDATE stocks
		SET current_price = $2, updated_at = $3
		WHERE id = $1
		RETURNING id, symbol, name, current_price, updated_at
	`
	return db.scanStock(db.conn.QueryRowContext(ctx, query, id, price, time.Now()), fmt.Sprintf("stock %d", id))
}

// UpdateStockPriceBySymbol sets a stock's current price looked up by symbol.
// Used by the price feed consumer, which only knows symbols.
func (db *DB) UpdateStockPriceBySymbol(ctx context.Context, symbol string, price decimal.Decimal) (*models.Stock, error) {
	query := `
		UPDATE stocks
		SET current_price = $2, updated_at = $3
		WHERE symbol = $1
		RETURNING id, symbol, name, current_price, updated_at
	`
	return db.scanStock(db.conn.QueryRowContext(ctx, query, symbol, price, time.Now()), "stock "+symbol)
}
