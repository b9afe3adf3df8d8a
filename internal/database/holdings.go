package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/mdevan/portfolio-manager/internal/models"
)

// GetHolding retrieves the holding for a (portfolio, stock) pair
func (db *DB) GetHolding(ctx context.Context, portfolioID, stockID int64) (*models.Holding, error) {
	query := `
		SELECT id, portfolio_id, stock_id, quantity, average_cost
		FROM holdings
		WHERE portfolio_id = $1 AND stock_id = $2
	`
	var h models.Holding
	err := db.conn.QueryRowContext(ctx, query, portfolioID, stockID).Scan(
		&h.ID, &h.PortfolioID, &h.StockID, &h.Quantity, &h.AverageCost,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("holding for portfolio %d stock %d: %w", portfolioID, stockID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get holding: %w", err)
	}
	return &h, nil
}

// GetActiveHoldings retrieves a portfolio's holdings with quantity > 0, joined
// with stock symbol, name and current price, ordered by holding id ascending so
// the valuation sort has a stable base order. Zero-quantity holdings stay in
// the table but never appear here.
func (db *DB) GetActiveHoldings(ctx context.Context, portfolioID int64) ([]*models.HoldingView, error) {
	query := `
		SELECT h.id, h.portfolio_id, h.stock_id, h.quantity, h.average_cost,
		       s.symbol, s.name, s.current_price
		FROM holdings h
		JOIN stocks s ON s.id = h.stock_id
		WHERE h.portfolio_id = $1 AND h.quantity > 0
		ORDER BY h.id ASC
	`
	rows, err := db.conn.QueryContext(ctx, query, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	var holdings []*models.HoldingView
	for rows.Next() {
		var h models.HoldingView
		err := rows.Scan(
			&h.ID, &h.PortfolioID, &h.StockID, &h.Quantity, &h.AverageCost,
			&h.Symbol, &h.Name, &h.CurrentPrice,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		holdings = append(holdings, &h)
	}

	return holdings, rows.Err()
}

// ApplyTransaction records a transaction and folds it into the pair's holding
// as a single atomic unit. The holding row is locked with SELECT ... FOR UPDATE
// so concurrent mutations of the same (portfolio, stock) pair serialize; fold
// receives the current holding (nil when none exists) and returns the new
// state. A fold error rolls back everything, leaving neither the transaction
// nor the holding changed.
//
// Two concurrent first BUYs both find no row to lock and race to insert the
// holding; the loser hits the pair's unique constraint. That attempt is rolled
// back and retried, so the retry locks the winner's row and folds on top of it.
func (db *DB) ApplyTransaction(ctx context.Context, t *models.Transaction, fold func(current *models.Holding) (*models.Holding, error)) (*models.Holding, error) {
	for {
		holding, err := db.applyTransactionOnce(ctx, t, fold)
		if isUniqueViolation(err) {
			continue
		}
		return holding, err
	}
}

func (db *DB) applyTransactionOnce(ctx context.Context, t *models.Transaction, fold func(current *models.Holding) (*models.Holding, error)) (*models.Holding, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := getHoldingForUpdate(ctx, tx, t.PortfolioID, t.StockID)
	if err != nil {
		return nil, err
	}

	updated, err := fold(current)
	if err != nil {
		return nil, err
	}

	insertQuery := `
		INSERT INTO transactions (portfolio_id, stock_id, transaction_type, quantity, price_per_share, transaction_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	now := time.Now()
	err = tx.QueryRowContext(ctx, insertQuery,
		t.PortfolioID, t.StockID, t.TransactionType, t.Quantity, t.PricePerShare, now,
	).Scan(&t.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	t.TransactionDate = now

	if current == nil {
		createQuery := `
			INSERT INTO holdings (portfolio_id, stock_id, quantity, average_cost)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`
		err = tx.QueryRowContext(ctx, createQuery,
			updated.PortfolioID, updated.StockID, updated.Quantity, updated.AverageCost,
		).Scan(&updated.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to create holding: %w", err)
		}
	} else {
		updateQuery := `
			UPDATE holdings
			SET quantity = $2, average_cost = $3
			WHERE id = $1
		`
		if _, err := tx.ExecContext(ctx, updateQuery, updated.ID, updated.Quantity, updated.AverageCost); err != nil {
			return nil, fmt.Errorf("failed to update holding: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return updated, nil
}

// isUniqueViolation matches the holdings pair constraint specifically; any
// other constraint error surfaces to the caller.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) &&
		pqErr.Code == "23505" &&
		pqErr.Constraint == "holdings_portfolio_id_stock_id_key"
}

func getHoldingForUpdate(ctx context.Context, tx *sql.Tx, portfolioID, stockID int64) (*models.Holding, error) {
	query := `
		SELECT id, portfolio_id, stock_id, quantity, average_cost
		FROM holdings
		WHERE portfolio_id = $1 AND stock_id = $2
		FOR UPDATE
	`
	var h models.Holding
	err := tx.QueryRowContext(ctx, query, portfolioID, stockID).Scan(
		&h.ID, &h.PortfolioID, &h.StockID, &h.Quantity, &h.AverageCost,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock holding: %w", err)
	}
	return &h, nil
}
