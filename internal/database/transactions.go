package database

import (
	"context"
	"fmt"

	"github.com/mdevan/portfolio-manager/internal/models"
)

// GetRecentTransactionsByPortfolio retrieves the newest transactions for a
// portfolio, enriched with stock symbol and name, most recent first
func (db *DB) GetRecentTransactionsByPortfolio(ctx context.Context, portfolioID int64, limit int) ([]*models.TransactionDetail, error) {
	query := `
		SELECT t.id, t.portfolio_id, t.stock_id, t.transaction_type,
		       t.quantity, t.price_per_share, t.transaction_date,
		       s.symbol, s.name
		FROM transactions t
		JOIN stocks s ON s.id = t.stock_id
		WHERE t.portfolio_id = $1
		ORDER BY t.transaction_date DESC, t.id DESC
		LIMIT $2
	`
	rows, err := db.conn.QueryContext(ctx, query, portfolioID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*models.TransactionDetail
	for rows.Next() {
		var t models.TransactionDetail
		err := rows.Scan(
			&t.ID, &t.PortfolioID, &t.StockID, &t.TransactionType,
			&t.Quantity, &t.PricePerShare, &t.TransactionDate,
			&t.Symbol, &t.Name,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, &t)
	}

	return transactions, rows.Err()
}
