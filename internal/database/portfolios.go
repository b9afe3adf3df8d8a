package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mdevan/portfolio-manager/internal/models"
)

// CreatePortfolio inserts a new portfolio
func (db *DB) CreatePortfolio(ctx context.Context, p *models.Portfolio) error {
	query := `
		INSERT INTO portfolios (name, description, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	now := time.Now()
	err := db.conn.QueryRowContext(ctx, query, p.Name, p.Description, now).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to create portfolio: %w", err)
	}
	p.CreatedAt = now
	return nil
}

// GetPortfolioByID retrieves a portfolio by ID
func (db *DB) GetPortfolioByID(ctx context.Context, id int64) (*models.Portfolio, error) {
	query := `
		SELECT id, name, description, created_at
		FROM portfolios
		WHERE id = $1
	`
	var p models.Portfolio
	var description sql.NullString

	err := db.conn.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Name, &description, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("portfolio %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolio: %w", err)
	}

	if description.Valid {
		p.Description = description.String
	}
	return &p, nil
}

// GetAllPortfolios retrieves all portfolios
func (db *DB) GetAllPortfolios(ctx context.Context) ([]*models.Portfolio, error) {
	query := `
		SELECT id, name, description, created_at
		FROM portfolios
		ORDER BY id ASC
	`
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolios: %w", err)
	}
	defer rows.Close()

	var portfolios []*models.Portfolio
	for rows.Next() {
		var p models.Portfolio
		var description sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &description, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio: %w", err)
		}
		if description.Valid {
			p.Description = description.String
		}
		portfolios = append(portfolios, &p)
	}

	return portfolios, rows.Err()
}
