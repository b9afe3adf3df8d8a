package database

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/mdevan/portfolio-manager/internal/models"
)

// Seed inserts the default portfolio and starter stocks when the respective
// tables are empty. Safe to run repeatedly.
func (db *DB) Seed(ctx context.Context) error {
	var portfolioCount int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM portfolios`).Scan(&portfolioCount); err != nil {
		return fmt.Errorf("failed to count portfolios: %w", err)
	}

	if portfolioCount == 0 {
		p := &models.Portfolio{
			Name:        "My Portfolio",
			Description: "Personal investment portfolio",
		}
		if err := db.CreatePortfolio(ctx, p); err != nil {
			return err
		}
		log.WithField("portfolio_id", p.ID).Info("seeded default portfolio")
	}

	var stockCount int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM stocks`).Scan(&stockCount); err != nil {
		return fmt.Errorf("failed to count stocks: %w", err)
	}

	if stockCount == 0 {
		stocks := []*models.Stock{
			{Symbol: "AAPL", Name: "Apple Inc.", CurrentPrice: decimal.NewFromFloat(178.50)},
			{Symbol: "GOOGL", Name: "Alphabet Inc.", CurrentPrice: decimal.NewFromFloat(142.30)},
			{Symbol: "MSFT", Name: "Microsoft Corporation", CurrentPrice: decimal.NewFromFloat(378.90)},
			{Symbol: "AMZN", Name: "Amazon.com Inc.", CurrentPrice: decimal.NewFromFloat(145.20)},
			{Symbol: "TSLA", Name: "Tesla Inc.", CurrentPrice: decimal.NewFromFloat(242.80)},
		}
		for _, s := range stocks {
			if err := db.CreateStock(ctx, s); err != nil {
				return err
			}
		}
		log.WithField("count", len(stocks)).Info("seeded stocks")
	}

	return nil
}
