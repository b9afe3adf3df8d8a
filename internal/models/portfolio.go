package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Portfolio represents a collection of stock holdings
type Portfolio struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// PortfolioView is the aggregated valuation of a portfolio at a point in time
type PortfolioView struct {
	Portfolio
	Holdings             []*HoldingView  `json:"holdings"`
	TotalValue           decimal.Decimal `json:"total_value"`
	TotalCost            decimal.Decimal `json:"total_cost"`
	TotalGainLoss        decimal.Decimal `json:"total_gain_loss"`
	TotalGainLossPercent decimal.Decimal `json:"total_gain_loss_percent"`
}
