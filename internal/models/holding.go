package models

import "github.com/shopspring/decimal"

// Holding is the derived position for one (portfolio, stock) pair. It must
// always equal the fold of that pair's transactions in chronological order.
// Holdings are never deleted; a fully sold position stays at quantity 0.
type Holding struct {
	ID          int64           `json:"id"`
	PortfolioID int64           `json:"portfolio_id"`
	StockID     int64           `json:"stock_id"`
	Quantity    int64           `json:"quantity"`
	AverageCost decimal.Decimal `json:"average_cost"`
}

// HoldingView is a holding joined with its stock and valued at the current price
type HoldingView struct {
	Holding
	Symbol          string          `json:"symbol"`
	Name            string          `json:"name"`
	CurrentPrice    decimal.Decimal `json:"current_price"`
	MarketValue     decimal.Decimal `json:"market_value"`
	TotalGainLoss   decimal.Decimal `json:"total_gain_loss"`
	GainLossPercent decimal.Decimal `json:"gain_loss_percent"`
}
