package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction type constants
const (
	TransactionTypeBuy  = "BUY"
	TransactionTypeSell = "SELL"
)

// Transaction is one immutable entry in the append-only trade log
type Transaction struct {
	ID              int64           `json:"id"`
	PortfolioID     int64           `json:"portfolio_id"`
	StockID         int64           `json:"stock_id"`
	TransactionType string          `json:"transaction_type"`
	Quantity        int64           `json:"quantity"`
	PricePerShare   decimal.Decimal `json:"price_per_share"`
	TransactionDate time.Time       `json:"transaction_date"`
}

// TransactionDetail is a transaction enriched with its stock's symbol and name,
// as returned by the history view
type TransactionDetail struct {
	Transaction
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// TransactionRequest is the payload for recording a new BUY or SELL
type TransactionRequest struct {
	PortfolioID     int64           `json:"portfolio_id"`
	StockID         int64           `json:"stock_id"`
	TransactionType string          `json:"transaction_type"`
	Quantity        int64           `json:"quantity"`
	PricePerShare   decimal.Decimal `json:"price_per_share"`
}

// Validate checks the request before anything is written
func (r *TransactionRequest) Validate() error {
	if r.TransactionType != TransactionTypeBuy && r.TransactionType != TransactionTypeSell {
		return &ValidationError{Field: "transaction_type", Message: fmt.Sprintf("must be %s or %s", TransactionTypeBuy, TransactionTypeSell)}
	}
	if r.Quantity <= 0 {
		return &ValidationError{Field: "quantity", Message: "must be a positive integer"}
	}
	if !r.PricePerShare.IsPositive() {
		return &ValidationError{Field: "price_per_share", Message: "must be a positive number"}
	}
	return nil
}
