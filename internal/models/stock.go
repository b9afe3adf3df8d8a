package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stock represents a tradable security with its latest known price.
// Prices are mutated externally (price-update API or the price feed
// consumer); symbol and name are fixed at seed time.
type Stock struct {
	ID           int64           `json:"id"`
	Symbol       string          `json:"symbol"`
	Name         string          `json:"name"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
