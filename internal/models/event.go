package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event type constants published to and consumed from Kafka
const (
	EventTransactionCreated = "TRANSACTION_CREATED"
	EventPriceUpdated       = "PRICE_UPDATED"
)

// PortfolioEvent is the envelope for domain events published by the API
type PortfolioEvent struct {
	EventType   string       `json:"event_type"`
	Transaction *Transaction `json:"transaction,omitempty"`
	Stock       *Stock       `json:"stock,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
}

// PriceUpdateEvent is an inbound quote from the external price feed
type PriceUpdateEvent struct {
	EventType string          `json:"event_type"`
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
}
