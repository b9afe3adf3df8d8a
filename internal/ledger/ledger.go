// Package ledger applies BUY/SELL transactions to per-(portfolio, stock)
// holdings, maintaining the weighted-average cost basis.
package ledger

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/mdevan/portfolio-manager/internal/models"
)

// ErrInsufficientShares is returned when a SELL exceeds the held quantity.
// The check happens before any write, so a rejected sell changes nothing.
var ErrInsufficientShares = errors.New("insufficient shares to sell")

// Store defines the persistence operations the ledger needs. ApplyTransaction
// must run the fold and both writes as one atomic unit (see database.DB).
type Store interface {
	GetPortfolioByID(ctx context.Context, id int64) (*models.Portfolio, error)
	GetStockByID(ctx context.Context, id int64) (*models.Stock, error)
	ApplyTransaction(ctx context.Context, t *models.Transaction, fold func(current *models.Holding) (*models.Holding, error)) (*models.Holding, error)
}

// Ledger records transactions and keeps holdings consistent with them
type Ledger struct {
	store Store
}

// New creates a Ledger backed by the given store
func New(store Store) *Ledger {
	return &Ledger{store: store}
}

// ApplyTransaction validates the request, resolves its references and applies
// it: the transaction is appended to the log and the pair's holding is updated
// in the same storage transaction. Returns the created transaction and the
// resulting holding.
func (l *Ledger) ApplyTransaction(ctx context.Context, req models.TransactionRequest) (*models.Transaction, *models.Holding, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}

	if _, err := l.store.GetPortfolioByID(ctx, req.PortfolioID); err != nil {
		return nil, nil, err
	}
	if _, err := l.store.GetStockByID(ctx, req.StockID); err != nil {
		return nil, nil, err
	}

	t := &models.Transaction{
		PortfolioID:     req.PortfolioID,
		StockID:         req.StockID,
		TransactionType: req.TransactionType,
		Quantity:        req.Quantity,
		PricePerShare:   req.PricePerShare,
	}

	holding, err := l.store.ApplyTransaction(ctx, t, func(current *models.Holding) (*models.Holding, error) {
		return applyToHolding(current, t)
	})
	if err != nil {
		return nil, nil, err
	}

	return t, holding, nil
}

// applyToHolding folds one transaction into the current holding state and
// returns the new state without mutating the input. current is nil when the
// pair has never been bought.
//
// BUY recomputes the weighted-average cost:
//
//	newAvg = (oldQty*oldAvg + qty*price) / (oldQty + qty)
//
// SELL decrements quantity and leaves the average cost untouched; it can
// reach zero but never go below.
func applyToHolding(current *models.Holding, t *models.Transaction) (*models.Holding, error) {
	qty := decimal.NewFromInt(t.Quantity)

	switch t.TransactionType {
	case models.TransactionTypeBuy:
		if current == nil {
			return &models.Holding{
				PortfolioID: t.PortfolioID,
				StockID:     t.StockID,
				Quantity:    t.Quantity,
				AverageCost: t.PricePerShare,
			}, nil
		}

		oldQty := decimal.NewFromInt(current.Quantity)
		newQty := current.Quantity + t.Quantity
		newCost := oldQty.Mul(current.AverageCost).
			Add(qty.Mul(t.PricePerShare)).
			Div(decimal.NewFromInt(newQty))

		return &models.Holding{
			ID:          current.ID,
			PortfolioID: current.PortfolioID,
			StockID:     current.StockID,
			Quantity:    newQty,
			AverageCost: newCost,
		}, nil

	case models.TransactionTypeSell:
		if current == nil || current.Quantity < t.Quantity {
			return nil, ErrInsufficientShares
		}

		return &models.Holding{
			ID:          current.ID,
			PortfolioID: current.PortfolioID,
			StockID:     current.StockID,
			Quantity:    current.Quantity - t.Quantity,
			AverageCost: current.AverageCost,
		}, nil

	default:
		return nil, &models.ValidationError{Field: "transaction_type", Message: "unknown type " + t.TransactionType}
	}
}
