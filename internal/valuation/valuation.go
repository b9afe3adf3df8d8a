// Package valuation produces read-only portfolio views: per-holding market
// value and gain/loss joined against current prices, plus portfolio totals
// and the recent transaction history.
package valuation

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/mdevan/portfolio-manager/internal/models"
)

// historyLimit caps the transaction history view
const historyLimit = 50

var hundred = decimal.NewFromInt(100)

// Store defines the read operations the aggregator needs
type Store interface {
	GetPortfolioByID(ctx context.Context, id int64) (*models.Portfolio, error)
	GetActiveHoldings(ctx context.Context, portfolioID int64) ([]*models.HoldingView, error)
	GetRecentTransactionsByPortfolio(ctx context.Context, portfolioID int64, limit int) ([]*models.TransactionDetail, error)
}

// PriceCache is an optional latest-quote cache consulted before the price
// that came back from the stocks join
type PriceCache interface {
	GetPrice(ctx context.Context, stockID int64) (decimal.Decimal, error)
	SetPrice(ctx context.Context, stockID int64, price decimal.Decimal) error
}

// Service computes portfolio valuations. Reads only, no locking; safe to call
// concurrently and tolerant of slightly stale prices.
type Service struct {
	store  Store
	prices PriceCache
}

// New creates a valuation service. prices may be nil when no cache is configured.
func New(store Store, prices PriceCache) *Service {
	return &Service{store: store, prices: prices}
}

// ValuatePortfolio builds the point-in-time valuation view of a portfolio
func (s *Service) ValuatePortfolio(ctx context.Context, portfolioID int64) (*models.PortfolioView, error) {
	portfolio, err := s.store.GetPortfolioByID(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	holdings, err := s.store.GetActiveHoldings(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	for _, h := range holdings {
		h.CurrentPrice = s.resolvePrice(ctx, h.StockID, h.CurrentPrice)
	}

	return buildView(portfolio, holdings), nil
}

// RecentTransactions returns the newest transactions for a portfolio, capped
// and enriched with stock symbol and name
func (s *Service) RecentTransactions(ctx context.Context, portfolioID int64) ([]*models.TransactionDetail, error) {
	return s.store.GetRecentTransactionsByPortfolio(ctx, portfolioID, historyLimit)
}

// resolvePrice prefers the cached quote, falling back to the price from the
// stocks table and priming the cache with it. Cache failures only log.
func (s *Service) resolvePrice(ctx context.Context, stockID int64, dbPrice decimal.Decimal) decimal.Decimal {
	if s.prices == nil {
		return dbPrice
	}

	cached, err := s.prices.GetPrice(ctx, stockID)
	if err == nil {
		return cached
	}

	if err := s.prices.SetPrice(ctx, stockID, dbPrice); err != nil {
		log.WithError(err).WithField("stock_id", stockID).Warn("failed to prime price cache")
	}
	return dbPrice
}

// buildView computes per-holding valuation fields and portfolio totals.
// Holdings arrive in stable id order and are sorted by descending market
// value; sort.SliceStable keeps the prior order on ties.
func buildView(portfolio *models.Portfolio, holdings []*models.HoldingView) *models.PortfolioView {
	view := &models.PortfolioView{
		Portfolio:            *portfolio,
		Holdings:             make([]*models.HoldingView, 0, len(holdings)),
		TotalValue:           decimal.Zero,
		TotalCost:            decimal.Zero,
		TotalGainLoss:        decimal.Zero,
		TotalGainLossPercent: decimal.Zero,
	}

	for _, h := range holdings {
		qty := decimal.NewFromInt(h.Quantity)
		h.MarketValue = qty.Mul(h.CurrentPrice)
		h.TotalGainLoss = h.CurrentPrice.Sub(h.AverageCost).Mul(qty)
		if h.AverageCost.IsZero() {
			h.GainLossPercent = decimal.Zero
		} else {
			h.GainLossPercent = h.CurrentPrice.Sub(h.AverageCost).Div(h.AverageCost).Mul(hundred)
		}

		view.Holdings = append(view.Holdings, h)
		view.TotalValue = view.TotalValue.Add(h.MarketValue)
		view.TotalCost = view.TotalCost.Add(h.AverageCost.Mul(qty))
	}

	sort.SliceStable(view.Holdings, func(i, j int) bool {
		return view.Holdings[i].MarketValue.GreaterThan(view.Holdings[j].MarketValue)
	})

	view.TotalGainLoss = view.TotalValue.Sub(view.TotalCost)
	if view.TotalCost.IsPositive() {
		view.TotalGainLossPercent = view.TotalGainLoss.Div(view.TotalCost).Mul(hundred)
	}

	return view
}
