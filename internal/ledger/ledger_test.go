package ledger

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdevan/portfolio-manager/internal/database"
	"github.com/mdevan/portfolio-manager/internal/models"
)

// MockStore implements the Store interface for testing. ApplyTransaction
// mirrors the atomic semantics of the real store: a fold error persists
// neither the transaction nor the holding.
type MockStore struct {
	portfolios   map[int64]*models.Portfolio
	stocks       map[int64]*models.Stock
	holdings     map[string]*models.Holding // key: portfolioID:stockID
	transactions []*models.Transaction
	nextID       int64
}

func NewMockStore() *MockStore {
	return &MockStore{
		portfolios: map[int64]*models.Portfolio{1: {ID: 1, Name: "My Portfolio"}},
		stocks:     map[int64]*models.Stock{1: {ID: 1, Symbol: "AAPL", Name: "Apple Inc."}},
		holdings:   make(map[string]*models.Holding),
		nextID:     1,
	}
}

func (m *MockStore) GetPortfolioByID(ctx context.Context, id int64) (*models.Portfolio, error) {
	p, ok := m.portfolios[id]
	if !ok {
		return nil, fmt.Errorf("portfolio %d: %w", id, database.ErrNotFound)
	}
	return p, nil
}

func (m *MockStore) GetStockByID(ctx context.Context, id int64) (*models.Stock, error) {
	s, ok := m.stocks[id]
	if !ok {
		return nil, fmt.Errorf("stock %d: %w", id, database.ErrNotFound)
	}
	return s, nil
}

func (m *MockStore) ApplyTransaction(ctx context.Context, t *models.Transaction, fold func(current *models.Holding) (*models.Holding, error)) (*models.Holding, error) {
	key := fmt.Sprintf("%d:%d", t.PortfolioID, t.StockID)

	updated, err := fold(m.holdings[key])
	if err != nil {
		return nil, err
	}

	t.ID = m.nextID
	m.nextID++
	m.transactions = append(m.transactions, t)

	if updated.ID == 0 {
		updated.ID = m.nextID
		m.nextID++
	}
	m.holdings[key] = updated
	return updated, nil
}

func (m *MockStore) holding(portfolioID, stockID int64) *models.Holding {
	return m.holdings[fmt.Sprintf("%d:%d", portfolioID, stockID)]
}

func buyReq(qty int64, price float64) models.TransactionRequest {
	return models.TransactionRequest{
		PortfolioID:     1,
		StockID:         1,
		TransactionType: models.TransactionTypeBuy,
		Quantity:        qty,
		PricePerShare:   decimal.NewFromFloat(price),
	}
}

func sellReq(qty int64, price float64) models.TransactionRequest {
	r := buyReq(qty, price)
	r.TransactionType = models.TransactionTypeSell
	return r
}

func TestBuyCreatesHolding(t *testing.T) {
	store := NewMockStore()
	l := New(store)

	transaction, holding, err := l.ApplyTransaction(context.Background(), buyReq(10, 100))
	require.NoError(t, err)

	assert.NotZero(t, transaction.ID)
	assert.Equal(t, models.TransactionTypeBuy, transaction.TransactionType)
	assert.Equal(t, int64(10), holding.Quantity)
	assert.True(t, holding.AverageCost.Equal(decimal.NewFromInt(100)),
		"expected average cost 100, got %s", holding.AverageCost)
}

func TestBuyRecomputesWeightedAverage(t *testing.T) {
	store := NewMockStore()
	l := New(store)

	// BUY 10 @ 100 then BUY 10 @ 200 -> 20 shares @ 150
	_, _, err := l.ApplyTransaction(context.Background(), buyReq(10, 100))
	require.NoError(t, err)

	_, holding, err := l.ApplyTransaction(context.Background(), buyReq(10, 200))
	require.NoError(t, err)

	assert.Equal(t, int64(20), holding.Quantity)
	assert.True(t, holding.AverageCost.Equal(decimal.NewFromInt(150)),
		"expected average cost 150, got %s", holding.AverageCost)
}

func TestBuySequenceAccumulates(t *testing.T) {
	store := NewMockStore()
	l := New(store)

	buys := []struct {
		qty   int64
		price float64
	}{
		{5, 100}, {3, 120}, {7, 95}, {1, 300},
	}

	var totalQty int64
	totalCost := decimal.Zero
	for _, b := range buys {
		_, _, err := l.ApplyTransaction(context.Background(), buyReq(b.qty, b.price))
		require.NoError(t, err)
		totalQty += b.qty
		totalCost = totalCost.Add(decimal.NewFromInt(b.qty).Mul(decimal.NewFromFloat(b.price)))
	}

	holding := store.holding(1, 1)
	require.NotNil(t, holding)
	assert.Equal(t, totalQty, holding.Quantity)

	// Incremental folds round at decimal.DivisionPrecision, so compare
	// against the direct quotient with a tolerance.
	expectedAvg := totalCost.Div(decimal.NewFromInt(totalQty))
	diff := holding.AverageCost.Sub(expectedAvg).Abs()
	assert.True(t, diff.LessThan(decimal.New(1, -9)),
		"expected average cost ~%s, got %s", expectedAvg, holding.AverageCost)
}

// The weighted average is a sum over the multiset of (qty, price) pairs, so
// the resulting cost basis must not depend on buy order.
func TestWeightedAverageIsOrderInvariant(t *testing.T) {
	buys := []struct {
		qty   int64
		price float64
	}{
		{10, 50}, {4, 212.5}, {25, 99.99}, {1, 1000}, {60, 75.25},
	}

	run := func(order []int) decimal.Decimal {
		store := NewMockStore()
		l := New(store)
		for _, i := range order {
			_, _, err := l.ApplyTransaction(context.Background(), buyReq(buys[i].qty, buys[i].price))
			require.NoError(t, err)
		}
		return store.holding(1, 1).AverageCost
	}

	base := run([]int{0, 1, 2, 3, 4})
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 10; trial++ {
		order := rng.Perm(len(buys))
		got := run(order)
		diff := got.Sub(base).Abs()
		assert.True(t, diff.LessThan(decimal.New(1, -9)),
			"order %v: expected average cost ~%s, got %s", order, base, got)
	}
}

func TestSellReducesQuantityKeepsAverageCost(t *testing.T) {
	store := NewMockStore()
	l := New(store)

	_, _, err := l.ApplyTransaction(context.Background(), buyReq(10, 100))
	require.NoError(t, err)
	_, _, err = l.ApplyTransaction(context.Background(), buyReq(10, 200))
	require.NoError(t, err)

	_, holding, err := l.ApplyTransaction(context.Background(), sellReq(5, 180))
	require.NoError(t, err)

	assert.Equal(t, int64(15), holding.Quantity)
	assert.True(t, holding.AverageCost.Equal(decimal.NewFromInt(150)),
		"sell must not change average cost, got %s", holding.AverageCost)
}

func TestSellToZeroKeepsHolding(t *testing.T) {
	store := NewMockStore()
	l := New(store)

	_, _, err := l.ApplyTransaction(context.Background(), buyReq(5, 100))
	require.NoError(t, err)

	_, holding, err := l.ApplyTransaction(context.Background(), sellReq(5, 110))
	require.NoError(t, err)

	assert.Equal(t, int64(0), holding.Quantity)
	// The holding row survives at quantity 0
	assert.NotNil(t, store.holding(1, 1))
}

func TestSellMoreThanHeldFails(t *testing.T) {
	store := NewMockStore()
	l := New(store)

	_, _, err := l.ApplyTransaction(context.Background(), buyReq(5, 100))
	require.NoError(t, err)

	_, _, err = l.ApplyTransaction(context.Background(), sellReq(10, 110))
	require.ErrorIs(t, err, ErrInsufficientShares)

	// Holding unchanged, no transaction appended for the failed sell
	holding := store.holding(1, 1)
	assert.Equal(t, int64(5), holding.Quantity)
	assert.True(t, holding.AverageCost.Equal(decimal.NewFromInt(100)))
	assert.Len(t, store.transactions, 1)
}

func TestSellWithoutHoldingFails(t *testing.T) {
	store := NewMockStore()
	l := New(store)

	_, _, err := l.ApplyTransaction(context.Background(), sellReq(1, 100))
	require.ErrorIs(t, err, ErrInsufficientShares)
	assert.Empty(t, store.transactions)
	assert.Nil(t, store.holding(1, 1))
}

func TestSellPastZeroAfterFullExitFails(t *testing.T) {
	store := NewMockStore()
	l := New(store)

	_, _, err := l.ApplyTransaction(context.Background(), buyReq(5, 100))
	require.NoError(t, err)
	_, _, err = l.ApplyTransaction(context.Background(), sellReq(5, 100))
	require.NoError(t, err)

	_, _, err = l.ApplyTransaction(context.Background(), sellReq(1, 100))
	require.ErrorIs(t, err, ErrInsufficientShares)
	assert.Equal(t, int64(0), store.holding(1, 1).Quantity)
}

func TestValidationRejectsBadRequests(t *testing.T) {
	store := NewMockStore()
	l := New(store)

	tests := []struct {
		name string
		req  models.TransactionRequest
	}{
		{"zero quantity", models.TransactionRequest{PortfolioID: 1, StockID: 1, TransactionType: "BUY", Quantity: 0, PricePerShare: decimal.NewFromInt(100)}},
		{"negative quantity", models.TransactionRequest{PortfolioID: 1, StockID: 1, TransactionType: "BUY", Quantity: -5, PricePerShare: decimal.NewFromInt(100)}},
		{"zero price", models.TransactionRequest{PortfolioID: 1, StockID: 1, TransactionType: "BUY", Quantity: 10, PricePerShare: decimal.Zero}},
		{"negative price", models.TransactionRequest{PortfolioID: 1, StockID: 1, TransactionType: "SELL", Quantity: 10, PricePerShare: decimal.NewFromInt(-1)}},
		{"unknown type", models.TransactionRequest{PortfolioID: 1, StockID: 1, TransactionType: "SHORT", Quantity: 10, PricePerShare: decimal.NewFromInt(100)}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := l.ApplyTransaction(context.Background(), tc.req)
			var validationErr *models.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Empty(t, store.transactions)
		})
	}
}

func TestUnknownReferencesPropagateNotFound(t *testing.T) {
	store := NewMockStore()
	l := New(store)

	req := buyReq(10, 100)
	req.PortfolioID = 99
	_, _, err := l.ApplyTransaction(context.Background(), req)
	require.ErrorIs(t, err, database.ErrNotFound)

	req = buyReq(10, 100)
	req.StockID = 99
	_, _, err = l.ApplyTransaction(context.Background(), req)
	require.ErrorIs(t, err, database.ErrNotFound)

	assert.Empty(t, store.transactions)
}

// Many small buys at awkward prices must not drift the cost basis: the fold
// uses decimal arithmetic, so the tracked average times the quantity stays
// within rounding distance of the invested amount even after hundreds of
// transactions.
func TestCostBasisStableOverManyTransactions(t *testing.T) {
	store := NewMockStore()
	l := New(store)

	invested := decimal.Zero
	var totalQty int64
	for i := 0; i < 500; i++ {
		qty := int64(i%7 + 1)
		price := decimal.NewFromFloat(0.01).Mul(decimal.NewFromInt(int64(i%997 + 1)))
		req := models.TransactionRequest{
			PortfolioID:     1,
			StockID:         1,
			TransactionType: models.TransactionTypeBuy,
			Quantity:        qty,
			PricePerShare:   price,
		}
		_, _, err := l.ApplyTransaction(context.Background(), req)
		require.NoError(t, err)

		invested = invested.Add(price.Mul(decimal.NewFromInt(qty)))
		totalQty += qty
	}

	holding := store.holding(1, 1)
	reconstructed := holding.AverageCost.Mul(decimal.NewFromInt(totalQty))
	diff := reconstructed.Sub(invested).Abs()
	assert.True(t, diff.LessThan(decimal.New(1, -6)),
		"expected invested ~%s, reconstructed %s", invested, reconstructed)
}
