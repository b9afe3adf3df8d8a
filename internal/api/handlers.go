package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/mdevan/portfolio-manager/internal/database"
	"github.com/mdevan/portfolio-manager/internal/ledger"
	"github.com/mdevan/portfolio-manager/internal/models"
)

// Store defines the direct database reads and writes the handlers need
type Store interface {
	GetAllPortfolios(ctx context.Context) ([]*models.Portfolio, error)
	GetAllStocks(ctx context.Context) ([]*models.Stock, error)
	UpdateStockPrice(ctx context.Context, id int64, price decimal.Decimal) (*models.Stock, error)
}

// Applier records transactions through the holdings ledger
type Applier interface {
	ApplyTransaction(ctx context.Context, req models.TransactionRequest) (*models.Transaction, *models.Holding, error)
}

// Valuator builds portfolio valuation and history views
type Valuator interface {
	ValuatePortfolio(ctx context.Context, portfolioID int64) (*models.PortfolioView, error)
	RecentTransactions(ctx context.Context, portfolioID int64) ([]*models.TransactionDetail, error)
}

// Publisher emits domain events; best-effort, never fails a request
type Publisher interface {
	PublishTransactionCreated(ctx context.Context, t *models.Transaction) error
	PublishPriceUpdated(ctx context.Context, stock *models.Stock) error
}

// PriceWriter mirrors accepted price updates into the quote cache so
// valuation never serves a quote older than the one just set
type PriceWriter interface {
	SetPrice(ctx context.Context, stockID int64, price decimal.Decimal) error
}

// HealthReporter exposes storage availability for the health endpoint and the
// degraded-mode middleware
type HealthReporter interface {
	Available() bool
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	store    Store
	ledger   Applier
	valuator Valuator
	producer Publisher
	prices   PriceWriter
	health   HealthReporter
}

// NewHandler creates a new Handler. producer may be nil when Kafka is
// disabled, prices when no cache is configured.
func NewHandler(store Store, ledger Applier, valuator Valuator, producer Publisher, prices PriceWriter, health HealthReporter) *Handler {
	return &Handler{
		store:    store,
		ledger:   ledger,
		valuator: valuator,
		producer: producer,
		prices:   prices,
		health:   health,
	}
}

// HealthCheck handles GET /api/health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status, db := "ok", "connected"
	if !h.health.Available() {
		status, db = "degraded", "disconnected"
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status":   status,
		"message":  "Portfolio Manager API is running",
		"database": db,
	})
}

// GetAllPortfolios handles GET /api/portfolios
func (h *Handler) GetAllPortfolios(w http.ResponseWriter, r *http.Request) {
	portfolios, err := h.store.GetAllPortfolios(r.Context())
	if err != nil {
		log.WithError(err).Error("failed to get portfolios")
		respondError(w, http.StatusInternalServerError, "Failed to get portfolios")
		return
	}
	if portfolios == nil {
		portfolios = []*models.Portfolio{}
	}
	respondJSON(w, http.StatusOK, portfolios)
}

// GetPortfolio handles GET /api/portfolios/{id}, returning the portfolio with
// its valued holdings and totals
func (h *Handler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)

	view, err := h.valuator.ValuatePortfolio(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Portfolio not found")
		return
	}
	if err != nil {
		log.WithError(err).Error("failed to valuate portfolio")
		respondError(w, http.StatusInternalServerError, "Failed to get portfolio")
		return
	}

	respondJSON(w, http.StatusOK, view)
}

// GetAllStocks handles GET /api/stocks
func (h *Handler) GetAllStocks(w http.ResponseWriter, r *http.Request) {
	stocks, err := h.store.GetAllStocks(r.Context())
	if err != nil {
		log.WithError(err).Error("failed to get stocks")
		respondError(w, http.StatusInternalServerError, "Failed to get stocks")
		return
	}
	if stocks == nil {
		stocks = []*models.Stock{}
	}
	respondJSON(w, http.StatusOK, stocks)
}

// GetPortfolioTransactions handles GET /api/portfolios/{id}/transactions
func (h *Handler) GetPortfolioTransactions(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)

	transactions, err := h.valuator.RecentTransactions(r.Context(), id)
	if err != nil {
		log.WithError(err).Error("failed to get transactions")
		respondError(w, http.StatusInternalServerError, "Failed to get transactions")
		return
	}
	if transactions == nil {
		transactions = []*models.TransactionDetail{}
	}
	respondJSON(w, http.StatusOK, transactions)
}

// CreateTransaction handles POST /api/transactions
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req models.TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	transaction, _, err := h.ledger.ApplyTransaction(r.Context(), req)
	if err != nil {
		var validationErr *models.ValidationError
		switch {
		case errors.As(err, &validationErr):
			respondError(w, http.StatusBadRequest, validationErr.Error())
		case errors.Is(err, ledger.ErrInsufficientShares):
			respondError(w, http.StatusBadRequest, "Insufficient shares to sell")
		case errors.Is(err, database.ErrNotFound):
			respondError(w, http.StatusNotFound, err.Error())
		default:
			log.WithError(err).Error("failed to create transaction")
			respondError(w, http.StatusInternalServerError, "Failed to create transaction")
		}
		return
	}

	if h.producer != nil {
		if err := h.producer.PublishTransactionCreated(r.Context(), transaction); err != nil {
			log.WithError(err).Warn("failed to publish transaction event")
		}
	}

	respondJSON(w, http.StatusCreated, transaction)
}

// UpdateStockPrice handles PUT /api/stocks/{id}/price
func (h *Handler) UpdateStockPrice(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)

	var req struct {
		Price decimal.Decimal `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Price.IsPositive() {
		respondError(w, http.StatusBadRequest, "invalid price: must be a positive number")
		return
	}

	stock, err := h.store.UpdateStockPrice(r.Context(), id, req.Price)
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Stock not found")
		return
	}
	if err != nil {
		log.WithError(err).Error("failed to update stock price")
		respondError(w, http.StatusInternalServerError, "Failed to update stock price")
		return
	}

	if h.prices != nil {
		if err := h.prices.SetPrice(r.Context(), stock.ID, stock.CurrentPrice); err != nil {
			log.WithError(err).WithField("symbol", stock.Symbol).Warn("failed to write price cache")
		}
	}

	if h.producer != nil {
		if err := h.producer.PublishPriceUpdated(r.Context(), stock); err != nil {
			log.WithError(err).Warn("failed to publish price event")
		}
	}

	respondJSON(w, http.StatusOK, stock)
}

// pathID extracts the numeric {id} path variable. Routes constrain {id} to
// digits, so parsing cannot fail on a matched route.
func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
