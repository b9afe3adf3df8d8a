package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/mdevan/portfolio-manager/internal/database"
	"github.com/mdevan/portfolio-manager/internal/models"
)

// StockRepository defines the database operations the price feed consumer needs
type StockRepository interface {
	UpdateStockPriceBySymbol(ctx context.Context, symbol string, price decimal.Decimal) (*models.Stock, error)
}

// PriceWriter mirrors price updates into the quote cache
type PriceWriter interface {
	SetPrice(ctx context.Context, stockID int64, price decimal.Decimal) error
}

// Consumer ingests quote events from the external price feed and applies them
// to the stocks table, writing through to the price cache. Quotes for symbols
// we don't track are skipped.
type Consumer struct {
	reader *kafka.Reader
	repo   StockRepository
	prices PriceWriter
}

// NewConsumer creates a Kafka consumer for price update events. prices may be
// nil when no cache is configured.
func NewConsumer(brokers []string, topic, groupID string, repo StockRepository, prices PriceWriter) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.LastOffset,
		CommitInterval: time.Second,
	})

	return &Consumer{
		reader: reader,
		repo:   repo,
		prices: prices,
	}
}

// Start consumes messages until ctx is cancelled
func (c *Consumer) Start(ctx context.Context) error {
	log.WithField("topic", c.reader.Config().Topic).Info("starting price feed consumer")

	for {
		select {
		case <-ctx.Done():
			log.Info("price feed consumer shutting down")
			return c.reader.Close()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				log.WithError(err).Error("failed to read message")
				continue
			}

			if err := c.processMessage(ctx, msg); err != nil {
				log.WithError(err).Error("failed to process message")
				// Keep consuming; a bad quote must not stall the feed
			}
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) error {
	var event models.PriceUpdateEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal price event: %w", err)
	}

	if event.EventType != models.EventPriceUpdated {
		log.WithField("event_type", event.EventType).Debug("ignoring event")
		return nil
	}

	if !event.Price.IsPositive() {
		return fmt.Errorf("non-positive price %s for %s", event.Price, event.Symbol)
	}

	stock, err := c.repo.UpdateStockPriceBySymbol(ctx, event.Symbol, event.Price)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			log.WithField("symbol", event.Symbol).Debug("skipping quote for untracked symbol")
			return nil
		}
		return fmt.Errorf("failed to apply price update: %w", err)
	}

	if c.prices != nil {
		if err := c.prices.SetPrice(ctx, stock.ID, stock.CurrentPrice); err != nil {
			log.WithError(err).WithField("symbol", stock.Symbol).Warn("failed to write price cache")
		}
	}

	log.WithFields(log.Fields{
		"symbol": stock.Symbol,
		"price":  stock.CurrentPrice,
	}).Info("applied price update")

	return nil
}
