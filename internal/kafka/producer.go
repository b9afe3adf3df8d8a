package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/mdevan/portfolio-manager/internal/models"
)

// Producer publishes portfolio domain events to Kafka
type Producer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}

	return &Producer{
		writer: writer,
		topic:  topic,
	}
}

// PublishTransactionCreated publishes an event for a recorded transaction
func (p *Producer) PublishTransactionCreated(ctx context.Context, t *models.Transaction) error {
	event := models.PortfolioEvent{
		EventType:   models.EventTransactionCreated,
		Transaction: t,
		Timestamp:   time.Now(),
	}
	return p.publish(ctx, fmt.Sprintf("portfolio-%d", t.PortfolioID), event)
}

// PublishPriceUpdated publishes an event for a stock price change
func (p *Producer) PublishPriceUpdated(ctx context.Context, stock *models.Stock) error {
	event := models.PortfolioEvent{
		EventType: models.EventPriceUpdated,
		Stock:     stock,
		Timestamp: time.Now(),
	}
	return p.publish(ctx, stock.Symbol, event)
}

func (p *Producer) publish(ctx context.Context, key string, event models.PortfolioEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	return nil
}

// Close closes the Kafka producer
func (p *Producer) Close() error {
	return p.writer.Close()
}
