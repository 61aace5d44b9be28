package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/phuslu/log"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/trogers1052/factor-analysis-service/internal/models"
)

// readErrorBackoff throttles retries after a failed read
const readErrorBackoff = time.Second

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Config() kafka.ReaderConfig
	Close() error
}

func newReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: time.Second,
	})
}

// consume reads messages until ctx is cancelled. Handler errors are logged and the
// message is skipped.
func consume(ctx context.Context, reader messageReader, logger *log.Logger, handle func(context.Context, kafka.Message) error) error {
	topic := reader.Config().Topic
	logger.Info().Str("topic", topic).Msg("Starting Kafka consumer")

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info().Str("topic", topic).Msg("Kafka consumer shutting down")
				return reader.Close()
			}
			logger.Error().Err(err).Str("topic", topic).Msg("Error reading message")
			select {
			case <-ctx.Done():
			case <-time.After(readErrorBackoff):
			}
			continue
		}

		if err := handle(ctx, msg); err != nil {
			logger.Error().Err(err).
				Str("topic", topic).
				Int("partition", msg.Partition).
				Int64("offset", msg.Offset).
				Msg("Error processing message")
		}
	}
}

// PriceRepository stores daily bars
type PriceRepository interface {
	CreatePriceDataBatch(ctx context.Context, prices []*models.PriceDataDaily) error
}

// CacheInvalidator drops cached price ranges of a symbol
type CacheInvalidator interface {
	Invalidate(ctx context.Context, symbol string) error
}

// PriceConsumer ingests daily bars for stocks and indices from Kafka
type PriceConsumer struct {
	reader messageReader
	repo   PriceRepository
	cache  CacheInvalidator
	logger *log.Logger
}

// NewPriceConsumer creates a consumer for price bar events. cache may be nil.
func NewPriceConsumer(brokers []string, topic, groupID string, repo PriceRepository, cache CacheInvalidator) *PriceConsumer {
	return newPriceConsumer(newReader(brokers, topic, groupID), repo, cache)
}

func newPriceConsumer(reader messageReader, repo PriceRepository, cache CacheInvalidator) *PriceConsumer {
	return &PriceConsumer{
		reader: reader,
		repo:   repo,
		cache:  cache,
		logger: &log.DefaultLogger,
	}
}

// WithLogger sets the logger
func (c *PriceConsumer) WithLogger(logger *log.Logger) *PriceConsumer {
	c.logger = logger
	return c
}

// Start consumes until ctx is cancelled
func (c *PriceConsumer) Start(ctx context.Context) error {
	return consume(ctx, c.reader, c.logger, c.processMessage)
}

func (c *PriceConsumer) processMessage(ctx context.Context, msg kafka.Message) error {
	var event models.PriceBarsEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal price bars event: %w", err)
	}

	if event.EventType != models.EventPriceBars {
		c.logger.Debug().Str("event_type", event.EventType).Msg("Ignoring event type")
		return nil
	}

	prices := make([]*models.PriceDataDaily, 0, len(event.Bars))
	for _, bar := range event.Bars {
		p, err := convertBar(bar)
		if err != nil {
			return fmt.Errorf("failed to convert bar for %s: %w", bar.Symbol, err)
		}
		prices = append(prices, p)
	}
	if len(prices) == 0 {
		return nil
	}

	if err := c.repo.CreatePriceDataBatch(ctx, prices); err != nil {
		return fmt.Errorf("failed to save price bars: %w", err)
	}

	symbols := make(map[string]struct{}, len(prices))
	for _, p := range prices {
		symbols[p.Symbol] = struct{}{}
	}
	if c.cache != nil {
		for symbol := range symbols {
			if err := c.cache.Invalidate(ctx, symbol); err != nil {
				c.logger.Warn().Err(err).Str("symbol", symbol).Msg("Failed to invalidate cached prices")
			}
		}
	}

	c.logger.Info().
		Str("source", event.Source).
		Int("bars", len(prices)).
		Int("symbols", len(symbols)).
		Msg("Saved price bars")
	return nil
}

// convertBar maps a wire bar onto a stored row
func convertBar(bar models.PriceBar) (*models.PriceDataDaily, error) {
	if bar.Symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	date, err := time.Parse(models.DateFormat, bar.Date)
	if err != nil {
		return nil, fmt.Errorf("invalid date %s: %w", bar.Date, err)
	}

	p := &models.PriceDataDaily{Symbol: bar.Symbol, Date: date, Volume: bar.Volume}
	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"open", bar.Open, &p.Open},
		{"high", bar.High, &p.High},
		{"low", bar.Low, &p.Low},
		{"close", bar.Close, &p.Close},
	}
	for _, f := range fields {
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = v
	}
	if !p.Close.IsPositive() {
		return nil, fmt.Errorf("close must be positive, got %s", p.Close)
	}

	if bar.VWAP != "" {
		if p.VWAP, err = decimal.NewFromString(bar.VWAP); err != nil {
			return nil, fmt.Errorf("invalid vwap %q: %w", bar.VWAP, err)
		}
	}
	return p, nil
}

// Close closes the Kafka consumer
func (c *PriceConsumer) Close() error {
	return c.reader.Close()
}
