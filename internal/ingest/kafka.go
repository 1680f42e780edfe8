// Package ingest consumes raw readings from a Kafka topic and feeds them
// into the telemetry pipeline. The consumer is optional; deployments without
// a broker rely on the monitoring loops and the HTTP API alone.
package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Shopify/sarama"

	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/config"
	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/logger"
	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/models"
)

// Ingester accepts one raw reading. Satisfied by the telemetry service.
type Ingester interface {
	Ingest(ctx context.Context, raw *models.RawReading) (*models.Reading, error)
}

// Consumer reads JSON-encoded raw readings from a Kafka topic through a
// consumer group.
type Consumer struct {
	cfg      config.KafkaConfig
	group    sarama.ConsumerGroup
	ingester Ingester
}

// NewConsumer connects a consumer group to the configured brokers.
func NewConsumer(cfg config.KafkaConfig, ingester Ingester) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Consumer.Return.Errors = true
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	saramaConfig.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	saramaConfig.Consumer.MaxWaitTime = 250 * time.Millisecond

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, err
	}

	return &Consumer{
		cfg:      cfg,
		group:    group,
		ingester: ingester,
	}, nil
}

// Consume runs the consumer loop until the context is cancelled.
func (c *Consumer) Consume(ctx context.Context) error {
	errorChan := make(chan error, 1)
	go func() {
		for err := range c.group.Errors() {
			logger.Warn("kafka consumer error", "error", err)
			select {
			case errorChan <- err:
			default:
			}
		}
	}()

	handler := &groupHandler{consumer: c, ctx: ctx}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errorChan:
			return err
		default:
			if err := c.group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil {
				if err == context.Canceled {
					return nil
				}
				return err
			}
		}
	}
}

// Close shuts down the consumer group.
func (c *Consumer) Close() error {
	return c.group.Close()
}

// groupHandler implements sarama.ConsumerGroupHandler.
type groupHandler struct {
	consumer *Consumer
	ctx      context.Context
}

func (h *groupHandler) Setup(_ sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(_ sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		if h.ctx.Err() != nil {
			return h.ctx.Err()
		}

		var raw models.RawReading
		if err := json.Unmarshal(message.Value, &raw); err != nil {
			logger.Warn("dropping undecodable message", "topic", message.Topic, "offset", message.Offset, "error", err)
			session.MarkMessage(message, "")
			continue
		}

		// Validation failures are not retriable; mark and move on either way.
		if _, err := h.consumer.ingester.Ingest(h.ctx, &raw); err != nil {
			logger.Warn("dropping rejected reading", "meter", raw.MeterID, "error", err)
		}
		session.MarkMessage(message, "")
	}
	return nil
}
