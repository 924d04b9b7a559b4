package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"kuberafi/internal/config"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes order events keyed by order id so every event of one
// order lands on the same partition.
type KafkaPublisher struct {
	writer messageWriter
	logger *zap.Logger
}

func NewKafkaPublisher(cfg config.KafkaConfig, logger *zap.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
	if logger != nil {
		w.ErrorLogger = kafka.LoggerFunc(logger.Sugar().Errorf)
	}
	return &KafkaPublisher{writer: w, logger: logger}
}

func (p *KafkaPublisher) Publish(ctx context.Context, evt OrderCompleted) error {
	value, err := evt.Encode()
	if err != nil {
		return fmt.Errorf("encode order event: %w", err)
	}
	msg := kafka.Message{
		Key:   evt.Key(),
		Value: value,
		Time:  evt.RequestedAt,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(evt.EventID)},
			{Key: "source", Value: []byte(evt.Source)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish order %d: %w", evt.OrderID, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// KafkaConsumer feeds the settlement worker. Offsets are committed after the
// handler returns, so a crash mid-settlement redelivers the event.
type KafkaConsumer struct {
	reader messageReader
	handle HandlerFunc
	logger *zap.Logger
}

func NewKafkaConsumer(cfg config.KafkaConfig, handle HandlerFunc, logger *zap.Logger) *KafkaConsumer {
	rc := kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: cfg.MinBytes,
		MaxBytes: cfg.MaxBytes,
		MaxWait:  cfg.MaxWait,
	}
	if logger != nil {
		rc.Logger = kafka.LoggerFunc(logger.Sugar().Debugf)
		rc.ErrorLogger = kafka.LoggerFunc(logger.Sugar().Errorf)
	}
	return &KafkaConsumer{reader: kafka.NewReader(rc), handle: handle, logger: logger}
}

func (c *KafkaConsumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("fetch order event: %w", err)
		}

		evt, err := DecodeOrderCompleted(msg.Value)
		if err != nil {
			if c.logger != nil {
				c.logger.Error("dropping undecodable order event",
					zap.Int("partition", msg.Partition),
					zap.Int64("offset", msg.Offset),
					zap.Error(err),
				)
			}
		} else if err := c.handle(ctx, evt); err != nil {
			// Leave the offset uncommitted; the group rebalances or restarts
			// from here.
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("handle order %d: %w", evt.OrderID, err)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit offset %d: %w", msg.Offset, err)
		}
	}
}

func (c *KafkaConsumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}
