// Package ingest feeds fixes published on a Kafka topic into the engine.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"visitlog/internal/export"
	"visitlog/internal/visits"
)

// MessageReader is the part of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Recorder accepts fixes. *visits.Engine implements it.
type Recorder interface {
	Record(ctx context.Context, fix visits.Fix) (int64, error)
}

// NewReader returns a group reader with manual commits, starting at the
// oldest retained offset for a new group.
func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0,
		StartOffset:    kafka.FirstOffset,
	})
}

// Stats counts what the consumer did with messages.
type Stats struct {
	Recorded int
	Skipped  int
	Retries  int
}

// Consumer reads RawFixRecord JSON messages and records them one at a time.
// An offset is committed once its fix is stored or rejected as invalid;
// transient storage errors are retried with backoff and nothing is committed
// until they clear.
type Consumer struct {
	reader MessageReader
	rec    Recorder
	logger *zap.Logger

	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	stats Stats
}

// NewConsumer returns a consumer reading from reader and recording into rec.
func NewConsumer(reader MessageReader, rec Recorder, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{
		reader:         reader,
		rec:            rec,
		logger:         logger,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
	}
}

// Run consumes until ctx is cancelled, returning nil, or until a fix fails
// with an error that retrying cannot fix, returning that error uncommitted.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("kafka consumer started")
	defer c.logger.Info("kafka consumer stopped", zap.Int("recorded", c.stats.Recorded), zap.Int("skipped", c.stats.Skipped))

	backoff := c.InitialBackoff
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Warn("fetch message failed", zap.Error(err), zap.Duration("backoff", backoff))
			if !sleep(ctx, backoff) {
				return nil
			}
			backoff = c.nextBackoff(backoff)
			continue
		}
		backoff = c.InitialBackoff

		if err := c.handle(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// Stats returns the running counters. It is not safe to call concurrently with Run.
func (c *Consumer) Stats() Stats {
	return c.stats
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	log := c.logger.With(zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset))

	fix, err := decode(msg.Value)
	if err != nil {
		log.Warn("skipping undecodable message", zap.Error(err))
		c.stats.Skipped++
		return c.commit(ctx, msg)
	}

	backoff := c.InitialBackoff
	for {
		placeID, err := c.rec.Record(ctx, fix)
		switch {
		case err == nil:
			c.stats.Recorded++
			log.Debug("fix consumed", zap.Int64("place_id", placeID))
			return c.commit(ctx, msg)

		case errors.Is(err, visits.ErrWriteConflict), errors.Is(err, visits.ErrStorageUnavailable):
			c.stats.Retries++
			log.Warn("record failed, retrying", zap.String("kind", visits.Kind(err)), zap.Duration("backoff", backoff), zap.Error(err))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = c.nextBackoff(backoff)

		case errors.Is(err, visits.ErrInvalidInput):
			// Fails the same way on every redelivery.
			c.stats.Skipped++
			log.Warn("skipping invalid fix", zap.Error(err))
			return c.commit(ctx, msg)

		default:
			// Leave the offset uncommitted so the fix is redelivered after restart.
			log.Error("record failed, stopping", zap.String("kind", visits.Kind(err)), zap.Error(err))
			return fmt.Errorf("record offset %d: %w", msg.Offset, err)
		}
	}
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) error {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to commit offset %d: %w", msg.Offset, err)
	}
	return nil
}

func (c *Consumer) nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > c.MaxBackoff {
		d = c.MaxBackoff
	}
	return d
}

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

func decode(value []byte) (visits.Fix, error) {
	var rec export.RawFixRecord
	if err := json.Unmarshal(value, &rec); err != nil {
		return visits.Fix{}, fmt.Errorf("failed to decode fix: %w", err)
	}
	return rec.ToFix(), nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
