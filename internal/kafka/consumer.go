package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler harus return nil hanya jika proses sukses & boleh commit offset.
type Handler func(ctx context.Context, m kafka.Message) error

type Consumer struct {
	r       *kafka.Reader
	workers int
	log     *zap.Logger

	retryInitial time.Duration
	retryMax     time.Duration
}

func NewConsumer(brokers []string, group, topic string, workers int, log *zap.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{
		r:            r,
		workers:      workers,
		log:          log.With(zap.String("topic", topic), zap.String("group", group)),
		retryInitial: 200 * time.Millisecond,
		retryMax:     30 * time.Second,
	}
}

// Start blocks until ctx is cancelled or the reader fails. Workers are
// drained before the reader is closed.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	jobs := make(chan kafka.Message, c.workers)
	var wg sync.WaitGroup

	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for m := range jobs {
				if err := c.handle(ctx, id, h, m); err != nil {
					// hanya saat shutdown: offset tidak di-commit, pesan dikirim ulang nanti
					c.log.Warn("handler stopped, offset not committed",
						zap.Int("worker", id), zap.Int64("offset", m.Offset), zap.Error(err))
					continue
				}
				if err := c.r.CommitMessages(ctx, m); err != nil {
					c.log.Warn("commit failed", zap.Int64("offset", m.Offset), zap.Error(err))
				}
			}
		}(i)
	}

	defer func() {
		close(jobs)
		wg.Wait()
		if err := c.r.Close(); err != nil {
			c.log.Warn("reader close", zap.Error(err))
		}
	}()

	// fetch loop (FetchMessage: commit manual oleh worker)
	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			// kecilkan noise saat shutdown
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case jobs <- m:
		case <-ctx.Done():
			return nil
		}
	}
}

// handle retries h on the same message until it succeeds or ctx is done.
// Offsets are cumulative, so skipping a failed message and committing a later
// one would lose it for good.
func (c *Consumer) handle(ctx context.Context, worker int, h Handler, m kafka.Message) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryInitial
	bo.MaxInterval = c.retryMax

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		if err := h(ctx, m); err != nil {
			c.log.Warn("handler error, retrying same message",
				zap.Int("worker", worker),
				zap.Int64("offset", m.Offset),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return struct{}{}, err
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxElapsedTime(0),
	)
	return err
}
