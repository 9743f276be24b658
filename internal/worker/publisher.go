package worker

import (
	"context"
	"time"

	"github.com/jmehdipour/billing-backend/internal/metrics"
	"github.com/jmehdipour/billing-backend/internal/repository"
	"go.uber.org/zap"
)

// EventProducer publishes one event payload keyed by its event id.
type EventProducer interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// Publisher drains unpublished outbox rows to Kafka in batches.
type Publisher struct {
	outbox   repository.OutboxRepository
	producer EventProducer
	batch    int
	interval time.Duration
	logger   *zap.Logger
}

func NewPublisher(outbox repository.OutboxRepository, producer EventProducer, batchSize int, pollInterval time.Duration, logger *zap.Logger) *Publisher {
	if batchSize <= 0 {
		batchSize = 100
	}
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Publisher{
		outbox:   outbox,
		producer: producer,
		batch:    batchSize,
		interval: pollInterval,
		logger:   logger,
	}
}

// Run polls until ctx is cancelled. It sleeps for the poll interval
// whenever the outbox is drained or a cycle fails.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		n, err := p.Drain(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Error("outbox drain failed", zap.Error(err))
		}

		if n > 0 && err == nil {
			continue // keep going while there is backlog
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.interval):
		}
	}
}

// Drain publishes one batch and marks the rows that made it to Kafka.
// A mid-batch publish failure still marks the rows published before it,
// so the failed row is retried next cycle without duplicating the rest.
func (p *Publisher) Drain(ctx context.Context) (int, error) {
	rows, err := p.outbox.FetchUnpublished(ctx, p.batch)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	published := make([]int64, 0, len(rows))
	var pubErr error
	for _, row := range rows {
		if err := p.producer.Publish(ctx, row.AggregateID, row.Payload); err != nil {
			pubErr = err
			break
		}
		published = append(published, row.ID)
	}

	if len(published) > 0 {
		if err := p.outbox.MarkPublished(ctx, published); err != nil {
			// rows re-publish next cycle; consumers must dedupe on event id
			return len(published), err
		}
		metrics.EventsPublishedTotal.Add(float64(len(published)))
	}

	return len(published), pubErr
}
