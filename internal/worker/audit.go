package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmehdipour/billing-backend/internal/kafka"
	"github.com/jmehdipour/billing-backend/internal/model"
	"github.com/jmehdipour/billing-backend/internal/repository"
	"go.uber.org/zap"
)

// EventConsumer fetches and commits billing events from Kafka.
type EventConsumer interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, m kafka.Message) error
}

// Audit consumes billing events and appends them to the ClickHouse
// retention table. Offsets are committed only after the insert, so a
// crash replays rather than drops.
type Audit struct {
	consumer  EventConsumer
	sink      repository.AuditRepository
	logger    *zap.Logger
	retryWait time.Duration
}

func NewAudit(consumer EventConsumer, sink repository.AuditRepository, logger *zap.Logger) *Audit {
	return &Audit{consumer: consumer, sink: sink, logger: logger, retryWait: time.Second}
}

func (a *Audit) Run(ctx context.Context) error {
	for {
		m, err := a.consumer.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			a.logger.Error("fetch event failed", zap.Error(err))
			continue
		}

		var ev model.Event
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			// poison message: log, commit, move on
			a.logger.Warn("skip malformed event", zap.Error(err))
			_ = a.consumer.Commit(ctx, m)
			continue
		}

		// The reader hands out the next message on every fetch, so a
		// failed insert must be retried in place. Fetching past it and
		// committing a later offset would drop this event permanently.
		for {
			err := a.sink.Insert(ctx, ev)
			if err == nil {
				break
			}
			a.logger.Error("audit insert failed", zap.String("event_id", ev.ID), zap.Error(err))

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(a.retryWait):
			}
		}

		if err := a.consumer.Commit(ctx, m); err != nil {
			a.logger.Error("commit offset failed", zap.Error(err))
		}
	}
}
