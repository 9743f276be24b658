package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmehdipour/billing-backend/internal/kafka"
	"github.com/jmehdipour/billing-backend/internal/model"
	"go.uber.org/zap"
)

// scriptedConsumer replays a fixed message sequence, then cancels the
// run context so Run returns.
type scriptedConsumer struct {
	msgs      []kafka.Message
	cancel    context.CancelFunc
	committed []int64
}

func (c *scriptedConsumer) Fetch(ctx context.Context) (kafka.Message, error) {
	if len(c.msgs) == 0 {
		c.cancel()
		return kafka.Message{}, ctx.Err()
	}
	m := c.msgs[0]
	c.msgs = c.msgs[1:]
	return m, nil
}

func (c *scriptedConsumer) Commit(ctx context.Context, m kafka.Message) error {
	c.committed = append(c.committed, m.Offset)
	return nil
}

// fakeSink fails each event id the configured number of times before
// accepting it.
type fakeSink struct {
	failures map[string]int
	inserted []model.Event
}

func (s *fakeSink) Insert(ctx context.Context, ev model.Event) error {
	if s.failures[ev.ID] > 0 {
		s.failures[ev.ID]--
		return errors.New("clickhouse unavailable")
	}
	s.inserted = append(s.inserted, ev)
	return nil
}

func msg(offset int64, value string) kafka.Message {
	return kafka.Message{Offset: offset, Value: []byte(value)}
}

func runAudit(t *testing.T, consumer *scriptedConsumer, sink *fakeSink, timeout time.Duration) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	consumer.cancel = cancel

	a := NewAudit(consumer, sink, zap.NewNop())
	a.retryWait = time.Millisecond

	if err := a.Run(ctx); !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestAudit_Run(t *testing.T) {
	t.Run("Inserts Then Commits", func(t *testing.T) {
		consumer := &scriptedConsumer{msgs: []kafka.Message{
			msg(1, `{"id":"ev-1","tenant_id":3,"op":"bill_added","bill_id":11,"amount":42.5}`),
			msg(2, `{"id":"ev-2","tenant_id":3,"op":"bill_deleted","bill_id":11}`),
		}}
		sink := &fakeSink{}

		runAudit(t, consumer, sink, time.Second)

		if len(sink.inserted) != 2 || sink.inserted[0].ID != "ev-1" || sink.inserted[1].Op != model.OpBillDeleted {
			t.Errorf("unexpected inserts %+v", sink.inserted)
		}
		if len(consumer.committed) != 2 {
			t.Errorf("expected both offsets committed, got %v", consumer.committed)
		}
	})

	t.Run("Malformed Event Is Committed And Skipped", func(t *testing.T) {
		consumer := &scriptedConsumer{msgs: []kafka.Message{
			msg(1, `not json`),
			msg(2, `{"id":"ev-2","op":"bill_added"}`),
		}}
		sink := &fakeSink{}

		runAudit(t, consumer, sink, time.Second)

		if len(sink.inserted) != 1 || sink.inserted[0].ID != "ev-2" {
			t.Errorf("expected only the valid event inserted, got %+v", sink.inserted)
		}
		if len(consumer.committed) != 2 {
			t.Errorf("poison messages must still be committed, got %v", consumer.committed)
		}
	})

	// Each fetch hands out the next message, so a failed insert has to
	// be retried in place. Fetching ahead and committing a later offset
	// would advance the group past the failed event and drop it.
	t.Run("Failed Insert Retries In Place", func(t *testing.T) {
		consumer := &scriptedConsumer{msgs: []kafka.Message{
			msg(10, `{"id":"ev-a","op":"bill_added"}`),
			msg(11, `{"id":"ev-b","op":"bill_added"}`),
		}}
		sink := &fakeSink{failures: map[string]int{"ev-a": 2}}

		runAudit(t, consumer, sink, time.Second)

		if len(sink.inserted) != 2 || sink.inserted[0].ID != "ev-a" || sink.inserted[1].ID != "ev-b" {
			t.Fatalf("expected ev-a inserted before ev-b, got %+v", sink.inserted)
		}
		if len(consumer.committed) != 2 || consumer.committed[0] != 10 || consumer.committed[1] != 11 {
			t.Errorf("expected offsets [10 11] committed in order, got %v", consumer.committed)
		}
	})

	t.Run("Persistent Sink Failure Blocks Without Committing", func(t *testing.T) {
		consumer := &scriptedConsumer{msgs: []kafka.Message{
			msg(10, `{"id":"ev-a","op":"bill_added"}`),
			msg(11, `{"id":"ev-b","op":"bill_added"}`),
		}}
		sink := &fakeSink{failures: map[string]int{"ev-a": 1 << 20}}

		runAudit(t, consumer, sink, 50*time.Millisecond)

		if len(sink.inserted) != 0 {
			t.Errorf("expected no inserts, got %+v", sink.inserted)
		}
		if len(consumer.committed) != 0 {
			t.Errorf("no offset may be committed past the failed event, got %v", consumer.committed)
		}
		if len(consumer.msgs) != 1 {
			t.Errorf("the worker must not fetch past the failed event, %d messages left", len(consumer.msgs))
		}
	})
}
