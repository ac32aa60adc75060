package fulfillment

import (
	"context"
	"time"

	kafkax "github.com/ariefcatur/go-voucher-orders/internal/kafka"
	"github.com/ariefcatur/go-voucher-orders/internal/orders"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/trace"
)

// Dispatcher hands a line to delivery. An error means the line was not
// handed off and the caller must fall back.
type Dispatcher interface {
	Dispatch(ctx context.Context, job Job) (LineState, error)
}

// InlineDispatcher delivers in the calling goroutine.
type InlineDispatcher struct{ Runner *Runner }

func (d InlineDispatcher) Dispatch(ctx context.Context, job Job) (LineState, error) {
	// delivery tetap jalan walau client HTTP sudah disconnect
	return d.Runner.Run(context.WithoutCancel(ctx), job), nil
}

type Sender interface {
	Send(ctx context.Context, key, value []byte, headers ...kafkago.Header) error
}

// KafkaDispatcher queues the line for the fulfillment worker.
type KafkaDispatcher struct {
	Producer Sender
	Service  string
}

func (d KafkaDispatcher) Dispatch(ctx context.Context, job Job) (LineState, error) {
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventFulfillmentRequested,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      d.Service,
		TraceID:       traceID(ctx),
		CorrelationID: job.OrderID,
		Payload:       kafkax.MustMarshal(job),
	}
	err := d.Producer.Send(ctx, orders.PartitionKey(job.OrderID), kafkax.MustMarshal(ev),
		kafkax.EventHeaders(orders.EventFulfillmentRequested, 1)...)
	if err != nil {
		return "", err
	}
	return StateDispatched, nil
}

func traceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
