package fulfillment

import (
	"context"
	"errors"
	"testing"

	kafkax "github.com/ariefcatur/go-voucher-orders/internal/kafka"
	"github.com/ariefcatur/go-voucher-orders/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSender struct {
	key, value []byte
	headers    []kafkago.Header
	err        error
}

func (c *captureSender) Send(_ context.Context, key, value []byte, headers ...kafkago.Header) error {
	c.key, c.value, c.headers = key, value, headers
	return c.err
}

func TestKafkaDispatcherQueuesJob(t *testing.T) {
	s := &captureSender{}
	d := KafkaDispatcher{Producer: s, Service: "voucher-api"}
	job := rechargeJob()

	state, err := d.Dispatch(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, StateDispatched, state)
	assert.Equal(t, "o1", string(s.key))

	env, err := kafkax.UnwrapPayload[orders.Envelope](s.value)
	require.NoError(t, err)
	assert.Equal(t, orders.EventFulfillmentRequested, env.EventType)
	assert.Equal(t, "voucher-api", env.Producer)
	assert.Equal(t, "o1", env.CorrelationID)
	assert.NotEmpty(t, env.EventID)

	got, err := kafkax.UnwrapPayload[Job](env.Payload)
	require.NoError(t, err)
	assert.Equal(t, job, got)

	m := kafkago.Message{Headers: s.headers}
	assert.Equal(t, orders.EventFulfillmentRequested, kafkax.Header(m, "x-event-type"))
}

func TestKafkaDispatcherError(t *testing.T) {
	s := &captureSender{err: errors.New("leader not available")}
	_, err := KafkaDispatcher{Producer: s}.Dispatch(context.Background(), rechargeJob())
	assert.EqualError(t, err, "leader not available")
}

func TestInlineDispatcherIgnoresCallerCancel(t *testing.T) {
	n := &fakeNotifier{}
	r, _, _ := newRunner(t, n)
	job := rechargeJob()
	job.Strategy = CodeEmail

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	state, err := InlineDispatcher{Runner: r}.Dispatch(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, StateCodeSent, state)
}
