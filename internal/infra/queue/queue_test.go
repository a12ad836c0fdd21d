package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockChannel struct {
	mock.Mock
}

func (m *MockChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	args := m.Called(ctx, exchange, key, msg)
	return args.Error(0)
}

func (m *MockChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	ret := m.Called(queue)
	if ret.Get(0) == nil {
		return nil, ret.Error(1)
	}
	return ret.Get(0).(<-chan amqp.Delivery), ret.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendNewLeadAlert(ctx context.Context, event LeadEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// ackRecorder stands in for the broker side of a delivery.
type ackRecorder struct {
	acks    []uint64
	nacks   []uint64
	requeue []bool
}

func (a *ackRecorder) Ack(tag uint64, multiple bool) error {
	a.acks = append(a.acks, tag)
	return nil
}

func (a *ackRecorder) Nack(tag uint64, multiple, requeue bool) error {
	a.nacks = append(a.nacks, tag)
	a.requeue = append(a.requeue, requeue)
	return nil
}

func (a *ackRecorder) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func delivery(acker *ackRecorder, tag uint64, body []byte) amqp.Delivery {
	return amqp.Delivery{Acknowledger: acker, DeliveryTag: tag, Body: body}
}

func TestPublishLeadSubmitted(t *testing.T) {
	ch := new(MockChannel)
	producer := &Producer{ch: ch}
	event := LeadEvent{EventID: "ev-1", LeadID: "777", Created: true, Phone: "919876543210", FormType: "contact_us"}

	ch.On("PublishWithContext", mock.Anything, ExchangeName, RoutingKey, mock.MatchedBy(func(p amqp.Publishing) bool {
		var got LeadEvent
		return p.DeliveryMode == amqp.Persistent &&
			p.MessageId == "ev-1" &&
			json.Unmarshal(p.Body, &got) == nil && got.LeadID == "777"
	})).Return(nil)

	require.NoError(t, producer.PublishLeadSubmitted(context.Background(), event))
	ch.AssertExpectations(t)
}

func TestPublishLeadSubmittedWrapsError(t *testing.T) {
	ch := new(MockChannel)
	ch.On("PublishWithContext", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(amqp.ErrClosed)

	err := (&Producer{ch: ch}).PublishLeadSubmitted(context.Background(), LeadEvent{})

	assert.ErrorIs(t, err, amqp.ErrClosed)
}

func TestWorkerHandlesDeliveries(t *testing.T) {
	notifier := new(MockNotifier)
	var failures []string
	w := &Worker{notifier: notifier, logger: zap.NewNop(), onError: func(s string) { failures = append(failures, s) }}
	acker := &ackRecorder{}

	created, _ := json.Marshal(LeadEvent{EventID: "1", LeadID: "777", Created: true})
	updated, _ := json.Marshal(LeadEvent{EventID: "2", LeadID: "777", Created: false})
	failing, _ := json.Marshal(LeadEvent{EventID: "3", LeadID: "778", Created: true})

	notifier.On("SendNewLeadAlert", mock.Anything, mock.MatchedBy(func(e LeadEvent) bool { return e.EventID == "1" })).Return(nil)
	notifier.On("SendNewLeadAlert", mock.Anything, mock.MatchedBy(func(e LeadEvent) bool { return e.EventID == "3" })).Return(errors.New("smtp down"))

	w.handle(context.Background(), delivery(acker, 1, created))
	w.handle(context.Background(), delivery(acker, 2, updated))
	w.handle(context.Background(), delivery(acker, 3, failing))
	w.handle(context.Background(), delivery(acker, 4, []byte("{not json")))

	assert.Equal(t, []uint64{1, 2}, acker.acks)
	assert.Equal(t, []uint64{3, 4}, acker.nacks)
	assert.Equal(t, []bool{false, false}, acker.requeue)
	assert.Equal(t, []string{"smtp"}, failures)
	notifier.AssertNumberOfCalls(t, "SendNewLeadAlert", 2)
}

func TestWorkerStartStopsWithContext(t *testing.T) {
	ch := new(MockChannel)
	msgs := make(chan amqp.Delivery)
	ch.On("Consume", QueueName).Return((<-chan amqp.Delivery)(msgs), nil)

	w := &Worker{ch: ch, logger: zap.NewNop(), onError: func(string) {}}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- w.Start(ctx, QueueName) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestWorkerStartReportsClosedChannel(t *testing.T) {
	ch := new(MockChannel)
	msgs := make(chan amqp.Delivery)
	close(msgs)
	ch.On("Consume", QueueName).Return((<-chan amqp.Delivery)(msgs), nil)

	w := &Worker{ch: ch, logger: zap.NewNop(), onError: func(string) {}}

	assert.Error(t, w.Start(context.Background(), QueueName))
}
