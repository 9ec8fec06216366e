package broker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAcker struct {
	mu    sync.Mutex
	acks  int
	nacks int
}

func (a *fakeAcker) Ack(uint64, bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks++
	return nil
}

func (a *fakeAcker) Nack(uint64, bool, bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacks++
	return nil
}

func (a *fakeAcker) Reject(uint64, bool) error { return nil }

// fakeSource hands out one prepared stream per Consume call and reports the
// broker unreachable once they run out.
type fakeSource struct {
	mu       sync.Mutex
	streams  []chan amqp.Delivery
	attempts int
}

func (s *fakeSource) Consume(string) (<-chan amqp.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.attempts > len(s.streams) {
		return nil, errors.New("broker unreachable")
	}
	return s.streams[s.attempts-1], nil
}

func TestConsumerResubscribesAfterStreamCloses(t *testing.T) {
	acker := &fakeAcker{}
	first := make(chan amqp.Delivery, 1)
	first <- amqp.Delivery{Acknowledger: acker, Body: []byte("one")}
	close(first)
	second := make(chan amqp.Delivery, 1)
	second <- amqp.Delivery{Acknowledger: acker, Body: []byte("two")}

	src := &fakeSource{streams: []chan amqp.Delivery{first, second}}
	c := newConsumerForTest(src, "frames")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu      sync.Mutex
		handled []string
	)
	err := c.Run(ctx, func(_ context.Context, body []byte) Outcome {
		mu.Lock()
		handled = append(handled, string(body))
		n := len(handled)
		mu.Unlock()
		if n == 2 {
			cancel()
		}
		return Ack
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"one", "two"}, handled)
	assert.Equal(t, 2, src.attempts) // stream close triggered a resubscribe
	assert.Equal(t, 2, acker.acks)
}

func TestConsumerStopsWhenResubscribeFails(t *testing.T) {
	first := make(chan amqp.Delivery)
	close(first)
	src := &fakeSource{streams: []chan amqp.Delivery{first}}
	c := newConsumerForTest(src, "frames")

	err := c.Run(context.Background(), func(context.Context, []byte) Outcome { return Ack })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frames")
	assert.Equal(t, 2, src.attempts)
}

func TestConsumerSettlesOnHandlerPanic(t *testing.T) {
	acker := &fakeAcker{}
	stream := make(chan amqp.Delivery, 1)
	stream <- amqp.Delivery{Acknowledger: acker, Body: []byte("boom")}

	src := &fakeSource{streams: []chan amqp.Delivery{stream}}
	c := newConsumerForTest(src, "frames")

	ctx, cancel := context.WithCancel(context.Background())
	err := c.Run(ctx, func(context.Context, []byte) Outcome {
		cancel()
		panic("handler exploded")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, acker.nacks)
	assert.Equal(t, 0, acker.acks)
}

func TestConsumerDrainWaitsBeforeReturning(t *testing.T) {
	acker := &fakeAcker{}
	stream := make(chan amqp.Delivery, 1)
	stream <- amqp.Delivery{Acknowledger: acker, Body: []byte("slow")}

	src := &fakeSource{streams: []chan amqp.Delivery{stream}}
	c := newConsumerForTest(src, "frames")

	ctx, cancel := context.WithCancel(context.Background())
	err := c.Run(ctx, func(context.Context, []byte) Outcome {
		cancel()
		time.Sleep(20 * time.Millisecond)
		return Ack
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, acker.acks) // settled before Run returned
}
