package broker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	mu        sync.Mutex
	failures  int
	attempts  int
	published []amqp.Publishing
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, _ string, _, _ bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.attempts <= f.failures {
		return errors.New("connection reset")
	}
	f.published = append(f.published, msg)
	return nil
}

func TestPublisherRetriesTransientFailures(t *testing.T) {
	ch := &fakeChannel{failures: 2}
	pub := newPublisherForTest(ch, 3)

	err := pub.Publish(context.Background(), "frames", map[string]string{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, 3, ch.attempts)
	require.Len(t, ch.published, 1)
	assert.Equal(t, uint8(amqp.Persistent), ch.published[0].DeliveryMode)
	assert.Equal(t, "application/json", ch.published[0].ContentType)
	assert.JSONEq(t, `{"k":"v"}`, string(ch.published[0].Body))
}

func TestPublisherGivesUpAfterExhaustion(t *testing.T) {
	ch := &fakeChannel{failures: 100}
	pub := newPublisherForTest(ch, 2)

	err := pub.Publish(context.Background(), "frames", "x")
	require.Error(t, err)
	assert.Equal(t, 3, ch.attempts) // first try + 2 retries
	assert.Contains(t, err.Error(), "frames")
}

func TestPublisherMarshalError(t *testing.T) {
	pub := newPublisherForTest(&fakeChannel{}, 1)
	err := pub.Publish(context.Background(), "frames", make(chan int))
	assert.Error(t, err)
}

// rejectingChannel fails any payload containing "always-fails" and accepts
// everything else.
type rejectingChannel struct{}

func (rejectingChannel) PublishWithContext(_ context.Context, _, _ string, _, _ bool, msg amqp.Publishing) error {
	if strings.Contains(string(msg.Body), "always-fails") {
		return errors.New("connection reset")
	}
	return nil
}

func TestPublisherBackoffDoesNotBlockOtherPublishes(t *testing.T) {
	pub := newPublisherForTest(rejectingChannel{}, 3)

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Burns ~600ms in backoff sleeps before giving up.
		_ = pub.Publish(context.Background(), "frames", "always-fails")
	}()
	time.Sleep(20 * time.Millisecond)

	start := time.Now()
	require.NoError(t, pub.Publish(context.Background(), "frames", "ok"))
	assert.Less(t, time.Since(start), 300*time.Millisecond)
	<-done
}

func TestDedupSeen(t *testing.T) {
	d := NewDedup(8, time.Minute)
	assert.False(t, d.Seen("a"))
	assert.True(t, d.Seen("a"))
	assert.False(t, d.Seen("b"))
}

func TestDedupExpires(t *testing.T) {
	d := NewDedup(8, time.Millisecond)
	assert.False(t, d.Seen("a"))
	time.Sleep(5 * time.Millisecond)
	assert.False(t, d.Seen("a"))
}

func TestDedupEvictsOldestKeys(t *testing.T) {
	d := NewDedup(2, time.Minute)
	d.Seen("a")
	d.Seen("b")
	d.Seen("c") // evicts a
	assert.False(t, d.Seen("a"))
}
