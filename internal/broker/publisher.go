package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// publishChannel is the slice of Conn the publisher needs.
type publishChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher sends persistent JSON messages to a named queue via the default
// exchange, retrying transient failures with a growing backoff. Retries go
// through Conn, which redials a lost connection before the next attempt.
type Publisher struct {
	mu         sync.Mutex
	ch         publishChannel
	maxRetries int
}

// NewPublisher wraps an open connection. maxRetries counts attempts beyond
// the first.
func NewPublisher(c *Conn, maxRetries int) *Publisher {
	return &Publisher{ch: c, maxRetries: maxRetries}
}

func newPublisherForTest(ch publishChannel, maxRetries int) *Publisher {
	return &Publisher{ch: ch, maxRetries: maxRetries}
}

// Publish marshals v and sends it to queue. The mutex covers only the send
// itself; a publish sitting in its backoff does not stall the other pool
// goroutines.
func (p *Publisher) Publish(ctx context.Context, queue string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	var lastErr error
	for i := 0; i <= p.maxRetries; i++ {
		p.mu.Lock()
		lastErr = p.ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         data,
		})
		p.mu.Unlock()
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// Backoff
		time.Sleep(time.Duration(i+1) * 100 * time.Millisecond)
	}

	return fmt.Errorf("publish to %q failed after %d retries: %w", queue, p.maxRetries, lastErr)
}
