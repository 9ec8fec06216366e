package broker

import (
	"context"
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Outcome is the mandatory ack decision for one delivery.
type Outcome int

const (
	// Ack acknowledges the message: success or accepted no-op.
	Ack Outcome = iota
	// NackDiscard rejects the message without requeue (poison).
	NackDiscard
)

// Handler processes one message body and decides its fate. It must not
// panic; the consumer still settles the delivery if it does.
type Handler func(ctx context.Context, body []byte) Outcome

// deliverySource opens delivery streams. *Conn implements it with a redial
// on lost connections.
type deliverySource interface {
	Consume(queue string) (<-chan amqp.Delivery, error)
}

// Consumer drives a single queue subscription. Shutdown is cooperative:
// cancel the context, then in-flight handlers settle first. A delivery
// stream that ends without cancellation is resubscribed, redialing the
// broker when the connection was lost.
type Consumer struct {
	source deliverySource
	queue  string
	wg     sync.WaitGroup
}

// NewConsumer binds a consumer to a queue on an open connection.
func NewConsumer(c *Conn, queue string) *Consumer {
	return &Consumer{source: c, queue: queue}
}

func newConsumerForTest(s deliverySource, queue string) *Consumer {
	return &Consumer{source: s, queue: queue}
}

// Run consumes until ctx is cancelled or the broker stays unreachable past
// the redial budget. Every delivery ends in exactly one ack or nack,
// including on handler panic: the settle runs in a deferred block.
func (c *Consumer) Run(ctx context.Context, handler Handler) error {
	for {
		deliveries, err := c.source.Consume(c.queue)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("consume %q: %w", c.queue, err)
		}

		if err := c.drain(ctx, deliveries, handler); err != nil {
			c.wg.Wait()
			return err
		}
		log.Printf("[Broker] Delivery stream for %q ended, resubscribing", c.queue)
	}
}

// drain processes one delivery stream. A nil return means the stream closed
// underneath us and the caller should resubscribe.
func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			c.wg.Add(1)
			c.handle(ctx, d, handler)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery, handler Handler) {
	defer c.wg.Done()

	outcome := NackDiscard
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[ERROR] Consumer %q: handler panic: %v", c.queue, r)
		}
		switch outcome {
		case Ack:
			if err := d.Ack(false); err != nil {
				log.Printf("[ERROR] Consumer %q: ack failed: %v", c.queue, err)
			}
		case NackDiscard:
			if err := d.Nack(false, false); err != nil {
				log.Printf("[ERROR] Consumer %q: nack failed: %v", c.queue, err)
			}
		}
	}()

	outcome = handler(ctx, d.Body)
}
