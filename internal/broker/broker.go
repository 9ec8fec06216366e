// Package broker wraps the RabbitMQ connection shared by all workers:
// durable queue declaration, a retrying JSON publisher and a consumer loop
// with bounded prefetch and a guaranteed ack/nack per delivery. A lost
// connection is redialed with the same backoff used at startup, and the
// declared queues and prefetch are restored on the new channel.
package broker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Conn is an open AMQP connection plus its channel. The declared queues and
// prefetch are remembered so a redial can restore them. AMQP channels are
// not safe for concurrent use; Publisher serializes access.
type Conn struct {
	url        string
	maxRetries int

	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	queues   []string
	prefetch int
}

// Dial connects to the broker, retrying with exponential backoff until the
// attempt budget is exhausted. The same budget applies to every later
// redial after a lost connection.
func Dial(url string, maxRetries int) (*Conn, error) {
	c := &Conn{url: url, maxRetries: maxRetries}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.redialLocked(); err != nil {
		return nil, err
	}
	return c, nil
}

// channel returns the live channel, redialing first when the connection or
// channel has been lost.
func (c *Conn) channel() (*amqp.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ch != nil && !c.ch.IsClosed() {
		return c.ch, nil
	}
	log.Printf("[Broker] Connection lost, redialing")
	return c.redialLocked()
}

func (c *Conn) redialLocked() (*amqp.Channel, error) {
	if c.conn != nil {
		c.conn.Close()
		c.conn, c.ch = nil, nil
	}

	var lastErr error
	backoff := time.Second
	for i := 0; i <= c.maxRetries; i++ {
		ch, err := c.dialOnce()
		if err == nil {
			return ch, nil
		}
		lastErr = err
		log.Printf("[Broker] Connect attempt %d failed: %v (retrying in %s)", i+1, err, backoff)
		time.Sleep(backoff)
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
	return nil, fmt.Errorf("connect to broker after %d attempts: %w", c.maxRetries+1, lastErr)
}

// dialOnce opens a connection and channel and restores the remembered
// topology on it.
func (c *Conn) dialOnce() (*amqp.Channel, error) {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	for _, name := range c.queues {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			conn.Close()
			return nil, fmt.Errorf("declare queue %q: %w", name, err)
		}
	}
	if c.prefetch > 0 {
		if err := ch.Qos(c.prefetch, 0, false); err != nil {
			conn.Close()
			return nil, fmt.Errorf("set qos: %w", err)
		}
	}
	c.conn, c.ch = conn, ch
	return ch, nil
}

// DeclareQueues declares the named queues as durable and remembers them for
// redials. Declaration is idempotent, so every worker declares the queues
// it touches.
func (c *Conn) DeclareQueues(names ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, name := range names {
		if _, err := c.ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %q: %w", name, err)
		}
		c.queues = append(c.queues, name)
	}
	return nil
}

// Qos bounds the number of unacknowledged deliveries per consumer.
func (c *Conn) Qos(prefetch int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prefetch = prefetch
	return c.ch.Qos(prefetch, 0, false)
}

// PublishWithContext sends on the live channel, redialing first if the
// connection was lost. A publish can still fail on a channel that died
// after the check; Publisher's retry loop comes back here and lands on a
// fresh channel.
func (c *Conn) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	ch, err := c.channel()
	if err != nil {
		return err
	}
	return ch.PublishWithContext(ctx, exchange, key, mandatory, immediate, msg)
}

// Consume opens a delivery stream on queue, redialing first if the
// connection was lost.
func (c *Conn) Consume(queue string) (<-chan amqp.Delivery, error) {
	ch, err := c.channel()
	if err != nil {
		return nil, err
	}
	return ch.Consume(queue, "", false, false, false, false, nil)
}

// Close tears down the channel and connection.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ch != nil {
		c.ch.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}
