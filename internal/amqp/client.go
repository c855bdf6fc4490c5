package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	applog "whaling/internal/log"
)

const (
	maxBackoff     = 30 * time.Second
	publishTimeout = 5 * time.Second
)

var errChannelClosed = errors.New("message channel closed")

// Handler processes one decoded message. Returning an error rejects the
// message without requeueing it.
type Handler func(ctx context.Context, msg *YearSelectedMessage) error

// Client talks to the year selection exchange. Publishers never declare a
// queue; consumers declare theirs when they start consuming.
type Client struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	queue    string
}

// NewClient connects and declares the fanout exchange. An empty queue makes
// each consumer bind its own exclusive, server-named queue, so every view
// sees every selection. A named queue is durable and shared, which turns the
// views behind it into competing consumers.
func NewClient(url, exchange, queue string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	c := &Client{conn: conn, channel: ch, exchange: exchange, queue: queue}
	if err := ch.ExchangeDeclare(exchange, amqp091.ExchangeFanout, true, false, false, false, nil); err != nil {
		c.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return c, nil
}

// bindQueue declares the consumer queue and binds it to the exchange,
// returning the queue name the broker settled on.
func (c *Client) bindQueue() (string, error) {
	shared := c.queue != ""
	q, err := c.channel.QueueDeclare(c.queue, shared, !shared, !shared, false, nil)
	if err != nil {
		return "", fmt.Errorf("declare queue: %w", err)
	}
	if err := c.channel.QueueBind(q.Name, "", c.exchange, false, nil); err != nil {
		return "", fmt.Errorf("bind queue %s to %s: %w", q.Name, c.exchange, err)
	}
	return q.Name, nil
}

// PublishYearSelected publishes a year selection for every listening view
func (c *Client) PublishYearSelected(ctx context.Context, year int, origin string) error {
	msg := NewYearSelectedMessage(year, origin)
	body, err := msg.ToJSON()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	pub := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    msg.Timestamp,
		AppId:        origin,
		Body:         body,
	}
	if err := c.channel.PublishWithContext(ctx, c.exchange, "", false, false, pub); err != nil {
		return fmt.Errorf("publish year %d: %w", year, err)
	}

	slog.InfoContext(ctx, "Published year selection",
		applog.FieldComponent, applog.ComponentAMQP,
		applog.FieldYear, year,
		"origin", origin,
		"exchange", c.exchange,
		"message_id", pub.MessageId)

	return nil
}

// ConsumeYearSelected delivers messages to handler until ctx is done or the
// channel closes
func (c *Client) ConsumeYearSelected(ctx context.Context, handler Handler) error {
	queue, err := c.bindQueue()
	if err != nil {
		return err
	}
	// manual ack: a selection is only acked once the view applied it
	msgs, err := c.channel.ConsumeWithContext(ctx, queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", queue, err)
	}

	slog.InfoContext(ctx, "Started consuming year selections",
		applog.FieldComponent, applog.ComponentAMQP,
		"queue", queue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return errChannelClosed
			}
			handleDelivery(ctx, delivery, handler)
		}
	}
}

// acknowledger is the part of amqp091.Delivery used for acks
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func handleDelivery(ctx context.Context, delivery amqp091.Delivery, handler Handler) {
	process(ctx, delivery.Body, &delivery, handler)
}

func process(ctx context.Context, body []byte, ack acknowledger, handler Handler) {
	msg, err := YearSelectedMessageFromJSON(body)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to decode year selection",
			applog.FieldComponent, applog.ComponentAMQP,
			applog.FieldError, err)
		_ = ack.Nack(false, false)
		return
	}

	// a year the view does not know will never become valid, so no requeue
	if err := handler(ctx, msg); err != nil {
		slog.WarnContext(ctx, "Year selection rejected",
			applog.FieldComponent, applog.ComponentAMQP,
			applog.FieldYear, msg.Year,
			"origin", msg.Origin,
			applog.FieldError, err)
		_ = ack.Nack(false, false)
		return
	}

	_ = ack.Ack(false)
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Dialer opens a client; NewClient in production.
type Dialer func() (*Client, error)

// Run keeps a consumer alive, redialing with exponential backoff when the
// broker connection drops. It returns when ctx is done or on a
// non-connection error.
func Run(ctx context.Context, dial Dialer, handler Handler) error {
	attempt := 0
	for {
		client, err := dial()
		if err == nil {
			attempt = 0
			err = client.ConsumeYearSelected(ctx, handler)
			client.Close()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !isConnectionError(err) {
			return err
		}

		wait := exponentialBackoff(attempt)
		slog.WarnContext(ctx, "AMQP connection lost, retrying",
			applog.FieldComponent, applog.ComponentAMQP,
			applog.FieldError, err,
			"attempt", attempt+1,
			"wait", wait)
		attempt++

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// exponentialBackoff returns 1s, 2s, 4s, ... capped at 30s
func exponentialBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 5 {
		return maxBackoff
	}
	d := time.Second << uint(attempt)
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errChannelClosed) || errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection refused", "connection closed", "eof", "broken pipe", "closed network connection", "dial amqp"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
