package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Consumer drains the reservation event queues and appends one
// human-readable audit line per event to logs/reservation.log.  It
// reconnects with capped backoff and rejects (without requeueing)
// messages it cannot decode so a poison message cannot wedge the queue.
type Consumer struct {
	url string
	log zerolog.Logger
}

// NewConsumer returns a Consumer for the given AMQP URL.
func NewConsumer(url string, log zerolog.Logger) *Consumer {
	return &Consumer{url: url, log: log}
}

// Run consumes until the context is cancelled.  Broker failures are
// logged and retried; only cancellation ends the loop.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn().Err(err).Dur("retry_in", backoff).Msg("audit consumer failed to dial broker")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if err := c.consumeLoop(ctx, conn); err != nil {
			_ = conn.Close()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Warn().Err(err).Msg("audit consume loop ended, reconnecting")
			time.Sleep(2 * time.Second)
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn().Err(err).Msg("set QoS failed")
	}

	deliveries := make(chan amqp.Delivery)
	for _, name := range []string{ConfirmedQueue, ExpiredQueue} {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", name, err)
		}
		msgs, err := ch.Consume(name, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("queue consume %s: %w", name, err)
		}
		go func() {
			for d := range msgs {
				select {
				case deliveries <- d:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handleMessage(d.RoutingKey, d.Body); err != nil {
				c.log.Error().Err(err).Str("queue", d.RoutingKey).Msg("handle message failed")
				_ = d.Nack(false, false) // do not requeue, avoids tight redelivery loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// handleMessage appends a single audit line for the event.
func (c *Consumer) handleMessage(queueName string, body []byte) error {
	var line string
	switch queueName {
	case ConfirmedQueue:
		var ev ReservationConfirmedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		line = fmt.Sprintf("[%s] Reservation confirmed | reservation_id=%s | user_id=%d | show_id=%d | amount=%d cents | seats=[%s]\n",
			ev.ConfirmedAt, ev.ReservationID, ev.UserID, ev.ShowID, ev.AmountCents, strings.Join(ev.SeatIDs, ","))
	case ExpiredQueue:
		var ev ReservationExpiredEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		line = fmt.Sprintf("[%s] Reservation expired | reservation_id=%s | user_id=%d | show_id=%d | deadline=%s | seats=[%s]\n",
			ev.ExpiredAt, ev.ReservationID, ev.UserID, ev.ShowID, ev.Deadline, strings.Join(ev.SeatIDs, ","))
	default:
		return fmt.Errorf("unknown queue %q", queueName)
	}

	if err := os.MkdirAll("logs", 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(filepath.Join("logs", "reservation.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
