package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/movietix/seat-reservation/internal/model"
)

// Publisher sends reservation events to RabbitMQ.  Publishing is
// best-effort: failures are logged and returned but callers in the
// request path ignore them, so a broker outage never fails a booking.
type Publisher struct {
	url string
	log zerolog.Logger
}

// NewPublisher returns a Publisher that dials the given AMQP URL for
// each publish.  Connections are short-lived on purpose; the publish
// rate of this service does not justify a managed channel pool.
func NewPublisher(url string, log zerolog.Logger) *Publisher {
	return &Publisher{url: url, log: log}
}

// ReservationConfirmed publishes a ReservationConfirmedEvent for the
// given reservation.
func (p *Publisher) ReservationConfirmed(ctx context.Context, r *model.Reservation) error {
	ev := ReservationConfirmedEvent{
		ReservationID: r.ID,
		ShowID:        r.ShowID,
		UserID:        r.UserID,
		SeatIDs:       r.SeatIDs,
		AmountCents:   r.AmountCents,
		ConfirmedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	return p.publish(ctx, ConfirmedQueue, ev)
}

// ReservationsExpired publishes one ReservationExpiredEvent per expired
// hold.  It implements the expiry scheduler's Notifier contract.
func (p *Publisher) ReservationsExpired(ctx context.Context, expired []*model.Reservation) {
	now := time.Now().UTC().Format(time.RFC3339)
	for _, r := range expired {
		ev := ReservationExpiredEvent{
			ReservationID: r.ID,
			ShowID:        r.ShowID,
			UserID:        r.UserID,
			SeatIDs:       r.SeatIDs,
			Deadline:      r.Deadline.UTC().Format(time.RFC3339),
			ExpiredAt:     now,
		}
		if err := p.publish(ctx, ExpiredQueue, ev); err != nil {
			p.log.Error().Err(err).Str("reservation_id", r.ID).Msg("failed to publish expiry event")
		}
	}
}

// publish marshals the event and sends it as a persistent message to
// the named durable queue via the default exchange.
func (p *Publisher) publish(ctx context.Context, queueName string, event interface{}) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.Error().Err(err).Msg("rabbitmq dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Error().Err(err).Msg("rabbitmq channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	// Idempotent declare so publisher and consumer can start in any order.
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		p.log.Error().Err(err).Str("queue", queueName).Msg("queue declare failed")
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queueName, false, false, pub); err != nil {
		p.log.Error().Err(err).Str("queue", queueName).Msg("publish failed")
		return err
	}
	return nil
}
