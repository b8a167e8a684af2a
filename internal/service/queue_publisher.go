package service

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/radio-slot-reservation/internal/queue"
)

// EventPublisher hands domain events to the broker.
type EventPublisher interface {
	PublishReservationConfirmed(ctx context.Context, ev queue.ReservationConfirmedEvent) error
}

// AMQPPublisher publishes to RabbitMQ.  Each publish opens its own
// connection; confirmations are rare enough that pooling is not needed.
type AMQPPublisher struct {
	url string
	log logrus.FieldLogger
}

// NewAMQPPublisher returns a publisher for the broker at url.
func NewAMQPPublisher(url string, log logrus.FieldLogger) *AMQPPublisher {
	return &AMQPPublisher{url: url, log: log.WithField("component", "amqp-publisher")}
}

// PublishReservationConfirmed sends ev as a persistent JSON message to the
// reservation.confirmed queue, declaring the queue first.
func (p *AMQPPublisher) PublishReservationConfirmed(ctx context.Context, ev queue.ReservationConfirmedEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.WithError(err).Warn("dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.WithError(err).Warn("channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queue.ReservationConfirmedQueue, true, false, false, false, nil); err != nil {
		p.log.WithError(err).Warn("queue declare failed")
		return err
	}
	return ch.PublishWithContext(ctx, "", queue.ReservationConfirmedQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.EventID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}

// NopPublisher drops every event.  It is used when the broker is
// disabled.
type NopPublisher struct{}

func (NopPublisher) PublishReservationConfirmed(context.Context, queue.ReservationConfirmedEvent) error {
	return nil
}
