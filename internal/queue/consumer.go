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
	"github.com/sirupsen/logrus"
)

// ReservationLogFile is the file, under the consumer's log directory,
// that confirmations are appended to.
const ReservationLogFile = "reservation.log"

// ConsumerConfig configures StartReservationConsumer.
type ConsumerConfig struct {
	URL    string // AMQP URL
	LogDir string // directory receiving reservation.log
}

// StartReservationConsumer consumes reservation.confirmed and appends one
// line per event to <LogDir>/reservation.log.  It reconnects with
// exponential backoff (1s doubling up to 30s) and returns only when ctx
// is cancelled.
func StartReservationConsumer(ctx context.Context, cfg ConsumerConfig, log logrus.FieldLogger) error {
	log = log.WithField("component", "reservation-consumer")
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(cfg.URL)
		if err != nil {
			log.WithError(err).Warnf("dial failed, retrying in %s", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = min(backoff*2, 30*time.Second)
			continue
		}
		backoff = time.Second

		err = consume(ctx, conn, cfg.LogDir, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.WithError(err).Warn("consume loop ended, reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func consume(ctx context.Context, conn *amqp.Connection, dir string, log logrus.FieldLogger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.WithError(err).Warn("set QoS failed")
	}
	if _, err := ch.QueueDeclare(ReservationConfirmedQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, ReservationConfirmedQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	for d := range msgs {
		if err := HandleMessage(dir, d.Body); err != nil {
			log.WithError(err).Error("handle message failed")
			_ = d.Nack(false, false) // drop; requeueing a bad message loops forever
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

// HandleMessage decodes one event and appends it to the reservation log in
// dir.
func HandleMessage(dir string, body []byte) error {
	var ev ReservationConfirmedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	f, err := os.OpenFile(filepath.Join(dir, ReservationLogFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(FormatLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatLine renders an event as one human-readable log line.
func FormatLine(ev ReservationConfirmedEvent) string {
	span := ev.SpanStart
	if ev.SpanEnd != "" && ev.SpanEnd != ev.SpanStart {
		span += ".." + ev.SpanEnd
	}
	return fmt.Sprintf("[%s] Reservation confirmed | no=%s | id=%d | advertiser=%q | plan=%q | channel=%q | span=%s | cells=%d | codes=[%s] | event=%s\n",
		ev.ConfirmedAt, ev.ReservationNo, ev.ReservationID, ev.Advertiser, ev.PlanTitle, ev.Channel,
		span, ev.Cells, strings.Join(ev.Codes, ","), ev.EventID)
}
