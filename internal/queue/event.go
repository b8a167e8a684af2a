// Package queue defines the messages exchanged over the broker and the
// background consumer that records them.
package queue

// ReservationConfirmedQueue is the durable queue reservation confirmations
// are published to.
const ReservationConfirmedQueue = "reservation.confirmed"

// ReservationConfirmedEvent is published once per confirmation, after the
// reservation row is committed.  It carries enough for downstream
// consumers to log or notify without reading the database.
type ReservationConfirmedEvent struct {
	EventID       string   `json:"event_id"`
	ReservationID int64    `json:"reservation_id"`
	ReservationNo string   `json:"reservation_no"`
	Advertiser    string   `json:"advertiser"`
	Agency        string   `json:"agency,omitempty"`
	PlanTitle     string   `json:"plan_title"`
	Channel       string   `json:"channel"`
	SpanStart     string   `json:"span_start"`
	SpanEnd       string   `json:"span_end"`
	Cells         int      `json:"cells"`
	Codes         []string `json:"codes,omitempty"`
	PreparedBy    string   `json:"prepared_by,omitempty"`
	ConfirmedAt   string   `json:"confirmed_at"`
}
