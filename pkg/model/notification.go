package model

import "time"

type Notification struct {
	ID        string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	UserID    string    `json:"user_id" bson:"user_id" validate:"required,mongodb"`
	Message   string    `json:"message" bson:"message" validate:"required,min=1,max=500"`
	Read      bool      `json:"read" bson:"read"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}

// Event types published on the notifications topic.
const (
	EventReservationCreated   = "reservation.created"
	EventReservationCancelled = "reservation.cancelled"
	EventReservationConfirmed = "reservation.confirmed"
	EventReservationFinished  = "reservation.finished"
	EventPaymentCompleted     = "payment.completed"
	EventPaymentFailed        = "payment.failed"
	EventPaymentRefunded      = "payment.refunded"
)

// DomainEvent is the payload written to Kafka by the reservation and payment
// workflows and consumed into notification records.
type DomainEvent struct {
	Type          string    `json:"type"`
	UserID        string    `json:"user_id"`
	SpotID        string    `json:"spot_id,omitempty"`
	ReservationID string    `json:"reservation_id,omitempty"`
	PaymentID     string    `json:"payment_id,omitempty"`
	Amount        float64   `json:"amount,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}
