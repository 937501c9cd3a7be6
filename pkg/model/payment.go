package model

import "time"

const (
	PaymentMethodCard   = "card"
	PaymentMethodPaypal = "paypal"

	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
)

// Payment records a charge for a reservation. Amount is immutable once the
// record exists; only Status moves.
type Payment struct {
	ID            string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	ReservationID string    `json:"reservation_id" bson:"reservation_id" validate:"required,mongodb"`
	Amount        float64   `json:"amount" bson:"amount" validate:"gte=0"`
	Method        string    `json:"method" bson:"method" validate:"required,oneof=card paypal"`
	Status        string    `json:"status" bson:"status" validate:"required,oneof=pending completed failed refunded"`
	Timestamp     time.Time `json:"timestamp" bson:"timestamp" validate:"omitempty"`
}

var paymentTransitions = map[string][]string{
	PaymentStatusPending:   {PaymentStatusCompleted, PaymentStatusFailed},
	PaymentStatusCompleted: {PaymentStatusRefunded},
}

func PaymentTransitionAllowed(from, to string) bool {
	for _, next := range paymentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
