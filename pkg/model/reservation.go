package model

import "time"

const (
	ReservationStatusPending   = "pending"
	ReservationStatusConfirmed = "confirmed"
	ReservationStatusCancelled = "cancelled"
	ReservationStatusFinished  = "finished"
)

type Reservation struct {
	ID        string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	UserID    string    `json:"user_id" bson:"user_id" validate:"required,mongodb"`
	SpotID    string    `json:"spot_id" bson:"spot_id" validate:"required,mongodb"`
	StartTime time.Time `json:"start_time" bson:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" bson:"end_time" validate:"required,gtfield=StartTime"`
	Status    string    `json:"status" bson:"status" validate:"required,oneof=pending confirmed cancelled finished"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}

type ReservationUpdate struct {
	StartTime *time.Time `json:"start_time,omitempty" validate:"omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty" validate:"omitempty"`
}

// Active reports whether the reservation still holds its spot for conflict
// purposes. Cancelled reservations never conflict; finished ones are past.
func (r *Reservation) Active() bool {
	return r.Status != ReservationStatusCancelled
}

func (r *Reservation) Terminal() bool {
	return r.Status == ReservationStatusCancelled || r.Status == ReservationStatusFinished
}

// Overlaps uses half-open interval semantics: a reservation ending exactly
// when another starts does not conflict.
func (r *Reservation) Overlaps(start, end time.Time) bool {
	return r.StartTime.Before(end) && r.EndTime.After(start)
}
