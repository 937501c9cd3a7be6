package model

import "time"

// Weekday values follow time.Weekday.String(), matching what the quote
// engine derives from bucket timestamps.
var Weekdays = []string{
	"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday",
}

// PricingRule maps (spot type, weekday, hour range) to an hourly rate. The
// hour range is half-open: a rule 08:00-18:00 covers the 17:00 bucket but
// not the 18:00 one.
type PricingRule struct {
	ID           string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	SpotType     string    `json:"spot_type" bson:"spot_type" validate:"required,oneof=standard disabled-access reserved electric"`
	DayOfWeek    string    `json:"day_of_week" bson:"day_of_week" validate:"required,oneof=Sunday Monday Tuesday Wednesday Thursday Friday Saturday"`
	StartHour    string    `json:"start_hour" bson:"start_hour" validate:"required,valid_hour"`
	EndHour      string    `json:"end_hour" bson:"end_hour" validate:"required,valid_hour"`
	PricePerHour float64   `json:"price_per_hour" bson:"price_per_hour" validate:"gte=0"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}

type PricingRuleUpdate struct {
	SpotType     string   `json:"spot_type,omitempty" validate:"omitempty,oneof=standard disabled-access reserved electric"`
	DayOfWeek    string   `json:"day_of_week,omitempty" validate:"omitempty,oneof=Sunday Monday Tuesday Wednesday Thursday Friday Saturday"`
	StartHour    string   `json:"start_hour,omitempty" validate:"omitempty,valid_hour"`
	EndHour      string   `json:"end_hour,omitempty" validate:"omitempty,valid_hour"`
	PricePerHour *float64 `json:"price_per_hour,omitempty" validate:"omitempty,gte=0"`
}

// Quote is the priced result for a (spot, interval) pair. Total keeps full
// precision; rounding to two decimals happens at the HTTP boundary.
type Quote struct {
	SpotID    string    `json:"spot_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Total     float64   `json:"total"`
	Override  bool      `json:"override"`
}
