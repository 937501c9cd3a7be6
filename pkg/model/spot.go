package model

import "time"

const (
	SpotTypeStandard       = "standard"
	SpotTypeDisabledAccess = "disabled-access"
	SpotTypeReserved       = "reserved"
	SpotTypeElectric       = "electric"

	SpotStatusFree     = "free"
	SpotStatusReserved = "reserved"
	SpotStatusOccupied = "occupied"
)

type Spot struct {
	ID                string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	SpotNumber        string    `json:"spot_number" bson:"spot_number" validate:"required,min=1,max=20"`
	Type              string    `json:"type" bson:"type" validate:"required,oneof=standard disabled-access reserved electric"`
	Status            string    `json:"status" bson:"status" validate:"required,oneof=free reserved occupied"`
	OwnerID           string    `json:"owner_id,omitempty" bson:"owner_id,omitempty" validate:"omitempty,mongodb"`
	PricingOverrideID string    `json:"pricing_override_id,omitempty" bson:"pricing_override_id,omitempty" validate:"omitempty,mongodb"`
	CreatedAt         time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}

type SpotUpdate struct {
	SpotNumber        string  `json:"spot_number,omitempty" validate:"omitempty,min=1,max=20"`
	Type              string  `json:"type,omitempty" validate:"omitempty,oneof=standard disabled-access reserved electric"`
	OwnerID           *string `json:"owner_id,omitempty" validate:"omitempty"`
	PricingOverrideID *string `json:"pricing_override_id,omitempty" validate:"omitempty"`
}

// SpotTransitions is the allowed status graph. A spot never goes straight
// from free to occupied; it must pass through reserved.
var SpotTransitions = map[string][]string{
	SpotStatusFree:     {SpotStatusReserved},
	SpotStatusReserved: {SpotStatusFree, SpotStatusOccupied},
	SpotStatusOccupied: {SpotStatusFree},
}

func SpotTransitionAllowed(from, to string) bool {
	for _, next := range SpotTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
