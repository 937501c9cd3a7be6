package model

import "time"

// SpotLock is an advisory lock serializing the conflict-check-then-insert
// sequence per spot. The _id is derived from the spot ID, so at most one
// booking attempt per spot holds the lock; a TTL index reaps stale entries.
type SpotLock struct {
	ID        string    `bson:"_id" json:"id"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
