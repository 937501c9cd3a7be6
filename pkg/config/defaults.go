package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "parkly"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort = "8080"

	DefaultJWTExpiration = 24 * time.Hour

	DefaultRequestTimeout = 30 * time.Second
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	// Advisory lock lifetime for the book-a-spot critical section. Long
	// enough for the overlap check plus insert, short enough that a crashed
	// request does not wedge the spot.
	DefaultSpotLockTTL = 10 * time.Second

	// Charged per started hour when no pricing rule covers a bucket.
	DefaultFallbackHourlyRate = 2.00

	// Cron spec for advancing elapsed reservations to finished.
	DefaultSweepSpec = "*/5 * * * *"

	DefaultNotificationsTopic = "parkly.notifications"

	DefaultPaginationLimit = 100
)
