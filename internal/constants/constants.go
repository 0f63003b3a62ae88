package constants

import "time"

const (
	ExternalAPITimeout = 10 * time.Second
	DatabaseTimeout    = 5 * time.Second
	RequestTimeout     = 30 * time.Second
	HandlerTimeout     = 30 * time.Second
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
	DBBusyTimeoutMs   = 5000
	DBBatchSize       = 100
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	OutboxBatchSize = 100
	OutboxLease     = 30 * time.Second
)

const (
	BusMemoryBuffer     = 1024
	BusMemoryWorkers    = 8
	BusRedisConcurrency = 8
	BusReadCount        = 16
	BusBlock            = 2 * time.Second
	BusClaimIdle        = 30 * time.Second
	BusClaimInterval    = 15 * time.Second
	BusMaxDeliveries    = 5
	BusHandlerAttempts  = 3
	BusRetryBase        = 100 * time.Millisecond
	BusStreamPrefix     = "matchcore:"
	BusDeadLetterTopic  = "deadletter"
	BusEnvelopeField    = "envelope"
)

const (
	MatchmakerRetryAttempts = 3
	MatchmakerRetryBase     = 50 * time.Millisecond
	ProviderRetryAttempts   = 3
	ProviderRetryBase       = 200 * time.Millisecond
)
