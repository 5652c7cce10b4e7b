package constants

import "time"

const (
	ExternalAPITimeout = 10 * time.Second
	RequestTimeout     = 30 * time.Second
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	// SeenRingSize bounds the announced-score fingerprint ring.
	SeenRingSize = 10000
	// TopPlayLimit is the number of distinct maps counted toward the
	// ranked floor and the weighted aggregate.
	TopPlayLimit = 100
	// AggregateWeight decays each successive play in the aggregate sum.
	AggregateWeight = 0.95
	// WaitRetryBudget bounds cursor advances within one tick when every
	// player is still waiting.
	WaitRetryBudget = 100
	// MinReportedPP is the floor below which an externally reported
	// rating counts as missing and is recomputed locally.
	MinReportedPP = 10
	// RecentActivityLimit is how many recent scores one poll fetches.
	RecentActivityLimit = 100
	// BestImportLimit is how many top plays a first track imports.
	BestImportLimit = 100
)
