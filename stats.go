package fixturepool

import "time"

// PoolStats is a read-only snapshot of one pool's bookkeeping, intended for
// logging and capacity diagnostics rather than control flow.
type PoolStats struct {
	// Name is the pool's identifier.
	Name string

	// Total is the number of fixtures the pool owns.
	Total int

	// Idle and InUse partition Total at the moment of the snapshot.
	Idle  int
	InUse int

	// Utilization is InUse / Total, 0 for an empty pool.
	Utilization float64

	// OldestHold is the age of the longest-held fixture, 0 when none is
	// held. A value near the acquire timeout usually means a scenario is
	// leaking fixtures.
	OldestHold time.Duration
}
