// Package liveness derives the machine's online/offline state from the
// recency of its last successful check-in. Nothing here is persisted; the
// state is recomputed on every read.
package liveness

import "time"

// OnlineThreshold is how stale the last check-in may be before the machine
// is considered offline. The dashboard and purchase flow both assume this
// value, so it is fixed rather than configurable.
const OnlineThreshold = 2 * time.Minute

type State struct {
	Online               bool `json:"is_online"`
	MinutesSinceLastSync int  `json:"minutes_since_last_sync"`
}

// Evaluate computes the liveness state at the given instant. A zero
// lastCheckin means the machine has never synced and is offline.
func Evaluate(lastCheckin, now time.Time) State {
	if lastCheckin.IsZero() {
		return State{Online: false, MinutesSinceLastSync: 0}
	}

	elapsed := now.Sub(lastCheckin)
	if elapsed < 0 {
		// Clock skew: a check-in stamped in the future counts as fresh.
		elapsed = 0
	}

	return State{
		Online:               elapsed <= OnlineThreshold,
		MinutesSinceLastSync: int(elapsed / time.Minute),
	}
}
