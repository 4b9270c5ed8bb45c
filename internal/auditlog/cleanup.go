package auditlog

import "time"

// CleanupInterval is how often retention cleanup runs.
const CleanupInterval = time.Hour

// RunCleanupLoop runs cleanupFn immediately and then every CleanupInterval
// until stop is closed.
func RunCleanupLoop(stop <-chan struct{}, cleanupFn func()) {
	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()

	cleanupFn()

	for {
		select {
		case <-ticker.C:
			cleanupFn()
		case <-stop:
			return
		}
	}
}

// retentionCutoff returns the oldest timestamp kept for the given retention.
func retentionCutoff(days int) time.Time {
	return time.Now().AddDate(0, 0, -days).UTC()
}
