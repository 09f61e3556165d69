package enrich

import "time"

// maxBackoff caps the exponential delay so a long retry ladder never
// stalls the pipeline for more than a few minutes per step.
const maxBackoff = 5 * time.Minute

// Backoff returns the delay before retry number attempt (zero-based):
// base doubled per attempt, capped at maxBackoff.
func Backoff(attempt int, base time.Duration) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}
