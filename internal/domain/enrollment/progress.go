package enrollment

import "math"

// ComputeProgress returns 100 * completed / total, clamped to [0, 100].
// A course without lessons has no progress.
func ComputeProgress(completed, total int) float64 {
	if total <= 0 || completed <= 0 {
		return 0
	}
	p := float64(completed) / float64(total) * 100
	if p > 100 {
		return 100
	}
	return math.Round(p*100) / 100
}

// IsComplete reports whether a progress value unlocks certification.
func IsComplete(progress float64) bool {
	return progress >= 100
}
