package calibration

import (
	"math/bits"
	"slices"
)

// ─────────────────────────────────────────────────────────────────────────────
// Adaptive Trial Generation
// ─────────────────────────────────────────────────────────────────────────────

const (
	// MaxCalibrationSteps caps the step counts the full calibration visits.
	MaxCalibrationSteps = 1 << 14

	// trialWork is the target number of butterfly operations per trial.
	trialWork = 1 << 22
)

// representativeSteps holds one step count inside each DefaultStepRanges
// entry, chosen just above a power of two where the backends' padded
// transform lengths differ the most.
var representativeSteps = []int{65, 513, 4097, 8193}

// GenerateStepSizes returns the step counts a full calibration benchmarks:
// n itself plus one representative per step range, capped at
// MaxCalibrationSteps, sorted and without duplicates.
func GenerateStepSizes(n int) []int {
	sizes := []int{max(n, 1)}
	for _, s := range representativeSteps {
		if s <= MaxCalibrationSteps {
			sizes = append(sizes, s)
		}
	}
	slices.Sort(sizes)
	return slices.Compact(sizes)
}

// TrialIterations returns how many convolutions a trial at n steps times, so
// that small sizes are measured over enough repetitions to rise above timer
// noise while large sizes stay quick.
func TrialIterations(n int) int {
	size := max(2*n-1, 2)
	work := size * bits.Len(uint(size))
	return min(max(trialWork/work, 3), 2000)
}
