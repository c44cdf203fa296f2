package correlation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreStaysInUnitInterval(t *testing.T) {
	t.Parallel()

	similarities := []float64{math.Inf(-1), -5, -0.01, 0, 0.33, 0.99, 1, 1.5, 100, math.Inf(1)}
	for _, sim := range similarities {
		for _, shared := range []int{-3, 0, 1, 4, 50} {
			for _, same := range []bool{true, false} {
				confidence, reasons := Score(sim, shared, same)
				assert.GreaterOrEqual(t, confidence, 0.0, "sim=%v shared=%d same=%v", sim, shared, same)
				assert.LessOrEqual(t, confidence, 1.0, "sim=%v shared=%d same=%v", sim, shared, same)
				assert.NotEmpty(t, reasons)
			}
		}
	}
}

func TestScoreIsMonotonicInSimilarity(t *testing.T) {
	t.Parallel()

	prev := -1.0
	for _, sim := range []float64{0, 0.1, 0.25, 0.5, 0.75, 0.9, 1.0} {
		confidence, _ := Score(sim, 2, false)
		assert.GreaterOrEqual(t, confidence, prev)
		prev = confidence
	}
}

func TestScoreSameSourcePenalty(t *testing.T) {
	t.Parallel()

	cross, crossReasons := Score(0.8, 3, false)
	same, sameReasons := Score(0.8, 3, true)

	assert.LessOrEqual(t, same, cross)
	assert.InDelta(t, sameSourcePenalty, cross-same, 1e-9)
	assert.Contains(t, sameReasons, "Same-source penalty applied (-0.08)")
	assert.Contains(t, crossReasons, "Cross-source match boosts confidence diversity")
}

func TestScoreSharedTermBoostIsCapped(t *testing.T) {
	t.Parallel()

	base, _ := Score(0.5, 0, false)
	four, _ := Score(0.5, 4, false)
	fifty, _ := Score(0.5, 50, false)

	assert.InDelta(t, base+0.20, four, 1e-9)
	assert.InDelta(t, four, fifty, 1e-9, "boost caps at 0.20")
}

func TestScoreNotesClampedSimilarity(t *testing.T) {
	t.Parallel()

	_, reasons := Score(3.7, 0, false)
	assert.Contains(t, reasons, "Similarity was clamped to the 0..1 range")

	_, reasons = Score(0.7, 0, false)
	assert.NotContains(t, reasons, "Similarity was clamped to the 0..1 range")
}

func TestScoreNegativeSharedTermsTreatedAsZero(t *testing.T) {
	t.Parallel()

	withNegative, _ := Score(0.6, -10, false)
	withZero, _ := Score(0.6, 0, false)
	assert.InDelta(t, withZero, withNegative, 1e-9)
}
