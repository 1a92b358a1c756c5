package service

import (
	"fmt"
	"math"

	"github.com/srm-ap/portal-api/internal/models"
)

// Raw rubric domains. Every component rescales to half its raw value, so A1
// marks out of 20 convert to 10 points, A2 out of 30 to 15, A3 out of 50 to
// 25 and the combined external mark out of 100 to 50.
const (
	maxA1Conduct       = 20.0
	maxA2Conduct       = 30.0
	maxA3Conduct       = 50.0
	maxExternalConduct = 100.0
)

// convertScore rescales a raw rubric mark into its converted point value.
// Marks outside the component's declared domain are rejected rather than
// clamped. Halves round away from zero, so a raw 15 on A2 converts to 8.
func convertScore(assessment string, raw float64) (float64, error) {
	var max float64
	switch assessment {
	case models.AssessmentA1:
		max = maxA1Conduct
	case models.AssessmentA2:
		max = maxA2Conduct
	case models.AssessmentA3:
		max = maxA3Conduct
	case models.AssessmentExternal:
		max = maxExternalConduct
	default:
		return 0, fmt.Errorf("unknown assessment component %q", assessment)
	}

	if raw < 0 || raw > max {
		return 0, fmt.Errorf("%s score %g is outside [0, %g]", assessment, raw, max)
	}

	return math.Round(raw / 2), nil
}

// scoreTotals sums converted component values. Missing components contribute
// zero, so a partially scored evaluation still totals deterministically.
type scoreTotals struct {
	Internal float64
	External float64
	Grand    float64
}

func computeTotals(a1Convert, a2Convert, a3Convert, externalConvert float64) scoreTotals {
	internal := a1Convert + a2Convert + a3Convert
	return scoreTotals{
		Internal: internal,
		External: externalConvert,
		Grand:    internal + externalConvert,
	}
}
