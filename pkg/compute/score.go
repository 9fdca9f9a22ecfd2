package compute

import (
	"math"

	"github.com/cocoaplant/cocoaplant/pkg/types"
)

// Lab thresholds above which the historical score starts losing points.
const (
	MoistureLimit = 8.0
	FFALimit      = 1.75
	MoldLimit     = 3.0
)

// Penalty per unit above each lab threshold.
const (
	moisturePenalty = 5.0
	ffaPenalty      = 10.0
	moldPenalty     = 3.0
)

// Thresholds that map a score and raw lab values to a risk tier.
const (
	ThresholdMedium  = 80
	ThresholdHigh    = 60
	HighRiskMoisture = 9.0
	HighRiskFFA      = 3.0
)

// HistoricalQualityScore grades a batch from its moisture, free fatty acid
// and fermented mold readings.
//
//	score = 100
//	      - (moisture - 8.0) * 5    if moisture > 8.0
//	      - (ffa - 1.75)     * 10   if ffa > 1.75
//	      - (mold - 3.0)     * 3    if mold > 3.0
//
// The score is clamped to [0, 100] and rounded to the nearest integer.
// Risk is Low, Medium below 80, and High below 60 or whenever moisture
// exceeds 9.0 or ffa exceeds 3.0 regardless of the score.
//
// Non-finite inputs are read as 0.
func HistoricalQualityScore(moisture, ffa, mold float64) (int, types.RiskLevel) {
	moisture, ffa, mold = finite(moisture), finite(ffa), finite(mold)

	score := 100.0
	if moisture > MoistureLimit {
		score -= (moisture - MoistureLimit) * moisturePenalty
	}
	if ffa > FFALimit {
		score -= (ffa - FFALimit) * ffaPenalty
	}
	if mold > MoldLimit {
		score -= (mold - MoldLimit) * moldPenalty
	}

	q := int(roundHalfUp(clamp(score, 0, 100)))
	return q, riskFromScore(q, moisture, ffa)
}

// riskFromScore maps a historical score plus the raw chemical values to a tier.
func riskFromScore(score int, moisture, ffa float64) types.RiskLevel {
	switch {
	case score < ThresholdHigh || moisture > HighRiskMoisture || ffa > HighRiskFFA:
		return types.RiskHigh
	case score < ThresholdMedium:
		return types.RiskMedium
	default:
		return types.RiskLow
	}
}

// clamp restricts v to the range [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// roundHalfUp rounds to the nearest integer with halves going up, so 84.5
// becomes 85 and -0.5 becomes 0.
func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}

// finite returns v, or 0 when v is NaN or infinite.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
