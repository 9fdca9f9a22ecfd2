package compute

import "math"

// Process set points used by the predictor.
const (
	IdealFermentationHours = 144.0
	MinFermentationTemp    = 40.0
	MaxFermentationTemp    = 55.0
	MinDryMoisture         = 6.0

	predictorBase = 98.0
)

// PredictedQualityScore estimates the final quality of a batch that is still
// in process. It starts at 98 and subtracts:
//
//   - 0.05 per hour of fermentation away from 144h
//   - 1.5 per degree below 40°C, or 2.0 per degree above 55°C
//   - 5 per point of moisture below 6% (high moisture mid-process is normal)
//   - 2.5 per point of visual defect rate
//
// The result is rounded to one decimal and clamped to [0, 100].
func PredictedQualityScore(fermHours, avgTemp, moisture, defectRate float64) float64 {
	fermHours, avgTemp = finite(fermHours), finite(avgTemp)
	moisture, defectRate = finite(moisture), finite(defectRate)

	score := predictorBase
	score -= math.Abs(fermHours-IdealFermentationHours) * 0.05

	if avgTemp < MinFermentationTemp {
		score -= (MinFermentationTemp - avgTemp) * 1.5
	} else if avgTemp > MaxFermentationTemp {
		score -= (avgTemp - MaxFermentationTemp) * 2.0
	}

	if moisture < MinDryMoisture {
		score -= (MinDryMoisture - moisture) * 5
	}

	score -= defectRate * 2.5

	return clamp(roundHalfUp(score*10)/10, 0, 100)
}
