package compute

import "math"

// DefaultSigma is the z-score magnitude above which a reading is flagged.
const DefaultSigma = 3.0

// Anomaly is one flagged reading of a series.
type Anomaly struct {
	Index  int     `json:"index"`
	Value  float64 `json:"value"`
	ZScore float64 `json:"zScore"`
}

// DetectAnomalies returns every reading whose absolute z-score is strictly
// greater than thresholdSigma, in input order. Mean and standard deviation
// are population statistics over the whole series.
//
// An empty or constant series yields no anomalies. A threshold <= 0 falls
// back to DefaultSigma.
func DetectAnomalies(readings []float64, thresholdSigma float64) []Anomaly {
	if len(readings) == 0 {
		return nil
	}
	if thresholdSigma <= 0 || math.IsNaN(thresholdSigma) {
		thresholdSigma = DefaultSigma
	}

	mean, stdDev := meanStdDev(readings)
	if stdDev == 0 || math.IsNaN(stdDev) {
		return nil
	}

	var out []Anomaly
	for i, v := range readings {
		z := (v - mean) / stdDev
		if math.Abs(z) > thresholdSigma {
			out = append(out, Anomaly{Index: i, Value: v, ZScore: z})
		}
	}
	return out
}

// meanStdDev returns the population mean and standard deviation of xs.
func meanStdDev(xs []float64) (mean, stdDev float64) {
	n := float64(len(xs))
	for _, v := range xs {
		mean += v
	}
	mean /= n

	var variance float64
	for _, v := range xs {
		d := v - mean
		variance += d * d
	}
	variance /= n
	return mean, math.Sqrt(variance)
}
