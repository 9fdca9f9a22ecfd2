package compute

import "github.com/cocoaplant/cocoaplant/pkg/types"

// Summary holds the totals shown above an analyzed batch table.
type Summary struct {
	Rows        int     `json:"rows"`
	TotalQty    float64 `json:"totalQty"`
	TotalBags   float64 `json:"totalBags"`
	AvgMoisture float64 `json:"avgMoisture"`
	AvgFFA      float64 `json:"avgFfa"`
	AvgQuality  float64 `json:"avgQuality"`
	HighRisk    int     `json:"highRisk"`
	MediumRisk  int     `json:"mediumRisk"`
	LowRisk     int     `json:"lowRisk"`
}

// Summarize aggregates records. Averages are 0 for an empty slice.
func Summarize(records []types.BatchRecord) Summary {
	s := Summary{Rows: len(records)}
	if len(records) == 0 {
		return s
	}

	var mc, ffa, q float64
	for _, r := range records {
		s.TotalQty += r.Qty
		s.TotalBags += r.Bags
		mc += r.Moisture
		ffa += r.FreeFattyAcids
		q += float64(r.QualityScore)
		switch r.RiskLevel {
		case types.RiskHigh:
			s.HighRisk++
		case types.RiskMedium:
			s.MediumRisk++
		default:
			s.LowRisk++
		}
	}

	n := float64(len(records))
	s.AvgMoisture = mc / n
	s.AvgFFA = ffa / n
	s.AvgQuality = q / n
	return s
}
