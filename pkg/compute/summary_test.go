package compute

import (
	"testing"

	"github.com/cocoaplant/cocoaplant/pkg/types"
)

func TestSummarize(t *testing.T) {
	recs := []types.BatchRecord{
		{Qty: 3000, Bags: 50, Moisture: 7, FreeFattyAcids: 1, QualityScore: 100, RiskLevel: types.RiskLow},
		{Qty: 2000, Bags: 40, Moisture: 9, FreeFattyAcids: 2, QualityScore: 80, RiskLevel: types.RiskMedium},
		{Qty: 1000, Bags: 10, Moisture: 11, FreeFattyAcids: 3, QualityScore: 60, RiskLevel: types.RiskHigh},
	}
	s := Summarize(recs)

	if s.Rows != 3 {
		t.Errorf("Rows: got %d, want 3", s.Rows)
	}
	if s.TotalQty != 6000 || s.TotalBags != 100 {
		t.Errorf("totals: got qty=%v bags=%v, want 6000/100", s.TotalQty, s.TotalBags)
	}
	if !almostEqual(s.AvgMoisture, 9, 1e-9) || !almostEqual(s.AvgFFA, 2, 1e-9) {
		t.Errorf("averages: got mc=%v ffa=%v, want 9/2", s.AvgMoisture, s.AvgFFA)
	}
	if !almostEqual(s.AvgQuality, 80, 1e-9) {
		t.Errorf("AvgQuality: got %v, want 80", s.AvgQuality)
	}
	if s.HighRisk != 1 || s.MediumRisk != 1 || s.LowRisk != 1 {
		t.Errorf("risk counts: got %d/%d/%d, want 1/1/1", s.HighRisk, s.MediumRisk, s.LowRisk)
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	if s.Rows != 0 || s.AvgMoisture != 0 {
		t.Errorf("empty: got %+v, want zero summary", s)
	}
}
