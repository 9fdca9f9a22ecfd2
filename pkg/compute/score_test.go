package compute

import (
	"math"
	"testing"

	"github.com/cocoaplant/cocoaplant/pkg/types"
)

// almostEqual returns true if a and b are within epsilon of each other.
func almostEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) < epsilon
}

// --- HistoricalQualityScore() table-driven tests ---

func TestHistoricalQualityScore(t *testing.T) {
	tests := []struct {
		name      string
		moisture  float64
		ffa       float64
		mold      float64
		wantScore int
		wantRisk  types.RiskLevel
	}{
		{name: "all within limits", moisture: 7, ffa: 1, mold: 2, wantScore: 100, wantRisk: types.RiskLow},
		{name: "exactly at limits", moisture: 8, ffa: 1.75, mold: 3, wantScore: 100, wantRisk: types.RiskLow},
		// 100 - (10-8)*5 = 90, but moisture > 9 forces High.
		{name: "moisture override", moisture: 10, wantScore: 90, wantRisk: types.RiskHigh},
		{name: "moisture at 9 is not high", moisture: 9, wantScore: 95, wantRisk: types.RiskLow},
		// 100 - (2.75-1.75)*10 = 90
		{name: "ffa penalty", moisture: 8, ffa: 2.75, wantScore: 90, wantRisk: types.RiskLow},
		{name: "ffa override", ffa: 3.25, wantScore: 85, wantRisk: types.RiskHigh},
		// 100 - 5 - 12.5 - 6 = 76.5 -> 77
		{name: "medium band", moisture: 9, ffa: 3, mold: 5, wantScore: 77, wantRisk: types.RiskMedium},
		// 100 - 5 - 12.5 - 51 = 31.5 -> 32
		{name: "high by score", moisture: 9, ffa: 3, mold: 20, wantScore: 32, wantRisk: types.RiskHigh},
		{name: "extreme moisture clamps to zero", moisture: 1000, wantScore: 0, wantRisk: types.RiskHigh},
		{name: "mold only", mold: 13, wantScore: 70, wantRisk: types.RiskMedium},
		{name: "NaN reads as zero", moisture: math.NaN(), ffa: math.Inf(1), wantScore: 100, wantRisk: types.RiskLow},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			score, risk := HistoricalQualityScore(tc.moisture, tc.ffa, tc.mold)
			if score != tc.wantScore {
				t.Errorf("score: got %d, want %d", score, tc.wantScore)
			}
			if risk != tc.wantRisk {
				t.Errorf("risk: got %q, want %q", risk, tc.wantRisk)
			}
		})
	}
}

func TestHistoricalQualityScore_AlwaysInRange(t *testing.T) {
	for m := 0.0; m <= 40; m += 0.7 {
		for f := 0.0; f <= 15; f += 0.45 {
			for fm := 0.0; fm <= 60; fm += 3.3 {
				score, _ := HistoricalQualityScore(m, f, fm)
				if score < 0 || score > 100 {
					t.Fatalf("score out of range for (%v, %v, %v): %d", m, f, fm, score)
				}
			}
		}
	}
}

func TestRiskFromScore_Boundaries(t *testing.T) {
	if got := riskFromScore(80, 0, 0); got != types.RiskLow {
		t.Errorf("80: got %q, want Low", got)
	}
	if got := riskFromScore(79, 0, 0); got != types.RiskMedium {
		t.Errorf("79: got %q, want Medium", got)
	}
	if got := riskFromScore(60, 0, 0); got != types.RiskMedium {
		t.Errorf("60: got %q, want Medium", got)
	}
	if got := riskFromScore(59, 0, 0); got != types.RiskHigh {
		t.Errorf("59: got %q, want High", got)
	}
}

// --- clamp / roundHalfUp ---

func TestClamp(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{-5, 0}, {0, 0}, {42, 42}, {100, 100}, {250, 100},
	}
	for _, c := range cases {
		if got := clamp(c.in, 0, 100); got != c.want {
			t.Errorf("clamp(%v): got %v, want %v", c.in, got, c.want)
		}
	}
}

func TestRoundHalfUp(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{84.5, 85}, {84.49, 84}, {31.5, 32}, {0, 0}, {-0.5, 0},
	}
	for _, c := range cases {
		if got := roundHalfUp(c.in); got != c.want {
			t.Errorf("roundHalfUp(%v): got %v, want %v", c.in, got, c.want)
		}
	}
}
