package compute

import "testing"

func TestPredictedQualityScore(t *testing.T) {
	tests := []struct {
		name       string
		hours      float64
		temp       float64
		moisture   float64
		defectRate float64
		want       float64
	}{
		{name: "ideal process", hours: 144, temp: 48, moisture: 7, want: 98.0},
		// 98 - 24*0.05 = 96.8
		{name: "short fermentation", hours: 120, temp: 48, moisture: 7, want: 96.8},
		// 98 - 5*1.5 = 90.5
		{name: "cold box", hours: 144, temp: 35, moisture: 7, want: 90.5},
		// 98 - 5*2 = 88
		{name: "overheated box", hours: 144, temp: 60, moisture: 7, want: 88.0},
		{name: "lower temp bound has no penalty", hours: 144, temp: 40, moisture: 7, want: 98.0},
		{name: "upper temp bound has no penalty", hours: 144, temp: 55, moisture: 7, want: 98.0},
		// 98 - 1*5 = 93
		{name: "over-dried", hours: 144, temp: 48, moisture: 5, want: 93.0},
		{name: "high moisture is not penalized", hours: 144, temp: 48, moisture: 14, want: 98.0},
		// 98 - 2*2.5 = 93
		{name: "visual defects", hours: 144, temp: 48, moisture: 7, defectRate: 2, want: 93.0},
		{name: "clamps at zero", hours: 0, temp: 0, moisture: 0, defectRate: 100, want: 0},
		// 98 - 0.13*2.5 = 97.675 -> 97.7
		{name: "rounds to one decimal", hours: 144, temp: 48, moisture: 7, defectRate: 0.13, want: 97.7},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := PredictedQualityScore(tc.hours, tc.temp, tc.moisture, tc.defectRate)
			if !almostEqual(got, tc.want, 1e-9) {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestPredictedQualityScore_NeverAbove100(t *testing.T) {
	for h := 0.0; h <= 300; h += 12 {
		for temp := 20.0; temp <= 80; temp += 5 {
			got := PredictedQualityScore(h, temp, 7, 0)
			if got < 0 || got > 100 {
				t.Fatalf("(%v, %v): got %v, want within [0,100]", h, temp, got)
			}
		}
	}
}
