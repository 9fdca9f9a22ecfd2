package store

import "github.com/cocoaplant/cocoaplant/pkg/types"

// SeedHistory is the batch history a fresh server starts with.
func SeedHistory() []types.BatchData {
	return []types.BatchData{
		{
			ID: "BATCH-2023-884", Product: "Cocoa Liquor A", Supplier: "Ohene Cocoa Farms",
			Timestamp: "2023-10-24 08:30", QualityScore: 98.2, DefectRate: 0.5, Stage: "Conching",
			RiskScore: 12, Compliance: "Compliant", Moisture: 7.1, FermHours: 144, Temp: 45,
		},
		{
			ID: "BATCH-2023-885", Product: "Cocoa Butter", Supplier: "Golden Pod Co-op",
			Timestamp: "2023-10-24 09:15", QualityScore: 96.5, DefectRate: 1.2, Stage: "Pressing",
			RiskScore: 8, Compliance: "Compliant", Moisture: 7.3, FermHours: 138, Temp: 46,
		},
		{
			ID: "BATCH-2023-886", Product: "Nibs Premium", Supplier: "Ohene Cocoa Farms",
			Timestamp: "2023-10-24 10:00", QualityScore: 99.1, DefectRate: 0.1, Stage: "Roasting",
			RiskScore: 5, Compliance: "Compliant", Moisture: 6.9, FermHours: 146, Temp: 44,
		},
	}
}

// SeedDrying is the drying tunnel state a fresh server starts with.
func SeedDrying() []types.DryingBatch {
	return []types.DryingBatch{
		{ID: "DRY-201", CurrentMoisture: 12.4, TargetMoisture: 7.0, Method: "Solar Tunnel A", Status: types.DryingStatusDrying},
	}
}
