package types

import (
	"fmt"
	"time"
)

// Role is the dashboard role a caller acts under.
type Role string

const (
	RoleOperator     Role = "Operator"
	RolePlantManager Role = "Plant Manager"
)

// ParseRole accepts the display name of a role, case-sensitively.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleOperator, RolePlantManager:
		return Role(s), nil
	default:
		return "", fmt.Errorf("types: unknown role %q", s)
	}
}

// RiskLevel is the discrete risk tier derived from a quality score and the
// raw chemical thresholds.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// BatchRecord is one normalized, scored row of an imported batch file.
// Records are created once per ingested row and never updated in place.
type BatchRecord struct {
	BatchID        string    `json:"batchId"`
	Bags           float64   `json:"bags"`
	Qty            float64   `json:"qty"`
	BeanWeight     float64   `json:"beanWeight"`
	TimeDuration   float64   `json:"timeDuration"`
	ShellLevel     float64   `json:"shellLevel"`
	Moisture       float64   `json:"moisture"`
	Admixture      float64   `json:"admixture"`
	Sieve          float64   `json:"sieve"`
	Cluster        float64   `json:"cluster"`
	Residue        float64   `json:"residue"`
	FermentedMold  float64   `json:"fermentedMold"`
	FreeFattyAcids float64   `json:"freeFattyAcids"`
	QualityScore   int       `json:"qualityScore"`
	RiskLevel      RiskLevel `json:"riskLevel"`
}

// BatchData is the broader display shape of a batch in the live dataset.
// Imported BatchRecords are merged into it; mock history uses the process
// fields (defect rate, fermentation hours, temperature).
type BatchData struct {
	ID           string  `json:"id"`
	Product      string  `json:"product"`
	Supplier     string  `json:"supplier,omitempty"`
	Timestamp    string  `json:"timestamp"`
	QualityScore float64 `json:"qualityScore"`
	DefectRate   float64 `json:"defectRate,omitempty"`
	Stage        string  `json:"stage"`
	RiskScore    float64 `json:"riskScore,omitempty"`
	Compliance   string  `json:"complianceStatus,omitempty"`
	Weight       float64 `json:"weight,omitempty"`
	Moisture     float64 `json:"moisture,omitempty"`
	Temp         float64 `json:"temp,omitempty"`
	FermHours    float64 `json:"fermHours,omitempty"`

	Bags           float64 `json:"bags,omitempty"`
	BeanWeight     float64 `json:"beanWeight,omitempty"`
	TimeDuration   float64 `json:"timeDuration,omitempty"`
	ShellLevel     float64 `json:"shellLevel,omitempty"`
	Admixture      float64 `json:"admixture,omitempty"`
	Sieve          float64 `json:"sieve,omitempty"`
	Cluster        float64 `json:"cluster,omitempty"`
	Residue        float64 `json:"residue,omitempty"`
	FermentedMold  float64 `json:"fermentedMold,omitempty"`
	FreeFattyAcids float64 `json:"freeFattyAcids,omitempty"`
}

// Drying batch states.
const (
	DryingStatusDrying    = "Drying"
	DryingStatusCompleted = "Completed"
	DryingStatusAlert     = "Alert"
)

// DryingBatch is the process snapshot of one batch in a drying tunnel.
// It is written by the sensor stream and read by the rule engine.
type DryingBatch struct {
	ID              string  `json:"id"`
	CurrentMoisture float64 `json:"currentMoisture"`
	TargetMoisture  float64 `json:"targetMoisture"`
	Method          string  `json:"method"`
	Status          string  `json:"status"`
}

// FermentationBatch is the process snapshot of one fermentation box.
type FermentationBatch struct {
	ID              string  `json:"id"`
	StartTime       string  `json:"startTime"`
	ExpectedEndTime string  `json:"expectedEndTime"`
	CurrentTemp     float64 `json:"currentTemp"`
	Status          string  `json:"status"`
}

// Alert severities.
const (
	SeverityLow      = "Low"
	SeverityMedium   = "Medium"
	SeverityHigh     = "High"
	SeverityCritical = "Critical"
)

// Alert states.
const (
	AlertActive   = "Active"
	AlertResolved = "Resolved"
)

// Alert is a safety or process alert raised by the rule engine.
// Alerts are value objects: resolving one replaces it with a copy.
type Alert struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Location    string `json:"location"`
	Timestamp   string `json:"timestamp"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// Notification kinds.
const (
	NotifyInfo     = "info"
	NotifyWarning  = "warning"
	NotifyCritical = "critical"
	NotifySuccess  = "success"
)

// Notification is a system message shown in the notification tray.
type Notification struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Source    string `json:"source"`
	Read      bool   `json:"read"`
}

// Popup is the single modal message an evaluation may raise.
type Popup struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Action  string `json:"action"`
}

// SensorType names a simulated process sensor feed.
type SensorType string

const (
	SensorFermentation SensorType = "fermentation"
	SensorDrying       SensorType = "drying"
	SensorRoasting     SensorType = "roasting"
)

// SensorTypes is the ordered set of sensor feeds the stream emits.
var SensorTypes = []SensorType{SensorFermentation, SensorDrying, SensorRoasting}

// SensorUpdate is one reading pushed by the sensor stream.
type SensorUpdate struct {
	Type      SensorType `json:"type"`
	Timestamp time.Time  `json:"timestamp"`
	Value     float64    `json:"value"`
	BatchID   string     `json:"batchId"`
}
