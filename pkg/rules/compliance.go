package rules

import "slices"

// Export rule types.
const (
	ExportRuleQuality = "QUALITY"
	ExportRuleCountry = "COUNTRY"
)

// ExportRule is one configured export restriction.
type ExportRule struct {
	ID                  string   `json:"ruleId" yaml:"id"`
	Name                string   `json:"ruleName" yaml:"name"`
	Type                string   `json:"ruleType" yaml:"type"`
	Severity            string   `json:"severity" yaml:"severity"`
	Active              *bool    `json:"active,omitempty" yaml:"active"`
	MinQualityScore     float64  `json:"minQualityScore,omitempty" yaml:"min_quality_score"`
	RestrictedCountries []string `json:"restrictedCountries,omitempty" yaml:"restricted_countries"`
	Description         string   `json:"description,omitempty" yaml:"description"`
}

// active reports whether the rule applies. Rules are active unless
// explicitly disabled.
func (r ExportRule) active() bool {
	return r.Active == nil || *r.Active
}

// ExportCandidate is the subset of a batch the compliance check inspects.
type ExportCandidate struct {
	BatchID      string  `json:"batchId"`
	QualityScore float64 `json:"qualityScore"`
	Destination  string  `json:"destinationCountry"`
}

// Violation is one failed export rule.
type Violation struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// ComplianceResult is the outcome of an export compliance check.
type ComplianceResult struct {
	BatchID    string      `json:"batchId"`
	Compliant  bool        `json:"compliant"`
	Violations []Violation `json:"violations"`
	RiskScore  float64     `json:"riskScore"`
}

// Risk contributed by one violation of each severity.
var severityWeight = map[string]float64{
	"Low":    0.1,
	"Medium": 0.25,
	"High":   0.5,
}

// baselineRisk is the risk of a batch with no violations.
const baselineRisk = 0.05

// EvaluateCompliance checks a batch against the export rules.
// Inactive rules and rules of unknown type are skipped.
func EvaluateCompliance(batch ExportCandidate, rules []ExportRule) ComplianceResult {
	violations := []Violation{}
	for _, r := range rules {
		if !r.active() {
			continue
		}
		switch r.Type {
		case ExportRuleQuality:
			if batch.QualityScore < r.MinQualityScore {
				violations = append(violations, Violation{
					Rule: r.Name, Severity: r.Severity, Message: "Quality score below threshold",
				})
			}
		case ExportRuleCountry:
			if slices.Contains(r.RestrictedCountries, batch.Destination) {
				violations = append(violations, Violation{
					Rule: r.Name, Severity: r.Severity, Message: "Destination country restricted",
				})
			}
		}
	}

	return ComplianceResult{
		BatchID:    batch.BatchID,
		Compliant:  len(violations) == 0,
		Violations: violations,
		RiskScore:  RiskScore(violations),
	}
}

// RiskScore sums the severity weights of violations, capped at 1.0.
func RiskScore(violations []Violation) float64 {
	if len(violations) == 0 {
		return baselineRisk
	}
	var score float64
	for _, v := range violations {
		score += severityWeight[v.Severity]
	}
	return min(score, 1.0)
}
