package service

import (
	"github.com/medsafety-mcp-server/internal/domain"
)

// AggregateAssessment is the outcome of folding per-pair interaction records
// into a single list-level risk statement.
type AggregateAssessment struct {
	OverallRisk   domain.RiskLevel  `json:"overallRisk"`
	WorstSeverity domain.Severity   `json:"worstSeverity,omitempty"`
	Confidence    domain.Confidence `json:"confidence"`
	RecordCount   int               `json:"recordCount"`
}

// Aggregate folds resolved interaction records into an overall assessment.
//
// Risk is the worst per-record severity mapped into the risk vocabulary:
// major and contraindicated are high, moderate is moderate, minor is low,
// and an empty record set is low. Confidence is a statement about evidence
// availability, not risk magnitude: medium when at least one record came
// from the cache or curated tier, low when only heuristic fallback records
// (or none at all) were resolved. An empty record set therefore reads
// "low risk, low confidence", which callers must surface as "unknown"
// rather than "safe".
func Aggregate(records []domain.InteractionRecord) AggregateAssessment {
	assessment := AggregateAssessment{
		OverallRisk: domain.RiskLow,
		Confidence:  domain.ConfidenceLow,
		RecordCount: len(records),
	}
	if len(records) == 0 {
		return assessment
	}

	worst := records[0].Severity
	for _, rec := range records[1:] {
		worst = domain.MaxSeverity(worst, rec.Severity)
	}
	assessment.WorstSeverity = worst
	assessment.OverallRisk = worst.RiskLevel()

	for _, rec := range records {
		if rec.SourceTier == domain.TierCache || rec.SourceTier == domain.TierCurated {
			assessment.Confidence = domain.ConfidenceMedium
			break
		}
	}

	return assessment
}
