// Package domain contains core business entities and types for medication-safety
// analysis: drug-drug interaction (DDI) resolution and pharmacogenomic (PGx)
// recommendation generation for oncology care.
//
// Severity terminology follows the conventions used by curated interaction
// compendia; PGx phenotype and recommendation terminology follows CPIC
// (Clinical Pharmacogenetics Implementation Consortium) guidelines.
// Reference: Relling & Klein (2011) CPIC: Clinical Pharmacogenetics
// Implementation Consortium of the Pharmacogenomics Research Network.
// Clin Pharmacol Ther. 89(3):464-7. doi: 10.1038/clpt.2010.279
package domain

import (
	"errors"
	"strings"
)

// Severity classifies the clinical impact of a drug-drug interaction.
// Severities form a strict total order and must only be compared through
// Rank; raw string comparison gives the wrong order.
type Severity string

const (
	SeverityMinor           Severity = "minor"
	SeverityModerate        Severity = "moderate"
	SeverityMajor           Severity = "major"
	SeverityContraindicated Severity = "contraindicated"
)

// severityRank defines the total order minor < moderate < major < contraindicated.
var severityRank = map[Severity]int{
	SeverityMinor:           0,
	SeverityModerate:        1,
	SeverityMajor:           2,
	SeverityContraindicated: 3,
}

// RiskLevel is the aggregate risk classification reported for a whole
// medication list, derived from the worst per-pair severity.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
)

var riskRank = map[RiskLevel]int{
	RiskLow:      0,
	RiskModerate: 1,
	RiskHigh:     2,
}

// Confidence expresses how much evidence backs an analysis result. It is a
// statement about evidence availability, never about risk magnitude: a fully
// resolved "all clear" and a fully resolved "contraindicated" can both be
// high confidence.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

var confidenceRank = map[Confidence]int{
	ConfidenceLow:    0,
	ConfidenceMedium: 1,
	ConfidenceHigh:   2,
}

// SourceTier records which lookup tier resolved an interaction. Callers use
// it to distinguish "proven via the knowledge store" from "derived from the
// bundled fallback literature table".
type SourceTier string

const (
	TierCache     SourceTier = "cache"
	TierCurated   SourceTier = "curated"
	TierHeuristic SourceTier = "heuristic"
)

// AnalysisType is the closed set of analyses the dispatcher routes. Adding a
// value here must be accompanied by a new case in every exhaustive switch
// over the type; the dispatcher rejects anything else before running.
type AnalysisType string

const (
	AnalysisDDI         AnalysisType = "DDI"
	AnalysisDataQuality AnalysisType = "DATA_QUALITY"
	AnalysisEvidence    AnalysisType = "EVIDENCE"
	AnalysisPGx         AnalysisType = "PGX"
)

// RecommendationAction is the actionable advice attached to a PGx finding.
type RecommendationAction string

const (
	ActionAvoid          RecommendationAction = "avoid"
	ActionAdjustDose     RecommendationAction = "adjust_dose"
	ActionUseAlternative RecommendationAction = "use_alternative"
	ActionMonitor        RecommendationAction = "monitor"
	ActionNoAction       RecommendationAction = "no_action"
)

// Phenotype is the metabolic classification derived from a genotype,
// following CPIC metabolizer terminology.
type Phenotype string

const (
	PhenotypePoorMetabolizer         Phenotype = "poor_metabolizer"
	PhenotypeIntermediateMetabolizer Phenotype = "intermediate_metabolizer"
	PhenotypeNormalMetabolizer       Phenotype = "normal_metabolizer"
	PhenotypeRapidMetabolizer        Phenotype = "rapid_metabolizer"
	PhenotypeUltrarapidMetabolizer   Phenotype = "ultrarapid_metabolizer"
)

// Validation errors for medication-safety data integrity.
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidSeverity     = errors.New("invalid interaction severity")
	ErrInvalidAnalysisType = errors.New("invalid analysis type")
	ErrInvalidSourceTier   = errors.New("invalid source tier")
	ErrInvalidAction       = errors.New("invalid recommendation action")
	ErrUnavailable         = errors.New("collaborator unavailable")
)

// IsValid reports whether the severity is one of the four ordered levels.
// Only valid severities may enter the aggregation pipeline; an unrecognized
// severity from an external row is a data defect, not a new level.
func (s Severity) IsValid() bool {
	_, ok := severityRank[s]
	return ok
}

// Rank returns the severity's position in the total order, or -1 when the
// severity is not a recognized level.
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return -1
}

// AtLeast reports whether s is equal to or worse than other.
func (s Severity) AtLeast(other Severity) bool {
	return s.Rank() >= other.Rank()
}

func (s Severity) String() string {
	return string(s)
}

// LogFields returns structured logging fields for audit trails.
func (s Severity) LogFields() map[string]any {
	return map[string]any{
		"severity":      string(s),
		"severity_rank": s.Rank(),
		"risk_level":    string(s.RiskLevel()),
	}
}

// RiskLevel maps a per-pair severity to the aggregate risk vocabulary:
// major and contraindicated are high, moderate is moderate, minor is low.
func (s Severity) RiskLevel() RiskLevel {
	switch s {
	case SeverityContraindicated, SeverityMajor:
		return RiskHigh
	case SeverityModerate:
		return RiskModerate
	case SeverityMinor:
		return RiskLow
	default:
		return RiskLow
	}
}

// MaxSeverity returns the worse of a and b under the total order.
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// ParseSeverity normalizes an externally sourced severity string into the
// enum, tolerating case and surrounding whitespace. Unrecognized values
// return ErrInvalidSeverity so callers can reject bad rows loudly.
func ParseSeverity(raw string) (Severity, error) {
	s := Severity(strings.ToLower(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", ErrInvalidSeverity
	}
	return s, nil
}

// IsValid reports whether the risk level is recognized.
func (r RiskLevel) IsValid() bool {
	_, ok := riskRank[r]
	return ok
}

// Rank returns the risk level's position in the order low < moderate < high.
func (r RiskLevel) Rank() int {
	if v, ok := riskRank[r]; ok {
		return v
	}
	return -1
}

func (r RiskLevel) String() string {
	return string(r)
}

// IsValid reports whether the confidence level is recognized.
func (c Confidence) IsValid() bool {
	_, ok := confidenceRank[c]
	return ok
}

// Rank returns the confidence position in the order low < medium < high.
func (c Confidence) Rank() int {
	if v, ok := confidenceRank[c]; ok {
		return v
	}
	return -1
}

func (c Confidence) String() string {
	return string(c)
}

// IsValid reports whether the tier is one of cache, curated, heuristic.
func (t SourceTier) IsValid() bool {
	switch t {
	case TierCache, TierCurated, TierHeuristic:
		return true
	default:
		return false
	}
}

func (t SourceTier) String() string {
	return string(t)
}

// Confidence returns the evidence confidence implied by the tier that
// resolved a record. Confidence is monotonically non-increasing as
// resolution falls back through the tiers: cache > curated > heuristic.
func (t SourceTier) Confidence() Confidence {
	switch t {
	case TierCache:
		return ConfidenceHigh
	case TierCurated:
		return ConfidenceMedium
	case TierHeuristic:
		return ConfidenceLow
	default:
		return ConfidenceLow
	}
}

// IsValid reports whether the analysis type belongs to the closed set the
// dispatcher accepts.
func (a AnalysisType) IsValid() bool {
	switch a {
	case AnalysisDDI, AnalysisDataQuality, AnalysisEvidence, AnalysisPGx:
		return true
	default:
		return false
	}
}

func (a AnalysisType) String() string {
	return string(a)
}

// IsValid reports whether the action is a recognized recommendation.
func (a RecommendationAction) IsValid() bool {
	switch a {
	case ActionAvoid, ActionAdjustDose, ActionUseAlternative, ActionMonitor, ActionNoAction:
		return true
	default:
		return false
	}
}

func (a RecommendationAction) String() string {
	return string(a)
}

// IsValid reports whether the phenotype is a recognized metabolizer class.
func (p Phenotype) IsValid() bool {
	switch p {
	case PhenotypePoorMetabolizer, PhenotypeIntermediateMetabolizer,
		PhenotypeNormalMetabolizer, PhenotypeRapidMetabolizer,
		PhenotypeUltrarapidMetabolizer:
		return true
	default:
		return false
	}
}

func (p Phenotype) String() string {
	return string(p)
}

// Describe returns a human-readable phenotype description for clinical
// reporting.
func (p Phenotype) Describe() string {
	switch p {
	case PhenotypePoorMetabolizer:
		return "Poor metabolizer - little or no enzyme activity"
	case PhenotypeIntermediateMetabolizer:
		return "Intermediate metabolizer - reduced enzyme activity"
	case PhenotypeNormalMetabolizer:
		return "Normal metabolizer - typical enzyme activity"
	case PhenotypeRapidMetabolizer:
		return "Rapid metabolizer - increased enzyme activity"
	case PhenotypeUltrarapidMetabolizer:
		return "Ultrarapid metabolizer - greatly increased enzyme activity"
	default:
		return "Unknown phenotype"
	}
}
