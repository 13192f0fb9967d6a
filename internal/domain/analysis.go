package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// AnalysisRequest is the single dispatch envelope the core is invoked
// through. Payload is analysis-type-specific and is validated against the
// matching payload struct before any component runs.
type AnalysisRequest struct {
	AnalysisType AnalysisType    `json:"analysisType"`
	PatientID    string          `json:"patientId"`
	Payload      json.RawMessage `json:"payload"`
}

// Validate checks the envelope shape. Payload contents are validated by the
// per-type payload structs during dispatch.
func (r *AnalysisRequest) Validate() error {
	if !r.AnalysisType.IsValid() {
		return NewValidationError("analysisType", fmt.Sprintf("unsupported analysis type %q", r.AnalysisType), string(r.AnalysisType))
	}
	if strings.TrimSpace(r.PatientID) == "" {
		return NewValidationError("patientId", "patient identifier is required", "")
	}
	if len(r.Payload) == 0 {
		return NewValidationError("payload", "payload is required", "")
	}
	return nil
}

// DDIPayload is the medication list input for a DDI analysis. Consolidate
// defaults to true when omitted: multiple formulations of one base substance
// are merged before pair enumeration.
type DDIPayload struct {
	Medications []MedicationReference `json:"medications"`
	Consolidate *bool                 `json:"consolidate,omitempty"`
}

// Validate enforces the DDI input contract.
func (p *DDIPayload) Validate() error {
	if len(p.Medications) == 0 {
		return NewValidationError("medications", "at least one medication is required", "")
	}
	for i := range p.Medications {
		if err := p.Medications[i].Validate(); err != nil {
			return NewValidationError(fmt.Sprintf("medications[%d].name", i), "medication name is required", "")
		}
	}
	return nil
}

// ShouldConsolidate resolves the consolidation flag with its default.
func (p *DDIPayload) ShouldConsolidate() bool {
	if p.Consolidate == nil {
		return true
	}
	return *p.Consolidate
}

// PGxPayload carries genotype observations plus the medication list they
// are evaluated against.
type PGxPayload struct {
	GenotypeResults []PGxResult           `json:"genotypeResults"`
	Medications     []MedicationReference `json:"medications"`
}

// Validate enforces the PGx input contract.
func (p *PGxPayload) Validate() error {
	if len(p.GenotypeResults) == 0 {
		return NewValidationError("genotypeResults", "at least one genotype result is required", "")
	}
	for i := range p.GenotypeResults {
		if err := p.GenotypeResults[i].Validate(); err != nil {
			return NewValidationError(fmt.Sprintf("genotypeResults[%d].gene", i), "gene is required", "")
		}
	}
	if len(p.Medications) == 0 {
		return NewValidationError("medications", "at least one medication is required", "")
	}
	for i := range p.Medications {
		if err := p.Medications[i].Validate(); err != nil {
			return NewValidationError(fmt.Sprintf("medications[%d].name", i), "medication name is required", "")
		}
	}
	return nil
}

// Demographics is the patient summary consumed by the data-quality
// analysis.
type Demographics struct {
	Age      int     `json:"age,omitempty"`
	Sex      string  `json:"sex,omitempty"`
	WeightKg float64 `json:"weightKg,omitempty"`
	HeightCm float64 `json:"heightCm,omitempty"`
}

// LabResult is a single laboratory observation.
type LabResult struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}

// DataQualityPayload is the record snapshot assessed for completeness.
type DataQualityPayload struct {
	Demographics *Demographics         `json:"demographics,omitempty"`
	Labs         []LabResult           `json:"labs,omitempty"`
	Allergies    []string              `json:"allergies,omitempty"`
	Medications  []MedicationReference `json:"medications"`
}

// Validate enforces the data-quality input contract.
func (p *DataQualityPayload) Validate() error {
	if len(p.Medications) == 0 {
		return NewValidationError("medications", "at least one medication is required", "")
	}
	return nil
}

// EvidencePayload names the medications whose interaction evidence should
// be summarized.
type EvidencePayload struct {
	Medications []MedicationReference `json:"medications"`
}

// Validate enforces the evidence input contract.
func (p *EvidencePayload) Validate() error {
	if len(p.Medications) < 2 {
		return NewValidationError("medications", "at least two medications are required for evidence summaries", "")
	}
	for i := range p.Medications {
		if err := p.Medications[i].Validate(); err != nil {
			return NewValidationError(fmt.Sprintf("medications[%d].name", i), "medication name is required", "")
		}
	}
	return nil
}

// DDIAnalysisResult is the interaction analysis envelope. An empty
// PerPairInteractions slice with low confidence means "unknown", not
// "safe"; Notes carries the consult-additional-sources notice in that case.
type DDIAnalysisResult struct {
	OverallRiskLevel    RiskLevel           `json:"overallRiskLevel"`
	PerPairInteractions []InteractionRecord `json:"perPairInteractions"`
	Confidence          Confidence          `json:"confidence"`
	Notes               []string            `json:"notes,omitempty"`
}

// PGxOverview summarizes the genotype evaluation: which genes were seen,
// the phenotypes established for them, and the genes left unresolved.
type PGxOverview struct {
	GenesEvaluated []string    `json:"genesEvaluated"`
	Phenotypes     []PGxResult `json:"phenotypes"`
	Gaps           []string    `json:"gaps"`
}

// PGxAnalysisResult is the pharmacogenomic analysis envelope.
type PGxAnalysisResult struct {
	PGxOverview            PGxOverview                `json:"pgxOverview"`
	PerDrugRecommendations []PerDrugPGxRecommendation `json:"perDrugRecommendations"`
}

// DataQualityFinding is one medication-record completeness issue.
// Severity is one of "info", "warning", "danger".
type DataQualityFinding struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

// DataQualityResult is the data-quality analysis envelope. Completeness is
// a 0-100 score over the checked dimensions.
type DataQualityResult struct {
	Findings     []DataQualityFinding `json:"findings"`
	Completeness int                  `json:"completeness"`
}

// PairEvidence is the provenance summary for one drug pair: which tier
// resolved it and on what evidence.
type PairEvidence struct {
	DrugA         string     `json:"drugA"`
	DrugB         string     `json:"drugB"`
	Resolved      bool       `json:"resolved"`
	SourceTier    SourceTier `json:"sourceTier,omitempty"`
	EvidenceLevel string     `json:"evidenceLevel,omitempty"`
	Mechanism     string     `json:"mechanism,omitempty"`
	Citations     []string   `json:"citations,omitempty"`
}

// EvidenceAnalysisResult is the evidence analysis envelope. Sources lists
// the distinct citations across all resolved pairs.
type EvidenceAnalysisResult struct {
	PairEvidence []PairEvidence `json:"pairEvidence"`
	Sources      []string       `json:"sources"`
}

// AnalysisResult is the dispatcher's output envelope. Exactly one of the
// per-type result pointers is set, matching AnalysisType; consumers switch
// on AnalysisType rather than probing pointers.
type AnalysisResult struct {
	AnalysisType AnalysisType            `json:"analysisType"`
	PatientID    string                  `json:"patientId,omitempty"`
	RequestID    string                  `json:"requestId"`
	GeneratedAt  time.Time               `json:"generatedAt"`
	DDI          *DDIAnalysisResult      `json:"ddi,omitempty"`
	PGx          *PGxAnalysisResult      `json:"pgx,omitempty"`
	DataQuality  *DataQualityResult      `json:"dataQuality,omitempty"`
	Evidence     *EvidenceAnalysisResult `json:"evidence,omitempty"`
}

// ProgressEvent is one stage notification emitted while an analysis runs,
// consumed by the streaming endpoint.
type ProgressEvent struct {
	Stage  string `json:"stage"`
	Detail string `json:"detail,omitempty"`
	Count  int    `json:"count,omitempty"`
}
