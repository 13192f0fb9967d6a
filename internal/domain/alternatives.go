package domain

import (
	"fmt"
	"strings"
)

// BestScoreThreshold is the hard gate for marking an alternative "best":
// both safety and efficacy must reach it independently. The gate is fixed,
// not configuration.
const BestScoreThreshold = 90

// FormularyLikelyCovered is the formulary status used by the covered-only
// visibility filter.
const FormularyLikelyCovered = "likely-covered"

// AlternativeCandidate is a substitute-therapy row as sourced from the
// alternatives table, before ranking. Scores are 0-100 and independently
// sourced; neither is derived from the other. Medication carries the
// candidate's canonical identity so the ranker can run interaction checks
// against co-medications.
type AlternativeCandidate struct {
	Medication               NormalizedDrug  `json:"medication"`
	SafetyScore              int             `json:"safetyScore"`
	EfficacyScore            int             `json:"efficacyScore"`
	FormularyStatus          string          `json:"formularyStatus"`
	Rationale                string          `json:"rationale,omitempty"`
	ContraindicatedPhenotype []GenePhenotype `json:"contraindicatedPhenotypes,omitempty"`
}

// Validate rejects candidates with out-of-range scores before they can
// reach ranking.
func (c *AlternativeCandidate) Validate() error {
	if strings.TrimSpace(c.Medication.CanonicalName) == "" {
		return fmt.Errorf("alternative candidate validation: %w: medication is required", ErrInvalidInput)
	}
	if c.SafetyScore < 0 || c.SafetyScore > 100 {
		return fmt.Errorf("alternative candidate validation: %w: safety score %d out of range", ErrInvalidInput, c.SafetyScore)
	}
	if c.EfficacyScore < 0 || c.EfficacyScore > 100 {
		return fmt.Errorf("alternative candidate validation: %w: efficacy score %d out of range", ErrInvalidInput, c.EfficacyScore)
	}
	return nil
}

// ContraindicatedFor reports whether the candidate is contraindicated for
// any phenotype in the patient context. Contraindicated candidates are
// excluded before scoring, never merely down-ranked.
func (c *AlternativeCandidate) ContraindicatedFor(pctx PatientContext) bool {
	for _, gp := range c.ContraindicatedPhenotype {
		if p, ok := pctx.PhenotypeFor(gp.Gene); ok && p == gp.Phenotype {
			return true
		}
	}
	return false
}

// AlternativeSuggestion is a ranked substitute therapy. Score is the
// composite safety+efficacy sum; Best is a hard gate on both component
// scores, never on the composite. InteractionCaution is set when the
// suggestion itself interacts at major-or-worse severity with a
// co-medication; such suggestions are ordered after clean ones but keep
// their scores.
type AlternativeSuggestion struct {
	Medication         string `json:"medication"`
	SafetyScore        int    `json:"safetyScore"`
	EfficacyScore      int    `json:"efficacyScore"`
	Score              int    `json:"score"`
	Best               bool   `json:"best"`
	FormularyStatus    string `json:"formularyStatus"`
	Rationale          string `json:"rationale,omitempty"`
	InteractionCaution string `json:"interactionCaution,omitempty"`
}

// MeetsBestGate reports whether both component scores reach the best
// threshold. Best must equal this for every emitted suggestion.
func (s *AlternativeSuggestion) MeetsBestGate() bool {
	return s.SafetyScore >= BestScoreThreshold && s.EfficacyScore >= BestScoreThreshold
}

// LikelyCovered reports whether the suggestion passes the formulary
// visibility filter. Filtering affects visibility only and never changes
// Score or Best.
func (s *AlternativeSuggestion) LikelyCovered() bool {
	return s.FormularyStatus == FormularyLikelyCovered
}
