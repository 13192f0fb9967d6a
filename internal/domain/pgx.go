package domain

import (
	"fmt"
	"strings"
)

// PGxResult is one genotype observation for a patient. Phenotype may be
// absent (a data gap); the phenotype mapper fills it in when a deterministic
// rule exists and otherwise reports the gene as a gap.
type PGxResult struct {
	Gene      string    `json:"gene"`
	Genotype  string    `json:"genotype,omitempty"`
	Phenotype Phenotype `json:"phenotype,omitempty"`
}

// Validate ensures the observation names a gene. Genotype and phenotype are
// both optional; an observation with neither is still a reportable gap.
func (r *PGxResult) Validate() error {
	if strings.TrimSpace(r.Gene) == "" {
		return fmt.Errorf("pgx result validation: %w: gene is required", ErrInvalidInput)
	}
	if r.Phenotype != "" && !r.Phenotype.IsValid() {
		return fmt.Errorf("pgx result validation: %w: unrecognized phenotype %q", ErrInvalidInput, r.Phenotype)
	}
	return nil
}

// NormalizedGene returns the gene symbol in canonical uppercase form.
func (r *PGxResult) NormalizedGene() string {
	return strings.ToUpper(strings.TrimSpace(r.Gene))
}

// PerDrugPGxRecommendation is an actionable, cited pharmacogenomic
// recommendation for one medication. Citations must never be empty: a
// recommendation without a supporting citation is an unsupported clinical
// claim and is treated as a rule-authoring defect, not sanitized away.
type PerDrugPGxRecommendation struct {
	DrugName       string               `json:"drugName"`
	Gene           string               `json:"gene"`
	Phenotype      Phenotype            `json:"phenotype"`
	Recommendation RecommendationAction `json:"recommendation"`
	Rationale      string               `json:"rationale"`
	Citations      []string             `json:"citations"`
}

// Validate enforces the recommendation invariants.
func (p *PerDrugPGxRecommendation) Validate() error {
	if strings.TrimSpace(p.DrugName) == "" {
		return fmt.Errorf("pgx recommendation validation: %w: drug name is required", ErrInvalidInput)
	}
	if strings.TrimSpace(p.Gene) == "" {
		return fmt.Errorf("pgx recommendation validation: %w: gene is required", ErrInvalidInput)
	}
	if !p.Recommendation.IsValid() {
		return fmt.Errorf("pgx recommendation validation: %w: %q", ErrInvalidAction, p.Recommendation)
	}
	if len(p.Citations) == 0 {
		return fmt.Errorf("pgx recommendation validation: %w: at least one citation is required", ErrInvalidInput)
	}
	return nil
}

// PatientContext carries the patient-level facts the alternative ranker
// consults: known phenotypes keyed by gene symbol. It is read-only to the
// core.
type PatientContext struct {
	PatientID  string               `json:"patientId,omitempty"`
	Phenotypes map[string]Phenotype `json:"phenotypes,omitempty"`
}

// PhenotypeFor returns the patient's phenotype for the gene, if known.
func (c PatientContext) PhenotypeFor(gene string) (Phenotype, bool) {
	p, ok := c.Phenotypes[strings.ToUpper(strings.TrimSpace(gene))]
	return p, ok
}

// GenePhenotype names a (gene, phenotype) combination; the alternative
// tables use it to declare phenotype contraindications.
type GenePhenotype struct {
	Gene      string    `json:"gene"`
	Phenotype Phenotype `json:"phenotype"`
}

// PGxGuidelineRecord is a stored actionability rule: for a drug and a
// patient phenotype of a gene, the guideline-backed action to take. The
// knowledge base keys guidelines by (drug, gene, phenotype).
type PGxGuidelineRecord struct {
	Drug      string               `json:"drug"`
	Gene      string               `json:"gene"`
	Phenotype Phenotype            `json:"phenotype"`
	Action    RecommendationAction `json:"action"`
	Rationale string               `json:"rationale"`
	Citations []string             `json:"citations"`
}

// Validate enforces the same authoring invariants the built-in rule table
// panics on: a complete identity and at least one citation.
func (g *PGxGuidelineRecord) Validate() error {
	if strings.TrimSpace(g.Drug) == "" {
		return fmt.Errorf("pgx guideline validation: %w: drug is required", ErrInvalidInput)
	}
	if strings.TrimSpace(g.Gene) == "" {
		return fmt.Errorf("pgx guideline validation: %w: gene is required", ErrInvalidInput)
	}
	if !g.Phenotype.IsValid() {
		return fmt.Errorf("pgx guideline validation: %w: unrecognized phenotype %q", ErrInvalidInput, g.Phenotype)
	}
	if !g.Action.IsValid() {
		return fmt.Errorf("pgx guideline validation: %w: %q", ErrInvalidAction, g.Action)
	}
	if len(g.Citations) == 0 {
		return fmt.Errorf("pgx guideline validation: %w: at least one citation is required", ErrInvalidInput)
	}
	return nil
}
