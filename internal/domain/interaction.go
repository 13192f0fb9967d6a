package domain

import (
	"fmt"
	"strings"
)

// InteractionRecord is one resolved drug-drug interaction. DrugA/DrugB carry
// canonical substance names; pair identity is unordered, so a record for
// (A,B) answers a query for (B,A) as well.
type InteractionRecord struct {
	DrugA          string     `json:"drugA"`
	DrugB          string     `json:"drugB"`
	Severity       Severity   `json:"severity"`
	Mechanism      string     `json:"mechanism,omitempty"`
	Recommendation string     `json:"recommendation,omitempty"`
	EvidenceLevel  string     `json:"evidenceLevel"`
	Citations      []string   `json:"citations"`
	SourceTier     SourceTier `json:"sourceTier"`
}

// Validate ensures a record is safe to surface. Records arriving from
// external stores go through this before entering aggregation.
func (r *InteractionRecord) Validate() error {
	if strings.TrimSpace(r.DrugA) == "" || strings.TrimSpace(r.DrugB) == "" {
		return fmt.Errorf("interaction record validation: %w: both drug names are required", ErrInvalidInput)
	}
	if !r.Severity.IsValid() {
		return fmt.Errorf("interaction record validation: %w: %q", ErrInvalidSeverity, r.Severity)
	}
	if !r.SourceTier.IsValid() {
		return fmt.Errorf("interaction record validation: %w: %q", ErrInvalidSourceTier, r.SourceTier)
	}
	return nil
}

// Matches reports whether the record covers the given substance pair in
// either order. Comparison is on the fallback identity form so that display
// casing never defeats a match.
func (r *InteractionRecord) Matches(nameA, nameB string) bool {
	a, b := FallbackIdentity(nameA), FallbackIdentity(nameB)
	ra, rb := FallbackIdentity(r.DrugA), FallbackIdentity(r.DrugB)
	return (ra == a && rb == b) || (ra == b && rb == a)
}

// Key returns the symmetric pair key for the record's substances.
func (r *InteractionRecord) Key() string {
	return SymmetricKey(FallbackIdentity(r.DrugA), FallbackIdentity(r.DrugB))
}

// Confidence returns the evidence confidence implied by the record's tier.
func (r *InteractionRecord) Confidence() Confidence {
	return r.SourceTier.Confidence()
}

// LogFields returns structured logging fields for the record.
func (r *InteractionRecord) LogFields() map[string]any {
	return map[string]any{
		"drug_a":      r.DrugA,
		"drug_b":      r.DrugB,
		"severity":    string(r.Severity),
		"source_tier": string(r.SourceTier),
		"citations":   len(r.Citations),
	}
}
