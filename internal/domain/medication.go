package domain

import (
	"fmt"
	"strings"
)

// MedicationReference is a caller-supplied, possibly free-text medication
// entry. It is input-only and ephemeral: nothing downstream mutates it, and
// it is never persisted by the analysis core.
type MedicationReference struct {
	Name       string `json:"name" validate:"required"`
	Dose       string `json:"dose,omitempty"`
	Route      string `json:"route,omitempty"`
	Frequency  string `json:"frequency,omitempty"`
	Indication string `json:"indication,omitempty"`
}

// Validate ensures the reference can enter the analysis pipeline.
func (m *MedicationReference) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("medication reference validation: %w: name is required", ErrInvalidInput)
	}
	return nil
}

// FallbackIdentity is the deterministic canonical form used when the drug
// directory has no match for a name: lowercase, surrounding whitespace
// trimmed. Both the normalizer fallback and the heuristic table key on it.
func FallbackIdentity(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// AliasRecord is a directory row mapping a free-text or brand name to a
// canonical identity. CanonicalCode is empty when the directory knows the
// name but carries no code for it.
type AliasRecord struct {
	CanonicalName string `json:"canonicalName"`
	CanonicalCode string `json:"canonicalCode,omitempty"`
}

// NormalizedDrug is a medication reference resolved to its canonical
// identity. CanonicalCode is present only when the directory matched;
// otherwise CanonicalName holds the lowercase-trimmed fallback form.
// Immutable once produced.
type NormalizedDrug struct {
	OriginalReference MedicationReference `json:"originalReference"`
	CanonicalName     string              `json:"canonicalName"`
	CanonicalCode     string              `json:"canonicalCode,omitempty"`
}

// Identity returns the strongest canonical key available for the drug:
// the code when the directory matched, else the canonical name.
func (d NormalizedDrug) Identity() string {
	if d.CanonicalCode != "" {
		return d.CanonicalCode
	}
	return d.CanonicalName
}

// DisplayName returns the name suitable for user-facing output, preferring
// what the caller originally wrote.
func (d NormalizedDrug) DisplayName() string {
	if name := strings.TrimSpace(d.OriginalReference.Name); name != "" {
		return name
	}
	return d.CanonicalName
}

// HasCode reports whether the directory supplied a canonical code.
func (d NormalizedDrug) HasCode() bool {
	return d.CanonicalCode != ""
}

// DrugPair is an unordered two-drug combination. (A,B) and (B,A) denote the
// same pair; every lookup keyed by a pair must go through Key or otherwise
// treat the two orderings identically.
type DrugPair struct {
	A NormalizedDrug `json:"a"`
	B NormalizedDrug `json:"b"`
}

// Key returns the symmetric identity of the pair: the two canonical
// identities joined in lexicographic order. Key(A,B) == Key(B,A) always.
func (p DrugPair) Key() string {
	return SymmetricKey(p.A.Identity(), p.B.Identity())
}

// NameKey returns the symmetric identity built from canonical names only,
// used by tiers that are keyed by substance name rather than code.
func (p DrugPair) NameKey() string {
	return SymmetricKey(p.A.CanonicalName, p.B.CanonicalName)
}

// String renders the pair for logs and messages, preserving input order.
func (p DrugPair) String() string {
	return fmt.Sprintf("%s + %s", p.A.CanonicalName, p.B.CanonicalName)
}

// SymmetricKey joins two identity strings in lexicographic order so that
// argument order never changes the key.
func SymmetricKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}
