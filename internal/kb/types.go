// Package kb provides persistent storage for the medication knowledge base:
// drug aliases, curated interaction records, and ranked alternative
// candidates. The analysis path only reads from the knowledge base; writes
// happen at seed or import time.
package kb

import (
	"context"
	"io"
	"time"

	"github.com/medsafety-mcp-server/internal/domain"
	"github.com/medsafety-mcp-server/pkg/directory"
)

// AlternativeEntry is one stored alternative candidate for a target drug.
type AlternativeEntry struct {
	TargetName               string                 `json:"targetName"`
	CandidateName            string                 `json:"candidateName"`
	CandidateCode            string                 `json:"candidateCode,omitempty"`
	SafetyScore              int                    `json:"safetyScore"`
	EfficacyScore            int                    `json:"efficacyScore"`
	FormularyStatus          string                 `json:"formularyStatus,omitempty"`
	Rationale                string                 `json:"rationale,omitempty"`
	ContraindicatedPhenotype []domain.GenePhenotype `json:"contraindicatedPhenotype,omitempty"`
}

// Candidate converts the stored entry to the domain candidate consumed by
// the ranker.
func (e *AlternativeEntry) Candidate() domain.AlternativeCandidate {
	phenotypes := make([]domain.GenePhenotype, len(e.ContraindicatedPhenotype))
	copy(phenotypes, e.ContraindicatedPhenotype)

	return domain.AlternativeCandidate{
		Medication: domain.NormalizedDrug{
			OriginalReference: domain.MedicationReference{Name: e.CandidateName},
			CanonicalName:     e.CandidateName,
			CanonicalCode:     e.CandidateCode,
		},
		SafetyScore:              e.SafetyScore,
		EfficacyScore:            e.EfficacyScore,
		FormularyStatus:          e.FormularyStatus,
		Rationale:                e.Rationale,
		ContraindicatedPhenotype: phenotypes,
	}
}

// Store defines the knowledge base storage operations. Lookup methods return
// (nil, nil) on a miss; an error always means the store itself failed.
type Store interface {
	// GetAlias resolves a drug name to its canonical identity.
	GetAlias(ctx context.Context, name string) (*domain.AliasRecord, error)

	// GetInteractionByCodes looks up an interaction by canonical code pair.
	// The lookup is order-insensitive.
	GetInteractionByCodes(ctx context.Context, codeA, codeB string) (*domain.InteractionRecord, error)

	// GetInteractionByNames looks up an interaction by drug name pair.
	// The lookup is order-insensitive and case-insensitive.
	GetInteractionByNames(ctx context.Context, nameA, nameB string) (*domain.InteractionRecord, error)

	// GetAlternatives returns the stored alternative candidates for a drug.
	GetAlternatives(ctx context.Context, targetName string) ([]domain.AlternativeCandidate, error)

	// CountInteractions returns the number of stored interaction records.
	CountInteractions(ctx context.Context) (int64, error)

	// ExportJSON writes the full knowledge base to a JSON writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON merges a JSON export into the store. Existing entries are
	// kept; only new entries are imported.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	// Ping verifies the underlying connection.
	Ping(ctx context.Context) error

	// Close closes the store and releases resources.
	Close() error
}

// Export is the JSON export format of the knowledge base. It reuses the
// dataset entry types from pkg/directory so exports can seed a static
// directory and vice versa.
type Export struct {
	Version      string                       `json:"version"`
	ExportedAt   time.Time                    `json:"exportedAt"`
	Aliases      []directory.AliasEntry       `json:"aliases"`
	Interactions []directory.InteractionEntry `json:"interactions"`
	Alternatives []AlternativeEntry           `json:"alternatives"`
}
