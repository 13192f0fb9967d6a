package kb

import (
	"context"

	"github.com/medsafety-mcp-server/internal/domain"
)

// StoreDirectory adapts a knowledge base store to the DrugDirectory contract
// consumed by the analysis services. The store already uses (nil, nil) miss
// semantics, so the adapter only narrows the interface.
type StoreDirectory struct {
	store Store
}

// NewStoreDirectory wraps a store as a drug directory.
func NewStoreDirectory(store Store) *StoreDirectory {
	return &StoreDirectory{store: store}
}

// LookupAlias resolves a drug name to its canonical identity.
func (d *StoreDirectory) LookupAlias(ctx context.Context, name string) (*domain.AliasRecord, error) {
	return d.store.GetAlias(ctx, name)
}

// LookupInteraction answers the code-pair lookup path.
func (d *StoreDirectory) LookupInteraction(ctx context.Context, codeA, codeB string) (*domain.InteractionRecord, error) {
	return d.store.GetInteractionByCodes(ctx, codeA, codeB)
}

// LookupInteractionByName answers the name-pair lookup path.
func (d *StoreDirectory) LookupInteractionByName(ctx context.Context, nameA, nameB string) (*domain.InteractionRecord, error) {
	return d.store.GetInteractionByNames(ctx, nameA, nameB)
}

// StoreAlternatives adapts a knowledge base store to the AlternativeSource
// contract consumed by the ranker.
type StoreAlternatives struct {
	store Store
}

// NewStoreAlternatives wraps a store as an alternative source.
func NewStoreAlternatives(store Store) *StoreAlternatives {
	return &StoreAlternatives{store: store}
}

// CandidatesFor returns the stored alternative candidates for a drug.
func (a *StoreAlternatives) CandidatesFor(ctx context.Context, targetName string) ([]domain.AlternativeCandidate, error) {
	return a.store.GetAlternatives(ctx, targetName)
}
