package repository

import (
	"context"
	"errors"

	"github.com/medsafety-mcp-server/internal/domain"
)

// Directory adapts the alias and interaction repositories to the drug
// directory contract consumed by the analysis core. Repository not-found
// errors become (nil, nil) misses; any other error propagates so callers
// can degrade instead of failing the whole analysis.
type Directory struct {
	aliases      *AliasRepository
	interactions *InteractionRepository
}

// NewDirectory wraps the repositories as a drug directory.
func NewDirectory(aliases *AliasRepository, interactions *InteractionRepository) *Directory {
	return &Directory{
		aliases:      aliases,
		interactions: interactions,
	}
}

// LookupAlias resolves a drug name to its canonical identity.
func (d *Directory) LookupAlias(ctx context.Context, name string) (*domain.AliasRecord, error) {
	record, err := d.aliases.GetByAlias(ctx, name)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return record, err
}

// LookupInteraction answers the code-pair lookup path.
func (d *Directory) LookupInteraction(ctx context.Context, codeA, codeB string) (*domain.InteractionRecord, error) {
	record, err := d.interactions.GetByCodes(ctx, codeA, codeB)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return record, err
}

// LookupInteractionByName answers the name-pair lookup path.
func (d *Directory) LookupInteractionByName(ctx context.Context, nameA, nameB string) (*domain.InteractionRecord, error) {
	record, err := d.interactions.GetByNames(ctx, nameA, nameB)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return record, err
}

// Alternatives adapts the alternative repository to the candidate source
// contract consumed by the ranker.
type Alternatives struct {
	alternatives *AlternativeRepository
}

// NewAlternatives wraps the repository as an alternative source.
func NewAlternatives(alternatives *AlternativeRepository) *Alternatives {
	return &Alternatives{alternatives: alternatives}
}

// CandidatesFor returns the stored candidates for a target drug.
func (a *Alternatives) CandidatesFor(ctx context.Context, targetName string) ([]domain.AlternativeCandidate, error) {
	return a.alternatives.ListForTarget(ctx, targetName)
}
