package domain

import (
	"context"
)

// DrugDirectory is the canonical drug directory collaborator contract. The
// analysis core only ever reads through it; any store satisfying this shape
// is interchangeable (remote service, knowledge-base table, in-memory
// fixture).
//
// Lookup methods return (nil, nil) on a clean miss. A non-nil error means
// the collaborator itself failed; callers degrade (fallback identity,
// tier fallthrough) rather than abort.
type DrugDirectory interface {
	// LookupAlias resolves a free-text or brand name to its canonical
	// identity. Matching is case-insensitive on alias and canonical name.
	LookupAlias(ctx context.Context, name string) (*AliasRecord, error)

	// LookupInteraction fetches an interaction row by canonical code pair.
	// Implementations need not be order-insensitive; the resolver tries
	// both orderings.
	LookupInteraction(ctx context.Context, codeA, codeB string) (*InteractionRecord, error)

	// LookupInteractionByName fetches an interaction row by canonical
	// substance name pair.
	LookupInteractionByName(ctx context.Context, nameA, nameB string) (*InteractionRecord, error)
}

// InteractionResolver resolves drug pairs to interaction records through
// the tier chain. A nil record with nil error means "unknown": no tier had
// evidence, which is not the same as "no interaction".
type InteractionResolver interface {
	Resolve(ctx context.Context, pair DrugPair) (*InteractionRecord, error)
}

// AlternativeSource supplies substitute-therapy candidates for a drug.
type AlternativeSource interface {
	CandidatesFor(ctx context.Context, drugName string) ([]AlternativeCandidate, error)
}

// AnalysisRunner is the dispatch contract the transport surfaces (HTTP,
// MCP tools) invoke. Implementations validate the request envelope and
// payload shape before running any component.
type AnalysisRunner interface {
	Run(ctx context.Context, req AnalysisRequest) (*AnalysisResult, error)
}
