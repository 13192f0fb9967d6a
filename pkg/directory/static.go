package directory

import (
	"context"
	"fmt"

	"github.com/medsafety-mcp-server/internal/domain"
)

// AliasEntry is one entry of an alias dataset.
type AliasEntry struct {
	Alias         string `json:"alias"`
	CanonicalName string `json:"canonicalName"`
	CanonicalCode string `json:"canonicalCode"`
}

// InteractionEntry is one entry of an interaction dataset. Entries are
// indexed both by canonical code pair and by name pair, so a single entry can
// answer either lookup path.
type InteractionEntry struct {
	CodeA          string          `json:"codeA"`
	CodeB          string          `json:"codeB"`
	NameA          string          `json:"nameA"`
	NameB          string          `json:"nameB"`
	Severity       domain.Severity `json:"severity"`
	Mechanism      string          `json:"mechanism"`
	Recommendation string          `json:"recommendation"`
	EvidenceLevel  string          `json:"evidenceLevel"`
	Citations      []string        `json:"citations"`
}

// StaticDirectory serves directory lookups from a compiled-in dataset. It
// backs the lite deployment, where no remote directory or database is
// available, and acts as the fallback behind ResilientDirectory in the full
// deployment. The dataset is immutable after construction, so the type is
// safe for concurrent use.
type StaticDirectory struct {
	aliases map[string]domain.AliasRecord
	byCode  map[string]*InteractionEntry
	byName  map[string]*InteractionEntry
}

// NewStaticDirectory builds a directory over the given entries. Construction
// fails on authoring defects such as duplicate pairs or invalid severities.
func NewStaticDirectory(aliases []AliasEntry, interactions []InteractionEntry) (*StaticDirectory, error) {
	d := &StaticDirectory{
		aliases: make(map[string]domain.AliasRecord, len(aliases)),
		byCode:  make(map[string]*InteractionEntry, len(interactions)),
		byName:  make(map[string]*InteractionEntry, len(interactions)),
	}

	for _, entry := range aliases {
		key := domain.FallbackIdentity(entry.Alias)
		if key == "" {
			return nil, fmt.Errorf("alias entry with empty alias for %q", entry.CanonicalName)
		}
		if entry.CanonicalName == "" {
			return nil, fmt.Errorf("alias %q has no canonical name", entry.Alias)
		}
		if _, dup := d.aliases[key]; dup {
			return nil, fmt.Errorf("duplicate alias %q", entry.Alias)
		}
		d.aliases[key] = domain.AliasRecord{
			CanonicalName: entry.CanonicalName,
			CanonicalCode: entry.CanonicalCode,
		}
	}

	for i := range interactions {
		entry := &interactions[i]
		if !entry.Severity.IsValid() {
			return nil, fmt.Errorf("interaction %s/%s: %w", entry.NameA, entry.NameB, domain.ErrInvalidSeverity)
		}
		if entry.NameA == "" || entry.NameB == "" {
			return nil, fmt.Errorf("interaction entry missing drug names")
		}
		if len(entry.Citations) == 0 {
			return nil, fmt.Errorf("interaction %s/%s has no citations", entry.NameA, entry.NameB)
		}

		nameKey := domain.SymmetricKey(domain.FallbackIdentity(entry.NameA), domain.FallbackIdentity(entry.NameB))
		if _, dup := d.byName[nameKey]; dup {
			return nil, fmt.Errorf("duplicate interaction pair %s/%s", entry.NameA, entry.NameB)
		}
		d.byName[nameKey] = entry

		if entry.CodeA != "" && entry.CodeB != "" {
			codeKey := domain.SymmetricKey(entry.CodeA, entry.CodeB)
			if _, dup := d.byCode[codeKey]; dup {
				return nil, fmt.Errorf("duplicate interaction codes %s/%s", entry.CodeA, entry.CodeB)
			}
			d.byCode[codeKey] = entry
		}
	}

	return d, nil
}

// NewDefaultStaticDirectory builds a directory over the bundled dataset.
func NewDefaultStaticDirectory() (*StaticDirectory, error) {
	return NewStaticDirectory(defaultAliases, defaultInteractions)
}

// DefaultAliases returns a copy of the bundled alias dataset. Seeders use it
// to populate database-backed stores with the same content the static
// directory serves.
func DefaultAliases() []AliasEntry {
	out := make([]AliasEntry, len(defaultAliases))
	copy(out, defaultAliases)
	return out
}

// DefaultInteractions returns a copy of the bundled interaction dataset.
func DefaultInteractions() []InteractionEntry {
	out := make([]InteractionEntry, len(defaultInteractions))
	copy(out, defaultInteractions)
	return out
}

// LookupAlias resolves a drug name against the bundled alias table.
func (d *StaticDirectory) LookupAlias(ctx context.Context, name string) (*domain.AliasRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec, ok := d.aliases[domain.FallbackIdentity(name)]
	if !ok {
		return nil, nil
	}
	out := rec
	return &out, nil
}

// LookupInteraction answers the code-pair lookup path.
func (d *StaticDirectory) LookupInteraction(ctx context.Context, codeA, codeB string) (*domain.InteractionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if codeA == "" || codeB == "" {
		return nil, nil
	}

	entry, ok := d.byCode[domain.SymmetricKey(codeA, codeB)]
	if !ok {
		return nil, nil
	}
	return entry.Record(domain.TierCache), nil
}

// LookupInteractionByName answers the name-pair lookup path.
func (d *StaticDirectory) LookupInteractionByName(ctx context.Context, nameA, nameB string) (*domain.InteractionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := domain.SymmetricKey(domain.FallbackIdentity(nameA), domain.FallbackIdentity(nameB))
	entry, ok := d.byName[key]
	if !ok {
		return nil, nil
	}
	return entry.Record(domain.TierCurated), nil
}

// AliasCount reports the size of the alias table.
func (d *StaticDirectory) AliasCount() int {
	return len(d.aliases)
}

// InteractionCount reports the number of interaction entries.
func (d *StaticDirectory) InteractionCount() int {
	return len(d.byName)
}

// Record converts the entry to a domain record, stamping the tier of the
// lookup path that produced it.
func (e *InteractionEntry) Record(tier domain.SourceTier) *domain.InteractionRecord {
	citations := make([]string, len(e.Citations))
	copy(citations, e.Citations)

	return &domain.InteractionRecord{
		DrugA:          e.NameA,
		DrugB:          e.NameB,
		Severity:       e.Severity,
		Mechanism:      e.Mechanism,
		Recommendation: e.Recommendation,
		EvidenceLevel:  e.EvidenceLevel,
		Citations:      citations,
		SourceTier:     tier,
	}
}
