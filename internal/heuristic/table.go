// Package heuristic holds the bundled last-resort interaction table: a
// small, versioned dataset of well-documented major interactions consulted
// only when neither the cache nor the curated tier has an answer.
//
// The table is a data asset, not logic. Its contents are replaceable: a
// deployment can override the compiled-in dataset with a JSON file, and the
// version string travels with every lookup so a record can always be traced
// back to the dataset that produced it.
package heuristic

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/medsafety-mcp-server/internal/domain"
)

// Entry is one fallback interaction row.
type Entry struct {
	Drugs         [2]string       `json:"drugs"`
	Severity      domain.Severity `json:"severity"`
	Mechanism     string          `json:"mechanism"`
	Effect        string          `json:"effect"`
	Management    string          `json:"management"`
	EvidenceLevel string          `json:"evidenceLevel"`
	Sources       []string        `json:"sources"`
}

// Record converts the entry to an interaction record tagged with the
// heuristic tier. The record's recommendation is the entry's management
// advice; its citations are the entry's sources.
func (e Entry) Record() domain.InteractionRecord {
	mechanism := e.Mechanism
	if e.Effect != "" {
		mechanism = strings.TrimRight(e.Mechanism, ".")
		if mechanism != "" {
			mechanism += "; "
		}
		mechanism += e.Effect
	}
	return domain.InteractionRecord{
		DrugA:          e.Drugs[0],
		DrugB:          e.Drugs[1],
		Severity:       e.Severity,
		Mechanism:      mechanism,
		Recommendation: e.Management,
		EvidenceLevel:  e.EvidenceLevel,
		Citations:      append([]string(nil), e.Sources...),
		SourceTier:     domain.TierHeuristic,
	}
}

// Table is an immutable, symmetric-keyed index over fallback entries. It is
// built once at startup and injected into the resolver; nothing mutates it
// afterward.
type Table struct {
	version string
	entries []Entry
	index   map[string]int
}

// tableFile is the JSON override format: the compiled-in dataset serialized
// verbatim.
type tableFile struct {
	Version string  `json:"version"`
	Entries []Entry `json:"entries"`
}

// NewTable validates and indexes a dataset. Every entry must name two
// distinct drugs, carry a recognized severity, and cite at least one
// source; a duplicate pair is a data-authoring defect. Any violation fails
// construction rather than being skipped.
func NewTable(version string, entries []Entry) (*Table, error) {
	if strings.TrimSpace(version) == "" {
		return nil, fmt.Errorf("heuristic table: version is required")
	}

	t := &Table{
		version: version,
		entries: make([]Entry, 0, len(entries)),
		index:   make(map[string]int, len(entries)),
	}

	for i, e := range entries {
		a := domain.FallbackIdentity(e.Drugs[0])
		b := domain.FallbackIdentity(e.Drugs[1])
		if a == "" || b == "" {
			return nil, fmt.Errorf("heuristic table entry %d: both drug names are required", i)
		}
		if a == b {
			return nil, fmt.Errorf("heuristic table entry %d: self-pair %q", i, a)
		}

		sev, err := domain.ParseSeverity(string(e.Severity))
		if err != nil {
			return nil, fmt.Errorf("heuristic table entry %d (%s + %s): %w", i, a, b, err)
		}
		e.Severity = sev

		if len(e.Sources) == 0 {
			return nil, fmt.Errorf("heuristic table entry %d (%s + %s): at least one source is required", i, a, b)
		}

		key := domain.SymmetricKey(a, b)
		if _, dup := t.index[key]; dup {
			return nil, fmt.Errorf("heuristic table entry %d: duplicate pair %s + %s", i, a, b)
		}

		e.Drugs[0], e.Drugs[1] = a, b
		t.index[key] = len(t.entries)
		t.entries = append(t.entries, e)
	}

	return t, nil
}

// LoadFile reads a JSON override dataset from disk.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("heuristic table: read %s: %w", path, err)
	}

	var file tableFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("heuristic table: parse %s: %w", path, err)
	}

	return NewTable(file.Version, file.Entries)
}

// Load returns the table for the given override path, or the compiled-in
// default when the path is empty.
func Load(path string) (*Table, error) {
	if path == "" {
		return Default()
	}
	return LoadFile(path)
}

// Lookup finds the entry covering the pair, trying both orderings through
// the symmetric key. The returned entry is a copy; mutating it cannot
// affect the table.
func (t *Table) Lookup(nameA, nameB string) (Entry, bool) {
	key := domain.SymmetricKey(domain.FallbackIdentity(nameA), domain.FallbackIdentity(nameB))
	i, ok := t.index[key]
	if !ok {
		return Entry{}, false
	}
	return t.entries[i], true
}

// Version returns the dataset version string.
func (t *Table) Version() string {
	return t.version
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.entries)
}
