package service

import (
	"github.com/medsafety-mcp-server/internal/domain"
)

// Consolidate merges duplicate formulations of the same base substance into
// one entity per canonical identity. The first occurrence wins: its original
// reference and dose metadata survive, later duplicates are dropped. Input
// order is otherwise preserved, so consolidation is deterministic for a
// given list.
func Consolidate(drugs []domain.NormalizedDrug) []domain.NormalizedDrug {
	if len(drugs) <= 1 {
		return drugs
	}

	seen := make(map[string]struct{}, len(drugs))
	out := make([]domain.NormalizedDrug, 0, len(drugs))
	for _, d := range drugs {
		id := d.Identity()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, d)
	}
	return out
}

// EnumeratePairs produces every unordered two-drug combination from the
// list: n drugs yield n*(n-1)/2 pairs, each emitted exactly once with the
// earlier-listed drug first. A list of fewer than two drugs yields no pairs,
// which is a valid empty analysis, not an error.
func EnumeratePairs(drugs []domain.NormalizedDrug) []domain.DrugPair {
	if len(drugs) < 2 {
		return nil
	}

	pairs := make([]domain.DrugPair, 0, len(drugs)*(len(drugs)-1)/2)
	for i := 0; i < len(drugs); i++ {
		for j := i + 1; j < len(drugs); j++ {
			pairs = append(pairs, domain.DrugPair{A: drugs[i], B: drugs[j]})
		}
	}
	return pairs
}
