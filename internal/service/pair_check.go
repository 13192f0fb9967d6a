package service

import (
	"context"

	"github.com/medsafety-mcp-server/internal/domain"
)

// unknownPairNote is attached whenever no tier resolved the pair.
const unknownPairNote = "No interaction record in any tier; absence of a record is not evidence of safety."

// PairCheck is the outcome of a single-pair interaction lookup, shared by
// the MCP tool and the HTTP route so both surfaces answer identically.
// Found false reads as unknown rather than safe.
type PairCheck struct {
	DrugA       domain.NormalizedDrug     `json:"drugA"`
	DrugB       domain.NormalizedDrug     `json:"drugB"`
	Found       bool                      `json:"found"`
	Interaction *domain.InteractionRecord `json:"interaction,omitempty"`
	RiskLevel   domain.RiskLevel          `json:"riskLevel"`
	Confidence  domain.Confidence         `json:"confidence"`
	Degraded    bool                      `json:"degraded,omitempty"`
	Note        string                    `json:"note,omitempty"`
}

// CheckPair normalizes two medication references and resolves them through
// the tier chain, folding the single record (or its absence) into a risk
// and confidence statement.
func (s *AnalysisService) CheckPair(ctx context.Context, refA, refB domain.MedicationReference) (*PairCheck, error) {
	drugA, degradedA, err := s.normalizer.Normalize(ctx, refA)
	if err != nil {
		return nil, err
	}
	drugB, degradedB, err := s.normalizer.Normalize(ctx, refB)
	if err != nil {
		return nil, err
	}

	record, err := s.resolver.Resolve(ctx, domain.DrugPair{A: drugA, B: drugB})
	if err != nil {
		return nil, err
	}

	check := &PairCheck{
		DrugA:    drugA,
		DrugB:    drugB,
		Degraded: degradedA || degradedB,
	}

	if record == nil {
		assessment := Aggregate(nil)
		check.RiskLevel = assessment.OverallRisk
		check.Confidence = assessment.Confidence
		check.Note = unknownPairNote
		return check, nil
	}

	check.Found = true
	check.Interaction = record
	assessment := Aggregate([]domain.InteractionRecord{*record})
	check.RiskLevel = assessment.OverallRisk
	check.Confidence = assessment.Confidence
	return check, nil
}
