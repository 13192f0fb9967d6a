package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/medsafety-mcp-server/internal/domain"
)

// RankParams describes one alternative-therapy ranking request. WithDrug
// optionally names a co-medication the alternatives are checked against;
// CoveredOnly restricts output to likely-covered formulary entries.
type RankParams struct {
	ForDrug     string                `json:"forDrug"`
	WithDrug    string                `json:"withDrug,omitempty"`
	Patient     domain.PatientContext `json:"patient,omitempty"`
	CoveredOnly bool                  `json:"coveredOnly,omitempty"`
}

// AlternativeRanker scores substitute therapies for a target drug.
//
// Candidates contraindicated for a known patient phenotype are excluded
// before scoring, never merely down-ranked. The composite score is the sum
// of the independent safety and efficacy scores, and Best is a hard gate on
// both components reaching the threshold, so a high-efficacy/low-safety
// candidate can never be marked best. The formulary filter and the
// co-medication interaction check affect visibility and ordering only;
// neither ever changes a score or the best flag.
type AlternativeRanker struct {
	source     domain.AlternativeSource
	normalizer *Normalizer
	resolver   domain.InteractionResolver
	logger     *logrus.Logger
}

// NewAlternativeRanker creates a ranker over the given candidate source.
// The resolver is optional; without it the co-medication interaction check
// is skipped.
func NewAlternativeRanker(source domain.AlternativeSource, normalizer *Normalizer, resolver domain.InteractionResolver, logger *logrus.Logger) (*AlternativeRanker, error) {
	if source == nil {
		return nil, fmt.Errorf("ranker: alternative source is required")
	}
	if normalizer == nil {
		return nil, fmt.Errorf("ranker: normalizer is required")
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &AlternativeRanker{
		source:     source,
		normalizer: normalizer,
		resolver:   resolver,
		logger:     logger,
	}, nil
}

// Rank returns ranked substitute therapies for the target drug. Ordering
// is deterministic: candidates without an interaction caution first, then
// descending composite score, then name.
func (r *AlternativeRanker) Rank(ctx context.Context, params RankParams) ([]domain.AlternativeSuggestion, error) {
	if strings.TrimSpace(params.ForDrug) == "" {
		return nil, domain.NewValidationError("forDrug", "target drug name is required", params.ForDrug)
	}

	target, _, err := r.normalizer.Normalize(ctx, domain.MedicationReference{Name: params.ForDrug})
	if err != nil {
		return nil, err
	}

	candidates, err := r.source.CandidatesFor(ctx, target.CanonicalName)
	if err != nil {
		return nil, fmt.Errorf("rank alternatives for %s: %w", target.CanonicalName, err)
	}

	var withDrug *domain.NormalizedDrug
	if r.resolver != nil && strings.TrimSpace(params.WithDrug) != "" {
		normalized, _, err := r.normalizer.Normalize(ctx, domain.MedicationReference{Name: params.WithDrug})
		if err != nil {
			return nil, err
		}
		withDrug = &normalized
	}

	suggestions := make([]domain.AlternativeSuggestion, 0, len(candidates))
	excluded := 0

	for i := range candidates {
		candidate := candidates[i]
		if err := candidate.Validate(); err != nil {
			r.logger.WithError(err).WithField("target", target.CanonicalName).Warn("Skipping invalid alternative candidate")
			continue
		}
		if candidate.ContraindicatedFor(params.Patient) {
			excluded++
			r.logger.WithFields(logrus.Fields{
				"target":    target.CanonicalName,
				"candidate": candidate.Medication.CanonicalName,
			}).Debug("Excluded phenotype-contraindicated alternative before scoring")
			continue
		}

		suggestion := domain.AlternativeSuggestion{
			Medication:      candidate.Medication.CanonicalName,
			SafetyScore:     candidate.SafetyScore,
			EfficacyScore:   candidate.EfficacyScore,
			Score:           candidate.SafetyScore + candidate.EfficacyScore,
			FormularyStatus: candidate.FormularyStatus,
			Rationale:       candidate.Rationale,
		}
		suggestion.Best = suggestion.MeetsBestGate()

		if withDrug != nil {
			caution, err := r.interactionCaution(ctx, candidate.Medication, *withDrug)
			if err != nil {
				return nil, err
			}
			suggestion.InteractionCaution = caution
		}

		suggestions = append(suggestions, suggestion)
	}

	if params.CoveredOnly {
		covered := suggestions[:0]
		for _, s := range suggestions {
			if s.LikelyCovered() {
				covered = append(covered, s)
			}
		}
		suggestions = covered
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		a, b := suggestions[i], suggestions[j]
		if (a.InteractionCaution == "") != (b.InteractionCaution == "") {
			return a.InteractionCaution == ""
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.Medication < b.Medication
	})

	r.logger.WithFields(logrus.Fields{
		"target":     target.CanonicalName,
		"candidates": len(candidates),
		"excluded":   excluded,
		"returned":   len(suggestions),
	}).Info("Ranked alternative therapies")

	return suggestions, nil
}

// interactionCaution checks the candidate against the co-medication and
// describes any major-or-worse interaction. Resolution failures inside the
// tier chain already degrade to a miss, so the only error here is
// cancellation.
func (r *AlternativeRanker) interactionCaution(ctx context.Context, candidate, withDrug domain.NormalizedDrug) (string, error) {
	rec, err := r.resolver.Resolve(ctx, domain.DrugPair{A: candidate, B: withDrug})
	if err != nil {
		return "", err
	}
	if rec == nil || !rec.Severity.AtLeast(domain.SeverityMajor) {
		return "", nil
	}
	return fmt.Sprintf("%s interaction with %s: %s", rec.Severity, withDrug.CanonicalName, rec.Mechanism), nil
}
