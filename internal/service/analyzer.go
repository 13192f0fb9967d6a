package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/medsafety-mcp-server/internal/domain"
	"github.com/medsafety-mcp-server/pkg/sig"
)

// ProgressFunc receives stage notifications while an analysis runs. The
// streaming transport forwards them to clients; a nil ProgressFunc
// disables reporting.
type ProgressFunc func(event domain.ProgressEvent)

// AnalysisService orchestrates the medication-safety analyses: interaction
// screening, pharmacogenomic review, record completeness assessment, and
// evidence summarization. It owns no storage; all lookups go through the
// injected normalizer and resolver, so any knowledge source satisfying
// those contracts is interchangeable.
type AnalysisService struct {
	normalizer *Normalizer
	resolver   *TieredResolver
	pgxEngine  *PGxEngine
	sigParser  *sig.Parser
	logger     *logrus.Logger
}

// NewAnalysisService creates the analysis orchestrator.
func NewAnalysisService(normalizer *Normalizer, resolver *TieredResolver, pgxEngine *PGxEngine, logger *logrus.Logger) (*AnalysisService, error) {
	if normalizer == nil {
		return nil, fmt.Errorf("analysis service: normalizer is required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("analysis service: resolver is required")
	}
	if pgxEngine == nil {
		return nil, fmt.Errorf("analysis service: pgx engine is required")
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &AnalysisService{
		normalizer: normalizer,
		resolver:   resolver,
		pgxEngine:  pgxEngine,
		sigParser:  sig.NewParser(),
		logger:     logger,
	}, nil
}

// AnalyzeDDI screens a medication list for drug-drug interactions:
// normalize, optionally consolidate duplicate formulations, enumerate all
// pairs, resolve each through the tier chain, and aggregate severities
// into an overall risk statement. An unresolved pair is reported as
// unknown with a consult-additional-sources note, never as "safe".
func (s *AnalysisService) AnalyzeDDI(ctx context.Context, payload domain.DDIPayload, progress ProgressFunc) (*domain.DDIAnalysisResult, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"medications": len(payload.Medications),
		"consolidate": payload.ShouldConsolidate(),
	}).Info("Starting drug-drug interaction analysis")

	normalized, err := s.normalizer.NormalizeAll(ctx, payload.Medications)
	if err != nil {
		return nil, err
	}
	s.emit(progress, "normalized", "", len(normalized.Drugs))

	drugs := normalized.Drugs
	if payload.ShouldConsolidate() {
		drugs = Consolidate(drugs)
	}

	pairs := EnumeratePairs(drugs)
	s.emit(progress, "pairs_enumerated", "", len(pairs))

	result := &domain.DDIAnalysisResult{
		PerPairInteractions: []domain.InteractionRecord{},
	}

	if len(pairs) == 0 {
		result.OverallRiskLevel = domain.RiskLow
		result.Confidence = domain.ConfidenceLow
		result.Notes = append(result.Notes, "fewer than two distinct medications after consolidation; no pairwise analysis performed")
		if normalized.Degraded {
			result.Notes = append(result.Notes, degradedDirectoryNote)
		}
		s.emit(progress, "aggregated", string(result.OverallRiskLevel), 0)
		return result, nil
	}

	resolution, err := s.resolver.ResolveAll(ctx, pairs)
	if err != nil {
		return nil, err
	}
	s.emit(progress, "resolved", "", len(resolution.Records))

	assessment := Aggregate(resolution.Records)
	result.OverallRiskLevel = assessment.OverallRisk
	result.Confidence = assessment.Confidence
	result.PerPairInteractions = append(result.PerPairInteractions, resolution.Records...)

	for _, pair := range resolution.Unresolved {
		result.Notes = append(result.Notes,
			fmt.Sprintf("no interaction data found for %s; consult additional sources", pair.String()))
	}
	if normalized.Degraded || resolution.Degraded {
		result.Notes = append(result.Notes, degradedDirectoryNote)
	}

	s.emit(progress, "aggregated", string(result.OverallRiskLevel), len(result.PerPairInteractions))

	s.logger.WithFields(logrus.Fields{
		"pairs":      len(pairs),
		"resolved":   len(resolution.Records),
		"unresolved": len(resolution.Unresolved),
		"risk":       string(result.OverallRiskLevel),
		"confidence": string(result.Confidence),
	}).Info("Completed drug-drug interaction analysis")

	return result, nil
}

// degradedDirectoryNote is surfaced whenever a collaborator failure forced
// part of the analysis onto fallback paths.
const degradedDirectoryNote = "drug directory was partially unavailable; results may be incomplete"

// AnalyzePGx maps genotype observations to phenotypes and evaluates the
// medication list against the actionability rules. Unresolvable genes are
// reported as gaps rather than dropped.
func (s *AnalysisService) AnalyzePGx(ctx context.Context, payload domain.PGxPayload, progress ProgressFunc) (*domain.PGxAnalysisResult, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"genotype_results": len(payload.GenotypeResults),
		"medications":      len(payload.Medications),
	}).Info("Starting pharmacogenomic analysis")

	mapped, gaps := s.pgxEngine.MapPhenotypes(payload.GenotypeResults)
	s.emit(progress, "phenotypes_mapped", "", len(mapped))

	normalized, err := s.normalizer.NormalizeAll(ctx, payload.Medications)
	if err != nil {
		return nil, err
	}
	drugs := Consolidate(normalized.Drugs)

	recommendations := s.pgxEngine.Recommend(drugs, mapped)
	s.emit(progress, "recommendations_generated", "", len(recommendations))

	genes := make([]string, 0, len(mapped))
	seen := make(map[string]struct{}, len(mapped))
	for _, r := range mapped {
		if _, dup := seen[r.Gene]; dup {
			continue
		}
		seen[r.Gene] = struct{}{}
		genes = append(genes, r.Gene)
	}

	result := &domain.PGxAnalysisResult{
		PGxOverview: domain.PGxOverview{
			GenesEvaluated: genes,
			Phenotypes:     mapped,
			Gaps:           gaps,
		},
		PerDrugRecommendations: recommendations,
	}

	s.logger.WithFields(logrus.Fields{
		"genes_evaluated": len(genes),
		"gaps":            len(gaps),
		"recommendations": len(recommendations),
	}).Info("Completed pharmacogenomic analysis")

	return result, nil
}

// AssessDataQuality checks a medication record snapshot for completeness:
// missing or unparseable dosing fields, duplicate base substances, and
// absent demographics, labs, and allergy data. The completeness score is a
// deterministic 0-100 roll-up of the checked dimensions.
func (s *AnalysisService) AssessDataQuality(ctx context.Context, payload domain.DataQualityPayload, progress ProgressFunc) (*domain.DataQualityResult, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	s.logger.WithField("medications", len(payload.Medications)).Info("Starting data quality assessment")

	findings := make([]domain.DataQualityFinding, 0)
	completeMeds := 0

	for _, med := range payload.Medications {
		complete := true
		name := strings.TrimSpace(med.Name)

		if strings.TrimSpace(med.Dose) == "" {
			complete = false
			findings = append(findings, domain.DataQualityFinding{
				Type:        "missing_dose",
				Severity:    "warning",
				Description: fmt.Sprintf("%s: no dose recorded", name),
			})
		} else if _, err := s.sigParser.ParseDose(med.Dose); err != nil {
			complete = false
			findings = append(findings, domain.DataQualityFinding{
				Type:        "unparseable_dose",
				Severity:    "warning",
				Description: fmt.Sprintf("%s: dose %q could not be parsed", name, med.Dose),
			})
		}

		if strings.TrimSpace(med.Route) == "" {
			findings = append(findings, domain.DataQualityFinding{
				Type:        "missing_route",
				Severity:    "info",
				Description: fmt.Sprintf("%s: no route recorded", name),
			})
		} else if _, err := s.sigParser.ParseRoute(med.Route); err != nil {
			findings = append(findings, domain.DataQualityFinding{
				Type:        "unparseable_route",
				Severity:    "info",
				Description: fmt.Sprintf("%s: route %q is not recognized", name, med.Route),
			})
		}

		if strings.TrimSpace(med.Frequency) == "" {
			complete = false
			findings = append(findings, domain.DataQualityFinding{
				Type:        "missing_frequency",
				Severity:    "warning",
				Description: fmt.Sprintf("%s: no frequency recorded", name),
			})
		} else if _, err := s.sigParser.ParseFrequency(med.Frequency); err != nil {
			complete = false
			findings = append(findings, domain.DataQualityFinding{
				Type:        "unparseable_frequency",
				Severity:    "warning",
				Description: fmt.Sprintf("%s: frequency %q could not be parsed", name, med.Frequency),
			})
		}

		if complete {
			completeMeds++
		}
	}
	s.emit(progress, "medications_checked", "", len(payload.Medications))

	// Duplicate base substances are a dosing hazard, not a bookkeeping
	// nuisance: two formulations of one substance double-dose the patient.
	normalized, err := s.normalizer.NormalizeAll(ctx, payload.Medications)
	if err != nil {
		return nil, err
	}
	byIdentity := make(map[string][]string)
	for _, d := range normalized.Drugs {
		byIdentity[d.Identity()] = append(byIdentity[d.Identity()], d.DisplayName())
	}
	dupKeys := make([]string, 0)
	for id, names := range byIdentity {
		if len(names) > 1 {
			dupKeys = append(dupKeys, id)
		}
	}
	sort.Strings(dupKeys)
	for _, id := range dupKeys {
		names := byIdentity[id]
		findings = append(findings, domain.DataQualityFinding{
			Type:        "duplicate_medication",
			Severity:    "danger",
			Description: fmt.Sprintf("%s are formulations of the same base substance", strings.Join(names, " and ")),
		})
	}

	if payload.Demographics == nil {
		findings = append(findings, domain.DataQualityFinding{
			Type:        "missing_demographics",
			Severity:    "warning",
			Description: "no patient demographics provided",
		})
	} else if payload.Demographics.WeightKg == 0 {
		findings = append(findings, domain.DataQualityFinding{
			Type:        "missing_weight",
			Severity:    "info",
			Description: "patient weight not recorded; weight-based dose checks unavailable",
		})
	}

	if len(payload.Labs) == 0 {
		findings = append(findings, domain.DataQualityFinding{
			Type:        "missing_labs",
			Severity:    "info",
			Description: "no laboratory results provided",
		})
	}
	if len(payload.Allergies) == 0 {
		findings = append(findings, domain.DataQualityFinding{
			Type:        "missing_allergies",
			Severity:    "warning",
			Description: "no allergy list provided",
		})
	}

	result := &domain.DataQualityResult{
		Findings:     findings,
		Completeness: completenessScore(payload, completeMeds, len(dupKeys)),
	}

	s.logger.WithFields(logrus.Fields{
		"findings":     len(findings),
		"completeness": result.Completeness,
	}).Info("Completed data quality assessment")

	return result, nil
}

// completenessScore rolls the checked dimensions into a 0-100 score:
// half from medication sig completeness, the rest from demographics,
// labs, and allergies presence, minus a penalty per duplicate substance.
func completenessScore(payload domain.DataQualityPayload, completeMeds, duplicates int) int {
	score := 0
	if n := len(payload.Medications); n > 0 {
		score += 50 * completeMeds / n
	}
	if payload.Demographics != nil {
		score += 20
	}
	if len(payload.Labs) > 0 {
		score += 15
	}
	if len(payload.Allergies) > 0 {
		score += 15
	}
	score -= 10 * duplicates
	if score < 0 {
		score = 0
	}
	return score
}

// SummarizeEvidence reports per-pair interaction provenance: which tier
// resolved each pair, on what evidence level, and the distinct citations
// across the set. It aggregates no risk; that is the DDI analysis's job.
func (s *AnalysisService) SummarizeEvidence(ctx context.Context, payload domain.EvidencePayload, progress ProgressFunc) (*domain.EvidenceAnalysisResult, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	s.logger.WithField("medications", len(payload.Medications)).Info("Starting evidence summarization")

	normalized, err := s.normalizer.NormalizeAll(ctx, payload.Medications)
	if err != nil {
		return nil, err
	}
	drugs := Consolidate(normalized.Drugs)
	pairs := EnumeratePairs(drugs)
	s.emit(progress, "pairs_enumerated", "", len(pairs))

	resolution, err := s.resolver.ResolveAll(ctx, pairs)
	if err != nil {
		return nil, err
	}
	s.emit(progress, "resolved", "", len(resolution.Records))

	result := &domain.EvidenceAnalysisResult{
		PairEvidence: make([]domain.PairEvidence, 0, len(pairs)),
		Sources:      []string{},
	}

	distinct := make(map[string]struct{})
	for i, pair := range pairs {
		evidence := domain.PairEvidence{
			DrugA: pair.A.CanonicalName,
			DrugB: pair.B.CanonicalName,
		}
		if rec := resolution.PerPair[i]; rec != nil {
			evidence.Resolved = true
			evidence.SourceTier = rec.SourceTier
			evidence.EvidenceLevel = rec.EvidenceLevel
			evidence.Mechanism = rec.Mechanism
			evidence.Citations = append([]string(nil), rec.Citations...)
			for _, c := range rec.Citations {
				distinct[c] = struct{}{}
			}
		}
		result.PairEvidence = append(result.PairEvidence, evidence)
	}

	for c := range distinct {
		result.Sources = append(result.Sources, c)
	}
	sort.Strings(result.Sources)

	s.logger.WithFields(logrus.Fields{
		"pairs":   len(pairs),
		"sources": len(result.Sources),
	}).Info("Completed evidence summarization")

	return result, nil
}

// emit sends a progress event when a callback is registered.
func (s *AnalysisService) emit(progress ProgressFunc, stage, detail string, count int) {
	if progress == nil {
		return
	}
	progress(domain.ProgressEvent{Stage: stage, Detail: detail, Count: count})
}
