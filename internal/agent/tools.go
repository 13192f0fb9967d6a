package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/medsafety-mcp-server/internal/domain"
	"github.com/medsafety-mcp-server/internal/service"
)

// AnalyzeMedicationsInput asks for a full interaction analysis of a
// medication list.
type AnalyzeMedicationsInput struct {
	PatientID   string                       `json:"patientId,omitempty"`
	Medications []domain.MedicationReference `json:"medications"`
	Consolidate *bool                        `json:"consolidate,omitempty"`
}

// CheckInteractionInput asks whether two drugs interact.
type CheckInteractionInput struct {
	DrugA string `json:"drugA"`
	DrugB string `json:"drugB"`
}

// FindAlternativesInput asks for ranked substitute therapies.
type FindAlternativesInput struct {
	ForDrug     string                      `json:"forDrug"`
	WithDrug    string                      `json:"withDrug,omitempty"`
	PatientID   string                      `json:"patientId,omitempty"`
	Phenotypes  map[string]domain.Phenotype `json:"phenotypes,omitempty"`
	CoveredOnly bool                        `json:"coveredOnly,omitempty"`
}

// FindAlternativesOutput carries the ranked suggestions.
type FindAlternativesOutput struct {
	ForDrug      string                         `json:"forDrug"`
	Alternatives []domain.AlternativeSuggestion `json:"alternatives"`
}

// ReviewPGxInput asks for a pharmacogenomic review of genotype results
// against a medication list.
type ReviewPGxInput struct {
	PatientID       string                       `json:"patientId,omitempty"`
	GenotypeResults []domain.PGxResult           `json:"genotypeResults"`
	Medications     []domain.MedicationReference `json:"medications"`
}

// AssessDataQualityInput asks for a completeness and plausibility review of
// patient records.
type AssessDataQualityInput struct {
	PatientID    string                       `json:"patientId,omitempty"`
	Demographics *domain.Demographics         `json:"demographics,omitempty"`
	Labs         []domain.LabResult           `json:"labs,omitempty"`
	Allergies    []string                     `json:"allergies,omitempty"`
	Medications  []domain.MedicationReference `json:"medications"`
}

// SummarizeEvidenceInput asks for the evidence behind the interactions in a
// medication list.
type SummarizeEvidenceInput struct {
	PatientID   string                       `json:"patientId,omitempty"`
	Medications []domain.MedicationReference `json:"medications"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: "analyze_medications",
		Description: "Run a drug-drug interaction analysis over a medication list: " +
			"canonical normalization, pairwise interaction resolution across the cache, " +
			"curated, and heuristic tiers, and an overall risk and confidence assessment.",
	}, s.handleAnalyzeMedications)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: "check_interaction",
		Description: "Check a single drug pair for a known interaction. Reports the " +
			"resolved record with its source tier, or an explicit unknown when no tier " +
			"has evidence for the pair.",
	}, s.handleCheckInteraction)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: "find_alternatives",
		Description: "Rank substitute therapies for a drug by safety and efficacy. " +
			"Candidates contraindicated for the patient's phenotypes are excluded; an " +
			"optional co-medication adds interaction cautions; coveredOnly restricts " +
			"output to likely-covered formulary entries.",
	}, s.handleFindAlternatives)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: "review_pgx",
		Description: "Review genotype results against a medication list using curated " +
			"gene-drug rules. Returns per-drug recommendations with citations and " +
			"surfaces genes that could not be evaluated.",
	}, s.handleReviewPGx)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: "assess_data_quality",
		Description: "Assess patient record completeness and plausibility: missing " +
			"demographics, out-of-range values, duplicate therapies, and allergy " +
			"conflicts with the medication list.",
	}, s.handleAssessDataQuality)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: "summarize_evidence",
		Description: "Summarize the evidence behind the interactions in a medication " +
			"list: evidence levels, citations, and the share of pairs with curated " +
			"support.",
	}, s.handleSummarizeEvidence)
}

func (s *Server) handleAnalyzeMedications(ctx context.Context, req *mcp.CallToolRequest, input AnalyzeMedicationsInput) (*mcp.CallToolResult, *domain.AnalysisResult, error) {
	payload := domain.DDIPayload{
		Medications: input.Medications,
		Consolidate: input.Consolidate,
	}
	return s.dispatch(ctx, "analyze_medications", domain.AnalysisDDI, input.PatientID, payload, input)
}

func (s *Server) handleReviewPGx(ctx context.Context, req *mcp.CallToolRequest, input ReviewPGxInput) (*mcp.CallToolResult, *domain.AnalysisResult, error) {
	payload := domain.PGxPayload{
		GenotypeResults: input.GenotypeResults,
		Medications:     input.Medications,
	}
	return s.dispatch(ctx, "review_pgx", domain.AnalysisPGx, input.PatientID, payload, input)
}

func (s *Server) handleAssessDataQuality(ctx context.Context, req *mcp.CallToolRequest, input AssessDataQualityInput) (*mcp.CallToolResult, *domain.AnalysisResult, error) {
	payload := domain.DataQualityPayload{
		Demographics: input.Demographics,
		Labs:         input.Labs,
		Allergies:    input.Allergies,
		Medications:  input.Medications,
	}
	return s.dispatch(ctx, "assess_data_quality", domain.AnalysisDataQuality, input.PatientID, payload, input)
}

func (s *Server) handleSummarizeEvidence(ctx context.Context, req *mcp.CallToolRequest, input SummarizeEvidenceInput) (*mcp.CallToolResult, *domain.AnalysisResult, error) {
	payload := domain.EvidencePayload{
		Medications: input.Medications,
	}
	return s.dispatch(ctx, "summarize_evidence", domain.AnalysisEvidence, input.PatientID, payload, input)
}

func (s *Server) handleCheckInteraction(ctx context.Context, req *mcp.CallToolRequest, input CheckInteractionInput) (*mcp.CallToolResult, *service.PairCheck, error) {
	check, err := s.analysis.CheckPair(ctx,
		domain.MedicationReference{Name: input.DrugA},
		domain.MedicationReference{Name: input.DrugB},
	)
	if err != nil {
		return failure[*service.PairCheck](s, ctx, "check_interaction", err)
	}
	return nil, check, nil
}

func (s *Server) handleFindAlternatives(ctx context.Context, req *mcp.CallToolRequest, input FindAlternativesInput) (*mcp.CallToolResult, *FindAlternativesOutput, error) {
	patient := domain.PatientContext{PatientID: input.PatientID}
	if len(input.Phenotypes) > 0 {
		// Gene keys are matched uppercase throughout the rule table.
		patient.Phenotypes = make(map[string]domain.Phenotype, len(input.Phenotypes))
		for gene, phenotype := range input.Phenotypes {
			patient.Phenotypes[strings.ToUpper(strings.TrimSpace(gene))] = phenotype
		}
	}

	suggestions, err := s.ranker.Rank(ctx, service.RankParams{
		ForDrug:     input.ForDrug,
		WithDrug:    input.WithDrug,
		Patient:     patient,
		CoveredOnly: input.CoveredOnly,
	})
	if err != nil {
		return failure[*FindAlternativesOutput](s, ctx, "find_alternatives", err)
	}

	return nil, &FindAlternativesOutput{
		ForDrug:      input.ForDrug,
		Alternatives: suggestions,
	}, nil
}

// dispatch routes an envelope through the dispatcher, serving and
// populating the result cache around it. A cache hit returns the original
// envelope unchanged, request id included, so repeated calls stay traceable
// to one computation.
func (s *Server) dispatch(ctx context.Context, tool string, analysisType domain.AnalysisType, patientID string, payload any, cacheInput any) (*mcp.CallToolResult, *domain.AnalysisResult, error) {
	if data, ok := s.cache.Get(ctx, tool, cacheInput); ok {
		var cached domain.AnalysisResult
		if err := json.Unmarshal(data, &cached); err == nil {
			return nil, &cached, nil
		}
		s.logger.WithField("tool", tool).Warn("Discarding undecodable cache entry")
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return errorResult(fmt.Errorf("encoding payload: %w", err)), nil, nil
	}

	result, err := s.dispatcher.Run(ctx, domain.AnalysisRequest{
		AnalysisType: analysisType,
		PatientID:    patientID,
		Payload:      raw,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		return errorResult(err), nil, nil
	}

	if err := s.cache.Set(ctx, tool, cacheInput, result, 0); err != nil {
		s.logger.WithError(err).WithField("tool", tool).Debug("Result cache store failed")
	}

	return nil, result, nil
}

// failure maps an analysis error to a tool-level error the client model can
// read, reserving Go errors for transport and cancellation.
func failure[Out any](s *Server, ctx context.Context, tool string, err error) (*mcp.CallToolResult, Out, error) {
	var zero Out
	if ctx.Err() != nil {
		return nil, zero, ctx.Err()
	}
	s.logger.WithError(err).WithField("tool", tool).Debug("Tool call failed")
	return errorResult(err), zero, nil
}

func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
	}
}
