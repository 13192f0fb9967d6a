package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/medsafety-mcp-server/internal/agent/health"
	"github.com/medsafety-mcp-server/internal/domain"
	"github.com/medsafety-mcp-server/internal/service"
)

// checkInteractionRequest is the body for a single-pair interaction check.
type checkInteractionRequest struct {
	DrugA string `json:"drugA" binding:"required"`
	DrugB string `json:"drugB" binding:"required"`
}

// pgxReviewRequest is the body for a pharmacogenomic review.
type pgxReviewRequest struct {
	PatientID       string                       `json:"patientId"`
	GenotypeResults []domain.PGxResult           `json:"genotypeResults"`
	Medications     []domain.MedicationReference `json:"medications"`
}

// alternativesResponse carries the ranked suggestions for a drug.
type alternativesResponse struct {
	ForDrug      string                         `json:"forDrug"`
	Alternatives []domain.AlternativeSuggestion `json:"alternatives"`
}

// handleHealth reports live component health. Unhealthy means a critical
// backend is down and maps to 503.
func (s *Server) handleHealth(c *gin.Context) {
	status := s.health.RunChecks(c.Request.Context())
	code := http.StatusOK
	if status.Overall == health.StateUnhealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}

// handleReady reports the readiness the background checker last observed.
func (s *Server) handleReady(c *gin.Context) {
	if !s.health.Ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ready": true})
}

// handleAnalyze accepts a full analysis envelope and returns the result of
// the requested analysis type.
func (s *Server) handleAnalyze(c *gin.Context) {
	var req domain.AnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondStatus(c, http.StatusBadRequest, domain.CodeInvalidInput, "malformed request body", err)
		return
	}

	result, err := s.dispatcher.Run(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// handleCheckInteraction checks one drug pair.
func (s *Server) handleCheckInteraction(c *gin.Context) {
	var req checkInteractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondStatus(c, http.StatusBadRequest, domain.CodeInvalidInput, "malformed request body", err)
		return
	}

	check, err := s.analysis.CheckPair(c.Request.Context(),
		domain.MedicationReference{Name: req.DrugA},
		domain.MedicationReference{Name: req.DrugB},
	)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, check)
}

// handleAlternatives ranks substitute therapies for the drug in the path.
// Phenotypes arrive as repeated phenotype=GENE:value query parameters.
func (s *Server) handleAlternatives(c *gin.Context) {
	forDrug := c.Param("drug")

	coveredOnly := false
	if raw := c.Query("coveredOnly"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			s.respondStatus(c, http.StatusBadRequest, domain.CodeValidation, "coveredOnly must be a boolean", err)
			return
		}
		coveredOnly = parsed
	}

	patient := domain.PatientContext{PatientID: c.Query("patientId")}
	for _, raw := range c.QueryArray("phenotype") {
		gene, phenotype, ok := strings.Cut(raw, ":")
		if !ok {
			s.respondStatus(c, http.StatusBadRequest, domain.CodeValidation,
				"phenotype must be GENE:phenotype", errors.New(raw))
			return
		}
		p := domain.Phenotype(strings.TrimSpace(phenotype))
		if !p.IsValid() {
			s.respondStatus(c, http.StatusBadRequest, domain.CodeValidation,
				"unrecognized phenotype", errors.New(raw))
			return
		}
		if patient.Phenotypes == nil {
			patient.Phenotypes = make(map[string]domain.Phenotype)
		}
		patient.Phenotypes[strings.ToUpper(strings.TrimSpace(gene))] = p
	}

	suggestions, err := s.ranker.Rank(c.Request.Context(), service.RankParams{
		ForDrug:     forDrug,
		WithDrug:    c.Query("withDrug"),
		Patient:     patient,
		CoveredOnly: coveredOnly,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, alternativesResponse{ForDrug: forDrug, Alternatives: suggestions})
}

// handleReviewPGx reviews genotype results against a medication list.
func (s *Server) handleReviewPGx(c *gin.Context) {
	var req pgxReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondStatus(c, http.StatusBadRequest, domain.CodeInvalidInput, "malformed request body", err)
		return
	}

	payload, err := json.Marshal(domain.PGxPayload{
		GenotypeResults: req.GenotypeResults,
		Medications:     req.Medications,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}

	result, err := s.dispatcher.Run(c.Request.Context(), domain.AnalysisRequest{
		AnalysisType: domain.AnalysisPGx,
		PatientID:    req.PatientID,
		Payload:      payload,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// classify maps an analysis error to an HTTP status, error code, and short
// message. Caller faults map to 400, cancellation and deadline to 408,
// everything else to 500.
func classify(err error) (int, string, string) {
	switch {
	case domain.IsValidation(err):
		return http.StatusBadRequest, domain.CodeValidation, "request validation failed"
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidAnalysisType):
		return http.StatusBadRequest, domain.CodeInvalidInput, "invalid request input"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, domain.CodeNotFound, "resource not found"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout, domain.CodeCanceled, "request canceled"
	default:
		return http.StatusInternalServerError, domain.CodeAnalysisError, "analysis failed"
	}
}

// respondError maps an analysis error to the standardized error envelope.
func (s *Server) respondError(c *gin.Context, err error) {
	status, code, message := classify(err)
	s.respondStatus(c, status, code, message, err)
}

func (s *Server) respondStatus(c *gin.Context, status int, code, message string, err error) {
	apiErr := domain.NewAPIError(code, message, err.Error(), c.GetString("correlation_id"))
	if status >= http.StatusInternalServerError {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"path":   c.FullPath(),
			"status": status,
		}).Error("Request failed")
	}
	c.AbortWithStatusJSON(status, apiErr)
}
