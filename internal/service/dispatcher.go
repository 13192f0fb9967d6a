package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/medsafety-mcp-server/internal/domain"
)

// Dispatcher routes analysis requests to the matching analyzer. It is a
// pure router: it validates the envelope and the per-type payload shape
// before any component runs, and owns no analysis rules of its own. The
// analysis type set is closed; adding a type means adding a case to the
// switch below, and the default arm makes a missing case fail loudly.
type Dispatcher struct {
	service *AnalysisService
	logger  *logrus.Logger
}

// NewDispatcher creates a dispatcher over the analysis service.
func NewDispatcher(service *AnalysisService, logger *logrus.Logger) (*Dispatcher, error) {
	if service == nil {
		return nil, fmt.Errorf("dispatcher: analysis service is required")
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Dispatcher{service: service, logger: logger}, nil
}

// Run dispatches a request without progress reporting.
func (d *Dispatcher) Run(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	return d.RunWithProgress(ctx, req, nil)
}

// RunWithProgress dispatches a request, forwarding stage notifications to
// the progress callback. A validation failure is reported before any
// component is invoked; a canceled context aborts with no side effects.
func (d *Dispatcher) RunWithProgress(ctx context.Context, req domain.AnalysisRequest, progress ProgressFunc) (*domain.AnalysisResult, error) {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	requestID := uuid.New().String()
	d.logger.WithFields(logrus.Fields{
		"analysis_type": string(req.AnalysisType),
		"request_id":    requestID,
	}).Info("Dispatching analysis request")

	result := &domain.AnalysisResult{
		AnalysisType: req.AnalysisType,
		PatientID:    req.PatientID,
		RequestID:    requestID,
		GeneratedAt:  time.Now().UTC(),
	}

	switch req.AnalysisType {
	case domain.AnalysisDDI:
		var payload domain.DDIPayload
		if err := decodePayload(req.Payload, &payload); err != nil {
			return nil, err
		}
		ddi, err := d.service.AnalyzeDDI(ctx, payload, progress)
		if err != nil {
			return nil, err
		}
		result.DDI = ddi

	case domain.AnalysisPGx:
		var payload domain.PGxPayload
		if err := decodePayload(req.Payload, &payload); err != nil {
			return nil, err
		}
		pgx, err := d.service.AnalyzePGx(ctx, payload, progress)
		if err != nil {
			return nil, err
		}
		result.PGx = pgx

	case domain.AnalysisDataQuality:
		var payload domain.DataQualityPayload
		if err := decodePayload(req.Payload, &payload); err != nil {
			return nil, err
		}
		quality, err := d.service.AssessDataQuality(ctx, payload, progress)
		if err != nil {
			return nil, err
		}
		result.DataQuality = quality

	case domain.AnalysisEvidence:
		var payload domain.EvidencePayload
		if err := decodePayload(req.Payload, &payload); err != nil {
			return nil, err
		}
		evidence, err := d.service.SummarizeEvidence(ctx, payload, progress)
		if err != nil {
			return nil, err
		}
		result.Evidence = evidence

	default:
		// Unreachable after Validate; kept so an enum addition without a
		// dispatch case fails loudly instead of returning an empty result.
		return nil, domain.NewValidationError("analysisType", fmt.Sprintf("unsupported analysis type %q", req.AnalysisType), string(req.AnalysisType))
	}

	d.logger.WithFields(logrus.Fields{
		"analysis_type":   string(req.AnalysisType),
		"request_id":      requestID,
		"processing_time": time.Since(start),
	}).Info("Analysis request completed")

	return result, nil
}

// validatable is the shape every analysis payload satisfies.
type validatable interface {
	Validate() error
}

// decodePayload unmarshals and validates a per-type payload. Both failure
// modes are caller faults and reported as validation errors.
func decodePayload(raw json.RawMessage, payload validatable) error {
	if err := json.Unmarshal(raw, payload); err != nil {
		return domain.NewValidationError("payload", fmt.Sprintf("malformed payload: %v", err), "")
	}
	return payload.Validate()
}
