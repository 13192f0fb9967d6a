package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medsafety-mcp-server/internal/agent/health"
	"github.com/medsafety-mcp-server/internal/domain"
	"github.com/medsafety-mcp-server/internal/heuristic"
	"github.com/medsafety-mcp-server/internal/kb"
	"github.com/medsafety-mcp-server/internal/service"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress logs during testing
	return logger
}

func testComponents(t *testing.T) Components {
	t.Helper()
	logger := testLogger()

	store, err := kb.NewSQLiteStore(filepath.Join(t.TempDir(), "kb.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	dir := kb.NewStoreDirectory(store)
	normalizer, err := service.NewNormalizer(dir, service.NormalizerConfig{}, logger)
	require.NoError(t, err)

	table, err := heuristic.Default()
	require.NoError(t, err)
	resolver, err := service.NewTieredResolver(dir, table, service.ResolverConfig{}, logger)
	require.NoError(t, err)

	analysis, err := service.NewAnalysisService(normalizer, resolver, service.NewPGxEngine(logger), logger)
	require.NoError(t, err)

	dispatcher, err := service.NewDispatcher(analysis, logger)
	require.NoError(t, err)

	ranker, err := service.NewAlternativeRanker(kb.NewStoreAlternatives(store), normalizer, resolver, logger)
	require.NoError(t, err)

	checker := health.New(health.Config{}, logger)
	checker.Register("knowledge_base", true, store.Ping)

	return Components{
		Dispatcher: dispatcher,
		Analysis:   analysis,
		Ranker:     ranker,
		Health:     checker,
	}
}

func newTestAPIServer(t *testing.T) *Server {
	t.Helper()
	server, err := NewServerWithComponents(&domain.Config{}, testComponents(t), testLogger())
	require.NoError(t, err)
	return server
}

func doRequest(t *testing.T, server *Server, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestNewServerWithComponentsRequiresBackends(t *testing.T) {
	_, err := NewServerWithComponents(nil, Components{}, testLogger())
	assert.Error(t, err)

	_, err = NewServerWithComponents(&domain.Config{}, Components{}, testLogger())
	assert.Error(t, err)
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestAPIServer(t)

	w := doRequest(t, server, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	status := decodeBody[health.Status](t, w)
	assert.Equal(t, health.StateHealthy, status.Overall)
	assert.Contains(t, status.Components, "knowledge_base")
}

func TestReadyEndpointFollowsChecker(t *testing.T) {
	server := newTestAPIServer(t)

	// No check pass has run, so readiness is unknown.
	w := doRequest(t, server, http.MethodGet, "/ready", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	// A live health probe records a pass; readiness follows it.
	doRequest(t, server, http.MethodGet, "/health", nil, nil)
	w = doRequest(t, server, http.MethodGet, "/ready", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAnalyzeEndpointDDI(t *testing.T) {
	server := newTestAPIServer(t)

	payload, err := json.Marshal(domain.DDIPayload{
		Medications: []domain.MedicationReference{
			{Name: "Coumadin"},
			{Name: "aspirin"},
		},
	})
	require.NoError(t, err)

	w := doRequest(t, server, http.MethodPost, "/api/v1/analyze", domain.AnalysisRequest{
		AnalysisType: domain.AnalysisDDI,
		PatientID:    "patient-001",
		Payload:      payload,
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	result := decodeBody[domain.AnalysisResult](t, w)
	assert.Equal(t, domain.AnalysisDDI, result.AnalysisType)
	assert.NotEmpty(t, result.RequestID)
	require.NotNil(t, result.DDI)
	assert.Equal(t, domain.RiskHigh, result.DDI.OverallRiskLevel)
	assert.Equal(t, domain.ConfidenceMedium, result.DDI.Confidence)
	assert.NotEmpty(t, w.Header().Get("X-Correlation-ID"))
}

func TestAnalyzeEndpointRejectsMissingPatient(t *testing.T) {
	server := newTestAPIServer(t)

	payload, err := json.Marshal(domain.DDIPayload{
		Medications: []domain.MedicationReference{{Name: "aspirin"}},
	})
	require.NoError(t, err)

	w := doRequest(t, server, http.MethodPost, "/api/v1/analyze", domain.AnalysisRequest{
		AnalysisType: domain.AnalysisDDI,
		Payload:      payload,
	}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	apiErr := decodeBody[domain.APIError](t, w)
	assert.Equal(t, domain.CodeValidation, apiErr.Code)
	assert.NotEmpty(t, apiErr.RequestID)
}

func TestAnalyzeEndpointRejectsMalformedBody(t *testing.T) {
	server := newTestAPIServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)

	apiErr := decodeBody[domain.APIError](t, w)
	assert.Equal(t, domain.CodeInvalidInput, apiErr.Code)
}

func TestCheckInteractionEndpoint(t *testing.T) {
	server := newTestAPIServer(t)

	w := doRequest(t, server, http.MethodPost, "/api/v1/interactions/check", map[string]string{
		"drugA": "Coumadin",
		"drugB": "aspirin",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	check := decodeBody[service.PairCheck](t, w)
	assert.Equal(t, "warfarin", check.DrugA.CanonicalName)
	assert.True(t, check.Found)
	assert.Equal(t, domain.RiskHigh, check.RiskLevel)
	assert.Equal(t, domain.ConfidenceMedium, check.Confidence)
}

func TestCheckInteractionEndpointRequiresBothDrugs(t *testing.T) {
	server := newTestAPIServer(t)

	w := doRequest(t, server, http.MethodPost, "/api/v1/interactions/check", map[string]string{
		"drugA": "warfarin",
	}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	apiErr := decodeBody[domain.APIError](t, w)
	assert.Equal(t, domain.CodeInvalidInput, apiErr.Code)
}

func TestAlternativesEndpointExcludesContraindicated(t *testing.T) {
	server := newTestAPIServer(t)

	w := doRequest(t, server, http.MethodGet,
		"/api/v1/alternatives/codeine?phenotype=CYP2D6:poor_metabolizer", nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decodeBody[alternativesResponse](t, w)
	assert.Equal(t, "codeine", resp.ForDrug)
	require.Len(t, resp.Alternatives, 3)
	for _, alt := range resp.Alternatives {
		assert.NotEqual(t, "tramadol", alt.Medication)
	}
	assert.Equal(t, "morphine", resp.Alternatives[0].Medication)
	assert.True(t, resp.Alternatives[0].Best)
}

func TestAlternativesEndpointRejectsBadPhenotype(t *testing.T) {
	server := newTestAPIServer(t)

	w := doRequest(t, server, http.MethodGet,
		"/api/v1/alternatives/codeine?phenotype=CYP2D6:bogus", nil, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	apiErr := decodeBody[domain.APIError](t, w)
	assert.Equal(t, domain.CodeValidation, apiErr.Code)
}

func TestPGxReviewEndpoint(t *testing.T) {
	server := newTestAPIServer(t)

	w := doRequest(t, server, http.MethodPost, "/api/v1/pgx/review", pgxReviewRequest{
		PatientID: "patient-007",
		GenotypeResults: []domain.PGxResult{
			{Gene: "CYP2D6", Phenotype: domain.PhenotypePoorMetabolizer},
		},
		Medications: []domain.MedicationReference{{Name: "codeine"}},
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	result := decodeBody[domain.AnalysisResult](t, w)
	require.NotNil(t, result.PGx)
	require.Len(t, result.PGx.PerDrugRecommendations, 1)
	rec := result.PGx.PerDrugRecommendations[0]
	assert.Equal(t, domain.ActionAvoid, rec.Recommendation)
	assert.NotEmpty(t, rec.Citations)
}

func TestSecurityAndCorrelationHeaders(t *testing.T) {
	server := newTestAPIServer(t)

	w := doRequest(t, server, http.MethodGet, "/health", nil, map[string]string{
		"X-Correlation-ID": "fixed-correlation-id",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "fixed-correlation-id", w.Header().Get("X-Correlation-ID"))
}

func TestErrorEnvelopeCarriesCorrelationID(t *testing.T) {
	server := newTestAPIServer(t)

	w := doRequest(t, server, http.MethodPost, "/api/v1/interactions/check", map[string]string{
		"drugA": "warfarin",
	}, map[string]string{"X-Correlation-ID": "err-trace-1"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	apiErr := decodeBody[domain.APIError](t, w)
	assert.Equal(t, "err-trace-1", apiErr.RequestID)
}

func TestAnalyzeStream(t *testing.T) {
	server := newTestAPIServer(t)

	ts := httptest.NewServer(server.router)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/analyze/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	defer resp.Body.Close()

	payload, err := json.Marshal(domain.DDIPayload{
		Medications: []domain.MedicationReference{
			{Name: "Coumadin"},
			{Name: "aspirin"},
		},
	})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(domain.AnalysisRequest{
		AnalysisType: domain.AnalysisDDI,
		PatientID:    "patient-001",
		Payload:      payload,
	}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))

	var progressFrames int
	var final streamMessage
	for {
		var msg streamMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == "progress" {
			progressFrames++
			require.NotNil(t, msg.Event)
			continue
		}
		final = msg
		break
	}

	assert.Greater(t, progressFrames, 0, "at least one stage event should stream before the result")
	require.Equal(t, "result", final.Type, "unexpected frame: %+v", final)
	require.NotNil(t, final.Result)
	require.NotNil(t, final.Result.DDI)
	assert.Equal(t, domain.RiskHigh, final.Result.DDI.OverallRiskLevel)
}

func TestAnalyzeStreamRejectsMalformedEnvelope(t *testing.T) {
	server := newTestAPIServer(t)

	ts := httptest.NewServer(server.router)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/analyze/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	defer resp.Body.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var msg streamMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "error", msg.Type)
	require.NotNil(t, msg.Error)
	assert.Equal(t, domain.CodeInvalidInput, msg.Error.Code)
}
