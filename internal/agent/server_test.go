package agent

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medsafety-mcp-server/internal/config"
	"github.com/medsafety-mcp-server/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress logs during testing
	return logger
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := config.DefaultLiteConfig()
	cfg.DataDir = t.TempDir()

	server, err := NewLiteServer(cfg, WithLogger(testLogger()))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = server.Close()
	})
	return server
}

func TestNewLiteServer(t *testing.T) {
	server := newTestServer(t)

	assert.Equal(t, liteServerName, server.name)
	assert.NotNil(t, server.mcpServer)
	assert.NotNil(t, server.dispatcher)
	assert.NotNil(t, server.analysis)
	assert.NotNil(t, server.ranker)
	assert.NotNil(t, server.cache)
	assert.NotNil(t, server.health)
}

func TestServerOptions(t *testing.T) {
	cfg := config.DefaultLiteConfig()
	cfg.DataDir = t.TempDir()

	_, err := NewLiteServer(cfg, WithLogger(nil))
	assert.Error(t, err)

	_, err = NewLiteServer(cfg, WithVersion("  "))
	assert.Error(t, err)

	server, err := NewLiteServer(cfg, WithLogger(testLogger()), WithVersion("2.1.0"))
	require.NoError(t, err)
	defer server.Close()
	assert.Equal(t, "2.1.0", server.version)
}

func TestLiteServerHealthRollup(t *testing.T) {
	server := newTestServer(t)

	status := server.Health().RunChecks(context.Background())
	assert.Equal(t, "healthy", string(status.Overall))
	assert.Contains(t, status.Components, "knowledge_base")
	assert.Contains(t, status.Components, "result_cache")
	assert.True(t, server.Health().Ready())
}

func TestAnalyzeMedicationsTool(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()

	res, result, err := server.handleAnalyzeMedications(ctx, nil, AnalyzeMedicationsInput{
		PatientID: "patient-001",
		Medications: []domain.MedicationReference{
			{Name: "Coumadin", Dose: "5 mg", Route: "PO", Frequency: "daily"},
			{Name: "aspirin", Dose: "81 mg", Route: "PO", Frequency: "daily"},
		},
	})
	require.NoError(t, err)
	assert.Nil(t, res)
	require.NotNil(t, result)

	assert.Equal(t, domain.AnalysisDDI, result.AnalysisType)
	assert.Equal(t, "patient-001", result.PatientID)
	assert.NotEmpty(t, result.RequestID)
	require.NotNil(t, result.DDI)

	assert.Equal(t, domain.RiskHigh, result.DDI.OverallRiskLevel)
	assert.Equal(t, domain.ConfidenceMedium, result.DDI.Confidence)
	require.Len(t, result.DDI.PerPairInteractions, 1)
	assert.Equal(t, domain.SeverityMajor, result.DDI.PerPairInteractions[0].Severity)
}

func TestAnalyzeMedicationsToolServedFromCache(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()

	input := AnalyzeMedicationsInput{
		PatientID: "patient-001",
		Medications: []domain.MedicationReference{
			{Name: "warfarin"},
			{Name: "aspirin"},
		},
	}

	_, first, err := server.handleAnalyzeMedications(ctx, nil, input)
	require.NoError(t, err)
	_, second, err := server.handleAnalyzeMedications(ctx, nil, input)
	require.NoError(t, err)

	// The second call replays the first computation's envelope.
	assert.Equal(t, first.RequestID, second.RequestID)
	assert.GreaterOrEqual(t, server.CacheStats().Hits, int64(1))
}

func TestAnalyzeMedicationsToolValidation(t *testing.T) {
	server := newTestServer(t)

	res, result, err := server.handleAnalyzeMedications(context.Background(), nil, AnalyzeMedicationsInput{})
	require.NoError(t, err)
	assert.Nil(t, result)
	require.NotNil(t, res)
	assert.True(t, res.IsError)
}

func TestCheckInteractionTool(t *testing.T) {
	server := newTestServer(t)

	res, out, err := server.handleCheckInteraction(context.Background(), nil, CheckInteractionInput{
		DrugA: "Coumadin",
		DrugB: "aspirin",
	})
	require.NoError(t, err)
	assert.Nil(t, res)
	require.NotNil(t, out)

	assert.Equal(t, "warfarin", out.DrugA.CanonicalName)
	assert.Equal(t, "aspirin", out.DrugB.CanonicalName)
	assert.True(t, out.Found)
	require.NotNil(t, out.Interaction)
	assert.Equal(t, domain.SeverityMajor, out.Interaction.Severity)
	assert.Equal(t, domain.RiskHigh, out.RiskLevel)
	assert.Equal(t, domain.ConfidenceMedium, out.Confidence)
	assert.Empty(t, out.Note)
}

func TestCheckInteractionToolUnknownPair(t *testing.T) {
	server := newTestServer(t)

	res, out, err := server.handleCheckInteraction(context.Background(), nil, CheckInteractionInput{
		DrugA: "metformin",
		DrugB: "lisinopril",
	})
	require.NoError(t, err)
	assert.Nil(t, res)
	require.NotNil(t, out)

	assert.False(t, out.Found)
	assert.Nil(t, out.Interaction)
	assert.Equal(t, domain.RiskLow, out.RiskLevel)
	assert.Equal(t, domain.ConfidenceLow, out.Confidence)
	assert.NotEmpty(t, out.Note, "an unresolved pair must read as unknown, not safe")
}

func TestCheckInteractionToolRejectsBlankName(t *testing.T) {
	server := newTestServer(t)

	res, out, err := server.handleCheckInteraction(context.Background(), nil, CheckInteractionInput{
		DrugA: "   ",
		DrugB: "aspirin",
	})
	require.NoError(t, err)
	assert.Nil(t, out)
	require.NotNil(t, res)
	assert.True(t, res.IsError)
}

func TestFindAlternativesToolExcludesContraindicatedPhenotype(t *testing.T) {
	server := newTestServer(t)

	res, out, err := server.handleFindAlternatives(context.Background(), nil, FindAlternativesInput{
		ForDrug: "codeine",
		Phenotypes: map[string]domain.Phenotype{
			"cyp2d6": domain.PhenotypePoorMetabolizer,
		},
	})
	require.NoError(t, err)
	assert.Nil(t, res)
	require.NotNil(t, out)

	// Tramadol shares the CYP2D6 contraindication and is excluded before
	// scoring; the non-prodrug opioids remain, highest composite score first.
	require.Len(t, out.Alternatives, 3)
	for _, alt := range out.Alternatives {
		assert.NotEqual(t, "tramadol", alt.Medication)
	}
	assert.Equal(t, "morphine", out.Alternatives[0].Medication)
	assert.True(t, out.Alternatives[0].Best)
	assert.Equal(t, "hydromorphone", out.Alternatives[1].Medication)
	assert.False(t, out.Alternatives[1].Best)
}

func TestReviewPGxTool(t *testing.T) {
	server := newTestServer(t)

	res, result, err := server.handleReviewPGx(context.Background(), nil, ReviewPGxInput{
		PatientID: "patient-007",
		GenotypeResults: []domain.PGxResult{
			{Gene: "CYP2D6", Phenotype: domain.PhenotypePoorMetabolizer},
		},
		Medications: []domain.MedicationReference{
			{Name: "codeine"},
		},
	})
	require.NoError(t, err)
	assert.Nil(t, res)
	require.NotNil(t, result)
	require.NotNil(t, result.PGx)

	require.Len(t, result.PGx.PerDrugRecommendations, 1)
	rec := result.PGx.PerDrugRecommendations[0]
	assert.Equal(t, "codeine", rec.DrugName)
	assert.Equal(t, domain.ActionAvoid, rec.Recommendation)
	assert.NotEmpty(t, rec.Citations)
}

func TestAssessDataQualityTool(t *testing.T) {
	server := newTestServer(t)

	res, result, err := server.handleAssessDataQuality(context.Background(), nil, AssessDataQualityInput{
		PatientID:    "patient-003",
		Demographics: &domain.Demographics{Age: 54, Sex: "F", WeightKg: 61},
		Medications: []domain.MedicationReference{
			{Name: "warfarin"},
		},
	})
	require.NoError(t, err)
	assert.Nil(t, res)
	require.NotNil(t, result)
	require.NotNil(t, result.DataQuality)
	assert.Equal(t, domain.AnalysisDataQuality, result.AnalysisType)
}

func TestSummarizeEvidenceTool(t *testing.T) {
	server := newTestServer(t)

	res, result, err := server.handleSummarizeEvidence(context.Background(), nil, SummarizeEvidenceInput{
		PatientID: "patient-004",
		Medications: []domain.MedicationReference{
			{Name: "warfarin"},
			{Name: "aspirin"},
		},
	})
	require.NoError(t, err)
	assert.Nil(t, res)
	require.NotNil(t, result)
	require.NotNil(t, result.Evidence)

	require.Len(t, result.Evidence.PairEvidence, 1)
	assert.True(t, result.Evidence.PairEvidence[0].Resolved)
	assert.NotEmpty(t, result.Evidence.Sources)
}

func TestDispatchCanceledContext(t *testing.T) {
	server := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := server.handleAnalyzeMedications(ctx, nil, AnalyzeMedicationsInput{
		Medications: []domain.MedicationReference{
			{Name: "warfarin"},
			{Name: "aspirin"},
		},
	})
	assert.ErrorIs(t, err, context.Canceled)
}
