package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/medsafety-mcp-server/internal/domain"
	"github.com/medsafety-mcp-server/pkg/directory"
)

// MockAlternativeSource is a testify mock of the alternatives table.
type MockAlternativeSource struct {
	mock.Mock
}

func (m *MockAlternativeSource) CandidatesFor(ctx context.Context, drugName string) ([]domain.AlternativeCandidate, error) {
	args := m.Called(ctx, drugName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AlternativeCandidate), args.Error(1)
}

func alternativeCandidate(name, code string, safety, efficacy int, formulary string) domain.AlternativeCandidate {
	return domain.AlternativeCandidate{
		Medication:    domain.NormalizedDrug{CanonicalName: name, CanonicalCode: code},
		SafetyScore:   safety,
		EfficacyScore: efficacy,
		FormularyStatus: func() string {
			if formulary == "" {
				return domain.FormularyLikelyCovered
			}
			return formulary
		}(),
	}
}

func newTestRanker(t *testing.T, source domain.AlternativeSource, withResolver bool) *AlternativeRanker {
	t.Helper()

	dir, err := directory.NewDefaultStaticDirectory()
	require.NoError(t, err)
	normalizer := newTestNormalizer(t, dir)

	var resolver domain.InteractionResolver
	if withResolver {
		resolver = newTestResolver(t, dir)
	}

	ranker, err := NewAlternativeRanker(source, normalizer, resolver, normalizer.logger)
	require.NoError(t, err)
	return ranker
}

func TestRankScoresAndOrdering(t *testing.T) {
	source := new(MockAlternativeSource)
	source.On("CandidatesFor", mock.Anything, "ibuprofen").Return([]domain.AlternativeCandidate{
		alternativeCandidate("celecoxib", "140587", 82, 88, ""),
		alternativeCandidate("acetaminophen", "161", 95, 92, ""),
	}, nil)

	ranker := newTestRanker(t, source, false)

	suggestions, err := ranker.Rank(context.Background(), RankParams{ForDrug: "Advil"})
	require.NoError(t, err)
	require.Len(t, suggestions, 2)

	assert.Equal(t, "acetaminophen", suggestions[0].Medication)
	assert.Equal(t, 187, suggestions[0].Score)
	assert.True(t, suggestions[0].Best)

	assert.Equal(t, "celecoxib", suggestions[1].Medication)
	assert.Equal(t, 170, suggestions[1].Score)
	assert.False(t, suggestions[1].Best)
}

func TestRankBestGateRequiresBothComponents(t *testing.T) {
	source := new(MockAlternativeSource)
	source.On("CandidatesFor", mock.Anything, mock.Anything).Return([]domain.AlternativeCandidate{
		// Composite 184 beats many best-gated candidates, but efficacy sits
		// below the gate, so best must stay false.
		alternativeCandidate("oxycodone", "7804", 95, 89, ""),
		alternativeCandidate("morphine", "7052", 90, 90, ""),
	}, nil)

	ranker := newTestRanker(t, source, false)

	suggestions, err := ranker.Rank(context.Background(), RankParams{ForDrug: "codeine"})
	require.NoError(t, err)
	require.Len(t, suggestions, 2)

	for _, s := range suggestions {
		switch s.Medication {
		case "oxycodone":
			assert.False(t, s.Best)
			assert.Equal(t, 184, s.Score)
		case "morphine":
			assert.True(t, s.Best)
			assert.Equal(t, 180, s.Score)
		}
	}
}

func TestRankExcludesContraindicatedCandidates(t *testing.T) {
	tramadol := alternativeCandidate("tramadol", "10689", 96, 95, "")
	tramadol.ContraindicatedPhenotype = []domain.GenePhenotype{
		{Gene: "CYP2D6", Phenotype: domain.PhenotypePoorMetabolizer},
	}

	source := new(MockAlternativeSource)
	source.On("CandidatesFor", mock.Anything, "codeine").Return([]domain.AlternativeCandidate{
		tramadol,
		alternativeCandidate("morphine", "7052", 90, 91, ""),
	}, nil)

	ranker := newTestRanker(t, source, false)

	patient := domain.PatientContext{
		Phenotypes: map[string]domain.Phenotype{"CYP2D6": domain.PhenotypePoorMetabolizer},
	}
	suggestions, err := ranker.Rank(context.Background(), RankParams{ForDrug: "codeine", Patient: patient})
	require.NoError(t, err)

	// Exclusion happens before scoring; the contraindicated candidate never
	// appears, regardless of how well it would have scored.
	require.Len(t, suggestions, 1)
	assert.Equal(t, "morphine", suggestions[0].Medication)
}

func TestRankContraindicationRequiresPhenotypeMatch(t *testing.T) {
	tramadol := alternativeCandidate("tramadol", "10689", 96, 95, "")
	tramadol.ContraindicatedPhenotype = []domain.GenePhenotype{
		{Gene: "CYP2D6", Phenotype: domain.PhenotypePoorMetabolizer},
	}

	source := new(MockAlternativeSource)
	source.On("CandidatesFor", mock.Anything, "codeine").Return([]domain.AlternativeCandidate{tramadol}, nil)

	ranker := newTestRanker(t, source, false)

	patient := domain.PatientContext{
		Phenotypes: map[string]domain.Phenotype{"CYP2D6": domain.PhenotypeNormalMetabolizer},
	}
	suggestions, err := ranker.Rank(context.Background(), RankParams{ForDrug: "codeine", Patient: patient})
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, "tramadol", suggestions[0].Medication)
}

func TestRankCoveredOnlyFiltersVisibilityOnly(t *testing.T) {
	source := new(MockAlternativeSource)
	source.On("CandidatesFor", mock.Anything, mock.Anything).Return([]domain.AlternativeCandidate{
		alternativeCandidate("rosuvastatin", "301542", 95, 93, "prior-authorization"),
		alternativeCandidate("pravastatin", "42463", 92, 85, ""),
	}, nil)

	ranker := newTestRanker(t, source, false)
	ctx := context.Background()

	unfiltered, err := ranker.Rank(ctx, RankParams{ForDrug: "simvastatin"})
	require.NoError(t, err)
	require.Len(t, unfiltered, 2)

	filtered, err := ranker.Rank(ctx, RankParams{ForDrug: "simvastatin", CoveredOnly: true})
	require.NoError(t, err)
	require.Len(t, filtered, 1)

	// The filter removes rows; it never rewrites the surviving ones.
	assert.Equal(t, "pravastatin", filtered[0].Medication)
	assert.Equal(t, unfiltered[1], filtered[0])
}

func TestRankInteractionCautionOrdersAfterClean(t *testing.T) {
	source := new(MockAlternativeSource)
	source.On("CandidatesFor", mock.Anything, "codeine").Return([]domain.AlternativeCandidate{
		alternativeCandidate("tramadol", "10689", 96, 95, ""),
		alternativeCandidate("morphine", "7052", 90, 91, ""),
	}, nil)

	ranker := newTestRanker(t, source, true)

	suggestions, err := ranker.Rank(context.Background(), RankParams{
		ForDrug:  "codeine",
		WithDrug: "Prozac",
	})
	require.NoError(t, err)
	require.Len(t, suggestions, 2)

	// Tramadol outscores morphine but interacts with fluoxetine at major
	// severity, so it is ordered after the clean suggestion while keeping
	// its score and best flag.
	assert.Equal(t, "morphine", suggestions[0].Medication)
	assert.Empty(t, suggestions[0].InteractionCaution)

	assert.Equal(t, "tramadol", suggestions[1].Medication)
	assert.Equal(t, 191, suggestions[1].Score)
	assert.True(t, suggestions[1].Best)
	assert.Contains(t, suggestions[1].InteractionCaution, "fluoxetine")
	assert.Contains(t, suggestions[1].InteractionCaution, "major")
}

func TestRankSkipsInvalidCandidates(t *testing.T) {
	source := new(MockAlternativeSource)
	source.On("CandidatesFor", mock.Anything, mock.Anything).Return([]domain.AlternativeCandidate{
		alternativeCandidate("badrow", "", 150, 90, ""),
		alternativeCandidate("morphine", "7052", 90, 91, ""),
	}, nil)

	ranker := newTestRanker(t, source, false)

	suggestions, err := ranker.Rank(context.Background(), RankParams{ForDrug: "codeine"})
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, "morphine", suggestions[0].Medication)
}

func TestRankDeterministicTieBreak(t *testing.T) {
	source := new(MockAlternativeSource)
	source.On("CandidatesFor", mock.Anything, mock.Anything).Return([]domain.AlternativeCandidate{
		alternativeCandidate("zafirlukast", "114970", 80, 80, ""),
		alternativeCandidate("montelukast", "88249", 80, 80, ""),
	}, nil)

	ranker := newTestRanker(t, source, false)

	suggestions, err := ranker.Rank(context.Background(), RankParams{ForDrug: "aspirin"})
	require.NoError(t, err)
	require.Len(t, suggestions, 2)
	assert.Equal(t, "montelukast", suggestions[0].Medication)
	assert.Equal(t, "zafirlukast", suggestions[1].Medication)
}

func TestRankRequiresTargetDrug(t *testing.T) {
	ranker := newTestRanker(t, new(MockAlternativeSource), false)

	_, err := ranker.Rank(context.Background(), RankParams{ForDrug: "   "})
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
}

func TestRankSourceFailure(t *testing.T) {
	source := new(MockAlternativeSource)
	source.On("CandidatesFor", mock.Anything, mock.Anything).
		Return(nil, errors.New("alternatives table offline"))

	ranker := newTestRanker(t, source, false)

	_, err := ranker.Rank(context.Background(), RankParams{ForDrug: "codeine"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rank alternatives")
}
