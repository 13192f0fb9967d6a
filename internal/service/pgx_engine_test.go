package service

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medsafety-mcp-server/internal/domain"
)

func newTestPGxEngine(t *testing.T) *PGxEngine {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress logs during testing
	return NewPGxEngine(logger)
}

func TestMapPhenotypesInfersPoorMetabolizer(t *testing.T) {
	engine := newTestPGxEngine(t)

	mapped, gaps := engine.MapPhenotypes([]domain.PGxResult{
		{Gene: "CYP2D6", Genotype: "*4/*4"},
	})

	require.Len(t, mapped, 1)
	assert.Equal(t, domain.PhenotypePoorMetabolizer, mapped[0].Phenotype)
	assert.Empty(t, gaps)
}

func TestMapPhenotypesDiplotypeOrderInsensitive(t *testing.T) {
	engine := newTestPGxEngine(t)

	for _, genotype := range []string{"*1/*4", "*4/*1", " *4 / *1 "} {
		mapped, gaps := engine.MapPhenotypes([]domain.PGxResult{
			{Gene: "CYP2D6", Genotype: genotype},
		})
		require.Len(t, mapped, 1, "genotype %q", genotype)
		assert.Equal(t, domain.PhenotypeIntermediateMetabolizer, mapped[0].Phenotype, "genotype %q", genotype)
		assert.Empty(t, gaps)
	}
}

func TestMapPhenotypesNormalizesGeneSymbol(t *testing.T) {
	engine := newTestPGxEngine(t)

	mapped, _ := engine.MapPhenotypes([]domain.PGxResult{
		{Gene: " cyp2d6 ", Genotype: "*1/*1"},
	})

	require.Len(t, mapped, 1)
	assert.Equal(t, "CYP2D6", mapped[0].Gene)
	assert.Equal(t, domain.PhenotypeNormalMetabolizer, mapped[0].Phenotype)
}

func TestMapPhenotypesSurfacesGaps(t *testing.T) {
	engine := newTestPGxEngine(t)

	mapped, gaps := engine.MapPhenotypes([]domain.PGxResult{
		{Gene: "CYP2D6"},                       // no genotype at all
		{Gene: "ABCB1", Genotype: "c.3435C>T"}, // gene outside the rule table
		{Gene: "CYP2D6", Genotype: "*99/*99"},  // diplotype outside the rule table
	})

	// Every observation survives into the output; none is silently dropped.
	require.Len(t, mapped, 3)
	for _, result := range mapped {
		assert.Empty(t, result.Phenotype)
	}

	require.Len(t, gaps, 3)
	assert.Contains(t, gaps[0], "genotype not provided")
	assert.Contains(t, gaps[1], "no phenotype rules for gene")
	assert.Contains(t, gaps[2], `no phenotype rule for genotype "*99/*99"`)
}

func TestMapPhenotypesNeverOverridesStatedPhenotype(t *testing.T) {
	engine := newTestPGxEngine(t)

	// The stated phenotype disagrees with what the diplotype table would
	// infer; the stated value wins.
	mapped, gaps := engine.MapPhenotypes([]domain.PGxResult{
		{Gene: "CYP2D6", Genotype: "*1/*1", Phenotype: domain.PhenotypePoorMetabolizer},
	})

	require.Len(t, mapped, 1)
	assert.Equal(t, domain.PhenotypePoorMetabolizer, mapped[0].Phenotype)
	assert.Empty(t, gaps)
}

func TestRecommendCodeineForPoorMetabolizer(t *testing.T) {
	engine := newTestPGxEngine(t)

	mapped, _ := engine.MapPhenotypes([]domain.PGxResult{
		{Gene: "CYP2D6", Genotype: "*4/*4"},
	})
	recommendations := engine.Recommend([]domain.NormalizedDrug{
		normalizedDrug("codeine", "2670"),
	}, mapped)

	require.Len(t, recommendations, 1)
	rec := recommendations[0]
	assert.Equal(t, "codeine", rec.DrugName)
	assert.Equal(t, "CYP2D6", rec.Gene)
	assert.Equal(t, domain.PhenotypePoorMetabolizer, rec.Phenotype)
	assert.Equal(t, domain.ActionAvoid, rec.Recommendation)
	require.NotEmpty(t, rec.Citations)
	assert.Contains(t, rec.Citations[0], "Clinical Pharmacogenetics Implementation Consortium")
}

func TestRecommendCodeineForUltrarapidMetabolizer(t *testing.T) {
	engine := newTestPGxEngine(t)

	recommendations := engine.Recommend(
		[]domain.NormalizedDrug{normalizedDrug("codeine", "2670")},
		[]domain.PGxResult{{Gene: "CYP2D6", Phenotype: domain.PhenotypeUltrarapidMetabolizer}},
	)

	require.Len(t, recommendations, 1)
	assert.Equal(t, domain.ActionAvoid, recommendations[0].Recommendation)
}

func TestRecommendNormalMetabolizerYieldsNothing(t *testing.T) {
	engine := newTestPGxEngine(t)

	recommendations := engine.Recommend(
		[]domain.NormalizedDrug{normalizedDrug("codeine", "2670")},
		[]domain.PGxResult{{Gene: "CYP2D6", Phenotype: domain.PhenotypeNormalMetabolizer}},
	)
	assert.Empty(t, recommendations)
}

func TestRecommendEvaluatesGenesIndependently(t *testing.T) {
	engine := newTestPGxEngine(t)

	recommendations := engine.Recommend(
		[]domain.NormalizedDrug{
			normalizedDrug("clopidogrel", "32968"),
			normalizedDrug("capecitabine", "194000"),
		},
		[]domain.PGxResult{
			{Gene: "CYP2C19", Phenotype: domain.PhenotypePoorMetabolizer},
			{Gene: "DPYD", Phenotype: domain.PhenotypeIntermediateMetabolizer},
		},
	)

	require.Len(t, recommendations, 2)

	byDrug := make(map[string]domain.PerDrugPGxRecommendation)
	for _, rec := range recommendations {
		byDrug[rec.DrugName] = rec
	}
	assert.Equal(t, domain.ActionUseAlternative, byDrug["clopidogrel"].Recommendation)
	assert.Equal(t, "CYP2C19", byDrug["clopidogrel"].Gene)
	assert.Equal(t, domain.ActionAdjustDose, byDrug["capecitabine"].Recommendation)
	assert.Equal(t, "DPYD", byDrug["capecitabine"].Gene)
}

func TestRecommendIgnoresDrugsOutsideRuleTable(t *testing.T) {
	engine := newTestPGxEngine(t)

	recommendations := engine.Recommend(
		[]domain.NormalizedDrug{normalizedDrug("ondansetron", "26225")},
		[]domain.PGxResult{{Gene: "CYP2D6", Phenotype: domain.PhenotypePoorMetabolizer}},
	)
	assert.Empty(t, recommendations)
}

func TestRecommendIgnoresUnresolvedPhenotypes(t *testing.T) {
	engine := newTestPGxEngine(t)

	// A genotype that never mapped carries no phenotype and must not fire
	// any rule.
	recommendations := engine.Recommend(
		[]domain.NormalizedDrug{normalizedDrug("codeine", "2670")},
		[]domain.PGxResult{{Gene: "CYP2D6", Genotype: "*99/*99"}},
	)
	assert.Empty(t, recommendations)
}

func TestEveryPossibleRecommendationIsCited(t *testing.T) {
	engine := newTestPGxEngine(t)

	// Drive every rule in the table through Recommend and verify the output
	// invariant holds for all of them, not just the scenarios above.
	total := 0
	for drugKey, rules := range engine.actionsByDrug {
		for _, rule := range rules {
			for _, phenotype := range rule.Phenotypes {
				recommendations := engine.Recommend(
					[]domain.NormalizedDrug{{CanonicalName: drugKey}},
					[]domain.PGxResult{{Gene: rule.Gene, Phenotype: phenotype}},
				)
				require.NotEmpty(t, recommendations, "rule %s/%s/%s produced no recommendation", drugKey, rule.Gene, phenotype)
				for _, rec := range recommendations {
					total++
					require.NoError(t, rec.Validate())
					require.NotEmpty(t, rec.Citations, "recommendation %s/%s is uncited", rec.DrugName, rec.Gene)
					assert.NotEmpty(t, rec.Rationale)
				}
			}
		}
	}
	assert.Greater(t, total, 10, "rule table unexpectedly small")
}

func TestKnownGenes(t *testing.T) {
	engine := newTestPGxEngine(t)

	genes := engine.KnownGenes()
	assert.IsIncreasing(t, genes)
	for _, gene := range []string{"CYP2C9", "CYP2C19", "CYP2D6", "DPYD", "TPMT", "UGT1A1"} {
		assert.Contains(t, genes, gene)
	}
}

func TestNormalizeDiplotype(t *testing.T) {
	tests := []struct {
		name     string
		genotype string
		want     string
	}{
		{"already canonical", "*1/*4", "*1/*4"},
		{"reversed alleles", "*4/*1", "*1/*4"},
		{"spaces stripped", " *4 / *1 ", "*1/*4"},
		{"lowercase allele suffix", "*3a/*3c", "*3A/*3C"},
		{"homozygous", "*4/*4", "*4/*4"},
		{"not a diplotype", "c.3435C>T", "C.3435C>T"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeDiplotype(tt.genotype))
		})
	}
}

func TestAddActionRejectsAuthoringDefects(t *testing.T) {
	base := pgxActionRule{
		Drug:       "testdrug",
		Gene:       "CYP2D6",
		Phenotypes: []domain.Phenotype{domain.PhenotypePoorMetabolizer},
		Action:     domain.ActionAvoid,
		Rationale:  "test rationale",
		Citations:  []string{"test citation"},
	}

	t.Run("Missing_Citations", func(t *testing.T) {
		engine := newTestPGxEngine(t)
		rule := base
		rule.Citations = nil
		assert.Panics(t, func() { engine.addAction(rule) })
	})

	t.Run("Missing_Phenotypes", func(t *testing.T) {
		engine := newTestPGxEngine(t)
		rule := base
		rule.Phenotypes = nil
		assert.Panics(t, func() { engine.addAction(rule) })
	})

	t.Run("Invalid_Action", func(t *testing.T) {
		engine := newTestPGxEngine(t)
		rule := base
		rule.Action = domain.RecommendationAction("shrug")
		assert.Panics(t, func() { engine.addAction(rule) })
	})

	t.Run("Conflicting_Rule", func(t *testing.T) {
		engine := newTestPGxEngine(t)
		// The built-in table already covers codeine/CYP2D6 for poor
		// metabolizers; a second rule for the same slot must be rejected.
		rule := base
		rule.Drug = "codeine"
		assert.Panics(t, func() { engine.addAction(rule) })
	})
}
