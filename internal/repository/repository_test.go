package repository

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/medsafety-mcp-server/internal/database"
	"github.com/medsafety-mcp-server/internal/domain"
	"github.com/medsafety-mcp-server/pkg/directory"
)

// generateTestPassword creates a random password for test databases
func generateTestPassword() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "test_fallback_password_123"
	}
	return "test_" + hex.EncodeToString(bytes)
}

// setupTestDB starts a disposable Postgres container, applies the schema
// and seed migrations, and returns a ready connection pool.
func setupTestDB(t *testing.T) (*database.DB, func()) {
	t.Helper()
	if os.Getenv("TEST_ENABLE_CONTAINERS") == "" {
		t.Skip("TEST_ENABLE_CONTAINERS not set, skipping container tests")
	}

	ctx := context.Background()
	testPassword := generateTestPassword()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword(testPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}

	host, err := pgContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	databaseURL := fmt.Sprintf("postgres://testuser:%s@%s:%d/testdb?sslmode=disable",
		testPassword, host, port.Int())
	if err := database.Migrate(ctx, databaseURL, "../../migrations", logger); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	config := database.Config{
		Host:        host,
		Port:        port.Int(),
		Database:    "testdb",
		Username:    "testuser",
		Password:    testPassword,
		MaxConns:    10,
		MinConns:    2,
		MaxConnLife: time.Hour,
		MaxConnIdle: time.Minute * 30,
		SSLMode:     "disable",
	}

	db, err := database.NewConnection(ctx, config, logger)
	if err != nil {
		t.Fatalf("Failed to create database connection: %v", err)
	}

	cleanup := func() {
		db.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate PostgreSQL container: %v", err)
		}
	}

	return db, cleanup
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress logs during testing
	return logger
}

func TestAliasRepository(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewAliasRepository(db.Pool, testLogger())
	ctx := context.Background()

	record, err := repo.GetByAlias(ctx, "Coumadin")
	require.NoError(t, err)
	assert.Equal(t, "warfarin", record.CanonicalName)
	assert.Equal(t, "11289", record.CanonicalCode)

	_, err = repo.GetByAlias(ctx, "unobtainium")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = repo.Create(ctx, " Jantoven ", "Warfarin", "11289")
	require.NoError(t, err)

	created, err := repo.GetByAlias(ctx, "jantoven")
	require.NoError(t, err)
	assert.Equal(t, "warfarin", created.CanonicalName)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, int64(24))
}

func TestInteractionRepositoryLookups(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewInteractionRepository(db.Pool, testLogger())
	ctx := context.Background()

	byCodes, err := repo.GetByCodes(ctx, "1191", "11289")
	require.NoError(t, err)
	assert.Equal(t, domain.SeverityMajor, byCodes.Severity)
	assert.Equal(t, domain.TierCache, byCodes.SourceTier)
	assert.Len(t, byCodes.Citations, 2)

	flipped, err := repo.GetByCodes(ctx, "11289", "1191")
	require.NoError(t, err)
	assert.Equal(t, byCodes.Severity, flipped.Severity)

	byNames, err := repo.GetByNames(ctx, "ASPIRIN", " Warfarin ")
	require.NoError(t, err)
	assert.Equal(t, domain.SeverityMajor, byNames.Severity)
	assert.Equal(t, domain.TierCurated, byNames.SourceTier)

	_, err = repo.GetByNames(ctx, "warfarin", "metformin")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = repo.GetByCodes(ctx, "", "11289")
	assert.ErrorIs(t, err, domain.ErrNotFound, "missing code cannot match any pair")
}

func TestInteractionRepositoryCreateAndList(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewInteractionRepository(db.Pool, testLogger())
	ctx := context.Background()

	entry := directory.InteractionEntry{
		CodeA: "6851", CodeB: "10829",
		NameA: "methotrexate", NameB: "trimethoprim",
		Severity:       domain.SeverityMajor,
		Mechanism:      "additive antifolate effect",
		Recommendation: "Avoid the combination in patients on methotrexate",
		EvidenceLevel:  "established",
		Citations:      []string{"Bannwarth B et al. Clinical pharmacokinetics of low-dose methotrexate. 1996"},
	}
	require.NoError(t, repo.Create(ctx, entry))

	created, err := repo.GetByNames(ctx, "Trimethoprim", "Methotrexate")
	require.NoError(t, err)
	assert.Equal(t, domain.SeverityMajor, created.Severity)
	assert.Equal(t, "additive antifolate effect", created.Mechanism)

	majors, err := repo.ListBySeverity(ctx, domain.SeverityMajor, 50, 0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(majors), 2, "seeded and created major interactions")

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, int64(7))

	require.NoError(t, repo.Delete(ctx, "methotrexate", "trimethoprim"))
	err = repo.Delete(ctx, "methotrexate", "trimethoprim")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAlternativeRepository(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewAlternativeRepository(db.Pool, testLogger())
	ctx := context.Background()

	candidates, err := repo.ListForTarget(ctx, "Codeine")
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, "morphine", candidates[0].Medication.CanonicalName)
	assert.Equal(t, "tramadol", candidates[1].Medication.CanonicalName)
	assert.Len(t, candidates[1].ContraindicatedPhenotype, 2)

	empty, err := repo.ListForTarget(ctx, "unknown-target")
	require.NoError(t, err)
	assert.Empty(t, empty)

	err = repo.Create(ctx, "ibuprofen", domain.AlternativeCandidate{
		Medication: domain.NormalizedDrug{
			OriginalReference: domain.MedicationReference{Name: "naproxen"},
			CanonicalName:     "naproxen",
			CanonicalCode:     "7258",
		},
		SafetyScore:     84,
		EfficacyScore:   88,
		FormularyStatus: domain.FormularyLikelyCovered,
		Rationale:       "longer dosing interval with comparable analgesia",
	})
	require.NoError(t, err)

	created, err := repo.ListForTarget(ctx, "ibuprofen")
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, 84, created[0].SafetyScore)

	require.NoError(t, repo.Delete(ctx, "ibuprofen", "naproxen"))
	err = repo.Delete(ctx, "ibuprofen", "naproxen")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPGxGuidelineRepository(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewPGxGuidelineRepository(db.Pool, testLogger())
	ctx := context.Background()

	guideline, err := repo.GetByKey(ctx, "codeine", "CYP2D6", domain.PhenotypePoorMetabolizer)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionAvoid, guideline.Action)
	require.Len(t, guideline.Citations, 1)
	assert.Contains(t, guideline.Citations[0], "Clinical Pharmacogenetics Implementation Consortium")

	codeineRules, err := repo.ListForDrug(ctx, "codeine")
	require.NoError(t, err)
	assert.Len(t, codeineRules, 2)

	_, err = repo.GetByKey(ctx, "codeine", "CYP2D6", domain.PhenotypeNormalMetabolizer)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = repo.Create(ctx, &domain.PGxGuidelineRecord{
		Drug:      "ondansetron",
		Gene:      "CYP2D6",
		Phenotype: domain.PhenotypeUltrarapidMetabolizer,
		Action:    domain.ActionUseAlternative,
		Rationale: "Ultrarapid metabolizers clear ondansetron quickly with reduced antiemetic effect.",
	})
	assert.Error(t, err, "rule without citations must be rejected")

	err = repo.Create(ctx, &domain.PGxGuidelineRecord{
		Drug:      "ondansetron",
		Gene:      "CYP2D6",
		Phenotype: domain.PhenotypeUltrarapidMetabolizer,
		Action:    domain.ActionUseAlternative,
		Rationale: "Ultrarapid metabolizers clear ondansetron quickly with reduced antiemetic effect.",
		Citations: []string{"Bell GC, Caudle KE, Whirl-Carrillo M, et al. CPIC guideline for CYP2D6 genotype and use of ondansetron and tropisetron. Clin Pharmacol Ther. 2017;102(2):213-218."},
	})
	require.NoError(t, err)

	created, err := repo.GetByKey(ctx, "Ondansetron", "CYP2D6", domain.PhenotypeUltrarapidMetabolizer)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionUseAlternative, created.Action)

	require.NoError(t, repo.Delete(ctx, "ondansetron", "CYP2D6", domain.PhenotypeUltrarapidMetabolizer))
	err = repo.Delete(ctx, "ondansetron", "CYP2D6", domain.PhenotypeUltrarapidMetabolizer)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDirectoryAdapterMissSemantics(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := testLogger()
	dir := NewDirectory(
		NewAliasRepository(db.Pool, logger),
		NewInteractionRepository(db.Pool, logger),
	)
	ctx := context.Background()

	alias, err := dir.LookupAlias(ctx, "coumadin")
	require.NoError(t, err)
	require.NotNil(t, alias)
	assert.Equal(t, "warfarin", alias.CanonicalName)

	miss, err := dir.LookupAlias(ctx, "unobtainium")
	require.NoError(t, err, "directory miss is not an error")
	assert.Nil(t, miss)

	interaction, err := dir.LookupInteraction(ctx, "1191", "11289")
	require.NoError(t, err)
	require.NotNil(t, interaction)
	assert.Equal(t, domain.TierCache, interaction.SourceTier)

	noPair, err := dir.LookupInteractionByName(ctx, "warfarin", "metformin")
	require.NoError(t, err)
	assert.Nil(t, noPair)

	source := NewAlternatives(NewAlternativeRepository(db.Pool, logger))
	candidates, err := source.CandidatesFor(ctx, "codeine")
	require.NoError(t, err)
	assert.Len(t, candidates, 2)
}
