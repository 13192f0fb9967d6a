package kb

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medsafety-mcp-server/internal/domain"
)

// getTestDB returns a database connection for testing.
// Skip test if TEST_DATABASE_URL is not set.
func getTestDB(t *testing.T) *sql.DB {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping PostgreSQL tests")
	}

	db, err := sql.Open("postgres", dbURL)
	require.NoError(t, err)

	// Create knowledge base tables for testing
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS drug_aliases (
			id BIGSERIAL PRIMARY KEY,
			alias TEXT NOT NULL UNIQUE,
			canonical_name TEXT NOT NULL,
			canonical_code TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS drug_interactions (
			id BIGSERIAL PRIMARY KEY,
			name_key TEXT NOT NULL UNIQUE,
			code_key TEXT NOT NULL DEFAULT '',
			name_a TEXT NOT NULL,
			name_b TEXT NOT NULL,
			code_a TEXT NOT NULL DEFAULT '',
			code_b TEXT NOT NULL DEFAULT '',
			severity TEXT NOT NULL,
			mechanism TEXT DEFAULT '',
			recommendation TEXT DEFAULT '',
			evidence_level TEXT DEFAULT '',
			citations TEXT NOT NULL DEFAULT '[]',
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS drug_alternatives (
			id BIGSERIAL PRIMARY KEY,
			target_name TEXT NOT NULL,
			candidate_name TEXT NOT NULL,
			candidate_code TEXT NOT NULL DEFAULT '',
			safety_score INTEGER NOT NULL,
			efficacy_score INTEGER NOT NULL,
			formulary_status TEXT DEFAULT '',
			rationale TEXT DEFAULT '',
			contraindicated_phenotypes TEXT NOT NULL DEFAULT '[]',
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			UNIQUE(target_name, candidate_name)
		)
	`)
	require.NoError(t, err)

	// Clean up before test
	_, err = db.Exec("DELETE FROM drug_alternatives; DELETE FROM drug_interactions; DELETE FROM drug_aliases")
	require.NoError(t, err)

	return db
}

func seedTestDB(t *testing.T, db *sql.DB) {
	t.Helper()
	_, err := db.Exec(`
		INSERT INTO drug_aliases (alias, canonical_name, canonical_code)
		VALUES ('coumadin', 'warfarin', '11289'), ('warfarin', 'warfarin', '11289')
	`)
	require.NoError(t, err)

	_, err = db.Exec(`
		INSERT INTO drug_interactions (
			name_key, code_key, name_a, name_b, code_a, code_b,
			severity, mechanism, recommendation, evidence_level, citations
		) VALUES (
			'aspirin|warfarin', '11289|1191', 'warfarin', 'aspirin', '11289', '1191',
			'major', 'additive anticoagulant effects', 'avoid combination',
			'established', '["Hansten PD, Horn JR. 2024"]'
		)
	`)
	require.NoError(t, err)

	_, err = db.Exec(`
		INSERT INTO drug_alternatives (
			target_name, candidate_name, candidate_code,
			safety_score, efficacy_score, formulary_status, rationale, contraindicated_phenotypes
		) VALUES (
			'aspirin', 'acetaminophen', '161', 95, 90, 'likely-covered',
			'no platelet inhibition', '[]'
		)
	`)
	require.NoError(t, err)
}

func TestPostgresStore_GetAlias(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	seedTestDB(t, db)

	store, err := NewPostgresStore(db)
	require.NoError(t, err)

	ctx := context.Background()

	rec, err := store.GetAlias(ctx, "Coumadin")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "warfarin", rec.CanonicalName)

	miss, err := store.GetAlias(ctx, "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, miss)
}

func TestPostgresStore_GetInteraction(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	seedTestDB(t, db)

	store, err := NewPostgresStore(db)
	require.NoError(t, err)

	ctx := context.Background()

	byCodes, err := store.GetInteractionByCodes(ctx, "1191", "11289")
	require.NoError(t, err)
	require.NotNil(t, byCodes)
	assert.Equal(t, domain.SeverityMajor, byCodes.Severity)
	assert.Equal(t, domain.TierCache, byCodes.SourceTier)
	assert.Equal(t, []string{"Hansten PD, Horn JR. 2024"}, byCodes.Citations)

	byNames, err := store.GetInteractionByNames(ctx, "ASPIRIN", "warfarin")
	require.NoError(t, err)
	require.NotNil(t, byNames)
	assert.Equal(t, domain.TierCurated, byNames.SourceTier)

	miss, err := store.GetInteractionByNames(ctx, "warfarin", "metformin")
	require.NoError(t, err)
	assert.Nil(t, miss)
}

func TestPostgresStore_GetAlternatives(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	seedTestDB(t, db)

	store, err := NewPostgresStore(db)
	require.NoError(t, err)

	candidates, err := store.GetAlternatives(context.Background(), "Aspirin")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "acetaminophen", candidates[0].Medication.CanonicalName)
	assert.Equal(t, 95, candidates[0].SafetyScore)
	assert.Equal(t, 90, candidates[0].EfficacyScore)
}

func TestPostgresStore_ImportCountsSkips(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	seedTestDB(t, db)

	store, err := NewPostgresStore(db)
	require.NoError(t, err)

	ctx := context.Background()

	count, err := store.CountInteractions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	seeded := newTestStore(t)
	var buf bytes.Buffer
	require.NoError(t, seeded.ExportJSON(ctx, &buf))

	imported, skipped, err := store.ImportJSON(ctx, &buf)
	require.NoError(t, err)
	assert.Greater(t, imported, 0)
	assert.Greater(t, skipped, 0, "seed rows already present should be skipped")
}
