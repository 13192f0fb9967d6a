package kb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/medsafety-mcp-server/internal/domain"
	"github.com/medsafety-mcp-server/pkg/directory"
)

// SQLiteStore implements the Store interface using SQLite. It backs the lite
// deployment where no external database is available.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite knowledge base store. It creates the
// database file and schema if they don't exist and seeds the bundled dataset
// into an empty database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	store := &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}

	if err := store.seedIfEmpty(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to seed knowledge base: %w", err)
	}

	return store, nil
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// createSchema creates the database tables and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS drug_aliases (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		alias TEXT NOT NULL UNIQUE,
		canonical_name TEXT NOT NULL,
		canonical_code TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS drug_interactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
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
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS drug_alternatives (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		target_name TEXT NOT NULL,
		candidate_name TEXT NOT NULL,
		candidate_code TEXT NOT NULL DEFAULT '',
		safety_score INTEGER NOT NULL,
		efficacy_score INTEGER NOT NULL,
		formulary_status TEXT DEFAULT '',
		rationale TEXT DEFAULT '',
		contraindicated_phenotypes TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(target_name, candidate_name)
	);

	CREATE INDEX IF NOT EXISTS idx_interactions_code_key ON drug_interactions(code_key);
	CREATE INDEX IF NOT EXISTS idx_alternatives_target ON drug_alternatives(target_name);
	`

	_, err := db.Exec(schema)
	return err
}

// seedIfEmpty loads the bundled dataset into a fresh database.
func (s *SQLiteStore) seedIfEmpty(ctx context.Context) error {
	count, err := s.CountInteractions(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	for _, alias := range directory.DefaultAliases() {
		if err := s.insertAlias(ctx, alias); err != nil {
			return err
		}
	}
	for _, interaction := range directory.DefaultInteractions() {
		if err := s.insertInteraction(ctx, interaction); err != nil {
			return err
		}
	}
	for _, alt := range DefaultAlternatives() {
		if err := s.insertAlternative(ctx, alt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) insertAlias(ctx context.Context, entry directory.AliasEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO drug_aliases (alias, canonical_name, canonical_code)
		VALUES (?, ?, ?)
	`, domain.FallbackIdentity(entry.Alias), entry.CanonicalName, entry.CanonicalCode)
	if err != nil {
		return fmt.Errorf("failed to insert alias %q: %w", entry.Alias, err)
	}
	return nil
}

func (s *SQLiteStore) insertInteraction(ctx context.Context, entry directory.InteractionEntry) error {
	citations, err := json.Marshal(entry.Citations)
	if err != nil {
		return fmt.Errorf("failed to marshal citations: %w", err)
	}

	nameKey := domain.SymmetricKey(domain.FallbackIdentity(entry.NameA), domain.FallbackIdentity(entry.NameB))
	codeKey := ""
	if entry.CodeA != "" && entry.CodeB != "" {
		codeKey = domain.SymmetricKey(entry.CodeA, entry.CodeB)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO drug_interactions (
			name_key, code_key, name_a, name_b, code_a, code_b,
			severity, mechanism, recommendation, evidence_level, citations
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		nameKey, codeKey, entry.NameA, entry.NameB, entry.CodeA, entry.CodeB,
		string(entry.Severity), entry.Mechanism, entry.Recommendation,
		entry.EvidenceLevel, string(citations),
	)
	if err != nil {
		return fmt.Errorf("failed to insert interaction %s/%s: %w", entry.NameA, entry.NameB, err)
	}
	return nil
}

func (s *SQLiteStore) insertAlternative(ctx context.Context, entry AlternativeEntry) error {
	phenotypes, err := json.Marshal(entry.ContraindicatedPhenotype)
	if err != nil {
		return fmt.Errorf("failed to marshal phenotypes: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO drug_alternatives (
			target_name, candidate_name, candidate_code,
			safety_score, efficacy_score, formulary_status,
			rationale, contraindicated_phenotypes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		domain.FallbackIdentity(entry.TargetName), entry.CandidateName, entry.CandidateCode,
		entry.SafetyScore, entry.EfficacyScore, entry.FormularyStatus,
		entry.Rationale, string(phenotypes),
	)
	if err != nil {
		return fmt.Errorf("failed to insert alternative %s->%s: %w", entry.TargetName, entry.CandidateName, err)
	}
	return nil
}

// GetAlias resolves a drug name to its canonical identity.
func (s *SQLiteStore) GetAlias(ctx context.Context, name string) (*domain.AliasRecord, error) {
	var rec domain.AliasRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT canonical_name, canonical_code FROM drug_aliases WHERE alias = ?
	`, domain.FallbackIdentity(name)).Scan(&rec.CanonicalName, &rec.CanonicalCode)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alias: %w", err)
	}
	return &rec, nil
}

// scanInteraction scans a row into a domain record, stamping the tier of the
// lookup path that produced it.
func scanInteraction(sc scanner, tier domain.SourceTier) (*domain.InteractionRecord, error) {
	rec := &domain.InteractionRecord{SourceTier: tier}
	var severity, citations string

	err := sc.Scan(
		&rec.DrugA, &rec.DrugB, &severity,
		&rec.Mechanism, &rec.Recommendation, &rec.EvidenceLevel, &citations,
	)
	if err != nil {
		return nil, err
	}

	parsed, err := domain.ParseSeverity(severity)
	if err != nil {
		return nil, fmt.Errorf("stored interaction %s/%s: %w", rec.DrugA, rec.DrugB, err)
	}
	rec.Severity = parsed

	if err := json.Unmarshal([]byte(citations), &rec.Citations); err != nil {
		return nil, fmt.Errorf("failed to parse citations: %w", err)
	}
	return rec, nil
}

const interactionColumns = `name_a, name_b, severity, mechanism, recommendation, evidence_level, citations`

// GetInteractionByCodes looks up an interaction by canonical code pair.
func (s *SQLiteStore) GetInteractionByCodes(ctx context.Context, codeA, codeB string) (*domain.InteractionRecord, error) {
	if codeA == "" || codeB == "" {
		return nil, nil
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+interactionColumns+` FROM drug_interactions WHERE code_key = ? LIMIT 1
	`, domain.SymmetricKey(codeA, codeB))

	rec, err := scanInteraction(row, domain.TierCache)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get interaction by codes: %w", err)
	}
	return rec, nil
}

// GetInteractionByNames looks up an interaction by drug name pair.
func (s *SQLiteStore) GetInteractionByNames(ctx context.Context, nameA, nameB string) (*domain.InteractionRecord, error) {
	key := domain.SymmetricKey(domain.FallbackIdentity(nameA), domain.FallbackIdentity(nameB))

	row := s.db.QueryRowContext(ctx, `
		SELECT `+interactionColumns+` FROM drug_interactions WHERE name_key = ? LIMIT 1
	`, key)

	rec, err := scanInteraction(row, domain.TierCurated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get interaction by names: %w", err)
	}
	return rec, nil
}

// GetAlternatives returns the stored alternative candidates for a drug.
func (s *SQLiteStore) GetAlternatives(ctx context.Context, targetName string) ([]domain.AlternativeCandidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT candidate_name, candidate_code, safety_score, efficacy_score,
			formulary_status, rationale, contraindicated_phenotypes
		FROM drug_alternatives
		WHERE target_name = ?
		ORDER BY candidate_name
	`, domain.FallbackIdentity(targetName))
	if err != nil {
		return nil, fmt.Errorf("failed to query alternatives: %w", err)
	}
	defer rows.Close()

	var result []domain.AlternativeCandidate
	for rows.Next() {
		entry := AlternativeEntry{TargetName: targetName}
		var phenotypes string

		err := rows.Scan(
			&entry.CandidateName, &entry.CandidateCode,
			&entry.SafetyScore, &entry.EfficacyScore,
			&entry.FormularyStatus, &entry.Rationale, &phenotypes,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alternative: %w", err)
		}
		if err := json.Unmarshal([]byte(phenotypes), &entry.ContraindicatedPhenotype); err != nil {
			return nil, fmt.Errorf("failed to parse phenotypes: %w", err)
		}

		result = append(result, entry.Candidate())
	}
	return result, rows.Err()
}

// CountInteractions returns the number of stored interaction records.
func (s *SQLiteStore) CountInteractions(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM drug_interactions").Scan(&count)
	return count, err
}

// ExportJSON writes the full knowledge base to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	export := &Export{
		Version:    "1.0",
		ExportedAt: time.Now(),
	}

	aliasRows, err := s.db.QueryContext(ctx, `
		SELECT alias, canonical_name, canonical_code FROM drug_aliases ORDER BY alias
	`)
	if err != nil {
		return fmt.Errorf("failed to query aliases: %w", err)
	}
	defer aliasRows.Close()
	for aliasRows.Next() {
		var entry directory.AliasEntry
		if err := aliasRows.Scan(&entry.Alias, &entry.CanonicalName, &entry.CanonicalCode); err != nil {
			return fmt.Errorf("failed to scan alias: %w", err)
		}
		export.Aliases = append(export.Aliases, entry)
	}
	if err := aliasRows.Err(); err != nil {
		return err
	}

	interactionRows, err := s.db.QueryContext(ctx, `
		SELECT name_a, name_b, code_a, code_b, severity, mechanism,
			recommendation, evidence_level, citations
		FROM drug_interactions ORDER BY name_key
	`)
	if err != nil {
		return fmt.Errorf("failed to query interactions: %w", err)
	}
	defer interactionRows.Close()
	for interactionRows.Next() {
		var entry directory.InteractionEntry
		var severity, citations string
		err := interactionRows.Scan(
			&entry.NameA, &entry.NameB, &entry.CodeA, &entry.CodeB,
			&severity, &entry.Mechanism, &entry.Recommendation,
			&entry.EvidenceLevel, &citations,
		)
		if err != nil {
			return fmt.Errorf("failed to scan interaction: %w", err)
		}
		entry.Severity = domain.Severity(severity)
		if err := json.Unmarshal([]byte(citations), &entry.Citations); err != nil {
			return fmt.Errorf("failed to parse citations: %w", err)
		}
		export.Interactions = append(export.Interactions, entry)
	}
	if err := interactionRows.Err(); err != nil {
		return err
	}

	altRows, err := s.db.QueryContext(ctx, `
		SELECT target_name, candidate_name, candidate_code, safety_score,
			efficacy_score, formulary_status, rationale, contraindicated_phenotypes
		FROM drug_alternatives ORDER BY target_name, candidate_name
	`)
	if err != nil {
		return fmt.Errorf("failed to query alternatives: %w", err)
	}
	defer altRows.Close()
	for altRows.Next() {
		var entry AlternativeEntry
		var phenotypes string
		err := altRows.Scan(
			&entry.TargetName, &entry.CandidateName, &entry.CandidateCode,
			&entry.SafetyScore, &entry.EfficacyScore, &entry.FormularyStatus,
			&entry.Rationale, &phenotypes,
		)
		if err != nil {
			return fmt.Errorf("failed to scan alternative: %w", err)
		}
		if err := json.Unmarshal([]byte(phenotypes), &entry.ContraindicatedPhenotype); err != nil {
			return fmt.Errorf("failed to parse phenotypes: %w", err)
		}
		export.Alternatives = append(export.Alternatives, entry)
	}
	if err := altRows.Err(); err != nil {
		return err
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// ImportJSON merges a JSON export into the store.
func (s *SQLiteStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	var export Export
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, alias := range export.Aliases {
		existing, err := s.GetAlias(ctx, alias.Alias)
		if err != nil {
			return imported, skipped, err
		}
		if existing != nil {
			skipped++
			continue
		}
		if err := s.insertAlias(ctx, alias); err != nil {
			return imported, skipped, err
		}
		imported++
	}

	for _, interaction := range export.Interactions {
		existing, err := s.GetInteractionByNames(ctx, interaction.NameA, interaction.NameB)
		if err != nil {
			return imported, skipped, err
		}
		if existing != nil {
			skipped++
			continue
		}
		if err := s.insertInteraction(ctx, interaction); err != nil {
			return imported, skipped, err
		}
		imported++
	}

	for _, alt := range export.Alternatives {
		existing, err := s.GetAlternatives(ctx, alt.TargetName)
		if err != nil {
			return imported, skipped, err
		}
		if containsCandidate(existing, alt.CandidateName) {
			skipped++
			continue
		}
		if err := s.insertAlternative(ctx, alt); err != nil {
			return imported, skipped, err
		}
		imported++
	}

	return imported, skipped, nil
}

func containsCandidate(candidates []domain.AlternativeCandidate, name string) bool {
	for _, c := range candidates {
		if domain.FallbackIdentity(c.Medication.CanonicalName) == domain.FallbackIdentity(name) {
			return true
		}
	}
	return false
}

// Ping verifies the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
