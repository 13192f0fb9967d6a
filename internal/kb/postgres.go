package kb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"time"

	_ "github.com/lib/pq"

	"github.com/medsafety-mcp-server/internal/domain"
	"github.com/medsafety-mcp-server/pkg/directory"
)

// PostgresStore implements the Store interface using PostgreSQL. It expects
// the schema to already exist (created and seeded via migrations).
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL knowledge base store.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL knowledge base store from
// a connection URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// GetAlias resolves a drug name to its canonical identity.
func (s *PostgresStore) GetAlias(ctx context.Context, name string) (*domain.AliasRecord, error) {
	var rec domain.AliasRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT canonical_name, canonical_code FROM drug_aliases WHERE alias = $1
	`, domain.FallbackIdentity(name)).Scan(&rec.CanonicalName, &rec.CanonicalCode)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alias: %w", err)
	}
	return &rec, nil
}

// GetInteractionByCodes looks up an interaction by canonical code pair.
func (s *PostgresStore) GetInteractionByCodes(ctx context.Context, codeA, codeB string) (*domain.InteractionRecord, error) {
	if codeA == "" || codeB == "" {
		return nil, nil
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+interactionColumns+` FROM drug_interactions WHERE code_key = $1 LIMIT 1
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
func (s *PostgresStore) GetInteractionByNames(ctx context.Context, nameA, nameB string) (*domain.InteractionRecord, error) {
	key := domain.SymmetricKey(domain.FallbackIdentity(nameA), domain.FallbackIdentity(nameB))

	row := s.db.QueryRowContext(ctx, `
		SELECT `+interactionColumns+` FROM drug_interactions WHERE name_key = $1 LIMIT 1
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
func (s *PostgresStore) GetAlternatives(ctx context.Context, targetName string) ([]domain.AlternativeCandidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT candidate_name, candidate_code, safety_score, efficacy_score,
			formulary_status, rationale, contraindicated_phenotypes
		FROM drug_alternatives
		WHERE target_name = $1
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
func (s *PostgresStore) CountInteractions(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM drug_interactions").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count interactions: %w", err)
	}
	return count, nil
}

// ExportJSON writes the full knowledge base to a JSON writer.
func (s *PostgresStore) ExportJSON(ctx context.Context, writer io.Writer) error {
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
func (s *PostgresStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	var export Export
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, alias := range export.Aliases {
		result, err := s.db.ExecContext(ctx, `
			INSERT INTO drug_aliases (alias, canonical_name, canonical_code)
			VALUES ($1, $2, $3)
			ON CONFLICT (alias) DO NOTHING
		`, domain.FallbackIdentity(alias.Alias), alias.CanonicalName, alias.CanonicalCode)
		if err != nil {
			return imported, skipped, fmt.Errorf("failed to import alias %q: %w", alias.Alias, err)
		}
		if n, _ := result.RowsAffected(); n > 0 {
			imported++
		} else {
			skipped++
		}
	}

	for _, interaction := range export.Interactions {
		citations, err := json.Marshal(interaction.Citations)
		if err != nil {
			return imported, skipped, fmt.Errorf("failed to marshal citations: %w", err)
		}
		nameKey := domain.SymmetricKey(
			domain.FallbackIdentity(interaction.NameA),
			domain.FallbackIdentity(interaction.NameB),
		)
		codeKey := ""
		if interaction.CodeA != "" && interaction.CodeB != "" {
			codeKey = domain.SymmetricKey(interaction.CodeA, interaction.CodeB)
		}

		result, err := s.db.ExecContext(ctx, `
			INSERT INTO drug_interactions (
				name_key, code_key, name_a, name_b, code_a, code_b,
				severity, mechanism, recommendation, evidence_level, citations
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (name_key) DO NOTHING
		`,
			nameKey, codeKey, interaction.NameA, interaction.NameB,
			interaction.CodeA, interaction.CodeB, string(interaction.Severity),
			interaction.Mechanism, interaction.Recommendation,
			interaction.EvidenceLevel, string(citations),
		)
		if err != nil {
			return imported, skipped, fmt.Errorf("failed to import interaction %s/%s: %w",
				interaction.NameA, interaction.NameB, err)
		}
		if n, _ := result.RowsAffected(); n > 0 {
			imported++
		} else {
			skipped++
		}
	}

	for _, alt := range export.Alternatives {
		phenotypes, err := json.Marshal(alt.ContraindicatedPhenotype)
		if err != nil {
			return imported, skipped, fmt.Errorf("failed to marshal phenotypes: %w", err)
		}

		result, err := s.db.ExecContext(ctx, `
			INSERT INTO drug_alternatives (
				target_name, candidate_name, candidate_code,
				safety_score, efficacy_score, formulary_status,
				rationale, contraindicated_phenotypes
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (target_name, candidate_name) DO NOTHING
		`,
			domain.FallbackIdentity(alt.TargetName), alt.CandidateName, alt.CandidateCode,
			alt.SafetyScore, alt.EfficacyScore, alt.FormularyStatus,
			alt.Rationale, string(phenotypes),
		)
		if err != nil {
			return imported, skipped, fmt.Errorf("failed to import alternative %s->%s: %w",
				alt.TargetName, alt.CandidateName, err)
		}
		if n, _ := result.RowsAffected(); n > 0 {
			imported++
		} else {
			skipped++
		}
	}

	return imported, skipped, nil
}

// Ping verifies the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the store and releases resources.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
