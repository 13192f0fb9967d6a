package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/medsafety-mcp-server/internal/domain"
	"github.com/medsafety-mcp-server/pkg/directory"
)

// InteractionRepository handles curated interaction persistence
type InteractionRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewInteractionRepository creates a new interaction repository
func NewInteractionRepository(db *pgxpool.Pool, logger *logrus.Logger) *InteractionRepository {
	return &InteractionRepository{
		db:  db,
		log: logger,
	}
}

const interactionColumns = `name_a, name_b, severity, mechanism, recommendation, evidence_level, citations`

// Create inserts a curated interaction. The order-insensitive pair keys are
// derived here so every row is reachable from both orderings.
func (r *InteractionRepository) Create(ctx context.Context, entry directory.InteractionEntry) error {
	if err := entry.Record(domain.TierCurated).Validate(); err != nil {
		return fmt.Errorf("creating interaction: %w", err)
	}

	nameKey := domain.SymmetricKey(domain.FallbackIdentity(entry.NameA), domain.FallbackIdentity(entry.NameB))
	codeKey := ""
	if entry.CodeA != "" && entry.CodeB != "" {
		codeKey = domain.SymmetricKey(entry.CodeA, entry.CodeB)
	}

	citationsJSON, err := json.Marshal(entry.Citations)
	if err != nil {
		return fmt.Errorf("marshaling citations: %w", err)
	}

	query := `
		INSERT INTO drug_interactions (
			name_key, code_key, name_a, name_b, code_a, code_b,
			severity, mechanism, recommendation, evidence_level, citations
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
		ON CONFLICT (name_key) DO UPDATE
		SET code_key = EXCLUDED.code_key,
		    severity = EXCLUDED.severity,
		    mechanism = EXCLUDED.mechanism,
		    recommendation = EXCLUDED.recommendation,
		    evidence_level = EXCLUDED.evidence_level,
		    citations = EXCLUDED.citations,
		    updated_at = NOW()`

	_, err = r.db.Exec(ctx, query,
		nameKey, codeKey, entry.NameA, entry.NameB, entry.CodeA, entry.CodeB,
		string(entry.Severity), entry.Mechanism, entry.Recommendation,
		entry.EvidenceLevel, citationsJSON,
	)

	if err != nil {
		r.log.WithFields(logrus.Fields{
			"name_key": nameKey,
			"severity": entry.Severity,
			"error":    err,
		}).Error("Failed to create interaction")
		return fmt.Errorf("creating interaction: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"name_key": nameKey,
		"severity": entry.Severity,
	}).Info("Interaction created successfully")

	return nil
}

// GetByCodes retrieves an interaction by canonical code pair. The lookup is
// order-insensitive; the returned record carries the cache source tier.
func (r *InteractionRepository) GetByCodes(ctx context.Context, codeA, codeB string) (*domain.InteractionRecord, error) {
	if codeA == "" || codeB == "" {
		return nil, fmt.Errorf("interaction not found: %w", domain.ErrNotFound)
	}

	query := `
		SELECT ` + interactionColumns + `
		FROM drug_interactions
		WHERE code_key = $1`

	row := r.db.QueryRow(ctx, query, domain.SymmetricKey(codeA, codeB))
	record, err := r.scanInteraction(row, domain.TierCache)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("interaction not found: %w", domain.ErrNotFound)
		}
		r.log.WithFields(logrus.Fields{
			"code_a": codeA,
			"code_b": codeB,
			"error":  err,
		}).Error("Failed to get interaction by codes")
		return nil, fmt.Errorf("getting interaction by codes: %w", err)
	}

	return record, nil
}

// GetByNames retrieves an interaction by drug name pair. The lookup is
// order- and case-insensitive; the returned record carries the curated
// source tier.
func (r *InteractionRepository) GetByNames(ctx context.Context, nameA, nameB string) (*domain.InteractionRecord, error) {
	key := domain.SymmetricKey(domain.FallbackIdentity(nameA), domain.FallbackIdentity(nameB))

	query := `
		SELECT ` + interactionColumns + `
		FROM drug_interactions
		WHERE name_key = $1`

	row := r.db.QueryRow(ctx, query, key)
	record, err := r.scanInteraction(row, domain.TierCurated)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("interaction not found: %w", domain.ErrNotFound)
		}
		r.log.WithFields(logrus.Fields{
			"name_key": key,
			"error":    err,
		}).Error("Failed to get interaction by names")
		return nil, fmt.Errorf("getting interaction by names: %w", err)
	}

	return record, nil
}

// ListBySeverity retrieves interactions at a given severity with pagination
func (r *InteractionRepository) ListBySeverity(ctx context.Context, severity domain.Severity, limit, offset int) ([]*domain.InteractionRecord, error) {
	query := `
		SELECT ` + interactionColumns + `
		FROM drug_interactions
		WHERE severity = $1
		ORDER BY name_key
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, string(severity), limit, offset)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"severity": severity,
			"error":    err,
		}).Error("Failed to list interactions by severity")
		return nil, fmt.Errorf("listing interactions by severity: %w", err)
	}
	defer rows.Close()

	var records []*domain.InteractionRecord
	for rows.Next() {
		record, err := r.scanInteraction(rows, domain.TierCurated)
		if err != nil {
			return nil, fmt.Errorf("scanning interaction row: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating interaction rows: %w", err)
	}

	return records, nil
}

// Count returns the number of stored interactions
func (r *InteractionRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM drug_interactions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting interactions: %w", err)
	}
	return count, nil
}

// Delete removes an interaction by name pair
func (r *InteractionRepository) Delete(ctx context.Context, nameA, nameB string) error {
	key := domain.SymmetricKey(domain.FallbackIdentity(nameA), domain.FallbackIdentity(nameB))

	result, err := r.db.Exec(ctx, `DELETE FROM drug_interactions WHERE name_key = $1`, key)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"name_key": key,
			"error":    err,
		}).Error("Failed to delete interaction")
		return fmt.Errorf("deleting interaction: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("interaction not found: %w", domain.ErrNotFound)
	}

	r.log.WithFields(logrus.Fields{
		"name_key": key,
	}).Info("Interaction deleted successfully")

	return nil
}

// scanInteraction reads one interaction row and stamps the source tier the
// caller resolved through.
func (r *InteractionRepository) scanInteraction(row pgx.Row, tier domain.SourceTier) (*domain.InteractionRecord, error) {
	var record domain.InteractionRecord
	var citationsJSON []byte

	err := row.Scan(
		&record.DrugA,
		&record.DrugB,
		&record.Severity,
		&record.Mechanism,
		&record.Recommendation,
		&record.EvidenceLevel,
		&citationsJSON,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(citationsJSON, &record.Citations); err != nil {
		return nil, fmt.Errorf("unmarshaling citations: %w", err)
	}

	record.SourceTier = tier
	return &record, nil
}
