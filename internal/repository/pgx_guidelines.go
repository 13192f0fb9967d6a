package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/medsafety-mcp-server/internal/domain"
)

// PGxGuidelineRepository handles pharmacogenomic guideline persistence
type PGxGuidelineRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewPGxGuidelineRepository creates a new guideline repository
func NewPGxGuidelineRepository(db *pgxpool.Pool, logger *logrus.Logger) *PGxGuidelineRepository {
	return &PGxGuidelineRepository{
		db:  db,
		log: logger,
	}
}

const guidelineColumns = `drug, gene, phenotype, action, rationale, citations`

// Create inserts a guideline rule. The same authoring invariants the
// built-in rule table enforces apply here: a rule without citations or with
// an unknown action is rejected before it reaches the database.
func (r *PGxGuidelineRepository) Create(ctx context.Context, guideline *domain.PGxGuidelineRecord) error {
	if err := guideline.Validate(); err != nil {
		return fmt.Errorf("creating pgx guideline: %w", err)
	}

	citationsJSON, err := json.Marshal(guideline.Citations)
	if err != nil {
		return fmt.Errorf("marshaling citations: %w", err)
	}

	query := `
		INSERT INTO pgx_guidelines (drug, gene, phenotype, action, rationale, citations)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (drug, gene, phenotype) DO UPDATE
		SET action = EXCLUDED.action,
		    rationale = EXCLUDED.rationale,
		    citations = EXCLUDED.citations,
		    updated_at = NOW()`

	_, err = r.db.Exec(ctx, query,
		domain.FallbackIdentity(guideline.Drug),
		guideline.Gene,
		string(guideline.Phenotype),
		string(guideline.Action),
		guideline.Rationale,
		citationsJSON,
	)

	if err != nil {
		r.log.WithFields(logrus.Fields{
			"drug":      guideline.Drug,
			"gene":      guideline.Gene,
			"phenotype": guideline.Phenotype,
			"error":     err,
		}).Error("Failed to create pgx guideline")
		return fmt.Errorf("creating pgx guideline: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"drug":      guideline.Drug,
		"gene":      guideline.Gene,
		"phenotype": guideline.Phenotype,
		"action":    guideline.Action,
	}).Info("PGx guideline created successfully")

	return nil
}

// GetByKey retrieves the guideline for a (drug, gene, phenotype) triple
func (r *PGxGuidelineRepository) GetByKey(ctx context.Context, drug, gene string, phenotype domain.Phenotype) (*domain.PGxGuidelineRecord, error) {
	query := `
		SELECT ` + guidelineColumns + `
		FROM pgx_guidelines
		WHERE drug = $1 AND gene = $2 AND phenotype = $3`

	row := r.db.QueryRow(ctx, query, domain.FallbackIdentity(drug), gene, string(phenotype))
	guideline, err := scanGuideline(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("pgx guideline not found: %w", domain.ErrNotFound)
		}
		r.log.WithFields(logrus.Fields{
			"drug":      drug,
			"gene":      gene,
			"phenotype": phenotype,
			"error":     err,
		}).Error("Failed to get pgx guideline")
		return nil, fmt.Errorf("getting pgx guideline: %w", err)
	}

	return guideline, nil
}

// ListForDrug retrieves all guideline rules for a drug
func (r *PGxGuidelineRepository) ListForDrug(ctx context.Context, drug string) ([]*domain.PGxGuidelineRecord, error) {
	query := `
		SELECT ` + guidelineColumns + `
		FROM pgx_guidelines
		WHERE drug = $1
		ORDER BY gene, phenotype`

	rows, err := r.db.Query(ctx, query, domain.FallbackIdentity(drug))
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"drug":  drug,
			"error": err,
		}).Error("Failed to list pgx guidelines")
		return nil, fmt.Errorf("listing pgx guidelines: %w", err)
	}
	defer rows.Close()

	var guidelines []*domain.PGxGuidelineRecord
	for rows.Next() {
		guideline, err := scanGuideline(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning pgx guideline row: %w", err)
		}
		guidelines = append(guidelines, guideline)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pgx guideline rows: %w", err)
	}

	return guidelines, nil
}

// Delete removes a guideline rule
func (r *PGxGuidelineRepository) Delete(ctx context.Context, drug, gene string, phenotype domain.Phenotype) error {
	result, err := r.db.Exec(ctx,
		`DELETE FROM pgx_guidelines WHERE drug = $1 AND gene = $2 AND phenotype = $3`,
		domain.FallbackIdentity(drug), gene, string(phenotype),
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"drug":      drug,
			"gene":      gene,
			"phenotype": phenotype,
			"error":     err,
		}).Error("Failed to delete pgx guideline")
		return fmt.Errorf("deleting pgx guideline: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("pgx guideline not found: %w", domain.ErrNotFound)
	}

	return nil
}

func scanGuideline(row pgx.Row) (*domain.PGxGuidelineRecord, error) {
	var guideline domain.PGxGuidelineRecord
	var citationsJSON []byte

	err := row.Scan(
		&guideline.Drug,
		&guideline.Gene,
		&guideline.Phenotype,
		&guideline.Action,
		&guideline.Rationale,
		&citationsJSON,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(citationsJSON, &guideline.Citations); err != nil {
		return nil, fmt.Errorf("unmarshaling citations: %w", err)
	}

	return &guideline, nil
}
