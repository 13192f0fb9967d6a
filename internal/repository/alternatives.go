package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/medsafety-mcp-server/internal/domain"
)

// AlternativeRepository handles alternative candidate persistence
type AlternativeRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewAlternativeRepository creates a new alternative repository
func NewAlternativeRepository(db *pgxpool.Pool, logger *logrus.Logger) *AlternativeRepository {
	return &AlternativeRepository{
		db:  db,
		log: logger,
	}
}

// Create inserts an alternative candidate for a target drug
func (r *AlternativeRepository) Create(ctx context.Context, targetName string, candidate domain.AlternativeCandidate) error {
	if err := candidate.Validate(); err != nil {
		return fmt.Errorf("creating alternative: %w", err)
	}
	target := domain.FallbackIdentity(targetName)
	if target == "" {
		return fmt.Errorf("creating alternative: %w: target name is required", domain.ErrInvalidInput)
	}

	phenotypesJSON, err := json.Marshal(candidate.ContraindicatedPhenotype)
	if err != nil {
		return fmt.Errorf("marshaling contraindicated phenotypes: %w", err)
	}

	query := `
		INSERT INTO drug_alternatives (
			target_name, candidate_name, candidate_code,
			safety_score, efficacy_score, formulary_status, rationale,
			contraindicated_phenotypes
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
		ON CONFLICT (target_name, candidate_name) DO UPDATE
		SET candidate_code = EXCLUDED.candidate_code,
		    safety_score = EXCLUDED.safety_score,
		    efficacy_score = EXCLUDED.efficacy_score,
		    formulary_status = EXCLUDED.formulary_status,
		    rationale = EXCLUDED.rationale,
		    contraindicated_phenotypes = EXCLUDED.contraindicated_phenotypes`

	_, err = r.db.Exec(ctx, query,
		target,
		candidate.Medication.CanonicalName,
		candidate.Medication.CanonicalCode,
		candidate.SafetyScore,
		candidate.EfficacyScore,
		candidate.FormularyStatus,
		candidate.Rationale,
		phenotypesJSON,
	)

	if err != nil {
		r.log.WithFields(logrus.Fields{
			"target":    target,
			"candidate": candidate.Medication.CanonicalName,
			"error":     err,
		}).Error("Failed to create alternative")
		return fmt.Errorf("creating alternative: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"target":    target,
		"candidate": candidate.Medication.CanonicalName,
	}).Info("Alternative created successfully")

	return nil
}

// ListForTarget retrieves the stored candidates for a target drug. An
// unknown target yields an empty list, not an error.
func (r *AlternativeRepository) ListForTarget(ctx context.Context, targetName string) ([]domain.AlternativeCandidate, error) {
	query := `
		SELECT candidate_name, candidate_code, safety_score, efficacy_score,
		       formulary_status, rationale, contraindicated_phenotypes
		FROM drug_alternatives
		WHERE target_name = $1
		ORDER BY candidate_name`

	rows, err := r.db.Query(ctx, query, domain.FallbackIdentity(targetName))
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"target": targetName,
			"error":  err,
		}).Error("Failed to list alternatives")
		return nil, fmt.Errorf("listing alternatives: %w", err)
	}
	defer rows.Close()

	var candidates []domain.AlternativeCandidate
	for rows.Next() {
		var candidate domain.AlternativeCandidate
		var name, code string
		var phenotypesJSON []byte

		err := rows.Scan(
			&name,
			&code,
			&candidate.SafetyScore,
			&candidate.EfficacyScore,
			&candidate.FormularyStatus,
			&candidate.Rationale,
			&phenotypesJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning alternative row: %w", err)
		}

		if err := json.Unmarshal(phenotypesJSON, &candidate.ContraindicatedPhenotype); err != nil {
			return nil, fmt.Errorf("unmarshaling contraindicated phenotypes: %w", err)
		}

		candidate.Medication = domain.NormalizedDrug{
			OriginalReference: domain.MedicationReference{Name: name},
			CanonicalName:     name,
			CanonicalCode:     code,
		}
		candidates = append(candidates, candidate)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating alternative rows: %w", err)
	}

	return candidates, nil
}

// Delete removes one candidate for a target drug
func (r *AlternativeRepository) Delete(ctx context.Context, targetName, candidateName string) error {
	result, err := r.db.Exec(ctx,
		`DELETE FROM drug_alternatives WHERE target_name = $1 AND candidate_name = $2`,
		domain.FallbackIdentity(targetName), domain.FallbackIdentity(candidateName),
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"target":    targetName,
			"candidate": candidateName,
			"error":     err,
		}).Error("Failed to delete alternative")
		return fmt.Errorf("deleting alternative: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("alternative not found: %w", domain.ErrNotFound)
	}

	return nil
}
