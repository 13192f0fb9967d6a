package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/medsafety-mcp-server/internal/domain"
)

// AliasRepository handles drug alias persistence
type AliasRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewAliasRepository creates a new alias repository
func NewAliasRepository(db *pgxpool.Pool, logger *logrus.Logger) *AliasRepository {
	return &AliasRepository{
		db:  db,
		log: logger,
	}
}

// Create inserts a new alias. The alias is stored in fallback-identity form
// so lookups are case- and whitespace-insensitive.
func (r *AliasRepository) Create(ctx context.Context, alias, canonicalName, canonicalCode string) error {
	key := domain.FallbackIdentity(alias)
	if key == "" {
		return fmt.Errorf("creating alias: %w: alias is required", domain.ErrInvalidInput)
	}

	query := `
		INSERT INTO drug_aliases (alias, canonical_name, canonical_code)
		VALUES ($1, $2, $3)
		ON CONFLICT (alias) DO UPDATE
		SET canonical_name = EXCLUDED.canonical_name,
		    canonical_code = EXCLUDED.canonical_code`

	_, err := r.db.Exec(ctx, query, key, domain.FallbackIdentity(canonicalName), canonicalCode)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"alias": key,
			"error": err,
		}).Error("Failed to create drug alias")
		return fmt.Errorf("creating alias: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"alias":          key,
		"canonical_name": canonicalName,
	}).Debug("Drug alias created")

	return nil
}

// GetByAlias resolves an alias to its canonical identity
func (r *AliasRepository) GetByAlias(ctx context.Context, alias string) (*domain.AliasRecord, error) {
	query := `
		SELECT canonical_name, canonical_code
		FROM drug_aliases
		WHERE alias = $1`

	var record domain.AliasRecord

	err := r.db.QueryRow(ctx, query, domain.FallbackIdentity(alias)).Scan(
		&record.CanonicalName,
		&record.CanonicalCode,
	)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("alias not found: %w", domain.ErrNotFound)
		}
		r.log.WithFields(logrus.Fields{
			"alias": alias,
			"error": err,
		}).Error("Failed to get drug alias")
		return nil, fmt.Errorf("getting alias: %w", err)
	}

	return &record, nil
}

// Count returns the number of stored aliases
func (r *AliasRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM drug_aliases`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting aliases: %w", err)
	}
	return count, nil
}
