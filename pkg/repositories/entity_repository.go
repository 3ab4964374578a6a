// Package repositories provides PostgreSQL data access for the linkage
// engine's collaborator stores.
package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/freightdesk/linkage-engine/pkg/database"
	"github.com/freightdesk/linkage-engine/pkg/models"
)

// EntityRepository provides read access to upstream-extracted entity records.
// Records are immutable; the linking engine never writes them.
type EntityRepository interface {
	FindByMessageID(ctx context.Context, messageID uuid.UUID) ([]*models.EntityRecord, error)
	FindByTypeAndValue(ctx context.Context, entityType, value string) ([]*models.EntityRecord, error)
}

type entityRepository struct {
	db *database.DB
}

// NewEntityRepository creates a new EntityRepository.
func NewEntityRepository(db *database.DB) EntityRepository {
	return &entityRepository{db: db}
}

var _ EntityRepository = (*entityRepository)(nil)

const entityColumns = `id, message_id, entity_type, value, normalized_value, confidence, source, created_at`

func (r *entityRepository) FindByMessageID(ctx context.Context, messageID uuid.UUID) ([]*models.EntityRecord, error) {
	query := `
		SELECT ` + entityColumns + `
		FROM entity_records
		WHERE message_id = $1
		ORDER BY confidence DESC, created_at`

	rows, err := r.db.Query(ctx, query, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entity records: %w", err)
	}
	defer rows.Close()

	return collectEntityRecords(rows)
}

func (r *entityRepository) FindByTypeAndValue(ctx context.Context, entityType, value string) ([]*models.EntityRecord, error) {
	query := `
		SELECT ` + entityColumns + `
		FROM entity_records
		WHERE entity_type = $1 AND (normalized_value = $2 OR (normalized_value IS NULL AND value = $2))
		ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, entityType, value)
	if err != nil {
		return nil, fmt.Errorf("failed to query entity records by value: %w", err)
	}
	defer rows.Close()

	return collectEntityRecords(rows)
}

func collectEntityRecords(rows pgx.Rows) ([]*models.EntityRecord, error) {
	var records []*models.EntityRecord
	for rows.Next() {
		rec, err := scanEntityRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entity records: %w", err)
	}
	return records, nil
}

func scanEntityRecord(row pgx.Row) (*models.EntityRecord, error) {
	var rec models.EntityRecord
	err := row.Scan(
		&rec.ID, &rec.MessageID, &rec.EntityType, &rec.Value,
		&rec.NormalizedValue, &rec.Confidence, &rec.Source, &rec.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan entity record: %w", err)
	}
	return &rec, nil
}
