package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/freightdesk/linkage-engine/pkg/database"
	"github.com/freightdesk/linkage-engine/pkg/models"
)

// ConflictRepository provides data access for recorded linking conflicts.
type ConflictRepository interface {
	Create(ctx context.Context, c *models.Conflict) error
	ListByMessage(ctx context.Context, messageID uuid.UUID) ([]*models.Conflict, error)
}

type conflictRepository struct {
	db *database.DB
}

// NewConflictRepository creates a new ConflictRepository.
func NewConflictRepository(db *database.DB) ConflictRepository {
	return &conflictRepository{db: db}
}

var _ ConflictRepository = (*conflictRepository)(nil)

func (r *conflictRepository) Create(ctx context.Context, c *models.Conflict) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now()

	query := `
		INSERT INTO link_conflicts (
			id, type, message_id, shipment_ids, identifier_type,
			identifier_value, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(ctx, query,
		c.ID, c.Type, c.MessageID, c.ShipmentIDs, c.IdentifierType,
		c.IdentifierValue, c.Details, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create conflict record: %w", err)
	}
	return nil
}

func (r *conflictRepository) ListByMessage(ctx context.Context, messageID uuid.UUID) ([]*models.Conflict, error) {
	query := `
		SELECT id, type, message_id, shipment_ids, identifier_type,
		       identifier_value, details, created_at
		FROM link_conflicts
		WHERE message_id = $1
		ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conflicts: %w", err)
	}
	defer rows.Close()

	var conflicts []*models.Conflict
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, err
		}
		conflicts = append(conflicts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conflicts: %w", err)
	}
	return conflicts, nil
}

func scanConflict(row pgx.Row) (*models.Conflict, error) {
	var c models.Conflict
	err := row.Scan(
		&c.ID, &c.Type, &c.MessageID, &c.ShipmentIDs, &c.IdentifierType,
		&c.IdentifierValue, &c.Details, &c.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan conflict: %w", err)
	}
	return &c, nil
}
