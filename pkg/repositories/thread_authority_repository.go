package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/freightdesk/linkage-engine/pkg/database"
	"github.com/freightdesk/linkage-engine/pkg/models"
)

// ThreadAuthorityRepository persists resolved thread authorities so the
// in-process cache survives restarts. Delete is the invalidation path.
type ThreadAuthorityRepository interface {
	Get(ctx context.Context, threadID string) (*models.ThreadAuthority, error)
	Upsert(ctx context.Context, authority *models.ThreadAuthority) error
	Delete(ctx context.Context, threadID string) error
}

type threadAuthorityRepository struct {
	db *database.DB
}

// NewThreadAuthorityRepository creates a new ThreadAuthorityRepository.
func NewThreadAuthorityRepository(db *database.DB) ThreadAuthorityRepository {
	return &threadAuthorityRepository{db: db}
}

var _ ThreadAuthorityRepository = (*threadAuthorityRepository)(nil)

func (r *threadAuthorityRepository) Get(ctx context.Context, threadID string) (*models.ThreadAuthority, error) {
	query := `
		SELECT thread_id, authority_message_id, identifier_type, identifier_value,
		       confidence, shipment_id, resolved_at
		FROM thread_authorities
		WHERE thread_id = $1`

	row := r.db.QueryRow(ctx, query, threadID)

	var a models.ThreadAuthority
	err := row.Scan(
		&a.ThreadID, &a.AuthorityMessageID, &a.IdentifierType, &a.IdentifierValue,
		&a.Confidence, &a.ShipmentID, &a.ResolvedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to scan thread authority: %w", err)
	}
	return &a, nil
}

func (r *threadAuthorityRepository) Upsert(ctx context.Context, authority *models.ThreadAuthority) error {
	if authority.ResolvedAt.IsZero() {
		authority.ResolvedAt = time.Now()
	}

	query := `
		INSERT INTO thread_authorities (
			thread_id, authority_message_id, identifier_type, identifier_value,
			confidence, shipment_id, resolved_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (thread_id)
		DO UPDATE SET
			authority_message_id = EXCLUDED.authority_message_id,
			identifier_type = EXCLUDED.identifier_type,
			identifier_value = EXCLUDED.identifier_value,
			confidence = EXCLUDED.confidence,
			shipment_id = EXCLUDED.shipment_id,
			resolved_at = EXCLUDED.resolved_at`

	_, err := r.db.Exec(ctx, query,
		authority.ThreadID, authority.AuthorityMessageID, authority.IdentifierType,
		authority.IdentifierValue, authority.Confidence, authority.ShipmentID,
		authority.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert thread authority: %w", err)
	}
	return nil
}

func (r *threadAuthorityRepository) Delete(ctx context.Context, threadID string) error {
	query := `DELETE FROM thread_authorities WHERE thread_id = $1`

	_, err := r.db.Exec(ctx, query, threadID)
	if err != nil {
		return fmt.Errorf("failed to delete thread authority: %w", err)
	}
	return nil
}
