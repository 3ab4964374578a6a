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

// LinkRepository provides data access for message-shipment links.
// Upsert absorbs unique-constraint races: a concurrent insert of the same
// (message, shipment) pair becomes an update instead of an error.
type LinkRepository interface {
	GetByMessageID(ctx context.Context, messageID uuid.UUID) (*models.Link, error)
	GetByShipmentID(ctx context.Context, shipmentID uuid.UUID) ([]*models.Link, error)
	Upsert(ctx context.Context, link *models.Link) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ListReplyLinks pages through links whose message is a thread reply,
	// for cross-link repair.
	ListReplyLinks(ctx context.Context, limit, offset int) ([]*models.Link, error)
}

type linkRepository struct {
	db *database.DB
}

// NewLinkRepository creates a new LinkRepository.
func NewLinkRepository(db *database.DB) LinkRepository {
	return &linkRepository{db: db}
}

var _ LinkRepository = (*linkRepository)(nil)

const linkColumns = `id, message_id, shipment_id, document_id, identifier_type,
	identifier_value, confidence_score, email_authority, source, linked_at`

func (r *linkRepository) GetByMessageID(ctx context.Context, messageID uuid.UUID) (*models.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM shipment_links WHERE message_id = $1 LIMIT 1`

	row := r.db.QueryRow(ctx, query, messageID)
	link, err := scanLink(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, err
	}
	return link, nil
}

func (r *linkRepository) GetByShipmentID(ctx context.Context, shipmentID uuid.UUID) ([]*models.Link, error) {
	query := `
		SELECT ` + linkColumns + `
		FROM shipment_links
		WHERE shipment_id = $1
		ORDER BY linked_at`

	rows, err := r.db.Query(ctx, query, shipmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query links by shipment: %w", err)
	}
	defer rows.Close()

	return collectLinks(rows)
}

func (r *linkRepository) Upsert(ctx context.Context, link *models.Link) error {
	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	if link.LinkedAt.IsZero() {
		link.LinkedAt = time.Now()
	}

	query := `
		INSERT INTO shipment_links (` + linkColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (message_id, shipment_id)
		DO UPDATE SET
			identifier_type = EXCLUDED.identifier_type,
			identifier_value = EXCLUDED.identifier_value,
			confidence_score = EXCLUDED.confidence_score,
			email_authority = EXCLUDED.email_authority,
			source = EXCLUDED.source`

	_, err := r.db.Exec(ctx, query,
		link.ID, link.MessageID, link.ShipmentID, link.DocumentID,
		link.IdentifierType, link.IdentifierValue, link.ConfidenceScore,
		link.EmailAuthority, link.Source, link.LinkedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert link: %w", err)
	}
	return nil
}

// Delete removes a link. Only the explicit repair path calls this.
func (r *linkRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM shipment_links WHERE id = $1`

	_, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}
	return nil
}

func (r *linkRepository) ListReplyLinks(ctx context.Context, limit, offset int) ([]*models.Link, error) {
	query := `
		SELECT l.id, l.message_id, l.shipment_id, l.document_id, l.identifier_type,
		       l.identifier_value, l.confidence_score, l.email_authority, l.source, l.linked_at
		FROM shipment_links l
		JOIN messages m ON m.id = l.message_id
		WHERE m.is_reply = true
		ORDER BY l.linked_at, l.id
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query reply links: %w", err)
	}
	defer rows.Close()

	return collectLinks(rows)
}

func collectLinks(rows pgx.Rows) ([]*models.Link, error) {
	var links []*models.Link
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating links: %w", err)
	}
	return links, nil
}

func scanLink(row pgx.Row) (*models.Link, error) {
	var link models.Link
	err := row.Scan(
		&link.ID, &link.MessageID, &link.ShipmentID, &link.DocumentID,
		&link.IdentifierType, &link.IdentifierValue, &link.ConfidenceScore,
		&link.EmailAuthority, &link.Source, &link.LinkedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan link: %w", err)
	}
	return &link, nil
}
