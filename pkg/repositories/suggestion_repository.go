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

// SuggestionRepository provides data access for reviewable link suggestions.
type SuggestionRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Suggestion, error)
	GetByMessageAndShipment(ctx context.Context, messageID, shipmentID uuid.UUID) (*models.Suggestion, error)
	// Upsert is idempotent per (message, shipment) pair: reprocessing the
	// same message refreshes the pending suggestion instead of duplicating it.
	Upsert(ctx context.Context, s *models.Suggestion) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.SuggestionStatus) error
	ListPending(ctx context.Context, limit, offset int) ([]*models.Suggestion, error)
}

type suggestionRepository struct {
	db *database.DB
}

// NewSuggestionRepository creates a new SuggestionRepository.
func NewSuggestionRepository(db *database.DB) SuggestionRepository {
	return &suggestionRepository{db: db}
}

var _ SuggestionRepository = (*suggestionRepository)(nil)

const suggestionColumns = `id, message_id, shipment_id, identifier_type,
	identifier_value, confidence_score, reasoning, status, created_at, reviewed_at`

func (r *suggestionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Suggestion, error) {
	query := `SELECT ` + suggestionColumns + ` FROM link_suggestions WHERE id = $1`

	row := r.db.QueryRow(ctx, query, id)
	s, err := scanSuggestion(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, err
	}
	return s, nil
}

func (r *suggestionRepository) GetByMessageAndShipment(ctx context.Context, messageID, shipmentID uuid.UUID) (*models.Suggestion, error) {
	query := `
		SELECT ` + suggestionColumns + `
		FROM link_suggestions
		WHERE message_id = $1 AND shipment_id = $2`

	row := r.db.QueryRow(ctx, query, messageID, shipmentID)
	s, err := scanSuggestion(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, err
	}
	return s, nil
}

func (r *suggestionRepository) Upsert(ctx context.Context, s *models.Suggestion) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	if s.Status == "" {
		s.Status = models.SuggestionPending
	}

	query := `
		INSERT INTO link_suggestions (` + suggestionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (message_id, shipment_id)
		DO UPDATE SET
			identifier_type = EXCLUDED.identifier_type,
			identifier_value = EXCLUDED.identifier_value,
			confidence_score = EXCLUDED.confidence_score,
			reasoning = EXCLUDED.reasoning`

	_, err := r.db.Exec(ctx, query,
		s.ID, s.MessageID, s.ShipmentID, s.IdentifierType, s.IdentifierValue,
		s.ConfidenceScore, s.Reasoning, s.Status, s.CreatedAt, s.ReviewedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert suggestion: %w", err)
	}
	return nil
}

func (r *suggestionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.SuggestionStatus) error {
	query := `UPDATE link_suggestions SET status = $2, reviewed_at = $3 WHERE id = $1`

	_, err := r.db.Exec(ctx, query, id, status, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update suggestion status: %w", err)
	}
	return nil
}

func (r *suggestionRepository) ListPending(ctx context.Context, limit, offset int) ([]*models.Suggestion, error) {
	query := `
		SELECT ` + suggestionColumns + `
		FROM link_suggestions
		WHERE status = 'pending'
		ORDER BY created_at, id
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending suggestions: %w", err)
	}
	defer rows.Close()

	var suggestions []*models.Suggestion
	for rows.Next() {
		s, err := scanSuggestion(rows)
		if err != nil {
			return nil, err
		}
		suggestions = append(suggestions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating suggestions: %w", err)
	}
	return suggestions, nil
}

func scanSuggestion(row pgx.Row) (*models.Suggestion, error) {
	var s models.Suggestion
	err := row.Scan(
		&s.ID, &s.MessageID, &s.ShipmentID, &s.IdentifierType, &s.IdentifierValue,
		&s.ConfidenceScore, &s.Reasoning, &s.Status, &s.CreatedAt, &s.ReviewedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan suggestion: %w", err)
	}
	return &s, nil
}
