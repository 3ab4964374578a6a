package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/freightdesk/linkage-engine/pkg/database"
	"github.com/freightdesk/linkage-engine/pkg/models"
)

// AuditRepository appends linking decisions to the append-only audit log.
// There is deliberately no update or delete method.
type AuditRepository interface {
	Append(ctx context.Context, entry *models.AuditEntry) error
	ListByMessage(ctx context.Context, messageID uuid.UUID) ([]*models.AuditEntry, error)
}

type auditRepository struct {
	db *database.DB
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(db *database.DB) AuditRepository {
	return &auditRepository{db: db}
}

var _ AuditRepository = (*auditRepository)(nil)

func (r *auditRepository) Append(ctx context.Context, entry *models.AuditEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	breakdown, err := json.Marshal(entry.Breakdown)
	if err != nil {
		return fmt.Errorf("failed to marshal score breakdown: %w", err)
	}

	query := `
		INSERT INTO audit_log (
			id, message_id, shipment_id, operation, identifier_type,
			identifier_value, confidence_score, breakdown, reasoning, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = r.db.Exec(ctx, query,
		entry.ID, entry.MessageID, entry.ShipmentID, entry.Operation,
		entry.IdentifierType, entry.IdentifierValue, entry.ConfidenceScore,
		breakdown, entry.Reasoning, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func (r *auditRepository) ListByMessage(ctx context.Context, messageID uuid.UUID) ([]*models.AuditEntry, error) {
	query := `
		SELECT id, message_id, shipment_id, operation, identifier_type,
		       identifier_value, confidence_score, breakdown, reasoning, created_at
		FROM audit_log
		WHERE message_id = $1
		ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []*models.AuditEntry
	for rows.Next() {
		entry, err := scanAuditEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log: %w", err)
	}
	return entries, nil
}

func scanAuditEntry(row pgx.Row) (*models.AuditEntry, error) {
	var entry models.AuditEntry
	var breakdown []byte
	err := row.Scan(
		&entry.ID, &entry.MessageID, &entry.ShipmentID, &entry.Operation,
		&entry.IdentifierType, &entry.IdentifierValue, &entry.ConfidenceScore,
		&breakdown, &entry.Reasoning, &entry.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan audit entry: %w", err)
	}
	if len(breakdown) > 0 {
		if err := json.Unmarshal(breakdown, &entry.Breakdown); err != nil {
			return nil, fmt.Errorf("failed to unmarshal score breakdown: %w", err)
		}
	}
	return &entry, nil
}
