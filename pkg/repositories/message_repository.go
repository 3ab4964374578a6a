package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/freightdesk/linkage-engine/pkg/database"
	"github.com/freightdesk/linkage-engine/pkg/models"
)

// MessageRepository provides the linker's view of message metadata.
// Classification fields are written by upstream ingestion; the linker only
// clears the pending-link flag once a pending message is resolved.
type MessageRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.MessageMetadata, error)
	GetByThread(ctx context.Context, threadID string) ([]*models.MessageMetadata, error)
	// ListUnlinked pages through messages that have no active link, oldest
	// first.
	ListUnlinked(ctx context.Context, limit, offset int) ([]*models.MessageMetadata, error)
	ClearPendingLink(ctx context.Context, id uuid.UUID) error
}

type messageRepository struct {
	db *database.DB
}

// NewMessageRepository creates a new MessageRepository.
func NewMessageRepository(db *database.DB) MessageRepository {
	return &messageRepository{db: db}
}

var _ MessageRepository = (*messageRepository)(nil)

const messageColumns = `id, thread_id, is_reply, sender, true_sender, authority,
	document_type, message_type, sender_category, pending_link, received_at`

func (r *messageRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.MessageMetadata, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`

	row := r.db.QueryRow(ctx, query, id)
	msg, err := scanMessage(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, err
	}
	return msg, nil
}

func (r *messageRepository) GetByThread(ctx context.Context, threadID string) ([]*models.MessageMetadata, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE thread_id = $1
		ORDER BY received_at`

	rows, err := r.db.Query(ctx, query, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to query thread messages: %w", err)
	}
	defer rows.Close()

	return collectMessages(rows)
}

func (r *messageRepository) ListUnlinked(ctx context.Context, limit, offset int) ([]*models.MessageMetadata, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages m
		WHERE NOT EXISTS (
			SELECT 1 FROM shipment_links l WHERE l.message_id = m.id
		)
		ORDER BY received_at, id
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query unlinked messages: %w", err)
	}
	defer rows.Close()

	return collectMessages(rows)
}

func (r *messageRepository) ClearPendingLink(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE messages SET pending_link = false WHERE id = $1`

	_, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to clear pending link flag: %w", err)
	}
	return nil
}

func collectMessages(rows pgx.Rows) ([]*models.MessageMetadata, error) {
	var messages []*models.MessageMetadata
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return messages, nil
}

func scanMessage(row pgx.Row) (*models.MessageMetadata, error) {
	var msg models.MessageMetadata
	err := row.Scan(
		&msg.ID, &msg.ThreadID, &msg.IsReply, &msg.Sender, &msg.TrueSender,
		&msg.Authority, &msg.DocumentType, &msg.MessageType, &msg.SenderCategory,
		&msg.PendingLink, &msg.ReceivedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan message: %w", err)
	}
	return &msg, nil
}
