package messages

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/saraha/internal/dbx"
	"github.com/dmitrijs2005/saraha/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, m *models.Message) error {
	attachments := m.Attachments
	if attachments == nil {
		attachments = []models.Attachment{}
	}
	raw, err := json.Marshal(attachments)
	if err != nil {
		return fmt.Errorf("marshal attachments: %w", err)
	}

	query := `
		INSERT INTO messages (id, sender_id, receiver_id, content, attachments, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := r.db.ExecContext(ctx, query, m.ID, m.SenderID, m.ReceiverID, m.Content, raw, m.CreatedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListConversation(ctx context.Context, a, b, before string, limit int) ([]models.Message, error) {
	query := `
		SELECT id, sender_id, receiver_id, content, attachments, created_at
		FROM messages
		WHERE ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))
		  AND ($3 = '' OR id < $3)
		ORDER BY id DESC
		LIMIT $4
	`
	rows, err := r.db.QueryContext(ctx, query, a, b, before, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.Message, 0, limit)
	for rows.Next() {
		var (
			m   models.Message
			raw []byte
		)
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &raw, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if err := json.Unmarshal(raw, &m.Attachments); err != nil {
			return nil, fmt.Errorf("decode attachments of %s: %w", m.ID, err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) DeleteForAccount(ctx context.Context, accountID string) error {
	query := `DELETE FROM messages WHERE sender_id = $1 OR receiver_id = $1`
	if _, err := r.db.ExecContext(ctx, query, accountID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
