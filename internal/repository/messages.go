package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/xiaot623/gogo/mediator/internal/domain"
)

// CreateMessage appends a message to the session log.
func (s *SQLiteStore) CreateMessage(ctx context.Context, message *domain.Message) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (message_id, session_id, sender_id, sender_role, content, message_type, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		message.MessageID, message.SessionID, nullString(message.SenderID), message.SenderRole,
		message.Content, message.MessageType, message.CreatedAt)
	return err
}

// GetMessages retrieves messages for a session in log order. A zero limit
// returns the whole log; otherwise the page holds the newest limit messages
// that precede the before cursor (or the end of the log).
func (s *SQLiteStore) GetMessages(ctx context.Context, sessionID string, limit int, before string) ([]domain.Message, error) {
	query := `SELECT message_id, session_id, sender_id, sender_role, content, message_type, created_at
		FROM messages m WHERE m.session_id = ?`
	args := []any{sessionID}

	if before != "" {
		query += ` AND EXISTS (SELECT 1 FROM messages c WHERE c.session_id = m.session_id AND c.message_id = ?
			AND (m.created_at < c.created_at OR (m.created_at = c.created_at AND m.message_id < c.message_id)))`
		args = append(args, before)
	}

	if limit > 0 {
		query = `SELECT * FROM (` + query + fmt.Sprintf(` ORDER BY m.created_at DESC, m.message_id DESC LIMIT %d)`, limit) +
			` ORDER BY created_at ASC, message_id ASC`
	} else {
		query += ` ORDER BY m.created_at ASC, m.message_id ASC`
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []domain.Message{}
	for rows.Next() {
		var msg domain.Message
		var senderID sql.NullString
		if err := rows.Scan(&msg.MessageID, &msg.SessionID, &senderID, &msg.SenderRole, &msg.Content, &msg.MessageType, &msg.CreatedAt); err != nil {
			return nil, err
		}
		msg.SenderID = senderID.String
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
