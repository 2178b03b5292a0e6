package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/flarexio/docrag"
)

type chatRepository struct {
	db *sql.DB
}

var _ docrag.ChatRepository = (*chatRepository)(nil)

func (r *chatRepository) Store(ctx context.Context, msg *docrag.ChatMessage) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO chat_messages (id, session_id, user_message, ai_response, timestamp, model_used)
		VALUES (?, ?, ?, ?, ?, ?)
	`, msg.ID, nullString(msg.SessionID), msg.UserMessage, msg.AIResponse,
		msg.Timestamp.UTC(), msg.ModelUsed)

	if err != nil {
		return fmt.Errorf("saving chat message: %w", err)
	}

	return nil
}

func (r *chatRepository) List(ctx context.Context, query docrag.ChatQuery) ([]*docrag.ChatMessage, error) {
	stmt := `SELECT id, session_id, user_message, ai_response, timestamp, model_used
		FROM chat_messages`

	var args []any
	if query.SessionID != "" {
		stmt += " WHERE session_id = ?"
		args = append(args, query.SessionID)
	}

	stmt += " ORDER BY timestamp DESC LIMIT ? OFFSET ?"
	args = append(args, query.Limit, query.Skip)

	rows, err := r.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chat messages: %w", err)
	}
	defer rows.Close()

	msgs := make([]*docrag.ChatMessage, 0)
	for rows.Next() {
		var (
			msg     docrag.ChatMessage
			session sql.NullString
		)

		if err := rows.Scan(&msg.ID, &session, &msg.UserMessage, &msg.AIResponse,
			&msg.Timestamp, &msg.ModelUsed); err != nil {
			return nil, fmt.Errorf("scanning chat message: %w", err)
		}

		msg.SessionID = session.String
		msgs = append(msgs, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chat messages: %w", err)
	}

	return msgs, nil
}
