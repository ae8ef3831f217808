package store

import (
	"context"
	"fmt"
	"time"

	"community-voice/internal/db"
)

// DatabaseStore keeps an audit log of voice interactions in PostgreSQL.
type DatabaseStore struct {
	db *db.DB
}

func NewDatabaseStore(database *db.DB) *DatabaseStore {
	return &DatabaseStore{db: database}
}

// Interaction is one transcript and the reply it produced.
type Interaction struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"sessionId"`
	Transcript string    `json:"transcript"`
	Intent     string    `json:"intent"`
	Reply      string    `json:"reply"`
	Failed     bool      `json:"failed"`
	CreatedAt  time.Time `json:"createdAt"`
}

// SaveInteraction appends an interaction and fills in its id and timestamp.
func (ds *DatabaseStore) SaveInteraction(ctx context.Context, in *Interaction) error {
	if in.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}

	query := `
		INSERT INTO interactions (session_id, transcript, intent, reply, failed, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, created_at
	`

	err := ds.db.QueryRowContext(ctx, query,
		in.SessionID, in.Transcript, in.Intent, in.Reply, in.Failed,
	).Scan(&in.ID, &in.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save interaction: %w", err)
	}
	return nil
}

// RecentInteractions returns the latest interactions of a session, oldest first.
func (ds *DatabaseStore) RecentInteractions(ctx context.Context, sessionID string, limit int) ([]Interaction, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session_id is required")
	}
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, session_id, transcript, intent, reply, failed, created_at
		FROM (
			SELECT id, session_id, transcript, intent, reply, failed, created_at
			FROM interactions
			WHERE session_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC, id ASC
	`

	rows, err := ds.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	defer rows.Close()

	var out []Interaction
	for rows.Next() {
		var in Interaction
		if err := rows.Scan(&in.ID, &in.SessionID, &in.Transcript, &in.Intent, &in.Reply, &in.Failed, &in.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		out = append(out, in)
	}
	return out, rows.Err()
}
