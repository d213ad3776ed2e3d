package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Turn is one recorded utterance and the assistant reply it received.
type Turn struct {
	ID        string
	ThreadID  string
	Content   string
	Reply     string
	Intent    string
	CreatedAt time.Time
}

// ThreadStore persists conversation turns.
type ThreadStore struct {
	db *DB
}

// NewThreadStore creates a ThreadStore on an open database.
func NewThreadStore(db *DB) *ThreadStore {
	return &ThreadStore{db: db}
}

// Append records a new turn. An empty ID is assigned a fresh UUID; the
// (possibly generated) ID is returned.
func (s *ThreadStore) Append(ctx context.Context, turn Turn) (string, error) {
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	_, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO utterances (id, thread_id, content, reply, intent)
		VALUES (?, ?, ?, ?, ?)
	`, turn.ID, turn.ThreadID, turn.Content, turn.Reply, turn.Intent)
	if err != nil {
		return "", err
	}
	return turn.ID, nil
}

// SetOutcome records the assistant reply and the routed intent for an
// already-appended turn. The intent is read back on the next turn as the
// classifier's previous context.
func (s *ThreadStore) SetOutcome(ctx context.Context, id, reply, intent string) error {
	_, err := s.db.conn.ExecContext(ctx, `
		UPDATE utterances SET reply = ?, intent = ? WHERE id = ?
	`, reply, intent, id)
	return err
}

// AppendResearchNote appends background research findings to an existing
// turn's reply.
func (s *ThreadStore) AppendResearchNote(ctx context.Context, id, note string) error {
	_, err := s.db.conn.ExecContext(ctx, `
		UPDATE utterances SET reply = COALESCE(reply, '') || ? WHERE id = ?
	`, note, id)
	return err
}

// RecentTurns returns up to limit most-recent turns of a thread in
// chronological order, excluding the turn with excludeID (pass "" to
// exclude nothing).
func (s *ThreadStore) RecentTurns(ctx context.Context, threadID, excludeID string, limit int) ([]Turn, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT id, thread_id, content, COALESCE(reply, ''), COALESCE(intent, ''), created_at
		FROM utterances
		WHERE thread_id = ? AND id != ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, threadID, excludeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		var createdAt sql.NullTime
		if err := rows.Scan(&t.ID, &t.ThreadID, &t.Content, &t.Reply, &t.Intent, &createdAt); err != nil {
			return nil, err
		}
		if createdAt.Valid {
			t.CreatedAt = createdAt.Time
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Newest-first from the query; callers want chronological order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}
