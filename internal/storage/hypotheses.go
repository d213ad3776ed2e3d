package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/a-marczewski/mindyard/internal/structural"
)

// ErrNoHypothesis is returned when a thread has no stored hypothesis yet.
var ErrNoHypothesis = errors.New("no hypothesis for thread")

// HypothesisStore persists the single current hypothesis per thread.
type HypothesisStore struct {
	db *DB
}

// NewHypothesisStore creates a HypothesisStore on an open database.
func NewHypothesisStore(db *DB) *HypothesisStore {
	return &HypothesisStore{db: db}
}

// Get returns the thread's current hypothesis and the probing question
// stored with it.
func (s *HypothesisStore) Get(ctx context.Context, threadID string) (structural.Hypothesis, string, error) {
	var h structural.Hypothesis
	var relationship, question string
	err := s.db.conn.QueryRowContext(ctx, `
		SELECT issue, relationship, reason, probing_question
		FROM hypotheses WHERE thread_id = ?
	`, threadID).Scan(&h.Issue, &relationship, &h.Reason, &question)
	if errors.Is(err, sql.ErrNoRows) {
		return structural.Hypothesis{}, "", ErrNoHypothesis
	}
	if err != nil {
		return structural.Hypothesis{}, "", err
	}
	h.Relationship = structural.ParseRelationship(relationship)
	return h, question, nil
}

// Put replaces the thread's hypothesis. The single-statement upsert keeps
// the write all-or-nothing.
func (s *HypothesisStore) Put(ctx context.Context, threadID string, h structural.Hypothesis, probingQuestion string) error {
	_, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO hypotheses (thread_id, issue, relationship, reason, probing_question, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(thread_id) DO UPDATE SET
			issue = excluded.issue,
			relationship = excluded.relationship,
			reason = excluded.reason,
			probing_question = excluded.probing_question,
			updated_at = CURRENT_TIMESTAMP
	`, threadID, h.Issue, string(h.Relationship), h.Reason, probingQuestion)
	return err
}
