package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Submission is one submitted content blob. Immutable once created.
type Submission struct {
	ID        int64
	FormID    int64
	Content   string
	CreatedAt time.Time
}

// AppendSubmission records a new submission against a form. The target must
// be published; the caller is responsible for bumping the submissions counter
// (counter writes are a separate, system-driven operation).
func (s *Store) AppendSubmission(ctx context.Context, formID int64, content string) (*Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var published bool
	err := s.db.QueryRowContext(ctx, "SELECT published FROM forms WHERE id = ?", formID).Scan(&published)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFormNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("append submission: %w", err)
	}
	if !published {
		return nil, ErrFormNotPublished
	}

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO form_submissions (form_id, content) VALUES (?, ?)", formID, content)
	if err != nil {
		return nil, fmt.Errorf("append submission: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("append submission: %w", err)
	}

	row := s.db.QueryRowContext(ctx,
		"SELECT id, form_id, content, created_at FROM form_submissions WHERE id = ?", id)
	return scanSubmission(row)
}

// GetSubmissions returns a form's submissions ordered by creation time.
func (s *Store) GetSubmissions(ctx context.Context, formID int64, descending bool) ([]*Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order := "ASC"
	if descending {
		order = "DESC"
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, form_id, content, created_at FROM form_submissions WHERE form_id = ? ORDER BY created_at "+order+", id "+order,
		formID)
	if err != nil {
		return nil, fmt.Errorf("get submissions: %w", err)
	}
	defer rows.Close()

	var subs []*Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// GetFirstSubmission returns the earliest submission for a form, used by
// report builders to discover available projection keys.
func (s *Store) GetFirstSubmission(ctx context.Context, formID int64) (*Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, form_id, content, created_at FROM form_submissions WHERE form_id = ? ORDER BY created_at ASC, id ASC LIMIT 1",
		formID)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSubmissionNotFound
	}
	return sub, err
}

func scanSubmission(row interface{ Scan(...any) error }) (*Submission, error) {
	var sub Submission
	err := row.Scan(&sub.ID, &sub.FormID, &sub.Content, &sub.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan submission: %w", err)
	}
	return &sub, nil
}
