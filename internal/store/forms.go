package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash"
	"github.com/google/uuid"

	"formforge/internal/fields"
)

// Form is one designed form. Visits and Submissions are monotonic counters.
// SchemaVersion is a content hash used as an optimistic concurrency token for
// schema rewrites; it is derived, not stored.
type Form struct {
	ID          int64
	OwnerID     string
	Name        string
	Description string
	Content     string
	Published   bool
	Visits      int64
	Submissions int64
	ShareURL    string
	CreatedAt   time.Time

	SchemaVersion uint64
}

// Counter names accepted by IncrementCounter.
const (
	CounterVisits      = "visits"
	CounterSubmissions = "submissions"
)

// SchemaVersionOf computes the concurrency token for a schema blob.
func SchemaVersionOf(content string) uint64 {
	return xxhash.Sum64String(content)
}

const formColumns = "id, owner_id, name, description, content, published, visits, submissions, share_url, created_at"

func scanForm(row interface{ Scan(...any) error }) (*Form, error) {
	var f Form
	err := row.Scan(&f.ID, &f.OwnerID, &f.Name, &f.Description, &f.Content,
		&f.Published, &f.Visits, &f.Submissions, &f.ShareURL, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	f.SchemaVersion = SchemaVersionOf(f.Content)
	return &f, nil
}

// CreateForm creates an empty, unpublished form with a generated share URL.
func (s *Store) CreateForm(ctx context.Context, ownerID, name, description string) (*Form, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var taken bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM forms WHERE owner_id = ? AND name = ?)", ownerID, name).Scan(&taken)
	if err != nil {
		return nil, fmt.Errorf("check form name: %w", err)
	}
	if taken {
		return nil, ErrNameTaken
	}

	shareURL := uuid.NewString()
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO forms (owner_id, name, description, share_url) VALUES (?, ?, ?, ?)",
		ownerID, name, description, shareURL)
	if err != nil {
		return nil, fmt.Errorf("create form: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create form: %w", err)
	}
	return s.getForm(ctx, id)
}

// GetForm returns a form by id.
func (s *Store) GetForm(ctx context.Context, id int64) (*Form, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getForm(ctx, id)
}

func (s *Store) getForm(ctx context.Context, id int64) (*Form, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+formColumns+" FROM forms WHERE id = ?", id)
	f, err := scanForm(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFormNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get form %d: %w", id, err)
	}
	return f, nil
}

// GetFormByShareURL resolves a form by its share URL. With publishedOnly set,
// unpublished forms are reported as not found, matching the public submit
// path's view of the world.
func (s *Store) GetFormByShareURL(ctx context.Context, shareURL string, publishedOnly bool) (*Form, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + formColumns + " FROM forms WHERE share_url = ?"
	if publishedOnly {
		query += " AND published = 1"
	}
	row := s.db.QueryRowContext(ctx, query, shareURL)
	f, err := scanForm(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFormNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get form by share url: %w", err)
	}
	return f, nil
}

// ListForms returns the owner's forms, newest first.
func (s *Store) ListForms(ctx context.Context, ownerID string) ([]*Form, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listForms(ctx, "SELECT "+formColumns+" FROM forms WHERE owner_id = ? ORDER BY created_at DESC, id DESC", ownerID)
}

// ListPublishedForms returns the owner's published forms, newest first.
// Used to populate nested-form target pickers.
func (s *Store) ListPublishedForms(ctx context.Context, ownerID string) ([]*Form, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listForms(ctx,
		"SELECT "+formColumns+" FROM forms WHERE owner_id = ? AND published = 1 ORDER BY created_at DESC, id DESC", ownerID)
}

// ListAllForms returns every form in the system regardless of owner, in id
// order.
func (s *Store) ListAllForms(ctx context.Context) ([]*Form, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listForms(ctx, "SELECT "+formColumns+" FROM forms ORDER BY id")
}

func (s *Store) listForms(ctx context.Context, query string, args ...any) ([]*Form, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list forms: %w", err)
	}
	defer rows.Close()

	var forms []*Form
	for rows.Next() {
		f, err := scanForm(rows)
		if err != nil {
			return nil, fmt.Errorf("scan form: %w", err)
		}
		forms = append(forms, f)
	}
	return forms, rows.Err()
}

// UpdateFormSchema rewrites a form's schema blob. A nonzero expectedVersion
// makes the write conditional: if the stored schema no longer hashes to it,
// the update fails with ErrConflict and nothing is written. expectedVersion 0
// writes unconditionally (designer saves, where last-write-wins is fine).
func (s *Store) UpdateFormSchema(ctx context.Context, id int64, content string, expectedVersion uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update schema: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, "SELECT content FROM forms WHERE id = ?", id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrFormNotFound
	}
	if err != nil {
		return fmt.Errorf("update schema: %w", err)
	}
	if expectedVersion != 0 && SchemaVersionOf(current) != expectedVersion {
		return ErrConflict
	}

	if _, err := tx.ExecContext(ctx, "UPDATE forms SET content = ? WHERE id = ?", content, id); err != nil {
		return fmt.Errorf("update schema: %w", err)
	}
	if err := reindexRefs(ctx, tx, id, content); err != nil {
		return fmt.Errorf("update schema: %w", err)
	}
	return tx.Commit()
}

// reindexRefs rebuilds the reverse nested-form index for one form from its
// schema blob. A blob that fails to parse simply indexes no references.
func reindexRefs(ctx context.Context, tx *sql.Tx, formID int64, content string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM nested_refs WHERE form_id = ?", formID); err != nil {
		return err
	}

	schema, err := fields.ParseSchema([]byte(content))
	if err != nil {
		return nil
	}
	seen := map[int64]bool{}
	for _, el := range schema {
		if el.Type != fields.NestedForm {
			continue
		}
		targetID, ok := el.SelectedFormID()
		if !ok || seen[targetID] {
			continue
		}
		seen[targetID] = true
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO nested_refs (form_id, target_form_id) VALUES (?, ?)", formID, targetID); err != nil {
			return err
		}
	}
	return nil
}

// ReindexAllRefs rebuilds the reverse nested-form index from every stored
// schema. Needed once when opening a database written before the index
// existed; schema writes keep it current afterwards.
func (s *Store) ReindexAllRefs(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	forms, err := s.listForms(ctx, "SELECT "+formColumns+" FROM forms ORDER BY id")
	if err != nil {
		return fmt.Errorf("reindex refs: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("reindex refs: %w", err)
	}
	defer tx.Rollback()

	for _, f := range forms {
		if err := reindexRefs(ctx, tx, f.ID, f.Content); err != nil {
			return fmt.Errorf("reindex refs for form %d: %w", f.ID, err)
		}
	}
	return tx.Commit()
}

// ListReferencingForms returns every form whose schema embeds the target
// form through at least one NestedForm field, in id order. Crosses ownership
// boundaries.
func (s *Store) ListReferencingForms(ctx context.Context, targetID int64) ([]*Form, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listForms(ctx, `
		SELECT `+formColumns+` FROM forms
		WHERE id IN (SELECT form_id FROM nested_refs WHERE target_form_id = ?)
		ORDER BY id`, targetID)
}

// PublishForm marks a form published. Publishing is irreversible.
func (s *Store) PublishForm(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "UPDATE forms SET published = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("publish form: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("publish form: %w", err)
	}
	if n == 0 {
		return ErrFormNotFound
	}
	return nil
}

// IncrementCounter bumps a form's visits or submissions counter by one.
// Counters only ever go up.
func (s *Store) IncrementCounter(ctx context.Context, id int64, counter string) error {
	if counter != CounterVisits && counter != CounterSubmissions {
		return fmt.Errorf("unknown counter %q", counter)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE forms SET %s = %s + 1 WHERE id = ?", counter, counter), id)
	if err != nil {
		return fmt.Errorf("increment %s: %w", counter, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment %s: %w", counter, err)
	}
	if n == 0 {
		return ErrFormNotFound
	}
	return nil
}

// Stats aggregates an owner's visit and submission counters.
type Stats struct {
	Visits      int64
	Submissions int64
}

// FormStats sums counters across all of an owner's forms.
func (s *Store) FormStats(ctx context.Context, ownerID string) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st Stats
	err := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(visits), 0), COALESCE(SUM(submissions), 0) FROM forms WHERE owner_id = ?",
		ownerID).Scan(&st.Visits, &st.Submissions)
	if err != nil {
		return Stats{}, fmt.Errorf("form stats: %w", err)
	}
	return st, nil
}
