package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ReportConfig is the projection a published report runs with.
type ReportConfig struct {
	XKey      string `json:"xKey"`
	YKey      string `json:"yKey,omitempty"`
	ChartType string `json:"chartType"`
}

// Report is a named, published report definition reachable by its URL.
// Immutable once published except by republishing under a new URL.
type Report struct {
	ID        int64
	FormID    int64
	Name      string
	ReportURL string
	Config    ReportConfig
	CreatedAt time.Time
}

// PublishReport persists a report definition behind a fresh, globally unique
// URL. The URL is generated server-side, never derived from user input.
func (s *Store) PublishReport(ctx context.Context, name string, formID int64, cfg ReportConfig) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.getForm(ctx, formID); err != nil {
		return nil, err
	}

	blob, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("publish report: %w", err)
	}
	// Short URL token in the spirit of the original's nanoid(10).
	reportURL := strings.ReplaceAll(uuid.NewString(), "-", "")[:10]

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO reports (form_id, name, report_url, config) VALUES (?, ?, ?, ?)",
		formID, name, reportURL, string(blob))
	if err != nil {
		return nil, fmt.Errorf("publish report: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("publish report: %w", err)
	}
	return s.getReport(ctx, "id = ?", id)
}

// GetReport resolves a published report by its URL.
func (s *Store) GetReport(ctx context.Context, reportURL string) (*Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getReport(ctx, "report_url = ?", reportURL)
}

func (s *Store) getReport(ctx context.Context, where string, arg any) (*Report, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, form_id, name, report_url, config, created_at FROM reports WHERE "+where, arg)

	var r Report
	var blob string
	err := row.Scan(&r.ID, &r.FormID, &r.Name, &r.ReportURL, &blob, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	if err := json.Unmarshal([]byte(blob), &r.Config); err != nil {
		return nil, fmt.Errorf("get report: bad config: %w", err)
	}
	return &r, nil
}

// ListReports returns report definitions over the owner's forms, newest
// first.
func (s *Store) ListReports(ctx context.Context, ownerID string) ([]*Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.form_id, r.name, r.report_url, r.config, r.created_at
		FROM reports r JOIN forms f ON f.id = r.form_id
		WHERE f.owner_id = ?
		ORDER BY r.created_at DESC, r.id DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var reports []*Report
	for rows.Next() {
		var r Report
		var blob string
		if err := rows.Scan(&r.ID, &r.FormID, &r.Name, &r.ReportURL, &blob, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		if err := json.Unmarshal([]byte(blob), &r.Config); err != nil {
			return nil, fmt.Errorf("scan report: bad config: %w", err)
		}
		reports = append(reports, &r)
	}
	return reports, rows.Err()
}
