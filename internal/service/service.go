// Package service is the application boundary over the form engine: form
// lifecycle, the public submit path, and report publishing/execution. Route
// handlers and CLIs call into this package; it owns no transport concerns.
package service

import (
	"context"
	"errors"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"formforge/internal/fields"
	"formforge/internal/propagate"
	"formforge/internal/report"
	"formforge/internal/store"
)

// ErrInvalidName rejects form names shorter than four characters.
var ErrInvalidName = errors.New("form name must be at least 4 characters")

// Service wires the store and the propagation engine together.
type Service struct {
	store        *store.Store
	engine       *propagate.Engine
	log          *zap.Logger
	shareBaseURL string
}

// New builds a Service.
func New(st *store.Store, logger *zap.Logger, shareBaseURL string) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:        st,
		engine:       propagate.New(st, logger),
		log:          logger,
		shareBaseURL: shareBaseURL,
	}
}

// CreateForm creates an empty, unpublished form for the owner.
func (s *Service) CreateForm(ctx context.Context, ownerID, name, description string) (*store.Form, error) {
	if utf8.RuneCountInString(name) < 4 {
		return nil, ErrInvalidName
	}
	return s.store.CreateForm(ctx, ownerID, name, description)
}

// Forms lists the owner's forms, newest first.
func (s *Service) Forms(ctx context.Context, ownerID string) ([]*store.Form, error) {
	return s.store.ListForms(ctx, ownerID)
}

// FormRef is the id+name projection used by nested-form target pickers.
type FormRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// PublishedForms lists the owner's published forms as picker references.
func (s *Service) PublishedForms(ctx context.Context, ownerID string) ([]FormRef, error) {
	forms, err := s.store.ListPublishedForms(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	refs := make([]FormRef, 0, len(forms))
	for _, f := range forms {
		refs = append(refs, FormRef{ID: f.ID, Name: f.Name})
	}
	return refs, nil
}

// FormByID fetches one of the owner's forms. Forms belonging to other owners
// are reported as not found rather than forbidden.
func (s *Service) FormByID(ctx context.Context, ownerID string, id int64) (*store.Form, error) {
	form, err := s.store.GetForm(ctx, id)
	if err != nil {
		return nil, err
	}
	if form.OwnerID != ownerID {
		return nil, store.ErrFormNotFound
	}
	return form, nil
}

// UpdateFormContent replaces a form's schema from the designer. The blob must
// parse as a schema; the write is unconditional (last designer save wins).
func (s *Service) UpdateFormContent(ctx context.Context, ownerID string, id int64, jsonContent string) error {
	if _, err := s.FormByID(ctx, ownerID, id); err != nil {
		return err
	}
	if _, err := fields.ParseSchema([]byte(jsonContent)); err != nil {
		return err
	}
	return s.store.UpdateFormSchema(ctx, id, jsonContent, 0)
}

// PublishForm makes a form publicly submittable. Irreversible.
func (s *Service) PublishForm(ctx context.Context, ownerID string, id int64) error {
	if _, err := s.FormByID(ctx, ownerID, id); err != nil {
		return err
	}
	return s.store.PublishForm(ctx, id)
}

// OpenForm resolves a published form for rendering and counts the visit.
func (s *Service) OpenForm(ctx context.Context, shareURL string) ([]fields.FieldInstance, error) {
	return s.engine.Open(ctx, shareURL)
}

// SubmitForm runs the full submit path, including nested-form propagation.
func (s *Service) SubmitForm(ctx context.Context, shareURL, content string) (*store.Submission, error) {
	return s.engine.Submit(ctx, shareURL, content)
}

// FormWithSubmissions returns a form together with its submissions, oldest
// first.
func (s *Service) FormWithSubmissions(ctx context.Context, ownerID string, id int64) (*store.Form, []*store.Submission, error) {
	form, err := s.FormByID(ctx, ownerID, id)
	if err != nil {
		return nil, nil, err
	}
	subs, err := s.store.GetSubmissions(ctx, id, false)
	if err != nil {
		return nil, nil, err
	}
	return form, subs, nil
}

// FormFields returns a form's parsed schema. Unlike FormByID this is not
// owner-scoped: nested-form pickers read fields of any published form.
func (s *Service) FormFields(ctx context.Context, formID int64) ([]fields.FieldInstance, error) {
	form, err := s.store.GetForm(ctx, formID)
	if err != nil {
		return nil, err
	}
	return fields.ParseSchema([]byte(form.Content))
}

// PublishReport persists a report definition and returns it with its fresh
// URL. Every projection parameter is required at publish time.
func (s *Service) PublishReport(ctx context.Context, name string, formID int64, xKey, yKey, chartType string) (*store.Report, error) {
	if name == "" {
		return nil, errors.New("report name is required")
	}
	if xKey == "" {
		return nil, report.ErrMissingXKey
	}
	if yKey == "" {
		return nil, report.ErrMissingYKey
	}
	chart, err := report.ParseChartType(chartType)
	if err != nil {
		return nil, err
	}
	rep, err := s.store.PublishReport(ctx, name, formID, store.ReportConfig{
		XKey:      xKey,
		YKey:      yKey,
		ChartType: string(chart),
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("report published",
		zap.Int64("form_id", formID),
		zap.String("report_url", rep.ReportURL))
	return rep, nil
}

// Reports lists report definitions over the owner's forms, newest first.
func (s *Service) Reports(ctx context.Context, ownerID string) ([]*store.Report, error) {
	return s.store.ListReports(ctx, ownerID)
}

// ResolveReport looks up a published report definition by URL.
func (s *Service) ResolveReport(ctx context.Context, reportURL string) (*store.Report, error) {
	return s.store.GetReport(ctx, reportURL)
}

// RunReport resolves a published report and aggregates the target form's
// current submissions.
func (s *Service) RunReport(ctx context.Context, reportURL string) ([]*report.Row, error) {
	rep, err := s.store.GetReport(ctx, reportURL)
	if err != nil {
		return nil, err
	}
	return s.RunAdHoc(ctx, rep.FormID, rep.Config.XKey, rep.Config.YKey, rep.Config.ChartType)
}

// RunAdHoc aggregates a form's submissions under an unsaved projection
// (interactive report preview).
func (s *Service) RunAdHoc(ctx context.Context, formID int64, xKey, yKey, chartType string) ([]*report.Row, error) {
	chart, err := report.ParseChartType(chartType)
	if err != nil {
		return nil, err
	}
	subs, err := s.store.GetSubmissions(ctx, formID, false)
	if err != nil {
		return nil, err
	}

	raw := make([]map[string]any, 0, len(subs))
	for _, sub := range subs {
		content, err := fields.ParseContent([]byte(sub.Content))
		if err != nil {
			// Malformed records are isolated, never abort the batch.
			s.log.Warn("skipping malformed submission",
				zap.Int64("submission_id", sub.ID),
				zap.Error(err))
			continue
		}
		raw = append(raw, content)
	}
	return report.Aggregate(raw, xKey, yKey, chart)
}

// Dashboard bundles the owner's landing-page data.
type Dashboard struct {
	Stats   report.FormStats
	Forms   []*store.Form
	Reports []*store.Report
}

// Dashboard gathers stats, forms, and reports concurrently. Each fetch is
// read-only over independent rows, so parallelism is safe.
func (s *Service) Dashboard(ctx context.Context, ownerID string) (*Dashboard, error) {
	var dash Dashboard
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		st, err := s.store.FormStats(ctx, ownerID)
		if err != nil {
			return err
		}
		dash.Stats = report.BuildStats(st.Visits, st.Submissions)
		return nil
	})
	g.Go(func() error {
		forms, err := s.store.ListForms(ctx, ownerID)
		if err != nil {
			return err
		}
		dash.Forms = forms
		return nil
	})
	g.Go(func() error {
		reports, err := s.store.ListReports(ctx, ownerID)
		if err != nil {
			return err
		}
		dash.Reports = reports
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &dash, nil
}

// ShareLink renders the public URL for a form.
func (s *Service) ShareLink(f *store.Form) string {
	return s.shareBaseURL + "/submit/" + f.ShareURL
}

// ReportLink renders the public URL for a published report.
func (s *Service) ReportLink(r *store.Report) string {
	return s.shareBaseURL + "/reports/" + r.ReportURL
}
