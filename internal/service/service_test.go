package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"formforge/internal/fields"
	"formforge/internal/report"
	"formforge/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newService(t *testing.T) *Service {
	t.Helper()
	s, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s, zap.NewNop(), "http://forms.local")
}

func designSchema(t *testing.T) string {
	t.Helper()
	q1, err := fields.Construct(fields.TextField, "q1")
	require.NoError(t, err)
	q1.ExtraAttributes["required"] = true
	q2, err := fields.Construct(fields.NumberField, "q2")
	require.NoError(t, err)
	blob, err := fields.MarshalSchema([]fields.FieldInstance{q1, q2})
	require.NoError(t, err)
	return string(blob)
}

func TestCreateFormValidation(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.CreateForm(ctx, "alice", "abc", "")
	assert.ErrorIs(t, err, ErrInvalidName)

	form, err := svc.CreateForm(ctx, "alice", "Customer Survey", "desc")
	require.NoError(t, err)
	assert.Contains(t, svc.ShareLink(form), "http://forms.local/submit/")
}

func TestOwnershipScoping(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	form, err := svc.CreateForm(ctx, "alice", "Private Form", "")
	require.NoError(t, err)

	_, err = svc.FormByID(ctx, "mallory", form.ID)
	assert.ErrorIs(t, err, store.ErrFormNotFound)

	err = svc.PublishForm(ctx, "mallory", form.ID)
	assert.ErrorIs(t, err, store.ErrFormNotFound)

	err = svc.UpdateFormContent(ctx, "mallory", form.ID, "[]")
	assert.ErrorIs(t, err, store.ErrFormNotFound)
}

func TestUpdateFormContentRejectsGarbage(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	form, err := svc.CreateForm(ctx, "alice", "Editable Form", "")
	require.NoError(t, err)

	err = svc.UpdateFormContent(ctx, "alice", form.ID, `{"oops":`)
	require.Error(t, err)

	require.NoError(t, svc.UpdateFormContent(ctx, "alice", form.ID, designSchema(t)))

	schema, err := svc.FormFields(ctx, form.ID)
	require.NoError(t, err)
	require.Len(t, schema, 2)
	assert.Equal(t, "q1", schema[0].ID)
}

// Full path: design, publish, open, submit, aggregate, publish report.
func TestEndToEndReportFlow(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	form, err := svc.CreateForm(ctx, "alice", "Sales Form", "")
	require.NoError(t, err)
	require.NoError(t, svc.UpdateFormContent(ctx, "alice", form.ID, designSchema(t)))
	require.NoError(t, svc.PublishForm(ctx, "alice", form.ID))

	form, err = svc.FormByID(ctx, "alice", form.ID)
	require.NoError(t, err)

	_, err = svc.OpenForm(ctx, form.ShareURL)
	require.NoError(t, err)

	for _, content := range []string{
		`{"q1":"hi","q2":"5"}`,
		`{"q1":"hi","q2":"2"}`,
		`{"q1":"bye","q2":"1"}`,
	} {
		_, err := svc.SubmitForm(ctx, form.ShareURL, content)
		require.NoError(t, err)
	}

	rows, err := svc.RunAdHoc(ctx, form.ID, "q1", "q2", "bar")
	require.NoError(t, err)
	blob, err := json.Marshal(rows)
	require.NoError(t, err)
	assert.Equal(t, `[{"q1":"hi","q2":7},{"q1":"bye","q2":1}]`, string(blob))

	rep, err := svc.PublishReport(ctx, "Totals by answer", form.ID, "q1", "q2", "bar")
	require.NoError(t, err)
	assert.Contains(t, svc.ReportLink(rep), "http://forms.local/reports/")

	published, err := svc.RunReport(ctx, rep.ReportURL)
	require.NoError(t, err)
	publishedBlob, err := json.Marshal(published)
	require.NoError(t, err)
	assert.Equal(t, string(blob), string(publishedBlob))

	resolved, err := svc.ResolveReport(ctx, rep.ReportURL)
	require.NoError(t, err)
	assert.Equal(t, rep.ID, resolved.ID)

	_, err = svc.RunReport(ctx, "missing-url")
	assert.ErrorIs(t, err, store.ErrReportNotFound)
}

func TestPublishReportValidation(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	form, err := svc.CreateForm(ctx, "alice", "Report Form", "")
	require.NoError(t, err)

	_, err = svc.PublishReport(ctx, "", form.ID, "x", "y", "bar")
	require.Error(t, err)
	_, err = svc.PublishReport(ctx, "Name", form.ID, "", "y", "bar")
	assert.ErrorIs(t, err, report.ErrMissingXKey)
	_, err = svc.PublishReport(ctx, "Name", form.ID, "x", "", "bar")
	assert.ErrorIs(t, err, report.ErrMissingYKey)
	_, err = svc.PublishReport(ctx, "Name", form.ID, "x", "y", "donut")
	assert.ErrorIs(t, err, report.ErrUnknownChartType)
}

// Malformed submission blobs are isolated per record, never fatal to a run.
func TestRunAdHocSkipsMalformedSubmissions(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	form, err := svc.CreateForm(ctx, "alice", "Messy Form", "")
	require.NoError(t, err)
	require.NoError(t, svc.PublishForm(ctx, "alice", form.ID))

	// Bypass the engine's content check to simulate a historic bad record.
	_, err = svc.store.AppendSubmission(ctx, form.ID, `{"q1":`)
	require.NoError(t, err)
	_, err = svc.store.AppendSubmission(ctx, form.ID, `{"q1":"ok","q2":"3"}`)
	require.NoError(t, err)

	rows, err := svc.RunAdHoc(ctx, form.ID, "q1", "q2", "bar")
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestPublishedFormsProjection(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	a, err := svc.CreateForm(ctx, "alice", "Form Alpha", "")
	require.NoError(t, err)
	_, err = svc.CreateForm(ctx, "alice", "Form Beta", "")
	require.NoError(t, err)
	require.NoError(t, svc.PublishForm(ctx, "alice", a.ID))

	refs, err := svc.PublishedForms(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, FormRef{ID: a.ID, Name: "Form Alpha"}, refs[0])
}

func TestDashboard(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	form, err := svc.CreateForm(ctx, "alice", "Dash Form", "")
	require.NoError(t, err)
	require.NoError(t, svc.UpdateFormContent(ctx, "alice", form.ID, designSchema(t)))
	require.NoError(t, svc.PublishForm(ctx, "alice", form.ID))

	form, err = svc.FormByID(ctx, "alice", form.ID)
	require.NoError(t, err)

	// Two visits, one submission.
	_, err = svc.OpenForm(ctx, form.ShareURL)
	require.NoError(t, err)
	_, err = svc.OpenForm(ctx, form.ShareURL)
	require.NoError(t, err)
	_, err = svc.SubmitForm(ctx, form.ShareURL, `{"q1":"hi"}`)
	require.NoError(t, err)

	_, err = svc.PublishReport(ctx, "Dash Report", form.ID, "q1", "q2", "pie")
	require.NoError(t, err)

	dash, err := svc.Dashboard(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), dash.Stats.Visits)
	assert.Equal(t, int64(1), dash.Stats.Submissions)
	assert.InDelta(t, 50.0, dash.Stats.SubmissionRate, 1e-9)
	assert.InDelta(t, 50.0, dash.Stats.BounceRate, 1e-9)
	assert.Len(t, dash.Forms, 1)
	assert.Len(t, dash.Reports, 1)

	gotForm, subs, err := svc.FormWithSubmissions(ctx, "alice", form.ID)
	require.NoError(t, err)
	assert.Equal(t, form.ID, gotForm.ID)
	assert.Len(t, subs, 1)
}
