// Package propagate implements the nested-form propagation engine. After a
// submission lands on a parent form, every other form embedding that parent
// through a NestedForm field gets its cached submission projection refreshed.
package propagate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"formforge/internal/fields"
	"formforge/internal/store"
)

// ValidationError lists the field ids whose values failed their type rule.
type ValidationError struct {
	FieldIDs []string
}

func (e *ValidationError) Error() string {
	return "validation failed for fields: " + strings.Join(e.FieldIDs, ", ")
}

// Engine runs the submit path: persist, count, fan out.
//
// Propagation is deliberately not idempotent: running it twice for the same
// submission double-appends into every referencing form's cache. Invoke
// exactly once per newly created submission.
type Engine struct {
	store      *store.Store
	log        *zap.Logger
	maxRetries int
}

// New builds an engine over the given store.
func New(st *store.Store, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: st, log: logger, maxRetries: 3}
}

// Open resolves a published form for display and counts the visit.
func (e *Engine) Open(ctx context.Context, shareURL string) ([]fields.FieldInstance, error) {
	form, err := e.store.GetFormByShareURL(ctx, shareURL, true)
	if err != nil {
		return nil, err
	}
	schema, err := fields.ParseSchema([]byte(form.Content))
	if err != nil {
		return nil, err
	}
	if err := e.store.IncrementCounter(ctx, form.ID, store.CounterVisits); err != nil {
		return nil, err
	}
	return schema, nil
}

// Submit records a new submission against the form behind shareURL and fans
// it out to every referencing form. The parent write happens first and is
// durable on its own; per-form propagation failures are logged and skipped so
// one broken schema cannot starve the rest of the pass.
func (e *Engine) Submit(ctx context.Context, shareURL, rawContent string) (*store.Submission, error) {
	parent, err := e.store.GetFormByShareURL(ctx, shareURL, true)
	if err != nil {
		return nil, err
	}

	content, err := fields.ParseContent([]byte(rawContent))
	if err != nil {
		return nil, fmt.Errorf("malformed submission content: %w", err)
	}

	schema, err := fields.ParseSchema([]byte(parent.Content))
	if err != nil {
		return nil, fmt.Errorf("form %d has malformed schema: %w", parent.ID, err)
	}
	failed, err := fields.ValidateContent(schema, content)
	if err != nil {
		return nil, err
	}
	if len(failed) > 0 {
		return nil, &ValidationError{FieldIDs: failed}
	}

	sub, err := e.store.AppendSubmission(ctx, parent.ID, rawContent)
	if err != nil {
		return nil, err
	}
	if err := e.store.IncrementCounter(ctx, parent.ID, store.CounterSubmissions); err != nil {
		return nil, err
	}

	e.log.Info("submission recorded",
		zap.Int64("form_id", parent.ID),
		zap.Int64("submission_id", sub.ID))

	if err := e.Propagate(ctx, parent.ID, content); err != nil {
		return nil, err
	}
	return sub, nil
}

// Propagate rewrites every other form whose schema embeds the parent form,
// appending the submission content to each matching NestedForm field's cache
// and bumping the referencing form's submissions counter once per matching
// field. Referencing forms come from the reverse index the store maintains
// on schema writes, so the pass is O(referrers), not O(all forms).
// Write-back is guarded by the schema version token and retried on conflict.
func (e *Engine) Propagate(ctx context.Context, parentID int64, content map[string]any) error {
	forms, err := e.store.ListReferencingForms(ctx, parentID)
	if err != nil {
		return fmt.Errorf("propagate: %w", err)
	}

	for _, form := range forms {
		if form.ID == parentID {
			continue
		}
		if err := e.propagateToForm(ctx, form, parentID, content); err != nil {
			// Per-form isolation: record and move on.
			e.log.Warn("propagation skipped form",
				zap.Int64("form_id", form.ID),
				zap.Error(err))
		}
	}
	return nil
}

func (e *Engine) propagateToForm(ctx context.Context, form *store.Form, parentID int64, content map[string]any) error {
	for attempt := 0; ; attempt++ {
		matched, err := e.tryPropagateToForm(ctx, form, parentID, content)
		if errors.Is(err, store.ErrConflict) && attempt < e.maxRetries {
			// Lost-update race with a concurrent submission: re-read and retry.
			fresh, err := e.store.GetForm(ctx, form.ID)
			if err != nil {
				return err
			}
			form = fresh
			continue
		}
		if err != nil {
			return err
		}
		for i := 0; i < matched; i++ {
			if err := e.store.IncrementCounter(ctx, form.ID, store.CounterSubmissions); err != nil {
				return err
			}
		}
		if matched > 0 {
			e.log.Debug("nested submission cached",
				zap.Int64("form_id", form.ID),
				zap.Int64("parent_id", parentID),
				zap.Int("matched_fields", matched))
		}
		return nil
	}
}

// tryPropagateToForm performs one read-modify-write attempt and returns the
// number of matching NestedForm fields it updated.
func (e *Engine) tryPropagateToForm(ctx context.Context, form *store.Form, parentID int64, content map[string]any) (int, error) {
	schema, err := fields.ParseSchema([]byte(form.Content))
	if err != nil {
		return 0, fmt.Errorf("malformed schema: %w", err)
	}

	matched := 0
	for i := range schema {
		if schema[i].Type != fields.NestedForm {
			continue
		}
		targetID, ok := schema[i].SelectedFormID()
		if !ok || targetID != parentID {
			continue
		}
		schema[i].AppendSubmissionData(content)
		matched++
	}
	if matched == 0 {
		return 0, nil
	}

	blob, err := fields.MarshalSchema(schema)
	if err != nil {
		return 0, err
	}
	if err := e.store.UpdateFormSchema(ctx, form.ID, string(blob), form.SchemaVersion); err != nil {
		return 0, err
	}
	return matched, nil
}

// FlattenNested derives the display-time projection of a nested submission:
// one "{fieldInstanceID}_{nestedFieldID}" entry per surfaced field. The
// projection is never persisted as a submission of its own; persisting it is
// an explicit extension point.
func FlattenNested(el fields.FieldInstance, content map[string]any) map[string]any {
	flat := map[string]any{}
	for _, nested := range el.SelectedNestedFields() {
		flat[el.ID+"_"+nested.ID] = content[nested.ID]
	}
	return flat
}
