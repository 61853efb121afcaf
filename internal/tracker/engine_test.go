package tracker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/grantthrive/pulse/internal/template"
	"github.com/grantthrive/pulse/model"
)

// --- Test helpers ---

// recordingSync captures status sync invocations and optionally fails them.
type recordingSync struct {
	calls []syncCall
	err   error
}

type syncCall struct {
	ApplicationID string
	OldStatus     string
	NewStatus     string
}

func (r *recordingSync) SyncStatus(_ context.Context, applicationID, oldStatus, newStatus string) error {
	r.calls = append(r.calls, syncCall{applicationID, oldStatus, newStatus})
	return r.err
}

func newTestTracker() (*Tracker, *MemoryProgressStore) {
	store := NewMemoryProgressStore()
	tr := NewTracker(template.NewRegistry(), store, nil, nil)
	return tr, store
}

// completeFirstStandardStage marks every required field of the standard
// template's first stage.
func completeFirstStandardStage(t *testing.T, tr *Tracker, appID string) model.FieldUpdateResult {
	t.Helper()
	var res model.FieldUpdateResult
	var err error
	for _, f := range []string{"organization_info", "project_description", "budget"} {
		res, err = tr.UpdateField(context.Background(), appID, f, true)
		if err != nil {
			t.Fatalf("UpdateField(%s) error: %v", f, err)
		}
	}
	return res
}

func errCode(t *testing.T, err error) string {
	t.Helper()
	if err == nil {
		t.Fatal("expected error")
	}
	envErr, ok := err.(*model.ErrorEnvelope)
	if !ok {
		t.Fatalf("error type = %T", err)
	}
	return envErr.Code
}

// --- Initialize ---

func TestTracker_Initialize_standard(t *testing.T) {
	tr, store := newTestTracker()
	ctx := context.Background()

	rec, err := tr.Initialize(ctx, "app-123", template.StandardID, nil)
	if err != nil {
		t.Fatalf("Initialize error: %v", err)
	}
	if rec.ApplicationID != "app-123" {
		t.Errorf("ApplicationID = %q", rec.ApplicationID)
	}
	if rec.TemplateID != "standard" {
		t.Errorf("TemplateID = %q", rec.TemplateID)
	}
	if len(rec.Stages) != 7 {
		t.Fatalf("stages count = %d, want 7", len(rec.Stages))
	}
	if rec.CurrentStage != 0 {
		t.Errorf("CurrentStage = %d", rec.CurrentStage)
	}
	if rec.CurrentStatus != model.StatusDraft {
		t.Errorf("CurrentStatus = %q, want draft", rec.CurrentStatus)
	}
	if rec.OverallProgress != 0 {
		t.Errorf("OverallProgress = %v, want 0", rec.OverallProgress)
	}
	if rec.Version != 1 {
		t.Errorf("Version = %d, want 1", rec.Version)
	}

	first := rec.Stages[0]
	if first.Status != model.StageStatusInProgress {
		t.Errorf("first stage status = %q, want in_progress", first.Status)
	}
	if first.StartedAt == nil {
		t.Error("first stage should have StartedAt")
	}
	for _, s := range rec.Stages[1:] {
		if s.Status != model.StageStatusPending {
			t.Errorf("stage %q status = %q, want pending", s.Key, s.Status)
		}
	}

	// Estimated completion is creation plus the full template estimate.
	wantCompletion := rec.CreatedAt.Add(14565 * time.Minute)
	if !rec.EstimatedCompletion.Equal(wantCompletion) {
		t.Errorf("EstimatedCompletion = %v, want %v", rec.EstimatedCompletion, wantCompletion)
	}

	if store.Len() != 1 {
		t.Errorf("store.Len() = %d", store.Len())
	}
}

func TestTracker_Initialize_defaultTemplate(t *testing.T) {
	tr, _ := newTestTracker()

	rec, err := tr.Initialize(context.Background(), "app-1", "", nil)
	if err != nil {
		t.Fatalf("Initialize error: %v", err)
	}
	if rec.TemplateID != DefaultTemplateID {
		t.Errorf("TemplateID = %q, want %q", rec.TemplateID, DefaultTemplateID)
	}
}

func TestTracker_Initialize_templateNotFound(t *testing.T) {
	tr, _ := newTestTracker()

	_, err := tr.Initialize(context.Background(), "app-1", "nonexistent", nil)
	if code := errCode(t, err); code != model.ErrTemplateNotFound {
		t.Errorf("code = %s", code)
	}
}

func TestTracker_Initialize_duplicate(t *testing.T) {
	tr, _ := newTestTracker()
	ctx := context.Background()

	if _, err := tr.Initialize(ctx, "app-1", "standard", nil); err != nil {
		t.Fatalf("Initialize error: %v", err)
	}
	_, err := tr.Initialize(ctx, "app-1", "standard", nil)
	if code := errCode(t, err); code != model.ErrAlreadyInitialized {
		t.Errorf("code = %s", code)
	}
}

func TestTracker_Initialize_customStages(t *testing.T) {
	tr, _ := newTestTracker()

	custom := []model.StageDefinition{
		{Key: "draft", Title: "Draft", EstimatedDuration: 30, RequiredFields: []string{"summary"}},
		{Key: "review", Title: "Review", EstimatedDuration: 60, External: true},
	}
	rec, err := tr.Initialize(context.Background(), "app-custom", "", custom)
	if err != nil {
		t.Fatalf("Initialize error: %v", err)
	}
	if rec.TemplateID != "custom" {
		t.Errorf("TemplateID = %q, want custom", rec.TemplateID)
	}
	if len(rec.Stages) != 2 {
		t.Fatalf("stages count = %d", len(rec.Stages))
	}
	// A criterion is derived when the definition omits one.
	if rec.Stages[0].Criterion != model.CriterionAllRequiredFields {
		t.Errorf("stage 0 criterion = %q", rec.Stages[0].Criterion)
	}
	if rec.Stages[1].Criterion != model.CriterionExternalSignal {
		t.Errorf("stage 1 criterion = %q", rec.Stages[1].Criterion)
	}
}

func TestTracker_Initialize_invalidCustomStage(t *testing.T) {
	tr, _ := newTestTracker()

	_, err := tr.Initialize(context.Background(), "app-1", "", []model.StageDefinition{
		{Title: "No Key"},
	})
	if code := errCode(t, err); code != model.ErrBadRequest {
		t.Errorf("code = %s", code)
	}
}

func TestTracker_Initialize_missingApplicationID(t *testing.T) {
	tr, _ := newTestTracker()

	_, err := tr.Initialize(context.Background(), "", "standard", nil)
	if code := errCode(t, err); code != model.ErrBadRequest {
		t.Errorf("code = %s", code)
	}
}

// --- UpdateField ---

func TestTracker_UpdateField_partialProgress(t *testing.T) {
	tr, _ := newTestTracker()
	ctx := context.Background()
	_, _ = tr.Initialize(ctx, "app-1", "standard", nil)

	res, err := tr.UpdateField(ctx, "app-1", "organization_info", map[string]any{"name": "Riverside Arts"})
	if err != nil {
		t.Fatalf("UpdateField error: %v", err)
	}
	if !almostEqual(res.StageProgress, 100.0/3) {
		t.Errorf("StageProgress = %v, want %v", res.StageProgress, 100.0/3)
	}
	if res.StageComplete {
		t.Error("stage should not be complete after one of three fields")
	}
	if !almostEqual(res.OverallProgress, 100.0/3/7) {
		t.Errorf("OverallProgress = %v", res.OverallProgress)
	}
}

func TestTracker_UpdateField_completesStageWithoutAdvancing(t *testing.T) {
	tr, store := newTestTracker()
	ctx := context.Background()
	_, _ = tr.Initialize(ctx, "app-1", "standard", nil)

	res := completeFirstStandardStage(t, tr, "app-1")
	if !res.StageComplete {
		t.Fatal("stage should be complete after all required fields")
	}
	if res.StageProgress != 100 {
		t.Errorf("StageProgress = %v, want 100", res.StageProgress)
	}
	// One of seven stages completed.
	if !almostEqual(res.OverallProgress, 100.0/7) {
		t.Errorf("OverallProgress = %v, want %v", res.OverallProgress, 100.0/7)
	}

	// Completing a stage never advances the workflow by itself.
	got, _ := store.Get(ctx, "app-1")
	if got.CurrentStage != 0 {
		t.Errorf("CurrentStage = %d, want 0", got.CurrentStage)
	}
	stage := got.Stages[0]
	if stage.Status != model.StageStatusCompleted {
		t.Errorf("stage status = %q, want completed", stage.Status)
	}
	if stage.CompletedAt == nil {
		t.Error("expected CompletedAt to be set")
	}
	if stage.ActualDuration == nil {
		t.Error("expected ActualDuration to be set")
	}
}

func TestTracker_UpdateField_idempotent(t *testing.T) {
	tr, _ := newTestTracker()
	ctx := context.Background()
	_, _ = tr.Initialize(ctx, "app-1", "standard", nil)

	first, err := tr.UpdateField(ctx, "app-1", "budget", 50000)
	if err != nil {
		t.Fatalf("UpdateField error: %v", err)
	}
	second, err := tr.UpdateField(ctx, "app-1", "budget", 50000)
	if err != nil {
		t.Fatalf("UpdateField error: %v", err)
	}
	if first.StageProgress != second.StageProgress || first.OverallProgress != second.OverallProgress {
		t.Errorf("repeated update changed progress: %v vs %v", first, second)
	}
}

func TestTracker_UpdateField_notFound(t *testing.T) {
	tr, _ := newTestTracker()

	_, err := tr.UpdateField(context.Background(), "nonexistent", "budget", 1)
	if code := errCode(t, err); code != model.ErrNotFound {
		t.Errorf("code = %s", code)
	}
}

func TestTracker_UpdateField_missingFieldName(t *testing.T) {
	tr, _ := newTestTracker()
	ctx := context.Background()
	_, _ = tr.Initialize(ctx, "app-1", "standard", nil)

	_, err := tr.UpdateField(ctx, "app-1", "", 1)
	if code := errCode(t, err); code != model.ErrBadRequest {
		t.Errorf("code = %s", code)
	}
}

// --- AdvanceStage ---

func TestTracker_AdvanceStage_incomplete(t *testing.T) {
	tr, store := newTestTracker()
	ctx := context.Background()
	_, _ = tr.Initialize(ctx, "app-1", "standard", nil)
	_, _ = tr.UpdateField(ctx, "app-1", "organization_info", true)

	_, err := tr.AdvanceStage(ctx, "app-1", false)
	if code := errCode(t, err); code != model.ErrStageIncomplete {
		t.Fatalf("code = %s", code)
	}

	// The error carries the missing required fields.
	envErr := err.(*model.ErrorEnvelope)
	if len(envErr.Details) != 2 {
		t.Fatalf("details count = %d, want 2", len(envErr.Details))
	}
	if envErr.Details[0].Field != "project_description" || envErr.Details[1].Field != "budget" {
		t.Errorf("missing fields = %v", envErr.Details)
	}

	// The record is untouched.
	got, _ := store.Get(ctx, "app-1")
	if got.CurrentStage != 0 {
		t.Errorf("CurrentStage = %d, want 0", got.CurrentStage)
	}
}

func TestTracker_AdvanceStage_afterCompletion(t *testing.T) {
	tr, store := newTestTracker()
	ctx := context.Background()
	_, _ = tr.Initialize(ctx, "app-1", "standard", nil)
	completeFirstStandardStage(t, tr, "app-1")

	res, err := tr.AdvanceStage(ctx, "app-1", false)
	if err != nil {
		t.Fatalf("AdvanceStage error: %v", err)
	}
	if res.NewStageIndex != 1 {
		t.Errorf("NewStageIndex = %d, want 1", res.NewStageIndex)
	}
	if res.NewStage.Key != "document_upload" {
		t.Errorf("NewStage.Key = %q", res.NewStage.Key)
	}
	if res.NewStage.Status != model.StageStatusInProgress {
		t.Errorf("NewStage.Status = %q", res.NewStage.Status)
	}
	if res.NewStage.StartedAt == nil {
		t.Error("expected StartedAt on the new stage")
	}
	if !almostEqual(res.OverallProgress, 100.0/7) {
		t.Errorf("OverallProgress = %v, want %v", res.OverallProgress, 100.0/7)
	}

	got, _ := store.Get(ctx, "app-1")
	if got.CurrentStage != 1 {
		t.Errorf("CurrentStage = %d, want 1", got.CurrentStage)
	}
}

func TestTracker_AdvanceStage_force(t *testing.T) {
	tr, store := newTestTracker()
	ctx := context.Background()
	_, _ = tr.Initialize(ctx, "app-1", "standard", nil)

	res, err := tr.AdvanceStage(ctx, "app-1", true)
	if err != nil {
		t.Fatalf("AdvanceStage(force) error: %v", err)
	}
	if res.NewStageIndex != 1 {
		t.Errorf("NewStageIndex = %d, want 1", res.NewStageIndex)
	}

	// The skipped stage is closed out as completed.
	got, _ := store.Get(ctx, "app-1")
	if got.Stages[0].Status != model.StageStatusCompleted {
		t.Errorf("forced stage status = %q, want completed", got.Stages[0].Status)
	}
	if got.Stages[0].Progress != 100 {
		t.Errorf("forced stage progress = %v, want 100", got.Stages[0].Progress)
	}
}

func TestTracker_AdvanceStage_alreadyFinal(t *testing.T) {
	tr, store := newTestTracker()
	ctx := context.Background()
	_, _ = tr.Initialize(ctx, "app-1", template.FastTrackID, nil)

	// Force through to the final stage.
	for i := 0; i < 4; i++ {
		if _, err := tr.AdvanceStage(ctx, "app-1", true); err != nil {
			t.Fatalf("AdvanceStage %d error: %v", i, err)
		}
	}

	before, _ := store.Get(ctx, "app-1")
	_, err := tr.AdvanceStage(ctx, "app-1", true)
	if code := errCode(t, err); code != model.ErrAlreadyFinal {
		t.Errorf("code = %s", code)
	}

	// Failure leaves the record unmodified.
	after, _ := store.Get(ctx, "app-1")
	if after.Version != before.Version {
		t.Errorf("version changed on failed advance: %d -> %d", before.Version, after.Version)
	}
	if after.CurrentStage != before.CurrentStage {
		t.Errorf("CurrentStage changed: %d -> %d", before.CurrentStage, after.CurrentStage)
	}
}

func TestTracker_AdvanceStage_overallProgressBounds(t *testing.T) {
	tr, _ := newTestTracker()
	ctx := context.Background()
	_, _ = tr.Initialize(ctx, "app-1", template.FastTrackID, nil)

	// Four of five stages completed, last one just started.
	var last model.AdvanceResult
	for i := 0; i < 4; i++ {
		var err error
		last, err = tr.AdvanceStage(ctx, "app-1", true)
		if err != nil {
			t.Fatalf("AdvanceStage %d error: %v", i, err)
		}
	}
	if !almostEqual(last.OverallProgress, 80) {
		t.Errorf("OverallProgress = %v, want 80", last.OverallProgress)
	}
}

// --- UpdateStatus ---

func TestTracker_UpdateStatus(t *testing.T) {
	store := NewMemoryProgressStore()
	syncPolicy := &recordingSync{}
	tr := NewTracker(template.NewRegistry(), store, syncPolicy, nil)
	ctx := context.Background()
	_, _ = tr.Initialize(ctx, "app-1", "standard", nil)

	res, err := tr.UpdateStatus(ctx, "app-1", model.StatusSubmitted, "submitted via portal")
	if err != nil {
		t.Fatalf("UpdateStatus error: %v", err)
	}
	if res.OldStatus != model.StatusDraft || res.NewStatus != model.StatusSubmitted {
		t.Errorf("status transition = %q -> %q", res.OldStatus, res.NewStatus)
	}

	// An audit note is recorded on the current stage.
	got, _ := store.Get(ctx, "app-1")
	notes := got.Stages[0].Notes
	if len(notes) != 1 {
		t.Fatalf("notes count = %d, want 1", len(notes))
	}
	if notes[0].Type != model.NoteTypeStatusChange {
		t.Errorf("note type = %q", notes[0].Type)
	}
	want := "Status changed from draft to submitted: submitted via portal"
	if notes[0].Message != want {
		t.Errorf("note message = %q, want %q", notes[0].Message, want)
	}

	// The sync policy was invoked after the change persisted.
	if len(syncPolicy.calls) != 1 {
		t.Fatalf("sync calls = %d, want 1", len(syncPolicy.calls))
	}
	if syncPolicy.calls[0].NewStatus != model.StatusSubmitted {
		t.Errorf("sync NewStatus = %q", syncPolicy.calls[0].NewStatus)
	}
}

func TestTracker_UpdateStatus_invalid(t *testing.T) {
	tr, _ := newTestTracker()
	ctx := context.Background()
	_, _ = tr.Initialize(ctx, "app-1", "standard", nil)

	_, err := tr.UpdateStatus(ctx, "app-1", "bogus", "")
	if code := errCode(t, err); code != model.ErrInvalidStatus {
		t.Errorf("code = %s", code)
	}
}

func TestTracker_UpdateStatus_syncFailureIsNonFatal(t *testing.T) {
	store := NewMemoryProgressStore()
	syncPolicy := &recordingSync{err: fmt.Errorf("upstream unavailable")}
	tr := NewTracker(template.NewRegistry(), store, syncPolicy, nil)
	ctx := context.Background()
	_, _ = tr.Initialize(ctx, "app-1", "standard", nil)

	res, err := tr.UpdateStatus(ctx, "app-1", model.StatusSubmitted, "")
	if err != nil {
		t.Fatalf("UpdateStatus error: %v", err)
	}
	if res.NewStatus != model.StatusSubmitted {
		t.Errorf("NewStatus = %q", res.NewStatus)
	}

	// The local change persisted despite the sync failure.
	got, _ := store.Get(ctx, "app-1")
	if got.CurrentStatus != model.StatusSubmitted {
		t.Errorf("CurrentStatus = %q, want submitted", got.CurrentStatus)
	}
}

// --- Notes and blockers ---

func TestTracker_AddNote(t *testing.T) {
	tr, store := newTestTracker()
	ctx := context.Background()
	_, _ = tr.Initialize(ctx, "app-1", "standard", nil)

	note, err := tr.AddNote(ctx, "app-1", "Called the applicant for clarification", "")
	if err != nil {
		t.Fatalf("AddNote error: %v", err)
	}
	if note.Type != model.NoteTypeGeneral {
		t.Errorf("note type = %q", note.Type)
	}

	got, _ := store.Get(ctx, "app-1")
	if len(got.Stages[0].Notes) != 1 {
		t.Errorf("notes count = %d, want 1", len(got.Stages[0].Notes))
	}
}

func TestTracker_AddNote_explicitType(t *testing.T) {
	tr, _ := newTestTracker()
	ctx := context.Background()
	_, _ = tr.Initialize(ctx, "app-1", "standard", nil)

	note, err := tr.AddNote(ctx, "app-1", "Eligibility confirmed automatically", model.NoteTypeSystem)
	if err != nil {
		t.Fatalf("AddNote error: %v", err)
	}
	if note.Type != model.NoteTypeSystem {
		t.Errorf("note type = %q, want system", note.Type)
	}
}

func TestTracker_AddNote_invalidType(t *testing.T) {
	tr, _ := newTestTracker()
	ctx := context.Background()
	_, _ = tr.Initialize(ctx, "app-1", "standard", nil)

	_, err := tr.AddNote(ctx, "app-1", "message", "reminder")
	if code := errCode(t, err); code != model.ErrBadRequest {
		t.Errorf("code = %s", code)
	}
}

func TestTracker_AddNote_emptyMessage(t *testing.T) {
	tr, _ := newTestTracker()
	ctx := context.Background()
	_, _ = tr.Initialize(ctx, "app-1", "standard", nil)

	_, err := tr.AddNote(ctx, "app-1", "", "")
	if code := errCode(t, err); code != model.ErrBadRequest {
		t.Errorf("code = %s", code)
	}
}

func TestTracker_AddBlocker_defaults(t *testing.T) {
	tr, store := newTestTracker()
	ctx := context.Background()
	_, _ = tr.Initialize(ctx, "app-1", "standard", nil)

	blocker, err := tr.AddBlocker(ctx, "app-1", "Missing insurance certificate", "")
	if err != nil {
		t.Fatalf("AddBlocker error: %v", err)
	}
	if blocker.ID == "" {
		t.Error("expected a generated blocker ID")
	}
	if blocker.Severity != model.SeverityMedium {
		t.Errorf("severity = %q, want medium", blocker.Severity)
	}
	if blocker.Status != model.BlockerStatusActive {
		t.Errorf("status = %q, want active", blocker.Status)
	}

	got, _ := store.Get(ctx, "app-1")
	if len(got.ActiveBlockers()) != 1 {
		t.Errorf("active blockers = %d, want 1", len(got.ActiveBlockers()))
	}
}

func TestTracker_AddBlocker_invalidSeverity(t *testing.T) {
	tr, _ := newTestTracker()
	ctx := context.Background()
	_, _ = tr.Initialize(ctx, "app-1", "standard", nil)

	_, err := tr.AddBlocker(ctx, "app-1", "something", "catastrophic")
	if code := errCode(t, err); code != model.ErrBadRequest {
		t.Errorf("code = %s", code)
	}
}

func TestTracker_ResolveBlocker(t *testing.T) {
	tr, store := newTestTracker()
	ctx := context.Background()
	_, _ = tr.Initialize(ctx, "app-1", "standard", nil)
	blocker, _ := tr.AddBlocker(ctx, "app-1", "Missing insurance certificate", model.SeverityHigh)

	resolved, err := tr.ResolveBlocker(ctx, "app-1", blocker.ID, "Certificate received")
	if err != nil {
		t.Fatalf("ResolveBlocker error: %v", err)
	}
	if resolved.Status != model.BlockerStatusResolved {
		t.Errorf("status = %q, want resolved", resolved.Status)
	}
	if resolved.ResolvedAt == nil {
		t.Error("expected ResolvedAt to be set")
	}
	if resolved.Resolution != "Certificate received" {
		t.Errorf("resolution = %q", resolved.Resolution)
	}

	got, _ := store.Get(ctx, "app-1")
	if len(got.ActiveBlockers()) != 0 {
		t.Errorf("active blockers = %d, want 0", len(got.ActiveBlockers()))
	}
}

func TestTracker_ResolveBlocker_idempotent(t *testing.T) {
	tr, store := newTestTracker()
	ctx := context.Background()
	_, _ = tr.Initialize(ctx, "app-1", "standard", nil)
	blocker, _ := tr.AddBlocker(ctx, "app-1", "Missing document", "")

	first, _ := tr.ResolveBlocker(ctx, "app-1", blocker.ID, "received")
	before, _ := store.Get(ctx, "app-1")

	second, err := tr.ResolveBlocker(ctx, "app-1", blocker.ID, "received again")
	if err != nil {
		t.Fatalf("second ResolveBlocker error: %v", err)
	}
	if second.Resolution != first.Resolution {
		t.Errorf("resolution changed on repeat: %q -> %q", first.Resolution, second.Resolution)
	}

	// No write happens on the repeat call.
	after, _ := store.Get(ctx, "app-1")
	if after.Version != before.Version {
		t.Errorf("version changed on idempotent resolve: %d -> %d", before.Version, after.Version)
	}
}

func TestTracker_ResolveBlocker_acrossStages(t *testing.T) {
	tr, _ := newTestTracker()
	ctx := context.Background()
	_, _ = tr.Initialize(ctx, "app-1", "standard", nil)
	blocker, _ := tr.AddBlocker(ctx, "app-1", "Missing document", "")

	// Advance past the stage holding the blocker.
	_, _ = tr.AdvanceStage(ctx, "app-1", true)

	resolved, err := tr.ResolveBlocker(ctx, "app-1", blocker.ID, "found it")
	if err != nil {
		t.Fatalf("ResolveBlocker error: %v", err)
	}
	if resolved.Status != model.BlockerStatusResolved {
		t.Errorf("status = %q", resolved.Status)
	}
}

func TestTracker_ResolveBlocker_notFound(t *testing.T) {
	tr, _ := newTestTracker()
	ctx := context.Background()
	_, _ = tr.Initialize(ctx, "app-1", "standard", nil)

	_, err := tr.ResolveBlocker(ctx, "app-1", "nonexistent", "")
	if code := errCode(t, err); code != model.ErrBlockerNotFound {
		t.Errorf("code = %s", code)
	}
}

// --- GetProgress / GetSummary ---

func TestTracker_GetProgress(t *testing.T) {
	tr, _ := newTestTracker()
	ctx := context.Background()
	_, _ = tr.Initialize(ctx, "app-1", "standard", nil)
	_, _ = tr.AddBlocker(ctx, "app-1", "Missing document", "")

	view, err := tr.GetProgress(ctx, "app-1")
	if err != nil {
		t.Fatalf("GetProgress error: %v", err)
	}
	if view.ApplicationID != "app-1" {
		t.Errorf("ApplicationID = %q", view.ApplicationID)
	}
	if view.TimeElapsed != "0 minutes" {
		t.Errorf("TimeElapsed = %q, want 0 minutes", view.TimeElapsed)
	}
	// The full standard template is roughly ten days of estimated work.
	if view.EstimatedTimeRemaining != "10 days" {
		t.Errorf("EstimatedTimeRemaining = %q, want 10 days", view.EstimatedTimeRemaining)
	}
	if len(view.ActiveBlockers) != 1 {
		t.Errorf("active blockers = %d, want 1", len(view.ActiveBlockers))
	}
}

func TestTracker_GetProgress_notFound(t *testing.T) {
	tr, _ := newTestTracker()

	_, err := tr.GetProgress(context.Background(), "nonexistent")
	if code := errCode(t, err); code != model.ErrNotFound {
		t.Errorf("code = %s", code)
	}
}

func TestTracker_GetSummary_nextAction(t *testing.T) {
	tr, _ := newTestTracker()
	ctx := context.Background()
	_, _ = tr.Initialize(ctx, "app-1", "standard", nil)

	// Missing required fields: suggest the first two.
	summary, err := tr.GetSummary(ctx, "app-1")
	if err != nil {
		t.Fatalf("GetSummary error: %v", err)
	}
	if summary.NextAction != "Complete: organization_info, project_description" {
		t.Errorf("NextAction = %q", summary.NextAction)
	}
	if summary.CurrentStage.Title != "Create Application" {
		t.Errorf("CurrentStage.Title = %q", summary.CurrentStage.Title)
	}
	if summary.HasBlockers {
		t.Error("HasBlockers should be false")
	}

	// Completed but not yet advanced: waiting on the next stage.
	completeFirstStandardStage(t, tr, "app-1")
	summary, _ = tr.GetSummary(ctx, "app-1")
	if summary.NextAction != "Waiting for next stage to begin" {
		t.Errorf("NextAction = %q", summary.NextAction)
	}

	// External review stage: waiting on the council.
	for i := 0; i < 3; i++ {
		_, _ = tr.AdvanceStage(ctx, "app-1", true)
	}
	summary, _ = tr.GetSummary(ctx, "app-1")
	if summary.NextAction != "Waiting for council review" {
		t.Errorf("NextAction = %q", summary.NextAction)
	}
}

func TestTracker_GetSummary_blockers(t *testing.T) {
	tr, _ := newTestTracker()
	ctx := context.Background()
	_, _ = tr.Initialize(ctx, "app-1", "standard", nil)
	blocker, _ := tr.AddBlocker(ctx, "app-1", "Missing document", "")

	summary, _ := tr.GetSummary(ctx, "app-1")
	if !summary.HasBlockers {
		t.Error("HasBlockers should be true")
	}

	_, _ = tr.ResolveBlocker(ctx, "app-1", blocker.ID, "received")
	summary, _ = tr.GetSummary(ctx, "app-1")
	if summary.HasBlockers {
		t.Error("HasBlockers should be false after resolution")
	}
}

// --- Full lifecycle ---

func TestTracker_fastTrackLifecycle(t *testing.T) {
	tr, store := newTestTracker()
	ctx := context.Background()

	rec, err := tr.Initialize(ctx, "app-ft", template.FastTrackID, nil)
	if err != nil {
		t.Fatalf("Initialize error: %v", err)
	}
	if len(rec.Stages) != 5 {
		t.Fatalf("stages count = %d, want 5", len(rec.Stages))
	}

	// Complete the creation stage.
	for _, f := range []string{"organization_info", "project_summary", "amount_requested"} {
		if _, err := tr.UpdateField(ctx, "app-ft", f, true); err != nil {
			t.Fatalf("UpdateField(%s) error: %v", f, err)
		}
	}
	if _, err := tr.AdvanceStage(ctx, "app-ft", false); err != nil {
		t.Fatalf("AdvanceStage error: %v", err)
	}

	// Complete submission and move into review.
	if _, err := tr.UpdateField(ctx, "app-ft", "declaration", true); err != nil {
		t.Fatalf("UpdateField(declaration) error: %v", err)
	}
	res, err := tr.AdvanceStage(ctx, "app-ft", false)
	if err != nil {
		t.Fatalf("AdvanceStage error: %v", err)
	}
	if res.NewStage.Key != "initial_review" {
		t.Errorf("NewStage.Key = %q, want initial_review", res.NewStage.Key)
	}
	if !almostEqual(res.OverallProgress, 40) {
		t.Errorf("OverallProgress = %v, want 40", res.OverallProgress)
	}

	// Council decides; the application is approved.
	if _, err := tr.UpdateStatus(ctx, "app-ft", model.StatusApproved, "council approved"); err != nil {
		t.Fatalf("UpdateStatus error: %v", err)
	}

	got, _ := store.Get(ctx, "app-ft")
	if got.CurrentStatus != model.StatusApproved {
		t.Errorf("CurrentStatus = %q", got.CurrentStatus)
	}
	if got.CurrentStage != 2 {
		t.Errorf("CurrentStage = %d, want 2", got.CurrentStage)
	}
}

// --- Metrics recording ---

type recordingMetrics struct {
	inits        []string
	fieldUpdates int
	completions  []string
	advances     []bool
	statuses     []string
	notes        int
	blockers     []string
	resolved     int
}

func (m *recordingMetrics) RecordInitialization(templateID string) {
	m.inits = append(m.inits, templateID)
}
func (m *recordingMetrics) RecordFieldUpdate(string) { m.fieldUpdates++ }
func (m *recordingMetrics) RecordStageCompletion(_, stage string, _ int) {
	m.completions = append(m.completions, stage)
}
func (m *recordingMetrics) RecordStageAdvance(_ string, forced bool) {
	m.advances = append(m.advances, forced)
}
func (m *recordingMetrics) RecordStatusChange(_, newStatus string, _ bool) {
	m.statuses = append(m.statuses, newStatus)
}
func (m *recordingMetrics) RecordNoteAdded() { m.notes++ }
func (m *recordingMetrics) RecordBlockerAdded(severity string) {
	m.blockers = append(m.blockers, severity)
}
func (m *recordingMetrics) RecordBlockerResolved() { m.resolved++ }

func TestTracker_metricsRecorded(t *testing.T) {
	tr, _ := newTestTracker()
	rec := &recordingMetrics{}
	tr.SetMetrics(rec)
	ctx := context.Background()

	if _, err := tr.Initialize(ctx, "app-m", "standard", nil); err != nil {
		t.Fatalf("Initialize error: %v", err)
	}
	completeFirstStandardStage(t, tr, "app-m")
	if _, err := tr.AdvanceStage(ctx, "app-m", false); err != nil {
		t.Fatalf("AdvanceStage error: %v", err)
	}
	if _, err := tr.UpdateStatus(ctx, "app-m", model.StatusSubmitted, ""); err != nil {
		t.Fatalf("UpdateStatus error: %v", err)
	}
	if _, err := tr.AddNote(ctx, "app-m", "lodged in person", ""); err != nil {
		t.Fatalf("AddNote error: %v", err)
	}
	b, err := tr.AddBlocker(ctx, "app-m", "missing insurance certificate", model.SeverityHigh)
	if err != nil {
		t.Fatalf("AddBlocker error: %v", err)
	}
	if _, err := tr.ResolveBlocker(ctx, "app-m", b.ID, "certificate provided"); err != nil {
		t.Fatalf("ResolveBlocker error: %v", err)
	}

	if len(rec.inits) != 1 || rec.inits[0] != "standard" {
		t.Errorf("inits = %v, want [standard]", rec.inits)
	}
	if rec.fieldUpdates != 3 {
		t.Errorf("fieldUpdates = %d, want 3", rec.fieldUpdates)
	}
	// The first stage completes on the last field update, not on advance.
	if len(rec.completions) != 1 || rec.completions[0] != "application_creation" {
		t.Errorf("completions = %v, want [application_creation]", rec.completions)
	}
	if len(rec.advances) != 1 || rec.advances[0] {
		t.Errorf("advances = %v, want [false]", rec.advances)
	}
	if len(rec.statuses) != 1 || rec.statuses[0] != model.StatusSubmitted {
		t.Errorf("statuses = %v, want [submitted]", rec.statuses)
	}
	if rec.notes != 1 {
		t.Errorf("notes = %d, want 1", rec.notes)
	}
	if len(rec.blockers) != 1 || rec.blockers[0] != model.SeverityHigh {
		t.Errorf("blockers = %v, want [high]", rec.blockers)
	}
	if rec.resolved != 1 {
		t.Errorf("resolved = %d, want 1", rec.resolved)
	}

	// Resolving again is idempotent and must not re-count.
	if _, err := tr.ResolveBlocker(ctx, "app-m", b.ID, "again"); err != nil {
		t.Fatalf("ResolveBlocker error: %v", err)
	}
	if rec.resolved != 1 {
		t.Errorf("resolved after repeat = %d, want 1", rec.resolved)
	}
}
