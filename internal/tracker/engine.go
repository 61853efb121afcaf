package tracker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/grantthrive/pulse/model"
)

// DefaultTemplateID is used when an initialization request names no template.
const DefaultTemplateID = "standard"

// Tracker manages the lifecycle of application progress records. All
// mutations on one application are serialized through a per-application
// lock; the store's optimistic version check guards against concurrent
// writers on other replicas.
type Tracker struct {
	templates model.TemplateSource
	store     ProgressStore
	sync      StatusSyncPolicy
	logger    *zap.Logger
	metrics   MetricsRecorder

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewTracker creates a new progress tracker. A nil syncPolicy defaults to
// NoopStatusSync.
func NewTracker(templates model.TemplateSource, store ProgressStore, syncPolicy StatusSyncPolicy, logger *zap.Logger) *Tracker {
	if syncPolicy == nil {
		syncPolicy = NoopStatusSync{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		templates: templates,
		store:     store,
		sync:      syncPolicy,
		logger:    logger,
		locks:     make(map[string]*sync.Mutex),
	}
}

// SetMetrics attaches a domain metrics recorder. Safe to leave unset.
func (t *Tracker) SetMetrics(m MetricsRecorder) {
	t.metrics = m
}

// lock acquires the per-application mutex, creating it on first use.
func (t *Tracker) lock(applicationID string) *sync.Mutex {
	t.mu.Lock()
	l, ok := t.locks[applicationID]
	if !ok {
		l = &sync.Mutex{}
		t.locks[applicationID] = l
	}
	t.mu.Unlock()

	l.Lock()
	return l
}

// Initialize creates a progress record for an application from a workflow
// template, or from caller-supplied custom stages.
func (t *Tracker) Initialize(
	ctx context.Context,
	applicationID string,
	templateID string,
	customStages []model.StageDefinition,
) (model.ProgressRecord, error) {
	if applicationID == "" {
		return model.ProgressRecord{}, model.NewBadRequestError("application_id is required")
	}

	// 1. Resolve the stage list.
	var stages []model.StageDefinition
	initialStatus := model.StatusDraft
	if len(customStages) > 0 {
		templateID = "custom"
		stages = customStages
		for i, s := range customStages {
			if s.Key == "" || s.Title == "" {
				return model.ProgressRecord{}, model.NewBadRequestError(
					fmt.Sprintf("custom stage %d must have a key and a title", i),
				)
			}
		}
	} else {
		if templateID == "" {
			templateID = DefaultTemplateID
		}
		tpl, ok := t.templates.Resolve(templateID)
		if !ok {
			return model.ProgressRecord{}, model.NewTemplateNotFoundError(templateID)
		}
		stages = tpl.Stages
		if tpl.InitialStatus != "" {
			initialStatus = tpl.InitialStatus
		}
	}

	// 2. Build stage records. The first stage starts immediately.
	now := time.Now().UTC()
	records := make([]model.StageRecord, len(stages))
	for i, def := range stages {
		rec := model.StageRecord{
			Index:             i,
			Key:               def.Key,
			Title:             def.Title,
			Description:       def.Description,
			Status:            model.StageStatusPending,
			EstimatedDuration: def.EstimatedDuration,
			RequiredFields:    def.RequiredFields,
			OptionalFields:    def.OptionalFields,
			Criterion:         def.Criterion,
			External:          def.External,
		}
		if rec.Criterion == "" {
			rec.Criterion = model.CriterionAllRequiredFields
			if def.External {
				rec.Criterion = model.CriterionExternalSignal
			}
		}
		if i == 0 {
			rec.Status = model.StageStatusInProgress
			started := now
			rec.StartedAt = &started
		}
		records[i] = rec
	}

	record := model.ProgressRecord{
		ApplicationID:       applicationID,
		TemplateID:          templateID,
		CurrentStage:        0,
		CurrentStatus:       initialStatus,
		OverallProgress:     0,
		CreatedAt:           now,
		UpdatedAt:           now,
		EstimatedCompletion: EstimatedCompletion(now, stages),
		Stages:              records,
		Version:             1,
	}

	// 3. Persist. The store rejects duplicates.
	if err := t.store.Create(ctx, record); err != nil {
		return model.ProgressRecord{}, err
	}
	if t.metrics != nil {
		t.metrics.RecordInitialization(templateID)
	}
	return record, nil
}

// UpdateField marks a field on the current stage as completed and
// re-evaluates stage and overall progress. Stages that reach their
// completion criterion are marked completed but the workflow does not
// advance; advancing is always an explicit call.
func (t *Tracker) UpdateField(
	ctx context.Context,
	applicationID string,
	fieldName string,
	value any,
) (model.FieldUpdateResult, error) {
	if fieldName == "" {
		return model.FieldUpdateResult{}, model.NewBadRequestError("field_name is required")
	}

	l := t.lock(applicationID)
	defer l.Unlock()

	record, err := t.store.Get(ctx, applicationID)
	if err != nil {
		return model.FieldUpdateResult{}, err
	}

	// 1. Record the field. Unknown fields are kept for audit; they never
	// affect the score.
	stage := record.CurrentStageRecord()
	if stage.CompletedFields == nil {
		stage.CompletedFields = make(map[string]any)
	}
	stage.CompletedFields[fieldName] = value

	// 2. Re-evaluate the stage.
	score, complete := EvaluateStage(stage.Definition(), stage.CompletedFields, stage.Status)
	stage.Progress = score
	completedNow := complete && stage.Status != model.StageStatusCompleted
	if completedNow {
		t.completeStage(stage, time.Now().UTC())
	}

	// 3. Recompute overall progress and persist.
	record.OverallProgress = OverallProgress(record.Stages, record.CurrentStage)
	if err := t.store.Update(ctx, record); err != nil {
		return model.FieldUpdateResult{}, err
	}

	if t.metrics != nil {
		t.metrics.RecordFieldUpdate(record.TemplateID)
		if completedNow {
			t.metrics.RecordStageCompletion(record.TemplateID, stage.Key, actualMinutes(stage))
		}
	}

	return model.FieldUpdateResult{
		ApplicationID:   applicationID,
		FieldName:       fieldName,
		StageProgress:   stage.Progress,
		OverallProgress: record.OverallProgress,
		StageComplete:   stage.Status == model.StageStatusCompleted,
	}, nil
}

// AdvanceStage moves the workflow to the next stage. Unless force is set,
// the current stage must satisfy its completion criterion.
func (t *Tracker) AdvanceStage(
	ctx context.Context,
	applicationID string,
	force bool,
) (model.AdvanceResult, error) {
	l := t.lock(applicationID)
	defer l.Unlock()

	record, err := t.store.Get(ctx, applicationID)
	if err != nil {
		return model.AdvanceResult{}, err
	}

	// 1. The final stage has nowhere to advance to. Checked before any
	// mutation so the record is untouched on failure.
	if record.CurrentStage >= len(record.Stages)-1 {
		return model.AdvanceResult{}, model.NewAlreadyFinalError(applicationID)
	}

	// 2. Enforce the completion criterion unless forced.
	stage := record.CurrentStageRecord()
	if !force {
		_, complete := EvaluateStage(stage.Definition(), stage.CompletedFields, stage.Status)
		if !complete && stage.Status != model.StageStatusCompleted {
			return model.AdvanceResult{}, model.NewStageIncompleteError(stage.Key, stage.MissingRequirements())
		}
	}

	// 3. Close out the current stage.
	now := time.Now().UTC()
	completedNow := stage.Status != model.StageStatusCompleted
	if completedNow {
		t.completeStage(stage, now)
	}

	// 4. Enter the next stage.
	record.CurrentStage++
	next := record.CurrentStageRecord()
	next.Status = model.StageStatusInProgress
	started := now
	next.StartedAt = &started

	record.OverallProgress = OverallProgress(record.Stages, record.CurrentStage)
	if err := t.store.Update(ctx, record); err != nil {
		return model.AdvanceResult{}, err
	}

	if t.metrics != nil {
		t.metrics.RecordStageAdvance(record.TemplateID, force)
		if completedNow {
			t.metrics.RecordStageCompletion(record.TemplateID, stage.Key, actualMinutes(stage))
		}
	}

	return model.AdvanceResult{
		ApplicationID:   applicationID,
		NewStageIndex:   record.CurrentStage,
		NewStage:        *next,
		OverallProgress: record.OverallProgress,
	}, nil
}

// UpdateStatus changes the application-level status and records an audit
// note on the current stage. The configured StatusSyncPolicy is invoked
// after the change is persisted; sync failures are logged, not returned.
func (t *Tracker) UpdateStatus(
	ctx context.Context,
	applicationID string,
	status string,
	note string,
) (model.StatusUpdateResult, error) {
	if !model.ValidApplicationStatus(status) {
		return model.StatusUpdateResult{}, model.NewInvalidStatusError(status)
	}

	l := t.lock(applicationID)
	defer l.Unlock()

	record, err := t.store.Get(ctx, applicationID)
	if err != nil {
		return model.StatusUpdateResult{}, err
	}

	oldStatus := record.CurrentStatus
	record.CurrentStatus = status

	message := fmt.Sprintf("Status changed from %s to %s", oldStatus, status)
	if note != "" {
		message += ": " + note
	}
	stage := record.CurrentStageRecord()
	stage.Notes = append(stage.Notes, model.Note{
		Timestamp: time.Now().UTC(),
		Type:      model.NoteTypeStatusChange,
		Message:   message,
	})

	if err := t.store.Update(ctx, record); err != nil {
		return model.StatusUpdateResult{}, err
	}

	if t.metrics != nil {
		t.metrics.RecordStatusChange(record.TemplateID, status, model.IsFinalStatus(status))
	}

	if err := t.sync.SyncStatus(ctx, applicationID, oldStatus, status); err != nil {
		t.logger.Warn("status sync failed",
			zap.String("application_id", applicationID),
			zap.String("new_status", status),
			zap.Error(err),
		)
	}

	return model.StatusUpdateResult{
		ApplicationID: applicationID,
		OldStatus:     oldStatus,
		NewStatus:     status,
	}, nil
}

// AddNote appends a note to the current stage. An empty note type defaults
// to general.
func (t *Tracker) AddNote(
	ctx context.Context,
	applicationID string,
	message string,
	noteType string,
) (model.Note, error) {
	if message == "" {
		return model.Note{}, model.NewBadRequestError("note message is required")
	}
	if noteType == "" {
		noteType = model.NoteTypeGeneral
	}
	if !model.ValidNoteType(noteType) {
		return model.Note{}, model.NewBadRequestError(
			fmt.Sprintf("invalid note type: %q", noteType),
		)
	}

	l := t.lock(applicationID)
	defer l.Unlock()

	record, err := t.store.Get(ctx, applicationID)
	if err != nil {
		return model.Note{}, err
	}

	note := model.Note{
		Timestamp: time.Now().UTC(),
		Type:      noteType,
		Message:   message,
	}
	stage := record.CurrentStageRecord()
	stage.Notes = append(stage.Notes, note)

	if err := t.store.Update(ctx, record); err != nil {
		return model.Note{}, err
	}
	if t.metrics != nil {
		t.metrics.RecordNoteAdded()
	}
	return note, nil
}

// AddBlocker records a new active blocker on the current stage. Severity
// defaults to medium when omitted.
func (t *Tracker) AddBlocker(
	ctx context.Context,
	applicationID string,
	description string,
	severity string,
) (model.Blocker, error) {
	if description == "" {
		return model.Blocker{}, model.NewBadRequestError("blocker description is required")
	}
	if severity == "" {
		severity = model.SeverityMedium
	}
	if !model.ValidSeverity(severity) {
		return model.Blocker{}, model.NewBadRequestError(
			fmt.Sprintf("invalid blocker severity: %q", severity),
		)
	}

	l := t.lock(applicationID)
	defer l.Unlock()

	record, err := t.store.Get(ctx, applicationID)
	if err != nil {
		return model.Blocker{}, err
	}

	blocker := model.Blocker{
		ID:          uuid.New().String(),
		Timestamp:   time.Now().UTC(),
		Description: description,
		Severity:    severity,
		Status:      model.BlockerStatusActive,
	}
	stage := record.CurrentStageRecord()
	stage.Blockers = append(stage.Blockers, blocker)

	if err := t.store.Update(ctx, record); err != nil {
		return model.Blocker{}, err
	}
	if t.metrics != nil {
		t.metrics.RecordBlockerAdded(severity)
	}
	return blocker, nil
}

// ResolveBlocker marks a blocker as resolved. The blocker is searched across
// all stages, not just the current one. Resolving an already-resolved
// blocker is a no-op and returns it unchanged.
func (t *Tracker) ResolveBlocker(
	ctx context.Context,
	applicationID string,
	blockerID string,
	resolution string,
) (model.Blocker, error) {
	l := t.lock(applicationID)
	defer l.Unlock()

	record, err := t.store.Get(ctx, applicationID)
	if err != nil {
		return model.Blocker{}, err
	}

	for si := range record.Stages {
		for bi := range record.Stages[si].Blockers {
			b := &record.Stages[si].Blockers[bi]
			if b.ID != blockerID {
				continue
			}
			if b.Status == model.BlockerStatusResolved {
				return *b, nil
			}

			resolved := time.Now().UTC()
			b.Status = model.BlockerStatusResolved
			b.ResolvedAt = &resolved
			b.Resolution = resolution

			if err := t.store.Update(ctx, record); err != nil {
				return model.Blocker{}, err
			}
			if t.metrics != nil {
				t.metrics.RecordBlockerResolved()
			}
			return *b, nil
		}
	}

	return model.Blocker{}, model.NewBlockerNotFoundError(blockerID)
}

// GetProgress returns the full progress record augmented with derived
// timing fields and the active blockers across all stages.
func (t *Tracker) GetProgress(ctx context.Context, applicationID string) (model.ProgressView, error) {
	record, err := t.store.Get(ctx, applicationID)
	if err != nil {
		return model.ProgressView{}, err
	}

	now := time.Now().UTC()
	return model.ProgressView{
		ProgressRecord:         record,
		TimeElapsed:            Elapsed(record.CreatedAt, now),
		EstimatedTimeRemaining: Remaining(record.Stages, record.CurrentStage),
		ActiveBlockers:         record.ActiveBlockers(),
	}, nil
}

// GetSummary returns the condensed dashboard view of an application's
// progress, including a suggested next action.
func (t *Tracker) GetSummary(ctx context.Context, applicationID string) (model.ProgressSummary, error) {
	record, err := t.store.Get(ctx, applicationID)
	if err != nil {
		return model.ProgressSummary{}, err
	}

	now := time.Now().UTC()
	stage := record.CurrentStageRecord()
	return model.ProgressSummary{
		ApplicationID:   applicationID,
		CurrentStatus:   record.CurrentStatus,
		OverallProgress: record.OverallProgress,
		CurrentStage: model.StageSummary{
			Title:       stage.Title,
			Description: stage.Description,
			Progress:    stage.Progress,
			Status:      stage.Status,
		},
		TimeElapsed:            Elapsed(record.CreatedAt, now),
		EstimatedTimeRemaining: Remaining(record.Stages, record.CurrentStage),
		HasBlockers:            len(record.ActiveBlockers()) > 0,
		NextAction:             nextAction(*stage),
	}, nil
}

// completeStage marks a stage completed, recording the completion time and
// the actual duration in minutes when the start time is known.
func (t *Tracker) completeStage(stage *model.StageRecord, now time.Time) {
	stage.Status = model.StageStatusCompleted
	stage.Progress = 100
	completed := now
	stage.CompletedAt = &completed
	if stage.StartedAt != nil {
		actual := int(now.Sub(*stage.StartedAt).Minutes())
		stage.ActualDuration = &actual
	}
}

// actualMinutes returns the recorded actual duration of a completed stage,
// or zero when the start time was never known.
func actualMinutes(stage *model.StageRecord) int {
	if stage.ActualDuration != nil {
		return *stage.ActualDuration
	}
	return 0
}

// nextAction suggests what the applicant (or the system) should do next,
// based on the state of the current stage.
func nextAction(stage model.StageRecord) string {
	if stage.Status == model.StageStatusCompleted {
		return "Waiting for next stage to begin"
	}
	if missing := stage.MissingRequirements(); len(missing) > 0 {
		if len(missing) > 2 {
			missing = missing[:2]
		}
		return "Complete: " + strings.Join(missing, ", ")
	}
	if stage.External {
		return "Waiting for council review"
	}
	return "Continue with current stage"
}
