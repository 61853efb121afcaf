package model

import "time"

// Application status constants. The engine validates membership only; it
// imposes no transition graph between statuses.
const (
	StatusDraft          = "draft"
	StatusSubmitted      = "submitted"
	StatusUnderReview    = "under_review"
	StatusAdditionalInfo = "additional_info_required"
	StatusApproved       = "approved"
	StatusRejected       = "rejected"
	StatusWithdrawn      = "withdrawn"
)

// ApplicationStatuses is the fixed set of recognized application statuses.
var ApplicationStatuses = []string{
	StatusDraft,
	StatusSubmitted,
	StatusUnderReview,
	StatusAdditionalInfo,
	StatusApproved,
	StatusRejected,
	StatusWithdrawn,
}

// ValidApplicationStatus reports whether s is a recognized application status.
func ValidApplicationStatus(s string) bool {
	for _, v := range ApplicationStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// IsFinalStatus reports whether s ends an application's lifecycle.
func IsFinalStatus(s string) bool {
	return s == StatusApproved || s == StatusRejected || s == StatusWithdrawn
}

// Stage status constants.
const (
	StageStatusPending    = "pending"
	StageStatusInProgress = "in_progress"
	StageStatusCompleted  = "completed"
)

// Note type constants.
const (
	NoteTypeGeneral      = "general"
	NoteTypeStatusChange = "status_change"
	NoteTypeSystem       = "system"
)

// ValidNoteType reports whether s is a recognized note type.
func ValidNoteType(s string) bool {
	return s == NoteTypeGeneral || s == NoteTypeStatusChange || s == NoteTypeSystem
}

// Blocker severity constants.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// ValidSeverity reports whether s is a recognized blocker severity.
func ValidSeverity(s string) bool {
	return s == SeverityLow || s == SeverityMedium || s == SeverityHigh
}

// Blocker status constants.
const (
	BlockerStatusActive   = "active"
	BlockerStatusResolved = "resolved"
)

// Note is an append-only annotation on a stage record.
type Note struct {
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
}

// Blocker records an obstacle preventing stage progress, with severity and
// resolution tracking.
type Blocker struct {
	ID          string     `json:"id"`
	Timestamp   time.Time  `json:"timestamp"`
	Description string     `json:"description"`
	Severity    string     `json:"severity"`
	Status      string     `json:"status"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
	Resolution  string     `json:"resolution,omitempty"`
}

// StageRecord is the mutable per-stage state of a progress record. It embeds
// the stage definition so a record remains self-describing even when the
// template it was created from is replaced.
type StageRecord struct {
	Index             int            `json:"stage_index"`
	Key               string         `json:"stage"`
	Title             string         `json:"title"`
	Description       string         `json:"description"`
	Status            string         `json:"status"`
	Progress          float64        `json:"progress"`
	StartedAt         *time.Time     `json:"started_at,omitempty"`
	CompletedAt       *time.Time     `json:"completed_at,omitempty"`
	EstimatedDuration int            `json:"estimated_duration"` // minutes
	ActualDuration    *int           `json:"actual_duration,omitempty"`
	RequiredFields    []string       `json:"required_fields,omitempty"`
	OptionalFields    []string       `json:"optional_fields,omitempty"`
	Criterion         string         `json:"completion_criterion"`
	External          bool           `json:"external,omitempty"`
	CompletedFields   map[string]any `json:"completed_fields,omitempty"`
	Notes             []Note         `json:"notes,omitempty"`
	Blockers          []Blocker      `json:"blockers,omitempty"`
}

// Definition returns the stage definition this record was created from.
func (s StageRecord) Definition() StageDefinition {
	return StageDefinition{
		Key:               s.Key,
		Title:             s.Title,
		Description:       s.Description,
		EstimatedDuration: s.EstimatedDuration,
		RequiredFields:    s.RequiredFields,
		OptionalFields:    s.OptionalFields,
		Criterion:         s.Criterion,
		External:          s.External,
	}
}

// MissingRequirements returns the required field names not yet completed.
func (s StageRecord) MissingRequirements() []string {
	var missing []string
	for _, f := range s.RequiredFields {
		if _, ok := s.CompletedFields[f]; !ok {
			missing = append(missing, f)
		}
	}
	return missing
}

// ActiveBlockers returns the blockers on this stage still in active status.
func (s StageRecord) ActiveBlockers() []Blocker {
	var active []Blocker
	for _, b := range s.Blockers {
		if b.Status == BlockerStatusActive {
			active = append(active, b)
		}
	}
	return active
}

// ProgressRecord is the full mutable state of one application's journey
// through its workflow.
type ProgressRecord struct {
	ApplicationID       string        `json:"application_id"`
	TemplateID          string        `json:"template_id"`
	CurrentStage        int           `json:"current_stage"`
	CurrentStatus       string        `json:"current_status"`
	OverallProgress     float64       `json:"overall_progress"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
	EstimatedCompletion time.Time     `json:"estimated_completion"`
	Stages              []StageRecord `json:"stages"`

	// Version supports optimistic locking in the store layer.
	Version int `json:"version"`
}

// CurrentStageRecord returns a pointer to the stage record at the current
// stage index.
func (r *ProgressRecord) CurrentStageRecord() *StageRecord {
	return &r.Stages[r.CurrentStage]
}

// ActiveBlockers returns all active blockers across every stage.
func (r *ProgressRecord) ActiveBlockers() []Blocker {
	var active []Blocker
	for _, s := range r.Stages {
		active = append(active, s.ActiveBlockers()...)
	}
	return active
}

// Clone returns a deep copy of the record. Stores hand out clones so readers
// never observe a record mid-mutation.
func (r ProgressRecord) Clone() ProgressRecord {
	out := r
	out.Stages = make([]StageRecord, len(r.Stages))
	for i, s := range r.Stages {
		cs := s
		if s.RequiredFields != nil {
			cs.RequiredFields = append([]string(nil), s.RequiredFields...)
		}
		if s.OptionalFields != nil {
			cs.OptionalFields = append([]string(nil), s.OptionalFields...)
		}
		if s.CompletedFields != nil {
			cs.CompletedFields = make(map[string]any, len(s.CompletedFields))
			for k, v := range s.CompletedFields {
				cs.CompletedFields[k] = v
			}
		}
		if s.Notes != nil {
			cs.Notes = append([]Note(nil), s.Notes...)
		}
		if s.Blockers != nil {
			cs.Blockers = append([]Blocker(nil), s.Blockers...)
		}
		out.Stages[i] = cs
	}
	return out
}

// FieldUpdateResult is returned by UpdateField.
type FieldUpdateResult struct {
	ApplicationID   string  `json:"application_id"`
	FieldName       string  `json:"field_name"`
	StageProgress   float64 `json:"stage_progress"`
	OverallProgress float64 `json:"overall_progress"`
	StageComplete   bool    `json:"stage_complete"`
}

// AdvanceResult is returned by AdvanceStage.
type AdvanceResult struct {
	ApplicationID   string      `json:"application_id"`
	NewStageIndex   int         `json:"new_stage_index"`
	NewStage        StageRecord `json:"new_stage"`
	OverallProgress float64     `json:"overall_progress"`
}

// StatusUpdateResult is returned by UpdateStatus.
type StatusUpdateResult struct {
	ApplicationID string `json:"application_id"`
	OldStatus     string `json:"old_status"`
	NewStatus     string `json:"new_status"`
}

// ProgressView is the full record augmented with derived fields, returned
// by GetProgress.
type ProgressView struct {
	ProgressRecord
	TimeElapsed            string    `json:"time_elapsed"`
	EstimatedTimeRemaining string    `json:"estimated_time_remaining"`
	ActiveBlockers         []Blocker `json:"active_blockers"`
}

// StageSummary is the current-stage card inside a progress summary.
type StageSummary struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Progress    float64 `json:"progress"`
	Status      string  `json:"status"`
}

// ProgressSummary is the condensed view returned by GetSummary.
type ProgressSummary struct {
	ApplicationID          string       `json:"application_id"`
	CurrentStatus          string       `json:"current_status"`
	OverallProgress        float64      `json:"overall_progress"`
	CurrentStage           StageSummary `json:"current_stage"`
	TimeElapsed            string       `json:"time_elapsed"`
	EstimatedTimeRemaining string       `json:"estimated_time_remaining"`
	HasBlockers            bool         `json:"has_blockers"`
	NextAction             string       `json:"next_action"`
}
