package model

// Completion criterion kinds. The criterion determines when a stage counts
// as done.
const (
	// CriterionAllRequiredFields completes a stage once every required
	// field has been marked complete.
	CriterionAllRequiredFields = "all_required_fields"

	// CriterionThresholdProgress completes a stage once its progress score
	// reaches 100. Used for stages whose fields are upload or confirmation
	// counters supplied externally.
	CriterionThresholdProgress = "threshold_progress"

	// CriterionExternalSignal marks a stage as driven by an outside actor,
	// e.g. a council review. Field data is ignored; the stage completes
	// only when explicitly marked completed.
	CriterionExternalSignal = "external_signal"
)

// StageDefinition describes one ordered step of a workflow template.
type StageDefinition struct {
	Key               string   `json:"key" yaml:"key"`
	Title             string   `json:"title" yaml:"title"`
	Description       string   `json:"description" yaml:"description"`
	EstimatedDuration int      `json:"estimated_duration" yaml:"estimated_duration"` // minutes
	RequiredFields    []string `json:"required_fields,omitempty" yaml:"required_fields"`
	OptionalFields    []string `json:"optional_fields,omitempty" yaml:"optional_fields"`
	Criterion         string   `json:"completion_criterion" yaml:"completion_criterion"`

	// External is true when stage completion is driven by an outside actor
	// rather than applicant field data.
	External bool `json:"external,omitempty" yaml:"external"`
}

// WorkflowTemplate is a named, ordered list of stage definitions. Templates
// are immutable once registered.
type WorkflowTemplate struct {
	ID            string            `json:"id" yaml:"id"`
	Name          string            `json:"name" yaml:"name"`
	InitialStatus string            `json:"initial_status,omitempty" yaml:"initial_status"`
	Stages        []StageDefinition `json:"stages" yaml:"stages"`
}

// TotalEstimatedDuration returns the sum of all stage estimates in minutes.
func (t WorkflowTemplate) TotalEstimatedDuration() int {
	total := 0
	for _, s := range t.Stages {
		total += s.EstimatedDuration
	}
	return total
}

// TemplateSource resolves a workflow template by ID. The registry is the
// static implementation; hosts may supply a remote one.
type TemplateSource interface {
	Resolve(templateID string) (WorkflowTemplate, bool)
}
