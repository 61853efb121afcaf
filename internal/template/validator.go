package template

import (
	"fmt"

	"github.com/grantthrive/pulse/model"
)

// VError describes a single validation error in a template.
type VError struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e VError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Validator validates workflow templates structurally.
type Validator struct{}

// NewValidator creates a new Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks all templates.
func (v *Validator) Validate(templates []model.WorkflowTemplate) []VError {
	var errs []VError
	for i, tpl := range templates {
		prefix := fmt.Sprintf("templates[%d]", i)
		errs = append(errs, v.validateTemplate(prefix, tpl)...)
	}
	return errs
}

func (v *Validator) validateTemplate(prefix string, tpl model.WorkflowTemplate) []VError {
	var errs []VError

	if tpl.ID == "" {
		errs = append(errs, VError{Path: prefix + ".id", Code: "REQUIRED", Message: "template id is required"})
	}
	if len(tpl.Stages) == 0 {
		errs = append(errs, VError{Path: prefix + ".stages", Code: "REQUIRED", Message: "at least one stage is required"})
	}
	if tpl.InitialStatus != "" && !model.ValidApplicationStatus(tpl.InitialStatus) {
		errs = append(errs, VError{
			Path:    prefix + ".initial_status",
			Code:    "INVALID",
			Message: fmt.Sprintf("unknown application status %q", tpl.InitialStatus),
		})
	}

	seen := make(map[string]bool, len(tpl.Stages))
	for i, s := range tpl.Stages {
		sp := fmt.Sprintf("%s.stages[%d]", prefix, i)
		errs = append(errs, v.validateStage(sp, s, seen)...)
	}

	return errs
}

func (v *Validator) validateStage(prefix string, s model.StageDefinition, seen map[string]bool) []VError {
	var errs []VError

	if s.Key == "" {
		errs = append(errs, VError{Path: prefix + ".key", Code: "REQUIRED", Message: "stage key is required"})
	} else if seen[s.Key] {
		errs = append(errs, VError{
			Path:    prefix + ".key",
			Code:    "DUPLICATE",
			Message: fmt.Sprintf("stage key %q is not unique", s.Key),
		})
	} else {
		seen[s.Key] = true
	}

	if s.Title == "" {
		errs = append(errs, VError{Path: prefix + ".title", Code: "REQUIRED", Message: "stage title is required"})
	}
	if s.EstimatedDuration <= 0 {
		errs = append(errs, VError{
			Path:    prefix + ".estimated_duration",
			Code:    "INVALID",
			Message: "estimated_duration must be a positive number of minutes",
		})
	}

	switch s.Criterion {
	case model.CriterionAllRequiredFields, model.CriterionThresholdProgress, model.CriterionExternalSignal:
	default:
		errs = append(errs, VError{
			Path:    prefix + ".completion_criterion",
			Code:    "INVALID",
			Message: fmt.Sprintf("unknown completion criterion %q", s.Criterion),
		})
	}

	if s.External && s.Criterion != model.CriterionExternalSignal {
		errs = append(errs, VError{
			Path:    prefix + ".completion_criterion",
			Code:    "INVALID",
			Message: "external stages must use the external_signal criterion",
		})
	}

	required := make(map[string]bool, len(s.RequiredFields))
	for _, f := range s.RequiredFields {
		if required[f] {
			errs = append(errs, VError{
				Path:    prefix + ".required_fields",
				Code:    "DUPLICATE",
				Message: fmt.Sprintf("field %q listed more than once", f),
			})
		}
		required[f] = true
	}
	for _, f := range s.OptionalFields {
		if required[f] {
			errs = append(errs, VError{
				Path:    prefix + ".optional_fields",
				Code:    "CONFLICT",
				Message: fmt.Sprintf("field %q is both required and optional", f),
			})
		}
	}

	return errs
}
