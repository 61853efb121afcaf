// Package template holds workflow template definitions: the built-in grant
// workflows, a YAML loader for operator-supplied templates, structural
// validation, and a snapshot-swapped registry.
package template

import "github.com/grantthrive/pulse/model"

// Built-in template IDs.
const (
	StandardID  = "standard"
	FastTrackID = "fast-track"
)

// Builtins returns the two workflow templates every deployment supports out
// of the box. Durations are in minutes and follow the council grant process
// profile: applicant-driven stages are short, council stages span days.
func Builtins() []model.WorkflowTemplate {
	return []model.WorkflowTemplate{
		{
			ID:            StandardID,
			Name:          "Standard Grant",
			InitialStatus: model.StatusDraft,
			Stages: []model.StageDefinition{
				{
					Key:               "application_creation",
					Title:             "Create Application",
					Description:       "Complete your grant application form",
					EstimatedDuration: 60,
					RequiredFields:    []string{"organization_info", "project_description", "budget"},
					OptionalFields:    []string{"supporting_documents"},
					Criterion:         model.CriterionAllRequiredFields,
				},
				{
					Key:               "document_upload",
					Title:             "Upload Documents",
					Description:       "Upload required supporting documents",
					EstimatedDuration: 30,
					RequiredFields:    []string{"financial_statements", "project_plan"},
					OptionalFields:    []string{"letters_of_support", "additional_evidence"},
					Criterion:         model.CriterionThresholdProgress,
				},
				{
					Key:               "submission",
					Title:             "Submit Application",
					Description:       "Review and submit your completed application",
					EstimatedDuration: 15,
					RequiredFields:    []string{"final_review", "declaration"},
					Criterion:         model.CriterionThresholdProgress,
				},
				{
					Key:               "initial_review",
					Title:             "Initial Review",
					Description:       "Council staff review application for completeness",
					EstimatedDuration: 2880, // 2 days
					Criterion:         model.CriterionExternalSignal,
					External:          true,
				},
				{
					Key:               "detailed_assessment",
					Title:             "Detailed Assessment",
					Description:       "Comprehensive evaluation of application merit",
					EstimatedDuration: 10080, // 7 days
					Criterion:         model.CriterionExternalSignal,
					External:          true,
				},
				{
					Key:               "decision",
					Title:             "Decision",
					Description:       "Final decision on grant application",
					EstimatedDuration: 1440, // 1 day
					Criterion:         model.CriterionExternalSignal,
					External:          true,
				},
				{
					Key:               "notification",
					Title:             "Notification",
					Description:       "Applicant notified of decision",
					EstimatedDuration: 60,
					Criterion:         model.CriterionExternalSignal,
					External:          true,
				},
			},
		},
		{
			ID:            FastTrackID,
			Name:          "Fast-Track Grant",
			InitialStatus: model.StatusDraft,
			Stages: []model.StageDefinition{
				{
					Key:               "application_creation",
					Title:             "Quick Application",
					Description:       "Complete simplified application form",
					EstimatedDuration: 30,
					RequiredFields:    []string{"organization_info", "project_summary", "amount_requested"},
					Criterion:         model.CriterionAllRequiredFields,
				},
				{
					Key:               "submission",
					Title:             "Submit Application",
					Description:       "Submit your fast-track grant application",
					EstimatedDuration: 5,
					RequiredFields:    []string{"declaration"},
					Criterion:         model.CriterionThresholdProgress,
				},
				{
					Key:               "initial_review",
					Title:             "Fast-Track Review",
					Description:       "Expedited review process",
					EstimatedDuration: 1440, // 1 day
					Criterion:         model.CriterionExternalSignal,
					External:          true,
				},
				{
					Key:               "decision",
					Title:             "Decision",
					Description:       "Quick decision on application",
					EstimatedDuration: 480, // 8 hours
					Criterion:         model.CriterionExternalSignal,
					External:          true,
				},
				{
					Key:               "notification",
					Title:             "Notification",
					Description:       "Immediate notification of outcome",
					EstimatedDuration: 30,
					Criterion:         model.CriterionExternalSignal,
					External:          true,
				},
			},
		},
	}
}
