package tracker

import "github.com/grantthrive/pulse/model"

// optionalBonusMax is the maximum score bonus contributed by optional fields.
const optionalBonusMax = 10.0

// EvaluateStage computes a 0-100 progress score and a completion verdict for
// a stage, given its definition, the set of fields marked complete, and the
// stage's current status. It is pure: no clock, no I/O, no mutation.
//
// Fields outside the stage's required and optional sets are accepted by the
// tracker for audit purposes but never affect the score, so evaluation is
// idempotent with respect to repeated or unknown field names.
func EvaluateStage(def model.StageDefinition, completed map[string]any, stageStatus string) (score float64, complete bool) {
	switch def.Criterion {
	case model.CriterionExternalSignal:
		// Driven by an outside actor; field data is ignored.
		if stageStatus == model.StageStatusCompleted {
			return 100, true
		}
		return 0, false

	case model.CriterionThresholdProgress:
		score = fieldScore(def, completed)
		return score, score >= 100

	default: // model.CriterionAllRequiredFields
		score = fieldScore(def, completed)
		return score, allRequiredPresent(def.RequiredFields, completed)
	}
}

// fieldScore computes the required-field completion ratio scaled to 100 with
// a proportional optional-field bonus of at most optionalBonusMax, capped
// at 100. A stage with no required fields scores 100.
func fieldScore(def model.StageDefinition, completed map[string]any) float64 {
	score := 100.0
	if len(def.RequiredFields) > 0 {
		done := 0
		for _, f := range def.RequiredFields {
			if _, ok := completed[f]; ok {
				done++
			}
		}
		score = float64(done) / float64(len(def.RequiredFields)) * 100
	}

	if len(def.OptionalFields) > 0 {
		done := 0
		for _, f := range def.OptionalFields {
			if _, ok := completed[f]; ok {
				done++
			}
		}
		score += float64(done) / float64(len(def.OptionalFields)) * optionalBonusMax
	}

	if score > 100 {
		score = 100
	}
	return score
}

func allRequiredPresent(required []string, completed map[string]any) bool {
	for _, f := range required {
		if _, ok := completed[f]; !ok {
			return false
		}
	}
	return true
}

// OverallProgress computes the record-level progress percentage as a pure
// function of the stage records: each completed stage contributes an equal
// share, and the current stage contributes its partial score while it is
// still open. The result is 100 exactly when every stage is completed.
func OverallProgress(stages []model.StageRecord, currentStage int) float64 {
	if len(stages) == 0 {
		return 0
	}

	total := float64(len(stages))
	completedStages := 0
	for _, s := range stages {
		if s.Status == model.StageStatusCompleted {
			completedStages++
		}
	}

	overall := float64(completedStages) / total * 100
	if current := stages[currentStage]; current.Status != model.StageStatusCompleted {
		overall += current.Progress / total
	}

	if overall > 100 {
		overall = 100
	}
	return overall
}
